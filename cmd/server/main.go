package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/automated-mda/backend/internal/api"
	"github.com/automated-mda/backend/internal/config"
	"github.com/automated-mda/backend/internal/flow"
	"github.com/automated-mda/backend/internal/logging"
	"github.com/automated-mda/backend/internal/pipeline"
	"github.com/automated-mda/backend/internal/storage"
	"github.com/automated-mda/backend/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Config lives next to the executable unless MDA_CONFIG says otherwise
	configPath := os.Getenv("MDA_CONFIG")
	if configPath == "" {
		exePath, err := os.Executable()
		if err != nil {
			fmt.Printf("Failed to get executable path: %v\n", err)
			os.Exit(1)
		}
		configPath = filepath.Join(filepath.Dir(exePath), "mda.yaml")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Pretty)
	api.ExposeErrorDetails = cfg.Logging.Level == "debug"

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatal().Err(err).Msg("Failed to create directories")
	}

	// Initialize storage
	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize upload storage")
	}

	var results storage.ResultStore
	switch cfg.Storage.ResultsBackend {
	case "duckdb":
		duck, err := storage.NewDuckResultStore(cfg.Storage.DuckDBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Storage.DuckDBPath).Msg("Failed to open result store")
		}
		results = duck
	default:
		results = storage.NewMemoryResultStore()
	}
	defer results.Close()

	// Initialize processing
	engine, err := pipeline.NewEngine(cfg.RAG, cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize processing engine")
	}

	opts := []pipeline.Option{
		pipeline.WithFileStore(fileStore),
		pipeline.WithMaxConcurrent(cfg.Processing.MaxConcurrentJobs),
		pipeline.WithTimeout(cfg.JobTimeout()),
	}
	archiveCtx, cancelArchive := context.WithTimeout(context.Background(), 10*time.Second)
	archive, err := storage.NewArchive(archiveCtx, cfg.Storage.Archive)
	cancelArchive()
	switch {
	case err == nil:
		opts = append(opts, pipeline.WithArchive(archive))
	case errors.Is(err, storage.ErrArchiveDisabled):
	default:
		log.Warn().Err(err).Msg("Report archive unavailable, continuing without it")
	}
	jobMgr := pipeline.NewManager(engine, results, opts...)

	// Start background job cleanup
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := jobMgr.CleanupOldJobs(cfg.JobRetention()); n > 0 {
					log.Info().Int("removed", n).Msg("Cleaned up finished jobs")
				}
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.SetupMiddleware(e)

	// Configure middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Logging.RequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/status") ||
				strings.HasSuffix(path, "/progress") ||
				path == "/api/health"
		},
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("Request")
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/progress") ||
				strings.HasPrefix(path, "/api/ws/") ||
				strings.HasSuffix(path, "/process-financials") ||
				c.Request().Header.Get("Accept") == "text/event-stream"
		},
		ErrorMessage: "Request timeout",
	}))

	// Compression middleware
	if cfg.Server.EnableGzip {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Skipper: func(c echo.Context) bool {
				return c.Request().Header.Get("Accept") == "text/event-stream" ||
					strings.HasPrefix(c.Request().URL.Path, "/api/ws/")
			},
		}))
	}

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	// API routes
	handlers := api.NewHandlers(&api.Dependencies{
		Store:          fileStore,
		Results:        results,
		Jobs:           jobMgr,
		ResultsBackend: cfg.Storage.ResultsBackend,
		StreamTimeout:  cfg.JobTimeout(),
		Version:        Version,
	})
	api.RegisterRoutes(e, handlers)
	api.RegisterWebSocketRoutes(e, handlers)

	// Pages
	mode, err := flow.ParseMode(cfg.Flow.Mode)
	if err != nil {
		log.Warn().Err(err).Msg("Falling back to tracked flow mode")
		mode = flow.ModeTracked
	}
	pages := &web.Pages{
		Results:      results,
		Jobs:         jobMgr,
		Theme:        cfg.Theme,
		FlowMode:     mode,
		PollInterval: cfg.Flow.PollIntervalMs,
	}
	if err := pages.RegisterRoutes(e); err != nil {
		log.Fatal().Err(err).Msg("Failed to register pages")
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}
	// Streams outlive the write timeout
	if cfg.JobTimeout() > s.WriteTimeout {
		s.WriteTimeout = cfg.JobTimeout() + 5*time.Second
	}

	// Print startup banner
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Automated MD&A Server                           ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Flow Mode:  %-45s║\n", mode)
	fmt.Printf("║  Results:    %-45s║\n", cfg.Storage.ResultsBackend)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
