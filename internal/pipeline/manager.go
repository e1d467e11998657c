package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/automated-mda/backend/internal/models"
	"github.com/automated-mda/backend/internal/stage"
	"github.com/automated-mda/backend/internal/storage"
)

// DefaultWatchInterval is how often Watch polls job state.
const DefaultWatchInterval = 100 * time.Millisecond

var ErrJobNotFound = errors.New("job not found")

// FileStore is the part of the upload store the manager updates.
type FileStore interface {
	SetStatus(id string, status string) error
}

// ReportArchive receives generated reports.
type ReportArchive interface {
	PutReport(ctx context.Context, bundle *models.ResultsBundle) (string, error)
}

// Manager handles async statement processing.
type Manager struct {
	jobs    map[string]*models.Job
	mu      sync.RWMutex
	engine  *Engine
	results storage.ResultStore
	files   FileStore
	archive ReportArchive
	sem     chan struct{}
	timeout time.Duration

	WatchInterval time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithFileStore lets the manager mark uploads processing/processed/error.
func WithFileStore(fs FileStore) Option {
	return func(m *Manager) { m.files = fs }
}

// WithArchive uploads every generated report to a.
func WithArchive(a ReportArchive) Option {
	return func(m *Manager) { m.archive = a }
}

// WithMaxConcurrent bounds the number of jobs processed at once.
func WithMaxConcurrent(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.sem = make(chan struct{}, n)
		}
	}
}

// WithTimeout limits how long a single job may run.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// NewManager creates a new processing manager.
func NewManager(engine *Engine, results storage.ResultStore, opts ...Option) *Manager {
	m := &Manager{
		jobs:          make(map[string]*models.Job),
		engine:        engine,
		results:       results,
		sem:           make(chan struct{}, 3),
		timeout:       5 * time.Minute,
		WatchInterval: DefaultWatchInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins async processing of an uploaded statement file.
func (m *Manager) Start(info *models.FileInfo, path string) *models.Job {
	job := &models.Job{
		ID:         uuid.New().String(),
		FileID:     info.ID,
		FileName:   info.Name,
		Status:     models.JobStatusProcessing,
		Stage:      stage.Validating,
		StageIndex: 0,
		Progress:   stage.Percent(0),
		CreatedAt:  time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	snapshot := *job
	m.mu.Unlock()

	go m.processJob(job.ID, info.ID, Input{JobID: job.ID, FileName: info.Name, Path: path})

	return &snapshot
}

// Get returns a copy of the job.
func (m *Manager) Get(id string) (*models.Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	c := *job
	return &c, true
}

// Watch emits the job every time its stage or status changes and closes
// the channel once the job finishes or ctx ends.
func (m *Manager) Watch(ctx context.Context, id string) (<-chan models.Job, error) {
	first, ok := m.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	interval := m.WatchInterval
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	ch := make(chan models.Job)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		last := *first
		select {
		case ch <- last:
		case <-ctx.Done():
			return
		}
		for !last.Finished() {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			job, ok := m.Get(id)
			if !ok {
				return
			}
			if job.Stage == last.Stage && job.Status == last.Status {
				continue
			}
			last = *job
			select {
			case ch <- last:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (m *Manager) processJob(jobID, fileID string, in Input) {
	logger := log.With().Str("job", shortID(jobID)).Logger()

	// Recover from panics to prevent backend crash
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Processing panicked")
			m.markJobError(jobID, fileID, fmt.Sprintf("processing panicked: %v", r))
		}
	}()

	m.sem <- struct{}{}
	defer func() { <-m.sem }()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	start := time.Now()
	logger.Info().Str("file", in.FileName).Msg("Starting processing")
	m.setFileStatus(fileID, storage.StatusProcessing)

	bundle, err := m.engine.Run(ctx, in, func(label string) {
		m.updateJobStage(jobID, label)
	})
	if err != nil {
		m.markJobError(jobID, fileID, err.Error())
		return
	}

	if err := m.results.Save(ctx, bundle); err != nil {
		m.markJobError(jobID, fileID, fmt.Sprintf("failed to save results: %v", err))
		return
	}
	if m.archive != nil {
		if key, err := m.archive.PutReport(ctx, bundle); err != nil {
			logger.Warn().Err(err).Msg("Report archive failed")
		} else {
			logger.Debug().Str("key", key).Msg("Report archived")
		}
	}

	m.markJobComplete(jobID, fileID, bundle.ID)
	logger.Info().Dur("elapsed", time.Since(start)).Str("company", bundle.Company).Str("period", bundle.Period).Msg("Processing complete")
}

// updateJobStage moves the job to label (thread-safe).
func (m *Manager) updateJobStage(id, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return
	}
	idx := stage.Index(label)
	job.Stage = label
	job.StageIndex = idx
	job.Progress = stage.Percent(idx)
}

// markJobComplete marks job as complete (thread-safe).
func (m *Manager) markJobComplete(id, fileID, resultID string) {
	m.mu.Lock()
	if job, ok := m.jobs[id]; ok {
		job.Status = models.JobStatusComplete
		job.Stage = stage.Complete
		job.StageIndex = stage.Index(stage.Complete)
		job.Progress = 100
		job.ResultID = resultID
		now := time.Now()
		job.CompletedAt = &now
	}
	m.mu.Unlock()

	m.setFileStatus(fileID, storage.StatusProcessed)
}

// markJobError marks job as failed (thread-safe).
func (m *Manager) markJobError(id, fileID, errMsg string) {
	m.mu.Lock()
	if job, ok := m.jobs[id]; ok {
		job.Status = models.JobStatusError
		job.Stage = stage.Failed
		job.StageIndex = -1
		job.Progress = 0
		job.Error = errMsg
		now := time.Now()
		job.CompletedAt = &now
	}
	m.mu.Unlock()

	m.setFileStatus(fileID, storage.StatusError)
	log.Error().Str("job", shortID(id)).Str("error", errMsg).Msg("Processing failed")
}

func (m *Manager) setFileStatus(fileID, status string) {
	if m.files == nil {
		return
	}
	if err := m.files.SetStatus(fileID, status); err != nil {
		log.Warn().Err(err).Str("file", fileID).Msg("Failed to update file status")
	}
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for id, job := range m.jobs {
		if job.Finished() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("Cleaned up finished jobs")
	}
	return removed
}
