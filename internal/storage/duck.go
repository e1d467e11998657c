package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/marcboeker/go-duckdb"
	"github.com/rs/zerolog/log"

	"github.com/automated-mda/backend/internal/models"
)

// DuckResultStore persists bundles in a DuckDB file. The bundle itself is
// a msgpack payload; the listing columns are stored alongside it.
type DuckResultStore struct {
	db     *sql.DB
	dbPath string
}

// NewDuckResultStore opens or creates the results database at dbPath. An
// empty path opens an in-memory database.
func NewDuckResultStore(dbPath string) (*DuckResultStore, error) {
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating results directory: %w", err)
		}
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='256MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				log.Warn().Err(err).Str("pragma", pragma).Msg("DuckDB pragma failed")
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS results (
			id         VARCHAR PRIMARY KEY,
			job_id     VARCHAR,
			file_name  VARCHAR,
			company    VARCHAR,
			period     VARCHAR,
			created_at TIMESTAMP NOT NULL,
			payload    BLOB NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create results table: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("Results database ready")
	return &DuckResultStore{db: db, dbPath: dbPath}, nil
}

func (s *DuckResultStore) Save(ctx context.Context, bundle *models.ResultsBundle) error {
	payload, err := EncodeBundle(bundle)
	if err != nil {
		return err
	}
	createdAt := bundle.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO results (id, job_id, file_name, company, period, created_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		bundle.ID, bundle.JobID, bundle.FileName, bundle.Company, bundle.Period, createdAt.UTC(), payload)
	if err != nil {
		return fmt.Errorf("failed to save result %s: %w", bundle.ID, err)
	}
	return nil
}

func (s *DuckResultStore) Get(ctx context.Context, id string) (*models.ResultsBundle, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM results WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrResultNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load result %s: %w", id, err)
	}
	return DecodeBundle(payload)
}

func (s *DuckResultStore) List(ctx context.Context, limit int) ([]ResultSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, file_name, company, period, created_at
		 FROM results ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var out []ResultSummary
	for rows.Next() {
		var (
			sum       ResultSummary
			createdAt time.Time
		)
		if err := rows.Scan(&sum.ID, &sum.JobID, &sum.FileName, &sum.Company, &sum.Period, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		sum.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *DuckResultStore) Close() error {
	return s.db.Close()
}
