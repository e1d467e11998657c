package testutil

import (
	"context"

	"github.com/automated-mda/backend/internal/models"
	"github.com/automated-mda/backend/internal/storage"
)

// FailingResultStore returns Err from every call.
type FailingResultStore struct {
	Err error
}

func (f FailingResultStore) Save(ctx context.Context, b *models.ResultsBundle) error { return f.Err }

func (f FailingResultStore) Get(ctx context.Context, id string) (*models.ResultsBundle, error) {
	return nil, f.Err
}

func (f FailingResultStore) List(ctx context.Context, limit int) ([]storage.ResultSummary, error) {
	return nil, f.Err
}

func (f FailingResultStore) Close() error { return nil }

var _ storage.ResultStore = FailingResultStore{}
