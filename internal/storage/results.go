package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/automated-mda/backend/internal/models"
)

var ErrResultNotFound = errors.New("result not found")

// ResultSummary is the listing view of a stored bundle.
type ResultSummary struct {
	ID        string `json:"id"`
	JobID     string `json:"jobId,omitempty"`
	FileName  string `json:"fileName"`
	Company   string `json:"company"`
	Period    string `json:"period"`
	CreatedAt string `json:"createdAt"`
}

// ResultStore persists computed results bundles.
type ResultStore interface {
	Save(ctx context.Context, bundle *models.ResultsBundle) error
	Get(ctx context.Context, id string) (*models.ResultsBundle, error)
	List(ctx context.Context, limit int) ([]ResultSummary, error)
	Close() error
}

// EncodeBundle serializes a bundle with msgpack.
func EncodeBundle(b *models.ResultsBundle) ([]byte, error) {
	data, err := msgpack.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encoding bundle: %w", err)
	}
	return data, nil
}

// DecodeBundle is the inverse of EncodeBundle.
func DecodeBundle(data []byte) (*models.ResultsBundle, error) {
	var b models.ResultsBundle
	if err := msgpack.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decoding bundle: %w", err)
	}
	return &b, nil
}

// MemoryResultStore keeps encoded bundles in memory.
type MemoryResultStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	summary ResultSummary
	payload []byte
	order   int64
}

func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{entries: make(map[string]memoryEntry)}
}

func (m *MemoryResultStore) Save(ctx context.Context, bundle *models.ResultsBundle) error {
	payload, err := EncodeBundle(bundle)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[bundle.ID] = memoryEntry{
		summary: summarize(bundle),
		payload: payload,
		order:   bundle.CreatedAt.UnixNano(),
	}
	return nil
}

func (m *MemoryResultStore) Get(ctx context.Context, id string) (*models.ResultsBundle, error) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResultNotFound, id)
	}
	return DecodeBundle(e.payload)
}

func (m *MemoryResultStore) List(ctx context.Context, limit int) ([]ResultSummary, error) {
	m.mu.RLock()
	entries := make([]memoryEntry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].order > entries[j].order })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]ResultSummary, len(entries))
	for i, e := range entries {
		out[i] = e.summary
	}
	return out, nil
}

func (m *MemoryResultStore) Close() error { return nil }

func summarize(b *models.ResultsBundle) ResultSummary {
	return ResultSummary{
		ID:        b.ID,
		JobID:     b.JobID,
		FileName:  b.FileName,
		Company:   b.Company,
		Period:    b.Period,
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
	}
}
