package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/automated-mda/backend/internal/models"
	"github.com/automated-mda/backend/internal/stage"
)

// StartCall records one MockJobManager.Start invocation.
type StartCall struct {
	Info *models.FileInfo
	Path string
}

// MockJobManager is an in-memory job manager whose jobs only change when
// the test says so.
type MockJobManager struct {
	mu     sync.RWMutex
	jobs   map[string]*models.Job
	Starts []StartCall

	// Interval is the Watch polling period
	Interval time.Duration
}

func NewMockJobManager() *MockJobManager {
	return &MockJobManager{jobs: make(map[string]*models.Job), Interval: time.Millisecond}
}

func (m *MockJobManager) Start(info *models.FileInfo, path string) *models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &models.Job{
		ID:        "job-" + info.ID,
		FileID:    info.ID,
		FileName:  info.Name,
		Status:    models.JobStatusProcessing,
		Stage:     stage.Validating,
		Progress:  stage.Percent(0),
		CreatedAt: time.Now(),
	}
	m.jobs[job.ID] = job
	m.Starts = append(m.Starts, StartCall{Info: info, Path: path})
	c := *job
	return &c
}

func (m *MockJobManager) Get(id string) (*models.Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	c := *job
	return &c, true
}

// Put stores job as-is, replacing any job with the same id.
func (m *MockJobManager) Put(job models.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = &job
}

// Advance moves a job to label, completing it on the Complete stage.
func (m *MockJobManager) Advance(id, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return
	}
	job.Stage = label
	job.StageIndex = stage.Index(label)
	job.Progress = stage.Percent(job.StageIndex)
	switch label {
	case stage.Complete:
		job.Status = models.JobStatusComplete
		job.ResultID = id
	case stage.Failed:
		job.Status = models.JobStatusError
		job.Error = "processing failed"
	}
}

func (m *MockJobManager) Watch(ctx context.Context, id string) (<-chan models.Job, error) {
	if _, ok := m.Get(id); !ok {
		return nil, errors.New("job not found")
	}
	ch := make(chan models.Job)
	go func() {
		defer close(ch)
		var last *models.Job
		ticker := time.NewTicker(m.Interval)
		defer ticker.Stop()
		for {
			job, ok := m.Get(id)
			if !ok {
				return
			}
			if last == nil || job.Stage != last.Stage || job.Status != last.Status {
				select {
				case ch <- *job:
				case <-ctx.Done():
					return
				}
				last = job
				if job.Finished() {
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return ch, nil
}
