// Package flow drives the upload → processing → redirect workflow.
//
// A Flow submits the selected file once and then advances the processing
// stage either on fixed delays (ModeSimulated) or from observed job status
// (ModeTracked). On success it navigates to the results route; on failure
// it returns to Idle with the error stage label.
package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/automated-mda/backend/internal/dropzone"
	"github.com/automated-mda/backend/internal/models"
	"github.com/automated-mda/backend/internal/stage"
)

// State of the upload section.
type State string

const (
	StateIdle        State = "idle"
	StateProcessing  State = "processing"
	StateRedirecting State = "redirecting"
)

// Mode selects how stages advance after submission.
type Mode string

const (
	ModeSimulated Mode = "simulated"
	ModeTracked   Mode = "tracked"
)

// ParseMode maps a config value onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSimulated, ModeTracked:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown flow mode %q", s)
}

// Simulated stage timing. Each delay precedes the stage at the same
// position in simulatedStages.
var (
	simulatedStages = []string{stage.Embedding, stage.Indexing, stage.Narrating, stage.Complete}
	simulatedDelays = []time.Duration{1500 * time.Millisecond, 1500 * time.Millisecond, 1500 * time.Millisecond, 2 * time.Second}
)

// RedirectDelay is the pause between Complete! and navigation.
const RedirectDelay = time.Second

// DemoResultsPath is where simulated runs navigate.
const DemoResultsPath = "/results"

var (
	ErrWatchEnded = errors.New("job status stream ended before completion")
	ErrNoJobID    = errors.New("server did not return a job id")
	ErrBusy       = errors.New("an upload is already processing")
)

// Submission is the server's acknowledgement of an upload.
type Submission struct {
	JobID      string
	ResultsURL string
}

// Submitter performs the single upload request.
type Submitter interface {
	Submit(ctx context.Context, file dropzone.File) (Submission, error)
}

// Tracker streams job status until the job finishes or ctx ends. The
// channel is closed when watching stops.
type Tracker interface {
	Watch(ctx context.Context, jobID string) (<-chan models.Job, error)
}

// Navigator performs the final redirect.
type Navigator interface {
	Navigate(ctx context.Context, path string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, path string) error

func (f NavigatorFunc) Navigate(ctx context.Context, path string) error { return f(ctx, path) }

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the wall-clock Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Snapshot is the observable state of a Flow.
type Snapshot struct {
	State        State
	Stage        string
	IsProcessing bool
	FileName     string
	JobID        string
}

// Option configures a Flow.
type Option func(*Flow)

func WithMode(m Mode) Option { return func(f *Flow) { f.mode = m } }

func WithTracker(t Tracker) Option { return func(f *Flow) { f.tracker = t } }

func WithSleeper(s Sleeper) Option { return func(f *Flow) { f.sleep = s } }

// WithOnChange registers an observer called after every transition.
func WithOnChange(fn func(Snapshot)) Option { return func(f *Flow) { f.onChange = fn } }

// Flow is the upload section state machine. It is safe for concurrent
// reads; HandleFileUpload calls are serialized.
type Flow struct {
	submitter Submitter
	navigator Navigator
	tracker   Tracker
	mode      Mode
	sleep     Sleeper
	onChange  func(Snapshot)

	mu   sync.RWMutex
	snap Snapshot
	file *dropzone.File
}

// New creates an idle Flow in simulated mode unless configured otherwise.
func New(submitter Submitter, navigator Navigator, opts ...Option) *Flow {
	f := &Flow{
		submitter: submitter,
		navigator: navigator,
		mode:      ModeSimulated,
		sleep:     Sleep,
		snap:      Snapshot{State: StateIdle},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Snapshot returns the current state.
func (f *Flow) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snap
}

// File returns the most recently selected file, if any.
func (f *Flow) File() (dropzone.File, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.file == nil {
		return dropzone.File{}, false
	}
	return *f.file, true
}

// OnFileSelect is a dropzone callback that runs HandleFileUpload in the
// background with ctx.
func (f *Flow) OnFileSelect(ctx context.Context) func(dropzone.File) {
	return func(file dropzone.File) {
		go func() {
			_ = f.HandleFileUpload(ctx, file)
		}()
	}
}

// HandleFileUpload submits file and runs the processing stages through to
// navigation. It returns nil once navigation has happened.
func (f *Flow) HandleFileUpload(ctx context.Context, file dropzone.File) error {
	f.mu.Lock()
	if f.snap.IsProcessing {
		f.mu.Unlock()
		return ErrBusy
	}
	f.file = &file
	f.snap = Snapshot{
		State:        StateProcessing,
		Stage:        stage.Validating,
		IsProcessing: true,
		FileName:     file.Name,
	}
	f.mu.Unlock()
	f.notify()

	sub, err := f.submitter.Submit(ctx, file)
	if err != nil {
		if ctx.Err() != nil {
			return f.cancel(ctx.Err())
		}
		return f.fail(err)
	}
	f.update(func(s *Snapshot) { s.JobID = sub.JobID })

	var target string
	switch f.mode {
	case ModeTracked:
		target, err = f.runTracked(ctx, sub)
	default:
		target, err = f.runSimulated(ctx)
	}
	if err != nil {
		if ctx.Err() != nil {
			return f.cancel(ctx.Err())
		}
		return f.fail(err)
	}

	f.update(func(s *Snapshot) { s.State = StateRedirecting })
	if err := f.sleep(ctx, RedirectDelay); err != nil {
		return f.cancel(err)
	}
	if err := f.navigator.Navigate(ctx, target); err != nil {
		if ctx.Err() != nil {
			return f.cancel(ctx.Err())
		}
		return f.fail(fmt.Errorf("navigate to %s: %w", target, err))
	}
	return nil
}

func (f *Flow) runSimulated(ctx context.Context) (string, error) {
	f.setStage(stage.Computing)
	for i, label := range simulatedStages {
		if err := f.sleep(ctx, simulatedDelays[i]); err != nil {
			return "", err
		}
		f.setStage(label)
	}
	return DemoResultsPath, nil
}

func (f *Flow) runTracked(ctx context.Context, sub Submission) (string, error) {
	if sub.JobID == "" {
		return "", ErrNoJobID
	}
	if f.tracker == nil {
		return "", errors.New("tracked mode requires a tracker")
	}
	updates, err := f.tracker.Watch(ctx, sub.JobID)
	if err != nil {
		return "", fmt.Errorf("watch job %s: %w", sub.JobID, err)
	}

	for job := range updates {
		switch job.Status {
		case models.JobStatusError:
			msg := job.Error
			if msg == "" {
				msg = "job failed"
			}
			return "", errors.New(msg)
		case models.JobStatusComplete:
			f.advance(stage.Complete)
			target := sub.ResultsURL
			if target == "" {
				target = ResultsPath(sub.JobID)
			}
			return target, nil
		default:
			f.advance(job.Stage)
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", ErrWatchEnded
}

// ResultsPath is the results route for a job.
func ResultsPath(jobID string) string {
	return "/results/" + jobID
}

// advance moves to label only if it is further along the sequence.
func (f *Flow) advance(label string) {
	next := stage.Index(label)
	if next < 0 {
		return
	}
	f.mu.Lock()
	moved := next > stage.Index(f.snap.Stage)
	if moved {
		f.snap.Stage = label
	}
	f.mu.Unlock()
	if moved {
		f.notify()
	}
}

func (f *Flow) setStage(label string) {
	f.update(func(s *Snapshot) { s.Stage = label })
}

func (f *Flow) fail(err error) error {
	log.Error().Err(err).Str("file", f.Snapshot().FileName).Msg("Error processing file")
	f.update(func(s *Snapshot) {
		s.State = StateIdle
		s.Stage = stage.Failed
		s.IsProcessing = false
	})
	return fmt.Errorf("process %s: %w", f.Snapshot().FileName, err)
}

func (f *Flow) cancel(err error) error {
	log.Debug().Err(err).Msg("Upload flow cancelled")
	f.update(func(s *Snapshot) {
		s.State = StateIdle
		s.IsProcessing = false
	})
	return err
}

func (f *Flow) update(fn func(*Snapshot)) {
	f.mu.Lock()
	fn(&f.snap)
	f.mu.Unlock()
	f.notify()
}

func (f *Flow) notify() {
	if f.onChange != nil {
		f.onChange(f.Snapshot())
	}
}
