// Package progress keeps the live state of crawl runs for logs and the status API.
package progress

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/konut-crawler/internal/crawler"
)

// Run states reported by Status.State.
const (
	StateIdle     = "idle"
	StateRunning  = "running"
	StateFinished = "finished"
)

const historySize = 10

// Status is a point-in-time view of the current (or last) run.
type Status struct {
	State           string            `json:"state"`
	RunID           string            `json:"run_id,omitempty"`
	Mode            crawler.Mode      `json:"mode,omitempty"`
	StartedAt       time.Time         `json:"started_at,omitempty"`
	FinishedAt      time.Time         `json:"finished_at,omitempty"`
	SubregionsTotal int               `json:"subregions_total"`
	SubregionsDone  int               `json:"subregions_done"`
	Empty           int               `json:"empty"`
	Failed          int               `json:"failed"`
	Records         int               `json:"records"`
	Checkpoints     int               `json:"checkpoints"`
	LastSubregion   string            `json:"last_subregion,omitempty"`
	LastCheckpoint  string            `json:"last_checkpoint,omitempty"`
	History         []crawler.Summary `json:"history,omitempty"`
}

// Tracker implements crawler.ProgressReporter. It is safe for concurrent use; the
// orchestrator writes while API handlers read.
type Tracker struct {
	mu     sync.RWMutex
	status Status
	logger *zap.Logger
	now    func() time.Time
}

var _ crawler.ProgressReporter = (*Tracker)(nil)

// NewTracker returns an idle tracker.
func NewTracker(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		status: Status{State: StateIdle},
		logger: logger,
		now:    time.Now,
	}
}

// RunStarted resets the counters for a new run. History survives.
func (t *Tracker) RunStarted(runID string, mode crawler.Mode, subregions int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = Status{
		State:           StateRunning,
		RunID:           runID,
		Mode:            mode,
		StartedAt:       t.now().UTC(),
		SubregionsTotal: subregions,
		History:         t.status.History,
	}
}

// SubregionFinished counts one finished sub-region and logs the run's progress.
func (t *Tracker) SubregionFinished(res crawler.SubregionResult) {
	t.mu.Lock()
	s := &t.status
	s.SubregionsDone++
	s.Records += len(res.Records)
	s.LastSubregion = res.Region + "/" + res.Subregion
	switch res.Outcome() {
	case "failed":
		s.Failed++
	case "empty":
		s.Empty++
	}
	done, total, records := s.SubregionsDone, s.SubregionsTotal, s.Records
	t.mu.Unlock()

	fields := []zap.Field{
		zap.String("region", res.Region),
		zap.String("subregion", res.Subregion),
		zap.String("outcome", res.Outcome()),
		zap.Int("listings", len(res.Records)),
		zap.Int("done", done),
		zap.Int("total", total),
		zap.Int("records", records),
	}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
	}
	t.logger.Info("subregion finished", fields...)
}

// CheckpointWritten records the most recent checkpoint label.
func (t *Tracker) CheckpointWritten(label string, records int) {
	t.mu.Lock()
	t.status.Checkpoints++
	t.status.LastCheckpoint = label
	t.mu.Unlock()
	t.logger.Info("checkpoint written", zap.String("label", label), zap.Int("records", records))
}

// RunFinished marks the run finished and keeps its summary in the bounded history.
func (t *Tracker) RunFinished(summary crawler.Summary) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.State = StateFinished
	t.status.FinishedAt = t.now().UTC()
	t.status.Records = summary.Records
	t.status.History = append(t.status.History, summary)
	if len(t.status.History) > historySize {
		t.status.History = t.status.History[len(t.status.History)-historySize:]
	}
}

// Status returns a copy of the current state.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := t.status
	out.History = append([]crawler.Summary(nil), t.status.History...)
	return out
}

// Running reports whether a run is in progress.
func (t *Tracker) Running() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status.State == StateRunning
}
