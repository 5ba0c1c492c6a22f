package pipeline

import (
	"sync"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/romvault/ingestor/internal/crawl"
)

// logRingCapacity is the bounded number of log lines the pipeline state
// retains (§3: "logs: bounded ring of the last 1000 log lines").
const logRingCapacity = 1000

// Status is the pipeline's coarse-grained lifecycle state.
type Status string

// Pipeline statuses.
const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Counters are the observable run counters, incremented from concurrent
// tasks. Individual fields are consistent; there is no cross-field
// snapshot guarantee.
type Counters struct {
	ScrapeTotal int64
	ScrapeNew   int64
	QueueSize   int64
	Enriched    int64
	Indexed     int64
}

// Snapshot is a point-in-time, read-only copy of the pipeline state for
// admin HTTP handlers.
type Snapshot struct {
	Status         Status
	Mode           crawl.Mode
	StartedAt      *time.Time
	EndedAt        *time.Time
	Counters       Counters
	ScrapeComplete bool
	Cancelled      bool
	Logs           []string
	Error          string
}

// State holds the process-wide, in-memory pipeline state. All fields are
// guarded by mu except the log ring, which has its own lock.
type State struct {
	mu             sync.RWMutex
	status         Status
	mode           crawl.Mode
	startedAt      *time.Time
	endedAt        *time.Time
	counters       Counters
	scrapeComplete bool
	cancelled      bool
	errMsg         string

	logs *logRing
}

// NewState constructs an idle State with an empty log ring.
func NewState() *State {
	return &State{status: StatusIdle, logs: newLogRing(logRingCapacity)}
}

// LogCore returns a zapcore.Core that mirrors every logged entry into this
// state's bounded ring, for teeing alongside the application's normal
// logging sinks.
func (s *State) LogCore(enc zapcore.Encoder, enab zapcore.LevelEnabler) zapcore.Core {
	return s.logs.core(enc, enab)
}

// IsRunning reports whether the pipeline is currently mid-run.
func (s *State) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status == StatusRunning
}

// begin transitions the state to running, resetting counters and errMsg.
func (s *State) begin(mode crawl.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.status = StatusRunning
	s.mode = mode
	s.startedAt = &now
	s.endedAt = nil
	s.counters = Counters{}
	s.scrapeComplete = false
	s.cancelled = false
	s.errMsg = ""
}

// finish transitions the state to a terminal status and records endedAt.
func (s *State) finish(status Status, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.status = status
	s.endedAt = &now
	s.errMsg = errMsg
}

// setScrapeComplete records whether the crawl phase has finished, so admin
// handlers can distinguish "still crawling" from "crawl done, still
// enriching".
func (s *State) setScrapeComplete(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrapeComplete = v
}

// setCancelled records whether a stop has been requested for the current
// run, so admin handlers can distinguish "stopping" from "idle".
func (s *State) setCancelled(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = v
}

func (s *State) setQueueSize(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.QueueSize = n
}

// Snapshot returns a copy of the current state, safe to hold onto.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Status:         s.status,
		Mode:           s.mode,
		StartedAt:      s.startedAt,
		EndedAt:        s.endedAt,
		Counters:       s.counters,
		ScrapeComplete: s.scrapeComplete,
		Cancelled:      s.cancelled,
		Logs:           s.logs.snapshot(),
		Error:          s.errMsg,
	}
}
