package recovery

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ict-core/enginecore/pkg/metrics"
)

// Config holds the recovery engine's tunables (defaults).
type Config struct {
	MonitoringInterval      time.Duration
	MaxConcurrentRecoveries int
	HistorySize             int
}

// SnapshotWriter persists recovery history/state snapshots, satisfied by
// *persistence.Store (see coordinator.SnapshotWriter for the identical seam).
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, category, id string, v any) error
}

// Probe reports whether a given failure condition currently holds.
type Probe func(ctx context.Context) bool

// Engine evaluates probes on MonitoringInterval and dispatches eligible
// recovery actions for any failure currently observed, honoring the
// eligibility order from concurrency budget, not already
// active, attempts < max, cooldown elapsed, no active prerequisite.
type Engine struct {
	cfg      Config
	log      *logrus.Entry
	snapshot SnapshotWriter

	mu            sync.Mutex
	actions       []*Action
	probes        map[FailureKind]Probe
	lastAttempt   map[string]time.Time
	attemptCounts map[string]int
	active        map[string]bool
	activeCount   int
	history       []Attempt

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine builds a recovery Engine. Register actions and probes before Start.
func NewEngine(cfg Config, snapshot SnapshotWriter, log *logrus.Entry) *Engine {
	return &Engine{
		cfg:           cfg,
		log:           log,
		snapshot:      snapshot,
		probes:        make(map[FailureKind]Probe),
		lastAttempt:   make(map[string]time.Time),
		attemptCounts: make(map[string]int),
		active:        make(map[string]bool),
	}
}

// RegisterAction adds a recovery action to the catalogue.
func (e *Engine) RegisterAction(a *Action) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actions = append(e.actions, a)
}

// RegisterProbe binds a failure-detection probe to a FailureKind.
func (e *Engine) RegisterProbe(kind FailureKind, probe Probe) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.probes[kind] = probe
}

// Start launches the monitoring loop.
func (e *Engine) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.wg.Add(1)
	go e.loop(runCtx)
}

// Stop halts the monitoring loop and waits for it to exit. Action goroutines
// already dispatched are not waited for.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.MonitoringInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.evaluate(ctx)
		}
	}
}

func (e *Engine) evaluate(ctx context.Context) {
	e.mu.Lock()
	probes := make(map[FailureKind]Probe, len(e.probes))
	for k, v := range e.probes {
		probes[k] = v
	}
	e.mu.Unlock()

	for kind, probe := range probes {
		if !probe(ctx) {
			continue
		}
		e.dispatch(ctx, kind)
	}
}

// dispatch finds eligible actions for kind, ordered by Severity ascending,
// and runs the first one whose prerequisites are satisfied. Critical
// failure kinds are dispatched immediately even if the
// concurrency budget would otherwise defer them, matching the original's
// "critical failures bypass normal ordering" behavior.
func (e *Engine) dispatch(ctx context.Context, kind FailureKind) {
	e.mu.Lock()
	eligible := e.eligibleActionsLocked(kind)
	e.mu.Unlock()

	if len(eligible) == 0 {
		return
	}
	action := eligible[0]

	e.mu.Lock()
	if !IsCritical(kind) && e.activeCount >= e.cfg.MaxConcurrentRecoveries {
		e.mu.Unlock()
		return
	}
	e.active[action.ID] = true
	e.activeCount++
	e.lastAttempt[action.ID] = time.Now().UTC()
	e.attemptCounts[action.ID]++
	e.mu.Unlock()

	metrics.SetActiveRecoveries(e.activeCount)

	go e.run(ctx, action, kind)
}

func (e *Engine) eligibleActionsLocked(kind FailureKind) []*Action {
	var candidates []*Action
	for _, a := range e.actions {
		if !a.FailureKinds[kind] {
			continue
		}
		if e.active[a.ID] {
			continue
		}
		if e.attemptCounts[a.ID] >= a.MaxAttempts {
			continue
		}
		if last, ok := e.lastAttempt[a.ID]; ok && time.Since(last) < a.Cooldown {
			continue
		}
		prereqBlocked := false
		for _, p := range a.Prerequisites {
			if e.active[p] {
				prereqBlocked = true
				break
			}
		}
		if prereqBlocked {
			continue
		}
		candidates = append(candidates, a)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Severity < candidates[j].Severity })
	return candidates
}

func (e *Engine) run(ctx context.Context, action *Action, kind FailureKind) {
	defer func() {
		e.mu.Lock()
		delete(e.active, action.ID)
		e.activeCount--
		e.mu.Unlock()
		metrics.SetActiveRecoveries(e.activeCount)
	}()

	attempt := Attempt{
		ID:        attemptID(action.ID, kind),
		ActionID:  action.ID,
		Failure:   kind,
		StartedAt: time.Now().UTC(),
	}

	runCtx, cancel := context.WithTimeout(ctx, action.Timeout)
	err := action.Run(runCtx)
	cancel()

	attempt.FinishedAt = time.Now().UTC()
	attempt.Success = err == nil
	outcome := "success"
	if err != nil {
		attempt.Error = err.Error()
		outcome = "failure"
	}
	metrics.RecordRecoveryAttempt(action.ID, outcome)

	e.mu.Lock()
	e.history = append(e.history, attempt)
	if len(e.history) > e.cfg.HistorySize {
		e.history = e.history[len(e.history)-e.cfg.HistorySize:]
	}
	history := append([]Attempt(nil), e.history...)
	e.mu.Unlock()

	if e.log != nil {
		entry := e.log.WithField("action", action.ID).WithField("failure", string(kind))
		if err != nil {
			entry.WithError(err).Warn("recovery: action failed")
		} else {
			entry.Info("recovery: action succeeded")
		}
	}

	if e.snapshot != nil {
		_ = e.snapshot.WriteSnapshot(context.Background(), "recovery", "recovery_history", history)
	}
}

// History returns a copy of the recorded recovery attempts, most recent last.
func (e *Engine) History() []Attempt {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Attempt(nil), e.history...)
}

// attemptID derives a stable, non-cryptographic identifier for a recovery
// attempt from its action, failure kind and start time: sha256-truncated
// rather than MD5, since crypto/sha256 serves identically for a
// non-cryptographic ID.
func attemptID(actionID string, kind FailureKind) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s_%s_%d", actionID, kind, time.Now().UnixNano())))
	return fmt.Sprintf("%x", sum)[:16]
}
