// Package session owns the per-caller session registry. Every caller
// identity gets its own SessionState, created lazily on first frame and torn
// down on explicit end or idle timeout; no state is shared across sessions.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/signsos/signstream-core/internal/config"
	"github.com/signsos/signstream-core/internal/gesture"
)

// Recorder persists commit events; the registry treats persistence failures
// as non-fatal.
type Recorder interface {
	RecordCommit(ctx context.Context, sessionID string, commit *gesture.Commit) error
}

type entry struct {
	mu       sync.Mutex
	state    *gesture.SessionState
	lastSeen time.Time
}

type Registry struct {
	cfg      config.SessionConfig
	engine   *gesture.Engine
	recorder Recorder
	log      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*entry

	cancel context.CancelFunc
	wg     sync.WaitGroup
	clock  func() time.Time

	meter         metric.Meter
	commitCounter metric.Int64Counter
	sessionGauge  metric.Int64ObservableGauge
}

// NewRegistry starts the idle-session janitor and registers session metrics.
// recorder may be nil when no event persistence is configured.
func NewRegistry(parent context.Context, cfg config.SessionConfig, engine *gesture.Engine, recorder Recorder, log *slog.Logger) *Registry {
	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		cfg:      cfg,
		engine:   engine,
		recorder: recorder,
		log:      log.With(slog.String("component", "session-registry")),
		sessions: make(map[string]*entry),
		cancel:   cancel,
		clock:    time.Now,
		meter:    otel.Meter("github.com/signsos/signstream-core/runtime"),
	}

	if err := r.initMetrics(); err != nil {
		r.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}

	r.wg.Add(1)
	go r.runJanitor(ctx)

	return r
}

func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()
}

// Process runs one frame through a session's commit pipeline. Frames of the
// same session are serialized on the session lock, so engine state is never
// evaluated concurrently; distinct sessions proceed independently.
func (r *Registry) Process(ctx context.Context, sessionID string, frame gesture.Frame) (*gesture.Commit, string, error) {
	e := r.acquire(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()

	commit, err := r.engine.Process(ctx, e.state, frame)
	if err != nil {
		return nil, e.state.TextBuffer, err
	}
	if commit != nil {
		r.countCommit(ctx, commit)
		if r.recorder != nil {
			if err := r.recorder.RecordCommit(ctx, sessionID, commit); err != nil {
				r.log.Warn("failed to record commit",
					slog.String("session_id", sessionID), slog.String("error", err.Error()))
			}
		}
	}
	return commit, e.state.TextBuffer, nil
}

// Clear resets a session's bookkeeping in place. Unknown identities are a
// no-op; the next frame recreates the session anyway.
func (r *Registry) Clear(sessionID string) {
	r.mu.Lock()
	e, ok := r.sessions[sessionID]
	r.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.state.Reset()
	e.mu.Unlock()
}

// Buffer returns the session's committed text, empty for unknown identities.
func (r *Registry) Buffer(sessionID string) string {
	r.mu.Lock()
	e, ok := r.sessions[sessionID]
	r.mu.Unlock()
	if !ok {
		return ""
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.TextBuffer
}

// End removes a session entirely.
func (r *Registry) End(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}

func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) acquire(sessionID string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sessionID]
	if !ok {
		e = &entry{state: gesture.NewSessionState(sessionID)}
		r.sessions[sessionID] = e
		r.log.Debug("session created", slog.String("session_id", sessionID))
	}
	e.lastSeen = r.clock()
	return e
}

func (r *Registry) runJanitor(ctx context.Context) {
	defer r.wg.Done()
	interval := time.Duration(r.cfg.SweepIntervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	idle := time.Duration(r.cfg.IdleTimeoutMS) * time.Millisecond
	now := r.clock()

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) > idle {
			delete(r.sessions, id)
			r.log.Info("session expired", slog.String("session_id", id))
		}
	}
}

func (r *Registry) initMetrics() error {
	counter, err := r.meter.Int64Counter("signstream.commits.total",
		metric.WithDescription("Commits fired by the state machine"))
	if err != nil {
		return err
	}
	gauge, err := r.meter.Int64ObservableGauge("signstream.sessions.active",
		metric.WithDescription("Number of live sessions"))
	if err != nil {
		return err
	}
	r.commitCounter = counter
	r.sessionGauge = gauge
	_, err = r.meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		obs.ObserveInt64(gauge, int64(r.ActiveCount()))
		return nil
	}, gauge)
	return err
}

func (r *Registry) countCommit(ctx context.Context, commit *gesture.Commit) {
	if r.commitCounter == nil {
		return
	}
	outcome := "ok"
	if commit.Err != nil {
		outcome = "dispatch_failed"
	}
	r.commitCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(commit.Kind)),
		attribute.String("outcome", outcome),
	))
}
