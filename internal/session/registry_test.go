package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/signsos/signstream-core/internal/config"
	"github.com/signsos/signstream-core/internal/dispatch"
	"github.com/signsos/signstream-core/internal/gesture"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	vocab, err := gesture.NewVocabulary(config.VocabularyConfig{
		Classes:        []string{"help", "hello", "space", "done"},
		SendLabel:      "done",
		SeparatorLabel: "space",
		SeparatorText:  " ",
	})
	if err != nil {
		t.Fatalf("build vocabulary: %v", err)
	}
	engine := gesture.NewEngine(config.EngineConfig{
		AppendConfidenceThreshold:    60,
		SeparatorConfidenceThreshold: 80,
		DoneConfidenceThreshold:      90,
		StableFramesRequired:         2,
		SeparatorStableFrames:        2,
		SendStableFrames:             2,
		AppendCooldownMS:             0,
		SeparatorCooldownMS:          0,
		SendCooldownMS:               0,
		DoneMinMargin:                12,
	}, vocab, dispatch.NewMockDispatcher(), time.Second, newLogger())

	r := NewRegistry(context.Background(), config.SessionConfig{
		IdleTimeoutMS:   60000,
		SweepIntervalMS: 60000,
	}, engine, nil, newLogger())
	t.Cleanup(r.Close)
	return r
}

func frame(label string) gesture.Frame {
	return gesture.Frame{HandPresent: true, Label: label, Confidence: 95}
}

func TestSessionsAreIsolatedPerIdentity(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, _, err := r.Process(ctx, "alice", frame("help")); err != nil {
			t.Fatalf("process alice: %v", err)
		}
		if _, _, err := r.Process(ctx, "bob", frame("hello")); err != nil {
			t.Fatalf("process bob: %v", err)
		}
	}

	if got := r.Buffer("alice"); got != "help" {
		t.Fatalf("expected alice buffer \"help\", got %q", got)
	}
	if got := r.Buffer("bob"); got != "hello" {
		t.Fatalf("expected bob buffer \"hello\", got %q", got)
	}
	if r.ActiveCount() != 2 {
		t.Fatalf("expected 2 active sessions, got %d", r.ActiveCount())
	}
}

func TestClearResetsMidStream(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	r.Process(ctx, "alice", frame("help"))
	_, buffer, _ := r.Process(ctx, "alice", frame("help"))
	if buffer != "help" {
		t.Fatalf("expected committed buffer, got %q", buffer)
	}

	r.Clear("alice")
	if got := r.Buffer("alice"); got != "" {
		t.Fatalf("expected empty buffer after clear, got %q", got)
	}

	// Streak restarts from scratch after a clear.
	if _, _, err := r.Process(ctx, "alice", frame("help")); err != nil {
		t.Fatalf("process after clear: %v", err)
	}
	if got := r.Buffer("alice"); got != "" {
		t.Fatalf("expected no commit from a single post-clear frame, got %q", got)
	}
}

func TestInvalidFramePropagatesWithoutStateChange(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	r.Process(ctx, "alice", frame("help"))
	_, _, err := r.Process(ctx, "alice", gesture.Frame{HandPresent: true, Label: "help", Confidence: 400})
	if err == nil {
		t.Fatal("expected invalid frame error")
	}
	if got := r.Buffer("alice"); got != "" {
		t.Fatalf("expected buffer untouched, got %q", got)
	}
}

func TestSweepRemovesIdleSessions(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	r.clock = func() time.Time { return base }
	r.Process(ctx, "alice", frame("help"))
	r.Process(ctx, "bob", frame("hello"))

	r.clock = func() time.Time { return base.Add(30 * time.Second) }
	r.Process(ctx, "bob", frame("hello"))

	r.clock = func() time.Time { return base.Add(75 * time.Second) }
	r.sweep()

	if r.ActiveCount() != 1 {
		t.Fatalf("expected 1 session after sweep, got %d", r.ActiveCount())
	}
	if got := r.Buffer("bob"); got == "" {
		t.Fatal("expected bob session to survive the sweep")
	}
}

func TestEndRemovesSession(t *testing.T) {
	r := newTestRegistry(t)
	r.Process(context.Background(), "alice", frame("help"))
	r.End("alice")
	if r.ActiveCount() != 0 {
		t.Fatalf("expected 0 sessions, got %d", r.ActiveCount())
	}
}
