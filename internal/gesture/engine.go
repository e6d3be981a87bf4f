package gesture

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/signsos/signstream-core/internal/config"
	"github.com/signsos/signstream-core/internal/dispatch"
)

// CommitKind names a text-buffer mutation kind.
type CommitKind string

const (
	CommitAppend    CommitKind = "append"
	CommitSeparator CommitKind = "separator"
	CommitSend      CommitKind = "send"
)

// Commit describes the single rule that fired for a frame, if any.
type Commit struct {
	Kind CommitKind
	// Text is the appended text, or the dispatched text for a send.
	Text string
	// Buffer is the session buffer after the commit.
	Buffer string
	// AudioURL is set on a successful send.
	AudioURL string
	// Err carries the dispatch failure for a send whose outbound call did
	// not succeed. The buffer is preserved in that case.
	Err error
}

// Engine is the commit state machine. It evaluates one frame at a time
// against a session and fires at most one rule per frame, in explicit
// priority order: send, then separator, then append.
type Engine struct {
	cfg             config.EngineConfig
	vocab           *Vocabulary
	resolver        *Resolver
	dispatcher      dispatch.Dispatcher
	dispatchTimeout time.Duration
	logger          *slog.Logger
	clock           func() time.Time
}

func NewEngine(cfg config.EngineConfig, vocab *Vocabulary, dispatcher dispatch.Dispatcher, dispatchTimeout time.Duration, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:             cfg,
		vocab:           vocab,
		resolver:        NewResolver(vocab, cfg.DoneMinMargin),
		dispatcher:      dispatcher,
		dispatchTimeout: dispatchTimeout,
		logger:          logger.With(slog.String("component", "commit-engine")),
		clock:           time.Now,
	}
}

// Vocabulary exposes the engine's label-role lookup.
func (e *Engine) Vocabulary() *Vocabulary { return e.vocab }

// Process evaluates one frame for a session. It returns ErrInvalidFrame for
// input it refuses to evaluate (session untouched), a Commit when a rule
// fired, and (nil, nil) for frames that only advanced bookkeeping. The caller
// guarantees sequential invocation per session.
func (e *Engine) Process(ctx context.Context, s *SessionState, f Frame) (*Commit, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	if !f.HandPresent {
		s.Observe(false, "")
		return nil, nil
	}

	res := e.resolver.Resolve(f.Label, f.Confidence, f.RunnerUpLabel, f.RunnerUpConfidence)
	count := s.Observe(true, res.Label)
	now := e.clock()

	switch e.vocab.Role(res.Label) {
	case RoleSend:
		return e.trySend(ctx, s, res, count, now)
	case RoleSeparator:
		return e.trySeparator(s, res, count, now), nil
	case RoleCharacter:
		return e.tryAppend(s, res, count, now), nil
	default:
		// Labels outside the vocabulary keep their streak but never commit.
		return nil, nil
	}
}

func (e *Engine) trySend(ctx context.Context, s *SessionState, res Resolution, count int, now time.Time) (*Commit, error) {
	if res.Confidence < e.cfg.DoneConfidenceThreshold {
		return nil, nil
	}
	if res.Margin < e.cfg.DoneMinMargin {
		return nil, nil
	}
	if count < e.cfg.SendStableFrames {
		return nil, nil
	}
	if now.Sub(s.LastSendTime) < e.cooldown(e.cfg.SendCooldownMS) {
		return nil, nil
	}

	s.LastSendTime = now
	s.LastCommittedLabel = res.Label
	s.HandLeftSinceCommit = false

	text := strings.TrimSpace(s.TextBuffer)
	if text == "" {
		return nil, nil
	}

	commit := &Commit{Kind: CommitSend, Text: text}
	dctx, cancel := context.WithTimeout(ctx, e.dispatchTimeout)
	defer cancel()
	audioURL, err := e.dispatcher.Send(dctx, text, s.ID)
	if err != nil {
		// Buffer stays intact; the next qualifying send frame retries.
		e.logger.Warn("dispatch failed, buffer preserved",
			slog.String("session_id", s.ID), slogError(err))
		commit.Err = err
		commit.Buffer = s.TextBuffer
		return commit, nil
	}

	s.TextBuffer = ""
	commit.AudioURL = audioURL
	commit.Buffer = s.TextBuffer
	return commit, nil
}

func (e *Engine) trySeparator(s *SessionState, res Resolution, count int, now time.Time) *Commit {
	if res.Confidence < e.cfg.SeparatorConfidenceThreshold {
		return nil
	}
	if count < e.cfg.SeparatorStableFrames {
		return nil
	}
	if s.TextBuffer == "" || strings.HasSuffix(s.TextBuffer, e.vocab.SeparatorText()) {
		return nil
	}
	if now.Sub(s.LastAppendTime) < e.cooldown(e.cfg.SeparatorCooldownMS) {
		return nil
	}

	s.TextBuffer += e.vocab.SeparatorText()
	s.LastAppendTime = now
	s.LastAppendedLabel = res.Label
	s.LastCommittedLabel = res.Label
	s.HandLeftSinceCommit = false
	return &Commit{Kind: CommitSeparator, Text: e.vocab.SeparatorText(), Buffer: s.TextBuffer}
}

func (e *Engine) tryAppend(s *SessionState, res Resolution, count int, now time.Time) *Commit {
	if res.Confidence < e.cfg.AppendConfidenceThreshold {
		return nil
	}
	if count < e.cfg.StableFramesRequired {
		return nil
	}
	// A held gesture re-commits only after the hand has left the frame.
	if !s.HandLeftSinceCommit && res.Label == s.LastCommittedLabel {
		return nil
	}
	// The same character may be re-typed after a short pause without a full
	// hand withdrawal.
	if res.Label == s.LastAppendedLabel && now.Sub(s.LastAppendTime) < e.cooldown(e.cfg.AppendCooldownMS) {
		return nil
	}

	s.TextBuffer += res.Label
	s.LastAppendTime = now
	s.LastAppendedLabel = res.Label
	s.LastCommittedLabel = res.Label
	s.HandLeftSinceCommit = false
	return &Commit{Kind: CommitAppend, Text: res.Label, Buffer: s.TextBuffer}
}

func (e *Engine) cooldown(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
