// Package stream ingests classification frames from the bus and publishes
// the commits they produce.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/signsos/signstream-core/internal/bus"
	"github.com/signsos/signstream-core/internal/gesture"
	"github.com/signsos/signstream-core/internal/protocol"
	"github.com/signsos/signstream-core/internal/session"
)

type Service struct {
	enabled  bool
	bus      *bus.Client
	registry *session.Registry
	sub      *nats.Subscription
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
}

func NewService(parent context.Context, enabled bool, busClient *bus.Client, registry *session.Registry, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		enabled:  enabled,
		bus:      busClient,
		registry: registry,
		ctx:      ctx,
		cancel:   cancel,
		logger:   log.With(slog.String("component", "stream-service")),
	}
}

func (s *Service) Start() error {
	if !s.enabled {
		return nil
	}
	subject := protocol.SubjectFramePrefix + ".>"
	sub, err := s.bus.Conn().Subscribe(subject, s.handleFrame)
	if err != nil {
		return fmt.Errorf("subscribe classification frames: %w", err)
	}
	s.sub = sub
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
}

func (s *Service) Healthy() bool {
	return !s.enabled || s.sub != nil
}

// handleFrame runs inline so frames of one session keep their arrival order.
func (s *Service) handleFrame(msg *nats.Msg) {
	var frame protocol.ClassificationFrame
	if err := json.Unmarshal(msg.Data, &frame); err != nil {
		s.logger.Warn("failed to decode classification frame", slogError(err))
		return
	}
	if frame.SessionID == "" {
		s.logger.Warn("dropping frame without session id")
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	commit, _, err := s.registry.Process(ctx, frame.SessionID, gesture.Frame{
		HandPresent:        frame.HandPresent,
		Label:              frame.Label,
		Confidence:         frame.Confidence,
		RunnerUpLabel:      frame.RunnerUpLabel,
		RunnerUpConfidence: frame.RunnerUpConfidence,
	})
	if err != nil {
		s.logger.Warn("rejected classification frame",
			slog.String("session_id", frame.SessionID), slogError(err))
		return
	}
	if commit == nil {
		return
	}
	s.publishCommit(frame.SessionID, commit)
}

func (s *Service) publishCommit(sessionID string, commit *gesture.Commit) {
	event := protocol.CommitEvent{
		SessionID: sessionID,
		Kind:      string(commit.Kind),
		Text:      commit.Text,
		Buffer:    commit.Buffer,
		AudioURL:  commit.AudioURL,
		Timestamp: time.Now().UTC(),
	}
	if commit.Err != nil {
		event.Error = commit.Err.Error()
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal commit event", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectCommit, data); err != nil {
		s.logger.Warn("failed to publish commit event", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
