package stream

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/signsos/signstream-core/internal/bus"
	"github.com/signsos/signstream-core/internal/config"
	"github.com/signsos/signstream-core/internal/dispatch"
	"github.com/signsos/signstream-core/internal/gesture"
	"github.com/signsos/signstream-core/internal/natsserver"
	"github.com/signsos/signstream-core/internal/protocol"
	"github.com/signsos/signstream-core/internal/session"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestStream stands up an in-process bus, a registry with a mock
// dispatcher, and a started frame service on top of them.
func newTestStream(t *testing.T) *bus.Client {
	t.Helper()

	busCfg := config.BusConfig{Embedded: true, Port: -1, ConnectTimeout: 2000}
	srv, err := natsserver.Start(busCfg, newLogger())
	if err != nil {
		t.Fatalf("start embedded bus: %v", err)
	}
	t.Cleanup(srv.Shutdown)

	busCfg.Servers = []string{srv.ClientURL()}
	client, err := bus.Connect(busCfg, newLogger())
	if err != nil {
		t.Fatalf("connect to bus: %v", err)
	}
	t.Cleanup(client.Close)

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
		DoneMinMargin:                12,
	}, vocab, dispatch.NewMockDispatcher(), time.Second, newLogger())
	registry := session.NewRegistry(context.Background(), config.SessionConfig{
		IdleTimeoutMS:   60000,
		SweepIntervalMS: 60000,
	}, engine, nil, newLogger())
	t.Cleanup(registry.Close)

	svc := NewService(context.Background(), true, client, registry, newLogger())
	if err := svc.Start(); err != nil {
		t.Fatalf("start frame service: %v", err)
	}
	t.Cleanup(svc.Close)
	if !svc.Healthy() {
		t.Fatal("expected started service to be healthy")
	}

	return client
}

func publishFrame(t *testing.T, client *bus.Client, frame protocol.ClassificationFrame) {
	t.Helper()
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	if err := client.Conn().Publish(protocol.SubjectFramePrefix+"."+frame.SessionID, data); err != nil {
		t.Fatalf("publish frame: %v", err)
	}
}

func TestFramesProduceCommitEvents(t *testing.T) {
	client := newTestStream(t)

	sub, err := client.Conn().SubscribeSync(protocol.SubjectCommit)
	if err != nil {
		t.Fatalf("subscribe commits: %v", err)
	}
	if err := client.Conn().Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	frame := protocol.ClassificationFrame{
		SessionID:   "alice",
		HandPresent: true,
		Label:       "help",
		Confidence:  95,
	}
	publishFrame(t, client, frame)
	publishFrame(t, client, frame)

	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("expected a commit event: %v", err)
	}
	var event protocol.CommitEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		t.Fatalf("decode commit event: %v", err)
	}
	if event.SessionID != "alice" || event.Kind != "append" {
		t.Fatalf("unexpected commit event: %+v", event)
	}
	if event.Text != "help" || event.Buffer != "help" {
		t.Fatalf("unexpected commit payload: %+v", event)
	}
}

func TestBadFramesAreDroppedWithoutStallingTheStream(t *testing.T) {
	client := newTestStream(t)

	sub, err := client.Conn().SubscribeSync(protocol.SubjectCommit)
	if err != nil {
		t.Fatalf("subscribe commits: %v", err)
	}
	if err := client.Conn().Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	// Undecodable payload.
	if err := client.Conn().Publish(protocol.SubjectFramePrefix+".alice", []byte("{not json")); err != nil {
		t.Fatalf("publish junk: %v", err)
	}
	// Frame without a session identity in the payload.
	anonymous, err := json.Marshal(protocol.ClassificationFrame{
		HandPresent: true,
		Label:       "help",
		Confidence:  95,
	})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	if err := client.Conn().Publish(protocol.SubjectFramePrefix+".unknown", anonymous); err != nil {
		t.Fatalf("publish anonymous frame: %v", err)
	}
	// Frame that fails validation (confidence out of range).
	publishFrame(t, client, protocol.ClassificationFrame{
		SessionID:   "alice",
		HandPresent: true,
		Label:       "help",
		Confidence:  400,
	})

	frame := protocol.ClassificationFrame{
		SessionID:   "alice",
		HandPresent: true,
		Label:       "hello",
		Confidence:  95,
	}
	publishFrame(t, client, frame)
	publishFrame(t, client, frame)

	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("expected the valid frames to still commit: %v", err)
	}
	var event protocol.CommitEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		t.Fatalf("decode commit event: %v", err)
	}
	if event.SessionID != "alice" || event.Text != "hello" {
		t.Fatalf("unexpected commit event: %+v", event)
	}
}
