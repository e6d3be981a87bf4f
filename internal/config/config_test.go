package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Vocabulary.SendLabel != "done" || cfg.Vocabulary.SeparatorLabel != "space" {
		t.Fatalf("unexpected default control labels: %+v", cfg.Vocabulary)
	}
	if cfg.Engine.DoneMinMargin != 12 {
		t.Fatalf("expected default done_min_margin 12, got %v", cfg.Engine.DoneMinMargin)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SIGNSTREAM_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("SIGNSTREAM_BUS_EMBEDDED", "false")
	t.Setenv("SIGNSTREAM_ENGINE_APPEND_CONFIDENCE_THRESHOLD", "60")
	t.Setenv("SIGNSTREAM_ENGINE_STABLE_FRAMES_REQUIRED", "7")
	t.Setenv("SIGNSTREAM_ENGINE_SEND_COOLDOWN_MS", "5000")
	t.Setenv("SIGNSTREAM_DISPATCH_ENDPOINT", "http://tts.local/api/generate-audio")
	t.Setenv("SIGNSTREAM_VOCABULARY_CLASSES", "help, cannot, speak, hello, space, done")
	t.Setenv("SIGNSTREAM_VOCABULARY_SEPARATOR_TEXT", "_")
	t.Setenv("SIGNSTREAM_SESSION_IDLE_TIMEOUT_MS", "60000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Embedded {
		t.Fatal("expected embedded override false")
	}
	if cfg.Engine.AppendConfidenceThreshold != 60 {
		t.Fatalf("expected append threshold 60, got %v", cfg.Engine.AppendConfidenceThreshold)
	}
	if cfg.Engine.StableFramesRequired != 7 {
		t.Fatalf("expected stable frames 7, got %d", cfg.Engine.StableFramesRequired)
	}
	if cfg.Engine.SendCooldownMS != 5000 {
		t.Fatalf("expected send cooldown 5000, got %d", cfg.Engine.SendCooldownMS)
	}
	if cfg.Dispatch.Endpoint != "http://tts.local/api/generate-audio" {
		t.Fatalf("expected dispatch endpoint override, got %s", cfg.Dispatch.Endpoint)
	}
	if len(cfg.Vocabulary.Classes) != 6 {
		t.Fatalf("expected 6 classes, got %v", cfg.Vocabulary.Classes)
	}
	if cfg.Vocabulary.SeparatorText != "_" {
		t.Fatalf("expected separator text override, got %q", cfg.Vocabulary.SeparatorText)
	}
	if cfg.Session.IdleTimeoutMS != 60000 {
		t.Fatalf("expected idle timeout override, got %d", cfg.Session.IdleTimeoutMS)
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "confidence above 100",
			env:  map[string]string{"SIGNSTREAM_ENGINE_DONE_CONFIDENCE_THRESHOLD": "120"},
			want: "done_confidence_threshold",
		},
		{
			name: "zero stable frames",
			env:  map[string]string{"SIGNSTREAM_ENGINE_SEND_STABLE_FRAMES": "0"},
			want: "send_stable_frames",
		},
		{
			name: "negative cooldown",
			env:  map[string]string{"SIGNSTREAM_ENGINE_APPEND_COOLDOWN_MS": "-1"},
			want: "append_cooldown_ms",
		},
		{
			name: "send label outside vocabulary",
			env:  map[string]string{"SIGNSTREAM_VOCABULARY_SEND_LABEL": "missing"},
			want: "send_label",
		},
		{
			name: "bad dispatch mode",
			env:  map[string]string{"SIGNSTREAM_DISPATCH_MODE": "carrier-pigeon"},
			want: "dispatch.mode",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}
