package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

// VocabularyConfig names the gesture classes and the two control labels.
type VocabularyConfig struct {
	Classes        []string `yaml:"classes"`
	SendLabel      string   `yaml:"send_label"`
	SeparatorLabel string   `yaml:"separator_label"`
	SeparatorText  string   `yaml:"separator_text"`
}

// EngineConfig holds every commit-rule tunable. Confidences and the margin
// are percentages (0-100). Raising a confidence threshold or a stable-frame
// count makes the corresponding trigger fire less often; raising a cooldown
// slows down how often the same commit kind may repeat.
type EngineConfig struct {
	AppendConfidenceThreshold    float64 `yaml:"append_confidence_threshold"`
	SeparatorConfidenceThreshold float64 `yaml:"separator_confidence_threshold"`
	DoneConfidenceThreshold      float64 `yaml:"done_confidence_threshold"`
	StableFramesRequired         int     `yaml:"stable_frames_required"`
	SeparatorStableFrames        int     `yaml:"separator_stable_frames"`
	SendStableFrames             int     `yaml:"send_stable_frames"`
	AppendCooldownMS             int     `yaml:"append_cooldown_ms"`
	SeparatorCooldownMS          int     `yaml:"separator_cooldown_ms"`
	SendCooldownMS               int     `yaml:"send_cooldown_ms"`
	DoneMinMargin                float64 `yaml:"done_min_margin"`
}

type DispatchConfig struct {
	Mode      string `yaml:"mode"` // mock, http
	Endpoint  string `yaml:"endpoint"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type ClassifierConfig struct {
	Mode    string `yaml:"mode"` // mock, exec
	Command string `yaml:"command"`
}

type SessionConfig struct {
	IdleTimeoutMS   int `yaml:"idle_timeout_ms"`
	SweepIntervalMS int `yaml:"sweep_interval_ms"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	Vocabulary  VocabularyConfig `yaml:"vocabulary"`
	Engine      EngineConfig     `yaml:"engine"`
	Dispatch    DispatchConfig   `yaml:"dispatch"`
	Classifier  ClassifierConfig `yaml:"classifier"`
	Session     SessionConfig    `yaml:"session"`
}

func Default() Config {
	return Config{
		RuntimeName: "signstream-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        true,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/signstream-events.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Vocabulary: VocabularyConfig{
			Classes:        []string{"help", "cannot", "speak", "hello", "space", "done"},
			SendLabel:      "done",
			SeparatorLabel: "space",
			SeparatorText:  " ",
		},
		Engine: EngineConfig{
			AppendConfidenceThreshold:    85,
			SeparatorConfidenceThreshold: 88,
			DoneConfidenceThreshold:      92,
			StableFramesRequired:         3,
			SeparatorStableFrames:        4,
			SendStableFrames:             5,
			AppendCooldownMS:             1200,
			SeparatorCooldownMS:          1500,
			SendCooldownMS:               3000,
			DoneMinMargin:                12,
		},
		Dispatch: DispatchConfig{
			Mode:      "http",
			Endpoint:  "http://127.0.0.1:3000/api/generate-audio",
			TimeoutMS: 10000,
		},
		Classifier: ClassifierConfig{
			Mode: "mock",
		},
		Session: SessionConfig{
			IdleTimeoutMS:   300000,
			SweepIntervalMS: 30000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "SIGNSTREAM_RUNTIME_NAME")
	overrideString(&cfg.Environment, "SIGNSTREAM_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "SIGNSTREAM_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "SIGNSTREAM_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "SIGNSTREAM_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "SIGNSTREAM_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "SIGNSTREAM_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "SIGNSTREAM_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "SIGNSTREAM_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "SIGNSTREAM_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "SIGNSTREAM_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "SIGNSTREAM_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "SIGNSTREAM_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "SIGNSTREAM_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "SIGNSTREAM_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "SIGNSTREAM_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "SIGNSTREAM_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "SIGNSTREAM_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "SIGNSTREAM_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "SIGNSTREAM_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "SIGNSTREAM_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "SIGNSTREAM_EVENT_STORE_VACUUM_ON_START")
	overrideStringSlice(&cfg.Vocabulary.Classes, "SIGNSTREAM_VOCABULARY_CLASSES")
	overrideString(&cfg.Vocabulary.SendLabel, "SIGNSTREAM_VOCABULARY_SEND_LABEL")
	overrideString(&cfg.Vocabulary.SeparatorLabel, "SIGNSTREAM_VOCABULARY_SEPARATOR_LABEL")
	// Separator text is legitimately whitespace, so it skips the
	// trimmed-empty check the other string overrides apply.
	if value, ok := os.LookupEnv("SIGNSTREAM_VOCABULARY_SEPARATOR_TEXT"); ok && value != "" {
		cfg.Vocabulary.SeparatorText = value
	}
	overrideFloat(&cfg.Engine.AppendConfidenceThreshold, "SIGNSTREAM_ENGINE_APPEND_CONFIDENCE_THRESHOLD")
	overrideFloat(&cfg.Engine.SeparatorConfidenceThreshold, "SIGNSTREAM_ENGINE_SEPARATOR_CONFIDENCE_THRESHOLD")
	overrideFloat(&cfg.Engine.DoneConfidenceThreshold, "SIGNSTREAM_ENGINE_DONE_CONFIDENCE_THRESHOLD")
	overrideInt(&cfg.Engine.StableFramesRequired, "SIGNSTREAM_ENGINE_STABLE_FRAMES_REQUIRED")
	overrideInt(&cfg.Engine.SeparatorStableFrames, "SIGNSTREAM_ENGINE_SEPARATOR_STABLE_FRAMES")
	overrideInt(&cfg.Engine.SendStableFrames, "SIGNSTREAM_ENGINE_SEND_STABLE_FRAMES")
	overrideInt(&cfg.Engine.AppendCooldownMS, "SIGNSTREAM_ENGINE_APPEND_COOLDOWN_MS")
	overrideInt(&cfg.Engine.SeparatorCooldownMS, "SIGNSTREAM_ENGINE_SEPARATOR_COOLDOWN_MS")
	overrideInt(&cfg.Engine.SendCooldownMS, "SIGNSTREAM_ENGINE_SEND_COOLDOWN_MS")
	overrideFloat(&cfg.Engine.DoneMinMargin, "SIGNSTREAM_ENGINE_DONE_MIN_MARGIN")
	overrideString(&cfg.Dispatch.Mode, "SIGNSTREAM_DISPATCH_MODE")
	overrideString(&cfg.Dispatch.Endpoint, "SIGNSTREAM_DISPATCH_ENDPOINT")
	overrideInt(&cfg.Dispatch.TimeoutMS, "SIGNSTREAM_DISPATCH_TIMEOUT_MS")
	overrideString(&cfg.Classifier.Mode, "SIGNSTREAM_CLASSIFIER_MODE")
	overrideString(&cfg.Classifier.Command, "SIGNSTREAM_CLASSIFIER_COMMAND")
	overrideInt(&cfg.Session.IdleTimeoutMS, "SIGNSTREAM_SESSION_IDLE_TIMEOUT_MS")
	overrideInt(&cfg.Session.SweepIntervalMS, "SIGNSTREAM_SESSION_SWEEP_INTERVAL_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if err := validateVocabulary(cfg.Vocabulary); err != nil {
		return err
	}
	if err := validateEngine(cfg.Engine); err != nil {
		return err
	}
	switch cfg.Dispatch.Mode {
	case "mock":
	case "http":
		if cfg.Dispatch.Endpoint == "" {
			return errors.New("dispatch.endpoint must be set when mode=http")
		}
	default:
		return errors.New("dispatch.mode must be one of mock|http")
	}
	if cfg.Dispatch.TimeoutMS <= 0 {
		return errors.New("dispatch.timeout_ms must be positive")
	}
	switch cfg.Classifier.Mode {
	case "mock":
	case "exec":
		if cfg.Classifier.Command == "" {
			return errors.New("classifier.command must be set when mode=exec")
		}
	default:
		return errors.New("classifier.mode must be one of mock|exec")
	}
	if cfg.Session.IdleTimeoutMS <= 0 {
		return errors.New("session.idle_timeout_ms must be positive")
	}
	if cfg.Session.SweepIntervalMS <= 0 {
		return errors.New("session.sweep_interval_ms must be positive")
	}
	return nil
}

func validateVocabulary(v VocabularyConfig) error {
	if len(v.Classes) == 0 {
		return errors.New("vocabulary.classes must not be empty")
	}
	if v.SendLabel == "" || v.SeparatorLabel == "" {
		return errors.New("vocabulary.send_label and vocabulary.separator_label must not be empty")
	}
	if v.SendLabel == v.SeparatorLabel {
		return errors.New("vocabulary.send_label and vocabulary.separator_label must differ")
	}
	known := make(map[string]bool, len(v.Classes))
	for _, class := range v.Classes {
		if class == "" {
			return errors.New("vocabulary.classes must not contain empty labels")
		}
		if known[class] {
			return fmt.Errorf("vocabulary.classes contains duplicate label %q", class)
		}
		known[class] = true
	}
	if !known[v.SendLabel] {
		return fmt.Errorf("vocabulary.send_label %q is not in vocabulary.classes", v.SendLabel)
	}
	if !known[v.SeparatorLabel] {
		return fmt.Errorf("vocabulary.separator_label %q is not in vocabulary.classes", v.SeparatorLabel)
	}
	return nil
}

func validateEngine(e EngineConfig) error {
	confidences := map[string]float64{
		"engine.append_confidence_threshold":    e.AppendConfidenceThreshold,
		"engine.separator_confidence_threshold": e.SeparatorConfidenceThreshold,
		"engine.done_confidence_threshold":      e.DoneConfidenceThreshold,
	}
	for name, value := range confidences {
		if value < 0 || value > 100 {
			return fmt.Errorf("%s must be between 0 and 100", name)
		}
	}
	frames := map[string]int{
		"engine.stable_frames_required":  e.StableFramesRequired,
		"engine.separator_stable_frames": e.SeparatorStableFrames,
		"engine.send_stable_frames":      e.SendStableFrames,
	}
	for name, value := range frames {
		if value < 1 {
			return fmt.Errorf("%s must be >= 1", name)
		}
	}
	cooldowns := map[string]int{
		"engine.append_cooldown_ms":    e.AppendCooldownMS,
		"engine.separator_cooldown_ms": e.SeparatorCooldownMS,
		"engine.send_cooldown_ms":      e.SendCooldownMS,
	}
	for name, value := range cooldowns {
		if value < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}
	if e.DoneMinMargin < 0 || e.DoneMinMargin > 100 {
		return errors.New("engine.done_min_margin must be between 0 and 100")
	}
	return nil
}
