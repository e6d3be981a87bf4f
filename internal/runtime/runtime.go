package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/signsos/signstream-core/internal/bus"
	"github.com/signsos/signstream-core/internal/classify"
	"github.com/signsos/signstream-core/internal/config"
	"github.com/signsos/signstream-core/internal/dispatch"
	"github.com/signsos/signstream-core/internal/eventstore"
	"github.com/signsos/signstream-core/internal/gesture"
	"github.com/signsos/signstream-core/internal/httpapi"
	"github.com/signsos/signstream-core/internal/natsserver"
	"github.com/signsos/signstream-core/internal/session"
	"github.com/signsos/signstream-core/internal/stream"
)

// Runtime owns the lifecycle of every service: telemetry, the optional
// embedded bus, the commit store, the session registry and the HTTP surface.
// Start blocks until the context is cancelled, then shuts everything down in
// reverse start order.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	var embedded *natsserver.EmbeddedServer
	var busClient *bus.Client
	if r.cfg.Bus.Enabled {
		if r.cfg.Bus.Embedded {
			embedded, err = natsserver.Start(r.cfg.Bus, r.logger)
			if err != nil {
				return fmt.Errorf("failed to start embedded bus: %w", err)
			}
			defer embedded.Shutdown()
		}
		busClient, err = bus.Connect(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to bus: %w", err)
		}
		defer busClient.Close()
	}

	store, err := eventstore.Open(ctx, r.cfg.EventStore, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			r.logger.Error("event store close error", slog.String("error", err.Error()))
		}
	}()

	vocab, err := gesture.NewVocabulary(r.cfg.Vocabulary)
	if err != nil {
		return fmt.Errorf("invalid vocabulary: %w", err)
	}

	classifier, err := buildClassifier(r.cfg.Classifier, vocab)
	if err != nil {
		return fmt.Errorf("failed to build classifier: %w", err)
	}

	dispatcher := buildDispatcher(r.cfg.Dispatch)
	dispatchTimeout := time.Duration(r.cfg.Dispatch.TimeoutMS) * time.Millisecond

	engine := gesture.NewEngine(r.cfg.Engine, vocab, dispatcher, dispatchTimeout, r.logger)

	registry := session.NewRegistry(ctx, r.cfg.Session, engine, commitRecorder{store: store}, r.logger)
	defer registry.Close()

	frames := stream.NewService(ctx, r.cfg.Bus.Enabled, busClient, registry, r.logger)
	if err := frames.Start(); err != nil {
		return fmt.Errorf("failed to start frame service: %w", err)
	}
	defer frames.Close()

	var metricsServer *http.Server
	if metricsHandler != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metricsHandler)
		metricsServer = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	api := httpapi.NewServer(registry, classifier, vocab, r.logger)
	api.Register(mux)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.Bool("bus", r.cfg.Bus.Enabled),
		slog.String("dispatch", r.cfg.Dispatch.Mode),
		slog.String("classifier", r.cfg.Classifier.Mode))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func buildClassifier(cfg config.ClassifierConfig, vocab *gesture.Vocabulary) (classify.Classifier, error) {
	switch cfg.Mode {
	case "exec":
		return classify.NewExecClassifier(cfg.Command)
	default:
		return classify.NewMockClassifier(vocab.Classes()), nil
	}
}

func buildDispatcher(cfg config.DispatchConfig) dispatch.Dispatcher {
	switch cfg.Mode {
	case "http":
		return dispatch.NewHTTPDispatcher(cfg.Endpoint, time.Duration(cfg.TimeoutMS)*time.Millisecond)
	default:
		return dispatch.NewMockDispatcher()
	}
}

// commitRecorder adapts the event store to the registry's persistence hook.
type commitRecorder struct {
	store *eventstore.Store
}

func (c commitRecorder) RecordCommit(ctx context.Context, sessionID string, commit *gesture.Commit) error {
	var dispatchError string
	if commit.Err != nil {
		dispatchError = commit.Err.Error()
	}
	return c.store.AppendCommit(ctx, eventstore.Commit{
		SessionID: sessionID,
		Kind:      string(commit.Kind),
		Text:      commit.Text,
		Buffer:    commit.Buffer,
		AudioURL:  commit.AudioURL,
		Error:     dispatchError,
	})
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
