package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kanweiwei/speekium/config"
	"github.com/kanweiwei/speekium/internal/application"
	"github.com/kanweiwei/speekium/internal/domain"
	"github.com/kanweiwei/speekium/internal/infra/audio"
	"github.com/kanweiwei/speekium/internal/infra/history"
	"github.com/kanweiwei/speekium/internal/infra/provider"
	"github.com/kanweiwei/speekium/internal/infra/worker"
	"github.com/kanweiwei/speekium/internal/metrics"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Error("loading config", "error", err)
			os.Exit(1)
		}
		cfg = config.Default()
	}

	logger := setupLogger(cfg.Log)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	state := application.NewStateMachine(m, logger)
	if mode, ok := domain.ParseRecordingMode(cfg.Worker.RecordingMode); ok {
		state.SetRecordingMode(mode)
	}
	if mode, ok := domain.ParseWorkMode(cfg.Worker.WorkMode); ok {
		state.SetWorkMode(mode)
	}

	var hist application.History = application.NoopHistory{}
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path, logger)
		if err != nil {
			logger.Error("opening history store", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		hist = store
	}

	notifier := &application.LogNotifier{Logger: logger}

	assistant := newAssistant(cfg, state, notifier, hist, m, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Addr, registry, logger)
	}

	checkProviders(ctx, cfg.Providers, logger)

	logger.Info("starting voice service")
	if err := assistant.Start(); err != nil {
		logger.Error("voice service failed to start", "error", err)
		os.Exit(1)
	}

	interval := parseDuration(cfg.Worker.HealthCheckInterval, 30*time.Second, logger)
	runHealthLoop(ctx, assistant, interval, logger)

	assistant.Shutdown()
}

func newAssistant(
	cfg *config.Config,
	state *application.StateMachine,
	notifier application.Notifier,
	hist application.History,
	m *metrics.Metrics,
	logger *slog.Logger,
) *application.Assistant {
	// The orchestrator consumes side-channel events but is built after the
	// supervisor; the closure resolves the cycle. Events only start flowing
	// once Start is called, after the assignment below.
	var assistant *application.Assistant
	handler := worker.EventHandlerFunc(func(ev domain.SideChannelEvent) {
		assistant.HandleWorkerEvent(ev)
	})

	supervisor := worker.NewSupervisor(worker.Config{
		ExtraPaths:       cfg.Worker.ExtraPaths,
		HandshakeTimeout: parseDuration(cfg.Worker.HandshakeTimeout, 25*time.Second, logger),
		ReadyTimeout:     parseDuration(cfg.Worker.ReadyTimeout, 30*time.Second, logger),
	}, handler, m, logger)

	recorder := audio.NewRecorder(cfg.Audio.SampleRate, m, logger)

	assistant = application.NewAssistant(supervisor, recorder, state, notifier, hist, logger)
	return assistant
}

func runHealthLoop(ctx context.Context, assistant *application.Assistant, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := assistant.Health(); err != nil {
				logger.Warn("health check failed", "error", err)
			}
		}
	}
}

func checkProviders(ctx context.Context, cfg config.ProvidersConfig, logger *slog.Logger) {
	checker := provider.NewChecker()

	if cfg.Ollama.Model != "" {
		result := checker.CheckOllama(ctx, cfg.Ollama.BaseURL, cfg.Ollama.Model)
		logger.Info("ollama check",
			"reachable", result.Reachable,
			"model_found", result.ModelFound,
			"detail", result.Detail,
		)
	}
	if cfg.OpenAI.APIKey != "" {
		result := checker.CheckOpenAI(ctx, cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model)
		logger.Info("openai check",
			"reachable", result.Reachable,
			"model_found", result.ModelFound,
			"detail", result.Detail,
		)
	}
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	logger.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server", "error", err)
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseDuration(value string, fallback time.Duration, logger *slog.Logger) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn("invalid duration, using default", "value", value, "default", fallback)
		return fallback
	}
	return d
}
