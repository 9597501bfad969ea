package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/pogoda1/parsik/internal/api"
	"github.com/pogoda1/parsik/internal/bus"
	"github.com/pogoda1/parsik/internal/config"
	"github.com/pogoda1/parsik/internal/llm"
	"github.com/pogoda1/parsik/internal/pipeline"
	"github.com/pogoda1/parsik/internal/prompt"
	"github.com/pogoda1/parsik/internal/stats"
	"github.com/pogoda1/parsik/internal/store"
	"github.com/pogoda1/parsik/internal/syncq"
	"github.com/pogoda1/parsik/internal/validator"
	"github.com/pogoda1/parsik/internal/vocab"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.Load()
	setupLogging(cfg.LogLevel, cfg.LogFormat)

	slog.Info("parsik starting", "port", cfg.Port, "cheap_model", cfg.CheapModel, "strong_model", cfg.StrongModel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.BackendURL == "" {
		slog.Error("BACKEND_URL is required")
		os.Exit(1)
	}

	// Vocabularies and prompts
	voc := vocab.Default()
	if cfg.VocabFile != "" {
		v, err := vocab.Load(cfg.VocabFile)
		if err != nil {
			slog.Error("failed to load vocabulary", "path", cfg.VocabFile, "error", err)
			os.Exit(1)
		}
		voc = v
	}
	prompts, err := prompt.Load(cfg.PromptDir, voc)
	if err != nil {
		slog.Error("failed to load prompt templates", "dir", cfg.PromptDir, "error", err)
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Error("invalid PARSIK_TIMEZONE", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	// Stats
	tracker, err := stats.Open(filepath.Join(cfg.DataDir, "parser_stats.json"), slog.Default())
	if err != nil {
		slog.Error("failed to open stats file", "error", err)
		os.Exit(1)
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(tracker.Collectors()...)

	// Model backends
	router := llm.NewRouter(llm.NewChatClient(cfg.ModelAPIURL, cfg.ModelAPIKey))
	if cfg.CheapBackend == "local" {
		rt, err := llm.ParseCommand(cfg.LocalCommand)
		if err != nil {
			slog.Error("PARSIK_LOCAL_COMMAND is required when PARSIK_CHEAP_BACKEND=local", "error", err)
			os.Exit(1)
		}
		router.Route(cfg.CheapModel, llm.NewLocal(rt))
		slog.Info("cheap model routed to local runtime", "model", cfg.CheapModel, "command", rt.Path)
	}
	if cfg.StrongBackend == "gemini" {
		if cfg.GeminiAPIKey == "" {
			slog.Error("GEMINI_API_KEY is required when PARSIK_STRONG_BACKEND=gemini")
			os.Exit(1)
		}
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			slog.Error("failed to create gemini client", "error", err)
			os.Exit(1)
		}
		router.Route(cfg.StrongModel, gemini)
		slog.Info("strong model routed to gemini", "model", cfg.StrongModel)
	}

	opts := llm.Options{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens, Timeout: cfg.ModelTimeout}
	pipe := pipeline.New(pipeline.Env{
		Gateway:   router,
		Prompts:   prompts,
		Validator: validator.New(voc, slog.Default(), validator.WithLocation(loc)),
		Stats:     tracker,
		Logger:    slog.Default(),
		Config: pipeline.Config{
			Cheap:              pipeline.Tier{Model: cfg.CheapModel, Options: opts},
			Strong:             pipeline.Tier{Model: cfg.StrongModel, Options: opts},
			EscalateOnPastDate: cfg.EscalatePastDate,
		},
	})

	audits := syncq.Audits{syncq.NewFileAudit(filepath.Join(cfg.DataDir, "processing_log.jsonl"))}
	deps := api.Deps{
		Stats:    tracker,
		Metrics:  registry,
		APIToken: cfg.APIToken,
		Logger:   slog.Default(),
	}

	// Postgres mirror of the processing log (optional)
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		audits = append(audits, db)
		deps.Log = db
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set, processing log kept on disk only")
	}

	trigger := make(chan struct{}, 1)
	deps.Trigger = trigger

	queueDeps := syncq.Deps{
		Remote:    syncq.NewBackend(cfg.BackendURL, cfg.BackendToken, 30*time.Second),
		Local:     syncq.NewLocalStore(filepath.Join(cfg.DataDir, "not_parsed.json")),
		Processor: pipe,
		Audit:     audits,
		Logger:    slog.Default(),
	}

	// NATS (optional)
	if cfg.NatsURL != "" {
		busClient, err := bus.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer busClient.Close()
		if err := busClient.ForwardSyncRequests(trigger); err != nil {
			slog.Error("failed to subscribe to sync requests", "error", err)
			os.Exit(1)
		}
		queueDeps.Publisher = busClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	pacer := syncq.NewTickerPacer(cfg.SyncItemDelay)
	defer pacer.Stop()
	queueDeps.Pacer = pacer

	queue := syncq.New(queueDeps)
	deps.Queue = queue

	srv := api.NewServer(cfg.Port, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		return queue.Run(gctx, cfg.SyncInterval, trigger)
	})

	slog.Info("parsik ready", "port", cfg.Port, "sync_interval", cfg.SyncInterval)

	if err := g.Wait(); err != nil {
		slog.Error("parsik stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("parsik stopped")
}

func setupLogging(level, format string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var handler slog.Handler
	if format == "console" {
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: lvl, TimeFormat: time.Kitchen})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
}
