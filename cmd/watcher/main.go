package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/akhundovte/shopwatch/internal/config"
	"github.com/akhundovte/shopwatch/internal/delivery"
	"github.com/akhundovte/shopwatch/internal/fetch"
	"github.com/akhundovte/shopwatch/internal/notify"
	"github.com/akhundovte/shopwatch/internal/parser"
	"github.com/akhundovte/shopwatch/internal/publisher"
	"github.com/akhundovte/shopwatch/internal/reconcile"
	"github.com/akhundovte/shopwatch/internal/scheduler"
	"github.com/akhundovte/shopwatch/internal/storage/postgres"
	"github.com/akhundovte/shopwatch/internal/watch"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize RabbitMQ publisher
	rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer rabbitMQ.Close()

	telegram, err := delivery.NewTelegram(cfg.Telegram.Token)
	if err != nil {
		logger.Error("failed to init telegram", "error", err)
		os.Exit(1)
	}

	// Initialize stores
	productStore := postgres.NewProductStore(db)
	pendingStore := postgres.NewPendingChangeStore(db)
	messageStore := postgres.NewMessageStore(db)
	txManager := postgres.NewTransactionManager(db)

	// Fetch pipeline
	client := fetch.NewClient(fetch.ClientConfig{
		Timeout:      cfg.Fetch.Timeout,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		MaxRetries:   cfg.Fetch.MaxRetries,
	}, logger)
	pipeline := fetch.NewPipeline(client, fetch.PipelineConfig{
		QueueSize: cfg.Fetch.QueueSize,
		Throttle:  cfg.Fetch.Throttle,
		Workers:   cfg.Fetch.Workers,
	}, logger)

	// Per-shop parsers register here as they are built.
	registry := parser.NewRegistry()

	stager := notify.NewStager(pendingStore, logger)
	reconciler := reconcile.NewService(productStore, stager, txManager, logger)
	watcher := watch.NewService(productStore, pipeline, registry, reconciler, rabbitMQ, logger)
	compiler := notify.NewCompiler(pendingStore, pendingStore, messageStore, logger)
	deliverer := notify.NewDelivery(messageStore, telegram, logger)

	jobs, err := buildJobs(cfg.Schedule, watcher, compiler, deliverer, rabbitMQ, logger)
	if err != nil {
		logger.Error("failed to build schedule", "error", err)
		os.Exit(1)
	}
	sched := scheduler.New(jobs, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting shop watcher", "jobs", len(jobs))

	if err := sched.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

// buildJobs maps schedule config onto the known job names; absent entries
// take the built-in cadence.
func buildJobs(
	schedule map[string]config.JobConfig,
	watcher *watch.Service,
	compiler *notify.Compiler,
	deliverer *notify.Delivery,
	rabbitMQ *publisher.RabbitMQ,
	logger *slog.Logger,
) ([]scheduler.Job, error) {
	runners := map[string]struct {
		run   func(ctx context.Context)
		every time.Duration
		at    string
	}{
		"watch": {
			run: func(ctx context.Context) {
				if _, err := watcher.Run(ctx); err != nil {
					logger.Error("watch run failed", "error", err)
				}
			},
			every: time.Hour,
		},
		"compile": {
			run: func(ctx context.Context) {
				if err := compiler.Compile(ctx); err != nil {
					logger.Error("compile failed", "error", err)
				}
			},
			every: 10 * time.Minute,
		},
		"delivery": {
			run: func(ctx context.Context) {
				if err := deliverer.Run(ctx); err != nil {
					logger.Error("delivery failed", "error", err)
				}
			},
			every: 5 * time.Minute,
		},
		"heartbeat": {
			run: func(ctx context.Context) {
				if err := rabbitMQ.PublishHeartbeat(ctx); err != nil {
					logger.Error("heartbeat failed", "error", err)
				}
			},
			at: "09:00:00",
		},
	}

	var jobs []scheduler.Job
	for name, r := range runners {
		job := scheduler.Job{Name: name, Run: r.run}

		jc, ok := schedule[name]
		switch {
		case ok && jc.At != "":
			at, err := scheduler.ParseTimeOfDay(jc.At)
			if err != nil {
				return nil, err
			}
			job.Kind = scheduler.KindFixed
			job.At = at
		case ok && jc.Every > 0:
			job.Kind = scheduler.KindInterval
			job.Every = jc.Every
		case r.at != "":
			at, err := scheduler.ParseTimeOfDay(r.at)
			if err != nil {
				return nil, err
			}
			job.Kind = scheduler.KindFixed
			job.At = at
		default:
			job.Kind = scheduler.KindInterval
			job.Every = r.every
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
