package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/interco/internal/accounting/journals"
	"github.com/odyssey-erp/interco/internal/accounting/mappings"
	"github.com/odyssey-erp/interco/internal/accounting/periods"
	"github.com/odyssey-erp/interco/internal/app"
	"github.com/odyssey-erp/interco/internal/interco"
	intercohttp "github.com/odyssey-erp/interco/internal/interco/http"
	jobmetrics "github.com/odyssey-erp/interco/internal/jobs"
	"github.com/odyssey-erp/interco/internal/observability"
	"github.com/odyssey-erp/interco/internal/platform/cache"
	"github.com/odyssey-erp/interco/internal/platform/db"
	"github.com/odyssey-erp/interco/internal/shared"
	"github.com/odyssey-erp/interco/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, "icje-worker")
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())
	auditLogger := shared.NewAuditLogger(pool)

	periodService := periods.NewService(periods.NewRepository(pool))
	accounts := mappings.NewAutoBalancingReader(mappings.NewRepository(pool))
	journalService := journals.NewService(journals.NewRepository(pool), auditLogger, cfg.ICJESystemActorID)
	bills := interco.NewRepository(pool)

	lookup := interco.NewLookup(bills, periodService)
	builder := interco.NewBuilder(lookup, accounts, logger)
	reverser := interco.NewReverser(journalService, logger)
	generator := interco.NewGenerator(reverser, builder, journalService, bills, logger)
	reporter := interco.NewReporter(bills, auditLogger, jobMetrics, logger, interco.ReporterConfig{
		ActorID:       cfg.ICJESystemActorID,
		MarkerRetries: cfg.ICJEMarkerRetries,
	})
	batch := interco.NewBatch(bills, generator, reporter, cfg.ICJEConcurrency, logger)
	locker := interco.NewBillLocker(redisClient, cfg.ICJELockTTL)
	generateJob := jobs.NewGenerateICJEJob(batch, locker, logger, jobMetrics)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskGenerateICJE, Handler: generateJob.Handle},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	client, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:      logger,
		Config:      cfg,
		JobHandler:  jobs.NewHandler(inspector, logger),
		ICJEHandler: intercohttp.NewHandler(bills, client, logger),
		Metrics:     metrics,
	})
	server := &http.Server{
		Addr:         cfg.OpsAddr,
		Handler:      router,
		ReadTimeout:  cfg.OpsReadTimeout,
		WriteTimeout: cfg.OpsWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting ops server", slog.String("addr", cfg.OpsAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
