package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/shifthub/internal/config"
	"github.com/geocoder89/shifthub/internal/db"
	"github.com/geocoder89/shifthub/internal/jobs"
	"github.com/geocoder89/shifthub/internal/notifications"
	"github.com/geocoder89/shifthub/internal/observability"
	"github.com/geocoder89/shifthub/internal/repo/postgres"
	"github.com/geocoder89/shifthub/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env).With("component", "worker")

	if err := cfg.ValidateStore(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	if cfg.Store != config.StorePostgres {
		// jobs read what the API wrote; a private in-memory store would always be empty
		log.Error("worker requires STORE=postgres", "store", cfg.Store)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName: "shifthub-worker",
		Env:         cfg.Env,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	var pool *pgxpool.Pool
	err = worker.Retry(ctx, log, "db_connect", 6, func(ctx context.Context) error {
		var connErr error
		pool, connErr = db.NewPool(ctx, cfg.DBURL, int32(cfg.DBMaxConns))
		return connErr
	})
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := postgres.NewStore(pool, prom)

	notifier := notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(log),
		notifications.ProtectedNotifierConfig{Timeout: 3 * time.Second},
	)

	scheduler := jobs.NewScheduler(log, prom)
	err = jobs.RegisterShiftJobs(scheduler, jobs.Deps{
		Store:           store,
		Notifier:        notifier,
		Prom:            prom,
		Log:             log,
		StaleShiftAfter: cfg.StaleShiftAfter,
	})
	if err != nil {
		log.Error("job registration failed", "err", err)
		os.Exit(1)
	}

	probe := worker.NewProbe(store, reg)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerMetricsPort),
		Handler:           probe.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("worker probes listening", "port", cfg.WorkerMetricsPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("probe server failed", "err", err)
			stop()
		}
	}()

	scheduler.Start()

	// gauges should not wait for the first tick
	if err := scheduler.RunNow(jobs.ActiveShiftGaugeJob); err != nil {
		log.Warn("initial gauge run failed", "err", err)
	}

	<-ctx.Done()
	log.Info("worker received shutdown signal")
	probe.MarkShuttingDown()

	scheduler.Stop()

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("probe server shutdown failed", "err", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", "err", err)
	}

	log.Info("worker shutdown complete")
}
