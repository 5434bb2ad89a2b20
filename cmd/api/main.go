package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/shifthub/internal/analytics"
	"github.com/geocoder89/shifthub/internal/app"
	"github.com/geocoder89/shifthub/internal/cache"
	"github.com/geocoder89/shifthub/internal/config"
	"github.com/geocoder89/shifthub/internal/db"
	httpx "github.com/geocoder89/shifthub/internal/http"
	"github.com/geocoder89/shifthub/internal/identity"
	"github.com/geocoder89/shifthub/internal/observability"
	"github.com/geocoder89/shifthub/internal/policy"
	"github.com/geocoder89/shifthub/internal/redisclient"
	"github.com/geocoder89/shifthub/internal/repo/memory"
	"github.com/geocoder89/shifthub/internal/repo/postgres"
	"github.com/geocoder89/shifthub/internal/shifts"
	"github.com/prometheus/client_golang/prometheus"
)

const serviceName = "shifthub-api"

func main() {
	// Load the config set up
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName: serviceName,
		Env:         cfg.Env,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	store, closeStore, err := openStore(ctx, cfg, log, prom)
	if err != nil {
		log.Error("store init failed", "store", cfg.Store, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	resultCache, closeCache := openCache(ctx, cfg, log)
	defer closeCache()

	pol, err := policy.New()
	if err != nil {
		log.Error("policy init failed", "err", err)
		os.Exit(1)
	}

	agg := analytics.NewAggregator(store, log,
		analytics.WithCache(resultCache, cfg.AnalyticsCacheTTL),
		analytics.WithLocation(cfg.Timezone),
	)

	// every clock-in/out drops the organization's cached analytics
	shiftSvc := shifts.NewService(store, log, prom, shifts.WithChangeHook(agg.Invalidate))

	svc := app.NewService(app.Deps{
		Store:     store,
		Policy:    pol,
		Shifts:    shiftSvc,
		Analytics: agg,
		Log:       log,
	})

	router := httpx.NewRouter(log, httpx.Deps{
		Service:  svc,
		Verifier: identity.NewVerifier(cfg.IdPSecret, cfg.IdPIssuer, cfg.IdPAudience),
		Prom:     prom,
	}, httpx.RouterConfig{
		Env:                  cfg.Env,
		ServiceName:          serviceName,
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
		RateLimitPerMinute:   cfg.RateLimitPerMinute,
		IPRateLimitPerMinute: cfg.IPRateLimitPerMinute,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.Store)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
		if err := shutdownTracer(ctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

// openStore returns the configured repository and a func releasing it.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger, prom *observability.Prom) (app.Store, func(), error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store; data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DBURL, int32(cfg.DBMaxConns))
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.Migrate(pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations applied")
	}

	return postgres.NewStore(pool, prom), pool.Close, nil
}

// openCache picks redis when REDIS_ADDR is set and reachable, the in-process cache otherwise.
func openCache(ctx context.Context, cfg config.Config, log *slog.Logger) (cache.Store, func()) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(), func() {}
	}

	client := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx); err != nil {
		log.Warn("redis unavailable, falling back to in-memory analytics cache", "addr", cfg.RedisAddr, "err", err)
		_ = client.Close()
		return cache.NewMemory(), func() {}
	}

	return cache.NewRedis(client, "shifthub:"), func() { _ = client.Close() }
}
