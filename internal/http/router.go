package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/shifthub/internal/app"
	"github.com/geocoder89/shifthub/internal/http/handlers"
	"github.com/geocoder89/shifthub/internal/http/middlewares"
	"github.com/geocoder89/shifthub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

type RouterConfig struct {
	Env                string
	ServiceName        string
	CORSAllowedOrigins []string
	// RateLimitPerMinute applies per authenticated identity.
	RateLimitPerMinute int
	// IPRateLimitPerMinute applies per client address before the token is
	// checked, so rejected credentials are throttled too.
	IPRateLimitPerMinute int
}

type Deps struct {
	Service  *app.Service
	Verifier middlewares.TokenVerifier
	Prom     *observability.Prom
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

func NewRouter(log *slog.Logger, deps Deps, cfg RouterConfig) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "shifthub-api"
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders(cfg.Env == "prod"))
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))

	// health
	var ping func(ctx context.Context) error
	if deps.Service != nil {
		ping = deps.Service.Ping
	}
	health := handlers.NewHealthHandler(ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	limit := cfg.RateLimitPerMinute
	if limit <= 0 {
		limit = 120
	}
	ipLimit := cfg.IPRateLimitPerMinute
	if ipLimit <= 0 {
		ipLimit = 5 * limit
	}
	limiter := middlewares.NewRateLimiter(limit, time.Minute)
	ipLimiter := middlewares.NewRateLimiter(ipLimit, time.Minute)
	identity := middlewares.NewIdentityMiddleware(deps.Verifier)

	api := r.Group("/api")
	api.Use(
		ipLimiter.Middleware(middlewares.KeyByIP),
		middlewares.MaxBodyBytes(maxBodyBytes),
		middlewares.RequireJSON(),
		identity.RequireIdentity(),
		limiter.Middleware(middlewares.KeyByIdentityOrIP),
	)

	users := handlers.NewUsersHandler(deps.Service)
	orgs := handlers.NewOrganizationsHandler(deps.Service)
	shifts := handlers.NewShiftsHandler(deps.Service)
	stats := handlers.NewAnalyticsHandler(deps.Service)

	api.GET("/me", users.GetMe)
	api.POST("/me", users.CreateMe)
	api.PUT("/users/:id/role", users.UpdateRole)

	api.GET("/organization", orgs.GetCurrent)
	api.POST("/organization/members", orgs.AssignMember)
	api.GET("/organizations", orgs.List)
	api.POST("/organizations", orgs.Create)

	api.GET("/shifts", shifts.List)
	api.GET("/shifts/active", shifts.Active)
	api.GET("/shifts/current", shifts.Current)
	api.GET("/shifts/can-clock-in", shifts.CanClockIn)
	api.POST("/shifts/clock-in", shifts.ClockIn)
	api.POST("/shifts/clock-out", shifts.ClockOut)

	api.GET("/analytics/shifts", stats.Shifts)
	api.GET("/analytics/users", stats.Users)

	return r
}
