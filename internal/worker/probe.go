// Package worker holds the process plumbing of cmd/worker: health probes and startup retry.
package worker

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe serves liveness, readiness and metrics for the worker process.
type Probe struct {
	store        Pinger
	gatherer     prometheus.Gatherer
	shuttingDown atomic.Bool
}

func NewProbe(store Pinger, gatherer prometheus.Gatherer) *Probe {
	return &Probe{store: store, gatherer: gatherer}
}

// MarkShuttingDown flips /readyz to 503 for the rest of the process lifetime.
func (p *Probe) MarkShuttingDown() {
	p.shuttingDown.Store(true)
}

func (p *Probe) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	// liveness: process is up
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.GET("/readyz", func(c *gin.Context) {
		if p.shuttingDown.Load() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting_down"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()

		if err := p.store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store_unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if p.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})))
	}

	return r
}
