// Package health serves the liveness and readiness surface consumed by the
// end-to-end checker and by operators. The ETL core never calls it.
package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GraphPinger checks graph store connectivity.
type GraphPinger interface {
	VerifyConnectivity(ctx context.Context) error
}

// DatabasePinger checks relational store connectivity.
type DatabasePinger interface {
	PingContext(ctx context.Context) error
}

// Checker handles health check endpoints
type Checker struct {
	db        DatabasePinger
	graph     GraphPinger
	version   string
	startTime time.Time
	ready     atomic.Bool
}

// NewChecker creates a new health checker
func NewChecker(db DatabasePinger, graph GraphPinger, version string) *Checker {
	return &Checker{
		db:        db,
		graph:     graph,
		version:   version,
		startTime: time.Now(),
	}
}

// SetReady sets the readiness state
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

// RegisterRoutes registers the health endpoints. The root and /health
// payloads are fixed; the e2e checker matches them verbatim.
func (c *Checker) RegisterRoutes(e *echo.Echo) {
	e.GET("/", c.Root)
	e.GET("/health", c.Ok)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/api/v1/health", c.Health)
	e.GET("/api/v1/health/live", c.Live)
	e.GET("/api/v1/health/ready", c.Ready)
}

// Root returns the static liveness payload
func (c *Checker) Root(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Ok returns the static readiness payload
func (c *Checker) Ok(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// HealthStatus represents the detailed health check response
type HealthStatus struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Checks     map[string]*CheckResult `json:"checks"`
	ReportedAt time.Time               `json:"reported_at"`
}

// CheckResult represents an individual check result
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Health returns the overall health status with per-store connectivity checks
func (c *Checker) Health(ctx echo.Context) error {
	status := &HealthStatus{
		Status:     "healthy",
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Checks:     make(map[string]*CheckResult),
		ReportedAt: time.Now(),
	}

	reqCtx := ctx.Request().Context()
	status.Checks["postgres"] = c.check(reqCtx, func(checkCtx context.Context) error {
		if c.db == nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "database not configured")
		}
		return c.db.PingContext(checkCtx)
	})
	status.Checks["graph"] = c.check(reqCtx, func(checkCtx context.Context) error {
		if c.graph == nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "graph not configured")
		}
		return c.graph.VerifyConnectivity(checkCtx)
	})

	httpStatus := http.StatusOK
	for _, result := range status.Checks {
		if result.Status != "healthy" {
			status.Status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	return ctx.JSON(httpStatus, status)
}

// check runs a single connectivity probe with a bounded timeout
func (c *Checker) check(ctx context.Context, probe func(context.Context) error) *CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := probe(checkCtx); err != nil {
		return &CheckResult{
			Status:  "unhealthy",
			Message: err.Error(),
		}
	}
	return &CheckResult{
		Status:  "healthy",
		Latency: time.Since(start).String(),
	}
}

// Live returns the liveness status (is the process running)
func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready returns the readiness status (have the run's dependencies come up)
func (c *Checker) Ready(ctx echo.Context) error {
	if c.ready.Load() {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
	}
	return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}
