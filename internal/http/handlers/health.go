package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is any dependency that can report whether it is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type dependency struct {
	name string
	ping Pinger
	// optional dependencies report "degraded" instead of failing readiness
	optional bool
}

type HealthHandler struct {
	deps      []dependency
	startTime time.Time
	version   string
}

// NewHealthHandler checks the profile store and, when configured, Redis.
// Redis only backs rate limits, fan-out and revocations, so losing it
// degrades the service without taking it out of rotation.
func NewHealthHandler(store, redis Pinger, version string) *HealthHandler {
	deps := []dependency{{name: "store", ping: store}}
	if redis != nil {
		deps = append(deps, dependency{name: "redis", ping: redis, optional: true})
	}
	return &HealthHandler{deps: deps, startTime: time.Now(), version: version}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Liveness answers as long as the process serves requests
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness pings every dependency and reports each one
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks, ready := h.checkAll(ctx)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	checks["memory_alloc_mb"] = fmt.Sprintf("%.2f", float64(m.Alloc)/1024/1024)
	checks["goroutines"] = fmt.Sprint(runtime.NumGoroutine())

	res := HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
	if !ready {
		res.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Health is the short form used by the web client: the store must answer
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if _, ready := h.checkAll(ctx); !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}

func (h *HealthHandler) checkAll(ctx context.Context) (map[string]string, bool) {
	checks := make(map[string]string, len(h.deps)+2)
	ready := true
	for _, d := range h.deps {
		err := d.ping.Ping(ctx)
		switch {
		case err == nil:
			checks[d.name] = "healthy"
		case d.optional:
			checks[d.name] = "degraded: " + err.Error()
		default:
			checks[d.name] = "unhealthy: " + err.Error()
			ready = false
		}
	}
	return checks, ready
}
