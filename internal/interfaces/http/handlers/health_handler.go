package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// HealthChecker reports whether one dependency is reachable.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a ping function to HealthChecker.
type CheckFunc struct {
	Component string
	Fn        func(ctx context.Context) error
}

func (c CheckFunc) Name() string                    { return c.Component }
func (c CheckFunc) Check(ctx context.Context) error { return c.Fn(ctx) }

// HealthHandler serves the liveness, readiness and detail probes.
type HealthHandler struct {
	checkers []HealthChecker
	version  string
	startAt  time.Time
	timeout  time.Duration
}

func NewHealthHandler(version string, checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{
		checkers: checkers,
		version:  version,
		startAt:  time.Now(),
		timeout:  5 * time.Second,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ReadinessResponse struct {
	Status     string                    `json:"status"`
	Components map[string]ComponentCheck `json:"components,omitempty"`
}

type DetailResponse struct {
	Status     string                    `json:"status"`
	Version    string                    `json:"version"`
	Uptime     string                    `json:"uptime"`
	Components map[string]ComponentCheck `json:"components"`
}

// Liveness never touches dependencies.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{Status: "alive", Version: h.version, Uptime: h.uptime()})
}

// Readiness answers 503 when any dependency fails.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	components, ok := h.checkAll(r.Context())
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, ReadinessResponse{Status: "not_ready", Components: components})
		return
	}
	writeJSON(w, http.StatusOK, ReadinessResponse{Status: "ready", Components: components})
}

// Detail reports every dependency with its latency.
func (h *HealthHandler) Detail(w http.ResponseWriter, r *http.Request) {
	components, ok := h.checkAll(r.Context())
	resp := DetailResponse{Status: statusHealthy, Version: h.version, Uptime: h.uptime(), Components: components}
	code := http.StatusOK
	if !ok {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (h *HealthHandler) uptime() string {
	return time.Since(h.startAt).Truncate(time.Second).String()
}

// checkAll runs the checkers concurrently under one timeout.
func (h *HealthHandler) checkAll(ctx context.Context) (map[string]ComponentCheck, bool) {
	results := make(map[string]ComponentCheck, len(h.checkers))
	if len(h.checkers) == 0 {
		return results, true
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
		ok = true
	)
	for _, c := range h.checkers {
		wg.Add(1)
		go func(c HealthChecker) {
			defer wg.Done()
			start := time.Now()
			err := c.Check(ctx)
			cc := ComponentCheck{Status: statusHealthy, Latency: time.Since(start).Truncate(time.Microsecond).String()}
			if err != nil {
				cc.Status = statusUnhealthy
				cc.Error = err.Error()
			}
			mu.Lock()
			results[c.Name()] = cc
			if err != nil {
				ok = false
			}
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return results, ok
}

//Personal.AI order the ending
