package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scootsmagoo/filtersfast-next-sub010/internal/platform/httpx"
)

const (
	healthStatusOK       = "ok"
	healthStatusDegraded = "error"
	defaultCheckTimeout  = 2 * time.Second
)

// DependencyCheck checks one backing service for /readyz.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(ctx context.Context) error
}

// HealthHandlers serves liveness and readiness endpoints.
type HealthHandlers struct {
	checks    []DependencyCheck
	clock     func() time.Time
	startedAt time.Time
	version   string
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthChecks registers dependency checks run by /readyz.
func WithHealthChecks(checks ...DependencyCheck) HealthOption {
	return func(h *HealthHandlers) {
		for _, c := range checks {
			if c.Check != nil && strings.TrimSpace(c.Name) != "" {
				h.checks = append(h.checks, c)
			}
		}
	}
}

// WithHealthClock overrides the clock, mainly for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithHealthVersion sets the build version reported by both endpoints.
func WithHealthVersion(version string, startedAt time.Time) HealthOption {
	return func(h *HealthHandlers) {
		h.version = strings.TrimSpace(version)
		if !startedAt.IsZero() {
			h.startedAt = startedAt
		}
	}
}

// NewHealthHandlers constructs health handlers. Without checks /readyz always reports ok.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.startedAt.IsZero() {
		h.startedAt = h.clock()
	}
	if h.version == "" {
		h.version = "dev"
	}
	return h
}

// Healthz reports process liveness only.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    healthStatusOK,
		"version":   h.version,
		"uptime":    now.Sub(h.startedAt).Round(time.Second).String(),
		"timestamp": now.Format(time.RFC3339),
	})
}

type checkResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

// Readyz runs every dependency check concurrently and answers 503 when any fails.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	results := make([]checkResult, len(h.checks))

	var g errgroup.Group
	for i, check := range h.checks {
		g.Go(func() error {
			results[i] = h.run(r.Context(), check)
			return nil
		})
	}
	_ = g.Wait()

	status := healthStatusOK
	code := http.StatusOK
	checks := make(map[string]checkResult, len(results))
	for i, res := range results {
		checks[h.checks[i].Name] = res
		if res.Status != healthStatusOK {
			status = healthStatusDegraded
			code = http.StatusServiceUnavailable
		}
	}

	httpx.WriteJSON(w, code, map[string]any{
		"status":    status,
		"version":   h.version,
		"checks":    checks,
		"timestamp": h.clock().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandlers) run(parent context.Context, check DependencyCheck) checkResult {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	start := time.Now()
	err := check.Check(ctx)
	res := checkResult{Status: healthStatusOK, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		res.Status = healthStatusDegraded
		res.Error = err.Error()
	}
	return res
}
