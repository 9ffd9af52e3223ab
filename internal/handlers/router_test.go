package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestNewRouter_DefaultMounts(t *testing.T) {
	router := NewRouter()

	t.Run("healthz", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("expected content-type application/json, got %s", ct)
		}
	})

	t.Run("default not implemented group", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/promotions/validate", nil))
		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("expected status 501, got %d", rr.Code)
		}
	})

	t.Run("unknown route", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rr.Code)
		}
		if body := decodeBody(t, rr); body["error"] != errorNotFoundCode {
			t.Fatalf("unexpected body %v", body)
		}
	})
}

func TestNewRouter_GroupsAndMiddlewares(t *testing.T) {
	var adminHits, publicHits int
	counting := func(counter *int) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				*counter++
				next.ServeHTTP(w, r)
			})
		}
	}
	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }

	router := NewRouter(
		WithPublicMiddlewares(counting(&publicHits)),
		WithAdminMiddlewares(counting(&adminHits)),
		WithPromotionRoutes(func(r chi.Router) { r.Post("/validate", ok) }),
		WithTaxRoutes(func(r chi.Router) { r.Post("/calculate", ok) }),
		WithAdminRoutes(func(r chi.Router) { r.Get("/a", ok) }),
		WithAdminRoutes(func(r chi.Router) { r.Get("/b", ok) }),
	)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/promotions/validate"},
		{http.MethodPost, "/api/v1/tax/calculate"},
		{http.MethodGet, "/api/v1/admin/a"},
		{http.MethodGet, "/api/v1/admin/b"},
	} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		if rr.Code != http.StatusNoContent {
			t.Fatalf("%s %s: expected 204, got %d", tc.method, tc.path, rr.Code)
		}
	}
	if publicHits != 2 || adminHits != 2 {
		t.Fatalf("expected 2 public and 2 admin middleware hits, got %d and %d", publicHits, adminHits)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/internal/promotions/redeem", nil))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected unregistered internal group to answer 501, got %d", rr.Code)
	}
}

func TestHealthHandlers_Readyz(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("all healthy", func(t *testing.T) {
		h := NewHealthHandlers(
			WithHealthClock(func() time.Time { return now }),
			WithHealthChecks(DependencyCheck{Name: "firestore", Check: func(context.Context) error { return nil }}),
		)
		rr := httptest.NewRecorder()
		h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("one failing", func(t *testing.T) {
		h := NewHealthHandlers(
			WithHealthClock(func() time.Time { return now }),
			WithHealthChecks(
				DependencyCheck{Name: "firestore", Check: func(context.Context) error { return nil }},
				DependencyCheck{Name: "postgres", Check: func(context.Context) error { return errors.New("connection refused") }},
			),
		)
		rr := httptest.NewRecorder()
		h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rr.Code)
		}
		body := decodeBody(t, rr)
		checks, _ := body["checks"].(map[string]any)
		pg, _ := checks["postgres"].(map[string]any)
		if pg["status"] != "error" || pg["error"] != "connection refused" {
			t.Fatalf("unexpected postgres check %v", pg)
		}
		fs, _ := checks["firestore"].(map[string]any)
		if fs["status"] != "ok" {
			t.Fatalf("unexpected firestore check %v", fs)
		}
	})

	t.Run("check timeout", func(t *testing.T) {
		h := NewHealthHandlers(WithHealthChecks(DependencyCheck{
			Name:    "redis",
			Timeout: 10 * time.Millisecond,
			Check: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		}))
		rr := httptest.NewRecorder()
		h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rr.Code)
		}
	})
}
