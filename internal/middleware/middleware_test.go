package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetTenantFromContext(r.Context())))
	})
}

func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth(map[string]string{"acme": "secret"})(okHandler())

	tests := []struct {
		name   string
		header string
		query  string
		ws     bool
		status int
		body   string
	}{
		{name: "bearer", header: "Bearer secret", status: http.StatusOK, body: "acme"},
		{name: "bare key", header: "secret", status: http.StatusOK, body: "acme"},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "wrong", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "query on websocket", query: "?api_key=secret", ws: true, status: http.StatusOK, body: "acme"},
		{name: "query without upgrade", query: "?api_key=secret", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/acme/sessions"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.ws {
				req.Header.Set("Upgrade", "websocket")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestRequireValidTenant(t *testing.T) {
	mux := chi.NewRouter()
	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(APIKeyAuth(map[string]string{"acme": "secret"}))
		rt.Use(RequireValidTenant)
		rt.Get("/ping", okHandler().ServeHTTP)
	})

	do := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer secret")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, do("/v1/acme/ping"))
	assert.Equal(t, http.StatusForbidden, do("/v1/other/ping"))
	assert.Equal(t, http.StatusBadRequest, do("/v1/bad%20tenant/ping"))
}

func TestTokenBucket(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tb := NewTokenBucket(2, 1, start)

	assert.True(t, tb.Allow(start))
	assert.True(t, tb.Allow(start))
	assert.False(t, tb.Allow(start))
	assert.True(t, tb.Allow(start.Add(time.Second)))
	assert.False(t, tb.Allow(start.Add(time.Second)))
}

func TestRateLimiterSweep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(ctx, 1, 1)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("acme:1.2.3.4"))
	assert.False(t, rl.Allow("acme:1.2.3.4"))
	assert.True(t, rl.Allow("acme:5.6.7.8"))

	now = now.Add(time.Hour)
	rl.sweep(10 * time.Minute)
	rl.mu.RLock()
	assert.Empty(t, rl.buckets)
	rl.mu.RUnlock()
}

func TestRateLimitMiddleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimitMiddleware(ctx, 1, 0)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/acme/sessions", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestHealthHandler(t *testing.T) {
	h := HealthHandler(map[string]HealthChecker{
		"database": CheckerFunc(func(context.Context) error { return nil }),
		"storage":  CheckerFunc(func(context.Context) error { return errors.New("bucket missing") }),
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["database"].Status)
	assert.Equal(t, "bucket missing", body.Checks["storage"].Message)
}

type countSessions int

func (c countSessions) Len() int { return int(c) }

func TestReadinessAndMetrics(t *testing.T) {
	rec := httptest.NewRecorder()
	ReadinessHandler(countSessions(3)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	var ready map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, float64(3), ready["sessions"])

	done := AnalysisStarted()
	m := GetMetrics(countSessions(1))
	assert.GreaterOrEqual(t, m["analyses_running"].(uint64), uint64(1))
	done(true)
	m = GetMetrics(nil)
	assert.GreaterOrEqual(t, m["analyses_failed"].(uint64), uint64(1))
	_, ok := m["sessions_live"]
	assert.False(t, ok)
}

func TestValidators(t *testing.T) {
	assert.NoError(t, ValidateTenantID("acme_01"))
	assert.Error(t, ValidateTenantID(""))
	assert.Error(t, ValidateTenantID("a/b"))

	assert.NoError(t, ValidateSessionID("0f8fad5b-d9cb-469f-a165-70867728950e"))
	assert.Error(t, ValidateSessionID("not-a-uuid"))

	assert.NoError(t, ValidateAnnotationID("a1b2-3"))
	assert.Error(t, ValidateAnnotationID("has space"))

	assert.NoError(t, ValidateFilename("policy.txt"))
	assert.Error(t, ValidateFilename("../etc/passwd"))
	assert.Error(t, ValidateFilename("dir/policy.txt"))
	assert.Error(t, ValidateFilename(" "))

	assert.Equal(t, " abc ", StripControl(" a\x00b\x07c "))
	assert.Equal(t, "la ", StripControl("l\x00a "))
	assert.Equal(t, 20, ValidateLimit(0))
	assert.Equal(t, 100, ValidateLimit(1000))
	assert.Equal(t, 1, ValidatePage(-3))
}
