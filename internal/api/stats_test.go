package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/libram-ai/libram/internal/log"
)

type fakeCounter struct {
	count int64
	err   error
}

func (f *fakeCounter) Count(context.Context) (int64, error) {
	return f.count, f.err
}

func getStats(t *testing.T, counter PassageCounter) *httptest.ResponseRecorder {
	t.Helper()
	h := &statsHandler{passages: counter, logger: log.NewNop()}
	rec := httptest.NewRecorder()
	h.get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	return rec
}

func TestStatsReturnsPassageCount(t *testing.T) {
	t.Parallel()

	rec := getStats(t, &fakeCounter{count: 42})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var resp statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalPassages != 42 {
		t.Errorf("total_passages = %d, want 42", resp.TotalPassages)
	}
}

func TestStatsReportsStoreFailure(t *testing.T) {
	t.Parallel()

	rec := getStats(t, &fakeCounter{err: errors.New("connection refused")})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body)
	}

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Error.Code != "stats_unavailable" {
		t.Errorf("expected stats_unavailable, got %q", resp.Error.Code)
	}
}

func TestStatsRouteOnlyWithStore(t *testing.T) {
	t.Parallel()

	srv, err := NewServer(ServerConfig{Pipeline: &fakePipeline{}, Logger: log.NewNop()})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a store, got %d", rec.Code)
	}

	srv, err = NewServer(ServerConfig{Pipeline: &fakePipeline{}, Passages: &fakeCounter{count: 7}, Logger: log.NewNop()})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with a store, got %d: %s", rec.Code, rec.Body)
	}
}
