package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRegistryExposesOperationCounters(t *testing.T) {
	registry := NewRegistry()
	registry.ObserveOperation("cast_vote", "ok", 5*time.Millisecond)
	registry.ObserveOperation("cast_vote", "already_voted", time.Millisecond)
	registry.ObserveRelay(3, nil)
	registry.ObserveRelay(0, errors.New("broker down"))

	rec := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`d21_operations_total{code="ok",operation="cast_vote"} 1`,
		`d21_operations_total{code="already_voted",operation="cast_vote"} 1`,
		`d21_outbox_published_total 3`,
		`d21_outbox_relay_failures_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics output to contain %q", want)
		}
	}
}

func TestNilRegistryIsNoop(t *testing.T) {
	var registry *Registry
	registry.ObserveOperation("finalize_election", "ok", time.Millisecond)
	registry.ObserveRelay(1, nil)
}

func TestMetricsServerServesRelayCounters(t *testing.T) {
	registry := NewRegistry()
	registry.ObserveRelay(2, nil)
	server := registry.NewServer(":9090")

	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "d21_outbox_published_total 2") {
		t.Fatalf("expected relay counter in output")
	}

	rec = httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/elections", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 outside /metrics, got %d", rec.Code)
	}
}

func TestServeStopsWhenContextIsCancelled(t *testing.T) {
	registry := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := registry.Serve(ctx, "127.0.0.1:0", nil); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
}
