/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/friendsincode/slotplanner/internal/slots"
)

func TestSlotListenerCountsMutations(t *testing.T) {
	m := NewMetrics()
	mgr := slots.NewManager(nil, slots.Window{StartTime: "10:00", EndTime: "12:00"},
		slots.WithListener(m.SlotListener()))

	for i := 0; i < 3; i++ {
		if _, err := mgr.AddSlot(); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := mgr.SortByStartTime(); err != nil {
		t.Fatalf("sort: %v", err)
	}

	if got := testutil.ToFloat64(m.SlotMutationsTotal.WithLabelValues("add")); got != 3 {
		t.Errorf("add mutations = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.SlotMutationsTotal.WithLabelValues("sort")); got != 1 {
		t.Errorf("sort mutations = %v, want 1", got)
	}
}

func TestTemplateObservations(t *testing.T) {
	m := NewMetrics()
	m.ObserveTemplate("save", nil)
	m.ObserveTemplate("save", errors.New("boom"))
	m.TemplateCorrupt(errors.New("bad json"))

	if got := testutil.ToFloat64(m.TemplateOperations.WithLabelValues("save", "ok")); got != 1 {
		t.Errorf("ok saves = %v", got)
	}
	if got := testutil.ToFloat64(m.TemplateOperations.WithLabelValues("save", "error")); got != 1 {
		t.Errorf("failed saves = %v", got)
	}
	if got := testutil.ToFloat64(m.TemplateDecodeFailures); got != 1 {
		t.Errorf("decode failures = %v", got)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/events/{eventID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/abc", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues("GET", "/events/{eventID}", "418")); got != 1 {
		t.Errorf("requests = %v", got)
	}

	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "slotplanner_api_requests_total") {
		t.Fatal("metrics output missing request counter")
	}
}

func TestDisabledTracerIsNoop(t *testing.T) {
	tp, err := InitTracer(context.Background(), TracerConfig{Enabled: false}, zerolog.Nop())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if tp.Enabled() {
		t.Fatal("disabled tracer reports enabled")
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	_, span := StartSpan(context.Background(), "test")
	EndSpan(span, errors.New("recorded on a no-op span"))
}
