/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/slotplanner/internal/events"
	"github.com/friendsincode/slotplanner/internal/eventstore"
	"github.com/friendsincode/slotplanner/internal/models"
	"github.com/friendsincode/slotplanner/internal/templates"
)

type testEnv struct {
	api    *API
	router http.Handler
	store  *eventstore.Store
	repo   *templates.Store
	bus    *events.Bus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Event{}); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}

	store := eventstore.New(db, zerolog.Nop())
	repo := templates.NewStore(templates.NewMemoryKV(), templates.DefaultKey, zerolog.Nop())
	bus := events.NewBus()

	a := New(store, repo, bus, zerolog.Nop())
	r := chi.NewRouter()
	a.Routes(r)
	return &testEnv{api: a, router: r, store: store, repo: repo, bus: bus}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) createEvent(t *testing.T) string {
	t.Helper()

	rr := e.do(t, http.MethodPost, "/events", map[string]any{
		"name":       "Block Party",
		"start_date": "2026-07-11",
		"start_time": "18:00",
		"end_time":   "23:00",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create event: status %d body %s", rr.Code, rr.Body.String())
	}
	var event models.Event
	if err := json.Unmarshal(rr.Body.Bytes(), &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return event.ID
}

type slotsResponse struct {
	Slot  models.Slot   `json:"slot"`
	Slots []models.Slot `json:"slots"`
	Error string        `json:"error"`
}

func decodeSlots(t *testing.T, rr *httptest.ResponseRecorder) slotsResponse {
	t.Helper()
	var resp slotsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return resp
}

func TestCreateEvent(t *testing.T) {
	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"date and times", map[string]any{"name": "Gig", "start_date": "2026-07-11", "start_time": "20:00", "end_time": "23:00"}, http.StatusCreated},
		{"overnight end rolls over", map[string]any{"name": "Rave", "start_date": "2026-07-11", "start_time": "22:00", "end_time": "04:00"}, http.StatusCreated},
		{"rfc3339", map[string]any{"name": "Talk", "start_date": "2026-07-11T09:00:00Z"}, http.StatusCreated},
		{"tags and timezone", map[string]any{"name": "Fair", "start_date": "2026-07-11", "start_time": "10:00", "timezone": "Europe/Lisbon", "tags": []string{"market", "food"}}, http.StatusCreated},
		{"missing name", map[string]any{"start_date": "2026-07-11", "start_time": "20:00"}, http.StatusBadRequest},
		{"date without start time", map[string]any{"name": "Gig", "start_date": "2026-07-11"}, http.StatusBadRequest},
		{"bad date", map[string]any{"name": "Gig", "start_date": "11/07/2026", "start_time": "20:00"}, http.StatusBadRequest},
		{"unknown timezone", map[string]any{"name": "Gig", "start_date": "2026-07-11", "start_time": "20:00", "timezone": "Mars/Base"}, http.StatusBadRequest},
		{"bad recurrence", map[string]any{"name": "Gig", "start_date": "2026-07-11", "start_time": "20:00", "recurrence": "sometimes"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rr := env.do(t, http.MethodPost, "/events", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.status, rr.Body.String())
			}
		})
	}
}

func TestCreateEventPublishes(t *testing.T) {
	env := newTestEnv(t)
	sub := env.bus.Subscribe(events.EventEventCreated)

	id := env.createEvent(t)

	select {
	case p := <-sub:
		if p["event_id"] != id {
			t.Fatalf("payload event_id = %v, want %s", p["event_id"], id)
		}
	case <-time.After(time.Second):
		t.Fatal("no event.created published")
	}
}

func TestGetEventNotFound(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/events/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestSlotLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := env.createEvent(t)
	base := "/events/" + id + "/slots"

	rr := env.do(t, http.MethodPost, base, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("add: status %d body %s", rr.Code, rr.Body.String())
	}
	added := decodeSlots(t, rr)
	if added.Slot.StartTime != "18:00" || added.Slot.EndTime != "23:00" || added.Slot.Type != models.SlotTypeOther {
		t.Fatalf("unexpected new slot %+v", added.Slot)
	}
	slotID := added.Slot.ID

	rr = env.do(t, http.MethodPatch, base+"/"+slotID+"/time", map[string]string{"field": "startTime", "value": "19:30"})
	if rr.Code != http.StatusOK {
		t.Fatalf("set time: status %d body %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPut, base+"/"+slotID, map[string]any{"title": "Headliner", "type": "break"})
	if rr.Code != http.StatusOK {
		t.Fatalf("update: status %d body %s", rr.Code, rr.Body.String())
	}

	_, stored, err := env.store.LoadSlots(context.Background(), id)
	if err != nil {
		t.Fatalf("load slots: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("stored %d slots, want 1", len(stored))
	}
	got := stored[0]
	if got.StartTime != "19:30" || got.Title != "Headliner" || got.Type != models.SlotTypeBreak {
		t.Fatalf("stored slot %+v", got)
	}

	rr = env.do(t, http.MethodDelete, base+"/"+slotID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: status %d body %s", rr.Code, rr.Body.String())
	}
	if resp := decodeSlots(t, rr); len(resp.Slots) != 0 {
		t.Fatalf("slots after delete = %d, want 0", len(resp.Slots))
	}
}

func TestSlotErrors(t *testing.T) {
	env := newTestEnv(t)
	id := env.createEvent(t)
	base := "/events/" + id + "/slots"

	locked := []models.Slot{{ID: "slot_booked", StartTime: "18:00", EndTime: "19:00", IsBooked: true, Type: models.SlotTypePerformance}}
	if err := env.store.SaveSlots(context.Background(), id, locked); err != nil {
		t.Fatalf("seed slots: %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"bad field", http.MethodPatch, base + "/slot_booked/time", map[string]string{"field": "duration", "value": "1"}, http.StatusBadRequest, "invalid_field"},
		{"locked time", http.MethodPatch, base + "/slot_booked/time", map[string]string{"field": "endTime", "value": "20:00"}, http.StatusConflict, "slot_locked"},
		{"locked update", http.MethodPut, base + "/slot_booked", map[string]any{"title": "x"}, http.StatusConflict, "slot_locked"},
		{"locked delete", http.MethodDelete, base + "/slot_booked", nil, http.StatusConflict, "slot_locked"},
		{"missing slot", http.MethodDelete, base + "/slot_missing", nil, http.StatusNotFound, "slot_not_found"},
		{"missing event", http.MethodPost, "/events/nope/slots", nil, http.StatusNotFound, "event_not_found"},
		{"invalid json", http.MethodPut, base + "/slot_booked", "{", http.StatusBadRequest, "invalid_json"},
		{"no template", http.MethodPost, base + "/apply-template", map[string]int{"index": 3}, http.StatusNotFound, "template_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.status, rr.Body.String())
			}
			if resp := decodeSlots(t, rr); resp.Error != tt.code {
				t.Fatalf("error = %q, want %q", resp.Error, tt.code)
			}
		})
	}
}

func TestSortAndValidate(t *testing.T) {
	env := newTestEnv(t)
	id := env.createEvent(t)
	base := "/events/" + id + "/slots"

	seed := []models.Slot{
		{ID: "b", StartTime: "20:00", EndTime: "21:00", Type: models.SlotTypePerformance},
		{ID: "a", StartTime: "18:00", EndTime: "20:30", Type: models.SlotTypePerformance},
	}
	if err := env.store.SaveSlots(context.Background(), id, seed); err != nil {
		t.Fatalf("seed slots: %v", err)
	}

	rr := env.do(t, http.MethodGet, base, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: status %d", rr.Code)
	}
	var listed struct {
		Validation models.ValidationResult `json:"validation"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if listed.Validation.Valid {
		t.Fatal("overlapping slots reported valid")
	}

	rr = env.do(t, http.MethodPost, base+"/sort", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("sort: status %d", rr.Code)
	}
	sorted := decodeSlots(t, rr).Slots
	if len(sorted) != 2 || sorted[0].ID != "a" || sorted[1].ID != "b" {
		t.Fatalf("sorted = %+v", sorted)
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	id := env.createEvent(t)

	seed := []models.Slot{{ID: "s1", StartTime: "18:00", EndTime: "19:00", Title: "Opener", Type: models.SlotTypePerformance}}
	if err := env.store.SaveSlots(context.Background(), id, seed); err != nil {
		t.Fatalf("seed slots: %v", err)
	}

	rr := env.do(t, http.MethodPost, "/slot-templates", map[string]string{"name": "Evening", "event_id": id})
	if rr.Code != http.StatusCreated {
		t.Fatalf("save template: status %d body %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/slot-templates", map[string]string{"name": "  "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("blank name: status %d, want 400", rr.Code)
	}

	other := env.createEvent(t)
	rr = env.do(t, http.MethodPost, "/events/"+other+"/slots/apply-template", map[string]int{"index": 0})
	if rr.Code != http.StatusOK {
		t.Fatalf("apply: status %d body %s", rr.Code, rr.Body.String())
	}
	applied := decodeSlots(t, rr).Slots
	if len(applied) != 1 || applied[0].Title != "Opener" || applied[0].ID == "s1" {
		t.Fatalf("applied = %+v", applied)
	}

	rr = env.do(t, http.MethodGet, "/slot-templates/export", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "name: Evening") {
		t.Fatalf("export: status %d body %s", rr.Code, rr.Body.String())
	}
	exported := rr.Body.String()

	rr = env.do(t, http.MethodDelete, "/slot-templates/0", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rr.Code)
	}
	list, err := env.repo.List(context.Background())
	if err != nil || len(list) != 0 {
		t.Fatalf("templates after delete = %v, %v", list, err)
	}

	rr = env.do(t, http.MethodPost, "/slot-templates/import", exported)
	if rr.Code != http.StatusOK {
		t.Fatalf("import: status %d body %s", rr.Code, rr.Body.String())
	}
	list, _ = env.repo.List(context.Background())
	if len(list) != 1 || list[0].Name != "Evening" {
		t.Fatalf("templates after import = %+v", list)
	}
}

func TestOccurrences(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/events", map[string]any{
		"name":       "Open Mic",
		"start_date": "2026-07-06",
		"start_time": "19:00",
		"end_time":   "22:00",
		"recurrence": "weekly",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rr.Code, rr.Body.String())
	}
	var event models.Event
	_ = json.Unmarshal(rr.Body.Bytes(), &event)

	rr = env.do(t, http.MethodGet, "/events/"+event.ID+"/occurrences?from=2026-07-01&to=2026-07-31", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("occurrences: status %d body %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Mondays from July 6: 6, 13, 20, 27.
	if resp.Count != 4 {
		t.Fatalf("count = %d, want 4", resp.Count)
	}

	rr = env.do(t, http.MethodGet, "/events/"+event.ID+"/occurrences?from=2026-07-31&to=2026-07-01", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("reversed range: status %d, want 400", rr.Code)
	}
}

func TestKeyedMutexReleases(t *testing.T) {
	var k keyedMutex
	unlock := k.lock("a")
	unlock()
	unlock = k.lock("a")
	unlock()
	if len(k.locks) != 0 {
		t.Fatalf("locks retained: %d", len(k.locks))
	}
}

func TestCreateEventInTimezone(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/events", map[string]any{
		"name":       "Biergarten",
		"start_date": "2026-07-11",
		"start_time": "18:00",
		"end_time":   "23:00",
		"timezone":   "Europe/Berlin",
		"tags":       []string{"music", " outdoor "},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rr.Code, rr.Body.String())
	}
	var created models.Event
	_ = json.Unmarshal(rr.Body.Bytes(), &created)
	if got := created.StartDate.UTC().Format("15:04"); got != "16:00" {
		t.Fatalf("stored start = %s UTC, want 16:00", got)
	}

	rr = env.do(t, http.MethodGet, "/events/"+created.ID, nil)
	var resp struct {
		Event  models.Event `json:"event"`
		Window struct {
			StartTime string `json:"StartTime"`
			EndTime   string `json:"EndTime"`
		} `json:"window"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Window.StartTime != "18:00" || resp.Window.EndTime != "23:00" {
		t.Fatalf("window = %s-%s, want 18:00-23:00", resp.Window.StartTime, resp.Window.EndTime)
	}
	if len(resp.Event.Tags) != 2 || resp.Event.Tags[1] != "outdoor" {
		t.Fatalf("tags = %q", resp.Event.Tags)
	}

	added := decodeSlots(t, env.do(t, http.MethodPost, "/events/"+created.ID+"/slots", nil))
	if added.Slot.StartTime != "18:00" || added.Slot.EndTime != "23:00" {
		t.Fatalf("new slot = %s-%s, want 18:00-23:00", added.Slot.StartTime, added.Slot.EndTime)
	}
}

func TestConfiguredDefaultTimezone(t *testing.T) {
	env := newTestEnv(t)
	if err := env.api.Configure(Settings{Timezone: "America/New_York"}); err != nil {
		t.Fatalf("configure: %v", err)
	}

	rr := env.do(t, http.MethodPost, "/events", map[string]any{
		"name":       "Stoop Sale",
		"start_date": "2026-07-11",
		"start_time": "09:00",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rr.Code, rr.Body.String())
	}
	var created models.Event
	_ = json.Unmarshal(rr.Body.Bytes(), &created)
	if created.Timezone != "America/New_York" {
		t.Fatalf("timezone = %q", created.Timezone)
	}
	// EDT is UTC-4 in July.
	if got := created.StartDate.UTC().Hour(); got != 13 {
		t.Fatalf("start hour UTC = %d, want 13", got)
	}
}

func TestConfigureRejectsBadSettings(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name     string
		settings Settings
	}{
		{"unknown timezone", Settings{Timezone: "Atlantis/Central"}},
		{"negative minimum", Settings{MinSlotMinutes: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := env.api.Configure(tt.settings); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSlotDurationLimitsReported(t *testing.T) {
	env := newTestEnv(t)
	if err := env.api.Configure(Settings{MinSlotMinutes: 30, MaxSlotMinutes: 120}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	id := env.createEvent(t)
	base := "/events/" + id + "/slots"

	rules := func() []models.RuleType {
		rr := env.do(t, http.MethodGet, base, nil)
		var resp struct {
			Validation models.ValidationResult `json:"validation"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		var out []models.RuleType
		for _, v := range resp.Validation.Warnings {
			out = append(out, v.RuleType)
		}
		return out
	}

	added := decodeSlots(t, env.do(t, http.MethodPost, base, nil))
	if got := rules(); !slices.Contains(got, models.RuleTypeMaxDuration) {
		t.Fatalf("warnings for a 5 hour slot = %v, want max_duration", got)
	}

	rr := env.do(t, http.MethodPatch, base+"/"+added.Slot.ID+"/time", map[string]string{"field": "endTime", "value": "18:10"})
	if rr.Code != http.StatusOK {
		t.Fatalf("set time: status %d body %s", rr.Code, rr.Body.String())
	}
	if got := rules(); !slices.Contains(got, models.RuleTypeMinDuration) {
		t.Fatalf("warnings for a 10 minute slot = %v, want min_duration", got)
	}
}
