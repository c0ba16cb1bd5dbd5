/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventstore

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/slotplanner/internal/models"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Event{}); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}
	return New(db, zerolog.Nop()), db
}

func newEvent(name string) *models.Event {
	end := time.Date(2026, 6, 5, 23, 0, 0, 0, time.UTC)
	return &models.Event{
		Name:      name,
		StartDate: time.Date(2026, 6, 5, 18, 0, 0, 0, time.UTC),
		EndDate:   &end,
	}
}

func TestCreateAssignsDefaults(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	event := newEvent("  Summer Jam ")
	if err := store.Create(ctx, event); err != nil {
		t.Fatalf("create: %v", err)
	}
	if event.ID == "" || event.Name != "Summer Jam" || event.Type != "in-person" || event.Slots != "[]" {
		t.Fatalf("unexpected event %+v", event)
	}

	got, err := store.Get(ctx, event.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.StartTime() != "18:00" || got.EndTime() != "23:00" {
		t.Fatalf("window = %s-%s", got.StartTime(), got.EndTime())
	}
}

func TestCreateValidation(t *testing.T) {
	store, _ := newTestStore(t)
	before := time.Date(2026, 6, 4, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		event *models.Event
	}{
		{"blank name", newEvent("  ")},
		{"missing start", &models.Event{Name: "x"}},
		{"end before start", func() *models.Event { e := newEvent("x"); e.EndDate = &before; return e }()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.Create(context.Background(), tt.event); !errors.Is(err, ErrInvalidEvent) {
				t.Fatalf("error = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

func TestGetNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if err := store.SaveSlots(context.Background(), "missing", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("save error = %v, want ErrNotFound", err)
	}
}

func TestListOrdersByStart(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	late := newEvent("late")
	late.StartDate = late.StartDate.Add(48 * time.Hour)
	late.EndDate = nil
	early := newEvent("early")
	for _, e := range []*models.Event{late, early} {
		if err := store.Create(ctx, e); err != nil {
			t.Fatalf("create %s: %v", e.Name, err)
		}
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "early" || list[1].Name != "late" {
		t.Fatalf("unexpected order %+v", list)
	}
}

func TestSaveThenLoadSlots(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	event := newEvent("Open Mic")
	if err := store.Create(ctx, event); err != nil {
		t.Fatalf("create: %v", err)
	}
	created := event.UpdatedAt

	collection := []models.Slot{
		{ID: "slot_a", StartTime: "18:00", EndTime: "18:30", Title: "Sign-up", Type: models.SlotTypeSetup},
		{ID: "slot_b", StartTime: "18:30", EndTime: "19:00", Type: models.SlotTypePerformance, IsPending: true, ArtistID: "artist-7"},
	}
	time.Sleep(5 * time.Millisecond)
	if err := store.SaveSlots(ctx, event.ID, collection); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, got, err := store.LoadSlots(ctx, event.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, collection) {
		t.Fatalf("slots = %+v\nwant %+v", got, collection)
	}
	if !loaded.UpdatedAt.After(created) {
		t.Fatal("updated_at not bumped")
	}
}

func TestLoadSlotsCorruptBlob(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	event := newEvent("Broken")
	if err := store.Create(ctx, event); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.Model(&models.Event{}).Where("id = ?", event.ID).Update("slots", "{oops").Error; err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	_, got, err := store.LoadSlots(ctx, event.ID)
	if err != nil {
		t.Fatalf("corrupt blob must not fail: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty collection, got %#v", got)
	}
}

func TestDecodeSlotsNormalisesTypes(t *testing.T) {
	got, err := DecodeSlots(`[{"id":"s1","startTime":"09:00","endTime":"10:00","type":"karaoke"}]`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got[0].Type != models.SlotTypeOther {
		t.Fatalf("type = %q", got[0].Type)
	}
	if empty, _ := DecodeSlots("  "); len(empty) != 0 || empty == nil {
		t.Fatalf("blank blob = %#v", empty)
	}
	if blob, _ := EncodeSlots(nil); blob != "[]" {
		t.Fatalf("nil encodes as %q", blob)
	}
}

type mapCache struct {
	list   []models.Event
	events map[string]models.Event
	hits   int
}

func (c *mapCache) GetEventList(context.Context) ([]models.Event, bool) {
	if c.list == nil {
		return nil, false
	}
	c.hits++
	return c.list, true
}

func (c *mapCache) SetEventList(_ context.Context, list []models.Event) error {
	c.list = list
	return nil
}

func (c *mapCache) GetEvent(_ context.Context, id string) (*models.Event, bool) {
	e, ok := c.events[id]
	if ok {
		c.hits++
	}
	return &e, ok
}

func (c *mapCache) SetEvent(_ context.Context, e *models.Event) error {
	c.events[e.ID] = *e
	return nil
}

func (c *mapCache) InvalidateEventList(context.Context) error {
	c.list = nil
	return nil
}

func (c *mapCache) InvalidateEvent(_ context.Context, id string) error {
	delete(c.events, id)
	c.list = nil
	return nil
}

func TestCacheReadThroughAndInvalidate(t *testing.T) {
	store, _ := newTestStore(t)
	c := &mapCache{events: map[string]models.Event{}}
	store.SetCache(c)
	ctx := context.Background()

	event := newEvent("Cached")
	if err := store.Create(ctx, event); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.List(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := store.List(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, _, err := store.LoadSlots(ctx, event.ID); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, _, err := store.LoadSlots(ctx, event.ID); err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.hits != 2 {
		t.Fatalf("cache hits = %d, want 2", c.hits)
	}

	want := []models.Slot{{ID: "s1", StartTime: "18:00", EndTime: "19:00", Type: models.SlotTypeSetup}}
	if err := store.SaveSlots(ctx, event.ID, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok := c.events[event.ID]; ok {
		t.Fatal("save did not invalidate cached event")
	}
	_, got, err := store.LoadSlots(ctx, event.ID)
	if err != nil || !reflect.DeepEqual(got, want) {
		t.Fatalf("load after save = %+v, %v", got, err)
	}
}
