/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/friendsincode/slotplanner/internal/models"
)

func TestOccurrences(t *testing.T) {
	start := time.Date(2026, 1, 5, 19, 0, 0, 0, time.UTC) // Monday
	end := start.Add(3 * time.Hour)
	week := start.Add(7 * 24 * time.Hour)

	tests := []struct {
		name       string
		recurrence string
		from, to   time.Time
		wantCount  int
		wantErr    bool
	}{
		{"one-time inside", "", start, week, 1, false},
		{"one-time none keyword", "none", start, week, 1, false},
		{"one-time outside", "", week, week.Add(time.Hour), 0, false},
		{"daily", "daily", start, week, 8, false},
		{"weekly", "Weekly", start, week, 2, false},
		{"monthly", "monthly", start, start.AddDate(0, 3, 0), 4, false},
		{"custom rrule", "FREQ=WEEKLY;BYDAY=MO,WE,FR", start, week, 4, false},
		{"invalid", "every other tuesday", start, week, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := models.Event{ID: "e1", StartDate: start, EndDate: &end, Recurrence: tt.recurrence}
			got, err := Occurrences(event, tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.wantCount {
				t.Fatalf("got %d occurrences, want %d", len(got), tt.wantCount)
			}
			for _, occ := range got {
				if occ.EndsAt.Sub(occ.StartsAt) != 3*time.Hour || occ.EventID != "e1" {
					t.Fatalf("unexpected occurrence %+v", occ)
				}
			}
		})
	}
}

func TestCreateRejectsInvalidRecurrence(t *testing.T) {
	store, _ := newTestStore(t)
	event := newEvent("Jam")
	event.Recurrence = "FREQ=SOMETIMES"
	if err := store.Create(context.Background(), event); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("error = %v, want ErrInvalidEvent", err)
	}
}

func TestOccurrencesKeepWallClockAcrossDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	// 19:00 CET on the Monday before clocks go forward on 2026-03-29.
	start := time.Date(2026, 3, 23, 19, 0, 0, 0, berlin).UTC()
	event := models.Event{ID: "e1", StartDate: start, Recurrence: "weekly", Timezone: "Europe/Berlin"}

	got, err := Occurrences(event, start, start.AddDate(0, 0, 8))
	if err != nil {
		t.Fatalf("occurrences: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d occurrences, want 2", len(got))
	}
	for _, occ := range got {
		if local := occ.StartsAt.In(berlin).Format("15:04"); local != "19:00" {
			t.Fatalf("occurrence %v starts at %s local, want 19:00", occ.StartsAt, local)
		}
	}
}

func TestCreateTimezoneAndTags(t *testing.T) {
	store, _ := newTestStore(t)

	event := newEvent("Street Fair")
	event.Tags = []string{" music ", "", "food", "music"}
	if err := store.Create(context.Background(), event); err != nil {
		t.Fatalf("create: %v", err)
	}
	if event.Timezone != models.DefaultTimezone {
		t.Fatalf("timezone = %q, want %q", event.Timezone, models.DefaultTimezone)
	}

	loaded, err := store.Get(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(loaded.Tags) != 2 || loaded.Tags[0] != "music" || loaded.Tags[1] != "food" {
		t.Fatalf("tags = %q, want [music food]", loaded.Tags)
	}

	bad := newEvent("Nowhere")
	bad.Timezone = "Mars/Olympus_Mons"
	if err := store.Create(context.Background(), bad); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("error = %v, want ErrInvalidEvent", err)
	}
}
