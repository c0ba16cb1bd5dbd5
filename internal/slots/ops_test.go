/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package slots

import (
	"strings"
	"testing"

	"github.com/friendsincode/slotplanner/internal/models"
)

func TestStartKey(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"09:30", 930, true},
		{"14:00", 1400, true},
		{"00:00", 0, true},
		{"9:05", 905, true},
		{" 07:45", 745, true},
		{"12:30pm", 1230, true},
		{"1:2:3", 12, true},
		{"", 0, false},
		{"noon", 0, false},
		{":", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := StartKey(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("StartKey(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSortByStartTimeDoesNotModifyInput(t *testing.T) {
	in := []models.Slot{{ID: "b", StartTime: "11:00"}, {ID: "a", StartTime: "10:00"}}
	out := SortByStartTime(in)
	if in[0].ID != "b" {
		t.Fatal("input reordered")
	}
	if out[0].ID != "a" || out[1].ID != "b" {
		t.Fatalf("unexpected order %v", out)
	}
	if !IsSortedByStartTime(out) {
		t.Fatal("output not reported as sorted")
	}
	if IsSortedByStartTime(in) {
		t.Fatal("input reported as sorted")
	}
}

func TestSortByStartTimeSingleDigitHours(t *testing.T) {
	// "9:45" keys to 945 and sorts before "10:00" (1000).
	in := []models.Slot{{ID: "ten", StartTime: "10:00"}, {ID: "nine", StartTime: "9:45"}}
	out := SortByStartTime(in)
	if out[0].ID != "nine" {
		t.Fatalf("unexpected order %v", out)
	}
}

func TestApplyTemplateAvoidsExistingIDs(t *testing.T) {
	existing := []models.Slot{{ID: "slot_a"}, {ID: "slot_b"}}
	tmpl := []models.Slot{{ID: "slot_a", Title: "one"}, {ID: "slot_z", Title: "two"}, {ID: "slot_z", Title: "three"}}

	out := ApplyTemplate(tmpl, existing, nil)
	if len(out) != len(tmpl) {
		t.Fatalf("expected %d slots, got %d", len(tmpl), len(out))
	}
	seen := map[string]bool{"slot_a": true, "slot_b": true, "slot_z": true}
	for i, s := range out {
		if seen[s.ID] {
			t.Fatalf("slot %d reused id %s", i, s.ID)
		}
		seen[s.ID] = true
		if !strings.HasPrefix(s.ID, "slot_") {
			t.Errorf("id %q lacks slot_ prefix", s.ID)
		}
		if s.Title != tmpl[i].Title {
			t.Errorf("slot %d title = %q, want %q", i, s.Title, tmpl[i].Title)
		}
	}
}

func TestApplyTemplateEmpty(t *testing.T) {
	out := ApplyTemplate(nil, []models.Slot{{ID: "x"}}, nil)
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil collection, got %#v", out)
	}
}
