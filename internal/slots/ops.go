/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package slots

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/friendsincode/slotplanner/internal/models"
)

// NewID returns a fresh slot identifier.
func NewID() string {
	return "slot_" + uuid.NewString()
}

// Clone returns a copy of in that shares no backing array with it.
// A nil input yields an empty, non-nil slice.
func Clone(in []models.Slot) []models.Slot {
	out := make([]models.Slot, len(in))
	copy(out, in)
	return out
}

// StartKey is the sort key of a start time: the first colon removed and the
// leading integer parsed, so "09:30" is 930 and "14:00" is 1400. ok is false
// when no integer can be read.
func StartKey(startTime string) (key int, ok bool) {
	s := strings.TrimSpace(strings.Replace(startTime, ":", "", 1))
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// compareStart orders two slots by StartKey. Unreadable keys compare equal to
// everything, so such slots keep their relative position where possible.
func compareStart(a, b models.Slot) int {
	ka, okA := StartKey(a.StartTime)
	kb, okB := StartKey(b.StartTime)
	if !okA || !okB {
		return 0
	}
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	}
	return 0
}

// SortByStartTime returns a copy of in ordered by start time. The sort is stable.
func SortByStartTime(in []models.Slot) []models.Slot {
	out := Clone(in)
	slices.SortStableFunc(out, compareStart)
	return out
}

// IsSortedByStartTime reports whether in is already in start-time order.
func IsSortedByStartTime(in []models.Slot) bool {
	return slices.IsSortedFunc(in, compareStart)
}

// ApplyTemplate builds a new collection from templateSlots. Every slot is
// copied verbatim, booking flags included, and given an id that collides with
// nothing in existing, in templateSlots, or among the new slots.
func ApplyTemplate(templateSlots, existing []models.Slot, newID func() string) []models.Slot {
	if newID == nil {
		newID = NewID
	}
	taken := make(map[string]struct{}, len(existing)+len(templateSlots)*2)
	for _, s := range existing {
		taken[s.ID] = struct{}{}
	}
	for _, s := range templateSlots {
		taken[s.ID] = struct{}{}
	}

	out := make([]models.Slot, 0, len(templateSlots))
	for _, s := range templateSlots {
		s.ID = uniqueID(taken, newID)
		out = append(out, s)
	}
	return out
}

// uniqueID draws ids until one is not in taken, then records it.
func uniqueID(taken map[string]struct{}, newID func() string) string {
	id := newID()
	for attempt := 1; ; attempt++ {
		if _, dup := taken[id]; !dup && id != "" {
			taken[id] = struct{}{}
			return id
		}
		if attempt < 8 {
			id = newID()
			continue
		}
		id = fmt.Sprintf("%s_%d", newID(), attempt)
	}
}

func indexOf(in []models.Slot, id string) int {
	return slices.IndexFunc(in, func(s models.Slot) bool { return s.ID == id })
}

// without returns the collection minus the slot at index i.
func without(in []models.Slot, i int) []models.Slot {
	if i < 0 || i >= len(in) {
		return in
	}
	out := make([]models.Slot, 0, len(in)-1)
	out = append(out, in[:i]...)
	return append(out, in[i+1:]...)
}
