/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package slots

import "github.com/friendsincode/slotplanner/internal/models"

// Update is a single typed change to a slot's editable fields.
type Update interface {
	apply(s *models.Slot)
}

type (
	// SetTitle replaces the display label.
	SetTitle string
	// SetDescription replaces the free-text description.
	SetDescription string
	// SetType replaces the slot type; unknown values become "other".
	SetType models.SlotType
	// SetStartTime replaces the HH:MM start.
	SetStartTime string
	// SetEndTime replaces the HH:MM end.
	SetEndTime string
	// SetNotes replaces the organiser notes.
	SetNotes string
	// SetRequestOnly toggles whether the slot is open to booking requests only.
	SetRequestOnly bool
)

func (u SetTitle) apply(s *models.Slot)       { s.Title = string(u) }
func (u SetDescription) apply(s *models.Slot) { s.Description = string(u) }
func (u SetType) apply(s *models.Slot)        { s.Type = models.ParseSlotType(string(u)) }
func (u SetStartTime) apply(s *models.Slot)   { s.StartTime = string(u) }
func (u SetEndTime) apply(s *models.Slot)     { s.EndTime = string(u) }
func (u SetNotes) apply(s *models.Slot)       { s.Notes = string(u) }
func (u SetRequestOnly) apply(s *models.Slot) { s.IsRequestOnly = bool(u) }

// TimeField names one of the two time fields of a slot.
type TimeField string

const (
	FieldStartTime TimeField = "startTime"
	FieldEndTime   TimeField = "endTime"
)

// ParseTimeField accepts the JSON field names and their snake_case forms.
func ParseTimeField(s string) (TimeField, bool) {
	switch s {
	case "startTime", "start_time", "start":
		return FieldStartTime, true
	case "endTime", "end_time", "end":
		return FieldEndTime, true
	}
	return "", false
}

func (f TimeField) update(value string) Update {
	if f == FieldEndTime {
		return SetEndTime(value)
	}
	return SetStartTime(value)
}

// Draft is a detached copy of a slot being edited. Changes stay local until
// the draft is committed to a Manager.
type Draft struct {
	slot models.Slot
}

// ID returns the id of the slot the draft was taken from.
func (d *Draft) ID() string {
	return d.slot.ID
}

// Slot returns the draft's current state.
func (d *Draft) Slot() models.Slot {
	return d.slot
}

// Apply changes the draft without touching the collection.
func (d *Draft) Apply(updates ...Update) *Draft {
	for _, u := range updates {
		if u != nil {
			u.apply(&d.slot)
		}
	}
	return d
}
