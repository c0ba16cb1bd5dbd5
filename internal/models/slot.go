/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"encoding/json"
	"strings"
)

// SlotType classifies what happens during a slot.
type SlotType string

const (
	SlotTypePerformance SlotType = "performance"
	SlotTypeSetup       SlotType = "setup"
	SlotTypeBreakdown   SlotType = "breakdown"
	SlotTypeBreak       SlotType = "break"
	SlotTypeOther       SlotType = "other"
)

// SlotTypes lists every accepted slot type in display order.
var SlotTypes = []SlotType{
	SlotTypePerformance,
	SlotTypeSetup,
	SlotTypeBreakdown,
	SlotTypeBreak,
	SlotTypeOther,
}

// ParseSlotType maps free text to a SlotType. Unknown or empty values become SlotTypeOther.
func ParseSlotType(s string) SlotType {
	candidate := SlotType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range SlotTypes {
		if t == candidate {
			return t
		}
	}
	return SlotTypeOther
}

// Valid reports whether t is one of the known slot types.
func (t SlotType) Valid() bool {
	for _, known := range SlotTypes {
		if known == t {
			return true
		}
	}
	return false
}

// UnmarshalJSON normalises unknown values to SlotTypeOther.
func (t *SlotType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = ParseSlotType(raw)
	return nil
}

// Slot is one time range inside an event. StartTime and EndTime are wall-clock
// HH:MM strings relative to the owning event's date; they are stored as given.
//
// The JSON shape matches the slots blob attached to event records.
type Slot struct {
	ID          string   `json:"id" yaml:"id"`
	StartTime   string   `json:"startTime" yaml:"start_time"`
	EndTime     string   `json:"endTime" yaml:"end_time"`
	Title       string   `json:"title,omitempty" yaml:"title,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	IsBooked    bool     `json:"isBooked" yaml:"is_booked"`
	IsPending   bool     `json:"isPending" yaml:"is_pending"`
	Type        SlotType `json:"type" yaml:"type"`

	// Carried through from the event page's richer slot record.
	Notes         string `json:"notes,omitempty" yaml:"notes,omitempty"`
	IsRequestOnly bool   `json:"isRequestOnly,omitempty" yaml:"is_request_only,omitempty"`
	ArtistID      string `json:"artistId,omitempty" yaml:"artist_id,omitempty"`
	ResourceID    string `json:"resourceId,omitempty" yaml:"resource_id,omitempty"`
}

// Locked reports whether the slot is booked or has a pending booking request.
// Owners use it to refuse ordinary edits; the slot model itself does not.
func (s Slot) Locked() bool {
	return s.IsBooked || s.IsPending
}

// Template is a named, reusable snapshot of slots.
type Template struct {
	Name  string `json:"name" yaml:"name"`
	Slots []Slot `json:"slots" yaml:"slots"`
}
