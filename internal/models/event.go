/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"
	_ "time/tzdata"
)

// DefaultTimezone is used for events stored without a timezone.
const DefaultTimezone = "UTC"

// Event is a community event record. Slots are kept as an opaque JSON blob
// and decoded by the event store.
type Event struct {
	ID          string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name        string     `gorm:"type:varchar(255);not null" json:"name"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	Location    string     `gorm:"type:varchar(255)" json:"location,omitempty"`
	Type        string     `gorm:"type:varchar(64);default:'in-person'" json:"type"`
	StartDate   time.Time  `gorm:"index:idx_events_start;not null" json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Capacity    *int       `json:"capacity,omitempty"`
	IsPublic    bool       `gorm:"default:true" json:"is_public"`
	OrganizerID string     `gorm:"type:varchar(64)" json:"organizer_id,omitempty"`
	Tags        []string   `gorm:"type:text;serializer:json" json:"tags,omitempty"`

	// Timezone is the IANA zone the event's wall-clock times are read in.
	// StartDate and EndDate are instants; the database may hand them back in
	// any zone.
	Timezone string `gorm:"type:varchar(64);default:'UTC'" json:"timezone"`

	// Recurrence is empty or "none" for a one-time event, one of "daily",
	// "weekly" or "monthly", or an RRULE for custom schedules.
	Recurrence string `gorm:"type:varchar(255)" json:"recurrence,omitempty"`

	Slots string `gorm:"type:text" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Event) TableName() string {
	return "events"
}

// Zone resolves Timezone, falling back to UTC when it is empty or unknown.
func (e Event) Zone() *time.Location {
	if e.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LocalStart is StartDate in the event's timezone.
func (e Event) LocalStart() time.Time {
	return e.StartDate.In(e.Zone())
}

// StartTime is the HH:MM wall-clock start of the event in its timezone.
func (e Event) StartTime() string {
	if e.StartDate.IsZero() {
		return ""
	}
	return e.LocalStart().Format("15:04")
}

// EndTime is the HH:MM wall-clock end of the event in its timezone, or empty
// when no end is set.
func (e Event) EndTime() string {
	if e.EndDate == nil {
		return ""
	}
	return e.EndDate.In(e.Zone()).Format("15:04")
}

// KeyValue is a single string entry for the SQL-backed key-value medium.
type KeyValue struct {
	Key       string `gorm:"column:kv_key;type:varchar(191);primaryKey"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// TableName returns the table name for GORM.
func (KeyValue) TableName() string {
	return "key_values"
}
