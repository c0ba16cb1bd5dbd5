/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventstore persists event records and their slot collections.
package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/friendsincode/slotplanner/internal/models"
	"github.com/friendsincode/slotplanner/internal/telemetry"
)

var (
	// ErrNotFound is returned when no event has the requested id.
	ErrNotFound = errors.New("event not found")
	// ErrInvalidEvent is returned when an event fails validation on create.
	ErrInvalidEvent = errors.New("invalid event")
)

// Cache is an optional read-through cache for event records.
type Cache interface {
	GetEventList(ctx context.Context) ([]models.Event, bool)
	SetEventList(ctx context.Context, list []models.Event) error
	GetEvent(ctx context.Context, eventID string) (*models.Event, bool)
	SetEvent(ctx context.Context, event *models.Event) error
	InvalidateEventList(ctx context.Context) error
	InvalidateEvent(ctx context.Context, eventID string) error
}

// Store reads and writes events through gorm.
type Store struct {
	db     *gorm.DB
	cache  Cache
	logger zerolog.Logger
}

// New creates a Store. The events table must be migrated.
func New(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "eventstore").Logger(),
	}
}

// SetCache wires a cache into reads. Writes through this store invalidate it.
func (s *Store) SetCache(c Cache) {
	s.cache = c
}

// Create validates and inserts event, assigning an id when empty.
func (s *Store) Create(ctx context.Context, event *models.Event) error {
	event.Name = strings.TrimSpace(event.Name)
	if event.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidEvent)
	}
	if event.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrInvalidEvent)
	}
	if event.EndDate != nil && event.EndDate.Before(event.StartDate) {
		return fmt.Errorf("%w: end date before start date", ErrInvalidEvent)
	}
	if _, err := RuleFor(event.Recurrence); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if event.Timezone == "" {
		event.Timezone = models.DefaultTimezone
	}
	if _, err := time.LoadLocation(event.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidEvent, event.Timezone)
	}
	event.Tags = normalizeTags(event.Tags)
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Type == "" {
		event.Type = "in-person"
	}
	if event.Slots == "" {
		event.Slots = "[]"
	}

	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	if s.cache != nil {
		_ = s.cache.InvalidateEventList(ctx)
	}
	s.logger.Info().Str("event_id", event.ID).Str("name", event.Name).Msg("event created")
	return nil
}

// normalizeTags trims tags and drops blanks and repeats, keeping first-seen order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// Get loads one event.
func (s *Store) Get(ctx context.Context, id string) (*models.Event, error) {
	if s.cache != nil {
		if event, ok := s.cache.GetEvent(ctx, id); ok {
			return event, nil
		}
	}

	var event models.Event
	err := s.db.WithContext(ctx).First(&event, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if s.cache != nil {
		_ = s.cache.SetEvent(ctx, &event)
	}
	return &event, nil
}

// List returns all events ordered by start date.
func (s *Store) List(ctx context.Context) ([]models.Event, error) {
	if s.cache != nil {
		if list, ok := s.cache.GetEventList(ctx); ok {
			return list, nil
		}
	}

	var list []models.Event
	if err := s.db.WithContext(ctx).Order("start_date ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if s.cache != nil {
		_ = s.cache.SetEventList(ctx, list)
	}
	return list, nil
}

// LoadSlots loads event and decodes its slot collection. A blob that fails
// to decode is logged and yields an empty collection.
func (s *Store) LoadSlots(ctx context.Context, id string) (*models.Event, []models.Slot, error) {
	ctx, span := telemetry.StartSpan(ctx, "eventstore.LoadSlots", attribute.String("event.id", id))
	event, err := s.Get(ctx, id)
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, nil, err
	}

	collection, err := DecodeSlots(event.Slots)
	if err != nil {
		s.logger.Error().Err(err).Str("event_id", id).Msg("failed to parse event slots")
		return event, []models.Slot{}, nil
	}
	return event, collection, nil
}

// SaveSlots replaces the event's whole slot collection and bumps updated_at.
func (s *Store) SaveSlots(ctx context.Context, id string, collection []models.Slot) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "eventstore.SaveSlots",
		attribute.String("event.id", id),
		attribute.Int("slots.count", len(collection)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	blob, err := EncodeSlots(collection)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.Event{}).Where("id = ?", id).Updates(map[string]any{
		"slots":      blob,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("save event slots: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	if s.cache != nil {
		_ = s.cache.InvalidateEvent(ctx, id)
	}
	s.logger.Debug().Str("event_id", id).Int("slots", len(collection)).Msg("event slots saved")
	return nil
}

// DecodeSlots parses a stored slot blob. Empty input is an empty collection
// and missing slot types read as other.
func DecodeSlots(blob string) ([]models.Slot, error) {
	if strings.TrimSpace(blob) == "" {
		return []models.Slot{}, nil
	}
	var out []models.Slot
	if err := json.Unmarshal([]byte(blob), &out); err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}
	if out == nil {
		out = []models.Slot{}
	}
	for i := range out {
		out[i].Type = models.ParseSlotType(string(out[i].Type))
	}
	return out, nil
}

// EncodeSlots serialises a collection for storage. A nil collection encodes as [].
func EncodeSlots(collection []models.Slot) (string, error) {
	if collection == nil {
		collection = []models.Slot{}
	}
	data, err := json.Marshal(collection)
	if err != nil {
		return "", fmt.Errorf("encode slots: %w", err)
	}
	return string(data), nil
}
