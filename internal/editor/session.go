/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package editor implements the owner of a slot collection: it opens an
// event, runs a slot manager over its slots, and writes changes back.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/friendsincode/slotplanner/internal/events"
	"github.com/friendsincode/slotplanner/internal/models"
	"github.com/friendsincode/slotplanner/internal/scheduling"
	"github.com/friendsincode/slotplanner/internal/slots"
	"github.com/friendsincode/slotplanner/internal/telemetry"
	"github.com/friendsincode/slotplanner/internal/templates"
)

var (
	// ErrTemplateNotFound is returned when a template index is out of range.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrNoTemplates is returned by template operations on a session opened without a repository.
	ErrNoTemplates = errors.New("no template repository configured")
)

// EventStore loads and saves an event's slot collection.
type EventStore interface {
	LoadSlots(ctx context.Context, id string) (*models.Event, []models.Slot, error)
	SaveSlots(ctx context.Context, id string, collection []models.Slot) error
}

type options struct {
	policy     slots.Policy
	policyName string
	readOnly   bool
	autoSave   bool
	templates  templates.Repository
	bus        *events.Bus
	listeners  []slots.Listener
	onSave     func(error)
	logger     zerolog.Logger
}

// Option configures a Session.
type Option func(*options)

// WithPolicy installs a validation policy.
func WithPolicy(p slots.Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithPolicyName installs a named policy built for the event's window.
func WithPolicyName(name string) Option {
	return func(o *options) { o.policyName = name }
}

// WithReadOnly opens the session read-only.
func WithReadOnly(readOnly bool) Option {
	return func(o *options) { o.readOnly = readOnly }
}

// WithAutoSave writes the collection back after every change.
func WithAutoSave(enabled bool) Option {
	return func(o *options) { o.autoSave = enabled }
}

// WithTemplates gives the session access to the template store.
func WithTemplates(repo templates.Repository) Option {
	return func(o *options) { o.templates = repo }
}

// WithBus publishes slot and template events on bus.
func WithBus(bus *events.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// WithListener adds a change listener to the session's manager.
func WithListener(l slots.Listener) Option {
	return func(o *options) { o.listeners = append(o.listeners, l) }
}

// WithSaveObserver is called with the result of every save attempt.
func WithSaveObserver(fn func(error)) Option {
	return func(o *options) { o.onSave = fn }
}

// WithLogger sets the session logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Session edits one event's slots.
type Session struct {
	store     EventStore
	event     models.Event
	manager   *slots.Manager
	templates templates.Repository
	bus       *events.Bus
	autoSave  bool
	onSave    func(error)
	logger    zerolog.Logger

	mu        sync.Mutex
	latest    slots.Snapshot
	savedRev  uint64
	lastError error
}

// Open loads eventID and starts a session over its slots. New slots default
// to the event's start and end time of day.
func Open(ctx context.Context, store EventStore, eventID string, opts ...Option) (*Session, error) {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	event, collection, err := store.LoadSlots(ctx, eventID)
	if err != nil {
		return nil, err
	}

	window := WindowFor(*event)
	policy := o.policy
	if policy == nil && o.policyName != "" {
		policy, err = scheduling.ForName(o.policyName, window)
		if err != nil {
			return nil, err
		}
	}

	s := &Session{
		store:     store,
		event:     *event,
		templates: o.templates,
		bus:       o.bus,
		autoSave:  o.autoSave,
		onSave:    o.onSave,
		logger:    o.logger.With().Str("component", "editor").Str("event_id", eventID).Logger(),
	}

	managerOpts := []slots.Option{
		slots.WithReadOnly(o.readOnly),
		slots.WithLogger(o.logger),
		slots.WithListener(slots.ListenerFunc(s.track)),
	}
	if policy != nil {
		managerOpts = append(managerOpts, slots.WithPolicy(policy))
	}
	if o.bus != nil {
		managerOpts = append(managerOpts, slots.WithListener(events.NewSlotListener(o.bus, eventID)))
	}
	for _, l := range o.listeners {
		managerOpts = append(managerOpts, slots.WithListener(l))
	}
	s.manager = slots.NewManager(collection, window, managerOpts...)

	s.logger.Debug().Int("slots", len(collection)).Bool("read_only", o.readOnly).Msg("editor session opened")
	return s, nil
}

// Slot defaults for events without a start or end time.
const (
	DefaultWindowStart = "09:00"
	DefaultWindowEnd   = "17:00"
)

// WindowFor derives slot defaults from an event record, in the event's
// timezone. A missing start or end falls back to the working-day defaults.
func WindowFor(event models.Event) slots.Window {
	w := slots.Window{
		StartTime: event.StartTime(),
		EndTime:   event.EndTime(),
		Date:      event.LocalStart(),
	}
	if w.StartTime == "" {
		w.StartTime = DefaultWindowStart
	}
	if w.EndTime == "" {
		w.EndTime = DefaultWindowEnd
	}
	return w
}

// Event returns the event as loaded.
func (s *Session) Event() models.Event {
	return s.event
}

// Manager returns the slot manager driving this session.
func (s *Session) Manager() *slots.Manager {
	return s.manager
}

// Dirty reports whether there are changes not yet written back.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest.Revision > s.savedRev
}

// LastSaveError returns the error of the most recent failed auto-save, if any.
func (s *Session) LastSaveError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

func (s *Session) track(snap slots.Snapshot) {
	s.mu.Lock()
	s.latest = snap
	s.mu.Unlock()

	if s.autoSave {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.write(ctx, snap); err != nil {
			s.logger.Error().Err(err).Uint64("revision", snap.Revision).Msg("auto-save failed")
		}
	}
}

// Save writes the latest collection back to the event store. It is a no-op
// when nothing changed since the last save.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	snap := s.latest
	clean := snap.Revision <= s.savedRev
	s.mu.Unlock()
	if clean {
		return nil
	}
	return s.write(ctx, snap)
}

func (s *Session) write(ctx context.Context, snap slots.Snapshot) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "editor.Save",
		attribute.String("event.id", s.event.ID),
		attribute.Int64("slots.revision", int64(snap.Revision)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	err = s.store.SaveSlots(ctx, s.event.ID, snap.Slots)
	if s.onSave != nil {
		s.onSave(err)
	}

	s.mu.Lock()
	s.lastError = err
	if err == nil && snap.Revision > s.savedRev {
		s.savedRev = snap.Revision
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("save slots: %w", err)
	}
	s.publish(events.EventSlotsSaved, events.Payload{
		"event_id": s.event.ID,
		"revision": snap.Revision,
		"count":    len(snap.Slots),
	})
	s.logger.Info().Uint64("revision", snap.Revision).Int("slots", len(snap.Slots)).Msg("slots saved")
	return nil
}

// SaveAsTemplate stores the current collection as a named template.
func (s *Session) SaveAsTemplate(ctx context.Context, name string) (models.Template, error) {
	if s.templates == nil {
		return models.Template{}, ErrNoTemplates
	}
	tmpl, err := s.templates.Save(ctx, name, s.manager.Slots())
	if err != nil {
		return models.Template{}, err
	}
	s.publish(events.EventTemplateSaved, events.Payload{
		"name":     tmpl.Name,
		"count":    len(tmpl.Slots),
		"event_id": s.event.ID,
	})
	return tmpl, nil
}

// ApplyTemplate replaces the collection with the template at index.
func (s *Session) ApplyTemplate(ctx context.Context, index int) (models.Template, error) {
	if s.templates == nil {
		return models.Template{}, ErrNoTemplates
	}
	list, err := s.templates.List(ctx)
	if err != nil {
		return models.Template{}, err
	}
	if index < 0 || index >= len(list) {
		return models.Template{}, ErrTemplateNotFound
	}
	tmpl := list[index]
	if err := s.manager.ApplyTemplate(tmpl.Slots); err != nil {
		return models.Template{}, err
	}
	s.publish(events.EventTemplateApplied, events.Payload{
		"name":     tmpl.Name,
		"index":    index,
		"event_id": s.event.ID,
	})
	return tmpl, nil
}

func (s *Session) publish(eventType events.EventType, payload events.Payload) {
	if s.bus != nil {
		s.bus.Publish(eventType, payload)
	}
}
