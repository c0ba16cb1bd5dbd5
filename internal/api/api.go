/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/slotplanner/internal/editor"
	"github.com/friendsincode/slotplanner/internal/events"
	"github.com/friendsincode/slotplanner/internal/eventstore"
	"github.com/friendsincode/slotplanner/internal/models"
	"github.com/friendsincode/slotplanner/internal/scheduling"
	"github.com/friendsincode/slotplanner/internal/slots"
	"github.com/friendsincode/slotplanner/internal/templates"
)

// API exposes HTTP handlers for events, their slots and slot templates.
type API struct {
	events      *eventstore.Store
	templates   templates.Repository
	bus         *events.Bus
	validator   *scheduling.Validator
	sessionOpts []editor.Option
	timezone    string
	locks       keyedMutex
	logger      zerolog.Logger
}

// Settings tunes request handling beyond the defaults of New.
type Settings struct {
	// Timezone applies to events created without one. Empty means UTC.
	Timezone string
	// Slot durations outside these bounds are reported as warnings. Zero disables a bound.
	MinSlotMinutes int
	MaxSlotMinutes int
}

// Configure applies settings. It fails on an unknown timezone or negative bounds.
func (a *API) Configure(s Settings) error {
	tz := s.Timezone
	if tz == "" {
		tz = models.DefaultTimezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("api: timezone %q: %w", tz, err)
	}
	if s.MinSlotMinutes < 0 || s.MaxSlotMinutes < 0 {
		return fmt.Errorf("api: slot duration bounds must not be negative")
	}
	a.timezone = tz
	a.validator.MinDurationMinutes = s.MinSlotMinutes
	a.validator.MaxDurationMinutes = s.MaxSlotMinutes
	return nil
}

// New creates the API. sessionOpts are applied to every editor session the
// slot handlers open.
func New(store *eventstore.Store, repo templates.Repository, bus *events.Bus, logger zerolog.Logger, sessionOpts ...editor.Option) *API {
	logger = logger.With().Str("component", "api").Logger()
	return &API{
		events:      store,
		templates:   repo,
		bus:         bus,
		validator:   scheduling.NewValidator(logger),
		sessionOpts: sessionOpts,
		timezone:    models.DefaultTimezone,
		logger:      logger,
	}
}

// Routes registers all API routes on r.
func (a *API) Routes(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Get("/", a.handleEventsList)
		r.Post("/", a.handleEventsCreate)
		r.Route("/{eventID}", func(r chi.Router) {
			r.Get("/", a.handleEventsGet)
			r.Get("/occurrences", a.handleEventOccurrences)
			a.addSlotRoutes(r)
		})
	})
	a.addTemplateRoutes(r)
}

// apiError carries an HTTP status and error code through handler helpers.
type apiError struct {
	status int
	code   string
}

func (e *apiError) Error() string { return e.code }

func newAPIError(status int, code string) error {
	return &apiError{status: status, code: code}
}

// writeDomainError maps package errors to HTTP responses.
func (a *API) writeDomainError(w http.ResponseWriter, err error) {
	var apiErr *apiError
	var validation *slots.ValidationError
	switch {
	case errors.As(err, &apiErr):
		writeError(w, apiErr.status, apiErr.code)
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":   "validation_failed",
			"rule":    validation.Rule,
			"slot_id": validation.SlotID,
			"message": validation.Message,
		})
	case errors.Is(err, eventstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "event_not_found")
	case errors.Is(err, eventstore.ErrInvalidEvent):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_event", "message": err.Error()})
	case errors.Is(err, slots.ErrReadOnly):
		writeError(w, http.StatusConflict, "read_only")
	case errors.Is(err, templates.ErrNameRequired):
		writeError(w, http.StatusBadRequest, "name_required")
	case errors.Is(err, editor.ErrTemplateNotFound):
		writeError(w, http.StatusNotFound, "template_not_found")
	default:
		a.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

// keyedMutex serialises read-modify-write cycles per event.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return newAPIError(http.StatusBadRequest, "invalid_json")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
