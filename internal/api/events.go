/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/slotplanner/internal/editor"
	"github.com/friendsincode/slotplanner/internal/events"
	"github.com/friendsincode/slotplanner/internal/eventstore"
	"github.com/friendsincode/slotplanner/internal/models"
)

// eventCreateRequest accepts either RFC 3339 timestamps or a calendar date
// plus HH:MM times, as the event form submits them. Dates and times are read
// in Timezone, or the API's default zone when it is empty.
type eventCreateRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Type        string   `json:"type"`
	StartDate   string   `json:"start_date"`
	StartTime   string   `json:"start_time,omitempty"`
	EndDate     string   `json:"end_date,omitempty"`
	EndTime     string   `json:"end_time,omitempty"`
	Capacity    *int     `json:"capacity,omitempty"`
	IsPublic    *bool    `json:"is_public,omitempty"`
	OrganizerID string   `json:"organizer_id,omitempty"`
	Recurrence  string   `json:"recurrence,omitempty"`
	Timezone    string   `json:"timezone,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

func (a *API) handleEventsList(w http.ResponseWriter, r *http.Request) {
	list, err := a.events.List(r.Context())
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": list})
}

func (a *API) handleEventsCreate(w http.ResponseWriter, r *http.Request) {
	var req eventCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeDomainError(w, err)
		return
	}

	tz := req.Timezone
	if tz == "" {
		tz = a.timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_timezone")
		return
	}

	start, end, err := parseEventTimes(req, loc)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}

	event := &models.Event{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Type:        req.Type,
		StartDate:   start,
		EndDate:     end,
		Capacity:    req.Capacity,
		IsPublic:    req.IsPublic == nil || *req.IsPublic,
		OrganizerID: req.OrganizerID,
		Recurrence:  req.Recurrence,
		Timezone:    tz,
		Tags:        req.Tags,
	}
	if err := a.events.Create(r.Context(), event); err != nil {
		a.writeDomainError(w, err)
		return
	}

	if a.bus != nil {
		a.bus.Publish(events.EventEventCreated, events.Payload{"event_id": event.ID, "name": event.Name})
	}
	writeJSON(w, http.StatusCreated, event)
}

func (a *API) handleEventsGet(w http.ResponseWriter, r *http.Request) {
	event, collection, err := a.events.LoadSlots(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event":  event,
		"slots":  collection,
		"window": editor.WindowFor(*event),
	})
}

// handleEventOccurrences lists dated instances between from and to
// (YYYY-MM-DD, inclusive). The range defaults to 30 days from the event start.
func (a *API) handleEventOccurrences(w http.ResponseWriter, r *http.Request) {
	event, err := a.events.Get(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		a.writeDomainError(w, err)
		return
	}

	from := event.StartDate
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, event.Zone())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from")
			return
		}
		from = parsed
	}
	to := from.AddDate(0, 0, 30)
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, event.Zone())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to")
			return
		}
		to = parsed.Add(24*time.Hour - time.Second)
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "invalid_range")
		return
	}

	occurrences, err := eventstore.Occurrences(*event, from, to)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_recurrence")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"occurrences": occurrences,
		"count":       len(occurrences),
	})
}

// parseEventTimes combines the request's date and time fields in loc. A
// calendar start date needs a start time. An end time earlier than the start
// time on the same date rolls over to the next day.
func parseEventTimes(req eventCreateRequest, loc *time.Location) (time.Time, *time.Time, error) {
	if _, err := time.Parse(time.RFC3339, req.StartDate); err != nil && req.StartTime == "" {
		return time.Time{}, nil, newAPIError(http.StatusBadRequest, "start_time_required")
	}
	start, err := parseDateTime(req.StartDate, req.StartTime, loc)
	if err != nil {
		return time.Time{}, nil, newAPIError(http.StatusBadRequest, "invalid_start_date")
	}

	if req.EndDate == "" && req.EndTime == "" {
		return start, nil, nil
	}

	endDate := req.EndDate
	if endDate == "" {
		endDate = start.Format("2006-01-02")
	}
	end, err := parseDateTime(endDate, req.EndTime, loc)
	if err != nil {
		return time.Time{}, nil, newAPIError(http.StatusBadRequest, "invalid_end_date")
	}
	if req.EndDate == "" && end.Before(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, &end, nil
}

func parseDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, date); err == nil {
		return t, nil
	}
	if clock == "" {
		return time.ParseInLocation("2006-01-02", date, loc)
	}
	return time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
}
