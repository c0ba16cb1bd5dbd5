/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/slotplanner/internal/editor"
	"github.com/friendsincode/slotplanner/internal/models"
	"github.com/friendsincode/slotplanner/internal/slots"
)

type slotTimeRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// slotUpdateRequest carries the detail-edit fields. Omitted fields are left unchanged.
type slotUpdateRequest struct {
	Title         *string `json:"title,omitempty"`
	Description   *string `json:"description,omitempty"`
	Type          *string `json:"type,omitempty"`
	StartTime     *string `json:"start_time,omitempty"`
	EndTime       *string `json:"end_time,omitempty"`
	Notes         *string `json:"notes,omitempty"`
	IsRequestOnly *bool   `json:"is_request_only,omitempty"`
}

func (req slotUpdateRequest) updates() []slots.Update {
	var out []slots.Update
	if req.Title != nil {
		out = append(out, slots.SetTitle(*req.Title))
	}
	if req.Description != nil {
		out = append(out, slots.SetDescription(*req.Description))
	}
	if req.Type != nil {
		out = append(out, slots.SetType(*req.Type))
	}
	if req.StartTime != nil {
		out = append(out, slots.SetStartTime(*req.StartTime))
	}
	if req.EndTime != nil {
		out = append(out, slots.SetEndTime(*req.EndTime))
	}
	if req.Notes != nil {
		out = append(out, slots.SetNotes(*req.Notes))
	}
	if req.IsRequestOnly != nil {
		out = append(out, slots.SetRequestOnly(*req.IsRequestOnly))
	}
	return out
}

type applyTemplateRequest struct {
	Index int `json:"index"`
}

func (a *API) addSlotRoutes(r chi.Router) {
	r.Route("/slots", func(r chi.Router) {
		r.Get("/", a.handleSlotsList)
		r.Post("/", a.handleSlotsAdd)
		r.Post("/sort", a.handleSlotsSort)
		r.Post("/apply-template", a.handleSlotsApplyTemplate)
		r.Route("/{slotID}", func(r chi.Router) {
			r.Patch("/time", a.handleSlotTime)
			r.Put("/", a.handleSlotUpdate)
			r.Delete("/", a.handleSlotDelete)
		})
	})
}

func (a *API) sessionOptions() []editor.Option {
	opts := append([]editor.Option(nil), a.sessionOpts...)
	opts = append(opts, editor.WithTemplates(a.templates), editor.WithLogger(a.logger))
	if a.bus != nil {
		opts = append(opts, editor.WithBus(a.bus))
	}
	return opts
}

// editSlots opens an editor session for the URL's event, runs fn, saves, and
// responds with the resulting collection merged into fn's extra fields.
func (a *API) editSlots(w http.ResponseWriter, r *http.Request, fn func(s *editor.Session) (map[string]any, error)) {
	eventID := chi.URLParam(r, "eventID")
	unlock := a.locks.lock(eventID)
	defer unlock()

	session, err := editor.Open(r.Context(), a.events, eventID, a.sessionOptions()...)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}

	resp, err := fn(session)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	if err := session.Save(r.Context()); err != nil {
		a.logger.Error().Err(err).Str("event_id", eventID).Msg("save slots failed")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}

	if resp == nil {
		resp = map[string]any{}
	}
	resp["slots"] = session.Manager().Slots()
	writeJSON(w, http.StatusOK, resp)
}

// unlockedSlot returns the slot or an error when it is missing, booked or pending.
func unlockedSlot(m *slots.Manager, id string) (models.Slot, error) {
	slot, ok := m.Get(id)
	if !ok {
		return models.Slot{}, newAPIError(http.StatusNotFound, "slot_not_found")
	}
	if slot.Locked() {
		return models.Slot{}, newAPIError(http.StatusConflict, "slot_locked")
	}
	return slot, nil
}

func (a *API) handleSlotsList(w http.ResponseWriter, r *http.Request) {
	event, collection, err := a.events.LoadSlots(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"slots":      collection,
		"validation": a.validator.Validate(collection, editor.WindowFor(*event)),
	})
}

func (a *API) handleSlotsAdd(w http.ResponseWriter, r *http.Request) {
	a.editSlots(w, r, func(s *editor.Session) (map[string]any, error) {
		slot, err := s.Manager().AddSlot()
		if err != nil {
			return nil, err
		}
		return map[string]any{"slot": slot}, nil
	})
}

func (a *API) handleSlotsSort(w http.ResponseWriter, r *http.Request) {
	a.editSlots(w, r, func(s *editor.Session) (map[string]any, error) {
		return nil, s.Manager().SortByStartTime()
	})
}

func (a *API) handleSlotsApplyTemplate(w http.ResponseWriter, r *http.Request) {
	var req applyTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.editSlots(w, r, func(s *editor.Session) (map[string]any, error) {
		tmpl, err := s.ApplyTemplate(r.Context(), req.Index)
		if err != nil {
			return nil, err
		}
		return map[string]any{"template": tmpl.Name}, nil
	})
}

func (a *API) handleSlotTime(w http.ResponseWriter, r *http.Request) {
	var req slotTimeRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeDomainError(w, err)
		return
	}
	field, ok := slots.ParseTimeField(req.Field)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_field")
		return
	}

	slotID := chi.URLParam(r, "slotID")
	a.editSlots(w, r, func(s *editor.Session) (map[string]any, error) {
		if _, err := unlockedSlot(s.Manager(), slotID); err != nil {
			return nil, err
		}
		return nil, s.Manager().UpdateSlotTime(slotID, field, req.Value)
	})
}

func (a *API) handleSlotUpdate(w http.ResponseWriter, r *http.Request) {
	var req slotUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeDomainError(w, err)
		return
	}

	slotID := chi.URLParam(r, "slotID")
	a.editSlots(w, r, func(s *editor.Session) (map[string]any, error) {
		if _, err := unlockedSlot(s.Manager(), slotID); err != nil {
			return nil, err
		}
		draft, ok := s.Manager().Edit(slotID)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "slot_not_found")
		}
		draft.Apply(req.updates()...)
		if err := s.Manager().Commit(draft); err != nil {
			return nil, err
		}
		return map[string]any{"slot": draft.Slot()}, nil
	})
}

func (a *API) handleSlotDelete(w http.ResponseWriter, r *http.Request) {
	slotID := chi.URLParam(r, "slotID")
	a.editSlots(w, r, func(s *editor.Session) (map[string]any, error) {
		if _, err := unlockedSlot(s.Manager(), slotID); err != nil {
			return nil, err
		}
		return nil, s.Manager().RemoveSlot(slotID)
	})
}
