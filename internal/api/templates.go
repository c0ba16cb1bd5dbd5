/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/slotplanner/internal/events"
	"github.com/friendsincode/slotplanner/internal/models"
	"github.com/friendsincode/slotplanner/internal/templates"
)

// templateCreateRequest saves either an event's current slots or an explicit list.
type templateCreateRequest struct {
	Name    string        `json:"name"`
	EventID string        `json:"event_id,omitempty"`
	Slots   []models.Slot `json:"slots,omitempty"`
}

// maxImportBytes bounds YAML template imports.
const maxImportBytes = 1 << 20

func (a *API) addTemplateRoutes(r chi.Router) {
	r.Route("/slot-templates", func(r chi.Router) {
		r.Get("/", a.handleTemplatesList)
		r.Post("/", a.handleTemplatesCreate)
		r.Get("/export", a.handleTemplatesExport)
		r.Post("/import", a.handleTemplatesImport)
		r.Delete("/{index}", a.handleTemplatesDelete)
	})
}

func (a *API) handleTemplatesList(w http.ResponseWriter, r *http.Request) {
	list, err := a.templates.List(r.Context())
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": list})
}

func (a *API) handleTemplatesCreate(w http.ResponseWriter, r *http.Request) {
	var req templateCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeDomainError(w, err)
		return
	}

	collection := req.Slots
	if req.EventID != "" {
		_, loaded, err := a.events.LoadSlots(r.Context(), req.EventID)
		if err != nil {
			a.writeDomainError(w, err)
			return
		}
		collection = loaded
	}

	tmpl, err := a.templates.Save(r.Context(), req.Name, collection)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.publish(events.EventTemplateSaved, events.Payload{"name": tmpl.Name, "count": len(tmpl.Slots)})
	writeJSON(w, http.StatusCreated, tmpl)
}

func (a *API) handleTemplatesDelete(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_index")
		return
	}
	if err := a.templates.Delete(r.Context(), index); err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.publish(events.EventTemplateDeleted, events.Payload{"index": index})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleTemplatesExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := templates.Export(r.Context(), a.templates, &buf); err != nil {
		a.writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="slot-templates.yaml"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (a *API) handleTemplatesImport(w http.ResponseWriter, r *http.Request) {
	n, err := templates.Import(r.Context(), a.templates, http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		a.logger.Warn().Err(err).Int("imported", n).Msg("template import failed")
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_document", "imported": n})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"imported": n})
}

func (a *API) publish(eventType events.EventType, payload events.Payload) {
	if a.bus != nil {
		a.bus.Publish(eventType, payload)
	}
}
