/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"github.com/friendsincode/slotplanner/internal/models"
	"github.com/friendsincode/slotplanner/internal/slots"
)

// SlotListener publishes every slot change of one event on the bus as
// EventSlotsChanged, so owners can consume changes from a channel.
type SlotListener struct {
	bus     *Bus
	eventID string
}

// NewSlotListener creates a listener that tags payloads with eventID.
func NewSlotListener(bus *Bus, eventID string) *SlotListener {
	return &SlotListener{bus: bus, eventID: eventID}
}

// SlotsChanged implements slots.Listener.
func (l *SlotListener) SlotsChanged(snap slots.Snapshot) {
	l.bus.Publish(EventSlotsChanged, Payload{
		"event_id": l.eventID,
		"op":       string(snap.Op),
		"revision": snap.Revision,
		"slot_id":  snap.SlotID,
		"slots":    snap.Slots,
	})
}

// SlotsFromPayload extracts the slot collection from an EventSlotsChanged payload.
func SlotsFromPayload(p Payload) ([]models.Slot, bool) {
	s, ok := p["slots"].([]models.Slot)
	return s, ok
}
