/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"fmt"
	"strings"

	"github.com/friendsincode/slotplanner/internal/models"
	"github.com/friendsincode/slotplanner/internal/slots"
)

// Policy names accepted by ForName.
const (
	PolicyPermissive = "permissive"
	PolicyOrdered    = "ordered"
	PolicyWindow     = "window"
	PolicyStrict     = "strict"
)

// OrderedTimes requires both times to be HH:MM and the end to follow the start
// on the same day.
var OrderedTimes slots.Policy = slots.PolicyFunc(func(s models.Slot, _ []models.Slot) error {
	start, err := ParseClock(s.StartTime)
	if err != nil {
		return &slots.ValidationError{Rule: string(models.RuleTypeTimeFormat), SlotID: s.ID, Message: err.Error()}
	}
	end, err := ParseClock(s.EndTime)
	if err != nil {
		return &slots.ValidationError{Rule: string(models.RuleTypeTimeFormat), SlotID: s.ID, Message: err.Error()}
	}
	if end <= start {
		return &slots.ValidationError{
			Rule:    string(models.RuleTypeTimeOrder),
			SlotID:  s.ID,
			Message: fmt.Sprintf("end %s must be after start %s", s.EndTime, s.StartTime),
		}
	}
	return nil
})

// NoOverlap rejects a slot that shares time with any other slot. Slots whose
// times cannot be parsed are ignored.
var NoOverlap slots.Policy = slots.PolicyFunc(func(s models.Slot, others []models.Slot) error {
	span, err := SpanOf(s)
	if err != nil {
		return nil
	}
	for _, other := range others {
		otherSpan, err := SpanOf(other)
		if err != nil {
			continue
		}
		if shared, ok := span.Overlap(otherSpan); ok {
			return &slots.ValidationError{
				Rule:   string(models.RuleTypeOverlap),
				SlotID: s.ID,
				Message: fmt.Sprintf("overlaps %s from %s to %s (%d minute overlap)",
					slotLabel(other), FormatClock(shared.Start), FormatClock(shared.End), shared.Minutes()),
			}
		}
	}
	return nil
})

// WithinWindow keeps slots inside the event window. An empty window end only
// constrains the start. Windows and slots may run past midnight.
func WithinWindow(w slots.Window) slots.Policy {
	return slots.PolicyFunc(func(s models.Slot, _ []models.Slot) error {
		ws, err := ParseClock(w.StartTime)
		if err != nil {
			return nil
		}
		span, err := SpanOf(s)
		if err != nil {
			return nil
		}
		if span.Start < ws {
			span.Start += minutesPerDay
			span.End += minutesPerDay
		}
		we := ws + minutesPerDay
		if strings.TrimSpace(w.EndTime) != "" {
			if parsed, err := ParseClock(w.EndTime); err == nil {
				we = parsed
				if we <= ws {
					we += minutesPerDay
				}
			}
		}
		if span.Start >= we || span.End > we {
			return &slots.ValidationError{
				Rule:    string(models.RuleTypeOutsideWindow),
				SlotID:  s.ID,
				Message: fmt.Sprintf("%s-%s falls outside the event window %s-%s", s.StartTime, s.EndTime, w.StartTime, w.EndTime),
			}
		}
		return nil
	})
}

// Chain runs policies in order and returns the first rejection.
func Chain(policies ...slots.Policy) slots.Policy {
	return slots.PolicyFunc(func(s models.Slot, others []models.Slot) error {
		for _, p := range policies {
			if p == nil {
				continue
			}
			if err := p.Validate(s, others); err != nil {
				return err
			}
		}
		return nil
	})
}

// ForName builds a named policy for the given event window.
func ForName(name string, w slots.Window) (slots.Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyPermissive:
		return slots.Permissive, nil
	case PolicyOrdered:
		return OrderedTimes, nil
	case PolicyWindow:
		return Chain(OrderedTimes, WithinWindow(w)), nil
	case PolicyStrict:
		return Chain(OrderedTimes, WithinWindow(w), NoOverlap), nil
	}
	return nil, fmt.Errorf("unknown slot policy %q", name)
}

func slotLabel(s models.Slot) string {
	if s.Title != "" {
		return fmt.Sprintf("%q", s.Title)
	}
	return "slot " + s.ID
}
