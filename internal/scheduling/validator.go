/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/friendsincode/slotplanner/internal/models"
	"github.com/friendsincode/slotplanner/internal/slots"
)

// Validator reports problems in a slot collection without blocking edits.
// Slot times are free-form by default, so everything it finds is advisory.
type Validator struct {
	logger zerolog.Logger

	MinDurationMinutes int
	MaxDurationMinutes int
}

// NewValidator creates a new slot validator.
func NewValidator(logger zerolog.Logger) *Validator {
	return &Validator{
		logger: logger.With().Str("component", "slot_validator").Logger(),
	}
}

// Validate checks the collection against the event window.
func (v *Validator) Validate(collection []models.Slot, w slots.Window) models.ValidationResult {
	result := models.ValidationResult{
		Valid:    true,
		Errors:   []models.ValidationViolation{},
		Warnings: []models.ValidationViolation{},
		Info:     []models.ValidationViolation{},
	}

	inWindow := WithinWindow(w)
	for _, s := range collection {
		span, err := SpanOf(s)
		if err != nil {
			result.Add(violation(s, models.RuleTypeTimeFormat, "Unreadable Time", models.RuleSeverityWarning,
				fmt.Sprintf("%s has a time that is not HH:MM (%s). It will sort unpredictably.", slotLabel(s), err)))
			continue
		}

		if end, _ := ParseClock(s.EndTime); end <= span.Start {
			result.Add(violation(s, models.RuleTypeTimeOrder, "End Before Start", models.RuleSeverityWarning,
				fmt.Sprintf("%s ends at %s, not after its start %s; it is read as running past midnight.", slotLabel(s), s.EndTime, s.StartTime)))
		}
		if err := inWindow.Validate(s, nil); err != nil {
			result.Add(violation(s, models.RuleTypeOutsideWindow, "Outside Event Window", models.RuleSeverityInfo,
				fmt.Sprintf("%s runs %s-%s, outside the event's %s-%s.", slotLabel(s), s.StartTime, s.EndTime, w.StartTime, w.EndTime)))
		}
		if v.MinDurationMinutes > 0 && span.Minutes() < v.MinDurationMinutes {
			result.Add(violation(s, models.RuleTypeMinDuration, "Minimum Duration", models.RuleSeverityWarning,
				fmt.Sprintf("%s lasts %d minutes; at least %d are expected.", slotLabel(s), span.Minutes(), v.MinDurationMinutes)))
		}
		if v.MaxDurationMinutes > 0 && span.Minutes() > v.MaxDurationMinutes {
			result.Add(violation(s, models.RuleTypeMaxDuration, "Maximum Duration", models.RuleSeverityWarning,
				fmt.Sprintf("%s lasts %d minutes; at most %d are expected.", slotLabel(s), span.Minutes(), v.MaxDurationMinutes)))
		}
	}

	for _, o := range v.Overlaps(collection) {
		result.Add(o)
	}

	v.logger.Debug().
		Int("slots", len(collection)).
		Int("warnings", len(result.Warnings)).
		Int("info", len(result.Info)).
		Msg("slot collection checked")

	return result
}

// Overlaps lists every pair of slots sharing time. Unreadable slots are skipped.
func (v *Validator) Overlaps(collection []models.Slot) []models.ValidationViolation {
	var violations []models.ValidationViolation
	for i := 0; i < len(collection); i++ {
		a, err := SpanOf(collection[i])
		if err != nil {
			continue
		}
		for j := i + 1; j < len(collection); j++ {
			b, err := SpanOf(collection[j])
			if err != nil {
				continue
			}
			shared, ok := a.Overlap(b)
			if !ok {
				continue
			}
			violations = append(violations, models.ValidationViolation{
				RuleType: models.RuleTypeOverlap,
				RuleName: "Slot Overlap",
				Severity: models.RuleSeverityWarning,
				Message: fmt.Sprintf("Overlap detected: %s and %s both run from %s to %s (%d minute overlap).",
					slotLabel(collection[i]), slotLabel(collection[j]), FormatClock(shared.Start), FormatClock(shared.End), shared.Minutes()),
				StartTime:   FormatClock(shared.Start),
				EndTime:     FormatClock(shared.End),
				AffectedIDs: []string{collection[i].ID, collection[j].ID},
				Details: map[string]any{
					"overlap_minutes": shared.Minutes(),
					"suggestion":      "Move or trim one of these slots so they no longer overlap.",
				},
			})
		}
	}
	return violations
}

func violation(s models.Slot, rule models.RuleType, name string, severity models.RuleSeverity, msg string) models.ValidationViolation {
	return models.ValidationViolation{
		RuleType:    rule,
		RuleName:    name,
		Severity:    severity,
		Message:     msg,
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		AffectedIDs: []string{s.ID},
	}
}
