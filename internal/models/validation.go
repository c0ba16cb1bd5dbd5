/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

// RuleType defines the type of slot validation rule.
type RuleType string

const (
	RuleTypeOverlap       RuleType = "overlap"        // Two slots share time
	RuleTypeTimeFormat    RuleType = "time_format"    // Time is not HH:MM
	RuleTypeTimeOrder     RuleType = "time_order"     // End does not follow start
	RuleTypeOutsideWindow RuleType = "outside_window" // Slot leaves the event window
	RuleTypeMinDuration   RuleType = "min_duration"   // Slot shorter than N minutes
	RuleTypeMaxDuration   RuleType = "max_duration"   // Slot longer than N minutes
)

// RuleSeverity defines how serious a rule violation is.
type RuleSeverity string

const (
	RuleSeverityError   RuleSeverity = "error"   // Must be fixed
	RuleSeverityWarning RuleSeverity = "warning" // Should be reviewed
	RuleSeverityInfo    RuleSeverity = "info"    // Informational only
)

// ValidationViolation represents a single rule violation.
type ValidationViolation struct {
	RuleType    RuleType       `json:"rule_type"`
	RuleName    string         `json:"rule_name"`
	Severity    RuleSeverity   `json:"severity"`
	Message     string         `json:"message"`
	StartTime   string         `json:"start_time,omitempty"`
	EndTime     string         `json:"end_time,omitempty"`
	AffectedIDs []string       `json:"affected_ids,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// ValidationResult contains the result of checking a slot collection.
type ValidationResult struct {
	Valid    bool                  `json:"valid"`    // True if no errors (warnings OK)
	Errors   []ValidationViolation `json:"errors"`   // Severity = error
	Warnings []ValidationViolation `json:"warnings"` // Severity = warning
	Info     []ValidationViolation `json:"info"`     // Severity = info
}

// Add files a violation under its severity.
func (r *ValidationResult) Add(v ValidationViolation) {
	switch v.Severity {
	case RuleSeverityError:
		r.Errors = append(r.Errors, v)
		r.Valid = false
	case RuleSeverityWarning:
		r.Warnings = append(r.Warnings, v)
	default:
		r.Info = append(r.Info, v)
	}
}
