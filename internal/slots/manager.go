/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package slots manages the ordered time slots of one event while it is being edited.
package slots

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/slotplanner/internal/models"
)

// ErrReadOnly is returned by every mutating operation on a read-only manager.
var ErrReadOnly = errors.New("slots: collection is read-only")

// Op names the operation that produced a snapshot.
type Op string

const (
	OpAdd           Op = "add"
	OpRemove        Op = "remove"
	OpUpdateTime    Op = "update_time"
	OpUpdateFields  Op = "update_fields"
	OpSort          Op = "sort"
	OpApplyTemplate Op = "apply_template"
)

// Window is the owning event's overall time window. New slots start with
// StartTime and EndTime; Date is informational since slots carry no date.
type Window struct {
	StartTime string
	EndTime   string
	Date      time.Time
}

// Snapshot is the complete collection after a mutation.
// Listeners must treat Slots as read-only.
type Snapshot struct {
	Op       Op
	Revision uint64
	SlotID   string
	Slots    []models.Slot
}

// Listener is notified after every mutation, in mutation order.
type Listener interface {
	SlotsChanged(snap Snapshot)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(snap Snapshot)

// SlotsChanged calls f.
func (f ListenerFunc) SlotsChanged(snap Snapshot) { f(snap) }

// Policy decides whether a slot may enter a collection. others holds every
// other slot of the resulting collection.
type Policy interface {
	Validate(slot models.Slot, others []models.Slot) error
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(slot models.Slot, others []models.Slot) error

// Validate calls f.
func (f PolicyFunc) Validate(slot models.Slot, others []models.Slot) error { return f(slot, others) }

// Permissive accepts every slot. Times are not parsed and overlaps are allowed.
var Permissive Policy = PolicyFunc(func(models.Slot, []models.Slot) error { return nil })

// ValidationError reports a policy rejection.
type ValidationError struct {
	Rule    string
	SlotID  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.SlotID == "" {
		return fmt.Sprintf("%s: %s", e.Rule, e.Message)
	}
	return fmt.Sprintf("%s: slot %s: %s", e.Rule, e.SlotID, e.Message)
}

// Option configures a Manager.
type Option func(*Manager)

// WithPolicy installs a validation policy. A nil policy means Permissive.
func WithPolicy(p Policy) Option {
	return func(m *Manager) {
		if p != nil {
			m.policy = p
		}
	}
}

// WithIDGenerator replaces the slot id source.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// WithListener registers a change listener at construction.
func WithListener(l Listener) Option {
	return func(m *Manager) {
		if l != nil {
			m.listeners = append(m.listeners, l)
		}
	}
}

// WithReadOnly sets the initial read-only flag.
func WithReadOnly(readOnly bool) Option {
	return func(m *Manager) { m.readOnly = readOnly }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger.With().Str("component", "slot_manager").Logger()
	}
}

// Manager holds the working copy of one event's slots and mediates all changes.
// Every successful mutation replaces the working copy and then notifies the
// listeners with the full collection. Listeners run synchronously on the
// mutating goroutine and must not call mutating methods of the same Manager.
type Manager struct {
	notifyMu sync.Mutex
	mu       sync.RWMutex

	slots     []models.Slot
	window    Window
	readOnly  bool
	policy    Policy
	newID     func() string
	listeners []Listener
	revision  uint64
	logger    zerolog.Logger
}

// NewManager creates a manager over a copy of initial.
func NewManager(initial []models.Slot, window Window, opts ...Option) *Manager {
	m := &Manager{
		slots:  Clone(initial),
		window: window,
		policy: Permissive,
		newID:  NewID,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Slots returns a copy of the working collection.
func (m *Manager) Slots() []models.Slot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Clone(m.slots)
}

// Len returns the number of slots.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slots)
}

// Get returns the slot with the given id.
func (m *Manager) Get(id string) (models.Slot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := indexOf(m.slots, id); i >= 0 {
		return m.slots[i], true
	}
	return models.Slot{}, false
}

// Revision counts the mutations applied so far.
func (m *Manager) Revision() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.revision
}

// Window returns the event window used for new slot defaults.
func (m *Manager) Window() Window {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.window
}

// SetWindow updates the event window. Existing slots are not touched.
func (m *Manager) SetWindow(w Window) {
	m.mu.Lock()
	m.window = w
	m.mu.Unlock()
}

// ReadOnly reports whether mutations are disabled.
func (m *Manager) ReadOnly() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readOnly
}

// SetReadOnly enables or disables mutations.
func (m *Manager) SetReadOnly(readOnly bool) {
	m.mu.Lock()
	m.readOnly = readOnly
	m.mu.Unlock()
}

// Subscribe registers a listener for subsequent mutations.
func (m *Manager) Subscribe(l Listener) {
	if l == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

// Replace swaps in a new working copy after an external change by the owner.
// It is not a mutation: no listener is notified and the read-only flag does not apply.
func (m *Manager) Replace(slots []models.Slot) {
	m.mu.Lock()
	m.slots = Clone(slots)
	m.mu.Unlock()
}

// AddSlot appends a slot spanning the event window.
func (m *Manager) AddSlot() (models.Slot, error) {
	var added models.Slot
	err := m.mutate(OpAdd, "", func(current []models.Slot) ([]models.Slot, error) {
		taken := make(map[string]struct{}, len(current))
		for _, s := range current {
			taken[s.ID] = struct{}{}
		}
		added = models.Slot{
			ID:        uniqueID(taken, m.newID),
			StartTime: m.window.StartTime,
			EndTime:   m.window.EndTime,
			IsBooked:  false,
			IsPending: false,
			Type:      models.SlotTypeOther,
		}
		if err := m.policy.Validate(added, current); err != nil {
			return nil, err
		}
		next := make([]models.Slot, 0, len(current)+1)
		next = append(next, current...)
		return append(next, added), nil
	})
	if err != nil {
		return models.Slot{}, err
	}
	return added, nil
}

// RemoveSlot deletes the slot with the given id. An unknown id changes
// nothing but still notifies listeners. Booked and pending slots are removed
// like any other.
func (m *Manager) RemoveSlot(id string) error {
	return m.mutate(OpRemove, id, func(current []models.Slot) ([]models.Slot, error) {
		i := indexOf(current, id)
		if i < 0 {
			m.logger.Debug().Str("slot_id", id).Msg("remove: slot not found")
			return current, nil
		}
		return without(current, i), nil
	})
}

// UpdateSlotTime replaces one time field of the slot with the given id.
func (m *Manager) UpdateSlotTime(id string, field TimeField, value string) error {
	if field != FieldStartTime && field != FieldEndTime {
		return &ValidationError{Rule: "time_field", SlotID: id, Message: fmt.Sprintf("unknown time field %q", field)}
	}
	return m.mutate(OpUpdateTime, id, m.replaceWith(id, field.update(value)))
}

// UpdateSlotFields applies typed updates to the slot with the given id in one step.
func (m *Manager) UpdateSlotFields(id string, updates ...Update) error {
	return m.mutate(OpUpdateFields, id, m.replaceWith(id, updates...))
}

// Edit returns a detached draft of the slot with the given id.
func (m *Manager) Edit(id string) (*Draft, bool) {
	slot, ok := m.Get(id)
	if !ok {
		return nil, false
	}
	return &Draft{slot: slot}, true
}

// Commit writes a draft back over the slot with the same id. If that slot has
// been removed in the meantime the commit changes nothing.
func (m *Manager) Commit(d *Draft) error {
	if d == nil {
		return nil
	}
	edited := d.slot
	return m.mutate(OpUpdateFields, edited.ID, func(current []models.Slot) ([]models.Slot, error) {
		i := indexOf(current, edited.ID)
		if i < 0 {
			return current, nil
		}
		return m.swap(current, i, edited)
	})
}

// SortByStartTime reorders the collection by start time, keeping ties in
// place. An already sorted collection is kept as is but still notifies.
func (m *Manager) SortByStartTime() error {
	return m.mutate(OpSort, "", func(current []models.Slot) ([]models.Slot, error) {
		if IsSortedByStartTime(current) {
			return current, nil
		}
		return SortByStartTime(current), nil
	})
}

// ApplyTemplate replaces the whole collection with copies of templateSlots
// under fresh ids.
func (m *Manager) ApplyTemplate(templateSlots []models.Slot) error {
	return m.mutate(OpApplyTemplate, "", func(current []models.Slot) ([]models.Slot, error) {
		next := ApplyTemplate(templateSlots, current, m.newID)
		for i, s := range next {
			if err := m.policy.Validate(s, without(next, i)); err != nil {
				return nil, err
			}
		}
		return next, nil
	})
}

func (m *Manager) replaceWith(id string, updates ...Update) func([]models.Slot) ([]models.Slot, error) {
	return func(current []models.Slot) ([]models.Slot, error) {
		i := indexOf(current, id)
		if i < 0 {
			m.logger.Debug().Str("slot_id", id).Msg("update: slot not found")
			return current, nil
		}
		edited := current[i]
		for _, u := range updates {
			if u != nil {
				u.apply(&edited)
			}
		}
		return m.swap(current, i, edited)
	}
}

func (m *Manager) swap(current []models.Slot, i int, edited models.Slot) ([]models.Slot, error) {
	if err := m.policy.Validate(edited, without(current, i)); err != nil {
		return nil, err
	}
	next := Clone(current)
	next[i] = edited
	return next, nil
}

// mutate runs fn against the working copy under the write lock and, on
// success, installs the result and notifies listeners outside the lock.
// notifyMu keeps notifications in mutation order.
func (m *Manager) mutate(op Op, slotID string, fn func(current []models.Slot) ([]models.Slot, error)) error {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.readOnly {
		m.mu.Unlock()
		return ErrReadOnly
	}
	next, err := fn(m.slots)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.slots = next
	m.revision++
	snap := Snapshot{Op: op, Revision: m.revision, SlotID: slotID, Slots: Clone(next)}
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	for _, l := range listeners {
		l.SlotsChanged(snap)
	}
	return nil
}
