/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package templates persists named, reusable slot layouts.
package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/slotplanner/internal/models"
	"github.com/friendsincode/slotplanner/internal/slots"
)

// DefaultKey is the key the template list is stored under.
const DefaultKey = "eventSlotTemplates"

var (
	// ErrNameRequired is returned when saving a template without a name.
	ErrNameRequired = errors.New("template name is required")
	// ErrKeyNotFound is returned by a KV when the key has never been written.
	ErrKeyNotFound = errors.New("key not found")
)

// Repository stores templates in a stable, positional order.
type Repository interface {
	// List returns all templates. Missing or unreadable data yields an empty list.
	List(ctx context.Context) ([]models.Template, error)
	// Save appends a template. Names need not be unique.
	Save(ctx context.Context, name string, slots []models.Slot) (models.Template, error)
	// Delete removes the template at index. Out-of-range indexes are ignored.
	Delete(ctx context.Context, index int) error
}

// KV is a string key-value medium.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Store keeps the whole template list as one JSON document under a single key.
// The read-modify-write in Save and Delete is serialised within the process
// only; concurrent writers in other processes race and the last write wins.
type Store struct {
	kv     KV
	key    string
	logger zerolog.Logger

	mu        sync.Mutex
	onCorrupt func(err error)
}

// NewStore creates a template store over kv. An empty key uses DefaultKey.
func NewStore(kv KV, key string, logger zerolog.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{
		kv:     kv,
		key:    key,
		logger: logger.With().Str("component", "template_store").Str("key", key).Logger(),
	}
}

// OnCorrupt registers a hook called when stored data cannot be decoded.
func (s *Store) OnCorrupt(fn func(err error)) {
	s.onCorrupt = fn
}

// Key returns the storage key in use.
func (s *Store) Key() string {
	return s.key
}

// List returns the stored templates.
func (s *Store) List(ctx context.Context) ([]models.Template, error) {
	return s.load(ctx)
}

// Save validates the name and appends a deep copy of slots.
func (s *Store) Save(ctx context.Context, name string, collection []models.Slot) (models.Template, error) {
	if strings.TrimSpace(name) == "" {
		return models.Template{}, ErrNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx)
	if err != nil {
		return models.Template{}, err
	}
	tmpl := models.Template{Name: name, Slots: slots.Clone(collection)}
	list = append(list, tmpl)
	if err := s.write(ctx, list); err != nil {
		return models.Template{}, err
	}

	s.logger.Info().Str("name", name).Int("slots", len(collection)).Msg("slot template saved")
	return tmpl, nil
}

// Delete removes the template at index.
func (s *Store) Delete(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(list) {
		s.logger.Debug().Int("index", index).Int("count", len(list)).Msg("delete: template index out of range")
		return nil
	}
	name := list[index].Name
	list = append(list[:index], list[index+1:]...)
	if err := s.write(ctx, list); err != nil {
		return err
	}

	s.logger.Info().Str("name", name).Int("index", index).Msg("slot template deleted")
	return nil
}

// Get returns the template at index.
func (s *Store) Get(ctx context.Context, index int) (models.Template, bool, error) {
	list, err := s.load(ctx)
	if err != nil {
		return models.Template{}, false, err
	}
	if index < 0 || index >= len(list) {
		return models.Template{}, false, nil
	}
	return list[index], true, nil
}

// load reads and decodes the list. A KV failure is returned; an absent key or
// undecodable document is logged and read as empty.
func (s *Store) load(ctx context.Context) ([]models.Template, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, ErrKeyNotFound) {
		return []models.Template{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return []models.Template{}, nil
	}

	var list []models.Template
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		s.logger.Error().Err(err).Msg("stored slot templates are corrupt, treating as empty")
		if s.onCorrupt != nil {
			s.onCorrupt(err)
		}
		return []models.Template{}, nil
	}
	if list == nil {
		list = []models.Template{}
	}
	for i := range list {
		if list[i].Slots == nil {
			list[i].Slots = []models.Slot{}
		}
	}
	return list, nil
}

func (s *Store) write(ctx context.Context, list []models.Template) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode templates: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("write templates: %w", err)
	}
	return nil
}
