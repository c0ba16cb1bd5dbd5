/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/slotplanner/internal/models"
)

func TestUnavailableRedisDisablesCache(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if c.IsAvailable() {
		t.Fatal("cache should be disabled without redis")
	}

	ctx := context.Background()
	event := &models.Event{ID: "e1", Name: "Gig", StartDate: time.Now()}
	if err := c.SetEvent(ctx, event); err != nil {
		t.Fatalf("SetEvent on disabled cache: %v", err)
	}
	if _, ok := c.GetEvent(ctx, "e1"); ok {
		t.Fatal("disabled cache returned a hit")
	}
	if _, ok := c.GetEventList(ctx); ok {
		t.Fatal("disabled cache returned a list")
	}
	if err := c.InvalidateEvent(ctx, "e1"); err != nil {
		t.Fatalf("InvalidateEvent: %v", err)
	}
	if err := c.FlushAll(ctx); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.EventListTTL != DefaultEventListTTL || cfg.EventTTL != DefaultEventTTL || !cfg.DisableOnError {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}
