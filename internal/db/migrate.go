/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/friendsincode/slotplanner/internal/models"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.Event{},
		&models.KeyValue{},
	); err != nil {
		return err
	}

	if err := backfillEmptySlots(database); err != nil {
		return err
	}
	if err := backfillTimezones(database); err != nil {
		return err
	}
	return nil
}

// backfillEmptySlots gives events created before the slots column existed an
// empty collection instead of NULL.
func backfillEmptySlots(database *gorm.DB) error {
	if err := database.Exec("UPDATE events SET slots = '[]' WHERE slots IS NULL OR slots = ''").Error; err != nil {
		return fmt.Errorf("backfill empty event slots: %w", err)
	}
	return nil
}

// backfillTimezones marks events stored before the timezone column as UTC.
func backfillTimezones(database *gorm.DB) error {
	if err := database.Exec("UPDATE events SET timezone = ? WHERE timezone IS NULL OR timezone = ''", models.DefaultTimezone).Error; err != nil {
		return fmt.Errorf("backfill event timezones: %w", err)
	}
	return nil
}
