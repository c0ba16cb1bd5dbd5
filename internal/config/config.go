/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// TemplateBackend selects the key-value medium holding slot templates.
type TemplateBackend string

const (
	TemplatesMemory TemplateBackend = "memory"
	TemplatesSQL    TemplateBackend = "sql"
	TemplatesRedis  TemplateBackend = "redis"
)

// EventBusBackend selects where slot and template events are forwarded.
type EventBusBackend string

const (
	EventBusNone  EventBusBackend = "none"
	EventBusRedis EventBusBackend = "redis"
	EventBusNATS  EventBusBackend = "nats"
)

// Slot policy names accepted by SLOTPLANNER_SLOT_POLICY.
var slotPolicies = []string{"permissive", "ordered", "window", "strict"}

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	LogLevel    string
	HTTPBind    string
	HTTPPort    int
	DBBackend   DatabaseBackend
	DBDSN       string

	// Slot editing
	SlotPolicy string
	AutoSave   bool

	// Event times and slot advisories
	Timezone       string
	SlotMinMinutes int
	SlotMaxMinutes int

	// Template storage
	TemplateBackend TemplateBackend
	TemplateKey     string

	// Redis, shared by the redis template backend, the event cache and the redis event bus
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheEnabled  bool

	// Event forwarding
	EventBus EventBusBackend
	NATSURL  string
	NodeID   string

	// Signed webhook delivery of the same events
	WebhookURL    string
	WebhookSecret string

	MetricsEnabled bool

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"SLOTPLANNER_ENV"}, "development"),
		LogLevel:    getEnvAny([]string{"SLOTPLANNER_LOG_LEVEL"}, ""),
		HTTPBind:    getEnvAny([]string{"SLOTPLANNER_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"SLOTPLANNER_HTTP_PORT", "PORT"}, 8080),
		DBBackend:   DatabaseBackend(getEnvAny([]string{"SLOTPLANNER_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:       getEnvAny([]string{"SLOTPLANNER_DB_DSN", "DATABASE_URL"}, "slotplanner.db"),

		SlotPolicy: strings.ToLower(getEnvAny([]string{"SLOTPLANNER_SLOT_POLICY"}, "permissive")),
		AutoSave:   getEnvBoolAny([]string{"SLOTPLANNER_AUTO_SAVE"}, false),

		Timezone:       getEnvAny([]string{"SLOTPLANNER_TIMEZONE"}, "UTC"),
		SlotMinMinutes: getEnvIntAny([]string{"SLOTPLANNER_SLOT_MIN_MINUTES"}, 0),
		SlotMaxMinutes: getEnvIntAny([]string{"SLOTPLANNER_SLOT_MAX_MINUTES"}, 0),

		TemplateBackend: TemplateBackend(getEnvAny([]string{"SLOTPLANNER_TEMPLATE_BACKEND"}, string(TemplatesSQL))),
		TemplateKey:     getEnvAny([]string{"SLOTPLANNER_TEMPLATE_KEY"}, "eventSlotTemplates"),

		RedisAddr:     getEnvAny([]string{"SLOTPLANNER_REDIS_ADDR", "REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"SLOTPLANNER_REDIS_PASSWORD", "REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"SLOTPLANNER_REDIS_DB", "REDIS_DB"}, 0),
		CacheEnabled:  getEnvBoolAny([]string{"SLOTPLANNER_CACHE_ENABLED"}, false),

		EventBus: EventBusBackend(getEnvAny([]string{"SLOTPLANNER_EVENTBUS"}, string(EventBusNone))),
		NATSURL:  getEnvAny([]string{"SLOTPLANNER_NATS_URL", "NATS_URL"}, "nats://localhost:4222"),
		NodeID:   getEnvAny([]string{"SLOTPLANNER_NODE_ID"}, ""),

		WebhookURL:    getEnvAny([]string{"SLOTPLANNER_WEBHOOK_URL"}, ""),
		WebhookSecret: getEnvAny([]string{"SLOTPLANNER_WEBHOOK_SECRET"}, ""),

		MetricsEnabled: getEnvBoolAny([]string{"SLOTPLANNER_METRICS_ENABLED"}, true),

		TracingEnabled:    getEnvBoolAny([]string{"SLOTPLANNER_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"SLOTPLANNER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"SLOTPLANNER_TRACING_SAMPLE_RATE"}, 1.0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerations and cross-field constraints.
func (c *Config) Validate() error {
	switch c.DBBackend {
	case DatabasePostgres, DatabaseMySQL, DatabaseSQLite:
	default:
		return fmt.Errorf("unsupported database backend %q", c.DBBackend)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("SLOTPLANNER_DB_DSN must be provided")
	}

	switch c.TemplateBackend {
	case TemplatesMemory, TemplatesSQL, TemplatesRedis:
	default:
		return fmt.Errorf("unsupported template backend %q", c.TemplateBackend)
	}
	if strings.TrimSpace(c.TemplateKey) == "" {
		return fmt.Errorf("SLOTPLANNER_TEMPLATE_KEY must not be blank")
	}

	switch c.EventBus {
	case EventBusNone, EventBusRedis, EventBusNATS:
	default:
		return fmt.Errorf("unsupported event bus %q", c.EventBus)
	}

	if !slices.Contains(slotPolicies, c.SlotPolicy) {
		return fmt.Errorf("unknown slot policy %q (want one of %s)", c.SlotPolicy, strings.Join(slotPolicies, ", "))
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("unknown timezone %q", c.Timezone)
		}
	}
	if c.SlotMinMinutes < 0 || c.SlotMaxMinutes < 0 {
		return fmt.Errorf("slot duration limits must not be negative")
	}
	if c.SlotMaxMinutes > 0 && c.SlotMinMinutes > c.SlotMaxMinutes {
		return fmt.Errorf("SLOTPLANNER_SLOT_MIN_MINUTES exceeds SLOTPLANNER_SLOT_MAX_MINUTES")
	}

	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("SLOTPLANNER_TRACING_SAMPLE_RATE must be between 0 and 1")
	}

	if strings.EqualFold(c.Environment, "production") {
		if c.DBBackend == DatabaseSQLite && strings.Contains(c.DBDSN, ":memory:") {
			return fmt.Errorf("an in-memory sqlite database cannot be used in production")
		}
		if c.TemplateBackend == TemplatesMemory {
			return fmt.Errorf("the memory template backend cannot be used in production")
		}
	}
	return nil
}

// HTTPAddr returns the listen address.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
