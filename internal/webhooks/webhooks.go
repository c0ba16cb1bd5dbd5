/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package webhooks delivers slot and template events to an HTTP endpoint.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/slotplanner/internal/events"
)

// Header names set on every delivery.
const (
	HeaderEvent     = "X-Slotplanner-Event"
	HeaderDelivery  = "X-Slotplanner-Delivery"
	HeaderTimestamp = "X-Slotplanner-Timestamp"
	HeaderSignature = "X-Slotplanner-Signature"
)

// Payload is the JSON body of a delivery.
type Payload struct {
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Data      events.Payload `json:"data"`
}

// Config configures a Publisher.
type Config struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// Publisher posts each event to one URL. It satisfies eventbus.Publisher.
type Publisher struct {
	cfg    Config
	client *http.Client
	logger zerolog.Logger
}

// NewPublisher creates a webhook publisher.
func NewPublisher(cfg Config, logger zerolog.Logger) *Publisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Publisher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("component", "webhooks").Logger(),
	}
}

// Publish delivers one event. Non-2xx responses are errors.
func (p *Publisher) Publish(ctx context.Context, eventType events.EventType, payload events.Payload) error {
	body, err := json.Marshal(Payload{
		Event:     string(eventType),
		Timestamp: time.Now().UTC(),
		Data:      payload,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Slotplanner-Webhook/1.0")
	req.Header.Set(HeaderEvent, string(eventType))
	req.Header.Set(HeaderDelivery, uuid.NewString())
	req.Header.Set(HeaderTimestamp, fmt.Sprintf("%d", time.Now().Unix()))
	if p.cfg.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(body, p.cfg.Secret))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	p.logger.Debug().Str("event", string(eventType)).Int("status", resp.StatusCode).Msg("webhook delivered")
	return nil
}

// Close implements eventbus.Publisher.
func (p *Publisher) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// Sign returns the HMAC-SHA256 signature header value for body.
func Sign(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether signature matches body under secret.
func Verify(body []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(body, secret)), []byte(signature))
}
