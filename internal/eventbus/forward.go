/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/slotplanner/internal/events"
)

// Publisher sends events to other nodes.
type Publisher interface {
	Publish(ctx context.Context, eventType events.EventType, payload events.Payload) error
	Close() error
}

// Forwarder relays selected in-process bus events to a Publisher.
type Forwarder struct {
	bus    *events.Bus
	pub    Publisher
	logger zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Forward subscribes to each event type on bus and publishes every payload
// through pub until ctx is cancelled or Stop is called.
func Forward(ctx context.Context, bus *events.Bus, pub Publisher, logger zerolog.Logger, types ...events.EventType) *Forwarder {
	ctx, cancel := context.WithCancel(ctx)
	f := &Forwarder{
		bus:    bus,
		pub:    pub,
		logger: logger.With().Str("component", "eventbus_forwarder").Logger(),
		cancel: cancel,
	}
	for _, eventType := range types {
		sub := bus.Subscribe(eventType)
		f.wg.Add(1)
		go f.run(ctx, eventType, sub)
	}
	return f
}

func (f *Forwarder) run(ctx context.Context, eventType events.EventType, sub events.Subscriber) {
	defer f.wg.Done()
	defer f.bus.Unsubscribe(eventType, sub)

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := f.pub.Publish(pubCtx, eventType, payload)
			cancel()
			if err != nil {
				f.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("forward event failed")
				continue
			}
			f.logger.Debug().Str("event_type", string(eventType)).Msg("forwarded event")
		}
	}
}

// Stop ends forwarding and waits for the relay goroutines to exit.
func (f *Forwarder) Stop() {
	f.cancel()
	f.wg.Wait()
}
