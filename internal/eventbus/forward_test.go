/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/slotplanner/internal/events"
)

type recordingPublisher struct {
	mu   sync.Mutex
	got  []events.EventType
	fail bool
	seen chan struct{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{seen: make(chan struct{}, 16)}
}

func (p *recordingPublisher) Publish(_ context.Context, eventType events.EventType, _ events.Payload) error {
	p.mu.Lock()
	p.got = append(p.got, eventType)
	fail := p.fail
	p.mu.Unlock()
	p.seen <- struct{}{}
	if fail {
		return errors.New("offline")
	}
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func waitSeen(t *testing.T, p *recordingPublisher) {
	t.Helper()
	select {
	case <-p.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for forwarded event")
	}
}

func TestForwardRelaysSelectedTypes(t *testing.T) {
	bus := events.NewBus()
	pub := newRecordingPublisher()
	f := Forward(context.Background(), bus, pub, zerolog.Nop(), events.EventSlotsChanged)
	defer f.Stop()

	bus.Publish(events.EventTemplateSaved, events.Payload{"name": "ignored"})
	bus.Publish(events.EventSlotsChanged, events.Payload{"op": "add"})
	waitSeen(t, pub)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.got) != 1 || pub.got[0] != events.EventSlotsChanged {
		t.Fatalf("forwarded %v", pub.got)
	}
}

func TestForwardSurvivesPublishErrors(t *testing.T) {
	bus := events.NewBus()
	pub := newRecordingPublisher()
	pub.fail = true
	f := Forward(context.Background(), bus, pub, zerolog.Nop(), events.EventSlotsChanged)
	defer f.Stop()

	bus.Publish(events.EventSlotsChanged, events.Payload{"op": "add"})
	waitSeen(t, pub)
	bus.Publish(events.EventSlotsChanged, events.Payload{"op": "sort"})
	waitSeen(t, pub)
}

func TestStopUnsubscribes(t *testing.T) {
	bus := events.NewBus()
	pub := newRecordingPublisher()
	f := Forward(context.Background(), bus, pub, zerolog.Nop(), events.EventSlotsChanged)
	f.Stop()

	bus.Publish(events.EventSlotsChanged, events.Payload{"op": "add"})
	select {
	case <-pub.seen:
		t.Fatal("event forwarded after Stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMessageRoundTrip(t *testing.T) {
	data, err := marshalMessage(events.EventTemplateSaved, events.Payload{"name": "Evening Show"}, "node-a")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	msg, err := unmarshalMessage(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.EventType != events.EventTemplateSaved || msg.NodeID != "node-a" || msg.Payload["name"] != "Evening Show" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.MessageID == "" {
		t.Fatal("missing message id")
	}
	if Subject(events.EventSlotsChanged) != "slotplanner.events.slots.changed" {
		t.Fatalf("subject = %s", Subject(events.EventSlotsChanged))
	}
}

func TestRedisCircuitOpensAfterFailures(t *testing.T) {
	p := newRedisPublisher(nil, RedisConfig{MaxFailures: 2, RetryInterval: time.Minute}, "n", zerolog.Nop())
	p.recordFailure()
	if p.circuitOpen() {
		t.Fatal("circuit open after one failure")
	}
	p.recordFailure()
	if !p.circuitOpen() {
		t.Fatal("circuit closed after reaching threshold")
	}
	if err := p.Publish(context.Background(), events.EventSlotsChanged, nil); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Publish error = %v, want ErrCircuitOpen", err)
	}
}
