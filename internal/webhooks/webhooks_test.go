/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/slotplanner/internal/events"
)

func TestPublishSignsAndPosts(t *testing.T) {
	var (
		gotBody  []byte
		gotEvent string
		gotSig   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotEvent = r.Header.Get(HeaderEvent)
		gotSig = r.Header.Get(HeaderSignature)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	pub := NewPublisher(Config{URL: srv.URL, Secret: "s3cret"}, zerolog.Nop())
	defer pub.Close()

	err := pub.Publish(context.Background(), events.EventTemplateSaved, events.Payload{"name": "Evening"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if gotEvent != string(events.EventTemplateSaved) {
		t.Fatalf("event header = %q", gotEvent)
	}
	if !Verify(gotBody, "s3cret", gotSig) {
		t.Fatalf("signature %q does not verify", gotSig)
	}
	var payload Payload
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Event != "template.saved" || payload.Data["name"] != "Evening" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestPublishFailsOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	pub := NewPublisher(Config{URL: srv.URL}, zerolog.Nop())
	if err := pub.Publish(context.Background(), events.EventSlotsSaved, events.Payload{}); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	sig := Sign([]byte(`{"a":1}`), "k")
	if Verify([]byte(`{"a":2}`), "k", sig) {
		t.Fatal("tampered body verified")
	}
}
