package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestDocumentChangedDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDocEvent("changed", DocumentChange{
		Path:         "entities/tank.json",
		DataPath:     "armor.front",
		ShapeChanged: false,
		Revision:     "abc123",
	})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: document.changed") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"entities/tank.json"`) {
			t.Errorf("missing path in %q", s)
		}
		if !strings.Contains(s, `"data_path":"armor.front"`) {
			t.Errorf("missing data path in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestSavedAndManifestEvents(t *testing.T) {
	b := NewBroker(time.Hour) // suppress index.updated noise
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDocEvent("saved", DocumentChange{Path: "entities/tank.json"})
	b.PublishDocEvent("manifest", DocumentChange{Path: "entities/new.json"})

	time.Sleep(50 * time.Millisecond)
	var types []string
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			switch {
			case strings.Contains(s, "document.saved"):
				types = append(types, "saved")
			case strings.Contains(s, "manifest.updated"):
				types = append(types, "manifest")
			case strings.Contains(s, "index.updated"):
				types = append(types, "index")
			}
		default:
			break loop
		}
	}
	// First doc event also fires one throttled index.updated.
	want := []string{"saved", "index", "manifest"}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("events = %v, want %v", types, want)
		}
	}
}

func TestIndexUpdatedThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDocEvent("changed", DocumentChange{Path: "a.json"})
	b.PublishDocEvent("changed", DocumentChange{Path: "b.json"})

	time.Sleep(50 * time.Millisecond)
	indexCount := 0
	docCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			if strings.Contains(string(msg), "index.updated") {
				indexCount++
			} else {
				docCount++
			}
		default:
			break loop
		}
	}
	if docCount != 2 {
		t.Errorf("document events = %d, want 2", docCount)
	}
	if indexCount != 1 {
		t.Errorf("index events = %d, want 1 (throttled)", indexCount)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Wait for the subscription to land, then publish.
	deadline := time.After(time.Second)
	for b.ClientCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("handler never subscribed")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	b.Publish(Event{Type: "ping", Data: map[string]string{}})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	resp := w.Result()
	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type = %q", got)
	}
	if !strings.Contains(w.Body.String(), "event: ping") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestPublishAfterCloseIsSafe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	b.Close()
	// None of these may panic or block.
	b.Publish(Event{Type: "late", Data: nil})
	b.PublishDocEvent("changed", DocumentChange{Path: "x"})
	ch := b.Subscribe()
	if _, ok := <-ch; ok {
		t.Error("subscribe after close should return a closed channel")
	}
	if b.ClientCount() != 0 {
		t.Error("client count after close should be 0")
	}
}
