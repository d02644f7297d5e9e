package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestBroadcaster_PublishAndReceive(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := NewBroadcaster(client, logger)

	ctx := context.Background()
	sessionID := uuid.New()

	sub := client.Subscribe(ctx, Channel(sessionID))
	defer func() { _ = sub.Close() }()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	if err := b.PublishRequestQueued(ctx, sessionID, "req-1", "action"); err != nil {
		t.Fatalf("Failed to publish event: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			t.Fatalf("Failed to unmarshal event: %v", err)
		}
		if event.Type != EventTypeRequestQueued {
			t.Errorf("Expected event type %s, got %s", EventTypeRequestQueued, event.Type)
		}
		if event.RequestID != "req-1" {
			t.Errorf("Expected request ID 'req-1', got %q", event.RequestID)
		}
		if event.SessionID != sessionID.String() {
			t.Errorf("Expected session ID %s, got %s", sessionID, event.SessionID)
		}
		if event.ID == "" {
			t.Error("Expected a ULID event ID")
		}
		if event.Data["status"] != "queued" {
			t.Errorf("Expected status 'queued', got %v", event.Data["status"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for published event")
	}
}

func TestBroadcaster_EventIDsAreSortable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := NewBroadcaster(client, logger)

	ctx := context.Background()
	sessionID := uuid.New()

	sub := client.Subscribe(ctx, Channel(sessionID))
	defer func() { _ = sub.Close() }()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	if err := b.PublishTurnCompleted(ctx, sessionID, 1, "docks", "Fog rolls in."); err != nil {
		t.Fatalf("Failed to publish event: %v", err)
	}
	if err := b.PublishTurnCompleted(ctx, sessionID, 2, "market", "Gulls wheel overhead."); err != nil {
		t.Fatalf("Failed to publish event: %v", err)
	}

	var ids []string
	for len(ids) < 2 {
		select {
		case msg := <-sub.Channel():
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				t.Fatalf("Failed to unmarshal event: %v", err)
			}
			ids = append(ids, event.ID)
		case <-time.After(2 * time.Second):
			t.Fatal("Timed out waiting for published events")
		}
	}

	if ids[0] >= ids[1] {
		t.Errorf("Expected ULIDs in publish order, got %s then %s", ids[0], ids[1])
	}
}
