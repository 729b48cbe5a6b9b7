package store

import (
	"errors"
	"testing"

	"github.com/subhamsarangi/polymathscurse/internal/database"
	"github.com/subhamsarangi/polymathscurse/internal/model"
)

func setupWebhookEventTestDB(t *testing.T) *WebhookEventStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWebhookEventStore(db)
}

func TestWebhookEventDeduplication(t *testing.T) {
	ws := setupWebhookEventTestDB(t)

	if err := ws.Insert("evt_1"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := ws.Insert("evt_1"); !errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("expected ErrDuplicateEvent, got %v", err)
	}
	// A different event id is unaffected.
	if err := ws.Insert("evt_2"); err != nil {
		t.Fatalf("insert second: %v", err)
	}
}

func TestWebhookEventStatusTransitions(t *testing.T) {
	ws := setupWebhookEventTestDB(t)

	if err := ws.Insert("evt_1"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	event, err := ws.GetByEventID("evt_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if event.Status != model.EventReceived {
		t.Errorf("status = %q, want received", event.Status)
	}
	if event.ProcessedAt != nil {
		t.Error("processed_at set before processing")
	}

	if err := ws.MarkProcessed("evt_1"); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	event, err = ws.GetByEventID("evt_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if event.Status != model.EventProcessed || event.ProcessedAt == nil {
		t.Fatalf("event = %+v, want processed with processed_at", event)
	}

	if err := ws.Insert("evt_2"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := ws.MarkError("evt_2", "amount mismatch"); err != nil {
		t.Fatalf("mark error: %v", err)
	}
	event, err = ws.GetByEventID("evt_2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if event.Status != model.EventError {
		t.Errorf("status = %q, want error", event.Status)
	}
	if event.Error == nil || *event.Error != "amount mismatch" {
		t.Errorf("error = %v, want amount mismatch", event.Error)
	}

	if err := ws.Insert("evt_3"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := ws.MarkIgnored("evt_3"); err != nil {
		t.Fatalf("mark ignored: %v", err)
	}
	event, err = ws.GetByEventID("evt_3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if event.Status != model.EventIgnored {
		t.Errorf("status = %q, want ignored", event.Status)
	}
}
