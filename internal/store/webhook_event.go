package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/subhamsarangi/polymathscurse/internal/model"
)

// WebhookEventStore is the deduplication ledger for provider webhook
// deliveries. Each event id is inserted exactly once; a unique violation on
// insert marks the delivery as a duplicate.
type WebhookEventStore struct {
	db *sql.DB
}

func NewWebhookEventStore(db *sql.DB) *WebhookEventStore {
	return &WebhookEventStore{db: db}
}

// Insert records a newly received event. Returns ErrDuplicateEvent when the
// event id has been seen before.
func (s *WebhookEventStore) Insert(eventID string) error {
	_, err := s.db.Exec(
		`INSERT INTO stripe_webhook_events (event_id, status) VALUES (?, ?)`,
		eventID, model.EventReceived,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("insert webhook event: %w", err)
	}
	return nil
}

func (s *WebhookEventStore) setStatus(eventID, status string, errMsg *string) error {
	_, err := s.db.Exec(
		`UPDATE stripe_webhook_events SET status = ?, error = ?, processed_at = ?
		  WHERE event_id = ?`,
		status, errMsg, time.Now().UTC(), eventID,
	)
	if err != nil {
		return fmt.Errorf("update webhook event: %w", err)
	}
	return nil
}

func (s *WebhookEventStore) MarkProcessed(eventID string) error {
	return s.setStatus(eventID, model.EventProcessed, nil)
}

func (s *WebhookEventStore) MarkIgnored(eventID string) error {
	return s.setStatus(eventID, model.EventIgnored, nil)
}

func (s *WebhookEventStore) MarkError(eventID, reason string) error {
	return s.setStatus(eventID, model.EventError, &reason)
}

func (s *WebhookEventStore) GetByEventID(eventID string) (*model.WebhookEvent, error) {
	row := s.db.QueryRow(
		`SELECT id, event_id, status, error, received_at, processed_at
		   FROM stripe_webhook_events WHERE event_id = ?`,
		eventID,
	)
	var e model.WebhookEvent
	var errMsg sql.NullString
	var processedAt sql.NullTime
	err := row.Scan(&e.ID, &e.EventID, &e.Status, &errMsg, &e.ReceivedAt, &processedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook event: %w", err)
	}
	if errMsg.Valid {
		e.Error = &errMsg.String
	}
	if processedAt.Valid {
		e.ProcessedAt = &processedAt.Time
	}
	return &e, nil
}
