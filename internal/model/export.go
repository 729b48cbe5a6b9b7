package model

import "time"

// ExportDownload status values.
const (
	ExportPending  = "PENDING"
	ExportPaid     = "PAID"
	ExportConsumed = "CONSUMED"
	ExportCanceled = "CANCELED"
)

// ProviderFreeMode marks purchases created while the free-export override was active.
const ProviderFreeMode = "FREE_MODE"

// ExportDownload is one purchasable PDF export of a focus interest.
// One paid download = one record: the record becomes PAID, the owner mints a
// single-use token, and the token is redeemed exactly once.
type ExportDownload struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"-"`
	InterestID    int64      `json:"interest_id"`
	Status        string     `json:"status"`
	Provider      *string    `json:"provider"`
	ProviderRef   *string    `json:"provider_ref"`
	AmountCents   int        `json:"amount_cents"`
	Currency      string     `json:"currency"`
	Token         *string    `json:"-"`
	TokenIssuedAt *time.Time `json:"-"`
	PaidAt        *time.Time `json:"paid_at"`
	ConsumedAt    *time.Time `json:"consumed_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// WebhookEvent ledger statuses.
const (
	EventReceived  = "received"
	EventProcessed = "processed"
	EventIgnored   = "ignored"
	EventError     = "error"
)

// WebhookEvent is the idempotency ledger row for one provider delivery,
// keyed by the provider's unique event id.
type WebhookEvent struct {
	ID          int64      `json:"id"`
	EventID     string     `json:"event_id"`
	Status      string     `json:"status"`
	Error       *string    `json:"error"`
	ReceivedAt  time.Time  `json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at"`
}
