package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	stripego "github.com/stripe/stripe-go/v82"

	"github.com/subhamsarangi/polymathscurse/internal/store"
	"github.com/subhamsarangi/polymathscurse/internal/stripe"
	"github.com/subhamsarangi/polymathscurse/internal/ws"
)

// WebhookHandler reconciles provider payment events against export purchase
// records. Signature failures are rejected hard; business-logic failures are
// recorded on the event ledger and still acknowledged, so the provider never
// retry-storms over a bad purchase reference.
type WebhookHandler struct {
	stripe  *stripe.Client
	exports *store.ExportStore
	events  *store.WebhookEventStore
	hub     *ws.Hub
	logger  *slog.Logger
}

func NewWebhookHandler(stripeClient *stripe.Client, exports *store.ExportStore, events *store.WebhookEventStore, hub *ws.Hub, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		stripe:  stripeClient,
		exports: exports,
		events:  events,
		hub:     hub,
		logger:  logger.With("component", "webhook"),
	}
}

func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if !h.stripe.WebhookConfigured() {
		writeError(w, http.StatusServiceUnavailable, "webhook secret not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		writeError(w, http.StatusBadRequest, "missing signature")
		return
	}

	event, err := h.stripe.ConstructWebhookEvent(body, sigHeader)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	// The ledger insert is the idempotency gate: the first delivery of an
	// event id wins, every replay short-circuits here.
	if err := h.events.Insert(event.ID); err != nil {
		if errors.Is(err, store.ErrDuplicateEvent) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "duplicate": true})
			return
		}
		h.logger.Error("insert webhook event", "error", err, "event_id", event.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if event.Type != "checkout.session.completed" {
		if err := h.events.MarkIgnored(event.ID); err != nil {
			h.logger.Error("mark ignored", "error", err, "event_id", event.ID)
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	reason, ignored := h.fulfill(event)
	switch {
	case ignored:
		h.logger.Info("webhook event not applicable", "event_id", event.ID, "reason", reason)
		if err := h.events.MarkIgnored(event.ID); err != nil {
			h.logger.Error("mark ignored", "error", err, "event_id", event.ID)
		}
	case reason != "":
		h.logger.Warn("webhook fulfillment failed", "event_id", event.ID, "reason", reason)
		if err := h.events.MarkError(event.ID, reason); err != nil {
			h.logger.Error("mark error", "error", err, "event_id", event.ID)
		}
	default:
		if err := h.events.MarkProcessed(event.ID); err != nil {
			h.logger.Error("mark processed", "error", err, "event_id", event.ID)
		}
	}

	// Acknowledge regardless of the business outcome.
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// fulfill applies one checkout-completed event. A non-empty reason with
// ignored=true means the session is not a settleable payment and the event is
// shelved; ignored=false flags a real reconciliation failure. On success
// (including idempotent re-settlement) both returns are zero.
func (h *WebhookHandler) fulfill(event stripego.Event) (reason string, ignored bool) {
	var sess stripego.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Sprintf("unmarshal checkout session: %v", err), false
	}

	if sess.Mode != stripego.CheckoutSessionModePayment {
		return "unexpected session mode: " + string(sess.Mode), true
	}
	if sess.PaymentStatus != stripego.CheckoutSessionPaymentStatusPaid {
		// Asynchronous payment still settling; a later event will carry paid.
		return "payment status not paid: " + string(sess.PaymentStatus), true
	}

	ref := sess.Metadata["export_id"]
	if ref == "" {
		return "missing export_id metadata", false
	}
	exportID, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return "malformed export_id metadata: " + ref, false
	}

	err = h.exports.FulfillPayment(exportID, "stripe", sess.ID, int(sess.AmountTotal), strings.ToUpper(string(sess.Currency)))
	switch {
	case err == nil:
	case errors.Is(err, store.ErrAlreadySettled):
		// Duplicate settlement attempt for an already-paid export; fine.
		return "", false
	case errors.Is(err, store.ErrNotFound):
		return fmt.Sprintf("export %d not found", exportID), false
	case errors.Is(err, store.ErrUnexpectedStatus):
		return fmt.Sprintf("export %d in unexpected status", exportID), false
	case errors.Is(err, store.ErrAmountMismatch):
		return fmt.Sprintf("amount mismatch for export %d: got %d", exportID, sess.AmountTotal), false
	case errors.Is(err, store.ErrCurrencyMismatch):
		return fmt.Sprintf("currency mismatch for export %d: got %s", exportID, sess.Currency), false
	default:
		return fmt.Sprintf("settle export %d: %v", exportID, err), false
	}

	if export, err := h.exports.Get(exportID); err == nil && export != nil {
		h.hub.Notify(export.UserID, ws.NewMessage("export", "paid", export.ID, nil))
	}
	return "", false
}
