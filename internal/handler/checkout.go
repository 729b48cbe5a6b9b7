package handler

import (
	"net/http"
	"time"

	"github.com/subhamsarangi/polymathscurse/internal/auth"
	"github.com/subhamsarangi/polymathscurse/internal/model"
	"github.com/subhamsarangi/polymathscurse/internal/store"
)

// Checkout creates a payment session for a PENDING export and returns the
// provider URL to redirect the buyer to. While the free-export override is
// active there is nothing to pay for and the call is rejected.
func (h *ExportHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	exportID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if !h.stripe.Configured() {
		writeError(w, http.StatusServiceUnavailable, "payments are not configured")
		return
	}

	userID := auth.UserID(r.Context())
	export, err := h.exports.GetForUser(exportID, userID)
	if err != nil {
		h.logger.Error("get export", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if export == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if export.Status != model.ExportPending {
		writeStoreError(w, store.ErrNotPayable)
		return
	}

	settings, err := h.settings.Get()
	if err != nil {
		h.logger.Error("get settings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if settings.ExportsFreeAt(time.Now().UTC()) {
		writeStoreError(w, store.ErrExportsFreeNow)
		return
	}

	interest, err := h.interests.GetOwned(userID, export.InterestID)
	if err != nil || interest == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	url, sessionID, err := h.stripe.CreateExportCheckoutSession(export.ID, interest.Name, export.AmountCents, export.Currency)
	if err != nil {
		h.logger.Error("create checkout session", "error", err, "export_id", export.ID)
		writeError(w, http.StatusBadGateway, "failed to create checkout session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"checkout_url": url,
		"session_id":   sessionID,
	})
}
