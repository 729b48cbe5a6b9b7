package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/subhamsarangi/polymathscurse/internal/auth"
	"github.com/subhamsarangi/polymathscurse/internal/model"
	"github.com/subhamsarangi/polymathscurse/internal/store"
	"github.com/subhamsarangi/polymathscurse/internal/stripe"
	"github.com/subhamsarangi/polymathscurse/internal/ws"
)

type ExportHandler struct {
	exports   *store.ExportStore
	interests *store.InterestStore
	settings  *store.SettingsStore
	stripe    *stripe.Client
	hub       *ws.Hub
	logger    *slog.Logger
}

func NewExportHandler(exports *store.ExportStore, interests *store.InterestStore, settings *store.SettingsStore, stripeClient *stripe.Client, hub *ws.Hub, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		exports:   exports,
		interests: interests,
		settings:  settings,
		stripe:    stripeClient,
		hub:       hub,
		logger:    logger.With("component", "export"),
	}
}

// Create starts a purchase for an interest's export. The interest must be
// owned by the caller and in focus. When the free-export override is active
// the record is born PAID at amount zero; the token still has to be minted
// separately.
func (h *ExportHandler) Create(w http.ResponseWriter, r *http.Request) {
	interestID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	userID := auth.UserID(r.Context())
	interest, err := h.interests.GetOwned(userID, interestID)
	if err != nil {
		h.logger.Error("get interest", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if interest == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if interest.Status != model.StatusFocus {
		writeError(w, http.StatusForbidden, "interest is not in focus")
		return
	}

	settings, err := h.settings.Get()
	if err != nil {
		h.logger.Error("get settings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var export *model.ExportDownload
	if settings.ExportsFreeAt(time.Now().UTC()) {
		export, err = h.exports.CreateFree(userID, interestID, h.stripe.Currency())
	} else {
		export, err = h.exports.CreatePending(userID, interestID, h.stripe.PriceCents(), h.stripe.Currency())
	}
	if err != nil {
		h.logger.Error("create export", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.hub.Notify(userID, ws.NewMessage("export", "created", export.ID, map[string]any{"status": export.Status}))
	writeJSON(w, http.StatusCreated, export)
}

func (h *ExportHandler) Get(w http.ResponseWriter, r *http.Request) {
	exportID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	export, err := h.exports.GetForUser(exportID, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get export", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if export == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, export)
}

// MintToken issues (or re-returns) the export's single-use download token.
func (h *ExportHandler) MintToken(w http.ResponseWriter, r *http.Request) {
	exportID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	token, err := h.exports.MintToken(exportID, auth.UserID(r.Context()))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Download redeems a token for the export payload. Exactly one redemption
// succeeds per token.
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	userID := auth.UserID(r.Context())
	payload, err := h.exports.Redeem(req.Token, userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.hub.Notify(userID, ws.NewMessage("export", "consumed", payload.ID, nil))
	writeJSON(w, http.StatusOK, payload)
}
