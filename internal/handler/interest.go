package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/subhamsarangi/polymathscurse/internal/auth"
	"github.com/subhamsarangi/polymathscurse/internal/model"
	"github.com/subhamsarangi/polymathscurse/internal/store"
	"github.com/subhamsarangi/polymathscurse/internal/ws"
)

type InterestHandler struct {
	interests *store.InterestStore
	hub       *ws.Hub
	logger    *slog.Logger
}

func NewInterestHandler(interests *store.InterestStore, hub *ws.Hub, logger *slog.Logger) *InterestHandler {
	return &InterestHandler{
		interests: interests,
		hub:       hub,
		logger:    logger.With("component", "interest"),
	}
}

func (h *InterestHandler) notify(userID int64, action string, interestID int64) {
	h.hub.Notify(userID, ws.NewMessage("interest", action, interestID, nil))
}

func (h *InterestHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && status != model.StatusFocus && status != model.StatusBacklog {
		writeError(w, http.StatusBadRequest, "status must be FOCUS or BACKLOG")
		return
	}

	interests, err := h.interests.List(auth.UserID(r.Context()), status)
	if err != nil {
		h.logger.Error("list interests", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if interests == nil {
		interests = []model.Interest{}
	}
	writeJSON(w, http.StatusOK, interests)
}

func (h *InterestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	userID := auth.UserID(r.Context())
	interest, err := h.interests.Create(userID, req.Name)
	if err != nil {
		h.logger.Error("create interest", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.notify(userID, "created", interest.ID)
	writeJSON(w, http.StatusCreated, interest)
}

func (h *InterestHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	interest, err := h.interests.GetOwned(auth.UserID(r.Context()), id)
	if err != nil {
		h.logger.Error("get interest", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if interest == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, interest)
}

func (h *InterestHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	userID := auth.UserID(r.Context())
	interest, err := h.interests.Rename(userID, id, req.Name)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.notify(userID, "renamed", interest.ID)
	writeJSON(w, http.StatusOK, interest)
}

func (h *InterestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	userID := auth.UserID(r.Context())
	if err := h.interests.Delete(userID, id); err != nil {
		writeStoreError(w, err)
		return
	}

	h.notify(userID, "deleted", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// transition runs one focus state machine operation and broadcasts the result.
func (h *InterestHandler) transition(w http.ResponseWriter, r *http.Request, action string,
	op func(userID, interestID int64) (*model.Interest, error)) {
	id, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	userID := auth.UserID(r.Context())
	interest, err := op(userID, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.notify(userID, action, interest.ID)
	writeJSON(w, http.StatusOK, interest)
}

func (h *InterestHandler) Focus(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "focused", h.interests.MoveToFocus)
}

func (h *InterestHandler) Backlog(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "backlogged", h.interests.MoveToBacklog)
}

func (h *InterestHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "paused", h.interests.Pause)
}

func (h *InterestHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "resumed", h.interests.Resume)
}

func (h *InterestHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	stints, err := h.interests.Timeline(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("timeline", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if stints == nil {
		stints = []model.TimelineStint{}
	}
	writeJSON(w, http.StatusOK, stints)
}
