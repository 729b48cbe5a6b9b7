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

type TargetHandler struct {
	targets   *store.TargetStore
	interests *store.InterestStore
	hub       *ws.Hub
	logger    *slog.Logger
}

func NewTargetHandler(targets *store.TargetStore, interests *store.InterestStore, hub *ws.Hub, logger *slog.Logger) *TargetHandler {
	return &TargetHandler{
		targets:   targets,
		interests: interests,
		hub:       hub,
		logger:    logger.With("component", "target"),
	}
}

// guardInterest checks that the interest is owned by the user and, for
// mutations, in active focus. Paused and backlogged interests are read-only.
func (h *TargetHandler) guardInterest(w http.ResponseWriter, userID, interestID int64, mutating bool) *model.Interest {
	interest, err := h.interests.GetOwned(userID, interestID)
	if err != nil {
		h.logger.Error("get interest", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	if interest == nil {
		writeError(w, http.StatusNotFound, "not found")
		return nil
	}
	if mutating && !interest.Interactive() {
		writeError(w, http.StatusForbidden, "interest is not in active focus")
		return nil
	}
	return interest
}

// guardTarget resolves the target's interest and applies the same guard.
func (h *TargetHandler) guardTarget(w http.ResponseWriter, userID, targetID int64, mutating bool) bool {
	interest, err := h.targets.InterestForTarget(userID, targetID)
	if err != nil {
		h.logger.Error("interest for target", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return false
	}
	if interest == nil {
		writeError(w, http.StatusNotFound, "not found")
		return false
	}
	if mutating && !interest.Interactive() {
		writeError(w, http.StatusForbidden, "interest is not in active focus")
		return false
	}
	return true
}

func (h *TargetHandler) List(w http.ResponseWriter, r *http.Request) {
	interestID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if h.guardInterest(w, auth.UserID(r.Context()), interestID, false) == nil {
		return
	}

	targets, err := h.targets.ListForInterest(interestID)
	if err != nil {
		h.logger.Error("list targets", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if targets == nil {
		targets = []model.Target{}
	}
	writeJSON(w, http.StatusOK, targets)
}

func (h *TargetHandler) Create(w http.ResponseWriter, r *http.Request) {
	interestID, err := parsePathID(r, "id")
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
	if h.guardInterest(w, userID, interestID, true) == nil {
		return
	}

	target, err := h.targets.Create(interestID, req.Name)
	if err != nil {
		h.logger.Error("create target", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.hub.Notify(userID, ws.NewMessage("target", "created", target.ID, map[string]any{"interest_id": interestID}))
	writeJSON(w, http.StatusCreated, target)
}

func (h *TargetHandler) Get(w http.ResponseWriter, r *http.Request) {
	targetID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if !h.guardTarget(w, auth.UserID(r.Context()), targetID, false) {
		return
	}

	detail, err := h.targets.Detail(targetID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *TargetHandler) Rename(w http.ResponseWriter, r *http.Request) {
	targetID, err := parsePathID(r, "id")
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
	if !h.guardTarget(w, userID, targetID, true) {
		return
	}

	target, err := h.targets.Rename(targetID, req.Name)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.hub.Notify(userID, ws.NewMessage("target", "renamed", target.ID, nil))
	writeJSON(w, http.StatusOK, target)
}

func (h *TargetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	targetID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	userID := auth.UserID(r.Context())
	if !h.guardTarget(w, userID, targetID, true) {
		return
	}

	if err := h.targets.Delete(targetID); err != nil {
		writeStoreError(w, err)
		return
	}

	h.hub.Notify(userID, ws.NewMessage("target", "deleted", targetID, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ReplaceBullets swaps the target's whole bullet board in one shot.
func (h *TargetHandler) ReplaceBullets(w http.ResponseWriter, r *http.Request) {
	targetID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Bullets []store.BulletInput `json:"bullets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	for _, b := range req.Bullets {
		if strings.TrimSpace(b.Content) == "" {
			writeError(w, http.StatusBadRequest, "bullet content is required")
			return
		}
	}

	userID := auth.UserID(r.Context())
	if !h.guardTarget(w, userID, targetID, true) {
		return
	}

	bullets, err := h.targets.ReplaceBullets(targetID, req.Bullets)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.hub.Notify(userID, ws.NewMessage("target", "bullets_replaced", targetID, nil))
	writeJSON(w, http.StatusOK, bullets)
}

func (h *TargetHandler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	targetID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Content string `json:"content"`
		Status  string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.Status == "" {
		req.Status = model.TodoActive
	}
	if req.Status != model.TodoActive && req.Status != model.TodoBacklog {
		writeError(w, http.StatusBadRequest, "status must be ACTIVE or BACKLOG")
		return
	}

	userID := auth.UserID(r.Context())
	if !h.guardTarget(w, userID, targetID, true) {
		return
	}

	todo, err := h.targets.CreateTodo(targetID, req.Status, req.Content)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.hub.Notify(userID, ws.NewMessage("todo", "created", todo.ID, map[string]any{"target_id": targetID}))
	writeJSON(w, http.StatusCreated, todo)
}

// guardTodo resolves the todo through its target's interest and applies the
// interactive guard for mutations.
func (h *TargetHandler) guardTodo(w http.ResponseWriter, userID, todoID int64) *model.Todo {
	todo, err := h.targets.GetOwnedTodo(userID, todoID)
	if err != nil {
		h.logger.Error("get todo", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	if todo == nil {
		writeError(w, http.StatusNotFound, "not found")
		return nil
	}
	if !h.guardTarget(w, userID, todo.TargetID, true) {
		return nil
	}
	return todo
}

func (h *TargetHandler) EditTodo(w http.ResponseWriter, r *http.Request) {
	todoID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	userID := auth.UserID(r.Context())
	if h.guardTodo(w, userID, todoID) == nil {
		return
	}

	todo, err := h.targets.EditTodo(todoID, req.Content)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.hub.Notify(userID, ws.NewMessage("todo", "edited", todo.ID, nil))
	writeJSON(w, http.StatusOK, todo)
}

func (h *TargetHandler) MarkTodoDone(w http.ResponseWriter, r *http.Request) {
	todoID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	userID := auth.UserID(r.Context())
	existing := h.guardTodo(w, userID, todoID)
	if existing == nil {
		return
	}
	if existing.Status == model.TodoDone {
		writeJSON(w, http.StatusOK, existing)
		return
	}

	todo, err := h.targets.MarkDone(todoID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.hub.Notify(userID, ws.NewMessage("todo", "done", todo.ID, nil))
	writeJSON(w, http.StatusOK, todo)
}

func (h *TargetHandler) MoveTodo(w http.ResponseWriter, r *http.Request) {
	todoID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Status != model.TodoActive && req.Status != model.TodoBacklog {
		writeError(w, http.StatusBadRequest, "status must be ACTIVE or BACKLOG")
		return
	}

	userID := auth.UserID(r.Context())
	if h.guardTodo(w, userID, todoID) == nil {
		return
	}

	todo, err := h.targets.MoveTodo(todoID, req.Status)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.hub.Notify(userID, ws.NewMessage("todo", "moved", todo.ID, nil))
	writeJSON(w, http.StatusOK, todo)
}
