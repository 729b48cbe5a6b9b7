package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/subhamsarangi/polymathscurse/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func parsePathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

// writeStoreError maps store sentinel errors onto HTTP statuses: missing or
// unowned entities are 404, ownership and interactivity violations 403,
// state machine and capacity violations 409, and an unpaid token mint 402.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrTokenForbidden):
		writeError(w, http.StatusForbidden, "token belongs to another user")
	case errors.Is(err, store.ErrNotInteractive):
		writeError(w, http.StatusForbidden, "interest is not in active focus")
	case errors.Is(err, store.ErrNotExportable):
		writeError(w, http.StatusForbidden, "interest is not in focus")
	case errors.Is(err, store.ErrFocusLimitReached):
		writeError(w, http.StatusConflict, "focus limit reached")
	case errors.Is(err, store.ErrNotInFocus):
		writeError(w, http.StatusConflict, "interest is not in focus")
	case errors.Is(err, store.ErrNoOpenStint):
		writeError(w, http.StatusConflict, "no open stint for this interest")
	case errors.Is(err, store.ErrBulletLimit):
		writeError(w, http.StatusConflict, "bullet limit exceeded")
	case errors.Is(err, store.ErrActiveTodoLimit):
		writeError(w, http.StatusConflict, "active todo limit reached")
	case errors.Is(err, store.ErrBacklogTodoLimit):
		writeError(w, http.StatusConflict, "backlog todo limit reached")
	case errors.Is(err, store.ErrTodoDone):
		writeError(w, http.StatusConflict, "todo is done")
	case errors.Is(err, store.ErrPaymentRequired):
		writeError(w, http.StatusPaymentRequired, "export is not paid")
	case errors.Is(err, store.ErrExportCanceled):
		writeError(w, http.StatusConflict, "export is canceled")
	case errors.Is(err, store.ErrExportConsumed):
		writeError(w, http.StatusConflict, "export is already consumed")
	case errors.Is(err, store.ErrNotRedeemable):
		writeError(w, http.StatusConflict, "token is not redeemable")
	case errors.Is(err, store.ErrNotPayable):
		writeError(w, http.StatusConflict, "export is not awaiting payment")
	case errors.Is(err, store.ErrExportsFreeNow):
		writeError(w, http.StatusConflict, "exports are currently free")
	case errors.Is(err, store.ErrNotCancelable):
		writeError(w, http.StatusConflict, "export cannot be canceled")
	case errors.Is(err, store.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
