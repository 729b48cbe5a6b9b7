package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/subhamsarangi/polymathscurse/internal/store"
	"github.com/subhamsarangi/polymathscurse/internal/ws"
)

type AdminHandler struct {
	settings *store.SettingsStore
	metrics  *store.MetricsStore
	exports  *store.ExportStore
	hub      *ws.Hub
	logger   *slog.Logger
}

func NewAdminHandler(settings *store.SettingsStore, metrics *store.MetricsStore, exports *store.ExportStore, hub *ws.Hub, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		settings: settings,
		metrics:  metrics,
		exports:  exports,
		hub:      hub,
		logger:   logger.With("component", "admin"),
	}
}

func (h *AdminHandler) GetExportMode(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get()
	if err != nil {
		h.logger.Error("get settings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"free_exports_enabled": settings.FreeExportsEnabled,
		"free_exports_until":   settings.FreeExportsUntil,
		"free_now":             settings.ExportsFreeAt(time.Now().UTC()),
	})
}

func (h *AdminHandler) SetExportMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FreeExportsEnabled bool `json:"free_exports_enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	settings, err := h.settings.SetFreeExportsEnabled(req.FreeExportsEnabled)
	if err != nil {
		h.logger.Error("set export mode", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.logger.Info("export mode changed", "free_exports_enabled", req.FreeExportsEnabled)
	writeJSON(w, http.StatusOK, settings)
}

// StartPromo starts or extends a free-export promo window.
func (h *AdminHandler) StartPromo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Days    int `json:"days"`
		Hours   int `json:"hours"`
		Minutes int `json:"minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Days < 0 || req.Hours < 0 || req.Minutes < 0 {
		writeError(w, http.StatusBadRequest, "duration must be positive")
		return
	}

	d := time.Duration(req.Days)*24*time.Hour +
		time.Duration(req.Hours)*time.Hour +
		time.Duration(req.Minutes)*time.Minute
	if d <= 0 {
		writeError(w, http.StatusBadRequest, "duration must be positive")
		return
	}

	settings, err := h.settings.ExtendPromo(d)
	if err != nil {
		h.logger.Error("extend promo", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.logger.Info("promo extended", "until", settings.FreeExportsUntil)
	writeJSON(w, http.StatusOK, settings)
}

func (h *AdminHandler) ClearPromo(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.ClearPromo()
	if err != nil {
		h.logger.Error("clear promo", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// CancelExport is the administrative escape hatch for stuck or refunded
// purchases.
func (h *AdminHandler) CancelExport(w http.ResponseWriter, r *http.Request) {
	exportID, err := parsePathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	export, err := h.exports.Cancel(exportID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.logger.Info("export canceled", "export_id", export.ID, "user_id", export.UserID)
	h.hub.Notify(export.UserID, ws.NewMessage("export", "canceled", export.ID, nil))
	writeJSON(w, http.StatusOK, export)
}

type metricsWindow struct {
	Label       string    `json:"label"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	NewUsers    int       `json:"new_users"`
	PayingUsers int       `json:"paying_users"`
	RevenueCent int       `json:"revenue_cents"`
}

type metricsDelta struct {
	NewUsers    int      `json:"new_users"`
	PayingUsers int      `json:"paying_users"`
	RevenueCent int      `json:"revenue_cents"`
	RevenuePct  *float64 `json:"revenue_pct,omitempty"`
}

func (h *AdminHandler) windowCounters(label string, start, end time.Time) (*metricsWindow, error) {
	newUsers, err := h.metrics.NewUsersBetween(start, end)
	if err != nil {
		return nil, err
	}
	paying, err := h.metrics.PayingUsersBetween(start, end)
	if err != nil {
		return nil, err
	}
	revenue, err := h.metrics.RevenueCentsBetween(start, end)
	if err != nil {
		return nil, err
	}
	return &metricsWindow{
		Label:       label,
		Start:       start,
		End:         end,
		NewUsers:    newUsers,
		PayingUsers: paying,
		RevenueCent: revenue,
	}, nil
}

// Metrics reports all-time counters plus a comparison window. The window
// defaults to the last 7 days; ?window=today|7d|30d|365d selects a preset and
// ?start=&end= (RFC 3339) selects a custom range. The previous period of equal
// length is included for delta math.
func (h *AdminHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()

	var start, end time.Time
	label := r.URL.Query().Get("window")
	switch label {
	case "", "7d":
		label = "7d"
		end = now
		start = now.AddDate(0, 0, -7)
	case "today":
		end = now
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case "30d":
		end = now
		start = now.AddDate(0, 0, -30)
	case "365d":
		end = now
		start = now.AddDate(0, 0, -365)
	case "custom":
		var err error
		start, err = time.Parse(time.RFC3339, r.URL.Query().Get("start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be RFC 3339")
			return
		}
		end, err = time.Parse(time.RFC3339, r.URL.Query().Get("end"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be RFC 3339")
			return
		}
		if !end.After(start) {
			writeError(w, http.StatusBadRequest, "end must be after start")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "window must be today, 7d, 30d, 365d or custom")
		return
	}

	totalUsers, err := h.metrics.TotalUsers()
	if err != nil {
		h.logger.Error("total users", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	payingUsers, err := h.metrics.PayingUsers()
	if err != nil {
		h.logger.Error("paying users", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	revenue, err := h.metrics.RevenueCents()
	if err != nil {
		h.logger.Error("revenue", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	current, err := h.windowCounters(label, start, end)
	if err != nil {
		h.logger.Error("window counters", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	span := end.Sub(start)
	previous, err := h.windowCounters("previous", start.Add(-span), start)
	if err != nil {
		h.logger.Error("window counters", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	delta := metricsDelta{
		NewUsers:    current.NewUsers - previous.NewUsers,
		PayingUsers: current.PayingUsers - previous.PayingUsers,
		RevenueCent: current.RevenueCent - previous.RevenueCent,
	}
	if previous.RevenueCent > 0 {
		pct := float64(delta.RevenueCent) / float64(previous.RevenueCent) * 100
		delta.RevenuePct = &pct
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"all_time": map[string]int{
			"users":         totalUsers,
			"paying_users":  payingUsers,
			"revenue_cents": revenue,
		},
		"window":   current,
		"previous": previous,
		"delta":    delta,
	})
}
