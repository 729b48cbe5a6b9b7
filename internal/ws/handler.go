package ws

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/subhamsarangi/polymathscurse/internal/auth"
)

// Handler returns an HTTP handler that upgrades authenticated connections to
// WebSocket and runs them as hub clients. It must be mounted behind the auth
// middleware so the user id is present in the request context.
func Handler(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == 0 {
			http.Error(w, "not authenticated", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, userID)
		client.Run(r.Context())
	}
}
