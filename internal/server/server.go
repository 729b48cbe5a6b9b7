package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/subhamsarangi/polymathscurse/internal/auth"
	"github.com/subhamsarangi/polymathscurse/internal/handler"
	"github.com/subhamsarangi/polymathscurse/internal/middleware"
	"github.com/subhamsarangi/polymathscurse/internal/store"
	"github.com/subhamsarangi/polymathscurse/internal/stripe"
	"github.com/subhamsarangi/polymathscurse/internal/ws"
)

type Config struct {
	AdminEmail   string
	CookieDomain string
	CookieSecure bool
	JWTSecret    string
	JWTIssuer    string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	Stripe       stripe.Config
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	authH       *handler.AuthHandler
	interestH   *handler.InterestHandler
	targetH     *handler.TargetHandler
	exportH     *handler.ExportHandler
	webhookH    *handler.WebhookHandler
	adminH      *handler.AdminHandler
	userStore   *store.UserStore
	tokens      *auth.TokenMaker
	rateLimiter *middleware.RateLimiter
	adminEmail  string
	logger      *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	interestStore := store.NewInterestStore(db)
	targetStore := store.NewTargetStore(db)
	exportStore := store.NewExportStore(db)
	eventStore := store.NewWebhookEventStore(db)
	settingsStore := store.NewSettingsStore(db)
	metricsStore := store.NewMetricsStore(db)

	tokens := auth.NewTokenMaker(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL)
	stripeClient := stripe.NewClient(cfg.Stripe)

	return &Server{
		db:          db,
		hub:         hub,
		authH:       handler.NewAuthHandler(userStore, tokens, logger, cfg.CookieDomain, cfg.CookieSecure),
		interestH:   handler.NewInterestHandler(interestStore, hub, logger),
		targetH:     handler.NewTargetHandler(targetStore, interestStore, hub, logger),
		exportH:     handler.NewExportHandler(exportStore, interestStore, settingsStore, stripeClient, hub, logger),
		webhookH:    handler.NewWebhookHandler(stripeClient, exportStore, eventStore, hub, logger),
		adminH:      handler.NewAdminHandler(settingsStore, metricsStore, exportStore, hub, logger),
		userStore:   userStore,
		tokens:      tokens,
		rateLimiter: middleware.NewRateLimiter(),
		adminEmail:  cfg.AdminEmail,
		logger:      logger,
	}
}

// RateLimiter returns the in-memory limiter for periodic cleanup.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/signup", s.rateLimitedHandler(s.authH.Signup))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /api/auth/refresh", s.authH.Refresh)
	outerMux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	outerMux.HandleFunc("POST /api/webhooks/stripe", s.webhookH.HandleStripeWebhook)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes behind RequireAuth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.tokens, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Interests and the focus state machine
	mux.HandleFunc("GET /api/interests", s.interestH.List)
	mux.HandleFunc("POST /api/interests", s.interestH.Create)
	mux.HandleFunc("GET /api/interests/{id}", s.interestH.Get)
	mux.HandleFunc("PATCH /api/interests/{id}", s.interestH.Rename)
	mux.HandleFunc("DELETE /api/interests/{id}", s.interestH.Delete)
	mux.HandleFunc("POST /api/interests/{id}/focus", s.interestH.Focus)
	mux.HandleFunc("POST /api/interests/{id}/backlog", s.interestH.Backlog)
	mux.HandleFunc("POST /api/interests/{id}/pause", s.interestH.Pause)
	mux.HandleFunc("POST /api/interests/{id}/resume", s.interestH.Resume)
	mux.HandleFunc("GET /api/timeline", s.interestH.Timeline)

	// Targets, bullets, todos
	mux.HandleFunc("GET /api/interests/{id}/targets", s.targetH.List)
	mux.HandleFunc("POST /api/interests/{id}/targets", s.targetH.Create)
	mux.HandleFunc("GET /api/targets/{id}", s.targetH.Get)
	mux.HandleFunc("PATCH /api/targets/{id}", s.targetH.Rename)
	mux.HandleFunc("DELETE /api/targets/{id}", s.targetH.Delete)
	mux.HandleFunc("PUT /api/targets/{id}/bullets", s.targetH.ReplaceBullets)
	mux.HandleFunc("POST /api/targets/{id}/todos", s.targetH.CreateTodo)
	mux.HandleFunc("PATCH /api/todos/{id}", s.targetH.EditTodo)
	mux.HandleFunc("POST /api/todos/{id}/done", s.targetH.MarkTodoDone)
	mux.HandleFunc("POST /api/todos/{id}/move", s.targetH.MoveTodo)

	// Export purchases and downloads
	mux.HandleFunc("POST /api/interests/{id}/export", s.exportH.Create)
	mux.HandleFunc("GET /api/exports/{id}", s.exportH.Get)
	mux.HandleFunc("POST /api/exports/{id}/checkout", s.exportH.Checkout)
	mux.HandleFunc("POST /api/exports/{id}/token", s.exportH.MintToken)
	mux.HandleFunc("POST /api/exports/download", s.exportH.Download)

	// Live sync
	mux.HandleFunc("GET /api/ws", ws.Handler(s.hub, s.logger.With("component", "websocket")))

	// Admin surface
	adminMiddleware := middleware.RequireAdmin(s.adminEmail)
	mux.Handle("GET /api/admin/export-mode", adminMiddleware(http.HandlerFunc(s.adminH.GetExportMode)))
	mux.Handle("PUT /api/admin/export-mode", adminMiddleware(http.HandlerFunc(s.adminH.SetExportMode)))
	mux.Handle("POST /api/admin/promo", adminMiddleware(http.HandlerFunc(s.adminH.StartPromo)))
	mux.Handle("DELETE /api/admin/promo", adminMiddleware(http.HandlerFunc(s.adminH.ClearPromo)))
	mux.Handle("GET /api/admin/metrics", adminMiddleware(http.HandlerFunc(s.adminH.Metrics)))
	mux.Handle("POST /api/admin/exports/{id}/cancel", adminMiddleware(http.HandlerFunc(s.adminH.CancelExport)))
}
