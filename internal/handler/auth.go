package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/subhamsarangi/polymathscurse/internal/auth"
	"github.com/subhamsarangi/polymathscurse/internal/middleware"
	"github.com/subhamsarangi/polymathscurse/internal/store"
)

const refreshCookieName = "refresh_token"

type AuthHandler struct {
	users        *store.UserStore
	tokens       *auth.TokenMaker
	logger       *slog.Logger
	cookieDomain string
	cookieSecure bool
}

func NewAuthHandler(users *store.UserStore, tokens *auth.TokenMaker, logger *slog.Logger, cookieDomain string, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		users:        users,
		tokens:       tokens,
		logger:       logger.With("component", "auth"),
		cookieDomain: cookieDomain,
		cookieSecure: cookieSecure,
	}
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value, path string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   h.cookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) setAuthCookies(w http.ResponseWriter, userID int64, jti string) error {
	access, err := h.tokens.NewAccessToken(userID)
	if err != nil {
		return err
	}
	refresh, err := h.tokens.NewRefreshToken(userID, jti)
	if err != nil {
		return err
	}
	h.setCookie(w, middleware.AccessCookieName, access, "/", int(h.tokens.AccessTTL().Seconds()))
	h.setCookie(w, refreshCookieName, refresh, "/api/auth", int(h.tokens.RefreshTTL().Seconds()))
	return nil
}

func (h *AuthHandler) clearAuthCookies(w http.ResponseWriter) {
	h.setCookie(w, middleware.AccessCookieName, "", "/", -1)
	h.setCookie(w, refreshCookieName, "", "/api/auth", -1)
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "valid email is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	jti := auth.NewJTI()
	user, err := h.users.Create(req.Email, string(hash), jti)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if err := h.setAuthCookies(w, user.ID, jti); err != nil {
		h.logger.Error("issue tokens", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user, err := h.users.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		h.logger.Error("lookup user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	// A fresh login invalidates every previously issued refresh token.
	jti := auth.NewJTI()
	if err := h.users.RotateRefreshJTI(user.ID, jti); err != nil {
		h.logger.Error("rotate refresh jti", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.setAuthCookies(w, user.ID, jti); err != nil {
		h.logger.Error("issue tokens", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Refresh rotates the refresh token. The presented token's jti must match the
// one stored on the user row; a stale or replayed token is rejected.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	claims, err := h.tokens.Verify(cookie.Value, auth.TokenTypeRefresh)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := h.users.GetByID(claims.UserID)
	if err != nil {
		h.logger.Error("lookup user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || user.RefreshJTI == nil || *user.RefreshJTI != claims.JTI {
		h.clearAuthCookies(w)
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	jti := auth.NewJTI()
	if err := h.users.RotateRefreshJTI(user.ID, jti); err != nil {
		h.logger.Error("rotate refresh jti", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.setAuthCookies(w, user.ID, jti); err != nil {
		h.logger.Error("issue tokens", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		if claims, err := h.tokens.Verify(cookie.Value, auth.TokenTypeRefresh); err == nil {
			if err := h.users.ClearRefreshJTI(claims.UserID); err != nil {
				h.logger.Error("clear refresh jti", "error", err)
			}
		}
	}
	h.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(auth.UserID(r.Context()))
	if err != nil || user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
