package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/subhamsarangi/polymathscurse/internal/auth"
	"github.com/subhamsarangi/polymathscurse/internal/store"
)

// AccessCookieName is the cookie carrying the short-lived access token.
const AccessCookieName = "access_token"

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// RequireAuth validates the access token cookie, checks that the user still
// exists, and populates AuthContext for downstream handlers.
func RequireAuth(tokens *auth.TokenMaker, users *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(AccessCookieName)
			if err != nil || cookie.Value == "" {
				writeAuthError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			claims, err := tokens.Verify(cookie.Value, auth.TokenTypeAccess)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			user, err := users.GetByID(claims.UserID)
			if err != nil || user == nil {
				writeAuthError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			ac := auth.AuthContext{
				UserID: user.ID,
				Email:  user.Email,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin allows only the configured admin account through. It must run
// inside RequireAuth.
func RequireAdmin(adminEmail string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminEmail == "" || auth.Email(r.Context()) != adminEmail {
				writeAuthError(w, http.StatusForbidden, "admin only")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
