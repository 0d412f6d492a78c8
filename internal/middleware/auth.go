package middleware

import (
	"net/http"
	"strings"

	"github.com/pinmehq/toybox/internal/auth"
	"github.com/pinmehq/toybox/internal/device"
	"github.com/pinmehq/toybox/internal/store"
)

// RequireSession validates the bearer token against the session store and
// populates AuthContext for downstream handlers.
func RequireSession(sessions *store.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			sess, err := sessions.Lookup(token)
			if err != nil || sess == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ac := auth.AuthContext{
				UserID:    sess.UserID,
				SessionID: sess.TokenHash,
			}
			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalSession populates AuthContext when a valid bearer token is
// present but lets anonymous requests through. Settings endpoints use it:
// signed-out saves still land in the local cache.
func OptionalSession(sessions *store.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				if sess, err := sessions.Lookup(token); err == nil && sess != nil {
					ctx := auth.WithAuth(r.Context(), auth.AuthContext{
						UserID:    sess.UserID,
						SessionID: sess.TokenHash,
					})
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireDevice validates a reader device token and populates the device
// identity. Used by the scan endpoint RFID readers hit directly.
func RequireDevice(provisioner *device.Provisioner) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			dev, err := provisioner.Authenticate(token)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ac := auth.AuthContext{
				UserID:   dev.UserID,
				DeviceID: dev.ID,
			}
			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
