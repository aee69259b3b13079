// Package auth provides API key authentication middleware.
package auth

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/riwatch/backend/internal/apierrors"
)

// APIKeyMiddleware validates the X-API-Key header against a bcrypt
// hash of the expected key. An empty hash disables authentication.
func APIKeyMiddleware(keyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keyHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-API-Key")
			if key == "" {
				if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
					key = strings.TrimPrefix(h, "Bearer ")
				}
			}
			if key == "" {
				apierrors.NewUnauthorizedError("missing API key").Write(w, r)
				return
			}

			if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
				apierrors.NewUnauthorizedError("invalid API key").Write(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// HashAPIKey generates a bcrypt hash for an API key. Useful for
// provisioning the API_KEY_HASH setting.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
