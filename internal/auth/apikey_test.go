package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyMiddlewareDisabledWhenNoHash(t *testing.T) {
	mw := APIKeyMiddleware("")

	req := httptest.NewRequest("GET", "/api/v1/ris", nil)
	rec := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyMiddlewareValidKey(t *testing.T) {
	hash, err := HashAPIKey("sekrit")
	require.NoError(t, err)
	mw := APIKeyMiddleware(hash)

	req := httptest.NewRequest("GET", "/api/v1/ris", nil)
	req.Header.Set("X-API-Key", "sekrit")
	rec := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyMiddlewareBearerFallback(t *testing.T) {
	hash, err := HashAPIKey("sekrit")
	require.NoError(t, err)
	mw := APIKeyMiddleware(hash)

	req := httptest.NewRequest("GET", "/api/v1/ris", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyMiddlewareRejectsWrongKey(t *testing.T) {
	hash, err := HashAPIKey("sekrit")
	require.NoError(t, err)
	mw := APIKeyMiddleware(hash)

	req := httptest.NewRequest("GET", "/api/v1/ris", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyMiddlewareRejectsMissingKey(t *testing.T) {
	hash, err := HashAPIKey("sekrit")
	require.NoError(t, err)
	mw := APIKeyMiddleware(hash)

	req := httptest.NewRequest("GET", "/api/v1/ris", nil)
	rec := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
