package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"transaction-engine/internal/domain"
)

func actorSeenBy(t *testing.T, headers map[string]string) domain.Actor {
	t.Helper()
	var seen domain.Actor
	handler := actorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = domain.ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/transfer", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return seen
}

func TestActorMiddlewareGatewayHeaders(t *testing.T) {
	actor := actorSeenBy(t, map[string]string{
		"X-User-Id":    "42",
		"X-User-Email": "teller@example.com",
	})
	assert.Equal(t, domain.Actor{UserID: 42, Email: "teller@example.com"}, actor)
}

func TestActorMiddlewareFallbackHeaders(t *testing.T) {
	actor := actorSeenBy(t, map[string]string{
		"userId": "7",
		"email":  "legacy@example.com",
	})
	assert.Equal(t, domain.Actor{UserID: 7, Email: "legacy@example.com"}, actor)
}

func TestActorMiddlewareDefaultsToDirectAPIUser(t *testing.T) {
	assert.Equal(t, domain.DirectAPIActor(), actorSeenBy(t, nil))
}

func TestActorMiddlewareRejectsBadUserID(t *testing.T) {
	actor := actorSeenBy(t, map[string]string{
		"X-User-Id":    "not-a-number",
		"X-User-Email": "whoever@example.com",
	})
	// An unparseable id keeps the default identity entirely.
	assert.Equal(t, domain.DirectAPIActor(), actor)
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	ww := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	ww.WriteHeader(http.StatusConflict)
	assert.Equal(t, http.StatusConflict, ww.statusCode)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
