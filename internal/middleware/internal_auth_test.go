package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newInternalServer(token string) *echo.Echo {
	e := echo.New()
	g := e.Group("/internal", InternalAuthMiddleware(token, zerolog.Nop()))
	g.POST("/events/channel-message", func(c echo.Context) error {
		return c.NoContent(http.StatusAccepted)
	})
	return e
}

func postInternal(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/internal/events/channel-message", nil)
	if token != "" {
		req.Header.Set("X-Internal-Token", token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestInternalAuthAcceptsMatchingToken(t *testing.T) {
	t.Parallel()
	e := newInternalServer("secret-token")

	if rec := postInternal(e, "secret-token"); rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
}

func TestInternalAuthRejectsBadToken(t *testing.T) {
	t.Parallel()
	e := newInternalServer("secret-token")

	tests := []struct {
		name  string
		token string
	}{
		{name: "wrong token", token: "other-token"},
		{name: "missing header", token: ""},
		{name: "prefix of the token", token: "secret"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if rec := postInternal(e, tt.token); rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestInternalAuthOpenWithoutConfiguredToken(t *testing.T) {
	t.Parallel()
	e := newInternalServer("")

	if rec := postInternal(e, ""); rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if rec := postInternal(e, "anything"); rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
}
