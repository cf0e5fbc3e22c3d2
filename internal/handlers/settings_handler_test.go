package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"

	"github.com/relaychat/notifier/internal/models"
	"github.com/relaychat/notifier/internal/repositories"
)

type fakeSettingsRepo struct {
	settings models.NotificationSettings
	upserted map[string]datatypes.JSON
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{
		settings: models.DefaultNotificationSettings(),
		upserted: make(map[string]datatypes.JSON),
	}
}

func (f *fakeSettingsRepo) GetSettings(ctx context.Context, uid string) (models.NotificationSettings, error) {
	return f.settings, nil
}

func (f *fakeSettingsRepo) GetRecord(ctx context.Context, uid string) (*models.NotificationSettingsRecord, error) {
	return nil, nil
}

func (f *fakeSettingsRepo) UpsertSettings(ctx context.Context, uid string, doc datatypes.JSON) error {
	f.upserted[uid] = doc
	return nil
}

var _ repositories.SettingsRepository = (*fakeSettingsRepo)(nil)

func newSettingsServer(repo *fakeSettingsRepo, uid string) *echo.Echo {
	e := echo.New()
	g := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if uid != "" {
				c.Set("firebaseUID", uid)
			}
			return next(c)
		}
	})
	NewSettingsHandler(repo).RegisterSettingsRoutes(g)
	return e
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type settingsResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Settings models.NotificationSettings `json:"settings"`
	} `json:"data"`
}

func TestGetSettingsReturnsResolved(t *testing.T) {
	t.Parallel()
	repo := newFakeSettingsRepo()
	repo.settings.GlobalMute = true
	e := newSettingsServer(repo, "u1")

	rec := doRequest(e, http.MethodGet, "/api/v1/settings")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp settingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Data.Settings.GlobalMute {
		t.Fatal("globalMute not carried through")
	}
	if !resp.Data.Settings.AllowMentionPush {
		t.Fatal("defaults not carried through")
	}
}

func TestUpdateSettingsStoresDocumentAsSent(t *testing.T) {
	t.Parallel()
	repo := newFakeSettingsRepo()
	e := newSettingsServer(repo, "u1")

	body := `{"muteDMs":true,"emailEnabled":true}`
	rec := doJSON(e, http.MethodPut, "/api/v1/settings", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// The stored document is the raw partial body, not a fully resolved one.
	if got := string(repo.upserted["u1"]); got != body {
		t.Fatalf("stored doc = %q, want %q", got, body)
	}

	var resp settingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Data.Settings.MuteDMs || !resp.Data.Settings.EmailEnabled {
		t.Fatalf("settings = %+v", resp.Data.Settings)
	}
	if !resp.Data.Settings.AllowChannelMessagePush {
		t.Fatal("omitted field lost its default")
	}
}

func TestUpdateSettingsRejectsBadDocuments(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{name: "wrong field type", body: `{"globalMute":"maybe"}`},
		{name: "not json", body: `mute everything please`},
		{name: "array document", body: `["globalMute"]`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := newFakeSettingsRepo()
			e := newSettingsServer(repo, "u1")

			rec := doJSON(e, http.MethodPut, "/api/v1/settings", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if len(repo.upserted) != 0 {
				t.Fatal("bad document reached the repository")
			}
		})
	}
}

func TestSettingsRequireAuth(t *testing.T) {
	t.Parallel()
	e := newSettingsServer(newFakeSettingsRepo(), "")

	if rec := doRequest(e, http.MethodGet, "/api/v1/settings"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("GET status = %d, want 401", rec.Code)
	}
	if rec := doJSON(e, http.MethodPut, "/api/v1/settings", `{}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("PUT status = %d, want 401", rec.Code)
	}
}
