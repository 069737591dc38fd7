package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"quel-hairfit-server/modules/common/database"
	"quel-hairfit-server/modules/common/settings"
)

type adminEnv struct {
	router   *mux.Router
	settings *settings.Store
	history  *database.JSONFileRepository
	path     string
}

func newAdminEnv(t *testing.T, token string) *adminEnv {
	t.Helper()
	t.Setenv(settings.KeyGeminiAPIKey, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(path, []byte(`{"GEMINI_API_KEY":"gk-secret-value"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	store := settings.Load(path, zerolog.Nop())
	history, err := database.NewJSONFileRepository(filepath.Join(dir, "history.json"))
	if err != nil {
		t.Fatal(err)
	}
	r := mux.NewRouter()
	NewAdminHandler(store, history, token, zerolog.Nop()).Register(r)
	return &adminEnv{router: r, settings: store, history: history, path: path}
}

func (e *adminEnv) do(method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestSettingsMaskedAndWhitelisted(t *testing.T) {
	env := newAdminEnv(t, "")

	rec := env.do(http.MethodGet, "/api/admin/settings", "", nil)
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), "gk-secret-value") {
		t.Fatalf("secret leaked or bad status: %d %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Settings map[string]string `json:"settings"`
	}
	json.Unmarshal(rec.Body.Bytes(), &got)
	masked := got.Settings[settings.KeyGeminiAPIKey]

	// 마스킹 값 그대로 되돌려 보내도 원래 키는 유지
	body := `{"GEMINI_API_KEY":"` + masked + `","VENDOR_TRYON":"KlingAI","NOT_A_KEY":"x"}`
	rec = env.do(http.MethodPost, "/api/admin/settings", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("save: %d %s", rec.Code, rec.Body.String())
	}
	snap := env.settings.Current()
	if snap.GeminiAPIKey != "gk-secret-value" || snap.VendorTryOn != settings.VendorKling {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	raw, _ := os.ReadFile(env.path)
	if strings.Contains(string(raw), "NOT_A_KEY") {
		t.Fatalf("unknown key persisted: %s", raw)
	}
}

func TestAdminTokenRequired(t *testing.T) {
	env := newAdminEnv(t, "s3cret")

	if rec := env.do(http.MethodGet, "/api/admin/settings", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("without token: %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/api/admin/settings", "", map[string]string{"X-Admin-Token": "s3cret"}); rec.Code != http.StatusOK {
		t.Fatalf("with token: %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/api/history", "", map[string]string{"Authorization": "Bearer s3cret"}); rec.Code != http.StatusOK {
		t.Fatalf("bearer token: %d", rec.Code)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	env := newAdminEnv(t, "")
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		env.history.Add(ctx, &database.TryOnRecord{RecordID: id, Timestamp: base.Add(time.Duration(i) * time.Hour), Status: "ok"})
	}

	rec := env.do(http.MethodGet, "/api/history?page=1&per_page=2", "", nil)
	var page struct {
		Records []database.TryOnRecord `json:"records"`
		Total   int                    `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &page)
	if rec.Code != http.StatusOK || page.Total != 3 || len(page.Records) != 2 || page.Records[0].RecordID != "r3" {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}

	if rec := env.do(http.MethodGet, "/api/history/r2", "", nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"record_id":"r2"`) {
		t.Fatalf("get: %d %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(http.MethodDelete, "/api/history/r2", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/api/history/r2", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted: %d", rec.Code)
	}
	if rec := env.do(http.MethodDelete, "/api/history/r2", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing: %d", rec.Code)
	}
}
