package video

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"quel-hairfit-server/modules/common/model"
)

func TestVideoHandler(t *testing.T) {
	env := newTestEnv(t, videoKeys, afterPolls(0, "succeed"))
	r := mux.NewRouter()
	NewVideoHandler(env.svc, zerolog.Nop()).Register(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/video/enabled", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"enabled":true}` {
		t.Fatalf("enabled: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/video/generate", strings.NewReader(`{"image_path":"/static/outputs/tryon_1.png","duration":7}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duration 7: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/video/generate", strings.NewReader(`{"image_path":"/static/outputs/tryon_1.png"}`)))
	var started map[string]string
	json.Unmarshal(rec.Body.Bytes(), &started)
	if rec.Code != http.StatusOK || started["task_id"] != "T1" {
		t.Fatalf("generate: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/video/T1", nil))
	var task model.VideoTask
	json.Unmarshal(rec.Body.Bytes(), &task)
	if rec.Code != http.StatusOK || task.Status != model.StatusCompleted || task.Output == "" {
		t.Fatalf("poll: %d %s", rec.Code, rec.Body.String())
	}
}
