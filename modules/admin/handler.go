package admin

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"quel-hairfit-server/modules/common/database"
	"quel-hairfit-server/modules/common/settings"
)

const defaultPerPage = 20

// AdminHandler - 설정 / 이력 관리 API
type AdminHandler struct {
	settings *settings.Store
	history  database.HistoryRepository
	token    string
	log      zerolog.Logger
}

// NewAdminHandler - token 이 비어있으면 인증 없이 허용 (키오스크 로컬망)
func NewAdminHandler(store *settings.Store, history database.HistoryRepository, token string, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		settings: store,
		history:  history,
		token:    token,
		log:      log.With().Str("module", "admin").Logger(),
	}
}

// Register - 라우트 등록 (모든 경로에 관리자 토큰 확인)
func (h *AdminHandler) Register(r *mux.Router) {
	r.Handle("/api/admin/settings", h.RequireToken(h.GetSettings)).Methods("GET")
	r.Handle("/api/admin/settings", h.RequireToken(h.SaveSettings)).Methods("POST")
	r.Handle("/api/history", h.RequireToken(h.ListHistory)).Methods("GET")
	r.Handle("/api/history/{record_id}", h.RequireToken(h.GetHistory)).Methods("GET")
	r.Handle("/api/history/{record_id}", h.RequireToken(h.DeleteHistory)).Methods("DELETE")
}

// RequireToken - X-Admin-Token 또는 Bearer 토큰 확인 (카탈로그 관리 라우트도 사용)
func (h *AdminHandler) RequireToken(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		got := r.Header.Get("X-Admin-Token")
		if got == "" {
			got = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "admin login required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetSettings - 비밀 값은 마스킹해서 반환
func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	snap, _ := h.settings.ReloadIfChanged()
	writeJSON(w, http.StatusOK, map[string]any{
		"settings":      snap.Masked(),
		"keys":          settings.AllowedKeys,
		"video_enabled": snap.HasVideoCredentials(),
	})
}

// SaveSettings - 화이트리스트 키만 저장. 화면에서 받은 마스킹 값은 무시한다.
func (h *AdminHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	masked := h.settings.Current().Masked()
	for k, v := range updates {
		if str, ok := v.(string); ok && str != "" && str == masked[k] && strings.Contains(str, "*") {
			delete(updates, k)
		}
	}

	snap, err := h.settings.Save(updates)
	if err != nil {
		h.log.Error().Err(err).Msg("❌ [Admin] failed to save settings")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save settings"})
		return
	}
	h.log.Info().Int("keys", len(updates)).Msg("⚙️ [Admin] settings updated")
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "settings": snap.Masked()})
}

// ListHistory - ?page=1&per_page=20
func (h *AdminHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", defaultPerPage)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = defaultPerPage
	}

	records, err := h.history.List(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("❌ [Admin] failed to list history")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load history"})
		return
	}
	total, err := h.history.Count(r.Context())
	if err != nil {
		total = len(records)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"records":  records,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// GetHistory - 단건 조회
func (h *AdminHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	record, err := h.history.Get(r.Context(), mux.Vars(r)["record_id"])
	if err != nil {
		h.historyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// DeleteHistory - 단건 삭제
func (h *AdminHandler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	recordID := mux.Vars(r)["record_id"]
	if err := h.history.Delete(r.Context(), recordID); err != nil {
		h.historyError(w, err)
		return
	}
	h.log.Info().Str("record_id", recordID).Msg("🗑️ [Admin] history record deleted")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AdminHandler) historyError(w http.ResponseWriter, err error) {
	if errors.Is(err, database.ErrRecordNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "record not found"})
		return
	}
	h.log.Error().Err(err).Msg("❌ [Admin] history query failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load history"})
}

func queryInt(r *http.Request, key string, def int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
