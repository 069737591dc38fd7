package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"quel-hairfit-server/modules/common/model"
	"quel-hairfit-server/modules/common/storage"
)

// ImageStore - 헤어스타일 참조 이미지 저장소 (static/hairstyles)
type ImageStore interface {
	SaveUpload(ctx context.Context, prefix string, r io.Reader) (model.Artifact, error)
}

// Guard - 관리자 인증 미들웨어 (admin.AdminHandler.RequireToken)
type Guard func(next http.HandlerFunc) http.Handler

// hairstyleView - 응답 형태 (image_url 포함)
type hairstyleView struct {
	Hairstyle
	ImageURL string `json:"image_url"`
}

func view(h Hairstyle) hairstyleView {
	return hairstyleView{Hairstyle: h, ImageURL: h.ImageURL()}
}

// CatalogHandler - 헤어스타일 카탈로그 API
type CatalogHandler struct {
	repo   *Repository
	images ImageStore
	log    zerolog.Logger
}

func NewCatalogHandler(repo *Repository, images ImageStore, log zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{
		repo:   repo,
		images: images,
		log:    log.With().Str("module", "catalog").Logger(),
	}
}

// Register - 조회는 공개, 수정은 guard 를 거친다
func (h *CatalogHandler) Register(r *mux.Router, guard Guard) {
	r.HandleFunc("/api/hairstyles", h.ListHairstyles).Methods("GET")
	r.HandleFunc("/api/hairstyles/{hairstyle_id}", h.GetHairstyle).Methods("GET")

	r.Handle("/api/admin/hairstyles", guard(h.CreateHairstyle)).Methods("POST")
	r.Handle("/api/admin/hairstyles/{hairstyle_id}", guard(h.UpdateHairstyle)).Methods("PUT")
	r.Handle("/api/admin/hairstyles/{hairstyle_id}", guard(h.DeleteHairstyle)).Methods("DELETE")
}

// ListHairstyles - ?category= 로 필터
func (h *CatalogHandler) ListHairstyles(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("❌ [Catalog] failed to load hairstyles")
		writeError(w, http.StatusInternalServerError, "failed to load hairstyles")
		return
	}

	category := strings.TrimSpace(r.URL.Query().Get("category"))
	views := make([]hairstyleView, 0, len(list))
	for _, item := range list {
		if category != "" && item.Category != category {
			continue
		}
		views = append(views, view(item))
	}
	writeJSON(w, http.StatusOK, map[string]any{"hairstyles": views})
}

// GetHairstyle - 단건 조회
func (h *CatalogHandler) GetHairstyle(w http.ResponseWriter, r *http.Request) {
	item, err := h.repo.Get(r.Context(), mux.Vars(r)["hairstyle_id"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view(*item))
}

// CreateHairstyle - multipart: image(필수), name(필수), category, description
func (h *CatalogHandler) CreateHairstyle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(storage.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "hairstyle name is required")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "hairstyle image is required")
		return
	}
	defer file.Close()

	saved, err := h.images.SaveUpload(r.Context(), "hairstyle", file)
	if err != nil {
		h.respondError(w, err)
		return
	}

	item := &Hairstyle{
		Name:        name,
		Category:    strings.TrimSpace(r.FormValue("category")),
		Description: strings.TrimSpace(r.FormValue("description")),
		ImagePath:   saved.PublicURL,
	}
	if err := h.repo.Add(r.Context(), item); err != nil {
		h.respondError(w, err)
		return
	}

	h.log.Info().Str("hairstyle_id", item.ID).Str("name", item.Name).Msg("✂️ [Catalog] hairstyle added")
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "hairstyle": view(*item)})
}

// UpdateHairstyle - JSON {name, category, description} 부분 수정
func (h *CatalogHandler) UpdateHairstyle(w http.ResponseWriter, r *http.Request) {
	var body HairstyleUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	// 이미지 경로는 업로드로만 바뀐다
	body.ImagePath = nil
	if body.Name != nil && strings.TrimSpace(*body.Name) == "" {
		writeError(w, http.StatusBadRequest, "hairstyle name must not be empty")
		return
	}

	item, err := h.repo.Update(r.Context(), mux.Vars(r)["hairstyle_id"], body)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.log.Info().Str("hairstyle_id", item.ID).Msg("✏️ [Catalog] hairstyle updated")
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "hairstyle": view(*item)})
}

// DeleteHairstyle - 삭제
func (h *CatalogHandler) DeleteHairstyle(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["hairstyle_id"]
	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	h.log.Info().Str("hairstyle_id", id).Msg("🗑️ [Catalog] hairstyle deleted")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *CatalogHandler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrHairstyleNotFound):
		writeError(w, http.StatusNotFound, "Hairstyle not found")
	case errors.Is(err, model.ErrInput):
		writeError(w, http.StatusBadRequest, model.UserMessage(err))
	default:
		h.log.Error().Err(err).Msg("❌ [Catalog] request failed")
		writeError(w, http.StatusInternalServerError, "catalog request failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
