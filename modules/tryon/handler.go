package tryon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"quel-hairfit-server/modules/catalog"
	"quel-hairfit-server/modules/common/model"
	"quel-hairfit-server/modules/common/storage"
)

// errHairstyleNotFound - reference_id 가 카탈로그에 없음
var errHairstyleNotFound = errors.New("hairstyle not found")

// HairstyleCatalog - reference_id → 카탈로그 항목
type HairstyleCatalog interface {
	Get(ctx context.Context, id string) (*catalog.Hairstyle, error)
}

// UploadStore - 업로드 사진 저장소 (static/inputs)
type UploadStore interface {
	SaveUpload(ctx context.Context, prefix string, r io.Reader) (model.Artifact, error)
	SaveDataURL(ctx context.Context, prefix, dataURL string) (model.Artifact, error)
}

// TryOnHandler - /api/try-on HTTP 핸들러
type TryOnHandler struct {
	service    *Service
	inputs     UploadStore
	hairstyles HairstyleCatalog
	log        zerolog.Logger
}

// NewTryOnHandler - hairstyles 가 nil 이면 reference_id 는 기록용으로만 쓴다
func NewTryOnHandler(service *Service, inputs UploadStore, hairstyles HairstyleCatalog, log zerolog.Logger) *TryOnHandler {
	return &TryOnHandler{
		service:    service,
		inputs:     inputs,
		hairstyles: hairstyles,
		log:        log.With().Str("module", "tryon").Logger(),
	}
}

// Register - 라우트 등록
func (h *TryOnHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/try-on", h.StartTryOn).Methods("POST")
	r.HandleFunc("/api/try-on/{session_id}", h.GetResult).Methods("GET")
	r.HandleFunc("/ws/try-on/{session_id}", h.Watch)
}

type tryOnBody struct {
	Photo         string `json:"photo"`
	PhotoPath     string `json:"photo_path"`
	Reference     string `json:"reference"`
	ReferenceID   string `json:"reference_id"`
	ReferenceName string `json:"reference_name"`
	Note          string `json:"note"`
	Region        string `json:"region"`
}

// StartTryOn - multipart(photo 파일) 또는 JSON(data URL / 기존 경로) 모두 허용
func (h *TryOnHandler) StartTryOn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxUploadBytes+(1<<20))

	var (
		body tryOnBody
		req  StartRequest
		err  error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		req, err = h.fromMultipart(r)
	} else {
		if decodeErr := json.NewDecoder(r.Body).Decode(&body); decodeErr != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		req, err = h.fromJSON(r.Context(), body)
	}
	if err != nil {
		h.respondError(w, err)
		return
	}

	started, err := h.service.Start(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, started)
}

func (h *TryOnHandler) fromMultipart(r *http.Request) (StartRequest, error) {
	if err := r.ParseMultipartForm(storage.MaxUploadBytes); err != nil {
		return StartRequest{}, model.NewInputError("invalid multipart form")
	}
	req := StartRequest{
		ReferenceRef:  r.FormValue("reference"),
		ReferenceID:   r.FormValue("reference_id"),
		ReferenceName: r.FormValue("reference_name"),
		Note:          r.FormValue("note"),
		Region:        model.ParseRegion(r.FormValue("region")),
	}
	if err := h.resolveHairstyle(r.Context(), &req); err != nil {
		return StartRequest{}, err
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		return StartRequest{}, model.NewInputError("user photo is required")
	}
	defer file.Close()

	saved, err := h.inputs.SaveUpload(r.Context(), "input", file)
	if err != nil {
		return StartRequest{}, err
	}
	req.SubjectPath = saved.Path
	req.SubjectURL = saved.PublicURL
	return req, nil
}

func (h *TryOnHandler) fromJSON(ctx context.Context, body tryOnBody) (StartRequest, error) {
	req := StartRequest{
		ReferenceRef:  body.Reference,
		ReferenceID:   body.ReferenceID,
		ReferenceName: body.ReferenceName,
		Note:          body.Note,
		Region:        model.ParseRegion(body.Region),
	}
	if err := h.resolveHairstyle(ctx, &req); err != nil {
		return StartRequest{}, err
	}

	switch {
	case body.Photo != "":
		saved, err := h.inputs.SaveDataURL(ctx, "input", body.Photo)
		if err != nil {
			return StartRequest{}, err
		}
		req.SubjectPath = saved.Path
		req.SubjectURL = saved.PublicURL
	case body.PhotoPath != "":
		path, err := storage.ResolveStatic(body.PhotoPath, h.service.roots)
		if err != nil {
			return StartRequest{}, model.NewInputError("user photo not found")
		}
		req.SubjectPath = path
		req.SubjectURL = "/static/" + storage.NormalizeStaticRef(body.PhotoPath)
	default:
		return StartRequest{}, model.NewInputError("user photo is required")
	}
	return req, nil
}

// resolveHairstyle - reference_id 가 있으면 참조 이미지와 이름은 카탈로그 값으로 덮어쓴다
func (h *TryOnHandler) resolveHairstyle(ctx context.Context, req *StartRequest) error {
	req.ReferenceID = strings.TrimSpace(req.ReferenceID)
	if req.ReferenceID == "" || h.hairstyles == nil {
		return nil
	}
	item, err := h.hairstyles.Get(ctx, req.ReferenceID)
	if errors.Is(err, catalog.ErrHairstyleNotFound) {
		return errHairstyleNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load hairstyle %s: %w", req.ReferenceID, err)
	}
	req.ReferenceRef = item.ImagePath
	req.ReferenceName = item.Name
	return nil
}

// GetResult - 에러 상태는 HTTP 500 으로 응답
func (h *TryOnHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	result, err := h.service.GetResult(sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	status := http.StatusOK
	if result.Status == model.StatusError {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

// Watch - 세션 상태 WebSocket
func (h *TryOnHandler) Watch(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("[TryOn] websocket upgrade failed")
		return
	}
	h.service.hub.serve(conn, sessionID, func() (Result, error) {
		return h.service.GetResult(sessionID)
	})
}

func (h *TryOnHandler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInput):
		writeError(w, http.StatusBadRequest, model.UserMessage(err))
	case errors.Is(err, errHairstyleNotFound):
		writeError(w, http.StatusNotFound, "Hairstyle not found")
	case errors.Is(err, ErrBusy):
		writeError(w, http.StatusServiceUnavailable, ErrBusy.Error())
	default:
		h.log.Error().Err(err).Msg("❌ [TryOn] request failed")
		writeError(w, http.StatusInternalServerError, model.FailureUserMessage)
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
