package video

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"quel-hairfit-server/modules/common/model"
)

// VideoHandler - /api/video HTTP 핸들러
type VideoHandler struct {
	service *Service
	log     zerolog.Logger
}

func NewVideoHandler(service *Service, log zerolog.Logger) *VideoHandler {
	return &VideoHandler{
		service: service,
		log:     log.With().Str("module", "video").Logger(),
	}
}

// Register - 라우트 등록 (enabled 가 {task_id} 보다 먼저)
func (h *VideoHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/video/enabled", h.Enabled).Methods("GET")
	r.HandleFunc("/api/video/generate", h.Generate).Methods("POST")
	r.HandleFunc("/api/video/{task_id}", h.Poll).Methods("GET")
}

type generateBody struct {
	ImagePath string `json:"image_path"`
	Prompt    string `json:"prompt"`
	Duration  int    `json:"duration"`
	RecordID  string `json:"record_id"`
}

// Enabled - 키오스크 화면의 비디오 버튼 표시 여부
func (h *VideoHandler) Enabled(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": h.service.Enabled()})
}

// Generate - 작업 생성 후 바로 task_id 반환
func (h *VideoHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var body generateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if body.ImagePath == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "image_path is required"})
		return
	}

	taskID, err := h.service.Submit(r.Context(), SubmitRequest{
		ImagePath: body.ImagePath,
		Prompt:    body.Prompt,
		Duration:  body.Duration,
		RecordID:  body.RecordID,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrInput) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"status": model.StatusError, "error": model.UserMessage(err)})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  model.StatusProcessing,
		"task_id": taskID,
	})
}

// Poll - 작업 상태 조회
func (h *VideoHandler) Poll(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]

	task, err := h.service.Poll(r.Context(), taskID)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, model.VideoTask{
			TaskID:  taskID,
			Status:  model.StatusError,
			Message: model.UserMessage(err),
		})
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
