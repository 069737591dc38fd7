package model

import (
	"strings"
	"time"
)

// 세션/작업 상태
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusOK         = "ok"
	StatusError      = "error"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusUnknown    = "unknown"
)

// Region - 생성 대상 영역
type Region string

const (
	RegionFull  Region = "full"
	RegionUpper Region = "upper"
	RegionLower Region = "lower"
)

// ParseRegion - 알 수 없는 값은 full 로 처리
func ParseRegion(raw string) Region {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "upper", "upper-body", "upper_body":
		return RegionUpper
	case "lower", "lower-body", "lower_body":
		return RegionLower
	default:
		return RegionFull
	}
}

// ImageInput - 벤더로 보낼 이미지 (bytes + MIME)
type ImageInput struct {
	Data     []byte
	MimeType string
	Path     string
}

// GenerationRequest - 벤더 어댑터 호출 1회 분량의 요청
type GenerationRequest struct {
	Subject      ImageInput
	References   []ImageInput
	Instructions string
	Region       Region
	SafetyLevel  string

	// 비동기 벤더는 참조 이미지를 경로로 직접 해석함
	ReferenceRef string
}

// WithInstructions - 지시문만 바꾼 복사본
func (r *GenerationRequest) WithInstructions(text string) *GenerationRequest {
	cp := *r
	cp.Instructions = text
	return &cp
}

// Artifact - 디스크에 기록된 결과물
type Artifact struct {
	Path       string `json:"path"`
	PublicURL  string `json:"public_url"`
	PreviewURL string `json:"preview_url,omitempty"`
	MirrorURL  string `json:"mirror_url,omitempty"`
}

// TryOnSession - 세션 상태 스냅샷
type TryOnSession struct {
	SessionID string    `json:"session_id"`
	RecordID  string    `json:"record_id,omitempty"`
	Status    string    `json:"status"`
	Output    string    `json:"output,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// VideoTask - 진행 중인 비디오 생성 작업
type VideoTask struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	Output   string `json:"output,omitempty"`
	Message  string `json:"message,omitempty"`
	RecordID string `json:"record_id,omitempty"`
}

// Terminal - completed/failed 이면 더 이상 변하지 않음
func (t VideoTask) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// PhotoCheck - 사용자 사진 사전 검증 결과. 검증을 못 했으면 Skipped 와 함께 통과 처리.
type PhotoCheck struct {
	Valid   bool            `json:"is_valid"`
	Message string          `json:"message"`
	Skipped bool            `json:"skipped,omitempty"`
	Details map[string]bool `json:"details,omitempty"`
}
