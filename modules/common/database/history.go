package database

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrRecordNotFound - 해당 record_id 없음
var ErrRecordNotFound = errors.New("history record not found")

// TryOnRecord - 시착 이력 1건
type TryOnRecord struct {
	RecordID           string    `json:"record_id" bson:"_id"`
	Timestamp          time.Time `json:"timestamp" bson:"timestamp"`
	SessionID          string    `json:"session_id,omitempty" bson:"session_id,omitempty"`
	Vendor             string    `json:"vendor,omitempty" bson:"vendor,omitempty"`
	UserPhotoPath      string    `json:"user_photo_path,omitempty" bson:"user_photo_path,omitempty"`
	ReferencePhotoPath string    `json:"reference_photo_path,omitempty" bson:"reference_photo_path,omitempty"`
	ReferenceID        string    `json:"reference_id,omitempty" bson:"reference_id,omitempty"`
	ReferenceName      string    `json:"reference_name,omitempty" bson:"reference_name,omitempty"`
	ResultPhotoPath    string    `json:"result_photo_path,omitempty" bson:"result_photo_path,omitempty"`
	PreviewPath        string    `json:"preview_path,omitempty" bson:"preview_path,omitempty"`
	VideoTaskID        string    `json:"video_task_id,omitempty" bson:"video_task_id,omitempty"`
	VideoPath          string    `json:"video_path,omitempty" bson:"video_path,omitempty"`
	Status             string    `json:"status" bson:"status"`
	ErrorMessage       string    `json:"error_message,omitempty" bson:"error_message,omitempty"`
}

// NewRecord - record_id/timestamp 채운 새 이력
func NewRecord() *TryOnRecord {
	return &TryOnRecord{
		RecordID:  uuid.New().String(),
		Timestamp: time.Now().UTC(),
	}
}

// RecordUpdate - 필드 병합용 부분 업데이트 (빈 값은 건너뜀)
type RecordUpdate struct {
	SessionID       string
	Vendor          string
	ResultPhotoPath string
	PreviewPath     string
	VideoTaskID     string
	VideoPath       string
	Status          string
	ErrorMessage    string
}

// Fields - 비어있지 않은 필드만 컬럼명 기준으로 반환
func (u RecordUpdate) Fields() map[string]string {
	fields := map[string]string{}
	set := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}
	set("session_id", u.SessionID)
	set("vendor", u.Vendor)
	set("result_photo_path", u.ResultPhotoPath)
	set("preview_path", u.PreviewPath)
	set("video_task_id", u.VideoTaskID)
	set("video_path", u.VideoPath)
	set("status", u.Status)
	set("error_message", u.ErrorMessage)
	return fields
}

// Apply - 기존 레코드에 병합 (빈 필드는 기존 값 유지)
func (r *TryOnRecord) Apply(u RecordUpdate) {
	merge := func(dst *string, value string) {
		if value != "" {
			*dst = value
		}
	}
	merge(&r.SessionID, u.SessionID)
	merge(&r.Vendor, u.Vendor)
	merge(&r.ResultPhotoPath, u.ResultPhotoPath)
	merge(&r.PreviewPath, u.PreviewPath)
	merge(&r.VideoTaskID, u.VideoTaskID)
	merge(&r.VideoPath, u.VideoPath)
	merge(&r.Status, u.Status)
	merge(&r.ErrorMessage, u.ErrorMessage)
}

// HistoryRepository - 이력 저장소 (JSON 파일, Supabase, Mongo)
type HistoryRepository interface {
	Add(ctx context.Context, record *TryOnRecord) error
	Update(ctx context.Context, recordID string, update RecordUpdate) error
	Get(ctx context.Context, recordID string) (*TryOnRecord, error)
	List(ctx context.Context, limit, offset int) ([]TryOnRecord, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, recordID string) error
}

// sortAndPage - 최신순 정렬 후 offset/limit 적용
func sortAndPage(records []TryOnRecord, limit, offset int) []TryOnRecord {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	if offset < 0 {
		offset = 0
	}
	if offset >= len(records) {
		return []TryOnRecord{}
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}
