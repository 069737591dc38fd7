package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONFileRepository - 단일 JSON 파일 이력 저장소 (키오스크 기본값)
type JSONFileRepository struct {
	path string
	mu   sync.Mutex
}

// NewJSONFileRepository - 디렉토리를 만들고 저장소 반환
func NewJSONFileRepository(path string) (*JSONFileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history dir: %w", err)
	}
	return &JSONFileRepository{path: path}, nil
}

func (r *JSONFileRepository) load() (map[string]TryOnRecord, error) {
	records := map[string]TryOnRecord{}
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) || (err == nil && len(data) == 0) {
		return records, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var list []TryOnRecord
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	for _, rec := range list {
		records[rec.RecordID] = rec
	}
	return records, nil
}

func (r *JSONFileRepository) save(records map[string]TryOnRecord) error {
	list := make([]TryOnRecord, 0, len(records))
	for _, rec := range records {
		list = append(list, rec)
	}
	list = sortAndPage(list, 0, 0)

	body, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return os.Rename(tmp, r.path)
}

// Add - 이력 추가
func (r *JSONFileRepository) Add(ctx context.Context, record *TryOnRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	records[record.RecordID] = *record
	return r.save(records)
}

// Update - 필드 병합 업데이트
func (r *JSONFileRepository) Update(ctx context.Context, recordID string, update RecordUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	rec, ok := records[recordID]
	if !ok {
		return ErrRecordNotFound
	}
	rec.Apply(update)
	records[recordID] = rec
	return r.save(records)
}

// Get - 단건 조회
func (r *JSONFileRepository) Get(ctx context.Context, recordID string) (*TryOnRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}
	rec, ok := records[recordID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &rec, nil
}

// List - 최신순 목록
func (r *JSONFileRepository) List(ctx context.Context, limit, offset int) ([]TryOnRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}
	list := make([]TryOnRecord, 0, len(records))
	for _, rec := range records {
		list = append(list, rec)
	}
	return sortAndPage(list, limit, offset), nil
}

// Count - 전체 건수
func (r *JSONFileRepository) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Delete - 삭제
func (r *JSONFileRepository) Delete(ctx context.Context, recordID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := records[recordID]; !ok {
		return ErrRecordNotFound
	}
	delete(records, recordID)
	return r.save(records)
}
