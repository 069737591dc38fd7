package database

import (
	"context"
	"encoding/json"
	"fmt"

	postgrest "github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

const historyTable = "hairfit_tryon_history"

// maxListRows - limit 없이 offset 만 주어졌을 때의 상한 (PostgREST 기본 max-rows)
const maxListRows = 1000

// SupabaseRepository - Supabase(PostgREST) 이력 저장소
type SupabaseRepository struct {
	supabase *supabase.Client
}

// NewSupabaseRepository - Supabase 클라이언트 생성
func NewSupabaseRepository(url, serviceKey string) (*SupabaseRepository, error) {
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}
	return &SupabaseRepository{supabase: client}, nil
}

// Add - 이력 추가
func (c *SupabaseRepository) Add(ctx context.Context, record *TryOnRecord) error {
	_, _, err := c.supabase.From(historyTable).
		Insert(record, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert history: %w", err)
	}
	return nil
}

// Update - 비어있지 않은 컬럼만 PATCH (필드 병합)
func (c *SupabaseRepository) Update(ctx context.Context, recordID string, update RecordUpdate) error {
	fields := update.Fields()
	if len(fields) == 0 {
		return nil
	}

	data, _, err := c.supabase.From(historyTable).
		Update(fields, "representation", "").
		Eq("record_id", recordID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update history: %w", err)
	}

	var updated []TryOnRecord
	if err := json.Unmarshal(data, &updated); err == nil && len(updated) == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Get - 단건 조회
func (c *SupabaseRepository) Get(ctx context.Context, recordID string) (*TryOnRecord, error) {
	data, _, err := c.supabase.From(historyTable).
		Select("*", "exact", false).
		Eq("record_id", recordID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	var records []TryOnRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrRecordNotFound
	}
	return &records[0], nil
}

// List - 최신순 목록. 정렬과 페이징은 PostgREST 쿼리에서 (order / offset / limit)
func (c *SupabaseRepository) List(ctx context.Context, limit, offset int) ([]TryOnRecord, error) {
	if offset < 0 {
		offset = 0
	}
	query := c.supabase.From(historyTable).
		Select("*", "", false).
		Order("timestamp", &postgrest.OrderOpts{Ascending: false})
	switch {
	case limit > 0:
		query = query.Range(offset, offset+limit-1, "")
	case offset > 0:
		query = query.Range(offset, offset+maxListRows-1, "")
	}

	data, _, err := query.Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	var records []TryOnRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	return records, nil
}

// Count - 전체 건수
func (c *SupabaseRepository) Count(ctx context.Context) (int, error) {
	_, count, err := c.supabase.From(historyTable).
		Select("record_id", "exact", false).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return int(count), nil
}

// Delete - 삭제
func (c *SupabaseRepository) Delete(ctx context.Context, recordID string) error {
	_, _, err := c.supabase.From(historyTable).
		Delete("", "").
		Eq("record_id", recordID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}
