package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
)

// SupabaseMirror - Supabase Storage 업로드
type SupabaseMirror struct {
	storage *storage_go.Client
	bucket  string
	folder  string

	// storage-go 는 파일 옵션을 공유 헤더에 기록하므로 업로드는 한 번에 하나
	mu sync.Mutex
}

// NewSupabaseMirror - Supabase Storage 미러 생성
func NewSupabaseMirror(baseURL, serviceKey, bucket string) (*SupabaseMirror, error) {
	if bucket == "" {
		return nil, fmt.Errorf("supabase bucket is required")
	}
	client, err := supabase.NewClient(strings.TrimRight(baseURL, "/"), serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &SupabaseMirror{
		storage: client.Storage,
		bucket:  bucket,
		folder:  "hairfit-outputs",
	}, nil
}

func (m *SupabaseMirror) Name() string { return "supabase" }

// Upload - {bucket}/hairfit-outputs/{key} 로 업로드 후 공개 URL 반환
func (m *SupabaseMirror) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	filePath := path.Join(m.folder, key)
	upsert := true

	m.mu.Lock()
	_, err := m.storage.UploadFile(m.bucket, filePath, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	m.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", filePath, err)
	}

	return m.storage.GetPublicUrl(m.bucket, filePath).SignedURL, nil
}
