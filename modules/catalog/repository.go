package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrHairstyleNotFound - 알 수 없는 hairstyle_id
var ErrHairstyleNotFound = errors.New("hairstyle not found")

const (
	DefaultCategory = "Uncategorized"
	defaultName     = "Untitled hairstyle"
)

// Hairstyle - 카탈로그 항목 (참조 이미지는 정적 경로로 보관)
type Hairstyle struct {
	ID          string `json:"hairstyle_id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	ImagePath   string `json:"image_path"`
}

// ImageURL - 화면에서 쓰는 공개 경로
func (h Hairstyle) ImageURL() string {
	p := filepath.ToSlash(strings.TrimSpace(h.ImagePath))
	if p == "" || strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	return "/" + strings.TrimPrefix(p, "/")
}

// HairstyleUpdate - nil 필드는 그대로 둔다
type HairstyleUpdate struct {
	Name        *string `json:"name"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
	ImagePath   *string `json:"image_path"`
}

// Repository - 단일 JSON 파일 카탈로그 (파일 순서 = 화면 순서)
type Repository struct {
	path string
	mu   sync.Mutex
}

// NewRepository - 디렉토리를 만들고 저장소 반환
func NewRepository(path string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create catalog dir: %w", err)
	}
	return &Repository{path: path}, nil
}

func (r *Repository) load() ([]Hairstyle, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) || (err == nil && len(strings.TrimSpace(string(data))) == 0) {
		return []Hairstyle{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var list []Hairstyle
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("catalog file is malformed (%s): %w", r.path, err)
	}
	for i := range list {
		normalize(&list[i])
	}
	return list, nil
}

func (r *Repository) save(list []Hairstyle) error {
	body, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, append(body, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return os.Rename(tmp, r.path)
}

func normalize(h *Hairstyle) {
	if h.ID == "" {
		h.ID = NewID()
	}
	if strings.TrimSpace(h.Name) == "" {
		h.Name = defaultName
	}
	if strings.TrimSpace(h.Category) == "" {
		h.Category = DefaultCategory
	}
}

// NewID - hairstyle_{uuid hex}
func NewID() string {
	return "hairstyle_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// List - 전체 목록
func (r *Repository) List(ctx context.Context) ([]Hairstyle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Get - 단건 조회
func (r *Repository) Get(ctx context.Context, id string) (*Hairstyle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.load()
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ID == id {
			return &list[i], nil
		}
	}
	return nil, ErrHairstyleNotFound
}

// Add - 새 항목 추가 (ID 는 새로 발급)
func (r *Repository) Add(ctx context.Context, h *Hairstyle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.load()
	if err != nil {
		return err
	}
	h.ID = ""
	normalize(h)
	return r.save(append(list, *h))
}

// Update - 주어진 필드만 병합
func (r *Repository) Update(ctx context.Context, id string, update HairstyleUpdate) (*Hairstyle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.load()
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ID != id {
			continue
		}
		h := &list[i]
		if update.Name != nil {
			h.Name = *update.Name
		}
		if update.Category != nil {
			h.Category = *update.Category
		}
		if update.Description != nil {
			h.Description = *update.Description
		}
		if update.ImagePath != nil {
			h.ImagePath = *update.ImagePath
		}
		normalize(h)
		if err := r.save(list); err != nil {
			return nil, err
		}
		updated := *h
		return &updated, nil
	}
	return nil, ErrHairstyleNotFound
}

// Delete - 항목만 삭제. 참조 이미지 파일은 지우지 않는다.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.load()
	if err != nil {
		return err
	}
	remaining := list[:0]
	for _, h := range list {
		if h.ID != id {
			remaining = append(remaining, h)
		}
	}
	if len(remaining) == len(list) {
		return ErrHairstyleNotFound
	}
	return r.save(remaining)
}
