package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestRepo(t *testing.T) *JSONFileRepository {
	t.Helper()
	repo, err := NewJSONFileRepository(filepath.Join(t.TempDir(), "data", "history.json"))
	if err != nil {
		t.Fatalf("NewJSONFileRepository: %v", err)
	}
	return repo
}

func TestJSONFileRepository_UpdateMergesNonEmptyFields(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rec := NewRecord()
	rec.UserPhotoPath = "/static/inputs/user.jpg"
	rec.ReferenceName = "Soft Layered Bob"
	rec.Status = "processing"
	if err := repo.Add(ctx, rec); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := repo.Update(ctx, rec.RecordID, RecordUpdate{ResultPhotoPath: "/static/outputs/a.jpg", Status: "ok"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := repo.Update(ctx, rec.RecordID, RecordUpdate{VideoTaskID: "task-1"}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := repo.Get(ctx, rec.RecordID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserPhotoPath != "/static/inputs/user.jpg" || got.ReferenceName != "Soft Layered Bob" {
		t.Errorf("original fields lost: %+v", got)
	}
	if got.ResultPhotoPath != "/static/outputs/a.jpg" || got.Status != "ok" {
		t.Errorf("first update not applied: %+v", got)
	}
	if got.VideoTaskID != "task-1" {
		t.Errorf("VideoTaskID = %q, want task-1", got.VideoTaskID)
	}
}

func TestJSONFileRepository_UpdateMissing(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.Update(context.Background(), "nope", RecordUpdate{Status: "ok"})
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestJSONFileRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		rec := &TryOnRecord{RecordID: id, Timestamp: base.Add(time.Duration(i) * time.Minute), Status: "ok"}
		if err := repo.Add(ctx, rec); err != nil {
			t.Fatalf("Add %s: %v", id, err)
		}
	}

	list, err := repo.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 || list[0].RecordID != "c" || list[2].RecordID != "a" {
		t.Fatalf("unexpected order: %+v", list)
	}

	page, err := repo.List(ctx, 1, 1)
	if err != nil {
		t.Fatalf("List page: %v", err)
	}
	if len(page) != 1 || page[0].RecordID != "b" {
		t.Fatalf("page = %+v, want [b]", page)
	}

	empty, err := repo.List(ctx, 10, 5)
	if err != nil || len(empty) != 0 {
		t.Fatalf("offset past end: %v %+v", err, empty)
	}
}

func TestJSONFileRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rec := NewRecord()
	if err := repo.Add(ctx, rec); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := repo.Delete(ctx, rec.RecordID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, rec.RecordID); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("Get after delete: %v", err)
	}
	if err := repo.Delete(ctx, rec.RecordID); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("second Delete: %v", err)
	}
	if n, _ := repo.Count(ctx); n != 0 {
		t.Fatalf("Count = %d, want 0", n)
	}
}

func TestRecordUpdate_FieldsSkipsEmpty(t *testing.T) {
	fields := RecordUpdate{Status: "error", ErrorMessage: "boom"}.Fields()
	if len(fields) != 2 || fields["status"] != "error" || fields["error_message"] != "boom" {
		t.Fatalf("Fields = %v", fields)
	}
}
