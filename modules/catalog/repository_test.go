package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "data", "hairstyles.json"))
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	return repo
}

func TestRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	bob := &Hairstyle{Name: "Soft Layered Bob", ImagePath: "/static/hairstyles/bob.jpg"}
	if err := repo.Add(ctx, bob); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !strings.HasPrefix(bob.ID, "hairstyle_") || len(bob.ID) != len("hairstyle_")+32 {
		t.Fatalf("unexpected id %q", bob.ID)
	}
	if bob.Category != DefaultCategory {
		t.Fatalf("category = %q, want default", bob.Category)
	}
	wolf := &Hairstyle{Name: "Wolf Cut", Category: "Short", ImagePath: "static/hairstyles/wolf.jpg"}
	repo.Add(ctx, wolf)

	list, err := repo.List(ctx)
	if err != nil || len(list) != 2 || list[0].ID != bob.ID || list[1].ID != wolf.ID {
		t.Fatalf("List = %+v, %v", list, err)
	}

	desc := "textured ends"
	updated, err := repo.Update(ctx, wolf.ID, HairstyleUpdate{Description: &desc})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Wolf Cut" || updated.Category != "Short" || updated.Description != desc {
		t.Fatalf("update must merge fields: %+v", updated)
	}
	got, _ := repo.Get(ctx, wolf.ID)
	if got.Description != desc {
		t.Fatalf("update not persisted: %+v", got)
	}

	if err := repo.Delete(ctx, bob.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, bob.ID); !errors.Is(err, ErrHairstyleNotFound) {
		t.Fatalf("Get deleted: %v", err)
	}
	if err := repo.Delete(ctx, bob.ID); !errors.Is(err, ErrHairstyleNotFound) {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := repo.Update(ctx, "hairstyle_missing", HairstyleUpdate{Name: &desc}); !errors.Is(err, ErrHairstyleNotFound) {
		t.Fatalf("Update missing: %v", err)
	}
}

func TestRepositoryMissingAndMalformedFile(t *testing.T) {
	repo := newTestRepo(t)
	list, err := repo.List(context.Background())
	if err != nil || len(list) != 0 {
		t.Fatalf("empty catalog: %v %v", list, err)
	}

	if err := os.WriteFile(repo.path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.List(context.Background()); err == nil {
		t.Fatal("expected error for malformed catalog")
	}
}

func TestRepositoryFillsDefaultsOnLoad(t *testing.T) {
	repo := newTestRepo(t)
	raw := `[{"hairstyle_id":"hairstyle_a","image_path":"static/hairstyles/a.jpg"}]`
	if err := os.WriteFile(repo.path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := repo.Get(context.Background(), "hairstyle_a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != defaultName || got.Category != DefaultCategory {
		t.Fatalf("defaults not applied: %+v", got)
	}
	if got.ImageURL() != "/static/hairstyles/a.jpg" {
		t.Fatalf("ImageURL = %q", got.ImageURL())
	}
}
