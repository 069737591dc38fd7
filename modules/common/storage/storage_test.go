package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"quel-hairfit-server/modules/common/model"
	"quel-hairfit-server/modules/common/utils"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 6, 6))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

type recordingMirror struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (m *recordingMirror) Name() string { return "recording" }

func (m *recordingMirror) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	if m.err != nil {
		return "", m.err
	}
	return "mirror://" + key, nil
}

func TestSaveImageWritesJPEGWithPublicURL(t *testing.T) {
	dir := t.TempDir()
	mirror := &recordingMirror{}
	store, err := NewLocal(dir, "/static/outputs", mirror, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLocal error: %v", err)
	}

	artifact, err := store.SaveImage(context.Background(), "gen", testPNG(t))
	if err != nil {
		t.Fatalf("SaveImage error: %v", err)
	}
	if !strings.HasPrefix(artifact.PublicURL, "/static/outputs/gen_") || !strings.HasSuffix(artifact.PublicURL, ".jpg") {
		t.Fatalf("unexpected public url %q", artifact.PublicURL)
	}
	data, err := os.ReadFile(artifact.Path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if utils.DetectMime(data) != utils.MimeJPEG {
		t.Fatalf("expected jpeg artifact, got %s", utils.DetectMime(data))
	}
	if artifact.PreviewURL == "" || !strings.HasSuffix(artifact.PreviewURL, ".webp") {
		t.Fatalf("expected webp preview, got %q", artifact.PreviewURL)
	}
	if len(mirror.keys) != 1 || !strings.HasSuffix(mirror.keys[0], ".webp") {
		t.Fatalf("expected webp preview mirrored once, got %v", mirror.keys)
	}
}

func TestSaveImageSurvivesMirrorFailure(t *testing.T) {
	store, _ := NewLocal(t.TempDir(), "/static/outputs/", &recordingMirror{err: errors.New("bucket offline")}, zerolog.Nop())
	artifact, err := store.SaveImage(context.Background(), "gen", testPNG(t))
	if err != nil {
		t.Fatalf("mirror failure must not fail the save: %v", err)
	}
	if artifact.MirrorURL != "" {
		t.Fatalf("expected empty mirror url on failure")
	}
}

func TestConcurrentSavesGetUniqueNames(t *testing.T) {
	store, _ := NewLocal(t.TempDir(), "/static/outputs/", nil, zerolog.Nop())
	data := []byte("fake-mp4-payload")

	const n = 20
	var wg sync.WaitGroup
	urls := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := store.SaveFile(context.Background(), "video", ".mp4", data, "video/mp4")
			if err != nil {
				t.Errorf("SaveFile error: %v", err)
				return
			}
			urls <- a.PublicURL
		}()
	}
	wg.Wait()
	close(urls)

	seen := map[string]bool{}
	for u := range urls {
		if seen[u] {
			t.Fatalf("duplicate artifact name %s", u)
		}
		seen[u] = true
	}
}

func TestSaveUploadRejectsUndecodable(t *testing.T) {
	store, _ := NewLocal(t.TempDir(), "/static/inputs/", nil, zerolog.Nop())
	_, err := store.SaveUpload(context.Background(), "user", strings.NewReader("not an image"))
	if !errors.Is(err, model.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestResolveStaticSearchesRoots(t *testing.T) {
	webRoot := t.TempDir()
	baseRoot := t.TempDir()
	target := filepath.Join(baseRoot, "hairstyles", "bob.jpg")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	roots := []string{webRoot, baseRoot}
	for _, ref := range []string{
		"/static/hairstyles/bob.jpg",
		"http://kiosk.local/static/hairstyles/bob.jpg",
		"hairstyles/bob.jpg",
	} {
		got, err := ResolveStatic(ref, roots)
		if err != nil {
			t.Fatalf("ResolveStatic(%q) error: %v", ref, err)
		}
		if got != target {
			t.Fatalf("ResolveStatic(%q) = %q, want %q", ref, got, target)
		}
	}

	if _, err := ResolveStatic("/static/hairstyles/missing.jpg", roots); !errors.Is(err, model.ErrInput) {
		t.Fatalf("expected input error for missing reference, got %v", err)
	}
	if _, err := ResolveStatic("../../etc/passwd", roots); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}

func TestResolveStaticStaysInsideRoots(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "static")
	if err := os.MkdirAll(filepath.Join(root, "hairstyles"), 0o755); err != nil {
		t.Fatal(err)
	}
	outside := filepath.Join(parent, "outside.png")
	if err := os.WriteFile(outside, []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "hairstyles", "link.png")); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}
	roots := []string{root}

	for _, ref := range []string{
		"../outside.png",
		"/static/../outside.png",
		"hairstyles/../../outside.png",
		"http://kiosk.local/static/../outside.png",
		outside,
		"/static/hairstyles/link.png",
	} {
		if got, err := ResolveStatic(ref, roots); !errors.Is(err, model.ErrInput) {
			t.Errorf("ResolveStatic(%q) = %q, %v; want input error", ref, got, err)
		}
	}
}

func TestSupabaseMirrorUpload(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotType, gotUpsert string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotUpsert = r.Header.Get("x-upsert")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Key":"attachments/hairfit-outputs/gen_1.webp"}`))
	}))
	defer srv.Close()

	mirror, err := NewSupabaseMirror(srv.URL+"/", "service-key", "attachments")
	if err != nil {
		t.Fatalf("NewSupabaseMirror error: %v", err)
	}
	url, err := mirror.Upload(context.Background(), "gen_1.webp", []byte("data"), "image/webp")
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/storage/v1/object/attachments/hairfit-outputs/gen_1.webp" {
		t.Fatalf("unexpected upload %s %q", gotMethod, gotPath)
	}
	if gotAuth != "Bearer service-key" || gotType != "image/webp" || gotUpsert != "true" {
		t.Fatalf("unexpected headers auth=%q type=%q upsert=%q", gotAuth, gotType, gotUpsert)
	}
	if string(gotBody) != "data" {
		t.Fatalf("body = %q", gotBody)
	}
	if url != srv.URL+"/storage/v1/object/public/attachments/hairfit-outputs/gen_1.webp" {
		t.Fatalf("unexpected public url %q", url)
	}
}

func TestSupabaseMirrorUploadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"statusCode":"403","error":"Unauthorized","message":"invalid signature"}`))
	}))
	defer srv.Close()

	mirror, err := NewSupabaseMirror(srv.URL, "bad-key", "attachments")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mirror.Upload(context.Background(), "gen_2.webp", []byte("data"), "image/webp"); err == nil {
		t.Fatal("expected upload error on 403")
	}
}

func TestNewSupabaseMirrorRequiresSettings(t *testing.T) {
	if _, err := NewSupabaseMirror("", "key", "attachments"); err == nil {
		t.Fatal("expected error without url")
	}
	if _, err := NewSupabaseMirror("http://localhost", "key", ""); err == nil {
		t.Fatal("expected error without bucket")
	}
}

type fakeS3 struct {
	input *s3.PutObjectInput
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	return &s3.PutObjectOutput{}, nil
}

func TestS3MirrorUpload(t *testing.T) {
	fake := &fakeS3{}
	mirror := &S3Mirror{client: fake, bucket: "kiosk", prefix: "hairfit-outputs/"}

	url, err := mirror.Upload(context.Background(), "video_1.mp4", []byte("mp4"), "video/mp4")
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if url != "s3://kiosk/hairfit-outputs/video_1.mp4" {
		t.Fatalf("unexpected url %q", url)
	}
	if *fake.input.Key != "hairfit-outputs/video_1.mp4" || *fake.input.ContentType != "video/mp4" {
		t.Fatalf("unexpected put input %+v", fake.input)
	}
}
