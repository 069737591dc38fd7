package roi

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"quel-hairfit-server/modules/common/model"
	"quel-hairfit-server/modules/common/utils"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestComputeBox(t *testing.T) {
	box, ok := ComputeBox(model.RegionLower, 100, 200)
	if !ok {
		t.Fatal("lower region should have a box")
	}
	if box != image.Rect(15, 90, 85, 184) {
		t.Fatalf("lower box = %v", box)
	}

	box, _ = ComputeBox(model.RegionUpper, 100, 200)
	if box != image.Rect(10, 10, 90, 110) {
		t.Fatalf("upper box = %v", box)
	}

	if _, ok := ComputeBox(model.RegionFull, 100, 100); ok {
		t.Fatal("full region has no box")
	}
}

func TestComputeBoxClampsTinyImages(t *testing.T) {
	for _, size := range [][2]int{{1, 1}, {2, 1}, {1, 3}, {3, 2}} {
		for _, region := range []model.Region{model.RegionUpper, model.RegionLower} {
			box, ok := ComputeBox(region, size[0], size[1])
			if !ok {
				t.Fatalf("%s %v: no box", region, size)
			}
			if box.Dx() < 1 || box.Dy() < 1 {
				t.Fatalf("%s %v: empty box %v", region, size, box)
			}
			if !box.In(image.Rect(0, 0, size[0], size[1])) {
				t.Fatalf("%s %v: box %v outside image", region, size, box)
			}
		}
	}
}

func TestCompositeOnlyChangesBox(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	full := solid(40, 60, red)
	box, _ := ComputeBox(model.RegionLower, 40, 60)
	patch := solid(box.Dx(), box.Dy(), blue)

	out := Composite(full, patch, box)

	if out.Bounds() != full.Bounds() {
		t.Fatalf("bounds = %v, want %v", out.Bounds(), full.Bounds())
	}
	for y := 0; y < 60; y++ {
		for x := 0; x < 40; x++ {
			got := out.RGBAAt(x, y)
			want := red
			if image.Pt(x, y).In(box) {
				want = blue
			}
			if got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
	if full.RGBAAt(box.Min.X, box.Min.Y) != red {
		t.Fatal("original image must not be modified")
	}
}

func TestCompositeResizesPatchToBox(t *testing.T) {
	full := solid(50, 50, color.RGBA{R: 255, A: 255})
	box, _ := ComputeBox(model.RegionUpper, 50, 50)
	out := Composite(full, solid(7, 3, color.RGBA{G: 255, A: 255}), box)

	if out.Bounds() != full.Bounds() {
		t.Fatalf("bounds changed: %v", out.Bounds())
	}
	if got := out.RGBAAt(0, 49); got != (color.RGBA{R: 255, A: 255}) {
		t.Fatalf("outside pixel changed: %v", got)
	}
	if got := out.RGBAAt(box.Min.X+box.Dx()/2, box.Min.Y+box.Dy()/2); got.G < 200 || got.R > 50 {
		t.Fatalf("inside pixel not replaced: %v", got)
	}
}

type stubVendor struct {
	res     model.VendorResult
	lastReq *model.GenerationRequest
}

func (s *stubVendor) Generate(ctx context.Context, req *model.GenerationRequest) model.VendorResult {
	s.lastReq = req
	return s.res
}

func TestGenerateOnRegion(t *testing.T) {
	full := encodePNG(t, solid(40, 40, color.RGBA{R: 255, A: 255}))
	vendor := &stubVendor{res: model.OkImage(encodePNG(t, solid(10, 10, color.RGBA{B: 255, A: 255})))}
	comp := NewCompositor(Policy{}, zerolog.Nop())

	refs := []model.ImageInput{{Data: []byte("ref"), MimeType: utils.MimePNG}}
	out := comp.GenerateOnRegion(context.Background(), vendor, &model.GenerationRequest{
		Subject:      model.ImageInput{Data: full, Path: "/static/inputs/user.png"},
		References:   refs,
		Instructions: "change the hair",
		Region:       model.RegionLower,
		SafetyLevel:  "BLOCK_NONE",
		ReferenceRef: "/static/hairstyles/bob.png",
	})
	if out == nil {
		t.Fatal("expected composite output")
	}
	img, _, err := utils.DecodeImage(out)
	if err != nil || img.Bounds().Dx() != 40 || img.Bounds().Dy() != 40 {
		t.Fatalf("output decode: %v %v", err, img)
	}
	if !strings.HasSuffix(vendor.lastReq.Instructions, PromptSuffix) {
		t.Fatal("instructions must carry the region suffix")
	}
	if vendor.lastReq.ReferenceRef != "/static/hairstyles/bob.png" || vendor.lastReq.SafetyLevel != "BLOCK_NONE" || len(vendor.lastReq.References) != 1 {
		t.Fatalf("region request dropped request fields: %+v", vendor.lastReq)
	}
	if vendor.lastReq.Subject.Path != "" {
		t.Fatal("region request must not point at the full-frame subject file")
	}
	sub, _, _ := utils.DecodeImage(vendor.lastReq.Subject.Data)
	box, _ := ComputeBox(model.RegionLower, 40, 40)
	if sub.Bounds().Dx() != box.Dx() || sub.Bounds().Dy() != box.Dy() {
		t.Fatalf("crop size = %v, want %v", sub.Bounds(), box)
	}
}

func regionRequest(full []byte, region model.Region) *model.GenerationRequest {
	return &model.GenerationRequest{Subject: model.ImageInput{Data: full}, Instructions: "x", Region: region}
}

func TestGenerateOnRegionReturnsNilOnFailure(t *testing.T) {
	full := encodePNG(t, solid(20, 20, color.RGBA{A: 255}))
	comp := NewCompositor(Policy{}, zerolog.Nop())

	refused := &stubVendor{res: model.Refused(model.RefusalSafety, "blocked")}
	if out := comp.GenerateOnRegion(context.Background(), refused, regionRequest(full, model.RegionUpper)); out != nil {
		t.Fatal("refusal must yield nil")
	}
	ok := &stubVendor{res: model.OkImage([]byte{1})}
	if out := comp.GenerateOnRegion(context.Background(), ok, regionRequest([]byte("garbage"), model.RegionUpper)); out != nil {
		t.Fatal("undecodable input must yield nil")
	}
	if ok.lastReq != nil {
		t.Fatal("vendor must not be called for undecodable input")
	}
	if out := comp.GenerateOnRegion(context.Background(), ok, regionRequest(full, model.RegionFull)); out != nil {
		t.Fatal("full region must yield nil")
	}
}

func TestPolicy(t *testing.T) {
	if (Policy{}).ShouldRunFirst(model.RegionLower) {
		t.Fatal("default policy is off")
	}
	if !(Policy{Automatic: true}).ShouldRunFirst(model.RegionUpper) {
		t.Fatal("enabled policy should run for upper")
	}
	if (Policy{Automatic: true}).ShouldRunFirst(model.RegionFull) {
		t.Fatal("full region never uses ROI")
	}
}
