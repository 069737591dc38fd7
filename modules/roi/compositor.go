package roi

import (
	"context"
	"image"

	"github.com/rs/zerolog"

	"quel-hairfit-server/modules/common/model"
	"quel-hairfit-server/modules/common/utils"
)

// PromptSuffix - 영역 편집 시 지시문 뒤에 붙는 제한 문구
const PromptSuffix = "\nEnsure the edited region produces a single continuous frame featuring only the original user; do NOT copy or paste any other person from any reference image."

// Box - 이미지 크기에 대한 비율 좌표
type Box struct {
	Left, Top, Right, Bottom float64
}

var boxes = map[model.Region]Box{
	model.RegionLower: {Left: 0.15, Top: 0.45, Right: 0.85, Bottom: 0.92},
	model.RegionUpper: {Left: 0.10, Top: 0.05, Right: 0.90, Bottom: 0.55},
}

// Generator - 벤더 어댑터 (Gemini / KlingAI)
type Generator interface {
	Generate(ctx context.Context, req *model.GenerationRequest) model.VendorResult
}

// Policy - 영역 생성 자동 사용 여부. 꺼져 있어도 재시도 정책은 영역 생성을 호출할 수 있다.
type Policy struct {
	Automatic bool
}

// ShouldRunFirst - 전체 생성 전에 영역 생성을 먼저 시도할지
func (p Policy) ShouldRunFirst(region model.Region) bool {
	return p.Automatic && region != model.RegionFull && region != ""
}

// ComputeBox - 영역의 픽셀 사각형 (폭/높이는 항상 1 이상)
func ComputeBox(region model.Region, width, height int) (image.Rectangle, bool) {
	box, ok := boxes[region]
	if !ok || width < 1 || height < 1 {
		return image.Rectangle{}, false
	}

	left, right := clampSpan(int(box.Left*float64(width)), int(box.Right*float64(width)), width)
	top, bottom := clampSpan(int(box.Top*float64(height)), int(box.Bottom*float64(height)), height)
	return image.Rect(left, top, right, bottom), true
}

// clampSpan - lo=max(0,min(lo,size-1)), hi=max(lo+1,min(hi,size))
func clampSpan(lo, hi, size int) (int, int) {
	lo = max(0, min(lo, size-1))
	hi = max(lo+1, min(hi, size))
	return lo, hi
}

// Composite - patch 를 box 크기로 맞춘 뒤 full 의 복사본에 붙인다 (box 밖 픽셀은 그대로)
func Composite(full image.Image, patch image.Image, box image.Rectangle) *image.RGBA {
	pb := patch.Bounds()
	if pb.Dx() != box.Dx() || pb.Dy() != box.Dy() {
		patch = utils.ResizeExact(patch, box.Dx(), box.Dy())
	}
	return utils.Paste(full, patch, box)
}

// Compositor - 영역 crop → 벤더 → 합성
type Compositor struct {
	Policy Policy
	log    zerolog.Logger
}

// NewCompositor - 기본 정책은 자동 사용 꺼짐
func NewCompositor(policy Policy, log zerolog.Logger) *Compositor {
	return &Compositor{
		Policy: policy,
		log:    log.With().Str("module", "roi").Logger(),
	}
}

// GenerateOnRegion - req.Subject 의 영역만 벤더에 보내고 합성. 성공 시 JPEG, 실패하면 nil.
// 참조 이미지 / 안전 단계 / 참조 경로 등 나머지 필드는 req 그대로 전달된다.
func (c *Compositor) GenerateOnRegion(ctx context.Context, vendor Generator, req *model.GenerationRequest) []byte {
	region := req.Region
	fullImg, _, err := utils.DecodeImage(req.Subject.Data)
	if err != nil {
		c.log.Warn().Err(err).Msg("⚠️ [ROI] full image decode failed")
		return nil
	}

	b := fullImg.Bounds()
	box, ok := ComputeBox(region, b.Dx(), b.Dy())
	if !ok {
		return nil
	}
	box = box.Add(b.Min)

	crop, err := utils.EncodeJPEG(utils.Crop(fullImg, box), utils.QualityCrop)
	if err != nil {
		c.log.Warn().Err(err).Msg("⚠️ [ROI] crop encode failed")
		return nil
	}

	c.log.Info().Str("region", string(region)).Str("box", box.String()).Msg("✂️ [ROI] generating on region")
	regionReq := *req
	regionReq.Subject = model.ImageInput{Data: crop, MimeType: utils.MimeJPEG}
	regionReq.Instructions = req.Instructions + PromptSuffix
	res := vendor.Generate(ctx, &regionReq)
	if !res.IsImage() {
		c.log.Warn().Str("result", res.Kind().String()).Str("message", res.Message()).Msg("⚠️ [ROI] vendor returned no image")
		return nil
	}

	patch, _, err := utils.DecodeImage(res.Image())
	if err != nil {
		c.log.Warn().Err(err).Msg("⚠️ [ROI] vendor image decode failed")
		return nil
	}

	out, err := utils.EncodeJPEG(Composite(fullImg, patch, box.Sub(b.Min)), utils.QualityOutput)
	if err != nil {
		c.log.Warn().Err(err).Msg("⚠️ [ROI] composite encode failed")
		return nil
	}
	c.log.Info().Int("bytes", len(out)).Msg("✅ [ROI] region composited")
	return out
}
