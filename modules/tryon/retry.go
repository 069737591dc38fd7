package tryon

import (
	"context"

	"quel-hairfit-server/modules/common/model"
)

// generate - 벤더 호출 + 영역 생성 / 1회 재시도 정책.
// 어떤 경로로든 재시도는 최대 한 번이며, 그 뒤의 결과가 최종이다.
func (s *Service) generate(ctx context.Context, vendor Vendor, req *model.GenerationRequest) model.VendorResult {
	log := s.log.With().Str("vendor", vendor.Name()).Logger()
	roiTried := false

	if s.compositor.Policy.ShouldRunFirst(req.Region) {
		roiTried = true
		if out := s.generateOnRegion(ctx, vendor, req); out != nil {
			return model.OkImage(out)
		}
		log.Info().Msg("🔁 [TryOn] region path unavailable, using full frame")
	}

	res := vendor.Generate(ctx, req)
	if res.IsImage() {
		return res
	}
	log.Warn().Str("result", res.Kind().String()).Str("reason", res.RefusalReason()).Str("failure", string(res.Failure())).Msg("⚠️ [TryOn] first attempt did not produce an image")

	if !retryable(res) {
		return res
	}

	// 영역 생성이 가능하고 아직 시도하지 않았으면 전체 재시도보다 먼저
	if req.Region != model.RegionFull && req.Region != "" && !roiTried {
		if out := s.generateOnRegion(ctx, vendor, req); out != nil {
			log.Info().Msg("✅ [TryOn] region fallback succeeded")
			return model.OkImage(out)
		}
	}

	switch {
	case res.IsRefused() && res.RefusalReason() == model.RefusalContentOther:
		log.Info().Msg("🔁 [TryOn] retrying once with sanitized instructions")
		return vendor.Generate(ctx, req.WithInstructions(Sanitize(req.Instructions)))
	case res.IsFailed() && res.Failure().Transient():
		log.Info().Str("failure", string(res.Failure())).Msg("🔁 [TryOn] retrying once")
		return vendor.Generate(ctx, req)
	default:
		return res
	}
}

// retryable - 자격 증명 / 입력 오류는 재시도해도 바뀌지 않음
func retryable(res model.VendorResult) bool {
	if res.IsRefused() {
		return true
	}
	return res.IsFailed() && res.Failure().Transient()
}

func (s *Service) generateOnRegion(ctx context.Context, vendor Vendor, req *model.GenerationRequest) []byte {
	return s.compositor.GenerateOnRegion(ctx, vendor, req)
}

// terminalMessage - 최종 실패를 사용자 문구로
func terminalMessage(res model.VendorResult) string {
	if res.IsRefused() {
		return model.RefusalUserMessage
	}
	return model.UserMessage(res.Err())
}
