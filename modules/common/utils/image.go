package utils

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // GIF 디코더 등록 (벤더 미지원 포맷 → JPEG 재인코딩 대상)
	"image/jpeg"
	_ "image/png" // PNG 디코더 등록
	"net/http"
	"os"
	"strings"

	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	xdraw "golang.org/x/image/draw"
)

// MIME 타입
const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeWebP = "image/webp"
)

// 벤더가 그대로 받는 포맷
var supportedMimeTypes = map[string]bool{
	MimeJPEG: true,
	MimePNG:  true,
	MimeWebP: true,
}

// JPEG 품질
const (
	QualityVendor = 95 // 미지원 포맷 재인코딩
	QualityCrop   = 92 // ROI crop
	QualityOutput = 90 // 최종 결과물 / 업로드
)

// ErrEmptyImage - 빈 입력
var ErrEmptyImage = errors.New("empty image data")

// DetectMime - 매직 바이트로 MIME 판별
func DetectMime(data []byte) string {
	mime := http.DetectContentType(data)
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return mime
}

// DecodeImage - JPEG/PNG/GIF/WebP 디코딩
func DecodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}

	if DetectMime(data) == MimeWebP {
		img, err := webp.Decode(bytes.NewReader(data), &decoder.Options{})
		if err != nil {
			return nil, "", fmt.Errorf("failed to decode webp: %w", err)
		}
		return img, "webp", nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// DecodeImageFile - 디스크의 이미지를 읽고 디코딩 가능 여부까지 확인
func DecodeImageFile(path string) (image.Image, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	img, _, err := DecodeImage(data)
	if err != nil {
		return nil, nil, err
	}
	return img, data, nil
}

// PrepareForVendor - 벤더 지원 포맷이면 그대로, 아니면 JPEG(q95)로 재인코딩
func PrepareForVendor(data []byte) ([]byte, string, error) {
	mime := DetectMime(data)
	if supportedMimeTypes[mime] {
		return data, mime, nil
	}

	img, _, err := DecodeImage(data)
	if err != nil {
		return nil, "", err
	}
	out, err := EncodeJPEG(img, QualityVendor)
	if err != nil {
		return nil, "", err
	}
	return out, MimeJPEG, nil
}

// EncodeJPEG - JPEG 인코딩
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// NormalizeToJPEG - 어떤 포맷이든 JPEG 결과물로 통일
func NormalizeToJPEG(data []byte, quality int) ([]byte, error) {
	img, _, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return EncodeJPEG(img, quality)
}

// ConvertImageToBase64 - 이미지 바이너리를 base64로 변환 (data URI prefix 없음)
func ConvertImageToBase64(imageData []byte) string {
	return base64.StdEncoding.EncodeToString(imageData)
}

// DecodeBase64Image - "data:image/png;base64," prefix 유무와 관계없이 디코딩
func DecodeBase64Image(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "data:") {
		idx := strings.Index(raw, ",")
		if idx < 0 {
			return nil, fmt.Errorf("malformed data url")
		}
		raw = raw[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		// 일부 벤더는 padding 없는 base64 를 돌려줌
		if alt, altErr := base64.RawStdEncoding.DecodeString(raw); altErr == nil {
			return alt, nil
		}
		return nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}
	return data, nil
}

// ConvertToWebP - 임의 포맷 이미지를 WebP로 변환
func ConvertToWebP(imageData []byte, quality float32) ([]byte, error) {
	img, _, err := DecodeImage(imageData)
	if err != nil {
		return nil, err
	}

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebP encoder options: %w", err)
	}

	var webpBuffer bytes.Buffer
	if err := webp.Encode(&webpBuffer, img, options); err != nil {
		return nil, fmt.Errorf("failed to encode WebP: %w", err)
	}
	return webpBuffer.Bytes(), nil
}

// ResizeExact - 비율을 무시하고 정확히 width x height 로 맞춤
func ResizeExact(src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// ResizeToFit - 긴 변 기준 축소 (원본이 더 작으면 그대로)
func ResizeToFit(src image.Image, maxSide int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return src
	}
	if w >= h {
		return ResizeExact(src, maxSide, max(1, h*maxSide/w))
	}
	return ResizeExact(src, max(1, w*maxSide/h), maxSide)
}

// Crop - rect 영역을 (0,0) 기준 새 이미지로 복사
func Crop(src image.Image, rect image.Rectangle) *image.RGBA {
	rect = rect.Intersect(src.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), src, rect.Min, draw.Src)
	return dst
}

// Paste - base 의 복사본 위 rect 위치에 patch 를 붙임 (base 는 변경하지 않음)
func Paste(base image.Image, patch image.Image, rect image.Rectangle) *image.RGBA {
	b := base.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), base, b.Min, draw.Src)

	target := rect.Sub(b.Min).Intersect(out.Bounds())
	draw.Draw(out, target, patch, patch.Bounds().Min, draw.Src)
	return out
}
