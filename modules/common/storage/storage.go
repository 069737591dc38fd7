package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"quel-hairfit-server/modules/common/model"
	"quel-hairfit-server/modules/common/utils"
)

// MaxUploadBytes - 업로드 사진 최대 크기
const MaxUploadBytes = 20 << 20

// Mirror - 결과물을 외부 저장소로 복제 (Supabase Storage, S3)
type Mirror interface {
	Name() string
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Local - 정적 서빙 디렉토리에 파일을 기록하는 저장소
type Local struct {
	dir          string
	publicPrefix string
	mirror       Mirror
	log          zerolog.Logger
	now          func() time.Time
}

// NewLocal - 디렉토리 생성 후 저장소 반환 (mirror 는 nil 가능)
func NewLocal(dir, publicPrefix string, mirror Mirror, log zerolog.Logger) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if !strings.HasSuffix(publicPrefix, "/") {
		publicPrefix += "/"
	}
	return &Local{
		dir:          dir,
		publicPrefix: publicPrefix,
		mirror:       mirror,
		log:          log.With().Str("module", "storage").Logger(),
		now:          time.Now,
	}, nil
}

// Dir - 저장 디렉토리
func (s *Local) Dir() string {
	return s.dir
}

// PublicURL - 파일명 → 공개 경로 (/static/outputs/<name>)
func (s *Local) PublicURL(name string) string {
	return s.publicPrefix + name
}

// uniqueName - 밀리초 타임스탬프 + 난수 (동시 세션 간 충돌 방지)
func (s *Local) uniqueName(prefix, ext string) string {
	timestamp := s.now().UnixMilli()
	randomID := rand.Intn(1000000)
	return fmt.Sprintf("%s_%d_%06d%s", prefix, timestamp, randomID, ext)
}

// writeExclusive - 이미 존재하는 이름이면 새 이름으로 재시도
func (s *Local) writeExclusive(prefix, ext string, data []byte) (string, string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		name := s.uniqueName(prefix, ext)
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", "", fmt.Errorf("failed to create %s: %w", path, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", "", fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", "", fmt.Errorf("failed to close %s: %w", path, err)
		}
		return name, path, nil
	}
	return "", "", fmt.Errorf("could not allocate a unique file name for %s", prefix)
}

// SaveImage - JPEG(q90)로 정규화해 저장하고 WebP 미리보기를 함께 만든다.
// 미리보기/미러 실패는 결과물 저장을 실패시키지 않는다.
func (s *Local) SaveImage(ctx context.Context, prefix string, data []byte) (model.Artifact, error) {
	jpegData, err := utils.NormalizeToJPEG(data, utils.QualityOutput)
	if err != nil {
		return model.Artifact{}, err
	}

	name, path, err := s.writeExclusive(prefix, ".jpg", jpegData)
	if err != nil {
		return model.Artifact{}, err
	}
	artifact := model.Artifact{Path: path, PublicURL: s.PublicURL(name)}

	webpData, err := utils.ConvertToWebP(jpegData, float32(utils.QualityOutput))
	if err != nil {
		s.log.Warn().Err(err).Str("file", name).Msg("⚠️ [Storage] webp preview failed")
		return artifact, nil
	}
	previewName := strings.TrimSuffix(name, ".jpg") + ".webp"
	if err := os.WriteFile(filepath.Join(s.dir, previewName), webpData, 0o644); err != nil {
		s.log.Warn().Err(err).Str("file", previewName).Msg("⚠️ [Storage] webp preview write failed")
		return artifact, nil
	}
	artifact.PreviewURL = s.PublicURL(previewName)
	artifact.MirrorURL = s.mirrorUpload(ctx, previewName, webpData, utils.MimeWebP)

	s.log.Info().Str("file", name).Int("bytes", len(jpegData)).Msg("✅ [Storage] image saved")
	return artifact, nil
}

// SaveFile - 원본 그대로 저장 (비디오 등)
func (s *Local) SaveFile(ctx context.Context, prefix, ext string, data []byte, contentType string) (model.Artifact, error) {
	if len(data) == 0 {
		return model.Artifact{}, fmt.Errorf("refusing to save empty %s file", prefix)
	}
	name, path, err := s.writeExclusive(prefix, ext, data)
	if err != nil {
		return model.Artifact{}, err
	}
	artifact := model.Artifact{Path: path, PublicURL: s.PublicURL(name)}
	artifact.MirrorURL = s.mirrorUpload(ctx, name, data, contentType)

	s.log.Info().Str("file", name).Int("bytes", len(data)).Msg("✅ [Storage] file saved")
	return artifact, nil
}

// SaveUpload - 업로드 사진 저장 (디코딩 가능 여부 검증 후 JPEG q90)
func (s *Local) SaveUpload(ctx context.Context, prefix string, r io.Reader) (model.Artifact, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return model.Artifact{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return model.Artifact{}, model.NewInputError("photo is larger than %d MB", MaxUploadBytes>>20)
	}
	if _, _, err := utils.DecodeImage(data); err != nil {
		return model.Artifact{}, model.NewInputError("photo could not be decoded (HEIC photos must be converted to JPEG first)")
	}

	jpegData, err := utils.NormalizeToJPEG(data, utils.QualityOutput)
	if err != nil {
		return model.Artifact{}, err
	}
	name, path, err := s.writeExclusive(prefix, ".jpg", jpegData)
	if err != nil {
		return model.Artifact{}, err
	}
	return model.Artifact{Path: path, PublicURL: s.PublicURL(name)}, nil
}

// SaveDataURL - "data:image/...;base64," 형태의 사진 저장
func (s *Local) SaveDataURL(ctx context.Context, prefix, dataURL string) (model.Artifact, error) {
	data, err := utils.DecodeBase64Image(dataURL)
	if err != nil {
		return model.Artifact{}, model.NewInputError("photo data url is malformed")
	}
	return s.SaveUpload(ctx, prefix, bytes.NewReader(data))
}

func (s *Local) mirrorUpload(ctx context.Context, name string, data []byte, contentType string) string {
	if s.mirror == nil {
		return ""
	}
	url, err := s.mirror.Upload(ctx, name, data, contentType)
	if err != nil {
		model.PersistenceWarning(s.log, "mirror:"+s.mirror.Name(), err)
		return ""
	}
	return url
}
