package settings

import (
	"os"
	"strconv"
	"strings"
)

// 설정 파일에서 인식하는 키 (이외의 키는 읽을 때 무시, 쓸 때 제거)
const (
	KeyGeminiAPIKey      = "GEMINI_API_KEY"
	KeyGeminiModel       = "GEMINI_MODEL"
	KeyGeminiLLM         = "GEMINI_LLM"
	KeyGeminiSafetyLevel = "GEMINI_SAFETY_LEVEL"
	KeyKlingAccessKey    = "KLINGAI_ACCESS_KEY"
	KeyKlingSecretKey    = "KLINGAI_SECRET_KEY"
	KeyKlingModel        = "KLINGAI_MODEL"
	KeyVideoAccessKey    = "KLINGAI_VIDEO_ACCESS_KEY"
	KeyVideoSecretKey    = "KLINGAI_VIDEO_SECRET_KEY"
	KeyVideoModel        = "KLINGAI_VIDEO_MODEL"
	KeyVideoMode         = "KLINGAI_VIDEO_MODE"
	KeyVideoDuration     = "KLINGAI_VIDEO_DURATION"
	KeyVendorTryOn       = "VENDOR_TRYON"
)

// 벤더 이름
const (
	VendorGemini = "Gemini"
	VendorKling  = "KlingAI"
)

// 안전 필터 단계
const (
	SafetyBlockNone          = "BLOCK_NONE"
	SafetyBlockOnlyHigh      = "BLOCK_ONLY_HIGH"
	SafetyBlockMediumAndMore = "BLOCK_MEDIUM_AND_ABOVE"
)

// AllowedKeys - 화이트리스트 (순서는 관리자 화면 표시 순서)
var AllowedKeys = []string{
	KeyGeminiAPIKey,
	KeyGeminiModel,
	KeyGeminiLLM,
	KeyGeminiSafetyLevel,
	KeyKlingAccessKey,
	KeyKlingSecretKey,
	KeyKlingModel,
	KeyVideoAccessKey,
	KeyVideoSecretKey,
	KeyVideoModel,
	KeyVideoMode,
	KeyVideoDuration,
	KeyVendorTryOn,
}

var secretKeys = map[string]bool{
	KeyGeminiAPIKey:   true,
	KeyKlingSecretKey: true,
	KeyKlingAccessKey: true,
	KeyVideoAccessKey: true,
	KeyVideoSecretKey: true,
}

var defaults = map[string]string{
	KeyGeminiModel:       "gemini-2.5-flash-image",
	KeyGeminiLLM:         "gemini-2.5-flash",
	KeyGeminiSafetyLevel: SafetyBlockOnlyHigh,
	KeyKlingModel:        "kolors-virtual-try-on-v1",
	KeyVideoModel:        "kling-v2-5-turbo",
	KeyVideoMode:         "std",
	KeyVideoDuration:     "5",
	KeyVendorTryOn:       VendorGemini,
}

// IsAllowed - 화이트리스트 포함 여부
func IsAllowed(key string) bool {
	for _, k := range AllowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Snapshot - 한 시점의 설정 값 (불변 값 타입)
type Snapshot struct {
	GeminiAPIKey      string `json:"GEMINI_API_KEY"`
	GeminiModel       string `json:"GEMINI_MODEL"`
	GeminiLLM         string `json:"GEMINI_LLM"`
	GeminiSafetyLevel string `json:"GEMINI_SAFETY_LEVEL"`

	KlingAccessKey string `json:"KLINGAI_ACCESS_KEY"`
	KlingSecretKey string `json:"KLINGAI_SECRET_KEY"`
	KlingModel     string `json:"KLINGAI_MODEL"`

	VideoAccessKey string `json:"KLINGAI_VIDEO_ACCESS_KEY"`
	VideoSecretKey string `json:"KLINGAI_VIDEO_SECRET_KEY"`
	VideoModel     string `json:"KLINGAI_VIDEO_MODEL"`
	VideoMode      string `json:"KLINGAI_VIDEO_MODE"`
	VideoDuration  int    `json:"KLINGAI_VIDEO_DURATION"`

	VendorTryOn string `json:"VENDOR_TRYON"`
}

// fromValues - 파일 값 → 환경변수 → 기본값 순서로 채움
func fromValues(values map[string]string) Snapshot {
	get := func(key string) string {
		if v := strings.TrimSpace(values[key]); v != "" {
			return v
		}
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		return defaults[key]
	}

	duration, err := strconv.Atoi(get(KeyVideoDuration))
	if err != nil {
		duration, _ = strconv.Atoi(defaults[KeyVideoDuration])
	}

	return Snapshot{
		GeminiAPIKey:      get(KeyGeminiAPIKey),
		GeminiModel:       get(KeyGeminiModel),
		GeminiLLM:         get(KeyGeminiLLM),
		GeminiSafetyLevel: normalizeSafety(get(KeyGeminiSafetyLevel)),

		KlingAccessKey: get(KeyKlingAccessKey),
		KlingSecretKey: get(KeyKlingSecretKey),
		KlingModel:     get(KeyKlingModel),

		VideoAccessKey: get(KeyVideoAccessKey),
		VideoSecretKey: get(KeyVideoSecretKey),
		VideoModel:     get(KeyVideoModel),
		VideoMode:      get(KeyVideoMode),
		VideoDuration:  duration,

		VendorTryOn: normalizeVendor(get(KeyVendorTryOn)),
	}
}

func normalizeSafety(level string) string {
	switch strings.ToUpper(level) {
	case SafetyBlockNone:
		return SafetyBlockNone
	case SafetyBlockMediumAndMore:
		return SafetyBlockMediumAndMore
	default:
		return SafetyBlockOnlyHigh
	}
}

func normalizeVendor(name string) string {
	switch strings.ToLower(strings.ReplaceAll(name, " ", "")) {
	case "klingai", "kling":
		return VendorKling
	default:
		return VendorGemini
	}
}

// HasKlingCredentials - 이미지용 Kling 키 존재 여부
func (s Snapshot) HasKlingCredentials() bool {
	return s.KlingAccessKey != "" && s.KlingSecretKey != ""
}

// HasVideoCredentials - 비디오용 Kling 키 존재 여부
func (s Snapshot) HasVideoCredentials() bool {
	return s.VideoAccessKey != "" && s.VideoSecretKey != ""
}

// Masked - 관리자 화면용 (비밀 값은 앞 4자리만)
func (s Snapshot) Masked() map[string]string {
	raw := map[string]string{
		KeyGeminiAPIKey:      s.GeminiAPIKey,
		KeyGeminiModel:       s.GeminiModel,
		KeyGeminiLLM:         s.GeminiLLM,
		KeyGeminiSafetyLevel: s.GeminiSafetyLevel,
		KeyKlingAccessKey:    s.KlingAccessKey,
		KeyKlingSecretKey:    s.KlingSecretKey,
		KeyKlingModel:        s.KlingModel,
		KeyVideoAccessKey:    s.VideoAccessKey,
		KeyVideoSecretKey:    s.VideoSecretKey,
		KeyVideoModel:        s.VideoModel,
		KeyVideoMode:         s.VideoMode,
		KeyVideoDuration:     strconv.Itoa(s.VideoDuration),
		KeyVendorTryOn:       s.VendorTryOn,
	}
	for k, v := range raw {
		if secretKeys[k] {
			raw[k] = mask(v)
		}
	}
	return raw
}

func mask(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "****"
	}
	return v[:4] + strings.Repeat("*", 8)
}
