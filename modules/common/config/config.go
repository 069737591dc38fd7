package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// History 저장소 백엔드
const (
	HistoryBackendJSON     = "json"
	HistoryBackendSupabase = "supabase"
	HistoryBackendMongo    = "mongo"
)

// 결과물 미러 대상
const (
	MirrorNone     = "none"
	MirrorSupabase = "supabase"
	MirrorS3       = "s3"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Server
	Port       string
	AppEnv     string
	AdminToken string

	// Paths
	SettingsPath  string
	StaticDir     string
	InputsDir     string
	OutputsDir    string
	ReferencesDir string
	StaticRoots   []string
	CatalogPath   string

	// Worker pool
	WorkerPoolSize  int
	WorkerQueueSize int
	SessionTTL      time.Duration
	ROIAutomatic    bool
	PhotoValidation bool

	// Vendor
	GeminiAPITimeout  time.Duration
	KlingAPIBaseURL   string
	VideoPollInterval time.Duration
	VideoPollTimeout  time.Duration

	// History
	HistoryBackend string
	HistoryPath    string
	MongoURI       string
	MongoDatabase  string

	// Redis (비디오 자동 폴링 큐)
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Supabase
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	// Artifact mirror
	ArtifactMirror string
	AWSRegion      string
	AWSBucketName  string
}

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	_ = godotenv.Load()

	staticDir := getEnv("STATIC_DIR", "static")

	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		AppEnv: getEnv("APP_ENV", "production"),

		AdminToken: getEnv("ADMIN_TOKEN", ""),

		SettingsPath:  getEnv("SETTINGS_PATH", filepath.Join("data", "settings.json")),
		StaticDir:     staticDir,
		InputsDir:     getEnv("INPUTS_DIR", filepath.Join(staticDir, "inputs")),
		OutputsDir:    getEnv("OUTPUTS_DIR", filepath.Join(staticDir, "outputs")),
		ReferencesDir: getEnv("REFERENCES_DIR", filepath.Join(staticDir, "hairstyles")),
		StaticRoots:   splitList(getEnv("STATIC_ROOTS", "")),
		CatalogPath:   getEnv("CATALOG_PATH", filepath.Join("data", "hairstyles.json")),

		WorkerPoolSize:  getInt("WORKER_POOL_SIZE", 4),
		WorkerQueueSize: getInt("WORKER_QUEUE_SIZE", 32),
		SessionTTL:      getDuration("SESSION_TTL", 30*time.Minute),
		ROIAutomatic:    getBool("ROI_AUTOMATIC", false),
		PhotoValidation: getBool("PHOTO_VALIDATION", true),

		GeminiAPITimeout:  getSeconds("GEMINI_API_TIMEOUT", 60*time.Second),
		KlingAPIBaseURL:   getEnv("KLINGAI_API_BASE_URL", "https://api.klingai.com"),
		VideoPollInterval: getDuration("VIDEO_POLL_INTERVAL", 5*time.Second),
		VideoPollTimeout:  getDuration("VIDEO_POLL_TIMEOUT", 10*time.Minute),

		HistoryBackend: strings.ToLower(getEnv("HISTORY_BACKEND", HistoryBackendJSON)),
		HistoryPath:    getEnv("HISTORY_PATH", filepath.Join("data", "tryon_history.json")),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017/"),
		MongoDatabase:  getEnv("MONGO_DATABASE", "hairfit"),

		RedisEnabled:  getBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   getBool("REDIS_USE_TLS", false),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseBucket:     getEnv("SUPABASE_BUCKET", "attachments"),

		ArtifactMirror: strings.ToLower(getEnv("ARTIFACT_MIRROR", MirrorNone)),
		AWSRegion:      getEnv("AWS_REGION", "ap-northeast-2"),
		AWSBucketName:  getEnv("AWS_BUCKET_NAME", ""),
	}

	// 필수 환경변수 검증
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate - 백엔드 선택에 따른 필수 환경변수 검증
func (c *Config) validate() error {
	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("WORKER_POOL_SIZE must be positive")
	}
	if c.WorkerQueueSize < 0 {
		return fmt.Errorf("WORKER_QUEUE_SIZE must not be negative")
	}

	switch c.HistoryBackend {
	case HistoryBackendJSON:
	case HistoryBackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for supabase history")
		}
	case HistoryBackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for mongo history")
		}
	default:
		return fmt.Errorf("unknown HISTORY_BACKEND: %s", c.HistoryBackend)
	}

	switch c.ArtifactMirror {
	case MirrorNone:
	case MirrorSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for supabase mirror")
		}
	case MirrorS3:
		if c.AWSBucketName == "" {
			return fmt.Errorf("AWS_BUCKET_NAME is required for s3 mirror")
		}
	default:
		return fmt.Errorf("unknown ARTIFACT_MIRROR: %s", c.ArtifactMirror)
	}
	return nil
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// SearchRoots - 참조 이미지 탐색 루트 (순서 유지, 중복 제거)
func (c *Config) SearchRoots() []string {
	roots := []string{c.ReferencesDir, c.StaticDir}
	roots = append(roots, c.StaticRoots...)

	seen := make(map[string]bool, len(roots))
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

// getSeconds - "60" 또는 "60s" 모두 허용
func getSeconds(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return getDuration(key, defaultValue)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
