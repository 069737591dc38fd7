package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"quel-hairfit-server/modules/admin"
	"quel-hairfit-server/modules/catalog"
	"quel-hairfit-server/modules/common/config"
	"quel-hairfit-server/modules/common/database"
	"quel-hairfit-server/modules/common/logger"
	appredis "quel-hairfit-server/modules/common/redis"
	"quel-hairfit-server/modules/common/settings"
	"quel-hairfit-server/modules/common/storage"
	"quel-hairfit-server/modules/roi"
	"quel-hairfit-server/modules/tryon"
	"quel-hairfit-server/modules/vendor/gemini"
	"quel-hairfit-server/modules/vendor/kling"
	"quel-hairfit-server/modules/video"
	"quel-hairfit-server/modules/worker"
)

// 서버 메트릭
type ServerMetrics struct {
	StartTime time.Time `json:"startTime"`
}

// 벤더 작업 결과 캐시 보관 시간
const taskCacheTTL = time.Hour

// taskCache - 끝난 벤더 작업을 기억하는 캐시 (kling, video)
type taskCache interface {
	Evict(ttl time.Duration) int
}

// server - 라우트 핸들러가 공유하는 구성 요소
type server struct {
	cfg     *config.Config
	tryon   *tryon.Service
	caches  []taskCache
	pool    *worker.Pool
	metrics ServerMetrics
	log     zerolog.Logger
}

// 만료된 세션 및 작업 캐시 정리
func (s *server) cleanupExpiredSessions() int {
	removed := s.tryon.Cleanup()
	for _, c := range s.caches {
		removed += c.Evict(taskCacheTTL)
	}
	return removed
}

// 정기적 정리 작업 시작
func (s *server) startCleanupRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpiredSessions()
			}
		}
	}()

	s.log.Info().Dur("ttl", s.cfg.SessionTTL).Msg("🔄 Started session cleanup routine (every 5min)")
}

// CORS 헤더 추가
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Token")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// 헬스 체크 엔드포인트
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "quel-hairfit",
	})
}

// 서버 메트릭 조회 엔드포인트
func (s *server) getMetrics(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.metrics.StartTime)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"server": map[string]interface{}{
			"uptime":    uptime.String(),
			"startTime": s.metrics.StartTime,
		},
		"sessions": s.tryon.Stats(),
		"pool": map[string]int{
			"depth":  s.pool.Depth(),
			"active": s.pool.Active(),
		},
	})
}

// 만료 세션 강제 정리 (관리자용)
func (s *server) forceCleanupSessions(w http.ResponseWriter, r *http.Request) {
	removed := s.cleanupExpiredSessions()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "Cleanup completed",
		"removed": removed,
	})
}

// newMirror - 결과물 미러 (없으면 nil)
func newMirror(ctx context.Context, cfg *config.Config) (storage.Mirror, error) {
	switch cfg.ArtifactMirror {
	case config.MirrorSupabase:
		return storage.NewSupabaseMirror(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseBucket)
	case config.MirrorS3:
		return storage.NewS3Mirror(ctx, cfg.AWSRegion, cfg.AWSBucketName)
	default:
		return nil, nil
	}
}

// newHistory - 이력 저장소 선택. 반환된 close 는 항상 호출 가능.
func newHistory(ctx context.Context, cfg *config.Config) (database.HistoryRepository, func(), error) {
	switch cfg.HistoryBackend {
	case config.HistoryBackendSupabase:
		repo, err := database.NewSupabaseRepository(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		return repo, func() {}, err
	case config.HistoryBackendMongo:
		repo, err := database.NewMongoRepository(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, func() {}, err
		}
		return repo, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			repo.Close(closeCtx)
		}, nil
	default:
		repo, err := database.NewJSONFileRepository(cfg.HistoryPath)
		return repo, func() {}, err
	}
}

func main() {
	// 환경변수 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("❌ Failed to load config")
	}
	log := logger.New(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 저장소
	mirror, err := newMirror(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Str("mirror", cfg.ArtifactMirror).Msg("⚠️ Artifact mirror disabled")
		mirror = nil
	}
	inputs, err := storage.NewLocal(cfg.InputsDir, "/static/inputs", nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to prepare inputs dir")
	}
	outputs, err := storage.NewLocal(cfg.OutputsDir, "/static/outputs", mirror, log)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to prepare outputs dir")
	}

	history, closeHistory, err := newHistory(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.HistoryBackend).Msg("❌ Failed to open history repository")
	}
	defer closeHistory()

	hairstyleImages, err := storage.NewLocal(cfg.ReferencesDir, "/static/hairstyles", nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to prepare hairstyles dir")
	}
	catalogRepo, err := catalog.NewRepository(cfg.CatalogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("❌ Failed to open hairstyle catalog")
	}

	roots := cfg.SearchRoots()

	// 작업 풀
	pool := worker.NewPool(cfg.WorkerPoolSize, cfg.WorkerQueueSize, log)

	// 벤더 어댑터 (서비스마다 자신의 설정 스냅샷을 가진다)
	klingClient := kling.NewClient(cfg.KlingAPIBaseURL, 60*time.Second)
	geminiService := gemini.NewService(settings.Load(cfg.SettingsPath, log), cfg.GeminiAPITimeout, log)
	klingService := kling.NewService(klingClient, settings.Load(cfg.SettingsPath, log), outputs, roots, log)

	var validator tryon.PhotoValidator
	if cfg.PhotoValidation {
		validator = geminiService
	}

	tryonService := tryon.NewService(tryon.Options{
		Settings:   settings.Load(cfg.SettingsPath, log),
		Vendors:    []tryon.Vendor{geminiService, klingService},
		Pool:       pool,
		Compositor: roi.NewCompositor(roi.Policy{Automatic: cfg.ROIAutomatic}, log),
		Outputs:    outputs,
		History:    history,
		Roots:      roots,
		SessionTTL: cfg.SessionTTL,
		Validator:  validator,
	}, log)

	videoService := video.NewService(klingClient, settings.Load(cfg.SettingsPath, log), outputs, history, roots, log)
	videoService.SetPolling(cfg.VideoPollInterval, cfg.VideoPollTimeout)

	// Redis 비디오 자동 폴링 워커 (선택)
	if cfg.RedisEnabled {
		rdb, err := appredis.Connect(ctx, cfg, log)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Redis unavailable, video auto-poll disabled")
		} else {
			defer rdb.Close()
			dispatcher := worker.NewDispatcher(rdb, videoService, worker.DefaultPollConcurrency, log)
			videoService.SetQueue(dispatcher)
			go dispatcher.Run(ctx)
		}
	}

	srv := &server{
		cfg:     cfg,
		tryon:   tryonService,
		caches:  []taskCache{klingService, videoService},
		pool:    pool,
		metrics: ServerMetrics{StartTime: time.Now()},
		log:     log,
	}
	srv.startCleanupRoutine(ctx)

	// 라우터 설정
	r := mux.NewRouter()

	// CORS 미들웨어 적용
	r.Use(enableCORS)

	// 라우트 설정
	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/metrics", srv.getMetrics).Methods("GET")
	r.HandleFunc("/admin/cleanup", srv.forceCleanupSessions).Methods("POST")

	adminHandler := admin.NewAdminHandler(settings.Load(cfg.SettingsPath, log), history, cfg.AdminToken, log)
	adminHandler.Register(r)
	catalog.NewCatalogHandler(catalogRepo, hairstyleImages, log).Register(r, adminHandler.RequireToken)
	tryon.NewTryOnHandler(tryonService, inputs, catalogRepo, log).Register(r)
	video.NewVideoHandler(videoService, log).Register(r)

	// 정적 파일 (결과물, 업로드, 헤어스타일 참조 이미지)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("port", cfg.Port).Msg("🚀 Quel Hairfit Server starting")
	log.Info().Msgf("💇 Try-on endpoint: http://localhost:%s/api/try-on", cfg.Port)
	log.Info().Msgf("📡 Status websocket: ws://localhost:%s/ws/try-on/{session_id}", cfg.Port)
	log.Info().Msgf("❤️  Health check: http://localhost:%s/health", cfg.Port)
	log.Info().Msgf("📊 Metrics: http://localhost:%s/metrics", cfg.Port)

	// 서버 시작
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("🛑 Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("⚠️ HTTP shutdown incomplete")
	}
	pool.Stop()
}
