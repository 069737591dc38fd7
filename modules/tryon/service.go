package tryon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quel-hairfit-server/modules/common/database"
	"quel-hairfit-server/modules/common/model"
	"quel-hairfit-server/modules/common/settings"
	"quel-hairfit-server/modules/common/storage"
	"quel-hairfit-server/modules/common/utils"
	"quel-hairfit-server/modules/roi"
	"quel-hairfit-server/modules/worker"
)

// ErrBusy - 작업 대기열이 가득 참
var ErrBusy = errors.New("the server is busy, please try again shortly")

// 한 세션이 벤더 호출에 쓸 수 있는 최대 시간
const sessionBudget = 5 * time.Minute

// stuckTTL - 끝나지 않은 세션을 정리하기까지의 시간
const stuckTTL = 24 * time.Hour

// Vendor - 시착 이미지 생성 어댑터
type Vendor interface {
	Name() string
	Generate(ctx context.Context, req *model.GenerationRequest) model.VendorResult
}

// Submitter - 작업 제출 (worker.Pool)
type Submitter interface {
	Submit(name string, fn func()) error
}

// ArtifactStore - 결과 이미지 저장소
type ArtifactStore interface {
	SaveImage(ctx context.Context, prefix string, data []byte) (model.Artifact, error)
}

// PhotoValidator - 업로드 사진 사전 검증 (정면 얼굴 여부 등)
type PhotoValidator interface {
	ValidatePhoto(ctx context.Context, photo []byte) model.PhotoCheck
}

// StartRequest - 시착 요청
type StartRequest struct {
	SubjectPath   string
	SubjectURL    string
	ReferenceRef  string
	ReferenceID   string
	ReferenceName string
	Note          string
	Region        model.Region
}

// Started - Start 응답
type Started struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	RecordID  string `json:"record_id,omitempty"`
}

// Service - 시착 세션 오케스트레이터
type Service struct {
	settings   *settings.Store
	vendors    map[string]Vendor
	pool       Submitter
	compositor *roi.Compositor
	outputs    ArtifactStore
	history    database.HistoryRepository
	roots      []string
	ttl        time.Duration
	validator  PhotoValidator
	log        zerolog.Logger

	store *sessionStore
	hub   *statusHub
}

// Options - Service 구성 요소
type Options struct {
	Settings   *settings.Store
	Vendors    []Vendor
	Pool       Submitter
	Compositor *roi.Compositor
	Outputs    ArtifactStore
	History    database.HistoryRepository
	Roots      []string
	SessionTTL time.Duration
	Validator  PhotoValidator
}

// NewService - 오케스트레이터 생성 (세션 테이블은 인스턴스 소유)
func NewService(opts Options, log zerolog.Logger) *Service {
	log = log.With().Str("module", "tryon").Logger()

	vendors := make(map[string]Vendor, len(opts.Vendors))
	for _, v := range opts.Vendors {
		vendors[v.Name()] = v
	}
	compositor := opts.Compositor
	if compositor == nil {
		compositor = roi.NewCompositor(roi.Policy{}, log)
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	s := &Service{
		settings:   opts.Settings,
		vendors:    vendors,
		pool:       opts.Pool,
		compositor: compositor,
		outputs:    opts.Outputs,
		history:    opts.History,
		roots:      opts.Roots,
		ttl:        ttl,
		validator:  opts.Validator,
		log:        log,
		store:      newSessionStore(log),
		hub:        newStatusHub(log),
	}
	s.store.onTerminal = s.hub.publish
	return s
}

// Start - 입력 검증 후 작업을 대기열에 넣고 바로 반환
func (s *Service) Start(ctx context.Context, req StartRequest) (Started, error) {
	if req.SubjectPath == "" {
		return Started{}, model.NewInputError("user photo is required")
	}
	subject, err := os.ReadFile(req.SubjectPath)
	if err != nil {
		return Started{}, model.NewInputError("user photo not found")
	}
	if _, _, err := utils.DecodeImage(subject); err != nil {
		return Started{}, model.NewInputError("user photo could not be decoded")
	}
	if err := s.validate(ctx, subject, req); err != nil {
		return Started{}, err
	}

	sessionID := uuid.New().String()
	vendorName := s.settings.Current().VendorTryOn

	record := database.NewRecord()
	record.SessionID = sessionID
	record.Vendor = vendorName
	record.UserPhotoPath = firstNonEmpty(req.SubjectURL, req.SubjectPath)
	record.ReferencePhotoPath = req.ReferenceRef
	record.ReferenceID = req.ReferenceID
	record.ReferenceName = req.ReferenceName
	record.Status = model.StatusProcessing
	recordID := ""
	if s.history != nil {
		if err := s.history.Add(ctx, record); err != nil {
			model.PersistenceWarning(s.log, "history.add", err)
		} else {
			recordID = record.RecordID
		}
	}

	s.store.create(sessionID, recordID)
	if err := s.pool.Submit("tryon:"+sessionID, func() { s.run(sessionID, recordID, subject, req) }); err != nil {
		s.store.remove(sessionID)
		s.updateHistory(recordID, database.RecordUpdate{Status: model.StatusError, ErrorMessage: ErrBusy.Error()})
		if errors.Is(err, worker.ErrQueueFull) {
			return Started{}, ErrBusy
		}
		return Started{}, fmt.Errorf("failed to schedule session: %w", err)
	}

	s.log.Info().Str("session_id", sessionID).Str("vendor", vendorName).Str("reference", req.ReferenceRef).Msg("🚀 [TryOn] session started")
	return Started{SessionID: sessionID, Status: model.StatusProcessing, RecordID: recordID}, nil
}

// GetResult - processing | ok+output | error+message
func (s *Service) GetResult(sessionID string) (Result, error) {
	return s.store.get(sessionID)
}

// Stats - 메트릭용 세션 수
func (s *Service) Stats() Stats {
	return s.store.stats()
}

// Cleanup - 만료된 세션 정리
func (s *Service) Cleanup() int {
	removed := s.store.evict(s.ttl, stuckTTL)
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("🧹 [TryOn] expired sessions removed")
	}
	return removed
}

// run - 백그라운드 작업 1건. panic 포함 모든 실패는 세션 에러로 끝난다.
func (s *Service) run(sessionID, recordID string, subject []byte, req StartRequest) {
	log := s.log.With().Str("session_id", sessionID).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Msg("❌ [TryOn] session panicked")
			s.finishError(sessionID, recordID, model.FailureUserMessage)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), sessionBudget)
	defer cancel()

	// 벤더는 요청마다 현재 설정으로 결정
	snap, _ := s.settings.ReloadIfChanged()
	vendor := s.vendorFor(snap.VendorTryOn)
	if vendor == nil {
		log.Error().Str("vendor", snap.VendorTryOn).Msg("❌ [TryOn] vendor not registered")
		s.finishError(sessionID, recordID, model.CredentialMessage)
		return
	}

	references := s.loadReferences(req.ReferenceRef, log)
	genReq := &model.GenerationRequest{
		Subject:      model.ImageInput{Data: subject, Path: req.SubjectPath},
		References:   references,
		Instructions: BuildInstructions(req.ReferenceName, req.Note, len(references) > 0),
		Region:       req.Region,
		SafetyLevel:  snap.GeminiSafetyLevel,
		ReferenceRef: req.ReferenceRef,
	}

	startTime := time.Now()
	res := s.generate(ctx, vendor, genReq)
	if !res.IsImage() {
		log.Warn().
			Str("vendor", vendor.Name()).
			Str("result", res.Kind().String()).
			Str("detail", res.Message()).
			Dur("elapsed", time.Since(startTime)).
			Msg("❌ [TryOn] session failed")
		s.finishError(sessionID, recordID, terminalMessage(res))
		return
	}

	artifact := res.Artifact()
	if artifact == nil {
		saved, err := s.outputs.SaveImage(ctx, "tryon", res.Image())
		if err != nil {
			log.Error().Err(err).Msg("❌ [TryOn] failed to save result")
			s.finishError(sessionID, recordID, model.FailureUserMessage)
			return
		}
		artifact = &saved
	}

	result := Result{
		Output:        artifact.PublicURL,
		BeforeURL:     firstNonEmpty(req.SubjectURL, req.SubjectPath),
		ComparisonURL: s.saveComparison(ctx, subject, res.Image(), artifact, log),
	}
	if s.store.completeWith(sessionID, result) {
		s.updateHistory(recordID, database.RecordUpdate{
			Vendor:          vendor.Name(),
			ResultPhotoPath: artifact.PublicURL,
			PreviewPath:     artifact.PreviewURL,
			Status:          model.StatusOK,
		})
	}
	log.Info().Str("output", artifact.PublicURL).Dur("elapsed", time.Since(startTime)).Msg("✅ [TryOn] session completed")
}

// validate - 검증 실패 시 이력에 남기고 입력 에러 반환
func (s *Service) validate(ctx context.Context, subject []byte, req StartRequest) error {
	if s.validator == nil {
		return nil
	}
	check := s.validator.ValidatePhoto(ctx, subject)
	if check.Skipped {
		s.log.Warn().Str("detail", check.Message).Msg("⚠️ [TryOn] photo validation skipped")
	}
	if check.Valid {
		return nil
	}

	s.log.Info().Str("detail", check.Message).Msg("🚫 [TryOn] photo rejected")
	if s.history != nil {
		record := database.NewRecord()
		record.Vendor = s.settings.Current().VendorTryOn
		record.UserPhotoPath = firstNonEmpty(req.SubjectURL, req.SubjectPath)
		record.ReferencePhotoPath = req.ReferenceRef
		record.ReferenceID = req.ReferenceID
		record.ReferenceName = req.ReferenceName
		record.Status = model.StatusError
		record.ErrorMessage = "photo validation failed: " + check.Message
		if err := s.history.Add(ctx, record); err != nil {
			model.PersistenceWarning(s.log, "history.add", err)
		}
	}
	return model.NewInputError("%s", check.Message)
}

// saveComparison - 전/후 비교 이미지 저장. 실패해도 세션은 성공으로 끝난다.
func (s *Service) saveComparison(ctx context.Context, subject, output []byte, artifact *model.Artifact, log zerolog.Logger) string {
	if len(output) == 0 && artifact.Path != "" {
		data, err := os.ReadFile(artifact.Path)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ [TryOn] result unreadable, comparison skipped")
			return ""
		}
		output = data
	}
	before, _, err := utils.DecodeImage(subject)
	if err != nil {
		return ""
	}
	after, _, err := utils.DecodeImage(output)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ [TryOn] result not decodable, comparison skipped")
		return ""
	}
	data, err := utils.EncodeJPEG(utils.SideBySide(before, after, utils.ComparisonHeight), 90)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ [TryOn] comparison encode failed")
		return ""
	}
	saved, err := s.outputs.SaveImage(ctx, "comparison", data)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ [TryOn] comparison save failed")
		return ""
	}
	return saved.PublicURL
}

func (s *Service) vendorFor(name string) Vendor {
	if v, ok := s.vendors[name]; ok {
		return v
	}
	return s.vendors[settings.VendorGemini]
}

// loadReferences - 참조 이미지를 찾지 못하면 참조 없이 진행 (비동기 벤더는 자체적으로 실패 처리)
func (s *Service) loadReferences(ref string, log zerolog.Logger) []model.ImageInput {
	if ref == "" {
		return nil
	}
	path, err := storage.ResolveStatic(ref, s.roots)
	if err != nil {
		log.Warn().Str("reference", ref).Msg("⚠️ [TryOn] reference image not found, continuing without it")
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("reference", path).Msg("⚠️ [TryOn] reference image unreadable")
		return nil
	}
	return []model.ImageInput{{Data: data, MimeType: utils.DetectMime(data), Path: path}}
}

func (s *Service) finishError(sessionID, recordID, message string) {
	if s.store.fail(sessionID, message) {
		s.updateHistory(recordID, database.RecordUpdate{Status: model.StatusError, ErrorMessage: message})
	}
}

// updateHistory - 이력 기록 실패는 세션 결과에 영향 없음
func (s *Service) updateHistory(recordID string, update database.RecordUpdate) {
	if s.history == nil || recordID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.history.Update(ctx, recordID, update); err != nil {
		model.PersistenceWarning(s.log, "history.update", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
