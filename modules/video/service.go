package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"quel-hairfit-server/modules/common/database"
	"quel-hairfit-server/modules/common/model"
	"quel-hairfit-server/modules/common/settings"
	"quel-hairfit-server/modules/common/storage"
	"quel-hairfit-server/modules/common/utils"
	"quel-hairfit-server/modules/vendor/kling"
)

// DefaultMotionPrompt - 헤어스타일을 여러 각도에서 보여주는 기본 동작
const DefaultMotionPrompt = "The person slowly turns their head to the left and to the right, showing the hairstyle from the front and both sides, then smiles at the camera. Hair moves naturally."

// 기본 대기 주기 / 제한 시간 (자동 폴링 워커용)
const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollBudget   = 10 * time.Minute
)

// FileStore - 비디오 파일 저장소
type FileStore interface {
	SaveFile(ctx context.Context, prefix, ext string, data []byte, contentType string) (model.Artifact, error)
}

// Enqueuer - 제출된 작업을 자동 폴링 대기열에 넣음 (worker.Dispatcher)
type Enqueuer interface {
	Enqueue(ctx context.Context, taskID, recordID string) error
}

// SubmitRequest - 비디오 생성 요청
type SubmitRequest struct {
	ImagePath string
	Prompt    string
	Duration  int
	RecordID  string
}

// Service - KlingAI image2video 오케스트레이터
type Service struct {
	client   *kling.Client
	settings *settings.Store
	outputs  FileStore
	history  database.HistoryRepository
	roots    []string
	queue    Enqueuer
	log      zerolog.Logger

	pollInterval time.Duration
	pollBudget   time.Duration

	group   singleflight.Group
	mu      sync.Mutex
	done    map[string]doneTask
	records map[string]recordLink
}

// doneTask - 끝난 작업 캐시 항목
type doneTask struct {
	task     model.VideoTask
	storedAt time.Time
}

// recordLink - task_id → 이력 레코드 연결
type recordLink struct {
	recordID  string
	createdAt time.Time
}

// NewService - history, roots 는 nil 가능
func NewService(client *kling.Client, store *settings.Store, outputs FileStore, history database.HistoryRepository, roots []string, log zerolog.Logger) *Service {
	return &Service{
		client:       client,
		settings:     store,
		outputs:      outputs,
		history:      history,
		roots:        roots,
		log:          log.With().Str("module", "video").Logger(),
		pollInterval: DefaultPollInterval,
		pollBudget:   DefaultPollBudget,
		done:         make(map[string]doneTask),
		records:      make(map[string]recordLink),
	}
}

// SetPolling - 자동 폴링 주기/제한 시간 (0 이하 값은 무시)
func (s *Service) SetPolling(interval, budget time.Duration) {
	if interval > 0 {
		s.pollInterval = interval
	}
	if budget > 0 {
		s.pollBudget = budget
	}
}

// SetQueue - 자동 폴링 대기열 연결 (Redis 가 없으면 호출하지 않음)
func (s *Service) SetQueue(q Enqueuer) {
	s.queue = q
}

func (s *Service) credentials() (kling.Credentials, settings.Snapshot) {
	snap, _ := s.settings.ReloadIfChanged()
	return kling.Credentials{AccessKey: snap.VideoAccessKey, SecretKey: snap.VideoSecretKey}, snap
}

// Enabled - 비디오 자격 증명이 설정되어 있는지
func (s *Service) Enabled() bool {
	creds, _ := s.credentials()
	return creds.Valid()
}

// Submit - 작업 생성 후 task_id 반환. 입력 검증은 네트워크 호출 전에 끝난다.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	creds, snap := s.credentials()

	duration := req.Duration
	if duration == 0 {
		duration = snap.VideoDuration
	}
	if duration != 5 && duration != 10 {
		return "", model.NewInputError("duration must be 5 or 10 seconds")
	}
	if !creds.Valid() {
		return "", model.NewCredentialError("video credentials are not configured")
	}

	path, err := storage.ResolveStatic(req.ImagePath, s.roots)
	if err != nil {
		return "", model.NewInputError("source image not found")
	}
	image, err := os.ReadFile(path)
	if err != nil {
		return "", model.NewInputError("source image not readable")
	}
	image, _, err = utils.PrepareForVendor(image)
	if err != nil {
		return "", model.NewInputError("source image could not be decoded")
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = DefaultMotionPrompt
	}

	body := kling.NewVideoRequest(snap.VideoModel, snap.VideoMode, utils.ConvertImageToBase64(image), prompt, duration)
	taskID, err := s.client.CreateVideoTask(ctx, creds, body)
	if err != nil {
		s.log.Error().Err(err).Str("model", snap.VideoModel).Msg("❌ [Video] task creation failed")
		switch kling.FailureKind(err) {
		case model.FailureCredentials:
			return "", model.NewCredentialError("video credentials were rejected")
		case model.FailureInput:
			return "", model.NewInputError("video request was rejected: %s", errMessage(err))
		default:
			return "", model.WrapTransient(err, "video task creation failed")
		}
	}

	s.log.Info().
		Str("task_id", taskID).
		Str("model", body.ModelName).
		Str("mode", body.Mode).
		Int("duration", duration).
		Msg("🎬 [Video] task created")

	if req.RecordID != "" {
		s.mu.Lock()
		s.records[taskID] = recordLink{recordID: req.RecordID, createdAt: time.Now()}
		s.mu.Unlock()
		s.updateHistory(req.RecordID, database.RecordUpdate{VideoTaskID: taskID})
	}
	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, taskID, req.RecordID); err != nil {
			s.log.Warn().Err(err).Str("task_id", taskID).Msg("⚠️ [Video] auto-poll enqueue failed, client polling only")
		}
	}
	return taskID, nil
}

// Poll - 작업 상태 1회 조회. 완료된 작업은 캐시되며 다운로드는 작업당 1회.
func (s *Service) Poll(ctx context.Context, taskID string) (model.VideoTask, error) {
	if task, ok := s.cached(taskID); ok {
		return task, nil
	}

	v, err, _ := s.group.Do(taskID, func() (any, error) {
		if task, ok := s.cached(taskID); ok {
			return task, nil
		}
		task, err := s.poll(ctx, taskID)
		if err != nil {
			return task, err
		}
		if task.Terminal() {
			s.mu.Lock()
			task.RecordID = s.records[taskID].recordID
			s.done[taskID] = doneTask{task: task, storedAt: time.Now()}
			delete(s.records, taskID)
			s.mu.Unlock()
			if task.Status == model.StatusCompleted {
				s.updateHistory(task.RecordID, database.RecordUpdate{VideoPath: task.Output})
			}
		}
		return task, nil
	})
	return v.(model.VideoTask), err
}

func (s *Service) cached(taskID string) (model.VideoTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.done[taskID]
	return d.task, ok
}

// Evict - ttl 보다 오래된 완료 캐시와 끝나지 않은 레코드 연결 제거
func (s *Service) Evict(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for taskID, d := range s.done {
		if d.storedAt.Before(cutoff) {
			delete(s.done, taskID)
			removed++
		}
	}
	for taskID, link := range s.records {
		if link.createdAt.Before(cutoff) {
			delete(s.records, taskID)
			removed++
		}
	}
	return removed
}

func (s *Service) poll(ctx context.Context, taskID string) (model.VideoTask, error) {
	task := model.VideoTask{TaskID: taskID}

	creds, _ := s.credentials()
	if !creds.Valid() {
		return task, model.NewCredentialError("video credentials are not configured")
	}

	data, err := s.client.GetVideoTask(ctx, creds, taskID)
	if err != nil {
		s.log.Warn().Err(err).Str("task_id", taskID).Msg("⚠️ [Video] poll failed")
		if kling.FailureKind(err) == model.FailureCredentials {
			return task, model.NewCredentialError("video credentials were rejected")
		}
		return task, model.WrapTransient(err, "video poll failed")
	}

	switch strings.ToLower(strings.TrimSpace(data.TaskStatus)) {
	case "succeed", "success":
		return s.download(ctx, task, data)
	case "failed", "error":
		task.Status = model.StatusFailed
		task.Message = data.TaskStatusMsg
		if task.Message == "" {
			task.Message = "video generation failed"
		}
		s.log.Warn().Str("task_id", taskID).Str("message", task.Message).Msg("❌ [Video] task failed")
	case "processing", "submitted", "pending":
		task.Status = model.StatusProcessing
	default:
		task.Status = model.StatusUnknown
		task.Message = data.TaskStatus
	}
	return task, nil
}

// download - 완료된 작업의 첫 번째 비디오를 video_{ms}_{rand}.mp4 로 저장
func (s *Service) download(ctx context.Context, task model.VideoTask, data *kling.VideoTaskData) (model.VideoTask, error) {
	url := data.VideoURL()
	if url == "" {
		task.Status = model.StatusFailed
		task.Message = "vendor reported success without a video"
		return task, nil
	}

	body, err := s.client.Download(ctx, url)
	if err != nil {
		return task, model.WrapTransient(err, "video download failed")
	}
	artifact, err := s.outputs.SaveFile(ctx, "video", ".mp4", body, "video/mp4")
	if err != nil {
		return task, fmt.Errorf("failed to save video: %w", err)
	}

	task.Status = model.StatusCompleted
	task.Output = artifact.PublicURL
	s.log.Info().Str("task_id", task.TaskID).Str("output", artifact.PublicURL).Int("bytes", len(body)).Msg("✅ [Video] video saved")
	return task, nil
}

// WaitForCompletion - 끝날 때까지 폴링 (자동 폴링 워커에서 호출)
func (s *Service) WaitForCompletion(ctx context.Context, taskID, recordID string) (model.VideoTask, error) {
	if recordID != "" {
		s.mu.Lock()
		if _, ok := s.records[taskID]; !ok {
			s.records[taskID] = recordLink{recordID: recordID, createdAt: time.Now()}
		}
		s.mu.Unlock()
	}

	deadline := time.NewTimer(s.pollBudget)
	defer deadline.Stop()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		task, err := s.Poll(ctx, taskID)
		switch {
		case err == nil && task.Terminal():
			return task, nil
		case errors.Is(err, model.ErrCredential):
			return task, err
		case err != nil:
			s.log.Debug().Err(err).Str("task_id", taskID).Msg("[Video] poll error, retrying")
		}

		select {
		case <-ctx.Done():
			return task, ctx.Err()
		case <-deadline.C:
			return task, model.WrapTransient(context.DeadlineExceeded, "video task %s timeout after %s", taskID, s.pollBudget)
		case <-ticker.C:
		}
	}
}

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

func errMessage(err error) string {
	var apiErr *kling.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
