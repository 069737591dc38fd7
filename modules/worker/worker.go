package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"quel-hairfit-server/modules/common/model"
)

// VideoPollQueue - 비디오 자동 폴링 대기열
const VideoPollQueue = "jobs:video:poll"

// DefaultPollConcurrency - 동시에 폴링하는 비디오 작업 수
const DefaultPollConcurrency = 4

// VideoJob - 대기열 payload
type VideoJob struct {
	TaskID   string `json:"task_id"`
	RecordID string `json:"record_id,omitempty"`
}

// VideoPoller - 작업이 끝날 때까지 폴링하고 이력에 결과를 붙인다
type VideoPoller interface {
	WaitForCompletion(ctx context.Context, taskID, recordID string) (model.VideoTask, error)
}

// Dispatcher - Redis 대기열을 감시하며 비디오 작업을 끝까지 폴링
type Dispatcher struct {
	rdb    *redis.Client
	poller VideoPoller
	sem    chan struct{}
	log    zerolog.Logger
}

// NewDispatcher - rdb 가 nil 이면 nil 반환 (Redis 비활성). concurrency 가 0 이하면 기본값.
func NewDispatcher(rdb *redis.Client, poller VideoPoller, concurrency int, log zerolog.Logger) *Dispatcher {
	if rdb == nil {
		return nil
	}
	return newDispatcher(rdb, poller, concurrency, log)
}

func newDispatcher(rdb *redis.Client, poller VideoPoller, concurrency int, log zerolog.Logger) *Dispatcher {
	if concurrency <= 0 {
		concurrency = DefaultPollConcurrency
	}
	return &Dispatcher{
		rdb:    rdb,
		poller: poller,
		sem:    make(chan struct{}, concurrency),
		log:    log.With().Str("module", "video-worker").Logger(),
	}
}

// Enqueue - LPUSH (비디오 생성 요청 직후 호출)
func (d *Dispatcher) Enqueue(ctx context.Context, taskID, recordID string) error {
	payload, err := json.Marshal(VideoJob{TaskID: taskID, RecordID: recordID})
	if err != nil {
		return err
	}
	if err := d.rdb.LPush(ctx, VideoPollQueue, payload).Err(); err != nil {
		return fmt.Errorf("redis LPUSH failed: %w", err)
	}
	d.log.Info().Str("task_id", taskID).Msg("📥 [VideoWorker] task enqueued")
	return nil
}

// Run - ctx 가 취소될 때까지 BRPOP 루프
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.Info().Str("queue", VideoPollQueue).Msg("👀 [VideoWorker] watching queue")

	for {
		if ctx.Err() != nil {
			d.log.Info().Msg("🛑 [VideoWorker] stopped")
			return
		}

		// 타임아웃을 두어 종료 신호를 확인할 수 있게 함
		result, err := d.rdb.BRPop(ctx, 5*time.Second, VideoPollQueue).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			d.log.Error().Err(err).Msg("❌ [VideoWorker] Redis BRPOP error")
			time.Sleep(5 * time.Second)
			continue
		}

		// result[0] 은 큐 이름, result[1] 이 payload
		d.dispatch(ctx, result[1])
	}
}

// dispatch - 빈 슬롯이 생길 때까지 대기 후 폴링 고루틴 시작. 슬롯이 없으면 작업은 Redis 에 남는다.
func (d *Dispatcher) dispatch(ctx context.Context, payload string) bool {
	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		// 꺼낸 작업은 다음 기동 때 다시 처리되도록 되돌림
		d.requeue(payload)
		return false
	}

	go func() {
		defer func() { <-d.sem }()
		d.handle(ctx, payload)
	}()
	return true
}

func (d *Dispatcher) requeue(payload string) {
	if d.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := d.rdb.RPush(ctx, VideoPollQueue, payload).Err(); err != nil {
		d.log.Warn().Err(err).Str("payload", payload).Msg("⚠️ [VideoWorker] requeue failed")
	}
}

func (d *Dispatcher) handle(ctx context.Context, payload string) {
	job, err := decodeJob(payload)
	if err != nil {
		d.log.Error().Err(err).Str("payload", payload).Msg("❌ [VideoWorker] invalid payload")
		return
	}

	d.log.Info().Str("task_id", job.TaskID).Msg("🎯 [VideoWorker] polling task")
	task, err := d.poller.WaitForCompletion(ctx, job.TaskID, job.RecordID)
	if err != nil {
		d.log.Error().Err(err).Str("task_id", job.TaskID).Msg("❌ [VideoWorker] polling ended with error")
		return
	}
	d.log.Info().Str("task_id", job.TaskID).Str("status", task.Status).Msg("✅ [VideoWorker] task finished")
}

// decodeJob - JSON payload, 또는 task_id 문자열만 들어온 경우도 허용
func decodeJob(payload string) (VideoJob, error) {
	var job VideoJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		job = VideoJob{TaskID: payload}
	}
	if job.TaskID == "" {
		return VideoJob{}, errors.New("task_id is empty")
	}
	return job, nil
}
