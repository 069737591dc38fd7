package worker

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ErrQueueFull - 대기열이 가득 참 (호출자는 busy 로 응답)
var ErrQueueFull = errors.New("worker queue is full")

// ErrPoolStopped - Stop 이후 제출
var ErrPoolStopped = errors.New("worker pool is stopped")

type task struct {
	name string
	fn   func()
}

// Pool - 고정 개수 워커 + 유한 대기열
type Pool struct {
	tasks   chan task
	wg      sync.WaitGroup
	log     zerolog.Logger
	mu      sync.RWMutex
	stopped bool
	active  atomic.Int64
}

// NewPool - size 개 워커를 띄우고 queueSize 만큼 대기열을 둔다
func NewPool(size, queueSize int, log zerolog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Pool{
		tasks: make(chan task, queueSize),
		log:   log.With().Str("module", "worker-pool").Logger(),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.run(i + 1)
	}
	p.log.Info().Int("workers", size).Int("queue", queueSize).Msg("✅ [Pool] started")
	return p
}

// Submit - 블로킹 없이 제출 (가득 차면 ErrQueueFull)
func (p *Pool) Submit(name string, fn func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.tasks <- task{name: name, fn: fn}:
		return nil
	default:
		p.log.Warn().Str("task", name).Msg("⚠️ [Pool] queue full, rejecting")
		return ErrQueueFull
	}
}

// Depth - 대기 중인 작업 수
func (p *Pool) Depth() int {
	return len(p.tasks)
}

// Active - 실행 중인 작업 수
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Stop - 새 제출을 막고 남은 작업을 모두 처리한 뒤 반환
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info().Msg("🛑 [Pool] stopped")
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for t := range p.tasks {
		p.execute(id, t)
	}
}

// execute - 작업 하나 실행 (panic 이 워커를 죽이지 않도록 복구)
func (p *Pool) execute(id int, t task) {
	p.active.Add(1)
	defer p.active.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().
				Int("worker", id).
				Str("task", t.name).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("❌ [Pool] task panicked")
		}
	}()
	t.fn()
}
