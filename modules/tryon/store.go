package tryon

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quel-hairfit-server/modules/common/model"
)

// ErrSessionNotFound - 알 수 없는(또는 만료된) 세션
var ErrSessionNotFound = errors.New("session not found")

// Result - GetResult 응답
type Result struct {
	Status        string `json:"status"`
	Output        string `json:"output,omitempty"`
	BeforeURL     string `json:"before_url,omitempty"`
	ComparisonURL string `json:"comparison_url,omitempty"`
	Message       string `json:"message,omitempty"`
}

// Terminal - ok / error 이면 더 이상 바뀌지 않음
func (r Result) Terminal() bool {
	return r.Status == model.StatusOK || r.Status == model.StatusError
}

type sessionMeta struct {
	recordID   string
	createdAt  time.Time
	finishedAt time.Time
}

// sessionStore - 세션 테이블 (하나의 mutex 로 모든 읽기/쓰기 보호)
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionMeta
	results  map[string]Result
	errors   map[string]string
	log      zerolog.Logger
	now      func() time.Time

	onTerminal func(sessionID string, result Result)
}

func newSessionStore(log zerolog.Logger) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*sessionMeta),
		results:  make(map[string]Result),
		errors:   make(map[string]string),
		log:      log,
		now:      time.Now,
	}
}

func (s *sessionStore) create(sessionID, recordID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = &sessionMeta{recordID: recordID, createdAt: s.now()}
}

func (s *sessionStore) remove(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	delete(s.results, sessionID)
	delete(s.errors, sessionID)
}

// get - 에러 테이블을 먼저 확인
func (s *sessionStore) get(sessionID string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(sessionID)
}

func (s *sessionStore) lookup(sessionID string) (Result, error) {
	if msg, ok := s.errors[sessionID]; ok {
		return Result{Status: model.StatusError, Message: msg}, nil
	}
	if result, ok := s.results[sessionID]; ok {
		return result, nil
	}
	if _, ok := s.sessions[sessionID]; ok {
		return Result{Status: model.StatusProcessing}, nil
	}
	return Result{}, ErrSessionNotFound
}

func (s *sessionStore) complete(sessionID, output string) bool {
	return s.completeWith(sessionID, Result{Output: output})
}

// completeWith - 결과 이미지와 함께 비교 이미지 등 부가 URL 기록
func (s *sessionStore) completeWith(sessionID string, result Result) bool {
	result.Status = model.StatusOK
	result.Message = ""
	return s.finish(sessionID, func() { s.results[sessionID] = result })
}

func (s *sessionStore) fail(sessionID, message string) bool {
	return s.finish(sessionID, func() { s.errors[sessionID] = message })
}

// finish - 세션당 최종 기록은 한 번만. 이후 기록은 무시하고 로그만 남긴다.
func (s *sessionStore) finish(sessionID string, write func()) bool {
	s.mu.Lock()
	meta, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		s.log.Warn().Str("session_id", sessionID).Msg("⚠️ [TryOn] terminal write for unknown session ignored")
		return false
	}
	if _, done := s.errors[sessionID]; done {
		s.mu.Unlock()
		s.log.Error().Str("session_id", sessionID).Msg("❌ [TryOn] second terminal write ignored")
		return false
	}
	if _, done := s.results[sessionID]; done {
		s.mu.Unlock()
		s.log.Error().Str("session_id", sessionID).Msg("❌ [TryOn] second terminal write ignored")
		return false
	}

	write()
	meta.finishedAt = s.now()
	result, _ := s.lookup(sessionID)
	notify := s.onTerminal
	s.mu.Unlock()

	if notify != nil {
		notify(sessionID, result)
	}
	return true
}

// Stats - 상태별 세션 수
type Stats struct {
	Processing int `json:"processing"`
	OK         int `json:"ok"`
	Error      int `json:"error"`
}

func (s *sessionStore) stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{OK: len(s.results), Error: len(s.errors)}
	st.Processing = len(s.sessions) - st.OK - st.Error
	return st
}

// evict - 완료 후 ttl 이 지난 세션, stuckTTL 이 지나도 끝나지 않은 세션 제거
func (s *sessionStore) evict(ttl, stuckTTL time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, meta := range s.sessions {
		expired := false
		if !meta.finishedAt.IsZero() {
			expired = now.Sub(meta.finishedAt) > ttl
		} else {
			expired = now.Sub(meta.createdAt) > stuckTTL
		}
		if expired {
			delete(s.sessions, id)
			delete(s.results, id)
			delete(s.errors, id)
			removed++
		}
	}
	return removed
}
