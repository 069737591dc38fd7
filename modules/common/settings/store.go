package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Store - 설정 파일 하나에 대한 스냅샷 보관소.
// 전역 싱글톤이 아니며 서비스마다 자신의 Store 를 가진다.
type Store struct {
	path string
	log  zerolog.Logger

	mu      sync.RWMutex
	snap    Snapshot
	modTime time.Time
	reloads int
}

// Load - 생성 시점에 한 번 읽음 (파일이 없으면 환경변수/기본값)
func Load(path string, log zerolog.Logger) *Store {
	s := &Store{
		path: path,
		log:  log.With().Str("module", "settings").Logger(),
		snap: fromValues(nil),
	}
	s.ReloadIfChanged()
	return s
}

// Path - 설정 파일 경로
func (s *Store) Path() string {
	return s.path
}

// Current - 현재 스냅샷
func (s *Store) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Reloads - 실제로 파싱이 일어난 횟수
func (s *Store) Reloads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reloads
}

// ReloadIfChanged - mtime 이 앞으로 갔을 때만 다시 읽음.
// 파일이 깨졌거나 읽을 수 없으면 이전 스냅샷을 유지하고 로그만 남긴다.
func (s *Store) ReloadIfChanged() (Snapshot, bool) {
	info, err := os.Stat(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("[Settings] stat failed, keeping previous snapshot")
		}
		return s.Current(), false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mt := info.ModTime()
	if !s.modTime.IsZero() && !mt.After(s.modTime) {
		return s.snap, false
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("[Settings] read failed, keeping previous snapshot")
		return s.snap, false
	}

	// 깨진 파일도 같은 mtime 으로 반복 파싱하지 않도록 기록
	s.modTime = mt

	values, err := parseValues(data)
	if err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("[Settings] malformed settings file, keeping previous snapshot")
		return s.snap, false
	}

	s.snap = fromValues(values)
	s.reloads++
	s.log.Info().
		Str("vendor", s.snap.VendorTryOn).
		Str("gemini_model", s.snap.GeminiModel).
		Str("video_model", s.snap.VideoModel).
		Msg("✅ [Settings] settings reloaded")
	return s.snap, true
}

// Save - 화이트리스트 키만 기존 파일 위에 병합해 저장하고 즉시 반영.
// 빈 문자열 값은 키를 제거한다 (환경변수/기본값으로 되돌림).
func (s *Store) Save(updates map[string]any) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := map[string]any{}
	if data, err := os.ReadFile(s.path); err == nil && len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &current); err != nil {
			return s.snap, fmt.Errorf("existing settings file is malformed: %w", err)
		}
	} else if err != nil && !os.IsNotExist(err) {
		return s.snap, fmt.Errorf("failed to read settings: %w", err)
	}

	merged := make(map[string]any, len(AllowedKeys))
	for k, v := range current {
		if IsAllowed(k) {
			merged[k] = v
		}
	}
	for k, v := range updates {
		if !IsAllowed(k) {
			s.log.Debug().Str("key", k).Msg("[Settings] dropping unknown key")
			continue
		}
		if str, ok := v.(string); ok && strings.TrimSpace(str) == "" {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}

	body, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return s.snap, fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := writeAtomic(s.path, body); err != nil {
		return s.snap, err
	}

	values, err := parseValues(body)
	if err != nil {
		return s.snap, err
	}
	s.snap = fromValues(values)
	s.reloads++
	if info, err := os.Stat(s.path); err == nil {
		s.modTime = info.ModTime()
	}

	s.log.Info().Int("keys", len(merged)).Msg("✅ [Settings] settings saved")
	return s.snap, nil
}

// parseValues - 인식하는 키만 문자열로 변환
func parseValues(data []byte) (map[string]string, error) {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	values := make(map[string]string, len(AllowedKeys))
	for _, key := range AllowedKeys {
		switch v := raw[key].(type) {
		case string:
			values[key] = v
		case float64:
			values[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			values[key] = strconv.FormatBool(v)
		}
	}
	return values, nil
}

func writeAtomic(path string, body []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp settings: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close settings: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace settings: %w", err)
	}
	return nil
}
