package tryon

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 키오스크 로컬 화면에서만 접속
		return true
	},
}

type watcher struct {
	send chan Result
}

// statusHub - 세션 상태 변화를 WebSocket 구독자에게 전달
type statusHub struct {
	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
	log      zerolog.Logger
}

func newStatusHub(log zerolog.Logger) *statusHub {
	return &statusHub{
		watchers: make(map[string]map[*watcher]struct{}),
		log:      log,
	}
}

func (h *statusHub) subscribe(sessionID string) *watcher {
	h.mu.Lock()
	defer h.mu.Unlock()

	w := &watcher{send: make(chan Result, 1)}
	if h.watchers[sessionID] == nil {
		h.watchers[sessionID] = make(map[*watcher]struct{})
	}
	h.watchers[sessionID][w] = struct{}{}
	return w
}

func (h *statusHub) unsubscribe(sessionID string, w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.watchers[sessionID]; ok {
		delete(set, w)
		if len(set) == 0 {
			delete(h.watchers, sessionID)
		}
	}
}

// publish - 최종 결과는 한 번만 오므로 전달 후 구독자를 정리
func (h *statusHub) publish(sessionID string, result Result) {
	h.mu.Lock()
	set := h.watchers[sessionID]
	delete(h.watchers, sessionID)
	h.mu.Unlock()

	for w := range set {
		select {
		case w.send <- result:
		default:
		}
	}
	if len(set) > 0 {
		h.log.Debug().Str("session_id", sessionID).Int("watchers", len(set)).Msg("📡 [TryOn] status pushed")
	}
}

// serve - 현재 상태를 보내고, 처리 중이면 최종 결과가 나올 때까지 대기
func (h *statusHub) serve(conn *websocket.Conn, sessionID string, current func() (Result, error)) {
	defer conn.Close()

	w := h.subscribe(sessionID)
	defer h.unsubscribe(sessionID, w)

	result, err := current()
	if err != nil {
		conn.WriteJSON(map[string]string{"status": "error", "message": err.Error()})
		return
	}
	if err := conn.WriteJSON(result); err != nil || result.Terminal() {
		return
	}

	// 클라이언트가 먼저 닫는 경우 감지
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Debug().Err(err).Msg("[TryOn] websocket read error")
				}
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case result := <-w.send:
			conn.WriteJSON(result)
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
			return
		case <-closed:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
