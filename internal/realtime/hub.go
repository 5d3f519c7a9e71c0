// Package realtime は記録の変更をWebSocketでユーザーへプッシュ配信する。
package realtime

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/nua/internal/middleware"
)

// Message はWebSocketで配信されるイベントメッセージ。
type Message struct {
	Type    string `json:"type"`
	EntryID string `json:"entry_id"`
}

// Hub はユーザーごとのWebSocket接続を管理し、イベントを配信する。
// 配信はat-most-once: 接続の送信バッファが満杯の場合、そのメッセージは破棄される。
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{} // userID -> 接続集合
	logger  *slog.Logger

	upgrader websocket.Upgrader
}

// NewHub はHubを生成する。
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// オリジン検証はCORSミドルウェアとセッション必須化で担保する
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// PublishEntryEvent は指定ユーザーの全接続へイベントを送信する。
// 未接続ユーザーへの発行は何もしない。送信バッファ満杯の接続はスキップする。
func (h *Hub) PublishEntryEvent(userID, eventType, entryID string) {
	msg := Message{Type: eventType, EntryID: entryID}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("送信バッファが満杯のためイベントを破棄しました",
				slog.String("user_id", userID),
				slog.String("event_type", eventType),
			)
		}
	}
}

// ServeHTTP は認証済みセッション内でWebSocket接続へアップグレードする。
// 未認証の場合は401を返す。
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeはエラーレスポンスを書き込み済み
		h.logger.Warn("WebSocketアップグレードに失敗しました", slog.String("error", err.Error()))
		return
	}

	c := newClient(h, userID, conn)
	h.register(c)

	h.logger.Info("WebSocket接続を確立しました",
		slog.String("user_id", userID),
		slog.Int("connections", h.connectionCount(userID)),
	)

	go c.writePump()
	go c.readPump()
}

// register は接続をユーザーの接続集合へ追加する。
func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
}

// unregister は接続を取り除き、送信チャネルを閉じる。
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
}

// connectionCount は指定ユーザーの現在の接続数を返す。
func (h *Hub) connectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Shutdown は全接続を閉じる。グレースフルシャットダウン用。
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, conns := range h.clients {
		for c := range conns {
			close(c.send)
			_ = c.conn.Close()
		}
		delete(h.clients, userID)
	}
}
