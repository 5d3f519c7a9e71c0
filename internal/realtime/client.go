package realtime

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024

	// 送信バッファ。満杯時のイベントは破棄される。
	sendBufferSize = 16
)

// client は1つのWebSocket接続を表す。
type client struct {
	hub    *Hub
	userID string
	conn   *websocket.Conn
	send   chan Message
}

func newClient(hub *Hub, userID string, conn *websocket.Conn) *client {
	return &client{
		hub:    hub,
		userID: userID,
		conn:   conn,
		send:   make(chan Message, sendBufferSize),
	}
}

// readPump はクライアントからの受信を処理する。
// サーバーからの一方向配信のため受信メッセージは読み捨てるが、
// pong応答の処理と切断検知のために読み取りループは必要。
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump は送信チャネルのメッセージを接続へ書き込み、定期的にpingを送る。
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
