package transport

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	KindWebSocket = "websocket"

	writeWait            = 5 * time.Second
	maxClientMessageSize = 512
	maxCloseReasonBytes  = 123
)

type clientMessage struct {
	Type string `json:"type"`
}

// WebSocketSink writes frames as text messages. A reader goroutine answers
// {"type":"ping"} with a pong frame and notices when the client closes.
type WebSocketSink struct {
	conn     *websocket.Conn
	pongWait time.Duration

	writeMu   sync.Mutex
	gone      chan struct{}
	goneOnce  sync.Once
	closeOnce sync.Once
}

// NewWebSocketSink takes ownership of conn. The client must answer protocol
// pings (sent with every heartbeat) within pongWait.
func NewWebSocketSink(conn *websocket.Conn, pongWait time.Duration) *WebSocketSink {
	s := &WebSocketSink{
		conn:     conn,
		pongWait: pongWait,
		gone:     make(chan struct{}),
	}
	conn.SetReadLimit(maxClientMessageSize)
	s.extendReadDeadline()
	conn.SetPongHandler(func(string) error {
		s.extendReadDeadline()
		return nil
	})
	go s.readLoop()
	return s
}

func (s *WebSocketSink) Kind() string { return KindWebSocket }

func (s *WebSocketSink) Gone() <-chan struct{} { return s.gone }

func (s *WebSocketSink) WriteFrame(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	if f.Type == heartbeatType {
		return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
	}
	return nil
}

// Close sends a normal close frame carrying reason and closes the connection.
func (s *WebSocketSink) Close(reason string) error {
	var err error
	s.closeOnce.Do(func() {
		if len(reason) > maxCloseReasonBytes {
			reason = reason[:maxCloseReasonBytes]
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		err = s.conn.Close()
		s.markGone()
	})
	return err
}

func (s *WebSocketSink) readLoop() {
	defer s.markGone()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				slog.Debug("WebSocket read failed", "error", err)
			}
			return
		}
		s.extendReadDeadline()

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			if err := s.WriteFrame(pongFrame(time.Now())); err != nil {
				return
			}
		}
	}
}

func (s *WebSocketSink) extendReadDeadline() {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
}

func (s *WebSocketSink) markGone() {
	s.goneOnce.Do(func() { close(s.gone) })
}
