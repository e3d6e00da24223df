package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"rallynav/pkg/logging"
	"rallynav/pkg/route"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientQueueLen = 64
)

// StreamMessage is one websocket frame.
type StreamMessage struct {
	Type string `json:"type"` // "route", "legs", "position"
	Data any    `json:"data"`
}

type legsUpdate struct {
	Legs  []route.Leg `json:"legs"`
	Count int         `json:"count"`
}

// SnapshotSource provides the full route sent to new subscribers.
type SnapshotSource interface {
	Snapshot() route.Snapshot
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Stream pushes leg and position updates to websocket subscribers.
// It implements route.Notifier and PositionPublisher.
type Stream struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	source  SnapshotSource
}

// NewStream creates a Stream. Attach must be called before clients connect.
func NewStream() *Stream {
	return &Stream{
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
		clients:  make(map[*streamClient]struct{}),
	}
}

// Attach sets the route source. The engine takes the stream as its notifier,
// so the two are wired in two steps.
func (s *Stream) Attach(src SnapshotSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = src
}

// LegsUpdated implements route.Notifier.
func (s *Stream) LegsUpdated(changed []route.Leg, count int) {
	s.broadcast("legs", legsUpdate{Legs: changed, Count: count})
}

// PublishPosition implements PositionPublisher.
func (s *Stream) PublishPosition(p PositionResponse) {
	s.broadcast("position", p)
}

// ClientCount returns the number of connected subscribers.
func (s *Stream) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func encode(typ string, data any) ([]byte, error) {
	return json.Marshal(StreamMessage{Type: typ, Data: data})
}

func (s *Stream) broadcast(typ string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) == 0 {
		return
	}
	msg, err := encode(typ, data)
	if err != nil {
		slog.Error("Failed to encode stream message", "type", typ, "error", err)
		return
	}
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			logging.Trace("Stream client queue full, dropping message", "type", typ)
		}
	}
}

// HandleWS upgrades the connection and streams updates until the client leaves.
// GET /api/ws
func (s *Stream) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		slog.Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := &streamClient{conn: conn, send: make(chan []byte, clientQueueLen)}

	s.mu.Lock()
	src := s.source
	s.mu.Unlock()
	if src != nil {
		if msg, err := encode("route", src.Snapshot()); err == nil {
			c.send <- msg
		}
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	slog.Debug("Stream client connected", "remote", r.RemoteAddr)

	go s.writeLoop(c)
	s.readLoop(c)
}

// readLoop discards client frames and notices when the client goes away.
func (s *Stream) readLoop(c *streamClient) {
	defer s.remove(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Stream) remove(c *streamClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Stream) writeLoop(c *streamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
