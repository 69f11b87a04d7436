// Package gateway exposes the hub over WebSocket.
// A handshake is authenticated before the upgrade; a rejected client gets a plain 401.
package gateway

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/runtime"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Config struct {
	QueueSize       int
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
}

func DefaultConfig() Config {
	return Config{
		QueueSize:       256,
		PingInterval:    25 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		MaxMessageBytes: 64 << 10,
	}
}

type Handler struct {
	log      *slog.Logger
	hub      *runtime.Hub
	config   Config
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
	closing  bool
	active   sync.WaitGroup
}

func NewHandler(log *slog.Logger, hub *runtime.Hub, config Config) *Handler {
	return &Handler{
		log:      log,
		hub:      hub,
		config:   config,
		sessions: make(map[*session]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.hub.Authenticate(r.Context(), auth.BearerToken(r))
	if err != nil {
		h.log.Warn("Handshake rejected", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	h.active.Add(1)
	h.mu.Unlock()
	defer h.active.Done()

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sink := NewConnectionSink(h.config.QueueSize)
	s := &session{handler: h, ws: ws, sink: sink, ctx: ctx, cancel: cancel}
	h.track(s)
	defer h.untrack(s)
	go s.writeLoop()

	conn, err := h.hub.Admit(ctx, userID, sink)
	if err != nil {
		s.close()
		return
	}
	s.conn = conn
	s.readLoop()

	s.close()
	if err := h.hub.Disconnect(context.Background(), conn.ID); err != nil {
		h.log.Debug("Disconnect after close", "connection_id", conn.ID, "error", err)
	}
}

// Shutdown closes every live session and waits until each one has been
// disconnected from the hub, so presence is settled before storage goes away.
// New handshakes are refused with 503 from then on.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	for s := range h.sessions {
		s.close()
	}
	count := len(h.sessions)
	h.mu.Unlock()
	h.log.Info("Closing websocket sessions", "count", count)

	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// track registers s, closing it at once when Shutdown already ran.
func (h *Handler) track(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s] = struct{}{}
	if h.closing {
		s.close()
	}
}

func (h *Handler) untrack(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s)
}

type session struct {
	handler *Handler
	ws      *websocket.Conn
	sink    *ConnectionSink
	conn    domain.Connection
	ctx     context.Context
	cancel  context.CancelFunc
}

func (s *session) close() {
	s.cancel()
	s.sink.Close()
	_ = s.ws.Close()
}

func (s *session) readLoop() {
	cfg := s.handler.config
	s.ws.SetReadLimit(cfg.MaxMessageBytes)
	_ = s.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		messageType, data, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.handler.log.Warn("Read failed", "connection_id", s.conn.ID, "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.handle(data)
	}
}

// handle applies one inbound frame and acknowledges it when it carried an id.
func (s *session) handle(data []byte) {
	var frame event.Frame
	err := json.Unmarshal(data, &frame)
	if err == nil {
		var cmd domain.Command
		cmd, err = event.DecodeCommand(frame)
		if err == nil {
			err = s.handler.hub.Handle(s.ctx, s.conn.ID, cmd)
		}
	}
	if err != nil {
		s.handler.log.Warn("Inbound frame refused", "connection_id", s.conn.ID, "event", frame.Event, "error", err)
	}
	if frame.ID == "" {
		return
	}

	ack := event.Acknowledgement{Success: err == nil}
	if err != nil {
		ack.Error = err.Error()
	}
	payload, encErr := event.EncodeAck(frame.ID, ack)
	if encErr != nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.handler.config.WriteWait)
	defer cancel()
	if sendErr := s.sink.Send(ctx, payload); sendErr != nil {
		s.handler.log.Debug("Ack dropped", "connection_id", s.conn.ID, "error", sendErr)
	}
}

func (s *session) writeLoop() {
	cfg := s.handler.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.sink.Done():
			_ = s.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			_ = s.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-s.sink.Outbound():
			_ = s.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := s.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			_ = s.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		}
	}
}
