package client

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

// Config drives dialing and reconnection.
// The defaults follow a 1s initial delay, a 5s cap and 5 attempts.
type Config struct {
	URL             string
	Token           string
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxAttempts     uint
	WriteWait       time.Duration
}

func DefaultConfig(url, token string) Config {
	return Config{
		URL:             url,
		Token:           token,
		InitialInterval: time.Second,
		MaxInterval:     5 * time.Second,
		MaxAttempts:     5,
		WriteWait:       10 * time.Second,
	}
}

// Conn is a reconnecting socket feeding a Store.
// Sending a message is not part of it: messages are created through the
// persistence API and come back as message:new like everyone else's.
type Conn struct {
	log     *slog.Logger
	config  Config
	store   *Store
	dialer  *websocket.Dialer
	nextID  atomic.Uint64
	writeMu sync.Mutex
	mu      sync.Mutex
	ws      *websocket.Conn
	pending map[string]chan event.Acknowledgement
}

func NewConn(log *slog.Logger, config Config, store *Store) *Conn {
	return &Conn{
		log:     log,
		config:  config,
		store:   store,
		dialer:  websocket.DefaultDialer,
		pending: make(map[string]chan event.Acknowledgement),
	}
}

// Connect dials with bounded exponential backoff. A 401 is not retried:
// the caller needs a fresh token.
func (c *Conn) Connect(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.config.InitialInterval
	policy.MaxInterval = c.config.MaxInterval

	header := http.Header{"Authorization": {"Bearer " + c.config.Token}}
	attempt, rejected := 0, false
	ws, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
		attempt++
		ws, resp, err := c.dialer.DialContext(ctx, c.config.URL, header)
		if err == nil {
			return ws, nil
		}
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			rejected = true
			return nil, backoff.Permanent(fmt.Errorf("%w: %v", errors.ErrAuthentication, err))
		}
		return nil, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.config.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Warn("Dial failed, retrying", "attempt", attempt, "next", next, "error", err)
		}),
	)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return ctx.Err()
	case rejected:
		return err
	default:
		return fmt.Errorf("%w after %d attempts: %v", errors.ErrReconnectExhausted, attempt, err)
	}

	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
	c.log.Info("Connected", "url", c.config.URL, "attempts", attempt)
	return nil
}

// Run reads frames into the store until ctx ends. A dropped socket is redialed;
// it returns errors.ErrReconnectExhausted once the attempts are used up.
func (c *Conn) Run(ctx context.Context) error {
	for {
		c.mu.Lock()
		ws := c.ws
		c.mu.Unlock()
		if ws == nil {
			if err := c.Connect(ctx); err != nil {
				return err
			}
			continue
		}

		stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
		err := c.readLoop(ws)
		stop()
		c.drop(ws)
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("Connection lost", "error", err)
	}
}

func (c *Conn) readLoop(ws *websocket.Conn) error {
	for {
		var frame event.Frame
		if err := ws.ReadJSON(&frame); err != nil {
			return err
		}
		if frame.Event == event.Ack {
			c.resolve(frame)
			continue
		}
		if err := c.store.Apply(frame); err != nil {
			c.log.Warn("Frame ignored", "event", frame.Event, "error", err)
		}
	}
}

func (c *Conn) drop(ws *websocket.Conn) {
	_ = ws.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == ws {
		c.ws = nil
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Conn) resolve(frame event.Frame) {
	var ack event.Acknowledgement
	if err := json.Unmarshal(frame.Data, &ack); err != nil {
		c.log.Warn("Malformed ack", "id", frame.ID, "error", err)
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[frame.ID]
	delete(c.pending, frame.ID)
	c.mu.Unlock()
	if ok {
		ch <- ack
	}
}

func (c *Conn) JoinChannel(ctx context.Context, channelID string) error {
	return c.request(ctx, event.ChannelJoin, map[string]string{"channelId": channelID})
}

func (c *Conn) LeaveChannel(ctx context.Context, channelID string) error {
	return c.request(ctx, event.ChannelLeave, map[string]string{"channelId": channelID})
}

// StartTyping and StopTyping are fire-and-forget.
func (c *Conn) StartTyping(channelID, userName string) error {
	return c.send(event.TypingStart, "", map[string]string{"channelId": channelID, "userName": userName})
}

func (c *Conn) StopTyping(channelID string) error {
	return c.send(event.TypingStop, "", map[string]string{"channelId": channelID})
}

// request sends a frame with an id and waits for its ack.
func (c *Conn) request(ctx context.Context, name event.Name, data any) error {
	id := strconv.FormatUint(c.nextID.Add(1), 10)
	ch := make(chan event.Acknowledgement, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.send(name, id, data); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return err
	}

	select {
	case ack, ok := <-ch:
		if !ok {
			return fmt.Errorf("%w: connection lost before ack", errors.ErrSinkClosed)
		}
		if !ack.Success {
			return fmt.Errorf("%s refused: %s", name, ack.Error)
		}
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	}
}

func (c *Conn) send(name event.Name, id string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return errors.ErrSinkClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
	return ws.WriteJSON(event.Frame{Event: name, ID: id, Data: payload})
}

func (c *Conn) Close() error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return ws.Close()
}
