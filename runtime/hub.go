// Package runtime holds the realtime core: connection accounting, room
// membership, presence, typing indicators and event fan-out.
// It orchestrates the system without containing transport or storage code.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

type HubConfig struct {
	TypingTimeout    time.Duration
	DeliveryTimeout  time.Duration
	BootstrapTimeout time.Duration
}

// Hub wires the components together and drives the connection lifecycle:
// authenticate, register, bootstrap rooms, announce presence, handle inbound
// commands, and clean up on disconnect.
//
// Mutations for one user are serialized by a per-user lock so concurrent
// connects and disconnects of the same user never leave a stale entry or
// fire a presence transition twice. Different users proceed independently.
type Hub struct {
	log              *slog.Logger
	verifier         contract.TokenVerifier
	memberships      contract.MembershipLookup
	connections      *ConnectionManager
	rooms            *RoomDirectory
	presence         *PresenceTracker
	typing           *TypingTracker
	dispatcher       *Dispatcher
	users            *keyedMutex[domain.UserID]
	validate         *validator.Validate
	metrics          *observability.Metrics
	bootstrapTimeout time.Duration
}

func NewHub(log *slog.Logger, verifier contract.TokenVerifier, memberships contract.MembershipLookup,
	store contract.PresenceStore, metrics *observability.Metrics, config HubConfig) *Hub {
	connections := NewConnectionManager()
	rooms := NewRoomDirectory(log, metrics, config.DeliveryTimeout)
	return &Hub{
		log:              log,
		verifier:         verifier,
		memberships:      memberships,
		connections:      connections,
		rooms:            rooms,
		presence:         NewPresenceTracker(log, connections, memberships, store, rooms, metrics),
		typing:           NewTypingTracker(log, rooms, metrics, config.TypingTimeout),
		dispatcher:       NewDispatcher(log, rooms, connections, metrics),
		users:            newKeyedMutex[domain.UserID](),
		validate:         validator.New(),
		metrics:          metrics,
		bootstrapTimeout: config.BootstrapTimeout,
	}
}

func (h *Hub) Connections() *ConnectionManager { return h.connections }
func (h *Hub) Rooms() *RoomDirectory           { return h.rooms }
func (h *Hub) Presence() *PresenceTracker      { return h.presence }
func (h *Hub) Typing() *TypingTracker          { return h.typing }
func (h *Hub) Dispatcher() *Dispatcher         { return h.dispatcher }

// Connect authenticates token and admits the connection behind sink.
func (h *Hub) Connect(ctx context.Context, token string, sink contract.EventSink) (domain.Connection, error) {
	userID, err := h.Authenticate(ctx, token)
	if err != nil {
		return domain.Connection{}, err
	}
	return h.Admit(ctx, userID, sink)
}

// Authenticate verifies a handshake token. Nothing is registered on failure.
func (h *Hub) Authenticate(ctx context.Context, token string) (domain.UserID, error) {
	if token == "" {
		h.metrics.Rejections.WithLabelValues("authentication").Inc()
		return "", fmt.Errorf("%w: missing token", errors.ErrAuthentication)
	}
	userID, err := h.verifier.Verify(ctx, token)
	if err != nil || userID == "" {
		h.metrics.Rejections.WithLabelValues("authentication").Inc()
		return "", fmt.Errorf("%w: %v", errors.ErrAuthentication, err)
	}
	return userID, nil
}

// Admit registers a connection for an authenticated user, joins its initial
// rooms and announces presence on the user's first connection.
//
// A failed membership lookup keeps the connection with no rooms. If ctx is
// cancelled mid-bootstrap the partial state is unregistered and ctx's error returned.
func (h *Hub) Admit(ctx context.Context, userID domain.UserID, sink contract.EventSink) (domain.Connection, error) {
	unlock := h.users.Lock(userID)
	conn, first := h.connections.Register(userID)
	h.rooms.Attach(conn.ID, sink)
	unlock()
	h.updateGauges()
	h.log.Info("Client connected", "connection_id", conn.ID, "user_id", userID, "first", first)

	if err := h.bootstrap(ctx, conn); err != nil {
		if ctx.Err() != nil {
			_ = h.Disconnect(context.WithoutCancel(ctx), conn.ID)
			return domain.Connection{}, ctx.Err()
		}
		h.metrics.Rejections.WithLabelValues("membership_lookup").Inc()
		h.log.Error("Bootstrap failed, connection kept without rooms",
			"connection_id", conn.ID, "user_id", userID, "error", err)
	}

	unlock = h.users.Lock(userID)
	defer unlock()
	h.reconcile(ctx, userID)
	return conn, nil
}

// bootstrap queries memberships once and joins one room per workspace and channel.
// It is a snapshot: later grants need an explicit join or a reconnect.
func (h *Hub) bootstrap(ctx context.Context, conn domain.Connection) error {
	if h.bootstrapTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.bootstrapTimeout)
		defer cancel()
	}

	var workspaces, channels []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		workspaces, err = h.memberships.WorkspacesOf(gctx, conn.UserID)
		return err
	})
	g.Go(func() error {
		var err error
		channels, err = h.memberships.ChannelsOf(gctx, conn.UserID)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMembershipLookup, err)
	}

	joined := 0
	for _, workspaceID := range workspaces {
		if h.rooms.Subscribe(conn.ID, domain.WorkspaceRoom(workspaceID)) {
			joined++
		}
	}
	for _, channelID := range channels {
		if h.rooms.Subscribe(conn.ID, domain.ChannelRoom(channelID)) {
			joined++
		}
	}
	h.log.Debug("Bootstrap done", "connection_id", conn.ID, "rooms", joined)
	return nil
}

// Disconnect unregisters whatever state exists for the connection. It is safe on
// every path, including mid-bootstrap and repeated calls. Typing entries are
// keyed by user and expire on their own.
func (h *Hub) Disconnect(ctx context.Context, connectionID domain.ConnectionID) error {
	conn, ok := h.connections.Get(connectionID)
	if !ok {
		h.rooms.Detach(connectionID)
		return fmt.Errorf("%w: %s", errors.ErrUnknownConnection, connectionID)
	}

	unlock := h.users.Lock(conn.UserID)
	defer unlock()

	_, last, ok := h.connections.Unregister(connectionID)
	h.rooms.Detach(connectionID)
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrUnknownConnection, connectionID)
	}
	h.updateGauges()
	h.log.Info("Client disconnected", "connection_id", connectionID, "user_id", conn.UserID, "last", last)

	h.reconcile(ctx, conn.UserID)
	return nil
}

// reconcile must run under the user's lock.
func (h *Hub) reconcile(ctx context.Context, userID domain.UserID) {
	status, err := h.presence.Reconcile(ctx, userID)
	if err != nil {
		h.log.Error("Presence transition incomplete", "user_id", userID, "status", status, "error", err)
	}
}

// Handle applies an inbound client command for a connection.
func (h *Hub) Handle(ctx context.Context, connectionID domain.ConnectionID, cmd domain.Command) error {
	conn, ok := h.connections.Get(connectionID)
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrUnknownConnection, connectionID)
	}
	if cmd == nil {
		return fmt.Errorf("%w: nil command", errors.ErrInvalidPayload)
	}
	if err := h.validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}

	switch c := cmd.(type) {
	case domain.JoinChannelCommand:
		h.rooms.Subscribe(connectionID, c.RoomID())
	case domain.LeaveChannelCommand:
		h.rooms.Unsubscribe(connectionID, c.RoomID())
	case domain.StartTypingCommand:
		h.typing.Start(ctx, c.ChannelID, conn.UserID, c.UserName, connectionID)
	case domain.StopTypingCommand:
		h.typing.Stop(ctx, c.ChannelID, conn.UserID)
	default:
		return fmt.Errorf("%w: %T", errors.ErrUnknownEvent, cmd)
	}
	return nil
}

func (h *Hub) updateGauges() {
	connections, users := h.connections.Len()
	h.metrics.ActiveConnections.Set(float64(connections))
	h.metrics.ConnectedUsers.Set(float64(users))
}

// Close stops pending typing timers.
func (h *Hub) Close() {
	h.typing.Close()
}
