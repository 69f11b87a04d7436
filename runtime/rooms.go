package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
)

var _ contract.Router = (*RoomDirectory)(nil)

// RoomDirectory maps rooms to the connections subscribed to them and owns the
// delivery sink of every attached connection.
//
// A connection must be attached before it can join a room. Detach is the
// disconnect cleanup: it forgets the sink and removes the connection from every
// room, and any later join for that id is ignored. This keeps a bootstrap that
// finishes after a disconnect from leaving stale members behind.
type RoomDirectory struct {
	mu              sync.RWMutex
	sessions        map[domain.ConnectionID]contract.EventSink
	roomMembers     map[domain.RoomID]set[domain.ConnectionID]
	memberOf        map[domain.ConnectionID]set[domain.RoomID]
	order           *keyedMutex[domain.RoomID]
	log             *slog.Logger
	metrics         *observability.Metrics
	deliveryTimeout time.Duration
}

const DefaultDeliveryTimeout = 2 * time.Second

func NewRoomDirectory(log *slog.Logger, metrics *observability.Metrics, deliveryTimeout time.Duration) *RoomDirectory {
	if deliveryTimeout <= 0 {
		deliveryTimeout = DefaultDeliveryTimeout
	}
	return &RoomDirectory{
		sessions:        make(map[domain.ConnectionID]contract.EventSink),
		roomMembers:     make(map[domain.RoomID]set[domain.ConnectionID]),
		memberOf:        make(map[domain.ConnectionID]set[domain.RoomID]),
		order:           newKeyedMutex[domain.RoomID](),
		log:             log,
		metrics:         metrics,
		deliveryTimeout: deliveryTimeout,
	}
}

// Attach registers the sink of a freshly admitted connection.
func (r *RoomDirectory) Attach(connectionID domain.ConnectionID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connectionID] = sink
}

// Detach removes the connection from every room it joined and forgets its sink.
// It returns the rooms the connection was a member of.
func (r *RoomDirectory) Detach(connectionID domain.ConnectionID) []domain.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, connectionID)
	rooms := r.memberOf[connectionID]
	delete(r.memberOf, connectionID)
	for room := range rooms {
		r.removeMember(room, connectionID)
	}
	return lo.Keys(rooms)
}

// Subscribe joins a room. It is idempotent and reports whether membership changed.
// Unknown or detached connections are ignored.
func (r *RoomDirectory) Subscribe(connectionID domain.ConnectionID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, attached := r.sessions[connectionID]; !attached {
		return false
	}
	members, ok := r.roomMembers[room]
	if !ok {
		members = make(set[domain.ConnectionID])
		r.roomMembers[room] = members
	}
	if _, already := members[connectionID]; already {
		return false
	}
	members[connectionID] = struct{}{}

	rooms, ok := r.memberOf[connectionID]
	if !ok {
		rooms = make(set[domain.RoomID])
		r.memberOf[connectionID] = rooms
	}
	rooms[room] = struct{}{}
	return true
}

// Unsubscribe leaves a room. Leaving a room the connection is not in is a no-op.
func (r *RoomDirectory) Unsubscribe(connectionID domain.ConnectionID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.memberOf[connectionID]
	if !ok {
		return false
	}
	if _, member := rooms[room]; !member {
		return false
	}
	delete(rooms, room)
	if len(rooms) == 0 {
		delete(r.memberOf, connectionID)
	}
	r.removeMember(room, connectionID)
	return true
}

// removeMember drops an empty room entirely so the table does not grow forever.
func (r *RoomDirectory) removeMember(room domain.RoomID, connectionID domain.ConnectionID) {
	members, ok := r.roomMembers[room]
	if !ok {
		return
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(r.roomMembers, room)
	}
}

// Publish delivers e once to every connection currently in room, except the
// excluded ones, and returns how many were reached.
//
// Publishes to the same room are serialized, so every member observes them in
// call order. A room with no member is a silent no-op.
func (r *RoomDirectory) Publish(ctx context.Context, room domain.RoomID, e event.Event, exclude ...domain.ConnectionID) int {
	unlock := r.order.Lock(room)
	defer unlock()

	targets := r.sinksForRoom(room, exclude)
	delivered := 0
	for _, t := range targets {
		if r.deliver(ctx, t.id, t.sink, e) {
			delivered++
		}
	}
	return delivered
}

// Deliver sends e straight to the given connections, regardless of rooms.
func (r *RoomDirectory) Deliver(ctx context.Context, connectionIDs []domain.ConnectionID, e event.Event) int {
	delivered := 0
	for _, id := range connectionIDs {
		r.mu.RLock()
		sink, ok := r.sessions[id]
		r.mu.RUnlock()
		if !ok {
			continue
		}
		if r.deliver(ctx, id, sink, e) {
			delivered++
		}
	}
	return delivered
}

type target struct {
	id   domain.ConnectionID
	sink contract.EventSink
}

func (r *RoomDirectory) sinksForRoom(room domain.RoomID, exclude []domain.ConnectionID) []target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[room]
	if !ok {
		return nil
	}
	targets := make([]target, 0, len(members))
	for id := range members {
		if lo.Contains(exclude, id) {
			continue
		}
		if sink, exists := r.sessions[id]; exists {
			targets = append(targets, target{id: id, sink: sink})
		}
	}
	return targets
}

func (r *RoomDirectory) deliver(ctx context.Context, id domain.ConnectionID, sink contract.EventSink, e event.Event) bool {
	deliveryCtx, cancel := context.WithTimeout(ctx, r.deliveryTimeout)
	defer cancel()

	if err := sink.Consume(deliveryCtx, e); err != nil {
		r.log.Warn("Event not delivered",
			"connection_id", id,
			"event", e.Name,
			"error", err)
		r.metrics.Deliveries.WithLabelValues("dropped").Inc()
		return false
	}
	r.metrics.Deliveries.WithLabelValues("delivered").Inc()
	return true
}

// Members returns a snapshot of the connections in room.
func (r *RoomDirectory) Members(room domain.RoomID) []domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.roomMembers[room])
}

// RoomsOf returns a snapshot of the rooms a connection joined.
func (r *RoomDirectory) RoomsOf(connectionID domain.ConnectionID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.memberOf[connectionID])
}

// Sinks returns the sinks of every attached connection, for queue sampling.
func (r *RoomDirectory) Sinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.sessions)
}

func (r *RoomDirectory) IsAttached(connectionID domain.ConnectionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[connectionID]
	return ok
}

// RoomCount returns the number of non-empty rooms.
func (r *RoomDirectory) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roomMembers)
}
