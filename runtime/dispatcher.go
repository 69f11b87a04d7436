package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"context"
	"log/slog"
)

// Dispatcher is the only notification surface the persistence layer needs.
// Delivery is best effort: connections that are not subscribed at call time
// miss the event and recover through a full re-fetch.
type Dispatcher struct {
	log         *slog.Logger
	router      contract.Router
	connections *ConnectionManager
	metrics     *observability.Metrics
}

func NewDispatcher(log *slog.Logger, router contract.Router, connections *ConnectionManager,
	metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{log: log, router: router, connections: connections, metrics: metrics}
}

func (d *Dispatcher) PublishToChannel(ctx context.Context, channelID string, name event.Name, payload any) int {
	return d.publish(ctx, domain.ChannelRoom(channelID), name, payload)
}

func (d *Dispatcher) PublishToWorkspace(ctx context.Context, workspaceID string, name event.Name, payload any) int {
	return d.publish(ctx, domain.WorkspaceRoom(workspaceID), name, payload)
}

// PublishToUser reaches every live connection of userID, whatever rooms they joined.
func (d *Dispatcher) PublishToUser(ctx context.Context, userID domain.UserID, name event.Name, payload any) int {
	d.metrics.EventsPublished.WithLabelValues(string(name)).Inc()
	ids := d.connections.ConnectionsOf(userID)
	if len(ids) == 0 {
		return 0
	}
	delivered := d.router.Deliver(ctx, ids, event.New(name, payload))
	d.log.Debug("Published to user", "user_id", userID, "event", name, "delivered", delivered)
	return delivered
}

func (d *Dispatcher) publish(ctx context.Context, room domain.RoomID, name event.Name, payload any) int {
	d.metrics.EventsPublished.WithLabelValues(string(name)).Inc()
	delivered := d.router.Publish(ctx, room, event.New(name, payload))
	d.log.Debug("Published to room", "room_id", room, "event", name, "delivered", delivered)
	return delivered
}
