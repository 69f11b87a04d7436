package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// PresenceTracker announces ONLINE/OFFLINE transitions derived from connection counts.
//
// It remembers the last status it announced per user and only acts when the
// derived status differs, so extra connections opening or closing while the
// count stays above zero never produce an event. Callers serialize calls per
// user (see Hub), which makes each edge fire exactly once.
type PresenceTracker struct {
	log         *slog.Logger
	connections *ConnectionManager
	memberships contract.MembershipLookup
	store       contract.PresenceStore
	pubsub      contract.PubSub
	metrics     *observability.Metrics

	mu        sync.Mutex
	announced map[domain.UserID]domain.PresenceStatus
}

func NewPresenceTracker(log *slog.Logger, connections *ConnectionManager,
	memberships contract.MembershipLookup, store contract.PresenceStore,
	pubsub contract.PubSub, metrics *observability.Metrics) *PresenceTracker {
	return &PresenceTracker{
		log:         log,
		connections: connections,
		memberships: memberships,
		store:       store,
		pubsub:      pubsub,
		metrics:     metrics,
		announced:   make(map[domain.UserID]domain.PresenceStatus),
	}
}

// Status is derived from the live connection count, never cached.
func (p *PresenceTracker) Status(userID domain.UserID) domain.PresenceStatus {
	return domain.StatusFromCount(p.connections.Count(userID))
}

func (p *PresenceTracker) State(userID domain.UserID) domain.UserPresenceState {
	count := p.connections.Count(userID)
	return domain.UserPresenceState{
		UserID:                userID,
		Status:                domain.StatusFromCount(count),
		ActiveConnectionCount: count,
	}
}

// Reconcile announces a transition if the derived status moved away from the
// last announced one. It returns the status it announced, or "" when none.
func (p *PresenceTracker) Reconcile(ctx context.Context, userID domain.UserID) (domain.PresenceStatus, error) {
	status := p.Status(userID)

	p.mu.Lock()
	previous, ok := p.announced[userID]
	if !ok {
		previous = domain.Offline
	}
	if previous == status {
		p.mu.Unlock()
		return "", nil
	}
	if status == domain.Offline {
		delete(p.announced, userID)
	} else {
		p.announced[userID] = status
	}
	p.mu.Unlock()

	return status, p.Transition(ctx, userID, status)
}

// Transition persists status and broadcasts user:presence to every workspace
// room the user belongs to right now. Workspaces are queried fresh to cover
// memberships granted after connect.
//
// A storage failure is reported but does not stop the broadcast.
func (p *PresenceTracker) Transition(ctx context.Context, userID domain.UserID, status domain.PresenceStatus) error {
	p.metrics.PresenceTransitions.WithLabelValues(string(status)).Inc()

	var storeErr error
	if err := p.store.SetStatus(ctx, userID, status); err != nil {
		storeErr = fmt.Errorf("%w: %v", errors.ErrPresenceStore, err)
		p.log.Error("Presence not persisted", "user_id", userID, "status", status, "error", err)
	}

	workspaces, err := p.memberships.WorkspacesOf(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: workspaces of %s: %v", errors.ErrMembershipLookup, userID, err)
	}

	evt := event.New(event.UserPresence, event.Presence{UserID: userID, Status: status})
	for _, workspaceID := range workspaces {
		p.pubsub.Publish(ctx, domain.WorkspaceRoom(workspaceID), evt)
	}
	p.log.Debug("Presence announced", "user_id", userID, "status", status, "workspaces", len(workspaces))
	return storeErr
}
