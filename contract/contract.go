//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// TokenVerifier checks a handshake token and returns the identity it carries.
// It may block on an external check.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (domain.UserID, error)
}

// MembershipLookup is the persistence-side view of who belongs where.
type MembershipLookup interface {
	WorkspacesOf(ctx context.Context, userID domain.UserID) ([]string, error)
	ChannelsOf(ctx context.Context, userID domain.UserID) ([]string, error)
}

type PresenceStore interface {
	SetStatus(ctx context.Context, userID domain.UserID, status domain.PresenceStatus) error
}

// EventSink is the delivery end of one connection.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// PubSub is the seam between fan-out and whatever transport holds the connections.
type PubSub interface {
	Subscribe(connectionID domain.ConnectionID, room domain.RoomID) bool
	Unsubscribe(connectionID domain.ConnectionID, room domain.RoomID) bool
	Publish(ctx context.Context, room domain.RoomID, e event.Event, exclude ...domain.ConnectionID) int
}

// Router adds direct delivery to known connections, bypassing rooms.
type Router interface {
	PubSub
	Deliver(ctx context.Context, connectionIDs []domain.ConnectionID, e event.Event) int
}

// Publisher scopes an event to one channel, one workspace or every connection of one user.
type Publisher interface {
	PublishToChannel(ctx context.Context, channelID string, name event.Name, payload any) int
	PublishToWorkspace(ctx context.Context, workspaceID string, name event.Name, payload any) int
	PublishToUser(ctx context.Context, userID domain.UserID, name event.Name, payload any) int
}
