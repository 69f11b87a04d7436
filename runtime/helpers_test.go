package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
)

const testTimeout = time.Second

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

func testMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

// recordingSink keeps every event it was handed, in arrival order.
type recordingSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (s *recordingSink) Consume(_ context.Context, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Events() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.events...)
}

func (s *recordingSink) Named(name event.Name) []event.Event {
	return lo.Filter(s.Events(), func(e event.Event, _ int) bool { return e.Name == name })
}

// deadlineSink refuses delivery once ctx is done, like a full transport queue would.
type deadlineSink struct {
	recordingSink
}

func (s *deadlineSink) Consume(ctx context.Context, e event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.recordingSink.Consume(ctx, e)
}

// fakeMemberships answers membership queries from memory.
// When gate is set, lookups block until it is closed or ctx ends.
type fakeMemberships struct {
	mu         sync.Mutex
	workspaces map[domain.UserID][]string
	channels   map[domain.UserID][]string
	err        error
	gate       chan struct{}
}

func newFakeMemberships() *fakeMemberships {
	return &fakeMemberships{
		workspaces: make(map[domain.UserID][]string),
		channels:   make(map[domain.UserID][]string),
	}
}

func (f *fakeMemberships) grantWorkspace(userID domain.UserID, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workspaces[userID] = append(f.workspaces[userID], ids...)
}

func (f *fakeMemberships) grantChannel(userID domain.UserID, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[userID] = append(f.channels[userID], ids...)
}

func (f *fakeMemberships) wait(ctx context.Context) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeMemberships) WorkspacesOf(ctx context.Context, userID domain.UserID) ([]string, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]string(nil), f.workspaces[userID]...), nil
}

func (f *fakeMemberships) ChannelsOf(ctx context.Context, userID domain.UserID) ([]string, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]string(nil), f.channels[userID]...), nil
}

// fakePresenceStore records the persisted status history per user.
type fakePresenceStore struct {
	mu      sync.Mutex
	history map[domain.UserID][]domain.PresenceStatus
	err     error
}

func newFakePresenceStore() *fakePresenceStore {
	return &fakePresenceStore{history: make(map[domain.UserID][]domain.PresenceStatus)}
}

func (f *fakePresenceStore) SetStatus(_ context.Context, userID domain.UserID, status domain.PresenceStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.history[userID] = append(f.history[userID], status)
	return nil
}

func (f *fakePresenceStore) History(userID domain.UserID) []domain.PresenceStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.PresenceStatus(nil), f.history[userID]...)
}

// tokenTable maps raw tokens to users.
type tokenTable map[string]domain.UserID

func (t tokenTable) Verify(_ context.Context, token string) (domain.UserID, error) {
	userID, ok := t[token]
	if !ok {
		return "", errInvalidToken
	}
	return userID, nil
}

var errInvalidToken = fmtError("token is invalid")

type fmtError string

func (e fmtError) Error() string { return string(e) }
