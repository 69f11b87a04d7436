package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type typingFixture struct {
	directory *RoomDirectory
	tracker   *TypingTracker
	origin    *recordingSink
	watcher   *recordingSink
}

func newTypingFixture(timeout time.Duration) typingFixture {
	directory := newTestDirectory()
	origin := &recordingSink{}
	watcher := &recordingSink{}
	room := domain.ChannelRoom("c1")
	directory.Attach("origin", origin)
	directory.Attach("watcher", watcher)
	directory.Subscribe("origin", room)
	directory.Subscribe("watcher", room)
	return typingFixture{
		directory: directory,
		tracker:   NewTypingTracker(testLogger(), directory, testMetrics(), timeout),
		origin:    origin,
		watcher:   watcher,
	}
}

func TestTypingTracker_DefaultTimeout(t *testing.T) {
	req := require.New(t)
	tracker := NewTypingTracker(testLogger(), newTestDirectory(), testMetrics(), 0)

	req.Equal(3000*time.Millisecond, tracker.timeout)
}

func TestTypingTracker_Start_Broadcasts_Once(t *testing.T) {
	req := require.New(t)
	f := newTypingFixture(time.Minute)
	defer f.tracker.Close()
	ctx := context.Background()

	// When the same user starts typing twice before expiry
	req.True(f.tracker.Start(ctx, "c1", "alice", "Alice", "origin"))
	req.False(f.tracker.Start(ctx, "c1", "alice", "Alice", "origin"))

	// Then other members observe exactly one typing:start
	starts := f.watcher.Named(event.TypingStart)
	req.Len(starts, 1)
	req.Equal(event.TypingStarted{UserID: "alice", UserName: "Alice", ChannelID: "c1"}, starts[0].Payload)

	// And the originating connection observes nothing
	req.Empty(f.origin.Events())

	// And a single timer is live for the pair
	req.Equal(1, f.tracker.timers.Len())
	req.Len(f.tracker.Active("c1"), 1)
}

func TestTypingTracker_Stop(t *testing.T) {
	req := require.New(t)
	f := newTypingFixture(time.Minute)
	ctx := context.Background()
	f.tracker.Start(ctx, "c1", "alice", "Alice", "origin")

	// When the user stops explicitly
	req.True(f.tracker.Stop(ctx, "c1", "alice"))

	// Then typing:stop is broadcast and the timer is gone
	stops := f.watcher.Named(event.TypingStop)
	req.Len(stops, 1)
	req.Equal(event.TypingStopped{UserID: "alice", ChannelID: "c1"}, stops[0].Payload)
	req.Zero(f.tracker.timers.Len())
	req.Empty(f.tracker.Active("c1"))

	// And stopping again is a no-op
	req.False(f.tracker.Stop(ctx, "c1", "alice"))
	req.Len(f.watcher.Named(event.TypingStop), 1)
	req.Empty(f.origin.Events())
}

func TestTypingTracker_Stop_Absent_Is_Noop(t *testing.T) {
	req := require.New(t)
	f := newTypingFixture(time.Minute)

	req.False(f.tracker.Stop(context.Background(), "c1", "bob"))
	req.Empty(f.watcher.Events())
}

func TestTypingTracker_Expiry(t *testing.T) {
	req := require.New(t)
	timeout := 100 * time.Millisecond
	f := newTypingFixture(timeout)

	// Given a user starts typing and then sends nothing
	startedAt := time.Now()
	f.tracker.Start(context.Background(), "c1", "alice", "Alice", "origin")

	// Then exactly one typing:stop shows up, not earlier than the timeout
	req.Eventually(func() bool {
		return len(f.watcher.Named(event.TypingStop)) == 1
	}, testTimeout, 5*time.Millisecond)
	req.GreaterOrEqual(time.Since(startedAt), timeout)

	events := f.watcher.Events()
	req.Len(events, 2)
	req.Equal(event.TypingStart, events[0].Name)
	req.Equal(event.TypingStop, events[1].Name)
	req.Empty(f.tracker.Active("c1"))

	// And nothing else fires later
	time.Sleep(2 * timeout)
	req.Len(f.watcher.Events(), 2)
}

func TestTypingTracker_Refresh_Extends_Deadline(t *testing.T) {
	req := require.New(t)
	timeout := 100 * time.Millisecond
	f := newTypingFixture(timeout)
	ctx := context.Background()

	f.tracker.Start(ctx, "c1", "alice", "Alice", "origin")
	time.Sleep(60 * time.Millisecond)
	refreshedAt := time.Now()
	f.tracker.Start(ctx, "c1", "alice", "Alice", "origin")

	// The first timer was replaced, so no stop before the refreshed deadline
	time.Sleep(60 * time.Millisecond)
	req.Empty(f.watcher.Named(event.TypingStop))

	req.Eventually(func() bool {
		return len(f.watcher.Named(event.TypingStop)) == 1
	}, testTimeout, 5*time.Millisecond)
	req.GreaterOrEqual(time.Since(refreshedAt), timeout)
	req.Len(f.watcher.Named(event.TypingStart), 1)
}

func TestTypingTracker_Pairs_Are_Independent(t *testing.T) {
	req := require.New(t)
	f := newTypingFixture(time.Minute)
	defer f.tracker.Close()
	ctx := context.Background()

	req.True(f.tracker.Start(ctx, "c1", "alice", "Alice", "origin"))
	req.True(f.tracker.Start(ctx, "c1", "bob", "Bob", "watcher"))
	req.True(f.tracker.Start(ctx, "c2", "alice", "Alice", "origin"))

	req.Len(f.tracker.Active("c1"), 2)
	req.Len(f.tracker.Active("c2"), 1)
	req.Equal(3, f.tracker.timers.Len())

	// Bob's own indicator never comes back to his connection
	req.Len(f.watcher.Named(event.TypingStart), 1)
	req.Len(f.origin.Named(event.TypingStart), 1)
}
