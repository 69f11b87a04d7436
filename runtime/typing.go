package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"chat-relay/scheduler"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
)

const DefaultTypingTimeout = 3000 * time.Millisecond

type typingKey struct {
	channelID string
	userID    domain.UserID
}

type typingState struct {
	entry domain.TypingEntry
	gen   uint64
}

// TypingTracker is the per (channel, user) typing state machine: absent or typing.
//
// Start on an absent pair broadcasts typing:start and arms a timer; Start on a
// typing pair only re-arms it. Stop and timer expiry both broadcast
// typing:stop. The connection that started typing is excluded from both.
type TypingTracker struct {
	log     *slog.Logger
	pubsub  contract.PubSub
	metrics *observability.Metrics
	timeout time.Duration
	now     func() time.Time

	keys    *keyedMutex[typingKey]
	timers  *scheduler.Scheduler[typingKey]
	mu      sync.Mutex
	entries map[typingKey]typingState
	gen     uint64
}

func NewTypingTracker(log *slog.Logger, pubsub contract.PubSub, metrics *observability.Metrics, timeout time.Duration) *TypingTracker {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	return &TypingTracker{
		log:     log,
		pubsub:  pubsub,
		metrics: metrics,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
		keys:    newKeyedMutex[typingKey](),
		timers:  scheduler.New[typingKey](),
		entries: make(map[typingKey]typingState),
	}
}

// Start reports whether typing:start was broadcast.
func (t *TypingTracker) Start(ctx context.Context, channelID string, userID domain.UserID,
	userName string, origin domain.ConnectionID) bool {
	key := typingKey{channelID: channelID, userID: userID}
	unlock := t.keys.Lock(key)
	defer unlock()

	t.mu.Lock()
	current, typing := t.entries[key]
	t.gen++
	gen := t.gen
	entry := domain.TypingEntry{
		ChannelID: channelID,
		UserID:    userID,
		UserName:  userName,
		ExpiresAt: t.now().Add(t.timeout),
		Origin:    origin,
	}
	if typing {
		// A refresh keeps the connection that started it
		entry.Origin = current.entry.Origin
	}
	t.entries[key] = typingState{entry: entry, gen: gen}
	t.metrics.TypingActive.Set(float64(len(t.entries)))
	t.mu.Unlock()

	t.timers.Schedule(key, t.timeout, func() { t.expire(key, gen) })
	if typing {
		return false
	}

	t.pubsub.Publish(ctx, domain.ChannelRoom(channelID),
		event.New(event.TypingStart, event.TypingStarted{
			UserID:    userID,
			UserName:  userName,
			ChannelID: channelID,
		}), origin)
	return true
}

// Stop reports whether typing:stop was broadcast. Stopping an absent pair is a no-op.
func (t *TypingTracker) Stop(ctx context.Context, channelID string, userID domain.UserID) bool {
	key := typingKey{channelID: channelID, userID: userID}
	unlock := t.keys.Lock(key)
	defer unlock()

	t.timers.Cancel(key)
	state, ok := t.remove(key, 0)
	if !ok {
		return false
	}
	t.broadcastStop(ctx, state.entry)
	return true
}

func (t *TypingTracker) expire(key typingKey, gen uint64) {
	unlock := t.keys.Lock(key)
	defer unlock()

	state, ok := t.remove(key, gen)
	if !ok {
		return
	}
	t.log.Debug("Typing expired", "channel_id", key.channelID, "user_id", key.userID)
	t.broadcastStop(context.Background(), state.entry)
}

// remove deletes the entry; a non-zero gen must match the current one.
func (t *TypingTracker) remove(key typingKey, gen uint64) (typingState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.entries[key]
	if !ok || (gen != 0 && state.gen != gen) {
		return typingState{}, false
	}
	delete(t.entries, key)
	t.metrics.TypingActive.Set(float64(len(t.entries)))
	return state, true
}

func (t *TypingTracker) broadcastStop(ctx context.Context, entry domain.TypingEntry) {
	t.pubsub.Publish(ctx, domain.ChannelRoom(entry.ChannelID),
		event.New(event.TypingStop, event.TypingStopped{
			UserID:    entry.UserID,
			ChannelID: entry.ChannelID,
		}), entry.Origin)
}

// Active lists who is typing in a channel.
func (t *TypingTracker) Active(channelID string) []domain.TypingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	entries := lo.Filter(lo.Values(t.entries), func(s typingState, _ int) bool {
		return s.entry.ChannelID == channelID
	})
	return lo.Map(entries, func(s typingState, _ int) domain.TypingEntry {
		return s.entry
	})
}

// Close cancels every pending expiry without broadcasting.
func (t *TypingTracker) Close() {
	t.timers.Stop()
}
