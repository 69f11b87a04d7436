// Package client keeps a local view of channels consistent with the relay's events
// and maintains the socket that feeds it.
package client

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/scheduler"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

const DefaultTypingTimeout = 3000 * time.Millisecond

type set[T comparable] map[T]struct{}

// timeline is an arrival-ordered message list. It is never re-sorted.
type timeline struct {
	messages []domain.Message
	seen     set[string]
}

func newTimeline(messages []domain.Message) *timeline {
	t := &timeline{seen: make(set[string])}
	for _, m := range messages {
		t.append(m)
	}
	return t
}

func (t *timeline) append(m domain.Message) bool {
	if _, ok := t.seen[m.ID]; ok {
		return false
	}
	t.seen[m.ID] = struct{}{}
	t.messages = append(t.messages, m)
	return true
}

// looksDuplicate matches on author, content and creation time.
// Two distinct messages with identical content sent in the same instant collapse.
func (t *timeline) looksDuplicate(m domain.Message) bool {
	return lo.ContainsBy(t.messages, func(existing domain.Message) bool {
		return existing.UserID == m.UserID && existing.Content == m.Content && existing.CreatedAt.Equal(m.CreatedAt)
	})
}

func (t *timeline) replace(m domain.Message) bool {
	_, index, ok := lo.FindIndexOf(t.messages, func(existing domain.Message) bool { return existing.ID == m.ID })
	if !ok {
		return false
	}
	t.messages[index] = m
	return true
}

func (t *timeline) remove(messageID string) bool {
	before := len(t.messages)
	t.messages = lo.Reject(t.messages, func(m domain.Message, _ int) bool { return m.ID == messageID })
	return len(t.messages) != before
}

type typingKey struct {
	channelID string
	userID    domain.UserID
}

type typist struct {
	name string
	gen  uint64
}

// Store is the client-side reconciliation layer.
// Every Apply method is idempotent for a given message id.
type Store struct {
	mu            sync.Mutex
	log           *slog.Logger
	channels      map[string]*timeline
	threads       map[string]*timeline
	workspaces    map[string][]domain.Channel
	presence      map[domain.UserID]domain.PresenceStatus
	typing        map[string]map[domain.UserID]typist
	typingGen     uint64
	timers        *scheduler.Scheduler[typingKey]
	typingTimeout time.Duration
}

func NewStore(log *slog.Logger, typingTimeout time.Duration) *Store {
	if typingTimeout <= 0 {
		typingTimeout = DefaultTypingTimeout
	}
	return &Store{
		log:           log,
		channels:      make(map[string]*timeline),
		threads:       make(map[string]*timeline),
		workspaces:    make(map[string][]domain.Channel),
		presence:      make(map[domain.UserID]domain.PresenceStatus),
		typing:        make(map[string]map[domain.UserID]typist),
		timers:        scheduler.New[typingKey](),
		typingTimeout: typingTimeout,
	}
}

// Load replaces a channel's list with the first fetched page.
func (s *Store) Load(channelID string, messages []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[channelID] = newTimeline(messages)
}

// LoadMore appends a further page, skipping ids already present. It returns how many were added.
func (s *Store) LoadMore(channelID string, messages []domain.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.timeline(channelID)
	return lo.CountBy(messages, func(m domain.Message) bool { return t.append(m) })
}

// LoadThread caches the replies of parentID. Later replies are mirrored into it.
func (s *Store) LoadThread(parentID string, replies []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[parentID] = newTimeline(replies)
}

func (s *Store) timeline(channelID string) *timeline {
	t, ok := s.channels[channelID]
	if !ok {
		t = newTimeline(nil)
		s.channels[channelID] = t
	}
	return t
}

// ApplyNew appends a message:new unless its id is already known or it looks like
// an entry already present. It reports whether the channel list changed.
func (s *Store) ApplyNew(m domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.timeline(m.ChannelID)
	_, known := t.seen[m.ID]
	if !known && t.looksDuplicate(m) {
		s.log.Debug("Dropped look-alike message", "channel_id", m.ChannelID, "message_id", m.ID)
		return false
	}

	if m.IsReply() {
		if thread, ok := s.threads[*m.ParentID]; ok {
			if _, seen := thread.seen[m.ID]; !seen && !thread.looksDuplicate(m) {
				thread.append(m)
			}
		}
	}
	if known {
		return false
	}
	return t.append(m)
}

// ApplyUpdated replaces the entry with the same id in place. Unknown ids are ignored.
func (s *Store) ApplyUpdated(m domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.IsReply() {
		if thread, ok := s.threads[*m.ParentID]; ok {
			thread.replace(m)
		}
	}
	t, ok := s.channels[m.ChannelID]
	if !ok {
		return false
	}
	return t.replace(m)
}

// ApplyDeleted removes the entry. The id stays seen so a late message:new cannot resurrect it.
func (s *Store) ApplyDeleted(channelID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, thread := range s.threads {
		thread.remove(messageID)
	}
	t, ok := s.channels[channelID]
	if !ok {
		return false
	}
	return t.remove(messageID)
}

func (s *Store) ApplyChannelCreated(channel domain.Channel) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.workspaces[channel.WorkspaceID]
	if lo.ContainsBy(existing, func(c domain.Channel) bool { return c.ID == channel.ID }) {
		return false
	}
	s.workspaces[channel.WorkspaceID] = append(existing, channel)
	return true
}

func (s *Store) ApplyPresence(userID domain.UserID, status domain.PresenceStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence[userID] = status
}

// ApplyTypingStart adds the user and arms a local expiry, so a lost typing:stop
// cannot leave the indicator on. A repeated start re-arms it.
func (s *Store) ApplyTypingStart(channelID string, userID domain.UserID, userName string) {
	key := typingKey{channelID: channelID, userID: userID}
	s.mu.Lock()
	defer s.mu.Unlock()
	users, ok := s.typing[channelID]
	if !ok {
		users = make(map[domain.UserID]typist)
		s.typing[channelID] = users
	}
	s.typingGen++
	gen := s.typingGen
	users[userID] = typist{name: userName, gen: gen}
	s.timers.Schedule(key, s.typingTimeout, func() { s.clearTyping(key, gen) })
}

func (s *Store) ApplyTypingStop(channelID string, userID domain.UserID) bool {
	key := typingKey{channelID: channelID, userID: userID}
	s.timers.Cancel(key)
	return s.clearTyping(key, 0)
}

// clearTyping removes the entry. A non-zero gen only removes the start that armed it.
func (s *Store) clearTyping(key typingKey, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, ok := s.typing[key.channelID]
	if !ok {
		return false
	}
	current, ok := users[key.userID]
	if !ok || (gen != 0 && current.gen != gen) {
		return false
	}
	delete(users, key.userID)
	if len(users) == 0 {
		delete(s.typing, key.channelID)
	}
	return true
}

// Apply decodes an outbound frame and routes it to the matching Apply method.
func (s *Store) Apply(frame event.Frame) error {
	switch frame.Event {
	case event.MessageNew:
		return decodeInto(frame, func(m domain.Message) { s.ApplyNew(m) })
	case event.MessageUpdated:
		return decodeInto(frame, func(m domain.Message) { s.ApplyUpdated(m) })
	case event.MessageDeleted:
		return decodeInto(frame, func(p event.MessageRemoved) { s.ApplyDeleted(p.ChannelID, p.MessageID) })
	case event.ChannelCreated:
		return decodeInto(frame, func(c domain.Channel) { s.ApplyChannelCreated(c) })
	case event.UserPresence:
		return decodeInto(frame, func(p event.Presence) { s.ApplyPresence(p.UserID, p.Status) })
	case event.TypingStart:
		return decodeInto(frame, func(p event.TypingStarted) { s.ApplyTypingStart(p.ChannelID, p.UserID, p.UserName) })
	case event.TypingStop:
		return decodeInto(frame, func(p event.TypingStopped) { s.ApplyTypingStop(p.ChannelID, p.UserID) })
	case event.MemberRole, event.Ack:
		return nil
	default:
		return fmt.Errorf("%w: %q", errors.ErrUnknownEvent, frame.Event)
	}
}

func decodeInto[T any](frame event.Frame, apply func(T)) error {
	var payload T
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		return fmt.Errorf("%w: %s: %v", errors.ErrInvalidPayload, frame.Event, err)
	}
	apply(payload)
	return nil
}

// Messages returns a copy of the channel list in arrival order.
func (s *Store) Messages(channelID string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.channels[channelID]
	if !ok {
		return nil
	}
	return append([]domain.Message(nil), t.messages...)
}

func (s *Store) Thread(parentID string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[parentID]
	if !ok {
		return nil
	}
	return append([]domain.Message(nil), t.messages...)
}

func (s *Store) Channels(workspaceID string) []domain.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Channel(nil), s.workspaces[workspaceID]...)
}

// Presence returns the last announced status, OFFLINE when nothing was heard.
func (s *Store) Presence(userID domain.UserID) domain.PresenceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.presence[userID]
	if !ok {
		return domain.Offline
	}
	return status
}

// Typing returns the names of users currently typing in channelID, sorted.
func (s *Store) Typing(channelID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := lo.MapToSlice(s.typing[channelID], func(_ domain.UserID, t typist) string { return t.name })
	sort.Strings(names)
	return names
}

func (s *Store) Close() {
	s.timers.Stop()
}
