package client

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func message(id, userID, content string, at time.Time) domain.Message {
	return domain.Message{ID: id, ChannelID: "c1", UserID: domain.UserID(userID), Content: content, CreatedAt: at}
}

func ids(messages []domain.Message) []string {
	return lo.Map(messages, func(m domain.Message, _ int) string { return m.ID })
}

func newTestStore(t *testing.T, typingTimeout time.Duration) *Store {
	s := NewStore(slog.Default(), typingTimeout)
	t.Cleanup(s.Close)
	return s
}

func TestStore_ApplyNew_Dedup_By_ID(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t, 0)
	m1 := message("m1", "bob", "hello", t0)

	req.True(s.ApplyNew(m1))
	req.False(s.ApplyNew(m1))

	req.Equal([]string{"m1"}, ids(s.Messages("c1")))
}

func TestStore_ApplyNew_Keeps_Arrival_Order(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t, 0)
	s.Load("c1", []domain.Message{message("m1", "bob", "one", t0)})

	// An older timestamp arriving later is still appended
	s.ApplyNew(message("m3", "bob", "three", t0.Add(2*time.Second)))
	s.ApplyNew(message("m2", "bob", "two", t0.Add(time.Second)))

	req.Equal([]string{"m1", "m3", "m2"}, ids(s.Messages("c1")))
}

func TestStore_ApplyNew_Heuristic_Is_Best_Effort(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t, 0)
	req.True(s.ApplyNew(message("m1", "bob", "hi", t0)))

	// Given another id with the same author, content and instant, the heuristic drops it
	req.False(s.ApplyNew(message("m2", "bob", "hi", t0)))

	// A different instant is a different message
	req.True(s.ApplyNew(message("m3", "bob", "hi", t0.Add(time.Millisecond))))
	req.Equal([]string{"m1", "m3"}, ids(s.Messages("c1")))
}

func TestStore_ApplyUpdated_Replaces_In_Place(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t, 0)
	s.Load("c1", []domain.Message{
		message("m0", "alice", "first", t0),
		message("m1", "bob", "hello", t0.Add(time.Second)),
		message("m2", "alice", "last", t0.Add(2*time.Second)),
	})

	// When message:updated arrives for m1
	updated := message("m1", "bob", "hello, edited", t0.Add(time.Second))
	req.True(s.ApplyUpdated(updated))

	// Then the entry is replaced at its position
	messages := s.Messages("c1")
	req.Len(messages, 3)
	req.Equal([]string{"m0", "m1", "m2"}, ids(messages))
	req.Equal("hello, edited", messages[1].Content)

	// And unknown ids are ignored, never appended
	req.False(s.ApplyUpdated(message("m9", "bob", "ghost", t0)))
	req.Len(s.Messages("c1"), 3)
}

func TestStore_ApplyDeleted(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t, 0)
	m1 := message("m1", "bob", "hello", t0)
	s.ApplyNew(m1)
	s.ApplyNew(message("m2", "bob", "world", t0.Add(time.Second)))

	req.True(s.ApplyDeleted("c1", "m1"))
	req.False(s.ApplyDeleted("c1", "m1"))
	req.Equal([]string{"m2"}, ids(s.Messages("c1")))

	// A late duplicate of a deleted message does not come back
	req.False(s.ApplyNew(m1))
	req.Equal([]string{"m2"}, ids(s.Messages("c1")))
}

func TestStore_LoadMore_Skips_Known_IDs(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t, 0)
	s.Load("c1", []domain.Message{message("m1", "bob", "a", t0), message("m2", "bob", "b", t0)})

	added := s.LoadMore("c1", []domain.Message{message("m2", "bob", "b", t0), message("m0", "bob", "z", t0)})

	req.Equal(1, added)
	req.Equal([]string{"m1", "m2", "m0"}, ids(s.Messages("c1")))
}

func TestStore_Thread_Mirror(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t, 0)
	parent := "m1"
	s.LoadThread(parent, nil)

	reply := message("r1", "alice", "reply", t0)
	reply.ParentID = &parent
	s.ApplyNew(reply)
	s.ApplyNew(reply)

	req.Equal([]string{"r1"}, ids(s.Thread(parent)))
	req.Equal([]string{"r1"}, ids(s.Messages("c1")))

	edited := reply
	edited.Content = "reply, edited"
	s.ApplyUpdated(edited)
	req.Equal("reply, edited", s.Thread(parent)[0].Content)

	s.ApplyDeleted("c1", "r1")
	req.Empty(s.Thread(parent))
}

func TestStore_Thread_Mirror_Skips_Look_Alikes(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t, 0)
	parent := "m1"
	s.LoadThread(parent, nil)

	// Given a reply already shown in the channel
	reply := message("r1", "alice", "reply", t0)
	reply.ParentID = &parent
	req.True(s.ApplyNew(reply))

	// When a look-alike with another id arrives
	twin := message("r2", "alice", "reply", t0)
	twin.ParentID = &parent
	req.False(s.ApplyNew(twin))

	// Then neither the channel nor the thread shows it
	req.Equal([]string{"r1"}, ids(s.Messages("c1")))
	req.Equal([]string{"r1"}, ids(s.Thread(parent)))
}

func TestStore_ApplyChannelCreated_Once(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t, 0)
	channel := domain.Channel{ID: "c2", WorkspaceID: "w1", Name: "random"}

	req.True(s.ApplyChannelCreated(channel))
	req.False(s.ApplyChannelCreated(channel))

	req.Len(s.Channels("w1"), 1)
}

func TestStore_Presence(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t, 0)
	req.Equal(domain.Offline, s.Presence("alice"))

	s.ApplyPresence("alice", domain.Online)

	req.Equal(domain.Online, s.Presence("alice"))
}

func TestStore_Typing_Expires_Locally(t *testing.T) {
	req := require.New(t)
	timeout := 50 * time.Millisecond
	s := newTestStore(t, timeout)

	// Given a typing:start whose typing:stop is lost
	s.ApplyTypingStart("c1", "alice", "Alice")
	req.Equal([]string{"Alice"}, s.Typing("c1"))

	// Then the indicator clears on its own
	req.Eventually(func() bool { return len(s.Typing("c1")) == 0 }, time.Second, 5*time.Millisecond)
}

func TestStore_Typing_Stop_By_User_ID(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t, time.Minute)
	s.ApplyTypingStart("c1", "alice", "Alice")
	s.ApplyTypingStart("c1", "bob", "Bob")
	req.Equal([]string{"Alice", "Bob"}, s.Typing("c1"))

	req.True(s.ApplyTypingStop("c1", "alice"))
	req.False(s.ApplyTypingStop("c1", "alice"))

	req.Equal([]string{"Bob"}, s.Typing("c1"))
}

func TestStore_Typing_Refresh_Rearms(t *testing.T) {
	req := require.New(t)
	timeout := 100 * time.Millisecond
	s := newTestStore(t, timeout)

	s.ApplyTypingStart("c1", "alice", "Alice")
	time.Sleep(60 * time.Millisecond)
	s.ApplyTypingStart("c1", "alice", "Alice")
	time.Sleep(60 * time.Millisecond)

	// Still typing 120ms after the first start because the second re-armed the expiry
	req.Equal([]string{"Alice"}, s.Typing("c1"))
	req.Eventually(func() bool { return len(s.Typing("c1")) == 0 }, time.Second, 5*time.Millisecond)
}

func TestStore_Apply_Frames(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t, time.Minute)
	frame := func(name event.Name, payload any) event.Frame {
		data, err := json.Marshal(payload)
		req.NoError(err)
		return event.Frame{Event: name, Data: data}
	}

	req.NoError(s.Apply(frame(event.MessageNew, message("m1", "bob", "hello", t0))))
	req.NoError(s.Apply(frame(event.MessageUpdated, message("m1", "bob", "hello, edited", t0))))
	req.NoError(s.Apply(frame(event.UserPresence, event.Presence{UserID: "bob", Status: domain.Online})))
	req.NoError(s.Apply(frame(event.TypingStart, event.TypingStarted{UserID: "bob", UserName: "Bob", ChannelID: "c1"})))
	req.NoError(s.Apply(frame(event.ChannelCreated, domain.Channel{ID: "c2", WorkspaceID: "w1"})))
	req.NoError(s.Apply(frame(event.MemberRole, event.RoleChanged{WorkspaceID: "w1", UserID: "bob", Role: domain.RoleAdmin})))

	messages := s.Messages("c1")
	req.Len(messages, 1)
	req.Equal("hello, edited", messages[0].Content)
	req.Equal(domain.Online, s.Presence("bob"))
	req.Equal([]string{"Bob"}, s.Typing("c1"))
	req.Len(s.Channels("w1"), 1)

	req.NoError(s.Apply(frame(event.TypingStop, event.TypingStopped{UserID: "bob", ChannelID: "c1"})))
	req.NoError(s.Apply(frame(event.MessageDeleted, event.MessageRemoved{MessageID: "m1", ChannelID: "c1"})))
	req.Empty(s.Typing("c1"))
	req.Empty(s.Messages("c1"))

	req.ErrorIs(s.Apply(event.Frame{Event: "bogus"}), errors.ErrUnknownEvent)
	req.ErrorIs(s.Apply(event.Frame{Event: event.MessageNew, Data: json.RawMessage(`"nope"`)}), errors.ErrInvalidPayload)
}
