package event

import (
	"chat-relay/domain"
	"time"
)

type Name string

// Outbound events, server to client.
const (
	UserPresence   Name = "user:presence"
	ChannelCreated Name = "channel:created"
	MessageNew     Name = "message:new"
	MessageUpdated Name = "message:updated"
	MessageDeleted Name = "message:deleted"
	TypingStart    Name = "typing:start"
	TypingStop     Name = "typing:stop"
	MemberRole     Name = "member:role"
	Ack            Name = "ack"
)

// Inbound events, client to server.
const (
	ChannelJoin  Name = "channel:join"
	ChannelLeave Name = "channel:leave"
)

// Event is built and consumed within a single publish call.
type Event struct {
	Name    Name
	Payload any
	At      time.Time
}

func New(name Name, payload any) Event {
	return Event{Name: name, Payload: payload, At: time.Now().UTC()}
}

type Presence struct {
	UserID domain.UserID         `json:"userId"`
	Status domain.PresenceStatus `json:"status"`
}

type TypingStarted struct {
	UserID    domain.UserID `json:"userId"`
	UserName  string        `json:"userName"`
	ChannelID string        `json:"channelId"`
}

type TypingStopped struct {
	UserID    domain.UserID `json:"userId"`
	ChannelID string        `json:"channelId"`
}

type MessageRemoved struct {
	MessageID string `json:"messageId"`
	ChannelID string `json:"channelId"`
}

type RoleChanged struct {
	WorkspaceID string               `json:"workspaceId"`
	UserID      domain.UserID        `json:"userId"`
	Role        domain.WorkspaceRole `json:"role"`
}

type Acknowledgement struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
