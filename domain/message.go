// Package domain contains core concepts of the chat system.
// This file defines Message and Channel, owned by the persistence layer.
// The realtime core only relays lifecycle events about them.
package domain

import "time"

// Message is server-authoritative; ID is the only stable identity.
type Message struct {
	ID        string     `json:"id"`
	ChannelID string     `json:"channelId"`
	UserID    UserID     `json:"userId"`
	Content   string     `json:"content"`
	ParentID  *string    `json:"parentId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

func (m Message) IsReply() bool {
	return m.ParentID != nil && *m.ParentID != ""
}

type Channel struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsPrivate   bool      `json:"isPrivate"`
	CreatedByID UserID    `json:"createdById"`
	CreatedAt   time.Time `json:"createdAt"`
}

type WorkspaceRole string

const (
	RoleAdmin  WorkspaceRole = "ADMIN"
	RoleMember WorkspaceRole = "MEMBER"
	RoleGuest  WorkspaceRole = "GUEST"
)
