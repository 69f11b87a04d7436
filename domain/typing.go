package domain

import "time"

// TypingEntry lives in memory only and is lost on restart.
type TypingEntry struct {
	ChannelID string
	UserID    UserID
	UserName  string
	ExpiresAt time.Time
	// Origin is the connection that started typing; it never receives its own indicator.
	Origin ConnectionID
}
