// Package domain contains core concepts of the chat system.
// This file defines live connections and the identifiers the runtime keys on.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

type UserID string

type ConnectionID string

// Connection is one authenticated transport session of a user.
// A user may hold several at once, one per device or tab.
type Connection struct {
	ID          ConnectionID
	UserID      UserID
	ConnectedAt time.Time
}
