package domain

type PresenceStatus string

const (
	Online  PresenceStatus = "ONLINE"
	Offline PresenceStatus = "OFFLINE"
	// Away is set manually by users and never derived by the runtime.
	Away PresenceStatus = "AWAY"
)

type UserPresenceState struct {
	UserID                UserID
	Status                PresenceStatus
	ActiveConnectionCount int
}

// StatusFromCount derives ONLINE or OFFLINE from a connection count.
func StatusFromCount(count int) PresenceStatus {
	if count > 0 {
		return Online
	}
	return Offline
}
