package runtime

import (
	"chat-relay/domain"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ConnectionManager tracks live connections per user.
// Its side effects stay local to its own maps: presence and room cleanup
// are separate calls so a failure there never corrupts connection accounting.
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[domain.ConnectionID]domain.Connection
	byUser      map[domain.UserID]set[domain.ConnectionID]
	now         func() time.Time
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[domain.ConnectionID]domain.Connection),
		byUser:      make(map[domain.UserID]set[domain.ConnectionID]),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a connection for userID.
// first reports the 0→1 edge of the user's connection count.
func (m *ConnectionManager) Register(userID domain.UserID) (conn domain.Connection, first bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn = domain.Connection{
		ID:          domain.ConnectionID(uuid.NewString()),
		UserID:      userID,
		ConnectedAt: m.now(),
	}
	m.connections[conn.ID] = conn

	ids, ok := m.byUser[userID]
	if !ok {
		ids = make(set[domain.ConnectionID])
		m.byUser[userID] = ids
	}
	ids[conn.ID] = struct{}{}
	return conn, len(ids) == 1
}

// Unregister removes a connection.
// last reports the 1→0 edge; the user entry is deleted with it to bound memory.
func (m *ConnectionManager) Unregister(connectionID domain.ConnectionID) (conn domain.Connection, last bool, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok = m.connections[connectionID]
	if !ok {
		return domain.Connection{}, false, false
	}
	delete(m.connections, connectionID)

	ids := m.byUser[conn.UserID]
	delete(ids, connectionID)
	if len(ids) == 0 {
		delete(m.byUser, conn.UserID)
		return conn, true, true
	}
	return conn, false, true
}

func (m *ConnectionManager) Get(connectionID domain.ConnectionID) (domain.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.connections[connectionID]
	return conn, ok
}

// ConnectionsOf returns a snapshot of the user's connection ids.
func (m *ConnectionManager) ConnectionsOf(userID domain.UserID) []domain.ConnectionID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Keys(m.byUser[userID])
}

func (m *ConnectionManager) Count(userID domain.UserID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser[userID])
}

// Len returns the number of live connections and connected users.
func (m *ConnectionManager) Len() (connections, users int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections), len(m.byUser)
}
