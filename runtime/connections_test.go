package runtime

import (
	"chat-relay/domain"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectionManager_Register_FirstEdge(t *testing.T) {
	req := require.New(t)
	manager := NewConnectionManager()
	userID := domain.UserID("alice")

	// When a user opens a first connection
	first, isFirst := manager.Register(userID)

	// Then it is the 0→1 edge
	req.True(isFirst)
	req.NotEmpty(first.ID)
	req.Equal(userID, first.UserID)
	req.False(first.ConnectedAt.IsZero())

	// When the same user opens another device
	second, isFirst := manager.Register(userID)

	// Then no edge is reported
	req.False(isFirst)
	req.NotEqual(first.ID, second.ID)
	req.Equal(2, manager.Count(userID))
	req.ElementsMatch([]domain.ConnectionID{first.ID, second.ID}, manager.ConnectionsOf(userID))
}

func TestConnectionManager_Unregister_LastEdge(t *testing.T) {
	req := require.New(t)
	manager := NewConnectionManager()
	userID := domain.UserID("alice")

	// Given two connections for a user
	first, _ := manager.Register(userID)
	second, _ := manager.Register(userID)

	// When the first one closes
	_, last, ok := manager.Unregister(first.ID)
	req.True(ok)
	req.False(last)
	req.Equal(1, manager.Count(userID))

	// When the second one closes
	conn, last, ok := manager.Unregister(second.ID)
	req.True(ok)
	req.True(last)
	req.Equal(second, conn)

	// Then the user entry is gone
	req.Zero(manager.Count(userID))
	req.Empty(manager.byUser)
	req.Empty(manager.connections)
}

func TestConnectionManager_Unregister_Unknown(t *testing.T) {
	req := require.New(t)
	manager := NewConnectionManager()

	_, last, ok := manager.Unregister("missing")

	req.False(ok)
	req.False(last)
}

func TestConnectionManager_Unregister_Twice(t *testing.T) {
	req := require.New(t)
	manager := NewConnectionManager()
	conn, _ := manager.Register("alice")

	_, last, ok := manager.Unregister(conn.ID)
	req.True(ok)
	req.True(last)

	// A second disconnect for the same id changes nothing
	_, last, ok = manager.Unregister(conn.ID)
	req.False(ok)
	req.False(last)
}

func TestConnectionManager_Len(t *testing.T) {
	req := require.New(t)
	manager := NewConnectionManager()

	manager.Register("alice")
	manager.Register("alice")
	manager.Register("bob")

	connections, users := manager.Len()
	req.Equal(3, connections)
	req.Equal(2, users)
}
