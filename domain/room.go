// Package domain contains core concepts of the chat system.
// This file defines rooms, the named groups of connections that share broadcasts.
package domain

import "strings"

type RoomKind string

const (
	WorkspaceKind RoomKind = "workspace"
	ChannelKind   RoomKind = "channel"
)

// RoomID is either "workspace:<id>" or "channel:<id>".
type RoomID string

func WorkspaceRoom(workspaceID string) RoomID {
	return RoomID(string(WorkspaceKind) + ":" + workspaceID)
}

func ChannelRoom(channelID string) RoomID {
	return RoomID(string(ChannelKind) + ":" + channelID)
}

// Kind returns the room family, or an empty kind for a malformed id.
func (r RoomID) Kind() RoomKind {
	kind, _, ok := strings.Cut(string(r), ":")
	if !ok {
		return ""
	}
	switch RoomKind(kind) {
	case WorkspaceKind, ChannelKind:
		return RoomKind(kind)
	}
	return ""
}

// Target returns the workspace or channel id the room is named after.
func (r RoomID) Target() string {
	_, id, _ := strings.Cut(string(r), ":")
	return id
}

func (r RoomID) String() string { return string(r) }
