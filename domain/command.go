package domain

// Command is an inbound client intent scoped to a room.
type Command interface {
	RoomID() RoomID
}

type JoinChannelCommand struct {
	ChannelID string `json:"channelId" validate:"required,max=128"`
}

func (c JoinChannelCommand) RoomID() RoomID {
	return ChannelRoom(c.ChannelID)
}

type LeaveChannelCommand struct {
	ChannelID string `json:"channelId" validate:"required,max=128"`
}

func (c LeaveChannelCommand) RoomID() RoomID {
	return ChannelRoom(c.ChannelID)
}

type StartTypingCommand struct {
	ChannelID string `json:"channelId" validate:"required,max=128"`
	UserName  string `json:"userName" validate:"required,max=128"`
}

func (c StartTypingCommand) RoomID() RoomID {
	return ChannelRoom(c.ChannelID)
}

type StopTypingCommand struct {
	ChannelID string `json:"channelId" validate:"required,max=128"`
}

func (c StopTypingCommand) RoomID() RoomID {
	return ChannelRoom(c.ChannelID)
}
