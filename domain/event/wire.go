package event

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/json"
	"fmt"
)

// Frame is the JSON envelope exchanged over the socket in both directions.
type Frame struct {
	Event Name            `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode serializes an outbound event into a frame.
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Name, err)
	}
	return json.Marshal(Frame{Event: e.Name, Data: data})
}

// EncodeAck answers an inbound frame that carried an id.
func EncodeAck(id string, ack Acknowledgement) ([]byte, error) {
	data, err := json.Marshal(ack)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: Ack, ID: id, Data: data})
}

// DecodeCommand maps an inbound frame to its command.
func DecodeCommand(f Frame) (domain.Command, error) {
	var cmd domain.Command
	var err error
	switch f.Event {
	case ChannelJoin:
		var c domain.JoinChannelCommand
		err = unmarshal(f.Data, &c)
		cmd = c
	case ChannelLeave:
		var c domain.LeaveChannelCommand
		err = unmarshal(f.Data, &c)
		cmd = c
	case TypingStart:
		var c domain.StartTypingCommand
		err = unmarshal(f.Data, &c)
		cmd = c
	case TypingStop:
		var c domain.StopTypingCommand
		err = unmarshal(f.Data, &c)
		cmd = c
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, f.Event)
	}
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

func unmarshal(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty data", errors.ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return nil
}
