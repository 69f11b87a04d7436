package event

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncode_Presence(t *testing.T) {
	req := require.New(t)

	raw, err := Encode(New(UserPresence, Presence{UserID: "u1", Status: domain.Online}))
	req.NoError(err)

	var frame Frame
	req.NoError(json.Unmarshal(raw, &frame))
	req.Equal(UserPresence, frame.Event)
	req.JSONEq(`{"userId":"u1","status":"ONLINE"}`, string(frame.Data))
}

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want domain.Command
	}{
		{"join", `{"event":"channel:join","data":{"channelId":"c1"}}`, domain.JoinChannelCommand{ChannelID: "c1"}},
		{"leave", `{"event":"channel:leave","data":{"channelId":"c1"}}`, domain.LeaveChannelCommand{ChannelID: "c1"}},
		{"typing start", `{"event":"typing:start","data":{"channelId":"c1","userName":"Alice"}}`,
			domain.StartTypingCommand{ChannelID: "c1", UserName: "Alice"}},
		{"typing stop", `{"event":"typing:stop","data":{"channelId":"c1"}}`, domain.StopTypingCommand{ChannelID: "c1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			var frame Frame
			req.NoError(json.Unmarshal([]byte(tt.raw), &frame))

			cmd, err := DecodeCommand(frame)
			req.NoError(err)
			req.Equal(tt.want, cmd)
		})
	}
}

func TestDecodeCommand_Errors(t *testing.T) {
	req := require.New(t)

	_, err := DecodeCommand(Frame{Event: "message:new", Data: json.RawMessage(`{}`)})
	req.ErrorIs(err, errors.ErrUnknownEvent)

	_, err = DecodeCommand(Frame{Event: ChannelJoin})
	req.ErrorIs(err, errors.ErrInvalidPayload)

	_, err = DecodeCommand(Frame{Event: ChannelJoin, Data: json.RawMessage(`"c1"`)})
	req.ErrorIs(err, errors.ErrInvalidPayload)
}

func TestEncodeAck(t *testing.T) {
	req := require.New(t)

	raw, err := EncodeAck("42", Acknowledgement{Success: true})
	req.NoError(err)
	req.JSONEq(`{"event":"ack","id":"42","data":{"success":true}}`, string(raw))
}
