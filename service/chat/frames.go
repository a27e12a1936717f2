package chat

import (
	"encoding/json"

	"RTChat/tools/errs"
)

// Inbound frames form a closed set; the router switches over Frame so a new
// frame kind is a compile-time-visible addition.

type Frame interface{ isFrame() }

type JoinChannelFrame struct {
	ChannelID string `json:"channel_id"`
}

type LeaveChannelFrame struct {
	ChannelID string `json:"channel_id"`
}

type TypingIndicatorFrame struct {
	ChannelID string `json:"channel_id"`
	IsTyping  bool   `json:"is_typing"`
}

type PingFrame struct{}

type GetOnlineUsersFrame struct {
	ChannelID string `json:"channel_id"`
}

// UnknownFrame is valid JSON whose type tag matched nothing.
type UnknownFrame struct {
	Type string `json:"type"`
}

func (*JoinChannelFrame) isFrame()     {}
func (*LeaveChannelFrame) isFrame()    {}
func (*TypingIndicatorFrame) isFrame() {}
func (*PingFrame) isFrame()            {}
func (*GetOnlineUsersFrame) isFrame()  {}
func (*UnknownFrame) isFrame()         {}

// Frame type tags accepted from clients.
const (
	frameJoinChannel     = "join_channel"
	frameLeaveChannel    = "leave_channel"
	frameTypingIndicator = "typing_indicator"
	framePing            = "ping"
	frameGetOnlineUsers  = "get_online_users"
)

// ParseFrame decodes one inbound frame. A decode error means the raw bytes
// were not a valid JSON object; an unrecognized type tag still parses, as an
// UnknownFrame.
func ParseFrame(raw []byte) (Frame, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal frame")
	}

	switch probe.Type {
	case frameJoinChannel:
		f := &JoinChannelFrame{}
		if err := json.Unmarshal(raw, f); err != nil {
			return nil, errs.WrapMsg(err, "unmarshal join_channel")
		}
		return f, nil
	case frameLeaveChannel:
		f := &LeaveChannelFrame{}
		if err := json.Unmarshal(raw, f); err != nil {
			return nil, errs.WrapMsg(err, "unmarshal leave_channel")
		}
		return f, nil
	case frameTypingIndicator:
		f := &TypingIndicatorFrame{}
		if err := json.Unmarshal(raw, f); err != nil {
			return nil, errs.WrapMsg(err, "unmarshal typing_indicator")
		}
		return f, nil
	case framePing:
		return &PingFrame{}, nil
	case frameGetOnlineUsers:
		f := &GetOnlineUsersFrame{}
		if err := json.Unmarshal(raw, f); err != nil {
			return nil, errs.WrapMsg(err, "unmarshal get_online_users")
		}
		return f, nil
	default:
		return &UnknownFrame{Type: probe.Type}, nil
	}
}
