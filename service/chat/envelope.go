package chat

import (
	"encoding/json"
	"time"

	"RTChat/tools/errs"
)

// Envelope type tags, as seen on the wire.
const (
	EvConnectionEstablished = "connection_established"
	EvChannelJoined         = "channel_joined"
	EvChannelLeft           = "channel_left"
	EvUserJoined            = "user_joined"
	EvUserLeft              = "user_left"
	EvTypingIndicator       = "typing_indicator"
	EvNewMessage            = "new_message"
	EvMessageEdited         = "message_edited"
	EvMessageDeleted        = "message_deleted"
	EvMessageReaction       = "message_reaction"
	EvMentionNotification   = "mention_notification"
	EvUserStatus            = "user_status"
	EvOnlineUsers           = "online_users"
	EvPong                  = "pong"
	EvError                 = "error"
	EvChannelCreated        = "channel_created"
	EvForceDisconnect       = "force_disconnect"
)

// Envelope is the wire unit for every outbound event. Immutable once
// constructed; BroadcastToRoom works on a copy when it stamps the bridge
// metadata (origin, exclude_user).
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	UserID    string          `json:"user_id,omitempty"`
	Username  string          `json:"username,omitempty"`
	ChannelID string          `json:"channel_id,omitempty"`
	Status    string          `json:"status,omitempty"`
	IsTyping  *bool           `json:"is_typing,omitempty"`
	Users     *[]string       `json:"users,omitempty"`
	MessageID string          `json:"message_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
	Message   string          `json:"message,omitempty"`
	Details   string          `json:"details,omitempty"`

	// Bridge metadata, set only on published copies.
	ExcludeUser string `json:"exclude_user,omitempty"`
	Origin      string `json:"origin,omitempty"`
}

func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func newEnvelope(typ string) Envelope {
	return Envelope{Type: typ, Timestamp: now()}
}

func marshalData(data any) json.RawMessage {
	if data == nil {
		return nil
	}
	if raw, ok := data.(json.RawMessage); ok {
		return raw
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return b
}

func NewConnectionEstablished(userID, username string) Envelope {
	e := newEnvelope(EvConnectionEstablished)
	e.UserID = userID
	e.Username = username
	return e
}

func NewChannelJoined(channelID string) Envelope {
	e := newEnvelope(EvChannelJoined)
	e.ChannelID = channelID
	return e
}

func NewChannelLeft(channelID string) Envelope {
	e := newEnvelope(EvChannelLeft)
	e.ChannelID = channelID
	return e
}

func NewUserJoined(userID, username, channelID string) Envelope {
	e := newEnvelope(EvUserJoined)
	e.UserID = userID
	e.Username = username
	e.ChannelID = channelID
	return e
}

func NewUserLeft(userID, username, channelID string) Envelope {
	e := newEnvelope(EvUserLeft)
	e.UserID = userID
	e.Username = username
	e.ChannelID = channelID
	return e
}

func NewTypingIndicator(userID, username, channelID string, isTyping bool) Envelope {
	e := newEnvelope(EvTypingIndicator)
	e.UserID = userID
	e.Username = username
	e.ChannelID = channelID
	e.IsTyping = &isTyping
	return e
}

func NewUserStatus(userID, status string) Envelope {
	e := newEnvelope(EvUserStatus)
	e.UserID = userID
	e.Status = status
	return e
}

// NewOnlineUsers always carries a users array, "users": [] for an empty or
// unknown channel, so clients never have to probe for the key.
func NewOnlineUsers(channelID string, users []string) Envelope {
	e := newEnvelope(EvOnlineUsers)
	e.ChannelID = channelID
	if users == nil {
		users = []string{}
	}
	e.Users = &users
	return e
}

func NewPong() Envelope { return newEnvelope(EvPong) }

func NewErrorEnvelope(ce *errs.CodeError) Envelope {
	e := newEnvelope(EvError)
	e.ErrorCode = ce.Code
	e.Message = ce.Msg
	e.Details = ce.Detail
	return e
}

func NewNewMessage(channelID string, data any) Envelope {
	e := newEnvelope(EvNewMessage)
	e.ChannelID = channelID
	e.Data = marshalData(data)
	return e
}

func NewMessageEdited(channelID string, data any) Envelope {
	e := newEnvelope(EvMessageEdited)
	e.ChannelID = channelID
	e.Data = marshalData(data)
	return e
}

func NewMessageDeleted(channelID, messageID string) Envelope {
	e := newEnvelope(EvMessageDeleted)
	e.ChannelID = channelID
	e.MessageID = messageID
	return e
}

func NewMessageReaction(channelID, messageID string, data any) Envelope {
	e := newEnvelope(EvMessageReaction)
	e.ChannelID = channelID
	e.MessageID = messageID
	e.Data = marshalData(data)
	return e
}

func NewMentionNotification(data any) Envelope {
	e := newEnvelope(EvMentionNotification)
	e.Data = marshalData(data)
	return e
}

func NewChannelCreated(data any) Envelope {
	e := newEnvelope(EvChannelCreated)
	e.Data = marshalData(data)
	return e
}

func NewForceDisconnect(reason string) Envelope {
	e := newEnvelope(EvForceDisconnect)
	e.Reason = reason
	return e
}
