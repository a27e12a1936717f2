package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches nothing. Callers must decide
// their own fallback; the store never substitutes placeholder values.
var ErrNotFound = errors.New("storage: not found")

// MembershipStore is the read-only view of the relational chat store the
// gateway consults. Writes happen elsewhere (REST layer), never here.
type MembershipStore interface {
	// ListUserChannels returns the channel IDs the user is a member of.
	ListUserChannels(ctx context.Context, userID string) ([]string, error)

	// IsMember reports whether the user belongs to the channel. A missing
	// channel and a missing membership are indistinguishable on purpose.
	IsMember(ctx context.Context, userID, channelID string) (bool, error)

	// Username resolves the display name for a user ID; ErrNotFound when
	// the user does not exist.
	Username(ctx context.Context, userID string) (string, error)
}

// SessionEvent is one connect/disconnect audit record.
type SessionEvent struct {
	ConnID    string    `bson:"conn_id" json:"conn_id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	GatewayID string    `bson:"gateway_id" json:"gateway_id"`
	Event     string    `bson:"event" json:"event"` // "connect" | "disconnect"
	At        time.Time `bson:"at" json:"at"`
}

// SessionLogger records session lifecycle events, best effort. A nil logger
// is valid and disables auditing.
type SessionLogger interface {
	LogSession(ctx context.Context, ev SessionEvent) error
}
