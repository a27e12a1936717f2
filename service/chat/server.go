package chat

import (
	"context"
	"time"

	"RTChat/logger"
	"RTChat/service/broker"
	"RTChat/service/storage"
	"RTChat/tools/safe"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TokenVerifier turns a raw token into a user identity. Consulted exactly
// once, at connection start.
type TokenVerifier interface {
	Verify(token string) (userID string, err error)
}

// VerifierFunc adapts a plain function to TokenVerifier.
type VerifierFunc func(token string) (string, error)

func (f VerifierFunc) Verify(token string) (string, error) { return f(token) }

// Config for the gateway server.
type Config struct {
	GatewayID      string
	TopicPrefix    string
	SendQueueSize  int
	WriteDeadline  time.Duration
	PublishTimeout time.Duration
}

func (c *Config) norm() {
	if c.GatewayID == "" {
		c.GatewayID = "gw-local"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "ws"
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.WriteDeadline <= 0 {
		c.WriteDeadline = 5 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 3 * time.Second
	}
}

// Server owns the per-process fan-out state: session registry, room index,
// presence and typing, plus the bridge to other gateway instances. Its
// SendToUser / BroadcastToRoom / ForceDisconnect methods are the write
// surface exposed to the rest of the system.
type Server struct {
	cfg      Config
	registry *Registry
	rooms    *RoomIndex
	typing   *TypingState
	presence *Presence
	bridge   *Bridge

	store    storage.MembershipStore
	verifier TokenVerifier
	audit    storage.SessionLogger // nil disables auditing
}

func NewServer(cfg Config, store storage.MembershipStore, verifier TokenVerifier, brk broker.Broker, audit storage.SessionLogger) *Server {
	cfg.norm()
	s := &Server{
		cfg:      cfg,
		registry: NewRegistry(),
		rooms:    NewRoomIndex(),
		typing:   NewTypingState(),
		presence: NewPresence(),
		store:    store,
		verifier: verifier,
		audit:    audit,
	}
	s.bridge = newBridge(brk, cfg.TopicPrefix, cfg.GatewayID, cfg.PublishTimeout, s)
	return s
}

func (s *Server) GatewayID() string { return s.cfg.GatewayID }

// Start launches the bridge listener; call once at boot.
func (s *Server) Start(ctx context.Context) error {
	return s.bridge.Start(ctx)
}

// Stop cancels the bridge and force-closes every connection.
func (s *Server) Stop() {
	s.bridge.Stop()
	s.registry.Close()
}

// ===== session lifecycle =====

// Connect registers a client, replacing any prior connection for the same
// user. The replaced connection gets a force_disconnect envelope before its
// close frame, and its later teardown cannot evict this one.
func (s *Server) Connect(c *Client) {
	replaced := s.registry.Attach(c)
	if replaced != nil {
		if payload, err := NewForceDisconnect("session_replaced").Encode(); err == nil {
			_ = replaced.Enqueue(payload)
		}
		replaced.CloseWithCode(websocket.ClosePolicyViolation, "session replaced")
		logger.Info("session replaced",
			zap.String("user", c.UserID), zap.String("old_conn", replaced.ConnID))
	}
	s.presence.Touch(c.UserID)
	s.auditSession(c, "connect")
	logger.Info("user connected",
		zap.String("user", c.UserID), zap.String("conn", c.ConnID))
}

// Disconnect removes the user's live connection and runs full cleanup.
// Idempotent: a second call for an absent user is a no-op.
func (s *Server) Disconnect(userID string) {
	if c, ok := s.registry.Lookup(userID); ok {
		s.disconnectClient(c)
	}
}

// disconnectClient is the single teardown path. Safe to call more than once
// for the same client, and safe for a replaced client whose successor is
// already registered.
func (s *Server) disconnectClient(c *Client) {
	if !s.registry.DetachClient(c) {
		c.Close()
		return
	}
	c.Close()

	// Snapshot-then-remove keeps the offline broadcast set exact: one
	// broadcast per room the user had been a member of.
	channels := s.rooms.RemoveAll(c.UserID)
	s.typing.ClearAll(c.UserID)
	s.presence.Touch(c.UserID)
	for _, ch := range channels {
		s.BroadcastToRoom(ch, NewUserStatus(c.UserID, "offline"), c.UserID)
	}
	s.auditSession(c, "disconnect")
	logger.Info("user disconnected",
		zap.String("user", c.UserID), zap.String("conn", c.ConnID))
}

// ===== delivery =====

// SendToUser delivers locally when the user is connected here and always
// publishes to the per-user topic so other instances can deliver too.
// The return value reports local delivery only.
func (s *Server) SendToUser(userID string, env Envelope) bool {
	env.Origin = s.cfg.GatewayID
	payload, err := env.Encode()
	if err != nil {
		logger.Error("encode envelope failed", zap.Error(err))
		return false
	}
	delivered := false
	if c, ok := s.registry.Lookup(userID); ok {
		delivered = c.Enqueue(payload) == nil
	}
	s.bridge.publish(s.bridge.userTopic(userID), payload)
	return delivered
}

// BroadcastToRoom fans env out to the room's locally-connected members and
// publishes it for the rest of the fleet. An unknown or empty room is a
// silent no-op locally; the publish still happens because other instances
// may hold members.
func (s *Server) BroadcastToRoom(channelID string, env Envelope, excludeUserID string) {
	env.ExcludeUser = excludeUserID
	env.Origin = s.cfg.GatewayID
	payload, err := env.Encode()
	if err != nil {
		logger.Error("encode envelope failed", zap.Error(err))
		return
	}
	s.deliverToRoom(channelID, payload, excludeUserID)
	s.bridge.publish(s.bridge.channelTopic(channelID), payload)
}

func (s *Server) deliverToRoom(channelID string, payload []byte, exclude string) {
	members := s.rooms.Members(channelID)
	if len(members) == 0 {
		return
	}
	clients := make([]*Client, 0, len(members))
	for _, id := range members {
		if c, ok := s.registry.Lookup(id); ok {
			clients = append(clients, c)
		}
	}
	deliverTo(clients, payload, exclude)
}

func (s *Server) deliverToUser(userID string, payload []byte) {
	if c, ok := s.registry.Lookup(userID); ok {
		_ = c.Enqueue(payload)
	}
}

func (s *Server) deliverToAll(payload []byte) {
	deliverTo(s.registry.All(), payload, "")
}

// ===== rooms / typing / presence =====

// JoinRoom is idempotent; only an actual membership change broadcasts
// user_joined, excluding the joiner.
func (s *Server) JoinRoom(userID, username, channelID string) {
	if !s.rooms.Join(userID, channelID) {
		return
	}
	s.BroadcastToRoom(channelID, NewUserJoined(userID, username, channelID), userID)
}

// LeaveRoom clears the user's typing flag for the channel and broadcasts
// user_left on an actual removal; leaving a room you are not in is a no-op.
func (s *Server) LeaveRoom(userID, username, channelID string) {
	s.typing.Clear(userID, channelID)
	if !s.rooms.Leave(userID, channelID) {
		return
	}
	s.BroadcastToRoom(channelID, NewUserLeft(userID, username, channelID), userID)
}

func (s *Server) SetTyping(userID, username, channelID string, isTyping bool) {
	s.typing.Set(userID, channelID, isTyping)
	s.BroadcastToRoom(channelID,
		NewTypingIndicator(userID, username, channelID, isTyping), userID)
}

// OnlineUsers returns this process's view: room members with a live local
// connection.
func (s *Server) OnlineUsers(channelID string) []string {
	return s.registry.FilterOnline(s.rooms.Members(channelID))
}

func (s *Server) IsOnline(userID string) bool {
	_, ok := s.registry.Lookup(userID)
	return ok
}

// PresenceOf reports this instance's presence view: live connection plus the
// last connect/disconnect transition seen here.
func (s *Server) PresenceOf(userID string) (online bool, last time.Time, known bool) {
	online = s.IsOnline(userID)
	last, known = s.presence.LastTransition(userID)
	return online, last, known
}

func (s *Server) broadcastUserStatus(userID, status string) {
	for _, ch := range s.rooms.RoomsOf(userID) {
		s.BroadcastToRoom(ch, NewUserStatus(userID, status), userID)
	}
}

// ===== moderation / producer surface =====

func (s *Server) BroadcastNewMessage(channelID string, data any) {
	s.BroadcastToRoom(channelID, NewNewMessage(channelID, data), "")
}

func (s *Server) BroadcastMessageEdit(channelID string, data any) {
	s.BroadcastToRoom(channelID, NewMessageEdited(channelID, data), "")
}

func (s *Server) BroadcastMessageDeleted(channelID, messageID string) {
	s.BroadcastToRoom(channelID, NewMessageDeleted(channelID, messageID), "")
}

func (s *Server) BroadcastMessageReaction(channelID, messageID string, data any) {
	s.BroadcastToRoom(channelID, NewMessageReaction(channelID, messageID, data), "")
}

func (s *Server) SendMentionNotification(userID string, data any) bool {
	return s.SendToUser(userID, NewMentionNotification(data))
}

// BroadcastChannelCreated goes to every connected user in the fleet via the
// global topic.
func (s *Server) BroadcastChannelCreated(data any) {
	env := NewChannelCreated(data)
	env.Origin = s.cfg.GatewayID
	payload, err := env.Encode()
	if err != nil {
		logger.Error("encode envelope failed", zap.Error(err))
		return
	}
	s.deliverToAll(payload)
	s.bridge.publish(s.bridge.globalTopic(), payload)
}

// ForceDisconnect pushes a force_disconnect envelope to the user (locally
// and fleet-wide), then closes any local connection with a policy close
// code and runs cleanup immediately.
func (s *Server) ForceDisconnect(userID, reason string) {
	if reason == "" {
		reason = "account suspended or banned"
	}
	s.SendToUser(userID, NewForceDisconnect(reason))
	s.forceDisconnectLocal(userID, reason)
}

// forceDisconnectLocal closes the user's local connection, if any. The
// envelope must already sit in the send queue; FIFO ordering delivers it
// before the close frame.
func (s *Server) forceDisconnectLocal(userID, reason string) {
	c, ok := s.registry.Lookup(userID)
	if !ok {
		return
	}
	c.CloseWithCode(websocket.ClosePolicyViolation, reason)
	s.disconnectClient(c)
}

// ===== stats / audit =====

type Stats struct {
	TotalConnections int            `json:"total_connections"`
	TotalChannels    int            `json:"total_channels"`
	UsersByChannel   map[string]int `json:"users_by_channel"`
}

func (s *Server) Stats() Stats {
	counts := s.rooms.Counts()
	return Stats{
		TotalConnections: s.registry.Len(),
		TotalChannels:    len(counts),
		UsersByChannel:   counts,
	}
}

func (s *Server) auditSession(c *Client, event string) {
	if s.audit == nil {
		return
	}
	ev := storage.SessionEvent{
		ConnID:    c.ConnID,
		UserID:    c.UserID,
		GatewayID: s.cfg.GatewayID,
		Event:     event,
		At:        time.Now().UTC(),
	}
	safe.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.audit.LogSession(ctx, ev); err != nil {
			logger.Warn("session audit write failed", zap.Error(err))
		}
	})
}
