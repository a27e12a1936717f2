package chat

import (
	"context"
	"net/http"
	"time"

	"RTChat/logger"
	"RTChat/tools/errs"
	"RTChat/tools/ids"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const storeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request and runs the connection until the socket
// closes. The token is verified exactly once, here; a failed verification or
// an unresolvable user refuses the connection with a policy close frame.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	userID, err := s.verifier.Verify(c.Query("token"))
	if err != nil {
		logger.Warn("websocket auth failed", zap.Error(err))
		refuse(ws, "authentication failed")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	username, err := s.store.Username(ctx, userID)
	cancel()
	if err != nil {
		logger.Warn("username lookup failed",
			zap.String("user", userID), zap.Error(err))
		refuse(ws, "unknown user")
		return
	}

	client := NewClient(ids.GenerateString(), userID, username, ws,
		s.cfg.SendQueueSize, s.cfg.WriteDeadline)
	s.runConn(client, ws)
}

func refuse(ws *websocket.Conn, reason string) {
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
	_ = ws.Close()
}

// runConn owns the read side of one connection. Teardown runs exactly once,
// whatever makes ReadMessage return.
func (s *Server) runConn(client *Client, ws *websocket.Conn) {
	s.Connect(client)
	defer s.disconnectClient(client)

	s.autoJoin(client)
	s.broadcastUserStatus(client.UserID, "online")
	s.sendDirect(client, NewConnectionEstablished(client.UserID, client.Username))

	for {
		mt, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		s.dispatch(client, raw)
	}
}

// autoJoin restores the user's persisted channel memberships. A store
// failure is logged and the connection proceeds with no memberships.
func (s *Server) autoJoin(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	channels, err := s.store.ListUserChannels(ctx, client.UserID)
	cancel()
	if err != nil {
		logger.Warn("auto-join lookup failed, continuing without memberships",
			zap.String("user", client.UserID), zap.Error(err))
		return
	}
	for _, ch := range channels {
		s.JoinRoom(client.UserID, client.Username, ch)
	}
}

// dispatch handles one inbound frame. A handler panic is contained to the
// frame: the client gets an internal_error envelope and the connection
// stays up.
func (s *Server) dispatch(client *Client, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("frame handler panicked",
				zap.Any("panic", r), zap.String("user", client.UserID))
			s.sendError(client, errs.ErrInternalError)
		}
	}()

	frame, err := ParseFrame(raw)
	if err != nil {
		s.sendError(client, errs.ErrInvalidJSON)
		return
	}

	switch f := frame.(type) {
	case *JoinChannelFrame:
		s.handleJoin(client, f.ChannelID)
	case *LeaveChannelFrame:
		// Always acknowledged, even when the user was not in the room.
		s.LeaveRoom(client.UserID, client.Username, f.ChannelID)
		s.sendDirect(client, NewChannelLeft(f.ChannelID))
	case *TypingIndicatorFrame:
		s.SetTyping(client.UserID, client.Username, f.ChannelID, f.IsTyping)
	case *PingFrame:
		s.sendDirect(client, NewPong())
	case *GetOnlineUsersFrame:
		if f.ChannelID == "" {
			s.sendError(client, errs.ErrMissingChannelID)
			return
		}
		s.sendDirect(client, NewOnlineUsers(f.ChannelID, s.OnlineUsers(f.ChannelID)))
	case *UnknownFrame:
		s.sendError(client, errs.ErrUnknownMessageType.WithDetail(f.Type))
	}
}

func (s *Server) handleJoin(client *Client, channelID string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	ok, err := s.store.IsMember(ctx, client.UserID, channelID)
	cancel()
	if err != nil {
		logger.Error("membership check failed",
			zap.String("user", client.UserID),
			zap.String("channel", channelID), zap.Error(err))
		s.sendError(client, errs.ErrInternalError)
		return
	}
	if !ok {
		s.sendError(client, errs.ErrAccessDenied.WithDetail(channelID))
		return
	}
	s.JoinRoom(client.UserID, client.Username, channelID)
	s.sendDirect(client, NewChannelJoined(channelID))
}

// sendDirect enqueues a per-connection response; it never goes through the
// bridge.
func (s *Server) sendDirect(client *Client, env Envelope) {
	payload, err := env.Encode()
	if err != nil {
		logger.Error("encode envelope failed", zap.Error(err))
		return
	}
	_ = client.Enqueue(payload)
}

func (s *Server) sendError(client *Client, ce *errs.CodeError) {
	s.sendDirect(client, NewErrorEnvelope(ce))
}
