package admin

import (
	"net/http"

	"RTChat/service/chat"
	"RTChat/tools/decode"

	"github.com/gin-gonic/gin"
)

// Handler is the REST producer surface the message service and moderation
// tooling call into. Every endpoint turns a request into gateway fan-out;
// nothing here persists anything.
type Handler struct {
	srv *chat.Server
}

func NewHandler(srv *chat.Server) *Handler { return &Handler{srv: srv} }

func (h *Handler) Register(g *gin.RouterGroup) {
	g.POST("/messages", h.newMessage)
	g.POST("/messages/edited", h.messageEdited)
	g.POST("/messages/deleted", h.messageDeleted)
	g.POST("/messages/reaction", h.messageReaction)
	g.POST("/mentions", h.mention)
	g.POST("/channels/created", h.channelCreated)
	g.POST("/force-disconnect", h.forceDisconnect)
	g.GET("/stats", h.stats)
	g.GET("/presence/:user_id", h.presence)
}

type messageReq struct {
	ChannelID string         `json:"channel_id"`
	MessageID string         `json:"message_id"`
	Data      map[string]any `json:"data"`
}

type mentionReq struct {
	UserID string         `json:"user_id"`
	Data   map[string]any `json:"data"`
}

type channelCreatedReq struct {
	Data map[string]any `json:"data"`
}

type forceDisconnectReq struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// bind reads the JSON body as a loose map and decodes it into T, so numeric
// and stringified fields from heterogeneous producers still land.
func bind[T any](c *gin.Context) (*T, bool) {
	var m map[string]any
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return nil, false
	}
	req, err := decode.DecodeMap[T](m)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return req, true
}

func (h *Handler) newMessage(c *gin.Context) {
	req, ok := bind[messageReq](c)
	if !ok {
		return
	}
	if req.ChannelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel_id is required"})
		return
	}
	h.srv.BroadcastNewMessage(req.ChannelID, req.Data)
	c.JSON(http.StatusAccepted, gin.H{"status": "broadcast"})
}

func (h *Handler) messageEdited(c *gin.Context) {
	req, ok := bind[messageReq](c)
	if !ok {
		return
	}
	if req.ChannelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel_id is required"})
		return
	}
	h.srv.BroadcastMessageEdit(req.ChannelID, req.Data)
	c.JSON(http.StatusAccepted, gin.H{"status": "broadcast"})
}

func (h *Handler) messageDeleted(c *gin.Context) {
	req, ok := bind[messageReq](c)
	if !ok {
		return
	}
	if req.ChannelID == "" || req.MessageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel_id and message_id are required"})
		return
	}
	h.srv.BroadcastMessageDeleted(req.ChannelID, req.MessageID)
	c.JSON(http.StatusAccepted, gin.H{"status": "broadcast"})
}

func (h *Handler) messageReaction(c *gin.Context) {
	req, ok := bind[messageReq](c)
	if !ok {
		return
	}
	if req.ChannelID == "" || req.MessageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel_id and message_id are required"})
		return
	}
	h.srv.BroadcastMessageReaction(req.ChannelID, req.MessageID, req.Data)
	c.JSON(http.StatusAccepted, gin.H{"status": "broadcast"})
}

func (h *Handler) mention(c *gin.Context) {
	req, ok := bind[mentionReq](c)
	if !ok {
		return
	}
	if req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	delivered := h.srv.SendMentionNotification(req.UserID, req.Data)
	c.JSON(http.StatusAccepted, gin.H{"status": "sent", "delivered_locally": delivered})
}

func (h *Handler) channelCreated(c *gin.Context) {
	req, ok := bind[channelCreatedReq](c)
	if !ok {
		return
	}
	h.srv.BroadcastChannelCreated(req.Data)
	c.JSON(http.StatusAccepted, gin.H{"status": "broadcast"})
}

func (h *Handler) forceDisconnect(c *gin.Context) {
	req, ok := bind[forceDisconnectReq](c)
	if !ok {
		return
	}
	if req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	h.srv.ForceDisconnect(req.UserID, req.Reason)
	c.JSON(http.StatusAccepted, gin.H{"status": "disconnected"})
}

func (h *Handler) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.srv.Stats())
}

func (h *Handler) presence(c *gin.Context) {
	userID := c.Param("user_id")
	online, last, known := h.srv.PresenceOf(userID)
	resp := gin.H{"user_id": userID, "online": online}
	if known {
		resp["last_transition"] = last
	}
	c.JSON(http.StatusOK, resp)
}
