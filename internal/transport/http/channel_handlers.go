package http

import (
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/floatchat/internal/core"
	"github.com/vovakirdan/floatchat/internal/proto"
	"github.com/vovakirdan/floatchat/internal/realtime"
	"github.com/vovakirdan/floatchat/internal/store"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

var channelIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ChannelHandlers provides HTTP handlers for channel subscriptions.
type ChannelHandlers struct {
	hub     *core.Hub
	manager *realtime.Manager
	chatLog store.ChatterStore
	log     *zerolog.Logger
}

// NewChannelHandlers creates a new channel handlers instance.
func NewChannelHandlers(hub *core.Hub, manager *realtime.Manager, chatLog store.ChatterStore, logger *zerolog.Logger) *ChannelHandlers {
	return &ChannelHandlers{
		hub:     hub,
		manager: manager,
		chatLog: chatLog,
		log:     logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ChannelResponse represents a channel subscription in API responses.
type ChannelResponse struct {
	ID      string               `json:"id"`
	State   string               `json:"state"`
	History []proto.EventChatter `json:"history,omitempty"`
}

// ChannelListResponse lists every subscription and the shared transport state.
type ChannelListResponse struct {
	Transport string            `json:"transport"`
	Channels  []ChannelResponse `json:"channels"`
}

// LogLineResponse is a persisted chat line.
type LogLineResponse struct {
	ID        int64          `json:"id"`
	MessageID string         `json:"message_id"`
	User      string         `json:"user"`
	UserType  proto.UserType `json:"user_type,omitempty"`
	Text      string         `json:"text"`
	TS        int64          `json:"ts"`
}

// List handles listing subscriptions.
// GET /api/channels
func (h *ChannelHandlers) List(c *gin.Context) {
	ids := h.manager.Channels()
	resp := ChannelListResponse{
		Transport: h.manager.TransportState().String(),
		Channels:  make([]ChannelResponse, 0, len(ids)),
	}
	for _, id := range ids {
		if cc, ok := h.manager.Lookup(id); ok {
			resp.Channels = append(resp.Channels, ChannelResponse{ID: id, State: cc.State().String()})
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Get handles reading a subscription with its recent chatter.
// GET /api/channels/:id
func (h *ChannelHandlers) Get(c *gin.Context) {
	cc, ok := h.lookup(c)
	if !ok {
		return
	}
	history := cc.History()
	lines := make([]proto.EventChatter, 0, len(history))
	for _, r := range history {
		lines = append(lines, chatterFromRendered(cc.Channel(), r, 0))
	}
	c.JSON(http.StatusOK, ChannelResponse{ID: cc.Channel(), State: cc.State().String(), History: lines})
}

// Connect handles joining a channel, registering it on first use.
// POST /api/channels/:id/connect
func (h *ChannelHandlers) Connect(c *gin.Context) {
	id, ok := channelID(c)
	if !ok {
		return
	}
	cc := h.manager.Client(id, h.hub.Delegate(id))
	cc.Connect()

	h.log.Info().Str("channel", id).Msg("channel connect requested")
	c.JSON(http.StatusAccepted, ChannelResponse{ID: id, State: cc.State().String()})
}

// Disconnect handles leaving a channel.
// POST /api/channels/:id/disconnect
func (h *ChannelHandlers) Disconnect(c *gin.Context) {
	cc, ok := h.lookup(c)
	if !ok {
		return
	}
	cc.Disconnect()

	h.log.Info().Str("channel", cc.Channel()).Msg("channel disconnect requested")
	c.JSON(http.StatusAccepted, ChannelResponse{ID: cc.Channel(), State: cc.State().String()})
}

// Log handles reading the persisted chat log of a channel.
// GET /api/channels/:id/log?limit=
func (h *ChannelHandlers) Log(c *gin.Context) {
	id, ok := channelID(c)
	if !ok {
		return
	}
	if h.chatLog == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "chat log disabled"})
		return
	}

	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxLogLimit {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	rows, err := h.chatLog.ListChatter(c.Request.Context(), id, limit)
	if err != nil {
		h.log.Error().Err(err).Str("channel", id).Msg("failed to list chat log")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]LogLineResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, LogLineResponse{
			ID:        row.ID,
			MessageID: row.MessageID,
			User:      row.Username,
			UserType:  proto.UserType(row.UserType),
			Text:      row.Text,
			TS:        row.CreatedAt.Unix(),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChannelHandlers) lookup(c *gin.Context) (*realtime.ChannelClient, bool) {
	id, ok := channelID(c)
	if !ok {
		return nil, false
	}
	cc, ok := h.manager.Lookup(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not registered"})
		return nil, false
	}
	return cc, true
}

func channelID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !channelIDPattern.MatchString(id) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid channel id"})
		return "", false
	}
	return id, true
}
