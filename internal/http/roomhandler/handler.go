package roomhandler

import (
	"context"
	"errors"
	"net/http"

	"roomchat/internal/services/history"
	"roomchat/internal/services/rooms"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Presence is the live view of the rooms served by this process.
type Presence interface {
	Members(ctx context.Context, roomID string) ([]string, bool, error)
}

// RoomChecker maps a room's short url or id to its primary id and rejects
// rooms the room service never issued.
type RoomChecker interface {
	Canonical(ctx context.Context, address string) (string, error)
}

type Handler struct {
	presence Presence
	history  history.IHistoryService
	rooms    RoomChecker // nil: the path key is used as is
}

func New(presence Presence, hist history.IHistoryService, checker RoomChecker) *Handler {
	return &Handler{presence: presence, history: hist, rooms: checker}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/rooms/:id/members", h.members)
	r.GET("/rooms/:id/messages", h.messages)
}

// @Summary		Live room members
// @Description	Returns the aliases currently claimed in the room, in join order.
// @Tags			Rooms
// @Param			id	path		string	true	"Room url or ID"	default(abc123)
// @Success		200	{object}	MembersResponse
// @Failure		404	{object}	ErrorResponse
// @Failure		500	{object}	ErrorResponse
// @Router			/rooms/{id}/members [get]
func (h *Handler) members(c *gin.Context) {
	roomID, ok := h.roomID(c)
	if !ok {
		return
	}
	aliases, exists, err := h.presence.Members(c.Request.Context(), roomID)
	if err != nil {
		zap.L().Error("roomhandler.members", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room has no live members"})
		return
	}
	if aliases == nil {
		aliases = []string{}
	}
	c.JSON(http.StatusOK, MembersResponse{RoomID: roomID, Aliases: aliases})
}

// @Summary		Message history
// @Description	Pages persisted messages of a room, newest first.
// @Tags			Rooms
// @Param			id		path		string	true	"Room url or ID"	default(abc123)
// @Param			limit	query		int		false	"Max results (0‑500, 0 = server default)"	minimum(0)	maximum(500)
// @Param			before	query		string	false	"Only messages older than this RFC 3339 timestamp"
// @Success		200		{array}		history.MessageDTO
// @Failure		400		{object}	ErrorResponse
// @Failure		404		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/rooms/{id}/messages [get]
func (h *Handler) messages(c *gin.Context) {
	var q ListMessagesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	roomID, ok := h.roomID(c)
	if !ok {
		return
	}

	out, err := h.history.List(c.Request.Context(), roomID, q.Before, q.Limit)
	if err != nil {
		zap.L().Error("roomhandler.messages", zap.String("room", roomID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// roomID resolves the :id path parameter to the room's primary id. On
// failure the error response is already written.
func (h *Handler) roomID(c *gin.Context) (string, bool) {
	address := c.Param("id")
	if h.rooms == nil {
		return address, true
	}
	id, err := h.rooms.Canonical(c.Request.Context(), address)
	switch {
	case err == nil:
		return id, true
	case errors.Is(err, rooms.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	default:
		zap.L().Error("roomhandler.resolve", zap.String("room", address), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	return "", false
}
