package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jiye888/chat/internal/core"
	"github.com/jiye888/chat/internal/service/rooms"
)

// RoomHandlers serves room lifecycle and membership endpoints. Successful
// membership changes are pushed to the realtime hub so open viewers hear
// about them.
type RoomHandlers struct {
	rooms *rooms.Service
	hub   *core.Hub
	log   *zerolog.Logger
}

// NewRoomHandlers builds the room handler set.
func NewRoomHandlers(roomsSvc *rooms.Service, hub *core.Hub, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{rooms: roomsSvc, hub: hub, log: logger}
}

type createRoomRequest struct {
	Name string `json:"name"`
}

type roomResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	AdminID int64  `json:"admin_id"`
}

type summaryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AdminID     int64  `json:"admin_id"`
	LastMessage string `json:"last_message"`
	Unread      bool   `json:"unread"`
}

type inviteRequest struct {
	MemberIDs []int64 `json:"member_ids"`
}

type transferAdminRequest struct {
	MemberID int64 `json:"member_id"`
}

type renameRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/rooms.
func (h *RoomHandlers) Create(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.KindInvalidInput.Code()})
		return
	}

	room, err := h.rooms.Create(c.Request.Context(), memberID(c), req.Name)
	if err != nil {
		writeCoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, roomResponse{ID: room.ID, Name: room.Name, AdminID: room.AdminID})
}

// List handles GET /api/rooms.
func (h *RoomHandlers) List(c *gin.Context) {
	summaries, err := h.rooms.List(c.Request.Context(), memberID(c))
	if err != nil {
		writeCoreError(c, err)
		return
	}

	resp := make([]summaryResponse, 0, len(summaries))
	for _, s := range summaries {
		resp = append(resp, summaryResponse{
			ID:          s.ID,
			Name:        s.Name,
			AdminID:     s.AdminID,
			LastMessage: s.LastMessage,
			Unread:      s.Unread,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// Invite handles POST /api/rooms/:id/invite.
func (h *RoomHandlers) Invite(c *gin.Context) {
	roomID := c.Param("id")

	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.KindInvalidInput.Code()})
		return
	}

	messages, err := h.rooms.Invite(c.Request.Context(), roomID, memberID(c), req.MemberIDs)
	if err != nil {
		writeCoreError(c, err)
		return
	}

	h.hub.NotifyInvite(roomID, messages)
	c.JSON(http.StatusOK, gin.H{"invited": len(messages)})
}

// Withdraw handles POST /api/rooms/:id/withdraw.
func (h *RoomHandlers) Withdraw(c *gin.Context) {
	roomID := c.Param("id")

	result, err := h.rooms.Withdraw(c.Request.Context(), roomID, memberID(c))
	if err != nil {
		writeCoreError(c, err)
		return
	}

	if result.RoomDeleted {
		h.hub.NotifyRoomDeleted(roomID)
	} else {
		h.hub.NotifyLeave(roomID, result.SystemMessage)
	}
	c.JSON(http.StatusOK, gin.H{"room_deleted": result.RoomDeleted})
}

// TransferAdmin handles POST /api/rooms/:id/admin.
func (h *RoomHandlers) TransferAdmin(c *gin.Context) {
	roomID := c.Param("id")

	var req transferAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.KindInvalidInput.Code()})
		return
	}

	if err := h.rooms.TransferAdmin(c.Request.Context(), roomID, memberID(c), req.MemberID); err != nil {
		writeCoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Rename handles PATCH /api/rooms/:id/name.
func (h *RoomHandlers) Rename(c *gin.Context) {
	roomID := c.Param("id")

	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.KindInvalidInput.Code()})
		return
	}

	if err := h.rooms.Rename(c.Request.Context(), roomID, memberID(c), req.Name); err != nil {
		writeCoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete handles DELETE /api/rooms/:id.
func (h *RoomHandlers) Delete(c *gin.Context) {
	roomID := c.Param("id")

	if err := h.rooms.Delete(c.Request.Context(), roomID, memberID(c)); err != nil {
		writeCoreError(c, err)
		return
	}

	h.hub.NotifyRoomDeleted(roomID)
	c.Status(http.StatusNoContent)
}
