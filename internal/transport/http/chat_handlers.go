package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jiye888/chat/internal/core"
	"github.com/jiye888/chat/internal/proto"
	"github.com/jiye888/chat/internal/service/chat"
	"github.com/jiye888/chat/internal/store"
)

// ChatHandlers serves the read-side message log endpoints.
type ChatHandlers struct {
	chat *chat.Service
	log  *zerolog.Logger
}

// NewChatHandlers builds the message log handler set.
func NewChatHandlers(chatSvc *chat.Service, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{chat: chatSvc, log: logger}
}

type pageResponse struct {
	Messages []proto.ChatMessage `json:"messages"`
	HasMore  bool                `json:"has_more"`
}

type windowResponse struct {
	Before []proto.ChatMessage `json:"before"`
	Center proto.ChatMessage   `json:"center"`
	After  []proto.ChatMessage `json:"after"`
}

type searchResponse struct {
	Matches []windowResponse `json:"matches"`
	HasMore bool             `json:"has_more"`
}

type memberResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type membersResponse struct {
	AdminID int64            `json:"admin_id"`
	Members []memberResponse `json:"members"`
}

// GetMessages handles GET /api/rooms/:id/messages.
func (h *ChatHandlers) GetMessages(c *gin.Context) {
	roomID := c.Param("id")

	dir := store.Direction(c.DefaultQuery("dir", string(store.DirectionBefore)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	var cursor *int64
	if raw := c.Query("cursor"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid cursor", Code: core.KindInvalidInput.Code()})
			return
		}
		cursor = &id
	}

	page, err := h.chat.GetPage(c.Request.Context(), roomID, memberID(c), cursor, dir, limit)
	if err != nil {
		writeCoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, pageResponse{
		Messages: toChatMessages(page.Messages),
		HasMore:  page.HasMore,
	})
}

// Search handles GET /api/rooms/:id/messages/search.
func (h *ChatHandlers) Search(c *gin.Context) {
	roomID := c.Param("id")
	keyword := c.Query("q")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	var before *int64
	if raw := c.Query("before"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before cursor", Code: core.KindInvalidInput.Code()})
			return
		}
		before = &id
	}

	result, err := h.chat.Search(c.Request.Context(), roomID, memberID(c), keyword, limit, before)
	if err != nil {
		writeCoreError(c, err)
		return
	}

	resp := searchResponse{
		Matches: make([]windowResponse, 0, len(result.Matches)),
		HasMore: result.HasMore,
	}
	for _, w := range result.Matches {
		resp.Matches = append(resp.Matches, windowResponse{
			Before: toChatMessages(w.Before),
			Center: toChatMessage(w.Center),
			After:  toChatMessages(w.After),
		})
	}
	c.JSON(http.StatusOK, resp)
}

// GetMembers handles GET /api/rooms/:id/members.
func (h *ChatHandlers) GetMembers(c *gin.Context) {
	roomID := c.Param("id")

	list, err := h.chat.GetMembers(c.Request.Context(), roomID, memberID(c))
	if err != nil {
		writeCoreError(c, err)
		return
	}

	resp := membersResponse{
		AdminID: list.AdminID,
		Members: make([]memberResponse, 0, len(list.Members)),
	}
	for _, m := range list.Members {
		resp.Members = append(resp.Members, memberResponse{ID: m.ID, Name: m.Name})
	}
	c.JSON(http.StatusOK, resp)
}

func writeCoreError(c *gin.Context, err error) {
	ce := core.WrapError(err)
	c.JSON(statusForKind(ce.Kind), ErrorResponse{Error: ce.Message, Code: ce.Kind.Code()})
}

func statusForKind(kind core.ErrorKind) int {
	switch kind {
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindForbidden:
		return http.StatusForbidden
	case core.KindConflict:
		return http.StatusConflict
	case core.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
