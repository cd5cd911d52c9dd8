package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jiye888/chat/internal/auth"
	"github.com/jiye888/chat/internal/core"
	"github.com/jiye888/chat/internal/store"
)

// MemberHandlers serves member registration.
type MemberHandlers struct {
	store  store.Store
	jwtCfg *auth.JWTConfig
	log    *zerolog.Logger
}

// NewMemberHandlers builds the member handler set.
func NewMemberHandlers(st store.Store, jwtCfg *auth.JWTConfig, logger *zerolog.Logger) *MemberHandlers {
	return &MemberHandlers{store: st, jwtCfg: jwtCfg, log: logger}
}

type createMemberRequest struct {
	Name string `json:"name"`
}

type createMemberResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

// Create handles POST /api/members. It registers a member and returns
// the token the client uses for everything else.
func (h *MemberHandlers) Create(c *gin.Context) {
	var req createMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name is required", Code: core.KindInvalidInput.Code()})
		return
	}

	member, err := h.store.CreateMember(c.Request.Context(), req.Name)
	if err != nil {
		writeCoreError(c, err)
		return
	}

	token, err := auth.GenerateToken(h.jwtCfg, member.ID, member.Name)
	if err != nil {
		h.log.Error().Err(err).Msg("generate token")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "token generation failed", Code: core.KindInternal.Code()})
		return
	}

	c.JSON(http.StatusCreated, createMemberResponse{ID: member.ID, Name: member.Name, Token: token})
}
