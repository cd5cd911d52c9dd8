package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jiye888/chat/internal/auth"
	"github.com/jiye888/chat/internal/config"
	"github.com/jiye888/chat/internal/core"
	"github.com/jiye888/chat/internal/service/chat"
	"github.com/jiye888/chat/internal/service/rooms"
	"github.com/jiye888/chat/internal/store"
)

// NewServer builds the HTTP server: REST API, WebSocket bridge, health
// and metrics endpoints.
func NewServer(
	hub *core.Hub,
	chatSvc *chat.Service,
	roomsSvc *rooms.Service,
	st store.Store,
	jwtCfg *auth.JWTConfig,
	cfg config.Config,
	logger *zerolog.Logger,
) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, jwtCfg, logger)))

	members := NewMemberHandlers(st, jwtCfg, logger)
	chatHandlers := NewChatHandlers(chatSvc, logger)
	roomHandlers := NewRoomHandlers(roomsSvc, hub, logger)

	router.POST("/api/members", members.Create)

	api := router.Group("/api", AuthMiddleware(jwtCfg, logger))
	{
		api.POST("/rooms", roomHandlers.Create)
		api.GET("/rooms", roomHandlers.List)
		api.POST("/rooms/:id/invite", roomHandlers.Invite)
		api.POST("/rooms/:id/withdraw", roomHandlers.Withdraw)
		api.POST("/rooms/:id/admin", roomHandlers.TransferAdmin)
		api.PATCH("/rooms/:id/name", roomHandlers.Rename)
		api.DELETE("/rooms/:id", roomHandlers.Delete)

		api.GET("/rooms/:id/messages", chatHandlers.GetMessages)
		api.GET("/rooms/:id/messages/search", chatHandlers.Search)
		api.GET("/rooms/:id/members", chatHandlers.GetMembers)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
