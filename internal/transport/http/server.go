package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/floatchat/internal/config"
	"github.com/vovakirdan/floatchat/internal/core"
	"github.com/vovakirdan/floatchat/internal/emote"
	"github.com/vovakirdan/floatchat/internal/realtime"
	"github.com/vovakirdan/floatchat/internal/store"
)

// Deps are the components the local bridge serves.
type Deps struct {
	Hub     *core.Hub
	Manager *realtime.Manager
	ChatLog store.ChatterStore // nil disables the log endpoint
	Emotes  *emote.Cache
}

// NewServer builds the local bridge HTTP server.
func NewServer(deps Deps, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	if deps.Emotes == nil {
		deps.Emotes = emote.Shared
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	channels := NewChannelHandlers(deps.Hub, deps.Manager, deps.ChatLog, logger)
	emotes := NewEmoteHandlers(deps.Emotes)

	api := router.Group("/api")
	{
		api.GET("/channels", channels.List)
		api.GET("/channels/:id", channels.Get)
		api.POST("/channels/:id/connect", channels.Connect)
		api.POST("/channels/:id/disconnect", channels.Disconnect)
		api.GET("/channels/:id/log", channels.Log)

		api.GET("/emotes", emotes.List)
		api.GET("/emotes/:code", emotes.Get)
	}

	ws := NewWSHandler(deps.Hub, cfg.WSRateLimit, logger)
	router.GET("/ws/channels/:id", ws.Channel)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
