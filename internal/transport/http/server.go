package http

import (
	"fmt"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/gifchat-server/internal/config"
	"github.com/vovakirdan/gifchat-server/internal/core"
	"github.com/vovakirdan/gifchat-server/internal/service/rooms"
	"github.com/vovakirdan/gifchat-server/internal/session"
	"github.com/vovakirdan/gifchat-server/internal/upload"
)

// NewServer builds the HTTP server with every route of the application.
func NewServer(
	hub *core.Hub,
	roomService *rooms.Service,
	sessions *session.Manager,
	uploads *upload.Storage,
	cfg *config.Config,
	logger *zerolog.Logger,
) *stdhttp.Server {
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(SessionMiddleware(sessions, logger))
	router.Use(ErrorMiddleware(logger))

	router.GET("/health", healthHandler)
	router.Static("/gif", uploads.Dir())

	roomHandlers := NewRoomHandlers(roomService, uploads, logger)
	router.GET("/", roomHandlers.ListRooms)
	router.GET("/room", roomHandlers.CreateRoomForm)
	router.POST("/room", roomHandlers.CreateRoom)
	router.GET("/room/:id", roomHandlers.GetRoom)
	router.DELETE("/room/:id", roomHandlers.DeleteRoom)
	router.POST("/room/:id/chat", roomHandlers.PostChat)
	router.POST("/room/:id/gif", roomHandlers.PostGif)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, ErrorResponse{Error: "not found"})
	})

	// WebSocket upgrades bypass gin: its response writer refuses to hijack
	// once the handshake headers are written.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws/", NewWSHandler(hub, sessions, cfg.MaxInboundPerMinute, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	_, _ = fmt.Fprint(c.Writer, "ok")
}
