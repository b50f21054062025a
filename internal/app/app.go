package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/gifchat-server/internal/config"
	"github.com/vovakirdan/gifchat-server/internal/core"
	"github.com/vovakirdan/gifchat-server/internal/service/rooms"
	"github.com/vovakirdan/gifchat-server/internal/session"
	"github.com/vovakirdan/gifchat-server/internal/store"
	"github.com/vovakirdan/gifchat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/gifchat-server/internal/transport/http"
	"github.com/vovakirdan/gifchat-server/internal/upload"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	rooms           *rooms.Service
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	uploads, err := upload.NewStorage(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init uploads: %w", err)
	}
	logger.Info().Str("upload_dir", uploads.Dir()).Int64("max_bytes", uploads.MaxBytes()).Msg("upload storage ready")

	hub := core.NewHub(logger)
	roomService := rooms.New(st, hub, cfg.RemoveRoomDelay, logger)
	hub.SetReaper(roomService, cfg.ReaperTimeout)

	sessions := session.NewManager(cfg.SessionSecret, cfg.SessionTTL)
	server := transporthttp.NewServer(hub, roomService, sessions, uploads, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		rooms:           roomService,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	go a.hub.Run(hubCtx)

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup(stopHub)
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup(stopHub)
			return err
		}

		a.cleanup(stopHub)
		return <-serverErr
	}
}

// cleanup stops the hub, cancels pending broadcasts and closes the store,
// in that order, so no reaper runs against a closed database.
func (a *App) cleanup(stopHub context.CancelFunc) {
	stopHub()
	<-a.hub.Done()
	a.log.Info().Msg("hub stopped")

	a.rooms.Close()

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
