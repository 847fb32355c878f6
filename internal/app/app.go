package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/floatchat/internal/config"
	"github.com/vovakirdan/floatchat/internal/core"
	"github.com/vovakirdan/floatchat/internal/emote"
	"github.com/vovakirdan/floatchat/internal/realtime"
	"github.com/vovakirdan/floatchat/internal/session"
	"github.com/vovakirdan/floatchat/internal/store"
	"github.com/vovakirdan/floatchat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/floatchat/internal/transport/http"
)

// App wires together the channel manager, the hub and the local bridge.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	manager         *realtime.Manager
	store           store.Store
	channels        []string
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	// Initialize database store
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	sessions := session.NewService(st, cfg.SessionCookie)
	cookie := ResolveCookie(context.Background(), sessions, logger)

	hub := core.NewHub(st, logger)

	opts := Options(cfg, logger)
	opts.OnStateChange = hub.OnStateChange
	transport := realtime.NewTransport(Endpoint(cfg, cfg.ChatURL, cookie, logger))
	manager := realtime.NewManager(transport, opts)

	server := transporthttp.NewServer(transporthttp.Deps{
		Hub:     hub,
		Manager: manager,
		ChatLog: st,
		Emotes:  opts.Emotes,
	}, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		manager:         manager,
		store:           st,
		channels:        cfg.Channels,
		log:             logger,
	}, nil
}

// Run starts the HTTP server, joins the configured channels and blocks until
// context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)
	go a.manager.Run(ctx)

	for _, ch := range a.channels {
		a.manager.Client(ch, a.hub.Delegate(ch)).Connect()
		a.log.Info().Str("channel", ch).Msg("auto-connecting channel")
	}

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("local bridge listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}

// ResolveCookie returns the session cookie to authenticate with, or an empty
// string when none is available. The sockets still connect without one but
// the server rejects joins.
func ResolveCookie(ctx context.Context, sessions *session.Service, logger *zerolog.Logger) string {
	cookie, source, err := sessions.Cookie(ctx)
	switch {
	case errors.Is(err, session.ErrNoSession):
		logger.Warn().Msg("no session cookie configured, run `floatchat session set` first")
		return ""
	case err != nil:
		logger.Warn().Err(err).Msg("failed to resolve session cookie")
		return ""
	}
	logger.Info().Str("source", string(source)).Str("cookie", session.Mask(cookie)).Msg("using session cookie")
	return cookie
}

// Endpoint describes the socket at url as configured.
func Endpoint(cfg *config.Config, url, cookie string, logger *zerolog.Logger) realtime.Endpoint {
	return realtime.Endpoint{
		URL:             url,
		Path:            cfg.SocketPath,
		EngineIOVersion: cfg.EngineIOVersion,
		Origin:          cfg.Origin,
		UserAgent:       cfg.UserAgent,
		Cookie:          cookie,
		Logger:          logger,
	}
}

// Options maps cfg onto socket options. Emotes advertised on join are loaded
// into the shared cache.
func Options(cfg *config.Config, logger *zerolog.Logger) realtime.Options {
	loader := emote.NewLoader(emote.Shared, cfg.EmoteSize, logger)
	if cfg.Origin != "" {
		loader.BaseURL = cfg.Origin
	}
	return realtime.Options{
		RPCTimeout:     cfg.RPCTimeout,
		ReconnectDelay: cfg.ReconnectDelay,
		AutoReconnect:  cfg.AutoReconnect,
		HistorySize:    cfg.HistorySize,
		Username:       cfg.Username,
		Emotes:         emote.Shared,
		Loader:         loader,
		Logger:         logger,
	}
}
