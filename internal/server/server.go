package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gerardinho-server/GestionUsuarios/config"
	"github.com/Gerardinho-server/GestionUsuarios/internal/db"
	"github.com/Gerardinho-server/GestionUsuarios/internal/events"
	"github.com/Gerardinho-server/GestionUsuarios/internal/handlers"
	"github.com/Gerardinho-server/GestionUsuarios/internal/logging"
	"github.com/Gerardinho-server/GestionUsuarios/internal/services"
	"github.com/Gerardinho-server/GestionUsuarios/internal/session"
	"github.com/Gerardinho-server/GestionUsuarios/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Server wraps the HTTP server, its router and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	sessions   session.Store
	publisher  *events.Publisher
	logger     zerolog.Logger
}

// New connects to every backing service and builds the router.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sessions, err := OpenSessionStore(ctx, cfg, logger)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	backend, err := events.NewBackend(ctx, cfg.Events)
	if err != nil {
		_ = sessions.Close()
		_ = dbConn.Close()
		return nil, fmt.Errorf("open events backend: %w", err)
	}
	publisher := events.NewPublisher(backend, cfg.Events.Channel, logger)

	userRepo := store.NewUserRepository(dbConn)
	userService := services.NewUserService(userRepo, sessions, publisher, logger)
	authService := services.NewSessionAuth(userRepo, sessions, logger)

	renderer, err := handlers.NewRenderer(logger)
	if err != nil {
		_ = publisher.Close()
		_ = sessions.Close()
		_ = dbConn.Close()
		return nil, fmt.Errorf("load templates: %w", err)
	}
	sessionManager := handlers.NewSessionManager(authService, sessions, cfg.Session, renderer, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		logging.Middleware(logger),
		middleware.Timeout(60*time.Second),
		sessionManager.LoadSession,
	)
	handlers.Routes(router, handlers.Deps{
		Users:    userService,
		Auth:     authService,
		Sessions: sessionManager,
		Renderer: renderer,
		Health:   dbConn,
		Logger:   logger,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		sessions:   sessions,
		publisher:  publisher,
		logger:     logger,
	}, nil
}

// OpenSessionStore returns a Redis backed store when an address is
// configured and an in-memory store otherwise.
func OpenSessionStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (session.Store, error) {
	if cfg.Redis.Addr == "" {
		logger.Warn().Msg("REDIS_ADDR not set, sessions are kept in memory")
		return session.NewMemoryStore(cfg.Session.TTL), nil
	}
	sessions, err := session.NewRedisStore(ctx, cfg.Redis, cfg.Session.TTL)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return sessions, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases every resource.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if perr := s.publisher.Close(); perr != nil {
		s.logger.Error().Err(perr).Msg("close events publisher")
	}
	if serr := s.sessions.Close(); serr != nil {
		s.logger.Error().Err(serr).Msg("close session store")
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
