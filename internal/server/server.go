// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: main.go hands over config, a logger, and the
// execution engine, and New() assembles the whole dependency chain in one
// place:
//
//	sqlite.DB → repositories → services → handlers → routes
//
// Each layer only receives what it needs. Services get repository
// interfaces, handlers get services, and nothing below the handler layer
// knows HTTP exists.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nahin/codetutor/internal/auth"
	"github.com/nahin/codetutor/internal/executor"
	"github.com/nahin/codetutor/internal/handler"
	"github.com/nahin/codetutor/internal/middleware"
	sqliteRepo "github.com/nahin/codetutor/internal/repository/sqlite"
	"github.com/nahin/codetutor/internal/service"
)

// Config holds server configuration, loaded from the environment by main.
type Config struct {
	Port   int
	DBPath string

	// JWTSecret enables authentication. When empty, the server runs in
	// anonymous-only mode: execution and polling work, OAuth routes are
	// not registered, and account-scoped endpoints answer 401.
	JWTSecret          string
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
}

// Engine is what the server needs from the execution engine: run programs,
// drive sessions, and shut down cleanly. The subprocess engine satisfies it.
type Engine interface {
	executor.Executor
	executor.SessionManager
	Shutdown()
}

// Server owns the router, the database connection, and the engine's
// shutdown. Both resources are released during graceful shutdown, in order:
// HTTP drains first, then the engine kills its children, then the database
// closes.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	engine Engine
}

// New creates a Server and wires the full dependency chain.
func New(cfg Config, logger *slog.Logger, engine Engine) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		engine: engine,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	POST   /api/execute                        → run code (direct result or session ID)
//	GET    /api/execute/sessions/{id}          → session status
//	GET    /api/execute/sessions/{id}/output   → drain pending output
//	POST   /api/execute/sessions/{id}/input    → send a line to stdin
//	DELETE /api/execute/sessions/{id}          → kill and discard the session
//	CRUD   /api/programs[/{id}]                → saved programs
//	GET    /api/runs                           → run history (auth)
//	GET    /api/me                             → current user (auth)
//	GET    /auth/github/login|callback         → OAuth flow (when enabled)
//	POST   /auth/logout
//
// Middleware order matters: RequestID and RealIP first so the logger can
// use them, Recoverer outermost among ours so a panicking handler still
// produces a 500 and a log line.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	programService := service.NewProgramService(s.db, s.logger)
	runService := service.NewRunService(s.db, s.logger)

	runHandler := handler.NewRunHandler(s.engine, s.engine, runService, s.logger)
	programHandler := handler.NewProgramHandler(programService, s.logger)

	// Auth is optional. Without a JWT secret there is no token service, so
	// optionalAuth degrades to a pass-through and every request is
	// anonymous; the account-scoped handlers then answer 401 themselves.
	optionalAuth := func(next http.Handler) http.Handler { return next }
	if s.config.JWTSecret != "" {
		tokens, err := auth.NewTokenService(s.config.JWTSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
		optionalAuth = auth.OptionalAuth(tokens)

		authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), s.logger)
		github := auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
		authHandler := handler.NewAuthHandler(github, authService, s.logger)

		s.router.Route("/auth", func(r chi.Router) {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
			r.Post("/logout", authHandler.HandleLogout)
		})

		s.router.With(auth.RequireAuth(tokens)).Get("/api/me", authHandler.HandleMe)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(optionalAuth)

		r.Post("/execute", runHandler.HandleExecute)
		r.Route("/execute/sessions/{id}", func(r chi.Router) {
			r.Get("/", runHandler.HandleSessionStatus)
			r.Delete("/", runHandler.HandleCloseSession)
			r.Get("/output", runHandler.HandlePollOutput)
			r.Post("/input", runHandler.HandleSendInput)
		})

		r.Get("/programs", programHandler.HandleList)
		r.Post("/programs", programHandler.HandleCreate)
		r.Get("/programs/{id}", programHandler.HandleGet)
		r.Put("/programs/{id}", programHandler.HandleUpdate)
		r.Delete("/programs/{id}", programHandler.HandleDelete)

		r.Get("/runs", runHandler.HandleListRuns)
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully:
//
//  1. Stop accepting connections, give in-flight requests 30s to finish.
//     Poll requests are sub-millisecond, so this drains almost instantly.
//  2. Shut down the engine — kills every live child process and waits for
//     their reader goroutines, so no orphaned interpreters survive us.
//  3. Close the database (flushes the WAL, releases the file lock).
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.Bool("auth", s.config.JWTSecret != ""),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			s.engine.Shutdown()
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			s.engine.Shutdown()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		s.engine.Shutdown()
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
