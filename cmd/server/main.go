// Package main is the entry point for the codetutor server.
//
// main() stays minimal: read configuration from the environment, build the
// logger and the execution engine, hand everything to internal/server. All
// actual logic lives in the imported packages.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nahin/codetutor/internal/executor/subprocess"
	"github.com/nahin/codetutor/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))

	port := envInt(logger, "PORT", 8080)

	// Default to data/codetutor.db next to the working directory; DB_PATH
	// overrides for real deployments (e.g. /var/lib/codetutor/prod.db).
	dbPath := envStr("DB_PATH", "data/codetutor.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(dbPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// Engine configuration. The grace window is the one knob worth tuning:
	// shorter means snappier session handoff for interactive programs,
	// longer means fewer short scripts get needlessly promoted to sessions.
	engineCfg := subprocess.DefaultConfig()
	engineCfg.Interpreter = envStr("INTERPRETER", engineCfg.Interpreter)
	engineCfg.GraceWindow = time.Duration(envInt(logger, "GRACE_WINDOW_MS", int(engineCfg.GraceWindow/time.Millisecond))) * time.Millisecond
	engineCfg.IdleTimeout = time.Duration(envInt(logger, "IDLE_TIMEOUT_MS", int(engineCfg.IdleTimeout/time.Millisecond))) * time.Millisecond

	engine := subprocess.New(engineCfg, logger)

	// JWT_SECRET must be a long random string: JWT_SECRET=$(openssl rand -hex 32).
	// If unset, auth is disabled — the server still runs, anonymously.
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Warn("JWT_SECRET not set — authentication is disabled")
	}

	githubCallbackURL := os.Getenv("GITHUB_CALLBACK_URL")
	if githubCallbackURL == "" {
		githubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", port)
	}

	cfg := server.Config{
		Port:               port,
		DBPath:             dbPath,
		JWTSecret:          jwtSecret,
		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubCallbackURL:  githubCallbackURL,
	}

	srv, err := server.New(cfg, logger, engine)
	if err != nil {
		engine.Shutdown()
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until SIGINT/SIGTERM and shuts the engine down itself.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(logger *slog.Logger, key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Error("invalid integer in environment",
			slog.String("key", key),
			slog.String("value", v),
		)
		os.Exit(1)
	}
	return n
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
