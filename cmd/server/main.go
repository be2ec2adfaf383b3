package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz-live/internal/config"
	"quiz-live/internal/db"
	"quiz-live/internal/game"
	"quiz-live/internal/server"
)

func main() {
	if err := config.LoadDotEnv(".env.local", ".env"); err != nil {
		slog.Warn("failed to load .env", "error", err)
	}
	cfg := config.Load()
	logger := cfg.Logger(os.Stdout)
	slog.SetDefault(logger)

	deps, err := buildDeps(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	srv := server.New(deps, cfg)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go srv.Engine().Run(ctx)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("quiz-live server listening",
		"addr", httpServer.Addr,
		"room_store", cfg.RoomStore,
		"clock", cfg.ClockAuthority,
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// buildDeps picks Postgres-backed collaborators when DATABASE_URL is set and
// falls back to in-memory ones otherwise.
func buildDeps(cfg config.Config, logger *slog.Logger) (game.Deps, error) {
	deps := game.Deps{Logger: logger}
	if cfg.DatabaseURL == "" {
		if cfg.RoomStore == config.RoomStorePostgres {
			return deps, errors.New("ROOM_STORE=postgres requires DATABASE_URL")
		}
		questions := game.NewMemoryQuestions()
		if cfg.QuestionsCSV != "" {
			loaded, err := db.SeedMemory(questions, cfg.QuestionsCSV)
			if err != nil {
				return deps, err
			}
			logger.Info("question bank loaded", "path", cfg.QuestionsCSV, "quizzes", loaded)
		}
		results := game.NewMemoryResults()
		deps.Store = game.NewMemoryStore()
		deps.Questions = questions
		deps.Results = results
		deps.Stats = results
		logger.Warn("DATABASE_URL not set, results are kept in memory")
		return deps, nil
	}

	conn, err := db.Open(cfg.DatabaseURL, db.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetimeSeconds) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTimeSeconds) * time.Second,
	})
	if err != nil {
		return deps, err
	}
	if cfg.QuestionsCSV != "" {
		loaded, err := db.LoadQuestionBank(context.Background(), conn, cfg.QuestionsCSV)
		if err != nil {
			return deps, err
		}
		logger.Info("question bank loaded", "path", cfg.QuestionsCSV, "quizzes", loaded)
	}
	results := db.NewResultRepo(conn)
	deps.Questions = db.NewQuestionRepo(conn)
	deps.Results = results
	deps.Stats = results
	if cfg.RoomStore == config.RoomStorePostgres {
		deps.Store = db.NewRoomStore(conn)
	} else {
		deps.Store = game.NewMemoryStore()
	}
	return deps, nil
}
