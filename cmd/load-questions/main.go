package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"quiz-live/internal/config"
	"quiz-live/internal/db"
)

func main() {
	filePath := flag.String("file", "questions.csv", "path to question bank csv")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Warn("failed to load .env", "error", err)
	}
	cfg := config.Load()
	slog.SetDefault(cfg.Logger(os.Stderr))

	conn, err := db.Open(cfg.DatabaseURL, db.PoolConfig{MaxOpenConns: 2})
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	loaded, err := db.LoadQuestionBank(ctx, conn, *filePath)
	if err != nil {
		slog.Error("failed to load questions", "file", *filePath, "loaded", loaded, "error", err)
		os.Exit(1)
	}
	slog.Info("loaded question bank", "file", *filePath, "quizzes", loaded)
}
