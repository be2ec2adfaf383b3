package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"quiz-live/internal/game"
)

const (
	RoomStoreMemory   = "memory"
	RoomStorePostgres = "postgres"
)

type Config struct {
	Port                     string
	BaseURL                  string
	DatabaseURL              string
	RoomStore                string
	ClockAuthority           string
	PrepareSeconds           int
	DefaultQuestionSeconds   int
	TickMillis               int
	ResultGraceSeconds       int
	HostReconnectSeconds     int
	StaleRoomMinutes         int
	FinalizeAttempts         int
	QuestionsCSV             string
	LogLevel                 string
	LogFormat                string
	CORSOrigins              []string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeSeconds int
	DBConnMaxIdleTimeSeconds int
}

func Default() Config {
	return Config{
		Port:                     "8080",
		BaseURL:                  "http://localhost:8080",
		RoomStore:                RoomStoreMemory,
		ClockAuthority:           string(game.ClockServer),
		PrepareSeconds:           3,
		DefaultQuestionSeconds:   20,
		TickMillis:               1000,
		ResultGraceSeconds:       60,
		HostReconnectSeconds:     120,
		StaleRoomMinutes:         120,
		FinalizeAttempts:         3,
		LogLevel:                 "info",
		LogFormat:                "text",
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
	}
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("PORT"); raw != "" {
		cfg.Port = raw
	}
	if raw := os.Getenv("BASE_URL"); raw != "" {
		cfg.BaseURL = strings.TrimRight(raw, "/")
	}
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		cfg.DatabaseURL = raw
	}
	if raw := strings.ToLower(os.Getenv("ROOM_STORE")); raw == RoomStoreMemory || raw == RoomStorePostgres {
		cfg.RoomStore = raw
	}
	if raw := strings.ToLower(os.Getenv("CLOCK_AUTHORITY")); raw == string(game.ClockServer) || raw == string(game.ClockHost) {
		cfg.ClockAuthority = raw
	}
	if raw := os.Getenv("PREPARE_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.PrepareSeconds = value
		}
	}
	if raw := os.Getenv("DEFAULT_QUESTION_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 && value <= game.MaxQuestionSeconds {
			cfg.DefaultQuestionSeconds = value
		}
	}
	if raw := os.Getenv("TICK_MILLIS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.TickMillis = value
		}
	}
	if raw := os.Getenv("RESULT_GRACE_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.ResultGraceSeconds = value
		}
	}
	if raw := os.Getenv("HOST_RECONNECT_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.HostReconnectSeconds = value
		}
	}
	if raw := os.Getenv("STALE_ROOM_MINUTES"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.StaleRoomMinutes = value
		}
	}
	if raw := os.Getenv("FINALIZE_ATTEMPTS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.FinalizeAttempts = value
		}
	}
	if raw := os.Getenv("QUESTIONS_CSV"); raw != "" {
		cfg.QuestionsCSV = raw
	}
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = strings.ToLower(raw)
	}
	if raw := os.Getenv("LOG_FORMAT"); raw != "" {
		cfg.LogFormat = strings.ToLower(raw)
	}
	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	}
	if raw := os.Getenv("DB_MAX_OPEN_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxOpenConns = value
		}
	}
	if raw := os.Getenv("DB_MAX_IDLE_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxIdleConns = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_LIFETIME_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxLifetimeSeconds = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_IDLE_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxIdleTimeSeconds = value
		}
	}
	return cfg
}

// EngineOptions maps the timing settings onto the session engine.
func (c Config) EngineOptions() game.Options {
	opts := game.DefaultOptions()
	opts.Clock = game.ClockMode(c.ClockAuthority)
	opts.PrepareDuration = time.Duration(c.PrepareSeconds) * time.Second
	opts.TickInterval = time.Duration(c.TickMillis) * time.Millisecond
	opts.DefaultQuestionSeconds = c.DefaultQuestionSeconds
	opts.ResultGrace = time.Duration(c.ResultGraceSeconds) * time.Second
	opts.HostReconnectGrace = time.Duration(c.HostReconnectSeconds) * time.Second
	opts.StaleRoomAfter = time.Duration(c.StaleRoomMinutes) * time.Minute
	opts.FinalizeAttempts = c.FinalizeAttempts
	return opts
}

// Logger builds the process logger: colored tint output by default, JSON
// when LOG_FORMAT=json.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  level == slog.LevelDebug,
	}))
}
