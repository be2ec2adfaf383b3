package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"quiz-live/internal/config"
	"quiz-live/internal/game"
	"quiz-live/internal/web"
)

type Server struct {
	engine   *game.Engine
	hub      *wsHub
	cfg      config.Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New builds the session engine on top of deps and wires its broadcasts to
// the websocket hub.
func New(deps game.Deps, cfg config.Config) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
		deps.Logger = logger
	}
	registerValidators()
	hub := newWSHub(logger)
	deps.Broadcaster = hub
	s := &Server{
		engine: game.NewEngine(deps, cfg.EngineOptions()),
		hub:    hub,
		cfg:    cfg,
		logger: logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) Engine() *game.Engine {
	return s.engine
}

// Close stops session timers and drops every open room connection.
func (s *Server) Close() {
	s.engine.Close()
	s.hub.closeAll()
}

func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/", func(c *gin.Context) {
		templ.Handler(web.Home()).ServeHTTP(c.Writer, c.Request)
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/results/:code", s.handleResultsView)
	router.GET("/ws/rooms/:code", s.handleWebsocket)

	api := router.Group("/api")
	api.POST("/rooms", s.handleCreateRoom)
	api.GET("/rooms/:code", s.handleGetRoom)
	api.GET("/rooms/:code/leaderboard", s.handleLeaderboard)
	api.GET("/rooms/:code/result", s.handleResult)
	api.POST("/rooms/:code/finalize", s.handleFinalize)
	api.GET("/rooms/:code/qr", s.handleQRCode)

	return s.corsHandler().Handler(router)
}

func (s *Server) corsHandler() *cors.Cors {
	if len(s.cfg.CORSOrigins) == 0 {
		return cors.AllowAll()
	}
	return cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.CORSOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
