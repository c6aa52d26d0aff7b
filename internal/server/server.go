package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"ctchen222/Four-In-A-Row/internal/api/controller"
	"ctchen222/Four-In-A-Row/internal/api/response"
	"ctchen222/Four-In-A-Row/internal/bot"
	"ctchen222/Four-In-A-Row/internal/hub/types"
	"ctchen222/Four-In-A-Row/internal/player"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("server")

const maxMessageSize = 512

// Registrar accepts new websocket players.
type Registrar interface {
	Register() chan<- *types.RegistrationRequest
}

// TokenParser resolves a login token to a username.
type TokenParser interface {
	ParseToken(token string) (string, error)
}

// HealthCheck reports whether a backing store is reachable.
type HealthCheck func(ctx context.Context) error

type Server struct {
	hub               Registrar
	tokens            TokenParser
	userController    *controller.UserController
	historyController *controller.HistoryController
	checks            map[string]HealthCheck
	upgrader          websocket.Upgrader
	engine            *gin.Engine
}

func NewServer(
	h Registrar,
	tokens TokenParser,
	userController *controller.UserController,
	historyController *controller.HistoryController,
	checks map[string]HealthCheck,
) *Server {
	s := &Server{
		hub:               h,
		tokens:            tokens,
		userController:    userController,
		historyController: historyController,
		checks:            checks,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/ws", s.handleWebSocket)
	r.GET("/healthz", s.handleHealth)

	users := r.Group("/api/users")
	users.POST("/register", s.userController.Register)
	users.POST("/login", s.userController.Login)
	users.POST("/guest", s.userController.GuestLogin)

	players := r.Group("/api/players/:id")
	players.GET("/history", s.historyController.History)
	players.GET("/stats", s.historyController.Stats)

	return r
}

// Engine returns the gin router.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Handler returns the router wrapped in HTTP tracing.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.engine, "http.server")
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.DebugContext(c.Request.Context(), "HTTP request",
			"http.method", c.Request.Method,
			"http.path", c.FullPath(),
			"http.status", c.Writer.Status(),
			"http.duration", time.Since(start),
		)
	}
}

// handleWebSocket upgrades the connection and hands the player to the hub.
// Query parameters: playerId, difficulty (easy|medium|hard, default easy) and
// an optional login token whose username replaces the player id.
func (s *Server) handleWebSocket(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "server.handleWebSocket", trace.WithAttributes(
		attribute.String("http.url", c.Request.URL.String()),
		attribute.String("http.method", c.Request.Method),
	))
	defer span.End()

	playerID := c.Query("playerId")
	if token := c.Query("token"); token != "" {
		username, err := s.tokens.ParseToken(token)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Invalid token")
			response.ErrorResponse(c, http.StatusUnauthorized, "Invalid token")
			return
		}
		playerID = username
	}
	if playerID == "" {
		playerID = uuid.New().String()
	}

	difficulty := c.DefaultQuery("difficulty", bot.DifficultyEasy)
	if !bot.IsValidDifficulty(difficulty) {
		span.SetStatus(codes.Error, "Unknown difficulty")
		response.ErrorResponse(c, http.StatusBadRequest, "Unknown difficulty")
		return
	}
	span.SetAttributes(attribute.String("player.id", playerID), attribute.String("bot.difficulty", difficulty))

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(ctx, "Failed to upgrade connection", "player.id", playerID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to upgrade connection")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	s.hub.Register() <- &types.RegistrationRequest{
		Player:     player.NewPlayer(playerID, conn),
		PlayerID:   playerID,
		Difficulty: difficulty,
		Ctx:        ctx,
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := make(map[string]string, len(s.checks))
	healthy := true
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			slog.WarnContext(ctx, "Health check failed", "check", name, "error", err)
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, response.NewResponse(false, http.StatusServiceUnavailable, status))
		return
	}
	response.SuccessResponse(c, status)
}
