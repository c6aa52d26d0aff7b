package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"ctchen222/Four-In-A-Row/internal/api/models"
	"ctchen222/Four-In-A-Row/internal/bot"
	"ctchen222/Four-In-A-Row/internal/events"
	"ctchen222/Four-In-A-Row/internal/game"
	"ctchen222/Four-In-A-Row/internal/hub/types"
	"ctchen222/Four-In-A-Row/internal/player"
	"ctchen222/Four-In-A-Row/internal/repository"
	"ctchen222/Four-In-A-Row/internal/room"
	"ctchen222/Four-In-A-Row/internal/validator"
	"ctchen222/Four-In-A-Row/pkg/proto"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("hub")
	meter  = otel.Meter("hub")
)

// GameRecorder stores finished games.
type GameRecorder interface {
	Record(ctx context.Context, record *models.GameRecord) error
}

// Hub owns every room served by this instance.
type Hub struct {
	gameRepo   repository.GameRepository
	playerRepo repository.PlayerRepository
	publisher  events.Publisher
	subscriber events.Subscriber
	recorder   GameRecorder
	thinkDelay time.Duration

	mu          sync.RWMutex
	rooms       map[string]*room.Room
	playerRooms map[*player.Player]string

	register   chan *types.RegistrationRequest
	unregister chan *player.Player

	activeRooms metric.Int64UpDownCounter
}

// NewHub creates a new hub. subscriber and recorder may be nil, in which case
// finished games are not recorded by this instance.
func NewHub(
	gameRepo repository.GameRepository,
	playerRepo repository.PlayerRepository,
	publisher events.Publisher,
	subscriber events.Subscriber,
	recorder GameRecorder,
	thinkDelay time.Duration,
) *Hub {
	activeRooms, err := meter.Int64UpDownCounter("hub.rooms.active",
		metric.WithDescription("Rooms currently open on this instance"))
	if err != nil {
		otel.Handle(err)
	}

	return &Hub{
		gameRepo:    gameRepo,
		playerRepo:  playerRepo,
		publisher:   publisher,
		subscriber:  subscriber,
		recorder:    recorder,
		thinkDelay:  thinkDelay,
		rooms:       make(map[string]*room.Room),
		playerRooms: make(map[*player.Player]string),
		register:    make(chan *types.RegistrationRequest),
		unregister:  make(chan *player.Player),
		activeRooms: activeRooms,
	}
}

// Run starts the hub and blocks until ctx is cancelled, then closes every room.
func (h *Hub) Run(ctx context.Context) {
	if h.subscriber != nil {
		go func() {
			if err := h.subscriber.Subscribe(ctx, h.handleEvent); err != nil {
				slog.ErrorContext(ctx, "Event subscriber stopped", "error", err)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case req := <-h.register:
			h.registerBotGame(req)
		case p := <-h.unregister:
			h.unregisterPlayer(context.WithoutCancel(ctx), p)
		}
	}
}

// registerBotGame opens a room pairing the requesting player with a bot.
func (h *Hub) registerBotGame(req *types.RegistrationRequest) {
	parent := context.Background()
	if req.Ctx != nil {
		// The request context ends with the HTTP handler; keep its trace, drop its cancellation.
		parent = context.WithoutCancel(req.Ctx)
	}
	ctx, span := tracer.Start(parent, "hub.registerBotGame", trace.WithAttributes(
		attribute.String("player.id", req.Player.ID),
		attribute.String("bot.difficulty", req.Difficulty),
	))
	defer span.End()

	if err := validator.GetValidator().Struct(req); err != nil {
		slog.WarnContext(ctx, "Rejected registration", "player.id", req.Player.ID, "error", err)
		span.SetStatus(codes.Error, "Invalid registration")
		h.reject(ctx, req.Player, "unknown difficulty")
		return
	}

	roomID := uuid.New().String()
	span.SetAttributes(attribute.String("room.id", roomID))
	newRoom := room.NewRoom(roomID, h.gameRepo, h.publisher)
	human := req.Player
	botPlayer := bot.NewBotPlayer(req.Difficulty, newRoom.IncomingMoves(), h.thinkDelay)

	if err := h.playerRepo.Claim(ctx, human.ID, roomID); err != nil {
		reason := "could not join a game, please retry"
		if errors.Is(err, repository.ErrPlayerInGame) {
			reason = "already playing in another game"
		}
		slog.WarnContext(ctx, "Could not claim player", "player.id", human.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Could not claim player")
		h.reject(ctx, human, reason)
		return
	}

	first := game.RandomlyChooseFirstPlayer()
	if err := h.gameRepo.Create(ctx, roomID, human.ID, botPlayer.ID, req.Difficulty, first); err != nil {
		slog.ErrorContext(ctx, "Failed to create bot game", "room.id", roomID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create bot game")
		if err := h.playerRepo.Release(ctx, human.ID, roomID); err != nil {
			slog.ErrorContext(ctx, "Failed to release player", "player.id", human.ID, "error", err)
		}
		h.reject(ctx, human, "could not start a game, please retry")
		return
	}

	newRoom.AddPlayer(human)
	newRoom.AddPlayer(botPlayer)

	h.mu.Lock()
	h.rooms[roomID] = newRoom
	h.playerRooms[human] = roomID
	h.mu.Unlock()
	h.activeRooms.Add(ctx, 1)

	slog.InfoContext(ctx, "Bot game created",
		"room.id", roomID, "player.id", human.ID, "bot.id", botPlayer.ID,
		"bot.difficulty", req.Difficulty, "game.first", first.String())

	newRoom.SendInitialState(ctx)
	go newRoom.Start(h.unregister)
}

// reject tells a player why no game was opened and hangs up.
func (h *Hub) reject(ctx context.Context, p *player.Player, reason string) {
	data, err := json.Marshal(proto.NewErrorMessage(reason))
	if err == nil {
		if err := p.Send(websocket.TextMessage, data); err != nil {
			slog.DebugContext(ctx, "Could not send rejection", "player.id", p.ID, "error", err)
		}
	}
	if err := p.Conn.Close(); err != nil {
		slog.DebugContext(ctx, "Error closing rejected connection", "player.id", p.ID, "error", err)
	}
}

// unregisterPlayer closes the player's room and removes its state.
func (h *Hub) unregisterPlayer(ctx context.Context, p *player.Player) {
	h.mu.Lock()
	roomID, ok := h.playerRooms[p]
	r := h.rooms[roomID]
	delete(h.playerRooms, p)
	delete(h.rooms, roomID)
	h.mu.Unlock()

	if !ok || r == nil {
		return
	}

	ctx, span := tracer.Start(ctx, "hub.unregisterPlayer", trace.WithAttributes(
		attribute.String("player.id", p.ID),
		attribute.String("room.id", roomID),
	))
	defer span.End()

	h.closeRoom(ctx, r, p.ID)

	if err := h.publisher.Publish(ctx, events.TypePlayerDisconnected, events.PlayerDisconnectedPayload{
		RoomID:   roomID,
		PlayerID: p.ID,
	}); err != nil {
		slog.ErrorContext(ctx, "Failed to publish player_disconnected event", "player.id", p.ID, "error", err)
		span.RecordError(err)
	}
	slog.InfoContext(ctx, "Room closed after disconnect", "room.id", roomID, "player.id", p.ID)
}

func (h *Hub) closeRoom(ctx context.Context, r *room.Room, playerID string) {
	r.Close()
	h.activeRooms.Add(ctx, -1)

	if err := h.gameRepo.Delete(ctx, r.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to delete game state", "room.id", r.ID, "error", err)
		trace.SpanFromContext(ctx).RecordError(err)
	}
	if err := h.playerRepo.Release(ctx, playerID, r.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to release player", "player.id", playerID, "error", err)
		trace.SpanFromContext(ctx).RecordError(err)
	}
}

func (h *Hub) closeAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]*room.Room)
	h.playerRooms = make(map[*player.Player]string)
	h.mu.Unlock()

	for _, r := range rooms {
		h.closeRoom(ctx, r, r.HumanID())
	}
	slog.InfoContext(ctx, "Hub stopped", "rooms.closed", len(rooms))
}

// RoomCount returns the number of open rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Register returns the register channel.
func (h *Hub) Register() chan<- *types.RegistrationRequest {
	return h.register
}

// Unregister returns the unregister channel.
func (h *Hub) Unregister() chan<- *player.Player {
	return h.unregister
}
