package room

import (
	"log/slog"
	"sync"
	"time"

	"ctchen222/Four-In-A-Row/internal/events"
	"ctchen222/Four-In-A-Row/internal/hub/types"
	"ctchen222/Four-In-A-Row/internal/player"
	"ctchen222/Four-In-A-Row/internal/repository"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
)

const (
	heartbeatInterval = 10 * time.Second
)

var tracer = otel.Tracer("room")

// Room is one game between a human and a bot. All moves are applied by the
// goroutine running Start, one at a time.
type Room struct {
	ID            string
	gameRepo      repository.GameRepository
	publisher     events.Publisher
	Players       []*player.Player
	mu            sync.Mutex
	incomingMoves chan *types.PlayerMove
	heartbeat     time.Duration
	Done          chan struct{}
	closeOnce     sync.Once
}

// NewRoom creates a new game room.
func NewRoom(id string, gameRepo repository.GameRepository, publisher events.Publisher) *Room {
	return &Room{
		ID:            id,
		gameRepo:      gameRepo,
		publisher:     publisher,
		Players:       make([]*player.Player, 0, 2),
		incomingMoves: make(chan *types.PlayerMove, 10),
		heartbeat:     heartbeatInterval,
		Done:          make(chan struct{}),
	}
}

// Start reads from every human connection and runs the game loop until the room is closed.
// Players whose connection drops are sent to unregisterPlayer.
func (r *Room) Start(unregisterPlayer chan<- *player.Player) {
	for _, p := range r.Players {
		if !p.IsBot {
			go r.ReadPump(p, unregisterPlayer)
		}
	}
	r.run()
}

// run is the main game loop for the room.
func (r *Room) run() {
	pingTicker := time.NewTicker(r.heartbeat)
	defer pingTicker.Stop()

	for {
		select {
		case <-r.Done:
			slog.Info("Room run goroutine stopping.", "room.id", r.ID)
			return

		case move := <-r.incomingMoves:
			r.HandleMessage(move.Player, move.Message)

		case <-pingTicker.C:
			r.ping()
		}
	}
}

func (r *Room) ping() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.Players {
		if p.IsBot || p.Status != player.StatusConnected {
			continue
		}
		if err := p.Send(websocket.PingMessage, nil); err != nil {
			slog.Warn("Failed to send ping to player, assuming disconnect", "player.id", p.ID, "room.id", r.ID, "error", err)
		}
	}
}

// Close stops the game loop and closes every player's connection. It is safe to call more than once.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		close(r.Done)

		r.mu.Lock()
		defer r.mu.Unlock()
		for _, p := range r.Players {
			if p.Conn == nil {
				continue
			}
			if err := p.Conn.Close(); err != nil {
				slog.Debug("Error closing player connection", "player.id", p.ID, "room.id", r.ID, "error", err)
			}
		}
	})
}

// IsClosed reports whether Close has been called.
func (r *Room) IsClosed() bool {
	select {
	case <-r.Done:
		return true
	default:
		return false
	}
}

// HumanID returns the id of the room's human player, if any.
func (r *Room) HumanID() string {
	for _, p := range r.Players {
		if !p.IsBot {
			return p.ID
		}
	}
	return ""
}
