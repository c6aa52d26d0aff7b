package bot

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"ctchen222/Four-In-A-Row/internal/game"
	"ctchen222/Four-In-A-Row/internal/hub/types"
	"ctchen222/Four-In-A-Row/internal/player"
	"ctchen222/Four-In-A-Row/pkg/proto"

	"github.com/google/uuid"
)

// BotConnection simulates a websocket connection for a bot player.
// It implements the player.Connection interface.
type BotConnection struct {
	playerID      string
	difficulty    string
	player        *player.Player
	incomingMoves chan<- *types.PlayerMove
	calculator    MoveCalculator
	thinkDelay    time.Duration

	mu   sync.Mutex
	mark game.Cell // assigned by the room

	done      chan struct{}
	closeOnce sync.Once
}

// NewBotConnection creates a connection that answers updates with moves on incomingMoves.
func NewBotConnection(playerID string, difficulty string, p *player.Player, incomingMoves chan<- *types.PlayerMove) *BotConnection {
	return &BotConnection{
		playerID:      playerID,
		difficulty:    difficulty,
		player:        p,
		incomingMoves: incomingMoves,
		calculator:    &BotMoveCalculator{},
		done:          make(chan struct{}),
	}
}

// WriteMessage is called by the room to send game state to the bot.
func (bc *BotConnection) WriteMessage(messageType int, data []byte) error {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}

	switch envelope.Type {
	case proto.TypeAssignment:
		var msg proto.PlayerAssignmentMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		bc.mu.Lock()
		bc.mark = msg.Mark
		bc.mu.Unlock()
		slog.Info("Bot assigned mark", "player.id", bc.playerID, "mark", msg.Mark.String())

	case proto.TypeUpdate:
		var msg proto.ServerToClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}

		bc.mu.Lock()
		mark := bc.mark
		bc.mu.Unlock()

		// The bot only acts if it has a mark, it's its turn, and the game is still running.
		if mark == game.Empty || msg.Next != mark || msg.Winner != game.ResultNone || msg.Board == nil {
			return nil
		}
		go bc.play(*msg.Board, mark)
	}

	return nil
}

func (bc *BotConnection) play(board game.Board, mark game.Cell) {
	if bc.thinkDelay > 0 {
		select {
		case <-time.After(bc.thinkDelay):
		case <-bc.done:
			return
		}
	}

	slog.Debug("Bot is thinking", "player.id", bc.playerID, "mark", mark.String(), "difficulty", bc.difficulty)
	row, col := bc.calculator.CalculateNextMove(context.Background(), board, mark, bc.difficulty)
	if row == -1 {
		return
	}

	moveBytes, err := json.Marshal(proto.ClientToServerMessage{
		Type:     proto.TypeMove,
		Position: []int{row, col},
	})
	if err != nil {
		slog.Error("Bot failed to encode move", "player.id", bc.playerID, "error", err)
		return
	}

	select {
	case bc.incomingMoves <- &types.PlayerMove{Player: bc.player, Message: moveBytes}:
	case <-bc.done:
	}
}

// ReadMessage never yields data; bot moves go straight to the room.
func (bc *BotConnection) ReadMessage() (int, []byte, error) {
	return 0, nil, io.EOF
}

// Close drops any move still being computed.
func (bc *BotConnection) Close() error {
	bc.closeOnce.Do(func() { close(bc.done) })
	return nil
}

// NewBotPlayer creates a new player instance that is a bot.
func NewBotPlayer(difficulty string, incomingMoves chan<- *types.PlayerMove, thinkDelay time.Duration) *player.Player {
	botID := "bot-" + uuid.New().String()[:8]
	p := player.NewPlayer(botID, nil)
	p.IsBot = true
	conn := NewBotConnection(botID, difficulty, p, incomingMoves)
	conn.thinkDelay = thinkDelay
	p.Conn = conn
	return p
}
