package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ctchen222/Four-In-A-Row/internal/game"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrGameNotFound   = errors.New("game not found")
	ErrNotPlayersTurn = errors.New("not player's turn")
)

// maxTxRetries bounds how often Update retries after a concurrent write to the same room.
const maxTxRetries = 3

// GameRepository defines the interface for game data operations.
type GameRepository interface {
	Create(ctx context.Context, roomID, humanID, botID, difficulty string, first game.Cell) error
	FindByID(ctx context.Context, id string) (*game.State, error)
	Update(ctx context.Context, id string, mark game.Cell, row, col int) (*game.State, error)
	Delete(ctx context.Context, id string) error
}

type redisGameRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewGameRepository creates a new Redis-based GameRepository whose rooms expire after ttl.
func NewGameRepository(rdb *redis.Client, ttl time.Duration) GameRepository {
	return &redisGameRepository{rdb: rdb, ttl: ttl}
}

func roomKey(id string) string {
	return fmt.Sprintf("room:%s", id)
}

// Create stores a fresh game, replacing whatever the room held before.
func (r *redisGameRepository) Create(ctx context.Context, roomID, humanID, botID, difficulty string, first game.Cell) error {
	ctx, span := tracer.Start(ctx, "GameRepository.Create")
	defer span.End()
	span.SetAttributes(attribute.String("room.id", roomID), attribute.String("game.first", first.String()))

	boardJSON, err := json.Marshal(game.NewBoard())
	if err != nil {
		return fmt.Errorf("failed to marshal initial board: %w", err)
	}

	key := roomKey(roomID)
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		game.FieldBoard, boardJSON,
		game.FieldHumanID, humanID,
		game.FieldBotID, botID,
		game.FieldDifficulty, difficulty,
		game.FieldNextTurn, first.String(),
		game.FieldWinner, "",
		game.FieldLastMove, "",
		game.FieldMoves, 0,
		game.FieldStatus, game.StatusInProgress,
	)
	pipe.Expire(ctx, key, r.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create game")
		return fmt.Errorf("failed to create game in redis: %w", err)
	}
	return nil
}

// FindByID retrieves the current game state from Redis.
func (r *redisGameRepository) FindByID(ctx context.Context, id string) (*game.State, error) {
	ctx, span := tracer.Start(ctx, "GameRepository.FindByID")
	defer span.End()

	data, err := r.rdb.HGetAll(ctx, roomKey(id)).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get game state")
		return nil, fmt.Errorf("failed to get game state from redis: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrGameNotFound
	}
	return decodeState(data)
}

// Update applies a player's move to the game state in Redis.
// The move is replayed through game.Game inside a WATCH transaction, so rule
// violations come back as the game package's errors.
func (r *redisGameRepository) Update(ctx context.Context, id string, mark game.Cell, row, col int) (*game.State, error) {
	ctx, span := tracer.Start(ctx, "GameRepository.Update")
	defer span.End()
	span.SetAttributes(
		attribute.String("room.id", id),
		attribute.String("move.mark", mark.String()),
		attribute.Int("move.row", row),
		attribute.Int("move.col", col),
	)

	key := roomKey(id)
	var updated *game.State

	txf := func(tx *redis.Tx) error {
		data, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return ErrGameNotFound
		}

		state, err := decodeState(data)
		if err != nil {
			return err
		}
		if state.IsOver() {
			return game.ErrGameOver
		}
		if state.CurrentTurn != mark {
			return ErrNotPlayersTurn
		}

		g := state.Game()
		if err := g.Move(row, col); err != nil {
			return err
		}

		boardJSON, err := json.Marshal(g.Board)
		if err != nil {
			return fmt.Errorf("failed to marshal updated board: %w", err)
		}
		lastMoveJSON, err := json.Marshal(g.LastMove)
		if err != nil {
			return fmt.Errorf("failed to marshal last move: %w", err)
		}
		status := game.StatusInProgress
		if g.IsOver() {
			status = game.StatusFinished
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				game.FieldBoard, boardJSON,
				game.FieldNextTurn, g.CurrentTurn.String(),
				game.FieldWinner, g.Winner.String(),
				game.FieldLastMove, lastMoveJSON,
				game.FieldMoves, g.Moves,
				game.FieldStatus, status,
			)
			pipe.Expire(ctx, key, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}

		state.Board = g.Board
		state.CurrentTurn = g.CurrentTurn
		state.Winner = g.Winner
		state.IsDraw = g.IsDraw()
		state.LastMove = g.LastMove
		state.Moves = g.Moves
		updated = state
		return nil
	}

	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = r.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to apply move")
		return nil, err
	}
	return updated, nil
}

// Delete removes a room's game state.
func (r *redisGameRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "GameRepository.Delete")
	defer span.End()

	if err := r.rdb.Del(ctx, roomKey(id)).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete game")
		return fmt.Errorf("failed to delete game from redis: %w", err)
	}
	return nil
}

func decodeState(data map[string]string) (*game.State, error) {
	var board game.Board
	if err := json.Unmarshal([]byte(data[game.FieldBoard]), &board); err != nil {
		return nil, fmt.Errorf("failed to unmarshal board: %w", err)
	}

	next, err := game.ParseMark(data[game.FieldNextTurn])
	if err != nil {
		return nil, fmt.Errorf("failed to parse next turn: %w", err)
	}
	winner, err := game.ParseMark(data[game.FieldWinner])
	if err != nil {
		return nil, fmt.Errorf("failed to parse winner: %w", err)
	}

	var lastMove *game.Position
	if raw := data[game.FieldLastMove]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &lastMove); err != nil {
			return nil, fmt.Errorf("failed to unmarshal last move: %w", err)
		}
	}

	moves := 0
	if raw := data[game.FieldMoves]; raw != "" {
		moves, err = strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse move count: %w", err)
		}
	}

	return &game.State{
		Board:       board,
		CurrentTurn: next,
		Winner:      winner,
		IsDraw:      winner == game.Empty && board.IsFull(),
		LastMove:    lastMove,
		Moves:       moves,
		HumanID:     data[game.FieldHumanID],
		BotID:       data[game.FieldBotID],
		Difficulty:  data[game.FieldDifficulty],
	}, nil
}
