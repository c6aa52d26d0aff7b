package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ctchen222/Four-In-A-Row/internal/player"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("repository")

// ErrPlayerInGame is returned when a player already has a connected session.
var ErrPlayerInGame = errors.New("player is already in a game")

const (
	fieldRoomID           = "room_id"
	fieldConnectionStatus = "connection_status"
)

// PlayerRepository tracks which room each connected player is playing in.
type PlayerRepository interface {
	Claim(ctx context.Context, id, roomID string) error
	Release(ctx context.Context, id, roomID string) error
	FindRoom(ctx context.Context, id string) (roomID string, status player.PlayerStatus, err error)
}

type redisPlayerRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPlayerRepository creates a new Redis-based PlayerRepository.
func NewPlayerRepository(rdb *redis.Client, ttl time.Duration) PlayerRepository {
	return &redisPlayerRepository{
		rdb: rdb,
		ttl: ttl,
	}
}

func playerKey(id string) string {
	return fmt.Sprintf("player:%s", id)
}

// Claim binds a player to roomID, failing with ErrPlayerInGame while another
// session for the same player is still connected.
func (r *redisPlayerRepository) Claim(ctx context.Context, id, roomID string) error {
	ctx, span := tracer.Start(ctx, "PlayerRepository.Claim")
	defer span.End()
	span.SetAttributes(attribute.String("player.id", id), attribute.String("room.id", roomID))

	key := playerKey(id)
	txf := func(tx *redis.Tx) error {
		status, err := tx.HGet(ctx, key, fieldConnectionStatus).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if player.PlayerStatus(status) == player.StatusConnected {
			return ErrPlayerInGame
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldRoomID, roomID,
				fieldConnectionStatus, string(player.StatusConnected),
			)
			pipe.Expire(ctx, key, r.ttl)
			return nil
		})
		return err
	}

	if err := r.rdb.Watch(ctx, txf, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			// Someone else claimed the player between WATCH and EXEC.
			err = ErrPlayerInGame
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to claim player")
		return err
	}
	return nil
}

// Release marks the player as disconnected if it is still bound to roomID.
func (r *redisPlayerRepository) Release(ctx context.Context, id, roomID string) error {
	ctx, span := tracer.Start(ctx, "PlayerRepository.Release")
	defer span.End()
	span.SetAttributes(attribute.String("player.id", id), attribute.String("room.id", roomID))

	key := playerKey(id)
	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldRoomID).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if current != roomID {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldConnectionStatus, string(player.StatusDisconnected))
			pipe.Expire(ctx, key, r.ttl)
			return nil
		})
		return err
	}

	if err := r.rdb.Watch(ctx, txf, key); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to release player")
		return fmt.Errorf("failed to release player: %w", err)
	}
	return nil
}

// FindRoom returns the last room a player was bound to and whether it is still connected.
func (r *redisPlayerRepository) FindRoom(ctx context.Context, id string) (string, player.PlayerStatus, error) {
	ctx, span := tracer.Start(ctx, "PlayerRepository.FindRoom")
	defer span.End()

	data, err := r.rdb.HGetAll(ctx, playerKey(id)).Result()
	if err != nil {
		return "", "", fmt.Errorf("failed to get player from redis: %w", err)
	}
	return data[fieldRoomID], player.PlayerStatus(data[fieldConnectionStatus]), nil
}
