package repository

import (
	"context"
	"fmt"

	"ctchen222/Four-In-A-Row/internal/api/models"

	"github.com/jmoiron/sqlx"
)

// HistoryRepository stores finished games.
type HistoryRepository interface {
	Record(ctx context.Context, record *models.GameRecord) error
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]models.GameRecord, error)
	Stats(ctx context.Context, playerID string) (*models.PlayerStats, error)
}

type sqliteHistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository creates a new SQLite-based HistoryRepository.
func NewHistoryRepository(db *sqlx.DB) HistoryRepository {
	return &sqliteHistoryRepository{db: db}
}

// Record inserts a finished game. The same game delivered twice is stored once.
func (r *sqliteHistoryRepository) Record(ctx context.Context, record *models.GameRecord) error {
	query := `
	INSERT OR IGNORE INTO games (room_id, player_id, bot_id, difficulty, player_mark, winner, moves, finished_at)
	VALUES (:room_id, :player_id, :bot_id, :difficulty, :player_mark, :winner, :moves, :finished_at)`

	res, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		return fmt.Errorf("failed to record game: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		if id, err := res.LastInsertId(); err == nil {
			record.ID = id
		}
	}
	return nil
}

// ListByPlayer returns the player's most recent games first.
func (r *sqliteHistoryRepository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]models.GameRecord, error) {
	query := `
	SELECT id, room_id, player_id, bot_id, difficulty, player_mark, winner, moves, finished_at
	FROM games
	WHERE player_id = ?
	ORDER BY finished_at DESC, id DESC
	LIMIT ?`

	records := []models.GameRecord{}
	if err := r.db.SelectContext(ctx, &records, query, playerID, limit); err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	return records, nil
}

// Stats counts the player's games by outcome.
func (r *sqliteHistoryRepository) Stats(ctx context.Context, playerID string) (*models.PlayerStats, error) {
	query := `
	SELECT
		COUNT(*) AS played,
		COALESCE(SUM(CASE WHEN winner = player_mark THEN 1 ELSE 0 END), 0) AS won,
		COALESCE(SUM(CASE WHEN winner = 'draw' THEN 1 ELSE 0 END), 0) AS drawn
	FROM games
	WHERE player_id = ?`

	stats := models.PlayerStats{PlayerID: playerID}
	if err := r.db.GetContext(ctx, &stats, query, playerID); err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	stats.Lost = stats.Played - stats.Won - stats.Drawn
	return &stats, nil
}
