package service

import (
	"context"

	"ctchen222/Four-In-A-Row/internal/api/models"
	"ctchen222/Four-In-A-Row/internal/api/repository"
)

// DefaultHistoryLimit is used when the caller does not ask for a page size.
const DefaultHistoryLimit = 20

// HistoryService exposes a player's finished games.
type HistoryService interface {
	History(ctx context.Context, playerID string, limit int) ([]models.GameHistoryItem, error)
	Stats(ctx context.Context, playerID string) (*models.PlayerStats, error)
}

type historyService struct {
	historyRepo repository.HistoryRepository
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(historyRepo repository.HistoryRepository) HistoryService {
	return &historyService{historyRepo: historyRepo}
}

func (s *historyService) History(ctx context.Context, playerID string, limit int) ([]models.GameHistoryItem, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	records, err := s.historyRepo.ListByPlayer(ctx, playerID, limit)
	if err != nil {
		return nil, err
	}

	items := make([]models.GameHistoryItem, 0, len(records))
	for _, rec := range records {
		items = append(items, models.GameHistoryItem{GameRecord: rec, Outcome: rec.Outcome()})
	}
	return items, nil
}

func (s *historyService) Stats(ctx context.Context, playerID string) (*models.PlayerStats, error) {
	return s.historyRepo.Stats(ctx, playerID)
}
