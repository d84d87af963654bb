package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roomchat/roomchat-backend/internal/models"
	"github.com/roomchat/roomchat-backend/internal/store"
)

// AnalyticsService is the read side over the append-only event stream.
type AnalyticsService struct {
	queries store.AnalyticsQueries
}

func NewAnalyticsService(queries store.AnalyticsQueries) *AnalyticsService {
	return &AnalyticsService{queries: queries}
}

func (s *AnalyticsService) RoomStats(ctx context.Context, roomID uuid.UUID) (*models.RoomStats, error) {
	stats, err := s.queries.RoomStats(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load room stats: %w", err)
	}
	return stats, nil
}

func (s *AnalyticsService) UserActivity(ctx context.Context, userID uuid.UUID) (*models.UserActivity, error) {
	activity, err := s.queries.UserActivity(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user activity: %w", err)
	}
	return activity, nil
}

func (s *AnalyticsService) TopActiveRooms(ctx context.Context, limit int) ([]models.RoomStats, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}
	stats, err := s.queries.TopActiveRooms(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load top active rooms: %w", err)
	}
	return stats, nil
}

func (s *AnalyticsService) MessagesPerMinute(ctx context.Context, roomID uuid.UUID, sinceMinutes int) (int64, error) {
	if sinceMinutes < 1 || sinceMinutes > 1440 {
		sinceMinutes = 5
	}
	rate, err := s.queries.MessagesPerMinute(ctx, roomID, sinceMinutes)
	if err != nil {
		return 0, fmt.Errorf("failed to compute message rate: %w", err)
	}
	return rate, nil
}
