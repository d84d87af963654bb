package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/roomchat/roomchat-backend/internal/models"
)

// Analytics is append-only; aggregations below are computed at read time.
func (s *Store) AppendEvent(ctx context.Context, event *models.AnalyticsEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal analytics payload: %w", err)
	}
	_, err = s.q.Exec(ctx,
		`INSERT INTO analytics_events (id, event_type, user_id, room_id, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		event.ID, event.EventType, event.UserID, event.RoomID, payload, event.CreatedAt,
	)
	return err
}

func (s *Store) RoomStats(ctx context.Context, roomID uuid.UUID) (*models.RoomStats, error) {
	stats := models.RoomStats{RoomID: roomID}
	err := s.q.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE event_type = $2),
		   COUNT(DISTINCT user_id) FILTER (WHERE event_type = $3),
		   COALESCE(MAX(created_at), 'epoch'::timestamptz)
		 FROM analytics_events WHERE room_id = $1`,
		roomID, models.EventMessageSent, models.EventUserJoinedRoom,
	).Scan(&stats.TotalMessages, &stats.UsersAmount, &stats.LastUpdated)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *Store) UserActivity(ctx context.Context, userID uuid.UUID) (*models.UserActivity, error) {
	var activity models.UserActivity
	err := s.q.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE event_type = $2),
		   COUNT(*) FILTER (WHERE event_type = $3)
		 FROM analytics_events WHERE user_id = $1`,
		userID, models.EventMessageSent, models.EventUserJoinedRoom,
	).Scan(&activity.Messages, &activity.RoomsJoined)
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

func (s *Store) TopActiveRooms(ctx context.Context, limit int) ([]models.RoomStats, error) {
	rows, err := s.q.Query(ctx,
		`SELECT room_id,
		   COUNT(*) FILTER (WHERE event_type = $1),
		   COUNT(DISTINCT user_id) FILTER (WHERE event_type = $2),
		   MAX(created_at)
		 FROM analytics_events
		 WHERE room_id IS NOT NULL
		 GROUP BY room_id
		 ORDER BY COUNT(*) FILTER (WHERE event_type = $1) DESC
		 LIMIT $3`,
		models.EventMessageSent, models.EventUserJoinedRoom, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.RoomStats
	for rows.Next() {
		var st models.RoomStats
		if err := rows.Scan(&st.RoomID, &st.TotalMessages, &st.UsersAmount, &st.LastUpdated); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *Store) MessagesPerMinute(ctx context.Context, roomID uuid.UUID, sinceMinutes int) (int64, error) {
	if sinceMinutes <= 0 {
		sinceMinutes = 1
	}
	var total int64
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM analytics_events
		 WHERE room_id = $1 AND event_type = $2 AND created_at >= NOW() - ($3 || ' minutes')::interval`,
		roomID, models.EventMessageSent, sinceMinutes,
	).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total / int64(sinceMinutes), nil
}
