// Package outbox drains and repairs the transactional outbox.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roomchat/roomchat-backend/internal/models"
	"github.com/roomchat/roomchat-backend/internal/store"
	"github.com/roomchat/roomchat-backend/internal/utils"
)

const workerLockKey = "outbox_worker_lock"

var outboxProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "outbox_entries_processed_total",
	Help: "Outbox entries processed, by type and result.",
}, []string{"type", "result"})

// WorkerConfig bounds one worker cycle.
type WorkerConfig struct {
	BatchSize int
	LockTTL   time.Duration
	LeaseFor  time.Duration
}

// Worker drains PENDING outbox entries: NOTIFICATION entries are
// materialized, persisted and pushed to the user channel; ANALYTICS
// entries are appended to the sink. A non-blocking distributed lock
// keeps it singleton per cluster.
type Worker struct {
	store  store.Store
	bus    store.Bus
	locker store.Locker
	logger *utils.Logger
	cfg    WorkerConfig
}

func NewWorker(st store.Store, bus store.Bus, locker store.Locker, logger *utils.Logger, cfg WorkerConfig) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.LeaseFor <= 0 {
		cfg.LeaseFor = 5 * time.Minute
	}
	return &Worker{store: st, bus: bus, locker: locker, logger: logger, cfg: cfg}
}

// Run executes one worker cycle. A run that finds the lock taken skips
// silently; the next tick tries again.
func (w *Worker) Run(ctx context.Context) error {
	unlock, ok, err := w.locker.TryLock(ctx, workerLockKey, w.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire worker lock: %w", err)
	}
	if !ok {
		w.logger.Debug(ctx, "outbox worker already running, skipping this run")
		return nil
	}
	defer func() {
		if err := unlock(ctx); err != nil {
			w.logger.Error(ctx, "failed to release worker lock: %v", err)
		}
	}()

	pending, err := w.store.ListPending(ctx, w.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list pending outbox entries: %w", err)
	}

	for _, entry := range pending {
		// CAS with a lease: a racing worker (or one holding an expired
		// lease) loses here and moves on.
		won, err := w.store.MarkInProgress(ctx, entry.ID, time.Now().UTC().Add(w.cfg.LeaseFor))
		if err != nil {
			w.logger.Error(ctx, "failed to claim outbox entry %s: %v", entry.ID, err)
			continue
		}
		if !won {
			continue
		}

		if err := w.dispatch(ctx, &entry); err != nil {
			w.fail(ctx, &entry, err)
			continue
		}
		if err := w.store.MarkSent(ctx, entry.ID, time.Now().UTC()); err != nil {
			w.logger.Error(ctx, "failed to mark outbox entry %s sent: %v", entry.ID, err)
			continue
		}
		outboxProcessed.WithLabelValues(string(entry.Type), "sent").Inc()
	}
	return nil
}

func (w *Worker) dispatch(ctx context.Context, entry *models.Outbox) error {
	switch entry.Type {
	case models.OutboxNotification:
		return w.dispatchNotification(ctx, entry)
	case models.OutboxAnalytics:
		return w.dispatchAnalytics(ctx, entry)
	default:
		return fmt.Errorf("unknown outbox type %q", entry.Type)
	}
}

func (w *Worker) dispatchNotification(ctx context.Context, entry *models.Outbox) error {
	id, err := payloadUUID(entry.Payload, "id")
	if err != nil {
		return err
	}
	userID, err := payloadUUID(entry.Payload, "user_id")
	if err != nil {
		return err
	}

	notification := &models.Notification{
		ID:        id,
		UserID:    userID,
		Type:      models.NotificationType(payloadString(entry.Payload, "type")),
		Payload:   payloadStringMap(entry.Payload, "payload"),
		CreatedAt: entry.CreatedAt,
		UpdatedAt: time.Now().UTC(),
	}
	if sourceID, err := payloadUUID(entry.Payload, "source_id"); err == nil {
		notification.SourceID = &sourceID
	}

	// Save replaces by id, so a re-delivered entry does not duplicate.
	if err := w.store.SaveNotification(ctx, notification); err != nil {
		return fmt.Errorf("failed to persist notification: %w", err)
	}

	payload := models.EventPayload{
		UserID:    userID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload: map[string]any{
			"notification_id": notification.ID.String(),
			"type":            string(notification.Type),
			"payload":         notification.Payload,
		},
	}
	if err := w.bus.SendToUser(ctx, userID, models.BroadcastNotification, payload); err != nil {
		// Best-effort push; the durable notification is already saved.
		w.logger.Error(ctx, "failed to push notification %s: %v", notification.ID, err)
	}
	return nil
}

func (w *Worker) dispatchAnalytics(ctx context.Context, entry *models.Outbox) error {
	id, err := payloadUUID(entry.Payload, "id")
	if err != nil {
		return err
	}
	event := &models.AnalyticsEvent{
		ID:        id,
		EventType: models.AnalyticsEventType(payloadString(entry.Payload, "event_type")),
		Payload:   payloadStringMap(entry.Payload, "payload"),
		CreatedAt: entry.CreatedAt,
	}
	if userID, err := payloadUUID(entry.Payload, "user_id"); err == nil {
		event.UserID = &userID
	}
	if roomID, err := payloadUUID(entry.Payload, "room_id"); err == nil {
		event.RoomID = &roomID
	}

	if err := w.store.AppendEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to append analytics event: %w", err)
	}
	return nil
}

func (w *Worker) fail(ctx context.Context, entry *models.Outbox, cause error) {
	if entry.Retries+1 >= entry.MaxRetries {
		if err := w.store.MarkFailed(ctx, entry.ID, cause.Error()); err != nil {
			w.logger.Error(ctx, "failed to mark outbox entry %s failed: %v", entry.ID, err)
			return
		}
		outboxProcessed.WithLabelValues(string(entry.Type), "failed").Inc()
		w.logger.Error(ctx, "outbox entry %s failed permanently: %v", entry.ID, cause)
		return
	}
	if err := w.store.Requeue(ctx, entry.ID, cause.Error()); err != nil {
		w.logger.Error(ctx, "failed to requeue outbox entry %s: %v", entry.ID, err)
		return
	}
	outboxProcessed.WithLabelValues(string(entry.Type), "requeued").Inc()
	w.logger.Warn(ctx, "outbox entry %s will retry: %v", entry.ID, cause)
}

func payloadString(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

func payloadUUID(payload map[string]any, key string) (uuid.UUID, error) {
	s := payloadString(payload, key)
	if s == "" {
		return uuid.Nil, fmt.Errorf("payload field %q missing", key)
	}
	return uuid.Parse(s)
}

func payloadStringMap(payload map[string]any, key string) map[string]string {
	switch raw := payload[key].(type) {
	case map[string]string:
		return raw
	case map[string]any:
		out := make(map[string]string, len(raw))
		for k, v := range raw {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
		return out
	default:
		return nil
	}
}
