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

const repairLockKey = "outbox_repair_lock"

var outboxRepaired = promauto.NewCounter(prometheus.CounterOpts{
	Name: "outbox_entries_repaired_total",
	Help: "Missing analytics outbox entries re-inserted by the repair job.",
})

// Every recent message is expected to own one outbox entry per prefix;
// the unique dedup index makes re-inserts no-ops.
var repairMapping = []struct {
	prefix    string
	eventType models.AnalyticsEventType
}{
	{"message_sent", models.EventMessageSent},
	{"message_deleted", models.EventMessageDeleted},
	{"message_edited", models.EventMessageEdited},
}

// RepairConfig bounds one repair sweep.
type RepairConfig struct {
	Window     time.Duration
	BatchSize  int
	BatchDelay time.Duration
	LockTTL    time.Duration
}

// RepairJob reconciles recent messages against the outbox by dedup key,
// re-enqueuing missing analytics entries.
type RepairJob struct {
	store  store.Store
	locker store.Locker
	logger *utils.Logger
	cfg    RepairConfig
}

func NewRepairJob(st store.Store, locker store.Locker, logger *utils.Logger, cfg RepairConfig) *RepairJob {
	if cfg.Window <= 0 {
		cfg.Window = 3 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = 100 * time.Millisecond
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &RepairJob{store: st, locker: locker, logger: logger, cfg: cfg}
}

// Run executes one sweep over the repair window.
func (j *RepairJob) Run(ctx context.Context) error {
	unlock, ok, err := j.locker.TryLock(ctx, repairLockKey, j.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire repair lock: %w", err)
	}
	if !ok {
		j.logger.Debug(ctx, "outbox repair already running, skipping this run")
		return nil
	}
	defer func() {
		if err := unlock(ctx); err != nil {
			j.logger.Error(ctx, "failed to release repair lock: %v", err)
		}
	}()

	since := time.Now().UTC().Add(-j.cfg.Window)
	repaired := 0
	var cursor *store.MessageCursor

	for {
		messages, err := j.store.GetRecentGlobal(ctx, since, j.cfg.BatchSize, cursor)
		if err != nil {
			return fmt.Errorf("failed to load recent messages: %w", err)
		}
		if len(messages) == 0 {
			break
		}

		keys := make([]string, 0, len(messages)*len(repairMapping))
		for _, msg := range messages {
			for _, m := range repairMapping {
				keys = append(keys, fmt.Sprintf("%s:%s", m.prefix, msg.ID))
			}
		}
		existing, err := j.store.ExistsByDedupKeys(ctx, keys)
		if err != nil {
			return fmt.Errorf("failed to check dedup keys: %w", err)
		}

		for _, msg := range messages {
			for _, m := range repairMapping {
				dedupKey := fmt.Sprintf("%s:%s", m.prefix, msg.ID)
				if existing[dedupKey] {
					continue
				}
				if err := j.insertMissing(ctx, &msg, m.eventType, dedupKey); err != nil {
					j.logger.Error(ctx, "failed to repair outbox entry %s: %v", dedupKey, err)
					continue
				}
				repaired++
				outboxRepaired.Inc()
			}
		}

		last := messages[len(messages)-1]
		cursor = &store.MessageCursor{CreatedAt: last.CreatedAt, ID: last.ID}
		if len(messages) < j.cfg.BatchSize {
			break
		}

		select {
		case <-time.After(j.cfg.BatchDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if repaired > 0 {
		j.logger.Info(ctx, "outbox repair re-inserted %d entries", repaired)
	}
	return nil
}

func (j *RepairJob) insertMissing(ctx context.Context, msg *models.Message, eventType models.AnalyticsEventType, dedupKey string) error {
	return j.store.SaveOutbox(ctx, &models.Outbox{
		ID:     uuid.New(),
		Type:   models.OutboxAnalytics,
		Status: models.OutboxPending,
		Payload: map[string]any{
			"id":         uuid.NewString(),
			"event_type": string(eventType),
			"user_id":    msg.UserID.String(),
			"room_id":    msg.RoomID.String(),
			"payload":    map[string]string{"message": msg.Content},
		},
		DedupKey:   dedupKey,
		MaxRetries: 5,
		CreatedAt:  time.Now().UTC(),
	})
}
