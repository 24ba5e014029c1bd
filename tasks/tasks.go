package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"outfitapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	TypeRecordGeneration = "outfit:record"
	TypePruneHistory     = "outfit:prune"

	QueueHistory = "history"
)

type PruneHistoryPayload struct {
	RetentionDays int `json:"retention_days"`
}

func NewRecordGenerationTask(record services.GenerationRecord) (*asynq.Task, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRecordGeneration, payload), nil
}

func NewPruneHistoryTask(retentionDays int) (*asynq.Task, error) {
	payload, err := json.Marshal(PruneHistoryPayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePruneHistory, payload), nil
}

// Enqueuer is the part of *asynq.Client the recorder needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqHistoryRecorder hands generation records to the worker through the history queue.
type AsynqHistoryRecorder struct {
	Client Enqueuer
}

func (r AsynqHistoryRecorder) Record(ctx context.Context, record services.GenerationRecord) error {
	task, err := NewRecordGenerationTask(record)
	if err != nil {
		return fmt.Errorf("build record task: %w", err)
	}
	_, err = r.Client.EnqueueContext(ctx, task, asynq.MaxRetry(3), asynq.Queue(QueueHistory))
	return err
}

// HandleRecordGenerationTask uploads the result snapshot (when there is one) and
// upserts the history row keyed by request id.
func HandleRecordGenerationTask(ctx context.Context, t *asynq.Task, db *gorm.DB, storage services.SnapshotStorageProvider) error {
	var record services.GenerationRecord
	if err := json.Unmarshal(t.Payload(), &record); err != nil {
		// a malformed payload will never succeed
		return fmt.Errorf("unmarshal record payload: %v: %w", err, asynq.SkipRetry)
	}
	if record.RequestID == "" {
		return fmt.Errorf("record payload without request id: %w", asynq.SkipRetry)
	}

	row, err := record.ToModel()
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now()
	}
	row.CreatedAt = record.RecordedAt

	if row.Result != nil && storage != nil {
		key := services.SnapshotKey(record.RequestID)
		if err := storage.PutSnapshot(ctx, key, []byte(*row.Result)); err != nil {
			sentry.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("request_id", record.RequestID)
				sentry.CaptureException(err)
			})
			return err
		}
		row.SnapshotKey = &key
	}

	err = db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}},
		UpdateAll: true,
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("save generation %s: %w", record.RequestID, err)
	}

	log.Info().
		Str("request_id", record.RequestID).
		Str("status", row.Status).
		Msg("generation recorded")
	return nil
}

// HandlePruneHistoryTask deletes history rows older than the retention window.
func HandlePruneHistoryTask(ctx context.Context, t *asynq.Task, db *gorm.DB, defaultRetentionDays int) error {
	retention := defaultRetentionDays
	if len(t.Payload()) > 0 {
		var payload PruneHistoryPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("unmarshal prune payload: %v: %w", err, asynq.SkipRetry)
		}
		if payload.RetentionDays > 0 {
			retention = payload.RetentionDays
		}
	}
	if retention <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retention)
	deleted, err := services.PruneGenerations(ctx, db, cutoff)
	if err != nil {
		sentry.CaptureException(err)
		return err
	}
	log.Info().
		Int64("deleted", deleted).
		Int("retention_days", retention).
		Msg("history pruned")
	return nil
}
