package repository

import (
	"context"
	"time"

	"support-chat/internal/domain/outbox"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresOutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &PostgresOutboxRepository{db: db}
}

func (r *PostgresOutboxRepository) Create(ctx context.Context, events ...*outbox.Event) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(events).Error
}

func (r *PostgresOutboxRepository) Claim(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]outbox.Event, error) {
	var claimed []outbox.Event
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("status = ? AND next_attempt_at <= ?", outbox.StatusPending, now).
			Order("created_at ASC").
			Limit(limit)
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(claimed))
		for i, e := range claimed {
			ids[i] = e.ID
		}
		return tx.Model(&outbox.Event{}).
			Where("id IN ?", ids).
			UpdateColumns(map[string]interface{}{
				"next_attempt_at": now.Add(lease),
				"updated_at":      now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *PostgresOutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&outbox.Event{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"status":       outbox.StatusCompleted,
			"processed_at": at,
			"updated_at":   at,
			"error":        "",
		}).Error
}

func (r *PostgresOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time, reason string, terminal bool) error {
	status := outbox.StatusPending
	if terminal {
		status = outbox.StatusFailed
	}
	return r.db.WithContext(ctx).
		Model(&outbox.Event{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"status":          status,
			"retry_count":     gorm.Expr("retry_count + ?", 1),
			"next_attempt_at": nextAttemptAt,
			"error":           reason,
			"updated_at":      time.Now().UTC(),
		}).Error
}

func (r *PostgresOutboxRepository) CountByStatus(ctx context.Context, status outbox.Status) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&outbox.Event{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}
