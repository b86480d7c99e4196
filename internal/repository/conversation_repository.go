package repository

import (
	"context"
	"errors"
	"time"

	"support-chat/internal/domain/conversation"
	chat_errors "support-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) CreateIfAbsent(ctx context.Context, c *conversation.Conversation) (conversation.Conversation, bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pair_key"}},
			DoNothing: true,
		}).
		Create(c)
	if res.Error != nil && !isUniqueViolation(res.Error) {
		return conversation.Conversation{}, false, res.Error
	}
	if res.Error == nil && res.RowsAffected == 1 {
		return *c, true, nil
	}

	var stored conversation.Conversation
	err := r.db.WithContext(ctx).
		Where("pair_key = ?", c.PairKey).
		First(&stored).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The conflicting row was rolled back by its writer; let the caller retry.
			return conversation.Conversation{}, false, chat_errors.ErrConflict
		}
		return conversation.Conversation{}, false, err
	}
	return stored, false, nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, chat_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) GetByPair(ctx context.Context, a, b uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Where("pair_key = ?", conversation.PairKey(a, b)).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, chat_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) CountByPair(ctx context.Context, a, b uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("(user_id = ? AND admin_id = ?) OR (user_id = ? AND admin_id = ?)", a, b, b, a).
		Count(&count).Error
	return count, err
}

func (r *PostgresConversationRepository) RecordMessage(ctx context.Context, id uuid.UUID, text string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"last_message":   text,
			"total_messages": gorm.Expr("total_messages + ?", 1),
			"unread_count":   gorm.Expr("unread_count + ?", 1),
			"updated_at":     at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) ResetUnread(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		UpdateColumn("unread_count", 0)
	if res.Error != nil {
		return res.Error
	}
	return nil
}

func (r *PostgresConversationRepository) ListByAdmin(ctx context.Context, adminID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error) {
	return r.list(ctx, "admin_id = ?", adminID, page, limit)
}

func (r *PostgresConversationRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error) {
	return r.list(ctx, "user_id = ?", userID, page, limit)
}

func (r *PostgresConversationRepository) list(ctx context.Context, where string, id uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error) {
	var conversations []conversation.Conversation
	var total int64

	if err := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where(where, id).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := r.db.WithContext(ctx).
		Where(where, id).
		Order("updated_at DESC").
		Offset(pageOffset(page, limit)).
		Limit(limit).
		Find(&conversations).Error; err != nil {
		return nil, 0, err
	}

	return conversations, total, nil
}

func (r *PostgresConversationRepository) LatestByAdmin(ctx context.Context, adminID uuid.UUID) (conversation.Conversation, error) {
	return r.latest(ctx, "admin_id = ?", adminID)
}

func (r *PostgresConversationRepository) LatestByUser(ctx context.Context, userID uuid.UUID) (conversation.Conversation, error) {
	return r.latest(ctx, "user_id = ?", userID)
}

func (r *PostgresConversationRepository) latest(ctx context.Context, where string, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Where(where, id).
		Order("updated_at DESC").
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, chat_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ? AND (user_id = ? OR admin_id = ?)", conversationID, userID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
