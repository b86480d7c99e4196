package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"support-chat/internal/domain/user"
	chat_errors "support-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	res := r.db.WithContext(ctx).Create(u)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return chat_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, chat_errors.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *PostgresUserRepository) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]user.User, error) {
	out := make(map[uuid.UUID]user.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []user.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *PostgresUserRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, chat_errors.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *PostgresUserRepository) GetUserByName(ctx context.Context, name string) (user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).
		Where("name = ?", strings.ToLower(strings.TrimSpace(name))).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, chat_errors.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *PostgresUserRepository) UpdateUser(ctx context.Context, u user.User) error {
	res := r.db.WithContext(ctx).Save(&u)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return chat_errors.ErrAlreadyExists
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepository) ListAdmins(ctx context.Context) ([]user.User, error) {
	var admins []user.User
	err := r.db.WithContext(ctx).
		Where("admin_role = ?", int(user.RoleAdmin)).
		Order("created_at ASC").
		Find(&admins).Error
	if err != nil {
		return nil, err
	}
	return admins, nil
}

func (r *PostgresUserRepository) UpdateOnlineStatus(ctx context.Context, userID uuid.UUID, isOnline bool, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&user.User{}).
		Where("id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"is_online": isOnline,
			"last_seen": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepository) CreateSession(ctx context.Context, s *user.Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *PostgresUserRepository) GetSessionByID(ctx context.Context, sessionID uuid.UUID) (user.Session, error) {
	var s user.Session
	err := r.db.WithContext(ctx).Where("id = ?", sessionID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.Session{}, chat_errors.ErrNotFound
		}
		return user.Session{}, err
	}
	return s, nil
}

// RotateSession swaps the refresh hash only if it still matches oldHash, so two
// concurrent refreshes with the same token cannot both succeed.
func (r *PostgresUserRepository) RotateSession(ctx context.Context, sessionID uuid.UUID, oldHash, newHash string, expiresAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&user.Session{}).
		Where("id = ? AND refresh_token_hash = ? AND is_revoked = ?", sessionID, oldHash, false).
		Updates(map[string]interface{}{
			"refresh_token_hash": newHash,
			"expires_at":         expiresAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrUnauthorized
	}
	return nil
}

func (r *PostgresUserRepository) RevokeSession(ctx context.Context, sessionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&user.Session{}).
		Where("id = ?", sessionID).
		Update("is_revoked", true).Error
}

func (r *PostgresUserRepository) RevokeAllUserSessions(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&user.Session{}).
		Where("user_id = ? AND is_revoked = ?", userID, false).
		Update("is_revoked", true).Error
}
