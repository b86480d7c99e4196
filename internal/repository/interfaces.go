package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"support-chat/internal/domain/conversation"
	"support-chat/internal/domain/message"
	"support-chat/internal/domain/outbox"
	"support-chat/internal/domain/user"
)

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	GetUserByName(ctx context.Context, name string) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) error
	ListAdmins(ctx context.Context) ([]user.User, error)

	UpdateOnlineStatus(ctx context.Context, userID uuid.UUID, isOnline bool, at time.Time) error

	CreateSession(ctx context.Context, s *user.Session) error
	GetSessionByID(ctx context.Context, sessionID uuid.UUID) (user.Session, error)
	RotateSession(ctx context.Context, sessionID uuid.UUID, oldHash, newHash string, expiresAt time.Time) error
	RevokeSession(ctx context.Context, sessionID uuid.UUID) error
	RevokeAllUserSessions(ctx context.Context, userID uuid.UUID) error
}

type ConversationRepository interface {
	// CreateIfAbsent inserts c unless a row with the same pair key exists and
	// returns the stored row either way. created reports whether c was inserted.
	CreateIfAbsent(ctx context.Context, c *conversation.Conversation) (stored conversation.Conversation, created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	GetByPair(ctx context.Context, a, b uuid.UUID) (conversation.Conversation, error)
	CountByPair(ctx context.Context, a, b uuid.UUID) (int64, error)

	// RecordMessage applies the summary update for one appended message as
	// column deltas in a single statement.
	RecordMessage(ctx context.Context, id uuid.UUID, text string, at time.Time) error
	ResetUnread(ctx context.Context, id uuid.UUID) error

	ListByAdmin(ctx context.Context, adminID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error)
	LatestByAdmin(ctx context.Context, adminID uuid.UUID) (conversation.Conversation, error)
	LatestByUser(ctx context.Context, userID uuid.UUID) (conversation.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)

	// PageForParticipant returns newest-first rows of the conversation that
	// involve participantID, plus the count over the whole filter.
	PageForParticipant(ctx context.Context, conversationID, participantID uuid.UUID, offset, limit int) ([]message.Message, int64, error)
	CountByConversation(ctx context.Context, conversationID uuid.UUID) (int64, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, events ...*outbox.Event) error

	// Claim returns due pending events and pushes their next attempt out by
	// lease so another relay skips them while they are in flight.
	Claim(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]outbox.Event, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error
	// MarkFailed records one failed attempt. terminal moves the event to
	// FAILED so it is never retried.
	MarkFailed(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time, reason string, terminal bool) error
	CountByStatus(ctx context.Context, status outbox.Status) (int64, error)
}
