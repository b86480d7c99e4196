package services

import (
	"context"
	"errors"
	"fmt"

	"support-chat/internal/domain/conversation"
	"support-chat/internal/domain/user"
	"support-chat/internal/repository"
	chat_errors "support-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// ConversationService owns conversation identity: at most one conversation
// exists per unordered participant pair.
type ConversationService struct {
	db       *gorm.DB
	userRepo repository.UserRepository
	convRepo repository.ConversationRepository
}

func NewConversationService(db *gorm.DB, userRepo repository.UserRepository, convRepo repository.ConversationRepository) *ConversationService {
	return &ConversationService{db: db, userRepo: userRepo, convRepo: convRepo}
}

type ConversationList struct {
	Conversations []ConversationView `json:"conversations"`
	Pagination    Pagination         `json:"pagination"`
}

// ResolveOrCreate returns the conversation between sender and receiver,
// creating it with firstText as its summary when none exists yet.
func (s *ConversationService) ResolveOrCreate(ctx context.Context, senderID, receiverID uuid.UUID, firstText string) (conversation.Conversation, bool, error) {
	var (
		conv    conversation.Conversation
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		conv, created, err = ResolveOrCreateTx(ctx, tx, senderID, receiverID, firstText)
		return err
	})
	if err != nil {
		return conversation.Conversation{}, false, err
	}
	return conv, created, nil
}

// ResolveOrCreateTx is ResolveOrCreate bound to the caller's transaction.
func ResolveOrCreateTx(ctx context.Context, tx *gorm.DB, senderID, receiverID uuid.UUID, firstText string) (conversation.Conversation, bool, error) {
	users := repository.NewUserRepository(tx)
	sender, receiver, err := loadPair(ctx, users, senderID, receiverID)
	if err != nil {
		return conversation.Conversation{}, false, err
	}
	return resolvePair(ctx, repository.NewConversationRepository(tx), sender, receiver, firstText)
}

// GetOrCreateSupport finds the conversation a user-side principal should talk
// in. Without an explicit admin it picks the admin of the user's most recent
// conversation, else the earliest registered admin.
func (s *ConversationService) GetOrCreateSupport(ctx context.Context, userID uuid.UUID, adminID *uuid.UUID) (ConversationView, bool, error) {
	if adminID == nil {
		latest, err := s.convRepo.LatestByUser(ctx, userID)
		switch {
		case err == nil:
			return s.withCounterpart(ctx, latest, userID), false, nil
		case !errors.Is(err, chat_errors.ErrNotFound):
			return ConversationView{}, false, err
		}

		admins, err := s.userRepo.ListAdmins(ctx)
		if err != nil {
			return ConversationView{}, false, err
		}
		if len(admins) == 0 {
			return ConversationView{}, false, fmt.Errorf("no admin available: %w", chat_errors.ErrNotFound)
		}
		adminID = &admins[0].ID
	}

	conv, created, err := s.ResolveOrCreate(ctx, userID, *adminID, "")
	if err != nil {
		return ConversationView{}, false, err
	}
	return s.withCounterpart(ctx, conv, userID), created, nil
}

func (s *ConversationService) Get(ctx context.Context, requesterID uuid.UUID, conversationID string) (ConversationView, error) {
	conv, err := s.participantConversation(ctx, requesterID, conversationID)
	if err != nil {
		return ConversationView{}, err
	}
	return s.withCounterpart(ctx, conv, requesterID), nil
}

func (s *ConversationService) MarkRead(ctx context.Context, requesterID uuid.UUID, conversationID string) error {
	conv, err := s.participantConversation(ctx, requesterID, conversationID)
	if err != nil {
		return err
	}
	return s.convRepo.ResetUnread(ctx, conv.ID)
}

func (s *ConversationService) ListForAdmin(ctx context.Context, adminID uuid.UUID, page, limit int) (ConversationList, error) {
	page, limit = normalizePage(page, limit)
	convs, total, err := s.convRepo.ListByAdmin(ctx, adminID, page, limit)
	if err != nil {
		return ConversationList{}, err
	}
	return s.buildList(ctx, adminID, convs, total, page, limit)
}

func (s *ConversationService) ListForUser(ctx context.Context, userID uuid.UUID, page, limit int) (ConversationList, error) {
	page, limit = normalizePage(page, limit)
	convs, total, err := s.convRepo.ListByUser(ctx, userID, page, limit)
	if err != nil {
		return ConversationList{}, err
	}
	return s.buildList(ctx, userID, convs, total, page, limit)
}

func (s *ConversationService) LatestForAdmin(ctx context.Context, adminID uuid.UUID) (conversation.Conversation, error) {
	return s.convRepo.LatestByAdmin(ctx, adminID)
}

// IsParticipant backs the websocket join check.
func (s *ConversationService) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	return s.convRepo.IsParticipant(ctx, conversationID, userID)
}

func (s *ConversationService) participantConversation(ctx context.Context, requesterID uuid.UUID, conversationID string) (conversation.Conversation, error) {
	if requesterID == uuid.Nil {
		return conversation.Conversation{}, chat_errors.ErrUnauthorized
	}
	convID, err := uuid.Parse(conversationID)
	if err != nil {
		return conversation.Conversation{}, chat_errors.NewValidationError("conversation_id", "must be a valid id")
	}
	conv, err := s.convRepo.GetByID(ctx, convID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !conv.HasParticipant(requesterID) {
		return conversation.Conversation{}, chat_errors.ErrForbidden
	}
	return conv, nil
}

func (s *ConversationService) buildList(ctx context.Context, viewerID uuid.UUID, convs []conversation.Conversation, total int64, page, limit int) (ConversationList, error) {
	ids := make([]uuid.UUID, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.Other(viewerID))
	}
	profiles, err := s.userRepo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return ConversationList{}, err
	}

	items := make([]ConversationView, 0, len(convs))
	for _, c := range convs {
		view := toConversationView(c)
		if u, ok := profiles[c.Other(viewerID)]; ok {
			info := toUserInfo(u)
			view.Counterpart = &info
		}
		items = append(items, view)
	}
	return ConversationList{
		Conversations: items,
		Pagination:    newPagination(total, page, limit, len(items)),
	}, nil
}

func (s *ConversationService) withCounterpart(ctx context.Context, c conversation.Conversation, viewerID uuid.UUID) ConversationView {
	view := toConversationView(c)
	if u, err := s.userRepo.GetUserByID(ctx, c.Other(viewerID)); err == nil {
		info := toUserInfo(u)
		view.Counterpart = &info
	}
	return view
}

func loadPair(ctx context.Context, users repository.UserRepository, senderID, receiverID uuid.UUID) (user.User, user.User, error) {
	if senderID == receiverID {
		return user.User{}, user.User{}, chat_errors.NewValidationError("receiver_id", "cannot start a conversation with yourself")
	}
	sender, err := users.GetUserByID(ctx, senderID)
	if err != nil {
		return user.User{}, user.User{}, fmt.Errorf("sender: %w", err)
	}
	receiver, err := users.GetUserByID(ctx, receiverID)
	if err != nil {
		return user.User{}, user.User{}, fmt.Errorf("receiver: %w", err)
	}
	return sender, receiver, nil
}

// resolvePair returns the stored conversation for the pair or creates it. An
// existing row is returned as is, even if roles changed since it was created.
func resolvePair(ctx context.Context, convs repository.ConversationRepository, sender, receiver user.User, firstText string) (conversation.Conversation, bool, error) {
	existing, err := convs.GetByPair(ctx, sender.ID, receiver.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, chat_errors.ErrNotFound) {
		return conversation.Conversation{}, false, err
	}

	userSide, adminSide, err := assignSides(sender, receiver)
	if err != nil {
		return conversation.Conversation{}, false, err
	}
	return convs.CreateIfAbsent(ctx, conversation.New(userSide.ID, adminSide.ID, firstText))
}

// assignSides puts the admin-role holder in the admin column regardless of
// who sent first.
func assignSides(a, b user.User) (user.User, user.User, error) {
	switch {
	case a.IsAdmin() && !b.IsAdmin():
		return b, a, nil
	case b.IsAdmin() && !a.IsAdmin():
		return a, b, nil
	default:
		return user.User{}, user.User{}, chat_errors.NewValidationError("receiver_id", "a conversation needs exactly one admin participant")
	}
}
