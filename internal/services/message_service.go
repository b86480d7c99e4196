package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"support-chat/internal/domain/conversation"
	"support-chat/internal/domain/message"
	"support-chat/internal/domain/user"
	"support-chat/internal/repository"
	chat_errors "support-chat/pkg/errors"
	"support-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MaxMessageRunes = 4000
	sendAttempts    = 2
)

// MessageService appends messages and reads them back. Each append writes the
// message row and the conversation summary in one transaction.
type MessageService struct {
	db          *gorm.DB
	userRepo    repository.UserRepository
	convRepo    repository.ConversationRepository
	messageRepo repository.MessageRepository
	publisher   *EventPublisher
	logger      *logger.Logger
}

func NewMessageService(db *gorm.DB, userRepo repository.UserRepository, convRepo repository.ConversationRepository, messageRepo repository.MessageRepository, publisher *EventPublisher, log *logger.Logger) *MessageService {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &MessageService{
		db:          db,
		userRepo:    userRepo,
		convRepo:    convRepo,
		messageRepo: messageRepo,
		publisher:   publisher,
		logger:      log,
	}
}

type SendInput struct {
	ReceiverID     string
	ConversationID string
	Text           string
}

type SendResult struct {
	Message             MessageView      `json:"message"`
	Conversation        ConversationView `json:"conversation"`
	ConversationCreated bool             `json:"conversation_created"`
}

type Pagination struct {
	TotalCount  int64 `json:"total_count"`
	CurrentPage int   `json:"current_page"`
	TotalPages  int64 `json:"total_pages"`
	HasNextPage bool  `json:"has_next_page"`
}

type MessagePage struct {
	Messages   []MessageView `json:"messages"`
	Pagination Pagination    `json:"pagination"`
}

type sendRequest struct {
	text           string
	receiverID     uuid.UUID
	conversationID *uuid.UUID
}

func (s *MessageService) Send(ctx context.Context, sender Principal, in SendInput) (SendResult, error) {
	if sender.ID == uuid.Nil {
		return SendResult{}, chat_errors.ErrUnauthorized
	}
	req, err := validateSend(in)
	if err != nil {
		return SendResult{}, err
	}

	senderUser, receiverUser, err := loadPair(ctx, s.userRepo, sender.ID, req.receiverID)
	if err != nil {
		return SendResult{}, err
	}

	var (
		msg     message.Message
		conv    conversation.Conversation
		created bool
	)
	for attempt := 1; ; attempt++ {
		msg, conv, created, err = s.appendOnce(ctx, senderUser, receiverUser, req)
		if err == nil {
			break
		}
		if !retryable(err) {
			return SendResult{}, err
		}
		if attempt >= sendAttempts {
			s.logger.Warn(ctx, "message append gave up", zap.Int("attempts", attempt), zap.Error(err))
			return SendResult{}, fmt.Errorf("append message: %w", chat_errors.ErrConflict)
		}
		s.logger.Info(ctx, "retrying message append", zap.Int("attempt", attempt), zap.Error(err))
	}

	view := toMessageView(msg, toSenderInfo(senderUser))
	s.publisher.MessageCreated(ctx, view, created)

	return SendResult{
		Message:             view,
		Conversation:        toConversationView(conv),
		ConversationCreated: created,
	}, nil
}

func (s *MessageService) appendOnce(ctx context.Context, sender, receiver user.User, req sendRequest) (message.Message, conversation.Conversation, bool, error) {
	var (
		msg     *message.Message
		conv    conversation.Conversation
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		convs := repository.NewConversationRepository(tx)
		msgs := repository.NewMessageRepository(tx)

		var err error
		if req.conversationID != nil {
			conv, err = convs.GetByID(ctx, *req.conversationID)
			if err != nil {
				return err
			}
			if !conv.HasParticipant(sender.ID) {
				return chat_errors.ErrForbidden
			}
		} else {
			conv, created, err = resolvePair(ctx, convs, sender, receiver, req.text)
			if err != nil {
				return err
			}
		}

		msg, err = message.New(conv.ID, sender.ID, conv.Other(sender.ID), req.text)
		if err != nil {
			return err
		}
		if err := msgs.Create(ctx, msg); err != nil {
			return err
		}
		if err := convs.RecordMessage(ctx, conv.ID, req.text, msg.CreatedAt); err != nil {
			return err
		}
		if s.publisher.UsesOutbox() {
			pending, err := outboxEvents(toMessageView(*msg, toSenderInfo(sender)), created)
			if err != nil {
				return err
			}
			if err := repository.NewOutboxRepository(tx).Create(ctx, pending...); err != nil {
				return err
			}
		}
		conv, err = convs.GetByID(ctx, conv.ID)
		return err
	})
	if err != nil {
		return message.Message{}, conversation.Conversation{}, false, err
	}
	return *msg, conv, created, nil
}

// Page returns one page of a conversation in chronological order. Only rows
// the requester sent or received are visible.
func (s *MessageService) Page(ctx context.Context, requesterID uuid.UUID, conversationID string, page, limit int) (MessagePage, error) {
	if requesterID == uuid.Nil {
		return MessagePage{}, chat_errors.ErrUnauthorized
	}
	convID, err := uuid.Parse(conversationID)
	if err != nil {
		return MessagePage{}, chat_errors.NewValidationError("conversation_id", "must be a valid id")
	}
	page, limit = normalizePage(page, limit)
	offset := (page - 1) * limit

	rows, total, err := s.messageRepo.PageForParticipant(ctx, convID, requesterID, offset, limit)
	if err != nil {
		return MessagePage{}, err
	}

	conv, err := s.convRepo.GetByID(ctx, convID)
	if err != nil {
		return MessagePage{}, err
	}
	// an empty page for a non-party must not look like an empty conversation
	if total == 0 && !conv.HasParticipant(requesterID) {
		return MessagePage{}, chat_errors.ErrForbidden
	}

	profiles, err := s.userRepo.GetUsersByIDs(ctx, []uuid.UUID{conv.UserID, conv.AdminID})
	if err != nil {
		return MessagePage{}, err
	}

	views := make([]MessageView, len(rows))
	for i, m := range rows {
		var sender *SenderInfo
		if u, ok := profiles[m.SenderID]; ok {
			sender = toSenderInfo(u)
		}
		// rows come newest first
		views[len(rows)-1-i] = toMessageView(m, sender)
	}

	return MessagePage{
		Messages:   views,
		Pagination: newPagination(total, page, limit, len(rows)),
	}, nil
}

func validateSend(in SendInput) (sendRequest, error) {
	vErr := &chat_errors.ValidationError{}
	req := sendRequest{text: strings.TrimSpace(in.Text)}

	switch n := utf8.RuneCountInString(req.text); {
	case n == 0:
		vErr.Add("text", "message is required")
	case n > MaxMessageRunes:
		vErr.Add("text", fmt.Sprintf("message must be at most %d characters", MaxMessageRunes))
	}

	receiverID, err := uuid.Parse(in.ReceiverID)
	if err != nil {
		vErr.Add("receiver_id", "must be a valid id")
	}
	req.receiverID = receiverID

	if in.ConversationID != "" {
		convID, err := uuid.Parse(in.ConversationID)
		if err != nil {
			vErr.Add("conversation_id", "must be a valid id")
		} else {
			req.conversationID = &convID
		}
	}

	if len(vErr.Fields) > 0 {
		return sendRequest{}, vErr
	}
	return req, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func newPagination(total int64, page, limit, returned int) Pagination {
	skip := int64((page - 1) * limit)
	return Pagination{
		TotalCount:  total,
		CurrentPage: page,
		TotalPages:  (total + int64(limit) - 1) / int64(limit),
		HasNextPage: skip+int64(returned) < total,
	}
}
