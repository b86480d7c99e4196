package services

import (
	"context"
	"sync"
	"testing"

	"support-chat/config"
	"support-chat/internal/domain/user"
	"support-chat/internal/events"
	"support-chat/internal/repository"
	"support-chat/internal/testutil"
	"support-chat/pkg/logger"

	"gorm.io/gorm"
)

type published struct {
	channel string
	payload []byte
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Publish(_ context.Context, channel string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{channel: channel, payload: payload})
	return nil
}

func (r *recorder) all() []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]published(nil), r.events...)
}

var _ events.Publisher = (*recorder)(nil)

type fixture struct {
	db       *gorm.DB
	users    repository.UserRepository
	convs    repository.ConversationRepository
	messages repository.MessageRepository
	realtime *recorder
	pub      *EventPublisher
	msgSvc   *MessageService
	convSvc  *ConversationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, testutil.OpenDB(t))
}

func newFixtureOn(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	f := &fixture{
		db:       db,
		users:    repository.NewUserRepository(db),
		convs:    repository.NewConversationRepository(db),
		messages: repository.NewMessageRepository(db),
		realtime: &recorder{},
	}
	f.pub = NewEventPublisher(f.realtime, nil, logger.NewNop())
	f.msgSvc = NewMessageService(db, f.users, f.convs, f.messages, f.pub, logger.NewNop())
	f.convSvc = NewConversationService(db, f.users, f.convs)
	return f
}

func (f *fixture) authService() *AuthService {
	return NewAuthService(f.users, f.convs, &config.Config{
		JWTSecret:     "test-secret",
		JWTExpiryMin:  15,
		RefreshExpiry: 7,
	})
}

func principalOf(u user.User) Principal {
	return Principal{ID: u.ID, DisplayName: u.DisplayName, Roles: u.Roles()}
}
