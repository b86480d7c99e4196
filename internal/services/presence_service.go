package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"support-chat/internal/repository"
	"support-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PresenceTracker counts live connections per principal so a user with two
// tabs only goes offline when the last one closes.
type PresenceTracker interface {
	Connect(ctx context.Context, userID, connID string) (first bool, err error)
	Disconnect(ctx context.Context, userID, connID string) (last bool, err error)
	OnlineUsers(ctx context.Context) ([]string, error)
}

type PresenceService struct {
	tracker   PresenceTracker
	userRepo  repository.UserRepository
	publisher *EventPublisher
	logger    *logger.Logger
}

func NewPresenceService(tracker PresenceTracker, userRepo repository.UserRepository, publisher *EventPublisher, log *logger.Logger) *PresenceService {
	if tracker == nil {
		tracker = NewMemoryPresence()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &PresenceService{tracker: tracker, userRepo: userRepo, publisher: publisher, logger: log}
}

// Online registers connID for userID and announces the user when this is
// their first live connection.
func (s *PresenceService) Online(ctx context.Context, userID uuid.UUID, connID string) error {
	first, err := s.tracker.Connect(ctx, userID.String(), connID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}
	s.persist(ctx, userID, true)
	s.publisher.PresenceChanged(ctx, userID.String(), true)
	return nil
}

func (s *PresenceService) Offline(ctx context.Context, userID uuid.UUID, connID string) error {
	last, err := s.tracker.Disconnect(ctx, userID.String(), connID)
	if err != nil {
		return err
	}
	if !last {
		return nil
	}
	s.persist(ctx, userID, false)
	s.publisher.PresenceChanged(ctx, userID.String(), false)
	return nil
}

func (s *PresenceService) OnlineUsers(ctx context.Context) ([]string, error) {
	return s.tracker.OnlineUsers(ctx)
}

func (s *PresenceService) persist(ctx context.Context, userID uuid.UUID, online bool) {
	if s.userRepo == nil {
		return
	}
	if err := s.userRepo.UpdateOnlineStatus(ctx, userID, online, time.Now().UTC()); err != nil {
		s.logger.Warn(ctx, "update online status failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

// MemoryPresence is the single-process tracker used when redis is disabled.
type MemoryPresence struct {
	mu    sync.Mutex
	conns map[string]map[string]struct{}
}

func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{conns: make(map[string]map[string]struct{})}
}

func (m *MemoryPresence) Connect(_ context.Context, userID, connID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		m.conns[userID] = set
	}
	set[connID] = struct{}{}
	return len(set) == 1, nil
}

func (m *MemoryPresence) Disconnect(_ context.Context, userID, connID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.conns[userID]
	if !ok {
		return false, nil
	}
	delete(set, connID)
	if len(set) > 0 {
		return false, nil
	}
	delete(m.conns, userID)
	return true, nil
}

func (m *MemoryPresence) OnlineUsers(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
