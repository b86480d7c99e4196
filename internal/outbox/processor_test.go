package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "support-chat/internal/domain/outbox"
	"support-chat/internal/repository"
	"support-chat/internal/testutil"
	"support-chat/pkg/logger"
)

type flakyPublisher struct {
	mu        sync.Mutex
	failures  int
	published []string
}

func (f *flakyPublisher) Publish(_ context.Context, channel string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, channel)
	return nil
}

func newTestProcessor(t *testing.T, pub *flakyPublisher, maxRetries int) (*Processor, repository.OutboxRepository, *time.Time) {
	t.Helper()
	repo := repository.NewOutboxRepository(testutil.OpenDB(t))
	p := NewProcessor(repo, pub, logger.NewNop(), 10, time.Second, maxRetries)
	// Events created by the test are stamped with the wall clock, so the
	// frozen clock starts just after them.
	now := time.Now().UTC().Add(time.Second)
	p.clock = func() time.Time { return now }
	return p, repo, &now
}

func TestProcessBatchDelivers(t *testing.T) {
	ctx := context.Background()
	pub := &flakyPublisher{}
	p, repo, _ := newTestProcessor(t, pub, 3)

	if err := repo.Create(ctx,
		domain.New("message.created", "message", "c1", "channel:conversation:c1", []byte(`{}`)),
		domain.New("conversation.created", "conversation", "c1", "channel:conversation:c1", []byte(`{}`)),
	); err != nil {
		t.Fatalf("create: %v", err)
	}

	if got := p.ProcessBatch(ctx); got != 2 {
		t.Fatalf("delivered = %d, want 2", got)
	}
	if got := p.ProcessBatch(ctx); got != 0 {
		t.Fatalf("second batch delivered %d", got)
	}
	done, err := repo.CountByStatus(ctx, domain.StatusCompleted)
	if err != nil || done != 2 {
		t.Fatalf("completed = %d, err %v", done, err)
	}
}

func TestProcessBatchPicksUpFreshEvents(t *testing.T) {
	ctx := context.Background()
	pub := &flakyPublisher{}
	repo := repository.NewOutboxRepository(testutil.OpenDB(t))
	p := NewProcessor(repo, pub, logger.NewNop(), 10, time.Second, 3)

	if err := repo.Create(ctx, domain.New("message.created", "message", "c1", "channel:conversation:c1", []byte(`{}`))); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := p.ProcessBatch(ctx); got != 1 {
		t.Fatalf("delivered = %d, want 1", got)
	}
	if len(pub.published) != 1 || pub.published[0] != "channel:conversation:c1" {
		t.Fatalf("published = %v", pub.published)
	}
}

func TestProcessBatchRetriesThenGivesUp(t *testing.T) {
	ctx := context.Background()
	pub := &flakyPublisher{failures: 10}
	p, repo, now := newTestProcessor(t, pub, 2)

	if err := repo.Create(ctx, domain.New("message.created", "message", "c1", "channel:conversation:c1", []byte(`{}`))); err != nil {
		t.Fatalf("create: %v", err)
	}

	if got := p.ProcessBatch(ctx); got != 0 {
		t.Fatalf("delivered = %d on failing broker", got)
	}
	if got := p.ProcessBatch(ctx); got != 0 {
		t.Fatalf("event retried before its backoff elapsed")
	}

	*now = now.Add(time.Minute)
	p.ProcessBatch(ctx)

	failed, err := repo.CountByStatus(ctx, domain.StatusFailed)
	if err != nil || failed != 1 {
		t.Fatalf("failed = %d, err %v", failed, err)
	}
	*now = now.Add(time.Hour)
	if got := p.ProcessBatch(ctx); got != 0 {
		t.Fatalf("terminal event was retried")
	}
}

func TestClaimLeasesEvents(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewOutboxRepository(testutil.OpenDB(t))
	if err := repo.Create(ctx, domain.New("message.created", "message", "c1", "channel:conversation:c1", []byte(`{}`))); err != nil {
		t.Fatalf("create: %v", err)
	}

	now := time.Now().UTC()
	first, err := repo.Claim(ctx, now, 30*time.Second, 10)
	if err != nil || len(first) != 1 {
		t.Fatalf("first claim = %d, err %v", len(first), err)
	}
	second, err := repo.Claim(ctx, now.Add(time.Second), 30*time.Second, 10)
	if err != nil || len(second) != 0 {
		t.Fatalf("leased event claimed again: %d, err %v", len(second), err)
	}
	expired, err := repo.Claim(ctx, now.Add(time.Minute), 30*time.Second, 10)
	if err != nil || len(expired) != 1 {
		t.Fatalf("expired lease not reclaimed: %d, err %v", len(expired), err)
	}
}

func TestBackoffCapped(t *testing.T) {
	p := NewProcessor(nil, nil, logger.NewNop(), 1, time.Second, 5)
	if got := p.backoff(1); got != time.Second {
		t.Fatalf("backoff(1) = %v", got)
	}
	if got := p.backoff(3); got != 4*time.Second {
		t.Fatalf("backoff(3) = %v", got)
	}
	if got := p.backoff(40); got != 5*time.Minute {
		t.Fatalf("backoff(40) = %v", got)
	}
}
