package outbox

import (
	"context"
	"time"

	"support-chat/internal/events"
	"support-chat/internal/repository"
	"support-chat/pkg/logger"

	"go.uber.org/zap"
)

// Processor relays committed outbox events to a broker. Delivery is at least
// once: an event whose publish succeeded but whose status update failed is
// sent again after its lease.
type Processor struct {
	repo       repository.OutboxRepository
	publisher  events.Publisher
	logger     *logger.Logger
	clock      func() time.Time
	batchSize  int
	interval   time.Duration
	lease      time.Duration
	maxRetries int
}

func NewProcessor(repo repository.OutboxRepository, publisher events.Publisher, log *logger.Logger, batchSize int, interval time.Duration, maxRetries int) *Processor {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Processor{
		repo:       repo,
		publisher:  publisher,
		logger:     log,
		clock:      time.Now,
		batchSize:  batchSize,
		interval:   interval,
		lease:      30 * time.Second,
		maxRetries: maxRetries,
	}
}

func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch claims one batch of due events and publishes them. It returns
// how many were delivered.
func (p *Processor) ProcessBatch(ctx context.Context) int {
	now := p.clock().UTC()
	batch, err := p.repo.Claim(ctx, now, p.lease, p.batchSize)
	if err != nil {
		p.logger.Warn(ctx, "outbox claim failed", zap.Error(err))
		return 0
	}

	delivered := 0
	for _, e := range batch {
		if err := p.publisher.Publish(ctx, e.Channel, e.Payload); err != nil {
			attempt := e.RetryCount + 1
			terminal := attempt >= p.maxRetries
			if markErr := p.repo.MarkFailed(ctx, e.ID, now.Add(p.backoff(attempt)), err.Error(), terminal); markErr != nil {
				p.logger.Error(ctx, "outbox mark failed", zap.String("event_id", e.ID.String()), zap.Error(markErr))
			}
			p.logger.Warn(ctx, "outbox publish failed",
				zap.String("event_id", e.ID.String()),
				zap.String("event", e.EventType),
				zap.Int("attempt", attempt),
				zap.Bool("gave_up", terminal),
				zap.Error(err))
			continue
		}

		if err := p.repo.MarkProcessed(ctx, e.ID, p.clock().UTC()); err != nil {
			p.logger.Error(ctx, "outbox mark processed", zap.String("event_id", e.ID.String()), zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}

// backoff doubles the poll interval per attempt, capped at five minutes.
func (p *Processor) backoff(attempt int) time.Duration {
	d := p.interval
	for i := 1; i < attempt && d < 5*time.Minute; i++ {
		d *= 2
	}
	if d > 5*time.Minute {
		d = 5 * time.Minute
	}
	return d
}
