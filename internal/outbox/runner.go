package outbox

import (
	"context"

	"ballot-engine/config"
	"ballot-engine/internal/events"
	"ballot-engine/internal/repository"
	"ballot-engine/pkg/logger"
)

type Runner struct {
	processor *Processor
}

func NewRunner(processor *Processor) *Runner {
	return &Runner{processor: processor}
}

func (r *Runner) Start(ctx context.Context) {
	go r.processor.Run(ctx)
}

func DefaultProcessor(cfg *config.Config, repo repository.OutboxRepository, publisher events.Publisher, resolver *events.StreamResolver, l *logger.Logger) *Processor {
	return NewProcessor(repo, publisher, resolver, l, cfg.OutboxBatchSize, cfg.OutboxInterval, cfg.OutboxMaxRetries).
		WithLease(cfg.OutboxLease)
}
