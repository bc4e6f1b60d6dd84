package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kasuwa-market/kasuwa-backend/pkg/config"
	"github.com/kasuwa-market/kasuwa-backend/pkg/db/models"
	"github.com/kasuwa-market/kasuwa-backend/pkg/logger"
	"github.com/kasuwa-market/kasuwa-backend/pkg/redis"
)

type relayStore interface {
	FetchUnpublished(limit int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

// Relay drains unpublished outbox rows into per-aggregate redis streams.
// Delivery is at-least-once: a crash between XADD and MarkPublished
// republishes the event, so consumers dedupe on event_id.
type Relay struct {
	repo        relayStore
	publisher   redis.StreamPublisher
	logg        *logger.Logger
	batchSize   int
	interval    time.Duration
	maxAttempts int
}

func NewRelay(repo relayStore, publisher redis.StreamPublisher, logg *logger.Logger, cfg config.OutboxConfig) (*Relay, error) {
	if repo == nil {
		return nil, errors.New("outbox repository required")
	}
	if publisher == nil {
		return nil, errors.New("stream publisher required")
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	interval := time.Duration(cfg.PollIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Relay{
		repo:        repo,
		publisher:   publisher,
		logg:        logg,
		batchSize:   batch,
		interval:    interval,
		maxAttempts: maxAttempts,
	}, nil
}

// Run polls until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.DrainOnce(ctx); err != nil && r.logg != nil {
				r.logg.Error(ctx, "outbox drain failed", err)
			}
		}
	}
}

// DrainOnce publishes one batch of pending events in creation order.
func (r *Relay) DrainOnce(ctx context.Context) error {
	rows, err := r.repo.FetchUnpublished(r.batchSize)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if row.AttemptCount >= r.maxAttempts {
			if r.logg != nil {
				logCtx := r.logg.WithFields(ctx, map[string]any{
					"event_id":   row.ID.String(),
					"event_type": row.EventType,
					"attempts":   row.AttemptCount,
				})
				r.logg.Warn(logCtx, "outbox event exhausted delivery attempts")
			}
			continue
		}

		stream := r.publisher.EventStreamKey(string(row.AggregateType))
		_, err := r.publisher.PublishStream(ctx, stream, map[string]any{
			"event_id":       row.ID.String(),
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"payload":        string(row.Payload),
		})
		if err != nil {
			if markErr := r.repo.MarkFailed(row.ID, err); markErr != nil && r.logg != nil {
				r.logg.Error(ctx, "marking outbox event failed", markErr)
			}
			return err
		}

		if err := r.repo.MarkPublished(row.ID); err != nil {
			return err
		}
		if r.logg != nil {
			logCtx := r.logg.WithFields(ctx, map[string]any{
				"event_id":   row.ID.String(),
				"event_type": row.EventType,
				"stream":     stream,
			})
			r.logg.Info(logCtx, "outbox event published")
		}
	}
	return nil
}
