package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/coursehub/coursehub-backend/pkg/logger"
)

type orderExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// OrderExpiryJobParams configure the pending order expiry job.
type OrderExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    orderExpirer
	TTL       time.Duration
	BatchSize int
}

// NewOrderExpiryJob cancels orders left pending longer than TTL.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("pending order ttl must be positive")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &orderExpiryJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    params.TTL,
		batch:  batch,
		now:    utcNow,
	}, nil
}

type orderExpiryJob struct {
	logg   *logger.Logger
	orders orderExpirer
	ttl    time.Duration
	batch  int
	now    clock
}

func (j *orderExpiryJob) Name() string { return "pending-order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	total := 0
	for {
		n, err := j.orders.ExpireStale(ctx, cutoff, j.batch)
		total += n
		if err != nil {
			return fmt.Errorf("expire pending orders: %w", err)
		}
		// A short batch means nothing older than cutoff is left.
		if n < j.batch {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"orders_expired": total,
	}), "pending order expiry complete")
	return nil
}
