package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-backend/pkg/db/dbtest"
	"github.com/coursehub/coursehub-backend/pkg/db/models"
	"github.com/coursehub/coursehub-backend/pkg/enums"
	"github.com/coursehub/coursehub-backend/pkg/logger"
	"github.com/coursehub/coursehub-backend/pkg/outbox"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeExpirer struct {
	batches []int
	cutoffs []time.Time
	err     error
}

func (f *fakeExpirer) ExpireStale(_ context.Context, cutoff time.Time, limit int) (int, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	if len(f.batches) == 0 {
		return 0, f.err
	}
	n := f.batches[0]
	f.batches = f.batches[1:]
	if n > limit {
		n = limit
	}
	return n, nil
}

func TestOrderExpiryJobDrainsBatches(t *testing.T) {
	orders := &fakeExpirer{batches: []int{2, 2, 1}}
	job, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger:    logger.Nop(),
		Orders:    orders,
		TTL:       72 * time.Hour,
		BatchSize: 2,
	})
	require.NoError(t, err)
	job.(*orderExpiryJob).now = func() time.Time { return fixedNow }

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, orders.cutoffs, 3)
	require.Equal(t, fixedNow.Add(-72*time.Hour), orders.cutoffs[0])
	require.Equal(t, "pending-order-expiry", job.Name())
}

func TestOrderExpiryJobPropagatesError(t *testing.T) {
	job, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger: logger.Nop(),
		Orders: &fakeExpirer{err: errors.New("db down")},
		TTL:    time.Hour,
	})
	require.NoError(t, err)
	require.Error(t, job.Run(context.Background()))
}

func TestOrderExpiryJobRequiresTTL(t *testing.T) {
	_, err := NewOrderExpiryJob(OrderExpiryJobParams{Logger: logger.Nop(), Orders: &fakeExpirer{}})
	require.Error(t, err)
}

type fakePruner struct {
	batches []int64
	cutoff  time.Time
	calls   int
}

func (f *fakePruner) prune(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	if len(f.batches) == 0 {
		return 0, nil
	}
	n := f.batches[0]
	f.batches = f.batches[1:]
	return n, nil
}

func TestRetentionJobDeletesUntilShortBatch(t *testing.T) {
	repo := &fakePruner{batches: []int64{3, 1}}
	job, err := NewRetentionJob(RetentionJobParams{
		Name:      "webhook-log-retention",
		Logger:    logger.Nop(),
		Prune:     repo.prune,
		Retention: 90 * 24 * time.Hour,
		BatchSize: 3,
	})
	require.NoError(t, err)
	job.(*retentionJob).now = func() time.Time { return fixedNow }

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 2, repo.calls)
	require.Equal(t, fixedNow.Add(-90*24*time.Hour), repo.cutoff)
	require.Equal(t, "webhook-log-retention", job.Name())
}

func TestRetentionJobValidatesParams(t *testing.T) {
	repo := &fakePruner{}
	_, err := NewRetentionJob(RetentionJobParams{Logger: logger.Nop(), Prune: repo.prune, Retention: time.Hour})
	require.Error(t, err, "name required")
	_, err = NewRetentionJob(RetentionJobParams{Name: "x", Logger: logger.Nop(), Prune: repo.prune})
	require.Error(t, err, "retention required")
	_, err = NewRetentionJob(RetentionJobParams{Name: "x", Logger: logger.Nop(), Retention: time.Hour})
	require.Error(t, err, "prune required")
}

func TestOutboxRetentionJobRemovesOldPublishedRows(t *testing.T) {
	gdb := dbtest.Open(t)
	old := fixedNow.Add(-40 * 24 * time.Hour)
	recent := fixedNow.Add(-time.Hour)
	rows := []models.OutboxEvent{
		{EventType: enums.EventOrderCompleted, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), PublishedAt: &old},
		{EventType: enums.EventOrderCompleted, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), PublishedAt: &recent},
		{EventType: enums.EventOrderCompleted, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`)},
	}
	require.NoError(t, gdb.Create(&rows).Error)

	job, err := NewRetentionJob(RetentionJobParams{
		Name:      "outbox-retention",
		Logger:    logger.Nop(),
		Prune:     outbox.NewRepository(gdb).DeletePublishedBefore,
		Retention: 30 * 24 * time.Hour,
		BatchSize: 1,
	})
	require.NoError(t, err)
	job.(*retentionJob).now = func() time.Time { return fixedNow }

	require.NoError(t, job.Run(context.Background()))

	var remaining []models.OutboxEvent
	require.NoError(t, gdb.Order("created_at").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	for _, row := range remaining {
		require.NotEqual(t, rows[0].ID, row.ID)
	}
}
