package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coursehub/coursehub-backend/pkg/logger"
)

// PruneFunc deletes at most limit rows older than cutoff and reports how many went.
type PruneFunc func(ctx context.Context, cutoff time.Time, limit int) (int64, error)

type RetentionJobParams struct {
	Name      string
	Logger    *logger.Logger
	Prune     PruneFunc
	Retention time.Duration
	BatchSize int
}

// NewRetentionJob builds a job that prunes in batches until a short batch
// signals the backlog is clear. Small batches keep row locks brief.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	switch {
	case params.Name == "":
		return nil, errors.New("retention job name required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Prune == nil:
		return nil, fmt.Errorf("%s: prune func required", params.Name)
	case params.Retention <= 0:
		return nil, fmt.Errorf("%s: retention must be positive", params.Name)
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &retentionJob{
		name:      params.Name,
		logg:      params.Logger,
		prune:     params.Prune,
		retention: params.Retention,
		batch:     batch,
		now:       utcNow,
	}, nil
}

type retentionJob struct {
	name      string
	logg      *logger.Logger
	prune     PruneFunc
	retention time.Duration
	batch     int
	now       clock
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	batches := 0
	for {
		rows, err := j.prune(ctx, cutoff, j.batch)
		deleted += rows
		batches++
		if err != nil {
			return fmt.Errorf("%s: %w", j.name, err)
		}
		if rows < int64(j.batch) {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
		"batches":      batches,
	}), "retention pass complete")
	return nil
}
