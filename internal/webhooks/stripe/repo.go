package stripewebhook

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursehub/coursehub-backend/internal/repo"
	"github.com/coursehub/coursehub-backend/pkg/db/models"
	"github.com/coursehub/coursehub-backend/pkg/pagination"
)

// ListFilters narrows the admin delivery log.
type ListFilters struct {
	EventType string
	Processed *bool
	Failed    bool
}

// Repository stores one row per webhook delivery.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Insert(ctx context.Context, row *models.WebhookEvent) error {
	return r.DB(ctx).Create(row).Error
}

// Finish records the processing outcome on the delivery row.
func (r *Repository) Finish(ctx context.Context, id uuid.UUID, processed, duplicate bool, errMsg *string, at time.Time) error {
	updates := map[string]any{
		"processed": processed,
		"duplicate": duplicate,
		"error":     errMsg,
	}
	if processed {
		updates["processed_at"] = at
	}
	return r.DB(ctx).Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *Repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.WebhookEvent, string, error) {
	query := r.DB(ctx).Model(&models.WebhookEvent{})
	if filters.EventType != "" {
		query = query.Where("event_type = ?", filters.EventType)
	}
	if filters.Processed != nil {
		query = query.Where("processed = ?", *filters.Processed)
	}
	if filters.Failed {
		query = query.Where("error IS NOT NULL")
	}
	return pagination.Fetch(query, params, "received_at", "id", func(e models.WebhookEvent) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.ReceivedAt, ID: e.ID}
	})
}

// DeleteProcessedBefore prunes processed rows older than cutoff, at most limit per call.
func (r *Repository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	sub := r.DB(ctx).Model(&models.WebhookEvent{}).
		Select("id").
		Where("processed = ? AND received_at < ?", true, cutoff).
		Order("received_at ASC").
		Limit(limit)
	res := r.DB(ctx).Where("id IN (?)", sub).Delete(&models.WebhookEvent{})
	return res.RowsAffected, res.Error
}
