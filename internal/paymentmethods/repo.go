package paymentmethods

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coursehub/coursehub-backend/internal/repo"
	"github.com/coursehub/coursehub-backend/pkg/db/models"
)

// Repository stores processor payment methods per user.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Bind(tx)}
}

// Upsert keys on the processor payment method id and refreshes card metadata.
func (r *Repository) Upsert(ctx context.Context, row *models.PaymentMethod) error {
	return r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "stripe_payment_method_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id", "stripe_customer_id", "type", "card_brand", "card_last4",
				"card_exp_month", "card_exp_year", "updated_at",
			}),
		}).
		Create(row).Error
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PaymentMethod, error) {
	var rows []models.PaymentMethod
	err := r.DB(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}
