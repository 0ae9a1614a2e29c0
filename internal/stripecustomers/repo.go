package stripecustomers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coursehub/coursehub-backend/internal/repo"
	"github.com/coursehub/coursehub-backend/pkg/db/models"
)

// Repository persists the user -> processor customer mapping.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.StripeCustomer, error) {
	var row models.StripeCustomer
	if err := r.DB(ctx).First(&row, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) FindByCustomerID(ctx context.Context, customerID string) (*models.StripeCustomer, error) {
	var row models.StripeCustomer
	if err := r.DB(ctx).First(&row, "stripe_customer_id = ?", customerID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Insert stores the mapping unless one already exists for the user. It reports
// whether this call wrote the row.
func (r *Repository) Insert(ctx context.Context, row *models.StripeCustomer) (bool, error) {
	res := r.DB(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(row)
	return res.RowsAffected > 0, res.Error
}
