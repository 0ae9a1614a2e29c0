package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coursehub/coursehub-backend/internal/repo"
	"github.com/coursehub/coursehub-backend/pkg/db/models"
)

// Repository persists cart lines; one row per (user_id, course_id).
type Repository struct {
	repo.Base
}

// NewRepository constructs a cart repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx scopes the repository to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Bind(tx)}
}

// Add inserts the line and ignores duplicates. It reports whether a row was inserted.
func (r *Repository) Add(ctx context.Context, item *models.CartItem) (bool, error) {
	res := r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Create(item)
	return res.RowsAffected > 0, res.Error
}

// List returns the user's cart lines, oldest first.
func (r *Repository) List(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	err := r.DB(ctx).
		Where("user_id = ?", userID).
		Order("added_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// Remove deletes one line and reports whether it existed.
func (r *Repository) Remove(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	res := r.DB(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Delete(&models.CartItem{})
	return res.RowsAffected > 0, res.Error
}

// RemoveCourses deletes the lines for the given courses.
func (r *Repository) RemoveCourses(ctx context.Context, userID uuid.UUID, courseIDs []uuid.UUID) error {
	if len(courseIDs) == 0 {
		return nil
	}
	return r.DB(ctx).
		Where("user_id = ? AND course_id IN ?", userID, courseIDs).
		Delete(&models.CartItem{}).Error
}

// Clear empties the user's cart.
func (r *Repository) Clear(ctx context.Context, userID uuid.UUID) error {
	return r.DB(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}
