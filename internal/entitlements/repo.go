package entitlements

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coursehub/coursehub-backend/internal/repo"
	"github.com/coursehub/coursehub-backend/pkg/db/models"
	"github.com/coursehub/coursehub-backend/pkg/enums"
)

// Repository stores course access grants and purchase records.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Bind(tx)}
}

func (r *Repository) FindAccess(ctx context.Context, userID, courseID uuid.UUID) (*models.CourseAccess, error) {
	var row models.CourseAccess
	err := r.DB(ctx).First(&row, "user_id = ? AND course_id = ?", userID, courseID).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpsertAccess writes the grant, replacing type, expiry and grantor of an
// existing row for the same (user, course).
func (r *Repository) UpsertAccess(ctx context.Context, row *models.CourseAccess) error {
	return r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"access_type", "expires_at", "granted_by"}),
		}).
		Create(row).Error
}

// InsertAccessIfMissing writes the grant only when none exists.
func (r *Repository) InsertAccessIfMissing(ctx context.Context, row *models.CourseAccess) error {
	return r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Create(row).Error
}

func (r *Repository) DeleteAccess(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	res := r.DB(ctx).Where("user_id = ? AND course_id = ?", userID, courseID).Delete(&models.CourseAccess{})
	return res.RowsAffected > 0, res.Error
}

// ListActiveAccess returns grants that have not expired at now, newest first.
func (r *Repository) ListActiveAccess(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.CourseAccess, error) {
	var rows []models.CourseAccess
	err := r.DB(ctx).
		Where("user_id = ? AND (expires_at IS NULL OR expires_at > ?)", userID, now).
		Order("granted_at DESC").
		Find(&rows).Error
	return rows, err
}

// UpsertPurchase records settlement for (user, course). Both the payment
// orchestrator and the webhook reconciler write here, so a second write only
// refreshes status and processor ids.
func (r *Repository) UpsertPurchase(ctx context.Context, row *models.Purchase) error {
	return r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"order_id", "status", "stripe_payment_intent_id", "stripe_charge_id", "updated_at",
			}),
		}).
		Create(row).Error
}

// UpsertPendingPurchase records a purchase whose payment is still in flight.
// A completed purchase for the same course is left untouched.
func (r *Repository) UpsertPendingPurchase(ctx context.Context, row *models.Purchase) error {
	return r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"order_id", "status", "stripe_payment_intent_id", "updated_at",
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "purchases.status <> ?", Vars: []any{enums.PurchaseStatusCompleted}},
			}},
		}).
		Create(row).Error
}

func (r *Repository) HasCompletedPurchase(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Purchase{}).
		Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, enums.PurchaseStatusCompleted).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) ListPurchasesByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Purchase, error) {
	var rows []models.Purchase
	err := r.DB(ctx).Where("order_id = ?", orderID).Find(&rows).Error
	return rows, err
}

// SetPurchaseStatusByOrder moves the order's purchases from one status to another.
func (r *Repository) SetPurchaseStatusByOrder(ctx context.Context, orderID uuid.UUID, from, to enums.PurchaseStatus) (int64, error) {
	res := r.DB(ctx).Model(&models.Purchase{}).
		Where("order_id = ? AND status = ?", orderID, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// DeleteAccessOfType removes the user's grants of one type for the given courses.
func (r *Repository) DeleteAccessOfType(ctx context.Context, userID uuid.UUID, courseIDs []uuid.UUID, accessType enums.AccessType) (int64, error) {
	if len(courseIDs) == 0 {
		return 0, nil
	}
	res := r.DB(ctx).
		Where("user_id = ? AND course_id IN ? AND access_type = ?", userID, courseIDs, accessType).
		Delete(&models.CourseAccess{})
	return res.RowsAffected, res.Error
}

// SetPurchaseStatusByIntent updates every purchase settled by the intent.
func (r *Repository) SetPurchaseStatusByIntent(ctx context.Context, intentID string, status enums.PurchaseStatus) ([]models.Purchase, error) {
	var rows []models.Purchase
	if err := r.DB(ctx).Where("stripe_payment_intent_id = ?", intentID).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	err := r.DB(ctx).Model(&models.Purchase{}).
		Where("stripe_payment_intent_id = ?", intentID).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()}).Error
	return rows, err
}
