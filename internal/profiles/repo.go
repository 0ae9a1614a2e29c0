package profiles

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coursehub/coursehub-backend/internal/repo"
	"github.com/coursehub/coursehub-backend/pkg/db/models"
	"github.com/coursehub/coursehub-backend/pkg/enums"
	"github.com/coursehub/coursehub-backend/pkg/pagination"
)

// ListFilters narrows the admin user listing.
type ListFilters struct {
	Role   *enums.ProfileRole
	Search string
}

// Repository exposes profile persistence operations.
type Repository struct {
	repo.Base
}

// NewRepository constructs a profiles repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// InsertIfMissing creates the profile unless a row with the same id exists.
// It reports whether this call inserted the row.
func (r *Repository) InsertIfMissing(ctx context.Context, profile *models.Profile) (bool, error) {
	res := r.DB(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(profile)
	return res.RowsAffected > 0, res.Error
}

// FindByID loads a profile by the auth subject id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.DB(ctx).First(&profile, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// Update applies column updates and reports whether a row matched.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	res := r.DB(ctx).Model(&models.Profile{}).Where("id = ?", id).Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// List returns one page of profiles, newest first.
func (r *Repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Profile, string, error) {
	query := r.DB(ctx).Model(&models.Profile{})
	if filters.Role != nil {
		query = query.Where("role = ?", *filters.Role)
	}
	if search := strings.ToLower(strings.TrimSpace(filters.Search)); search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", like, like)
	}
	return pagination.Fetch(query, params, "created_at", "id", func(p models.Profile) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
}
