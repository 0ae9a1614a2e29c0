package courses

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursehub/coursehub-backend/internal/repo"
	"github.com/coursehub/coursehub-backend/pkg/db/models"
	"github.com/coursehub/coursehub-backend/pkg/pagination"
)

// ListFilters narrows catalog listings.
type ListFilters struct {
	Category string
	Search   string
	// IncludeHidden returns inactive and unpublished courses; admin only.
	IncludeHidden bool
}

// Repository encapsulates course and video persistence.
type Repository struct {
	repo.Base
}

// NewRepository constructs a course repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx scopes the repository to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Bind(tx)}
}

func (r *Repository) Create(ctx context.Context, course *models.Course) error {
	return r.DB(ctx).Create(course).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	var course models.Course
	if err := r.DB(ctx).Where("id = ?", id).First(&course).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByIDs loads the given courses keyed by id; missing ids are absent from the map.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Course, error) {
	out := make(map[uuid.UUID]models.Course, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Course
	if err := r.DB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// List returns one page of courses, newest first.
func (r *Repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Course, string, error) {
	query := r.DB(ctx).Model(&models.Course{})
	if !filters.IncludeHidden {
		query = query.Where("is_active = ? AND is_published = ?", true, true)
	}
	if category := strings.TrimSpace(filters.Category); category != "" {
		query = query.Where("category = ?", category)
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	return pagination.Fetch(query, params, "created_at", "id", func(c models.Course) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	})
}

// Update applies column updates and reports whether a row matched.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	res := r.DB(ctx).Model(&models.Course{}).Where("id = ?", id).Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// ListVideos returns a course's videos ordered by position.
func (r *Repository) ListVideos(ctx context.Context, courseID uuid.UUID, previewOnly bool) ([]models.CourseVideo, error) {
	query := r.DB(ctx).Where("course_id = ?", courseID)
	if previewOnly {
		query = query.Where("is_preview = ?", true)
	}
	var rows []models.CourseVideo
	err := query.Order("position ASC").Order("created_at ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) CreateVideo(ctx context.Context, video *models.CourseVideo) error {
	return r.DB(ctx).Create(video).Error
}

func (r *Repository) FindVideo(ctx context.Context, courseID, videoID uuid.UUID) (*models.CourseVideo, error) {
	var video models.CourseVideo
	if err := r.DB(ctx).Where("id = ? AND course_id = ?", videoID, courseID).First(&video).Error; err != nil {
		return nil, err
	}
	return &video, nil
}

// NextVideoPosition returns the position after the current last video.
func (r *Repository) NextVideoPosition(ctx context.Context, courseID uuid.UUID) (int, error) {
	var maxPos *int
	err := r.DB(ctx).Model(&models.CourseVideo{}).
		Where("course_id = ?", courseID).
		Select("MAX(position)").
		Scan(&maxPos).Error
	if err != nil {
		return 0, err
	}
	if maxPos == nil {
		return 0, nil
	}
	return *maxPos + 1, nil
}

func (r *Repository) UpdateVideo(ctx context.Context, courseID, videoID uuid.UUID, updates map[string]any) (bool, error) {
	res := r.DB(ctx).Model(&models.CourseVideo{}).
		Where("id = ? AND course_id = ?", videoID, courseID).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) DeleteVideo(ctx context.Context, courseID, videoID uuid.UUID) (bool, error) {
	res := r.DB(ctx).Where("id = ? AND course_id = ?", videoID, courseID).Delete(&models.CourseVideo{})
	return res.RowsAffected > 0, res.Error
}
