package courses

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	dbpkg "github.com/coursehub/coursehub-backend/pkg/db"
	"github.com/coursehub/coursehub-backend/pkg/db/models"
	pkgerrors "github.com/coursehub/coursehub-backend/pkg/errors"
	"github.com/coursehub/coursehub-backend/pkg/logger"
	"github.com/coursehub/coursehub-backend/pkg/money"
	"github.com/coursehub/coursehub-backend/pkg/pagination"
)

// Service exposes catalog reads and admin course management.
type Service interface {
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*CourseList, error)
	Get(ctx context.Context, id uuid.UUID, includeHidden bool) (*CourseDTO, error)
	PreviewVideos(ctx context.Context, courseID uuid.UUID) ([]VideoDTO, error)

	Create(ctx context.Context, input CourseInput) (*CourseDTO, error)
	Update(ctx context.Context, id uuid.UUID, input CourseInput) (*CourseDTO, error)
	Deactivate(ctx context.Context, id uuid.UUID) error

	ListVideos(ctx context.Context, courseID uuid.UUID) ([]VideoDTO, error)
	AddVideo(ctx context.Context, courseID uuid.UUID, input VideoInput) (*VideoDTO, error)
	UpdateVideo(ctx context.Context, courseID, videoID uuid.UUID, input VideoInput) (*VideoDTO, error)
	DeleteVideo(ctx context.Context, courseID, videoID uuid.UUID) error
}

// ObjectRemover deletes stored video objects. A nil remover keeps objects.
type ObjectRemover interface {
	DeleteObject(ctx context.Context, key string) error
}

type service struct {
	repo    *Repository
	objects ObjectRemover
	logg    *logger.Logger
}

// NewService builds the catalog service.
func NewService(repo *Repository, objects ObjectRemover, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("courses repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, objects: objects, logg: logg}, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*CourseList, error) {
	rows, next, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, listError(err)
	}
	out := &CourseList{Courses: make([]CourseDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		out.Courses = append(out.Courses, *FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, includeHidden bool) (*CourseDTO, error) {
	course, err := s.load(ctx, id, includeHidden)
	if err != nil {
		return nil, err
	}
	return FromModel(course), nil
}

func (s *service) PreviewVideos(ctx context.Context, courseID uuid.UUID) ([]VideoDTO, error) {
	if _, err := s.load(ctx, courseID, false); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListVideos(ctx, courseID, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load videos")
	}
	return videoDTOs(rows, false), nil
}

func (s *service) Create(ctx context.Context, input CourseInput) (*CourseDTO, error) {
	title := trimmed(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	price, set, err := resolvePrice(input)
	if err != nil {
		return nil, err
	}
	if !set {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price is required")
	}

	course := &models.Course{
		Title:          title,
		Description:    trimmed(input.Description),
		Price:          price,
		ThumbnailURL:   optionalString(input.ThumbnailURL),
		VideoURL:       optionalString(input.VideoURL),
		InstructorName: trimmed(input.InstructorName),
		Category:       trimmed(input.Category),
		IsActive:       true,
	}
	if input.IsActive != nil {
		course.IsActive = *input.IsActive
	}
	if input.IsPublished != nil {
		course.IsPublished = *input.IsPublished
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, err.Error())
	}
	return FromModel(course), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input CourseInput) (*CourseDTO, error) {
	updates := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title must not be empty")
		}
		updates["title"] = title
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	price, set, err := resolvePrice(input)
	if err != nil {
		return nil, err
	}
	if set {
		updates["price"] = price
	}
	if input.ThumbnailURL != nil {
		updates["thumbnail_url"] = optionalString(input.ThumbnailURL)
	}
	if input.VideoURL != nil {
		updates["video_url"] = optionalString(input.VideoURL)
	}
	if input.InstructorName != nil {
		updates["instructor_name"] = strings.TrimSpace(*input.InstructorName)
	}
	if input.Category != nil {
		updates["category"] = strings.TrimSpace(*input.Category)
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.IsPublished != nil {
		updates["is_published"] = *input.IsPublished
	}

	if len(updates) > 0 {
		found, err := s.repo.Update(ctx, id, updates)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, err.Error())
		}
		if !found {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
		}
	}
	return s.Get(ctx, id, true)
}

// Deactivate hides a course from the catalog; purchases and grants are untouched.
func (s *service) Deactivate(ctx context.Context, id uuid.UUID) error {
	found, err := s.repo.Update(ctx, id, map[string]any{"is_active": false})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, err.Error())
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
	}
	return nil
}

func (s *service) ListVideos(ctx context.Context, courseID uuid.UUID) ([]VideoDTO, error) {
	if _, err := s.load(ctx, courseID, true); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListVideos(ctx, courseID, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load videos")
	}
	return videoDTOs(rows, true), nil
}

func (s *service) AddVideo(ctx context.Context, courseID uuid.UUID, input VideoInput) (*VideoDTO, error) {
	if _, err := s.load(ctx, courseID, true); err != nil {
		return nil, err
	}
	title := trimmed(input.Title)
	key := trimmed(input.VideoKey)
	if title == "" || key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title and video_key are required")
	}

	video := &models.CourseVideo{
		CourseID:    courseID,
		Title:       title,
		Description: trimmed(input.Description),
		VideoKey:    key,
	}
	if input.Position != nil {
		video.Position = *input.Position
	} else {
		next, err := s.repo.NextVideoPosition(ctx, courseID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, err.Error())
		}
		video.Position = next
	}
	if input.DurationSeconds != nil {
		video.DurationSeconds = *input.DurationSeconds
	}
	if input.IsPreview != nil {
		video.IsPreview = *input.IsPreview
	}
	if err := s.repo.CreateVideo(ctx, video); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, err.Error())
	}
	dto := VideoFromModel(*video, true)
	return &dto, nil
}

func (s *service) UpdateVideo(ctx context.Context, courseID, videoID uuid.UUID, input VideoInput) (*VideoDTO, error) {
	updates := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title must not be empty")
		}
		updates["title"] = title
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.VideoKey != nil {
		key := strings.TrimSpace(*input.VideoKey)
		if key == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "video_key must not be empty")
		}
		updates["video_key"] = key
	}
	if input.Position != nil {
		updates["position"] = *input.Position
	}
	if input.DurationSeconds != nil {
		updates["duration_seconds"] = *input.DurationSeconds
	}
	if input.IsPreview != nil {
		updates["is_preview"] = *input.IsPreview
	}
	if len(updates) > 0 {
		found, err := s.repo.UpdateVideo(ctx, courseID, videoID, updates)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, err.Error())
		}
		if !found {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
		}
	}
	video, err := s.repo.FindVideo(ctx, courseID, videoID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load video")
	}
	dto := VideoFromModel(*video, true)
	return &dto, nil
}

// DeleteVideo removes the lesson row, then its stored object. A failed object
// delete is logged and leaves an orphaned object behind.
func (s *service) DeleteVideo(ctx context.Context, courseID, videoID uuid.UUID) error {
	video, err := s.repo.FindVideo(ctx, courseID, videoID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load video")
	}
	found, err := s.repo.DeleteVideo(ctx, courseID, videoID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, err.Error())
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
	}
	if s.objects != nil && video.VideoKey != "" {
		if err := s.objects.DeleteObject(ctx, video.VideoKey); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "video_key", video.VideoKey), "failed to delete video object", err)
		}
	}
	return nil
}

func (s *service) load(ctx context.Context, id uuid.UUID, includeHidden bool) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load course")
	}
	if !includeHidden && !course.IsPurchasable() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
	}
	return course, nil
}

func resolvePrice(input CourseInput) (int64, bool, error) {
	switch {
	case input.PriceMinor != nil:
		if *input.PriceMinor < 0 {
			return 0, false, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
		}
		return *input.PriceMinor, true, nil
	case input.Price != nil:
		minor, err := money.ParseMajor(*input.Price)
		if err != nil {
			return 0, false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
		}
		return minor, true, nil
	default:
		return 0, false, nil
	}
}

func listError(err error) error {
	if strings.Contains(err.Error(), "cursor") {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list courses")
}

func videoDTOs(rows []models.CourseVideo, includeKey bool) []VideoDTO {
	out := make([]VideoDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, VideoFromModel(row, includeKey))
	}
	return out
}

func trimmed(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func optionalString(value *string) *string {
	v := trimmed(value)
	if v == "" {
		return nil
	}
	return &v
}
