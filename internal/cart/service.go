package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	dbpkg "github.com/coursehub/coursehub-backend/pkg/db"
	"github.com/coursehub/coursehub-backend/pkg/db/models"
	pkgerrors "github.com/coursehub/coursehub-backend/pkg/errors"
	"github.com/coursehub/coursehub-backend/pkg/money"
)

// ItemDTO is one cart line as returned to the client.
type ItemDTO struct {
	CourseID       uuid.UUID `json:"course_id"`
	Title          string    `json:"title"`
	Price          int64     `json:"price"`
	ThumbnailURL   *string   `json:"thumbnail_url,omitempty"`
	InstructorName string    `json:"instructor_name"`
}

// View is the full cart with its total in minor units.
type View struct {
	Items        []ItemDTO `json:"items"`
	Count        int       `json:"count"`
	Total        int64     `json:"total"`
	TotalDisplay string    `json:"total_display"`
	Currency     string    `json:"currency"`
}

// Service manages the per-user cart.
type Service interface {
	Add(ctx context.Context, userID, courseID uuid.UUID) (*View, error)
	Remove(ctx context.Context, userID, courseID uuid.UUID) (*View, error)
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	Lines(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
}

type service struct {
	repo     *Repository
	courses  CourseLookup
	owned    OwnershipChecker
	currency string
}

// NewService builds the cart service.
func NewService(repo *Repository, courses CourseLookup, owned OwnershipChecker, currency string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if courses == nil {
		return nil, fmt.Errorf("course lookup required")
	}
	if owned == nil {
		return nil, fmt.Errorf("ownership checker required")
	}
	if currency == "" {
		currency = "usd"
	}
	return &service{repo: repo, courses: courses, owned: owned, currency: currency}, nil
}

// Add snapshots the course onto the cart. Adding a course twice is a no-op.
func (s *service) Add(ctx context.Context, userID, courseID uuid.UUID) (*View, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load course")
	}
	if !course.IsPurchasable() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
	}

	owned, err := s.owned.HasAccess(ctx, userID, courseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check ownership")
	}
	if owned {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyOwned, "you already own this course")
	}

	item := &models.CartItem{
		UserID:         userID,
		CourseID:       course.ID,
		Price:          course.Price,
		Title:          course.Title,
		ThumbnailURL:   course.ThumbnailURL,
		InstructorName: course.InstructorName,
	}
	if _, err := s.repo.Add(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, err.Error())
	}
	return s.Get(ctx, userID)
}

func (s *service) Remove(ctx context.Context, userID, courseID uuid.UUID) (*View, error) {
	found, err := s.repo.Remove(ctx, userID, courseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, err.Error())
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not in cart")
	}
	return s.Get(ctx, userID)
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	lines, err := s.Lines(ctx, userID)
	if err != nil {
		return nil, err
	}
	return buildView(lines, s.currency), nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, err.Error())
	}
	return nil
}

func (s *service) Lines(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	lines, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return lines, nil
}

func buildView(lines []models.CartItem, currency string) *View {
	view := &View{Items: make([]ItemDTO, 0, len(lines)), Currency: currency}
	prices := make([]int64, 0, len(lines))
	for _, line := range lines {
		view.Items = append(view.Items, ItemDTO{
			CourseID:       line.CourseID,
			Title:          line.Title,
			Price:          line.Price,
			ThumbnailURL:   line.ThumbnailURL,
			InstructorName: line.InstructorName,
		})
		prices = append(prices, line.Price)
	}
	view.Count = len(lines)
	view.Total = money.Sum(prices...)
	view.TotalDisplay = money.FormatMajor(view.Total)
	return view
}
