package cart

import (
	"context"

	"github.com/google/uuid"

	"github.com/coursehub/coursehub-backend/pkg/db/models"
)

// CourseLookup resolves the course being added.
type CourseLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
}

// OwnershipChecker reports whether the user can already access a course.
type OwnershipChecker interface {
	HasAccess(ctx context.Context, userID, courseID uuid.UUID) (bool, error)
}
