package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/coursehub/coursehub-backend/pkg/db/models"
	"github.com/coursehub/coursehub-backend/pkg/enums"
)

// SeedCourse inserts an active, published course at the given price.
func SeedCourse(t *testing.T, db *gorm.DB, title string, price int64) models.Course {
	t.Helper()
	course := models.Course{
		Title:          title,
		Price:          price,
		InstructorName: "Ada Instructor",
		Category:       "engineering",
		IsActive:       true,
		IsPublished:    true,
	}
	require.NoError(t, db.Create(&course).Error)
	return course
}

// SeedProfile inserts a profile with the given role.
func SeedProfile(t *testing.T, db *gorm.DB, role enums.ProfileRole) models.Profile {
	t.Helper()
	id := uuid.New()
	profile := models.Profile{
		ID:       id,
		Email:    id.String()[:8] + "@example.com",
		FullName: "Test User",
		Role:     role,
	}
	require.NoError(t, db.Create(&profile).Error)
	return profile
}

// SeedPendingOrder inserts a pending order with one item per course.
func SeedPendingOrder(t *testing.T, db *gorm.DB, userID uuid.UUID, courses ...models.Course) models.Order {
	t.Helper()
	order := models.Order{
		UserID:   userID,
		Currency: "usd",
		Status:   enums.OrderStatusPending,
	}
	for i, c := range courses {
		order.TotalAmount += c.Price
		order.Items = append(order.Items, models.OrderItem{CourseID: c.ID, Price: c.Price, CourseTitle: c.Title, Position: i})
	}
	require.NoError(t, db.Create(&order).Error)
	return order
}

// Backdate rewrites a timestamp column, used to exercise age-based queries.
func Backdate(t *testing.T, db *gorm.DB, table, column string, id uuid.UUID, at time.Time) {
	t.Helper()
	require.NoError(t, db.Table(table).Where("id = ?", id).Update(column, at.UTC()).Error)
}
