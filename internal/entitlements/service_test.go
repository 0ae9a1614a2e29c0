package entitlements

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/coursehub/coursehub-backend/internal/cart"
	"github.com/coursehub/coursehub-backend/internal/courses"
	dbpkg "github.com/coursehub/coursehub-backend/pkg/db"
	"github.com/coursehub/coursehub-backend/pkg/db/dbtest"
	"github.com/coursehub/coursehub-backend/pkg/db/models"
	"github.com/coursehub/coursehub-backend/pkg/enums"
	pkgerrors "github.com/coursehub/coursehub-backend/pkg/errors"
	"github.com/coursehub/coursehub-backend/pkg/logger"
	"github.com/coursehub/coursehub-backend/pkg/outbox"
)

type stubSigner struct{}

func (stubSigner) SignedReadURL(key string) (string, time.Time, error) {
	return "https://cdn.example.com/" + key + "?sig=abc", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

type fixture struct {
	db   *gorm.DB
	svc  Service
	repo *Repository
	now  time.Time
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t)
	repo := NewRepository(db)
	now := time.Now().UTC()
	svc, err := NewService(ServiceParams{
		Repo:    repo,
		Courses: courses.NewRepository(db),
		Cart:    cart.NewRepository(db),
		Signer:  stubSigner{},
		Tx:      dbpkg.Wrap(db),
		Outbox:  outbox.NewService(outbox.NewRepository(db), logger.Nop()),
		Now:     func() time.Time { return now },
	})
	require.NoError(t, err)
	return fixture{db: db, svc: svc, repo: repo, now: now}
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func TestGrantWritesAccessAndPurchasesAtCurrentPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	orderID := uuid.New()
	course := dbtest.SeedCourse(t, f.db, "Go", 1500)
	require.NoError(t, f.db.Model(&models.Course{}).Where("id = ?", course.ID).Update("price", 1800).Error)

	err := f.svc.Grant(ctx, f.db, GrantInput{
		UserID:          userID,
		OrderID:         &orderID,
		CourseIDs:       []uuid.UUID{course.ID},
		Currency:        "usd",
		PaymentIntentID: "pi_1",
		ChargeID:        "ch_1",
	})
	require.NoError(t, err)

	access, err := f.repo.FindAccess(ctx, userID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.AccessTypePurchased, access.AccessType)
	assert.Nil(t, access.ExpiresAt)

	purchases, err := f.repo.ListPurchasesByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, int64(1800), purchases[0].AmountPaid)
	assert.Equal(t, enums.PurchaseStatusCompleted, purchases[0].Status)
	require.NotNil(t, purchases[0].StripePaymentIntentID)
	assert.Equal(t, "pi_1", *purchases[0].StripePaymentIntentID)
}

func TestGrantIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	course := dbtest.SeedCourse(t, f.db, "Go", 1500)
	in := GrantInput{UserID: userID, CourseIDs: []uuid.UUID{course.ID}, PaymentIntentID: "pi_1"}

	require.NoError(t, f.svc.Grant(ctx, nil, in))
	in.ChargeID = "ch_late"
	require.NoError(t, f.svc.Grant(ctx, nil, in))

	var accessCount, purchaseCount int64
	require.NoError(t, f.db.Model(&models.CourseAccess{}).Count(&accessCount).Error)
	require.NoError(t, f.db.Model(&models.Purchase{}).Count(&purchaseCount).Error)
	assert.Equal(t, int64(1), accessCount)
	assert.Equal(t, int64(1), purchaseCount)

	var purchase models.Purchase
	require.NoError(t, f.db.First(&purchase).Error)
	require.NotNil(t, purchase.StripeChargeID)
	assert.Equal(t, "ch_late", *purchase.StripeChargeID)
}

func TestPurgeCartRemovesPurchasedCourses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	bought := dbtest.SeedCourse(t, f.db, "Go", 100)
	kept := dbtest.SeedCourse(t, f.db, "Rust", 100)
	for _, c := range []models.Course{bought, kept} {
		require.NoError(t, f.db.Create(&models.CartItem{UserID: userID, CourseID: c.ID, Price: c.Price, Title: c.Title}).Error)
	}

	f.svc.PurgeCart(ctx, userID, []uuid.UUID{bought.ID})

	var remaining []models.CartItem
	require.NoError(t, f.db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, kept.ID, remaining[0].CourseID)
}

func TestHasAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	course := dbtest.SeedCourse(t, f.db, "Go", 100)

	ok, err := f.svc.HasAccess(ctx, userID, course.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	past := f.now.Add(-time.Hour)
	require.NoError(t, f.db.Create(&models.CourseAccess{
		UserID: userID, CourseID: course.ID, AccessType: enums.AccessTypeAdminGranted, ExpiresAt: &past,
	}).Error)
	ok, err = f.svc.HasAccess(ctx, userID, course.ID)
	require.NoError(t, err)
	assert.False(t, ok, "expired grant must deny access")

	future := f.now.Add(time.Hour)
	require.NoError(t, f.db.Model(&models.CourseAccess{}).Where("user_id = ?", userID).Update("expires_at", future).Error)
	ok, err = f.svc.HasAccess(ctx, userID, course.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasAccessBackfillsGrantFromPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	course := dbtest.SeedCourse(t, f.db, "Go", 100)
	require.NoError(t, f.db.Create(&models.Purchase{
		UserID: userID, CourseID: course.ID, AmountPaid: 100, Currency: "usd", Status: enums.PurchaseStatusCompleted,
	}).Error)

	ok, err := f.svc.HasAccess(ctx, userID, course.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	grant, err := f.repo.FindAccess(ctx, userID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.AccessTypePurchased, grant.AccessType)

	ok, err = f.svc.HasAccess(ctx, userID, course.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasAccessIgnoresPendingPurchase(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	course := dbtest.SeedCourse(t, f.db, "Go", 100)
	require.NoError(t, f.db.Create(&models.Purchase{
		UserID: userID, CourseID: course.ID, AmountPaid: 100, Currency: "usd", Status: enums.PurchaseStatusPending,
	}).Error)

	ok, err := f.svc.HasAccess(context.Background(), userID, course.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOwnedCoursesSkipsExpiredGrants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	owned := dbtest.SeedCourse(t, f.db, "Go", 100)
	expired := dbtest.SeedCourse(t, f.db, "Rust", 100)
	past := f.now.Add(-time.Hour)
	require.NoError(t, f.db.Create(&models.CourseAccess{UserID: userID, CourseID: owned.ID, AccessType: enums.AccessTypePurchased}).Error)
	require.NoError(t, f.db.Create(&models.CourseAccess{UserID: userID, CourseID: expired.ID, AccessType: enums.AccessTypeAdminGranted, ExpiresAt: &past}).Error)

	list, err := f.svc.OwnedCourses(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, owned.ID, list[0].Course.ID)
	assert.Equal(t, enums.AccessTypePurchased, list[0].AccessType)
}

func TestCourseContentRequiresAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	course := dbtest.SeedCourse(t, f.db, "Go", 100)
	require.NoError(t, f.db.Create(&models.CourseVideo{CourseID: course.ID, Title: "Intro", VideoKey: "videos/intro.mp4", Position: 1}).Error)

	_, err := f.svc.CourseContent(ctx, userID, enums.ProfileRoleUser, course.ID)
	assertCode(t, err, pkgerrors.CodeForbidden)

	admin, err := f.svc.CourseContent(ctx, uuid.New(), enums.ProfileRoleAdmin, course.ID)
	require.NoError(t, err)
	require.Len(t, admin.Videos, 1)

	require.NoError(t, f.db.Create(&models.CourseAccess{UserID: userID, CourseID: course.ID, AccessType: enums.AccessTypePurchased}).Error)
	content, err := f.svc.CourseContent(ctx, userID, enums.ProfileRoleUser, course.ID)
	require.NoError(t, err)
	require.Len(t, content.Videos, 1)
	assert.Contains(t, content.Videos[0].PlaybackURL, "videos/intro.mp4")
	assert.Empty(t, content.Videos[0].VideoKey)

	_, err = f.svc.CourseContent(ctx, userID, enums.ProfileRoleUser, uuid.New())
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestAdminGrantAndRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()
	userID := uuid.New()
	course := dbtest.SeedCourse(t, f.db, "Go", 100)
	expires := f.now.Add(24 * time.Hour)

	grant, err := f.svc.AdminGrant(ctx, actor, AdminGrantInput{UserID: userID, CourseID: course.ID, ExpiresAt: &expires})
	require.NoError(t, err)
	assert.Equal(t, enums.AccessTypeAdminGranted, grant.AccessType)
	require.NotNil(t, grant.GrantedBy)
	assert.Equal(t, actor, *grant.GrantedBy)

	require.NoError(t, f.svc.AdminRevoke(ctx, actor, userID, course.ID))
	ok, err := f.svc.HasAccess(ctx, userID, course.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	var events []models.OutboxEvent
	require.NoError(t, f.db.Order("created_at ASC").Find(&events).Error)
	require.Len(t, events, 2)
	types := []enums.OutboxEventType{events[0].EventType, events[1].EventType}
	assert.ElementsMatch(t, []enums.OutboxEventType{enums.EventAccessGranted, enums.EventAccessRevoked}, types)

	err = f.svc.AdminRevoke(ctx, actor, userID, course.ID)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestAdminGrantValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	course := dbtest.SeedCourse(t, f.db, "Go", 100)
	past := f.now.Add(-time.Minute)

	_, err := f.svc.AdminGrant(ctx, uuid.New(), AdminGrantInput{UserID: uuid.New(), CourseID: course.ID, ExpiresAt: &past})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.AdminGrant(ctx, uuid.New(), AdminGrantInput{UserID: uuid.New(), CourseID: uuid.New()})
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestAdminGrantKeepsPermanentPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	course := dbtest.SeedCourse(t, f.db, "Go", 100)
	require.NoError(t, f.db.Create(&models.CourseAccess{UserID: userID, CourseID: course.ID, AccessType: enums.AccessTypePurchased}).Error)
	expires := f.now.Add(time.Hour)

	grant, err := f.svc.AdminGrant(ctx, uuid.New(), AdminGrantInput{UserID: userID, CourseID: course.ID, ExpiresAt: &expires})
	require.NoError(t, err)
	assert.Equal(t, enums.AccessTypePurchased, grant.AccessType)
	assert.Nil(t, grant.ExpiresAt)
}
