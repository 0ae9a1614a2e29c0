package entitlements

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursehub/coursehub-backend/internal/courses"
	dbpkg "github.com/coursehub/coursehub-backend/pkg/db"
	"github.com/coursehub/coursehub-backend/pkg/db/models"
	"github.com/coursehub/coursehub-backend/pkg/enums"
	pkgerrors "github.com/coursehub/coursehub-backend/pkg/errors"
	"github.com/coursehub/coursehub-backend/pkg/logger"
	"github.com/coursehub/coursehub-backend/pkg/outbox"
	"github.com/coursehub/coursehub-backend/pkg/outbox/payloads"
)

// Service grants and checks course ownership.
type Service interface {
	Grant(ctx context.Context, tx *gorm.DB, in GrantInput) error
	RecordPending(ctx context.Context, tx *gorm.DB, in GrantInput) error
	PurgeCart(ctx context.Context, userID uuid.UUID, courseIDs []uuid.UUID)
	HasAccess(ctx context.Context, userID, courseID uuid.UUID) (bool, error)
	Check(ctx context.Context, userID, courseID uuid.UUID) (*AccessDTO, error)
	OwnedCourses(ctx context.Context, userID uuid.UUID) ([]OwnedCourseDTO, error)
	CourseContent(ctx context.Context, userID uuid.UUID, role enums.ProfileRole, courseID uuid.UUID) (*ContentDTO, error)
	AdminGrant(ctx context.Context, actorID uuid.UUID, in AdminGrantInput) (*GrantDTO, error)
	AdminRevoke(ctx context.Context, actorID, userID, courseID uuid.UUID) error
}

type courseReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Course, error)
	ListVideos(ctx context.Context, courseID uuid.UUID, previewOnly bool) ([]models.CourseVideo, error)
}

type cartPurger interface {
	RemoveCourses(ctx context.Context, userID uuid.UUID, courseIDs []uuid.UUID) error
}

type urlSigner interface {
	SignedReadURL(key string) (string, time.Time, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups the entitlement dependencies.
type ServiceParams struct {
	Repo    *Repository
	Courses courseReader
	Cart    cartPurger
	Signer  urlSigner
	Tx      txRunner
	Outbox  outboxPublisher
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	repo    *Repository
	courses courseReader
	cart    cartPurger
	signer  urlSigner
	tx      txRunner
	outbox  outboxPublisher
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("entitlements repository required")
	}
	if p.Courses == nil {
		return nil, fmt.Errorf("course reader required")
	}
	if p.Cart == nil {
		return nil, fmt.Errorf("cart purger required")
	}
	if p.Signer == nil {
		return nil, fmt.Errorf("url signer required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &service{
		repo:    p.Repo,
		courses: p.Courses,
		cart:    p.Cart,
		signer:  p.Signer,
		tx:      p.Tx,
		outbox:  p.Outbox,
		logg:    p.Logger,
		now:     p.Now,
	}, nil
}

// Grant writes one purchased access row and one completed purchase per course.
// Purchase amounts use each course's price at grant time, which can differ
// from the order item snapshot if the price changed after ordering.
func (s *service) Grant(ctx context.Context, tx *gorm.DB, in GrantInput) error {
	if len(in.CourseIDs) == 0 {
		return nil
	}
	repo := s.repo
	if tx != nil {
		repo = repo.WithTx(tx)
	}

	catalog, err := s.courses.FindByIDs(ctx, in.CourseIDs)
	if err != nil {
		return fmt.Errorf("load courses: %w", err)
	}

	intentID := optional(in.PaymentIntentID)
	chargeID := optional(in.ChargeID)
	for _, courseID := range in.CourseIDs {
		access := &models.CourseAccess{
			UserID:     in.UserID,
			CourseID:   courseID,
			AccessType: enums.AccessTypePurchased,
		}
		if err := repo.UpsertAccess(ctx, access); err != nil {
			return fmt.Errorf("grant access %s: %w", courseID, err)
		}

		var amount int64
		if course, ok := catalog[courseID]; ok {
			amount = course.Price
		}
		purchase := &models.Purchase{
			UserID:                in.UserID,
			CourseID:              courseID,
			OrderID:               in.OrderID,
			AmountPaid:            amount,
			Currency:              in.Currency,
			Status:                enums.PurchaseStatusCompleted,
			StripePaymentIntentID: intentID,
			StripeChargeID:        chargeID,
		}
		if purchase.Currency == "" {
			purchase.Currency = "usd"
		}
		if err := repo.UpsertPurchase(ctx, purchase); err != nil {
			return fmt.Errorf("record purchase %s: %w", courseID, err)
		}
	}
	return nil
}

// RecordPending writes a pending purchase per course without granting access.
// The payment_intent.succeeded webhook later completes them through Grant.
func (s *service) RecordPending(ctx context.Context, tx *gorm.DB, in GrantInput) error {
	if len(in.CourseIDs) == 0 {
		return nil
	}
	repo := s.repo
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	catalog, err := s.courses.FindByIDs(ctx, in.CourseIDs)
	if err != nil {
		return fmt.Errorf("load courses: %w", err)
	}
	currency := in.Currency
	if currency == "" {
		currency = "usd"
	}
	for _, courseID := range in.CourseIDs {
		purchase := &models.Purchase{
			UserID:                in.UserID,
			CourseID:              courseID,
			OrderID:               in.OrderID,
			AmountPaid:            catalog[courseID].Price,
			Currency:              currency,
			Status:                enums.PurchaseStatusPending,
			StripePaymentIntentID: optional(in.PaymentIntentID),
		}
		if err := repo.UpsertPendingPurchase(ctx, purchase); err != nil {
			return fmt.Errorf("record pending purchase %s: %w", courseID, err)
		}
	}
	return nil
}

// PurgeCart drops purchased courses from the cart. Failures are logged only.
func (s *service) PurgeCart(ctx context.Context, userID uuid.UUID, courseIDs []uuid.UUID) {
	if len(courseIDs) == 0 {
		return
	}
	if err := s.cart.RemoveCourses(ctx, userID, courseIDs); err != nil {
		s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "failed to purge purchased courses from cart", err)
	}
}

// HasAccess consults the grant first. Without a grant, a completed purchase
// backfills one.
func (s *service) HasAccess(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	grant, err := s.repo.FindAccess(ctx, userID, courseID)
	switch {
	case err == nil:
		return grant.ActiveAt(s.now()), nil
	case !dbpkg.IsNotFound(err):
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load course access")
	}

	purchased, err := s.repo.HasCompletedPurchase(ctx, userID, courseID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchases")
	}
	if !purchased {
		return false, nil
	}

	derived := &models.CourseAccess{
		UserID:     userID,
		CourseID:   courseID,
		AccessType: enums.AccessTypePurchased,
	}
	if err := s.repo.InsertAccessIfMissing(ctx, derived); err != nil {
		logCtx := s.logg.WithCourseID(s.logg.WithUserID(ctx, userID.String()), courseID.String())
		s.logg.Error(logCtx, "failed to backfill access from purchase", err)
	}
	return true, nil
}

func (s *service) Check(ctx context.Context, userID, courseID uuid.UUID) (*AccessDTO, error) {
	ok, err := s.HasAccess(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	out := &AccessDTO{CourseID: courseID, HasAccess: ok}
	if grant, err := s.repo.FindAccess(ctx, userID, courseID); err == nil {
		accessType := grant.AccessType
		out.AccessType = &accessType
		out.ExpiresAt = grant.ExpiresAt
	}
	return out, nil
}

func (s *service) OwnedCourses(ctx context.Context, userID uuid.UUID) ([]OwnedCourseDTO, error) {
	grants, err := s.repo.ListActiveAccess(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list course access")
	}
	ids := make([]uuid.UUID, 0, len(grants))
	for _, g := range grants {
		ids = append(ids, g.CourseID)
	}
	catalog, err := s.courses.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load courses")
	}

	out := make([]OwnedCourseDTO, 0, len(grants))
	for _, g := range grants {
		course, ok := catalog[g.CourseID]
		if !ok {
			continue
		}
		out = append(out, OwnedCourseDTO{
			Course:     *courses.FromModel(&course),
			AccessType: g.AccessType,
			GrantedAt:  g.GrantedAt,
			ExpiresAt:  g.ExpiresAt,
		})
	}
	return out, nil
}

// CourseContent returns every lesson with a presigned playback URL. Admins
// bypass the ownership check.
func (s *service) CourseContent(ctx context.Context, userID uuid.UUID, role enums.ProfileRole, courseID uuid.UUID) (*ContentDTO, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load course")
	}

	if !role.IsAdmin() {
		ok, err := s.HasAccess(ctx, userID, courseID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "course not owned")
		}
	}

	videos, err := s.courses.ListVideos(ctx, courseID, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list videos")
	}

	out := &ContentDTO{Course: *courses.FromModel(course), Videos: make([]courses.VideoDTO, 0, len(videos))}
	for _, v := range videos {
		dto := courses.VideoFromModel(v, false)
		url, expires, err := s.signer.SignedReadURL(v.VideoKey)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign playback url")
		}
		dto.PlaybackURL = url
		out.ExpiresAt = expires
		out.Videos = append(out.Videos, dto)
	}
	return out, nil
}

// AdminGrant issues an admin_granted row. An existing permanent purchase is
// left untouched.
func (s *service) AdminGrant(ctx context.Context, actorID uuid.UUID, in AdminGrantInput) (*GrantDTO, error) {
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expires_at must be in the future")
	}
	if _, err := s.courses.FindByID(ctx, in.CourseID); err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load course")
	}

	existing, err := s.repo.FindAccess(ctx, in.UserID, in.CourseID)
	if err == nil && existing.AccessType == enums.AccessTypePurchased && existing.ExpiresAt == nil {
		return grantFromModel(existing), nil
	}
	if err != nil && !dbpkg.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load course access")
	}

	var expires *time.Time
	if in.ExpiresAt != nil {
		t := in.ExpiresAt.UTC()
		expires = &t
	}
	grantor := actorID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		row := &models.CourseAccess{
			UserID:     in.UserID,
			CourseID:   in.CourseID,
			AccessType: enums.AccessTypeAdminGranted,
			ExpiresAt:  expires,
			GrantedBy:  &grantor,
		}
		if err := s.repo.WithTx(tx).UpsertAccess(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, err.Error())
		}
		return s.emitAccess(ctx, tx, actorID, enums.EventAccessGranted, in.UserID, in.CourseID, enums.AccessTypeAdminGranted, expires)
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"actor_id":  actorID.String(),
		"user_id":   in.UserID.String(),
		"course_id": in.CourseID.String(),
	})
	s.logg.Info(logCtx, "course access granted by admin")

	stored, err := s.repo.FindAccess(ctx, in.UserID, in.CourseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload course access")
	}
	return grantFromModel(stored), nil
}

func (s *service) AdminRevoke(ctx context.Context, actorID, userID, courseID uuid.UUID) error {
	grant, err := s.repo.FindAccess(ctx, userID, courseID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "course access not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load course access")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).DeleteAccess(ctx, userID, courseID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, err.Error())
		}
		return s.emitAccess(ctx, tx, actorID, enums.EventAccessRevoked, userID, courseID, grant.AccessType, nil)
	})
	if err != nil {
		return err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"actor_id":  actorID.String(),
		"user_id":   userID.String(),
		"course_id": courseID.String(),
	})
	s.logg.Info(logCtx, "course access revoked by admin")
	return nil
}

func (s *service) emitAccess(ctx context.Context, tx *gorm.DB, actorID uuid.UUID, event enums.OutboxEventType, userID, courseID uuid.UUID, accessType enums.AccessType, expires *time.Time) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     event,
		AggregateType: enums.AggregateAccess,
		AggregateID:   courseID,
		Actor:         &outbox.ActorRef{UserID: actorID, Role: string(enums.ProfileRoleAdmin)},
		Data: payloads.AccessEvent{
			UserID:     userID,
			CourseID:   courseID,
			AccessType: string(accessType),
			ExpiresAt:  expires,
		},
	})
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
