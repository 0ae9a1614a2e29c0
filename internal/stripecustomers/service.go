package stripecustomers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	dbpkg "github.com/coursehub/coursehub-backend/pkg/db"
	"github.com/coursehub/coursehub-backend/pkg/db/models"
	pkgerrors "github.com/coursehub/coursehub-backend/pkg/errors"
	"github.com/coursehub/coursehub-backend/pkg/logger"
	pkgstripe "github.com/coursehub/coursehub-backend/pkg/stripe"
)

// Service resolves the processor customer for a user, creating it on first use.
type Service interface {
	Resolve(ctx context.Context, in Input) (string, error)
	OwnerOf(ctx context.Context, customerID string) (uuid.UUID, error)
}

// Input identifies the user a customer is resolved for.
type Input struct {
	UserID   uuid.UUID
	Email    string
	FullName string
}

type customerCreator interface {
	CreateCustomer(ctx context.Context, in pkgstripe.CustomerInput) (*stripe.Customer, error)
}

type service struct {
	repo    *Repository
	gateway customerCreator
	logg    *logger.Logger
}

func NewService(repo *Repository, gateway customerCreator, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stripe customer repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("stripe gateway required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, gateway: gateway, logg: logg}, nil
}

// Resolve returns the stored customer id or creates one with the processor.
// Two racing callers may both reach the processor; the customer idempotency
// key makes them receive the same customer and the insert keeps one row.
func (s *service) Resolve(ctx context.Context, in Input) (string, error) {
	existing, err := s.repo.FindByUserID(ctx, in.UserID)
	if err == nil {
		return existing.StripeCustomerID, nil
	}
	if !dbpkg.IsNotFound(err) {
		return "", pkgerrors.Wrap(pkgerrors.CodeCustomerCreateFailed, err, "load stripe customer")
	}

	created, err := s.gateway.CreateCustomer(ctx, pkgstripe.CustomerInput{
		UserID: in.UserID.String(),
		Email:  strings.TrimSpace(in.Email),
		Name:   strings.TrimSpace(in.FullName),
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeCustomerCreateFailed, err, "create stripe customer")
	}
	if created == nil || created.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeCustomerCreateFailed, "stripe customer id missing")
	}

	row := &models.StripeCustomer{
		UserID:           in.UserID,
		StripeCustomerID: created.ID,
		Email:            in.Email,
		Name:             in.FullName,
	}
	inserted, err := s.repo.Insert(ctx, row)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeCustomerCreateFailed, err, "persist stripe customer")
	}
	if !inserted {
		winner, err := s.repo.FindByUserID(ctx, in.UserID)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeCustomerCreateFailed, err, "reload stripe customer")
		}
		return winner.StripeCustomerID, nil
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":            in.UserID.String(),
		"stripe_customer_id": created.ID,
	})
	s.logg.Info(logCtx, "stripe customer created")
	return created.ID, nil
}

// OwnerOf maps a processor customer id back to the user.
func (s *service) OwnerOf(ctx context.Context, customerID string) (uuid.UUID, error) {
	row, err := s.repo.FindByCustomerID(ctx, customerID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "stripe customer not mapped")
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stripe customer")
	}
	return row.UserID, nil
}
