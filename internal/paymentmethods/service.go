package paymentmethods

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/coursehub/coursehub-backend/pkg/db/models"
	"github.com/coursehub/coursehub-backend/pkg/enums"
	pkgerrors "github.com/coursehub/coursehub-backend/pkg/errors"
)

// Service mirrors payment methods attached on the processor side.
type Service interface {
	Attach(ctx context.Context, userID uuid.UUID, pm *stripe.PaymentMethod) (*DTO, error)
	List(ctx context.Context, userID uuid.UUID) ([]DTO, error)
}

// DTO is the card summary shown to the owner.
type DTO struct {
	ID                    uuid.UUID               `json:"id"`
	StripePaymentMethodID string                  `json:"stripe_payment_method_id"`
	Type                  enums.PaymentMethodType `json:"type"`
	CardBrand             *string                 `json:"card_brand,omitempty"`
	CardLast4             *string                 `json:"card_last4,omitempty"`
	CardExpMonth          *int                    `json:"card_exp_month,omitempty"`
	CardExpYear           *int                    `json:"card_exp_year,omitempty"`
	CreatedAt             time.Time               `json:"created_at"`
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment method repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Attach(ctx context.Context, userID uuid.UUID, pm *stripe.PaymentMethod) (*DTO, error) {
	if pm == nil || pm.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method id required")
	}
	if pm.Customer == nil || pm.Customer.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method has no customer")
	}

	row := FromStripe(userID, pm)
	if err := s.repo.Upsert(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, err.Error())
	}
	dto := toDTO(*row)
	return &dto, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]DTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment methods")
	}
	out := make([]DTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out, nil
}

// FromStripe copies the card metadata of a processor payment method.
func FromStripe(userID uuid.UUID, pm *stripe.PaymentMethod) *models.PaymentMethod {
	row := &models.PaymentMethod{
		UserID:                userID,
		StripePaymentMethodID: pm.ID,
		Type:                  enums.NormalizePaymentMethodType(string(pm.Type)),
	}
	if pm.Customer != nil {
		row.StripeCustomerID = pm.Customer.ID
	}
	if card := pm.Card; card != nil {
		brand := string(card.Brand)
		last4 := card.Last4
		month := int(card.ExpMonth)
		year := int(card.ExpYear)
		row.CardBrand = &brand
		row.CardLast4 = &last4
		row.CardExpMonth = &month
		row.CardExpYear = &year
	}
	return row
}

func toDTO(m models.PaymentMethod) DTO {
	return DTO{
		ID:                    m.ID,
		StripePaymentMethodID: m.StripePaymentMethodID,
		Type:                  m.Type,
		CardBrand:             m.CardBrand,
		CardLast4:             m.CardLast4,
		CardExpMonth:          m.CardExpMonth,
		CardExpYear:           m.CardExpYear,
		CreatedAt:             m.CreatedAt,
	}
}
