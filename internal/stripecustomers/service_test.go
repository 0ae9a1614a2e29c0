package stripecustomers

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/coursehub/coursehub-backend/pkg/db/dbtest"
	"github.com/coursehub/coursehub-backend/pkg/db/models"
	pkgerrors "github.com/coursehub/coursehub-backend/pkg/errors"
	pkgstripe "github.com/coursehub/coursehub-backend/pkg/stripe"
)

type stubGateway struct {
	calls []pkgstripe.CustomerInput
	id    string
	err   error
}

func (s *stubGateway) CreateCustomer(_ context.Context, in pkgstripe.CustomerInput) (*stripe.Customer, error) {
	s.calls = append(s.calls, in)
	if s.err != nil {
		return nil, s.err
	}
	return &stripe.Customer{ID: s.id}, nil
}

func TestResolveCreatesOnceThenReadsThrough(t *testing.T) {
	db := dbtest.Open(t)
	gw := &stubGateway{id: "cus_123"}
	svc, err := NewService(NewRepository(db), gw, nil)
	require.NoError(t, err)

	in := Input{UserID: uuid.New(), Email: "ada@example.com", FullName: "Ada"}
	id, err := svc.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "cus_123", id)

	id, err = svc.Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "cus_123", id)
	require.Len(t, gw.calls, 1)
	assert.Equal(t, in.UserID.String(), gw.calls[0].UserID)

	owner, err := svc.OwnerOf(context.Background(), "cus_123")
	require.NoError(t, err)
	assert.Equal(t, in.UserID, owner)
}

func TestResolveKeepsExistingRowOnRace(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	userID := uuid.New()
	require.NoError(t, db.Create(&models.StripeCustomer{UserID: userID, StripeCustomerID: "cus_first"}).Error)

	inserted, err := repo.Insert(context.Background(), &models.StripeCustomer{UserID: userID, StripeCustomerID: "cus_second"})
	require.NoError(t, err)
	assert.False(t, inserted)

	row, err := repo.FindByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "cus_first", row.StripeCustomerID)
}

func TestResolveMapsGatewayFailure(t *testing.T) {
	db := dbtest.Open(t)
	svc, err := NewService(NewRepository(db), &stubGateway{err: errors.New("card_declined")}, nil)
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), Input{UserID: uuid.New(), Email: "x@example.com"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeCustomerCreateFailed, pkgerrors.As(err).Code())

	var count int64
	require.NoError(t, db.Model(&models.StripeCustomer{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestOwnerOfUnknownCustomer(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)), &stubGateway{}, nil)
	require.NoError(t, err)

	_, err = svc.OwnerOf(context.Background(), "cus_missing")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
