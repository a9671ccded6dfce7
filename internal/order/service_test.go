package order_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/megano/internal/apperr"
	"github.com/vasiliy-maslov/megano/internal/basket"
	"github.com/vasiliy-maslov/megano/internal/catalog"
	"github.com/vasiliy-maslov/megano/internal/order"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, o *order.Order) (int64, error) {
	args := m.Called(ctx, o)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockRepository) ListByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockRepository) UpdateCheckout(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockRepository) Accept(ctx context.Context, orderID, userID int64) error {
	args := m.Called(ctx, orderID, userID)
	return args.Error(0)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) ProductsByIDs(ctx context.Context, ids []int64) ([]catalog.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

type stubValidator struct {
	err   error
	calls int
}

func (v *stubValidator) Validate(order.Card) error {
	v.calls++
	return v.err
}

func unconfirmedOrder() *order.Order {
	return &order.Order{
		ID:        10,
		UserID:    1,
		Subtotal:  dec("1500"),
		TotalCost: dec("1500"),
		Status:    order.StatusUnconfirmed,
		Lines:     []order.Line{{ProductID: 3, Quantity: 2, Price: dec("750")}},
	}
}

func completeCheckout(delivery string) order.Checkout {
	return order.Checkout{
		FullName:     "Ivan Petrovich Sidorov",
		Email:        "ivan@example.com",
		Phone:        "89991234567",
		DeliveryType: delivery,
		PaymentType:  "online",
		City:         "Moscow",
		Address:      "Tverskaya 1",
	}
}

func filled(o *order.Order) *order.Order {
	c := completeCheckout("ordinary")
	o.FullName, o.Email, o.Phone = c.FullName, c.Email, c.Phone
	o.DeliveryType, o.PaymentType, o.City, o.Address = c.DeliveryType, c.PaymentType, c.City, c.Address
	return o
}

func TestService_Create(t *testing.T) {
	repo := new(MockRepository)
	svc := order.NewService(repo, new(MockCatalog), nil)

	b := basket.New()
	require.NoError(t, b.Add(3, dec("750"), 2))
	require.NoError(t, b.Add(4, dec("99.90"), 1))
	require.NoError(t, b.Add(5, dec("10"), 1))

	repo.On("Create", mock.Anything, mock.MatchedBy(func(o *order.Order) bool {
		return o.UserID == 1 &&
			o.Status == order.StatusUnconfirmed &&
			len(o.Lines) == 2 &&
			o.Subtotal.Equal(dec("1599.90")) &&
			o.TotalCost.Equal(dec("1599.90"))
	})).Return(int64(10), nil).Once()

	id, err := svc.Create(context.Background(), 1, b, []int64{3, 4})
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)
	assert.Equal(t, 3, b.Len(), "creating an order leaves the basket alone")
	repo.AssertExpectations(t)
}

func TestService_Create_Rejects(t *testing.T) {
	b := basket.New()
	require.NoError(t, b.Add(3, dec("750"), 2))

	tests := []struct {
		name    string
		ids     []int64
		wantErr error
	}{
		{name: "empty", ids: nil, wantErr: order.ErrEmptyOrder},
		{name: "not_in_basket", ids: []int64{3, 8}, wantErr: order.ErrProductNotInBasket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			svc := order.NewService(repo, new(MockCatalog), nil)

			_, err := svc.Create(context.Background(), 1, b, tt.ids)
			require.ErrorIs(t, err, tt.wantErr)
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestService_Get(t *testing.T) {
	repo := new(MockRepository)
	cat := new(MockCatalog)
	svc := order.NewService(repo, cat, nil)

	repo.On("GetByID", mock.Anything, int64(10)).Return(unconfirmedOrder(), nil)
	repo.On("GetByID", mock.Anything, int64(11)).Return(nil, order.ErrOrderNotFound)
	cat.On("ProductsByIDs", mock.Anything, []int64{3}).
		Return([]catalog.Product{{ID: 3, Title: "Camera", Price: dec("900"), Count: 40}}, nil)

	d, err := svc.Get(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, d.Products, 1)
	assert.Equal(t, 2, d.Products[0].Count, "count comes from the order line")
	assert.True(t, dec("750").Equal(d.Products[0].Price), "price comes from the order line")

	_, err = svc.Get(context.Background(), 2, 10)
	assert.ErrorIs(t, err, order.ErrOrderForbidden)

	_, err = svc.Get(context.Background(), 1, 11)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestService_UpdateCheckout_TotalIsIdempotent(t *testing.T) {
	repo := new(MockRepository)
	cat := new(MockCatalog)
	svc := order.NewService(repo, cat, nil)

	stored := unconfirmedOrder()
	repo.On("GetByID", mock.Anything, int64(10)).Return(stored, nil)
	repo.On("UpdateCheckout", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		*stored = *args.Get(1).(*order.Order)
	})
	cat.On("ProductsByIDs", mock.Anything, []int64{3}).Return([]catalog.Product{{ID: 3}}, nil)

	for i := 0; i < 2; i++ {
		d, err := svc.UpdateCheckout(context.Background(), 1, 10, completeCheckout("ordinary"))
		require.NoError(t, err)
		assert.True(t, dec("1700").Equal(d.TotalCost), "attempt %d got %s", i+1, d.TotalCost)
	}

	d, err := svc.UpdateCheckout(context.Background(), 1, 10, completeCheckout("express"))
	require.NoError(t, err)
	assert.True(t, dec("2000").Equal(d.TotalCost))
	assert.True(t, dec("1500").Equal(d.Subtotal))
}

func TestService_UpdateCheckout_Rejects(t *testing.T) {
	t.Run("incomplete", func(t *testing.T) {
		repo := new(MockRepository)
		svc := order.NewService(repo, new(MockCatalog), nil)

		c := completeCheckout("ordinary")
		c.City = "   "
		_, err := svc.UpdateCheckout(context.Background(), 1, 10, c)
		require.ErrorIs(t, err, order.ErrCheckoutIncomplete)
		repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("accepted", func(t *testing.T) {
		repo := new(MockRepository)
		svc := order.NewService(repo, new(MockCatalog), nil)

		o := unconfirmedOrder()
		o.Status = order.StatusAccepted
		repo.On("GetByID", mock.Anything, int64(10)).Return(o, nil)

		_, err := svc.UpdateCheckout(context.Background(), 1, 10, completeCheckout("ordinary"))
		require.ErrorIs(t, err, order.ErrOrderAlreadyProcessed)
		repo.AssertNotCalled(t, "UpdateCheckout", mock.Anything, mock.Anything)
	})
}

func TestService_Pay(t *testing.T) {
	repo := new(MockRepository)
	v := &stubValidator{}
	svc := order.NewService(repo, new(MockCatalog), v)

	repo.On("GetByID", mock.Anything, int64(10)).Return(filled(unconfirmedOrder()), nil)
	repo.On("Accept", mock.Anything, int64(10), int64(1)).Return(nil).Once()

	require.NoError(t, svc.Pay(context.Background(), 1, 10, validCard()))
	assert.Equal(t, 1, v.calls)
	repo.AssertExpectations(t)
}

func TestService_Pay_Rejects(t *testing.T) {
	declined := apperr.Validation("card number must be even")
	accepted := filled(unconfirmedOrder())
	accepted.Status = order.StatusAccepted

	tests := []struct {
		name         string
		userID       int64
		stored       *order.Order
		validatorErr error
		wantErr      error
	}{
		{name: "already_accepted", userID: 1, stored: accepted, wantErr: order.ErrOrderAlreadyProcessed},
		{name: "checkout_missing", userID: 1, stored: unconfirmedOrder(), wantErr: order.ErrCheckoutIncomplete},
		{name: "other_user", userID: 2, stored: filled(unconfirmedOrder()), wantErr: order.ErrOrderForbidden},
		{name: "card_declined", userID: 1, stored: filled(unconfirmedOrder()), validatorErr: declined, wantErr: declined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			svc := order.NewService(repo, new(MockCatalog), &stubValidator{err: tt.validatorErr})

			repo.On("GetByID", mock.Anything, int64(10)).Return(tt.stored, nil)

			err := svc.Pay(context.Background(), tt.userID, 10, validCard())
			require.ErrorIs(t, err, tt.wantErr)
			repo.AssertNotCalled(t, "Accept", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestService_Pay_InsufficientStock(t *testing.T) {
	repo := new(MockRepository)
	svc := order.NewService(repo, new(MockCatalog), &stubValidator{})

	repo.On("GetByID", mock.Anything, int64(10)).Return(filled(unconfirmedOrder()), nil)
	repo.On("Accept", mock.Anything, int64(10), int64(1)).Return(order.ErrInsufficientStock)

	err := svc.Pay(context.Background(), 1, 10, validCard())
	require.ErrorIs(t, err, order.ErrInsufficientStock)
}

func TestService_Pay_RepositoryFailure(t *testing.T) {
	repo := new(MockRepository)
	svc := order.NewService(repo, new(MockCatalog), &stubValidator{})

	boom := errors.New("connection reset")
	repo.On("GetByID", mock.Anything, int64(10)).Return(filled(unconfirmedOrder()), nil)
	repo.On("Accept", mock.Anything, int64(10), int64(1)).Return(boom)

	err := svc.Pay(context.Background(), 1, 10, validCard())
	require.ErrorIs(t, err, boom)
}

func TestService_List(t *testing.T) {
	repo := new(MockRepository)
	cat := new(MockCatalog)
	svc := order.NewService(repo, cat, nil)

	second := unconfirmedOrder()
	second.ID = 12
	second.Lines = []order.Line{{ProductID: 3, Quantity: 1, Price: dec("700")}, {ProductID: 5, Quantity: 1, Price: dec("10")}}

	repo.On("ListByUser", mock.Anything, int64(1)).Return([]order.Order{*unconfirmedOrder(), *second}, nil)
	cat.On("ProductsByIDs", mock.Anything, []int64{3, 5}).
		Return([]catalog.Product{{ID: 3, Price: dec("900")}, {ID: 5, Price: dec("12")}}, nil).Once()

	details, err := svc.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Len(t, details[0].Products, 1)
	assert.Len(t, details[1].Products, 2)
	assert.True(t, dec("700").Equal(details[1].Products[0].Price))
	cat.AssertExpectations(t)
}
