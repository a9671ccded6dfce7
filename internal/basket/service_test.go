package basket_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/megano/internal/apperr"
	"github.com/vasiliy-maslov/megano/internal/basket"
	"github.com/vasiliy-maslov/megano/internal/catalog"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) Product(ctx context.Context, id int64) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalog) ProductsByIDs(ctx context.Context, ids []int64) ([]catalog.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

var now = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func saleProduct() *catalog.Product {
	return &catalog.Product{
		ID:    1,
		Title: "Phone",
		Price: dec("100.00"),
		Count: 5,
		Sale: &catalog.Sale{
			ProductID: 1,
			SalePrice: dec("80.00"),
			DateFrom:  now.AddDate(0, 0, -1),
			DateTo:    now.AddDate(0, 0, 1),
		},
	}
}

func TestService_Add_CapturesSalePrice(t *testing.T) {
	c := new(MockCatalog)
	svc := basket.NewServiceWithClock(c, func() time.Time { return now })

	c.On("Product", mock.Anything, int64(1)).Return(saleProduct(), nil).Once()

	b := basket.New()
	require.NoError(t, svc.Add(context.Background(), b, 1, 1))

	assert.True(t, dec("80.00").Equal(b.PriceOf(1)))

	ended := saleProduct()
	ended.Sale = nil
	c.On("Product", mock.Anything, int64(1)).Return(ended, nil).Once()

	require.NoError(t, svc.Add(context.Background(), b, 1, 1))
	assert.Equal(t, 2, b.CountOf(1))
	assert.True(t, dec("80.00").Equal(b.PriceOf(1)), "price must stay as captured")
	assert.True(t, dec("160.00").Equal(b.TotalPrice()))
	c.AssertExpectations(t)
}

func TestService_Add_ExpiredSaleUsesListPrice(t *testing.T) {
	c := new(MockCatalog)
	later := now.AddDate(0, 0, 5)
	svc := basket.NewServiceWithClock(c, func() time.Time { return later })

	c.On("Product", mock.Anything, int64(1)).Return(saleProduct(), nil).Once()

	b := basket.New()
	require.NoError(t, svc.Add(context.Background(), b, 1, 1))
	assert.True(t, dec("100.00").Equal(b.PriceOf(1)))
}

func TestService_Add_ExceedsStock(t *testing.T) {
	c := new(MockCatalog)
	svc := basket.NewServiceWithClock(c, func() time.Time { return now })

	c.On("Product", mock.Anything, int64(1)).Return(saleProduct(), nil)

	b := basket.New()
	require.NoError(t, svc.Add(context.Background(), b, 1, 4))

	err := svc.Add(context.Background(), b, 1, 2)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, 4, b.CountOf(1))
}

func TestService_Add_UnknownProduct(t *testing.T) {
	c := new(MockCatalog)
	svc := basket.NewService(c)

	c.On("Product", mock.Anything, int64(9)).Return(nil, catalog.ErrProductNotFound).Once()

	err := svc.Add(context.Background(), basket.New(), 9, 1)
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestService_Add_InvalidCountSkipsLookup(t *testing.T) {
	c := new(MockCatalog)
	svc := basket.NewService(c)

	err := svc.Add(context.Background(), basket.New(), 1, 0)
	require.ErrorIs(t, err, basket.ErrInvalidCount)
	c.AssertNotCalled(t, "Product", mock.Anything, mock.Anything)
}

func TestService_Remove(t *testing.T) {
	c := new(MockCatalog)
	svc := basket.NewServiceWithClock(c, func() time.Time { return now })

	c.On("Product", mock.Anything, int64(1)).Return(saleProduct(), nil)

	b := basket.New()
	require.NoError(t, svc.Add(context.Background(), b, 1, 3))
	require.NoError(t, svc.Remove(context.Background(), b, 1, 3))
	assert.False(t, b.Contains(1))

	err := svc.Remove(context.Background(), b, 1, 1)
	require.ErrorIs(t, err, basket.ErrItemNotInBasket)
}

func TestService_Lines(t *testing.T) {
	c := new(MockCatalog)
	svc := basket.NewService(c)

	b := basket.New()
	require.NoError(t, b.Add(2, dec("10.00"), 3))

	c.On("ProductsByIDs", mock.Anything, []int64{2}).
		Return([]catalog.Product{{ID: 2, Title: "Cable", Price: dec("12.00"), Count: 50}}, nil).Once()

	lines, err := svc.Lines(context.Background(), b)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Count)
	assert.True(t, dec("10.00").Equal(lines[0].Price))
	assert.Equal(t, 50, lines[0].Product.Count)
}

func TestService_Lines_EmptyBasket(t *testing.T) {
	c := new(MockCatalog)
	svc := basket.NewService(c)

	lines, err := svc.Lines(context.Background(), basket.New())
	require.NoError(t, err)
	assert.Empty(t, lines)
	c.AssertNotCalled(t, "ProductsByIDs", mock.Anything, mock.Anything)
}
