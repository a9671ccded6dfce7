package http_test

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/vasiliy-maslov/megano/internal/basket"
	"github.com/vasiliy-maslov/megano/internal/catalog"
	"github.com/vasiliy-maslov/megano/internal/order"
	"github.com/vasiliy-maslov/megano/internal/profile"
)

type MockBasketService struct {
	mock.Mock
}

func (m *MockBasketService) Lines(ctx context.Context, b *basket.Basket) ([]basket.Line, error) {
	args := m.Called(ctx, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]basket.Line), args.Error(1)
}

func (m *MockBasketService) Add(ctx context.Context, b *basket.Basket, productID int64, count int) error {
	args := m.Called(ctx, b, productID, count)
	return args.Error(0)
}

func (m *MockBasketService) Remove(ctx context.Context, b *basket.Basket, productID int64, count int) error {
	args := m.Called(ctx, b, productID, count)
	return args.Error(0)
}

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) Categories(ctx context.Context) ([]catalog.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Category), args.Error(1)
}

func (m *MockCatalogService) Banners(ctx context.Context) ([]catalog.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockCatalogService) Catalog(ctx context.Context, f catalog.Filter) (*catalog.Page[catalog.Product], error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Page[catalog.Product]), args.Error(1)
}

func (m *MockCatalogService) Tags(ctx context.Context) ([]catalog.Tag, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Tag), args.Error(1)
}

func (m *MockCatalogService) Sales(ctx context.Context, page int) (*catalog.Page[catalog.SaleItem], error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Page[catalog.SaleItem]), args.Error(1)
}

func (m *MockCatalogService) Limited(ctx context.Context) ([]catalog.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockCatalogService) Popular(ctx context.Context) ([]catalog.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockCatalogService) Product(ctx context.Context, id int64) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogService) ProductsByIDs(ctx context.Context, ids []int64) ([]catalog.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockCatalogService) CreateReview(ctx context.Context, in catalog.ReviewInput) (*catalog.Review, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Review), args.Error(1)
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) List(ctx context.Context, userID int64) ([]order.Detail, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Detail), args.Error(1)
}

func (m *MockOrderService) Create(ctx context.Context, userID int64, b *basket.Basket, productIDs []int64) (int64, error) {
	args := m.Called(ctx, userID, b, productIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderService) Get(ctx context.Context, userID, orderID int64) (*order.Detail, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Detail), args.Error(1)
}

func (m *MockOrderService) UpdateCheckout(ctx context.Context, userID, orderID int64, c order.Checkout) (*order.Detail, error) {
	args := m.Called(ctx, userID, orderID, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Detail), args.Error(1)
}

func (m *MockOrderService) Pay(ctx context.Context, userID, orderID int64, card order.Card) error {
	args := m.Called(ctx, userID, orderID, card)
	return args.Error(0)
}

type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) SignUp(ctx context.Context, name, username, password string) (*profile.User, error) {
	args := m.Called(ctx, name, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*profile.User), args.Error(1)
}

func (m *MockProfileService) SignIn(ctx context.Context, username, password string) (*profile.User, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*profile.User), args.Error(1)
}

func (m *MockProfileService) GetProfile(ctx context.Context, userID int64) (*profile.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*profile.Profile), args.Error(1)
}

func (m *MockProfileService) UpdateProfile(ctx context.Context, userID int64, patch profile.Patch) (*profile.Profile, error) {
	args := m.Called(ctx, userID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*profile.Profile), args.Error(1)
}

func (m *MockProfileService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	args := m.Called(ctx, userID, current, next)
	return args.Error(0)
}

func (m *MockProfileService) UploadAvatar(ctx context.Context, userID int64, filename string, size int64, r io.Reader) (*profile.Profile, error) {
	args := m.Called(ctx, userID, filename, size, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*profile.Profile), args.Error(1)
}
