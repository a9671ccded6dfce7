package http_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/megano/internal/catalog"
	megahttp "github.com/vasiliy-maslov/megano/internal/handler/http"
	"github.com/vasiliy-maslov/megano/internal/profile"
)

func TestCatalogHandler_Catalog(t *testing.T) {
	ts := newTestServer(t)

	category := int64(4)
	ts.catalog.On("Catalog", mock.Anything, mock.MatchedBy(func(f catalog.Filter) bool {
		return f.Name == "phone" && f.CategoryID != nil && *f.CategoryID == 4 &&
			f.MinPrice != nil && f.MinPrice.Equal(dec("100")) && f.CurrentPage == 2 &&
			len(f.TagIDs) == 2
	})).Return(&catalog.Page[catalog.Product]{
		Items: []catalog.Product{{
			ID: 1, CategoryID: &category, Title: "Phone", Price: dec("250.00"),
			Count: 3, Rating: dec("4.5"), ReviewsCount: 2,
		}},
		CurrentPage: 2,
		LastPage:    3,
	}, nil).Once()

	rr := ts.do(t, http.MethodGet,
		"/api/catalog?filter[name]=phone&filter[minPrice]=100&category=4&currentPage=2&tags[]=1&tags[]=2", nil)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var page megahttp.PageResponse[megahttp.ProductShortResponse]
	decodeBody(t, rr, &page)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 3, page.LastPage)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Phone", page.Items[0].Title)
	assert.Equal(t, 2, page.Items[0].Reviews)
	assert.NotNil(t, page.Items[0].Images)
	ts.catalog.AssertExpectations(t)
}

func TestCatalogHandler_Catalog_InvalidFilter(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/api/catalog?filter[minPrice]=cheap", nil)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, errorMessage(t, rr), "filter[minPrice]")
	ts.catalog.AssertNotCalled(t, "Catalog", mock.Anything, mock.Anything)
}

func TestCatalogHandler_Product(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		setupMock  func(m *MockCatalogService)
		wantStatus int
	}{
		{
			name:   "found",
			target: "/api/product/7",
			setupMock: func(m *MockCatalogService) {
				m.On("Product", mock.Anything, int64(7)).Return(&catalog.Product{
					ID: 7, Title: "Laptop", Price: dec("900"),
					Reviews: []catalog.Review{{Author: "Ann", Email: "ann@example.com", Text: "ok", Rate: 4,
						Date: time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)}},
				}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "not_found",
			target: "/api/product/8",
			setupMock: func(m *MockCatalogService) {
				m.On("Product", mock.Anything, int64(8)).Return(nil, catalog.ErrProductNotFound).Once()
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "bad_id",
			target:     "/api/product/abc",
			setupMock:  func(m *MockCatalogService) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			tt.setupMock(ts.catalog)

			rr := ts.do(t, http.MethodGet, tt.target, nil)

			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantStatus == http.StatusOK {
				var body megahttp.ProductDetailResponse
				decodeBody(t, rr, &body)
				require.Len(t, body.Reviews, 1)
				assert.Equal(t, "09-03-2024 14:30", body.Reviews[0].Date)
				assert.NotNil(t, body.Specifications)
			}
			ts.catalog.AssertExpectations(t)
		})
	}
}

func TestCatalogHandler_Sales(t *testing.T) {
	ts := newTestServer(t)

	ts.catalog.On("Sales", mock.Anything, 1).Return(&catalog.Page[catalog.SaleItem]{
		Items: []catalog.SaleItem{{
			ProductID: 3, Title: "Watch", Price: dec("100"), SalePrice: dec("80"),
			DateFrom: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			DateTo:   time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		}},
		CurrentPage: 1,
		LastPage:    1,
	}, nil).Once()

	rr := ts.do(t, http.MethodGet, "/api/sales", nil)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var page megahttp.PageResponse[megahttp.SaleResponse]
	decodeBody(t, rr, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "01-05", page.Items[0].DateFrom)
	assert.Equal(t, "15-06", page.Items[0].DateTo)
	assert.True(t, dec("80").Equal(page.Items[0].SalePrice))

	rr = ts.do(t, http.MethodGet, "/api/sales?currentPage=0", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCatalogHandler_EmptyListsAreArrays(t *testing.T) {
	ts := newTestServer(t)

	ts.catalog.On("Categories", mock.Anything).Return(nil, nil).Once()
	ts.catalog.On("Tags", mock.Anything).Return(nil, nil).Once()
	ts.catalog.On("Banners", mock.Anything).Return(nil, nil).Once()

	rr := ts.do(t, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = ts.do(t, http.MethodGet, "/api/tags", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = ts.do(t, http.MethodGet, "/api/banners", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"items": []}`, rr.Body.String())
}

func TestCatalogHandler_CreateReview(t *testing.T) {
	t.Run("requires_authentication", func(t *testing.T) {
		ts := newTestServer(t)

		rr := ts.do(t, http.MethodPost, "/api/product/1/reviews", megahttp.ReviewRequest{Text: "Nice", Rate: 5})

		require.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Authentication required", errorMessage(t, rr))
	})

	t.Run("created", func(t *testing.T) {
		ts := newTestServer(t)

		ts.profiles.On("GetProfile", mock.Anything, int64(5)).
			Return(&profile.Profile{UserID: 5, FullName: "Ann Lee", Email: "ann@example.com"}, nil).Once()
		ts.catalog.On("CreateReview", mock.Anything, catalog.ReviewInput{
			ProductID: 1, Author: "Ann Lee", Email: "ann@example.com", Text: "Nice", Rate: 5,
		}).Return(&catalog.Review{
			ProductID: 1, Author: "Ann Lee", Email: "ann@example.com", Text: "Nice", Rate: 5,
			Date: time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC),
		}, nil).Once()

		rr := ts.do(t, http.MethodPost, "/api/product/1/reviews",
			megahttp.ReviewRequest{Text: "Nice", Rate: 5}, withBearer(t, ts, 5))

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var body megahttp.ReviewResponse
		decodeBody(t, rr, &body)
		assert.Equal(t, megahttp.ReviewResponse{
			Author: "Ann Lee", Email: "ann@example.com", Text: "Nice", Rate: 5, Date: "02-01-2024 03:04",
		}, body)
		ts.catalog.AssertExpectations(t)
		ts.profiles.AssertExpectations(t)
	})

	t.Run("rate_out_of_range", func(t *testing.T) {
		ts := newTestServer(t)

		rr := ts.do(t, http.MethodPost, "/api/product/1/reviews",
			megahttp.ReviewRequest{Text: "Nice", Rate: 6}, withBearer(t, ts, 5))

		require.Equal(t, http.StatusBadRequest, rr.Code)
		var body megahttp.ValidationErrorResponse
		decodeBody(t, rr, &body)
		assert.Equal(t, "Must be at most 5", body.Details["rate"])
	})

	t.Run("duplicate", func(t *testing.T) {
		ts := newTestServer(t)

		ts.profiles.On("GetProfile", mock.Anything, int64(5)).
			Return(&profile.Profile{UserID: 5, FullName: "Ann Lee", Email: "ann@example.com"}, nil).Once()
		ts.catalog.On("CreateReview", mock.Anything, mock.Anything).Return(nil, catalog.ErrDuplicateReview).Once()

		rr := ts.do(t, http.MethodPost, "/api/product/1/reviews",
			megahttp.ReviewRequest{Text: "Again", Rate: 3}, withBearer(t, ts, 5))

		require.Equal(t, http.StatusConflict, rr.Code)
	})
}
