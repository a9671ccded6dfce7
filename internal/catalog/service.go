package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/megano/internal/apperr"
)

const (
	limitedListSize = 16
	popularListSize = 8
	salesPageSize   = 20
	minRate         = 1
	maxRate         = 5
)

var ErrReviewerEmailRequired = apperr.New(apperr.KindValidation, "set an email in your profile before leaving a review")

// ReviewInput is a review as submitted by a signed-in user. Author and Email
// come from the user's profile.
type ReviewInput struct {
	ProductID int64
	Author    string
	Email     string
	Text      string
	Rate      int
}

type Service interface {
	Categories(ctx context.Context) ([]Category, error)
	Banners(ctx context.Context) ([]Product, error)
	Catalog(ctx context.Context, f Filter) (*Page[Product], error)
	Tags(ctx context.Context) ([]Tag, error)
	Sales(ctx context.Context, page int) (*Page[SaleItem], error)
	Limited(ctx context.Context) ([]Product, error)
	Popular(ctx context.Context) ([]Product, error)
	Product(ctx context.Context, id int64) (*Product, error)
	ProductsByIDs(ctx context.Context, ids []int64) ([]Product, error)
	CreateReview(ctx context.Context, in ReviewInput) (*Review, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

// NewServiceWithClock is NewService with an injectable clock for sale windows
// and review dates.
func NewServiceWithClock(repo Repository, now func() time.Time) Service {
	return &service{repo: repo, now: now}
}

// Categories returns the root categories with their subcategories nested.
func (s *service) Categories(ctx context.Context) ([]Category, error) {
	flat, err := s.repo.ListCategories(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list categories")
		return nil, fmt.Errorf("service: failed to list categories: %w", err)
	}
	return buildCategoryTree(flat), nil
}

func (s *service) Banners(ctx context.Context) ([]Product, error) {
	products, err := s.repo.ListMainCategoryProducts(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list banner products")
		return nil, fmt.Errorf("service: failed to list banners: %w", err)
	}
	return products, nil
}

func (s *service) Catalog(ctx context.Context, f Filter) (*Page[Product], error) {
	q, err := BuildCatalogQuery(f)
	if err != nil {
		return nil, err
	}

	products, total, err := s.repo.ListProducts(ctx, q)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list catalog products")
		return nil, fmt.Errorf("service: failed to list catalog: %w", err)
	}

	limit, _ := f.page()
	return &Page[Product]{
		Items:       products,
		CurrentPage: max(f.CurrentPage, 1),
		LastPage:    lastPage(total, limit),
	}, nil
}

func (s *service) Tags(ctx context.Context) ([]Tag, error) {
	tags, err := s.repo.ListTags(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list tags")
		return nil, fmt.Errorf("service: failed to list tags: %w", err)
	}
	return tags, nil
}

func (s *service) Sales(ctx context.Context, page int) (*Page[SaleItem], error) {
	page = max(page, 1)
	items, total, err := s.repo.ListSales(ctx, s.now(), salesPageSize, (page-1)*salesPageSize)
	if err != nil {
		log.Error().Err(err).Int("page", page).Msg("service: failed to list sales")
		return nil, fmt.Errorf("service: failed to list sales: %w", err)
	}
	return &Page[SaleItem]{
		Items:       items,
		CurrentPage: page,
		LastPage:    lastPage(total, salesPageSize),
	}, nil
}

// Limited lists products that are out of stock.
func (s *service) Limited(ctx context.Context) ([]Product, error) {
	products, err := s.repo.ListOutOfStock(ctx, limitedListSize)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list limited products")
		return nil, fmt.Errorf("service: failed to list limited products: %w", err)
	}
	return products, nil
}

func (s *service) Popular(ctx context.Context) ([]Product, error) {
	products, err := s.repo.ListMostReviewed(ctx, popularListSize)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list popular products")
		return nil, fmt.Errorf("service: failed to list popular products: %w", err)
	}
	return products, nil
}

func (s *service) Product(ctx context.Context, id int64) (*Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			log.Warn().Int64("product_id", id).Msg("service: product not found")
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Int64("product_id", id).Msg("service: failed to get product")
		return nil, fmt.Errorf("service: failed to get product %d: %w", id, err)
	}
	return p, nil
}

func (s *service) ProductsByIDs(ctx context.Context, ids []int64) ([]Product, error) {
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		log.Error().Err(err).Ints64("product_ids", ids).Msg("service: failed to get products by ids")
		return nil, fmt.Errorf("service: failed to get products: %w", err)
	}
	return products, nil
}

func (s *service) CreateReview(ctx context.Context, in ReviewInput) (*Review, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return nil, ErrReviewerEmailRequired
	}
	if in.Rate < minRate || in.Rate > maxRate {
		return nil, apperr.Validation("rate must be between %d and %d", minRate, maxRate)
	}

	review := &Review{
		ProductID: in.ProductID,
		Author:    in.Author,
		Email:     email,
		Text:      in.Text,
		Rate:      in.Rate,
		Date:      s.now().UTC(),
	}

	if err := s.repo.CreateReview(ctx, review, AverageRating); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateReview), errors.Is(err, ErrProductNotFound):
			log.Warn().Err(err).Int64("product_id", in.ProductID).Str("email", email).Msg("service: review rejected")
			return nil, err
		default:
			log.Error().Err(err).Int64("product_id", in.ProductID).Msg("service: failed to create review")
			return nil, fmt.Errorf("service: failed to create review: %w", err)
		}
	}

	log.Info().Int64("product_id", in.ProductID).Int64("review_id", review.ID).Msg("service: review created")
	return review, nil
}

// AverageRating is the arithmetic mean of rates rounded to two places.
func AverageRating(rates []int) decimal.Decimal {
	if len(rates) == 0 {
		return decimal.Zero
	}
	sum := 0
	for _, r := range rates {
		sum += r
	}
	return decimal.NewFromInt(int64(sum)).
		DivRound(decimal.NewFromInt(int64(len(rates))), 2)
}

func buildCategoryTree(flat []Category) []Category {
	children := make(map[int64][]Category)
	for _, c := range flat {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c)
		}
	}

	roots := make([]Category, 0)
	for _, c := range flat {
		if c.ParentID == nil {
			c.Subcategories = children[c.ID]
			roots = append(roots, c)
		}
	}
	return roots
}
