package basket

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/megano/internal/apperr"
	"github.com/vasiliy-maslov/megano/internal/catalog"
)

// Catalog is the part of the catalog the basket reads products from.
type Catalog interface {
	Product(ctx context.Context, id int64) (*catalog.Product, error)
	ProductsByIDs(ctx context.Context, ids []int64) ([]catalog.Product, error)
}

// Line is a basket entry joined with its product. Count and Price are the
// basket's values, not the product's stock and list price.
type Line struct {
	Product catalog.Product
	Count   int
	Price   decimal.Decimal
}

type Service interface {
	Lines(ctx context.Context, b *Basket) ([]Line, error)
	Add(ctx context.Context, b *Basket, productID int64, count int) error
	Remove(ctx context.Context, b *Basket, productID int64, count int) error
}

type service struct {
	catalog Catalog
	now     func() time.Time
}

func NewService(c Catalog) Service {
	return &service{catalog: c, now: time.Now}
}

func NewServiceWithClock(c Catalog, now func() time.Time) Service {
	return &service{catalog: c, now: now}
}

func (s *service) Lines(ctx context.Context, b *Basket) ([]Line, error) {
	ids := b.ProductIDs()
	if len(ids) == 0 {
		return []Line{}, nil
	}

	products, err := s.catalog.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load basket products: %w", err)
	}

	lines := make([]Line, 0, len(products))
	for _, p := range products {
		lines = append(lines, Line{Product: p, Count: b.CountOf(p.ID), Price: b.PriceOf(p.ID)})
	}
	return lines, nil
}

// Add checks the product exists and that the basket count plus count stays
// within stock, then adds it at the product's current effective price.
func (s *service) Add(ctx context.Context, b *Basket, productID int64, count int) error {
	if count < 1 {
		return ErrInvalidCount
	}

	p, err := s.catalog.Product(ctx, productID)
	if err != nil {
		return err
	}

	if b.CountOf(productID)+count > p.Count {
		log.Warn().
			Int64("product_id", productID).
			Int("requested", count).
			Int("in_basket", b.CountOf(productID)).
			Int("stock", p.Count).
			Msg("service: basket add exceeds stock")
		return apperr.Validation("only %d of %q in stock", p.Count, p.Title)
	}

	return b.Add(productID, p.EffectivePrice(s.now()), count)
}

func (s *service) Remove(ctx context.Context, b *Basket, productID int64, count int) error {
	if _, err := s.catalog.Product(ctx, productID); err != nil {
		return err
	}
	return b.Remove(productID, count)
}
