package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/megano/internal/apperr"
	"github.com/vasiliy-maslov/megano/internal/basket"
	"github.com/vasiliy-maslov/megano/internal/catalog"
	"github.com/vasiliy-maslov/megano/internal/metrics"
)

type Catalog interface {
	ProductsByIDs(ctx context.Context, ids []int64) ([]catalog.Product, error)
}

type Service interface {
	List(ctx context.Context, userID int64) ([]Detail, error)
	Create(ctx context.Context, userID int64, b *basket.Basket, productIDs []int64) (int64, error)
	Get(ctx context.Context, userID, orderID int64) (*Detail, error)
	UpdateCheckout(ctx context.Context, userID, orderID int64, c Checkout) (*Detail, error)
	Pay(ctx context.Context, userID, orderID int64, card Card) error
}

type service struct {
	repo      Repository
	catalog   Catalog
	validator CardValidator
}

func NewService(repo Repository, c Catalog, validator CardValidator) Service {
	if validator == nil {
		validator = SimulatedValidator{}
	}
	return &service{repo: repo, catalog: c, validator: validator}
}

func (s *service) List(ctx context.Context, userID int64) ([]Detail, error) {
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("service: failed to fetch user orders in repository")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}

	seen := make(map[int64]bool)
	var ids []int64
	for _, o := range orders {
		for _, id := range o.ProductIDs() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	products, err := s.products(ctx, ids)
	if err != nil {
		return nil, err
	}

	details := make([]Detail, 0, len(orders))
	for _, o := range orders {
		details = append(details, detailOf(o, products))
	}
	return details, nil
}

// Create places an unconfirmed order for productIDs, which must all be in
// the basket. Stock is not touched until payment.
func (s *service) Create(ctx context.Context, userID int64, b *basket.Basket, productIDs []int64) (int64, error) {
	if len(productIDs) == 0 {
		return 0, ErrEmptyOrder
	}

	seen := make(map[int64]bool, len(productIDs))
	lines := make([]Line, 0, len(productIDs))
	subtotal := decimal.Zero
	for _, id := range productIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		if !b.Contains(id) {
			log.Warn().Int64("user_id", userID).Int64("product_id", id).Msg("service: order product is not in the basket")
			return 0, ErrProductNotInBasket
		}
		l := Line{ProductID: id, Quantity: b.CountOf(id), Price: b.PriceOf(id)}
		lines = append(lines, l)
		subtotal = subtotal.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	o := &Order{
		UserID:    userID,
		Subtotal:  subtotal,
		TotalCost: subtotal,
		Status:    StatusUnconfirmed,
		Lines:     lines,
	}

	id, err := s.repo.Create(ctx, o)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("service: failed to create order in repository")
		return 0, fmt.Errorf("service: failed to create order: %w", err)
	}

	metrics.OrdersCreated.Inc()
	log.Info().Int64("order_id", id).Int64("user_id", userID).Stringer("total", subtotal).Msg("service: order created")
	return id, nil
}

func (s *service) Get(ctx context.Context, userID, orderID int64) (*Detail, error) {
	o, err := s.owned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, *o)
}

// UpdateCheckout fills in the customer data and sets the total from the
// stored subtotal, so repeating it gives the same total.
func (s *service) UpdateCheckout(ctx context.Context, userID, orderID int64, c Checkout) (*Detail, error) {
	c = trimCheckout(c)
	if err := c.Validate(); err != nil {
		return nil, err
	}

	o, err := s.owned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusUnconfirmed {
		log.Warn().Int64("order_id", orderID).Stringer("status", o.Status).Msg("service: checkout update on processed order")
		return nil, ErrOrderAlreadyProcessed
	}

	o.FullName = c.FullName
	o.Email = c.Email
	o.Phone = c.Phone
	o.DeliveryType = c.DeliveryType
	o.PaymentType = c.PaymentType
	o.City = c.City
	o.Address = c.Address
	o.TotalCost = o.Subtotal.Add(DeliveryFee(c.DeliveryType, o.Subtotal))

	if err := s.repo.UpdateCheckout(ctx, o); err != nil {
		if errors.Is(err, ErrOrderAlreadyProcessed) {
			return nil, err
		}
		log.Error().Err(err).Int64("order_id", orderID).Msg("service: failed to update order checkout")
		return nil, fmt.Errorf("service: failed to update checkout: %w", err)
	}

	log.Info().Int64("order_id", orderID).Stringer("total", o.TotalCost).Msg("service: order checkout updated")
	return s.detail(ctx, *o)
}

// Pay validates the card and accepts the order. The caller clears the basket
// once Pay succeeds.
func (s *service) Pay(ctx context.Context, userID, orderID int64, card Card) error {
	o, err := s.owned(ctx, userID, orderID)
	if err != nil {
		metrics.Payments.WithLabelValues("rejected").Inc()
		return err
	}
	if o.Status != StatusUnconfirmed {
		metrics.Payments.WithLabelValues("rejected").Inc()
		log.Warn().Int64("order_id", orderID).Stringer("status", o.Status).Msg("service: payment for processed order")
		return ErrOrderAlreadyProcessed
	}
	if !o.CheckoutComplete() {
		metrics.Payments.WithLabelValues("rejected").Inc()
		return ErrCheckoutIncomplete
	}
	if err := s.validator.Validate(card); err != nil {
		metrics.Payments.WithLabelValues("rejected").Inc()
		log.Warn().Err(err).Int64("order_id", orderID).Msg("service: card rejected")
		return err
	}

	if err := s.repo.Accept(ctx, orderID, userID); err != nil {
		if apperr.KindOf(err) != apperr.KindInternal {
			metrics.Payments.WithLabelValues("rejected").Inc()
			log.Warn().Err(err).Int64("order_id", orderID).Msg("service: payment rejected")
			return err
		}
		metrics.Payments.WithLabelValues("failed").Inc()
		log.Error().Err(err).Int64("order_id", orderID).Msg("service: failed to accept order")
		return fmt.Errorf("service: failed to accept order: %w", err)
	}

	metrics.Payments.WithLabelValues("accepted").Inc()
	log.Info().Int64("order_id", orderID).Int64("user_id", userID).Msg("service: order paid")
	return nil
}

func (s *service) owned(ctx context.Context, userID, orderID int64) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Int64("order_id", orderID).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Int64("order_id", orderID).Msg("service: failed to fetch order by id in repository")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}
	if o.UserID != userID {
		log.Warn().Int64("order_id", orderID).Int64("user_id", userID).Msg("service: order belongs to another user")
		return nil, ErrOrderForbidden
	}
	return o, nil
}

func (s *service) detail(ctx context.Context, o Order) (*Detail, error) {
	products, err := s.products(ctx, o.ProductIDs())
	if err != nil {
		return nil, err
	}
	d := detailOf(o, products)
	return &d, nil
}

func (s *service) products(ctx context.Context, ids []int64) (map[int64]catalog.Product, error) {
	out := make(map[int64]catalog.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	products, err := s.catalog.ProductsByIDs(ctx, ids)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to load order products")
		return nil, fmt.Errorf("service: failed to load order products: %w", err)
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// detailOf substitutes line quantity and price for live stock and price.
// Products deleted from the catalog since are left out.
func detailOf(o Order, products map[int64]catalog.Product) Detail {
	d := Detail{Order: o, Products: make([]catalog.Product, 0, len(o.Lines))}
	for _, l := range o.Lines {
		p, ok := products[l.ProductID]
		if !ok {
			continue
		}
		p.Count = l.Quantity
		p.Price = l.Price
		p.Sale = nil
		d.Products = append(d.Products, p)
	}
	return d
}

func trimCheckout(c Checkout) Checkout {
	return Checkout{
		FullName:     strings.TrimSpace(c.FullName),
		Email:        strings.TrimSpace(c.Email),
		Phone:        strings.TrimSpace(c.Phone),
		DeliveryType: strings.TrimSpace(c.DeliveryType),
		PaymentType:  strings.TrimSpace(c.PaymentType),
		City:         strings.TrimSpace(c.City),
		Address:      strings.TrimSpace(c.Address),
	}
}
