package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/megano/internal/apperr"
	"github.com/vasiliy-maslov/megano/internal/catalog"
)

type Status string

const (
	StatusUnconfirmed Status = "unconfirmed"
	StatusAccepted    Status = "accepted"
)

func (s Status) String() string {
	return string(s)
}

const DeliveryExpress = "express"

var (
	expressFee          = decimal.NewFromInt(500)
	standardFee         = decimal.NewFromInt(200)
	freeDeliveryMinimum = decimal.NewFromInt(2000)
)

// Line is the quantity and unit price of a product at the time the order was
// placed.
type Line struct {
	ProductID int64           `db:"product_id"`
	Quantity  int             `db:"quantity"`
	Price     decimal.Decimal `db:"price"`
}

type Order struct {
	ID           int64
	UserID       int64
	CreatedAt    time.Time
	FullName     string
	Email        string
	Phone        string
	DeliveryType string
	PaymentType  string
	City         string
	Address      string
	Subtotal     decimal.Decimal
	TotalCost    decimal.Decimal
	Status       Status
	Lines        []Line
}

// CheckoutComplete reports whether all checkout fields are filled in.
func (o *Order) CheckoutComplete() bool {
	return o.Checkout().Complete()
}

func (o *Order) Checkout() Checkout {
	return Checkout{
		FullName:     o.FullName,
		Email:        o.Email,
		Phone:        o.Phone,
		DeliveryType: o.DeliveryType,
		PaymentType:  o.PaymentType,
		City:         o.City,
		Address:      o.Address,
	}
}

func (o *Order) ProductIDs() []int64 {
	ids := make([]int64, 0, len(o.Lines))
	for _, l := range o.Lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}

// Checkout is the customer data submitted in the second checkout phase.
type Checkout struct {
	FullName     string
	Email        string
	Phone        string
	DeliveryType string
	PaymentType  string
	City         string
	Address      string
}

func (c Checkout) fields() []string {
	return []string{c.FullName, c.Email, c.Phone, c.DeliveryType, c.PaymentType, c.City, c.Address}
}

func (c Checkout) Complete() bool {
	for _, f := range c.fields() {
		if strings.TrimSpace(f) == "" {
			return false
		}
	}
	return true
}

func (c Checkout) Validate() error {
	if !c.Complete() {
		return ErrCheckoutIncomplete
	}
	return nil
}

// DeliveryFee is 500 for express delivery. Standard delivery costs 200 below
// a subtotal of 2000 and is free from 2000.
func DeliveryFee(deliveryType string, subtotal decimal.Decimal) decimal.Decimal {
	if deliveryType == DeliveryExpress {
		return expressFee
	}
	if subtotal.LessThan(freeDeliveryMinimum) {
		return standardFee
	}
	return decimal.Zero
}

// Detail is an order with its products. Each product's Count and Price are
// the quantity and price recorded on the order line.
type Detail struct {
	Order
	Products []catalog.Product
}

var (
	ErrOrderNotFound         = apperr.New(apperr.KindNotFound, "order not found")
	ErrOrderForbidden        = apperr.New(apperr.KindForbidden, "order belongs to another user")
	ErrOrderAlreadyProcessed = apperr.New(apperr.KindAlreadyProcessed, "order is already paid")
	ErrCheckoutIncomplete    = apperr.New(apperr.KindValidation, "not all order details are filled in")
	ErrEmptyOrder            = apperr.New(apperr.KindValidation, "order must contain at least one product")
	ErrProductNotInBasket    = apperr.New(apperr.KindValidation, "order contains a product that is not in the basket")
	ErrInsufficientStock     = apperr.New(apperr.KindValidation, "not enough stock to fulfil the order")
)
