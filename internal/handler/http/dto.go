package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/megano/internal/basket"
	"github.com/vasiliy-maslov/megano/internal/catalog"
	"github.com/vasiliy-maslov/megano/internal/order"
	"github.com/vasiliy-maslov/megano/internal/profile"
)

const (
	reviewDateLayout = "02-01-2006 15:04"
	saleDateLayout   = "02-01"
	orderDateLayout  = "02 January 2006, 15:04:05"
)

type BasketRequest struct {
	ID    int64 `json:"id" validate:"required,gt=0"`
	Count int   `json:"count" validate:"required,gt=0"`
}

type ReviewRequest struct {
	Text string `json:"text" validate:"required"`
	Rate int    `json:"rate" validate:"required,min=1,max=5"`
}

// OrderProductRequest is one entry of the product list posted to create an
// order. Only the id is read.
type OrderProductRequest struct {
	ID int64 `json:"id" validate:"required,gt=0"`
}

type CheckoutRequest struct {
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	DeliveryType string `json:"deliveryType"`
	PaymentType  string `json:"paymentType"`
	City         string `json:"city"`
	Address      string `json:"address"`
}

type PaymentRequest struct {
	Number string `json:"number" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Month  string `json:"month" validate:"required"`
	Year   string `json:"year" validate:"required"`
	Code   string `json:"code" validate:"required"`
}

type SignInRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type SignUpRequest struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	FullName *string `json:"fullName,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	// Avatar is echoed back by the storefront and ignored; uploads go
	// through /api/profile/avatar.
	Avatar interface{} `json:"avatar,omitempty"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type OrderCreatedResponse struct {
	OrderID int64 `json:"orderId"`
}

type ProductShortResponse struct {
	ID           int64           `json:"id"`
	Category     *int64          `json:"category"`
	Price        decimal.Decimal `json:"price"`
	Count        int             `json:"count"`
	Date         time.Time       `json:"date"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	FreeDelivery bool            `json:"freeDelivery"`
	Images       []catalog.Image `json:"images"`
	Tags         []catalog.Tag   `json:"tags"`
	Reviews      int             `json:"reviews"`
	Rating       decimal.Decimal `json:"rating"`
}

type ReviewResponse struct {
	Author string `json:"author"`
	Email  string `json:"email"`
	Text   string `json:"text"`
	Rate   int    `json:"rate"`
	Date   string `json:"date"`
}

type ProductDetailResponse struct {
	ID              int64                   `json:"id"`
	Category        *int64                  `json:"category"`
	Price           decimal.Decimal         `json:"price"`
	Count           int                     `json:"count"`
	Date            time.Time               `json:"date"`
	Title           string                  `json:"title"`
	Description     string                  `json:"description"`
	FullDescription string                  `json:"fullDescription"`
	FreeDelivery    bool                    `json:"freeDelivery"`
	Images          []catalog.Image         `json:"images"`
	Tags            []catalog.Tag           `json:"tags"`
	Reviews         []ReviewResponse        `json:"reviews"`
	Specifications  []catalog.Specification `json:"specifications"`
	Rating          decimal.Decimal         `json:"rating"`
}

type SaleResponse struct {
	ID        int64           `json:"id"`
	Price     decimal.Decimal `json:"price"`
	SalePrice decimal.Decimal `json:"salePrice"`
	DateFrom  string          `json:"dateFrom"`
	DateTo    string          `json:"dateTo"`
	Title     string          `json:"title"`
	Images    []catalog.Image `json:"images"`
}

type PageResponse[T any] struct {
	Items       []T `json:"items"`
	CurrentPage int `json:"currentPage"`
	LastPage    int `json:"lastPage"`
}

type ItemsResponse[T any] struct {
	Items []T `json:"items"`
}

type OrderResponse struct {
	ID           int64                  `json:"id"`
	OrderID      int64                  `json:"orderId"`
	CreatedAt    string                 `json:"createdAt"`
	FullName     string                 `json:"fullName"`
	Email        string                 `json:"email"`
	Phone        string                 `json:"phone"`
	DeliveryType string                 `json:"deliveryType"`
	PaymentType  string                 `json:"paymentType"`
	TotalCost    decimal.Decimal        `json:"totalCost"`
	Status       string                 `json:"status"`
	City         string                 `json:"city"`
	Address      string                 `json:"address"`
	Products     []ProductShortResponse `json:"products"`
}

type AvatarResponse struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

type ProfileResponse struct {
	FullName string          `json:"fullName"`
	Email    string          `json:"email"`
	Phone    string          `json:"phone"`
	Avatar   *AvatarResponse `json:"avatar"`
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// toProductShort renders p with its effective price at now.
func toProductShort(p catalog.Product, now time.Time) ProductShortResponse {
	return ProductShortResponse{
		ID:           p.ID,
		Category:     p.CategoryID,
		Price:        p.EffectivePrice(now),
		Count:        p.Count,
		Date:         p.Date,
		Title:        p.Title,
		Description:  p.Description,
		FreeDelivery: p.FreeDelivery,
		Images:       nonNil(p.Images),
		Tags:         nonNil(p.Tags),
		Reviews:      p.ReviewsCount,
		Rating:       p.Rating,
	}
}

func toProductShorts(products []catalog.Product, now time.Time) []ProductShortResponse {
	out := make([]ProductShortResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductShort(p, now))
	}
	return out
}

func toReview(r catalog.Review) ReviewResponse {
	return ReviewResponse{
		Author: r.Author,
		Email:  r.Email,
		Text:   r.Text,
		Rate:   r.Rate,
		Date:   r.Date.Format(reviewDateLayout),
	}
}

func toProductDetail(p catalog.Product, now time.Time) ProductDetailResponse {
	reviews := make([]ReviewResponse, 0, len(p.Reviews))
	for _, r := range p.Reviews {
		reviews = append(reviews, toReview(r))
	}
	return ProductDetailResponse{
		ID:              p.ID,
		Category:        p.CategoryID,
		Price:           p.EffectivePrice(now),
		Count:           p.Count,
		Date:            p.Date,
		Title:           p.Title,
		Description:     p.Description,
		FullDescription: p.FullDescription,
		FreeDelivery:    p.FreeDelivery,
		Images:          nonNil(p.Images),
		Tags:            nonNil(p.Tags),
		Reviews:         reviews,
		Specifications:  nonNil(p.Specifications),
		Rating:          p.Rating,
	}
}

func toSale(s catalog.SaleItem) SaleResponse {
	return SaleResponse{
		ID:        s.ProductID,
		Price:     s.Price,
		SalePrice: s.SalePrice,
		DateFrom:  s.DateFrom.Format(saleDateLayout),
		DateTo:    s.DateTo.Format(saleDateLayout),
		Title:     s.Title,
		Images:    nonNil(s.Images),
	}
}

// toBasketItems renders basket lines with the basket count and captured
// price in place of stock and list price.
func toBasketItems(lines []basket.Line, now time.Time) []ProductShortResponse {
	out := make([]ProductShortResponse, 0, len(lines))
	for _, l := range lines {
		item := toProductShort(l.Product, now)
		item.Count = l.Count
		item.Price = l.Price
		out = append(out, item)
	}
	return out
}

// toOrder renders d. Order products already carry the line quantity and
// price and no sale, so the clock does not matter.
func toOrder(d order.Detail) OrderResponse {
	return OrderResponse{
		ID:           d.ID,
		OrderID:      d.ID,
		CreatedAt:    d.CreatedAt.Format(orderDateLayout),
		FullName:     d.FullName,
		Email:        d.Email,
		Phone:        d.Phone,
		DeliveryType: d.DeliveryType,
		PaymentType:  d.PaymentType,
		TotalCost:    d.TotalCost,
		Status:       d.Status.String(),
		City:         d.City,
		Address:      d.Address,
		Products:     toProductShorts(d.Products, d.CreatedAt),
	}
}

func toProfile(p *profile.Profile) ProfileResponse {
	resp := ProfileResponse{FullName: p.FullName, Email: p.Email, Phone: p.Phone}
	if p.Avatar != nil {
		resp.Avatar = &AvatarResponse{Src: p.Avatar.Src, Alt: p.Avatar.Alt}
	}
	return resp
}
