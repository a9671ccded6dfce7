package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Image struct {
	Src string `json:"src" db:"src"`
	Alt string `json:"alt" db:"alt"`
}

type Category struct {
	ID            int64      `json:"id" db:"id"`
	Title         string     `json:"title" db:"title"`
	ParentID      *int64     `json:"-" db:"parent_id"`
	Main          bool       `json:"-" db:"main"`
	Image         *Image     `json:"image,omitempty" db:"-"`
	Subcategories []Category `json:"subcategories,omitempty" db:"-"`
}

type Tag struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type Specification struct {
	Name  string `json:"name" db:"name"`
	Value string `json:"value" db:"value"`
}

type Review struct {
	ID        int64     `json:"-" db:"id"`
	ProductID int64     `json:"-" db:"product_id"`
	Author    string    `json:"author" db:"author"`
	Email     string    `json:"email" db:"email"`
	Text      string    `json:"text" db:"text"`
	Rate      int       `json:"rate" db:"rate"`
	Date      time.Time `json:"date" db:"created_at"`
}

// Sale is a time-bounded discounted price for a product.
type Sale struct {
	ProductID int64           `db:"product_id"`
	SalePrice decimal.Decimal `db:"sale_price"`
	DateFrom  time.Time       `db:"date_from"`
	DateTo    time.Time       `db:"date_to"`
}

// Active reports whether the sale applies at now. Both bounds are days and
// are inclusive.
func (s *Sale) Active(now time.Time) bool {
	if s == nil {
		return false
	}
	day := truncateDay(now)
	return !day.Before(truncateDay(s.DateFrom)) && !day.After(truncateDay(s.DateTo))
}

type Product struct {
	ID              int64           `db:"id"`
	CategoryID      *int64          `db:"category_id"`
	Title           string          `db:"title"`
	Price           decimal.Decimal `db:"price"`
	Count           int             `db:"count"`
	Date            time.Time       `db:"created_at"`
	Description     string          `db:"description"`
	FullDescription string          `db:"full_description"`
	FreeDelivery    bool            `db:"free_delivery"`
	Rating          decimal.Decimal `db:"rating"`
	ReviewsCount    int             `db:"reviews_count"`

	Sale           *Sale           `db:"-"`
	Tags           []Tag           `db:"-"`
	Images         []Image         `db:"-"`
	Specifications []Specification `db:"-"`
	Reviews        []Review        `db:"-"`
}

// EffectivePrice is the sale price while a sale is active, otherwise the
// list price.
func (p *Product) EffectivePrice(now time.Time) decimal.Decimal {
	if p.Sale.Active(now) {
		return p.Sale.SalePrice
	}
	return p.Price
}

// SaleItem is a sale joined with its product for the sales listing.
type SaleItem struct {
	ProductID int64           `db:"product_id"`
	Title     string          `db:"title"`
	Price     decimal.Decimal `db:"price"`
	SalePrice decimal.Decimal `db:"sale_price"`
	DateFrom  time.Time       `db:"date_from"`
	DateTo    time.Time       `db:"date_to"`
	Images    []Image         `db:"-"`
}

// Page is one page of a listing.
type Page[T any] struct {
	Items       []T
	CurrentPage int
	LastPage    int
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
