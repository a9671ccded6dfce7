// Package basket holds the session-scoped shopping basket.
package basket

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/megano/internal/apperr"
)

var (
	ErrItemNotInBasket = apperr.New(apperr.KindNotFound, "product is not in the basket")
	ErrInvalidCount    = apperr.New(apperr.KindValidation, "count must be greater than zero")
)

// Item is one basket entry. Price is captured when the product is first added.
type Item struct {
	Count int             `json:"count"`
	Price decimal.Decimal `json:"price"`
}

type Basket struct {
	Items map[int64]*Item `json:"items"`

	modified bool
}

func New() *Basket {
	return &Basket{Items: make(map[int64]*Item)}
}

// Add puts count units of the product into the basket. The price is only
// recorded for a new entry; an existing entry keeps its original price.
func (b *Basket) Add(productID int64, price decimal.Decimal, count int) error {
	if count < 1 {
		return ErrInvalidCount
	}
	b.ensure()

	if item, ok := b.Items[productID]; ok {
		item.Count += count
	} else {
		b.Items[productID] = &Item{Count: count, Price: price}
	}
	b.modified = true
	return nil
}

// Remove takes count units out. Removing at least the stored count deletes
// the entry.
func (b *Basket) Remove(productID int64, count int) error {
	if count < 1 {
		return ErrInvalidCount
	}
	item, ok := b.Items[productID]
	if !ok {
		return ErrItemNotInBasket
	}

	if count >= item.Count {
		delete(b.Items, productID)
	} else {
		item.Count -= count
	}
	b.modified = true
	return nil
}

func (b *Basket) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range b.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Count))))
	}
	return total
}

func (b *Basket) CountOf(productID int64) int {
	if item, ok := b.Items[productID]; ok {
		return item.Count
	}
	return 0
}

func (b *Basket) PriceOf(productID int64) decimal.Decimal {
	if item, ok := b.Items[productID]; ok {
		return item.Price
	}
	return decimal.Zero
}

func (b *Basket) Contains(productID int64) bool {
	_, ok := b.Items[productID]
	return ok
}

// ProductIDs returns the ids in the basket in ascending order.
func (b *Basket) ProductIDs() []int64 {
	ids := make([]int64, 0, len(b.Items))
	for id := range b.Items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (b *Basket) Len() int {
	return len(b.Items)
}

func (b *Basket) Clear() {
	b.Items = make(map[int64]*Item)
	b.modified = true
}

// Modified reports whether the basket changed since it was loaded.
func (b *Basket) Modified() bool {
	return b.modified
}

func (b *Basket) ensure() {
	if b.Items == nil {
		b.Items = make(map[int64]*Item)
	}
}
