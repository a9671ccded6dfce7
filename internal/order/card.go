package order

import (
	"strconv"

	"github.com/vasiliy-maslov/megano/internal/apperr"
	"github.com/vasiliy-maslov/megano/internal/profile"
)

// Card is the payment data a customer submits.
type Card struct {
	Number string
	Name   string
	Month  string
	Year   string
	Code   string
}

// CardValidator decides whether a card may pay for an order.
type CardValidator interface {
	Validate(card Card) error
}

// SimulatedValidator accepts cards by fixed rules instead of contacting a
// payment provider.
type SimulatedValidator struct{}

const (
	minCardYear      = 1970
	maxCardYear      = 2199
	maxCardNumberLen = 8
	cardCodeLen      = 3
)

func (SimulatedValidator) Validate(c Card) error {
	for _, v := range []string{c.Number, c.Month, c.Year, c.Code} {
		if !isDigits(v) {
			return apperr.Validation("card number, dates and code must be numbers")
		}
	}

	month, _ := strconv.Atoi(c.Month)
	if month < 1 || month > 12 {
		return apperr.Validation("month must be between 1 and 12")
	}

	year, err := strconv.Atoi(c.Year)
	if err != nil || year < minCardYear || year > maxCardYear {
		return apperr.Validation("invalid year")
	}

	last := c.Number[len(c.Number)-1]
	if (last-'0')%2 != 0 {
		return apperr.Validation("card number must be even")
	}
	if len(c.Number) > maxCardNumberLen {
		return apperr.Validation("card number must not be longer than %d digits", maxCardNumberLen)
	}
	if last == '0' {
		return apperr.Validation("card number must not end with zero")
	}

	if len(c.Code) != cardCodeLen {
		return apperr.Validation("CVV code must be %d digits", cardCodeLen)
	}

	return profile.ValidateFullName(c.Name)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
