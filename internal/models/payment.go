package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	MaxQuantity       = 1_000_000
	MaxPaymentNameLen = 200
)

// MaxPrice is the largest accepted unit price.
var MaxPrice = decimal.NewFromInt(1_000_000_000)

// Payment represents a single expense record. The total is never stored.
type Payment struct {
	ID         int64           `json:"id"`
	Date       time.Time       `json:"date"`
	UserID     int64           `json:"user_id"`
	CategoryID int64           `json:"category_id"`
	Name       string          `json:"name"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`

	// Filled by joined reads.
	UserFullName string `json:"user_full_name,omitempty"`
	CategoryName string `json:"category_name,omitempty"`
}

// Total returns quantity multiplied by unit price.
func (p Payment) Total() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(p.Quantity))
}

// Validate checks required fields and the quantity and price ranges.
func (p Payment) Validate() error {
	if p.Date.IsZero() {
		return ErrPaymentDateRequired
	}
	if p.UserID <= 0 {
		return ErrPaymentUserRequired
	}
	if p.CategoryID <= 0 {
		return ErrPaymentCategoryRequired
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return ErrPaymentNameRequired
	}
	if utf8.RuneCountInString(name) > MaxPaymentNameLen {
		return ErrPaymentNameTooLong
	}
	if p.Quantity <= 0 {
		return ErrQuantityNotPositive
	}
	if p.Quantity > MaxQuantity {
		return ErrQuantityTooLarge
	}
	if !p.Price.IsPositive() {
		return ErrPriceNotPositive
	}
	if p.Price.GreaterThan(MaxPrice) {
		return ErrPriceTooLarge
	}
	return nil
}
