package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	MinCategoryNameLen = 2
	MaxCategoryNameLen = 50
)

// DefaultCategories are created on first start when the table is empty.
var DefaultCategories = []string{
	"Groceries",
	"Utilities",
	"Transport",
	"Entertainment",
	"Clothing",
}

// Category is a named expense classification.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Normalize trims surrounding whitespace from the name.
func (c *Category) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
}

// Validate checks the category name bounds.
func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrCategoryNameRequired
	}
	if n := utf8.RuneCountInString(name); n < MinCategoryNameLen || n > MaxCategoryNameLen {
		return ErrCategoryNameLength
	}
	return nil
}

// CategoryInfo summarizes the payments filed under a category.
type CategoryInfo struct {
	PaymentCount int             `json:"payment_count"`
	Total        decimal.Decimal `json:"total"`
	LastPayment  *time.Time      `json:"last_payment,omitempty"`
}
