package analytics

import (
	"time"

	"payment-tracker/internal/models"
	"payment-tracker/internal/storage"
)

// Period is an inclusive range of calendar days.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Validate requires both ends and From not after To.
func (p Period) Validate() error {
	if p.From.IsZero() || p.To.IsZero() {
		return models.ErrPeriodRequired
	}
	if startOfDay(p.From).After(startOfDay(p.To)) {
		return models.ErrPeriodOrder
	}
	return nil
}

// Filter converts the period into a storage filter covering whole days.
func (p Period) Filter() storage.PaymentFilter {
	var f storage.PaymentFilter
	if !p.From.IsZero() {
		f.From = startOfDay(p.From)
	}
	if !p.To.IsZero() {
		f.Until = EndOfDay(p.To)
	}
	return f
}

// EndOfDay returns the last second of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Second)
}
