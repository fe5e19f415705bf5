// Package analytics groups payments and builds the reports shown to
// administrators. Every call recomputes from the store; nothing is cached.
package analytics

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"payment-tracker/internal/models"
)

// Dimension selects how payments are grouped.
type Dimension string

const (
	ByCategory Dimension = "category"
	ByUser     Dimension = "user"
	ByDay      Dimension = "day"
	ByWeek     Dimension = "week"
	ByMonth    Dimension = "month"
)

// ParseDimension validates a dimension name.
func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(s); d {
	case ByCategory, ByUser, ByDay, ByWeek, ByMonth:
		return d, nil
	}
	return "", models.NewValidationError(fmt.Sprintf("unknown grouping %q", s))
}

// IsTime reports whether the dimension buckets by date.
func (d Dimension) IsTime() bool {
	return d == ByDay || d == ByWeek || d == ByMonth
}

// Group is one bucket of an aggregation.
type Group struct {
	Key   string          `json:"key"`
	Label string          `json:"label"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

func keyOf(p models.Payment, d Dimension) (key, label string) {
	switch d {
	case ByCategory:
		return strconv.FormatInt(p.CategoryID, 10), p.CategoryName
	case ByUser:
		return strconv.FormatInt(p.UserID, 10), p.UserFullName
	case ByWeek:
		year, week := p.Date.ISOWeek()
		monday := startOfDay(p.Date).AddDate(0, 0, -((int(p.Date.Weekday()) + 6) % 7))
		return fmt.Sprintf("%04d-W%02d", year, week), monday.Format("02.01.2006")
	case ByMonth:
		return p.Date.Format("2006-01"), p.Date.Format("01.2006")
	default:
		return p.Date.Format("2006-01-02"), p.Date.Format("02.01.2006")
	}
}

func group(payments []models.Payment, d Dimension) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, p := range payments {
		key, label := keyOf(p, d)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key, Label: label, Total: decimal.Zero})
		}
		groups[i].Count++
		groups[i].Total = groups[i].Total.Add(p.Total())
	}
	if groups == nil {
		groups = []Group{}
	}
	return groups
}

// Aggregate groups payments by d and orders groups by total descending, ties
// by label. A positive limit keeps only the first limit groups.
func Aggregate(payments []models.Payment, d Dimension, limit int) []Group {
	groups := group(payments, d)
	sort.SliceStable(groups, func(i, j int) bool {
		if c := groups[i].Total.Cmp(groups[j].Total); c != 0 {
			return c > 0
		}
		return groups[i].Label < groups[j].Label
	})
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups
}

// Trend groups payments into date buckets in chronological order.
func Trend(payments []models.Payment, d Dimension) []Group {
	if !d.IsTime() {
		d = ByDay
	}
	groups := group(payments, d)
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

// Average divides total by count, rounded to cents. Zero when count is zero.
func Average(total decimal.Decimal, count int) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(count))).Round(2)
}

// Sum adds up payment totals.
func Sum(payments []models.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Total())
	}
	return total
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
