package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"payment-tracker/internal/models"
	"payment-tracker/internal/storage"
)

// Store is the read side of storage used by reports.
type Store interface {
	ListPayments(ctx context.Context, f storage.PaymentFilter) ([]models.Payment, error)
	UserCount(ctx context.Context) (int, error)
	UserCountByRole(ctx context.Context) (map[models.Role]int, error)
	CategoryCount(ctx context.Context) (int, error)
	PaymentCount(ctx context.Context) (int, error)
}

const (
	// TopUsersChart is how many users the user chart keeps.
	TopUsersChart = 10
	// SummaryTop is how many users and categories the summary lists.
	SummaryTop = 5
)

// Service builds reports from a Store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a report service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Chart aggregates payments matching f along d. Time dimensions come back in
// chronological order, the others by total descending.
func (s *Service) Chart(ctx context.Context, f storage.PaymentFilter, d Dimension) ([]Group, error) {
	payments, err := s.store.ListPayments(ctx, f)
	if err != nil {
		return nil, err
	}
	switch {
	case d.IsTime():
		return Trend(payments, d), nil
	case d == ByUser:
		return Aggregate(payments, d, TopUsersChart), nil
	default:
		return Aggregate(payments, d, 0), nil
	}
}

// CategoryRow is one line of the category report.
type CategoryRow struct {
	CategoryID int64           `json:"category_id"`
	Category   string          `json:"category"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
	Users      int             `json:"users"`
	Average    decimal.Decimal `json:"average"`
}

// CategoryReport summarizes the period per category.
type CategoryReport struct {
	Period Period          `json:"period"`
	Rows   []CategoryRow   `json:"rows"`
	Total  decimal.Decimal `json:"total"`
	Count  int             `json:"count"`
}

// CategoryReport returns per-category totals, sorted by total descending.
// A positive categoryID restricts the report to that category.
func (s *Service) CategoryReport(ctx context.Context, period Period, categoryID int64) (*CategoryReport, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	f := period.Filter()
	f.CategoryID = categoryID
	payments, err := s.store.ListPayments(ctx, f)
	if err != nil {
		return nil, err
	}
	return BuildCategoryReport(period, payments), nil
}

// BuildCategoryReport aggregates already loaded payments.
func BuildCategoryReport(period Period, payments []models.Payment) *CategoryReport {
	index := make(map[int64]int)
	users := make(map[int64]map[int64]struct{})
	rows := []CategoryRow{}
	for _, p := range payments {
		i, ok := index[p.CategoryID]
		if !ok {
			i = len(rows)
			index[p.CategoryID] = i
			rows = append(rows, CategoryRow{CategoryID: p.CategoryID, Category: p.CategoryName, Total: decimal.Zero})
			users[p.CategoryID] = make(map[int64]struct{})
		}
		rows[i].Count++
		rows[i].Total = rows[i].Total.Add(p.Total())
		users[p.CategoryID][p.UserID] = struct{}{}
	}
	for i := range rows {
		rows[i].Users = len(users[rows[i].CategoryID])
		rows[i].Average = Average(rows[i].Total, rows[i].Count)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].Total.Cmp(rows[j].Total); c != 0 {
			return c > 0
		}
		return rows[i].Category < rows[j].Category
	})
	return &CategoryReport{Period: period, Rows: rows, Total: Sum(payments), Count: len(payments)}
}

// UserGroup holds one user's payments in the user report.
type UserGroup struct {
	UserID   int64            `json:"user_id"`
	FullName string           `json:"full_name"`
	Payments []models.Payment `json:"payments"`
	Subtotal decimal.Decimal  `json:"subtotal"`
}

// UserReport lists payments grouped by user.
type UserReport struct {
	Period Period          `json:"period"`
	Groups []UserGroup     `json:"groups"`
	Total  decimal.Decimal `json:"total"`
	Count  int             `json:"count"`
}

// UserReport groups the period's payments by user full name with subtotals.
// A positive userID restricts the report to that user.
func (s *Service) UserReport(ctx context.Context, period Period, userID int64) (*UserReport, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	f := period.Filter()
	f.UserID = userID
	f.Ascending = true
	payments, err := s.store.ListPayments(ctx, f)
	if err != nil {
		return nil, err
	}
	return BuildUserReport(period, payments), nil
}

// BuildUserReport groups already loaded payments by user.
func BuildUserReport(period Period, payments []models.Payment) *UserReport {
	index := make(map[int64]int)
	groups := []UserGroup{}
	for _, p := range payments {
		i, ok := index[p.UserID]
		if !ok {
			i = len(groups)
			index[p.UserID] = i
			groups = append(groups, UserGroup{UserID: p.UserID, FullName: p.UserFullName, Subtotal: decimal.Zero})
		}
		groups[i].Payments = append(groups[i].Payments, p)
		groups[i].Subtotal = groups[i].Subtotal.Add(p.Total())
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].FullName != groups[j].FullName {
			return groups[i].FullName < groups[j].FullName
		}
		return groups[i].UserID < groups[j].UserID
	})
	for _, g := range groups {
		sort.SliceStable(g.Payments, func(i, j int) bool { return g.Payments[i].Date.Before(g.Payments[j].Date) })
	}
	return &UserReport{Period: period, Groups: groups, Total: Sum(payments), Count: len(payments)}
}

// Summary is the overview report for a period.
type Summary struct {
	Period         Period          `json:"period"`
	Count          int             `json:"count"`
	Total          decimal.Decimal `json:"total"`
	Average        decimal.Decimal `json:"average"`
	ActiveUsers    int             `json:"active_users"`
	CategoriesUsed int             `json:"categories_used"`
	TopUsers       []Group         `json:"top_users"`
	TopCategories  []Group         `json:"top_categories"`

	// System-wide totals regardless of period.
	Users      int `json:"users"`
	Categories int `json:"categories"`
	Payments   int `json:"payments"`
}

// Summary builds the overview report. Its independent queries run concurrently.
func (s *Service) Summary(ctx context.Context, period Period) (*Summary, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	var (
		payments []models.Payment
		sum      = &Summary{Period: period}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		payments, err = s.store.ListPayments(gctx, period.Filter())
		return err
	})
	g.Go(func() (err error) {
		sum.Users, err = s.store.UserCount(gctx)
		return err
	})
	g.Go(func() (err error) {
		sum.Categories, err = s.store.CategoryCount(gctx)
		return err
	})
	g.Go(func() (err error) {
		sum.Payments, err = s.store.PaymentCount(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sum.Count = len(payments)
	sum.Total = Sum(payments)
	sum.Average = Average(sum.Total, sum.Count)
	sum.TopUsers = Aggregate(payments, ByUser, SummaryTop)
	sum.TopCategories = Aggregate(payments, ByCategory, SummaryTop)
	sum.ActiveUsers = len(group(payments, ByUser))
	sum.CategoriesUsed = len(group(payments, ByCategory))
	return sum, nil
}

// SystemStats describes the whole database.
type SystemStats struct {
	UsersByRole  map[models.Role]int `json:"users_by_role"`
	Users        int                 `json:"users"`
	Categories   int                 `json:"categories"`
	Payments     int                 `json:"payments"`
	Total        decimal.Decimal     `json:"total"`
	Average      decimal.Decimal     `json:"average"`
	FirstPayment *time.Time          `json:"first_payment,omitempty"`
	LastPayment  *time.Time          `json:"last_payment,omitempty"`
	LastMonth    int                 `json:"last_month"`
	LastWeek     int                 `json:"last_week"`
}

// SystemStats gathers database-wide counts and totals.
func (s *Service) SystemStats(ctx context.Context) (*SystemStats, error) {
	var (
		payments []models.Payment
		st       = &SystemStats{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		payments, err = s.store.ListPayments(gctx, storage.PaymentFilter{Ascending: true})
		return err
	})
	g.Go(func() (err error) {
		st.UsersByRole, err = s.store.UserCountByRole(gctx)
		return err
	})
	g.Go(func() (err error) {
		st.Categories, err = s.store.CategoryCount(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, n := range st.UsersByRole {
		st.Users += n
	}
	st.Payments = len(payments)
	st.Total = Sum(payments)
	st.Average = Average(st.Total, st.Payments)
	if len(payments) > 0 {
		first, last := payments[0].Date, payments[len(payments)-1].Date
		st.FirstPayment, st.LastPayment = &first, &last
	}
	now := s.now()
	monthAgo, weekAgo := now.AddDate(0, -1, 0), now.AddDate(0, 0, -7)
	for _, p := range payments {
		if !p.Date.Before(monthAgo) {
			st.LastMonth++
		}
		if !p.Date.Before(weekAgo) {
			st.LastWeek++
		}
	}
	return st, nil
}

// CategoryStat is one category of a user's own statistics.
type CategoryStat struct {
	CategoryID int64           `json:"category_id"`
	Category   string          `json:"category"`
	Count      int             `json:"count"`
	Total      decimal.Decimal `json:"total"`
	Average    decimal.Decimal `json:"average"`
	Percentage decimal.Decimal `json:"percentage"`
}

// UserStatistics is the per-category breakdown of one user's payments.
type UserStatistics struct {
	Count      int             `json:"count"`
	Total      decimal.Decimal `json:"total"`
	Categories []CategoryStat  `json:"categories"`
}

// UserStatistics breaks one user's payments down by category, sorted by total descending.
func (s *Service) UserStatistics(ctx context.Context, userID int64, f storage.PaymentFilter) (*UserStatistics, error) {
	f.UserID = userID
	payments, err := s.store.ListPayments(ctx, f)
	if err != nil {
		return nil, err
	}

	stats := &UserStatistics{Count: len(payments), Total: Sum(payments), Categories: []CategoryStat{}}
	for _, r := range BuildCategoryReport(Period{}, payments).Rows {
		cs := CategoryStat{
			CategoryID: r.CategoryID,
			Category:   r.Category,
			Count:      r.Count,
			Total:      r.Total,
			Average:    r.Average,
			Percentage: decimal.Zero,
		}
		if stats.Total.IsPositive() {
			cs.Percentage = r.Total.Mul(decimal.NewFromInt(100)).Div(stats.Total).Round(2)
		}
		stats.Categories = append(stats.Categories, cs)
	}
	return stats, nil
}
