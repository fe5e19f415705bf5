package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-tracker/internal/models"
	"payment-tracker/internal/storage"
)

type fakeStore struct {
	payments []models.Payment
	roles    map[models.Role]int
	cats     int
	err      error
	lastF    storage.PaymentFilter
}

func (f *fakeStore) ListPayments(_ context.Context, filter storage.PaymentFilter) ([]models.Payment, error) {
	f.lastF = filter
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Payment
	for _, p := range f.payments {
		if !filter.From.IsZero() && p.Date.Before(filter.From) {
			continue
		}
		if !filter.Until.IsZero() && p.Date.After(filter.Until) {
			continue
		}
		if filter.UserID > 0 && p.UserID != filter.UserID {
			continue
		}
		if filter.CategoryID > 0 && p.CategoryID != filter.CategoryID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) UserCount(context.Context) (int, error) {
	n := 0
	for _, c := range f.roles {
		n += c
	}
	return n, nil
}

func (f *fakeStore) UserCountByRole(context.Context) (map[models.Role]int, error) {
	return f.roles, nil
}

func (f *fakeStore) CategoryCount(context.Context) (int, error) { return f.cats, nil }

func (f *fakeStore) PaymentCount(context.Context) (int, error) { return len(f.payments), nil }

func pay(id, user int64, userName string, cat int64, catName string, qty int64, price string, date time.Time) models.Payment {
	return models.Payment{
		ID: id, Date: date, UserID: user, UserFullName: userName,
		CategoryID: cat, CategoryName: catName, Name: "item", Quantity: qty,
		Price: decimal.RequireFromString(price),
	}
}

func d(month time.Month, day int) time.Time {
	return time.Date(2024, month, day, 12, 0, 0, 0, time.UTC)
}

// Ann spends 30 on Food and 5 on Fuel; Ben spends 30 on Fuel.
func samplePayments() []models.Payment {
	return []models.Payment{
		pay(1, 1, "Ann", 10, "Food", 2, "10", d(3, 4)),
		pay(2, 1, "Ann", 10, "Food", 1, "10", d(3, 5)),
		pay(3, 2, "Ben", 20, "Fuel", 3, "10", d(3, 11)),
		pay(4, 1, "Ann", 20, "Fuel", 1, "5", d(4, 1)),
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAggregateByCategory(t *testing.T) {
	groups := Aggregate(samplePayments(), ByCategory, 0)
	require.Len(t, groups, 2)
	assert.Equal(t, "Fuel", groups[0].Label)
	assert.True(t, groups[0].Total.Equal(dec("35")))
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, "Food", groups[1].Label)
}

func TestAggregateTiesByLabelAndLimit(t *testing.T) {
	payments := []models.Payment{
		pay(1, 2, "Zed", 1, "A", 1, "10", d(1, 1)),
		pay(2, 1, "Amy", 1, "A", 1, "10", d(1, 1)),
		pay(3, 3, "Max", 1, "A", 1, "1", d(1, 1)),
	}
	groups := Aggregate(payments, ByUser, 2)
	require.Len(t, groups, 2)
	assert.Equal(t, "Amy", groups[0].Label)
	assert.Equal(t, "Zed", groups[1].Label)
}

func TestTrendIsChronological(t *testing.T) {
	payments := samplePayments()
	days := Trend(payments, ByDay)
	require.Len(t, days, 4)
	assert.Equal(t, "2024-03-04", days[0].Key)
	assert.Equal(t, "04.03.2024", days[0].Label)
	assert.Equal(t, "2024-04-01", days[3].Key)

	months := Trend(payments, ByMonth)
	require.Len(t, months, 2)
	assert.Equal(t, "2024-03", months[0].Key)
	assert.True(t, months[0].Total.Equal(dec("60")))

	weeks := Trend(payments, ByWeek)
	require.Len(t, weeks, 3)
	assert.Equal(t, "2024-W10", weeks[0].Key)
	assert.Equal(t, 2, weeks[0].Count, "4 and 5 March share an ISO week")
	assert.Equal(t, "04.03.2024", weeks[0].Label)
}

func TestAggregateEmpty(t *testing.T) {
	assert.Empty(t, Aggregate(nil, ByCategory, 0))
	assert.NotNil(t, Trend(nil, ByDay))
}

func TestParseDimension(t *testing.T) {
	dim, err := ParseDimension("week")
	require.NoError(t, err)
	assert.Equal(t, ByWeek, dim)
	_, err = ParseDimension("year")
	assert.ErrorIs(t, err, models.ErrInvalid)
}

func TestPeriodValidate(t *testing.T) {
	assert.ErrorIs(t, Period{}.Validate(), models.ErrPeriodRequired)
	assert.ErrorIs(t, Period{From: d(3, 1)}.Validate(), models.ErrPeriodRequired)
	assert.ErrorIs(t, Period{From: d(3, 2), To: d(3, 1)}.Validate(), models.ErrPeriodOrder)
	assert.NoError(t, Period{From: d(3, 1), To: d(3, 1)}.Validate())

	f := Period{From: d(3, 1), To: d(3, 1)}.Filter()
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), f.From)
	assert.Equal(t, time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC), f.Until)
}

func TestAverage(t *testing.T) {
	assert.True(t, Average(dec("10"), 3).Equal(dec("3.33")))
	assert.True(t, Average(dec("10"), 0).IsZero())
}

func TestCategoryReport(t *testing.T) {
	svc := NewService(&fakeStore{payments: samplePayments()})
	rep, err := svc.CategoryReport(context.Background(), Period{From: d(3, 1), To: d(3, 31)}, 0)
	require.NoError(t, err)
	require.Len(t, rep.Rows, 2)
	assert.Equal(t, "Food", rep.Rows[0].Category)
	assert.True(t, rep.Rows[0].Total.Equal(dec("30")))
	assert.Equal(t, 2, rep.Rows[0].Count)
	assert.Equal(t, 1, rep.Rows[0].Users)
	assert.True(t, rep.Rows[0].Average.Equal(dec("15")))
	assert.Equal(t, "Fuel", rep.Rows[1].Category, "ties fall back to name")
	assert.Equal(t, 3, rep.Count)
	assert.True(t, rep.Total.Equal(dec("60")))

	_, err = svc.CategoryReport(context.Background(), Period{From: d(4, 1), To: d(3, 1)}, 0)
	assert.ErrorIs(t, err, models.ErrPeriodOrder)
}

func TestUserReport(t *testing.T) {
	store := &fakeStore{payments: samplePayments()}
	svc := NewService(store)
	rep, err := svc.UserReport(context.Background(), Period{From: d(3, 1), To: d(4, 30)}, 0)
	require.NoError(t, err)
	assert.True(t, store.lastF.Ascending)
	require.Len(t, rep.Groups, 2)
	assert.Equal(t, "Ann", rep.Groups[0].FullName)
	assert.Len(t, rep.Groups[0].Payments, 3)
	assert.True(t, rep.Groups[0].Subtotal.Equal(dec("35")))
	assert.Equal(t, "Ben", rep.Groups[1].FullName)
	assert.True(t, rep.Total.Equal(dec("65")))
	assert.Equal(t, 4, rep.Count)

	rep, err = svc.UserReport(context.Background(), Period{From: d(3, 1), To: d(4, 30)}, 2)
	require.NoError(t, err)
	require.Len(t, rep.Groups, 1)
	assert.Equal(t, "Ben", rep.Groups[0].FullName)
}

func TestSummary(t *testing.T) {
	store := &fakeStore{
		payments: samplePayments(),
		roles:    map[models.Role]int{models.RoleAdmin: 1, models.RoleUser: 2},
		cats:     5,
	}
	sum, err := NewService(store).Summary(context.Background(), Period{From: d(3, 1), To: d(3, 31)})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Count)
	assert.True(t, sum.Total.Equal(dec("60")))
	assert.True(t, sum.Average.Equal(dec("20")))
	assert.Equal(t, 2, sum.ActiveUsers)
	assert.Equal(t, 2, sum.CategoriesUsed)
	require.Len(t, sum.TopUsers, 2)
	assert.Equal(t, "Ann", sum.TopUsers[0].Label)
	assert.Equal(t, 3, sum.Users)
	assert.Equal(t, 5, sum.Categories)
	assert.Equal(t, 4, sum.Payments)

	_, err = NewService(store).Summary(context.Background(), Period{})
	assert.ErrorIs(t, err, models.ErrPeriodRequired)
}

func TestSummaryPropagatesStoreError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewService(&fakeStore{err: boom}).Summary(context.Background(), Period{From: d(3, 1), To: d(3, 2)})
	assert.ErrorIs(t, err, boom)
}

func TestSystemStats(t *testing.T) {
	store := &fakeStore{
		payments: samplePayments(),
		roles:    map[models.Role]int{models.RoleAdmin: 1, models.RoleUser: 2},
		cats:     4,
	}
	svc := NewService(store)
	svc.now = func() time.Time { return d(4, 5) }

	st, err := svc.SystemStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, st.Users)
	assert.Equal(t, 2, st.UsersByRole[models.RoleUser])
	assert.Equal(t, 4, st.Categories)
	assert.Equal(t, 4, st.Payments)
	assert.True(t, st.Total.Equal(dec("65")))
	assert.True(t, st.Average.Equal(dec("16.25")))
	require.NotNil(t, st.FirstPayment)
	assert.True(t, st.FirstPayment.Equal(d(3, 4)))
	assert.True(t, st.LastPayment.Equal(d(4, 1)))
	assert.Equal(t, 3, st.LastMonth)
	assert.Equal(t, 1, st.LastWeek)
}

func TestUserStatistics(t *testing.T) {
	svc := NewService(&fakeStore{payments: samplePayments()})
	st, err := svc.UserStatistics(context.Background(), 1, storage.PaymentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, st.Count)
	assert.True(t, st.Total.Equal(dec("35")))
	require.Len(t, st.Categories, 2)
	assert.Equal(t, "Food", st.Categories[0].Category)
	assert.True(t, st.Categories[0].Percentage.Equal(dec("85.71")), "got %s", st.Categories[0].Percentage)
	assert.True(t, st.Categories[1].Percentage.Equal(dec("14.29")))

	empty, err := svc.UserStatistics(context.Background(), 99, storage.PaymentFilter{})
	require.NoError(t, err)
	assert.Empty(t, empty.Categories)
	assert.True(t, empty.Total.IsZero())
}
