package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"payment-tracker/internal/analytics"
	"payment-tracker/internal/models"
)

func samplePayments() []models.Payment {
	return []models.Payment{
		{
			ID: 1, Date: time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC), UserID: 1, CategoryID: 1,
			UserFullName: "Ann Lee", CategoryName: "Food", Name: "Bread; rye",
			Quantity: 2, Price: decimal.RequireFromString("1.5"),
		},
		{
			ID: 2, Date: time.Date(2024, 3, 7, 9, 0, 0, 0, time.UTC), UserID: 2, CategoryID: 2,
			UserFullName: "Ben Fox", CategoryName: "Fuel", Name: "Diesel",
			Quantity: 10, Price: decimal.RequireFromString("1.99"),
		},
	}
}

func samplePeriod() analytics.Period {
	return analytics.Period{
		From: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestFileName(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	assert.Equal(t, "payments_20240305_140709.csv", FileName("payments", "csv", now))
}

func TestWritePaymentsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePaymentsCSV(&buf, samplePayments()))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "\uFEFF"), "missing BOM")
	assert.True(t, strings.HasPrefix(out, "\uFEFFDate;User;Category;Name;Quantity;Price;Total\n"))

	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, "\uFEFF")))
	r.Comma = ';'
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"05.03.2024", "Ann Lee", "Food", "Bread; rye", "2", "1.50", "3.00"}, records[1])
	assert.Equal(t, []string{"07.03.2024", "Ben Fox", "Fuel", "Diesel", "10", "1.99", "19.90"}, records[2])
}

func TestWriteUsersCSV(t *testing.T) {
	var buf bytes.Buffer
	users := []models.User{{ID: 7, Login: "ann", FullName: "Ann Lee", Role: models.RoleAdmin, PasswordHash: "secret"}}
	require.NoError(t, WriteUsersCSV(&buf, users))
	assert.Equal(t, "\uFEFFID;Login;Full name;Role\n7;ann;Ann Lee;Admin\n", buf.String())
}

func TestCSVNeutralizesFormulas(t *testing.T) {
	payments := []models.Payment{{
		Date:         time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		UserFullName: "@admin",
		CategoryName: "+Misc",
		Name:         `=HYPERLINK("http://x","y")`,
		Quantity:     1,
		Price:        decimal.NewFromInt(2),
	}}
	var buf bytes.Buffer
	require.NoError(t, WritePaymentsCSV(&buf, payments))

	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(buf.String(), "\uFEFF")))
	r.Comma = ';'
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "'@admin", records[1][1])
	assert.Equal(t, "'+Misc", records[1][2])
	assert.Equal(t, `'=HYPERLINK("http://x","y")`, records[1][3])
	assert.Equal(t, "2.00", records[1][5], "numbers are left alone")

	buf.Reset()
	require.NoError(t, WriteUsersCSV(&buf, []models.User{{ID: 1, Login: "eve", FullName: "-1+2", Role: models.RoleUser}}))
	assert.Equal(t, "\uFEFFID;Login;Full name;Role\n1;eve;'-1+2;User\n", buf.String())
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWritePaymentsXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePaymentsXLSX(&buf, samplePayments()))

	f := openWorkbook(t, buf.Bytes())
	assert.Equal(t, []string{"Payments"}, f.GetSheetList())
	rows, err := f.GetRows("Payments")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ID", "Date", "User", "Category", "Name", "Quantity", "Price", "Total"}, rows[0])
	assert.Equal(t, "05.03.2024", rows[1][1])
	assert.Equal(t, "Ben Fox", rows[2][2])
	assert.Equal(t, "19.90", rows[2][7])
}

func TestWriteUsersXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteUsersXLSX(&buf, []models.User{{ID: 1, Login: "ann", FullName: "Ann Lee", Role: models.RoleUser}}))

	rows, err := openWorkbook(t, buf.Bytes()).GetRows("Users")
	require.NoError(t, err)
	assert.Equal(t, [][]string{UsersHeader, {"1", "ann", "Ann Lee", "User"}}, rows)
}

func TestWriteReportsXLSX(t *testing.T) {
	payments := samplePayments()

	var buf bytes.Buffer
	require.NoError(t, WriteCategoryReportXLSX(&buf, analytics.BuildCategoryReport(samplePeriod(), payments)))
	rows, err := openWorkbook(t, buf.Bytes()).GetRows("Categories")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Fuel", rows[2][0])
	assert.Equal(t, "Total", rows[4][0])
	assert.Equal(t, "22.90", rows[4][1])

	buf.Reset()
	require.NoError(t, WriteUserReportXLSX(&buf, analytics.BuildUserReport(samplePeriod(), payments)))
	rows, err = openWorkbook(t, buf.Bytes()).GetRows("Users")
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee subtotal", rows[3][0])
	assert.Equal(t, "Total", rows[len(rows)-1][0])

	buf.Reset()
	sum := &analytics.Summary{
		Period: samplePeriod(), Count: 2, Total: decimal.RequireFromString("22.9"),
		TopUsers:      analytics.Aggregate(payments, analytics.ByUser, 5),
		TopCategories: analytics.Aggregate(payments, analytics.ByCategory, 5),
	}
	require.NoError(t, WriteSummaryXLSX(&buf, sum))
	f := openWorkbook(t, buf.Bytes())
	assert.Equal(t, []string{"Summary", "Top users", "Top categories"}, f.GetSheetList())
	rows, err = f.GetRows("Top users")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Ben Fox", rows[1][0])
}

func TestTextReports(t *testing.T) {
	payments := samplePayments()

	var buf bytes.Buffer
	require.NoError(t, WriteUserReportText(&buf, analytics.BuildUserReport(samplePeriod(), payments)))
	out := buf.String()
	assert.Contains(t, out, "Period: 01.03.2024 - 31.03.2024")
	assert.Contains(t, out, "Ann Lee")
	assert.Contains(t, out, "Grand total: 22.90")

	buf.Reset()
	require.NoError(t, WriteCategoryReportText(&buf, analytics.BuildCategoryReport(samplePeriod(), payments)))
	assert.Contains(t, buf.String(), "Fuel")
	assert.Contains(t, buf.String(), "Payments: 2")

	buf.Reset()
	sum := &analytics.Summary{Period: samplePeriod(), Count: 2, Total: decimal.RequireFromString("22.9"),
		TopUsers: analytics.Aggregate(payments, analytics.ByUser, 5)}
	require.NoError(t, WriteSummaryText(&buf, sum))
	assert.Contains(t, buf.String(), "1. Ben Fox")

	buf.Reset()
	first := payments[0].Date
	st := &analytics.SystemStats{
		UsersByRole: map[models.Role]int{models.RoleAdmin: 1, models.RoleUser: 3}, Users: 4,
		FirstPayment: &first, LastPayment: &first,
	}
	require.NoError(t, WriteSystemStatsText(&buf, st))
	assert.Contains(t, buf.String(), "First payment:")
	assert.Contains(t, buf.String(), "05.03.2024")
}
