package export

import (
	"fmt"
	"io"
	"text/tabwriter"

	"payment-tracker/internal/analytics"
	"payment-tracker/internal/models"
)

func period(p analytics.Period) string {
	return p.From.Format(DateLayout) + " - " + p.To.Format(DateLayout)
}

// WriteUserReportText renders the user report as aligned plain text.
func WriteUserReportText(w io.Writer, rep *analytics.UserReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "PAYMENTS BY USER\nPeriod: %s\n\n", period(rep.Period))
	for _, g := range rep.Groups {
		fmt.Fprintf(tw, "%s\n", g.FullName)
		fmt.Fprintln(tw, "Date\tCategory\tName\tQty\tPrice\tTotal")
		for _, p := range g.Payments {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", p.Date.Format(DateLayout), p.CategoryName, p.Name,
				p.Quantity, p.Price.StringFixed(2), p.Total().StringFixed(2))
		}
		fmt.Fprintf(tw, "Subtotal\t\t\t\t\t%s\n\n", g.Subtotal.StringFixed(2))
	}
	fmt.Fprintf(tw, "Payments: %d\nGrand total: %s\n", rep.Count, rep.Total.StringFixed(2))
	return tw.Flush()
}

// WriteCategoryReportText renders the category report as aligned plain text.
func WriteCategoryReportText(w io.Writer, rep *analytics.CategoryReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "PAYMENTS BY CATEGORY\nPeriod: %s\n\n", period(rep.Period))
	fmt.Fprintln(tw, "Category\tTotal\tPayments\tUsers\tAverage")
	for _, r := range rep.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.Category, r.Total.StringFixed(2), r.Count, r.Users, r.Average.StringFixed(2))
	}
	fmt.Fprintf(tw, "\nPayments: %d\nGrand total: %s\n", rep.Count, rep.Total.StringFixed(2))
	return tw.Flush()
}

// WriteSummaryText renders the summary report as plain text.
func WriteSummaryText(w io.Writer, sum *analytics.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "SUMMARY\nPeriod: %s\n\n", period(sum.Period))
	fmt.Fprintf(tw, "Payments:\t%d\n", sum.Count)
	fmt.Fprintf(tw, "Total:\t%s\n", sum.Total.StringFixed(2))
	fmt.Fprintf(tw, "Average:\t%s\n", sum.Average.StringFixed(2))
	fmt.Fprintf(tw, "Active users:\t%d\n", sum.ActiveUsers)
	fmt.Fprintf(tw, "Categories used:\t%d\n", sum.CategoriesUsed)

	writeTop(tw, "Top users", sum.TopUsers)
	writeTop(tw, "Top categories", sum.TopCategories)

	fmt.Fprintf(tw, "\nSystem\nUsers:\t%d\nCategories:\t%d\nPayments:\t%d\n", sum.Users, sum.Categories, sum.Payments)
	return tw.Flush()
}

func writeTop(w io.Writer, title string, groups []analytics.Group) {
	fmt.Fprintf(w, "\n%s\n", title)
	for i, g := range groups {
		fmt.Fprintf(w, "%d. %s\t%s\t(%d)\n", i+1, g.Label, g.Total.StringFixed(2), g.Count)
	}
}

// WriteSystemStatsText renders database-wide statistics.
func WriteSystemStatsText(w io.Writer, st *analytics.SystemStats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYSTEM STATISTICS")
	fmt.Fprintf(tw, "Users:\t%d\n", st.Users)
	for _, role := range []models.Role{models.RoleAdmin, models.RoleUser} {
		fmt.Fprintf(tw, "  %s:\t%d\n", role, st.UsersByRole[role])
	}
	fmt.Fprintf(tw, "Categories:\t%d\n", st.Categories)
	fmt.Fprintf(tw, "Payments:\t%d\n", st.Payments)
	fmt.Fprintf(tw, "Total:\t%s\n", st.Total.StringFixed(2))
	fmt.Fprintf(tw, "Average:\t%s\n", st.Average.StringFixed(2))
	if st.FirstPayment != nil {
		fmt.Fprintf(tw, "First payment:\t%s\n", st.FirstPayment.Format(DateLayout))
		fmt.Fprintf(tw, "Last payment:\t%s\n", st.LastPayment.Format(DateLayout))
	}
	fmt.Fprintf(tw, "Last month:\t%d\n", st.LastMonth)
	fmt.Fprintf(tw, "Last week:\t%d\n", st.LastWeek)
	return tw.Flush()
}
