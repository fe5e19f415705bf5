package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"payment-tracker/internal/analytics"
	"payment-tracker/internal/export"
	"payment-tracker/internal/models"
	"payment-tracker/internal/storage"
)

const dateLayout = "2006-01-02"

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(context.Background())
}

// app carries the flags shared by every command.
type app struct {
	dbPath string
	now    func() time.Time
}

func (a *app) open() (*storage.DB, error) {
	db, err := storage.NewDB(a.dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func newRootCmd() *cobra.Command {
	a := &app{now: time.Now}

	root := &cobra.Command{
		Use:           "paytrackctl",
		Short:         "Payment tracker administration CLI",
		Long:          `Exports, reports and statistics straight from the payment tracker database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	dbDefault := os.Getenv("DB_PATH")
	if dbDefault == "" {
		dbDefault = "payments.db"
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", dbDefault, "Path to database file")

	root.AddCommand(newExportCmd(a), newReportCmd(a), newStatsCmd(a), newCleanupCmd(a))
	return root
}

// output opens the destination file, or stdout for "-".
func output(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func writeTo(cmd *cobra.Command, path string, render func(io.Writer) error) error {
	w, closeFn, err := output(cmd, path)
	if err != nil {
		return err
	}
	if err := render(w); err != nil {
		closeFn()
		return err
	}
	if err := closeFn(); err != nil {
		return err
	}
	if path != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", path)
	}
	return nil
}

func checkFormat(got string, allowed ...string) error {
	for _, a := range allowed {
		if got == a {
			return nil
		}
	}
	return fmt.Errorf("unsupported format %q: must be one of %v", got, allowed)
}

func parseDay(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: expected YYYY-MM-DD", name, s)
	}
	return t, nil
}

func newExportCmd(a *app) *cobra.Command {
	var (
		format, out, from, to string
		userID, categoryID    int64
	)
	cmd := &cobra.Command{
		Use:       "export payments|users|all",
		Short:     "Export payments or users as CSV or XLSX",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"payments", "users", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, "csv", "xlsx"); err != nil {
				return err
			}
			kind := args[0]
			if kind == "all" && format != "csv" {
				return fmt.Errorf("export all is only available as csv")
			}

			db, err := a.open()
			if err != nil {
				return err
			}
			defer db.Close()
			ctx := cmd.Context()

			if out == "" {
				name := kind
				if kind == "all" {
					name = "all_payments"
				}
				out = export.FileName(name, format, a.now())
			}

			if kind == "users" {
				users, err := db.ListUsers(ctx, storage.UserFilter{})
				if err != nil {
					return err
				}
				if format == "xlsx" {
					return writeTo(cmd, out, func(w io.Writer) error { return export.WriteUsersXLSX(w, users) })
				}
				return writeTo(cmd, out, func(w io.Writer) error { return export.WriteUsersCSV(w, users) })
			}

			var f storage.PaymentFilter
			if kind == "all" {
				f.Ascending = true
			} else {
				p, err := period(from, to, false)
				if err != nil {
					return err
				}
				f = p.Filter()
				f.UserID, f.CategoryID = userID, categoryID
			}
			payments, err := db.ListPayments(ctx, f)
			if err != nil {
				return err
			}
			if format == "xlsx" {
				return writeTo(cmd, out, func(w io.Writer) error { return export.WritePaymentsXLSX(w, payments) })
			}
			return writeTo(cmd, out, func(w io.Writer) error { return export.WritePaymentsCSV(w, payments) })
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "Output format: csv or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", `Output file, "-" for stdout (default: generated name)`)
	cmd.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last day (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&userID, "user", 0, "Only payments of this user id")
	cmd.Flags().Int64Var(&categoryID, "category", 0, "Only payments in this category id")
	return cmd
}

// period parses --from and --to. Reports need both.
func period(from, to string, required bool) (analytics.Period, error) {
	var p analytics.Period
	var err error
	if p.From, err = parseDay("from", from); err != nil {
		return p, err
	}
	if p.To, err = parseDay("to", to); err != nil {
		return p, err
	}
	if required {
		return p, p.Validate()
	}
	if !p.From.IsZero() && !p.To.IsZero() && p.From.After(p.To) {
		return p, models.ErrPeriodOrder
	}
	return p, nil
}

func newReportCmd(a *app) *cobra.Command {
	var (
		format, out, from, to string
		id                    int64
	)
	cmd := &cobra.Command{
		Use:       "report users|categories|summary",
		Short:     "Build a report for a period",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"users", "categories", "summary"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, "text", "json", "xlsx"); err != nil {
				return err
			}
			p, err := period(from, to, true)
			if err != nil {
				return err
			}
			kind := args[0]
			if out == "" {
				out = "-"
				if format == "xlsx" {
					out = export.FileName(kind+"_report", format, a.now())
				}
			}

			db, err := a.open()
			if err != nil {
				return err
			}
			defer db.Close()
			svc := analytics.NewService(db)
			ctx := cmd.Context()

			var (
				v          any
				text, xlsx func(io.Writer) error
			)
			switch kind {
			case "users":
				rep, err := svc.UserReport(ctx, p, id)
				if err != nil {
					return err
				}
				v = rep
				text = func(w io.Writer) error { return export.WriteUserReportText(w, rep) }
				xlsx = func(w io.Writer) error { return export.WriteUserReportXLSX(w, rep) }
			case "categories":
				rep, err := svc.CategoryReport(ctx, p, id)
				if err != nil {
					return err
				}
				v = rep
				text = func(w io.Writer) error { return export.WriteCategoryReportText(w, rep) }
				xlsx = func(w io.Writer) error { return export.WriteCategoryReportXLSX(w, rep) }
			case "summary":
				sum, err := svc.Summary(ctx, p)
				if err != nil {
					return err
				}
				v = sum
				text = func(w io.Writer) error { return export.WriteSummaryText(w, sum) }
				xlsx = func(w io.Writer) error { return export.WriteSummaryXLSX(w, sum) }
			}

			switch format {
			case "xlsx":
				return writeTo(cmd, out, xlsx)
			case "json":
				return writeTo(cmd, out, func(w io.Writer) error { return writeJSON(w, v) })
			}
			return writeTo(cmd, out, text)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", `Output file, "-" for stdout`)
	cmd.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD, required)")
	cmd.Flags().StringVar(&to, "to", "", "Last day (YYYY-MM-DD, required)")
	cmd.Flags().Int64Var(&id, "id", 0, "Restrict to one user (users) or category (categories)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newStatsCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database-wide statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, "text", "json"); err != nil {
				return err
			}
			db, err := a.open()
			if err != nil {
				return err
			}
			defer db.Close()

			st, err := analytics.NewService(db).SystemStats(cmd.Context())
			if err != nil {
				return err
			}
			if format == "json" {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			return export.WriteSystemStatsText(cmd.OutOrStdout(), st)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func newCleanupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.open()
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := db.CleanExpiredSessions(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired sessions\n", n)
			return nil
		},
	}
}
