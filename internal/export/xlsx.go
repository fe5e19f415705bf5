package export

import (
	"io"

	"github.com/xuri/excelize/v2"

	"payment-tracker/internal/analytics"
	"payment-tracker/internal/models"
)

// sheet appends rows to one worksheet and keeps the first error.
type sheet struct {
	f     *excelize.File
	name  string
	row   int
	money int
	bold  int
	err   error
}

func newWorkbook(first string) (*excelize.File, *sheet, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", first); err != nil {
		f.Close()
		return nil, nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, &sheet{f: f, name: first, money: money, bold: bold}, nil
}

func (s *sheet) addSheet(name string) *sheet {
	ns := &sheet{f: s.f, name: name, money: s.money, bold: s.bold, err: s.err}
	if ns.err == nil {
		_, ns.err = s.f.NewSheet(name)
	}
	return ns
}

func (s *sheet) cell(col int) string {
	name, err := excelize.CoordinatesToCellName(col, s.row)
	if err != nil && s.err == nil {
		s.err = err
	}
	return name
}

// append writes values to the next row.
func (s *sheet) append(values ...any) {
	if s.err != nil {
		return
	}
	s.row++
	s.err = s.f.SetSheetRow(s.name, s.cell(1), &values)
}

// header writes a bold row.
func (s *sheet) header(values ...string) {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	s.append(row...)
	if s.err == nil && len(values) > 0 {
		s.err = s.f.SetCellStyle(s.name, s.cell(1), s.cell(len(values)), s.bold)
	}
}

// moneyColumns formats the given columns of the current row with two decimals.
func (s *sheet) moneyColumns(cols ...int) {
	for _, c := range cols {
		if s.err != nil {
			return
		}
		cell := s.cell(c)
		s.err = s.f.SetCellStyle(s.name, cell, cell, s.money)
	}
}

func (s *sheet) widths(last string, width float64) {
	if s.err == nil {
		s.err = s.f.SetColWidth(s.name, "A", last, width)
	}
}

func finish(f *excelize.File, s *sheet, w io.Writer) error {
	defer f.Close()
	if s.err != nil {
		return s.err
	}
	return f.Write(w)
}

// WritePaymentsXLSX writes payments to a single-sheet workbook.
func WritePaymentsXLSX(w io.Writer, payments []models.Payment) error {
	f, s, err := newWorkbook("Payments")
	if err != nil {
		return err
	}
	s.header("ID", "Date", "User", "Category", "Name", "Quantity", "Price", "Total")
	for _, p := range payments {
		s.append(p.ID, p.Date.Format(DateLayout), p.UserFullName, p.CategoryName, p.Name,
			p.Quantity, p.Price.InexactFloat64(), p.Total().InexactFloat64())
		s.moneyColumns(7, 8)
	}
	s.widths("H", 16)
	return finish(f, s, w)
}

// WriteUsersXLSX writes the user list.
func WriteUsersXLSX(w io.Writer, users []models.User) error {
	f, s, err := newWorkbook("Users")
	if err != nil {
		return err
	}
	s.header(UsersHeader...)
	for _, u := range users {
		s.append(u.ID, u.Login, u.FullName, string(u.Role))
	}
	s.widths("D", 22)
	return finish(f, s, w)
}

// WriteCategoryReportXLSX writes the category report.
func WriteCategoryReportXLSX(w io.Writer, rep *analytics.CategoryReport) error {
	f, s, err := newWorkbook("Categories")
	if err != nil {
		return err
	}
	s.append("Period", rep.Period.From.Format(DateLayout), rep.Period.To.Format(DateLayout))
	s.header("Category", "Total", "Payments", "Users", "Average")
	for _, r := range rep.Rows {
		s.append(r.Category, r.Total.InexactFloat64(), r.Count, r.Users, r.Average.InexactFloat64())
		s.moneyColumns(2, 5)
	}
	s.append("Total", rep.Total.InexactFloat64(), rep.Count)
	s.moneyColumns(2)
	s.widths("E", 18)
	return finish(f, s, w)
}

// WriteUserReportXLSX writes the user report with one subtotal row per user.
func WriteUserReportXLSX(w io.Writer, rep *analytics.UserReport) error {
	f, s, err := newWorkbook("Users")
	if err != nil {
		return err
	}
	s.append("Period", rep.Period.From.Format(DateLayout), rep.Period.To.Format(DateLayout))
	s.header("User", "Date", "Category", "Name", "Quantity", "Price", "Total")
	for _, g := range rep.Groups {
		for _, p := range g.Payments {
			s.append(g.FullName, p.Date.Format(DateLayout), p.CategoryName, p.Name,
				p.Quantity, p.Price.InexactFloat64(), p.Total().InexactFloat64())
			s.moneyColumns(6, 7)
		}
		s.append(g.FullName+" subtotal", "", "", "", "", "", g.Subtotal.InexactFloat64())
		s.moneyColumns(7)
	}
	s.append("Total", "", "", "", rep.Count, "", rep.Total.InexactFloat64())
	s.moneyColumns(7)
	s.widths("G", 18)
	return finish(f, s, w)
}

// WriteSummaryXLSX writes the summary on three sheets.
func WriteSummaryXLSX(w io.Writer, sum *analytics.Summary) error {
	f, s, err := newWorkbook("Summary")
	if err != nil {
		return err
	}
	s.header("Metric", "Value")
	s.append("Period", sum.Period.From.Format(DateLayout)+" - "+sum.Period.To.Format(DateLayout))
	s.append("Payments", sum.Count)
	s.append("Total", sum.Total.InexactFloat64())
	s.moneyColumns(2)
	s.append("Average", sum.Average.InexactFloat64())
	s.moneyColumns(2)
	s.append("Active users", sum.ActiveUsers)
	s.append("Categories used", sum.CategoriesUsed)
	s.append("Users in system", sum.Users)
	s.append("Categories in system", sum.Categories)
	s.append("Payments in system", sum.Payments)
	s.widths("B", 24)

	top := func(name string, groups []analytics.Group) {
		ts := s.addSheet(name)
		ts.header("Name", "Payments", "Total")
		for _, g := range groups {
			ts.append(g.Label, g.Count, g.Total.InexactFloat64())
			ts.moneyColumns(3)
		}
		ts.widths("C", 20)
		if s.err == nil {
			s.err = ts.err
		}
	}
	top("Top users", sum.TopUsers)
	top("Top categories", sum.TopCategories)
	return finish(f, s, w)
}
