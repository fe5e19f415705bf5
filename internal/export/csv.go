// Package export writes payments, users and reports as CSV, XLSX or plain text.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"payment-tracker/internal/models"
)

const (
	// DateLayout is the day format used in every export.
	DateLayout = "02.01.2006"
	bom        = "\uFEFF"
)

// PaymentsHeader is the header row of the payments CSV.
var PaymentsHeader = []string{"Date", "User", "Category", "Name", "Quantity", "Price", "Total"}

// UsersHeader is the header row of the users export.
var UsersHeader = []string{"ID", "Login", "Full name", "Role"}

// FileName builds "<kind>_<yyyyMMdd_HHmmss>.<ext>".
func FileName(kind, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", kind, now.Format("20060102_150405"), ext)
}

// textCell keeps spreadsheet programs from evaluating free text as a formula.
func textCell(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

func newCSVWriter(w io.Writer) (*csv.Writer, error) {
	if _, err := io.WriteString(w, bom); err != nil {
		return nil, err
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	return cw, nil
}

// WritePaymentsCSV writes payments as semicolon separated UTF-8 with a BOM.
func WritePaymentsCSV(w io.Writer, payments []models.Payment) error {
	cw, err := newCSVWriter(w)
	if err != nil {
		return err
	}
	if err := cw.Write(PaymentsHeader); err != nil {
		return err
	}
	for _, p := range payments {
		rec := []string{
			p.Date.Format(DateLayout),
			textCell(p.UserFullName),
			textCell(p.CategoryName),
			textCell(p.Name),
			strconv.FormatInt(p.Quantity, 10),
			p.Price.StringFixed(2),
			p.Total().StringFixed(2),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteUsersCSV writes the user list. Password hashes are never exported.
func WriteUsersCSV(w io.Writer, users []models.User) error {
	cw, err := newCSVWriter(w)
	if err != nil {
		return err
	}
	if err := cw.Write(UsersHeader); err != nil {
		return err
	}
	for _, u := range users {
		if err := cw.Write([]string{strconv.FormatInt(u.ID, 10), u.Login, textCell(u.FullName), string(u.Role)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
