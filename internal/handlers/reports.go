package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"payment-tracker/internal/analytics"
	"payment-tracker/internal/export"
	"payment-tracker/internal/log"
	"payment-tracker/internal/models"
	"payment-tracker/internal/storage"
)

const (
	formatJSON = "json"
	formatText = "text"
	formatCSV  = "csv"
	formatXLSX = "xlsx"

	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var contentTypes = map[string]string{
	formatText: "text/plain; charset=utf-8",
	formatCSV:  "text/csv; charset=utf-8",
	formatXLSX: contentTypeXLSX,
}

func format(r *http.Request, def string, allowed ...string) (string, error) {
	f := r.URL.Query().Get("format")
	if f == "" {
		return def, nil
	}
	for _, a := range allowed {
		if f == a {
			return f, nil
		}
	}
	return "", models.NewValidationError(fmt.Sprintf("format must be one of %v", allowed))
}

// attach renders into memory first so a failed export still gets a JSON error.
func (h *Handlers) attach(w http.ResponseWriter, r *http.Request, kind, ext string, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		h.writeError(w, r, err)
		return
	}
	name := export.FileName(kind, ext, h.now())
	w.Header().Set("Content-Type", contentTypes[ext])
	if ext != formatText {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
	log.FromContext(r.Context()).Info("export written",
		log.FieldOperation, log.OpExport, log.FieldFormat, ext, "file", name, "bytes", buf.Len())
}

// Analytics serves chart data: categories, users (top 10) or a chronological trend.
func (h *Handlers) Analytics(w http.ResponseWriter, r *http.Request) {
	f, err := paymentFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var dim analytics.Dimension
	switch r.PathValue("view") {
	case "categories":
		dim = analytics.ByCategory
	case "users":
		dim = analytics.ByUser
	case "trend":
		bucket := r.URL.Query().Get("bucket")
		if bucket == "" {
			bucket = string(analytics.ByDay)
		}
		if dim, err = analytics.ParseDimension(bucket); err != nil || !dim.IsTime() {
			h.writeError(w, r, models.NewValidationError("bucket must be day, week or month"))
			return
		}
	default:
		h.writeError(w, r, storage.ErrNotFound)
		return
	}

	groups, err := h.reports.Chart(r.Context(), f, dim)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// Report serves the users, categories and summary reports as JSON, text or XLSX.
func (h *Handlers) Report(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	if kind != "users" && kind != "categories" && kind != "summary" {
		h.writeError(w, r, storage.ErrNotFound)
		return
	}
	fmtName, err := format(r, formatJSON, formatJSON, formatText, formatXLSX)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := period(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	name := kind + "_report"

	switch kind {
	case "users":
		userID, err := queryInt(r, "user_id")
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		rep, err := h.reports.UserReport(r.Context(), p, userID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.respondReport(w, r, fmtName, name, rep,
			func(w io.Writer) error { return export.WriteUserReportText(w, rep) },
			func(w io.Writer) error { return export.WriteUserReportXLSX(w, rep) })
	case "categories":
		categoryID, err := queryInt(r, "category_id")
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		rep, err := h.reports.CategoryReport(r.Context(), p, categoryID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.respondReport(w, r, fmtName, name, rep,
			func(w io.Writer) error { return export.WriteCategoryReportText(w, rep) },
			func(w io.Writer) error { return export.WriteCategoryReportXLSX(w, rep) })
	case "summary":
		sum, err := h.reports.Summary(r.Context(), p)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.respondReport(w, r, fmtName, name, sum,
			func(w io.Writer) error { return export.WriteSummaryText(w, sum) },
			func(w io.Writer) error { return export.WriteSummaryXLSX(w, sum) })
	}
}

func (h *Handlers) respondReport(w http.ResponseWriter, r *http.Request, fmtName, name string, v any, text, xlsx func(io.Writer) error) {
	switch fmtName {
	case formatText:
		h.attach(w, r, name, formatText, text)
	case formatXLSX:
		h.attach(w, r, name, formatXLSX, xlsx)
	default:
		writeJSON(w, http.StatusOK, v)
	}
}

// SystemStats serves database-wide statistics.
func (h *Handlers) SystemStats(w http.ResponseWriter, r *http.Request) {
	fmtName, err := format(r, formatJSON, formatJSON, formatText)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	st, err := h.reports.SystemStats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if fmtName == formatText {
		h.attach(w, r, "system_stats", formatText, func(w io.Writer) error { return export.WriteSystemStatsText(w, st) })
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ExportPayments downloads the filtered payment list as CSV or XLSX.
func (h *Handlers) ExportPayments(w http.ResponseWriter, r *http.Request) {
	fmtName, err := format(r, formatCSV, formatCSV, formatXLSX)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	f, err := paymentFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	payments, err := h.db.ListPayments(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if fmtName == formatXLSX {
		h.attach(w, r, "payments", formatXLSX, func(w io.Writer) error { return export.WritePaymentsXLSX(w, payments) })
		return
	}
	h.attach(w, r, "payments", formatCSV, func(w io.Writer) error { return export.WritePaymentsCSV(w, payments) })
}

// ExportUsers downloads the user list as CSV or XLSX.
func (h *Handlers) ExportUsers(w http.ResponseWriter, r *http.Request) {
	fmtName, err := format(r, formatCSV, formatCSV, formatXLSX)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	users, err := h.db.ListUsers(r.Context(), storage.UserFilter{})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if fmtName == formatXLSX {
		h.attach(w, r, "users", formatXLSX, func(w io.Writer) error { return export.WriteUsersXLSX(w, users) })
		return
	}
	h.attach(w, r, "users", formatCSV, func(w io.Writer) error { return export.WriteUsersCSV(w, users) })
}

// ExportAll downloads every payment, oldest first, as CSV.
func (h *Handlers) ExportAll(w http.ResponseWriter, r *http.Request) {
	payments, err := h.db.ListPayments(r.Context(), storage.PaymentFilter{Ascending: true})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.attach(w, r, "all_payments", formatCSV, func(w io.Writer) error { return export.WritePaymentsCSV(w, payments) })
}
