package handlers

import (
	"net/http"
)

// MyStatistics breaks the caller's payments down by category with shares of the total.
func (h *Handlers) MyStatistics(w http.ResponseWriter, r *http.Request) {
	f, err := paymentFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stats, err := h.reports.UserStatistics(r.Context(), GetUserFromContext(r).ID, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
