package handlers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"payment-tracker/internal/analytics"
	"payment-tracker/internal/log"
	"payment-tracker/internal/models"
)

// PaymentView is a payment with its derived total.
type PaymentView struct {
	models.Payment
	Total decimal.Decimal `json:"total"`
}

func viewOf(p models.Payment) PaymentView {
	return PaymentView{Payment: p, Total: p.Total()}
}

// PaymentStats summarizes a payment list.
type PaymentStats struct {
	Count   int             `json:"count"`
	Total   decimal.Decimal `json:"total"`
	Average decimal.Decimal `json:"average"`
}

type paymentList struct {
	Payments []PaymentView `json:"payments"`
	Stats    PaymentStats  `json:"stats"`
}

type paymentRequest struct {
	Date       string          `json:"date"`
	UserID     int64           `json:"user_id"`
	CategoryID int64           `json:"category_id"`
	Name       string          `json:"name"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

// toPayment builds a payment owned by the caller unless an administrator names another user.
func (h *Handlers) toPayment(req paymentRequest, user *models.User) (models.Payment, error) {
	p := models.Payment{
		UserID:     user.ID,
		CategoryID: req.CategoryID,
		Name:       strings.TrimSpace(req.Name),
		Quantity:   req.Quantity,
		Price:      req.Price,
	}
	if user.IsAdmin() && req.UserID > 0 {
		p.UserID = req.UserID
	}
	if strings.TrimSpace(req.Date) == "" {
		p.Date = h.now().UTC()
	} else {
		d, err := parseDate(req.Date)
		if err != nil {
			return p, err
		}
		p.Date = d
	}
	return p, p.Validate()
}

// ListPayments returns filtered payments, newest first, with count, sum and average.
// Non-administrators only see their own payments.
func (h *Handlers) ListPayments(w http.ResponseWriter, r *http.Request) {
	f, err := paymentFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if user := GetUserFromContext(r); !user.IsAdmin() {
		f.UserID = user.ID
	}

	payments, err := h.db.ListPayments(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := paymentList{Payments: make([]PaymentView, 0, len(payments))}
	for _, p := range payments {
		resp.Payments = append(resp.Payments, viewOf(p))
	}
	resp.Stats.Count = len(payments)
	resp.Stats.Total = analytics.Sum(payments)
	resp.Stats.Average = analytics.Average(resp.Stats.Total, resp.Stats.Count)
	writeJSON(w, http.StatusOK, resp)
}

// loadOwnedPayment fetches a payment the caller may see.
func (h *Handlers) loadOwnedPayment(r *http.Request) (*models.Payment, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	p, err := h.db.GetPayment(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if user := GetUserFromContext(r); !user.IsAdmin() && p.UserID != user.ID {
		return nil, errForbidden
	}
	return p, nil
}

// GetPayment returns one payment.
func (h *Handlers) GetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.loadOwnedPayment(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(*p))
}

// CreatePayment records a payment.
func (h *Handlers) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.toPayment(req, GetUserFromContext(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created, err := h.db.CreatePayment(r.Context(), &p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).Info("payment created",
		log.FieldOperation, log.OpCreate, log.FieldPaymentID, created.ID)
	writeJSON(w, http.StatusCreated, viewOf(*created))
}

// UpdatePayment replaces every editable field of a payment.
func (h *Handlers) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	existing, err := h.loadOwnedPayment(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req paymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user := GetUserFromContext(r)
	if user.IsAdmin() && req.UserID == 0 {
		req.UserID = existing.UserID
	}
	p, err := h.toPayment(req, user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p.ID = existing.ID
	if err := h.db.UpdatePayment(r.Context(), &p); err != nil {
		h.writeError(w, r, err)
		return
	}
	updated, err := h.db.GetPayment(r.Context(), p.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(*updated))
}

// DeletePayment removes a payment.
func (h *Handlers) DeletePayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.loadOwnedPayment(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.db.DeletePayment(r.Context(), p.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).Info("payment deleted", log.FieldOperation, log.OpDelete, log.FieldPaymentID, p.ID)
	w.WriteHeader(http.StatusNoContent)
}
