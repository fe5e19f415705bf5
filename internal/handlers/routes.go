package handlers

import (
	"net/http"

	"payment-tracker/internal/models"
)

// Routes registers every API endpoint on a new mux.
func (h *Handlers) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	authed := func(fn http.HandlerFunc) http.Handler {
		return h.AuthMiddleware(fn)
	}
	admin := func(fn http.HandlerFunc) http.Handler {
		return h.AuthMiddleware(h.RequireRole(models.RoleAdmin)(fn))
	}

	mux.HandleFunc("GET /health", h.Health)

	// Public
	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.HandleFunc("POST /api/auth/change-password", h.ChangePassword)
	mux.HandleFunc("GET /api/auth/captcha", h.Captcha)

	// Any signed-in user
	mux.Handle("GET /api/auth/me", authed(h.Me))
	mux.Handle("GET /api/categories", authed(h.ListCategories))
	mux.Handle("GET /api/categories/{id}", authed(h.GetCategory))
	mux.Handle("GET /api/payments", authed(h.ListPayments))
	mux.Handle("POST /api/payments", authed(h.CreatePayment))
	mux.Handle("GET /api/payments/{id}", authed(h.GetPayment))
	mux.Handle("PUT /api/payments/{id}", authed(h.UpdatePayment))
	mux.Handle("DELETE /api/payments/{id}", authed(h.DeletePayment))
	mux.Handle("GET /api/me/statistics", authed(h.MyStatistics))

	// Administrators
	mux.Handle("POST /api/categories", admin(h.CreateCategory))
	mux.Handle("PUT /api/categories/{id}", admin(h.UpdateCategory))
	mux.Handle("DELETE /api/categories/{id}", admin(h.DeleteCategory))
	mux.Handle("GET /api/categories/{id}/info", admin(h.CategoryInfo))

	mux.Handle("GET /api/users", admin(h.ListUsers))
	mux.Handle("POST /api/users", admin(h.CreateUser))
	mux.Handle("GET /api/users/{id}", admin(h.GetUser))
	mux.Handle("PUT /api/users/{id}", admin(h.UpdateUser))
	mux.Handle("DELETE /api/users/{id}", admin(h.DeleteUser))
	mux.Handle("POST /api/users/{id}/reset-password", admin(h.ResetPassword))

	mux.Handle("GET /api/analytics/{view}", admin(h.Analytics))
	mux.Handle("GET /api/reports/system", admin(h.SystemStats))
	mux.Handle("GET /api/reports/{kind}", admin(h.Report))
	mux.Handle("GET /api/export/payments", admin(h.ExportPayments))
	mux.Handle("GET /api/export/users", admin(h.ExportUsers))
	mux.Handle("GET /api/export/all", admin(h.ExportAll))

	return mux
}
