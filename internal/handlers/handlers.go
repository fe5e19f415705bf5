package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"payment-tracker/internal/analytics"
	"payment-tracker/internal/auth"
	"payment-tracker/internal/log"
	"payment-tracker/internal/models"
	"payment-tracker/internal/storage"
)

type contextKey string

const (
	// UserContextKey stores the signed-in *models.User in the request context.
	UserContextKey contextKey = "user"
	// SessionCookieName carries the opaque session token.
	SessionCookieName = "session"
	// DefaultSessionDuration is how long sessions last unless configured (30 days).
	DefaultSessionDuration = 30 * 24 * time.Hour

	maxBodyBytes = 1 << 20
	dateLayout   = "2006-01-02"
)

var (
	errForbidden    = errors.New("access denied")
	errUnauthorized = errors.New("authentication required")
	errBadBody      = models.NewValidationError("invalid request body")
)

// Options configures Handlers.
type Options struct {
	SecureCookie    bool
	SessionDuration time.Duration
	Guard           *auth.Guard
	Logger          *log.Logger
	// TrustedProxies decides which peers may name the client for the login guard.
	TrustedProxies  log.TrustedProxies
}

// Handlers serves the JSON API on top of the storage layer.
type Handlers struct {
	db              *storage.DB
	reports         *analytics.Service
	guard           *auth.Guard
	logger          *log.Logger
	proxies         log.TrustedProxies
	secureCookie    bool
	sessionDuration time.Duration
	now             func() time.Time
}

// NewHandlers wires db and opts into a Handlers. Zero options get defaults.
func NewHandlers(db *storage.DB, opts Options) *Handlers {
	if opts.SessionDuration <= 0 {
		opts.SessionDuration = DefaultSessionDuration
	}
	if opts.Guard == nil {
		opts.Guard = auth.NewGuard(auth.DefaultGuardConfig())
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	return &Handlers{
		db:              db,
		reports:         analytics.NewService(db),
		guard:           opts.Guard,
		logger:          opts.Logger,
		proxies:         opts.TrustedProxies,
		secureCookie:    opts.SecureCookie,
		sessionDuration: opts.SessionDuration,
		now:             time.Now,
	}
}

// GetUserFromContext returns the user stored by AuthMiddleware, or nil.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

// AuthMiddleware rejects requests without a valid session cookie. Sessions
// with less than half their lifetime left are extended and the cookie reissued.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			h.writeError(w, r, errUnauthorized)
			return
		}

		sessionInfo, err := h.db.ValidateSessionWithInfo(r.Context(), cookie.Value)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				h.writeError(w, r, err)
				return
			}
			h.clearSessionCookie(w)
			h.writeError(w, r, errUnauthorized)
			return
		}

		now := h.now()
		if sessionInfo.ExpiresAt.Sub(now) < h.sessionDuration/2 {
			if err := h.db.RenewSession(r.Context(), cookie.Value, now.Add(h.sessionDuration)); err == nil {
				h.setSessionCookie(w, cookie.Value)
			} else {
				log.FromContext(r.Context()).Warn("session renewal failed", log.FieldError, err)
			}
		}

		ctx := context.WithValue(r.Context(), UserContextKey, sessionInfo.User)
		ctx = log.WithLogger(ctx, log.FromContext(ctx).With(log.FieldUserID, sessionInfo.User.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects authenticated users that do not hold role.
// It must run inside AuthMiddleware.
func (h *Handlers) RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUserFromContext(r)
			if user == nil {
				h.writeError(w, r, errUnauthorized)
				return
			}
			if user.Role != role {
				h.writeError(w, r, errForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// Health reports whether the database answers.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthorized),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrCaptchaMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, auth.ErrLocked):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.FromContext(r.Context()).Error("request failed",
			log.FieldMethod, r.Method, log.FieldPath, r.URL.Path, log.FieldError, err)
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, storage.ErrNotFound
	}
	return id, nil
}

func queryInt(r *http.Request, key string) (int64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, models.NewValidationError(fmt.Sprintf("invalid %s", key))
	}
	return n, nil
}

func queryDate(r *http.Request, key string) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, models.NewValidationError(fmt.Sprintf("invalid %s: expected YYYY-MM-DD", key))
	}
	return t, nil
}

// parseDate accepts a calendar day or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, models.NewValidationError("invalid date: expected YYYY-MM-DD or RFC 3339")
	}
	return t.UTC(), nil
}

// paymentFilter reads the shared list filters from the query string.
func paymentFilter(r *http.Request) (storage.PaymentFilter, error) {
	var f storage.PaymentFilter
	from, err := queryDate(r, "from")
	if err != nil {
		return f, err
	}
	to, err := queryDate(r, "to")
	if err != nil {
		return f, err
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return f, models.ErrPeriodOrder
	}
	f = (analytics.Period{From: from, To: to}).Filter()
	if f.UserID, err = queryInt(r, "user_id"); err != nil {
		return f, err
	}
	if f.CategoryID, err = queryInt(r, "category_id"); err != nil {
		return f, err
	}
	f.Search = r.URL.Query().Get("search")
	return f, nil
}

// period reads a required report period.
func period(r *http.Request) (analytics.Period, error) {
	from, err := queryDate(r, "from")
	if err != nil {
		return analytics.Period{}, err
	}
	to, err := queryDate(r, "to")
	if err != nil {
		return analytics.Period{}, err
	}
	p := analytics.Period{From: from, To: to}
	return p, p.Validate()
}
