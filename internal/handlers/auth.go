package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"payment-tracker/internal/auth"
	"payment-tracker/internal/log"
	"payment-tracker/internal/models"
	"payment-tracker/internal/storage"
)

type registerRequest struct {
	Login           string `json:"login"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FullName        string `json:"full_name"`
}

// Register creates an account with the User role.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.Login = strings.TrimSpace(req.Login)
	req.FullName = strings.TrimSpace(req.FullName)

	u := models.User{Login: req.Login, FullName: req.FullName, Role: models.RoleUser}
	if err := u.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := auth.ValidateNewPassword(req.Password, req.ConfirmPassword); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.createUser(r, &u, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).Info("user registered", log.FieldUserID, user.ID, log.FieldLogin, user.Login)
	writeJSON(w, http.StatusCreated, user)
}

// createUser checks login uniqueness before hashing and inserting.
func (h *Handlers) createUser(r *http.Request, u *models.User, password string) (*models.User, error) {
	taken, err := h.db.LoginTaken(r.Context(), u.Login, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.ErrUserExists
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash
	return h.db.CreateUser(r.Context(), u)
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Captcha  string `json:"captcha"`
}

type loginResponse struct {
	User      *models.User `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// guardResponse tells the client what the next attempt needs.
type guardResponse struct {
	Error           string `json:"error,omitempty"`
	Failures        int    `json:"failures"`
	CaptchaRequired bool   `json:"captcha_required"`
	Captcha         string `json:"captcha,omitempty"`
	Locked          bool   `json:"locked"`
}

func (h *Handlers) writeGuardError(w http.ResponseWriter, st auth.Status, err error) {
	status := statusFor(err)
	if st.Locked {
		status = http.StatusTooManyRequests
		err = auth.ErrLocked
		if st.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(st.RetryAfter.Round(time.Second).Seconds())))
		}
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("login guard failed", log.FieldError, err)
		msg = "internal server error"
	}
	writeJSON(w, status, guardResponse{
		Error:           msg,
		Failures:        st.Failures,
		CaptchaRequired: st.CaptchaRequired(),
		Captcha:         st.Captcha,
		Locked:          st.Locked,
	})
}

// checkCredentials runs one guarded credential check for the calling client.
func (h *Handlers) checkCredentials(w http.ResponseWriter, r *http.Request, login, password, captcha string) (*models.User, bool) {
	key := h.proxies.ClientIP(r)
	if strings.TrimSpace(login) == "" || password == "" {
		h.writeGuardError(w, h.guard.Status(key), auth.ErrCredentialsRequired)
		return nil, false
	}
	if st, err := h.guard.Admit(key, captcha); err != nil {
		h.writeGuardError(w, st, err)
		return nil, false
	}

	user, err := h.db.GetUserByLogin(r.Context(), strings.TrimSpace(login))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, r, err)
		return nil, false
	}
	if err != nil || !auth.CheckPassword(password, user.PasswordHash) {
		st, gerr := h.guard.Fail(key)
		if gerr != nil {
			h.writeGuardError(w, st, gerr)
			return nil, false
		}
		log.FromContext(r.Context()).Warn("failed login",
			log.FieldLogin, login, log.FieldClientIP, key, "failures", st.Failures)
		h.writeGuardError(w, st, auth.ErrInvalidCredentials)
		return nil, false
	}
	h.guard.Succeed(key)

	if auth.NeedsRehash(user.PasswordHash) {
		if hash, err := auth.HashPassword(password); err == nil {
			if err := h.db.SetPassword(r.Context(), user.ID, hash); err != nil {
				log.FromContext(r.Context()).Warn("password rehash failed", log.FieldUserID, user.ID, log.FieldError, err)
			} else {
				user.PasswordHash = hash
			}
		}
	}
	return user, true
}

// Login authenticates a user and starts a session.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, ok := h.checkCredentials(w, r, req.Login, req.Password, req.Captcha)
	if !ok {
		return
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	expiresAt := h.now().Add(h.sessionDuration)
	if err := h.db.CreateSession(r.Context(), token, user.ID, expiresAt); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setSessionCookie(w, token)

	log.FromContext(r.Context()).Info("user logged in", log.FieldUserID, user.ID, log.FieldLogin, user.Login)
	writeJSON(w, http.StatusOK, loginResponse{User: user, ExpiresAt: expiresAt.UTC()})
}

// Logout ends the current session if there is one.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.db.DeleteSession(r.Context(), cookie.Value); err != nil {
			log.FromContext(r.Context()).Warn("failed to delete session", log.FieldError, err)
		}
	}
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

type changePasswordRequest struct {
	Login           string `json:"login"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
	Captcha         string `json:"captcha"`
}

// ChangePassword replaces a password after verifying the current one.
// Every session of the user is ended.
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := auth.ValidateNewPassword(req.NewPassword, req.ConfirmPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.NewPassword == req.CurrentPassword {
		h.writeError(w, r, auth.ErrPasswordUnchanged)
		return
	}

	user, ok := h.checkCredentials(w, r, req.Login, req.CurrentPassword, req.Captcha)
	if !ok {
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.db.ReplacePassword(r.Context(), user.ID, hash); err != nil {
		h.writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).Info("password changed", log.FieldUserID, user.ID)
	w.WriteHeader(http.StatusNoContent)
}

// Captcha reports the caller's guard state and issues a fresh challenge when one is required.
func (h *Handlers) Captcha(w http.ResponseWriter, r *http.Request) {
	st, err := h.guard.Refresh(h.proxies.ClientIP(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, guardResponse{
		Failures:        st.Failures,
		CaptchaRequired: st.CaptchaRequired(),
		Captcha:         st.Captcha,
		Locked:          st.Locked,
	})
}

// Me returns the authenticated user.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, GetUserFromContext(r))
}
