package handlers

import (
	"net/http"
	"strings"

	"payment-tracker/internal/auth"
	"payment-tracker/internal/log"
	"payment-tracker/internal/models"
	"payment-tracker/internal/storage"
)

type userRequest struct {
	Login    string  `json:"login"`
	Password string  `json:"password"`
	FullName string  `json:"full_name"`
	Role     string  `json:"role"`
	Photo    *string `json:"photo"`
}

// ListUsers returns users filtered by search and role, sorted by name or age.
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.UserFilter{Search: q.Get("search"), Sort: q.Get("sort")}
	switch f.Sort {
	case "", storage.SortNameAsc, storage.SortNameDesc, storage.SortNewest:
	default:
		h.writeError(w, r, models.NewValidationError("sort must be name_asc, name_desc or newest"))
		return
	}
	if role := q.Get("role"); role != "" {
		parsed, err := models.ParseRole(role)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		f.Role = parsed
	}

	users, err := h.db.ListUsers(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// GetUser returns one user.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.db.GetUserByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// apply copies the submitted fields onto base. Role and photo keep the
// values of base when omitted.
func (req userRequest) apply(base models.User) (models.User, error) {
	u := base
	u.Login = strings.TrimSpace(req.Login)
	u.FullName = strings.TrimSpace(req.FullName)
	if req.Photo != nil {
		u.Photo = strings.TrimSpace(*req.Photo)
	}
	if req.Role != "" {
		role, err := models.ParseRole(req.Role)
		if err != nil {
			return u, err
		}
		u.Role = role
	}
	return u, u.Validate()
}

// CreateUser adds a user with any role.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := req.apply(models.User{Role: models.RoleUser})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.createUser(r, &u, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).Info("user created",
		log.FieldOperation, log.OpCreate, log.FieldLogin, user.Login, "new_user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

// UpdateUser edits profile fields. The password changes only when one is
// supplied, and then every session of the user ends.
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	existing, err := h.db.GetUserByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := req.apply(*existing)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var hash string
	if req.Password != "" {
		if err := auth.ValidatePassword(req.Password); err != nil {
			h.writeError(w, r, err)
			return
		}
		if hash, err = auth.HashPassword(req.Password); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	taken, err := h.db.LoginTaken(r.Context(), u.Login, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if taken {
		h.writeError(w, r, models.ErrUserExists)
		return
	}

	if err := h.db.UpdateUser(r.Context(), &u, hash); err != nil {
		h.writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).Info("user updated",
		log.FieldOperation, log.OpUpdate, "target_user_id", id, "password_changed", hash != "")

	updated, err := h.db.GetUserByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteUser removes a user without payments. Administrators cannot remove themselves.
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if current := GetUserFromContext(r); current != nil && current.ID == id {
		h.writeError(w, r, models.ErrSelfDelete)
		return
	}
	if err := h.db.DeleteUser(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).Info("user deleted", log.FieldOperation, log.OpDelete, "deleted_user_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword assigns a random temporary password and returns it once.
func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.db.GetUserByID(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	password, err := auth.GenerateTemporaryPassword()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.db.ReplacePassword(r.Context(), id, hash); err != nil {
		h.writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).Info("password reset", "target_user_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"password": password})
}
