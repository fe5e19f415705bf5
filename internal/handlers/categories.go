package handlers

import (
	"net/http"

	"payment-tracker/internal/log"
	"payment-tracker/internal/models"
)

type categoryRequest struct {
	Name string `json:"name"`
}

// ListCategories returns categories ordered by name.
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.db.ListCategories(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// GetCategory returns one category.
func (h *Handlers) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.db.GetCategory(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CategoryInfo returns payment count, total and last payment date of a category.
func (h *Handlers) CategoryInfo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	info, err := h.db.CategoryInfo(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// validateCategoryName normalizes the name and checks it is free.
func (h *Handlers) validateCategoryName(r *http.Request, c *models.Category) error {
	c.Normalize()
	if err := c.Validate(); err != nil {
		return err
	}
	taken, err := h.db.CategoryNameTaken(r.Context(), c.Name, c.ID)
	if err != nil {
		return err
	}
	if taken {
		return models.ErrCategoryExists
	}
	return nil
}

// CreateCategory adds a category.
func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c := models.Category{Name: req.Name}
	if err := h.validateCategoryName(r, &c); err != nil {
		h.writeError(w, r, err)
		return
	}
	created, err := h.db.CreateCategory(r.Context(), c.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).Info("category created", log.FieldCategoryID, created.ID)
	writeJSON(w, http.StatusCreated, created)
}

// UpdateCategory renames a category.
func (h *Handlers) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.db.GetCategory(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	c := models.Category{ID: id, Name: req.Name}
	if err := h.validateCategoryName(r, &c); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.db.UpdateCategory(r.Context(), &c); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteCategory removes a category no payment references.
func (h *Handlers) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.db.DeleteCategory(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).Info("category deleted", log.FieldCategoryID, id)
	w.WriteHeader(http.StatusNoContent)
}
