package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"payment-tracker/internal/models"
)

// CreateCategory inserts a category with a trimmed name.
func (db *DB) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	result, err := db.conn.ExecContext(ctx, "INSERT INTO categories (name) VALUES (?)", name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrCategoryExists
		}
		return nil, fmt.Errorf("insert category: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Category{ID: id, Name: name}, nil
}

// GetCategory retrieves a category by ID.
func (db *DB) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	var c models.Category
	err := db.conn.QueryRowContext(ctx, "SELECT id, name FROM categories WHERE id = ?", id).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CategoryNameTaken reports whether another category than excludeID already uses name.
func (db *DB) CategoryNameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM categories WHERE name = ? AND id <> ?", strings.TrimSpace(name), excludeID,
	).Scan(&n)
	return n > 0, err
}

// ListCategories returns categories ordered by name, optionally filtered by a substring.
func (db *DB) ListCategories(ctx context.Context, search string) ([]models.Category, error) {
	query := "SELECT id, name FROM categories"
	var args []any
	if s := strings.TrimSpace(search); s != "" {
		query += ` WHERE name LIKE ? ESCAPE '\'`
		args = append(args, likePattern(s))
	}
	query += " ORDER BY name COLLATE NOCASE, id"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// UpdateCategory renames a category.
func (db *DB) UpdateCategory(ctx context.Context, c *models.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	res, err := db.conn.ExecContext(ctx, "UPDATE categories SET name = ? WHERE id = ?", c.Name, c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrCategoryExists
		}
		return fmt.Errorf("update category: %w", err)
	}
	return checkAffected(res)
}

// DeleteCategory removes a category that no payment references.
func (db *DB) DeleteCategory(ctx context.Context, id int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM payments WHERE category_id = ?", id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return models.ErrCategoryHasPayments
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.ErrCategoryHasPayments
		}
		return fmt.Errorf("delete category: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

// CategoryInfo returns payment count, total and last payment date for a category.
func (db *DB) CategoryInfo(ctx context.Context, id int64) (*models.CategoryInfo, error) {
	if _, err := db.GetCategory(ctx, id); err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT date, quantity, price FROM payments WHERE category_id = ? ORDER BY date DESC, id DESC", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	info := &models.CategoryInfo{Total: decimal.Zero}
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.Date, &p.Quantity, &p.Price); err != nil {
			return nil, err
		}
		if info.LastPayment == nil {
			last := p.Date.UTC()
			info.LastPayment = &last
		}
		info.PaymentCount++
		info.Total = info.Total.Add(p.Total())
	}
	return info, rows.Err()
}

// CategoryCount returns the number of categories.
func (db *DB) CategoryCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&count)
	return count, err
}

// SeedCategories inserts names when the table is empty and reports how many were added.
func (db *DB) SeedCategories(ctx context.Context, names []string) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&n); err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, "INSERT INTO categories (name) VALUES (?)", strings.TrimSpace(name)); err != nil {
			return 0, fmt.Errorf("seed category %q: %w", name, err)
		}
	}
	return len(names), tx.Commit()
}
