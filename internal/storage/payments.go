package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"payment-tracker/internal/models"
)

// PaymentFilter narrows ListPayments. Zero values mean no restriction.
// From and Until are inclusive bounds on the payment date.
type PaymentFilter struct {
	From       time.Time
	Until      time.Time
	UserID     int64
	CategoryID int64
	Search     string
	// Ascending orders by date ascending instead of the default newest first.
	Ascending bool
}

const paymentSelect = `
	SELECT p.id, p.date, p.user_id, p.category_id, p.name, p.quantity, p.price,
	       u.full_name, c.name
	FROM payments p
	JOIN users u ON u.id = p.user_id
	JOIN categories c ON c.id = p.category_id`

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	var p models.Payment
	if err := row.Scan(&p.ID, &p.Date, &p.UserID, &p.CategoryID, &p.Name, &p.Quantity, &p.Price,
		&p.UserFullName, &p.CategoryName); err != nil {
		return nil, err
	}
	p.Date = p.Date.UTC()
	return &p, nil
}

// checkReferences verifies that the payment's user and category exist.
func checkReferences(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, p *models.Payment) error {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE id = ?", p.UserID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return ErrUnknownUser
	}
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories WHERE id = ?", p.CategoryID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return ErrUnknownCategory
	}
	return nil
}

// CreatePayment inserts a payment after checking its references.
func (db *DB) CreatePayment(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := checkReferences(ctx, tx, p); err != nil {
		return nil, err
	}
	result, err := tx.ExecContext(ctx,
		"INSERT INTO payments (date, user_id, category_id, name, quantity, price) VALUES (?, ?, ?, ?, ?, ?)",
		timestamp(p.Date), p.UserID, p.CategoryID, strings.TrimSpace(p.Name), p.Quantity, p.Price.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return db.GetPayment(ctx, id)
}

// GetPayment retrieves a payment with its user and category names.
func (db *DB) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	row := db.conn.QueryRowContext(ctx, paymentSelect+" WHERE p.id = ?", id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// ListPayments returns payments matching the filter, newest first.
func (db *DB) ListPayments(ctx context.Context, f PaymentFilter) ([]models.Payment, error) {
	var (
		where []string
		args  []any
	)
	if !f.From.IsZero() {
		where = append(where, "p.date >= ?")
		args = append(args, timestamp(f.From))
	}
	if !f.Until.IsZero() {
		where = append(where, "p.date <= ?")
		args = append(args, timestamp(f.Until))
	}
	if f.UserID > 0 {
		where = append(where, "p.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.CategoryID > 0 {
		where = append(where, "p.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, `p.name LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(s))
	}

	query := paymentSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Ascending {
		query += " ORDER BY p.date ASC, p.id ASC"
	} else {
		query += " ORDER BY p.date DESC, p.id DESC"
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// UpdatePayment saves every editable field of a payment.
func (db *DB) UpdatePayment(ctx context.Context, p *models.Payment) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := checkReferences(ctx, tx, p); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE payments SET date = ?, user_id = ?, category_id = ?, name = ?, quantity = ?, price = ? WHERE id = ?",
		timestamp(p.Date), p.UserID, p.CategoryID, strings.TrimSpace(p.Name), p.Quantity, p.Price.String(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

// DeletePayment removes a payment by ID.
func (db *DB) DeletePayment(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	return checkAffected(res)
}

// PaymentCount returns the number of payments.
func (db *DB) PaymentCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM payments").Scan(&count)
	return count, err
}
