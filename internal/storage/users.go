package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"payment-tracker/internal/models"
)

// User sort orders.
const (
	SortNameAsc  = "name_asc"
	SortNameDesc = "name_desc"
	SortNewest   = "newest"
)

// UserFilter narrows ListUsers. Zero values mean no restriction.
type UserFilter struct {
	Search string
	Role   models.Role
	Sort   string
}

const userColumns = "id, login, password_hash, full_name, role, photo, created_at"

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.FullName, &role, &u.Photo, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// CreateUser inserts a user. The password hash must already be set.
func (db *DB) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = db.now()
	}
	result, err := db.conn.ExecContext(ctx,
		"INSERT INTO users (login, password_hash, full_name, role, photo, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		u.Login, u.PasswordHash, u.FullName, string(u.Role), u.Photo, timestamp(u.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return db.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// GetUserByLogin retrieves a user by login, ignoring letter case.
func (db *DB) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE login = ?", login)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// LoginTaken reports whether another user than excludeID already uses login.
func (db *DB) LoginTaken(ctx context.Context, login string, excludeID int64) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE login = ? AND id <> ?", login, excludeID,
	).Scan(&n)
	return n > 0, err
}

// ListUsers returns users matching the filter.
func (db *DB) ListUsers(ctx context.Context, f UserFilter) ([]models.User, error) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, `(full_name LIKE ? ESCAPE '\' OR login LIKE ? ESCAPE '\')`)
		p := likePattern(s)
		args = append(args, p, p)
	}
	if f.Role != "" {
		where = append(where, "role = ?")
		args = append(args, string(f.Role))
	}

	query := "SELECT " + userColumns + " FROM users"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	switch f.Sort {
	case SortNameDesc:
		query += " ORDER BY full_name COLLATE NOCASE DESC, id DESC"
	case SortNewest:
		query += " ORDER BY id DESC"
	default:
		query += " ORDER BY full_name COLLATE NOCASE ASC, id ASC"
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUser saves login, full name, role and photo. A non-empty
// newPasswordHash replaces the password in the same transaction and ends
// every session of the user.
func (db *DB) UpdateUser(ctx context.Context, u *models.User, newPasswordHash string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE users SET login = ?, full_name = ?, role = ?, photo = ? WHERE id = ?",
		u.Login, u.FullName, string(u.Role), u.Photo, u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrUserExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return err
	}
	if newPasswordHash != "" {
		if err := replacePassword(ctx, tx, u.ID, newPasswordHash); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SetPassword replaces a user's password hash and keeps their sessions.
func (db *DB) SetPassword(ctx context.Context, userID int64, hash string) error {
	res, err := db.conn.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", hash, userID)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return checkAffected(res)
}

// ReplacePassword sets a new password hash and ends every session of the
// user in one transaction.
func (db *DB) ReplacePassword(ctx context.Context, userID int64, hash string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := replacePassword(ctx, tx, userID, hash); err != nil {
		return err
	}
	return tx.Commit()
}

func replacePassword(ctx context.Context, tx *sql.Tx, userID int64, hash string) error {
	res, err := tx.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", hash, userID)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}

// DeleteUser removes a user that has no payments. Sessions go with it.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM payments WHERE user_id = ?", id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return models.ErrUserHasPayments
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.ErrUserHasPayments
		}
		return fmt.Errorf("delete user: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// UserCountByRole returns how many users hold each role.
func (db *DB) UserCountByRole(ctx context.Context) (map[models.Role]int, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT role, COUNT(*) FROM users GROUP BY role")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[models.Role]int{models.RoleAdmin: 0, models.RoleUser: 0}
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		counts[models.Role(role)] = n
	}
	return counts, rows.Err()
}
