package models

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxFullNameLen limits full names, counted in characters.
const MaxFullNameLen = 150

// Role gates which operations a user may perform.
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
)

// ParseRole accepts a role name in any letter case.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "user":
		return RoleUser, nil
	}
	return "", ErrInvalidRole
}

// User represents a user account.
type User struct {
	ID           int64     `json:"id"`
	Login        string    `json:"login"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	Photo        string    `json:"photo,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin reports whether the user holds the Admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Session represents a user session.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

var loginPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// ValidateLogin checks that a login is present and made of latin letters and digits.
func ValidateLogin(login string) error {
	if strings.TrimSpace(login) == "" {
		return ErrLoginRequired
	}
	if !loginPattern.MatchString(login) {
		return ErrLoginFormat
	}
	if len(login) > 50 {
		return ErrLoginTooLong
	}
	return nil
}

// Validate checks the profile fields of a user. Passwords are checked separately.
func (u User) Validate() error {
	if err := ValidateLogin(u.Login); err != nil {
		return err
	}
	if strings.TrimSpace(u.FullName) == "" {
		return ErrFullNameRequired
	}
	if utf8.RuneCountInString(strings.TrimSpace(u.FullName)) > MaxFullNameLen {
		return ErrFullNameTooLong
	}
	if u.Role != RoleAdmin && u.Role != RoleUser {
		return ErrInvalidRole
	}
	return nil
}
