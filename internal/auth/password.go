package auth

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"payment-tracker/internal/models"
)

const MinPasswordLen = 6

var (
	ErrPasswordRequired  = models.NewValidationError("password is required")
	ErrPasswordTooShort  = models.NewValidationError("password must be at least 6 characters")
	ErrPasswordCharset   = models.NewValidationError("password must contain only latin letters and digits")
	ErrPasswordNoDigit   = models.NewValidationError("password must contain at least one digit")
	ErrPasswordNoLetter  = models.NewValidationError("password must contain at least one letter")
	ErrPasswordMismatch  = models.NewValidationError("passwords do not match")
	ErrPasswordUnchanged = models.NewValidationError("new password must differ from the current one")
)

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a password against a stored hash. Besides bcrypt it
// accepts unsalted SHA-1 hex digests left over from imported databases.
func CheckPassword(password, hash string) bool {
	if isLegacyHash(hash) {
		sum := sha1.Sum([]byte(password))
		want := strings.ToLower(hash)
		return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(want)) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NeedsRehash reports whether a stored hash should be replaced by a bcrypt one.
func NeedsRehash(hash string) bool {
	return isLegacyHash(hash)
}

func isLegacyHash(hash string) bool {
	if len(hash) != sha1.Size*2 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

// ValidatePassword enforces the password policy: at least six latin letters
// or digits with one of each.
func ValidatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) < MinPasswordLen {
		return ErrPasswordTooShort
	}
	var hasDigit, hasLetter bool
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			hasLetter = true
		default:
			return ErrPasswordCharset
		}
	}
	if !hasDigit {
		return ErrPasswordNoDigit
	}
	if !hasLetter {
		return ErrPasswordNoLetter
	}
	return nil
}

// ValidateNewPassword checks the policy and the confirmation.
func ValidateNewPassword(password, confirm string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

const (
	letters = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"
	digits  = "23456789"
)

// GenerateTemporaryPassword returns a random password that satisfies the policy.
func GenerateTemporaryPassword() (string, error) {
	const length = 10
	alphabet := letters + digits
	buf := make([]byte, length)
	for i := range buf {
		c, err := randomChar(alphabet)
		if err != nil {
			return "", err
		}
		buf[i] = c
	}
	// Guarantee one letter and one digit at random positions.
	li, err := rand.Int(rand.Reader, big.NewInt(length))
	if err != nil {
		return "", err
	}
	di := (li.Int64() + 1 + int64(length/2)) % length
	if buf[li.Int64()], err = randomChar(letters); err != nil {
		return "", err
	}
	if buf[di], err = randomChar(digits); err != nil {
		return "", err
	}
	pw := string(buf)
	if err := ValidatePassword(pw); err != nil {
		return "", errors.New("generated password violates policy")
	}
	return pw, nil
}

func randomChar(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, err
	}
	return alphabet[n.Int64()], nil
}
