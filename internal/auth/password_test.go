package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-tracker/internal/models"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)
	assert.True(t, CheckPassword("secret123", hash))
	assert.False(t, CheckPassword("wrong123", hash))
	assert.False(t, NeedsRehash(hash))
}

func TestCheckPasswordLegacyDigest(t *testing.T) {
	// SHA-1 of "admin123".
	const upper = "F865B53623B121FD34EE5426C792E5C33AF8C227"
	assert.True(t, CheckPassword("admin123", upper))
	assert.True(t, CheckPassword("admin123", strings.ToLower(upper)))
	assert.False(t, CheckPassword("admin124", upper))
	assert.True(t, NeedsRehash(upper))
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		want     error
	}{
		{"abc123", nil},
		{"Password1", nil},
		{"", ErrPasswordRequired},
		{"ab12", ErrPasswordTooShort},
		{"abc 123", ErrPasswordCharset},
		{"пароль123", ErrPasswordCharset},
		{"abcdefg", ErrPasswordNoDigit},
		{"1234567", ErrPasswordNoLetter},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, models.ErrInvalid)
		})
	}
}

func TestValidateNewPassword(t *testing.T) {
	assert.NoError(t, ValidateNewPassword("abc123", "abc123"))
	assert.ErrorIs(t, ValidateNewPassword("abc123", "abc124"), ErrPasswordMismatch)
	assert.ErrorIs(t, ValidateNewPassword("abc", "abc"), ErrPasswordTooShort)
}

func TestGenerateTemporaryPassword(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		pw, err := GenerateTemporaryPassword()
		require.NoError(t, err)
		assert.NoError(t, ValidatePassword(pw))
		seen[pw] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestGenerateSessionToken(t *testing.T) {
	a, err := GenerateSessionToken()
	require.NoError(t, err)
	b, err := GenerateSessionToken()
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestNewChallenge(t *testing.T) {
	c, err := NewChallenge()
	require.NoError(t, err)
	assert.Len(t, c, CaptchaLength)
	for _, r := range c {
		assert.True(t, strings.ContainsRune(captchaAlphabet, r), "unexpected rune %q", r)
	}
}
