package auth

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateSessionToken returns 32 random bytes as hex.
func GenerateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
