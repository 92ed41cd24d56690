package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt rejects inputs longer than 72 bytes, so hashing truncates first.
const bcryptMaxBytes = 72

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	b := []byte(password)
	if len(b) > bcryptMaxBytes {
		b = b[:bcryptMaxBytes]
	}
	hash, err := bcrypt.GenerateFromPassword(b, bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the hash.
func CheckPassword(password, hash string) bool {
	b := []byte(password)
	if len(b) > bcryptMaxBytes {
		b = b[:bcryptMaxBytes]
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), b) == nil
}
