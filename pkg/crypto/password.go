package crypto

import (
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for bcrypt.
const BcryptCost = 12

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPassword compares a plain password with a bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePasswordStrength enforces the allowed password length range.
func ValidatePasswordStrength(password string) bool {
	return len(password) >= 8 && len(password) <= 100
}
