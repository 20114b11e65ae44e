package common

import (
	"golang.org/x/crypto/bcrypt"
)

// HashModeratorKey produces the value stored in MODERATOR_KEY_HASH
func HashModeratorKey(key string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func CheckModeratorKey(key, hashedKey string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedKey), []byte(key))
}
