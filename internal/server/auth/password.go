package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// HashPassword derives the argon2id digest stored for an account password.
func HashPassword(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// VerifyPassword reports whether password matches the stored digest. The
// comparison runs in constant time.
func VerifyPassword(password, salt, hash []byte) bool {
	return subtle.ConstantTimeCompare(HashPassword(password, salt), hash) == 1
}
