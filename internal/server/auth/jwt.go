// Package auth issues and validates the bearer tokens the HTTP API hands
// out on login, and derives the password hashes stored for each account.
package auth

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/flocksync/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token claim set: the registered claims plus the account id
// and its congregation. Carrying the church in the token lets feed scoping
// be enforced without a user lookup per request.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string
	ChurchID string
}

// GenerateToken signs an HS256 token for the account that expires after
// validityDuration.
func GenerateToken(userID, churchID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID:   userID,
		ChurchID: churchID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken parses and verifies tokenString. Every failure wraps
// common.ErrInvalidToken; expired tokens also match jwt.ErrTokenExpired.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
