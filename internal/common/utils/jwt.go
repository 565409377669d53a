// internal/common/utils/jwt.go
// JWT validation for credentials issued by the auth subsystem.
// This service consumes tokens; it never issues them.

package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenInvalid   = errors.New("token invalid")
)

// JWTClaims is the subset of claims this service reads
type JWTClaims struct {
	UserID   int64  `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// ValidateJWT validates a JWT token and returns claims
func ValidateJWT(tokenString string, secret string) (*JWTClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		default:
			return nil, ErrTokenInvalid
		}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	userID := extractUserID(claims)
	if userID == 0 {
		return nil, ErrTokenInvalid
	}

	return &JWTClaims{
		UserID:   userID,
		Email:    getStringClaim(claims, "email"),
		Username: getStringClaim(claims, "username"),
	}, nil
}

// GenerateJWT creates a token the way the auth subsystem does; used by tests
// and local tooling only.
func GenerateJWT(userID int64, username string, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"exp":      now.Add(expiry).Unix(),
		"iat":      now.Unix(),
	})

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// extractUserID tolerates the id field variants different token issuers use
func extractUserID(claims jwt.MapClaims) int64 {
	for _, key := range []string{"user_id", "userId", "id", "sub", "uid"} {
		switch val := claims[key].(type) {
		case float64:
			if val > 0 {
				return int64(val)
			}
		case string:
			var id int64
			if _, err := fmt.Sscanf(val, "%d", &id); err == nil && id > 0 {
				return id
			}
		}
	}
	return 0
}

// getStringClaim safely extracts a string claim
func getStringClaim(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key].(string); ok {
		return val
	}
	return ""
}
