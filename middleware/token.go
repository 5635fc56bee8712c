// middleware/token.go
package middleware

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

// GenerateToken mints a signed bearer token for the given identity. Token
// issuance proper lives in the auth service; this helper exists for the
// websocket handshake tests and internal tooling.
func GenerateToken(userID, email, userType string) (string, error) {
	claims := &JwtCustomClaims{
		UserID:   userID,
		Email:    email,
		UserType: userType,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(24 * time.Hour).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(GetJWTSecret()))
}

// ValidateToken parses and validates a bearer token, returning its claims.
func ValidateToken(tokenString string) (*JwtCustomClaims, error) {
	if tokenString == "" {
		return nil, errors.New("no token provided")
	}

	token, err := jwt.ParseWithClaims(tokenString, &JwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(GetJWTSecret()), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}

	claims, ok := token.Claims.(*JwtCustomClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
