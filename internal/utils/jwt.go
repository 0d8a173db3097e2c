// internal/utils/jwt.go
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const unsubscribePurpose = "newsletter_unsubscribe"

type UnsubscribeClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

var jwtSecret = []byte("change-me-jwt-secret-in-production")

func SetJWTSecret(secret string) {
	jwtSecret = []byte(secret)
}

// GenerateUnsubscribeToken signs a token that lets the holder unsubscribe email from the newsletter.
func GenerateUnsubscribeToken(email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := UnsubscribeClaims{
		Email:   email,
		Purpose: unsubscribePurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "sap-technologies",
			Subject:   email,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ParseUnsubscribeToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UnsubscribeClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*UnsubscribeClaims)
	if !ok || !token.Valid || claims.Purpose != unsubscribePurpose || claims.Email == "" {
		return "", errors.New("invalid unsubscribe token")
	}

	return claims.Email, nil
}
