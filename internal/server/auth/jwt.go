// Package auth issues and checks the access tokens handed out at login.
// A token names the user and the login session it belongs to; the session
// itself is still validated on every call, so ending a session revokes the
// token even before it expires.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

const issuer = "vos-access"

// Claims carries the registered claims plus the session identity.
type Claims struct {
	jwt.RegisteredClaims
	Username  string `json:"usr"`
	SessionID string `json:"sid"`
}

var now = time.Now

func GenerateToken(username, sessionID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	issued := now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(validityDuration)),
		},
		Username:  username,
		SessionID: sessionID,
	})

	return token.SignedString(secretKey)
}

// ParseToken verifies the signature, algorithm and expiry of tokenString.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid || claims.Username == "" || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
