// Package server verifies the identity tokens minted by the external auth
// service. Token issuance lives outside this server; connections presenting
// no token, or a bad one, simply stay anonymous.
package server

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the verified identity stamped on a connection before it enters
// matchmaking. Anonymous pairing is allowed, so the field is optional.
type Identity struct {
	UserID   string
	Username string
}

type identityClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// IdentityFromToken validates an HS256 token from the auth service and
// extracts the identity it attests to.
func IdentityFromToken(tokenString, secret string) (*Identity, error) {
	if secret == "" {
		return nil, errors.New("identity verification is not configured")
	}

	claims := &identityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return nil, fmt.Errorf("parsing identity token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid identity token")
	}
	if claims.Subject == "" {
		return nil, errors.New("identity token has no subject")
	}

	return &Identity{UserID: claims.Subject, Username: claims.Username}, nil
}
