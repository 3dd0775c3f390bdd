package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Claims are the display-only claims of an access token. They are read
// without verifying the signature and never decide whether the user is
// logged in.
type Claims struct {
	Subject   string
	UserID    string
	ExpiresAt *time.Time
}

// Expired reports whether the token claims an expiry before now
func (c Claims) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// ParseClaims decodes the claims of token without verifying it
func ParseClaims(token string) (Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})

	if err != nil {
		return Claims{}, fmt.Errorf("parse token claims: %w", err)
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("unexpected claims type %T", parsed.Claims)
	}

	var c Claims

	if sub, ok := mc["sub"].(string); ok {
		c.Subject = sub
	}

	switch uid := mc["user_id"].(type) {
	case string:
		c.UserID = uid
	case float64:
		c.UserID = fmt.Sprintf("%.0f", uid)
	}

	if exp, ok := mc["exp"].(float64); ok {
		t := time.Unix(int64(exp), 0).UTC()
		c.ExpiresAt = &t
	}

	return c, nil
}

// Claims decodes the current access token's claims
func (s *Store) Claims() (Claims, error) {
	token, _ := s.Token()

	if token == "" {
		return Claims{}, fmt.Errorf("no access token")
	}

	return ParseClaims(token)
}
