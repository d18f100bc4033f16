// Package auth signs users in and out of the hosted identity provider.
package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrAuthFailed      = errors.New("authentication failed, please check your details")
	ErrMissingFields   = errors.New("email and password are required")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrMissingProvider = errors.New("authentication is not configured")
)

// Identity is the signed-in user.
type Identity struct {
	UID     string `json:"uid"`
	Email   string `json:"email"`
	IDToken string `json:"-"`
}

type Provider interface {
	SignIn(ctx context.Context, email, password string) (Identity, error)
	SignUp(ctx context.Context, email, password string) (Identity, error)
	SignOut(ctx context.Context, uid string) error
}

// ExtractBearer returns the token from an "Authorization: Bearer ..." value.
func ExtractBearer(header string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(parts[1]), nil
}

func normalizeCredentials(email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", ErrMissingFields
	}
	return email, nil
}
