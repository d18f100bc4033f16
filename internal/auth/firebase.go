package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"cashflow/internal/log"
)

// passwordAPI is the subset of the Identity Toolkit relying-party API used
// for email and password flows. It returns the issued ID token.
type passwordAPI interface {
	verifyPassword(ctx context.Context, email, password string) (string, error)
	signUp(ctx context.Context, email, password string) (string, error)
}

// tokenVerifier is satisfied by *auth.Client from the Admin SDK.
type tokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// Firebase authenticates with email and password against Firebase Auth.
type Firebase struct {
	passwords passwordAPI
	tokens    tokenVerifier
	logger    *slog.Logger
}

func NewFirebase(ctx context.Context, app *firebase.App, apiKey string, logger *slog.Logger) (*Firebase, error) {
	if app == nil {
		return nil, ErrMissingProvider
	}
	if apiKey == "" {
		return nil, fmt.Errorf("firebase auth: api key is required")
	}
	svc, err := identitytoolkit.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create identity toolkit service: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("get auth client: %w", err)
	}
	return newFirebase(&toolkit{svc: svc}, client, logger), nil
}

func newFirebase(p passwordAPI, t tokenVerifier, logger *slog.Logger) *Firebase {
	if logger == nil {
		logger = slog.Default()
	}
	return &Firebase{passwords: p, tokens: t, logger: logger.With(log.FieldComponent, log.ComponentAuth)}
}

func (f *Firebase) SignIn(ctx context.Context, email, password string) (Identity, error) {
	email, err := normalizeCredentials(email, password)
	if err != nil {
		return Identity{}, err
	}
	token, err := f.passwords.verifyPassword(ctx, email, password)
	if err != nil {
		f.logger.WarnContext(ctx, "Sign-in rejected", "error", err)
		return Identity{}, mapError(err)
	}
	return f.identity(ctx, token)
}

func (f *Firebase) SignUp(ctx context.Context, email, password string) (Identity, error) {
	email, err := normalizeCredentials(email, password)
	if err != nil {
		return Identity{}, err
	}
	token, err := f.passwords.signUp(ctx, email, password)
	if err != nil {
		f.logger.WarnContext(ctx, "Sign-up rejected", "error", err)
		return Identity{}, mapError(err)
	}
	return f.identity(ctx, token)
}

// SignOut revokes the user's refresh tokens.
func (f *Firebase) SignOut(ctx context.Context, uid string) error {
	if err := f.tokens.RevokeRefreshTokens(ctx, uid); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

// VerifyToken checks a bearer ID token.
func (f *Firebase) VerifyToken(ctx context.Context, idToken string) (Identity, error) {
	tok, err := f.tokens.VerifyIDToken(ctx, idToken)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	email, _ := tok.Claims["email"].(string)
	return Identity{UID: tok.UID, Email: email, IDToken: idToken}, nil
}

func (f *Firebase) identity(ctx context.Context, idToken string) (Identity, error) {
	id, err := f.VerifyToken(ctx, idToken)
	if err != nil {
		f.logger.ErrorContext(ctx, "Issued token failed verification", "error", err)
		return Identity{}, ErrAuthFailed
	}
	return id, nil
}

// mapError reduces provider errors to the two messages shown to users.
func mapError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if strings.Contains(gerr.Message, "EMAIL_NOT_FOUND") {
			return ErrUserNotFound
		}
		for _, item := range gerr.Errors {
			if strings.Contains(item.Message, "EMAIL_NOT_FOUND") {
				return ErrUserNotFound
			}
		}
	}
	return ErrAuthFailed
}

type toolkit struct {
	svc *identitytoolkit.Service
}

func (t *toolkit) verifyPassword(ctx context.Context, email, password string) (string, error) {
	resp, err := t.svc.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return resp.IdToken, nil
}

func (t *toolkit) signUp(ctx context.Context, email, password string) (string, error) {
	resp, err := t.svc.Relyingparty.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return resp.IdToken, nil
}
