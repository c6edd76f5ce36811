package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/internal/metrics"
	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/repository"
	"github.com/inkpost/inkpost/internal/validation"
)

// AuthService handles signup, credential checks and sessions.
type AuthService struct {
	users     UserStore
	hasher    PasswordHasher
	tokens    TokenIssuer
	revoker   TokenRevoker
	metrics   metrics.Recorder
	logger    *slog.Logger
	validator *validation.Validator
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserStore, hasher PasswordHasher, tokens TokenIssuer, revoker TokenRevoker, recorder metrics.Recorder, logger *slog.Logger) *AuthService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		revoker:   revoker,
		metrics:   recorder,
		logger:    logger,
		validator: validation.New(),
	}
}

// SignupInput holds the fields of a new account.
type SignupInput struct {
	Name     string `json:"name" validate:"notblank,max=100"`
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"min=8,maxbytes=72"`
}

// SignupOutput acknowledges a created account.
type SignupOutput struct {
	UserID  int64
	Message string
}

// LoginOutput is an issued session.
type LoginOutput struct {
	Token     string
	ExpiresAt time.Time
	Principal *model.Principal
}

// Signup validates the input, hashes the secret and stores the account.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*SignupOutput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)

	fields, err := s.validator.Struct(in)
	if err != nil {
		return nil, err
	}
	if fields != nil {
		return nil, newValidationError(fields)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, newValidationError(map[string]string{"password": "must not exceed 72 bytes"})
		}
		return nil, err
	}

	user := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: &hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrDuplicateEmail
		}
		return nil, storageError("create user", err)
	}

	s.logger.InfoContext(ctx, "user_signed_up", "user_id", user.ID)

	return &SignupOutput{UserID: user.ID, Message: "Account created"}, nil
}

// VerifyCredentials resolves an email and secret to a principal. Unknown
// email, missing password and wrong password all yield ErrAuthenticationFailed.
func (s *AuthService) VerifyCredentials(ctx context.Context, email, secret string) (*model.Principal, error) {
	email = strings.TrimSpace(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.hasher.CompareDummy(secret)
			return nil, ErrAuthenticationFailed
		}
		return nil, storageError("get user by email", err)
	}

	if user.PasswordHash == nil || *user.PasswordHash == "" {
		s.hasher.CompareDummy(secret)
		return nil, ErrAuthenticationFailed
	}

	if err := s.hasher.Compare(*user.PasswordHash, secret); err != nil {
		if !errors.Is(err, auth.ErrMismatch) {
			s.logger.WarnContext(ctx, "password_hash_unreadable", "user_id", user.ID, "error", err)
		}
		return nil, ErrAuthenticationFailed
	}

	return principalFor(user), nil
}

// Login verifies credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, secret string) (*LoginOutput, error) {
	principal, err := s.VerifyCredentials(ctx, email, secret)
	if err != nil {
		if errors.Is(err, ErrAuthenticationFailed) {
			s.metrics.IncLoginFailed()
			s.logger.InfoContext(ctx, "login_failed")
		}
		return nil, err
	}

	token, expiresAt, err := s.tokens.Issue(principal)
	if err != nil {
		return nil, err
	}
	principal.ExpiresAt = expiresAt

	s.metrics.IncLoginSucceeded()
	s.logger.InfoContext(ctx, "login_succeeded", "user_id", principal.UserID)

	return &LoginOutput{Token: token, ExpiresAt: expiresAt, Principal: principal}, nil
}

// Logout revokes the principal's token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, principal *model.Principal) error {
	if principal == nil || principal.TokenID == "" {
		return ErrAuthenticationFailed
	}
	if err := s.revoker.RevokeToken(ctx, principal.TokenID, principal.ExpiresAt); err != nil {
		return storageError("revoke token", err)
	}
	s.logger.InfoContext(ctx, "logout", "user_id", principal.UserID)
	return nil
}

// CurrentUser loads the account behind principal.
func (s *AuthService) CurrentUser(ctx context.Context, principal *model.Principal) (*model.User, error) {
	id, err := ownerFromPrincipal(principal)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrAuthenticationFailed
		}
		return nil, storageError("get user", err)
	}
	return user, nil
}

func principalFor(u *model.User) *model.Principal {
	return &model.Principal{
		UserID: strconv.FormatInt(u.ID, 10),
		Email:  u.Email,
		Name:   u.Name,
		Image:  u.Image,
	}
}
