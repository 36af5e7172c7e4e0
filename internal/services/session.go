package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/contactsbook/apiserver/internal/auth"
	"github.com/contactsbook/apiserver/internal/cache"
	"github.com/contactsbook/apiserver/internal/metrics"
	"github.com/contactsbook/apiserver/internal/store"
	"github.com/contactsbook/apiserver/types"
)

// Client-facing messages.
const (
	MsgAccountExists       = "Account already exists"
	MsgInvalidEmail        = "Invalid email"
	MsgInvalidPassword     = "Invalid password"
	MsgEmailNotConfirmed   = "Email not confirmed"
	MsgInvalidCredentials  = "Could not validate credentials"
	MsgInvalidScope        = "Invalid scope for token"
	MsgInvalidRefreshToken = "Invalid refresh token"
	MsgVerificationError   = "Verification error"
	MsgInvalidEmailToken   = "Invalid token for email verification"
	MsgAlreadyConfirmed    = "Your email is already confirmed"
	MsgEmailConfirmed      = "Email confirmed"
	MsgCheckEmail          = "Check your email for confirmation."
)

const defaultMailTimeout = 30 * time.Second

// UserDirectory is the persistent store of user records.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	SetRefreshToken(ctx context.Context, userID int, token *string) error
	SetConfirmed(ctx context.Context, email string) error
	SetAvatar(ctx context.Context, email, url string) (types.User, error)
}

// Mailer delivers email-confirmation letters.
type Mailer interface {
	SendConfirmation(ctx context.Context, email, username, baseURL string) error
}

// AvatarResolver finds a default avatar URL for a new account.
type AvatarResolver interface {
	Resolve(ctx context.Context, email string) (string, error)
}

// SignupInput carries the fields of a registration request.
type SignupInput struct {
	Username string
	Email    string
	Password string
}

// SessionService owns the token lifecycle: signup, login, refresh with
// rotation, logout, email confirmation and current-user resolution.
type SessionService struct {
	users      UserDirectory
	codec      *auth.Codec
	hasher     *auth.Hasher
	identities *cache.IdentityCache
	mailer     Mailer
	avatars    AvatarResolver

	logger      *slog.Logger
	metrics     *metrics.Metrics
	mailTimeout time.Duration

	// mu guards closed and every wg.Add so no dispatch starts once Close
	// has begun waiting.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type SessionOption func(*SessionService)

func WithAvatarResolver(resolver AvatarResolver) SessionOption {
	return func(s *SessionService) {
		s.avatars = resolver
	}
}

func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *SessionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSessionMetrics(m *metrics.Metrics) SessionOption {
	return func(s *SessionService) {
		s.metrics = m
	}
}

// WithMailTimeout bounds each background confirmation dispatch.
func WithMailTimeout(timeout time.Duration) SessionOption {
	return func(s *SessionService) {
		if timeout > 0 {
			s.mailTimeout = timeout
		}
	}
}

// NewSessionService wires the session manager. identities may wrap a nil
// store and mailer may be nil; neither is required for correctness.
func NewSessionService(
	users UserDirectory,
	codec *auth.Codec,
	hasher *auth.Hasher,
	identities *cache.IdentityCache,
	mailer Mailer,
	opts ...SessionOption,
) *SessionService {
	if identities == nil {
		identities = cache.NewIdentityCache(nil)
	}
	s := &SessionService{
		users:       users,
		codec:       codec,
		hasher:      hasher,
		identities:  identities,
		mailer:      mailer,
		logger:      slog.Default(),
		mailTimeout: defaultMailTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup registers a new unconfirmed account and schedules the
// confirmation letter. The returned user carries no password hash.
func (s *SessionService) Signup(ctx context.Context, in SignupInput, baseURL string) (types.User, error) {
	email := strings.TrimSpace(in.Email)

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return types.User{}, conflict(MsgAccountExists)
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, s.internal(ctx, "lookup user", err)
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return types.User{}, s.internal(ctx, "hash password", err)
	}

	user := types.User{
		Username:     strings.TrimSpace(in.Username),
		Email:        email,
		PasswordHash: digest,
		Avatar:       s.resolveAvatar(ctx, email),
	}

	user, err = s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, conflict(MsgAccountExists)
		}
		return types.User{}, s.internal(ctx, "create user", err)
	}

	s.dispatchConfirmation(user, baseURL)

	user.PasswordHash = ""
	user.RefreshToken = nil
	return user, nil
}

// Login checks credentials and confirmation state, then issues a token pair.
func (s *SessionService) Login(ctx context.Context, email, password string) (types.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.TokenPair{}, unauthorized(MsgInvalidEmail, nil)
		}
		return types.TokenPair{}, s.internal(ctx, "lookup user", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return types.TokenPair{}, unauthorized(MsgInvalidPassword, nil)
	}
	if !user.Confirmed {
		return types.TokenPair{}, unauthorized(MsgEmailNotConfirmed, nil)
	}

	return s.issuePair(ctx, user)
}

// Refresh rotates the session. A token that is valid but differs from the
// stored one revokes the session.
//
// Two concurrent refreshes with the same token race on the stored value;
// the loser is rejected as an invalid refresh token and must log in again.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (types.TokenPair, error) {
	email, err := s.codec.DecodeRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrWrongScope) {
			return types.TokenPair{}, unauthorized(MsgInvalidScope, err)
		}
		return types.TokenPair{}, unauthorized(MsgInvalidRefreshToken, err)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.TokenPair{}, unauthorized(MsgInvalidRefreshToken, err)
		}
		return types.TokenPair{}, s.internal(ctx, "lookup user", err)
	}

	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		if err := s.users.SetRefreshToken(ctx, user.ID, nil); err != nil {
			return types.TokenPair{}, s.internal(ctx, "revoke refresh token", err)
		}
		s.logger.WarnContext(ctx, "stale refresh token presented, session revoked", "user_id", user.ID)
		return types.TokenPair{}, unauthorized(MsgInvalidRefreshToken, nil)
	}

	return s.issuePair(ctx, user)
}

// Logout clears the stored refresh token of user.
func (s *SessionService) Logout(ctx context.Context, user types.User) error {
	if err := s.users.SetRefreshToken(ctx, user.ID, nil); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return unauthorized(MsgInvalidCredentials, err)
		}
		return s.internal(ctx, "clear refresh token", err)
	}
	return nil
}

// ConfirmEmail marks the account named by an email-verification token as
// confirmed. Confirming twice is not an error.
func (s *SessionService) ConfirmEmail(ctx context.Context, token string) (string, error) {
	email, err := s.codec.DecodeEmailToken(token)
	if err != nil {
		return "", validation(MsgInvalidEmailToken, err)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", badRequest(MsgVerificationError)
		}
		return "", s.internal(ctx, "lookup user", err)
	}
	if user.Confirmed {
		return MsgAlreadyConfirmed, nil
	}

	if err := s.users.SetConfirmed(ctx, email); err != nil {
		return "", s.internal(ctx, "confirm email", err)
	}
	return MsgEmailConfirmed, nil
}

// RequestEmail schedules another confirmation letter for an unconfirmed
// account. Unknown addresses get the same answer as unconfirmed ones.
func (s *SessionService) RequestEmail(ctx context.Context, email, baseURL string) (string, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return MsgCheckEmail, nil
		}
		return "", s.internal(ctx, "lookup user", err)
	}
	if user.Confirmed {
		return MsgAlreadyConfirmed, nil
	}

	s.dispatchConfirmation(user, baseURL)
	return MsgCheckEmail, nil
}

// CurrentUser resolves the owner of an access token, consulting the identity
// cache before the directory.
func (s *SessionService) CurrentUser(ctx context.Context, accessToken string) (types.User, error) {
	email, err := s.codec.DecodeAccess(accessToken)
	if err != nil {
		return types.User{}, unauthorized(MsgInvalidCredentials, err)
	}

	if user, ok := s.identities.Get(ctx, email); ok {
		return user, nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, unauthorized(MsgInvalidCredentials, err)
		}
		return types.User{}, s.internal(ctx, "lookup user", err)
	}

	s.identities.Set(ctx, user)
	user.PasswordHash = ""
	user.RefreshToken = nil
	return user, nil
}

// Close stops scheduling confirmation letters and blocks until every
// dispatch already started has finished. Requests served afterwards still
// succeed but send no mail.
func (s *SessionService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wait()
}

func (s *SessionService) wait() {
	s.wg.Wait()
}

func (s *SessionService) issuePair(ctx context.Context, user types.User) (types.TokenPair, error) {
	access, err := s.codec.CreateAccessToken(user.Email, 0)
	if err != nil {
		return types.TokenPair{}, s.internal(ctx, "create access token", err)
	}
	refresh, err := s.codec.CreateRefreshToken(user.Email, 0)
	if err != nil {
		return types.TokenPair{}, s.internal(ctx, "create refresh token", err)
	}

	if err := s.users.SetRefreshToken(ctx, user.ID, &refresh); err != nil {
		return types.TokenPair{}, s.internal(ctx, "store refresh token", err)
	}

	return types.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    types.TokenTypeBearer,
	}, nil
}

func (s *SessionService) resolveAvatar(ctx context.Context, email string) string {
	if s.avatars == nil {
		return ""
	}
	url, err := s.avatars.Resolve(ctx, email)
	if err != nil {
		s.logger.WarnContext(ctx, "avatar resolution failed", "error", err)
		return ""
	}
	return url
}

// dispatchConfirmation hands the letter to the mailer in the background.
// The request never waits for it and never sees its error.
func (s *SessionService) dispatchConfirmation(user types.User, baseURL string) {
	if s.mailer == nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("confirmation email skipped during shutdown", "user_id", user.ID)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.mailTimeout)
		defer cancel()

		if err := s.mailer.SendConfirmation(ctx, user.Email, user.Username, baseURL); err != nil {
			s.metrics.MailDispatch(metrics.ResultFailed)
			s.logger.Warn("confirmation email dispatch failed", "user_id", user.ID, "error", err)
			return
		}
		s.metrics.MailDispatch(metrics.ResultQueued)
	}()
}

func (s *SessionService) internal(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, op+" failed", "error", err)
	return internal(err)
}
