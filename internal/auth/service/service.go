// Package service implements the authentication flows end to end: password
// sign-in and sign-up, the OAuth dance, and sign-out. Every operation is a
// plain function over structured input returning a typed outcome; nothing
// here knows about HTTP beyond the cookie jar abstraction the OAuth flow
// needs.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"authgate/internal/auth/hasher"
	"authgate/internal/auth/metrics"
	"authgate/internal/auth/models"
	"authgate/internal/auth/oauth"
	"authgate/internal/auth/store/session"
	"authgate/internal/auth/store/user"
	dErrors "authgate/pkg/domain-errors"
	"authgate/pkg/platform/sentinel"
)

// Service orchestrates the auth flows over the user store, session store and
// OAuth client. All collaborators are injected; there is no global state.
type Service struct {
	users    user.Store
	sessions session.Store
	oauth    *oauth.Client
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New wires an auth service. metrics may be nil in tests.
func New(users user.Store, sessions session.Store, oauthClient *oauth.Client, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		oauth:    oauthClient,
		logger:   logger,
		metrics:  m,
	}
}

// SignIn authenticates submitted credentials and establishes a session.
// An unknown email and an OAuth-only account both report "unregistered
// email"; a wrong password reports "invalid credentials". The distinction is
// a deliberate product choice carried over from the original flow, accepted
// enumeration tradeoff included.
func (s *Service) SignIn(ctx context.Context, req models.SignInRequest) (*models.AuthResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.metrics.ObserveSignIn("invalid_input")
		return nil, err
	}

	u, err := s.users.FindByEmail(ctx, req.Email)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.metrics.ObserveSignIn("unregistered_email")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "unregistered email, please sign up")
	}
	if err != nil {
		return nil, s.storeFailure(ctx, "find user", err)
	}
	if !u.HasPassword() {
		// OAuth-only account; there is no password to check.
		s.metrics.ObserveSignIn("unregistered_email")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "unregistered email, please sign up")
	}

	if !hasher.ComparePasswords(req.Password, u.Salt, u.PasswordHash) {
		s.metrics.ObserveSignIn("invalid_credentials")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	token, err := s.createSession(ctx, u)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveSignIn("success")
	return &models.AuthResult{Token: token, User: u}, nil
}

// SignUp creates an account and signs it in. The existence check here is
// advisory; the user store's uniqueness constraint is the arbiter when two
// requests race, and its conflict surfaces the same way.
func (s *Service) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.metrics.ObserveSignUp("invalid_input")
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		s.metrics.ObserveSignUp("account_exists")
		return nil, dErrors.New(dErrors.CodeConflict, "account already exists for this email")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, s.storeFailure(ctx, "find user", err)
	}

	salt, err := hasher.GenerateSalt()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "unable to create account")
	}
	hash, err := hasher.HashPassword(req.Password, salt)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "unable to create account")
	}

	u := &models.User{
		ID:           uuid.New(),
		Name:         req.Name,
		Email:        req.Email,
		Role:         models.RoleUser,
		PasswordHash: hash,
		Salt:         salt,
	}
	if err := s.users.Insert(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.ObserveSignUp("account_exists")
			return nil, dErrors.New(dErrors.CodeConflict, "account already exists for this email")
		}
		s.metrics.ObserveSignUp("failure")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "unable to create account")
	}

	// If session creation fails now the account still exists; the user signs
	// in normally afterwards. No compensating delete.
	token, err := s.createSession(ctx, u)
	if err != nil {
		s.metrics.ObserveSignUp("failure")
		return nil, err
	}
	s.metrics.ObserveSignUp("success")
	return &models.AuthResult{Token: token, User: u}, nil
}

// OAuthSignIn returns the provider's authorization URL to redirect the user
// agent to, with CSRF state already persisted and mirrored into the jar.
func (s *Service) OAuthSignIn(ctx context.Context, provider string, jar oauth.Jar) (string, error) {
	authURL, err := s.oauth.AuthURL(ctx, provider, jar)
	if errors.Is(err, oauth.ErrUnknownProvider) {
		return "", dErrors.New(dErrors.CodeNotFound, "unknown provider")
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "oauth sign-in failed")
	}
	return authURL, nil
}

// OAuthCallback completes the provider flow, finds or creates the matching
// account, and establishes a session. Every flow failure (CSRF mismatch,
// spent state, exchange or userinfo trouble) collapses into one opaque
// outcome so provider internals never reach the end user.
func (s *Service) OAuthCallback(ctx context.Context, provider string, jar oauth.Jar, query url.Values) (*models.AuthResult, error) {
	info, err := s.oauth.Callback(ctx, provider, jar, query)
	if errors.Is(err, oauth.ErrUnknownProvider) {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown provider")
	}
	if err != nil {
		s.metrics.ObserveOAuthCallback(provider, "failure")
		s.logger.WarnContext(ctx, "oauth callback failed", "provider", provider, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "oauth sign-in failed")
	}

	u, err := s.findOrCreateOAuthUser(ctx, info)
	if err != nil {
		s.metrics.ObserveOAuthCallback(provider, "failure")
		return nil, err
	}

	token, err := s.createSession(ctx, u)
	if err != nil {
		s.metrics.ObserveOAuthCallback(provider, "failure")
		return nil, err
	}
	s.metrics.ObserveOAuthCallback(provider, "success")
	return &models.AuthResult{Token: token, User: u}, nil
}

// SignOut destroys the session record and is idempotent: signing out an
// unknown or already-destroyed token succeeds.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Destroy(ctx, token); err != nil {
		return s.storeFailure(ctx, "destroy session", err)
	}
	s.metrics.ObserveSignOut()
	return nil
}

// CurrentUser resolves a session token to its account. It is the read path
// every authenticated request goes through.
func (s *Service) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not signed in")
	}
	sess, err := s.sessions.Get(ctx, token)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not signed in")
	}
	if err != nil {
		return nil, s.storeFailure(ctx, "read session", err)
	}

	u, err := s.users.FindByID(ctx, sess.UserID.String())
	if errors.Is(err, sentinel.ErrNotFound) {
		// Session outlived the account.
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not signed in")
	}
	if err != nil {
		return nil, s.storeFailure(ctx, "find user", err)
	}
	return u, nil
}

// findOrCreateOAuthUser links the provider identity to an account by email.
// An existing account keeps its credentials; only the display name follows
// the provider. A lost insert race falls back to the winner's record.
func (s *Service) findOrCreateOAuthUser(ctx context.Context, info models.UserInfo) (*models.User, error) {
	existing, err := s.users.FindByEmail(ctx, info.Email)
	if err == nil {
		if existing.Name != info.Name {
			existing.Name = info.Name
			if err := s.users.Update(ctx, existing); err != nil {
				return nil, s.storeFailure(ctx, "update user", err)
			}
		}
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, s.storeFailure(ctx, "find user", err)
	}

	u := &models.User{
		ID:    uuid.New(),
		Name:  info.Name,
		Email: info.Email,
		Role:  models.RoleUser,
	}
	if err := s.users.Insert(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			winner, findErr := s.users.FindByEmail(ctx, info.Email)
			if findErr != nil {
				return nil, s.storeFailure(ctx, "find user", findErr)
			}
			return winner, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "unable to create account")
	}
	return u, nil
}

func (s *Service) createSession(ctx context.Context, u *models.User) (string, error) {
	token, err := s.sessions.Create(ctx, models.Session{UserID: u.ID, Role: u.Role})
	if err != nil {
		return "", s.storeFailure(ctx, "create session", err)
	}
	return token, nil
}

// storeFailure logs the underlying fault and reports storage as unavailable
// without leaking infrastructure detail to the caller.
func (s *Service) storeFailure(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "store operation failed", "op", op, "error", err)
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "storage unavailable")
}
