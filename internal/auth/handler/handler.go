// Package handler exposes the authentication flows over HTTP. It owns the
// cookie handling: the session token travels in an HTTP-only cookie, and the
// OAuth CSRF state in a short-lived cookie scoped to the callback path.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"authgate/internal/auth/models"
	"authgate/internal/auth/oauth"
	dErrors "authgate/pkg/domain-errors"
	"authgate/pkg/platform/httputil"
	"authgate/pkg/requestcontext"
)

const (
	// SessionCookie carries the opaque session token.
	SessionCookie = "auth_session"
	// StateCookie mirrors the OAuth CSRF state between redirect and callback.
	StateCookie = "oauth_state"

	oauthPathPrefix = "/auth/oauth"
)

// Service defines the auth operations the handler delegates to.
type Service interface {
	SignIn(ctx context.Context, req models.SignInRequest) (*models.AuthResult, error)
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResult, error)
	OAuthSignIn(ctx context.Context, provider string, jar oauth.Jar) (string, error)
	OAuthCallback(ctx context.Context, provider string, jar oauth.Jar, query url.Values) (*models.AuthResult, error)
	SignOut(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, token string) (*models.User, error)
}

// Handler wires auth endpoints to the auth service.
type Handler struct {
	service      Service
	logger       *slog.Logger
	cookieSecure bool
	sessionTTL   time.Duration
	stateTTL     time.Duration
}

// New constructs an auth handler with its dependencies.
func New(service Service, logger *slog.Logger, cookieSecure bool, sessionTTL, stateTTL time.Duration) *Handler {
	return &Handler{
		service:      service,
		logger:       logger,
		cookieSecure: cookieSecure,
		sessionTTL:   sessionTTL,
		stateTTL:     stateTTL,
	}
}

// Register mounts the auth endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/sign-up", h.HandleSignUp)
	r.Post("/auth/sign-in", h.HandleSignIn)
	r.Post("/auth/sign-out", h.HandleSignOut)
	r.Get("/auth/me", h.HandleMe)
	r.Get(oauthPathPrefix+"/{provider}", h.HandleOAuthStart)
	r.Get(oauthPathPrefix+"/{provider}/callback", h.HandleOAuthCallback)
}

// HandleSignUp handles POST /auth/sign-up requests.
func (h *Handler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	res, err := h.service.SignUp(ctx, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.setSessionCookie(w, res.Token)
	h.logger.InfoContext(ctx, "user signed up",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", res.User.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, fromUser(res.User))
}

// HandleSignIn handles POST /auth/sign-in requests.
func (h *Handler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	res, err := h.service.SignIn(ctx, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.setSessionCookie(w, res.Token)
	h.logger.InfoContext(ctx, "user signed in",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", res.User.ID,
	)
	httputil.WriteJSON(w, http.StatusOK, fromUser(res.User))
}

// HandleSignOut handles POST /auth/sign-out requests. It succeeds whether or
// not a session cookie is present.
func (h *Handler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := h.sessionToken(r)
	if err := h.service.SignOut(ctx, token); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe handles GET /auth/me requests.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	u, err := h.service.CurrentUser(ctx, h.sessionToken(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, fromUser(u))
}

// HandleOAuthStart handles GET /auth/oauth/{provider} requests by redirecting
// the user agent to the provider's authorization endpoint.
func (h *Handler) HandleOAuthStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")

	jar := h.stateJar(w, r)
	authURL, err := h.service.OAuthSignIn(ctx, provider, jar)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleOAuthCallback handles GET /auth/oauth/{provider}/callback requests.
// Success sets the session cookie and sends the user agent home; any flow
// failure surfaces as a single opaque error.
func (h *Handler) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")

	jar := h.stateJar(w, r)
	res, err := h.service.OAuthCallback(ctx, provider, jar, r.URL.Query())
	h.clearStateCookie(w)
	if err != nil {
		h.logger.WarnContext(ctx, "oauth callback rejected",
			"request_id", requestcontext.RequestID(ctx),
			"provider", provider,
		)
		httputil.WriteError(w, err)
		return
	}

	h.setSessionCookie(w, res.Token)
	h.logger.InfoContext(ctx, "user signed in via oauth",
		"request_id", requestcontext.RequestID(ctx),
		"provider", provider,
		"user_id", res.User.ID,
	)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handler) sessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookie,
		Value:    "",
		Path:     oauthPathPrefix,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// stateJar adapts the request/response pair into the cookie jar the OAuth
// flow reads and writes its CSRF state through.
func (h *Handler) stateJar(w http.ResponseWriter, r *http.Request) oauth.Jar {
	return &cookieJar{handler: h, w: w, r: r}
}

type cookieJar struct {
	handler *Handler
	w       http.ResponseWriter
	r       *http.Request
}

func (j *cookieJar) SetState(value string) {
	http.SetCookie(j.w, &http.Cookie{
		Name:     StateCookie,
		Value:    value,
		Path:     oauthPathPrefix,
		MaxAge:   int(j.handler.stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   j.handler.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (j *cookieJar) State() (string, bool) {
	c, err := j.r.Cookie(StateCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
