// Package oauth drives the authorization-code flow against configured
// providers. State handling is the CSRF defense: every authorization attempt
// stores a fresh single-use token server-side and mirrors it in a cookie,
// and a callback is honored only when the query parameter, the cookie, and
// the stored token all agree.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"authgate/internal/auth/models"
	"authgate/internal/auth/store/session"
)

// Flow failures. The orchestrator collapses all of these into one opaque
// outcome for the end user; the distinctions exist for logs and tests.
var (
	ErrUnknownProvider = errors.New("unknown oauth provider")
	ErrStateMismatch   = errors.New("oauth state mismatch")
	ErrStateNotFound   = errors.New("oauth state invalid or expired")
	ErrTokenExchange   = errors.New("oauth token exchange failed")
	ErrUserInfoFetch   = errors.New("oauth userinfo fetch failed")
	ErrUserInfoInvalid = errors.New("oauth userinfo payload invalid")
)

// Jar is the slice of the cookie surface the flow needs: a short-lived state
// cookie written when the authorization URL is issued and read back on the
// callback. The transport layer owns attributes (HttpOnly, Path, MaxAge).
type Jar interface {
	SetState(value string)
	State() (string, bool)
}

// StateStore is the subset of the session store used for CSRF state.
type StateStore interface {
	SaveState(ctx context.Context, state, provider string) error
	ConsumeState(ctx context.Context, state string) (string, error)
}

// Provider holds everything provider-specific: endpoints, credentials,
// scopes, and how to turn the raw userinfo payload into a normalized
// identity. Adding a provider means adding one of these, nothing else.
type Provider struct {
	Name         string
	ClientID     string
	ClientSecret string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string

	// ParseUserInfo validates the provider payload shape and normalizes it.
	// Raw provider fields must not escape this function.
	ParseUserInfo func(body []byte) (models.UserInfo, error)
}

// Client executes the authorization-code dance for a fixed set of providers.
// The provider map is built once at startup and passed in; there is no
// global registry.
type Client struct {
	providers       map[string]Provider
	states          StateStore
	redirectURLBase string
	httpClient      *http.Client
	logger          *slog.Logger
}

// NewClient wires the flow against a provider set and a state store.
// redirectURLBase must match what is registered with each provider; the
// callback for a provider lives at {base}/{provider}/callback.
func NewClient(providers []Provider, states StateStore, redirectURLBase string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name] = p
	}
	return &Client{
		providers:       byName,
		states:          states,
		redirectURLBase: redirectURLBase,
		httpClient:      httpClient,
		logger:          logger,
	}
}

// Providers lists the configured provider names.
func (c *Client) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	return names
}

func (c *Client) config(p Provider) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		Scopes:       p.Scopes,
		RedirectURL:  c.redirectURL(p.Name),
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.AuthURL,
			TokenURL:  p.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (c *Client) redirectURL(provider string) string {
	return fmt.Sprintf("%s/%s/callback", c.redirectURLBase, provider)
}

// AuthURL starts an authorization attempt: it generates a fresh state token,
// persists it with a short TTL, mirrors it into the state cookie, and
// returns the provider's authorization URL carrying client_id, redirect_uri,
// scope, response_type=code and state.
func (c *Client) AuthURL(ctx context.Context, provider string, jar Jar) (string, error) {
	p, ok := c.providers[provider]
	if !ok {
		return "", fmt.Errorf("%q: %w", provider, ErrUnknownProvider)
	}

	state, err := session.NewToken()
	if err != nil {
		return "", err
	}
	if err := c.states.SaveState(ctx, state, provider); err != nil {
		return "", fmt.Errorf("save oauth state: %w", err)
	}
	jar.SetState(state)

	return c.config(p).AuthCodeURL(state), nil
}

// Callback completes the flow: CSRF check, single-use state consumption,
// code exchange, userinfo fetch, and normalization. The stored state is
// consumed before anything else can fail, so a replayed callback always
// loses regardless of this call's outcome.
func (c *Client) Callback(ctx context.Context, provider string, jar Jar, query url.Values) (models.UserInfo, error) {
	p, ok := c.providers[provider]
	if !ok {
		return models.UserInfo{}, fmt.Errorf("%q: %w", provider, ErrUnknownProvider)
	}

	queryState := query.Get("state")
	cookieState, hasCookie := jar.State()
	if queryState == "" || !hasCookie || cookieState != queryState {
		// Burn whatever was stored so a forged callback cannot leave a
		// consumable state behind.
		for _, st := range []string{queryState, cookieState} {
			if st != "" {
				_, _ = c.states.ConsumeState(ctx, st)
			}
		}
		return models.UserInfo{}, ErrStateMismatch
	}

	issuedFor, err := c.states.ConsumeState(ctx, queryState)
	if err != nil {
		return models.UserInfo{}, fmt.Errorf("%v: %w", err, ErrStateNotFound)
	}
	if issuedFor != provider {
		return models.UserInfo{}, fmt.Errorf("state issued for %q: %w", issuedFor, ErrStateNotFound)
	}

	code := query.Get("code")
	if code == "" {
		return models.UserInfo{}, fmt.Errorf("missing code: %w", ErrTokenExchange)
	}

	// Server-to-server exchange; the client secret never touches the browser.
	exchCtx := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.config(p).Exchange(exchCtx, code)
	if err != nil {
		c.logger.WarnContext(ctx, "oauth code exchange failed", "provider", provider, "error", err)
		return models.UserInfo{}, fmt.Errorf("%v: %w", err, ErrTokenExchange)
	}
	if token.AccessToken == "" {
		return models.UserInfo{}, fmt.Errorf("empty access token: %w", ErrTokenExchange)
	}

	info, err := c.fetchUserInfo(ctx, p, token.AccessToken)
	if err != nil {
		c.logger.WarnContext(ctx, "oauth userinfo fetch failed", "provider", provider, "error", err)
		return models.UserInfo{}, err
	}
	return info, nil
}

func (c *Client) fetchUserInfo(ctx context.Context, p Provider, accessToken string) (models.UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, nil)
	if err != nil {
		return models.UserInfo{}, fmt.Errorf("%v: %w", err, ErrUserInfoFetch)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.UserInfo{}, fmt.Errorf("%v: %w", err, ErrUserInfoFetch)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.UserInfo{}, fmt.Errorf("userinfo status %d: %w", resp.StatusCode, ErrUserInfoFetch)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.UserInfo{}, fmt.Errorf("%v: %w", err, ErrUserInfoFetch)
	}

	info, err := p.ParseUserInfo(body)
	if err != nil {
		return models.UserInfo{}, fmt.Errorf("%v: %w", err, ErrUserInfoInvalid)
	}
	return info, nil
}

// decodeJSON is shared by provider parsers.
func decodeJSON(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode userinfo: %w", err)
	}
	return nil
}
