package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authgate/internal/auth/models"
	"authgate/internal/auth/store/session"
	"authgate/pkg/platform/sentinel"
)

// fakeJar is a map-backed stand-in for the transport cookie layer.
type fakeJar struct {
	state string
	set   bool
}

func (j *fakeJar) SetState(value string) { j.state, j.set = value, true }
func (j *fakeJar) State() (string, bool) { return j.state, j.set }

// fakeProvider is an httptest server playing the provider's token and
// userinfo endpoints.
type fakeProvider struct {
	server       *httptest.Server
	tokenStatus  int
	accessToken  string
	userStatus   int
	userPayload  any
	lastAuthHdr  string
	tokenCalls   int
	userinfoHits int
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{
		tokenStatus: http.StatusOK,
		accessToken: "provider-access-token",
		userStatus:  http.StatusOK,
		userPayload: map[string]string{"id": "g-123", "name": "Ada", "email": "ada@x.com"},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		fp.tokenCalls++
		if fp.tokenStatus != http.StatusOK {
			w.WriteHeader(fp.tokenStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": fp.accessToken,
			"token_type":   "Bearer",
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		fp.userinfoHits++
		fp.lastAuthHdr = r.Header.Get("Authorization")
		if fp.userStatus != http.StatusOK {
			w.WriteHeader(fp.userStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(fp.userPayload)
	})
	fp.server = httptest.NewServer(mux)
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakeProvider) provider() Provider {
	p := NewGoogleProvider("client-id", "client-secret")
	p.AuthURL = fp.server.URL + "/auth"
	p.TokenURL = fp.server.URL + "/token"
	p.UserInfoURL = fp.server.URL + "/userinfo"
	return p
}

func newTestClient(t *testing.T, fp *fakeProvider) (*Client, *session.InMemoryStore) {
	t.Helper()
	states := session.NewInMemory(time.Hour, 10*time.Minute)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	client := NewClient([]Provider{fp.provider()}, states, "https://app.example.com/auth/oauth", fp.server.Client(), logger)
	return client, states
}

// startFlow issues an auth URL and returns the jar plus the state it carries.
func startFlow(t *testing.T, client *Client) (*fakeJar, string) {
	t.Helper()
	jar := &fakeJar{}
	_, err := client.AuthURL(context.Background(), GoogleProviderName, jar)
	require.NoError(t, err)
	state, ok := jar.State()
	require.True(t, ok)
	return jar, state
}

func TestAuthURL(t *testing.T) {
	fp := newFakeProvider(t)
	client, states := newTestClient(t, fp)

	t.Run("unknown provider is rejected", func(t *testing.T) {
		_, err := client.AuthURL(context.Background(), "github", &fakeJar{})
		require.ErrorIs(t, err, ErrUnknownProvider)
	})

	t.Run("builds the authorize URL and persists state", func(t *testing.T) {
		jar := &fakeJar{}
		rawURL, err := client.AuthURL(context.Background(), GoogleProviderName, jar)
		require.NoError(t, err)

		parsed, err := url.Parse(rawURL)
		require.NoError(t, err)
		q := parsed.Query()

		assert.Equal(t, "client-id", q.Get("client_id"))
		assert.Equal(t, "code", q.Get("response_type"))
		assert.Equal(t, "https://app.example.com/auth/oauth/google/callback", q.Get("redirect_uri"))
		assert.Contains(t, q.Get("scope"), "openid")
		require.NotEmpty(t, q.Get("state"))

		// Cookie mirrors the query state, and the store holds it too.
		cookieState, ok := jar.State()
		require.True(t, ok)
		assert.Equal(t, q.Get("state"), cookieState)

		provider, err := states.ConsumeState(context.Background(), cookieState)
		require.NoError(t, err)
		assert.Equal(t, GoogleProviderName, provider)
	})

	t.Run("each attempt gets a fresh state", func(t *testing.T) {
		jarA, jarB := &fakeJar{}, &fakeJar{}
		_, err := client.AuthURL(context.Background(), GoogleProviderName, jarA)
		require.NoError(t, err)
		_, err = client.AuthURL(context.Background(), GoogleProviderName, jarB)
		require.NoError(t, err)
		assert.NotEqual(t, jarA.state, jarB.state)
	})
}

func TestCallback(t *testing.T) {
	t.Run("happy path returns normalized userinfo", func(t *testing.T) {
		fp := newFakeProvider(t)
		client, _ := newTestClient(t, fp)
		jar, state := startFlow(t, client)

		query := url.Values{"state": {state}, "code": {"auth-code"}}
		info, err := client.Callback(context.Background(), GoogleProviderName, jar, query)
		require.NoError(t, err)

		assert.Equal(t, models.UserInfo{ID: "g-123", Name: "Ada", Email: "ada@x.com"}, info)
		assert.Equal(t, "Bearer provider-access-token", fp.lastAuthHdr)
		assert.Equal(t, 1, fp.tokenCalls)
	})

	t.Run("missing state cookie fails closed and burns the stored state", func(t *testing.T) {
		fp := newFakeProvider(t)
		client, states := newTestClient(t, fp)
		_, state := startFlow(t, client)

		query := url.Values{"state": {state}, "code": {"auth-code"}}
		_, err := client.Callback(context.Background(), GoogleProviderName, &fakeJar{}, query)
		require.ErrorIs(t, err, ErrStateMismatch)
		assert.Zero(t, fp.tokenCalls)

		_, err = states.ConsumeState(context.Background(), state)
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("cookie and query disagreement is a CSRF failure", func(t *testing.T) {
		fp := newFakeProvider(t)
		client, _ := newTestClient(t, fp)
		jar, _ := startFlow(t, client)

		query := url.Values{"state": {"attacker-chosen"}, "code": {"auth-code"}}
		_, err := client.Callback(context.Background(), GoogleProviderName, jar, query)
		require.ErrorIs(t, err, ErrStateMismatch)
	})

	t.Run("replayed callback fails after the state was consumed", func(t *testing.T) {
		fp := newFakeProvider(t)
		client, _ := newTestClient(t, fp)
		jar, state := startFlow(t, client)

		query := url.Values{"state": {state}, "code": {"auth-code"}}
		_, err := client.Callback(context.Background(), GoogleProviderName, jar, query)
		require.NoError(t, err)

		_, err = client.Callback(context.Background(), GoogleProviderName, jar, query)
		require.ErrorIs(t, err, ErrStateNotFound)
	})

	t.Run("never-issued state fails even with a matching cookie", func(t *testing.T) {
		fp := newFakeProvider(t)
		client, _ := newTestClient(t, fp)

		jar := &fakeJar{}
		jar.SetState("forged-state")
		query := url.Values{"state": {"forged-state"}, "code": {"auth-code"}}
		_, err := client.Callback(context.Background(), GoogleProviderName, jar, query)
		require.ErrorIs(t, err, ErrStateNotFound)
	})

	t.Run("missing code is an exchange failure", func(t *testing.T) {
		fp := newFakeProvider(t)
		client, _ := newTestClient(t, fp)
		jar, state := startFlow(t, client)

		query := url.Values{"state": {state}}
		_, err := client.Callback(context.Background(), GoogleProviderName, jar, query)
		require.ErrorIs(t, err, ErrTokenExchange)
	})

	t.Run("token endpoint failure maps to ErrTokenExchange", func(t *testing.T) {
		fp := newFakeProvider(t)
		fp.tokenStatus = http.StatusBadRequest
		client, _ := newTestClient(t, fp)
		jar, state := startFlow(t, client)

		query := url.Values{"state": {state}, "code": {"auth-code"}}
		_, err := client.Callback(context.Background(), GoogleProviderName, jar, query)
		require.ErrorIs(t, err, ErrTokenExchange)
	})

	t.Run("userinfo transport failure maps to ErrUserInfoFetch", func(t *testing.T) {
		fp := newFakeProvider(t)
		fp.userStatus = http.StatusInternalServerError
		client, _ := newTestClient(t, fp)
		jar, state := startFlow(t, client)

		query := url.Values{"state": {state}, "code": {"auth-code"}}
		_, err := client.Callback(context.Background(), GoogleProviderName, jar, query)
		require.ErrorIs(t, err, ErrUserInfoFetch)
	})

	t.Run("userinfo payload off schema maps to ErrUserInfoInvalid", func(t *testing.T) {
		fp := newFakeProvider(t)
		fp.userPayload = map[string]string{"id": "g-123", "name": "Ada", "email": "not-an-email"}
		client, _ := newTestClient(t, fp)
		jar, state := startFlow(t, client)

		query := url.Values{"state": {state}, "code": {"auth-code"}}
		_, err := client.Callback(context.Background(), GoogleProviderName, jar, query)
		require.ErrorIs(t, err, ErrUserInfoInvalid)
	})

	t.Run("state issued for another provider is rejected", func(t *testing.T) {
		fp := newFakeProvider(t)
		client, states := newTestClient(t, fp)

		state, err := session.NewToken()
		require.NoError(t, err)
		require.NoError(t, states.SaveState(context.Background(), state, "github"))

		jar := &fakeJar{}
		jar.SetState(state)
		query := url.Values{"state": {state}, "code": {"auth-code"}}
		_, err = client.Callback(context.Background(), GoogleProviderName, jar, query)
		require.ErrorIs(t, err, ErrStateNotFound)
	})
}

func TestParseGoogleUserInfo(t *testing.T) {
	t.Run("drops unknown provider fields", func(t *testing.T) {
		body := []byte(`{"id":"g-1","name":"Ada","email":"ada@x.com","picture":"https://p.example/x.png","verified_email":true}`)
		info, err := parseGoogleUserInfo(body)
		require.NoError(t, err)
		assert.Equal(t, models.UserInfo{ID: "g-1", Name: "Ada", Email: "ada@x.com"}, info)
	})

	t.Run("rejects missing id", func(t *testing.T) {
		_, err := parseGoogleUserInfo([]byte(`{"name":"Ada","email":"ada@x.com"}`))
		require.Error(t, err)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, err := parseGoogleUserInfo([]byte(`{`))
		require.Error(t, err)
	})
}
