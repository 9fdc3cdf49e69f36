package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openagenda-tools/uniqloc/pkg/constants"
	"github.com/openagenda-tools/uniqloc/pkg/errors"
)

// Authenticator applies authentication to HTTP requests.
type Authenticator interface {
	Apply(ctx context.Context, req *http.Request) error
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ context.Context, _ *http.Request) error {
	return nil
}

// HeaderAuth sets a fixed header.
type HeaderAuth struct {
	Header string
	Value  string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a *HeaderAuth) Apply(_ context.Context, req *http.Request) error {
	req.Header.Set(a.Header, a.Value)
	return nil
}

// TokenAuth exchanges a secret key for a short-lived access token and sends
// it with every request, alongside a fresh nonce. The token is cached until
// shortly before it expires.
type TokenAuth struct {
	// TokenURL is the token endpoint, e.g. https://api.openagenda.com/v2/requestAccessToken.
	TokenURL string
	Secret   string
	// HTTP is used for token requests. Defaults to a client with the default timeout.
	HTTP *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
	now     func() time.Time
}

// NewTokenAuth creates a TokenAuth.
func NewTokenAuth(tokenURL, secret string) *TokenAuth {
	return &TokenAuth{
		TokenURL: tokenURL,
		Secret:   secret,
		HTTP:     &http.Client{Timeout: constants.DefaultHTTPTimeout},
	}
}

// defaultTokenTTL applies when the token response has no usable expires_in.
const defaultTokenTTL = time.Hour

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

func (r tokenResponse) ttl() time.Duration {
	n, err := r.ExpiresIn.Int64()
	if err != nil || n <= 0 {
		return defaultTokenTTL
	}
	return time.Duration(n) * time.Second
}

// Apply implements the Authenticator interface for TokenAuth.
func (a *TokenAuth) Apply(ctx context.Context, req *http.Request) error {
	token, err := a.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("access-token", token)
	req.Header.Set("nonce", strconv.FormatUint(uint64(uuid.New().ID()), 10))
	return nil
}

// Token returns a valid access token, requesting a new one when needed.
func (a *TokenAuth) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock()
	if a.token != "" && now.Before(a.expires) {
		return a.token, nil
	}

	if a.Secret == "" {
		return "", &errors.AuthenticationError{
			Service: "openagenda",
			Method:  "secret_key",
			Message: "secret key is not configured",
		}
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", a.Secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.WrapResource("create", "request", "POST "+a.TokenURL, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	client := a.HTTP
	if client == nil {
		client = &http.Client{Timeout: constants.DefaultHTTPTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &errors.AuthenticationError{
			Service: "openagenda",
			Method:  "access_token",
			Message: "token request failed",
			Err:     err,
		}
	}

	var body tokenResponse
	if err := DecodeResponse(resp, "openagenda", &body); err != nil {
		return "", &errors.AuthenticationError{
			Service: "openagenda",
			Method:  "access_token",
			Message: "token request rejected",
			Err:     err,
		}
	}
	if body.AccessToken == "" {
		return "", &errors.AuthenticationError{
			Service: "openagenda",
			Method:  "access_token",
			Message: "empty access token in response",
		}
	}

	a.token = body.AccessToken
	a.expires = now.Add(body.ttl() - constants.TokenExpiryMargin)
	return a.token, nil
}

func (a *TokenAuth) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}
