// Package openagenda talks to the OpenAgenda platform: it lists the public
// events of an agenda and writes canonical location ids back onto events.
package openagenda

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/openagenda-tools/uniqloc/internal/transport"
	"github.com/openagenda-tools/uniqloc/pkg/constants"
	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/patcher"
	"github.com/openagenda-tools/uniqloc/pkg/reconciler"
)

const service = "openagenda"

// Config holds the endpoints and credentials.
type Config struct {
	PublicURL string `mapstructure:"public_url" yaml:"public_url" json:"public_url"`
	APIURL    string `mapstructure:"api_url" yaml:"api_url" json:"api_url"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key" json:"-"`
	PageSize  int    `mapstructure:"page_size" yaml:"page_size" json:"page_size"`
}

// DefaultConfig returns the production endpoints.
func DefaultConfig() Config {
	return Config{
		PublicURL: constants.DefaultPublicURL,
		APIURL:    constants.DefaultAPIURL,
		PageSize:  constants.DefaultPageSize,
	}
}

// Client implements reconciler.EventSource and patcher.Patcher.
type Client struct {
	publicURL string
	apiURL    string
	idField   string
	public    *transport.Client
	api       *transport.Client
}

var (
	_ reconciler.EventSource = (*Client)(nil)
	_ patcher.Patcher        = (*Client)(nil)
)

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	userAgent  string
	idField    string
}

// WithHTTPClient sets the HTTP client used for every call.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *clientOptions) { o.userAgent = ua }
}

// WithIDField sets the custom event field holding the canonical id.
func WithIDField(field string) Option {
	return func(o *clientOptions) {
		if field != "" {
			o.idField = field
		}
	}
}

// New creates a Client. Listing needs no credentials; patching uses an access
// token obtained with cfg.SecretKey.
func New(cfg Config, opts ...Option) (*Client, error) {
	o := &clientOptions{idField: constants.DefaultIDField}
	for _, opt := range opts {
		opt(o)
	}

	publicURL, err := baseURL("openagenda.public_url", cfg.PublicURL, constants.DefaultPublicURL)
	if err != nil {
		return nil, err
	}
	apiURL, err := baseURL("openagenda.api_url", cfg.APIURL, constants.DefaultAPIURL)
	if err != nil {
		return nil, err
	}

	tokenAuth := transport.NewTokenAuth(apiURL+"/v2/requestAccessToken", cfg.SecretKey)
	transportOpts := []transport.Option{transport.WithUserAgent(o.userAgent)}
	if o.httpClient != nil {
		tokenAuth.HTTP = o.httpClient
		transportOpts = append(transportOpts, transport.WithHTTPClient(o.httpClient))
	}

	return &Client{
		publicURL: publicURL,
		apiURL:    apiURL,
		idField:   o.idField,
		public:    transport.New(&transport.NoAuth{}, transportOpts...),
		api:       transport.New(tokenAuth, transportOpts...),
	}, nil
}

// IDField returns the custom field name holding canonical ids.
func (c *Client) IDField() string {
	return c.idField
}

// ListEvents implements reconciler.EventSource.
func (c *Client) ListEvents(ctx context.Context, collectionID string, offset, limit int) ([]reconciler.Event, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	endpoint := c.publicURL + "/agendas/" + url.PathEscape(collectionID) + "/events.json?" + q.Encode()

	resp, err := c.public.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var page eventsPage
	if err := transport.DecodeResponse(resp, service, &page); err != nil {
		return nil, err
	}

	events := make([]reconciler.Event, 0, len(page.Events))
	for _, e := range page.Events {
		events = append(events, e.toEvent(collectionID, c.idField))
	}
	return events, nil
}

// Patch implements patcher.Patcher. Only a 200 answer counts as success.
func (c *Client) Patch(ctx context.Context, collectionID, eventID, canonicalID string) error {
	endpoint := c.apiURL + "/v2/agendas/" + url.PathEscape(collectionID) + "/events/" + url.PathEscape(eventID)

	resp, err := c.api.SendJSON(ctx, http.MethodPatch, endpoint, map[string]string{c.idField: canonicalID})
	if err != nil {
		return err
	}
	return transport.CheckResponse(resp, service)
}

func baseURL(field, value, fallback string) (string, error) {
	if value == "" {
		value = fallback
	}
	u, err := url.Parse(value)
	if err != nil {
		return "", errors.WrapValidation(field, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errors.NewValidationError(field, value, "must be an absolute http(s) URL")
	}
	return strings.TrimRight(value, "/"), nil
}
