// Package spotify provides a wrapper around the Spotify Web API.
package spotify

import (
	"context"
	"net/http"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/justestif/band-recommender/internal/metrics"
)

// MaxArtistsPerRequest is the largest ID batch accepted by GET /artists.
const MaxArtistsPerRequest = 50

// Client wraps the Spotify API client with convenience methods.
type Client struct {
	api *spotify.Client
}

// New creates a new Spotify client wrapper.
// The underlying client should already be authenticated.
func New(api *spotify.Client) *Client {
	return &Client{api: api}
}

// Catalog builds a Client per caller from their bearer token.
// Tokens are never stored.
type Catalog struct {
	baseURL   string
	transport http.RoundTripper
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithBaseURL points the catalog at a different API root (tests).
func WithBaseURL(url string) CatalogOption {
	return func(c *Catalog) {
		c.baseURL = url
	}
}

// WithTransport sets the base transport for outgoing requests.
func WithTransport(rt http.RoundTripper) CatalogOption {
	return func(c *Catalog) {
		c.transport = rt
	}
}

// NewCatalog creates a Catalog.
func NewCatalog(opts ...CatalogOption) *Catalog {
	c := &Catalog{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// clientFor returns a Client authorised with token.
func (c *Catalog) clientFor(ctx context.Context, token string) *Client {
	if c.transport != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: c.transport})
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))

	opts := []spotify.ClientOption{spotify.WithRetry(true)}
	if c.baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(c.baseURL))
	}
	return New(spotify.New(httpClient, opts...))
}

func observe(err error) error {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ProviderRequests.WithLabelValues("spotify", outcome).Inc()
	return err
}
