package lastfm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/justestif/band-recommender/internal/breaker"
	"github.com/justestif/band-recommender/internal/metrics"
)

const (
	baseURL   = "http://ws.audioscrobbler.com/2.0/"
	userAgent = "band-recommender/1.0"
)

// Last.fm API error codes.
const (
	errCodeInvalidParams = 6
	errCodeInvalidAPIKey = 10
	errCodeRateLimited   = 29
)

// Sentinel errors.
var (
	// ErrRateLimited is returned when the API rate limit is exceeded after retries.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidAPIKey is returned when the API key is invalid.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrArtistNotFound is returned when Last.fm does not know the artist.
	ErrArtistNotFound = errors.New("artist not found")
)

// Client is a Last.fm API client with retry and circuit breaking.
type Client struct {
	apiKey      string
	httpClient  *http.Client
	baseURL     string
	retryDelays []time.Duration
	breaker     *gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a new Last.fm API client from the provided configuration.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:     baseURL,
		retryDelays: defaultRetryDelays(),
		breaker:     newBreaker(),
	}
}

func defaultRetryDelays() []time.Duration {
	return []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
}

// newBreaker opens after repeated transport or server failures. Unknown
// artists are normal answers and never count against it.
func newBreaker() *gobreaker.CircuitBreaker[[]byte] {
	cfg := breaker.DefaultConfig("lastfm")
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrArtistNotFound)
	}
	return breaker.New(cfg)
}

// ArtistInfo fetches listener statistics, top tags, similar artists and
// images for an artist. Returns ErrArtistNotFound for unknown names.
func (c *Client) ArtistInfo(ctx context.Context, artist string) (ArtistInfo, error) {
	params := url.Values{
		"method":      {"artist.getInfo"},
		"artist":      {artist},
		"autocorrect": {"1"},
		"format":      {"json"},
		"api_key":     {c.apiKey},
	}

	body, err := c.execute(ctx, params)
	if err != nil {
		return ArtistInfo{}, fmt.Errorf("fetching artist info for %q: %w", artist, err)
	}

	var resp artistInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ArtistInfo{}, fmt.Errorf("parsing artist info response: %w", err)
	}

	a := resp.Artist
	info := ArtistInfo{
		Name:      a.Name,
		MBID:      a.MBID,
		URL:       a.URL,
		Listeners: int64(a.Stats.Listeners),
		PlayCount: int64(a.Stats.PlayCount),
		ImageURL:  largestImage(a.Image),
	}

	// Empty lists arrive as "" and fail to decode; they stay empty.
	var tags tagList
	if err := json.Unmarshal(a.Tags, &tags); err == nil {
		for _, t := range tags.Tag {
			info.Tags = append(info.Tags, t.Name)
		}
	}
	var similar similarList
	if err := json.Unmarshal(a.Similar, &similar); err == nil {
		for _, s := range similar.Artist {
			info.Similar = append(info.Similar, s.Name)
		}
	}

	return info, nil
}

// SimilarArtists returns up to limit artists similar to artist, most similar first.
func (c *Client) SimilarArtists(ctx context.Context, artist string, limit int) ([]SimilarArtist, error) {
	params := url.Values{
		"method":      {"artist.getSimilar"},
		"artist":      {artist},
		"autocorrect": {"1"},
		"limit":       {strconv.Itoa(limit)},
		"format":      {"json"},
		"api_key":     {c.apiKey},
	}

	body, err := c.execute(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetching similar artists for %q: %w", artist, err)
	}

	var resp similarArtistsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing similar artists response: %w", err)
	}

	similar := make([]SimilarArtist, 0, len(resp.SimilarArtists.Artist))
	for _, a := range resp.SimilarArtists.Artist {
		similar = append(similar, SimilarArtist{
			Name:  a.Name,
			Match: float64(a.Match),
			URL:   a.URL,
			MBID:  a.MBID,
		})
	}
	return similar, nil
}

// execute runs doRequest through the circuit breaker and records the outcome.
func (c *Client) execute(ctx context.Context, params url.Values) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doRequest(ctx, params)
	})

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "breaker_open"
	case errors.Is(err, ErrArtistNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	metrics.ProviderRequests.WithLabelValues("lastfm", outcome).Inc()

	return body, err
}

// doRequest performs an HTTP GET request with retry on rate limit.
// Retries once per entry in retryDelays (1s, 2s, 4s by default).
func (c *Client) doRequest(ctx context.Context, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + "?" + params.Encode()

	var lastErr error

	for attempt := 0; attempt <= len(c.retryDelays); attempt++ {
		// Wait before retry (skip on first attempt)
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelays[attempt-1]):
			}
		}

		body, err := c.doSingleRequest(ctx, reqURL)
		if err == nil {
			return body, nil
		}

		if errors.Is(err, ErrRateLimited) {
			lastErr = err
			continue
		}

		// Non-retryable error
		return nil, err
	}

	return nil, lastErr
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	// Check for API error in response
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		switch apiErr.Error {
		case errCodeRateLimited:
			return nil, ErrRateLimited
		case errCodeInvalidAPIKey:
			return nil, ErrInvalidAPIKey
		case errCodeInvalidParams:
			return nil, fmt.Errorf("%w: %s", ErrArtistNotFound, apiErr.Message)
		default:
			return nil, fmt.Errorf("API error %d: %s", apiErr.Error, apiErr.Message)
		}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return body, nil
}

// largestImage picks the biggest non-empty image; Last.fm lists sizes ascending.
func largestImage(images []image) string {
	var best string
	for _, img := range images {
		if img.URL != "" {
			best = img.URL
		}
	}
	return best
}
