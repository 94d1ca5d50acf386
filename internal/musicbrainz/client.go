// Package musicbrainz looks up bands by area through the MusicBrainz web service.
package musicbrainz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/justestif/band-recommender/internal/breaker"
	"github.com/justestif/band-recommender/internal/metrics"
	"github.com/justestif/band-recommender/internal/models"
)

const (
	defaultBaseURL   = "https://musicbrainz.org/ws/2/"
	defaultUserAgent = "band-recommender/1.0 (https://github.com/justestif/band-recommender)"

	// DefaultSearchLimit is the number of artists requested per search.
	DefaultSearchLimit = 50

	// maxTagsPerArtist bounds the genres copied from an artist's tag list.
	maxTagsPerArtist = 5
)

// ErrUnexpectedStatus is returned for non-2xx responses.
var ErrUnexpectedStatus = errors.New("unexpected status from musicbrainz")

// Config holds MusicBrainz client settings.
type Config struct {
	BaseURL   string        `koanf:"base_url"`
	UserAgent string        `koanf:"user_agent"`
	Timeout   time.Duration `koanf:"timeout"`
	// RequestsPerSecond defaults to 1, the MusicBrainz guideline for anonymous clients.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	SearchLimit       int     `koanf:"search_limit"`
}

// Client is a rate-limited MusicBrainz search client.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	searchLimit int
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a Client from cfg, filling unset fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = DefaultSearchLimit
	}

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     cfg.BaseURL,
		userAgent:   cfg.UserAgent,
		searchLimit: cfg.SearchLimit,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		breaker:     breaker.New(breaker.DefaultConfig("musicbrainz")),
	}
}

// Artist is a MusicBrainz artist search hit.
type Artist struct {
	ID        string
	Name      string
	Country   string
	Area      string
	BeginArea string
	Tags      []string // most used first
	Score     int
}

// Band converts the artist to a recommendation candidate.
func (a Artist) Band() models.BandModel {
	location := a.BeginArea
	if location == "" {
		location = a.Area
	}
	if a.Area != "" && a.Area != location {
		location += ", " + a.Area
	}
	return models.BandModel{
		Name:     a.Name,
		Genres:   append([]string(nil), a.Tags...),
		Location: location,
	}
}

// BandsByLocation returns groups from the given area, optionally restricted
// to any of genres. An empty location returns no bands.
func (c *Client) BandsByLocation(ctx context.Context, location string, genres []string) ([]models.BandModel, error) {
	artists, err := c.SearchArtists(ctx, BuildQuery(location, genres))
	if err != nil {
		return nil, err
	}

	bands := make([]models.BandModel, 0, len(artists))
	for _, a := range artists {
		bands = append(bands, a.Band())
	}
	return bands, nil
}

// BuildQuery builds the Lucene query for groups in location tagged with any of genres.
func BuildQuery(location string, genres []string) string {
	location = strings.TrimSpace(location)
	if location == "" {
		return ""
	}

	q := fmt.Sprintf(`area:"%s" AND type:group`, escape(location))

	var tags []string
	for _, g := range genres {
		if g = strings.TrimSpace(g); g != "" {
			tags = append(tags, fmt.Sprintf(`tag:"%s"`, escape(g)))
		}
	}
	if len(tags) > 0 {
		q += " AND (" + strings.Join(tags, " OR ") + ")"
	}
	return q
}

// phraseEscaper escapes the characters that end or escape a quoted Lucene phrase.
var phraseEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escape(s string) string {
	return phraseEscaper.Replace(s)
}

// SearchArtists runs a raw artist search. An empty query returns nil.
func (c *Client) SearchArtists(ctx context.Context, query string) ([]Artist, error) {
	if query == "" {
		return nil, nil
	}

	params := url.Values{
		"query": {query},
		"limit": {strconv.Itoa(c.searchLimit)},
		"fmt":   {"json"},
	}

	body, err := c.execute(ctx, c.baseURL+"artist?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("searching artists: %w", err)
	}

	var resp artistSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing artist search response: %w", err)
	}

	artists := make([]Artist, 0, len(resp.Artists))
	for _, a := range resp.Artists {
		artists = append(artists, convertArtist(a))
	}
	return artists, nil
}

func convertArtist(a artistResult) Artist {
	tags := append([]tagResult(nil), a.Tags...)
	sort.SliceStable(tags, func(i, j int) bool { return tags[i].Count > tags[j].Count })

	names := make([]string, 0, min(len(tags), maxTagsPerArtist))
	for _, t := range tags {
		if len(names) == maxTagsPerArtist {
			break
		}
		names = append(names, t.Name)
	}

	return Artist{
		ID:        a.ID,
		Name:      a.Name,
		Country:   a.Country,
		Area:      a.Area.Name,
		BeginArea: a.BeginArea.Name,
		Tags:      names,
		Score:     a.Score,
	}
}

// execute waits for the rate limiter, then performs the request through the breaker.
func (c *Client) execute(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doRequest(ctx, reqURL)
	})

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "breaker_open"
	default:
		outcome = "error"
	}
	metrics.ProviderRequests.WithLabelValues("musicbrainz", outcome).Inc()

	return body, err
}

func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	// MusicBrainz rejects anonymous user agents.
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return body, nil
}
