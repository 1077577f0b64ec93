// Package geocode resolves free-text place names through a Nominatim
// compatible search endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/example/skate-spots/internal/models"
	"github.com/example/skate-spots/internal/observability"
)

var (
	ErrEmptyQuery = errors.New("empty search query")
	ErrNoResults  = errors.New("no results found")
)

type Suggestion struct {
	PrimaryText   string       `json:"mainText"`
	SecondaryText string       `json:"secondaryText,omitempty"`
	Coord         models.Coord `json:"coord"`
}

// Result is the best match plus every ranked candidate, best first.
type Result struct {
	Best        models.Coord `json:"best"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Searcher is what the profile store needs from a geocoder.
type Searcher interface {
	Search(ctx context.Context, query string) (Result, error)
}

type Config struct {
	BaseURL   string
	UserAgent string
	// Rate is the number of requests per second; Nominatim's public policy
	// allows one.
	Rate  float64
	Limit int
	// CountryCodes narrows results, e.g. "us".
	CountryCodes string
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 5
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), 1),
		logger:  logger,
	}
}

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

func (c *Client) Search(ctx context.Context, query string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, ErrEmptyQuery
	}
	start := time.Now()
	res, err := c.search(ctx, query)
	observability.GeocodeLatency.Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		observability.GeocodeRequestsTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrNoResults):
		observability.GeocodeRequestsTotal.WithLabelValues("empty").Inc()
	default:
		observability.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		c.logger.Warn("geocode failed", slog.String("query", query), slog.Any("err", err))
	}
	return res, err
}

func (c *Client) search(ctx context.Context, query string) (Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("failed to wait for rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(c.cfg.Limit))
	params.Set("addressdetails", "1")
	if c.cfg.CountryCodes != "" {
		params.Set("countrycodes", c.cfg.CountryCodes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	rs, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to do request: %w", err)
	}
	defer func() {
		_ = rs.Body.Close()
	}()

	if rs.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("unexpected status code: %d", rs.StatusCode)
	}

	var places []place
	if err = json.NewDecoder(rs.Body).Decode(&places); err != nil {
		return Result{}, fmt.Errorf("failed to decode response: %w", err)
	}

	var out Result
	for _, p := range places {
		lat, err1 := strconv.ParseFloat(p.Lat, 64)
		lng, err2 := strconv.ParseFloat(p.Lon, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		primary, secondary := splitDisplayName(p)
		out.Suggestions = append(out.Suggestions, Suggestion{
			PrimaryText:   primary,
			SecondaryText: secondary,
			Coord:         models.Coord{Lat: lat, Lng: lng},
		})
	}
	if len(out.Suggestions) == 0 {
		return Result{}, ErrNoResults
	}
	out.Best = out.Suggestions[0].Coord
	return out, nil
}

func splitDisplayName(p place) (string, string) {
	head, tail, _ := strings.Cut(p.DisplayName, ",")
	head, tail = strings.TrimSpace(head), strings.TrimSpace(tail)
	if p.Name != "" && p.Name != head {
		return p.Name, strings.TrimSpace(p.DisplayName)
	}
	return head, tail
}
