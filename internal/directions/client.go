// Package directions fetches driving routes from the Google Directions API.
package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"schoolbus-backend/internal/geo"
	"schoolbus-backend/internal/tracking"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://maps.googleapis.com"

var (
	// ErrNotConfigured is returned when no API key was provided
	ErrNotConfigured = errors.New("directions API key not configured")
	// ErrNoRoute means the service found no route between the two points
	ErrNoRoute = errors.New("no route found")
)

// Config tunes the directions client
type Config struct {
	APIKey             string        `yaml:"-"`
	BaseURL            string        `yaml:"base_url"`
	Timeout            time.Duration `yaml:"timeout"`
	RequestsPerSecond  float64       `yaml:"requests_per_second"`
	Burst              int           `yaml:"burst"`
	BreakerMaxFailures uint32        `yaml:"breaker_max_failures"`
	BreakerOpenTimeout time.Duration `yaml:"breaker_open_timeout"`
	CacheTTL           time.Duration `yaml:"cache_ttl"`
	CacheMaxEntries    int           `yaml:"cache_max_entries"`
}

// DefaultConfig returns the stock client settings (API key left empty)
func DefaultConfig() Config {
	return Config{
		BaseURL:            defaultBaseURL,
		Timeout:            10 * time.Second,
		RequestsPerSecond:  5,
		Burst:              10,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
		CacheTTL:           2 * time.Minute,
		CacheMaxEntries:    1000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = d.RequestsPerSecond
	}
	if c.Burst <= 0 {
		c.Burst = d.Burst
	}
	if c.BreakerMaxFailures == 0 {
		c.BreakerMaxFailures = d.BreakerMaxFailures
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = d.BreakerOpenTimeout
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = d.CacheMaxEntries
	}
	return c
}

// Client handles Google Directions API requests
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[tracking.Route]
	cache      *Cache
}

// directionsResponse is the part of the Directions API response we use
type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Legs []struct {
			Duration struct {
				Value int    `json:"value"`
				Text  string `json:"text"`
			} `json:"duration"`
		} `json:"legs"`
	} `json:"routes"`
}

// NewClient creates a directions client
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" {
		log.Printf("⚠️  GOOGLE_MAPS_API_KEY not set - directions disabled")
	}

	breaker := gobreaker.NewCircuitBreaker[tracking.Route](gobreaker.Settings{
		Name:        "directions",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("🔌 Circuit breaker %s: %s → %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// A valid "no route" answer means the service is healthy
			return err == nil || errors.Is(err, ErrNoRoute)
		},
	})

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker:    breaker,
		cache:      NewCache(cfg.CacheTTL, cfg.CacheMaxEntries),
	}
}

// Route returns the driving route from origin to destination
func (c *Client) Route(ctx context.Context, origin, destination geo.LatLng) (tracking.Route, error) {
	if c.apiKey == "" {
		return tracking.Route{}, ErrNotConfigured
	}

	key := CacheKey(origin, destination)
	if cached, ok := c.cache.Get(key); ok {
		log.Debugf("📦 Directions cache HIT: %s", key)
		return cached, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return tracking.Route{}, fmt.Errorf("directions rate limit: %w", err)
	}

	route, err := c.breaker.Execute(func() (tracking.Route, error) {
		return c.fetch(ctx, origin, destination)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return tracking.Route{}, fmt.Errorf("directions circuit open: %w", err)
		}
		return tracking.Route{}, err
	}

	c.cache.Set(key, route)
	return route, nil
}

// Stats returns cache statistics for monitoring
func (c *Client) Stats() map[string]interface{} {
	stats := c.cache.GetStats()
	stats["breaker_state"] = c.breaker.State().String()
	return stats
}

// fetch makes the actual API call
func (c *Client) fetch(ctx context.Context, origin, destination geo.LatLng) (tracking.Route, error) {
	params := url.Values{}
	params.Set("origin", fmt.Sprintf("%.6f,%.6f", origin.Latitude, origin.Longitude))
	params.Set("destination", fmt.Sprintf("%.6f,%.6f", destination.Latitude, destination.Longitude))
	params.Set("mode", "driving")
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/maps/api/directions/json?"+params.Encode(), nil)
	if err != nil {
		return tracking.Route{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tracking.Route{}, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return tracking.Route{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return tracking.Route{}, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp directionsResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return tracking.Route{}, fmt.Errorf("failed to parse response: %w", err)
	}

	switch apiResp.Status {
	case "OK":
	case "ZERO_RESULTS", "NOT_FOUND":
		return tracking.Route{}, ErrNoRoute
	default:
		return tracking.Route{}, fmt.Errorf("directions API status %s: %s", apiResp.Status, apiResp.ErrorMessage)
	}
	if len(apiResp.Routes) == 0 {
		return tracking.Route{}, ErrNoRoute
	}

	first := apiResp.Routes[0]
	points, err := geo.DecodePolyline(first.OverviewPolyline.Points)
	if err != nil {
		return tracking.Route{}, fmt.Errorf("decode overview polyline: %w", err)
	}

	route := tracking.Route{
		Points:          points,
		EncodedPolyline: first.OverviewPolyline.Points,
	}
	if len(first.Legs) > 0 {
		route.DurationSeconds = first.Legs[0].Duration.Value
		route.DurationText = first.Legs[0].Duration.Text
	}

	log.Printf("🗺️  Directions fetched: %d points, %s", len(points), route.DurationText)
	return route, nil
}
