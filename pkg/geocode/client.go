// Package geocode provides a client for the national address-search API
// with memoization of both positive and negative results. Coordinates in
// the GeoJSON payload are ordered [lon, lat] and are inverted here.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/datapulse/ingest/models"
	"github.com/datapulse/ingest/pkg/fetcher"
	"github.com/go-resty/resty/v2"
)

// ErrNotFound marks an address the API confirmed it cannot resolve. It is a
// terminal state, cached like any positive result.
var ErrNotFound = errors.New("address not found")

// Stats counts client activity for the run report.
type Stats struct {
	Requests  int
	CacheHits int
	Found     int
	NotFound  int
	Errors    int
}

// Client queries the address-search endpoint. All calls serialize behind
// the client's rate limiter so that concurrent callers still respect the
// service's request-rate ceiling.
type Client struct {
	http    *resty.Client
	limiter *fetcher.Limiter
	cache   *Cache
	log     *slog.Logger
	stats   Stats
}

// NewClient builds a geocoding client for the given API base URL.
func NewClient(cfg models.GeocodeConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	hc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout.Std()).
		SetHeader("User-Agent", "datapulse-ingest/1.0").
		SetHeader("Accept", "application/json").
		SetRetryCount(maxRetries(cfg) - 1).
		SetRetryWaitTime(cfg.Delay.Std()).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})

	return &Client{
		http:    hc,
		limiter: fetcher.NewLimiter(cfg.Delay.Std()),
		cache:   NewCache(),
		log:     logger,
	}
}

func maxRetries(cfg models.GeocodeConfig) int {
	if cfg.MaxRetries <= 0 {
		return 3
	}
	return cfg.MaxRetries
}

// featureCollection mirrors the GeoJSON response shape.
type featureCollection struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Label    string  `json:"label"`
			Score    float64 `json:"score"`
			City     string  `json:"city"`
			Postcode string  `json:"postcode"`
		} `json:"properties"`
	} `json:"features"`
}

// Geocode resolves an address to coordinates. City and postcode are
// optional and sharpen the query. A cache hit, positive or negative, makes
// no network call.
func (c *Client) Geocode(ctx context.Context, address, city, postcode string) (*models.GeocodeResult, error) {
	key := Key(address, city, postcode)
	if res, ok := c.cache.Get(key); ok {
		c.stats.CacheHits++
		if res == nil {
			return nil, ErrNotFound
		}
		return res, nil
	}

	if err := c.limiter.Throttle(ctx); err != nil {
		return nil, err
	}

	query := address
	if city != "" {
		query += " " + city
	}
	if postcode != "" {
		query += " " + postcode
	}

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetQueryParam("limit", "1").
		SetResult(&featureCollection{})
	if postcode != "" {
		req.SetQueryParam("postcode", postcode)
	}

	resp, err := req.Get("/search")
	c.stats.Requests++
	if err != nil {
		c.stats.Errors++
		return nil, fmt.Errorf("geocode request failed: %w", err)
	}
	if resp.IsError() {
		c.stats.Errors++
		return nil, fmt.Errorf("geocode request failed: status %d", resp.StatusCode())
	}

	fc := resp.Result().(*featureCollection)
	res, ok := firstFeature(fc)
	if !ok {
		c.log.Warn("address not found", "query", query)
		c.stats.NotFound++
		c.cache.Put(key, nil)
		return nil, ErrNotFound
	}

	c.stats.Found++
	c.cache.Put(key, res)
	return res, nil
}

func firstFeature(fc *featureCollection) (*models.GeocodeResult, bool) {
	if len(fc.Features) == 0 {
		return nil, false
	}
	f := fc.Features[0]
	if len(f.Geometry.Coordinates) < 2 {
		return nil, false
	}
	return &models.GeocodeResult{
		// GeoJSON orders coordinates [lon, lat].
		Longitude: f.Geometry.Coordinates[0],
		Latitude:  f.Geometry.Coordinates[1],
		Label:     f.Properties.Label,
		Score:     f.Properties.Score,
		City:      f.Properties.City,
		Postcode:  f.Properties.Postcode,
		QueriedAt: time.Now().UTC(),
	}, true
}

// Address is one batch input row.
type Address struct {
	Address  string
	City     string
	Postcode string
}

// BatchResult pairs a batch input with its outcome. NotFound marks the
// explicit miss so downstream indices stay aligned with the input list.
type BatchResult struct {
	Address  Address
	Result   *models.GeocodeResult
	NotFound bool
	Err      error
}

// GeocodeBatch resolves addresses in order, returning one result per input.
func (c *Client) GeocodeBatch(ctx context.Context, addrs []Address) []BatchResult {
	results := make([]BatchResult, len(addrs))
	for i, a := range addrs {
		res, err := c.Geocode(ctx, a.Address, a.City, a.Postcode)
		results[i] = BatchResult{Address: a, Result: res}
		switch {
		case errors.Is(err, ErrNotFound):
			results[i].NotFound = true
		case err != nil:
			results[i].Err = err
		}
	}
	return results
}

// Reverse resolves coordinates back to the nearest address.
func (c *Client) Reverse(ctx context.Context, lon, lat float64) (*models.GeocodeResult, error) {
	if err := c.limiter.Throttle(ctx); err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("lon", strconv.FormatFloat(lon, 'f', -1, 64)).
		SetQueryParam("lat", strconv.FormatFloat(lat, 'f', -1, 64)).
		SetResult(&featureCollection{}).
		Get("/reverse")
	c.stats.Requests++
	if err != nil {
		c.stats.Errors++
		return nil, fmt.Errorf("reverse geocode failed: %w", err)
	}
	if resp.IsError() {
		c.stats.Errors++
		return nil, fmt.Errorf("reverse geocode failed: status %d", resp.StatusCode())
	}

	res, ok := firstFeature(resp.Result().(*featureCollection))
	if !ok {
		c.stats.NotFound++
		return nil, ErrNotFound
	}
	c.stats.Found++
	return res, nil
}

// Stats returns a copy of the client counters.
func (c *Client) Stats() Stats {
	return c.stats
}
