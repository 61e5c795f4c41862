package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/datapulse/ingest/models"
)

func TestCacheKey(t *testing.T) {
	tests := []struct {
		name     string
		address  string
		city     string
		postcode string
		want     string
	}{
		{"full", "12 Rue des Livres", "Paris", "75011", "12 rue des livres|paris|75011"},
		{"case and padding", "  12 RUE des Livres ", " PARIS ", " 75011 ", "12 rue des livres|paris|75011"},
		{"address only", "12 rue des livres", "", "", "12 rue des livres"},
		{"no city", "12 rue des livres", "", "75011", "12 rue des livres|75011"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.address, tt.city, tt.postcode); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheNegativeEntry(t *testing.T) {
	c := NewCache()
	key := Key("nowhere", "", "")

	if _, ok := c.Get(key); ok {
		t.Fatal("empty cache must miss")
	}

	c.Put(key, nil)
	res, ok := c.Get(key)
	if !ok {
		t.Fatal("negative entry must hit")
	}
	if res != nil {
		t.Errorf("negative entry must be nil, got %+v", res)
	}
}

func featurePayload(lon, lat float64, label string) string {
	return fmt.Sprintf(`{
		"type": "FeatureCollection",
		"features": [{
			"geometry": {"type": "Point", "coordinates": [%g, %g]},
			"properties": {"label": %q, "score": 0.97, "city": "Paris", "postcode": "75011"}
		}]
	}`, lon, lat, label)
}

func testClient(baseURL string) *Client {
	return NewClient(models.GeocodeConfig{
		BaseURL:    baseURL,
		Delay:      models.Duration(time.Millisecond),
		Timeout:    models.Duration(time.Second),
		MaxRetries: 1,
	}, nil)
}

func TestGeocodeInvertsCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "12 rue des livres Paris 75011" {
			t.Errorf("query q = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, featurePayload(2.3731, 48.8618, "12 Rue des Livres 75011 Paris"))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).Geocode(context.Background(), "12 rue des livres", "Paris", "75011")
	if err != nil {
		t.Fatalf("Geocode() error = %v", err)
	}
	if res.Latitude != 48.8618 || res.Longitude != 2.3731 {
		t.Errorf("coordinates = (%v, %v), want (48.8618, 2.3731)", res.Latitude, res.Longitude)
	}
	if res.City != "Paris" || res.Postcode != "75011" {
		t.Errorf("properties not mapped: %+v", res)
	}
}

func TestGeocodeCachesPositive(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, featurePayload(2.37, 48.86, "somewhere"))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.Geocode(ctx, "12 rue des livres", "Paris", "75011"); err != nil {
			t.Fatalf("Geocode() error = %v", err)
		}
	}

	if n := calls.Load(); n != 1 {
		t.Errorf("server saw %d requests, want 1 (cache must absorb repeats)", n)
	}
	stats := c.Stats()
	if stats.Requests != 1 || stats.CacheHits != 2 || stats.Found != 1 {
		t.Errorf("stats = %+v, want Requests=1 CacheHits=2 Found=1", stats)
	}
}

func TestGeocodeCachesNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"type": "FeatureCollection", "features": []}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := c.Geocode(ctx, "nowhere", "", ""); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Geocode() error = %v, want ErrNotFound", err)
		}
	}

	if n := calls.Load(); n != 1 {
		t.Errorf("server saw %d requests, want 1 (negative result must be cached)", n)
	}
	if stats := c.Stats(); stats.NotFound != 1 || stats.CacheHits != 1 {
		t.Errorf("stats = %+v, want NotFound=1 CacheHits=1", stats)
	}
}

func TestGeocodeTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Geocode(context.Background(), "12 rue des livres", "", "")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("transport error must not be ErrNotFound, got %v", err)
	}
}

func TestGeocodeBatchPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("q") == "unknown" {
			fmt.Fprint(w, `{"type": "FeatureCollection", "features": []}`)
			return
		}
		fmt.Fprint(w, featurePayload(2.37, 48.86, r.URL.Query().Get("q")))
	}))
	defer srv.Close()

	addrs := []Address{
		{Address: "12 rue des livres"},
		{Address: "unknown"},
		{Address: "3 avenue des pages"},
	}
	results := testClient(srv.URL).GeocodeBatch(context.Background(), addrs)

	if len(results) != len(addrs) {
		t.Fatalf("got %d results for %d inputs", len(results), len(addrs))
	}
	for i, res := range results {
		if res.Address != addrs[i] {
			t.Errorf("result %d paired with %+v, want %+v", i, res.Address, addrs[i])
		}
	}
	if results[0].Result == nil || results[0].NotFound {
		t.Error("first address should resolve")
	}
	if !results[1].NotFound || results[1].Err != nil {
		t.Errorf("second address should be an explicit miss, got %+v", results[1])
	}
	if results[2].Result == nil {
		t.Error("third address should resolve")
	}
}

func TestReverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("path = %q, want /reverse", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, featurePayload(2.37, 48.86, "12 Rue des Livres"))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).Reverse(context.Background(), 2.37, 48.86)
	if err != nil {
		t.Fatalf("Reverse() error = %v", err)
	}
	if res.Label != "12 Rue des Livres" {
		t.Errorf("Label = %q", res.Label)
	}
}

func TestFeatureCollectionDecoding(t *testing.T) {
	var fc featureCollection
	if err := json.Unmarshal([]byte(featurePayload(1.5, 43.6, "toulouse")), &fc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(fc.Features) != 1 || fc.Features[0].Geometry.Coordinates[0] != 1.5 {
		t.Errorf("decoded %+v", fc)
	}
}
