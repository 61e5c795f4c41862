// Package models defines the record types and configuration shared across
// the ingest pipeline.
package models

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for a pipeline run. Values come from a
// YAML file with environment-variable overrides for secrets and paths.
type Config struct {
	Books    ScrapeConfig  `yaml:"books"`
	Quotes   ScrapeConfig  `yaml:"quotes"`
	Geocode  GeocodeConfig `yaml:"geocode"`
	Partners PartnerConfig `yaml:"partners"`

	DBPath   string `yaml:"db_path"`
	StoreDir string `yaml:"store_dir"`

	// GBPToEUR is the fixed conversion rate applied to book prices.
	GBPToEUR float64 `yaml:"gbp_to_eur"`

	// Salt seeds the pseudonymization digest. Never read from the YAML
	// file; set via DATAPULSE_HASH_SALT.
	Salt string `yaml:"-"`
}

// Duration wraps time.Duration so YAML values can use the human-readable
// forms accepted by time.ParseDuration ("1s", "20ms"). Bare integers are
// still read as nanoseconds.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// ScrapeConfig configures one paginated HTML extractor.
type ScrapeConfig struct {
	BaseURL    string   `yaml:"base_url"`
	Delay      Duration `yaml:"delay"`
	Timeout    Duration `yaml:"timeout"`
	MaxRetries int      `yaml:"max_retries"`
	MaxPages   int      `yaml:"max_pages"`
	UserAgent  string   `yaml:"user_agent"`
	ImageDelay Duration `yaml:"image_delay"`
}

// GeocodeConfig configures the address-geocoding client.
type GeocodeConfig struct {
	BaseURL    string   `yaml:"base_url"`
	Delay      Duration `yaml:"delay"`
	Timeout    Duration `yaml:"timeout"`
	MaxRetries int      `yaml:"max_retries"`
}

// PartnerConfig configures the spreadsheet import.
type PartnerConfig struct {
	FilePath string `yaml:"file_path"`
}

const defaultUserAgent = "datapulse-ingest/1.0 (data collection bot)"

// DefaultConfig returns the built-in configuration, matching the known
// target sites and the public rate ceiling of the geocoding API.
func DefaultConfig() *Config {
	return &Config{
		Books: ScrapeConfig{
			BaseURL:    "https://books.toscrape.com/",
			Delay:      Duration(time.Second),
			Timeout:    Duration(30 * time.Second),
			MaxRetries: 3,
			MaxPages:   20,
			UserAgent:  defaultUserAgent,
			ImageDelay: Duration(500 * time.Millisecond),
		},
		Quotes: ScrapeConfig{
			BaseURL:    "https://quotes.toscrape.com/",
			Delay:      Duration(time.Second),
			Timeout:    Duration(30 * time.Second),
			MaxRetries: 3,
			MaxPages:   20,
			UserAgent:  defaultUserAgent,
		},
		Geocode: GeocodeConfig{
			BaseURL:    "https://api-adresse.data.gouv.fr",
			Delay:      Duration(20 * time.Millisecond), // API ceiling is 50 req/s
			Timeout:    Duration(10 * time.Second),
			MaxRetries: 3,
		},
		Partners: PartnerConfig{
			FilePath: "data/partenaire_librairies.xlsx",
		},
		DBPath:   "datapulse.db",
		StoreDir: "datapulse-store",
		GBPToEUR: 1.17,
		Salt:     "datapulse_2026",
	}
}

// LoadConfig reads the YAML config at path, layering it over DefaultConfig.
// A missing file is not an error: defaults plus env overrides apply.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATAPULSE_HASH_SALT"); v != "" {
		cfg.Salt = v
	}
	if v := os.Getenv("DATAPULSE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("DATAPULSE_STORE_DIR"); v != "" {
		cfg.StoreDir = v
	}
	if v := os.Getenv("DATAPULSE_GEOCODE_URL"); v != "" {
		cfg.Geocode.BaseURL = v
	}
}
