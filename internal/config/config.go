package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig carries all runtime configuration.
type AppConfig struct {
	Port   string
	DBPath string

	// Overridable upstream endpoints (tests point these at local servers).
	GeocodingURL string
	ForecastURL  string

	// Outbound call timeouts. Short and fixed; a timeout degrades to
	// not-found rather than blocking the request.
	GeocodingTimeout time.Duration
	ForecastTimeout  time.Duration

	// Autocomplete behaviour.
	AutocompleteTTL    time.Duration
	AutocompleteLimit  int
	CacheSweepInterval time.Duration

	// Session and token settings.
	SessionTTL time.Duration
	JWTSecret  string
	JWTTTL     time.Duration
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{
		Port:              getenvDefault("PORT", "8080"),
		DBPath:            getenvDefault("DB_PATH", "weatherfront.db"),
		GeocodingURL:      os.Getenv("GEOCODING_URL"),
		ForecastURL:       os.Getenv("FORECAST_URL"),
		AutocompleteLimit: getenvInt("AUTOCOMPLETE_LIMIT", 5),
		JWTSecret:         os.Getenv("JWT_SECRET"),
	}

	var err error
	if cfg.GeocodingTimeout, err = getenvDuration("GEOCODING_TIMEOUT", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.ForecastTimeout, err = getenvDuration("FORECAST_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.AutocompleteTTL, err = getenvDuration("AUTOCOMPLETE_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.CacheSweepInterval, err = getenvDuration("CACHE_SWEEP_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getenvDuration("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.JWTTTL, err = getenvDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
