package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Location is a tracked place: environmental readings are fetched for its
// coordinates and the reference page is scraped for title/summary enrichment.
type Location struct {
	Key          string  `json:"key"`
	Name         string  `json:"name"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	WikipediaURL string  `json:"wikipediaUrl"`
}

// Region is a macro-economic comparison area (ISO3 code).
type Region struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Indicator is a tracked World Bank indicator code with its display label.
type Indicator struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// AppConfig holds all service settings, populated from environment variables
// with sensible defaults. Static seed data (locations, regions, indicators)
// lives here as well so sources, transforms, and storage all read from one
// place.
type AppConfig struct {
	Port     string
	LogLevel string

	// Outbound HTTP behaviour.
	UserAgent      string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration

	// Per-source refresh intervals and the scheduler check tick.
	EnvInterval   time.Duration
	MacroInterval time.Duration
	WikiInterval  time.Duration
	SchedulerTick time.Duration

	// Primary store.
	SQLitePath string

	// Optional audit sink. Empty brokers disable it.
	AuditBrokers []string
	AuditTopic   string

	Locations  []Location
	Regions    []Region
	Indicators []Indicator
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{
		Port:      getenvDefault("PORT", "8080"),
		LogLevel:  getenvDefault("LOG_LEVEL", "info"),
		UserAgent: getenvDefault("USER_AGENT", "EcoPulse/1.0"),

		SQLitePath: getenvDefault("SQLITE_PATH", "ecopulse.sqlite"),
		AuditTopic: getenvDefault("AUDIT_TOPIC", "ecopulse-raw-fetches"),

		Locations:  defaultLocations(),
		Regions:    defaultRegions(),
		Indicators: defaultIndicators(),
	}

	timeoutStr := getenvDefault("REQUEST_TIMEOUT", "10s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}
	cfg.RequestTimeout = timeout

	cfg.MaxRetries = getenvInt("MAX_RETRIES", 2)
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("MAX_RETRIES must not be negative")
	}

	// Backoff unit: retry attempt n waits (1+n) * RetryBackoff.
	backoffStr := getenvDefault("RETRY_BACKOFF", "1s")
	backoff, err := time.ParseDuration(backoffStr)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_BACKOFF: %w", err)
	}
	cfg.RetryBackoff = backoff

	// Refresh intervals are whole seconds, matching the deployment knobs.
	cfg.EnvInterval, err = getenvSeconds("ENV_REFRESH_INTERVAL", 3600)
	if err != nil {
		return nil, err
	}
	cfg.MacroInterval, err = getenvSeconds("MACRO_REFRESH_INTERVAL", 86400)
	if err != nil {
		return nil, err
	}
	cfg.WikiInterval, err = getenvSeconds("WIKI_REFRESH_INTERVAL", 604800)
	if err != nil {
		return nil, err
	}
	cfg.SchedulerTick, err = getenvSeconds("SCHEDULER_TICK", 5)
	if err != nil {
		return nil, err
	}

	if brokers := os.Getenv("AUDIT_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.AuditBrokers = append(cfg.AuditBrokers, b)
			}
		}
	}

	return cfg, nil
}

func defaultLocations() []Location {
	return []Location{
		{Key: "ams", Name: "Amsterdam", Lat: 52.3676, Lon: 4.9041, WikipediaURL: "https://en.wikipedia.org/wiki/Amsterdam"},
		{Key: "bru", Name: "Brussels", Lat: 50.8503, Lon: 4.3517, WikipediaURL: "https://en.wikipedia.org/wiki/Brussels"},
		{Key: "nyc", Name: "New York City", Lat: 40.7128, Lon: -74.0060, WikipediaURL: "https://en.wikipedia.org/wiki/New_York_City"},
	}
}

func defaultRegions() []Region {
	return []Region{
		{Code: "NLD", Name: "Netherlands"},
		{Code: "EUU", Name: "European Union"},
		{Code: "USA", Name: "United States"},
		{Code: "WLD", Name: "World"},
	}
}

func defaultIndicators() []Indicator {
	return []Indicator{
		{Code: "FP.CPI.TOTL.ZG", Name: "Inflation (annual %)"},
		{Code: "SL.UEM.TOTL.ZS", Name: "Unemployment (annual %)"},
		{Code: "NY.GDP.MKTP.KD.ZG", Name: "GDP growth (annual %)"},
		{Code: "EN.ATM.CO2E.PC", Name: "CO2 emissions (metric tons per capita)"},
	}
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

func getenvSeconds(key string, def int) (time.Duration, error) {
	n := getenvInt(key, def)
	if n <= 0 {
		return 0, fmt.Errorf("%s must be a positive number of seconds", key)
	}
	return time.Duration(n) * time.Second, nil
}
