// Package config handles loading and validation of service configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// Config holds all service configuration.
// Environment determines whether catalog credentials load from env vars
// (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject   string
	StorefrontID string

	// Interactive marks a UI-attached deployment; inventory polling only
	// runs when set.
	Interactive bool

	// Storage is the SQLite snapshot path; empty disables persistence.
	StoragePath string

	// Cart engine tuning. Zero values use the cart package defaults.
	MinRefreshInterval time.Duration
	PollInterval       time.Duration

	// Catalog backend settings (credentials loaded from secrets in production)
	Catalog CatalogConfig
}

// CatalogConfig contains catalog backend settings.
// In production this is loaded from Secret Manager as JSON.
// In development, from individual env vars or CONFIG_FILE.
type CatalogConfig struct {
	BaseURL  string `json:"base_url"`
	APIKey   string `json:"api_key,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:         envOrDefault("PORT", "8080"),
		Environment:  envOrDefault("ENVIRONMENT", "development"),
		LogLevel:     envOrDefault("LOG_LEVEL", "info"),
		GCPProject:   os.Getenv("GCP_PROJECT"),
		StorefrontID: os.Getenv("STOREFRONT_ID"),
		Interactive:  envOrDefault("INTERACTIVE", "true") == "true",
		StoragePath:  envOrDefault("CART_STORAGE_PATH", "./larmone-cart.db"),
	}

	if cfg.StorefrontID == "" {
		return nil, fmt.Errorf("STOREFRONT_ID environment variable required")
	}

	var err error
	if cfg.MinRefreshInterval, err = envDuration("MIN_REFRESH_SECONDS"); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = envDuration("POLL_SECONDS"); err != nil {
		return nil, err
	}

	// Load catalog config based on environment
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading catalog config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Port              string        `json:"port"`
		Environment       string        `json:"environment"`
		LogLevel          string        `json:"log_level"`
		StorefrontID      string        `json:"storefront_id"`
		Interactive       *bool         `json:"interactive"`
		StoragePath       string        `json:"storage_path"`
		MinRefreshSeconds int           `json:"min_refresh_seconds"`
		PollSeconds       int           `json:"poll_seconds"`
		Catalog           CatalogConfig `json:"catalog"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:               withDefault(fileConfig.Port, "8080"),
		Environment:        withDefault(fileConfig.Environment, "development"),
		LogLevel:           withDefault(fileConfig.LogLevel, "info"),
		StorefrontID:       fileConfig.StorefrontID,
		Interactive:        true,
		StoragePath:        fileConfig.StoragePath,
		MinRefreshInterval: time.Duration(fileConfig.MinRefreshSeconds) * time.Second,
		PollInterval:       time.Duration(fileConfig.PollSeconds) * time.Second,
		Catalog:            fileConfig.Catalog,
	}
	if fileConfig.Interactive != nil {
		cfg.Interactive = *fileConfig.Interactive
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches catalog credentials from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{storefront_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.StorefrontID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Catalog); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}

	return nil
}

// loadFromEnv reads catalog settings from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.Catalog = CatalogConfig{
		BaseURL: os.Getenv("CATALOG_BASE_URL"),
		APIKey:  os.Getenv("CATALOG_API_KEY"),
	}
	if raw := os.Getenv("CATALOG_PAGE_SIZE"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			return fmt.Errorf("invalid CATALOG_PAGE_SIZE %q", raw)
		}
		c.Catalog.PageSize = size
	}
	return nil
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.StorefrontID == "" {
		return fmt.Errorf("storefront_id is required")
	}
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog base_url is required")
	}
	if _, err := url.Parse(c.Catalog.BaseURL); err != nil {
		return fmt.Errorf("invalid catalog base_url: %w", err)
	}
	if c.Catalog.PageSize < 0 {
		return fmt.Errorf("catalog page_size must be positive")
	}
	return nil
}

// envDuration reads a whole-seconds env var into a duration, 0 when unset.
func envDuration(key string) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return time.Duration(secs) * time.Second, nil
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
