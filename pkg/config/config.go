package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration
type Config struct {
	Pipeline    PipelineConfig    `yaml:"pipeline" json:"pipeline"`
	Cache       CacheConfig       `yaml:"cache" json:"cache"`
	Marketplace MarketplaceConfig `yaml:"marketplace" json:"marketplace"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// PipelineConfig holds batch-orchestration configuration
type PipelineConfig struct {
	Mode               string `yaml:"mode" json:"mode"`
	InputDir           string `yaml:"inputDir" json:"inputDir"`
	BatchSize          int    `yaml:"batchSize" json:"batchSize"`
	ReferenceListingID string `yaml:"referenceListingId" json:"referenceListingId"`
	TemplatePath       string `yaml:"templatePath" json:"templatePath"`
}

// CacheConfig holds scratch-cache lifecycle configuration
type CacheConfig struct {
	Dirs             []string `yaml:"dirs" json:"dirs"`
	RetentionCount   int      `yaml:"retentionCount" json:"retentionCount"`
	MaxCacheSizeMB   int64    `yaml:"maxCacheSizeMb" json:"maxCacheSizeMb"`
	CleanupOnSuccess bool     `yaml:"cleanupOnSuccess" json:"cleanupOnSuccess"`
}

// MarketplaceConfig holds marketplace API client configuration.
// Credentials are environment-only, never written to YAML.
type MarketplaceConfig struct {
	BaseURL        string        `yaml:"baseUrl" json:"baseUrl"`
	TokenURL       string        `yaml:"tokenUrl" json:"tokenUrl"`
	CallsPerSecond int           `yaml:"callsPerSecond" json:"callsPerSecond"`
	RequestTimeout time.Duration `yaml:"requestTimeout" json:"requestTimeout"`
	MaxAttempts    int           `yaml:"maxAttempts" json:"maxAttempts"`
	BaseDelay      time.Duration `yaml:"baseDelay" json:"baseDelay"`
	MaxDelay       time.Duration `yaml:"maxDelay" json:"maxDelay"`

	APIKey       string `yaml:"-" json:"-"`
	AccessToken  string `yaml:"-" json:"-"`
	RefreshToken string `yaml:"-" json:"-"`
	ShopID       string `yaml:"-" json:"-"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	Verbose bool   `yaml:"verbose" json:"verbose"`
}

// DefaultConfig Default configuration values
var DefaultConfig = Config{
	Pipeline: PipelineConfig{
		Mode:         "validate",
		InputDir:     "./designs",
		BatchSize:    10,
		TemplatePath: "assets/delivery_template.pdf",
	},
	Cache: CacheConfig{
		Dirs: []string{
			"output/mockups",
			"output/pdfs",
			"output/converted",
		},
		RetentionCount:   5,
		MaxCacheSizeMB:   1000,
		CleanupOnSuccess: true,
	},
	Marketplace: MarketplaceConfig{
		BaseURL:        "https://openapi.etsy.com/v3",
		TokenURL:       "https://api.etsy.com/v3/public/oauth/token",
		CallsPerSecond: 10,
		RequestTimeout: 60 * time.Second,
		MaxAttempts:    5,
		BaseDelay:      1 * time.Second,
		MaxDelay:       30 * time.Second,
	},
	Logging: LoggingConfig{
		Level: "INFO",
	},
}

// LoadConfig loads configuration from multiple sources in order of precedence:
// 1. Environment variables (highest precedence)
// 2. Configuration file
// 3. Default values (lowest precedence)
func LoadConfig() (*Config, string, error) {
	config := DefaultConfig

	path, err := loadFromFile(&config)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config file: %w", err)
	}

	loadFromEnv(&config)

	if e := config.Validate(); e != nil {
		return nil, "", fmt.Errorf("configuration validation failed: %w", e)
	}

	return &config, path, nil
}

// loadFromFile loads configuration from the first YAML file found
func loadFromFile(config *Config) (string, error) {
	configPaths := []string{
		os.Getenv("LISTFORGE_CONFIG_PATH"), // Custom path from environment
		"./listforge.yaml",                 // Current directory
		"./config/listforge.yaml",          // Config subdirectory
		"/etc/listforge/config.yaml",       // System-wide
	}

	for _, path := range configPaths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return "", fmt.Errorf("failed to parse config file %s: %w", path, err)
		}

		return path, nil
	}

	return "built-in defaults (no config file found)", nil
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(config *Config) {
	if val := os.Getenv("LISTFORGE_MODE"); val != "" {
		config.Pipeline.Mode = val
	}
	if val := os.Getenv("LISTFORGE_INPUT_DIR"); val != "" {
		config.Pipeline.InputDir = val
	}
	if val := os.Getenv("LISTFORGE_BATCH_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			config.Pipeline.BatchSize = size
		}
	}
	if val := os.Getenv("REFERENCE_LISTING_ID"); val != "" {
		config.Pipeline.ReferenceListingID = val
	}
	if val := os.Getenv("LISTFORGE_TEMPLATE_PATH"); val != "" {
		config.Pipeline.TemplatePath = val
	}

	if val := os.Getenv("LISTFORGE_CACHE_DIRS"); val != "" {
		config.Cache.Dirs = strings.Split(val, ",")
	}
	if val := os.Getenv("LISTFORGE_RETENTION_COUNT"); val != "" {
		if count, err := strconv.Atoi(val); err == nil {
			config.Cache.RetentionCount = count
		}
	}
	if val := os.Getenv("LISTFORGE_MAX_CACHE_SIZE_MB"); val != "" {
		if size, err := strconv.ParseInt(val, 10, 64); err == nil {
			config.Cache.MaxCacheSizeMB = size
		}
	}
	if val := os.Getenv("LISTFORGE_CLEANUP_ON_SUCCESS"); val != "" {
		config.Cache.CleanupOnSuccess = val == "true" || val == "1"
	}

	if val := os.Getenv("LISTFORGE_MARKETPLACE_BASE_URL"); val != "" {
		config.Marketplace.BaseURL = val
	}
	if val := os.Getenv("LISTFORGE_MARKETPLACE_TOKEN_URL"); val != "" {
		config.Marketplace.TokenURL = val
	}
	if val := os.Getenv("LISTFORGE_CALLS_PER_SECOND"); val != "" {
		if rate, err := strconv.Atoi(val); err == nil {
			config.Marketplace.CallsPerSecond = rate
		}
	}
	if val := os.Getenv("LISTFORGE_REQUEST_TIMEOUT"); val != "" {
		if timeout, err := time.ParseDuration(val); err == nil {
			config.Marketplace.RequestTimeout = timeout
		}
	}
	if val := os.Getenv("LISTFORGE_MAX_ATTEMPTS"); val != "" {
		if attempts, err := strconv.Atoi(val); err == nil {
			config.Marketplace.MaxAttempts = attempts
		}
	}

	// marketplace credentials, environment-only
	config.Marketplace.APIKey = os.Getenv("MARKETPLACE_API_KEY")
	config.Marketplace.AccessToken = os.Getenv("MARKETPLACE_ACCESS_TOKEN")
	config.Marketplace.RefreshToken = os.Getenv("MARKETPLACE_REFRESH_TOKEN")
	config.Marketplace.ShopID = os.Getenv("MARKETPLACE_SHOP_ID")

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		config.Logging.Level = val
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Pipeline.Mode != "validate" && c.Pipeline.Mode != "batch" {
		return fmt.Errorf("invalid pipeline mode: %s", c.Pipeline.Mode)
	}

	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("invalid batch size: %d", c.Pipeline.BatchSize)
	}

	if len(c.Cache.Dirs) == 0 {
		return fmt.Errorf("at least one cache directory is required")
	}

	if c.Cache.RetentionCount < 1 {
		return fmt.Errorf("invalid retention count: %d (minimum 1)", c.Cache.RetentionCount)
	}

	if c.Cache.MaxCacheSizeMB < 1 {
		return fmt.Errorf("invalid max cache size: %d MB", c.Cache.MaxCacheSizeMB)
	}

	if c.Marketplace.CallsPerSecond < 1 {
		return fmt.Errorf("invalid marketplace rate limit: %d calls/sec", c.Marketplace.CallsPerSecond)
	}

	if c.Marketplace.MaxAttempts < 1 {
		return fmt.Errorf("invalid marketplace max attempts: %d", c.Marketplace.MaxAttempts)
	}

	if _, err := logLevel(c.Logging.Level); err != nil {
		return err
	}

	return nil
}

func logLevel(level string) (string, error) {
	switch strings.ToUpper(level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
		return strings.ToUpper(level), nil
	default:
		return "", fmt.Errorf("invalid log level: %s", level)
	}
}

// MissingCredentials returns the credential variables that are required for
// marketplace writes but absent from the environment.
func (c *MarketplaceConfig) MissingCredentials() []string {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "MARKETPLACE_API_KEY")
	}
	if c.RefreshToken == "" {
		missing = append(missing, "MARKETPLACE_REFRESH_TOKEN")
	}
	if c.ShopID == "" {
		missing = append(missing, "MARKETPLACE_SHOP_ID")
	}
	return missing
}

func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c *Config) SaveToFile(path string) error {
	data, err := c.ToYAML()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadFromFile loads a specific configuration file
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}
