package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the harvester
type Config struct {
	// Research API credentials
	API APIConfig `yaml:"api" json:"api"`

	// Query window and search terms
	Query QueryConfig `yaml:"query" json:"query"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry budgets per component
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Media download settings
	Media MediaConfig `yaml:"media" json:"media"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds Research API credentials and endpoints
type APIConfig struct {
	ClientKey    string        `yaml:"client_key" json:"client_key"`
	ClientSecret string        `yaml:"client_secret" json:"client_secret"`
	BaseURL      string        `yaml:"base_url" json:"base_url"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	// TokenMargin is subtracted from the token expiry when deciding
	// whether a cached token is still usable.
	TokenMargin time.Duration `yaml:"token_margin" json:"token_margin"`
}

// QueryConfig holds the date range and search terms for a collection run
type QueryConfig struct {
	// StartDate and EndDate are inclusive/exclusive bounds in YYYYMMDD.
	StartDate string `yaml:"start_date" json:"start_date"`
	EndDate   string `yaml:"end_date" json:"end_date"`
	// KeywordsFile is a text file with one term per line. Each term is
	// used both as a keyword and as a hashtag condition.
	KeywordsFile string   `yaml:"keywords_file" json:"keywords_file"`
	Keywords     []string `yaml:"keywords" json:"keywords"`
	Hashtags     []string `yaml:"hashtags" json:"hashtags"`
	PageSize     int      `yaml:"page_size" json:"page_size"`
}

// RateLimitConfig holds API pacing configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RetryConfig holds per-component retry budgets. Visibility checks and
// media downloads carry different budgets because their cost profiles
// differ.
type RetryConfig struct {
	PageAttempts       int           `yaml:"page_attempts" json:"page_attempts"`
	PageDelay          time.Duration `yaml:"page_delay" json:"page_delay"`
	VisibilityAttempts int           `yaml:"visibility_attempts" json:"visibility_attempts"`
	VisibilityCooldown time.Duration `yaml:"visibility_cooldown" json:"visibility_cooldown"`
	DownloadAttempts   int           `yaml:"download_attempts" json:"download_attempts"`
	DownloadCooldown   time.Duration `yaml:"download_cooldown" json:"download_cooldown"`
}

// OutputConfig holds output locations
type OutputConfig struct {
	// MetadataDir receives one metadata_<date>.csv per calendar date
	// plus the raw per-day JSON dumps.
	MetadataDir string `yaml:"metadata_dir" json:"metadata_dir"`
	// CombinedFile is the single merged dataset.
	CombinedFile string `yaml:"combined_file" json:"combined_file"`
	// ProcessedDir receives the <stem>_processed.csv batch outputs.
	ProcessedDir string `yaml:"processed_dir" json:"processed_dir"`
}

// MediaConfig holds media phase settings
type MediaConfig struct {
	// VideoDir is where downloaded videos land. Files are written flat;
	// the @username_video_id naming keeps them unique across batches.
	VideoDir string `yaml:"video_dir" json:"video_dir"`
	// PrefetchDelay is the politeness pause before every download attempt.
	PrefetchDelay time.Duration `yaml:"prefetch_delay" json:"prefetch_delay"`
	// Workers bounds in-flight downloads. Kept at 1 unless the remote
	// service's rate limits are known to allow more.
	Workers int `yaml:"workers" json:"workers"`
	// Enabled toggles the media phase during collection runs.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// BrowserPath optionally overrides the Chrome binary used by the
	// download agent.
	BrowserPath string `yaml:"browser_path" json:"browser_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:     "https://open.tiktokapis.com",
			Timeout:     30 * time.Second,
			TokenMargin: 5 * time.Minute,
		},
		Query: QueryConfig{
			PageSize: 100,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Retry: RetryConfig{
			PageAttempts:       3,
			PageDelay:          2 * time.Second,
			VisibilityAttempts: 10,
			VisibilityCooldown: 100 * time.Second,
			DownloadAttempts:   5,
			DownloadCooldown:   100 * time.Second,
		},
		Output: OutputConfig{
			MetadataDir:  "./metadata",
			CombinedFile: "./metadata/combined.csv",
			ProcessedDir: "./processed",
		},
		Media: MediaConfig{
			VideoDir:      "./videos",
			PrefetchDelay: 10 * time.Second,
			Workers:       1,
			Enabled:       false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if key := os.Getenv("TTHARVEST_CLIENT_KEY"); key != "" {
		c.API.ClientKey = key
	}
	if secret := os.Getenv("TTHARVEST_CLIENT_SECRET"); secret != "" {
		c.API.ClientSecret = secret
	}
	if base := os.Getenv("TTHARVEST_API_BASE_URL"); base != "" {
		c.API.BaseURL = base
	}
	if rpm := os.Getenv("TTHARVEST_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	if dir := os.Getenv("TTHARVEST_METADATA_DIR"); dir != "" {
		c.Output.MetadataDir = dir
	}
	if file := os.Getenv("TTHARVEST_COMBINED_FILE"); file != "" {
		c.Output.CombinedFile = file
	}
	if dir := os.Getenv("TTHARVEST_VIDEO_DIR"); dir != "" {
		c.Media.VideoDir = dir
	}
	if level := os.Getenv("TTHARVEST_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".ttharvest.yaml",
		".ttharvest.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "ttharvest", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "ttharvest", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".ttharvest.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Client key and secret are not validated here: they may come from
	// the credential manager after the config is loaded.
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("API base URL is required"))
	}
	if c.API.TokenMargin < 0 {
		errs = append(errs, errors.New("token margin cannot be negative"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	if c.Retry.PageAttempts <= 0 {
		errs = append(errs, errors.New("page attempts must be positive"))
	}
	if c.Retry.VisibilityAttempts <= 0 {
		errs = append(errs, errors.New("visibility attempts must be positive"))
	}
	if c.Retry.DownloadAttempts <= 0 {
		errs = append(errs, errors.New("download attempts must be positive"))
	}

	if c.Output.MetadataDir == "" {
		errs = append(errs, errors.New("metadata directory is required"))
	}
	if c.Output.CombinedFile == "" {
		errs = append(errs, errors.New("combined file path is required"))
	}

	if c.Media.Workers <= 0 {
		errs = append(errs, errors.New("media workers must be positive"))
	}
	if c.Media.Workers > 4 {
		errs = append(errs, errors.New("media workers should not exceed 4"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if key, ok := flags["client-key"].(string); ok && key != "" {
		c.API.ClientKey = key
	}
	if secret, ok := flags["client-secret"].(string); ok && secret != "" {
		c.API.ClientSecret = secret
	}
	if start, ok := flags["start-date"].(string); ok && start != "" {
		c.Query.StartDate = start
	}
	if end, ok := flags["end-date"].(string); ok && end != "" {
		c.Query.EndDate = end
	}
	if kw, ok := flags["keywords-file"].(string); ok && kw != "" {
		c.Query.KeywordsFile = kw
	}
	if dir, ok := flags["metadata-dir"].(string); ok && dir != "" {
		c.Output.MetadataDir = dir
	}
	if file, ok := flags["combined-file"].(string); ok && file != "" {
		c.Output.CombinedFile = file
	}
	if dir, ok := flags["video-dir"].(string); ok && dir != "" {
		c.Media.VideoDir = dir
	}
	if rpm, ok := flags["rate-limit"].(int); ok && rpm > 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if level, ok := flags["log-level"].(string); ok && level != "" {
		c.Logging.Level = level
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".ttharvest.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
