package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"ttharvest/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage ttharvest configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (TTHARVEST_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'ttharvest.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the current configuration including values from all sources.

Sensitive values like the client secret will be masked.`,
	Run: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Required fields
  - Value types and ranges
  - Path accessibility`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = "ttharvest.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintln(os.Stderr, "configuration file already exists:", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	exampleConfig := `# ttharvest configuration file
#
# This file contains all available configuration options.
# You can also use environment variables prefixed with TTHARVEST_
# For example: TTHARVEST_CLIENT_KEY, TTHARVEST_CLIENT_SECRET

# Research API credentials and endpoints
api:
  # Client key and secret of your approved Research API application.
  # Prefer 'ttharvest auth login' over putting these in a file.
  client_key: ""
  client_secret: ""

  # API base URL
  base_url: "https://open.tiktokapis.com"

  # HTTP timeout
  timeout: 30s

  # A cached access token is refreshed this long before it expires
  token_margin: 5m

# Query window and search terms
query:
  # Inclusive date range, YYYYMMDD
  start_date: ""
  end_date: ""

  # File with one search term per line. Each term is used both as a
  # keyword and as a hashtag condition.
  keywords_file: "keywords.txt"

  # Results per page, capped at 100
  page_size: 100

# Rate limiting
rate_limit:
  requests_per_minute: 60

# Retry budgets per component
retry:
  page_attempts: 3
  page_delay: 2s
  visibility_attempts: 10
  visibility_cooldown: 100s
  download_attempts: 5
  download_cooldown: 100s

# Output locations
output:
  # One metadata_<date>.csv per calendar date, plus raw JSON dumps
  metadata_dir: "./metadata"

  # The combined, deduplicated dataset
  combined_file: "./combined_metadata.csv"

  # <stem>_processed.csv batch outputs
  processed_dir: "./processed"

# Media download settings
media:
  video_dir: "./videos"

  # Politeness pause before every download attempt
  prefetch_delay: 10s

  # Concurrent download workers
  workers: 1

  # Run the media phase during collection runs
  enabled: false

  # Optional path to a Chrome/Chromium binary
  browser_path: ""

# Logging
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log file path (optional). Leave empty to log to stderr only.
  file: ""
`

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		fmt.Fprintln(os.Stderr, "failed to create configuration file:", err)
		os.Exit(1)
	}

	fmt.Println("Configuration file created:", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Store credentials with 'ttharvest auth login'")
	fmt.Println("2. Run 'ttharvest config validate' to check the configuration")
	fmt.Println("3. Start collecting with 'ttharvest collect'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	// Mask sensitive values for display
	displayCfg := *cfg
	displayCfg.API.ClientKey = maskValue(displayCfg.API.ClientKey)
	displayCfg.API.ClientSecret = maskValue(displayCfg.API.ClientSecret)

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to format configuration:", err)
		os.Exit(1)
	}

	fmt.Println("Current configuration:")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (TTHARVEST_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (not specified)")
	}
	fmt.Println("4. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if configFile == "" {
		possiblePaths := []string{
			"ttharvest.yaml",
			"ttharvest.yml",
			".ttharvest.yaml",
			".ttharvest.yml",
			filepath.Join(os.Getenv("HOME"), ".ttharvest.yaml"),
			filepath.Join(os.Getenv("HOME"), ".config", "ttharvest", "config.yaml"),
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}

		if configFile == "" {
			fmt.Fprintln(os.Stderr, "no configuration file found; specify one with --config")
			os.Exit(1)
		}
	}

	fmt.Println("Validating configuration:", configFile)

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration validation failed:", err)
		os.Exit(1)
	}

	warnings := []string{}
	errors := []string{}

	if cfg.API.ClientKey == "" {
		warnings = append(warnings, "client key not configured (will fall back to stored credentials)")
	}
	if cfg.API.ClientSecret == "" {
		warnings = append(warnings, "client secret not configured (will fall back to stored credentials)")
	}

	if cfg.Output.MetadataDir != "" {
		if err := os.MkdirAll(cfg.Output.MetadataDir, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create metadata directory: %v", err))
		}
	}
	if cfg.Logging.File != "" {
		dir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(dir, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if cfg.RateLimit.RequestsPerMinute < 1 || cfg.RateLimit.RequestsPerMinute > 600 {
		errors = append(errors, "requests_per_minute must be between 1 and 600")
	}
	if cfg.Media.Workers < 1 || cfg.Media.Workers > 4 {
		errors = append(errors, "workers must be between 1 and 4")
	}

	if len(errors) > 0 {
		fmt.Fprintln(os.Stderr, "configuration has errors:")
		for _, err := range errors {
			fmt.Fprintf(os.Stderr, "  - %s\n", err)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		fmt.Println("configuration warnings:")
		for _, warn := range warnings {
			fmt.Printf("  - %s\n", warn)
		}
		fmt.Println()
	}

	fmt.Println("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Metadata directory: %s\n", cfg.Output.MetadataDir)
	fmt.Printf("  Combined dataset: %s\n", cfg.Output.CombinedFile)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Page retries: %d\n", cfg.Retry.PageAttempts)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}

func maskValue(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
