// Package config loads process settings and migration options.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lherron/nestmig/internal/paths"
)

// Config represents the application configuration
type Config struct {
	DBPath       string   `yaml:"db_path"`
	DefaultActor string   `yaml:"default_actor"`
	Namespace    string   `yaml:"namespace"`
	HomeSpace    string   `yaml:"home_space"`
	LogLevel     string   `yaml:"log_level"`
	LogFormat    string   `yaml:"log_format"`
	MetricsFile  string   `yaml:"metrics_file"`
	Output       string   `yaml:"output"`
	WebhookURLs  []string `yaml:"webhook_urls"`
}

// DefaultHomeSpace is the space whose index parents top-level index items
const DefaultHomeSpace = "Main"

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/nestmig/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := &Config{
		Namespace: "wiki",
		HomeSpace: DefaultHomeSpace,
		LogLevel:  "info",
		LogFormat: "text",
		Output:    "table",
	}

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// YAML config is optional
	_ = loadYAMLConfig(cfg)

	// Override with environment variables
	if dbPath := getEnvOrFile("NESTMIG_DB_PATH", "NESTMIG_DB_PATH_FILE"); dbPath != "" {
		cfg.DBPath = strings.TrimSpace(dbPath)
	}
	if ns := os.Getenv("NESTMIG_NAMESPACE"); ns != "" {
		cfg.Namespace = ns
	}
	if home := os.Getenv("NESTMIG_HOME_SPACE"); home != "" {
		cfg.HomeSpace = home
	}
	if logLevel := os.Getenv("NESTMIG_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat := os.Getenv("NESTMIG_LOG_FORMAT"); logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if metricsFile := os.Getenv("NESTMIG_METRICS_FILE"); metricsFile != "" {
		cfg.MetricsFile = metricsFile
	}
	if hooks := os.Getenv("NESTMIG_WEBHOOK_URLS"); hooks != "" {
		cfg.WebhookURLs = strings.Split(hooks, ",")
	}
	if output := os.Getenv("NESTMIG_OUTPUT"); output != "" {
		cfg.Output = output
	}
	if defaultActor := os.Getenv("NESTMIG_ACTOR"); defaultActor != "" {
		cfg.DefaultActor = defaultActor
	}

	// Set defaults if not configured
	if cfg.DBPath == "" {
		// Check for project-local database first
		if _, err := os.Stat(".nestmig/nestmig.db"); err == nil {
			cfg.DBPath = ".nestmig/nestmig.db"
		} else {
			// Fall back to user-global database
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			cfg.DBPath = filepath.Join(homeDir, ".local", "share", "nestmig", "nestmig.db")
		}
	}

	if err := paths.ValidateNamespace(cfg.Namespace); err != nil {
		return nil, fmt.Errorf("invalid namespace: %w", err)
	}

	return cfg, nil
}

// loadYAMLConfig loads configuration from ~/.config/nestmig/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", "nestmig", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return string(data)
		}
	}

	return ""
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
// Returns the path to .env.local if found, empty string otherwise.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, just check cwd
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Clean paths for reliable comparison
	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}

		// Stop if we've reached home directory
		if dir == homeDir {
			break
		}

		// Get parent directory
		parent := filepath.Dir(dir)

		// Stop if we've reached the filesystem root
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}

// GetActor returns the current actor from environment or config
// Priority: NESTMIG_ACTOR > config.default_actor > $USER
func (c *Config) GetActor() string {
	if actor := os.Getenv("NESTMIG_ACTOR"); actor != "" {
		return actor
	}
	if c.DefaultActor != "" {
		return c.DefaultActor
	}
	return os.Getenv("USER")
}
