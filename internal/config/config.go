// Package config loads the notes server configuration from an optional YAML
// file, environment variables and CLI flags, in increasing precedence, and
// validates the result.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kuitang/notes-log/internal/ratelimit"
	"github.com/kuitang/notes-log/internal/s3client"
)

const (
	defaultNotesPath       = "/data/notes.json"
	defaultListenAddr      = ":5001"
	defaultAppVersion      = "v3.0.0"
	defaultVersionReport   = "features"
	defaultLogLevel        = "info"
	defaultShutdownTimeout = 10 * time.Second
	defaultBackupRegion    = "auto"
	defaultBackupPrefix    = "snapshots"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	NotesPath       string // JSON Lines log file
	ListenAddr      string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Deployment metadata reported by GET / and GET /version
	AppVersion    string
	DeploymentEnv string
	VersionReport string // "features" or "defect"

	// Rate limiting (RPS 0 disables it)
	RateLimitConfig ratelimit.Config

	// Snapshot storage; disabled when Bucket is empty
	Backup BackupConfig
}

// BackupConfig is the S3-compatible bucket that receives log snapshots.
type BackupConfig struct {
	Endpoint        string // BACKUP_S3_ENDPOINT, empty for AWS
	Region          string // BACKUP_S3_REGION
	AccessKeyID     string // BACKUP_S3_ACCESS_KEY_ID
	SecretAccessKey string // BACKUP_S3_SECRET_ACCESS_KEY
	Bucket          string // BACKUP_BUCKET
	Prefix          string // BACKUP_PREFIX
}

// fileConfig mirrors Config in the YAML file. Pointers distinguish an
// explicit zero from an absent key.
type fileConfig struct {
	NotesPath       string `yaml:"notes_path"`
	ListenAddr      string `yaml:"listen_addr"`
	LogLevel        string `yaml:"log_level"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	AppVersion      string `yaml:"app_version"`
	DeploymentEnv   string `yaml:"deployment_env"`
	VersionReport   string `yaml:"version_report"`

	RateLimit struct {
		RPS             *float64 `yaml:"rps"`
		Burst           *int     `yaml:"burst"`
		CleanupInterval string   `yaml:"cleanup_interval"`
	} `yaml:"rate_limit"`

	Backup struct {
		Endpoint        string `yaml:"endpoint"`
		Region          string `yaml:"region"`
		AccessKeyID     string `yaml:"access_key_id"`
		SecretAccessKey string `yaml:"secret_access_key"`
		Bucket          string `yaml:"bucket"`
		Prefix          string `yaml:"prefix"`
	} `yaml:"backup"`
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags registers and parses --addr and --config. Call before LoadConfig.
func ParseFlags() (addr, configPath string) {
	flag.StringVar(&addr, "addr", "", "Listen address (default :5001, overrides LISTEN_ADDR env var)")
	flag.StringVar(&configPath, "config", "", "Optional YAML config file; environment variables override it")
	flag.Parse()
	return addr, configPath
}

// LoadConfig builds the configuration. configPath names an optional YAML
// file; environment variables override it and a non-empty addr overrides
// LISTEN_ADDR.
func LoadConfig(addr, configPath string) (*Config, error) {
	var file fileConfig
	if configPath != "" {
		loaded, err := readFile(configPath)
		if err != nil {
			return nil, err
		}
		file = *loaded
	}

	cfg := &Config{}

	// Server settings
	cfg.NotesPath = getEnvOrDefault("NOTES_PATH", orDefault(file.NotesPath, defaultNotesPath))
	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", orDefault(file.ListenAddr, defaultListenAddr))
	if addr != "" {
		cfg.ListenAddr = addr
	}
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", orDefault(file.LogLevel, defaultLogLevel))
	cfg.ShutdownTimeout = parseDurationOrDefault("SHUTDOWN_TIMEOUT", fileDuration(file.ShutdownTimeout, defaultShutdownTimeout))

	// Deployment metadata
	cfg.AppVersion = getEnvOrDefault("APP_VERSION", orDefault(file.AppVersion, defaultAppVersion))
	cfg.DeploymentEnv = getEnvOrDefault("DEPLOYMENT_ENV", file.DeploymentEnv)
	cfg.VersionReport = strings.ToLower(getEnvOrDefault("VERSION_REPORT", orDefault(file.VersionReport, defaultVersionReport)))

	// Rate limiting
	rl := ratelimit.DefaultConfig
	if file.RateLimit.RPS != nil {
		rl.RPS = *file.RateLimit.RPS
	}
	if file.RateLimit.Burst != nil {
		rl.Burst = *file.RateLimit.Burst
	}
	rl.CleanupInterval = fileDuration(file.RateLimit.CleanupInterval, rl.CleanupInterval)
	cfg.RateLimitConfig = ratelimit.Config{
		RPS:             parseFloat64OrDefault("RATE_LIMIT_RPS", rl.RPS),
		Burst:           parseIntOrDefault("RATE_LIMIT_BURST", rl.Burst),
		CleanupInterval: parseDurationOrDefault("RATE_LIMIT_CLEANUP_INTERVAL", rl.CleanupInterval),
	}

	// Snapshot storage
	cfg.Backup = BackupConfig{
		Endpoint:        strings.TrimSpace(getEnvOrDefault("BACKUP_S3_ENDPOINT", file.Backup.Endpoint)),
		Region:          getEnvOrDefault("BACKUP_S3_REGION", orDefault(file.Backup.Region, defaultBackupRegion)),
		AccessKeyID:     strings.TrimSpace(getEnvOrDefault("BACKUP_S3_ACCESS_KEY_ID", file.Backup.AccessKeyID)),
		SecretAccessKey: strings.TrimSpace(getEnvOrDefault("BACKUP_S3_SECRET_ACCESS_KEY", file.Backup.SecretAccessKey)),
		Bucket:          strings.TrimSpace(getEnvOrDefault("BACKUP_BUCKET", file.Backup.Bucket)),
		Prefix:          strings.Trim(getEnvOrDefault("BACKUP_PREFIX", orDefault(file.Backup.Prefix, defaultBackupPrefix)), "/"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readFile(path string) (*fileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	var file fileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &file, nil
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.NotesPath) == "" {
		errs = append(errs, "NOTES_PATH must not be empty")
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, "LISTEN_ADDR must not be empty")
	}
	if strings.TrimSpace(c.AppVersion) == "" {
		errs = append(errs, "APP_VERSION must not be empty")
	}

	switch c.VersionReport {
	case "features", "defect":
	default:
		errs = append(errs, fmt.Sprintf("VERSION_REPORT must be \"features\" or \"defect\", got %q", c.VersionReport))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel))
	}

	if c.ShutdownTimeout <= 0 {
		errs = append(errs, "SHUTDOWN_TIMEOUT must be positive")
	}

	// Validate rate limit config
	if c.RateLimitConfig.RPS < 0 {
		errs = append(errs, "RATE_LIMIT_RPS must not be negative (0 disables rate limiting)")
	}
	if c.RateLimitConfig.RPS > 0 {
		if c.RateLimitConfig.Burst <= 0 {
			errs = append(errs, "RATE_LIMIT_BURST must be positive when rate limiting is enabled")
		}
		if c.RateLimitConfig.CleanupInterval <= 0 {
			errs = append(errs, "RATE_LIMIT_CLEANUP_INTERVAL must be positive when rate limiting is enabled")
		}
	}

	// Snapshot storage: credentials travel together
	if c.BackupEnabled() {
		if c.Backup.AccessKeyID == "" {
			errs = append(errs, "BACKUP_S3_ACCESS_KEY_ID is required when BACKUP_BUCKET is set")
		}
		if c.Backup.SecretAccessKey == "" {
			errs = append(errs, "BACKUP_S3_SECRET_ACCESS_KEY is required when BACKUP_BUCKET is set")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}

	return nil
}

// BackupEnabled reports whether a snapshot bucket is configured.
func (c *Config) BackupEnabled() bool {
	return c.Backup.Bucket != ""
}

// S3Config returns the client configuration for the snapshot bucket.
// Custom endpoints are addressed path-style.
func (c *Config) S3Config() s3client.Config {
	return s3client.Config{
		Endpoint:        c.Backup.Endpoint,
		Region:          c.Backup.Region,
		AccessKeyID:     c.Backup.AccessKeyID,
		SecretAccessKey: c.Backup.SecretAccessKey,
		BucketName:      c.Backup.Bucket,
		UsePathStyle:    c.Backup.Endpoint != "",
	}
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintf(os.Stderr, "notes server %s starting...\n", c.AppVersion)
	fmt.Fprintf(os.Stderr, "  Log:     %s\n", c.NotesPath)

	if c.RateLimitConfig.RPS > 0 {
		fmt.Fprintf(os.Stderr, "  Limit:   %.1f rps, burst %d per client\n", c.RateLimitConfig.RPS, c.RateLimitConfig.Burst)
	} else {
		fmt.Fprintln(os.Stderr, "  Limit:   disabled")
	}

	if c.BackupEnabled() {
		fmt.Fprintf(os.Stderr, "  Backup:  s3://%s/%s\n", c.Backup.Bucket, c.Backup.Prefix)
	} else {
		fmt.Fprintln(os.Stderr, "  Backup:  disabled (BACKUP_BUCKET unset)")
	}

	fmt.Fprintf(os.Stderr, "  Version: %s report\n", c.VersionReport)
	fmt.Fprintf(os.Stderr, "  Listen:  %s\n", c.ListenAddr)
	fmt.Fprintln(os.Stderr, "")
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func orDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func fileDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
