// Package config loads daemon configuration from command-line flags, environment variables and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Storage engines accepted by StorageConfig.Engine.
const (
	EngineBadger = "badger"
	EngineSQLite = "sqlite"
	EngineMemory = "memory"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Storage StorageConfig
	Remote  RemoteConfig
	Sync    SyncConfig
	Server  ServerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig selects and locates the offline cache engine.
type StorageConfig struct {
	Path   string // Directory holding the cache files (default: ~/KeepStash/cache)
	Engine string // badger (default), sqlite or memory
}

// RemoteConfig describes the backend-as-a-service holding the authoritative content.
type RemoteConfig struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration // Per fetch/push call (default: 30s)
	PushRate  float64       // Pushes per second per user (default: 5)
	PushBurst int           // Burst size for pushes (default: 5)
}

// SyncConfig controls the reconciler.
type SyncConfig struct {
	UserID        string        // User whose content is hydrated and synced at start-up
	ProbeInterval time.Duration // Connectivity probe period (default: 15s)
	Watch         bool          // Start a cycle whenever connectivity comes back (default: true)
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        // Server port (default: 7474)
	ReadTimeout    time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout   time.Duration // HTTP write timeout (default: 0, SSE streams stay open)
	IdleTimeout    time.Duration // HTTP idle timeout (default: 60s)
	AllowedOrigins []string      // CORS origins of the web UI (default: http://localhost:3000)
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("keepstash", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	storagePath := fs.String("storage-path", "", "Directory for the offline cache")
	storageEngine := fs.String("storage-engine", "", "Offline cache engine (badger, sqlite, memory)")

	remoteURL := fs.String("remote-url", "", "Base URL of the remote content API")
	remoteKey := fs.String("remote-api-key", "", "API key for the remote content API")
	remoteTimeout := fs.String("remote-timeout", "", "Timeout for each remote call (default: 30s)")
	pushRate := fs.String("push-rate", "", "Pushes per second per user (default: 5)")
	pushBurst := fs.String("push-burst", "", "Push burst size (default: 5)")

	syncUser := fs.String("user", "", "User ID to hydrate and sync at start-up")
	probeInterval := fs.String("probe-interval", "", "Connectivity probe interval (default: 15s)")
	syncWatch := fs.String("sync-watch", "", "Sync when connectivity returns (default: true)")

	serverPort := fs.String("port", "", "Server port (default: 7474)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 0)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	allowedOrigins := fs.String("allowed-origins", "", "Comma-separated CORS origins")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			Path:   getConfigValue(*storagePath, "STORAGE_PATH", ""),
			Engine: strings.ToLower(getConfigValue(*storageEngine, "STORAGE_ENGINE", EngineBadger)),
		},
		Remote: RemoteConfig{
			BaseURL:   strings.TrimRight(getConfigValue(*remoteURL, "REMOTE_URL", ""), "/"),
			APIKey:    getConfigValue(*remoteKey, "REMOTE_API_KEY", ""),
			PushRate:  getFloatConfigValue(*pushRate, "PUSH_RATE", 5),
			PushBurst: getIntConfigValue(*pushBurst, "PUSH_BURST", 5),
		},
		Sync: SyncConfig{
			UserID: getConfigValue(*syncUser, "SYNC_USER_ID", ""),
			Watch:  getBoolConfigValue(*syncWatch, "SYNC_WATCH", true),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "7474"),
			AllowedOrigins: splitList(getConfigValue(*allowedOrigins, "ALLOWED_ORIGINS", "http://localhost:3000")),
		},
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Remote.Timeout, *remoteTimeout, "REMOTE_TIMEOUT", "30s"},
		{&cfg.Sync.ProbeInterval, *probeInterval, "PROBE_INTERVAL", "15s"},
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "0s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.envKey), raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandStoragePath(); err != nil {
		return nil, fmt.Errorf("invalid storage path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Storage.Engine {
	case EngineBadger, EngineSQLite:
		if c.Storage.Path == "" {
			return errors.New("storage path cannot be empty for a persistent engine")
		}
	case EngineMemory:
	default:
		return fmt.Errorf("invalid storage engine: %s (must be badger, sqlite, or memory)", c.Storage.Engine)
	}

	if c.Remote.Timeout <= 0 {
		return errors.New("remote timeout must be positive")
	}
	if c.Remote.PushRate <= 0 || c.Remote.PushBurst <= 0 {
		return errors.New("push rate and burst must be positive")
	}
	if c.Sync.ProbeInterval <= 0 {
		return errors.New("probe interval must be positive")
	}

	// An empty remote URL is allowed: the daemon then runs offline-only.

	return nil
}

// HasRemote reports whether a remote content API is configured.
func (c *Config) HasRemote() bool {
	return c.Remote.BaseURL != ""
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandStoragePath defaults the cache directory to ~/KeepStash/cache.
func (c *Config) expandStoragePath() error {
	if c.Storage.Engine == EngineMemory && c.Storage.Path == "" {
		return nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	expanded, err := expandPath(c.Storage.Path, filepath.Join(homeDir, "KeepStash", "cache"))
	if err != nil {
		return err
	}
	c.Storage.Path = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float64 from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
