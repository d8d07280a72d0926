// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/circulation/config.yaml",
	"/etc/circulation/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    6500,
			Host:    "0.0.0.0",
			Timeout: 60 * time.Second,
			Debug:   false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Overdrive: OverdriveConfig{
			ServerNickname:    ServerProduction,
			MaxRetryCount:     5,
			BackoffBase:       time.Second,
			BackoffMax:        45 * time.Second,
			RequestTimeout:    20 * time.Second,
			BatchConcurrency:  5,
			RequestsPerSecond: 0, // Unlimited
			RequestBurst:      10,
			CircuitBreaker:    true,
		},
		Collection: CollectionConfig{
			ID:   1,
			Name: "Overdrive",
		},
		Libraries: LibrariesConfig{
			DefaultILSName: "default",
			ILSNames:       map[string]string{},
		},
		Database: DatabaseConfig{
			Driver:       "duckdb",
			DSN:          "/data/circulation.duckdb",
			MaxOpenConns: 4,
		},
		Credentials: CredentialsConfig{
			Backend:    "database",
			BadgerPath: "/data/credentials",
			RedisAddr:  "127.0.0.1:6379",
			KeyPrefix:  "circulation:",
		},
		Events: EventsConfig{
			Enabled:  true,
			Backend:  "gochannel",
			NATSURL:  "nats://127.0.0.1:4222",
			Topic:    "circulation_events",
			StoreDir: "/data/events",
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Monitor: MonitorConfig{
			Enabled:  true,
			Interval: 15 * time.Minute,
			Overlap:  time.Minute,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak
// into the configuration.
var envMappings = map[string]string{
	// Server
	"http_port":    "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",
	"debug":        "server.debug",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Overdrive
	"overdrive_client_key":          "overdrive.client_key",
	"overdrive_client_secret":       "overdrive.client_secret",
	"overdrive_website_id":          "overdrive.website_id",
	"overdrive_library_id":          "overdrive.library_id",
	"overdrive_server":              "overdrive.server_nickname",
	"overdrive_fulfillment_key":     "overdrive.fulfillment_key",
	"overdrive_fulfillment_secret":  "overdrive.fulfillment_secret",
	"overdrive_max_retry_count":     "overdrive.max_retry_count",
	"overdrive_backoff_base":        "overdrive.backoff_base",
	"overdrive_backoff_max":         "overdrive.backoff_max",
	"overdrive_timeout":             "overdrive.request_timeout",
	"overdrive_batch_concurrency":   "overdrive.batch_concurrency",
	"overdrive_requests_per_second": "overdrive.requests_per_second",
	"overdrive_request_burst":       "overdrive.request_burst",
	"overdrive_circuit_breaker":     "overdrive.circuit_breaker",

	// Collection / library
	"collection_id":                  "collection.id",
	"collection_name":                "collection.name",
	"collection_external_account_id": "collection.external_account_id",
	"collection_parent_id":           "collection.parent_id",
	"overdrive_advantage_library_id": "collection.advantage_library_id",
	"overdrive_ils_name":             "libraries.default_ils_name",

	// Database
	"database_driver":         "database.driver",
	"database_dsn":            "database.dsn",
	"database_max_open_conns": "database.max_open_conns",

	// Credential store
	"credential_store":             "credentials.backend",
	"credential_store_path":        "credentials.badger_path",
	"redis_addr":                   "credentials.redis_addr",
	"redis_password":               "credentials.redis_password",
	"redis_db":                     "credentials.redis_db",
	"credential_key_prefix":        "credentials.key_prefix",
	"credential_encryption_secret": "credentials.encryption_secret",

	// Circulation events
	"events_enabled":   "events.enabled",
	"events_backend":   "events.backend",
	"nats_url":         "events.nats_url",
	"events_topic":     "events.topic",
	"events_store_dir": "events.store_dir",

	// Security
	"jwt_secret":          "security.jwt_secret",
	"auth_disabled":       "security.auth_disabled",
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	// Circulation monitor
	"monitor_enabled":  "monitor.enabled",
	"monitor_interval": "monitor.interval",
	"monitor_overlap":  "monitor.overlap",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - OVERDRIVE_CLIENT_KEY -> overdrive.client_key
//   - OVERDRIVE_SERVER -> overdrive.server_nickname
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// ConfigFile returns the YAML file Load reads, or "" when there is none.
func ConfigFile() string {
	return findConfigFile()
}

// WatchConfigFile reloads the whole configuration each time path changes
// and hands the result to onReload. Reloads that fail validation pass the
// error instead; the caller decides which settings apply without a restart.
func WatchConfigFile(path string, onReload func(*Config, error)) error {
	return file.Provider(path).Watch(func(_ interface{}, err error) {
		if err != nil {
			onReload(nil, err)
			return
		}
		onReload(LoadWithKoanf())
	})
}
