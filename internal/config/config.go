// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package config

import (
	"time"
)

// Server nicknames select the Overdrive host set.
const (
	ServerProduction = "production"
	ServerTesting    = "testing"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Overdrive   OverdriveConfig   `koanf:"overdrive"`
	Collection  CollectionConfig  `koanf:"collection"`
	Libraries   LibrariesConfig   `koanf:"libraries"`
	Database    DatabaseConfig    `koanf:"database"`
	Credentials CredentialsConfig `koanf:"credentials"`
	Events      EventsConfig      `koanf:"events"`
	Security    SecurityConfig    `koanf:"security"`
	Monitor     MonitorConfig     `koanf:"monitor"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port    int           `koanf:"port"`
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout"`

	// Debug attaches vendor debug detail to problem documents.
	Debug bool `koanf:"debug"`
}

// LoggingConfig holds logging configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// OverdriveConfig holds the vendor integration settings for one Overdrive
// collection: collection credentials, the separate fulfillment credential
// pair and the transport policy applied to every vendor call.
//
// Environment Variables:
//   - OVERDRIVE_CLIENT_KEY / OVERDRIVE_CLIENT_SECRET: collection credentials
//   - OVERDRIVE_WEBSITE_ID: website id used in the patron token scope
//   - OVERDRIVE_LIBRARY_ID: Overdrive library account id
//   - OVERDRIVE_SERVER: production or testing (default: production)
//   - OVERDRIVE_FULFILLMENT_KEY / OVERDRIVE_FULFILLMENT_SECRET: patron auth pair
//   - OVERDRIVE_MAX_RETRY_COUNT: retries per request (default: 5)
//   - OVERDRIVE_TIMEOUT: per-request timeout (default: 20s)
type OverdriveConfig struct {
	ClientKey         string `koanf:"client_key"`
	ClientSecret      string `koanf:"client_secret"`
	WebsiteID         string `koanf:"website_id"`
	LibraryID         string `koanf:"library_id"`
	ServerNickname    string `koanf:"server_nickname"`
	FulfillmentKey    string `koanf:"fulfillment_key"`
	FulfillmentSecret string `koanf:"fulfillment_secret"`

	MaxRetryCount  int           `koanf:"max_retry_count"`
	BackoffBase    time.Duration `koanf:"backoff_base"`
	BackoffMax     time.Duration `koanf:"backoff_max"`
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// BatchConcurrency bounds parallel metadata/availability lookups.
	BatchConcurrency int `koanf:"batch_concurrency"`

	// RequestsPerSecond limits outbound traffic; 0 disables the limiter.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	RequestBurst      int     `koanf:"request_burst"`

	CircuitBreaker bool `koanf:"circuit_breaker"`
}

// CollectionConfig identifies the local collection the integration manages.
// ParentID and AdvantageLibraryID are set for Overdrive Advantage child
// collections.
type CollectionConfig struct {
	ID                 int64  `koanf:"id"`
	Name               string `koanf:"name"`
	ExternalAccountID  string `koanf:"external_account_id"`
	ParentID           int64  `koanf:"parent_id"`
	AdvantageLibraryID string `koanf:"advantage_library_id"`
}

// LibrariesConfig maps library short names to the ILS name sent in the
// patron token scope.
type LibrariesConfig struct {
	DefaultILSName string            `koanf:"default_ils_name"`
	ILSNames       map[string]string `koanf:"ils_names"`
}

// ILSName returns the configured ILS name for a library, falling back to
// the default.
func (l LibrariesConfig) ILSName(libraryShortName string) string {
	if name, ok := l.ILSNames[libraryShortName]; ok && name != "" {
		return name
	}
	if l.DefaultILSName == "" {
		return "default"
	}
	return l.DefaultILSName
}

// DatabaseConfig selects the SQL store.
type DatabaseConfig struct {
	// Driver is one of duckdb, postgres, sqlite3, or memory.
	Driver       string `koanf:"driver"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
}

// CredentialsConfig selects where patron tokens are persisted.
type CredentialsConfig struct {
	// Backend is one of memory, badger, redis, or database.
	Backend       string `koanf:"backend"`
	BadgerPath    string `koanf:"badger_path"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	KeyPrefix     string `koanf:"key_prefix"`

	// EncryptionSecret enables AES-GCM encryption of tokens at rest.
	EncryptionSecret string `koanf:"encryption_secret"`
}

// EventsConfig controls circulation event publishing. Backend is one of
// gochannel, nats or embedded; embedded runs a JetStream server in process
// and keeps its streams under StoreDir.
type EventsConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Backend  string `koanf:"backend"`
	NATSURL  string `koanf:"nats_url"`
	Topic    string `koanf:"topic"`
	StoreDir string `koanf:"store_dir"`
}

// SecurityConfig holds API authentication and request limiting settings.
type SecurityConfig struct {
	JWTSecret         string        `koanf:"jwt_secret"`
	AuthDisabled      bool          `koanf:"auth_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// MonitorConfig controls the recent-changes circulation monitor.
type MonitorConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
	Overlap  time.Duration `koanf:"overlap"`
}

// Load loads configuration from defaults, an optional YAML file and the
// environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// Testing reports whether the integration talks to the Overdrive integration hosts.
func (o OverdriveConfig) Testing() bool {
	return o.ServerNickname == ServerTesting
}
