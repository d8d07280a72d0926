// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateOverdrive(); err != nil {
		return err
	}
	if err := c.validateCollection(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateCredentials(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateMonitor()
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// validateOverdrive validates the vendor integration settings
func (c *Config) validateOverdrive() error {
	o := c.Overdrive
	if o.ClientKey == "" || o.ClientSecret == "" {
		return fmt.Errorf("OVERDRIVE_CLIENT_KEY and OVERDRIVE_CLIENT_SECRET are required")
	}
	if o.WebsiteID == "" {
		return fmt.Errorf("OVERDRIVE_WEBSITE_ID is required")
	}
	if o.LibraryID == "" {
		return fmt.Errorf("OVERDRIVE_LIBRARY_ID is required")
	}
	if o.ServerNickname != ServerProduction && o.ServerNickname != ServerTesting {
		return fmt.Errorf("OVERDRIVE_SERVER must be one of: %s, %s", ServerProduction, ServerTesting)
	}
	if (o.FulfillmentKey == "") != (o.FulfillmentSecret == "") {
		return fmt.Errorf("OVERDRIVE_FULFILLMENT_KEY and OVERDRIVE_FULFILLMENT_SECRET must be set together")
	}
	if containsPlaceholder(o.ClientSecret) || containsPlaceholder(o.FulfillmentSecret) {
		return fmt.Errorf("Overdrive secrets contain a placeholder value")
	}
	if o.MaxRetryCount < 0 || o.MaxRetryCount > 10 {
		return fmt.Errorf("OVERDRIVE_MAX_RETRY_COUNT must be between 0 and 10")
	}
	if o.BackoffBase < 0 || o.BackoffMax < o.BackoffBase {
		return fmt.Errorf("OVERDRIVE_BACKOFF_MAX must be greater than or equal to OVERDRIVE_BACKOFF_BASE")
	}
	if o.RequestTimeout <= 0 {
		return fmt.Errorf("OVERDRIVE_TIMEOUT must be positive")
	}
	if o.BatchConcurrency < 1 {
		return fmt.Errorf("OVERDRIVE_BATCH_CONCURRENCY must be at least 1")
	}
	if o.RequestsPerSecond < 0 {
		return fmt.Errorf("OVERDRIVE_REQUESTS_PER_SECOND cannot be negative")
	}
	if o.RequestsPerSecond > 0 && o.RequestBurst < 1 {
		return fmt.Errorf("OVERDRIVE_REQUEST_BURST must be at least 1 when rate limiting is enabled")
	}
	return nil
}

// validateCollection validates the managed collection
func (c *Config) validateCollection() error {
	if c.Collection.ID <= 0 {
		return fmt.Errorf("COLLECTION_ID must be positive")
	}
	if c.Collection.ParentID != 0 && c.Collection.AdvantageLibraryID == "" {
		return fmt.Errorf("OVERDRIVE_ADVANTAGE_LIBRARY_ID is required for Advantage collections")
	}
	return nil
}

var validDatabaseDrivers = map[string]bool{
	"duckdb":   true,
	"postgres": true,
	"sqlite3":  true,
	"memory":   true,
}

// validateDatabase validates database configuration
func (c *Config) validateDatabase() error {
	if !validDatabaseDrivers[c.Database.Driver] {
		return fmt.Errorf("DATABASE_DRIVER must be one of: duckdb, postgres, sqlite3, memory")
	}
	if c.Database.Driver != "memory" && c.Database.DSN == "" {
		return fmt.Errorf("DATABASE_DSN is required for driver %s", c.Database.Driver)
	}
	return nil
}

// validateCredentials validates the patron credential store
func (c *Config) validateCredentials() error {
	switch c.Credentials.Backend {
	case "memory":
	case "database":
		if c.Database.Driver == "memory" {
			return fmt.Errorf("CREDENTIAL_STORE=database requires a SQL DATABASE_DRIVER")
		}
	case "badger":
		if c.Credentials.BadgerPath == "" {
			return fmt.Errorf("CREDENTIAL_STORE_PATH is required when CREDENTIAL_STORE=badger")
		}
	case "redis":
		if c.Credentials.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when CREDENTIAL_STORE=redis")
		}
	default:
		return fmt.Errorf("CREDENTIAL_STORE must be one of: memory, database, badger, redis")
	}
	if c.Credentials.EncryptionSecret != "" && len(c.Credentials.EncryptionSecret) < 32 {
		return fmt.Errorf("CREDENTIAL_ENCRYPTION_SECRET must be at least 32 characters")
	}
	return nil
}

// validateEvents validates circulation event publishing
func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	if c.Events.Topic == "" {
		return fmt.Errorf("EVENTS_TOPIC is required when events are enabled")
	}
	switch c.Events.Backend {
	case "gochannel":
		return nil
	case "nats":
		if err := validateStreamTopic(c.Events.Topic); err != nil {
			return err
		}
		return validateNATSURL(c.Events.NATSURL)
	case "embedded":
		if err := validateStreamTopic(c.Events.Topic); err != nil {
			return err
		}
		if c.Events.StoreDir == "" {
			return fmt.Errorf("EVENTS_STORE_DIR is required for the embedded backend")
		}
		return nil
	default:
		return fmt.Errorf("EVENTS_BACKEND must be one of: gochannel, nats, embedded")
	}
}

// validateStreamTopic rejects topics JetStream cannot use as a stream name.
func validateStreamTopic(topic string) error {
	if strings.ContainsAny(topic, ".*> \t") {
		return fmt.Errorf("EVENTS_TOPIC %q must not contain '.', '*', '>' or whitespace with a NATS backend", topic)
	}
	return nil
}

// validateNATSURL validates that the NATS URL is properly formatted
func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("NATS_URL failed to parse URL: %w", err)
	}
	switch parsedURL.Scheme {
	case "nats", "tls", "ws", "wss":
	default:
		return fmt.Errorf("NATS_URL scheme must be nats, tls, ws or wss, got: %s", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("NATS_URL host is required")
	}
	return nil
}

// validateSecurity validates security configuration
func (c *Config) validateSecurity() error {
	if !c.Security.AuthDisabled {
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters (or set AUTH_DISABLED=true)")
		}
		if containsPlaceholder(c.Security.JWTSecret) {
			return fmt.Errorf("JWT_SECRET contains a placeholder value")
		}
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
		}
	}
	return nil
}

// validateMonitor validates the circulation monitor
func (c *Config) validateMonitor() error {
	if !c.Monitor.Enabled {
		return nil
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("MONITOR_INTERVAL must be positive")
	}
	if c.Monitor.Overlap < 0 {
		return fmt.Errorf("MONITOR_OVERLAP cannot be negative")
	}
	return nil
}

// placeholderPatterns defines common placeholder patterns that indicate
// the user forgot to set a real value.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_SECRET",
	"PLACEHOLDER",
	"EXAMPLE",
}

// containsPlaceholder checks if a value contains common placeholder patterns.
func containsPlaceholder(value string) bool {
	upperValue := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upperValue, pattern) {
			return true
		}
	}
	return false
}
