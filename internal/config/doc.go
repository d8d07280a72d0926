// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

/*
Package config provides layered configuration for the circulation service.

Configuration is resolved in three layers, later layers winning:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: $CONFIG_PATH, ./config.yaml, /etc/circulation/config.yaml
 3. Environment variables, mapped explicitly through envMappings

# Sections

  - server: HTTP listener and debug mode for problem documents
  - logging: zerolog level, format and caller reporting
  - overdrive: collection and fulfillment credentials, host set, retry and
    backoff policy, batch concurrency, rate limiting, circuit breaker
  - collection: the local collection id and Advantage parent information
  - libraries: ILS name per library for the patron token scope
  - database: duckdb, postgres, sqlite3 or memory
  - credentials: where patron tokens live (database, badger, redis, memory)
  - events: analytics publishing (gochannel or NATS)
  - security: API bearer JWT secret, CORS and rate limiting
  - monitor: recent-changes polling

# Example

	OVERDRIVE_CLIENT_KEY=... \
	OVERDRIVE_CLIENT_SECRET=... \
	OVERDRIVE_WEBSITE_ID=100 \
	OVERDRIVE_LIBRARY_ID=1225 \
	OVERDRIVE_SERVER=testing \
	JWT_SECRET=$(openssl rand -hex 32) \
	./circulation

Validate reports the first invalid setting with the environment variable
that controls it.
*/
package config
