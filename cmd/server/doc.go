// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

// @title Circulation API
// @version 1.0
// @description Patron circulation and bookshelf sync against an Overdrive collection.
//
// @contact.name GitHub Repository
// @contact.url https://github.com/tomtom215/circulation/issues
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @host localhost:6500
// @BasePath /
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Staff JWT, sent as "Bearer <token>".

//go:generate swag init --dir ../../ --generalInfo cmd/server/doc.go --output ../../docs --outputTypes go --exclude _examples

/*
Package main is the entry point for the circulation server.

The server exposes patron circulation (borrow, return, fulfill, hold) and
bookshelf sync for one Overdrive collection over a REST API, and keeps
local availability current with a background monitor.

# Process Tree

	RootSupervisor ("circulation")
	├── VendorSupervisor ("vendor-layer")
	│   └── Circulation monitor (MONITOR_ENABLED)
	└── APISupervisor ("api-layer")
	    └── HTTP server

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config.yaml and environment
 2. Logging: zerolog, level and format from LOG_LEVEL / LOG_FORMAT;
    reapplied when config.yaml changes
 3. Storage: database (DATABASE_DRIVER) plus the credential store
 4. Vendor: Overdrive API client, bookshelf syncer and monitor
 5. HTTP: chi router behind JWT and casbin authorization, with the
    OpenAPI document served at /swagger/
 6. Supervisor: suture v4 tree started with signal-aware context

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP service drains open
requests for up to 10 seconds; services that fail to stop in time are
logged by name.

# Build

	go build -ldflags "-X main.version=1.2.0" ./cmd/server
*/
package main
