// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package database

import (
	"context"
	"fmt"
	"strings"
)

// Table names.
const (
	tableLibraries   = "libraries"
	tablePatrons     = "patrons"
	tableCollections = "collections"
	tableCredentials = "credentials"
	tablePools       = "license_pools"
	tableMechanisms  = "delivery_mechanisms"
	tableLoans       = "loans"
	tableHolds       = "holds"
)

// tableDefs holds each table's columns after the id column. {{id}} and
// {{ts}} are replaced per driver.
var tableDefs = []struct {
	name    string
	columns string
}{
	{tableLibraries, `
	{{id}},
	short_name TEXT NOT NULL UNIQUE`},
	{tablePatrons, `
	{{id}},
	library_id BIGINT NOT NULL,
	authorization_identifier TEXT NOT NULL DEFAULT ''`},
	{tableCollections, `
	{{id}},
	name TEXT NOT NULL,
	data_source TEXT NOT NULL,
	external_account_id TEXT NOT NULL DEFAULT '',
	parent_id BIGINT NOT NULL DEFAULT 0`},
	{tableCredentials, `
	data_source TEXT NOT NULL,
	type TEXT NOT NULL,
	patron_id BIGINT NOT NULL DEFAULT 0,
	collection_id BIGINT NOT NULL DEFAULT 0,
	credential TEXT NOT NULL,
	expires {{ts}} NOT NULL,
	PRIMARY KEY (data_source, type, patron_id, collection_id)`},
	{tablePools, `
	{{id}},
	collection_id BIGINT NOT NULL,
	data_source TEXT NOT NULL,
	identifier_type TEXT NOT NULL,
	identifier TEXT NOT NULL,
	licenses_owned INTEGER NOT NULL DEFAULT 0,
	licenses_available INTEGER NOT NULL DEFAULT 0,
	licenses_reserved INTEGER NOT NULL DEFAULT 0,
	patrons_in_hold_queue INTEGER NOT NULL DEFAULT 0,
	last_checked {{ts}},
	work_id BIGINT NOT NULL DEFAULT 0,
	open_access BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (collection_id, data_source, identifier_type, identifier)`},
	{tableMechanisms, `
	{{id}},
	license_pool_id BIGINT NOT NULL,
	content_type TEXT NOT NULL,
	drm_scheme TEXT NOT NULL,
	rights_status TEXT NOT NULL DEFAULT '',
	available BOOLEAN NOT NULL DEFAULT TRUE,
	UNIQUE (license_pool_id, content_type, drm_scheme)`},
	{tableLoans, `
	{{id}},
	patron_id BIGINT NOT NULL,
	license_pool_id BIGINT NOT NULL,
	start_at {{ts}},
	end_at {{ts}},
	fulfillment_id BIGINT NOT NULL DEFAULT 0,
	external_identifier TEXT NOT NULL DEFAULT '',
	UNIQUE (patron_id, license_pool_id)`},
	{tableHolds, `
	{{id}},
	patron_id BIGINT NOT NULL,
	license_pool_id BIGINT NOT NULL,
	start_at {{ts}},
	end_at {{ts}},
	position INTEGER,
	UNIQUE (patron_id, license_pool_id)`},
}

// schemaStatements renders the DDL for the store's driver.
func (s *Store) schemaStatements() []string {
	ts := "TIMESTAMP"
	if s.driver == DriverPostgres {
		ts = "TIMESTAMPTZ"
	}

	var stmts []string
	for _, t := range tableDefs {
		var id string
		switch s.driver {
		case DriverPostgres:
			id = "id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
		case DriverSQLite:
			id = "id INTEGER PRIMARY KEY AUTOINCREMENT"
		default:
			seq := "seq_" + t.name
			stmts = append(stmts, "CREATE SEQUENCE IF NOT EXISTS "+seq)
			id = fmt.Sprintf("id BIGINT PRIMARY KEY DEFAULT nextval('%s')", seq)
		}
		columns := strings.NewReplacer("{{id}}", id, "{{ts}}", ts).Replace(t.columns)
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s\n)", t.name, columns))
	}
	return stmts
}

func (s *Store) createSchema(ctx context.Context) error {
	for _, stmt := range s.schemaStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
