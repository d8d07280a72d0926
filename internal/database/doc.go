// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

/*
Package database implements models.Store on SQL.

Three drivers are supported, selected by config.DatabaseConfig.Driver:

  - duckdb: embedded, the default for single-node deployments
  - postgres: through the pgx stdlib driver, for shared deployments
  - sqlite3: embedded and lightweight, mostly for development

Queries are built with goqu using the dialect of the driver (DuckDB speaks
the PostgreSQL dialect) and run through sqlx, which scans rows into the
model structs. Every query is prepared; values never end up inside SQL
text.

The schema is created on Open with CREATE TABLE IF NOT EXISTS. There is no
migration machinery: the tables mirror the models one to one and the
natural-key constraints of the models become UNIQUE constraints.
*/
package database
