// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/tomtom215/circulation/internal/models"
)

func credentialWhere(key models.CredentialKey) goqu.Ex {
	return goqu.Ex{
		"data_source":   key.DataSource,
		"type":          key.Type,
		"patron_id":     key.PatronID,
		"collection_id": key.CollectionID,
	}
}

// GetCredential returns the credential stored under key.
func (s *Store) GetCredential(ctx context.Context, key models.CredentialKey) (*models.Credential, error) {
	var c models.Credential
	err := get(ctx, s.db, &c, s.from(tableCredentials).
		Select("data_source", "type", "patron_id", "collection_id", "credential", "expires").
		Where(credentialWhere(key)))
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// PutCredential replaces the credential stored under c.Key().
func (s *Store) PutCredential(ctx context.Context, c *models.Credential) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := exec(ctx, tx, s.delete(tableCredentials).Where(credentialWhere(c.Key()))); err != nil {
			return fmt.Errorf("replace credential: %w", err)
		}
		_, err := exec(ctx, tx, s.insert(tableCredentials).Rows(goqu.Record{
			"data_source":   c.DataSource,
			"type":          c.Type,
			"patron_id":     c.PatronID,
			"collection_id": c.CollectionID,
			"credential":    c.Credential,
			"expires":       c.Expires.UTC(),
		}))
		if err != nil {
			return fmt.Errorf("insert credential: %w", err)
		}
		return nil
	})
}

// DeleteCredential removes the credential stored under key.
func (s *Store) DeleteCredential(ctx context.Context, key models.CredentialKey) error {
	n, err := exec(ctx, s.db, s.delete(tableCredentials).Where(credentialWhere(key)))
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CreateLibrary inserts a library and returns it with its id.
func (s *Store) CreateLibrary(ctx context.Context, l models.Library) (*models.Library, error) {
	if _, err := exec(ctx, s.db, s.insert(tableLibraries).Rows(goqu.Record{"short_name": l.ShortName})); err != nil {
		return nil, fmt.Errorf("insert library: %w", err)
	}
	var out models.Library
	if err := get(ctx, s.db, &out, s.from(tableLibraries).Select("id", "short_name").
		Where(goqu.Ex{"short_name": l.ShortName})); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLibrary returns a library by id.
func (s *Store) GetLibrary(ctx context.Context, id int64) (*models.Library, error) {
	var l models.Library
	if err := get(ctx, s.db, &l, s.from(tableLibraries).Select("id", "short_name").Where(goqu.Ex{"id": id})); err != nil {
		return nil, err
	}
	return &l, nil
}

// CreatePatron inserts a patron and returns it with its id.
func (s *Store) CreatePatron(ctx context.Context, p models.Patron) (*models.Patron, error) {
	var out *models.Patron
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := exec(ctx, tx, s.insert(tablePatrons).Rows(goqu.Record{
			"library_id":               p.LibraryID,
			"authorization_identifier": p.AuthorizationIdentifier,
		})); err != nil {
			return fmt.Errorf("insert patron: %w", err)
		}
		var created models.Patron
		if err := get(ctx, tx, &created, s.from(tablePatrons).
			Select("id", "library_id", "authorization_identifier").
			Order(goqu.I("id").Desc()).Limit(1)); err != nil {
			return err
		}
		out = &created
		return nil
	})
	return out, err
}

// GetPatron returns a patron by id.
func (s *Store) GetPatron(ctx context.Context, id int64) (*models.Patron, error) {
	var p models.Patron
	if err := get(ctx, s.db, &p, s.from(tablePatrons).
		Select("id", "library_id", "authorization_identifier").
		Where(goqu.Ex{"id": id})); err != nil {
		return nil, err
	}
	return &p, nil
}

var collectionColumns = []any{"id", "name", "data_source", "external_account_id", "parent_id"}

// CreateCollection inserts a collection and returns it with its id.
func (s *Store) CreateCollection(ctx context.Context, c models.Collection) (*models.Collection, error) {
	var out *models.Collection
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := exec(ctx, tx, s.insert(tableCollections).Rows(goqu.Record{
			"name":                c.Name,
			"data_source":         c.DataSource,
			"external_account_id": c.ExternalAccountID,
			"parent_id":           c.ParentID,
		})); err != nil {
			return fmt.Errorf("insert collection: %w", err)
		}
		var created models.Collection
		if err := get(ctx, tx, &created, s.from(tableCollections).Select(collectionColumns...).
			Order(goqu.I("id").Desc()).Limit(1)); err != nil {
			return err
		}
		out = &created
		return nil
	})
	return out, err
}

// GetCollection returns a collection by id.
func (s *Store) GetCollection(ctx context.Context, id int64) (*models.Collection, error) {
	var c models.Collection
	if err := get(ctx, s.db, &c, s.from(tableCollections).Select(collectionColumns...).Where(goqu.Ex{"id": id})); err != nil {
		return nil, err
	}
	return &c, nil
}

// FindCollection returns the collection with the given name.
func (s *Store) FindCollection(ctx context.Context, name string) (*models.Collection, error) {
	var c models.Collection
	err := get(ctx, s.db, &c, s.from(tableCollections).Select(collectionColumns...).Where(goqu.Ex{"name": name}))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find collection %q: %w", name, err)
	}
	return &c, nil
}
