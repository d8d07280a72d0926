// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/circulation/internal/config"
	"github.com/tomtom215/circulation/internal/models"
)

// BadgerCredentialStore implements models.CredentialStore on BadgerDB.
type BadgerCredentialStore struct {
	db    *badger.DB
	codec credentialCodec
	now   func() time.Time
}

// OpenBadger opens (creating if needed) a BadgerDB directory. An empty
// path opens an in-memory database.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for credentials: %w", err)
	}
	return db, nil
}

// NewBadgerCredentialStore wraps db. encryptor may be nil.
func NewBadgerCredentialStore(db *badger.DB, encryptor *config.CredentialEncryptor) *BadgerCredentialStore {
	return &BadgerCredentialStore{db: db, codec: newCredentialCodec("", encryptor), now: time.Now}
}

// GetCredential returns the credential stored under key.
func (s *BadgerCredentialStore) GetCredential(_ context.Context, key models.CredentialKey) (*models.Credential, error) {
	var cred *models.Credential
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(s.codec.key(key)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get credential: %w", err)
		}
		return item.Value(func(val []byte) error {
			cred, err = s.codec.unmarshal(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// PutCredential replaces the credential stored under c.Key().
func (s *BadgerCredentialStore) PutCredential(_ context.Context, c *models.Credential) error {
	data, err := s.codec.marshal(c)
	if err != nil {
		return err
	}
	entry := badger.NewEntry([]byte(s.codec.key(c.Key())), data)
	if d := ttl(c, s.now()); d > 0 {
		entry = entry.WithTTL(d)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(entry); err != nil {
			return fmt.Errorf("set credential: %w", err)
		}
		return nil
	})
}

// DeleteCredential removes the credential stored under key.
func (s *BadgerCredentialStore) DeleteCredential(_ context.Context, key models.CredentialKey) error {
	k := []byte(s.codec.key(key))
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(k); errors.Is(err, badger.ErrKeyNotFound) {
			return models.ErrNotFound
		} else if err != nil {
			return fmt.Errorf("get credential: %w", err)
		}
		if err := txn.Delete(k); err != nil {
			return fmt.Errorf("delete credential: %w", err)
		}
		return nil
	})
}
