// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package auth

import (
	"context"
	"fmt"
	"io"

	"github.com/tomtom215/circulation/internal/config"
	"github.com/tomtom215/circulation/internal/logging"
	"github.com/tomtom215/circulation/internal/models"
)

// Credential backends.
const (
	BackendMemory   = "memory"
	BackendDatabase = "database"
	BackendBadger   = "badger"
	BackendRedis    = "redis"
)

// overlayStore serves credentials from one store and everything else from
// another.
type overlayStore struct {
	models.Store
	credentials models.CredentialStore
}

func (o *overlayStore) GetCredential(ctx context.Context, key models.CredentialKey) (*models.Credential, error) {
	return o.credentials.GetCredential(ctx, key)
}

func (o *overlayStore) PutCredential(ctx context.Context, c *models.Credential) error {
	return o.credentials.PutCredential(ctx, c)
}

func (o *overlayStore) DeleteCredential(ctx context.Context, key models.CredentialKey) error {
	return o.credentials.DeleteCredential(ctx, key)
}

// WithCredentialStore returns base with its credential methods served by
// creds. A nil creds returns base unchanged.
func WithCredentialStore(base models.Store, creds models.CredentialStore) models.Store {
	if creds == nil {
		return base
	}
	return &overlayStore{Store: base, credentials: creds}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewCredentialStore builds the configured credential backend. For the
// memory and database backends it returns nil: the primary store already
// keeps credentials. The closer releases the backend.
func NewCredentialStore(ctx context.Context, cfg config.CredentialsConfig) (models.CredentialStore, io.Closer, error) {
	var encryptor *config.CredentialEncryptor
	if cfg.EncryptionSecret != "" {
		var err error
		if encryptor, err = config.NewCredentialEncryptor(cfg.EncryptionSecret); err != nil {
			return nil, nil, fmt.Errorf("credential encryption: %w", err)
		}
	}

	switch cfg.Backend {
	case "", BackendMemory, BackendDatabase:
		return nil, nopCloser{}, nil
	case BackendBadger:
		db, err := OpenBadger(cfg.BadgerPath)
		if err != nil {
			return nil, nil, err
		}
		logging.Info().Str("path", cfg.BadgerPath).Bool("encrypted", encryptor != nil).Msg("Using badger credential store")
		return NewBadgerCredentialStore(db, encryptor), db, nil
	case BackendRedis:
		client, err := NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		logging.Info().Str("addr", cfg.RedisAddr).Bool("encrypted", encryptor != nil).Msg("Using redis credential store")
		return NewRedisCredentialStore(client, cfg.KeyPrefix, encryptor), client, nil
	default:
		return nil, nil, fmt.Errorf("unknown credential backend %q", cfg.Backend)
	}
}
