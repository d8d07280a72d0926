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

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/circulation/internal/config"
	"github.com/tomtom215/circulation/internal/models"
)

// RedisCredentialStore implements models.CredentialStore on Redis so that
// several service instances share patron tokens.
type RedisCredentialStore struct {
	client redis.Cmdable
	codec  credentialCodec
	now    func() time.Time
}

// NewRedisClient creates a client for the configured address and checks
// that the server answers.
func NewRedisClient(ctx context.Context, cfg config.CredentialsConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

// NewRedisCredentialStore wraps client. Keys start with prefix
// (DefaultKeyPrefix when empty); encryptor may be nil.
func NewRedisCredentialStore(client redis.Cmdable, prefix string, encryptor *config.CredentialEncryptor) *RedisCredentialStore {
	return &RedisCredentialStore{client: client, codec: newCredentialCodec(prefix, encryptor), now: time.Now}
}

// GetCredential returns the credential stored under key.
func (s *RedisCredentialStore) GetCredential(ctx context.Context, key models.CredentialKey) (*models.Credential, error) {
	data, err := s.client.Get(ctx, s.codec.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return s.codec.unmarshal(data)
}

// PutCredential replaces the credential stored under c.Key().
func (s *RedisCredentialStore) PutCredential(ctx context.Context, c *models.Credential) error {
	data, err := s.codec.marshal(c)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.codec.key(c.Key()), data, ttl(c, s.now())).Err(); err != nil {
		return fmt.Errorf("set credential: %w", err)
	}
	return nil
}

// DeleteCredential removes the credential stored under key.
func (s *RedisCredentialStore) DeleteCredential(ctx context.Context, key models.CredentialKey) error {
	n, err := s.client.Del(ctx, s.codec.key(key)).Result()
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
