// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/circulation/internal/config"
	"github.com/tomtom215/circulation/internal/models"
)

// expiryGrace keeps a credential in a key-value backend for a while after
// it expires so the engine can tell "expired" from "never issued".
const expiryGrace = 24 * time.Hour

// DefaultKeyPrefix namespaces credential keys in shared backends.
const DefaultKeyPrefix = "circulation:"

// credentialCodec serializes credentials for key-value backends and
// encrypts the token when an encryptor is configured.
type credentialCodec struct {
	prefix    string
	encryptor *config.CredentialEncryptor
}

func newCredentialCodec(prefix string, encryptor *config.CredentialEncryptor) credentialCodec {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return credentialCodec{prefix: prefix, encryptor: encryptor}
}

// key renders the natural key. Data source and type may contain spaces but
// never the separator.
func (c credentialCodec) key(k models.CredentialKey) string {
	return c.prefix + "credential|" + naturalKey(k)
}

// naturalKey is also the encryption binding, so it ignores the prefix.
func naturalKey(k models.CredentialKey) string {
	return strings.Join([]string{
		k.DataSource,
		k.Type,
		strconv.FormatInt(k.PatronID, 10),
		strconv.FormatInt(k.CollectionID, 10),
	}, "|")
}

func (c credentialCodec) marshal(cred *models.Credential) ([]byte, error) {
	stored := *cred
	if c.encryptor != nil && stored.Credential != "" {
		sealed, err := c.encryptor.Seal(stored.Credential, []byte(naturalKey(stored.Key())))
		if err != nil {
			return nil, fmt.Errorf("encrypt credential: %w", err)
		}
		stored.Credential = sealed
	}
	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("marshal credential: %w", err)
	}
	return data, nil
}

func (c credentialCodec) unmarshal(data []byte) (*models.Credential, error) {
	var cred models.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("unmarshal credential: %w", err)
	}
	// Tokens written before encryption was enabled are read as-is and
	// sealed on the next write.
	if c.encryptor != nil && config.IsSealed(cred.Credential) {
		plain, err := c.encryptor.Open(cred.Credential, []byte(naturalKey(cred.Key())))
		if err != nil {
			return nil, fmt.Errorf("decrypt credential: %w", err)
		}
		cred.Credential = plain
	}
	return &cred, nil
}

// ttl is how long the backend should keep cred. Zero means no expiry.
func ttl(cred *models.Credential, now time.Time) time.Duration {
	if cred.Expires.IsZero() {
		return 0
	}
	if d := cred.Expires.Add(expiryGrace).Sub(now); d > 0 {
		return d
	}
	return time.Second
}
