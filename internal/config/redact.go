// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package config

import (
	"fmt"
	"net/url"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Redacted returns a copy of c with every secret masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Overdrive.ClientKey = MaskCredential(c.Overdrive.ClientKey)
	out.Overdrive.ClientSecret = MaskCredential(c.Overdrive.ClientSecret)
	out.Overdrive.FulfillmentKey = MaskCredential(c.Overdrive.FulfillmentKey)
	out.Overdrive.FulfillmentSecret = MaskCredential(c.Overdrive.FulfillmentSecret)
	out.Credentials.RedisPassword = MaskCredential(c.Credentials.RedisPassword)
	out.Credentials.EncryptionSecret = MaskCredential(c.Credentials.EncryptionSecret)
	out.Security.JWTSecret = MaskCredential(c.Security.JWTSecret)
	out.Database.DSN = redactDSN(c.Database.DSN)
	out.Events.NATSURL = redactDSN(c.Events.NATSURL)
	return &out
}

// redactDSN masks the password of URL-shaped connection strings. Other
// forms are returned unchanged.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); !ok {
		return dsn
	}
	return u.Redacted()
}

// YAML renders c with the same keys config.yaml uses.
func (c *Config) YAML() ([]byte, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(c, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return k.Marshal(yaml.Parser())
}
