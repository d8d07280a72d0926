// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

/*
Package auth protects vendor credentials at rest and decides who may call
the circulation API.

Credential stores:

  - BadgerCredentialStore keeps patron bearer tokens in an embedded
    BadgerDB directory; suitable for a single instance.
  - RedisCredentialStore shares tokens between instances through Redis.

Both seal the token with config.CredentialEncryptor when an encryption
secret is configured, bound to the credential's natural key; tokens stored
before encryption was enabled are still readable. Both let the backend expire entries a day after
the vendor token itself expires. WithCredentialStore overlays either on a
models.Store so the circulation engine keeps using one store value.

API access:

  - JWTVerifier checks HS256 bearer tokens minted by the controller layer
    and yields a Subject (sub claim plus roles).
  - Enforcer evaluates an embedded casbin model: staff may call every
    route, a patron only the routes under its own patron id.
  - Middleware ties both together for chi.
*/
package auth
