// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package overdrive

import (
	"net/url"
	"strings"
)

var querySafe = strings.NewReplacer("+", "%2B", ":", "%3A", "{", "%7B", "}", "%7D")

// MakeLinkSafe prepares a link taken from an Overdrive document for reuse.
// The path is percent-encoded, availability links are moved to the v2 API
// and the query characters Overdrive leaves raw are escaped.
func MakeLinkSafe(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	path := quotePath(u.Path)
	if strings.HasPrefix(path, "/v1/collections/") &&
		(strings.HasSuffix(path, "/availability") || strings.HasSuffix(path, "/availability/")) {
		path = strings.Replace(path, "/v1/collections/", "/v2/collections/", 1)
	}

	var b strings.Builder
	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteString("://")
	}
	b.WriteString(u.Host)
	b.WriteString(path)
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(querySafe.Replace(u.RawQuery))
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.EscapedFragment())
	}
	return b.String()
}

// quotePath percent-encodes everything in p except unreserved characters
// and slashes.
func quotePath(p string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~', c == '/':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&15])
		}
	}
	return b.String()
}
