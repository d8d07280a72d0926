// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package auth

import (
	"context"
	"slices"
)

// Roles understood by the embedded policy.
const (
	RolePatron = "patron"
	RoleStaff  = "staff"
)

// Subject is an authenticated API caller. For a patron, ID is the patron id
// as a decimal string.
type Subject struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles,omitempty"`
}

// HasRole reports whether the subject carries role.
func (s *Subject) HasRole(role string) bool {
	return s != nil && role != "" && slices.Contains(s.Roles, role)
}

type subjectKey struct{}

// ContextWithSubject returns a context carrying s.
func ContextWithSubject(ctx context.Context, s *Subject) context.Context {
	return context.WithValue(ctx, subjectKey{}, s)
}

// SubjectFromContext returns the subject set by the middleware, or nil.
func SubjectFromContext(ctx context.Context) *Subject {
	s, _ := ctx.Value(subjectKey{}).(*Subject)
	return s
}
