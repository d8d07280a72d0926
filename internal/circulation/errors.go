// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package circulation

import (
	"errors"
	"fmt"
)

// Kind identifies one member of the closed circulation failure taxonomy.
type Kind int

const (
	KindUnknown Kind = iota
	KindCannotLoan
	KindCannotHold
	KindCannotRenew
	KindCannotReturn
	KindCannotFulfill
	KindCannotReleaseHold
	KindFormatNotAvailable
	KindNoAcceptableFormat
	KindFulfilledOnIncompatiblePlatform
	KindPatronLoanLimitReached
	KindPatronHoldLimitReached
	KindAlreadyOnHold
	KindAlreadyCheckedOut
	KindNotCheckedOut
	KindNoActiveLoan
	KindNoAvailableCopies
	KindPatronAuthorizationFailed
)

var kindNames = map[Kind]string{
	KindUnknown:                         "Unknown",
	KindCannotLoan:                      "CannotLoan",
	KindCannotHold:                      "CannotHold",
	KindCannotRenew:                     "CannotRenew",
	KindCannotReturn:                    "CannotReturn",
	KindCannotFulfill:                   "CannotFulfill",
	KindCannotReleaseHold:               "CannotReleaseHold",
	KindFormatNotAvailable:              "FormatNotAvailable",
	KindNoAcceptableFormat:              "NoAcceptableFormat",
	KindFulfilledOnIncompatiblePlatform: "FulfilledOnIncompatiblePlatform",
	KindPatronLoanLimitReached:          "PatronLoanLimitReached",
	KindPatronHoldLimitReached:          "PatronHoldLimitReached",
	KindAlreadyOnHold:                   "AlreadyOnHold",
	KindAlreadyCheckedOut:               "AlreadyCheckedOut",
	KindNotCheckedOut:                   "NotCheckedOut",
	KindNoActiveLoan:                    "NoActiveLoan",
	KindNoAvailableCopies:               "NoAvailableCopies",
	KindPatronAuthorizationFailed:       "PatronAuthorizationFailed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Kinds returns every taxonomy member except KindUnknown.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindNames)-1)
	for k := KindCannotLoan; k <= KindPatronAuthorizationFailed; k++ {
		out = append(out, k)
	}
	return out
}

// Error is a circulation-semantic failure. Message is safe to show to a
// patron; Debug carries the raw vendor detail for operators.
//
// errors.Is matches on Kind, so callers compare against the sentinels:
//
//	if errors.Is(err, circulation.ErrNoAvailableCopies) { ... }
type Error struct {
	Kind    Kind
	Message string
	Debug   string
	Err     error
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithDebug returns a copy of e carrying debug detail.
func (e *Error) WithDebug(debug string) *Error {
	c := *e
	c.Debug = debug
	return &c
}

// Wrap returns a copy of e that unwraps to cause.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Sentinels for errors.Is comparisons. Never return these directly; build a
// fresh value with New so the message belongs to the call.
var (
	ErrCannotLoan                      = New(KindCannotLoan, "")
	ErrCannotHold                      = New(KindCannotHold, "")
	ErrCannotRenew                     = New(KindCannotRenew, "")
	ErrCannotReturn                    = New(KindCannotReturn, "")
	ErrCannotFulfill                   = New(KindCannotFulfill, "")
	ErrCannotReleaseHold               = New(KindCannotReleaseHold, "")
	ErrFormatNotAvailable              = New(KindFormatNotAvailable, "")
	ErrNoAcceptableFormat              = New(KindNoAcceptableFormat, "")
	ErrFulfilledOnIncompatiblePlatform = New(KindFulfilledOnIncompatiblePlatform, "")
	ErrPatronLoanLimitReached          = New(KindPatronLoanLimitReached, "")
	ErrPatronHoldLimitReached          = New(KindPatronHoldLimitReached, "")
	ErrAlreadyOnHold                   = New(KindAlreadyOnHold, "")
	ErrAlreadyCheckedOut               = New(KindAlreadyCheckedOut, "")
	ErrNotCheckedOut                   = New(KindNotCheckedOut, "")
	ErrNoActiveLoan                    = New(KindNoActiveLoan, "")
	ErrNoAvailableCopies               = New(KindNoAvailableCopies, "")
	ErrPatronAuthorizationFailed       = New(KindPatronAuthorizationFailed, "")
)
