// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package circulation

import (
	"errors"
	"net/http"

	"github.com/tomtom215/circulation/internal/httpclient"
)

// ProblemTypePrefix is the namespace of every problem type URI.
const ProblemTypePrefix = "http://librarysimplified.org/terms/problem/"

// ProblemDetail is an RFC 7807 problem document.
type ProblemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	// Debug holds raw vendor detail and is only populated in debug mode.
	Debug string `json:"debug_message,omitempty"`
}

type problemTemplate struct {
	status int
	slug   string
	title  string
	detail string
}

var problems = map[Kind]problemTemplate{
	KindCannotLoan:                      {http.StatusBadGateway, "cannot-issue-loan", "Could not issue loan", "Could not issue loan (reason unknown)."},
	KindCannotHold:                      {http.StatusBadGateway, "cannot-place-hold", "Could not place hold", "Could not place hold (reason unknown)."},
	KindCannotRenew:                     {http.StatusBadRequest, "cannot-renew-loan", "Could not renew loan", "Could not renew loan (reason unknown)."},
	KindCannotReturn:                    {http.StatusBadGateway, "cannot-return-loan", "Could not return loan", "Could not return loan (reason unknown)."},
	KindCannotFulfill:                   {http.StatusBadRequest, "cannot-fulfill-loan", "Could not fulfill loan", "Could not fulfill loan."},
	KindCannotReleaseHold:               {http.StatusBadRequest, "cannot-release-hold", "Could not release hold", "Could not release hold."},
	KindFormatNotAvailable:              {http.StatusBadRequest, "no-acceptable-format", "Format not available", "This book is not available in the format you requested."},
	KindNoAcceptableFormat:              {http.StatusBadRequest, "no-acceptable-format", "No acceptable format", "Could not deliver this book in an acceptable format."},
	KindFulfilledOnIncompatiblePlatform: {http.StatusConflict, "fulfilled-on-incompatible-platform", "Fulfilled on incompatible platform", "This loan was already fulfilled on another platform."},
	KindPatronLoanLimitReached:          {http.StatusForbidden, "loan-limit-reached", "Loan limit reached", "You have reached your loan limit. You cannot borrow anything further until you return something."},
	KindPatronHoldLimitReached:          {http.StatusForbidden, "hold-limit-reached", "Limit reached", "You have reached your hold limit. You cannot place another item on hold until you borrow something or remove a hold."},
	KindAlreadyOnHold:                   {http.StatusBadRequest, "already-on-hold", "Already on hold", "You already have this book on hold."},
	KindAlreadyCheckedOut:               {http.StatusBadRequest, "loan-already-exists", "Already checked out", "You already have this book checked out."},
	KindNotCheckedOut:                   {http.StatusBadRequest, "no-active-loan", "No active loan", "You can't do this without first borrowing this book."},
	KindNoActiveLoan:                    {http.StatusBadRequest, "no-active-loan", "No active loan", "You can't do this without first borrowing this book."},
	KindNoAvailableCopies:               {http.StatusForbidden, "no-licenses", "No licenses", "All licenses for this book are loaned out."},
	KindPatronAuthorizationFailed:       {http.StatusUnauthorized, "invalid-credentials", "Invalid credentials", "The vendor rejected your credentials."},
}

var (
	unknownProblem = problemTemplate{http.StatusInternalServerError, "internal-server-error", "Internal server error", "An internal error occurred."}
	remoteProblem  = problemTemplate{http.StatusBadGateway, "remote-integration-failed", "Failure contacting external service", ""}
)

// Problem maps err onto a problem document. Circulation errors use their
// kind's template with the error's message as detail. Transport errors
// become remote-integration failures. Debug detail is attached only when
// debug is true.
func Problem(err error, debug bool) ProblemDetail {
	var ce *Error
	if errors.As(err, &ce) {
		tpl, ok := problems[ce.Kind]
		if !ok {
			tpl = unknownProblem
		}
		pd := tpl.problem()
		if ce.Message != "" {
			pd.Detail = ce.Message
		}
		if debug {
			pd.Debug = ce.Debug
			if pd.Debug == "" && ce.Err != nil {
				pd.Debug = ce.Err.Error()
			}
		}
		return pd
	}

	var ie httpclient.IntegrationError
	if errors.As(err, &ie) {
		pd := remoteProblem.problem()
		pd.Title = ie.Title()
		pd.Detail = ie.Detail()
		if debug {
			pd.Debug = ie.Error()
		}
		return pd
	}

	pd := unknownProblem.problem()
	if debug && err != nil {
		pd.Debug = err.Error()
	}
	return pd
}

func (t problemTemplate) problem() ProblemDetail {
	return ProblemDetail{
		Type:   ProblemTypePrefix + t.slug,
		Title:  t.title,
		Status: t.status,
		Detail: t.detail,
	}
}
