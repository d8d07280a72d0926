// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package overdrive

import (
	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/httpclient"
	"github.com/tomtom215/circulation/internal/logging"
)

const defaultErrorMessage = "Unknown Overdrive error"

// vendorErrorKinds maps Overdrive error codes onto the circulation
// taxonomy. Codes not listed surface as *ResponseError.
var vendorErrorKinds = map[string]circulation.Kind{
	"TitleNotCheckedOut":                    circulation.KindNoActiveLoan,
	"NoCopiesAvailable":                     circulation.KindNoAvailableCopies,
	"PatronHasExceededCheckoutLimit":        circulation.KindPatronLoanLimitReached,
	"PatronHasExceededCheckoutLimit_ForCPC": circulation.KindPatronLoanLimitReached,
	"TitleAlreadyCheckedOut":                circulation.KindAlreadyCheckedOut,
	"AlreadyOnWaitList":                     circulation.KindAlreadyOnHold,
	"NotWithinRenewalWindow":                circulation.KindCannotRenew,
	"PatronExceededHoldLimit":               circulation.KindPatronHoldLimitReached,
	"PatronTitleProcessingFailed":           circulation.KindFormatNotAvailable,
}

// ResponseError is an Overdrive error document with a code this package
// has no circulation meaning for.
type ResponseError struct {
	*httpclient.BadResponseError
	Code    string
	Message string
	Token   string
}

func (e *ResponseError) Error() string {
	if e.Code == "" {
		return "Overdrive error: " + e.Message
	}
	return "Overdrive error " + e.Code + ": " + e.Message
}

func (e *ResponseError) Unwrap() error { return e.BadResponseError }

// ValidationError reports a vendor document that could not be decoded or
// did not have the expected shape. Body holds the offending document.
type ValidationError struct {
	*httpclient.BadResponseError
	Err error
}

func newValidationError(resp *httpclient.Response, err error) *ValidationError {
	return &ValidationError{
		BadResponseError: httpclient.NewBadResponseError(resp.URL, "Error validating Overdrive response", resp, ""),
		Err:              err,
	}
}

func (e *ValidationError) Error() string {
	return e.BadResponseError.Error() + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() []error { return []error{e.BadResponseError, e.Err} }

// errorFromResponse converts a failed vendor response into the most
// specific error available. Codes in vendorErrorKinds become
// *circulation.Error; anything else becomes *ResponseError.
func errorFromResponse(resp *httpclient.Response) error {
	bad := httpclient.NewBadResponseError(resp.URL, defaultErrorMessage, resp, "")

	doc := parseErrorResponse(resp.Body)
	if doc == nil {
		logging.Warn().
			Int("status", resp.StatusCode).
			Str("body", logging.Truncate(string(resp.Body), 512)).
			Msg("Unparseable Overdrive error response")
		return &ResponseError{BadResponseError: bad, Message: defaultErrorMessage}
	}

	if kind, ok := vendorErrorKinds[doc.Code()]; ok {
		return circulation.New(kind, doc.Text()).
			WithDebug(string(resp.Body)).
			Wrap(&ResponseError{BadResponseError: bad, Code: doc.Code(), Message: doc.Text(), Token: doc.Token})
	}

	message := doc.Text()
	if message == "" {
		message = defaultErrorMessage
	}
	return &ResponseError{BadResponseError: bad, Code: doc.Code(), Message: message, Token: doc.Token}
}
