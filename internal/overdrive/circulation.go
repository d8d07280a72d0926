// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package overdrive

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/httpclient"
	"github.com/tomtom215/circulation/internal/logging"
	"github.com/tomtom215/circulation/internal/metrics"
	"github.com/tomtom215/circulation/internal/models"
)

const (
	msgUnsupportedFormat = "The format of this book is not supported by the Palace app."
	msgLoanKept          = " The book can only be accessed in your OverDrive/Libby app account."
)

// GetLoan fetches the patron's checkout of one title.
func (a *API) GetLoan(ctx context.Context, patron *models.Patron, pin, overdriveID string) (*Checkout, error) {
	return patronJSON[Checkout](ctx, a, patron, pin, patronRequest{
		url: a.patronURL(checkoutPath, strings.ToUpper(overdriveID)),
	})
}

// GetHold fetches the patron's hold on one title, or nil when there is
// none.
func (a *API) GetHold(ctx context.Context, patron *models.Patron, pin, overdriveID string) (*Hold, error) {
	resp, err := a.doPatron(ctx, patron, pin, patronRequest{
		url:       a.patronURL(holdPath, strings.ToUpper(overdriveID)),
		passCodes: []string{"404"},
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	return decode[Hold](resp)
}

// submitForm POSTs fields to rawURL and decodes the response as T.
func submitForm[T any](ctx context.Context, a *API, patron *models.Patron, pin, rawURL string, fields []formField) (*T, error) {
	body, err := encodeForm(fields)
	if err != nil {
		return nil, err
	}
	return patronJSON[T](ctx, a, patron, pin, patronRequest{method: http.MethodPost, url: rawURL, body: body})
}

// doAction performs a vendor action with the given field values.
func (a *API) doAction(ctx context.Context, patron *models.Patron, pin string, action *Action, values map[string]string) (*httpclient.Response, error) {
	fields, err := action.Form(values)
	if err != nil {
		return nil, err
	}
	body, err := encodeForm(fields)
	if err != nil {
		return nil, err
	}
	return a.doPatron(ctx, patron, pin, patronRequest{method: action.Method, url: action.Href, body: body})
}

// unmappedResponse returns the vendor error when err carries a code with
// no circulation meaning.
func unmappedResponse(err error) (*ResponseError, bool) {
	var re *ResponseError
	if circulation.KindOf(err) != circulation.KindUnknown || !errors.As(err, &re) {
		return nil, false
	}
	return re, true
}

// Checkout borrows pool for patron. A title the patron already has on
// loan is returned as a successful checkout.
//
// Overdrive picks the format at fulfillment time, so mechanism is only
// recorded in the log.
func (a *API) Checkout(ctx context.Context, patron *models.Patron, pin string, pool *models.LicensePool, mechanism *models.DeliveryMechanism) (info *circulation.LoanInfo, err error) {
	ctx = logging.ContextWithOperation(ctx, "checkout")
	defer a.record("checkout", time.Now(), &err)

	id := pool.Identifier.Value
	if mechanism != nil {
		logging.Ctx(ctx).Debug().Str("overdrive_id", id).Stringer("mechanism", mechanism).Msg("Checkout requested")
	}
	alreadyCheckedOut := false
	checkout, err := submitForm[Checkout](ctx, a, patron, pin, a.patronURL(checkoutsPath),
		[]formField{{Name: "reserveId", Value: id}})
	if err != nil {
		if re, ok := unmappedResponse(err); ok {
			return nil, circulation.New(circulation.KindCannotLoan, re.Message).WithDebug(string(re.Body)).Wrap(err)
		}
		if !errors.Is(err, circulation.ErrAlreadyCheckedOut) && !errors.Is(err, circulation.ErrNoAvailableCopies) {
			return nil, err
		}
		// Overdrive reports NoCopiesAvailable for titles with holds even
		// when this patron already has the loan.
		existing, lerr := a.GetLoan(ctx, patron, pin, id)
		if lerr != nil {
			if !errors.Is(lerr, circulation.ErrNoActiveLoan) {
				return nil, lerr
			}
			logging.Ctx(ctx).Info().Str("overdrive_id", id).Msg("No active loan found, returning original error")
			if errors.Is(err, circulation.ErrNoAvailableCopies) {
				a.refreshQuietly(ctx, pool)
			}
			return nil, err
		}
		checkout, alreadyCheckedOut = existing, true
	}

	available := checkout.AvailableFormats()
	if len(available) > 0 {
		if _, err := models.SyncDeliveryMechanisms(ctx, a.store, a.store, pool.ID, CheckoutMechanisms(checkout)); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int64("pool_id", pool.ID).Msg("Could not update delivery mechanisms after checkout")
		}
	}
	if available[FormatOverdriveRead] && len(lockInFormats.intersect(available)) == 0 {
		return nil, a.rejectUnsupported(ctx, patron, pin, pool, checkout, alreadyCheckedOut)
	}

	info = a.loanInfo(checkout)
	if !alreadyCheckedOut {
		a.publish(ctx, circulation.EventCheckout, patron, pool)
	}
	return info, nil
}

// rejectUnsupported undoes a checkout that no supported format can
// deliver. A fresh loan is returned early; a converted hold is removed
// locally since Overdrive has already turned it into a loan.
func (a *API) rejectUnsupported(ctx context.Context, patron *models.Patron, pin string, pool *models.LicensePool, checkout *Checkout, alreadyCheckedOut bool) error {
	logging.Ctx(ctx).Error().
		Str("overdrive_id", checkout.ReserveID).
		Int64("pool_id", pool.ID).
		Msg("Patron checked out a book that is not available in a supported format")

	hold, err := a.store.GetHold(ctx, patron.ID, pool.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}

	returned := false
	if !alreadyCheckedOut && hold == nil {
		action, err := checkout.Action("earlyReturn")
		if err == nil {
			_, err = a.doAction(ctx, patron, pin, action, nil)
		}
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("overdrive_id", checkout.ReserveID).Msg("Early return of unsupported checkout failed")
		} else {
			returned = true
		}
	}

	if hold != nil {
		if err := a.store.DeleteHold(ctx, hold.ID); err != nil {
			return err
		}
		a.publish(ctx, circulation.EventHoldConvertedToLoan, patron, pool)
	}

	msg := msgUnsupportedFormat
	if !returned {
		msg += msgLoanKept
	}
	return circulation.New(circulation.KindCannotLoan, msg)
}

// PlaceHold puts patron on the wait list for pool. Without an explicit
// email the address used for the patron's last hold is reused. A title the
// patron already waits for fails with circulation.ErrAlreadyOnHold.
func (a *API) PlaceHold(ctx context.Context, patron *models.Patron, pin string, pool *models.LicensePool, email string) (info *circulation.HoldInfo, err error) {
	ctx = logging.ContextWithOperation(ctx, "place_hold")
	defer a.record("place_hold", time.Now(), &err)

	if email == "" {
		email = a.defaultHoldEmail(ctx, patron, pin)
	}
	id := pool.Identifier.Value
	fields := []formField{{Name: "reserveId", Value: id}}
	if email != "" {
		fields = append(fields, formField{Name: "emailAddress", Value: email})
	} else {
		fields = append(fields, formField{Name: "ignoreHoldEmail", Value: true})
	}

	hold, err := submitForm[Hold](ctx, a, patron, pin, a.patronURL(holdsPath), fields)
	if err != nil {
		if re, ok := unmappedResponse(err); ok {
			msg := re.Code
			if msg == "" {
				msg = re.Message
			}
			return nil, circulation.New(circulation.KindCannotHold, msg).WithDebug(string(re.Body)).Wrap(err)
		}
		return nil, err
	}

	a.publish(ctx, circulation.EventHoldPlace, patron, pool)
	return a.holdInfo(hold), nil
}

// defaultHoldEmail returns the email of the patron's last hold, or "" when
// Overdrive has none or cannot be asked.
func (a *API) defaultHoldEmail(ctx context.Context, patron *models.Patron, pin string) string {
	info, err := patronJSON[patronInformation](ctx, a, patron, pin, patronRequest{url: a.patronURL(mePath)})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("patron_id", patron.ID).Msg("Could not look up patron hold email")
		return ""
	}
	if info.LastHoldEmail != "" {
		logging.Ctx(ctx).Debug().Str("email", logging.RedactEmail(info.LastHoldEmail)).Msg("Reusing last hold email")
	}
	return info.LastHoldEmail
}

// ReleaseHold cancels the patron's hold on pool. A hold Overdrive no longer
// knows about is treated as released.
func (a *API) ReleaseHold(ctx context.Context, patron *models.Patron, pin string, pool *models.LicensePool) (err error) {
	ctx = logging.ContextWithOperation(ctx, "release_hold")
	defer a.record("release_hold", time.Now(), &err)

	id := pool.Identifier.Value
	hold, err := a.GetHold(ctx, patron, pin, id)
	switch {
	case errors.Is(err, circulation.ErrPatronAuthorizationFailed):
		return err
	case err != nil:
		logging.Ctx(ctx).Warn().Err(err).Str("overdrive_id", id).Msg("Could not look up hold before release")
	case hold == nil:
		a.publish(ctx, circulation.EventHoldRelease, patron, pool)
		return nil
	case len(hold.Actions) > 0:
		if _, ok := hold.Actions["removeHold"]; !ok {
			return circulation.New(circulation.KindCannotReleaseHold, "This hold is reserved for you and can no longer be released.")
		}
	}

	_, err = a.doPatron(ctx, patron, pin, patronRequest{method: http.MethodDelete, url: a.patronURL(holdPath, strings.ToUpper(id))})
	if err != nil {
		var re *ResponseError
		if !errors.As(err, &re) {
			return err
		}
		if re.StatusCode != http.StatusNotFound && re.Code != "PatronDoesntHaveTitleOnHold" {
			return circulation.New(circulation.KindCannotReleaseHold, re.Code).WithDebug(string(re.Body)).Wrap(err)
		}
	}
	a.publish(ctx, circulation.EventHoldRelease, patron, pool)
	return nil
}

// Checkin returns the patron's loan of pool. A loan Overdrive no longer
// knows about is treated as returned.
//
// DRM-free loans that have been fulfilled are returned through the early
// return link of their content; everything else uses the earlyReturn
// action, or a DELETE of the checkout when the action is missing.
func (a *API) Checkin(ctx context.Context, patron *models.Patron, pin string, pool *models.LicensePool) (err error) {
	ctx = logging.ContextWithOperation(ctx, "checkin")
	defer a.record("checkin", time.Now(), &err)

	if mech := a.fulfilledDRMFree(ctx, patron, pool); mech != nil && a.performEarlyReturn(ctx, patron, pin, pool, *mech) {
		a.publish(ctx, circulation.EventCheckin, patron, pool)
		return nil
	}

	id := pool.Identifier.Value
	loan, err := a.GetLoan(ctx, patron, pin, id)
	if err == nil {
		action, aerr := loan.Action("earlyReturn")
		if aerr != nil {
			_, err = a.doPatron(ctx, patron, pin, patronRequest{method: http.MethodDelete, url: a.patronURL(checkoutPath, strings.ToUpper(id))})
		} else {
			_, err = a.doAction(ctx, patron, pin, action, nil)
		}
	}

	var modelErr *ModelError
	var optionErr *InvalidFieldOptionError
	switch {
	case err == nil:
	case errors.Is(err, circulation.ErrNoActiveLoan):
		logging.Ctx(ctx).Info().Str("overdrive_id", id).Msg("Loan already returned")
	case errors.As(err, &modelErr), errors.As(err, &optionErr):
		// The loan may come back on the next bookshelf sync.
		logging.Ctx(ctx).Error().Err(err).Str("overdrive_id", id).Msg("Something went wrong calling the earlyReturn action")
	default:
		if re, ok := unmappedResponse(err); ok {
			return circulation.New(circulation.KindCannotReturn, re.Message).WithDebug(string(re.Body)).Wrap(err)
		}
		return err
	}
	a.publish(ctx, circulation.EventCheckin, patron, pool)
	return nil
}

// fulfilledDRMFree returns the mechanism of the patron's local loan when it
// was fulfilled without DRM.
func (a *API) fulfilledDRMFree(ctx context.Context, patron *models.Patron, pool *models.LicensePool) *models.DeliveryMechanism {
	loan, err := a.store.GetLoan(ctx, patron.ID, pool.ID)
	if err != nil || loan.FulfillmentID == 0 {
		return nil
	}
	lpdm, err := a.store.GetDeliveryMechanism(ctx, loan.FulfillmentID)
	if err != nil || !lpdm.Mechanism.DRMFree() {
		return nil
	}
	return &lpdm.Mechanism
}

// performEarlyReturn follows the content link of a DRM-free loan without
// redirects and hits the loanEarlyReturnUrl found in its Location. It
// reports whether Overdrive accepted the return.
func (a *API) performEarlyReturn(ctx context.Context, patron *models.Patron, pin string, pool *models.LicensePool, mech models.DeliveryMechanism) bool {
	log := logging.Ctx(ctx)
	format, ok := internalFormats[mech]
	if !ok {
		return false
	}
	link, _, err := a.contentLink(ctx, patron, pin, pool.Identifier.Value, format, "")
	if err != nil {
		log.Warn().Err(err).Msg("Could not get fulfillment link for early return")
		return false
	}

	resp, err := a.doer.Do(ctx, &httpclient.Request{
		Method:       http.MethodGet,
		URL:          link,
		NoRedirects:  true,
		MaxRetries:   a.settings.MaxRetries,
		AllowedCodes: []string{"2xx", "3xx"},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Could not follow fulfillment link for early return")
		return false
	}
	returnURL := earlyReturnURL(resp.Header.Get("Location"))
	if returnURL == "" {
		log.Warn().Str("overdrive_id", pool.Identifier.Value).Msg("No early return link in fulfillment redirect")
		return false
	}

	resp, err = a.doer.Do(ctx, &httpclient.Request{
		Method:       http.MethodGet,
		URL:          returnURL,
		MaxRetries:   a.settings.MaxRetries,
		AllowedCodes: []string{"2xx"},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Early return request failed")
		return false
	}
	return resp.StatusCode == http.StatusOK
}

// earlyReturnURL extracts the loanEarlyReturnUrl query argument of a
// fulfillment redirect target.
func earlyReturnURL(location string) string {
	if location == "" {
		return ""
	}
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}
	return u.Query().Get("loanEarlyReturnUrl")
}

// Fulfill delivers the patron's loan of pool in mechanism. returnURL is
// where Overdrive Read sends the patron to re-authenticate; it may be
// empty.
func (a *API) Fulfill(ctx context.Context, patron *models.Patron, pin string, pool *models.LicensePool, mechanism models.DeliveryMechanism, returnURL string) (f *circulation.Fulfillment, err error) {
	ctx = logging.ContextWithOperation(ctx, "fulfill")
	defer a.record("fulfill", time.Now(), &err)

	format, err := InternalFormat(mechanism)
	if err != nil {
		return nil, err
	}
	id := pool.Identifier.Value

	if _, manifest := manifestFormats[format]; manifest {
		info, err := a.fulfillFormatInfo(ctx, patron, pin, id, format)
		if err != nil {
			return nil, a.afterFulfillFailure(ctx, pool, err)
		}
		f, err = a.manifestFulfillment(ctx, patron, pin, info, mechanism)
	} else {
		var link, mediaType string
		link, mediaType, err = a.contentLink(ctx, patron, pin, id, format, returnURL)
		if err == nil {
			kind := circulation.FulfillFetch
			if openFormats[format] {
				kind = circulation.FulfillRedirect
			}
			f = &circulation.Fulfillment{Kind: kind, ContentLink: link, ContentType: mediaType}
		}
	}
	if err != nil {
		return nil, a.afterFulfillFailure(ctx, pool, err)
	}

	f.CollectionID = a.collection.ID
	f.DataSource = models.DataSourceOverdrive
	f.IdentifierType = pool.Identifier.Type
	f.Identifier = id
	a.publish(ctx, circulation.EventFulfill, patron, pool)
	return f, nil
}

// afterFulfillFailure refreshes the pool's formats when Overdrive says the
// requested one is gone, then returns err.
func (a *API) afterFulfillFailure(ctx context.Context, pool *models.LicensePool, err error) error {
	if errors.Is(err, circulation.ErrFormatNotAvailable) {
		if uerr := a.UpdateFormats(ctx, pool); uerr != nil {
			logging.Ctx(ctx).Warn().Err(uerr).Int64("pool_id", pool.ID).Msg("Could not refresh formats")
		}
	}
	return err
}

// fulfillFormatInfo returns the checkout format to deliver, locking the
// loan in first when needed.
func (a *API) fulfillFormatInfo(ctx context.Context, patron *models.Patron, pin, overdriveID, format string) (*Format, error) {
	loan, err := a.GetLoan(ctx, patron, pin, overdriveID)
	if err != nil {
		var ce *circulation.Error
		if errors.As(err, &ce) && ce.Kind == circulation.KindPatronAuthorizationFailed {
			return nil, circulation.New(circulation.KindCannotFulfill,
				"Error authenticating patron for fulfillment: "+ce.Message).WithDebug(ce.Debug).Wrap(err)
		}
		return nil, err
	}
	if !loan.LockedIn && lockInFormats[format] {
		return a.lockIn(ctx, patron, pin, format, loan)
	}
	return fulfillFormat(loan, format)
}

// lockIn commits the loan to format.
func (a *API) lockIn(ctx context.Context, patron *models.Patron, pin, format string, loan *Checkout) (*Format, error) {
	action, err := loan.Action("format")
	var fields []formField
	if err == nil {
		fields, err = action.Form(map[string]string{"formatType": format})
	}
	var optionErr *InvalidFieldOptionError
	if errors.As(err, &optionErr) {
		return nil, circulation.New(circulation.KindFormatNotAvailable, "This book is not available in the format you requested.")
	}

	var info *Format
	if err == nil {
		var body []byte
		if body, err = encodeForm(fields); err == nil {
			info, err = patronJSON[Format](ctx, a, patron, pin, patronRequest{method: action.Method, url: action.Href, body: body})
		}
	}
	if err != nil {
		if circulation.KindOf(err) != circulation.KindUnknown {
			return nil, err
		}
		logging.Ctx(ctx).Error().Err(err).Str("overdrive_id", loan.ReserveID).Str("format", format).Msg("Error locking in loan")
		return nil, circulation.Newf(circulation.KindCannotFulfill, "Could not lock in format %s", format).Wrap(err)
	}
	return info, nil
}

// contentLink resolves the download link of format and returns the
// content link Overdrive answers with, plus its media type.
func (a *API) contentLink(ctx context.Context, patron *models.Patron, pin, overdriveID, format, returnURL string) (string, string, error) {
	info, err := a.fulfillFormatInfo(ctx, patron, pin, overdriveID, format)
	if err != nil {
		return "", "", err
	}
	download, err := info.TemplateLink("downloadLink", map[string]string{
		"errorpageurl":  DefaultErrorURL,
		"odreadauthurl": returnURL,
	})
	if err != nil {
		return "", "", circulation.Newf(circulation.KindCannotFulfill, "Could not build download link for format %s", format).Wrap(err)
	}
	got, err := patronJSON[downloadResponse](ctx, a, patron, pin, patronRequest{url: download})
	if err != nil {
		return "", "", err
	}
	content, ok := got.Links["contentlink"]
	if !ok {
		return "", "", circulation.New(circulation.KindCannotFulfill, "Overdrive did not provide a content link").
			WithDebug("Download link response had links: " + strings.Join(keys(got.Links), ", "))
	}
	mediaType := content.Type
	if streamingFormats[format] {
		mediaType += models.StreamingProfile
	}
	return content.Href, mediaType, nil
}

// manifestFulfillment hands the client the manifest link with the patron
// token and scope it needs to fetch the manifest itself.
func (a *API) manifestFulfillment(ctx context.Context, patron *models.Patron, pin string, info *Format, mechanism models.DeliveryMechanism) (*circulation.Fulfillment, error) {
	link, err := manifestLink(info)
	if err != nil {
		return nil, circulation.New(circulation.KindCannotFulfill, err.Error()).Wrap(err)
	}
	scope, err := a.ScopeString(ctx, patron)
	if err != nil {
		return nil, err
	}
	cred, err := a.patronCredential(ctx, patron, pin)
	if err != nil {
		return nil, err
	}
	return &circulation.Fulfillment{
		Kind:        circulation.FulfillManifest,
		ContentLink: link,
		ContentType: mechanism.ContentType,
		ScopeString: scope,
		AccessToken: cred.Credential,
	}, nil
}

func (a *API) loanInfo(c *Checkout) *circulation.LoanInfo {
	return &circulation.LoanInfo{
		CollectionID:   a.collection.ID,
		DataSource:     models.DataSourceOverdrive,
		IdentifierType: models.IdentifierTypeOverdrive,
		Identifier:     strings.ToLower(c.ReserveID),
		Start:          c.CheckoutDate,
		End:            c.Expires,
		LockedTo:       LockedTo(c),
	}
}

func (a *API) holdInfo(h *Hold) *circulation.HoldInfo {
	position := h.HoldListPosition
	if _, ready := h.Actions["checkout"]; ready {
		// Overdrive keeps counting the queue; a hold that can be
		// checked out is at the front.
		zero := 0
		position = &zero
	}
	return &circulation.HoldInfo{
		CollectionID:   a.collection.ID,
		DataSource:     models.DataSourceOverdrive,
		IdentifierType: models.IdentifierTypeOverdrive,
		Identifier:     strings.ToLower(h.ReserveID),
		Start:          h.HoldPlacedDate,
		End:            h.HoldExpires,
		Position:       position,
	}
}

// publish sends a circulation event. Publishing failures are logged and
// never fail the operation.
func (a *API) publish(ctx context.Context, eventType string, patron *models.Patron, pool *models.LicensePool) {
	e := circulation.Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		LicensePoolID: pool.ID,
		CollectionID:  a.collection.ID,
		Identifier:    pool.Identifier.Value,
		OccurredAt:    a.now().UTC(),
	}
	if patron != nil {
		e.PatronID = patron.ID
	}
	if err := a.events.Publish(ctx, e); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("event", eventType).Msg("Failed to publish circulation event")
	}
}

// record reports the outcome of one circulation operation.
func (a *API) record(op string, start time.Time, errp *error) {
	outcome := "success"
	if err := *errp; err != nil {
		outcome = "error"
		if kind := circulation.KindOf(err); kind != circulation.KindUnknown {
			outcome = kind.String()
		}
	}
	metrics.RecordCirculation(op, outcome, time.Since(start))
}
