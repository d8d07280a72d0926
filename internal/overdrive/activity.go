// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package overdrive

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/logging"
	"github.com/tomtom215/circulation/internal/models"
)

// PatronActivity lists the patron's loans and holds as Overdrive sees them.
// A failure to fetch loans is returned; an absent holds list means the
// patron has no holds.
func (a *API) PatronActivity(ctx context.Context, patron *models.Patron, pin string) ([]circulation.LoanInfo, []circulation.HoldInfo, error) {
	ctx = logging.ContextWithOperation(ctx, "patron_activity")

	checkouts, err := patronJSON[checkoutsResponse](ctx, a, patron, pin, patronRequest{url: a.patronURL(checkoutsPath)})
	if err != nil {
		return nil, nil, fmt.Errorf("fetch checkouts: %w", err)
	}
	resp, err := a.doPatron(ctx, patron, pin, patronRequest{url: a.patronURL(holdsPath), passCodes: []string{"404"}})
	if err != nil {
		return nil, nil, fmt.Errorf("fetch holds: %w", err)
	}
	var holds holdsResponse
	if resp.StatusCode != http.StatusNotFound && len(resp.Body) > 0 {
		h, err := decode[holdsResponse](resp)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch holds: %w", err)
		}
		holds = *h
	}

	loans := make([]circulation.LoanInfo, 0, len(checkouts.Checkouts))
	for i := range checkouts.Checkouts {
		if info := a.activityLoan(ctx, &checkouts.Checkouts[i]); info != nil {
			loans = append(loans, *info)
		}
	}
	out := make([]circulation.HoldInfo, 0, len(holds.Holds))
	for i := range holds.Holds {
		out = append(out, *a.holdInfo(&holds.Holds[i]))
	}
	return loans, out, nil
}

// activityLoan converts one checkout, or returns nil for loans this
// service cannot deliver.
func (a *API) activityLoan(ctx context.Context, c *Checkout) *circulation.LoanInfo {
	usable := UsableFormats(c)
	if len(usable) == 0 {
		logging.Ctx(ctx).Debug().Str("overdrive_id", c.ReserveID).Msg("Skipping loan with no usable format")
		return nil
	}
	if c.LockedIn && len(usable.intersect(lockInFormats)) == 0 {
		// Locked to a format such as Kindle on another platform.
		logging.Ctx(ctx).Debug().Str("overdrive_id", c.ReserveID).Msg("Skipping loan locked in to an unusable format")
		return nil
	}

	info := a.loanInfo(c)
	mechs := make(map[models.DeliveryMechanism]bool)
	for _, m := range CheckoutMechanisms(c) {
		mechs[m] = true
	}
	if usable[FormatOverdriveRead] {
		for _, m := range ResolveMechanisms([]string{FormatOverdriveRead}) {
			mechs[m] = true
		}
	}
	info.Formats = sortedMechanisms(mechs)
	return info
}
