// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package overdrive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/httpclient"
	"github.com/tomtom215/circulation/internal/logging"
	"github.com/tomtom215/circulation/internal/metrics"
	"github.com/tomtom215/circulation/internal/models"
)

const errorCodeNotFound = "NotFound"

// CoverageProvider gives a license pool its bibliographic record.
type CoverageProvider interface {
	EnsureCoverage(ctx context.Context, pool *models.LicensePool) error
}

// MetadataCoverage binds a pool to the work named by the cross reference
// id in Overdrive product metadata. Delivery mechanisms are not its
// concern; every availability refresh rewrites those.
type MetadataCoverage struct {
	api *API
}

// EnsureCoverage implements CoverageProvider.
func (c *MetadataCoverage) EnsureCoverage(ctx context.Context, pool *models.LicensePool) error {
	md, err := c.api.Metadata(ctx, pool.Identifier.Value)
	if err != nil {
		return fmt.Errorf("fetch metadata: %w", err)
	}
	return c.bindWork(ctx, pool, md)
}

func (c *MetadataCoverage) bindWork(ctx context.Context, pool *models.LicensePool, md *Metadata) error {
	if md == nil || md.CrossRefID == 0 || pool.WorkID == md.CrossRefID {
		return nil
	}
	if err := c.api.store.SetWork(ctx, pool.ID, md.CrossRefID); err != nil {
		return fmt.Errorf("bind work: %w", err)
	}
	pool.WorkID = md.CrossRefID
	return nil
}

// Metadata fetches product metadata. It returns nil when Overdrive does not
// know the title.
func (a *API) Metadata(ctx context.Context, overdriveID string) (*Metadata, error) {
	token, err := a.CollectionToken(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := a.Get(ctx, a.apiURL(metadataPath, token, overdriveID))
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return decode[Metadata](resp)
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, httpclient.NewBadResponseError(resp.URL,
			fmt.Sprintf("Got status code %d from external server, cannot continue.", resp.StatusCode), resp, "")
	}
}

// UpdateFormats rewrites the pool's delivery mechanisms from the formats
// Overdrive currently lists for the title.
func (a *API) UpdateFormats(ctx context.Context, pool *models.LicensePool) error {
	_, err := a.updateFormats(ctx, pool)
	return err
}

func (a *API) updateFormats(ctx context.Context, pool *models.LicensePool) (*Metadata, error) {
	md, err := a.Metadata(ctx, pool.Identifier.Value)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}
	if md == nil {
		logging.Ctx(ctx).Info().Str("overdrive_id", pool.Identifier.Value).Msg("No metadata for title, leaving formats alone")
		return nil, nil
	}
	diff, err := models.SyncDeliveryMechanisms(ctx, a.store, a.store, pool.ID, ResolveMechanisms(md.FormatIDs()))
	if err != nil {
		return nil, err
	}
	if !diff.Empty() {
		logging.Ctx(ctx).Debug().
			Int64("pool_id", pool.ID).
			Int("available", len(diff.MarkAvailable)).
			Int("unavailable", len(diff.MarkUnavailable)).
			Msg("Delivery mechanisms updated")
	}
	return md, nil
}

// UpdateAvailability refreshes the counts of an existing pool and reports
// whether any of them changed. A pool Overdrive could not be asked about is
// returned unchanged.
func (a *API) UpdateAvailability(ctx context.Context, pool *models.LicensePool) (*models.LicensePool, bool, error) {
	got, _, changed, err := a.refresh(ctx, pool.Identifier.Value, pool)
	if err != nil || got == nil {
		return pool, false, err
	}
	return got, changed, nil
}

// refreshQuietly is UpdateAvailability for callers that only want the side
// effect.
func (a *API) refreshQuietly(ctx context.Context, pool *models.LicensePool) {
	if _, _, err := a.UpdateAvailability(ctx, pool); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("pool_id", pool.ID).Msg("Could not refresh availability")
	}
}

// UpdateLicensePool refreshes the pool for an Overdrive id, creating it when
// this collection has never seen the title. It reports whether the pool is
// new and whether its counts changed. When Overdrive answers with anything
// but 200 or 404 the pool is left alone and nil is returned.
func (a *API) UpdateLicensePool(ctx context.Context, overdriveID string) (*models.LicensePool, bool, bool, error) {
	return a.refresh(ctx, overdriveID, nil)
}

func (a *API) refresh(ctx context.Context, overdriveID string, pool *models.LicensePool) (*models.LicensePool, bool, bool, error) {
	ctx = logging.ContextWithOperation(ctx, "update_availability")
	log := logging.Ctx(ctx)

	book, err := a.availability(ctx, overdriveID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, false, ctx.Err()
		}
		var bad *httpclient.BadResponseError
		if errors.As(err, &bad) || httpclient.IsTransient(err) {
			log.Error().Err(err).Str("overdrive_id", overdriveID).Msg("Could not get availability")
			metrics.RecordAvailabilityRefresh("skipped")
			return nil, false, false, nil
		}
		return nil, false, false, err
	}
	if book == nil {
		metrics.RecordAvailabilityRefresh("skipped")
		return nil, false, false, nil
	}

	created := false
	if pool == nil {
		id := models.Identifier{Type: models.IdentifierTypeOverdrive, Value: strings.ToLower(overdriveID)}
		pool, created, err = a.store.GetOrCreatePool(ctx, a.collection.ID, models.DataSourceOverdrive, id)
		if err != nil {
			return nil, false, false, err
		}
	}

	counts, owned := a.counts(book)
	if !owned {
		log.Debug().Str("overdrive_id", overdriveID).Msg("Title not owned by this collection, leaving counts alone")
	}
	updated, changed, err := a.store.UpdateAvailability(ctx, pool.ID, counts, a.now().UTC())
	if err != nil {
		return nil, false, false, err
	}

	md, err := a.updateFormats(ctx, updated)
	if err != nil {
		log.Warn().Err(err).Str("overdrive_id", overdriveID).Msg("Could not update delivery mechanisms")
	}
	if created || updated.WorkID == 0 {
		if err := a.ensureCoverage(ctx, updated, md); err != nil {
			log.Warn().Err(err).Str("overdrive_id", overdriveID).Msg("Could not ensure bibliographic coverage")
		}
	}

	switch {
	case created:
		metrics.RecordAvailabilityRefresh("created")
		a.publish(ctx, circulation.EventLicensePoolDiscovered, nil, updated)
	case changed:
		metrics.RecordAvailabilityRefresh("changed")
		a.publish(ctx, circulation.EventAvailabilityChanged, nil, updated)
	default:
		metrics.RecordAvailabilityRefresh("unchanged")
	}
	return updated, created, changed, nil
}

// ensureCoverage runs the coverage provider, handing the default provider
// the metadata this refresh already fetched.
func (a *API) ensureCoverage(ctx context.Context, pool *models.LicensePool, md *Metadata) error {
	if mc, ok := a.coverage.(*MetadataCoverage); ok && md != nil {
		return mc.bindWork(ctx, pool, md)
	}
	return a.coverage.EnsureCoverage(ctx, pool)
}

// availability fetches the availability document of a title. A 404 is
// reported as a NotFound document; other non-200 answers return nil.
func (a *API) availability(ctx context.Context, overdriveID string) (*availabilityResponse, error) {
	token, err := a.CollectionToken(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := a.Get(ctx, a.apiURL(availabilityPath, token, overdriveID))
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return decode[availabilityResponse](resp)
	case http.StatusNotFound:
		return &availabilityResponse{ID: overdriveID, ErrorCode: errorCodeNotFound}, nil
	default:
		logging.Ctx(ctx).Error().
			Int("status", resp.StatusCode).
			Str("overdrive_id", overdriveID).
			Msg("Unexpected availability status")
		return nil, nil
	}
}

// counts converts an availability document into pool counts. The bool is
// false when the title is not owned by this collection; the counts are then
// all nil.
func (a *API) counts(book *availabilityResponse) (models.Availability, bool) {
	if book.ErrorCode == errorCodeNotFound {
		return models.Availability{
			LicensesOwned:      intPtr(0),
			LicensesAvailable:  intPtr(0),
			LicensesReserved:   intPtr(0),
			PatronsInHoldQueue: intPtr(0),
		}, true
	}
	if book.IsOwnedByCollections != nil && !*book.IsOwnedByCollections {
		return models.Availability{}, false
	}

	owned, available := 0, 0
	for _, acct := range book.Accounts {
		if a.appliesTo(acct) {
			owned += acct.CopiesOwned
			available += acct.CopiesAvailable
		}
	}
	holds := 0
	if book.NumberOfHolds != nil {
		holds = *book.NumberOfHolds
	}
	return models.Availability{
		LicensesOwned:      &owned,
		LicensesAvailable:  &available,
		LicensesReserved:   intPtr(0),
		PatronsInHoldQueue: &holds,
	}, true
}

func intPtr(v int) *int { return &v }

// appliesTo reports whether an account's copies belong to this collection.
// The parent library counts its own copies and those it shares with its
// Advantage accounts; a child counts only copies bought for it.
func (a *API) appliesTo(acct availabilityAccount) bool {
	if !a.advantage() {
		return acct.ID == MainAccountID || acct.Shared
	}
	return acct.ID == a.advantageAccountID() && !acct.Shared
}

// BookInfo is the combined metadata and availability of one title.
type BookInfo struct {
	Metadata     *Metadata
	Availability models.Availability
	Owned        bool
}

// FetchBookInfoList fetches metadata and availability for many titles with
// bounded concurrency. The result is in id order; titles Overdrive does not
// know are nil.
func (a *API) FetchBookInfoList(ctx context.Context, ids []string) ([]*BookInfo, error) {
	return httpclient.Batch(ctx, ids, a.settings.BatchConcurrency, func(ctx context.Context, id string) (*BookInfo, error) {
		md, err := a.Metadata(ctx, id)
		if err != nil || md == nil {
			return nil, err
		}
		book, err := a.availability(ctx, id)
		if err != nil {
			return nil, err
		}
		info := &BookInfo{Metadata: md}
		if book != nil {
			info.Availability, info.Owned = a.counts(book)
		}
		return info, nil
	})
}
