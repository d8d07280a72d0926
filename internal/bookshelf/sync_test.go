// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package bookshelf

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/models"
)

const foreignSource = "Bibliotheca"

type fakeSource struct {
	loans []circulation.LoanInfo
	holds []circulation.HoldInfo
	err   error
	calls int
}

func (f *fakeSource) PatronActivity(context.Context, *models.Patron, string) ([]circulation.LoanInfo, []circulation.HoldInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.loans, f.holds, nil
}

type harness struct {
	store     *models.MemoryStore
	source    *fakeSource
	syncer    *Syncer
	patron    *models.Patron
	managed   models.Collection
	unmanaged models.Collection
	foreign   models.Collection
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := models.NewMemoryStore()
	lib := store.AddLibrary(models.Library{ShortName: "main"})
	patron := store.AddPatron(models.Patron{LibraryID: lib.ID, AuthorizationIdentifier: "2345"})
	managed := store.AddCollection(models.Collection{Name: "Overdrive", DataSource: models.DataSourceOverdrive})
	unmanaged := store.AddCollection(models.Collection{Name: "Other Overdrive", DataSource: models.DataSourceOverdrive})
	foreign := store.AddCollection(models.Collection{Name: "Bibliotheca", DataSource: foreignSource})
	source := &fakeSource{}
	return &harness{
		store:  store,
		source: source,
		syncer: New(store, source, Scope{
			DataSource:    models.DataSourceOverdrive,
			CollectionIDs: []int64{managed.ID},
		}),
		patron:    &patron,
		managed:   managed,
		unmanaged: unmanaged,
		foreign:   foreign,
	}
}

func titleID(n int) string { return fmt.Sprintf("00000000-0000-4000-8000-%012d", n) }

func (h *harness) loanInfo(n int) circulation.LoanInfo {
	end := time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC)
	return circulation.LoanInfo{
		CollectionID:   h.managed.ID,
		DataSource:     models.DataSourceOverdrive,
		IdentifierType: models.IdentifierTypeOverdrive,
		Identifier:     titleID(n),
		End:            &end,
	}
}

func (h *harness) holdInfo(n, position int) circulation.HoldInfo {
	return circulation.HoldInfo{
		CollectionID:   h.managed.ID,
		DataSource:     models.DataSourceOverdrive,
		IdentifierType: models.IdentifierTypeOverdrive,
		Identifier:     titleID(n),
		Position:       &position,
	}
}

// localLoan stores a loan for title n in coll.
func (h *harness) localLoan(t *testing.T, coll models.Collection, n int) *models.LicensePool {
	t.Helper()
	ctx := context.Background()
	pool, _, err := h.store.GetOrCreatePool(ctx, coll.ID, coll.DataSource,
		models.Identifier{Type: models.IdentifierTypeOverdrive, Value: titleID(n)})
	checkNoError(t, err)
	_, _, err = h.store.PutLoan(ctx, &models.Loan{PatronID: h.patron.ID, LicensePoolID: pool.ID})
	checkNoError(t, err)
	return pool
}

func (h *harness) localHold(t *testing.T, coll models.Collection, n int) {
	t.Helper()
	ctx := context.Background()
	pool, _, err := h.store.GetOrCreatePool(ctx, coll.ID, coll.DataSource,
		models.Identifier{Type: models.IdentifierTypeOverdrive, Value: titleID(n)})
	checkNoError(t, err)
	_, _, err = h.store.PutHold(ctx, &models.Hold{PatronID: h.patron.ID, LicensePoolID: pool.ID})
	checkNoError(t, err)
}

// loanKeys returns "source/collection/identifier" for each local loan.
func (h *harness) loanKeys(t *testing.T) []string {
	t.Helper()
	ctx := context.Background()
	loans, err := h.store.ListLoans(ctx, h.patron.ID)
	checkNoError(t, err)
	out := make([]string, 0, len(loans))
	for _, l := range loans {
		pool, err := h.store.GetPool(ctx, l.LicensePoolID)
		checkNoError(t, err)
		out = append(out, fmt.Sprintf("%s/%d/%s", pool.DataSource, pool.CollectionID, pool.Identifier.Value))
	}
	sort.Strings(out)
	return out
}

func TestSync_ReconcilesLoans(t *testing.T) {
	h := newHarness(t)
	// Three current loans, one stale loan and one loan from another source.
	for n := 1; n <= 4; n++ {
		h.localLoan(t, h.managed, n)
	}
	foreignPool := h.localLoan(t, h.foreign, 99)

	// The vendor now reports titles 1-3 and a new title 5; title 4 is gone.
	h.source.loans = []circulation.LoanInfo{h.loanInfo(1), h.loanInfo(2), h.loanInfo(3), h.loanInfo(5)}

	result, err := h.syncer.Sync(context.Background(), h.patron, "1234")
	checkNoError(t, err)
	checkChanges(t, "loans", result.Loans, Changes{Created: 1, Updated: 3, Deleted: 1})

	keys := h.loanKeys(t)
	checkIntEqual(t, "local loans", len(keys), 5)
	overdrive := 0
	for _, k := range keys {
		if k == fmt.Sprintf("%s/%d/%s", models.DataSourceOverdrive, h.managed.ID, titleID(4)) {
			t.Errorf("stale loan survived: %s", k)
		}
		if k[:len(models.DataSourceOverdrive)] == models.DataSourceOverdrive {
			overdrive++
		}
	}
	checkIntEqual(t, "overdrive loans", overdrive, 4)

	if _, err := h.store.GetLoan(context.Background(), h.patron.ID, foreignPool.ID); err != nil {
		t.Errorf("foreign loan was touched: %v", err)
	}
}

func TestSync_Idempotent(t *testing.T) {
	h := newHarness(t)
	h.localLoan(t, h.managed, 7)
	h.source.loans = []circulation.LoanInfo{h.loanInfo(1), h.loanInfo(2)}
	h.source.holds = []circulation.HoldInfo{h.holdInfo(3, 4)}

	_, err := h.syncer.Sync(context.Background(), h.patron, "1234")
	checkNoError(t, err)
	first := h.loanKeys(t)

	result, err := h.syncer.Sync(context.Background(), h.patron, "1234")
	checkNoError(t, err)
	second := h.loanKeys(t)

	if fmt.Sprint(first) != fmt.Sprint(second) {
		t.Errorf("second sync changed loans: %v -> %v", first, second)
	}
	checkChanges(t, "loans", result.Loans, Changes{Updated: 2})
	checkChanges(t, "holds", result.Holds, Changes{Updated: 1})
}

func TestSync_ForeignAndUnmanagedUntouched(t *testing.T) {
	tests := []struct {
		name string
		coll func(h *harness) models.Collection
	}{
		{name: "other data source", coll: func(h *harness) models.Collection { return h.foreign }},
		{name: "unmanaged collection", coll: func(h *harness) models.Collection { return h.unmanaged }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.localLoan(t, tt.coll(h), 1)
			h.localHold(t, tt.coll(h), 2)

			result, err := h.syncer.Sync(context.Background(), h.patron, "1234")
			checkNoError(t, err)
			checkChanges(t, "loans", result.Loans, Changes{})
			checkChanges(t, "holds", result.Holds, Changes{})

			holds, err := h.store.ListHolds(context.Background(), h.patron.ID)
			checkNoError(t, err)
			checkIntEqual(t, "holds", len(holds), 1)
			checkIntEqual(t, "loans", len(h.loanKeys(t)), 1)
		})
	}
}

func TestSync_LoansFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.localLoan(t, h.managed, 1)
	h.source.err = errors.New("vendor down")

	_, err := h.syncer.Sync(context.Background(), h.patron, "1234")
	if err == nil {
		t.Fatal("expected error")
	}
	checkIntEqual(t, "loans kept", len(h.loanKeys(t)), 1)
}

func TestSync_Holds(t *testing.T) {
	h := newHarness(t)
	h.localHold(t, h.managed, 1)
	h.localHold(t, h.managed, 2)
	h.source.holds = []circulation.HoldInfo{h.holdInfo(2, 0), h.holdInfo(3, 5)}

	result, err := h.syncer.Sync(context.Background(), h.patron, "1234")
	checkNoError(t, err)
	checkChanges(t, "holds", result.Holds, Changes{Created: 1, Updated: 1, Deleted: 1})

	holds, err := h.store.ListHolds(context.Background(), h.patron.ID)
	checkNoError(t, err)
	checkIntEqual(t, "holds", len(holds), 2)
	for _, hold := range holds {
		if hold.Position == nil {
			t.Fatalf("hold %d has no position", hold.ID)
		}
	}
}

func TestSync_NoHoldsClearsLocalHolds(t *testing.T) {
	h := newHarness(t)
	h.localHold(t, h.managed, 1)

	result, err := h.syncer.Sync(context.Background(), h.patron, "1234")
	checkNoError(t, err)
	checkChanges(t, "holds", result.Holds, Changes{Deleted: 1})
}

func TestSync_LockIn(t *testing.T) {
	h := newHarness(t)
	locked := models.DeliveryMechanism{ContentType: models.MediaTypeEPUB, DRMScheme: models.DRMAdobe}
	info := h.loanInfo(1)
	info.LockedTo = &locked
	h.source.loans = []circulation.LoanInfo{info}

	_, err := h.syncer.Sync(context.Background(), h.patron, "1234")
	checkNoError(t, err)

	ctx := context.Background()
	pool, err := h.store.FindPool(ctx, h.managed.ID, models.DataSourceOverdrive,
		models.Identifier{Type: models.IdentifierTypeOverdrive, Value: titleID(1)})
	checkNoError(t, err)
	loan, err := h.store.GetLoan(ctx, h.patron.ID, pool.ID)
	checkNoError(t, err)
	row, err := h.store.GetDeliveryMechanism(ctx, loan.FulfillmentID)
	checkNoError(t, err)
	if row.Mechanism != locked {
		t.Errorf("fulfillment = %s, want %s", row.Mechanism, locked)
	}

	// A later snapshot without lock-in keeps the recorded fulfillment.
	h.source.loans = []circulation.LoanInfo{h.loanInfo(1)}
	_, err = h.syncer.Sync(ctx, h.patron, "1234")
	checkNoError(t, err)
	again, err := h.store.GetLoan(ctx, h.patron.ID, pool.ID)
	checkNoError(t, err)
	if again.FulfillmentID != loan.FulfillmentID {
		t.Errorf("fulfillment changed from %d to %d", loan.FulfillmentID, again.FulfillmentID)
	}
}

func TestSync_LoanFormatsUpdateMechanisms(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	epub := models.DeliveryMechanism{ContentType: models.MediaTypeEPUB, DRMScheme: models.DRMAdobe}
	pdf := models.DeliveryMechanism{ContentType: models.MediaTypePDF, DRMScheme: models.DRMAdobe}

	available := func() map[models.DeliveryMechanism]bool {
		t.Helper()
		pool, err := h.store.FindPool(ctx, h.managed.ID, models.DataSourceOverdrive,
			models.Identifier{Type: models.IdentifierTypeOverdrive, Value: titleID(1)})
		checkNoError(t, err)
		rows, err := h.store.ListDeliveryMechanisms(ctx, pool.ID)
		checkNoError(t, err)
		out := make(map[models.DeliveryMechanism]bool, len(rows))
		for _, r := range rows {
			out[r.Mechanism] = r.Available
		}
		return out
	}

	info := h.loanInfo(1)
	info.Formats = []models.DeliveryMechanism{epub, pdf}
	h.source.loans = []circulation.LoanInfo{info}
	_, err := h.syncer.Sync(ctx, h.patron, "1234")
	checkNoError(t, err)
	got := available()
	if !got[epub] || !got[pdf] {
		t.Errorf("after first sync: %v, want both available", got)
	}

	info.Formats = []models.DeliveryMechanism{pdf}
	h.source.loans = []circulation.LoanInfo{info}
	_, err = h.syncer.Sync(ctx, h.patron, "1234")
	checkNoError(t, err)
	got = available()
	if got[epub] || !got[pdf] {
		t.Errorf("after second sync: %v, want only pdf available", got)
	}
}

func TestSync_SkipsOutOfScopeEntries(t *testing.T) {
	h := newHarness(t)
	info := h.loanInfo(1)
	info.CollectionID = h.unmanaged.ID
	h.source.loans = []circulation.LoanInfo{info}

	result, err := h.syncer.Sync(context.Background(), h.patron, "1234")
	checkNoError(t, err)
	checkIntEqual(t, "skipped", result.Skipped, 1)
	checkIntEqual(t, "loans", len(h.loanKeys(t)), 0)
}
