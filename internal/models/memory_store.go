// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package models

import (
	"context"
	"sort"
	"sync"
	"time"
)

type poolKey struct {
	collectionID int64
	dataSource   string
	identifier   Identifier
}

type patronPoolKey struct {
	patronID int64
	poolID   int64
}

type mechanismKey struct {
	poolID    int64
	mechanism DeliveryMechanism
}

// MemoryStore is an in-process Store. It backs tests and the CLI's
// dry-run mode. Returned records are copies.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64

	credentials map[CredentialKey]Credential
	patrons     map[int64]Patron
	libraries   map[int64]Library
	collections map[int64]Collection
	pools       map[int64]LicensePool
	poolIndex   map[poolKey]int64
	mechanisms  map[int64]LicensePoolDeliveryMechanism
	mechIndex   map[mechanismKey]int64
	loans       map[int64]Loan
	loanIndex   map[patronPoolKey]int64
	holds       map[int64]Hold
	holdIndex   map[patronPoolKey]int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		credentials: make(map[CredentialKey]Credential),
		patrons:     make(map[int64]Patron),
		libraries:   make(map[int64]Library),
		collections: make(map[int64]Collection),
		pools:       make(map[int64]LicensePool),
		poolIndex:   make(map[poolKey]int64),
		mechanisms:  make(map[int64]LicensePoolDeliveryMechanism),
		mechIndex:   make(map[mechanismKey]int64),
		loans:       make(map[int64]Loan),
		loanIndex:   make(map[patronPoolKey]int64),
		holds:       make(map[int64]Hold),
		holdIndex:   make(map[patronPoolKey]int64),
	}
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

// AddLibrary stores l, assigning an ID when l.ID is zero.
func (s *MemoryStore) AddLibrary(l Library) Library {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == 0 {
		l.ID = s.id()
	}
	s.libraries[l.ID] = l
	return l
}

// AddPatron stores p, assigning an ID when p.ID is zero.
func (s *MemoryStore) AddPatron(p Patron) Patron {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id()
	}
	s.patrons[p.ID] = p
	return p
}

// AddCollection stores c, assigning an ID when c.ID is zero.
func (s *MemoryStore) AddCollection(c Collection) Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.id()
	}
	s.collections[c.ID] = c
	return c
}

// GetCollection returns the collection with the given id.
func (s *MemoryStore) GetCollection(_ context.Context, id int64) (*Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStore) GetCredential(_ context.Context, key CredentialKey) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStore) PutCredential(_ context.Context, c *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[c.Key()] = *c
	return nil
}

func (s *MemoryStore) DeleteCredential(_ context.Context, key CredentialKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.credentials, key)
	return nil
}

func (s *MemoryStore) GetPatron(_ context.Context, id int64) (*Patron, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patrons[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) GetLibrary(_ context.Context, id int64) (*Library, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.libraries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (s *MemoryStore) GetPool(_ context.Context, id int64) (*LicensePool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) FindPool(_ context.Context, collectionID int64, dataSource string, id Identifier) (*LicensePool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	poolID, ok := s.poolIndex[poolKey{collectionID, dataSource, id}]
	if !ok {
		return nil, ErrNotFound
	}
	p := s.pools[poolID]
	return &p, nil
}

func (s *MemoryStore) GetOrCreatePool(_ context.Context, collectionID int64, dataSource string, id Identifier) (*LicensePool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := poolKey{collectionID, dataSource, id}
	if poolID, ok := s.poolIndex[key]; ok {
		p := s.pools[poolID]
		return &p, false, nil
	}
	p := LicensePool{ID: s.id(), CollectionID: collectionID, DataSource: dataSource, Identifier: id}
	s.pools[p.ID] = p
	s.poolIndex[key] = p.ID
	return &p, true, nil
}

func (s *MemoryStore) UpdateAvailability(_ context.Context, poolID int64, a Availability, checked time.Time) (*LicensePool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[poolID]
	if !ok {
		return nil, false, ErrNotFound
	}
	changed := a.Apply(&p)
	p.LastChecked = &checked
	s.pools[poolID] = p
	return &p, changed, nil
}

func (s *MemoryStore) SetWork(_ context.Context, poolID, workID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[poolID]
	if !ok {
		return ErrNotFound
	}
	p.WorkID = workID
	s.pools[poolID] = p
	return nil
}

func (s *MemoryStore) ListDeliveryMechanisms(_ context.Context, poolID int64) ([]LicensePoolDeliveryMechanism, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []LicensePoolDeliveryMechanism
	for _, m := range s.mechanisms {
		if m.LicensePoolID == poolID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SetDeliveryMechanism(_ context.Context, poolID int64, m DeliveryMechanism, available bool) (*LicensePoolDeliveryMechanism, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := mechanismKey{poolID, m}
	if id, ok := s.mechIndex[key]; ok {
		row := s.mechanisms[id]
		row.Available = available
		s.mechanisms[id] = row
		return &row, nil
	}
	row := LicensePoolDeliveryMechanism{
		ID:            s.id(),
		LicensePoolID: poolID,
		Mechanism:     m,
		RightsStatus:  RightsInCopyright,
		Available:     available,
	}
	s.mechanisms[row.ID] = row
	s.mechIndex[key] = row.ID
	return &row, nil
}

func (s *MemoryStore) GetDeliveryMechanism(_ context.Context, id int64) (*LicensePoolDeliveryMechanism, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.mechanisms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, nil
}

func (s *MemoryStore) GetLoan(_ context.Context, patronID, poolID int64) (*Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.loanIndex[patronPoolKey{patronID, poolID}]
	if !ok {
		return nil, ErrNotFound
	}
	l := s.loans[id]
	return &l, nil
}

func (s *MemoryStore) ListLoans(_ context.Context, patronID int64) ([]Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Loan
	for _, l := range s.loans {
		if l.PatronID == patronID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) PutLoan(_ context.Context, l *Loan) (*Loan, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := patronPoolKey{l.PatronID, l.LicensePoolID}
	stored := *l
	id, exists := s.loanIndex[key]
	if exists {
		stored.ID = id
	} else {
		stored.ID = s.id()
		s.loanIndex[key] = stored.ID
	}
	s.loans[stored.ID] = stored
	return &stored, !exists, nil
}

func (s *MemoryStore) DeleteLoan(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.loans, id)
	delete(s.loanIndex, patronPoolKey{l.PatronID, l.LicensePoolID})
	return nil
}

func (s *MemoryStore) MechanismsInUse(_ context.Context, poolID int64) ([]DeliveryMechanism, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []DeliveryMechanism
	seen := make(map[DeliveryMechanism]bool)
	for _, l := range s.loans {
		if l.LicensePoolID != poolID || l.FulfillmentID == 0 {
			continue
		}
		row, ok := s.mechanisms[l.FulfillmentID]
		if ok && !seen[row.Mechanism] {
			seen[row.Mechanism] = true
			out = append(out, row.Mechanism)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetHold(_ context.Context, patronID, poolID int64) (*Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.holdIndex[patronPoolKey{patronID, poolID}]
	if !ok {
		return nil, ErrNotFound
	}
	h := s.holds[id]
	return &h, nil
}

func (s *MemoryStore) ListHolds(_ context.Context, patronID int64) ([]Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Hold
	for _, h := range s.holds {
		if h.PatronID == patronID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) PutHold(_ context.Context, h *Hold) (*Hold, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := patronPoolKey{h.PatronID, h.LicensePoolID}
	stored := *h
	id, exists := s.holdIndex[key]
	if exists {
		stored.ID = id
	} else {
		stored.ID = s.id()
		s.holdIndex[key] = stored.ID
	}
	s.holds[stored.ID] = stored
	return &stored, !exists, nil
}

func (s *MemoryStore) DeleteHold(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.holds[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.holds, id)
	delete(s.holdIndex, patronPoolKey{h.PatronID, h.LicensePoolID})
	return nil
}

var _ Store = (*MemoryStore)(nil)
