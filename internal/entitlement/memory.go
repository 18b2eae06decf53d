package entitlement

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/museum-tour-access/internal/model"
)

// MemoryLedger is a Ledger held in process memory.  It backs tests and
// local runs without MySQL; the zero value is not usable, use
// NewMemoryLedger.
type MemoryLedger struct {
	mu          sync.RWMutex
	direct      []model.DirectPurchase
	bundles     []model.BundlePurchase
	composition map[uint64][]uint64 // bundle id -> museum ids
	refs        map[string]struct{}
	bundleRefs  map[string]struct{}
	nextID      uint64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		composition: make(map[uint64][]uint64),
		refs:        make(map[string]struct{}),
		bundleRefs:  make(map[string]struct{}),
	}
}

// AddBundleMuseum adds museumID to the composition of bundleID.  Adding
// an existing pair is a no-op.
func (l *MemoryLedger) AddBundleMuseum(bundleID, museumID uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range l.composition[bundleID] {
		if id == museumID {
			return
		}
	}
	l.composition[bundleID] = append(l.composition[bundleID], museumID)
}

func (l *MemoryLedger) AppendDirect(_ context.Context, p *model.DirectPurchase) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.refs[p.PaymentRef]; dup {
		return ErrDuplicatePayment
	}
	l.nextID++
	p.ID = l.nextID
	l.refs[p.PaymentRef] = struct{}{}
	l.direct = append(l.direct, *p)
	return nil
}

func (l *MemoryLedger) AppendBundle(_ context.Context, p *model.BundlePurchase) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, dup := l.bundleRefs[p.PaymentRef]; dup {
		return ErrDuplicatePayment
	}
	l.nextID++
	p.ID = l.nextID
	l.bundleRefs[p.PaymentRef] = struct{}{}
	l.bundles = append(l.bundles, *p)
	return nil
}

func (l *MemoryLedger) DirectByPaymentRef(_ context.Context, ref string) (*model.DirectPurchase, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := range l.direct {
		if l.direct[i].PaymentRef == ref {
			p := l.direct[i]
			return &p, nil
		}
	}
	return nil, NotFoundError{Resource: "purchase"}
}

func (l *MemoryLedger) BundleByPaymentRef(_ context.Context, ref string) (*model.BundlePurchase, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := range l.bundles {
		if l.bundles[i].PaymentRef == ref {
			p := l.bundles[i]
			return &p, nil
		}
	}
	return nil, NotFoundError{Resource: "bundle purchase"}
}

func (l *MemoryLedger) ActiveDirectPurchases(_ context.Context, userID uint64, now time.Time) ([]model.DirectPurchase, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []model.DirectPurchase
	for _, p := range l.direct {
		if p.UserID == userID && p.ActiveAt(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (l *MemoryLedger) ActiveBundleGrants(_ context.Context, userID uint64, now time.Time) ([]model.BundleGrant, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []model.BundleGrant
	for _, p := range l.bundles {
		if p.UserID != userID || !p.ActiveAt(now) {
			continue
		}
		for _, mid := range l.composition[p.BundleID] {
			out = append(out, model.BundleGrant{
				BundlePurchaseID: p.ID,
				BundleID:         p.BundleID,
				MuseumID:         mid,
				ExpiryDate:       p.ExpiryDate,
			})
		}
	}
	return out, nil
}

// MemoryCatalog is a Catalog backed by maps, populated with Put calls.
type MemoryCatalog struct {
	mu      sync.RWMutex
	museums map[uint64]model.Museum
	bundles map[uint64]model.Bundle
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		museums: make(map[uint64]model.Museum),
		bundles: make(map[uint64]model.Bundle),
	}
}

func (c *MemoryCatalog) PutMuseum(m model.Museum) {
	c.mu.Lock()
	c.museums[m.ID] = m
	c.mu.Unlock()
}

func (c *MemoryCatalog) PutBundle(b model.Bundle) {
	c.mu.Lock()
	c.bundles[b.ID] = b
	c.mu.Unlock()
}

func (c *MemoryCatalog) MuseumByID(_ context.Context, id uint64) (*model.Museum, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.museums[id]
	if !ok {
		return nil, NotFoundError{Resource: "museum", ID: id}
	}
	return &m, nil
}

func (c *MemoryCatalog) BundleByID(_ context.Context, id uint64) (*model.Bundle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.bundles[id]
	if !ok {
		return nil, NotFoundError{Resource: "bundle", ID: id}
	}
	return &b, nil
}
