// Package entitlement decides who may view which museum tour.  Purchases
// are appended to a Ledger by the Recorder and read back by the Resolver;
// nothing in this package keeps state between calls.
package entitlement

import (
	"context"
	"time"

	"github.com/iliyamo/museum-tour-access/internal/model"
)

// Ledger is the append-only store of purchases and bundle composition.
type Ledger interface {
	// AppendDirect stores p and fills in its ID.  It returns
	// ErrDuplicatePayment when p.PaymentRef is already recorded.
	AppendDirect(ctx context.Context, p *model.DirectPurchase) error
	// AppendBundle stores p and fills in its ID.  It returns
	// ErrDuplicatePayment when p.PaymentRef is already recorded.
	AppendBundle(ctx context.Context, p *model.BundlePurchase) error

	// DirectByPaymentRef and BundleByPaymentRef return ErrNotFound when
	// no row carries ref.
	DirectByPaymentRef(ctx context.Context, ref string) (*model.DirectPurchase, error)
	BundleByPaymentRef(ctx context.Context, ref string) (*model.BundlePurchase, error)

	// ActiveDirectPurchases returns the user's direct purchases whose
	// expiry is after now.
	ActiveDirectPurchases(ctx context.Context, userID uint64, now time.Time) ([]model.DirectPurchase, error)
	// ActiveBundleGrants returns one row per museum reachable through the
	// user's bundle purchases whose expiry is after now.  Composition is
	// read at call time.
	ActiveBundleGrants(ctx context.Context, userID uint64, now time.Time) ([]model.BundleGrant, error)
}

// Catalog resolves the items a purchase can refer to.  Both lookups
// return a NotFoundError when the id is unknown.
type Catalog interface {
	MuseumByID(ctx context.Context, id uint64) (*model.Museum, error)
	BundleByID(ctx context.Context, id uint64) (*model.Bundle, error)
}
