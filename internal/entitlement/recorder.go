package entitlement

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/museum-tour-access/internal/model"
)

// DirectAccessDays is how long a single-museum purchase stays active.
const DirectAccessDays = 30

// Recorder appends purchases to the ledger after the payment gateway has
// confirmed them.  A payment reference is recorded at most once; replaying
// it returns the row written the first time.
type Recorder struct {
	ledger  Ledger
	catalog Catalog
}

func NewRecorder(l Ledger, c Catalog) *Recorder { return &Recorder{ledger: l, catalog: c} }

// RecordDirectPurchase grants userID access to museumID for
// DirectAccessDays starting at now.  The returned bool is true when the
// payment reference had already been recorded for the same user and
// museum, in which case the stored row is returned unchanged.
func (r *Recorder) RecordDirectPurchase(ctx context.Context, userID, museumID uint64, priceCents int64, paymentRef string, now time.Time) (*model.DirectPurchase, bool, error) {
	ctx, span := tracer.Start(ctx, "Recorder.RecordDirectPurchase", trace.WithAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("museum.id", int64(museumID)),
	))
	defer span.End()

	paymentRef = strings.TrimSpace(paymentRef)
	if paymentRef == "" {
		return nil, false, ErrPaymentRefRequired
	}
	if p, ok, err := r.directReplay(ctx, userID, museumID, paymentRef); err != nil || ok {
		return p, ok, err
	}

	m, err := r.catalog.MuseumByID(ctx, museumID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, NotFoundError{Resource: "museum", ID: museumID}
		}
		span.RecordError(err)
		return nil, false, storageErr("load museum", err)
	}
	if m.PriceCents != priceCents {
		return nil, false, &PriceMismatchError{Want: m.PriceCents, Got: priceCents}
	}

	now = now.UTC()
	p := &model.DirectPurchase{
		UserID:       userID,
		MuseumID:     museumID,
		PurchaseDate: now,
		ExpiryDate:   now.AddDate(0, 0, DirectAccessDays),
		PriceCents:   priceCents,
		PaymentRef:   paymentRef,
	}
	if err := r.ledger.AppendDirect(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicatePayment) {
			// lost a race with a concurrent replay of the same payment
			return r.mustDirectReplay(ctx, userID, museumID, paymentRef)
		}
		span.RecordError(err)
		return nil, false, storageErr("append direct purchase", err)
	}
	return p, false, nil
}

// RecordBundlePurchase grants userID access to every museum of bundleID
// for the bundle's validity period starting at now.  Replays behave as in
// RecordDirectPurchase.
func (r *Recorder) RecordBundlePurchase(ctx context.Context, userID, bundleID uint64, priceCents int64, paymentRef string, now time.Time) (*model.BundlePurchase, bool, error) {
	ctx, span := tracer.Start(ctx, "Recorder.RecordBundlePurchase", trace.WithAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("bundle.id", int64(bundleID)),
	))
	defer span.End()

	paymentRef = strings.TrimSpace(paymentRef)
	if paymentRef == "" {
		return nil, false, ErrPaymentRefRequired
	}
	if p, ok, err := r.bundleReplay(ctx, userID, bundleID, paymentRef); err != nil || ok {
		return p, ok, err
	}

	b, err := r.catalog.BundleByID(ctx, bundleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, NotFoundError{Resource: "bundle", ID: bundleID}
		}
		span.RecordError(err)
		return nil, false, storageErr("load bundle", err)
	}
	if b.PriceCents != priceCents {
		return nil, false, &PriceMismatchError{Want: b.PriceCents, Got: priceCents}
	}

	now = now.UTC()
	p := &model.BundlePurchase{
		UserID:       userID,
		BundleID:     bundleID,
		PurchaseDate: now,
		ExpiryDate:   now.AddDate(0, 0, b.ValidityDays),
		PriceCents:   priceCents,
		PaymentRef:   paymentRef,
	}
	if err := r.ledger.AppendBundle(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicatePayment) {
			return r.mustBundleReplay(ctx, userID, bundleID, paymentRef)
		}
		span.RecordError(err)
		return nil, false, storageErr("append bundle purchase", err)
	}
	return p, false, nil
}

// directReplay looks up an earlier row for ref.  A row belonging to a
// different user or museum is reported as ErrDuplicatePayment.
func (r *Recorder) directReplay(ctx context.Context, userID, museumID uint64, ref string) (*model.DirectPurchase, bool, error) {
	p, err := r.ledger.DirectByPaymentRef(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, storageErr("direct purchase by payment ref", err)
	}
	if p.UserID != userID || p.MuseumID != museumID {
		return nil, false, ErrDuplicatePayment
	}
	return p, true, nil
}

func (r *Recorder) mustDirectReplay(ctx context.Context, userID, museumID uint64, ref string) (*model.DirectPurchase, bool, error) {
	p, ok, err := r.directReplay(ctx, userID, museumID, ref)
	if err == nil && !ok {
		err = storageErr("direct purchase by payment ref", errMissingAfterDuplicate)
	}
	return p, ok, err
}

func (r *Recorder) bundleReplay(ctx context.Context, userID, bundleID uint64, ref string) (*model.BundlePurchase, bool, error) {
	p, err := r.ledger.BundleByPaymentRef(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, storageErr("bundle purchase by payment ref", err)
	}
	if p.UserID != userID || p.BundleID != bundleID {
		return nil, false, ErrDuplicatePayment
	}
	return p, true, nil
}

func (r *Recorder) mustBundleReplay(ctx context.Context, userID, bundleID uint64, ref string) (*model.BundlePurchase, bool, error) {
	p, ok, err := r.bundleReplay(ctx, userID, bundleID, ref)
	if err == nil && !ok {
		err = storageErr("bundle purchase by payment ref", errMissingAfterDuplicate)
	}
	return p, ok, err
}

var errMissingAfterDuplicate = errors.New("row missing after duplicate insert")
