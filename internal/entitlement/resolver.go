package entitlement

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("museum-tour-access/entitlement")

// Resolver answers access questions from the ledger.  It is safe for
// concurrent use as long as the Ledger is.
type Resolver struct {
	ledger Ledger
}

func NewResolver(l Ledger) *Resolver { return &Resolver{ledger: l} }

// HasAccess reports whether userID may view museumID at now.  A direct
// purchase wins without consulting bundles.  An expiry equal to now does
// not grant access.  Unknown museums simply yield false.
func (r *Resolver) HasAccess(ctx context.Context, userID, museumID uint64, now time.Time) (bool, error) {
	ctx, span := tracer.Start(ctx, "Resolver.HasAccess", trace.WithAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("museum.id", int64(museumID)),
	))
	defer span.End()

	direct, err := r.ledger.ActiveDirectPurchases(ctx, userID, now)
	if err != nil {
		span.RecordError(err)
		return false, storageErr("active direct purchases", err)
	}
	for _, p := range direct {
		if p.MuseumID == museumID && p.ActiveAt(now) {
			return true, nil
		}
	}

	grants, err := r.ledger.ActiveBundleGrants(ctx, userID, now)
	if err != nil {
		span.RecordError(err)
		return false, storageErr("active bundle grants", err)
	}
	for _, g := range grants {
		if g.MuseumID == museumID && g.ExpiryDate.After(now) {
			return true, nil
		}
	}
	return false, nil
}

// ActiveMuseums returns the ids of every museum userID may view at now,
// sorted ascending and without duplicates.
func (r *Resolver) ActiveMuseums(ctx context.Context, userID uint64, now time.Time) ([]uint64, error) {
	ctx, span := tracer.Start(ctx, "Resolver.ActiveMuseums", trace.WithAttributes(
		attribute.Int64("user.id", int64(userID)),
	))
	defer span.End()

	direct, err := r.ledger.ActiveDirectPurchases(ctx, userID, now)
	if err != nil {
		span.RecordError(err)
		return nil, storageErr("active direct purchases", err)
	}
	grants, err := r.ledger.ActiveBundleGrants(ctx, userID, now)
	if err != nil {
		span.RecordError(err)
		return nil, storageErr("active bundle grants", err)
	}

	set := make(map[uint64]struct{}, len(direct)+len(grants))
	for _, p := range direct {
		if p.ActiveAt(now) {
			set[p.MuseumID] = struct{}{}
		}
	}
	for _, g := range grants {
		if g.ExpiryDate.After(now) {
			set[g.MuseumID] = struct{}{}
		}
	}

	out := make([]uint64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	span.SetAttributes(attribute.Int("museums.count", len(out)))
	return out, nil
}
