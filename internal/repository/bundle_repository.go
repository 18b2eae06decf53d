package repository

import (
	"context"
	"database/sql"
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/iliyamo/museum-tour-access/internal/entitlement"
	"github.com/iliyamo/museum-tour-access/internal/model"
)

// BundleRepo encapsulates queries against bundles and bundle_museums.
type BundleRepo struct {
	db *sql.DB
}

func NewBundleRepo(db *sql.DB) *BundleRepo { return &BundleRepo{db: db} }

const bundleColumns = "id, name, description, price_cents, validity_days"

func scanBundle(s rowScanner) (model.Bundle, error) {
	var b model.Bundle
	err := s.Scan(&b.ID, &b.Name, &b.Description, &b.PriceCents, &b.ValidityDays)
	return b, err
}

// ListAll returns every bundle ordered by id.
func (r *BundleRepo) ListAll(ctx context.Context) ([]model.Bundle, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+bundleColumns+" FROM bundles ORDER BY id")
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list bundles")
	}
	defer rows.Close()
	var out []model.Bundle
	for rows.Next() {
		b, err := scanBundle(rows)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "scan bundle")
		}
		out = append(out, b)
	}
	return out, pkgerrors.Wrap(rows.Err(), "list bundles")
}

// GetByID returns the bundle or an entitlement.NotFoundError.
func (r *BundleRepo) GetByID(ctx context.Context, id uint64) (*model.Bundle, error) {
	b, err := scanBundle(r.db.QueryRowContext(ctx, "SELECT "+bundleColumns+" FROM bundles WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entitlement.NotFoundError{Resource: "bundle", ID: id}
		}
		return nil, pkgerrors.Wrapf(err, "get bundle %d", id)
	}
	return &b, nil
}

// Museums returns the current composition of a bundle.
func (r *BundleRepo) Museums(ctx context.Context, bundleID uint64) ([]model.Museum, error) {
	const q = `
SELECT m.id, m.name, m.description, m.image_url, m.duration_min, m.price_cents, m.rating, m.tour_url
  FROM bundle_museums bm
  JOIN museums m ON m.id = bm.museum_id
 WHERE bm.bundle_id = ?
 ORDER BY m.id`
	rows, err := r.db.QueryContext(ctx, q, bundleID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list bundle museums")
	}
	defer rows.Close()
	out := []model.Museum{}
	for rows.Next() {
		m, err := scanMuseum(rows)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "scan bundle museum")
		}
		out = append(out, m)
	}
	return out, pkgerrors.Wrap(rows.Err(), "list bundle museums")
}

// Create inserts b and sets its ID.
func (r *BundleRepo) Create(ctx context.Context, b *model.Bundle) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO bundles (name, description, price_cents, validity_days) VALUES (?,?,?,?)",
		b.Name, b.Description, b.PriceCents, b.ValidityDays)
	if err != nil {
		return pkgerrors.Wrap(err, "insert bundle")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return pkgerrors.Wrap(err, "insert bundle id")
	}
	b.ID = uint64(id)
	return nil
}

// AddMuseum adds a museum to a bundle's composition.  A pair that already
// exists yields ErrConflict; an unknown bundle or museum yields a
// NotFoundError.
func (r *BundleRepo) AddMuseum(ctx context.Context, bundleID, museumID uint64) (*model.BundleMuseum, error) {
	if _, err := r.GetByID(ctx, bundleID); err != nil {
		return nil, err
	}
	var exists int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM museums WHERE id = ?", museumID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entitlement.NotFoundError{Resource: "museum", ID: museumID}
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "check museum")
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO bundle_museums (bundle_id, museum_id) VALUES (?,?)", bundleID, museumID)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, ErrConflict
		}
		return nil, pkgerrors.Wrap(err, "insert bundle museum")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "insert bundle museum id")
	}
	return &model.BundleMuseum{ID: uint64(id), BundleID: bundleID, MuseumID: museumID}, nil
}

// Count returns the number of bundles in the catalog.
func (r *BundleRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bundles").Scan(&n)
	return n, pkgerrors.Wrap(err, "count bundles")
}
