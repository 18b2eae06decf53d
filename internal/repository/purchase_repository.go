package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/iliyamo/museum-tour-access/internal/entitlement"
	"github.com/iliyamo/museum-tour-access/internal/model"
)

// PurchaseRepo is the MySQL entitlement ledger.  Rows in purchases and
// bundle_purchases are only ever inserted; payment_ref carries a unique
// index in both tables.
type PurchaseRepo struct {
	db *sql.DB
}

func NewPurchaseRepo(db *sql.DB) *PurchaseRepo { return &PurchaseRepo{db: db} }

var _ entitlement.Ledger = (*PurchaseRepo)(nil)

// AppendDirect inserts p and sets its ID.
func (r *PurchaseRepo) AppendDirect(ctx context.Context, p *model.DirectPurchase) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO purchases (user_id, museum_id, purchase_date, expiry_date, price_cents, payment_ref) VALUES (?,?,?,?,?,?)",
		p.UserID, p.MuseumID, p.PurchaseDate.UTC(), p.ExpiryDate.UTC(), p.PriceCents, p.PaymentRef)
	if err != nil {
		if isDuplicateKey(err) {
			return entitlement.ErrDuplicatePayment
		}
		return pkgerrors.Wrap(err, "insert purchase")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return pkgerrors.Wrap(err, "insert purchase id")
	}
	p.ID = uint64(id)
	return nil
}

// AppendBundle inserts p and sets its ID.
func (r *PurchaseRepo) AppendBundle(ctx context.Context, p *model.BundlePurchase) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO bundle_purchases (user_id, bundle_id, purchase_date, expiry_date, price_cents, payment_ref) VALUES (?,?,?,?,?,?)",
		p.UserID, p.BundleID, p.PurchaseDate.UTC(), p.ExpiryDate.UTC(), p.PriceCents, p.PaymentRef)
	if err != nil {
		if isDuplicateKey(err) {
			return entitlement.ErrDuplicatePayment
		}
		return pkgerrors.Wrap(err, "insert bundle purchase")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return pkgerrors.Wrap(err, "insert bundle purchase id")
	}
	p.ID = uint64(id)
	return nil
}

const (
	directColumns = "id, user_id, museum_id, purchase_date, expiry_date, price_cents, payment_ref"
	bundleBuyCols = "id, user_id, bundle_id, purchase_date, expiry_date, price_cents, payment_ref"
)

// Active rows are those whose expiry lies strictly after now.
const (
	activeDirectQuery = "SELECT " + directColumns + " FROM purchases WHERE user_id = ? AND expiry_date > ?"

	activeGrantsQuery = `
SELECT bp.id, bp.bundle_id, bm.museum_id, bp.expiry_date
  FROM bundle_purchases bp
  JOIN bundle_museums bm ON bm.bundle_id = bp.bundle_id
 WHERE bp.user_id = ? AND bp.expiry_date > ?`
)

func scanDirect(s rowScanner) (model.DirectPurchase, error) {
	var p model.DirectPurchase
	err := s.Scan(&p.ID, &p.UserID, &p.MuseumID, &p.PurchaseDate, &p.ExpiryDate, &p.PriceCents, &p.PaymentRef)
	return p, err
}

func scanBundlePurchase(s rowScanner) (model.BundlePurchase, error) {
	var p model.BundlePurchase
	err := s.Scan(&p.ID, &p.UserID, &p.BundleID, &p.PurchaseDate, &p.ExpiryDate, &p.PriceCents, &p.PaymentRef)
	return p, err
}

func (r *PurchaseRepo) DirectByPaymentRef(ctx context.Context, ref string) (*model.DirectPurchase, error) {
	p, err := scanDirect(r.db.QueryRowContext(ctx,
		"SELECT "+directColumns+" FROM purchases WHERE payment_ref = ? LIMIT 1", ref))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entitlement.NotFoundError{Resource: "purchase"}
		}
		return nil, pkgerrors.Wrap(err, "purchase by payment ref")
	}
	return &p, nil
}

func (r *PurchaseRepo) BundleByPaymentRef(ctx context.Context, ref string) (*model.BundlePurchase, error) {
	p, err := scanBundlePurchase(r.db.QueryRowContext(ctx,
		"SELECT "+bundleBuyCols+" FROM bundle_purchases WHERE payment_ref = ? LIMIT 1", ref))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entitlement.NotFoundError{Resource: "bundle purchase"}
		}
		return nil, pkgerrors.Wrap(err, "bundle purchase by payment ref")
	}
	return &p, nil
}

func (r *PurchaseRepo) ActiveDirectPurchases(ctx context.Context, userID uint64, now time.Time) ([]model.DirectPurchase, error) {
	rows, err := r.db.QueryContext(ctx, activeDirectQuery, userID, now.UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(err, "active purchases")
	}
	defer rows.Close()
	var out []model.DirectPurchase
	for rows.Next() {
		p, err := scanDirect(rows)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "scan purchase")
		}
		out = append(out, p)
	}
	return out, pkgerrors.Wrap(rows.Err(), "active purchases")
}

// ActiveBundleGrants joins the user's unexpired bundle purchases with the
// current bundle composition in one query.
func (r *PurchaseRepo) ActiveBundleGrants(ctx context.Context, userID uint64, now time.Time) ([]model.BundleGrant, error) {
	rows, err := r.db.QueryContext(ctx, activeGrantsQuery, userID, now.UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(err, "active bundle grants")
	}
	defer rows.Close()
	var out []model.BundleGrant
	for rows.Next() {
		var g model.BundleGrant
		if err := rows.Scan(&g.BundlePurchaseID, &g.BundleID, &g.MuseumID, &g.ExpiryDate); err != nil {
			return nil, pkgerrors.Wrap(err, "scan bundle grant")
		}
		out = append(out, g)
	}
	return out, pkgerrors.Wrap(rows.Err(), "active bundle grants")
}

// History lists every purchase of a user, direct and bundle, newest first.
// Items whose museum or bundle was removed are named "Unknown".
func (r *PurchaseRepo) History(ctx context.Context, userID uint64, now time.Time) ([]model.PurchaseHistoryItem, error) {
	const q = `
SELECT p.id, 'museum', p.museum_id, COALESCE(m.name, 'Unknown Museum'), p.purchase_date, p.expiry_date, p.price_cents, p.payment_ref
  FROM purchases p LEFT JOIN museums m ON m.id = p.museum_id
 WHERE p.user_id = ?
UNION ALL
SELECT bp.id, 'bundle', bp.bundle_id, COALESCE(b.name, 'Unknown Bundle'), bp.purchase_date, bp.expiry_date, bp.price_cents, bp.payment_ref
  FROM bundle_purchases bp LEFT JOIN bundles b ON b.id = bp.bundle_id
 WHERE bp.user_id = ?
ORDER BY 5 DESC, 1 DESC`
	rows, err := r.db.QueryContext(ctx, q, userID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "purchase history")
	}
	defer rows.Close()
	out := []model.PurchaseHistoryItem{}
	for rows.Next() {
		var it model.PurchaseHistoryItem
		if err := rows.Scan(&it.ID, &it.Kind, &it.ItemID, &it.ItemName, &it.PurchaseDate, &it.ExpiryDate, &it.PriceCents, &it.PaymentRef); err != nil {
			return nil, pkgerrors.Wrap(err, "scan purchase history")
		}
		it.IsActive = it.ExpiryDate.After(now)
		out = append(out, it)
	}
	return out, pkgerrors.Wrap(rows.Err(), "purchase history")
}

// StatsForUser totals a user's spending and counts purchases that are
// still active at now.
func (r *PurchaseRepo) StatsForUser(ctx context.Context, userID uint64, now time.Time) (model.PurchaseStats, error) {
	const q = `
SELECT COALESCE(SUM(price_cents), 0), COUNT(*), COALESCE(SUM(expiry_date > ?), 0)
  FROM (
        SELECT price_cents, expiry_date FROM purchases WHERE user_id = ?
        UNION ALL
        SELECT price_cents, expiry_date FROM bundle_purchases WHERE user_id = ?
       ) t`
	var s model.PurchaseStats
	err := r.db.QueryRowContext(ctx, q, now.UTC(), userID, userID).
		Scan(&s.TotalSpentCents, &s.TotalPurchases, &s.ActivePurchases)
	return s, pkgerrors.Wrap(err, "purchase stats")
}
