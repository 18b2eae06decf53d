package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/iliyamo/museum-tour-access/internal/entitlement"
	"github.com/iliyamo/museum-tour-access/internal/model"
)

// MuseumRepo encapsulates queries against the museums table.
type MuseumRepo struct {
	db *sql.DB
}

func NewMuseumRepo(db *sql.DB) *MuseumRepo { return &MuseumRepo{db: db} }

const museumColumns = "id, name, description, image_url, duration_min, price_cents, rating, tour_url"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMuseum(s rowScanner) (model.Museum, error) {
	var (
		m      model.Museum
		rating sql.NullByte
	)
	if err := s.Scan(&m.ID, &m.Name, &m.Description, &m.ImageURL, &m.DurationMin, &m.PriceCents, &rating, &m.TourURL); err != nil {
		return m, err
	}
	if rating.Valid {
		v := uint8(rating.Byte)
		m.Rating = &v
	}
	return m, nil
}

// ListAll returns every museum ordered by id.
func (r *MuseumRepo) ListAll(ctx context.Context) ([]model.Museum, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+museumColumns+" FROM museums ORDER BY id")
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list museums")
	}
	defer rows.Close()
	var out []model.Museum
	for rows.Next() {
		m, err := scanMuseum(rows)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "scan museum")
		}
		out = append(out, m)
	}
	return out, pkgerrors.Wrap(rows.Err(), "list museums")
}

// GetByID returns the museum or an entitlement.NotFoundError.
func (r *MuseumRepo) GetByID(ctx context.Context, id uint64) (*model.Museum, error) {
	m, err := scanMuseum(r.db.QueryRowContext(ctx, "SELECT "+museumColumns+" FROM museums WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entitlement.NotFoundError{Resource: "museum", ID: id}
		}
		return nil, pkgerrors.Wrapf(err, "get museum %d", id)
	}
	return &m, nil
}

// ListByIDs returns the museums with the given ids ordered by id.  Unknown
// ids are skipped.
func (r *MuseumRepo) ListByIDs(ctx context.Context, ids []uint64) ([]model.Museum, error) {
	if len(ids) == 0 {
		return []model.Museum{}, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := "SELECT " + museumColumns + " FROM museums WHERE id IN (?" + strings.Repeat(",?", len(ids)-1) + ") ORDER BY id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list museums by id")
	}
	defer rows.Close()
	out := make([]model.Museum, 0, len(ids))
	for rows.Next() {
		m, err := scanMuseum(rows)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "scan museum")
		}
		out = append(out, m)
	}
	return out, pkgerrors.Wrap(rows.Err(), "list museums by id")
}

// Create inserts m and sets its ID.
func (r *MuseumRepo) Create(ctx context.Context, m *model.Museum) error {
	var rating sql.NullByte
	if m.Rating != nil {
		rating = sql.NullByte{Byte: *m.Rating, Valid: true}
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO museums (name, description, image_url, duration_min, price_cents, rating, tour_url) VALUES (?,?,?,?,?,?,?)",
		m.Name, m.Description, m.ImageURL, m.DurationMin, m.PriceCents, rating, m.TourURL)
	if err != nil {
		return pkgerrors.Wrap(err, "insert museum")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return pkgerrors.Wrap(err, "insert museum id")
	}
	m.ID = uint64(id)
	return nil
}

// Count returns the number of museums in the catalog.
func (r *MuseumRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM museums").Scan(&n)
	return n, pkgerrors.Wrap(err, "count museums")
}

// Stats returns every museum with the number of purchases that cover it:
// direct purchases plus bundle purchases of bundles that contain it.
func (r *MuseumRepo) Stats(ctx context.Context) ([]model.MuseumStat, error) {
	const q = `
SELECT m.id, m.name, m.rating, m.price_cents,
       (SELECT COUNT(*) FROM purchases p WHERE p.museum_id = m.id) +
       (SELECT COUNT(*) FROM bundle_purchases bp
          JOIN bundle_museums bm ON bm.bundle_id = bp.bundle_id
         WHERE bm.museum_id = m.id) AS purchases
  FROM museums m
 ORDER BY m.id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "museum stats")
	}
	defer rows.Close()
	var out []model.MuseumStat
	for rows.Next() {
		var (
			s      model.MuseumStat
			rating sql.NullByte
		)
		if err := rows.Scan(&s.ID, &s.Name, &rating, &s.PriceCents, &s.Purchases); err != nil {
			return nil, pkgerrors.Wrap(err, "scan museum stat")
		}
		if rating.Valid {
			v := uint8(rating.Byte)
			s.Rating = &v
		}
		out = append(out, s)
	}
	return out, pkgerrors.Wrap(rows.Err(), "museum stats")
}
