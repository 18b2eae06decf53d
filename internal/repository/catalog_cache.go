package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/iliyamo/museum-tour-access/internal/entitlement"
	"github.com/iliyamo/museum-tour-access/internal/model"
)

type MuseumGetter interface {
	GetByID(ctx context.Context, id uint64) (*model.Museum, error)
}

type BundleGetter interface {
	GetByID(ctx context.Context, id uint64) (*model.Bundle, error)
}

// CachedCatalog serves museum and bundle lookups for the purchase path
// from an in-process cache.  Misses and errors are never cached, so a
// newly created item is visible immediately.
type CachedCatalog struct {
	museums MuseumGetter
	bundles BundleGetter
	cache   *cache.Cache
}

var _ entitlement.Catalog = (*CachedCatalog)(nil)

func NewCachedCatalog(m MuseumGetter, b BundleGetter, ttl time.Duration) *CachedCatalog {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedCatalog{museums: m, bundles: b, cache: cache.New(ttl, 2*ttl)}
}

func museumKey(id uint64) string { return "museum:" + strconv.FormatUint(id, 10) }
func bundleKey(id uint64) string { return "bundle:" + strconv.FormatUint(id, 10) }

func (c *CachedCatalog) MuseumByID(ctx context.Context, id uint64) (*model.Museum, error) {
	if v, ok := c.cache.Get(museumKey(id)); ok {
		m := v.(model.Museum)
		return &m, nil
	}
	m, err := c.museums.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Set(museumKey(id), *m, cache.DefaultExpiration)
	return m, nil
}

func (c *CachedCatalog) BundleByID(ctx context.Context, id uint64) (*model.Bundle, error) {
	if v, ok := c.cache.Get(bundleKey(id)); ok {
		b := v.(model.Bundle)
		return &b, nil
	}
	b, err := c.bundles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Set(bundleKey(id), *b, cache.DefaultExpiration)
	return b, nil
}
