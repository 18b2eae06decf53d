// This file defines the public catalog API.  These routes let
// unauthenticated visitors browse museums and bundles.  Tour locations
// are never part of these responses; they are served by the access
// routes only to users holding an entitlement.

package handler

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/museum-tour-access/internal/model"
)

// MuseumReader is the read side of repository.MuseumRepo.
type MuseumReader interface {
    ListAll(ctx context.Context) ([]model.Museum, error)
    GetByID(ctx context.Context, id uint64) (*model.Museum, error)
    ListByIDs(ctx context.Context, ids []uint64) ([]model.Museum, error)
    Stats(ctx context.Context) ([]model.MuseumStat, error)
}

// BundleReader is the read side of repository.BundleRepo.
type BundleReader interface {
    ListAll(ctx context.Context) ([]model.Bundle, error)
    GetByID(ctx context.Context, id uint64) (*model.Bundle, error)
    Museums(ctx context.Context, bundleID uint64) ([]model.Museum, error)
}

// CatalogHandler serves museum and bundle listings.
type CatalogHandler struct {
    Museums MuseumReader
    Bundles BundleReader
}

func NewCatalogHandler(m MuseumReader, b BundleReader) *CatalogHandler {
    return &CatalogHandler{Museums: m, Bundles: b}
}

// bundleDetail is a bundle together with its current composition.
type bundleDetail struct {
    model.Bundle
    Museums []model.Museum `json:"museums"`
}

// ListMuseums returns every museum in the catalog.
// Response JSON contains an "items" array.
func (h *CatalogHandler) ListMuseums(c echo.Context) error {
    ctx, cancel := requestCtx(c)
    defer cancel()
    items, err := h.Museums.ListAll(ctx)
    if err != nil {
        return writeError(c, err)
    }
    if items == nil {
        items = []model.Museum{}
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetMuseum returns one museum by id.
func (h *CatalogHandler) GetMuseum(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid museum id"})
    }
    ctx, cancel := requestCtx(c)
    defer cancel()
    m, err := h.Museums.GetByID(ctx, id)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, m)
}

// ListBundles returns every bundle with its museums.  Composition is
// loaded per bundle; the catalog holds a handful of bundles.
func (h *CatalogHandler) ListBundles(c echo.Context) error {
    ctx, cancel := requestCtx(c)
    defer cancel()
    bundles, err := h.Bundles.ListAll(ctx)
    if err != nil {
        return writeError(c, err)
    }
    out := make([]bundleDetail, 0, len(bundles))
    for _, b := range bundles {
        ms, err := h.Bundles.Museums(ctx, b.ID)
        if err != nil {
            return writeError(c, err)
        }
        out = append(out, bundleDetail{Bundle: b, Museums: ms})
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetBundle returns a bundle and its museums.
func (h *CatalogHandler) GetBundle(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bundle id"})
    }
    ctx, cancel := requestCtx(c)
    defer cancel()
    b, err := h.Bundles.GetByID(ctx, id)
    if err != nil {
        return writeError(c, err)
    }
    ms, err := h.Bundles.Museums(ctx, id)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, bundleDetail{Bundle: *b, Museums: ms})
}

// MuseumStats returns purchase counts per museum, most purchased first.
func (h *CatalogHandler) MuseumStats(c echo.Context) error {
    ctx, cancel := requestCtx(c)
    defer cancel()
    stats, err := h.Museums.Stats(ctx)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": stats})
}
