package handler

import (
    "context"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/museum-tour-access/internal/middleware"
    "github.com/iliyamo/museum-tour-access/internal/model"
)

// MuseumWriter is the write side of repository.MuseumRepo.
type MuseumWriter interface {
    Create(ctx context.Context, m *model.Museum) error
}

// BundleWriter is the write side of repository.BundleRepo.
type BundleWriter interface {
    Create(ctx context.Context, b *model.Bundle) error
    AddMuseum(ctx context.Context, bundleID, museumID uint64) (*model.BundleMuseum, error)
}

// CatalogInvalidator drops cached catalog reads for the named resources.
type CatalogInvalidator interface {
    Invalidate(ctx context.Context, resources ...string) error
}

// AdminHandler lets ADMIN users maintain the catalog.
type AdminHandler struct {
    Museums MuseumWriter
    Bundles BundleWriter
    Cache   CatalogInvalidator
}

func NewAdminHandler(m MuseumWriter, b BundleWriter, cache CatalogInvalidator) *AdminHandler {
    return &AdminHandler{Museums: m, Bundles: b, Cache: cache}
}

// invalidate runs after a committed write; a cache failure only delays
// visibility until the entries expire.
func (h *AdminHandler) invalidate(ctx context.Context, c echo.Context, resources ...string) {
    if h.Cache == nil {
        return
    }
    if err := h.Cache.Invalidate(ctx, resources...); err != nil {
        c.Logger().Warnf("catalog cache: %v", err)
    }
}

type createMuseumReq struct {
    Name        string `json:"name"`
    Description string `json:"description"`
    ImageURL    string `json:"image_url"`
    DurationMin uint32 `json:"duration_min"`
    PriceCents  int64  `json:"price_cents"`
    Rating      *uint8 `json:"rating"`
    TourURL     string `json:"tour_url"`
}

type createBundleReq struct {
    Name         string   `json:"name"`
    Description  string   `json:"description"`
    PriceCents   int64    `json:"price_cents"`
    ValidityDays int      `json:"validity_days"`
    MuseumIDs    []uint64 `json:"museum_ids"`
}

type addMuseumReq struct {
    MuseumID uint64 `json:"museum_id"`
}

// CreateMuseum handles POST /v1/admin/museums.
func (h *AdminHandler) CreateMuseum(c echo.Context) error {
    var req createMuseumReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Name = strings.TrimSpace(req.Name)
    req.TourURL = strings.TrimSpace(req.TourURL)
    switch {
    case req.Name == "":
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
    case req.TourURL == "":
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "tour_url required"})
    case req.PriceCents <= 0:
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "price_cents must be positive"})
    case req.Rating != nil && *req.Rating > 50:
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "rating must be between 0 and 50"})
    }
    m := &model.Museum{
        Name:        req.Name,
        Description: strings.TrimSpace(req.Description),
        ImageURL:    strings.TrimSpace(req.ImageURL),
        DurationMin: req.DurationMin,
        PriceCents:  req.PriceCents,
        Rating:      req.Rating,
        TourURL:     req.TourURL,
    }
    ctx, cancel := requestCtx(c)
    defer cancel()
    if err := h.Museums.Create(ctx, m); err != nil {
        return writeError(c, err)
    }
    h.invalidate(ctx, c, middleware.ResourceMuseums)
    return c.JSON(http.StatusCreated, m)
}

// CreateBundle handles POST /v1/admin/bundles.  museum_ids, when given,
// become the initial composition.
func (h *AdminHandler) CreateBundle(c echo.Context) error {
    var req createBundleReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Name = strings.TrimSpace(req.Name)
    switch {
    case req.Name == "":
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
    case req.PriceCents <= 0:
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "price_cents must be positive"})
    case req.ValidityDays <= 0:
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "validity_days must be positive"})
    }
    b := &model.Bundle{
        Name:         req.Name,
        Description:  strings.TrimSpace(req.Description),
        PriceCents:   req.PriceCents,
        ValidityDays: req.ValidityDays,
    }
    ctx, cancel := requestCtx(c)
    defer cancel()
    if err := h.Bundles.Create(ctx, b); err != nil {
        return writeError(c, err)
    }
    members := make([]model.BundleMuseum, 0, len(req.MuseumIDs))
    for _, mid := range req.MuseumIDs {
        bm, err := h.Bundles.AddMuseum(ctx, b.ID, mid)
        if err != nil {
            h.invalidate(ctx, c, middleware.ResourceBundles, middleware.ResourceMuseums)
            return writeError(c, err)
        }
        members = append(members, *bm)
    }
    h.invalidate(ctx, c, middleware.ResourceBundles, middleware.ResourceMuseums)
    return c.JSON(http.StatusCreated, echo.Map{"bundle": b, "museums": members})
}

// AddBundleMuseum handles POST /v1/admin/bundles/:id/museums.  Existing
// bundle purchases see the new museum immediately.
func (h *AdminHandler) AddBundleMuseum(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bundle id"})
    }
    var req addMuseumReq
    if err := c.Bind(&req); err != nil || req.MuseumID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "museum_id required"})
    }
    ctx, cancel := requestCtx(c)
    defer cancel()
    bm, err := h.Bundles.AddMuseum(ctx, id, req.MuseumID)
    if err != nil {
        return writeError(c, err)
    }
    // bundle detail lists members and museum stats count bundle coverage
    h.invalidate(ctx, c, middleware.ResourceBundles, middleware.ResourceMuseums)
    return c.JSON(http.StatusCreated, bm)
}
