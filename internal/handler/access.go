package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/juju/clock"
    "github.com/labstack/echo/v4"
)

// AccessResolver is satisfied by *entitlement.Resolver.
type AccessResolver interface {
    HasAccess(ctx context.Context, userID, museumID uint64, now time.Time) (bool, error)
    ActiveMuseums(ctx context.Context, userID uint64, now time.Time) ([]uint64, error)
}

// AccessHandler gates tours behind entitlements.
type AccessHandler struct {
    Resolver AccessResolver
    Museums  MuseumReader
    Clock    clock.Clock
}

func NewAccessHandler(r AccessResolver, m MuseumReader, clk clock.Clock) *AccessHandler {
    return &AccessHandler{Resolver: r, Museums: m, Clock: clk}
}

// MyMuseums lists the museums the caller can currently enter, through
// direct purchases or bundles.
func (h *AccessHandler) MyMuseums(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ctx, cancel := requestCtx(c)
    defer cancel()
    ids, err := h.Resolver.ActiveMuseums(ctx, uid, h.Clock.Now())
    if err != nil {
        return writeError(c, err)
    }
    items, err := h.Museums.ListByIDs(ctx, ids)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// CheckAccess answers whether the caller may view a museum's tour.  An
// unknown museum is simply not accessible.
func (h *AccessHandler) CheckAccess(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := parseID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid museum id"})
    }
    ctx, cancel := requestCtx(c)
    defer cancel()
    has, err := h.Resolver.HasAccess(ctx, uid, id, h.Clock.Now())
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"museum_id": id, "has_access": has})
}

// Tour hands out the tour location of a museum the caller has access to.
func (h *AccessHandler) Tour(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
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
    has, err := h.Resolver.HasAccess(ctx, uid, id, h.Clock.Now())
    if err != nil {
        return writeError(c, err)
    }
    if !has {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "no active access to this museum"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "museum_id": m.ID,
        "name":      m.Name,
        "tour_url":  m.TourURL,
    })
}
