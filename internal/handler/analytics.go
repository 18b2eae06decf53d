package handler

import (
    "context"
    "database/sql"
    "errors"
    "net/http"
    "time"

    "github.com/juju/clock"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/museum-tour-access/internal/model"
)

// PurchaseReader is the reporting side of repository.PurchaseRepo.
type PurchaseReader interface {
    History(ctx context.Context, userID uint64, now time.Time) ([]model.PurchaseHistoryItem, error)
    StatsForUser(ctx context.Context, userID uint64, now time.Time) (model.PurchaseStats, error)
}

// MuseumCounter reports the catalog size.
type MuseumCounter interface {
    Count(ctx context.Context) (int, error)
}

// AnalyticsHandler serves the per-user dashboard.
type AnalyticsHandler struct {
    Users    UserStore
    Store    PurchaseReader
    Resolver AccessResolver
    Museums  MuseumCounter
    Clock    clock.Clock
}

func NewAnalyticsHandler(u UserStore, p PurchaseReader, r AccessResolver, m MuseumCounter, clk clock.Clock) *AnalyticsHandler {
    return &AnalyticsHandler{Users: u, Store: p, Resolver: r, Museums: m, Clock: clk}
}

type overviewStats struct {
    model.PurchaseStats
    AccessibleMuseums int `json:"accessible_museums"`
    TotalMuseums      int `json:"total_museums"`
}

// Overview returns the caller's profile with spending and access totals.
func (h *AnalyticsHandler) Overview(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ctx, cancel := requestCtx(c)
    defer cancel()
    now := h.Clock.Now()

    u, err := h.Users.GetByID(ctx, uid)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
        }
        return writeError(c, err)
    }
    ps, err := h.Store.StatsForUser(ctx, uid, now)
    if err != nil {
        return writeError(c, err)
    }
    active, err := h.Resolver.ActiveMuseums(ctx, uid, now)
    if err != nil {
        return writeError(c, err)
    }
    total, err := h.Museums.Count(ctx)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "user": toUserPart(u),
        "stats": overviewStats{
            PurchaseStats:     ps,
            AccessibleMuseums: len(active),
            TotalMuseums:      total,
        },
    })
}

// Purchases lists the caller's purchase history, newest first.
func (h *AnalyticsHandler) Purchases(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ctx, cancel := requestCtx(c)
    defer cancel()
    items, err := h.Store.History(ctx, uid, h.Clock.Now())
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}
