package handler // handler defines http handlers

import (
    "context"
    "errors"   // errors provides sentinel values used in getUserID
    "net/http"
    "strconv"  // strconv converts strings to numeric types
    "time"

    "github.com/labstack/echo/v4" // echo defines request context types

    "github.com/iliyamo/museum-tour-access/internal/entitlement"
    "github.com/iliyamo/museum-tour-access/internal/payment"
    "github.com/iliyamo/museum-tour-access/internal/repository"
    "github.com/iliyamo/museum-tour-access/internal/service"
)

// dbTimeout bounds the storage work of a single request.
const dbTimeout = 5 * time.Second

// requestCtx derives a bounded context from the request.
func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
    return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// getUserID extracts the user_id from echo.Context and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
    switch t := c.Get("user_id").(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    return id, err == nil && id > 0
}

// writeError maps domain errors to HTTP responses.  Anything unrecognised
// is logged and answered with 500.
func writeError(c echo.Context, err error) error {
    var (
        nf  entitlement.NotFoundError
        pm  *entitlement.PriceMismatchError
        se  *entitlement.StorageError
        inc *service.PaymentIncompleteError
    )
    switch {
    case errors.As(err, &nf):
        return c.JSON(http.StatusNotFound, echo.Map{"error": nf.Error()})
    case errors.As(err, &pm):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": pm.Error(), "price_cents": pm.Want})
    case errors.As(err, &inc):
        body := echo.Map{"error": inc.Error(), "status": inc.Status}
        if inc.AuthorizeURI != "" {
            body["authorize_uri"] = inc.AuthorizeURI
        }
        return c.JSON(http.StatusPaymentRequired, body)
    case errors.Is(err, entitlement.ErrDuplicatePayment), errors.Is(err, repository.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrChargeOwner):
        return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
    case errors.Is(err, entitlement.ErrPaymentRefRequired),
        errors.Is(err, service.ErrInvalidKind),
        errors.Is(err, service.ErrChargeMetadata),
        errors.Is(err, service.ErrCurrencyMismatch),
        errors.Is(err, payment.ErrInvalidCharge):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.As(err, &se):
        c.Logger().Errorf("storage failure: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "storage error"})
    }
    c.Logger().Errorf("request failed: %v", err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
