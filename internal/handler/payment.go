package handler

import (
    "context"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/museum-tour-access/internal/payment"
    "github.com/iliyamo/museum-tour-access/internal/service"
)

// CheckoutService is satisfied by *service.Checkout.
type CheckoutService interface {
    CreateCharge(ctx context.Context, in service.ChargeInput) (*service.ChargeResult, error)
    Confirm(ctx context.Context, chargeID string, userID uint64) (*service.Receipt, error)
    HandleEvent(ctx context.Context, eventID string) (*service.Receipt, error)
}

// PaymentHandler exposes the checkout flow over HTTP.
type PaymentHandler struct {
    Checkout CheckoutService
}

func NewPaymentHandler(s CheckoutService) *PaymentHandler {
    return &PaymentHandler{Checkout: s}
}

type chargeReq struct {
    Type   string `json:"type"` // museum | bundle
    ItemID uint64 `json:"item_id"`
    Amount int64  `json:"amount"` // optional, cents
    Token  string `json:"token"`
    Source string `json:"source"`
}

type confirmReq struct {
    ChargeID string `json:"charge_id"`
}

type webhookReq struct {
    ID  string `json:"id"`
    Key string `json:"key"`
}

type chargeView struct {
    ID             string `json:"id"`
    Status         string `json:"status"`
    Amount         int64  `json:"amount"`
    Currency       string `json:"currency"`
    AuthorizeURI   string `json:"authorize_uri,omitempty"`
    FailureMessage string `json:"failure_message,omitempty"`
}

func toChargeView(ch *payment.Charge) chargeView {
    return chargeView{
        ID:             ch.ID,
        Status:         ch.Status,
        Amount:         ch.Amount,
        Currency:       ch.Currency,
        AuthorizeURI:   ch.AuthorizeURI,
        FailureMessage: ch.FailureMessage,
    }
}

// CreateCharge handles POST /v1/payment/charges.  The item price comes
// from the catalog.  A charge the gateway settles at once is recorded in
// the same request (201); otherwise the charge is returned with 202 and
// the client confirms it later, after any 3-D Secure redirect.
func (h *PaymentHandler) CreateCharge(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req chargeReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if req.ItemID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "item_id required"})
    }
    if strings.TrimSpace(req.Token) == "" && strings.TrimSpace(req.Source) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "token or source required"})
    }

    ctx, cancel := requestCtx(c)
    defer cancel()
    res, err := h.Checkout.CreateCharge(ctx, service.ChargeInput{
        UserID: uid,
        Kind:   req.Type,
        ItemID: req.ItemID,
        Amount: req.Amount,
        Token:  strings.TrimSpace(req.Token),
        Source: strings.TrimSpace(req.Source),
    })
    if err != nil {
        return writeError(c, err)
    }
    body := echo.Map{"charge": toChargeView(res.Charge)}
    if res.Receipt == nil {
        return c.JSON(http.StatusAccepted, body)
    }
    body["receipt"] = res.Receipt
    return c.JSON(http.StatusCreated, body)
}

// Confirm handles POST /v1/payment/confirm.
func (h *PaymentHandler) Confirm(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req confirmReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.ChargeID) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "charge_id required"})
    }
    ctx, cancel := requestCtx(c)
    defer cancel()
    rec, err := h.Checkout.Confirm(ctx, strings.TrimSpace(req.ChargeID), uid)
    if err != nil {
        return writeError(c, err)
    }
    status := http.StatusCreated
    if rec.Replayed {
        status = http.StatusOK
    }
    return c.JSON(status, rec)
}

// Webhook handles gateway callbacks.  Only the event id is taken from the
// body; the event itself is fetched from the gateway, so forged payloads
// cannot record purchases.
func (h *PaymentHandler) Webhook(c echo.Context) error {
    var req webhookReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.ID) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "event id required"})
    }
    ctx, cancel := requestCtx(c)
    defer cancel()
    rec, err := h.Checkout.HandleEvent(ctx, strings.TrimSpace(req.ID))
    if err != nil {
        return writeError(c, err)
    }
    if rec == nil {
        return c.JSON(http.StatusOK, echo.Map{"status": "ignored"})
    }
    return c.JSON(http.StatusOK, echo.Map{"status": "recorded", "receipt": rec})
}
