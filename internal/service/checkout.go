// Package service orchestrates the payment flow: it creates gateway
// charges for catalog items, and once the gateway reports a charge as
// successful it records the purchase and announces it on the broker.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/juju/clock"

	"github.com/iliyamo/museum-tour-access/internal/entitlement"
	"github.com/iliyamo/museum-tour-access/internal/model"
	"github.com/iliyamo/museum-tour-access/internal/payment"
	"github.com/iliyamo/museum-tour-access/internal/queue"
)

var (
	ErrInvalidKind      = errors.New("type must be museum or bundle")
	ErrChargeMetadata   = errors.New("charge metadata incomplete")
	ErrChargeOwner      = errors.New("charge belongs to another user")
	ErrCurrencyMismatch = errors.New("charge currency does not match")
)

// PaymentIncompleteError is returned when a charge has not (yet)
// succeeded.  AuthorizeURI is set when the card issuer requires 3-D
// Secure and the user must be redirected.
type PaymentIncompleteError struct {
	Status       string
	AuthorizeURI string
}

func (e *PaymentIncompleteError) Error() string {
	return "payment not successful: " + e.Status
}

// PurchaseRecorder is satisfied by *entitlement.Recorder.
type PurchaseRecorder interface {
	RecordDirectPurchase(ctx context.Context, userID, museumID uint64, priceCents int64, paymentRef string, now time.Time) (*model.DirectPurchase, bool, error)
	RecordBundlePurchase(ctx context.Context, userID, bundleID uint64, priceCents int64, paymentRef string, now time.Time) (*model.BundlePurchase, bool, error)
}

// EventPublisher is satisfied by *queue.Publisher.
type EventPublisher interface {
	PublishPurchase(ctx context.Context, ev queue.PurchaseRecordedEvent) error
}

// Receipt describes a recorded purchase.  Exactly one of Direct and
// Bundle is set.  Replayed is true when the charge had been recorded
// before.
type Receipt struct {
	Kind     string                `json:"type"`
	Direct   *model.DirectPurchase `json:"purchase,omitempty"`
	Bundle   *model.BundlePurchase `json:"bundle_purchase,omitempty"`
	Replayed bool                  `json:"replayed"`
}

// ChargeInput is a purchase request from an authenticated user.  Amount
// is optional; when set it must equal the catalog price.
type ChargeInput struct {
	UserID uint64
	Kind   string
	ItemID uint64
	Amount int64
	Token  string
	Source string
}

// ChargeResult carries the gateway charge and, when the charge settled
// synchronously, the recorded purchase.
type ChargeResult struct {
	Charge  *payment.Charge
	Receipt *Receipt
}

type Checkout struct {
	catalog   entitlement.Catalog
	gateway   payment.Gateway
	recorder  PurchaseRecorder
	publisher EventPublisher
	clock     clock.Clock
	currency  string
}

// NewCheckout wires the payment flow.  publisher may be nil, in which
// case no events are sent.
func NewCheckout(cat entitlement.Catalog, gw payment.Gateway, rec PurchaseRecorder, pub EventPublisher, clk clock.Clock, currency string) *Checkout {
	return &Checkout{
		catalog:   cat,
		gateway:   gw,
		recorder:  rec,
		publisher: pub,
		clock:     clk,
		currency:  strings.ToLower(currency),
	}
}

// price returns the catalog price and display name of an item.
func (s *Checkout) price(ctx context.Context, kind string, id uint64) (int64, string, error) {
	switch kind {
	case model.KindMuseum:
		m, err := s.catalog.MuseumByID(ctx, id)
		if err != nil {
			return 0, "", err
		}
		return m.PriceCents, m.Name, nil
	case model.KindBundle:
		b, err := s.catalog.BundleByID(ctx, id)
		if err != nil {
			return 0, "", err
		}
		return b.PriceCents, b.Name, nil
	}
	return 0, "", ErrInvalidKind
}

// CreateCharge charges the catalog price of the requested item.  If the
// gateway settles the charge immediately the purchase is recorded before
// returning.
func (s *Checkout) CreateCharge(ctx context.Context, in ChargeInput) (*ChargeResult, error) {
	in.Kind = strings.ToLower(strings.TrimSpace(in.Kind))
	price, _, err := s.price(ctx, in.Kind, in.ItemID)
	if err != nil {
		return nil, err
	}
	if in.Amount != 0 && in.Amount != price {
		return nil, &entitlement.PriceMismatchError{Want: price, Got: in.Amount}
	}

	ch, err := s.gateway.CreateCharge(ctx, payment.ChargeRequest{
		Amount:   price,
		Currency: s.currency,
		Token:    in.Token,
		Source:   in.Source,
		Metadata: map[string]string{
			payment.MetaUserID: strconv.FormatUint(in.UserID, 10),
			payment.MetaType:   in.Kind,
			payment.MetaItemID: strconv.FormatUint(in.ItemID, 10),
		},
	})
	if err != nil {
		return nil, err
	}
	res := &ChargeResult{Charge: ch}
	if ch.Status == payment.StatusSuccessful {
		if res.Receipt, err = s.record(ctx, ch, in.UserID); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Confirm re-reads a charge from the gateway and records the purchase
// when it succeeded.  userID must own the charge.
func (s *Checkout) Confirm(ctx context.Context, chargeID string, userID uint64) (*Receipt, error) {
	ch, err := s.gateway.RetrieveCharge(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	if ch.Status != payment.StatusSuccessful {
		return nil, &PaymentIncompleteError{Status: ch.Status, AuthorizeURI: ch.AuthorizeURI}
	}
	return s.record(ctx, ch, userID)
}

// HandleEvent processes a gateway webhook.  The event is re-fetched by id
// and only successful charge.complete events record a purchase; all
// other events are acknowledged with a nil receipt.
func (s *Checkout) HandleEvent(ctx context.Context, eventID string) (*Receipt, error) {
	ev, err := s.gateway.RetrieveEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.Key != payment.EventChargeComplete || ev.ChargeID == "" {
		return nil, nil
	}
	ch, err := s.gateway.RetrieveCharge(ctx, ev.ChargeID)
	if err != nil {
		return nil, err
	}
	if ch.Status != payment.StatusSuccessful {
		return nil, nil
	}
	return s.record(ctx, ch, 0)
}

// record turns a successful charge into a ledger row.  expectUser of zero
// skips the ownership check (webhook path).
func (s *Checkout) record(ctx context.Context, ch *payment.Charge, expectUser uint64) (*Receipt, error) {
	userID, err := strconv.ParseUint(ch.Metadata[payment.MetaUserID], 10, 64)
	if err != nil || userID == 0 {
		return nil, ErrChargeMetadata
	}
	itemID, err := strconv.ParseUint(ch.Metadata[payment.MetaItemID], 10, 64)
	if err != nil || itemID == 0 {
		return nil, ErrChargeMetadata
	}
	if expectUser != 0 && expectUser != userID {
		return nil, ErrChargeOwner
	}
	if s.currency != "" && !strings.EqualFold(ch.Currency, s.currency) {
		return nil, ErrCurrencyMismatch
	}

	now := s.clock.Now()
	switch ch.Metadata[payment.MetaType] {
	case model.KindMuseum:
		p, replayed, err := s.recorder.RecordDirectPurchase(ctx, userID, itemID, ch.Amount, ch.ID, now)
		if err != nil {
			return nil, err
		}
		if !replayed {
			s.publish(ctx, model.KindMuseum, itemID, func(name string) queue.PurchaseRecordedEvent {
				return queue.NewDirectPurchaseEvent(p, name)
			})
		}
		return &Receipt{Kind: model.KindMuseum, Direct: p, Replayed: replayed}, nil
	case model.KindBundle:
		p, replayed, err := s.recorder.RecordBundlePurchase(ctx, userID, itemID, ch.Amount, ch.ID, now)
		if err != nil {
			return nil, err
		}
		if !replayed {
			s.publish(ctx, model.KindBundle, itemID, func(name string) queue.PurchaseRecordedEvent {
				return queue.NewBundlePurchaseEvent(p, name)
			})
		}
		return &Receipt{Kind: model.KindBundle, Bundle: p, Replayed: replayed}, nil
	}
	return nil, ErrChargeMetadata
}

// publish sends the purchase event.  Failures are logged only: the
// purchase is already recorded and must not be reported as failed.
func (s *Checkout) publish(ctx context.Context, kind string, itemID uint64, build func(name string) queue.PurchaseRecordedEvent) {
	if s.publisher == nil {
		return
	}
	_, name, err := s.price(ctx, kind, itemID)
	if err != nil {
		name = fmt.Sprintf("%s #%d", kind, itemID)
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := s.publisher.PublishPurchase(pctx, build(name)); err != nil {
		log.Printf("checkout: publish %s purchase event failed: %v", kind, err)
	}
}
