// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the background consumer.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/museum-tour-access/internal/model"
)

// PurchaseQueueName is the durable queue purchase events are sent to.
const PurchaseQueueName = "purchase.recorded"

// PurchaseRecordedEvent is published once per newly recorded purchase.
// Replayed payments do not produce an event.  It carries enough for
// downstream consumers to log or notify without querying the database.
type PurchaseRecordedEvent struct {
    EventID      string `json:"event_id"`
    Kind         string `json:"type"` // museum | bundle
    PurchaseID   uint64 `json:"purchase_id"`
    UserID       uint64 `json:"user_id"`
    ItemID       uint64 `json:"item_id"`
    ItemName     string `json:"item_name"`
    PriceCents   int64  `json:"price_cents"`
    PaymentRef   string `json:"payment_ref"`
    PurchaseDate string `json:"purchase_date"`
    ExpiryDate   string `json:"expiry_date"`
}

// NewDirectPurchaseEvent builds the event for a direct purchase.
func NewDirectPurchaseEvent(p *model.DirectPurchase, museumName string) PurchaseRecordedEvent {
    return PurchaseRecordedEvent{
        EventID:      uuid.NewString(),
        Kind:         model.KindMuseum,
        PurchaseID:   p.ID,
        UserID:       p.UserID,
        ItemID:       p.MuseumID,
        ItemName:     museumName,
        PriceCents:   p.PriceCents,
        PaymentRef:   p.PaymentRef,
        PurchaseDate: p.PurchaseDate.UTC().Format(time.RFC3339),
        ExpiryDate:   p.ExpiryDate.UTC().Format(time.RFC3339),
    }
}

// NewBundlePurchaseEvent builds the event for a bundle purchase.
func NewBundlePurchaseEvent(p *model.BundlePurchase, bundleName string) PurchaseRecordedEvent {
    return PurchaseRecordedEvent{
        EventID:      uuid.NewString(),
        Kind:         model.KindBundle,
        PurchaseID:   p.ID,
        UserID:       p.UserID,
        ItemID:       p.BundleID,
        ItemName:     bundleName,
        PriceCents:   p.PriceCents,
        PaymentRef:   p.PaymentRef,
        PurchaseDate: p.PurchaseDate.UTC().Format(time.RFC3339),
        ExpiryDate:   p.ExpiryDate.UTC().Format(time.RFC3339),
    }
}
