package model

import "time"

// DirectPurchase records one user buying access to exactly one museum.
// Rows are append-only: expiry is evaluated at read time and rows are
// never updated or deleted.
//
// Fields:
//  ID           – primary key identifier.
//  UserID       – buyer.
//  MuseumID     – museum the access is scoped to.
//  PurchaseDate – when the payment was recorded (UTC).
//  ExpiryDate   – exclusive end of the access window (UTC).
//  PriceCents   – amount charged.
//  PaymentRef   – opaque reference from the payment gateway (unique).
type DirectPurchase struct {
    ID           uint64    `json:"id"`            // purchases.id
    UserID       uint64    `json:"user_id"`       // purchases.user_id
    MuseumID     uint64    `json:"museum_id"`     // purchases.museum_id
    PurchaseDate time.Time `json:"purchase_date"` // purchases.purchase_date
    ExpiryDate   time.Time `json:"expiry_date"`   // purchases.expiry_date
    PriceCents   int64     `json:"price_cents"`   // purchases.price_cents
    PaymentRef   string    `json:"payment_ref"`   // purchases.payment_ref
}

// ActiveAt reports whether the purchase grants access at now.  The
// expiry date itself is outside the window.
func (p DirectPurchase) ActiveAt(now time.Time) bool { return p.ExpiryDate.After(now) }

// BundlePurchase records one user buying access to an entire bundle.
// Same lifecycle as DirectPurchase.
type BundlePurchase struct {
    ID           uint64    `json:"id"`            // bundle_purchases.id
    UserID       uint64    `json:"user_id"`       // bundle_purchases.user_id
    BundleID     uint64    `json:"bundle_id"`     // bundle_purchases.bundle_id
    PurchaseDate time.Time `json:"purchase_date"` // bundle_purchases.purchase_date
    ExpiryDate   time.Time `json:"expiry_date"`   // bundle_purchases.expiry_date
    PriceCents   int64     `json:"price_cents"`   // bundle_purchases.price_cents
    PaymentRef   string    `json:"payment_ref"`   // bundle_purchases.payment_ref
}

// ActiveAt reports whether the bundle purchase grants access at now.
func (p BundlePurchase) ActiveAt(now time.Time) bool { return p.ExpiryDate.After(now) }

// BundleGrant is one museum reachable through an active bundle purchase.
// It is the row shape of bundle_purchases joined with bundle_museums.
type BundleGrant struct {
    BundlePurchaseID uint64
    BundleID         uint64
    MuseumID         uint64
    ExpiryDate       time.Time
}

// Purchase kinds used in history listings and payment metadata.
const (
    KindMuseum = "museum"
    KindBundle = "bundle"
)

// PurchaseHistoryItem is a direct or bundle purchase flattened for the
// purchase history view.  ItemID is the museum or bundle id depending
// on Kind.
type PurchaseHistoryItem struct {
    ID           uint64    `json:"id"`
    Kind         string    `json:"type"`
    ItemID       uint64    `json:"item_id"`
    ItemName     string    `json:"item_name"`
    PurchaseDate time.Time `json:"purchase_date"`
    ExpiryDate   time.Time `json:"expiry_date"`
    PriceCents   int64     `json:"price_cents"`
    PaymentRef   string    `json:"payment_ref"`
    IsActive     bool      `json:"is_active"`
}

// PurchaseStats summarises one user's purchase history for the analytics
// overview.
type PurchaseStats struct {
    TotalSpentCents int64 `json:"total_spent_cents"`
    TotalPurchases  int   `json:"total_purchases"`
    ActivePurchases int   `json:"active_purchases"`
}
