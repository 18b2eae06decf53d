// Package payment talks to the external card payment gateway.  Only the
// narrow Gateway interface is used by the rest of the service so the
// gateway can be faked in tests.
package payment

import (
	"context"
	"errors"
)

// StatusSuccessful is the charge status that allows a purchase to be
// recorded.  Other statuses are pending, failed, expired, reversed.
const StatusSuccessful = "successful"

// Metadata keys attached to every charge.
const (
	MetaUserID = "user_id"
	MetaType   = "type"
	MetaItemID = "item_id"
)

// EventChargeComplete is the webhook event key sent when a charge settles.
const EventChargeComplete = "charge.complete"

var ErrInvalidCharge = errors.New("invalid charge request")

// Charge is the subset of a gateway charge the service relies on.
type Charge struct {
	ID             string
	Status         string
	Amount         int64
	Currency       string
	Metadata       map[string]string
	AuthorizeURI   string
	FailureMessage string
}

// ChargeRequest describes a new charge.  Token is the card token created
// client side; Source may be used instead for non-card methods.
type ChargeRequest struct {
	Amount   int64
	Currency string
	Token    string
	Source   string
	Metadata map[string]string
}

// Event is a verified webhook event.  ChargeID is set for charge events.
type Event struct {
	ID       string
	Key      string
	ChargeID string
}

// Gateway is implemented by OmiseGateway and by fakes in tests.
type Gateway interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	RetrieveCharge(ctx context.Context, id string) (*Charge, error)
	RetrieveEvent(ctx context.Context, id string) (*Event, error)
}
