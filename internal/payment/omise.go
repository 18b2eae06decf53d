package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	"github.com/pkg/errors"
)

// OmiseGateway implements Gateway over the Omise API.
type OmiseGateway struct {
	client *omise.Client
}

// NewOmiseGateway builds a client from the public and secret keys.
func NewOmiseGateway(publicKey, secretKey string) (*OmiseGateway, error) {
	c, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, errors.Wrap(err, "omise client")
	}
	return &OmiseGateway{client: c}, nil
}

func (g *OmiseGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if req.Amount <= 0 || req.Currency == "" || (req.Token == "" && req.Source == "") {
		return nil, ErrInvalidCharge
	}
	meta := make(map[string]interface{}, len(req.Metadata))
	for k, v := range req.Metadata {
		meta[k] = v
	}
	ch := &omise.Charge{}
	op := &operations.CreateCharge{
		Amount:   req.Amount,
		Currency: req.Currency,
		Card:     req.Token,
		Source:   req.Source,
		Metadata: meta,
	}
	if err := g.do(ctx, func() error { return g.client.Do(ch, op) }); err != nil {
		return nil, errors.Wrap(err, "create charge")
	}
	return fromOmiseCharge(ch), nil
}

func (g *OmiseGateway) RetrieveCharge(ctx context.Context, id string) (*Charge, error) {
	ch := &omise.Charge{}
	if err := g.do(ctx, func() error { return g.client.Do(ch, &operations.RetrieveCharge{ChargeID: id}) }); err != nil {
		return nil, errors.Wrapf(err, "retrieve charge %s", id)
	}
	return fromOmiseCharge(ch), nil
}

// RetrieveEvent re-reads an event by id so webhook payloads are never
// trusted as sent.
func (g *OmiseGateway) RetrieveEvent(ctx context.Context, id string) (*Event, error) {
	ev := &omise.Event{}
	if err := g.do(ctx, func() error { return g.client.Do(ev, &operations.RetrieveEvent{EventID: id}) }); err != nil {
		return nil, errors.Wrapf(err, "retrieve event %s", id)
	}
	out := &Event{ID: ev.ID, Key: ev.Key}
	// Data is decoded as a generic map; round-trip it through JSON.
	raw, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, errors.Wrap(err, "marshal event data")
	}
	var ch omise.Charge
	if err := json.Unmarshal(raw, &ch); err == nil && strings.HasPrefix(ch.ID, "chrg_") {
		out.ChargeID = ch.ID
	}
	return out, nil
}

// do runs call on a goroutine so ctx cancellation is honoured; the
// client itself has no context support.
func (g *OmiseGateway) do(ctx context.Context, call func() error) error {
	done := make(chan error, 1)
	go func() { done <- call() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func fromOmiseCharge(ch *omise.Charge) *Charge {
	out := &Charge{
		ID:           ch.ID,
		Status:       string(ch.Status),
		Amount:       ch.Amount,
		Currency:     ch.Currency,
		AuthorizeURI: ch.AuthorizeURI,
		Metadata:     make(map[string]string, len(ch.Metadata)),
	}
	if ch.FailureMessage != nil {
		out.FailureMessage = *ch.FailureMessage
	}
	for k, v := range ch.Metadata {
		switch t := v.(type) {
		case string:
			out.Metadata[k] = t
		case float64:
			out.Metadata[k] = fmt.Sprintf("%.0f", t)
		default:
			out.Metadata[k] = fmt.Sprint(t)
		}
	}
	return out
}
