package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"github.com/iliyamo/museum-tour-access/internal/entitlement"
	"github.com/iliyamo/museum-tour-access/internal/model"
	"github.com/iliyamo/museum-tour-access/internal/payment"
	"github.com/iliyamo/museum-tour-access/internal/queue"
)

type fakeGateway struct {
	mu      sync.Mutex
	charges map[string]*payment.Charge
	events  map[string]*payment.Event
	status  string // status given to new charges
	created []payment.ChargeRequest
}

func newFakeGateway(status string) *fakeGateway {
	return &fakeGateway{charges: map[string]*payment.Charge{}, events: map[string]*payment.Event{}, status: status}
}

func (g *fakeGateway) CreateCharge(_ context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	ch := &payment.Charge{
		ID:       "chrg_test_" + string(rune('a'+len(g.created)-1)),
		Status:   g.status,
		Amount:   req.Amount,
		Currency: req.Currency,
		Metadata: req.Metadata,
	}
	g.charges[ch.ID] = ch
	c := *ch
	return &c, nil
}

func (g *fakeGateway) RetrieveCharge(_ context.Context, id string) (*payment.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.charges[id]
	if !ok {
		return nil, errors.New("charge not found")
	}
	c := *ch
	return &c, nil
}

func (g *fakeGateway) RetrieveEvent(_ context.Context, id string) (*payment.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ev, ok := g.events[id]
	if !ok {
		return nil, errors.New("event not found")
	}
	return ev, nil
}

func (g *fakeGateway) settle(id string) {
	g.mu.Lock()
	g.charges[id].Status = payment.StatusSuccessful
	g.mu.Unlock()
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.PurchaseRecordedEvent
	err    error
}

func (p *fakePublisher) PublishPurchase(_ context.Context, ev queue.PurchaseRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type env struct {
	checkout *Checkout
	gateway  *fakeGateway
	pub      *fakePublisher
	resolver *entitlement.Resolver
	clock    *testclock.Clock
}

func newEnv(status string) *env {
	ledger := entitlement.NewMemoryLedger()
	cat := entitlement.NewMemoryCatalog()
	cat.PutMuseum(model.Museum{ID: 1, Name: "Louvre", PriceCents: 1500})
	cat.PutMuseum(model.Museum{ID: 2, Name: "Orsay", PriceCents: 1200})
	cat.PutMuseum(model.Museum{ID: 3, Name: "Prado", PriceCents: 1300})
	cat.PutBundle(model.Bundle{ID: 1, Name: "Paris", PriceCents: 2400, ValidityDays: 60})
	ledger.AddBundleMuseum(1, 1)
	ledger.AddBundleMuseum(1, 2)

	gw := newFakeGateway(status)
	pub := &fakePublisher{}
	clk := testclock.NewClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	rec := entitlement.NewRecorder(ledger, cat)
	return &env{
		checkout: NewCheckout(cat, gw, rec, pub, clk, "USD"),
		gateway:  gw,
		pub:      pub,
		resolver: entitlement.NewResolver(ledger),
		clock:    clk,
	}
}

func TestCreateChargeUsesCatalogPriceAndMetadata(t *testing.T) {
	e := newEnv("pending")
	res, err := e.checkout.CreateCharge(context.Background(), ChargeInput{UserID: 7, Kind: "Museum", ItemID: 1, Token: "tokn_1"})
	if err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}
	if res.Receipt != nil {
		t.Fatal("pending charge produced a receipt")
	}
	req := e.gateway.created[0]
	if req.Amount != 1500 || req.Currency != "usd" {
		t.Fatalf("charge request = %+v", req)
	}
	if req.Metadata[payment.MetaUserID] != "7" || req.Metadata[payment.MetaType] != "museum" || req.Metadata[payment.MetaItemID] != "1" {
		t.Fatalf("metadata = %v", req.Metadata)
	}
}

func TestCreateChargeRejectsBadInput(t *testing.T) {
	e := newEnv("pending")
	ctx := context.Background()

	if _, err := e.checkout.CreateCharge(ctx, ChargeInput{UserID: 7, Kind: "ticket", ItemID: 1}); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("kind error = %v", err)
	}
	if _, err := e.checkout.CreateCharge(ctx, ChargeInput{UserID: 7, Kind: "bundle", ItemID: 9}); !errors.Is(err, entitlement.ErrNotFound) {
		t.Fatalf("unknown bundle error = %v", err)
	}
	var pm *entitlement.PriceMismatchError
	if _, err := e.checkout.CreateCharge(ctx, ChargeInput{UserID: 7, Kind: "museum", ItemID: 1, Amount: 100}); !errors.As(err, &pm) {
		t.Fatalf("amount error = %v", err)
	}
	if len(e.gateway.created) != 0 {
		t.Fatalf("gateway charged %d times for rejected input", len(e.gateway.created))
	}
}

func TestSynchronousChargeRecordsPurchase(t *testing.T) {
	e := newEnv(payment.StatusSuccessful)
	ctx := context.Background()
	res, err := e.checkout.CreateCharge(ctx, ChargeInput{UserID: 7, Kind: "bundle", ItemID: 1, Token: "tokn_1"})
	if err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}
	if res.Receipt == nil || res.Receipt.Bundle == nil || res.Receipt.Replayed {
		t.Fatalf("receipt = %+v", res.Receipt)
	}
	ids, _ := e.resolver.ActiveMuseums(ctx, 7, e.clock.Now())
	if len(ids) != 2 {
		t.Fatalf("active museums = %v", ids)
	}
	if len(e.pub.events) != 1 || e.pub.events[0].ItemName != "Paris" || e.pub.events[0].Kind != model.KindBundle {
		t.Fatalf("events = %+v", e.pub.events)
	}
}

func TestConfirmRequiresSuccessfulCharge(t *testing.T) {
	e := newEnv("pending")
	ctx := context.Background()
	res, _ := e.checkout.CreateCharge(ctx, ChargeInput{UserID: 7, Kind: "museum", ItemID: 3, Token: "tokn_1"})

	_, err := e.checkout.Confirm(ctx, res.Charge.ID, 7)
	var inc *PaymentIncompleteError
	if !errors.As(err, &inc) || inc.Status != "pending" {
		t.Fatalf("confirm pending = %v", err)
	}

	e.gateway.settle(res.Charge.ID)
	if _, err := e.checkout.Confirm(ctx, res.Charge.ID, 8); !errors.Is(err, ErrChargeOwner) {
		t.Fatalf("confirm by other user = %v", err)
	}
	rec, err := e.checkout.Confirm(ctx, res.Charge.ID, 7)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if rec.Direct == nil || rec.Direct.MuseumID != 3 || rec.Direct.PaymentRef != res.Charge.ID {
		t.Fatalf("receipt = %+v", rec)
	}
	ok, _ := e.resolver.HasAccess(ctx, 7, 3, e.clock.Now())
	if !ok {
		t.Fatal("confirmed purchase does not grant access")
	}
}

func TestConfirmReplayPublishesOnce(t *testing.T) {
	e := newEnv("pending")
	ctx := context.Background()
	res, _ := e.checkout.CreateCharge(ctx, ChargeInput{UserID: 7, Kind: "museum", ItemID: 1, Token: "tokn_1"})
	e.gateway.settle(res.Charge.ID)

	first, err := e.checkout.Confirm(ctx, res.Charge.ID, 7)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	e.clock.Advance(time.Hour)
	second, err := e.checkout.Confirm(ctx, res.Charge.ID, 7)
	if err != nil {
		t.Fatalf("confirm replay: %v", err)
	}
	if !second.Replayed || second.Direct.ID != first.Direct.ID {
		t.Fatalf("replay receipt = %+v", second)
	}
	if len(e.pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(e.pub.events))
	}
}

func TestPublishFailureDoesNotFailPurchase(t *testing.T) {
	e := newEnv(payment.StatusSuccessful)
	e.pub.err = errors.New("broker down")
	res, err := e.checkout.CreateCharge(context.Background(), ChargeInput{UserID: 7, Kind: "museum", ItemID: 1, Token: "tokn_1"})
	if err != nil || res.Receipt == nil {
		t.Fatalf("CreateCharge = %+v, %v", res, err)
	}
}

func TestHandleEvent(t *testing.T) {
	e := newEnv("pending")
	ctx := context.Background()
	res, _ := e.checkout.CreateCharge(ctx, ChargeInput{UserID: 7, Kind: "museum", ItemID: 2, Token: "tokn_1"})
	e.gateway.events["evnt_other"] = &payment.Event{ID: "evnt_other", Key: "customer.create"}
	e.gateway.events["evnt_1"] = &payment.Event{ID: "evnt_1", Key: payment.EventChargeComplete, ChargeID: res.Charge.ID}

	if rec, err := e.checkout.HandleEvent(ctx, "evnt_other"); rec != nil || err != nil {
		t.Fatalf("unrelated event = %+v, %v", rec, err)
	}
	if rec, err := e.checkout.HandleEvent(ctx, "evnt_1"); rec != nil || err != nil {
		t.Fatalf("event for pending charge = %+v, %v", rec, err)
	}
	e.gateway.settle(res.Charge.ID)
	rec, err := e.checkout.HandleEvent(ctx, "evnt_1")
	if err != nil || rec == nil || rec.Direct.UserID != 7 {
		t.Fatalf("settled event = %+v, %v", rec, err)
	}
	if _, err := e.checkout.HandleEvent(ctx, "evnt_forged"); err == nil {
		t.Fatal("unknown event accepted")
	}
}

func TestRecordRejectsForeignCurrencyAndBadMetadata(t *testing.T) {
	e := newEnv(payment.StatusSuccessful)
	ctx := context.Background()
	e.gateway.charges["chrg_eur"] = &payment.Charge{ID: "chrg_eur", Status: payment.StatusSuccessful, Amount: 1500, Currency: "eur",
		Metadata: map[string]string{payment.MetaUserID: "7", payment.MetaType: "museum", payment.MetaItemID: "1"}}
	e.gateway.charges["chrg_bad"] = &payment.Charge{ID: "chrg_bad", Status: payment.StatusSuccessful, Amount: 1500, Currency: "usd",
		Metadata: map[string]string{payment.MetaUserID: "7"}}

	if _, err := e.checkout.Confirm(ctx, "chrg_eur", 7); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("eur charge = %v", err)
	}
	if _, err := e.checkout.Confirm(ctx, "chrg_bad", 7); !errors.Is(err, ErrChargeMetadata) {
		t.Fatalf("bad metadata = %v", err)
	}
}
