package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/omise/omise-go"
)

func TestFromOmiseChargeFlattensMetadata(t *testing.T) {
	ch := &omise.Charge{}
	ch.ID = "chrg_test_1"
	ch.Status = omise.ChargeStatus("successful")
	ch.Amount = 1500
	ch.Currency = "usd"
	ch.Metadata = map[string]interface{}{
		MetaUserID: "42",
		MetaType:   "museum",
		MetaItemID: float64(7),
	}
	msg := "insufficient funds"
	ch.FailureMessage = &msg

	got := fromOmiseCharge(ch)
	if got.ID != "chrg_test_1" || got.Status != StatusSuccessful || got.Amount != 1500 {
		t.Fatalf("charge = %+v", got)
	}
	if got.Metadata[MetaUserID] != "42" || got.Metadata[MetaType] != "museum" || got.Metadata[MetaItemID] != "7" {
		t.Fatalf("metadata = %v", got.Metadata)
	}
	if got.FailureMessage != msg {
		t.Fatalf("failure message = %q", got.FailureMessage)
	}
}

func TestCreateChargeValidatesRequest(t *testing.T) {
	g := &OmiseGateway{}
	cases := []ChargeRequest{
		{Amount: 0, Currency: "usd", Token: "tokn_1"},
		{Amount: 100, Currency: "", Token: "tokn_1"},
		{Amount: 100, Currency: "usd"},
	}
	for _, req := range cases {
		if _, err := g.CreateCharge(context.Background(), req); !errors.Is(err, ErrInvalidCharge) {
			t.Errorf("CreateCharge(%+v) error = %v, want ErrInvalidCharge", req, err)
		}
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	g := &OmiseGateway{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	block := make(chan struct{})
	defer close(block)
	err := g.do(ctx, func() error { <-block; return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestNewOmiseGateway(t *testing.T) {
	g, err := NewOmiseGateway("pkey_test_5abc", "skey_test_5abc")
	if err != nil || g == nil || g.client == nil {
		t.Fatalf("gateway = %v, err = %v", g, err)
	}
	if _, err := NewOmiseGateway("", ""); err == nil {
		t.Fatal("client without keys accepted")
	}
}
