package database

import (
	"strings"
	"testing"
)

func TestStatementsCoverEveryTable(t *testing.T) {
	stmts := Statements()
	want := []string{"users", "refresh_tokens", "museums", "bundles", "bundle_museums", "purchases", "bundle_purchases"}
	if len(stmts) != len(want) {
		t.Fatalf("got %d statements, want %d", len(stmts), len(want))
	}
	for i, table := range want {
		if !strings.HasPrefix(stmts[i], "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("statement %d = %.60q, want table %s", i, stmts[i], table)
		}
	}
}

func TestPaymentRefIsUnique(t *testing.T) {
	for _, s := range Statements() {
		if strings.Contains(s, "payment_ref") && !strings.Contains(s, "UNIQUE KEY") {
			t.Errorf("ledger table without unique payment_ref: %.60q", s)
		}
	}
}
