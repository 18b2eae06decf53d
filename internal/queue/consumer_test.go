package queue

import (
    "encoding/json"
    "errors"
    "os"
    "path/filepath"
    "strings"
    "testing"
    "time"

    "github.com/iliyamo/museum-tour-access/internal/model"
)

func TestHandleMessageAppendsLine(t *testing.T) {
    dir := t.TempDir()
    p := &model.DirectPurchase{
        ID:           11,
        UserID:       3,
        MuseumID:     4,
        PurchaseDate: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
        ExpiryDate:   time.Date(2025, 3, 31, 10, 0, 0, 0, time.UTC),
        PriceCents:   1500,
        PaymentRef:   "chrg_test_1",
    }
    ev := NewDirectPurchaseEvent(p, "Louvre")
    body, _ := json.Marshal(ev)

    for i := 0; i < 2; i++ {
        if err := handleMessage(dir, body); err != nil {
            t.Fatalf("handleMessage: %v", err)
        }
    }
    data, err := os.ReadFile(filepath.Join(dir, PurchaseLogFile))
    if err != nil {
        t.Fatalf("read log: %v", err)
    }
    lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
    if len(lines) != 2 {
        t.Fatalf("got %d lines, want 2", len(lines))
    }
    for _, want := range []string{"[2025-03-01T10:00:00Z]", "type=museum", "purchase_id=11", "user_id=3", `item="Louvre"`, "total=1500 cents", "expires=2025-03-31T10:00:00Z"} {
        if !strings.Contains(lines[0], want) {
            t.Errorf("line %q missing %q", lines[0], want)
        }
    }
}

func TestHandleMessageRejectsMalformed(t *testing.T) {
    dir := t.TempDir()
    if err := handleMessage(dir, []byte("{not json")); err == nil {
        t.Fatal("malformed body accepted")
    }
    if err := handleMessage(dir, []byte(`{"type":"museum"}`)); err == nil {
        t.Fatal("event without ids accepted")
    }
    if _, err := os.Stat(filepath.Join(dir, PurchaseLogFile)); !os.IsNotExist(err) {
        t.Fatalf("log file written for rejected messages: %v", err)
    }
}

func TestEventsCarryUniqueIDs(t *testing.T) {
    p := &model.BundlePurchase{ID: 1, UserID: 2, BundleID: 3}
    a := NewBundlePurchaseEvent(p, "Paris")
    b := NewBundlePurchaseEvent(p, "Paris")
    if a.EventID == "" || a.EventID == b.EventID {
        t.Fatalf("event ids %q and %q", a.EventID, b.EventID)
    }
    if a.Kind != model.KindBundle || a.ItemID != 3 {
        t.Fatalf("event = %+v", a)
    }
}

type fakeDelivery struct {
    acked, nacked, requeued bool
}

func (d *fakeDelivery) Ack(bool) error { d.acked = true; return nil }

func (d *fakeDelivery) Nack(_, requeue bool) error {
    d.nacked, d.requeued = true, requeue
    return nil
}

func TestSettleRequeuesOnlyTransientFailures(t *testing.T) {
    dir := t.TempDir()
    cases := []struct {
        name         string
        err          error
        ack, requeue bool
    }{
        {"handled", nil, true, false},
        {"malformed", handleMessage(dir, []byte("{not json")), false, false},
        {"missing ids", handleMessage(dir, []byte(`{"type":"museum"}`)), false, false},
        {"disk", errors.New("open log file: no space left on device"), false, true},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            d := &fakeDelivery{}
            requeued := settle(d, tc.err)
            if d.acked != tc.ack || requeued != tc.requeue || d.requeued != tc.requeue {
                t.Fatalf("delivery = %+v, requeued = %v", d, requeued)
            }
            if !tc.ack && !d.nacked {
                t.Fatal("failed message neither acked nor nacked")
            }
        })
    }
}

func TestHandleMessageWriteFailureIsTransient(t *testing.T) {
    // a regular file where the log directory should be makes MkdirAll fail
    blocker := filepath.Join(t.TempDir(), "logs")
    if err := os.WriteFile(blocker, nil, 0o644); err != nil {
        t.Fatal(err)
    }
    ev := NewDirectPurchaseEvent(&model.DirectPurchase{ID: 1, UserID: 2, MuseumID: 3}, "Igongo")
    body, _ := json.Marshal(ev)
    err := handleMessage(blocker, body)
    if err == nil || errors.Is(err, errMalformed) {
        t.Fatalf("err = %v, want a transient failure", err)
    }
}
