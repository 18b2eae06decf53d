package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// PurchaseLogFile is the file, under the consumer's log directory, that
// receives one line per purchase event.
const PurchaseLogFile = "purchases.log"

// errMalformed marks messages that can never be processed.  Anything else
// (disk full, permissions) is treated as transient and redelivered.
var errMalformed = errors.New("malformed purchase event")

// acknowledger is the part of amqp.Delivery used to settle a message.
type acknowledger interface {
    Ack(multiple bool) error
    Nack(multiple, requeue bool) error
}

// StartPurchaseConsumer connects to RabbitMQ, declares the
// purchase.recorded queue (durable), and consumes messages until ctx is
// cancelled.  Each message is appended to logDir/purchases.log as a single
// human-friendly line.  Broker failures are retried with exponential
// backoff; malformed messages are rejected without requeue so the loop
// never stalls on them.
func StartPurchaseConsumer(ctx context.Context, url, logDir string) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Printf("purchase-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            if !sleepCtx(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = consumeLoop(ctx, conn, logDir)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Printf("purchase-consumer: consume loop ended: %v; reconnecting", err)
        if !sleepCtx(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logDir string) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("purchase-consumer: set QoS failed: %v", err)
    }

    _, err = ch.QueueDeclare(PurchaseQueueName, true, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.Consume(PurchaseQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if requeued := settle(d, handleMessage(logDir, d.Body)); requeued {
                // back off so a broken disk does not spin the redelivery loop
                if !sleepCtx(ctx, time.Second) {
                    return ctx.Err()
                }
            }
        }
    }
}

// settle acks a handled message, rejects a malformed one and requeues
// on any other failure.  It reports whether the message was requeued.
func settle(d acknowledger, err error) bool {
    switch {
    case err == nil:
        _ = d.Ack(false)
        return false
    case errors.Is(err, errMalformed):
        log.Printf("purchase-consumer: dropping message: %v", err)
        _ = d.Nack(false, false)
        return false
    }
    log.Printf("purchase-consumer: handle message failed, requeueing: %v", err)
    _ = d.Nack(false, true)
    return true
}

func handleMessage(logDir string, body []byte) error {
    var ev PurchaseRecordedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("%w: %v", errMalformed, err)
    }
    if ev.PurchaseID == 0 || ev.UserID == 0 {
        return fmt.Errorf("%w: no purchase or user id", errMalformed)
    }
    if err := os.MkdirAll(logDir, 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(filepath.Join(logDir, PurchaseLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(formatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

func formatLine(ev PurchaseRecordedEvent) string {
    return fmt.Sprintf("[%s] Purchase recorded | event_id=%s | type=%s | purchase_id=%d | user_id=%d | item_id=%d | item=%q | total=%d cents | expires=%s | payment_ref=%s\n",
        ev.PurchaseDate, ev.EventID, ev.Kind, ev.PurchaseID, ev.UserID, ev.ItemID, ev.ItemName, ev.PriceCents, ev.ExpiryDate, ev.PaymentRef)
}
