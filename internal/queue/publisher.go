package queue

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/juju/clock"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends purchase events to RabbitMQ over one long-lived
// connection.  A closed connection is re-dialled on the next publish.
type Publisher struct {
	url   string
	clock clock.Clock

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher dials the broker and declares the purchase queue.
func NewPublisher(url string, clk clock.Clock) (*Publisher, error) {
	p := &Publisher{url: url, clock: clk}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connectLocked() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return errors.Wrap(err, "dial rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return errors.Wrap(err, "open channel")
	}
	// durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(PurchaseQueueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return errors.Wrap(err, "declare queue")
	}
	p.conn, p.ch = conn, ch
	return nil
}

// PublishPurchase publishes ev as a persistent JSON message.
func (p *Publisher) PublishPurchase(ctx context.Context, ev PurchaseRecordedEvent) error {
	msg, err := p.message(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() || p.conn.IsClosed() {
		p.closeLocked()
		if err := p.connectLocked(); err != nil {
			log.Printf("rabbitmq: reconnect failed: %v", err)
			return err
		}
	}
	if err := p.ch.PublishWithContext(ctx, "", PurchaseQueueName, false, false, msg); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		if errors.Is(err, amqp.ErrClosed) {
			p.closeLocked()
		}
		return errors.Wrap(err, "publish")
	}
	return nil
}

// message encodes ev as a persistent JSON publishing stamped with the
// injected clock.
func (p *Publisher) message(ev PurchaseRecordedEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, errors.Wrap(err, "marshal event")
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Timestamp:    p.clock.Now().UTC(),
		Body:         body,
	}, nil
}

func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}
