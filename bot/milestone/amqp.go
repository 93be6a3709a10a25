package milestone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange receives order milestones.
const DefaultExchange = "dispatch.milestones"

// Publisher sends events to a topic exchange with publisher confirms.
// Routing keys are order.<status> in lower case.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	acks     <-chan amqp.Confirmation
	exchange string
	timeout  time.Duration

	mu sync.Mutex
}

// DialPublisher connects to url and declares the exchange.
func DialPublisher(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp confirm mode: %w", err)
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	return &Publisher{conn: conn, ch: ch, acks: acks, exchange: exchange, timeout: 5 * time.Second}, nil
}

// RoutingKey returns the key an event is published under.
func RoutingKey(e Event) string {
	return "order." + strings.ToLower(e.To)
}

// Record implements Recorder. It waits for the broker confirm.
func (p *Publisher) Record(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode milestone: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(e), false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    e.ID.String(),
		Timestamp:    e.At,
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish milestone %s: %w", e.Ref, err)
	}

	select {
	case conf := <-p.acks:
		if conf.Ack {
			return nil
		}
		return errors.New("publish milestone: NACK from broker")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	return errors.Join(p.ch.Close(), p.conn.Close())
}
