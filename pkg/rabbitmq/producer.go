/**
 * @description
 * This package provides the producer used to publish posted-transaction
 * events to RabbitMQ after a transfer commits. Publication is strictly
 * best-effort: the transfer has already committed by the time an event is
 * produced, so failures here are logged and never propagated.
 *
 * @dependencies
 * - context, encoding/json, time: Standard Go libraries.
 * - github.com/google/uuid: Event envelope identifiers.
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// PostedTransactionRef identifies one committed transaction row for
// downstream consumers.
type PostedTransactionRef struct {
	EntityKind string `json:"entity_kind"`
	ID         int64  `json:"id"`
}

// TransactionsPostedEvent is the payload published after a transfer commits.
type TransactionsPostedEvent struct {
	EventID      uuid.UUID              `json:"event_id"`
	RefID        string                 `json:"ref_id"`
	Transactions []PostedTransactionRef `json:"transactions"`
	Timestamp    time.Time              `json:"timestamp"`
}

// Publisher is the interface implemented by types that can publish
// posted-transaction events.
type Publisher interface {
	PublishTransactionsPosted(ctx context.Context, event TransactionsPostedEvent) error
	Close()
}

// EventProducer holds the RabbitMQ connection and channel for publishing.
type EventProducer struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

// NoopProducer is a minimal publisher used when RabbitMQ is unavailable at
// startup. It logs and drops every event so transfers remain unaffected.
type NoopProducer struct{}

func (p *NoopProducer) PublishTransactionsPosted(ctx context.Context, event TransactionsPostedEvent) error {
	log.Printf("level=warn component=rabbitmq_producer mode=noop msg=\"event publish skipped\" ref_id=%s", event.RefID)
	return nil
}

func (p *NoopProducer) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer connects to RabbitMQ and declares the durable topic
// exchange events are published to.
func NewEventProducer(amqpURL, exchange string) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	// Bounded dial timeout so startup does not hang indefinitely.
	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &EventProducer{conn: conn, channel: ch, exchange: exchange}, nil
}

// PublishTransactionsPosted publishes a posted-transaction event with the
// routing key "transaction.posted".
func (p *EventProducer) PublishTransactionsPosted(ctx context.Context, event TransactionsPostedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	publishing := amqp091.Publishing{
		ContentType: "application/json",
		MessageId:   event.EventID.String(),
		Timestamp:   event.Timestamp,
		Body:        body,
	}

	err = p.channel.PublishWithContext(ctx, p.exchange, "transaction.posted", false, false, publishing)
	if err == nil {
		return nil
	}

	// One-shot retry: reopen the channel and try again.
	log.Printf("level=warn component=rabbitmq_producer msg=\"publish failed; reopening channel\" ref_id=%s err=%v", event.RefID, err)
	ch, chErr := p.conn.Channel()
	if chErr != nil {
		return err
	}
	p.channel = ch
	if exErr := p.channel.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); exErr != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx, p.exchange, "transaction.posted", false, false, publishing)
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (p *EventProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
