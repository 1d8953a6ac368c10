package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the fanout exchange carrying campaign change events
const DefaultExchange = "campaign_changes"

// AMQPFeed is a ChangeFeed backed by a RabbitMQ fanout exchange. Every
// process that writes to the database publishes here, so subscriptions stay
// live across API instances and the engine callback path.
type AMQPFeed struct {
	conn     *Connection
	exchange string
}

// NewAMQPFeed creates a change feed on the given fanout exchange
func NewAMQPFeed(conn *Connection, exchange string) (*AMQPFeed, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if exchange == "" {
		return nil, errors.New("exchange name cannot be empty")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"fanout",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &AMQPFeed{conn: conn, exchange: exchange}, nil
}

// Publish broadcasts a change event to all bound subscriber queues
func (f *AMQPFeed) Publish(change Change) error {
	body, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}

	ch, err := f.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}

	err = ch.Publish(
		f.exchange,
		"",    // routing key (ignored by fanout)
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}

	return nil
}

// Subscribe binds a private auto-delete queue to the exchange and streams
// change events from it until the returned cancel function is called.
func (f *AMQPFeed) Subscribe() (<-chan Change, func(), error) {
	ch, err := f.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		"",    // server-generated name
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to declare subscriber queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", f.exchange, false, nil); err != nil {
		return nil, nil, fmt.Errorf("failed to bind subscriber queue: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"",   // consumer tag (auto-generated)
		true, // auto-ack: change events are re-derived from the store, loss is tolerable
		true, // exclusive
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	out := make(chan Change, 16)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(out)

		for {
			select {
			case <-stop:
				return
			case d, ok := <-msgs:
				if !ok {
					log.Println("change feed delivery channel closed")
					return
				}

				var change Change
				if err := json.Unmarshal(d.Body, &change); err != nil {
					log.Printf("change feed: failed to unmarshal event: %v", err)
					continue
				}

				select {
				case out <- change:
				case <-stop:
					return
				}
			}
		}
	}()

	cancel := func() {
		close(stop)
		<-done
	}

	return out, cancel, nil
}
