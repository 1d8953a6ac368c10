package store

import (
	"errors"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection maintains the broker connection behind the change feed together
// with a single shared channel, redialing lazily whenever either has gone away.
type Connection struct {
	url     string
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewConnection dials the broker and opens the feed channel
func NewConnection(url string) (*Connection, error) {
	if url == "" {
		return nil, errors.New("amqp url is required")
	}

	c := &Connection{url: url}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.dial(); err != nil {
		return nil, err
	}

	log.Println("Change feed connected to RabbitMQ")
	return c, nil
}

// dial establishes a fresh connection and channel. Caller holds c.mu.
func (c *Connection) dial() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("amqp dial failed: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp channel open failed: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return nil
}

// alive reports whether the current connection and channel are usable.
// Caller holds c.mu.
func (c *Connection) alive() bool {
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil
}

// Channel returns the live feed channel, redialing first when the broker
// connection has dropped
func (c *Connection) Channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.alive() {
		return c.channel, nil
	}

	log.Println("Change feed connection lost, redialing RabbitMQ")
	c.discard()
	if err := c.dial(); err != nil {
		return nil, fmt.Errorf("change feed redial failed: %w", err)
	}

	log.Println("Change feed reconnected to RabbitMQ")
	return c.channel, nil
}

// discard drops whatever is left of a dead connection, ignoring close errors
// on the way down. Caller holds c.mu.
func (c *Connection) discard() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close shuts the channel and connection down for good
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var closeErr error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			closeErr = fmt.Errorf("closing amqp channel: %w", err)
		}
		c.channel = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && closeErr == nil {
			closeErr = fmt.Errorf("closing amqp connection: %w", err)
		}
		c.conn = nil
	}

	if closeErr == nil {
		log.Println("Change feed connection closed")
	}
	return closeErr
}

// IsConnected reports whether the broker connection is currently up
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive()
}
