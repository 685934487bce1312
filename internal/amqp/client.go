package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"teamledger/internal/core"
)

const (
	publishTimeout = 5 * time.Second
	dialAttempts   = 3
	maxBackoff     = 30 * time.Second

	// Circuit breaker tuning.
	maxFailures = 5
	openTimeout = 30 * time.Second
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

// Client publishes operation events to a durable direct exchange. A broken
// connection is re-dialled on the next publish; repeated failures open a
// circuit breaker so writes are not slowed by a dead broker.
type Client struct {
	url          string
	exchangeName string
	routingKey   string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

// NewClient dials the broker and declares the exchange.
func NewClient(url, exchangeName, routingKey string) (*Client, error) {
	if exchangeName == "" || routingKey == "" {
		return nil, errors.New("exchange and routing key are required")
	}

	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		routingKey:   routingKey,
	}

	var err error
	for attempt := 0; attempt < dialAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(exponentialBackoff(attempt - 1))
		}
		c.mu.Lock()
		err = c.connectLocked()
		c.mu.Unlock()
		if err == nil {
			return c, nil
		}
		slog.Warn("AMQP connection attempt failed", "component", "amqp", "attempt", attempt+1, "error", err)
	}
	return nil, err
}

func (c *Client) connectLocked() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return nil
}

func (c *Client) resetLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// PublishOperationCreated sends an operation.created event for op.
func (c *Client) PublishOperationCreated(ctx context.Context, op core.Operation) error {
	if c.isCircuitOpen() {
		return errors.New("publish skipped: circuit breaker is open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := NewOperationCreatedMessage(op)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel == nil || c.channel.IsClosed() {
		c.resetLocked()
		if err := c.connectLocked(); err != nil {
			c.recordFailure()
			return fmt.Errorf("reconnect: %w", err)
		}
	}

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.routingKey,   // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    msg.Timestamp,
			MessageId:    op.ID,
			Type:         c.routingKey,
			Body:         body,
		},
	)
	if err != nil {
		if isConnectionError(err) {
			c.resetLocked()
		}
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	slog.DebugContext(ctx, "Published operation event",
		"component", "amqp",
		"id", op.ID,
		"invoice_number", op.InvoiceNumber,
		"exchange", c.exchangeName,
		"routing_key", c.routingKey)

	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	if time.Since(c.lastFailure) > openTimeout {
		// Let one publish through to probe the broker.
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		c.lastFailure = time.Now()
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff returns 1s, 2s, 4s, ... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

var connectionErrorMarkers = []string{
	"connection refused",
	"connection closed",
	"connection reset",
	"EOF",
	"broken pipe",
	"closed network connection",
	"channel/connection is not open",
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, marker := range connectionErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
