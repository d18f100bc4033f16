// Package amqp publishes ledger activity to RabbitMQ and consumes it in the
// worker.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
	maxBackoff       = 30 * time.Second
	publishTimeout   = 5 * time.Second
)

var ErrCircuitOpen = errors.New("activity publishing paused after repeated broker failures")

// Client owns one connection and channel to the broker, bound to a durable
// direct exchange and a queue routed by its own name.
type Client struct {
	url      string
	exchange string
	queue    string
	breaker  *breaker

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func NewClient(url, exchange, queue string) (*Client, error) {
	c := newClient(url, exchange, queue)
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func newClient(url, exchange, queue string) *Client {
	return &Client{
		url:      url,
		exchange: exchange,
		queue:    queue,
		breaker:  newBreaker(breakerThreshold, breakerCooldown),
	}
}

// connect dials and declares the topology. Must not be called with mu held.
func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := c.declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare topology: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel = conn, ch
	c.mu.Unlock()
	return nil
}

func (c *Client) declare(ch *amqp091.Channel) error {
	if err := ch.ExchangeDeclare(c.exchange, amqp091.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange %s: %w", c.exchange, err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue %s: %w", c.queue, err)
	}
	return ch.QueueBind(c.queue, c.queue, c.exchange, false, nil)
}

// channelOrReconnect returns the live channel, dialing again if it closed.
func (c *Client) channelOrReconnect() (*amqp091.Channel, error) {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch != nil && !ch.IsClosed() {
		return ch, nil
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel, nil
}

// PublishActivity sends msg as a persistent JSON message. While the breaker
// is open it fails fast with ErrCircuitOpen.
func (c *Client) PublishActivity(ctx context.Context, msg *ActivityMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.breaker.allow() {
		return fmt.Errorf("%w: dropping %s", ErrCircuitOpen, msg.MutationID)
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}
	ch, err := c.channelOrReconnect()
	if err != nil {
		c.breaker.failure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	err = ch.PublishWithContext(ctx, c.exchange, c.queue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    msg.MutationID,
		Timestamp:    msg.Timestamp,
		Body:         body,
	})
	if err != nil {
		c.breaker.failure()
		if isConnectionError(err) {
			c.dropConnection()
		}
		return fmt.Errorf("publish activity: %w", err)
	}
	c.breaker.success()

	slog.DebugContext(ctx, "Published activity message",
		"mutation_id", msg.MutationID,
		"kind", msg.Kind,
		"exchange", c.exchange)
	return nil
}

// Handler processes one activity message. A returned error requeues it.
type Handler func(context.Context, *ActivityMessage) error

// ConsumeActivity delivers messages to handle until ctx is done, reconnecting
// with exponential backoff when the connection drops.
func (c *Client) ConsumeActivity(ctx context.Context, prefetch int, handle Handler) error {
	for attempt := 0; ; attempt++ {
		err := c.consume(ctx, prefetch, handle)
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) {
			return err
		}
		c.dropConnection()
		wait := backoff(attempt)
		slog.WarnContext(ctx, "AMQP consumer disconnected, retrying", "error", err, "backoff", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consume(ctx context.Context, prefetch int, handle Handler) error {
	ch, err := c.channelOrReconnect()
	if err != nil {
		return fmt.Errorf("connection unavailable: %w", err)
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}
	}
	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	slog.InfoContext(ctx, "Started consuming activity messages", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("message channel closed")
			}
			dispatch(ctx, d, d.Body, handle)
		}
	}
}

// acknowledger is the part of amqp091.Delivery that dispatch settles.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// dispatch decodes body and settles the delivery: malformed messages are
// dropped, handler errors requeue, success acks.
func dispatch(ctx context.Context, d acknowledger, body []byte, handle Handler) {
	msg, err := ActivityMessageFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Dropping malformed activity message", "error", err)
		_ = d.Nack(false, false)
		return
	}
	if err := handle(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Activity handler failed, requeueing", "error", err, "mutation_id", msg.MutationID)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func (c *Client) dropConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// backoff doubles from one second up to maxBackoff.
func backoff(attempt int) time.Duration {
	return min(time.Second<<min(max(attempt, 0), 5), maxBackoff)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel closed"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
