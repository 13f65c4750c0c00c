package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/subflow/subscription-service/internal/repository"
)

// Store persists billing records.  Implemented by repository.BillingRepo;
// tests substitute a fake.
type Store interface {
	Insert(ctx context.Context, rec repository.BillingRecord) error
}

// State tracks where the consumer worker is in its connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConsuming
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConsuming:
		return "consuming"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Connection and Channel abstract the slice of the AMQP client the
// consumer touches, so the reconnect machinery is testable without a
// broker.
type Connection interface {
	Channel() (Channel, error)
	Close() error
}

type Channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Dialer opens a broker connection.  The default dials RabbitMQ.
type Dialer func(url string) (Connection, error)

type amqpConnection struct{ *amqp.Connection }

func (c amqpConnection) Channel() (Channel, error) { return c.Connection.Channel() }

func amqpDial(url string) (Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn}, nil
}

const persistTimeout = 10 * time.Second

// Consumer is the billing worker.  It owns exactly one long-lived
// goroutine with its own connection lifecycle:
//
//	disconnected -> connecting -> consuming -> (on error) disconnected -> ... -> stopped
//
// On any connection-level failure it waits a fixed backoff and retries
// forever; only Stop ends the loop.  Messages are consumed one at a time
// (prefetch 1) with automatic acknowledgment, so persistence is
// at-most-once: an event whose insert fails is logged and not redelivered.
type Consumer struct {
	url     string
	queue   string
	backoff time.Duration
	store   Store
	logger  *zap.Logger
	dial    Dialer

	state atomic.Int32

	mu   sync.Mutex
	conn Connection

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewConsumer builds a consumer for the given broker URL and queue.  A nil
// logger is replaced with a no-op logger.
func NewConsumer(url, queueName string, backoff time.Duration, store Store, logger *zap.Logger) *Consumer {
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		url:     url,
		queue:   queueName,
		backoff: backoff,
		store:   store,
		logger:  logger.With(zap.String("component", "billing-consumer"), zap.String("queue", queueName)),
		dial:    amqpDial,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// State returns the worker's current lifecycle state.
func (c *Consumer) State() State { return State(c.state.Load()) }

// Start launches the worker goroutine.  It returns immediately; the worker
// keeps reconnecting until Stop is called.
func (c *Consumer) Start() {
	go c.run()
}

// Stop signals the worker to exit, closes any open connection so a blocked
// receive unblocks, and waits for the worker to settle or the context to
// expire.  It is safe to call from any goroutine, any number of times.
func (c *Consumer) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.closeConn()
	})
	select {
	case <-c.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Consumer) run() {
	defer close(c.doneCh)
	defer c.state.Store(int32(StateStopped))

	for {
		if c.stopping() {
			return
		}
		c.state.Store(int32(StateConnecting))
		conn, err := c.dial(c.url)
		if err != nil {
			c.logger.Error("broker dial failed", zap.Error(err), zap.Duration("retry_in", c.backoff))
			c.state.Store(int32(StateDisconnected))
			if !c.wait() {
				return
			}
			continue
		}
		c.setConn(conn)
		c.logger.Info("billing worker connected, waiting for billing results")

		err = c.consume(conn)
		c.setConn(nil)
		_ = conn.Close()
		if c.stopping() {
			return
		}
		c.logger.Error("consume loop ended", zap.Error(err), zap.Duration("retry_in", c.backoff))
		c.state.Store(int32(StateDisconnected))
		if !c.wait() {
			return
		}
	}
}

// consume runs one connection's delivery loop.  It returns nil only when a
// stop was requested; any other return is a connection-level failure.
func (c *Consumer) consume(conn Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Prefetch 1: one unacknowledged message at a time, so a slow insert
	// cannot balloon in-flight work.
	if err := ch.Qos(1, 0, false); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return err
	}
	msgs, err := ch.Consume(c.queue, "", true, false, false, false, nil)
	if err != nil {
		return err
	}
	c.state.Store(int32(StateConsuming))

	for {
		select {
		case <-c.stopCh:
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(d.Body)
		}
	}
}

// handle processes one delivery.  Nothing it does may escape the worker:
// an unparsable body is logged and dropped, and a failed insert is logged
// with the message still counted as handled.
func (c *Consumer) handle(body []byte) {
	var ev BillingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		c.logger.Warn("dropping unparsable billing message", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	rec := repository.BillingRecord{
		CustomerEmail:   ev.CustomerEmail,
		Amount:          ev.Amount,
		Currency:        ev.Currency,
		PaymentIntentID: ev.PaymentIntentID,
		ClientSecret:    ev.ClientSecret,
		Status:          ev.Status,
	}
	if err := c.store.Insert(ctx, rec); err != nil {
		c.logger.Error("storing billing record failed",
			zap.String("customer_email", ev.CustomerEmail),
			zap.String("payment_intent_id", ev.PaymentIntentID),
			zap.Error(err))
		return
	}
	c.logger.Info("stored billing record",
		zap.String("customer_email", ev.CustomerEmail),
		zap.String("payment_intent_id", ev.PaymentIntentID),
		zap.String("status", ev.Status))
}

// wait blocks for the backoff interval.  It returns false when a stop was
// requested during the wait.
func (c *Consumer) wait() bool {
	t := time.NewTimer(c.backoff)
	defer t.Stop()
	select {
	case <-c.stopCh:
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) stopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Consumer) setConn(conn Connection) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Consumer) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}
