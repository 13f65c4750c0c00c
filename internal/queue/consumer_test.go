package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subflow/subscription-service/internal/repository"
)

// fakeStore records inserted billing records and can be told to fail.
type fakeStore struct {
	mu       sync.Mutex
	recs     []repository.BillingRecord
	err      error
	attempts int
}

func (s *fakeStore) Insert(_ context.Context, rec repository.BillingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.err != nil {
		return s.err
	}
	s.recs = append(s.recs, rec)
	return nil
}

func (s *fakeStore) records() []repository.BillingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.BillingRecord, len(s.recs))
	copy(out, s.recs)
	return out
}

// fakeBroker implements Connection/Channel and lets tests feed deliveries
// and sever the link like a broker outage would.
type fakeBroker struct {
	deliveries chan amqp.Delivery

	mu       sync.Mutex
	prefetch int
	queue    string
	closed   bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{deliveries: make(chan amqp.Delivery)}
}

func (b *fakeBroker) Channel() (Channel, error) { return b, nil }

func (b *fakeBroker) Qos(prefetchCount, _ int, _ bool) error {
	b.mu.Lock()
	b.prefetch = prefetchCount
	b.mu.Unlock()
	return nil
}

func (b *fakeBroker) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	b.mu.Lock()
	b.queue = name
	b.mu.Unlock()
	return amqp.Queue{Name: name}, nil
}

func (b *fakeBroker) Consume(_, _ string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	return b.deliveries, nil
}

// Close severs the link: the delivery channel closes, which is how the
// AMQP client surfaces a dropped connection to a consumer.
func (b *fakeBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.deliveries)
	}
	return nil
}

func (b *fakeBroker) deliver(body string) {
	b.deliveries <- amqp.Delivery{Body: []byte(body)}
}

// startConsumer wires a consumer to the given dialer with a short backoff
// and starts it.
func startConsumer(t *testing.T, store Store, dial Dialer) *Consumer {
	t.Helper()
	c := NewConsumer("amqp://test", "billing_results", 10*time.Millisecond, store, nil)
	c.dial = dial
	c.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.Stop(ctx)
	})
	return c
}

func waitForState(t *testing.T, c *Consumer, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == want },
		2*time.Second, 5*time.Millisecond, "consumer never reached %s", want)
}

const wellFormed = `{"customer_email":"a@b.com","amount":10.0,"currency":"usd","payment_intent_id":"pi_1","client_secret":"cs_1","status":"succeeded"}`

func TestConsumerStoresWellFormedEvent(t *testing.T) {
	store := &fakeStore{}
	broker := newFakeBroker()
	c := startConsumer(t, store, func(string) (Connection, error) { return broker, nil })

	waitForState(t, c, StateConsuming)
	broker.deliver(wellFormed)

	require.Eventually(t, func() bool { return len(store.records()) == 1 },
		2*time.Second, 5*time.Millisecond)

	rec := store.records()[0]
	assert.Equal(t, "a@b.com", rec.CustomerEmail)
	assert.Equal(t, 10.0, rec.Amount)
	assert.Equal(t, "usd", rec.Currency)
	assert.Equal(t, "pi_1", rec.PaymentIntentID)
	assert.Equal(t, "cs_1", rec.ClientSecret)
	assert.Equal(t, "succeeded", rec.Status)

	broker.mu.Lock()
	defer broker.mu.Unlock()
	assert.Equal(t, 1, broker.prefetch, "consumer must run with prefetch 1")
	assert.Equal(t, "billing_results", broker.queue)
}

func TestConsumerDropsMalformedMessage(t *testing.T) {
	store := &fakeStore{}
	broker := newFakeBroker()
	c := startConsumer(t, store, func(string) (Connection, error) { return broker, nil })

	waitForState(t, c, StateConsuming)
	broker.deliver("this is not json")
	// A well-formed follow-up proves the worker survived the bad message.
	broker.deliver(wellFormed)

	require.Eventually(t, func() bool { return len(store.records()) == 1 },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateConsuming, c.State())
}

func TestConsumerTreatsPersistenceFailureAsHandled(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	broker := newFakeBroker()
	c := startConsumer(t, store, func(string) (Connection, error) { return broker, nil })

	waitForState(t, c, StateConsuming)
	broker.deliver(wellFormed)

	// Wait for the failing insert before letting the store recover.
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.attempts == 1
	}, 2*time.Second, 5*time.Millisecond)

	// No retry, no crash: the worker keeps consuming.
	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()
	broker.deliver(wellFormed)

	require.Eventually(t, func() bool { return len(store.records()) == 1 },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateConsuming, c.State())
}

func TestConsumerReconnectsAfterDisconnect(t *testing.T) {
	store := &fakeStore{}

	var mu sync.Mutex
	var brokers []*fakeBroker
	dial := func(string) (Connection, error) {
		mu.Lock()
		defer mu.Unlock()
		b := newFakeBroker()
		brokers = append(brokers, b)
		return b, nil
	}

	c := startConsumer(t, store, dial)
	waitForState(t, c, StateConsuming)

	// Sever the link mid-consume.
	mu.Lock()
	first := brokers[0]
	mu.Unlock()
	_ = first.Close()

	// The worker backs off and re-enters consuming on a fresh connection
	// without any external intervention.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(brokers) == 2
	}, 2*time.Second, 5*time.Millisecond)
	waitForState(t, c, StateConsuming)

	mu.Lock()
	second := brokers[1]
	mu.Unlock()
	second.deliver(wellFormed)
	require.Eventually(t, func() bool { return len(store.records()) == 1 },
		2*time.Second, 5*time.Millisecond)
}

func TestConsumerRetriesFailedDial(t *testing.T) {
	store := &fakeStore{}
	broker := newFakeBroker()

	var mu sync.Mutex
	attempts := 0
	dial := func(string) (Connection, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return nil, errors.New("broker unreachable")
		}
		return broker, nil
	}

	c := startConsumer(t, store, dial)
	waitForState(t, c, StateConsuming)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
}

func TestStopIsIdempotentAndSettles(t *testing.T) {
	store := &fakeStore{}
	broker := newFakeBroker()
	c := startConsumer(t, store, func(string) (Connection, error) { return broker, nil })
	waitForState(t, c, StateConsuming)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
	require.NoError(t, c.Stop(ctx)) // second call is a no-op
	assert.Equal(t, StateStopped, c.State())
}
