package syncbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/event-checkin/internal/clock"
	"github.com/iliyamo/event-checkin/internal/model"
)

// DefaultExchange is the fanout exchange carrying ticket changes.
const DefaultExchange = "tickets.changes"

// Feed publishes committed ticket changes.
type Feed interface {
	Publish(ctx context.Context, ev model.ChangeEvent) error
}

func stamp(ev model.ChangeEvent, origin string, clk clock.Clock) model.ChangeEvent {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Origin == "" {
		ev.Origin = origin
	}
	if ev.At.IsZero() {
		ev.At = clk.Now()
	}
	if ev.TicketID == "" && ev.Ticket != nil {
		ev.TicketID = ev.Ticket.ID
	}
	return ev
}

// LocalFeed applies events straight to the cache.  It is the feed of
// the single-process variant, where the write and the view share memory.
type LocalFeed struct {
	cache  *Cache
	origin string
	clock  clock.Clock
}

// NewLocalFeed returns a feed bound to cache.
func NewLocalFeed(cache *Cache, origin string, clk clock.Clock) *LocalFeed {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &LocalFeed{cache: cache, origin: origin, clock: clk}
}

// Publish never fails.
func (f *LocalFeed) Publish(_ context.Context, ev model.ChangeEvent) error {
	f.cache.Apply(stamp(ev, f.origin, f.clock))
	return nil
}

// AMQPFeed publishes events to a RabbitMQ fanout exchange.  It keeps
// one connection and redials once when a publish finds it closed.
type AMQPFeed struct {
	url      string
	exchange string
	origin   string
	clock    clock.Clock
	log      *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPFeed returns a feed publishing to exchange at url.  The
// connection is opened on first use.
func NewAMQPFeed(url, exchange, origin string, clk clock.Clock, log *zap.Logger) *AMQPFeed {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AMQPFeed{url: url, exchange: exchange, origin: origin, clock: clk, log: log}
}

// channel returns an open channel, dialling if needed.  Callers hold f.mu.
func (f *AMQPFeed) channel() (*amqp.Channel, error) {
	if f.ch != nil && !f.ch.IsClosed() && f.conn != nil && !f.conn.IsClosed() {
		return f.ch, nil
	}
	f.closeLocked()
	conn, err := amqp.Dial(f.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if err := declareExchange(ch, f.exchange); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	f.conn, f.ch = conn, ch
	return ch, nil
}

func declareExchange(ch *amqp.Channel, name string) error {
	if err := ch.ExchangeDeclare(
		name,     // name
		"fanout", // kind
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	return nil
}

// Publish sends ev to every bound instance.  Messages are transient:
// an instance that misses them resyncs from the store on reconnect.
func (f *AMQPFeed) Publish(ctx context.Context, ev model.ChangeEvent) error {
	ev = stamp(ev, f.origin, f.clock)
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		MessageId:    ev.ID,
		Type:         string(ev.Type),
		AppId:        ev.Origin,
		Timestamp:    ev.At,
		Body:         body,
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		ch, err := f.channel()
		if err != nil {
			lastErr = err
			continue
		}
		if err := ch.PublishWithContext(ctx, f.exchange, "", false, false, pub); err != nil {
			lastErr = fmt.Errorf("publish: %w", err)
			f.closeLocked()
			continue
		}
		return nil
	}
	f.log.Warn("change event not published", zap.String("event_id", ev.ID), zap.String("type", string(ev.Type)), zap.Error(lastErr))
	return lastErr
}

// Close releases the broker connection.
func (f *AMQPFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeLocked()
	return nil
}

func (f *AMQPFeed) closeLocked() {
	if f.ch != nil {
		_ = f.ch.Close()
		f.ch = nil
	}
	if f.conn != nil {
		_ = f.conn.Close()
		f.conn = nil
	}
}
