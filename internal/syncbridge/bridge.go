package syncbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/event-checkin/internal/clock"
	"github.com/iliyamo/event-checkin/internal/model"
)

// Loader reads the authoritative ticket list.
type Loader interface {
	ListAll(ctx context.Context) ([]model.Ticket, error)
}

// BridgeConfig configures the consumer side of the change feed.
type BridgeConfig struct {
	URL        string
	Exchange   string
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Status reports whether the cache is following the feed.  Stale is
// true whenever the bridge is not connected: the cache may then miss
// changes made by other instances until the next reload.
type Status struct {
	Connected   bool       `json:"connected"`
	Stale       bool       `json:"stale"`
	Since       time.Time  `json:"since"`
	LastEventAt *time.Time `json:"last_event_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Cached      int        `json:"cached"`
}

// Bridge subscribes the cache to the change feed.
type Bridge struct {
	cfg    BridgeConfig
	cache  *Cache
	loader Loader
	clock  clock.Clock
	log    *zap.Logger

	mu          sync.Mutex
	connected   bool
	since       time.Time
	lastEventAt *time.Time
	lastErr     string
}

// NewBridge returns a disconnected bridge.
func NewBridge(cfg BridgeConfig, cache *Cache, loader Loader, clk clock.Clock, log *zap.Logger) *Bridge {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = 30 * time.Second
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{cfg: cfg, cache: cache, loader: loader, clock: clk, log: log, since: clk.Now()}
}

// Status returns a snapshot of the bridge state.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := Status{
		Connected: b.connected,
		Stale:     !b.connected,
		Since:     b.since,
		LastError: b.lastErr,
		Cached:    b.cache.Len(),
	}
	if b.lastEventAt != nil {
		t := *b.lastEventAt
		st.LastEventAt = &t
	}
	return st
}

func (b *Bridge) setConnected(ok bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connected != ok {
		b.since = b.clock.Now()
	}
	b.connected = ok
	if err != nil {
		b.lastErr = err.Error()
	} else if ok {
		b.lastErr = ""
	}
}

// Run connects, resyncs and consumes until ctx is cancelled.  Broker
// failures are retried with exponential backoff and never returned.
func (b *Bridge) Run(ctx context.Context) error {
	backoff := b.cfg.MinBackoff
	for {
		conn, err := amqp.Dial(b.cfg.URL)
		if err != nil {
			b.setConnected(false, err)
			b.log.Warn("sync bridge: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !wait(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, b.cfg.MaxBackoff)
			continue
		}
		backoff = b.cfg.MinBackoff

		err = b.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			b.setConnected(false, nil)
			return ctx.Err()
		}
		b.setConnected(false, err)
		b.log.Warn("sync bridge: consume loop ended; reconnecting", zap.Error(err))
		if !wait(ctx, backoff) {
			return ctx.Err()
		}
	}
}

func (b *Bridge) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declareExchange(ch, b.cfg.Exchange); err != nil {
		return err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", b.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	// The queue is bound before the reload, so anything written while
	// the list is being read is buffered and applied afterwards.
	if err := b.Resync(ctx); err != nil {
		return err
	}
	b.setConnected(true, nil)
	b.log.Info("sync bridge: connected", zap.String("queue", q.Name), zap.Int("tickets", b.cache.Len()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := b.handle(d.Body); err != nil {
				b.log.Warn("sync bridge: dropped malformed event", zap.String("message_id", d.MessageId), zap.Error(err))
			}
		}
	}
}

// Resync replaces the cache with a full read from the store.
func (b *Bridge) Resync(ctx context.Context) error {
	list, err := b.loader.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("reload tickets: %w", err)
	}
	b.cache.Replace(list)
	return nil
}

func (b *Bridge) handle(body []byte) error {
	var ev model.ChangeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	switch ev.Type {
	case model.ChangeInsert, model.ChangeUpdate:
		if ev.Ticket == nil {
			return fmt.Errorf("%s event without ticket", ev.Type)
		}
	case model.ChangeDelete:
		if ev.TicketID == "" {
			return errors.New("delete event without ticket id")
		}
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	b.cache.Apply(ev)
	now := b.clock.Now()
	b.mu.Lock()
	b.lastEventAt = &now
	b.mu.Unlock()
	return nil
}

func nextBackoff(cur, limit time.Duration) time.Duration {
	if cur >= limit {
		return limit
	}
	cur *= 2
	if cur > limit {
		return limit
	}
	return cur
}

func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
