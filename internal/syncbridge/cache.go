// Package syncbridge keeps each instance's view of the ticket list
// consistent with the authoritative store.
//
// Writers publish a model.ChangeEvent after every committed store
// write.  In the remote variant events travel over a RabbitMQ fanout
// exchange and every instance, the writer included, applies them when
// they are echoed back.  In the local variant LocalFeed applies them
// to the cache directly.  Ordering is feed delivery order; the last
// delivered event for an id wins.  Only status ever changes after
// creation and that transition is already serialised by the store, so
// no version check is needed.
package syncbridge

import (
	"sync"

	"github.com/iliyamo/event-checkin/internal/model"
)

// Cache is the in-memory, newest-first ticket list served to clients.
// It is a display cache: nothing reads it to make a check-in decision.
type Cache struct {
	mu      sync.RWMutex
	tickets []model.Ticket

	subMu   sync.Mutex
	subs    map[int]chan model.ChangeEvent
	nextSub int
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{subs: make(map[int]chan model.ChangeEvent)}
}

func (c *Cache) indexOf(id string) int {
	for i := range c.tickets {
		if c.tickets[i].ID == id {
			return i
		}
	}
	return -1
}

// Replace swaps in a full list read from the store.
func (c *Cache) Replace(list []model.Ticket) {
	next := make([]model.Ticket, len(list))
	copy(next, list)
	c.mu.Lock()
	c.tickets = next
	c.mu.Unlock()
	c.notify(model.ChangeEvent{Type: model.ChangeReset})
}

// Apply folds one change event into the cache.
//   insert: prepend (replace in place if the id is already cached)
//   update: replace by id; ignored when the id is not cached, so a late
//           update never resurrects a deleted ticket
//   delete: remove by id
func (c *Cache) Apply(ev model.ChangeEvent) {
	c.mu.Lock()
	switch ev.Type {
	case model.ChangeInsert:
		if ev.Ticket == nil {
			c.mu.Unlock()
			return
		}
		if i := c.indexOf(ev.Ticket.ID); i >= 0 {
			c.tickets[i] = *ev.Ticket
		} else {
			c.tickets = append([]model.Ticket{*ev.Ticket}, c.tickets...)
		}
	case model.ChangeUpdate:
		i := -1
		if ev.Ticket != nil {
			i = c.indexOf(ev.Ticket.ID)
		}
		if i < 0 {
			c.mu.Unlock()
			return
		}
		c.tickets[i] = *ev.Ticket
	case model.ChangeDelete:
		if i := c.indexOf(ev.TicketID); i >= 0 {
			c.tickets = append(c.tickets[:i:i], c.tickets[i+1:]...)
		}
	default:
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.notify(ev)
}

// Snapshot returns a copy of the cached list.
func (c *Cache) Snapshot() []model.Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Ticket, len(c.tickets))
	copy(out, c.tickets)
	return out
}

// Get returns a cached ticket.
func (c *Cache) Get(id string) (model.Ticket, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexOf(id); i >= 0 {
		return c.tickets[i], true
	}
	return model.Ticket{}, false
}

// Len returns the number of cached tickets.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tickets)
}

// Subscribe registers a listener for applied events.  Slow listeners
// miss events rather than block the cache; they can recover by
// re-reading Snapshot.  The returned func unsubscribes.
func (c *Cache) Subscribe(buffer int) (<-chan model.ChangeEvent, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan model.ChangeEvent, buffer)
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
			close(ch)
		})
	}
}

func (c *Cache) notify(ev model.ChangeEvent) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
