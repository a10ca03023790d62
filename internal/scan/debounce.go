// Package scan gates decoded QR payloads before they reach the check-in
// machine and drives the headless camera loop used by door devices.
package scan

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-checkin/internal/clock"
)

// DefaultCooldown is the quiet period after an accepted scan.
const DefaultCooldown = 2000 * time.Millisecond

// Debouncer suppresses consecutive camera frames of the same code.  The
// cooldown is global: any payload, equal to the last one or not, is
// rejected until the window since the last accepted call has elapsed.
type Debouncer struct {
	window time.Duration

	mu       sync.Mutex
	last     time.Time
	accepted bool
}

// NewDebouncer returns a Debouncer with the given window (DefaultCooldown
// when window <= 0).
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &Debouncer{window: window}
}

// ShouldProcess reports whether a scan observed at now should be
// processed.  Rejections leave the state untouched.
func (d *Debouncer) ShouldProcess(_ string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.accepted && now.Sub(d.last) < d.window {
		return false
	}
	d.last = now
	d.accepted = true
	return true
}

// Gate decides whether a scan submitted by a device is processed.
type Gate interface {
	Allow(ctx context.Context, deviceID, payload string) (bool, error)
}

// DeviceGate keeps one Debouncer per device in process memory.  It is
// the gate of the local variant, where one process serves every device.
type DeviceGate struct {
	window time.Duration
	clock  clock.Clock

	mu      sync.Mutex
	devices map[string]*Debouncer
}

// NewDeviceGate returns an in-memory per-device gate.
func NewDeviceGate(window time.Duration, clk clock.Clock) *DeviceGate {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &DeviceGate{window: window, clock: clk, devices: make(map[string]*Debouncer)}
}

// Allow never fails.
func (g *DeviceGate) Allow(_ context.Context, deviceID, payload string) (bool, error) {
	g.mu.Lock()
	d, ok := g.devices[deviceID]
	if !ok {
		d = NewDebouncer(g.window)
		g.devices[deviceID] = d
	}
	g.mu.Unlock()
	return d.ShouldProcess(payload, g.clock.Now()), nil
}

// RedisGate shares the device cooldown between server instances.  The
// key exists exactly while the device is cooling down; SET NX only
// succeeds once it has expired, so a rejected call does not extend the
// window.
type RedisGate struct {
	rdb    *redis.Client
	window time.Duration
	prefix string
}

// NewRedisGate returns a gate storing cooldown keys under prefix.
func NewRedisGate(rdb *redis.Client, window time.Duration, prefix string) *RedisGate {
	if window <= 0 {
		window = DefaultCooldown
	}
	if prefix == "" {
		prefix = "scan:gate"
	}
	return &RedisGate{rdb: rdb, window: window, prefix: prefix}
}

func (g *RedisGate) Allow(ctx context.Context, deviceID, payload string) (bool, error) {
	return g.rdb.SetNX(ctx, g.prefix+":"+deviceID, payload, g.window).Result()
}
