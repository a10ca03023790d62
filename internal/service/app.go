package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-checkin/internal/checkin"
	"github.com/iliyamo/event-checkin/internal/clock"
	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/repository"
	"github.com/iliyamo/event-checkin/internal/scan"
	"github.com/iliyamo/event-checkin/internal/syncbridge"
)

// StatusSource reports the state of the change feed subscription.
type StatusSource interface {
	Status() syncbridge.Status
}

// App is the per-process application context handed to the HTTP layer.
// The cache it carries is a view for display; every decision is taken
// against the store.
type App struct {
	Tickets  *TicketService
	Settings *SettingsService
	Machine  *checkin.Machine
	Gate     scan.Gate
	Cache    *syncbridge.Cache
	Sync     StatusSource
	Log      *zap.Logger
}

// Deps are the backends an App is assembled from.
type Deps struct {
	Tickets  repository.TicketStore
	Settings repository.SettingsStore
	Feed     syncbridge.Feed
	Gate     scan.Gate
	Cache    *syncbridge.Cache
	// Sync is nil in the local variant, which is always in sync.
	Sync    StatusSource
	IDs     IDGenerator
	Clock   clock.Clock
	EventID string
	Log     *zap.Logger
}

// NewApp assembles the services from deps.
func NewApp(d Deps) *App {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	if d.Cache == nil {
		d.Cache = syncbridge.NewCache()
	}
	if d.Gate == nil {
		d.Gate = scan.NewDeviceGate(scan.DefaultCooldown, d.Clock)
	}
	status := d.Sync
	if status == nil {
		status = localSync{cache: d.Cache, since: d.Clock.Now()}
	}
	return &App{
		Tickets:  NewTicketService(d.Tickets, d.IDs, d.Feed, d.Clock, d.EventID, d.Log),
		Settings: NewSettingsService(d.Settings),
		Machine:  checkin.New(d.Tickets, d.Feed, d.Log),
		Gate:     d.Gate,
		Cache:    d.Cache,
		Sync:     status,
		Log:      d.Log,
	}
}

// ScanResult is the answer to one submitted scan.  Ignored scans fell
// inside the device cooldown and were not looked up.
type ScanResult struct {
	Ignored bool                 `json:"ignored"`
	Outcome model.CheckInOutcome `json:"-"`
}

// Scan gates the payload per device and runs the check-in.  When the
// gate backend fails the scan is processed anyway: the conditional
// transition in the store still prevents a double admission.
func (a *App) Scan(ctx context.Context, deviceID, payload string) (ScanResult, error) {
	payload = strings.TrimSpace(payload)
	ok, err := a.Gate.Allow(ctx, deviceID, payload)
	if err != nil {
		a.Log.Warn("scan gate unavailable, processing scan", zap.String("device_id", deviceID), zap.Error(err))
		ok = true
	}
	if !ok {
		return ScanResult{Ignored: true}, nil
	}
	out, err := a.Machine.CheckIn(ctx, payload)
	if err != nil {
		return ScanResult{}, err
	}
	return ScanResult{Outcome: out}, nil
}

// Submit implements scan.Submitter for scanners running in process;
// they debounce on their own, so the device gate is skipped.
func (a *App) Submit(ctx context.Context, payload string) (model.CheckInOutcome, error) {
	return a.Machine.CheckIn(ctx, payload)
}

// localSync reports the single-process cache, which is updated in the
// same call as every write and so never stale.
type localSync struct {
	cache *syncbridge.Cache
	since time.Time
}

func (l localSync) Status() syncbridge.Status {
	return syncbridge.Status{Connected: true, Since: l.since, Cached: l.cache.Len()}
}
