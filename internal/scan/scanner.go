package scan

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-checkin/internal/clock"
	"github.com/iliyamo/event-checkin/internal/model"
)

// Decoder extracts a QR payload from a frame, reporting false when the
// frame holds no readable code.
type Decoder func(img image.Image) (string, bool)

// Submitter hands an accepted payload to the check-in machine, either
// in process or over HTTP.
type Submitter interface {
	Submit(ctx context.Context, payload string) (model.CheckInOutcome, error)
}

// State is the user-visible condition of the scanner.
type State string

const (
	StateIdle     State = "idle"
	StateScanning State = "scanning"
	StateError    State = "error"
)

// Status is a snapshot of the scanner for display.
type Status struct {
	State     State
	LastError error
}

// Result is reported for every payload that passed the debouncer.
type Result struct {
	Payload string
	Outcome model.CheckInOutcome
	Err     error
}

// ScannerConfig tunes the polling loop.
type ScannerConfig struct {
	// PollInterval is the delay between frame reads.
	PollInterval time.Duration
	// RetryInterval is the delay before reopening after a camera error.
	RetryInterval time.Duration
	// Cooldown is the debouncer window.
	Cooldown time.Duration
}

// DefaultScannerConfig polls at roughly display refresh cadence.
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		PollInterval:  33 * time.Millisecond,
		RetryInterval: 5 * time.Second,
		Cooldown:      DefaultCooldown,
	}
}

// Scanner polls a FrameSource, decodes frames, debounces payloads and
// submits them one at a time.  Camera failures put it in StateError;
// it keeps retrying instead of returning, so the check-in flow is never
// torn down by a missing camera.
type Scanner struct {
	open     func() (FrameSource, error)
	decode   Decoder
	submit   Submitter
	debounce *Debouncer
	clock    clock.Clock
	cfg      ScannerConfig
	log      *zap.Logger
	results  func(Result)

	mu     sync.Mutex
	status Status
}

// NewScanner wires a scanner.  open acquires the camera; it is called
// again after every camera error.  onResult may be nil.
func NewScanner(open func() (FrameSource, error), decode Decoder, submit Submitter, cfg ScannerConfig, clk clock.Clock, log *zap.Logger, onResult func(Result)) *Scanner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultScannerConfig().PollInterval
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultScannerConfig().RetryInterval
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if onResult == nil {
		onResult = func(Result) {}
	}
	return &Scanner{
		open:     open,
		decode:   decode,
		submit:   submit,
		debounce: NewDebouncer(cfg.Cooldown),
		clock:    clk,
		cfg:      cfg,
		log:      log,
		results:  onResult,
		status:   Status{State: StateIdle},
	}
}

// Status returns the current scanner state.
func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scanner) setStatus(st State, err error) {
	s.mu.Lock()
	s.status = Status{State: st, LastError: err}
	s.mu.Unlock()
}

// Run scans until ctx is cancelled and returns ctx.Err().
func (s *Scanner) Run(ctx context.Context) error {
	for {
		src, err := s.open()
		if err != nil {
			s.cameraFailed(err)
			if !sleep(ctx, s.cfg.RetryInterval) {
				s.setStatus(StateIdle, nil)
				return ctx.Err()
			}
			continue
		}
		s.setStatus(StateScanning, nil)
		err = s.scan(ctx, src)
		_ = src.Close()
		if ctx.Err() != nil {
			s.setStatus(StateIdle, nil)
			return ctx.Err()
		}
		s.cameraFailed(err)
		if !sleep(ctx, s.cfg.RetryInterval) {
			s.setStatus(StateIdle, nil)
			return ctx.Err()
		}
	}
}

func (s *Scanner) cameraFailed(err error) {
	s.setStatus(StateError, err)
	switch {
	case errors.Is(err, ErrPermissionDenied):
		s.log.Error("camera access denied", zap.Error(err))
	case errors.Is(err, ErrCameraUnavailable):
		s.log.Error("camera not available", zap.Error(err))
	default:
		s.log.Error("camera failed", zap.Error(err))
	}
}

// scan reads frames until the source fails or ctx ends.
func (s *Scanner) scan(ctx context.Context, src FrameSource) error {
	t := time.NewTicker(s.cfg.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		img, err := src.Next(ctx)
		if errors.Is(err, ErrNoFrame) {
			continue
		}
		if err != nil {
			return err
		}
		payload, ok := s.decode(img)
		if !ok {
			continue
		}
		s.Handle(ctx, payload)
	}
}

// Handle processes one decoded payload and reports whether it was
// submitted.
func (s *Scanner) Handle(ctx context.Context, payload string) bool {
	if !s.debounce.ShouldProcess(payload, s.clock.Now()) {
		return false
	}
	out, err := s.submit.Submit(ctx, payload)
	if err != nil {
		s.log.Warn("check-in not completed", zap.String("payload", payload), zap.Error(err))
	}
	s.results(Result{Payload: payload, Outcome: out, Err: err})
	return true
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
