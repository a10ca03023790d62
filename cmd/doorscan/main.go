// Command doorscan is a headless door device.  It reads camera snapshots
// from a directory, decodes QR codes and submits them to the check-in
// server.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/iliyamo/event-checkin/internal/clock"
	"github.com/iliyamo/event-checkin/internal/config"
	"github.com/iliyamo/event-checkin/internal/logger"
	"github.com/iliyamo/event-checkin/internal/qr"
	"github.com/iliyamo/event-checkin/internal/scan"
)

func main() {
	cfg, err := config.LoadDoorscanConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()
	lg = lg.With(zap.String("device_id", cfg.DeviceID))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	submitter := scan.NewHTTPSubmitter(cfg.Server, cfg.Token, cfg.DeviceID)
	open := func() (scan.FrameSource, error) { return scan.OpenDirSource(cfg.FrameDir) }
	sc := scan.NewScanner(open, qr.DecodeImage, submitter, scan.ScannerConfig{
		PollInterval: cfg.Poll,
		Cooldown:     cfg.Cooldown,
	}, clock.NewSystem(), lg, report(lg))

	lg.Info("door scanner started", zap.String("server", cfg.Server), zap.String("frames", cfg.FrameDir))
	if err := sc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		lg.Fatal("scanner stopped", zap.Error(err))
	}
	lg.Info("door scanner stopped")
}

// report prints the operator-facing message for every submitted scan.
func report(lg *zap.Logger) func(scan.Result) {
	return func(r scan.Result) {
		switch {
		case errors.Is(r.Err, scan.ErrIgnored):
			return
		case r.Err != nil:
			lg.Error("Check-in failed, please retry", zap.String("payload", r.Payload), zap.Error(r.Err))
		case r.Outcome.Tone() == "success":
			lg.Info(r.Outcome.Message(), zap.String("payload", r.Payload))
		default:
			lg.Warn(r.Outcome.Message(), zap.String("payload", r.Payload))
		}
	}
}
