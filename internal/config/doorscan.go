package config

import (
	"errors"
	"time"
)

// DoorscanConfig configures the headless door scanner.
type DoorscanConfig struct {
	Env      string        // APP_ENV
	LogLevel string        // LOG_LEVEL
	Server   string        // DOORSCAN_SERVER, base URL of the check-in server
	Token    string        // DOORSCAN_TOKEN, DOOR or ORGANIZER access token
	DeviceID string        // DEVICE_ID, defaults to the hostname
	FrameDir string        // FRAME_DIR, directory the capture tool writes to
	Poll     time.Duration // DOORSCAN_POLL
	Cooldown time.Duration // SCAN_COOLDOWN
}

// LoadDoorscanConfig reads .env (when present) and the scanner settings.
func LoadDoorscanConfig() (DoorscanConfig, error) {
	if err := readDotEnv(); err != nil {
		return DoorscanConfig{}, err
	}
	c := DoorscanConfig{
		Env:      envStr("APP_ENV", "dev"),
		LogLevel: envStr("LOG_LEVEL", ""),
		Server:   envStr("DOORSCAN_SERVER", "http://localhost:8080"),
		Token:    envStr("DOORSCAN_TOKEN", ""),
		DeviceID: envStr("DEVICE_ID", hostname()),
		FrameDir: envStr("FRAME_DIR", "./frames"),
		Poll:     envDur("DOORSCAN_POLL", 200*time.Millisecond),
		Cooldown: envDur("SCAN_COOLDOWN", 2*time.Second),
	}
	if c.Cooldown <= 0 {
		return DoorscanConfig{}, errors.New("SCAN_COOLDOWN must be positive")
	}
	return c, nil
}
