package config

import "time"

// CacheConfig controls the Redis cache of rendered ticket QR images.
// The image of a ticket never changes, so entries only go stale when a
// ticket is deleted; TTL bounds how long a deleted ticket's image is
// still served.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
	QRSize       int
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		TTL:          envDur("CACHE_TTL", 10*time.Minute),
		Prefix:       envStr("CACHE_PREFIX", "cache:qr"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 256*1024),
		QRSize:       envInt("QR_SIZE", 256),
	}
}
