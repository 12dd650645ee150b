package config

import "time"

// CapacityConfig controls the capacity ledger: which store backend to
// use and how hard to retry transient faults.  Backend "redis" keeps
// the capacity records in this deployment's Redis; "http" delegates to
// a remote experiences service at BaseURL.
type CapacityConfig struct {
	Backend       string        // "redis" or "http"
	BaseURL       string        // base URL for the http backend
	RetryAttempts int           // total tries per ledger operation
	RetryBackoff  time.Duration // delay before the second try, doubled after each failure
	TokenTTL      time.Duration // how long decrement tokens are remembered for replay
	HTTPTimeout   time.Duration // per-request timeout for the http backend
}

// LoadCapacityConfig reads environment variables to build a
// CapacityConfig.  Defaults are used when variables are not set.
func LoadCapacityConfig() CapacityConfig {
	def := CapacityConfig{
		Backend:       envStr("CAPACITY_BACKEND", "redis"),
		BaseURL:       envStr("CAPACITY_BASE_URL", ""),
		RetryAttempts: envInt("CAPACITY_RETRY_ATTEMPTS", 4),
		RetryBackoff:  envDur("CAPACITY_RETRY_BACKOFF", 100*time.Millisecond),
		TokenTTL:      envDur("CAPACITY_TOKEN_TTL", 10*time.Minute),
		HTTPTimeout:   envDur("CAPACITY_HTTP_TIMEOUT", 5*time.Second),
	}
	if def.RetryAttempts < 1 {
		def.RetryAttempts = 1
	}
	if def.RetryBackoff <= 0 {
		def.RetryBackoff = 100 * time.Millisecond
	}
	return def
}
