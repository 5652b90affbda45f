package sim

import "sync/atomic"

// debugLogging gates per-tick debug logs.
var debugLogging atomic.Bool

// EnableDebugLogging switches per-tick debug logging. Call it once at
// startup, after the log level is known.
func EnableDebugLogging(enabled bool) {
	debugLogging.Store(enabled)
}

// IsDebugEnabled reports whether per-tick debug logging is on.
func IsDebugEnabled() bool {
	return debugLogging.Load()
}
