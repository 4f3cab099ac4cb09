package promise

import (
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Config models optional configuration, accepted (and shared) by every
// constructor in this package. A nil *Config is valid, and means all
// defaults.
type Config struct {
	// Logger receives diagnostics for conditions this package swallows by
	// contract: panics raised submitting a listener to its executor, and
	// input failures that arrive after an aggregate already completed.
	// **Defaults to nil (no logging).**
	Logger *logiface.Logger[logiface.Event]

	// LogRateLimiter, if set, rate limits the lower-severity duplicate
	// failure logging of fail-fast aggregates, keyed per failure message.
	// **Defaults to nil (no limiting).**
	LogRateLimiter *catrate.Limiter

	// SpinWait is the spin-vs-park threshold for TimedGet: a remaining
	// budget at or below this spins (parking has non-trivial wake latency),
	// anything longer parks. Negative disables spinning entirely.
	// **Defaults to 1µs, if 0.**
	SpinWait time.Duration

	// CancelCause records a cause error on cancellation records, at the
	// price of an allocation per winning Cancel call.
	// **Defaults to false.**
	CancelCause bool
}

// config is the resolved form shared by a cell and its derivations.
type config struct {
	logger      *logiface.Logger[logiface.Event]
	limiter     *catrate.Limiter
	spin        time.Duration
	cancelCause bool
}

var defaultResolvedConfig = config{spin: time.Microsecond}

func resolveConfig(c *Config) *config {
	if c == nil {
		return &defaultResolvedConfig
	}
	out := config{
		logger:      c.Logger,
		limiter:     c.LogRateLimiter,
		spin:        c.SpinWait,
		cancelCause: c.CancelCause,
	}
	if out.spin == 0 {
		out.spin = time.Microsecond
	}
	return &out
}
