package stm

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Options configures a Runtime.
type Options struct {
	logger             Logger
	registerer         prometheus.Registerer // nil leaves the collectors unregistered
	validateEvery      int                   // Journal validation interval in effect steps. 0 disables it.
	retryWarnThreshold int                   // Consecutive reruns before a warning is logged. 0 disables it.
	hotRefCapacity     uint32                // Refs tracked for conflict counts. 0 disables tracking.
	maxConcurrent      int                   // Atomically calls allowed at once. 0 means no limit.
}

// DefaultOptions returns the configuration used by the package level
// runtime.
func DefaultOptions() Options {
	return Options{
		logger:             DiscardLogger{},
		validateEvery:      32,
		retryWarnThreshold: 1000,
		hotRefCapacity:     256,
	}
}

// Option configures runtime options using the functional options pattern.
type Option func(*Options)

// WithLogger sets the logger used for defects, cancellations and long
// rerun streaks.
func WithLogger(logger Logger) Option {
	return func(opts *Options) {
		if logger == nil {
			logger = DiscardLogger{}
		}
		opts.logger = logger
	}
}

// WithRegisterer registers the runtime's collectors with reg.
// Two runtimes must not share a registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(opts *Options) {
		opts.registerer = reg
	}
}

// WithValidateEvery checks the journal for conflicting commits every n
// effect steps and abandons the attempt early when one is found.
// A zero value only validates at commit.
func WithValidateEvery(n int) Option {
	return func(opts *Options) {
		opts.validateEvery = max(n, 0)
	}
}

// WithRetryWarnThreshold logs a warning once a single Atomically call has
// rerun its transaction n times.
func WithRetryWarnThreshold(n int) Option {
	return func(opts *Options) {
		opts.retryWarnThreshold = max(n, 0)
	}
}

// WithContentionTracking keeps conflict counts for the capacity most
// recently conflicting refs. See Runtime.HotRefs.
func WithContentionTracking(capacity uint32) Option {
	return func(opts *Options) {
		opts.hotRefCapacity = capacity
	}
}

// WithMaxConcurrent limits the runtime to n Atomically calls in progress
// at once. Calls beyond the limit fail with ErrTooManyTransactions.
func WithMaxConcurrent(n int) Option {
	return func(opts *Options) {
		opts.maxConcurrent = max(n, 0)
	}
}
