// Package sensor provides the cumulative step-counter source with
// hardware abstraction. The real implementation counts pulses on a Linux
// GPIO line (one rising edge per detected step). The fake allows testing
// without hardware.
package sensor

import (
	"errors"
	"time"
)

// ErrUnavailable is returned when no step-counter hardware is present.
// Callers surface it once at startup and degrade to "no data yet".
var ErrUnavailable = errors.New("sensor: step counter not available")

// DefaultPin is the BCM pin number of the step pulse line.
const DefaultPin = 17

// DefaultBatchDelay is the maximum time a reading may be held back
// before delivery. Batching keeps the Pi mostly idle between steps.
const DefaultBatchDelay = 5 * time.Minute

// Source delivers cumulative step counts since boot. Values are
// non-decreasing within one boot session; a reboot resets the counter to
// near-zero, detectable by the consumer as a decrease relative to the
// last known value.
type Source interface {
	// Subscribe starts delivery of cumulative counts to onReading.
	// Delivery may be batched by up to maxBatchDelay.
	Subscribe(onReading func(total float64), maxBatchDelay time.Duration) error

	// Done yields an error when delivery terminates abnormally. The
	// consumer's watchdog uses it to schedule a resubscription.
	Done() <-chan error

	// Close stops delivery and releases resources. Best-effort cleanup:
	// never aborts shutdown.
	Close() error
}
