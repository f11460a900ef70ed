//go:build linux

package sensor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// edgeDebounce filters contact noise on the pulse line in the kernel,
// well below the shortest plausible step interval.
const edgeDebounce = 20 * time.Millisecond

// RealSource counts step pulses on a GPIO line using the Linux GPIO
// character device. Each rising edge is one step; the accumulated count
// is delivered batched.
type RealSource struct {
	chip  *gpiocdev.Chip
	line  *gpiocdev.Line
	count atomic.Int64

	mu      sync.Mutex
	stop    chan struct{}
	done    chan error
	started bool
}

// NewRealSource opens the step pulse line on actual hardware.
func NewRealSource(pin int) (*RealSource, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("%w: open gpio chip: %v", ErrUnavailable, err)
	}

	s := &RealSource{
		chip: chip,
		done: make(chan error, 1),
	}

	line, err := chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithDebounce(edgeDebounce),
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(s.onEdge))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("%w: request pulse pin %d: %v", ErrUnavailable, pin, err)
	}
	s.line = line
	return s, nil
}

func (s *RealSource) onEdge(evt gpiocdev.LineEvent) {
	if evt.Type == gpiocdev.LineEventRisingEdge {
		s.count.Add(1)
	}
}

// Subscribe starts batched delivery of the cumulative count. A new value
// is delivered at most once per maxBatchDelay, and only when the counter
// advanced since the previous delivery. Subscribing again replaces the
// previous delivery, which is how the watchdog restarts monitoring.
func (s *RealSource) Subscribe(onReading func(total float64), maxBatchDelay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		close(s.stop)
	}
	if maxBatchDelay <= 0 {
		maxBatchDelay = DefaultBatchDelay
	}
	s.stop = make(chan struct{})
	s.started = true

	go func(stop chan struct{}) {
		ticker := time.NewTicker(maxBatchDelay)
		defer ticker.Stop()

		var delivered int64
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				total := s.count.Load()
				if total > delivered {
					delivered = total
					onReading(float64(total))
				}
			}
		}
	}(s.stop)
	return nil
}

// Done yields an error if edge delivery terminates abnormally.
func (s *RealSource) Done() <-chan error {
	return s.done
}

// Close stops delivery and releases the GPIO resources.
func (s *RealSource) Close() error {
	s.mu.Lock()
	if s.started {
		close(s.stop)
		s.started = false
	}
	s.mu.Unlock()

	var errs []error
	if s.line != nil {
		if err := s.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pulse line: %w", err))
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
