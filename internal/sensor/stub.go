//go:build !linux

package sensor

import "time"

// RealSource is not available on non-Linux platforms.
type RealSource struct{}

// NewRealSource returns ErrUnavailable on non-Linux platforms.
func NewRealSource(pin int) (*RealSource, error) {
	return nil, ErrUnavailable
}

// Subscribe is not implemented on non-Linux platforms.
func (s *RealSource) Subscribe(onReading func(total float64), maxBatchDelay time.Duration) error {
	return ErrUnavailable
}

// Done is not implemented on non-Linux platforms.
func (s *RealSource) Done() <-chan error {
	return nil
}

// Close is not implemented on non-Linux platforms.
func (s *RealSource) Close() error {
	return nil
}
