package stream

import "time"

// TimeProvider supplies the host's monotonic microsecond clock. It exists
// so tests can drive the protocol with a deterministic clock.
type TimeProvider interface {
	// NowMicros returns the current time in microseconds.
	NowMicros() uint64
}

// RealTimeProvider implements TimeProvider using the system clock.
type RealTimeProvider struct{}

// NowMicros returns the current system time in microseconds.
func (RealTimeProvider) NowMicros() uint64 {
	return uint64(time.Now().UnixMicro())
}
