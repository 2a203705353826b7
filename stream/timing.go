package stream

// FrameTimingProvider supplies the compositor's frame timing breakdown,
// combined with the headset's reported figures into the end-to-end
// latency. All values are milliseconds.
//
// The platform layer injects an implementation backed by its compositor
// at construction time; without one the zero-valued default applies and
// the compositor terms simply drop out of the total.
type FrameTimingProvider interface {
	// FrameTiming returns the GPU render time, the compositor idle time
	// and the present/wait time of the most recent frame.
	FrameTiming() (render, idle, wait float64)
}

// NullFrameTiming is the default FrameTimingProvider used when no
// compositor is attached. It reports zero for every component.
type NullFrameTiming struct{}

// FrameTiming returns zeroed frame timings.
func (NullFrameTiming) FrameTiming() (render, idle, wait float64) {
	return 0, 0, 0
}
