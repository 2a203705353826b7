package stream

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/vrstream/config"
	"github.com/opd-ai/vrstream/fec"
	"github.com/opd-ai/vrstream/protocol"
	"github.com/opd-ai/vrstream/stats"
)

var (
	// ErrNilSender indicates a Connection was created without a transport
	// sender.
	ErrNilSender = errors.New("sender cannot be nil")

	// ErrEmptyFrame indicates a zero-length frame buffer was submitted.
	ErrEmptyFrame = errors.New("frame buffer cannot be empty")
)

// Sender is the transport surface this package requires from the host
// environment. Sends are synchronous and fire-and-forget: the core never
// waits for delivery and no backpressure flows back through it.
type Sender interface {
	// SendVideo transmits one video packet: header plus payload slice.
	SendVideo(header *protocol.VideoFrame, payload []byte) error

	// SendTimeSync transmits one time-sync message.
	SendTimeSync(msg *protocol.TimeSync) error
}

// Connection holds all per-peer stream state and drives the send and
// receive paths of the protocol. One Connection serves one peer; state
// never persists across restarts.
//
// All exported methods are safe for concurrent use. The frame-sending
// path and the inbound message path share one mutex, so a send observes a
// consistent redundancy percentage and packet counter even while a
// time-sync round is being processed.
type Connection struct {
	mu sync.Mutex

	id       string
	settings *config.Settings
	sender   Sender

	statistics *stats.Statistics
	reporter   *stats.Reporter
	coder      *fec.Coder
	history    *FrameHistory
	timing     FrameTimingProvider
	clock      TimeProvider

	// Wire sequencing. The packet counter spans all frames and never
	// resets; the video frame index advances once per submitted frame.
	packetCounter   uint32
	videoFrameIndex uint64

	// Redundancy state, mutated only by the failure ratchet.
	fecPercentage int
	lastFailureUS uint64

	// Clock sync estimates, overwritten by each RTT probe.
	rttUS      uint64
	timeDiffUS int64 // host clock minus peer clock, microseconds

	// Most recent client report, kept for the periodic statistics record.
	reported protocol.TimeSync
}

// NewConnection creates a connection for a single peer.
//
// Parameters:
//   - settings: fixed tunables; nil selects config.Default()
//   - sender: transport surface for outbound packets
//
// Returns:
//   - *Connection: the new connection
//   - error: ErrNilSender, or a settings validation error
func NewConnection(settings *config.Settings, sender Sender) (*Connection, error) {
	if sender == nil {
		return nil, ErrNilSender
	}
	if settings == nil {
		settings = config.Default()
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	history, err := NewFrameHistory(settings.FrameHistorySize)
	if err != nil {
		return nil, err
	}

	statistics := stats.New()
	conn := &Connection{
		id:              uuid.New().String(),
		settings:        settings,
		sender:          sender,
		statistics:      statistics,
		reporter:        stats.NewReporter(statistics, settings.StatisticsInterval),
		coder:           fec.NewCoder(),
		history:         history,
		timing:          NullFrameTiming{},
		clock:           RealTimeProvider{},
		videoFrameIndex: 1,
		fecPercentage:   settings.InitialFECPercentage,
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewConnection",
		"stream_id":   conn.id,
		"fec_enabled": settings.EnableFEC,
		"fec_initial": settings.InitialFECPercentage,
		"fec_max":     settings.MaxFECPercentage,
	}).Info("Created stream connection")

	return conn, nil
}

// SetTimeProvider replaces the connection's clock. The statistics
// aggregator follows the same clock. Primarily useful for deterministic
// testing.
func (c *Connection) SetTimeProvider(tp TimeProvider) {
	if tp == nil {
		tp = RealTimeProvider{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock = tp
	c.statistics.SetClock(tp)
}

// SetFrameTimingProvider injects a compositor-backed frame timing source.
func (c *Connection) SetFrameTimingProvider(p FrameTimingProvider) {
	if p == nil {
		p = NullFrameTiming{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timing = p
}

// ID returns the connection's stream id used in log correlation.
func (c *Connection) ID() string {
	return c.id
}

// Statistics returns the connection's statistics aggregator. The video
// encoder reports its per-frame latency here and the device layer feeds
// the battery gauges.
func (c *Connection) Statistics() *stats.Statistics {
	return c.statistics
}

// FECPercentage returns the redundancy percentage in effect for the next
// frame send.
func (c *Connection) FECPercentage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fecPercentage
}

// RTT returns the most recently measured round-trip time.
func (c *Connection) RTT() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.rttUS) * time.Microsecond
}

// ClockOffsetMicros returns the estimated host-minus-peer clock offset in
// microseconds. A best-effort point estimate; see HandleTimeSync.
func (c *Connection) ClockOffsetMicros() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeDiffUS
}

// VideoFrameIndex returns the sequence number the next frame send will
// carry.
func (c *Connection) VideoFrameIndex() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.videoFrameIndex
}

// PacketCounter returns the global packet counter value the next packet
// will carry.
func (c *Connection) PacketCounter() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.packetCounter
}

// History returns the bounded record of recently sent frames.
func (c *Connection) History() *FrameHistory {
	return c.history
}

// PoseTimeOffset returns the tracking prediction offset in seconds,
// derived from the measured end-to-end latency. Negative: the pose the
// headset displays is that far in the host's past.
func (c *Connection) PoseTimeOffset() float64 {
	return -float64(c.statistics.TotalLatencyAverage()) / 1000.0 / 1000.0
}
