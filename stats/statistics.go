package stats

import (
	"sync"
	"time"
)

// Clock supplies the current time in microseconds. It exists so tests can
// drive the per-second windows deterministically.
type Clock interface {
	// NowMicros returns the current time in microseconds.
	NowMicros() uint64
}

// RealClock implements Clock using the system clock.
type RealClock struct{}

// NowMicros returns the current system time in microseconds.
func (RealClock) NowMicros() uint64 {
	return uint64(time.Now().UnixMicro())
}

// LatencySample is one latency breakdown observation, recorded per sync
// round. Values are milliseconds except ClientFPS.
type LatencySample struct {
	Total     float64
	Encode    float64
	Transport float64
	Decode    float64
	ClientFPS float64
	Ping      float64
}

// Statistics accumulates counters for one connection.
type Statistics struct {
	mu    sync.Mutex
	clock Clock

	// Rolling one-second window.
	currentSecond uint64 // seconds since epoch
	packetsTotal  uint64
	bitsTotal     uint64
	packetsInSec  uint64
	bitsInSec     uint64
	framesInSec   uint64
	prevPackets   uint64
	prevBits      uint64
	prevFrames    uint64

	// Encode latency, averaged per second.
	encodeSumUS   uint64
	encodeCount   uint64
	prevEncodeAvg uint64

	// Latency breakdown, averaged between reports.
	latencySums  LatencySample
	latencyCount uint64

	// Most recent end-to-end figures, microseconds.
	totalLatencyUS uint64
	sendLatencyUS  uint64

	// Battery gauges, 0..1.
	hmdBattery   float32
	leftBattery  float32
	rightBattery float32
}

// New creates a Statistics aggregator using the system clock.
func New() *Statistics {
	return NewWithClock(RealClock{})
}

// NewWithClock creates a Statistics aggregator with an injected clock.
func NewWithClock(clock Clock) *Statistics {
	if clock == nil {
		clock = RealClock{}
	}
	return &Statistics{clock: clock}
}

// SetClock replaces the clock driving the per-second windows. This is
// primarily useful for deterministic testing.
func (s *Statistics) SetClock(clock Clock) {
	if clock == nil {
		clock = RealClock{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// rollSecond moves the one-second window forward if the wall clock passed
// a second boundary. Caller must hold mu.
func (s *Statistics) rollSecond() {
	second := s.clock.NowMicros() / 1_000_000
	if second == s.currentSecond {
		return
	}

	s.prevPackets = s.packetsInSec
	s.prevBits = s.bitsInSec
	s.prevFrames = s.framesInSec
	if s.encodeCount > 0 {
		s.prevEncodeAvg = s.encodeSumUS / s.encodeCount
	}
	s.packetsInSec = 0
	s.bitsInSec = 0
	s.framesInSec = 0
	s.encodeSumUS = 0
	s.encodeCount = 0
	s.currentSecond = second
}

// CountPacket records one sent or received packet of the given wire size.
func (s *Statistics) CountPacket(bytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollSecond()
	s.packetsTotal++
	s.packetsInSec++
	s.bitsTotal += uint64(bytes) * 8
	s.bitsInSec += uint64(bytes) * 8
}

// CountFrame records one encoded video frame, feeding the server FPS gauge.
func (s *Statistics) CountFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollSecond()
	s.framesInSec++
}

// RecordEncodeLatency records one frame's encode duration in microseconds.
func (s *Statistics) RecordEncodeLatency(us uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollSecond()
	s.encodeSumUS += us
	s.encodeCount++
}

// EncodeLatencyAverage returns the average encode latency in microseconds,
// preferring the current second's running average and falling back to the
// previous full second.
func (s *Statistics) EncodeLatencyAverage() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encodeCount > 0 {
		return s.encodeSumUS / s.encodeCount
	}
	return s.prevEncodeAvg
}

// AddLatency records one sync round's latency breakdown.
func (s *Statistics) AddLatency(sample LatencySample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latencySums.Total += sample.Total
	s.latencySums.Encode += sample.Encode
	s.latencySums.Transport += sample.Transport
	s.latencySums.Decode += sample.Decode
	s.latencySums.ClientFPS += sample.ClientFPS
	s.latencySums.Ping += sample.Ping
	s.latencyCount++
}

// LatencyAverages returns the latency breakdown averaged since the last
// ResetLatencyWindow call.
func (s *Statistics) LatencyAverages() LatencySample {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latencyCount == 0 {
		return LatencySample{}
	}
	n := float64(s.latencyCount)
	return LatencySample{
		Total:     s.latencySums.Total / n,
		Encode:    s.latencySums.Encode / n,
		Transport: s.latencySums.Transport / n,
		Decode:    s.latencySums.Decode / n,
		ClientFPS: s.latencySums.ClientFPS / n,
		Ping:      s.latencySums.Ping / n,
	}
}

// ResetLatencyWindow clears the averaged latency breakdown. The Reporter
// calls this after each emitted Statistics record.
func (s *Statistics) ResetLatencyWindow() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latencySums = LatencySample{}
	s.latencyCount = 0
}

// RecordNetworkLatency stores the most recent end-to-end total and
// transport send latency in microseconds.
func (s *Statistics) RecordNetworkLatency(totalUS, sendUS uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalLatencyUS = totalUS
	s.sendLatencyUS = sendUS
}

// TotalLatencyAverage returns the most recent end-to-end latency in
// microseconds. The tracking predictor derives its pose time offset from
// this value.
func (s *Statistics) TotalLatencyAverage() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.totalLatencyUS
}

// PacketsSentTotal returns the cumulative packet count.
func (s *Statistics) PacketsSentTotal() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.packetsTotal
}

// PacketsSentPerSecond returns the packet count of the last full second.
func (s *Statistics) PacketsSentPerSecond() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollSecond()
	return s.prevPackets
}

// BitsSentTotal returns the cumulative bit count.
func (s *Statistics) BitsSentTotal() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.bitsTotal
}

// BitsSentPerSecond returns the bit count of the last full second.
func (s *Statistics) BitsSentPerSecond() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollSecond()
	return s.prevBits
}

// Bitrate returns the last full second's throughput in megabits per second.
func (s *Statistics) Bitrate() uint64 {
	return s.BitsSentPerSecond() / 1_000_000
}

// FPS returns the encoded frame count of the last full second.
func (s *Statistics) FPS() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollSecond()
	return s.prevFrames
}

// SetHMDBattery stores the headset battery gauge (0..1).
func (s *Statistics) SetHMDBattery(level float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hmdBattery = level
}

// SetControllerBattery stores the controller battery gauges (0..1).
func (s *Statistics) SetControllerBattery(left, right float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.leftBattery = left
	s.rightBattery = right
}

// BatteryLevels returns the HMD and controller battery gauges (0..1).
func (s *Statistics) BatteryLevels() (hmd, left, right float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hmdBattery, s.leftBattery, s.rightBattery
}
