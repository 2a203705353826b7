package stats

import (
	"math"
	"testing"
)

// fakeClock is a Clock whose time only moves when the test advances it.
type fakeClock struct {
	nowUS uint64
}

func (c *fakeClock) NowMicros() uint64 {
	return c.nowUS
}

func TestPerSecondWindow(t *testing.T) {
	clock := &fakeClock{nowUS: 10_000_000}
	s := NewWithClock(clock)

	for i := 0; i < 5; i++ {
		s.CountPacket(1000)
	}
	s.CountFrame()
	s.CountFrame()

	// Still inside the first second: previous window is empty.
	if got := s.PacketsSentPerSecond(); got != 0 {
		t.Errorf("PacketsSentPerSecond before rollover = %d, want 0", got)
	}
	if got := s.FPS(); got != 0 {
		t.Errorf("FPS before rollover = %d, want 0", got)
	}

	clock.nowUS += 1_000_000

	if got := s.PacketsSentPerSecond(); got != 5 {
		t.Errorf("PacketsSentPerSecond = %d, want 5", got)
	}
	if got := s.BitsSentPerSecond(); got != 5*1000*8 {
		t.Errorf("BitsSentPerSecond = %d, want %d", got, 5*1000*8)
	}
	if got := s.FPS(); got != 2 {
		t.Errorf("FPS = %d, want 2", got)
	}

	// Totals keep accumulating across the boundary.
	s.CountPacket(500)
	if got := s.PacketsSentTotal(); got != 6 {
		t.Errorf("PacketsSentTotal = %d, want 6", got)
	}
	if got := s.BitsSentTotal(); got != 5*1000*8+500*8 {
		t.Errorf("BitsSentTotal = %d, want %d", got, 5*1000*8+500*8)
	}
}

func TestEncodeLatencyAverage(t *testing.T) {
	clock := &fakeClock{nowUS: 42_000_000}
	s := NewWithClock(clock)

	s.RecordEncodeLatency(4000)
	s.RecordEncodeLatency(6000)
	if got := s.EncodeLatencyAverage(); got != 5000 {
		t.Errorf("running average = %d, want 5000", got)
	}

	// After the second rolls over with no new samples, the previous full
	// second's average survives.
	clock.nowUS += 1_000_000
	s.CountPacket(1) // trigger the rollover
	if got := s.EncodeLatencyAverage(); got != 5000 {
		t.Errorf("carried average = %d, want 5000", got)
	}

	s.RecordEncodeLatency(9000)
	if got := s.EncodeLatencyAverage(); got != 9000 {
		t.Errorf("new running average = %d, want 9000", got)
	}
}

func TestLatencyAverages(t *testing.T) {
	s := New()

	if got := s.LatencyAverages(); got != (LatencySample{}) {
		t.Errorf("empty window averages = %+v, want zero", got)
	}

	s.AddLatency(LatencySample{Total: 30, Encode: 4, Transport: 6, Decode: 8, ClientFPS: 70, Ping: 2})
	s.AddLatency(LatencySample{Total: 50, Encode: 6, Transport: 10, Decode: 12, ClientFPS: 74, Ping: 4})

	avg := s.LatencyAverages()
	want := LatencySample{Total: 40, Encode: 5, Transport: 8, Decode: 10, ClientFPS: 72, Ping: 3}
	if math.Abs(avg.Total-want.Total) > 1e-9 ||
		math.Abs(avg.Encode-want.Encode) > 1e-9 ||
		math.Abs(avg.Transport-want.Transport) > 1e-9 ||
		math.Abs(avg.Decode-want.Decode) > 1e-9 ||
		math.Abs(avg.ClientFPS-want.ClientFPS) > 1e-9 ||
		math.Abs(avg.Ping-want.Ping) > 1e-9 {
		t.Errorf("LatencyAverages = %+v, want %+v", avg, want)
	}

	s.ResetLatencyWindow()
	if got := s.LatencyAverages(); got != (LatencySample{}) {
		t.Errorf("averages after reset = %+v, want zero", got)
	}
}

func TestNetworkLatencyAndBattery(t *testing.T) {
	s := New()

	s.RecordNetworkLatency(85_000, 12_000)
	if got := s.TotalLatencyAverage(); got != 85_000 {
		t.Errorf("TotalLatencyAverage = %d, want 85000", got)
	}

	s.SetHMDBattery(0.8)
	s.SetControllerBattery(0.5, 0.25)
	hmd, left, right := s.BatteryLevels()
	if hmd != 0.8 || left != 0.5 || right != 0.25 {
		t.Errorf("BatteryLevels = %v %v %v", hmd, left, right)
	}
}
