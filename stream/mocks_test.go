package stream

import (
	"testing"
	"time"

	"github.com/opd-ai/vrstream/config"
	"github.com/opd-ai/vrstream/protocol"
)

// mockClock is a TimeProvider whose time only moves when the test
// advances it.
type mockClock struct {
	nowUS uint64
}

func (c *mockClock) NowMicros() uint64 {
	return c.nowUS
}

// mockSender captures every outbound packet. The header pointer is reused
// and mutated by the send path, so each call deep-copies what it was
// handed.
type mockSender struct {
	videoHeaders  []protocol.VideoFrame
	videoPayloads [][]byte
	timeSyncs     []protocol.TimeSync

	videoErr    error
	timeSyncErr error
}

func (m *mockSender) SendVideo(header *protocol.VideoFrame, payload []byte) error {
	m.videoHeaders = append(m.videoHeaders, *header)
	m.videoPayloads = append(m.videoPayloads, append([]byte(nil), payload...))
	return m.videoErr
}

func (m *mockSender) SendTimeSync(msg *protocol.TimeSync) error {
	m.timeSyncs = append(m.timeSyncs, *msg)
	return m.timeSyncErr
}

// fixedTiming is a FrameTimingProvider returning constant figures.
type fixedTiming struct {
	render, idle, wait float64
}

func (f fixedTiming) FrameTiming() (render, idle, wait float64) {
	return f.render, f.idle, f.wait
}

// testSettings returns settings tuned for deterministic tests: the given
// redundancy bounds and a short failure window.
func testSettings(initial, max, step int) *config.Settings {
	s := config.Default()
	s.InitialFECPercentage = initial
	s.MaxFECPercentage = max
	s.FECStep = step
	s.FailureWindow = 60 * time.Second
	return s
}

// newTestConnection wires a connection to a mock sender and clock.
func newTestConnection(t *testing.T, settings *config.Settings, clock *mockClock) (*Connection, *mockSender) {
	t.Helper()
	sender := &mockSender{}
	conn, err := NewConnection(settings, sender)
	if err != nil {
		t.Fatalf("NewConnection: %v", err)
	}
	conn.SetTimeProvider(clock)
	return conn, sender
}
