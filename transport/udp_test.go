package transport

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/opd-ai/vrstream/protocol"
)

// recordingHandler collects inbound messages behind a mutex so tests can
// poll for them.
type recordingHandler struct {
	mu        sync.Mutex
	tracking  []*protocol.TrackingInfo
	timeSyncs []*protocol.TimeSync
}

func (h *recordingHandler) HandleTrackingInfo(info *protocol.TrackingInfo) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tracking = append(h.tracking, info)
	return nil
}

func (h *recordingHandler) HandleTimeSync(msg *protocol.TimeSync) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.timeSyncs = append(h.timeSyncs, msg)
	return nil
}

func (h *recordingHandler) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tracking), len(h.timeSyncs)
}

// waitFor polls cond for up to two seconds.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func newLoopbackPair(t *testing.T) (*UDPTransport, net.PacketConn) {
	t.Helper()

	host, err := NewUDPTransport("127.0.0.1:0", "")
	if err != nil {
		t.Fatalf("NewUDPTransport: %v", err)
	}
	t.Cleanup(func() { _ = host.Close() })

	client, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return host, client
}

func TestDispatchAndPeerLearning(t *testing.T) {
	host, client := newLoopbackPair(t)
	handler := &recordingHandler{}
	host.SetHandler(handler)
	host.Start()

	if host.Peer() != nil {
		t.Fatal("peer known before any inbound datagram")
	}
	if err := host.SendTimeSync(&protocol.TimeSync{Type: protocol.PacketTimeSync}); err != ErrNoPeer {
		t.Fatalf("send without peer = %v, want ErrNoPeer", err)
	}

	// First inbound datagram teaches the host its peer.
	sync1 := &protocol.TimeSync{
		Type:       protocol.PacketTimeSync,
		Mode:       protocol.TimeSyncModeRTTProbe,
		ServerTime: 123,
		ClientTime: 456,
	}
	data, err := sync1.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := client.WriteTo(data, host.LocalAddr()); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	waitFor(t, func() bool {
		_, n := handler.counts()
		return n == 1
	})
	if host.Peer() == nil {
		t.Fatal("peer not learned from inbound datagram")
	}
	if host.Peer().String() != client.LocalAddr().String() {
		t.Errorf("peer = %s, want %s", host.Peer(), client.LocalAddr())
	}
	handler.mu.Lock()
	got := handler.timeSyncs[0]
	handler.mu.Unlock()
	if got.Mode != protocol.TimeSyncModeRTTProbe || got.ServerTime != 123 || got.ClientTime != 456 {
		t.Errorf("dispatched message = %+v", got)
	}

	// Tracking messages route to the other handler method.
	info := &protocol.TrackingInfo{ClientTime: 9, FrameIndex: 4, Battery: 0.5}
	data, err = info.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := client.WriteTo(data, host.LocalAddr()); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	waitFor(t, func() bool {
		n, _ := handler.counts()
		return n == 1
	})
	handler.mu.Lock()
	tracked := handler.tracking[0]
	handler.mu.Unlock()
	if tracked.FrameIndex != 4 || tracked.Battery != 0.5 {
		t.Errorf("dispatched tracking info = %+v", tracked)
	}
}

func TestSendVideoRoundTrip(t *testing.T) {
	host, client := newLoopbackPair(t)
	host.Start()

	// Teach the host its peer with a probe first.
	probe, err := (&protocol.TimeSync{Type: protocol.PacketTimeSync}).Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := client.WriteTo(probe, host.LocalAddr()); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	waitFor(t, func() bool { return host.Peer() != nil })

	header := &protocol.VideoFrame{
		Type:            protocol.PacketVideoFrame,
		PacketCounter:   3,
		VideoFrameIndex: 1,
		FrameByteSize:   4,
	}
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if err := host.SendVideo(header, payload); err != nil {
		t.Fatalf("SendVideo: %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buffer := make([]byte, protocol.MaxPacketSize)
	n, _, err := client.ReadFrom(buffer)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}

	parsed, body, err := protocol.ParseVideoFrame(buffer[:n])
	if err != nil {
		t.Fatalf("ParseVideoFrame: %v", err)
	}
	if parsed.PacketCounter != 3 || parsed.VideoFrameIndex != 1 {
		t.Errorf("received header = %+v", parsed)
	}
	if string(body) != string(payload) {
		t.Errorf("received payload = %x, want %x", body, payload)
	}
}

func TestDispatchDropsNoise(t *testing.T) {
	host, client := newLoopbackPair(t)
	handler := &recordingHandler{}
	host.SetHandler(handler)
	host.Start()

	// Garbage, a truncated message and an unexpected type must all be
	// dropped without reaching the handler.
	for _, noise := range [][]byte{
		{0xFF},
		{0xFF, 0xFF, 0xFF, 0xFF, 0x00},
		(&protocol.VideoFrame{Type: protocol.PacketVideoFrame}).Marshal([]byte{1, 2, 3}),
	} {
		if _, err := client.WriteTo(noise, host.LocalAddr()); err != nil {
			t.Fatalf("WriteTo: %v", err)
		}
	}

	// A valid message afterwards proves the loop survived the noise.
	data, err := (&protocol.TimeSync{Type: protocol.PacketTimeSync}).Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := client.WriteTo(data, host.LocalAddr()); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	waitFor(t, func() bool {
		_, n := handler.counts()
		return n == 1
	})
	if n, _ := handler.counts(); n != 0 {
		t.Errorf("noise reached the tracking handler: %d messages", n)
	}
}

func TestCloseWithoutStart(t *testing.T) {
	// A transport torn down before Start must not wait for a read loop
	// that never ran. The facade hits this path when connection setup
	// fails after the socket is open.
	host, err := NewUDPTransport("127.0.0.1:0", "")
	if err != nil {
		t.Fatalf("NewUDPTransport: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- host.Close() }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close hung on a transport that was never started")
	}
}

func TestCloseStopsReadLoop(t *testing.T) {
	host, err := NewUDPTransport("127.0.0.1:0", "")
	if err != nil {
		t.Fatalf("NewUDPTransport: %v", err)
	}
	host.Start()

	done := make(chan error, 1)
	go func() { done <- host.Close() }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return; read loop still running")
	}
}
