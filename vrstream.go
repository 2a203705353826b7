// Package vrstream streams real-time video frames and motion-tracking
// data between a host and a head-mounted display over a lossy,
// latency-sensitive link. Oversized frames are fragmented into fixed-size
// packets protected by Reed-Solomon parity shards, so the headset can
// reconstruct a frame despite dropped packets without any retransmission.
// A small time-sync exchange estimates clock offset and round-trip time,
// and a closed-loop controller raises the redundancy percentage when the
// headset reports sustained reconstruction failures.
//
// The heavy lifting lives in the subpackages: protocol (wire format), fec
// (geometry and erasure coding), stream (connection state machine), stats
// (aggregation and reporting), transport (reference UDP transport) and
// config (tunables). This package ties them together for hosts that want
// the default wiring.
//
// Example:
//
//	s, err := vrstream.New(nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	for frame := range encodedFrames {
//	    if err := s.SendVideo(frame.Data, frame.TrackingIndex); err != nil {
//	        log.Fatal(err)
//	    }
//	}
package vrstream

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/vrstream/config"
	"github.com/opd-ai/vrstream/stream"
	"github.com/opd-ai/vrstream/transport"
)

// Stream bundles a UDP transport and a stream connection with the default
// wiring: inbound tracking and time-sync messages feed the connection,
// outbound packets leave through the socket.
type Stream struct {
	settings  *config.Settings
	transport *transport.UDPTransport
	conn      *stream.Connection
}

// New creates a ready-to-use stream. settings may be nil to use
// config.Default(); the transport listens on settings.ListenAddr and
// learns the peer from its first inbound datagram unless
// settings.PeerAddr is set.
func New(settings *config.Settings) (*Stream, error) {
	if settings == nil {
		settings = config.Default()
	}

	t, err := transport.NewUDPTransport(settings.ListenAddr, settings.PeerAddr)
	if err != nil {
		return nil, err
	}

	conn, err := stream.NewConnection(settings, t)
	if err != nil {
		_ = t.Close()
		return nil, err
	}

	t.SetHandler(conn)
	t.Start()

	logrus.WithFields(logrus.Fields{
		"function":    "New",
		"stream_id":   conn.ID(),
		"listen_addr": t.LocalAddr().String(),
	}).Info("Stream ready")

	return &Stream{
		settings:  settings,
		transport: t,
		conn:      conn,
	}, nil
}

// SendVideo fragments and transmits one encoded frame. See
// stream.Connection.SendVideo.
func (s *Stream) SendVideo(frame []byte, trackingFrameIndex uint64) error {
	return s.conn.SendVideo(frame, trackingFrameIndex)
}

// Connection exposes the underlying connection for statistics, latency
// queries and injection points.
func (s *Stream) Connection() *stream.Connection {
	return s.conn
}

// Transport exposes the underlying UDP transport.
func (s *Stream) Transport() *transport.UDPTransport {
	return s.transport
}

// Close shuts down the transport. The connection holds no resources of
// its own.
func (s *Stream) Close() error {
	return s.transport.Close()
}
