package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/vrstream/protocol"
)

// ErrNoPeer indicates a send was attempted before a peer address was
// configured or learned.
var ErrNoPeer = errors.New("no peer address")

// MessageHandler receives inbound stream messages, one method per message
// kind. Handling is synchronous and short; the read loop calls the
// handler inline.
type MessageHandler interface {
	// HandleTrackingInfo processes a motion sample from the peer.
	HandleTrackingInfo(info *protocol.TrackingInfo) error

	// HandleTimeSync processes a time-sync message from the peer.
	HandleTimeSync(msg *protocol.TimeSync) error
}

// UDPTransport sends and receives stream packets over a UDP socket. It
// implements stream.Sender.
type UDPTransport struct {
	conn net.PacketConn

	mu       sync.RWMutex
	peerAddr net.Addr
	handler  MessageHandler
	started  bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewUDPTransport opens a UDP socket on listenAddr. peerAddr may be empty,
// in which case the peer is learned from the first inbound datagram.
//
// Returns:
//   - *UDPTransport: the new transport, not yet reading; call Start
//   - error: socket or address resolution failure
func NewUDPTransport(listenAddr, peerAddr string) (*UDPTransport, error) {
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", listenAddr, err)
	}

	var peer net.Addr
	if peerAddr != "" {
		peer, err = net.ResolveUDPAddr("udp", peerAddr)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("resolve peer %s: %w", peerAddr, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &UDPTransport{
		conn:     conn,
		peerAddr: peer,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewUDPTransport",
		"listen_addr": conn.LocalAddr().String(),
		"peer_addr":   peerAddr,
	}).Info("Created UDP transport")

	return t, nil
}

// SetHandler registers the inbound message handler. Must be called before
// Start.
func (t *UDPTransport) SetHandler(h MessageHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

// Start launches the inbound read loop. Calling Start more than once is
// a no-op.
func (t *UDPTransport) Start() {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()

	go t.readLoop()
}

// SendVideo marshals one video packet and writes it to the peer.
func (t *UDPTransport) SendVideo(header *protocol.VideoFrame, payload []byte) error {
	peer := t.peer()
	if peer == nil {
		return ErrNoPeer
	}

	_, err := t.conn.WriteTo(header.Marshal(payload), peer)
	return err
}

// SendTimeSync marshals one time-sync message and writes it to the peer.
func (t *UDPTransport) SendTimeSync(msg *protocol.TimeSync) error {
	peer := t.peer()
	if peer == nil {
		return ErrNoPeer
	}

	data, err := msg.Marshal()
	if err != nil {
		return err
	}
	_, err = t.conn.WriteTo(data, peer)
	return err
}

// LocalAddr returns the bound local address.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Peer returns the current peer address, nil when none is known yet.
func (t *UDPTransport) Peer() net.Addr {
	return t.peer()
}

// Close shuts down the read loop and the socket. Safe to call on a
// transport that was never started.
func (t *UDPTransport) Close() error {
	t.cancel()
	err := t.conn.Close()

	t.mu.RLock()
	started := t.started
	t.mu.RUnlock()
	if started {
		<-t.done
	}
	return err
}

func (t *UDPTransport) peer() net.Addr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.peerAddr
}

// readLoop reads datagrams until the transport is closed, dispatching
// each to the handler by packet type.
func (t *UDPTransport) readLoop() {
	defer close(t.done)

	buffer := make([]byte, protocol.MaxPacketSize)
	for {
		select {
		case <-t.ctx.Done():
			return
		default:
		}

		_ = t.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, addr, err := t.conn.ReadFrom(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if t.ctx.Err() != nil {
				return
			}
			logrus.WithFields(logrus.Fields{
				"function": "readLoop",
				"error":    err.Error(),
			}).Warn("UDP read failed")
			continue
		}

		t.learnPeer(addr)
		t.dispatch(buffer[:n])
	}
}

// learnPeer adopts the sender of an inbound datagram as the active peer
// when none was configured. Single active peer: later datagrams from
// other addresses do not replace it.
func (t *UDPTransport) learnPeer(addr net.Addr) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.peerAddr == nil {
		t.peerAddr = addr
		logrus.WithFields(logrus.Fields{
			"function":  "learnPeer",
			"peer_addr": addr.String(),
		}).Info("Learned peer address from inbound datagram")
	}
}

// dispatch parses one inbound datagram and routes it to the handler.
func (t *UDPTransport) dispatch(data []byte) {
	t.mu.RLock()
	handler := t.handler
	t.mu.RUnlock()
	if handler == nil {
		return
	}

	typ, err := protocol.PeekType(data)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "dispatch",
			"error":    err.Error(),
		}).Debug("Dropping undecodable datagram")
		return
	}

	switch typ {
	case protocol.PacketTrackingInfo:
		info, err := protocol.ParseTrackingInfo(data)
		if err != nil {
			t.logParseError("tracking info", err)
			return
		}
		if err := handler.HandleTrackingInfo(info); err != nil {
			t.logHandlerError("tracking info", err)
		}

	case protocol.PacketTimeSync:
		msg, err := protocol.ParseTimeSync(data)
		if err != nil {
			t.logParseError("time sync", err)
			return
		}
		if err := handler.HandleTimeSync(msg); err != nil {
			t.logHandlerError("time sync", err)
		}

	default:
		// The host never receives video; anything else is noise.
		logrus.WithFields(logrus.Fields{
			"function":    "dispatch",
			"packet_type": typ,
		}).Debug("Dropping packet of unexpected type")
	}
}

func (t *UDPTransport) logParseError(kind string, err error) {
	logrus.WithFields(logrus.Fields{
		"function": "dispatch",
		"kind":     kind,
		"error":    err.Error(),
	}).Warn("Failed to parse inbound packet")
}

func (t *UDPTransport) logHandlerError(kind string, err error) {
	logrus.WithFields(logrus.Fields{
		"function": "dispatch",
		"kind":     kind,
		"error":    err.Error(),
	}).Warn("Inbound packet handler failed")
}
