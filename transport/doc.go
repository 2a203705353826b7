// Package transport implements the reference datagram transport for the
// video stream: a UDP socket that marshals outbound video and time-sync
// packets to the single active peer and dispatches inbound tracking and
// time-sync messages to a registered handler.
//
// The stream core treats this layer as opaque and fire-and-forget; any
// implementation of stream.Sender can replace it. Only one peer is active
// at a time: the peer address is either configured up front or learned
// from the first inbound datagram.
//
// Example:
//
//	t, err := transport.NewUDPTransport(":9944", "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Close()
//
//	t.SetHandler(conn)
//	t.Start()
package transport
