// Package stream implements the host side of the video stream transport:
// erasure-coded fragmentation of encoded frames into fixed-size packets,
// the clock-synchronization and round-trip-time exchange with the
// headset, and the closed-loop controller that raises redundancy when the
// headset reports frames it could not reconstruct.
//
// The central type is Connection, which owns all per-peer state: the
// global packet counter, the video frame index, the redundancy
// percentage, and the RTT and clock-offset estimates. Two call sites
// drive it concurrently: the video pipeline calls SendVideo per encoded
// frame, and the transport's inbound loop calls HandleTrackingInfo and
// HandleTimeSync per received message. A single mutex serializes the two
// paths.
//
// The transport itself is opaque to this package: packets leave through
// the Sender interface and are fire-and-forget. There is no
// retransmission and no per-packet acknowledgment; loss recovery rests
// entirely on the parity shards, and the only loss signal flowing back is
// the headset's frame-level reconstruction failure flag.
package stream
