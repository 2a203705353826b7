// Package protocol defines the wire format shared by the host and the
// head-mounted display: packet type discriminators, the fixed-layout
// VideoFrame header that precedes every video payload chunk, the TimeSync
// message used for clock synchronization and latency reporting, and the
// TrackingInfo message carrying motion samples from the headset.
//
// All fixed-layout records are encoded little-endian. Video
// payloads ride behind the 42-byte VideoFrame header, at most
// MaxVideoPayloadSize bytes per packet, so a full packet never exceeds
// MaxPacketSize.
//
// Example:
//
//	header := &protocol.VideoFrame{
//	    Type:            protocol.PacketVideoFrame,
//	    VideoFrameIndex: 1,
//	    FrameByteSize:   uint32(len(frame)),
//	}
//	buf := header.Marshal(payload)
//	_, err := conn.WriteTo(buf, peerAddr)
package protocol
