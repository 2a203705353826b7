package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PacketType identifies the kind of a stream packet. It occupies the first
// four bytes of every message on the wire.
type PacketType uint32

const (
	// PacketTrackingInfo carries a motion sample from the headset to the host.
	PacketTrackingInfo PacketType = iota + 1
	// PacketTimeSync carries clock synchronization and latency data in
	// either direction.
	PacketTimeSync
	// PacketVideoFrame carries one chunk of an encoded video frame from the
	// host to the headset.
	PacketVideoFrame
)

const (
	// MaxPacketSize is the largest packet placed on the wire, header
	// included. It matches the practical datagram buffer size of the link.
	MaxPacketSize = 2000

	// MaxVideoPayloadSize is the largest video payload carried behind one
	// VideoFrame header on the erasure-coded path.
	MaxVideoPayloadSize = 1400

	// VideoFrameHeaderSize is the encoded size of the VideoFrame header.
	VideoFrameHeaderSize = 42
)

var (
	// ErrBufferTooShort indicates a packet was truncated below its fixed
	// header size.
	ErrBufferTooShort = errors.New("buffer too short")

	// ErrPayloadTooLarge indicates a variable payload exceeds its limit.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrWrongPacketType indicates the type discriminator does not match
	// the record being decoded.
	ErrWrongPacketType = errors.New("wrong packet type")
)

// VideoFrame is the fixed header preceding every video payload chunk.
//
// One encoded frame is fragmented into several packets sharing the same
// TrackingFrameIndex, VideoFrameIndex, SentTime, FrameByteSize and
// FecPercentage. FecIndex enumerates the packets of the frame in send
// order and PacketCounter enumerates packets across the whole connection.
type VideoFrame struct {
	Type               PacketType
	PacketCounter      uint32
	TrackingFrameIndex uint64
	VideoFrameIndex    uint64
	SentTime           uint64 // host clock, microseconds
	FrameByteSize      uint32 // original unpadded frame length
	FecIndex           uint32
	FecPercentage      uint16
}

// Marshal encodes the header followed by payload into a single buffer
// ready for transmission.
//
// No payload size check is performed here: the fragmenter's geometry
// guarantees MaxVideoPayloadSize on the erasure-coded path, while the
// uncoded path deliberately ships a whole frame as one oversized datagram
// and leaves fragmentation to the network stack.
func (v *VideoFrame) Marshal(payload []byte) []byte {
	buf := make([]byte, VideoFrameHeaderSize+len(payload))

	binary.LittleEndian.PutUint32(buf[0:4], uint32(v.Type))
	binary.LittleEndian.PutUint32(buf[4:8], v.PacketCounter)
	binary.LittleEndian.PutUint64(buf[8:16], v.TrackingFrameIndex)
	binary.LittleEndian.PutUint64(buf[16:24], v.VideoFrameIndex)
	binary.LittleEndian.PutUint64(buf[24:32], v.SentTime)
	binary.LittleEndian.PutUint32(buf[32:36], v.FrameByteSize)
	binary.LittleEndian.PutUint32(buf[36:40], v.FecIndex)
	binary.LittleEndian.PutUint16(buf[40:42], v.FecPercentage)
	copy(buf[VideoFrameHeaderSize:], payload)

	return buf
}

// ParseVideoFrame decodes a VideoFrame header from data and returns the
// header together with the payload bytes that follow it. The payload
// aliases data; callers that retain it past the read loop must copy.
func ParseVideoFrame(data []byte) (*VideoFrame, []byte, error) {
	if len(data) < VideoFrameHeaderSize {
		return nil, nil, fmt.Errorf("%w: video frame header needs %d bytes, have %d",
			ErrBufferTooShort, VideoFrameHeaderSize, len(data))
	}

	v := &VideoFrame{
		Type:               PacketType(binary.LittleEndian.Uint32(data[0:4])),
		PacketCounter:      binary.LittleEndian.Uint32(data[4:8]),
		TrackingFrameIndex: binary.LittleEndian.Uint64(data[8:16]),
		VideoFrameIndex:    binary.LittleEndian.Uint64(data[16:24]),
		SentTime:           binary.LittleEndian.Uint64(data[24:32]),
		FrameByteSize:      binary.LittleEndian.Uint32(data[32:36]),
		FecIndex:           binary.LittleEndian.Uint32(data[36:40]),
		FecPercentage:      binary.LittleEndian.Uint16(data[40:42]),
	}
	if v.Type != PacketVideoFrame {
		return nil, nil, fmt.Errorf("%w: expected %d, got %d",
			ErrWrongPacketType, PacketVideoFrame, v.Type)
	}

	return v, data[VideoFrameHeaderSize:], nil
}

// PeekType returns the packet type discriminator of an encoded packet
// without decoding the rest of it.
func PeekType(data []byte) (PacketType, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("%w: type discriminator needs 4 bytes, have %d",
			ErrBufferTooShort, len(data))
	}
	return PacketType(binary.LittleEndian.Uint32(data[0:4])), nil
}
