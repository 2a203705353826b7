package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TrackingInfoBaseSize is the encoded size of a TrackingInfo message
// before its variable-length pose payload.
const TrackingInfoBaseSize = 24

// MaxPoseSize bounds the opaque pose payload so a tracking message always
// fits inside one datagram.
const MaxPoseSize = MaxPacketSize - TrackingInfoBaseSize

// TrackingInfo is a motion sample sent by the headset. The stream core
// only interprets ClientTime, FrameIndex and Battery; the pose payload is
// opaque and handed to the tracking consumer untouched.
type TrackingInfo struct {
	ClientTime uint64
	FrameIndex uint64
	Battery    float32 // headset gauge, 0..1
	Pose       []byte
}

// Marshal encodes the message, pose payload appended after the fixed part.
func (t *TrackingInfo) Marshal() ([]byte, error) {
	if len(t.Pose) > MaxPoseSize {
		return nil, fmt.Errorf("%w: pose %d exceeds limit %d",
			ErrPayloadTooLarge, len(t.Pose), MaxPoseSize)
	}

	buf := make([]byte, TrackingInfoBaseSize+len(t.Pose))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(PacketTrackingInfo))
	binary.LittleEndian.PutUint64(buf[4:12], t.ClientTime)
	binary.LittleEndian.PutUint64(buf[12:20], t.FrameIndex)
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(t.Battery))
	copy(buf[TrackingInfoBaseSize:], t.Pose)

	return buf, nil
}

// ParseTrackingInfo decodes a TrackingInfo message. The pose payload is
// copied out of data so the caller may reuse its read buffer.
func ParseTrackingInfo(data []byte) (*TrackingInfo, error) {
	if len(data) < TrackingInfoBaseSize {
		return nil, fmt.Errorf("%w: tracking info needs %d bytes, have %d",
			ErrBufferTooShort, TrackingInfoBaseSize, len(data))
	}
	if typ := PacketType(binary.LittleEndian.Uint32(data[0:4])); typ != PacketTrackingInfo {
		return nil, fmt.Errorf("%w: expected %d, got %d",
			ErrWrongPacketType, PacketTrackingInfo, typ)
	}

	t := &TrackingInfo{
		ClientTime: binary.LittleEndian.Uint64(data[4:12]),
		FrameIndex: binary.LittleEndian.Uint64(data[12:20]),
		Battery:    math.Float32frombits(binary.LittleEndian.Uint32(data[20:24])),
	}
	if len(data) > TrackingInfoBaseSize {
		t.Pose = make([]byte, len(data)-TrackingInfoBaseSize)
		copy(t.Pose, data[TrackingInfoBaseSize:])
	}

	return t, nil
}

// WireSize returns the encoded size of the message, used for statistics
// accounting of inbound traffic.
func (t *TrackingInfo) WireSize() int {
	return TrackingInfoBaseSize + len(t.Pose)
}
