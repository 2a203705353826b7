package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TimeSync exchange modes. The mode value selects which fields of the
// message are meaningful.
const (
	// TimeSyncModeClientReport is sent headset to host and carries the
	// headset's measured latency breakdown, FPS and loss counters.
	TimeSyncModeClientReport uint32 = 0
	// TimeSyncModeServerReply is the host's immediate answer to a client
	// report, carrying the computed end-to-end latency and server time.
	TimeSyncModeServerReply uint32 = 1
	// TimeSyncModeRTTProbe is sent headset to host echoing a previously
	// received server time, letting the host measure round-trip time and
	// clock offset.
	TimeSyncModeRTTProbe uint32 = 2
	// TimeSyncModeTrackingAck is sent host to headset on every tracking
	// sample, carrying the host clock adjusted by the estimated offset.
	TimeSyncModeTrackingAck uint32 = 3
)

// TimeSyncSize is the encoded size of a TimeSync message.
const TimeSyncSize = 96

// TimeSync carries clock synchronization and latency accounting between
// host and headset. Messages are transient: built, sent and discarded per
// round. Latency fields are microseconds unless noted otherwise.
type TimeSync struct {
	Type PacketType
	Mode uint32

	ServerTime uint64
	ClientTime uint64

	// Client report fields, filled only when Mode is TimeSyncModeClientReport.
	PacketsLostTotal        uint64
	PacketsLostInSecond     uint64
	AverageTotalLatency     uint32
	AverageSendLatency      uint32
	AverageTransportLatency uint32
	AverageDecodeLatency    uint32
	IdleTime                uint32
	FecFailure              uint32
	FecFailureInSecond      uint64
	FecFailureTotal         uint64
	Fps                     float32

	// Filled by the host when Mode is TimeSyncModeServerReply.
	ServerTotalLatency uint32

	// Filled by the host when Mode is TimeSyncModeTrackingAck.
	TrackingRecvFrameIndex uint64
}

// Marshal encodes the message into a fixed TimeSyncSize buffer.
func (t *TimeSync) Marshal() ([]byte, error) {
	buf := make([]byte, TimeSyncSize)

	binary.LittleEndian.PutUint32(buf[0:4], uint32(t.Type))
	binary.LittleEndian.PutUint32(buf[4:8], t.Mode)
	binary.LittleEndian.PutUint64(buf[8:16], t.ServerTime)
	binary.LittleEndian.PutUint64(buf[16:24], t.ClientTime)
	binary.LittleEndian.PutUint64(buf[24:32], t.PacketsLostTotal)
	binary.LittleEndian.PutUint64(buf[32:40], t.PacketsLostInSecond)
	binary.LittleEndian.PutUint32(buf[40:44], t.AverageTotalLatency)
	binary.LittleEndian.PutUint32(buf[44:48], t.AverageSendLatency)
	binary.LittleEndian.PutUint32(buf[48:52], t.AverageTransportLatency)
	binary.LittleEndian.PutUint32(buf[52:56], t.AverageDecodeLatency)
	binary.LittleEndian.PutUint32(buf[56:60], t.IdleTime)
	binary.LittleEndian.PutUint32(buf[60:64], t.FecFailure)
	binary.LittleEndian.PutUint64(buf[64:72], t.FecFailureInSecond)
	binary.LittleEndian.PutUint64(buf[72:80], t.FecFailureTotal)
	binary.LittleEndian.PutUint32(buf[80:84], math.Float32bits(t.Fps))
	binary.LittleEndian.PutUint32(buf[84:88], t.ServerTotalLatency)
	binary.LittleEndian.PutUint64(buf[88:96], t.TrackingRecvFrameIndex)

	return buf, nil
}

// ParseTimeSync decodes a TimeSync message.
func ParseTimeSync(data []byte) (*TimeSync, error) {
	if len(data) < TimeSyncSize {
		return nil, fmt.Errorf("%w: time sync needs %d bytes, have %d",
			ErrBufferTooShort, TimeSyncSize, len(data))
	}

	t := &TimeSync{
		Type:                    PacketType(binary.LittleEndian.Uint32(data[0:4])),
		Mode:                    binary.LittleEndian.Uint32(data[4:8]),
		ServerTime:              binary.LittleEndian.Uint64(data[8:16]),
		ClientTime:              binary.LittleEndian.Uint64(data[16:24]),
		PacketsLostTotal:        binary.LittleEndian.Uint64(data[24:32]),
		PacketsLostInSecond:     binary.LittleEndian.Uint64(data[32:40]),
		AverageTotalLatency:     binary.LittleEndian.Uint32(data[40:44]),
		AverageSendLatency:      binary.LittleEndian.Uint32(data[44:48]),
		AverageTransportLatency: binary.LittleEndian.Uint32(data[48:52]),
		AverageDecodeLatency:    binary.LittleEndian.Uint32(data[52:56]),
		IdleTime:                binary.LittleEndian.Uint32(data[56:60]),
		FecFailure:              binary.LittleEndian.Uint32(data[60:64]),
		FecFailureInSecond:      binary.LittleEndian.Uint64(data[64:72]),
		FecFailureTotal:         binary.LittleEndian.Uint64(data[72:80]),
		Fps:                     math.Float32frombits(binary.LittleEndian.Uint32(data[80:84])),
		ServerTotalLatency:      binary.LittleEndian.Uint32(data[84:88]),
		TrackingRecvFrameIndex:  binary.LittleEndian.Uint64(data[88:96]),
	}
	if t.Type != PacketTimeSync {
		return nil, fmt.Errorf("%w: expected %d, got %d",
			ErrWrongPacketType, PacketTimeSync, t.Type)
	}

	return t, nil
}
