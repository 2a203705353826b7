package stream

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/vrstream/fec"
	"github.com/opd-ai/vrstream/protocol"
)

// SendVideo fragments one encoded frame into its packet stream and hands
// every packet to the transport sender. The frame buffer belongs to the
// caller again as soon as this returns; nothing is retained.
//
// The video frame index advances exactly once per call, whether or not
// erasure coding is in effect. Once a frame send begins, all of its
// packets are emitted; a mid-frame abort is not supported, and transport
// errors on individual packets are logged, not propagated (the link is
// lossy by assumption).
//
// Parameters:
//   - frame: the finalized encoded frame bytes
//   - trackingFrameIndex: the motion sample this frame was rendered for
//
// Returns:
//   - error: ErrEmptyFrame, or a geometry error when the frame size and
//     redundancy percentage exceed the coder's capacity (a configuration
//     bug, not a runtime condition)
func (c *Connection) SendVideo(frame []byte, trackingFrameIndex uint64) error {
	if len(frame) == 0 {
		return ErrEmptyFrame
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		packets int
		sentUS  uint64
		err     error
	)
	if c.settings.EnableFEC {
		packets, sentUS, err = c.fecSend(frame, trackingFrameIndex)
	} else {
		packets, sentUS, err = c.plainSend(frame, trackingFrameIndex)
	}
	if err != nil {
		return err
	}

	c.history.Record(trackingFrameIndex, FrameRecord{
		VideoFrameIndex: c.videoFrameIndex,
		SentTimeUS:      sentUS,
		ByteSize:        len(frame),
		Packets:         packets,
	})
	c.videoFrameIndex++
	c.statistics.CountFrame()

	return nil
}

// fecSend is the erasure-coded path: derive geometry, compute parity and
// emit the full packet stream, data shards first, parity shards after.
// Caller must hold c.mu.
func (c *Connection) fecSend(frame []byte, trackingFrameIndex uint64) (int, uint64, error) {
	geo, err := fec.Compute(len(frame), c.fecPercentage)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":       "fecSend",
			"stream_id":      c.id,
			"frame_bytes":    len(frame),
			"fec_percentage": c.fecPercentage,
			"error":          err.Error(),
		}).Error("Frame geometry exceeds coder capacity, frame not sent")
		return 0, 0, fmt.Errorf("frame geometry: %w", err)
	}

	shards, release, err := c.coder.EncodeFrame(frame, geo)
	if err != nil {
		return 0, 0, fmt.Errorf("encode frame: %w", err)
	}
	defer release()

	now := c.clock.NowMicros()
	header := protocol.VideoFrame{
		Type:               protocol.PacketVideoFrame,
		TrackingFrameIndex: trackingFrameIndex,
		VideoFrameIndex:    c.videoFrameIndex,
		SentTime:           now,
		FrameByteSize:      uint32(len(frame)),
		FecIndex:           0,
		FecPercentage:      uint16(c.fecPercentage),
	}

	logrus.WithFields(logrus.Fields{
		"function":             "fecSend",
		"stream_id":            c.id,
		"tracking_frame_index": trackingFrameIndex,
		"video_frame_index":    c.videoFrameIndex,
		"frame_bytes":          len(frame),
		"data_shards":          geo.DataShards,
		"parity_shards":        geo.ParityShards,
		"shard_packets":        geo.ShardPackets,
	}).Debug("Sending video frame")

	// Data packets: shards outer, sub-blocks inner. The final packet is
	// truncated to the remaining unpadded length; padding bytes beyond the
	// frame are never sent as a packet of their own.
	dataRemain := len(frame)
	packets := 0
	for i := 0; i < geo.DataShards; i++ {
		for j := 0; j < geo.ShardPackets; j++ {
			copyLen := min(protocol.MaxVideoPayloadSize, dataRemain)
			if copyLen <= 0 {
				break
			}
			off := j * protocol.MaxVideoPayloadSize
			c.emit(&header, shards[i][off:off+copyLen])
			dataRemain -= protocol.MaxVideoPayloadSize
			packets++
		}
	}

	// Parity packets continue the fecIndex sequence without a gap and are
	// always full-size: a parity shard has no partially valid tail.
	for i := 0; i < geo.ParityShards; i++ {
		for j := 0; j < geo.ShardPackets; j++ {
			off := j * protocol.MaxVideoPayloadSize
			c.emit(&header, shards[geo.DataShards+i][off:off+protocol.MaxVideoPayloadSize])
			packets++
		}
	}

	return packets, now, nil
}

// plainSend is the redundancy-disabled path: the whole frame as a single
// packet with fecIndex 0. Caller must hold c.mu.
func (c *Connection) plainSend(frame []byte, trackingFrameIndex uint64) (int, uint64, error) {
	now := c.clock.NowMicros()
	header := protocol.VideoFrame{
		Type:               protocol.PacketVideoFrame,
		TrackingFrameIndex: trackingFrameIndex,
		VideoFrameIndex:    c.videoFrameIndex,
		SentTime:           now,
		FrameByteSize:      uint32(len(frame)),
	}

	logrus.WithFields(logrus.Fields{
		"function":             "plainSend",
		"stream_id":            c.id,
		"tracking_frame_index": trackingFrameIndex,
		"video_frame_index":    c.videoFrameIndex,
		"frame_bytes":          len(frame),
	}).Debug("Sending video frame without redundancy")

	c.emit(&header, frame)

	return 1, now, nil
}

// emit assigns the global packet counter, hands one packet to the
// transport and advances the per-frame fecIndex. Caller must hold c.mu.
func (c *Connection) emit(header *protocol.VideoFrame, payload []byte) {
	header.PacketCounter = c.packetCounter
	c.packetCounter++

	if err := c.sender.SendVideo(header, payload); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":       "emit",
			"stream_id":      c.id,
			"packet_counter": header.PacketCounter,
			"fec_index":      header.FecIndex,
			"error":          err.Error(),
		}).Warn("Video packet send failed")
	}
	c.statistics.CountPacket(protocol.VideoFrameHeaderSize + len(payload))
	header.FecIndex++
}
