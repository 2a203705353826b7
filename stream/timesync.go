package stream

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/vrstream/protocol"
	"github.com/opd-ai/vrstream/stats"
)

// HandleTrackingInfo processes one inbound motion sample and immediately
// answers with a tracking acknowledgment carrying the host clock adjusted
// onto the peer's timeline. This is not a full sync round; it only gives
// the peer a time anchor per sample.
func (c *Connection) HandleTrackingInfo(info *protocol.TrackingInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.statistics.CountPacket(info.WireSize())
	c.statistics.SetHMDBattery(info.Battery)

	now := c.clock.NowMicros()
	if rec, ok := c.history.Lookup(info.FrameIndex); ok {
		logrus.WithFields(logrus.Fields{
			"function":             "HandleTrackingInfo",
			"stream_id":            c.id,
			"tracking_frame_index": info.FrameIndex,
			"frame_age_us":         now - rec.SentTimeUS,
			"frame_packets":        rec.Packets,
		}).Debug("Tracking sample matches a sent frame")
	}

	reply := &protocol.TimeSync{
		Type:                   protocol.PacketTimeSync,
		Mode:                   protocol.TimeSyncModeTrackingAck,
		ServerTime:             uint64(int64(now) - c.timeDiffUS),
		TrackingRecvFrameIndex: info.FrameIndex,
	}

	return c.sender.SendTimeSync(reply)
}

// HandleTimeSync processes one inbound time-sync message.
//
// Mode TimeSyncModeClientReport: combine the peer's reported latency
// breakdown with the locally measured encode latency into the end-to-end
// total, ratchet redundancy if the peer flagged a reconstruction failure,
// reply immediately with the computed total, and feed the statistics
// aggregator and the periodic report.
//
// Mode TimeSyncModeRTTProbe: recompute RTT from the echoed server time
// and re-estimate the clock offset under the half-RTT symmetric-delay
// assumption. The estimate is an unfiltered point value, expected to be a
// little off since its timing window spans more than one frame; it
// silently self-corrects on the next probe. No reply is sent.
func (c *Connection) HandleTimeSync(msg *protocol.TimeSync) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.statistics.CountPacket(protocol.TimeSyncSize)
	now := c.clock.NowMicros()

	switch msg.Mode {
	case protocol.TimeSyncModeClientReport:
		return c.handleClientReport(msg, now)

	case protocol.TimeSyncModeRTTProbe:
		rtt := now - msg.ServerTime
		c.rttUS = rtt
		c.timeDiffUS = int64(now) - int64(msg.ClientTime+rtt/2)

		logrus.WithFields(logrus.Fields{
			"function":      "HandleTimeSync",
			"stream_id":     c.id,
			"rtt_us":        rtt,
			"clock_diff_us": c.timeDiffUS,
		}).Debug("Updated RTT and clock offset estimates")
		return nil

	default:
		logrus.WithFields(logrus.Fields{
			"function":  "HandleTimeSync",
			"stream_id": c.id,
			"mode":      msg.Mode,
		}).Warn("Unexpected time sync mode")
		return fmt.Errorf("unexpected time sync mode %d", msg.Mode)
	}
}

// handleClientReport is the mode-0 branch of HandleTimeSync. Caller must
// hold c.mu.
func (c *Connection) handleClientReport(msg *protocol.TimeSync, now uint64) error {
	render, idle, wait := c.timing.FrameTiming()
	c.reported = *msg

	// The ratchet runs before the reply so a raised percentage is already
	// in effect when the peer resumes decoding.
	if msg.FecFailure != 0 {
		c.onFECFailure(now)
	}

	encodeUS := c.statistics.EncodeLatencyAverage()
	totalUS := uint64(msg.AverageSendLatency) +
		uint64((render+idle+wait)*1000) +
		encodeUS +
		uint64(msg.AverageTransportLatency) +
		uint64(msg.AverageDecodeLatency) +
		uint64(msg.IdleTime)

	reply := *msg
	reply.Mode = protocol.TimeSyncModeServerReply
	reply.ServerTime = now
	reply.ServerTotalLatency = uint32(totalUS)
	if err := c.sender.SendTimeSync(&reply); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "handleClientReport",
			"stream_id": c.id,
			"error":     err.Error(),
		}).Warn("Time sync reply send failed")
	}

	c.statistics.RecordNetworkLatency(totalUS, uint64(msg.AverageTransportLatency))
	c.statistics.AddLatency(stats.LatencySample{
		Total:     float64(totalUS) / 1000.0,
		Encode:    float64(encodeUS) / 1000.0,
		Transport: float64(msg.AverageTransportLatency) / 1000.0,
		Decode:    float64(msg.AverageDecodeLatency) / 1000.0,
		ClientFPS: float64(msg.Fps),
		Ping:      float64(c.rttUS) / 2.0 / 1000.0,
	})

	c.reporter.Report(now, stats.ClientCounters{
		PacketsLostTotal:    msg.PacketsLostTotal,
		PacketsLostInSecond: msg.PacketsLostInSecond,
		FecFailureTotal:     msg.FecFailureTotal,
		FecFailureInSecond:  msg.FecFailureInSecond,
		Fps:                 float64(msg.Fps),
	}, c.fecPercentage)

	c.reporter.Graph(now, stats.GraphSample{
		TotalLatency:   float64(totalUS) / 1000.0,
		ReceiveLatency: float64(msg.AverageSendLatency) / 1000.0,
		RenderTime:     render,
		IdleTime:       idle,
		WaitTime:       wait,
		EncodeLatency:  float64(encodeUS) / 1000.0,
		SendLatency:    float64(msg.AverageTransportLatency) / 1000.0,
		DecodeLatency:  float64(msg.AverageDecodeLatency) / 1000.0,
		ClientIdleTime: float64(msg.IdleTime) / 1000.0,
		ClientFPS:      float64(msg.Fps),
		ServerFPS:      float64(c.statistics.FPS()),
	})

	return nil
}
