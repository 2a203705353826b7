package stream

import (
	"github.com/sirupsen/logrus"
)

// onFECFailure is the adaptive redundancy controller. The peer reports a
// failure whenever it could not reconstruct a frame even with parity; a
// second failure within the configured window means the loss is
// sustained, and the redundancy percentage ratchets up one step toward
// its maximum. The raised percentage applies from the next frame send on,
// never retroactively.
//
// There is no automatic decrease: once the link has demonstrated loss,
// the margin stays. Lowering the percentage is a configuration decision.
//
// Caller must hold c.mu.
func (c *Connection) onFECFailure(nowUS uint64) {
	window := uint64(c.settings.FailureWindow.Microseconds())
	sustained := c.lastFailureUS != 0 && nowUS-c.lastFailureUS < window
	c.lastFailureUS = nowUS

	if !sustained {
		logrus.WithFields(logrus.Fields{
			"function":       "onFECFailure",
			"stream_id":      c.id,
			"fec_percentage": c.fecPercentage,
		}).Debug("Isolated FEC failure, percentage unchanged")
		return
	}
	if c.fecPercentage >= c.settings.MaxFECPercentage {
		logrus.WithFields(logrus.Fields{
			"function":       "onFECFailure",
			"stream_id":      c.id,
			"fec_percentage": c.fecPercentage,
		}).Debug("Sustained FEC failure at maximum percentage")
		return
	}

	c.fecPercentage += c.settings.FECStep
	if c.fecPercentage > c.settings.MaxFECPercentage {
		c.fecPercentage = c.settings.MaxFECPercentage
	}

	logrus.WithFields(logrus.Fields{
		"function":       "onFECFailure",
		"stream_id":      c.id,
		"fec_percentage": c.fecPercentage,
		"fec_max":        c.settings.MaxFECPercentage,
	}).Info("Raised FEC percentage after sustained failures")
}
