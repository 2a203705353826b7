package stats

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultReportInterval is the minimum wall-clock spacing between two
// emitted Statistics records.
const DefaultReportInterval = 100 * time.Millisecond

// ClientCounters holds the loss and failure counters most recently
// reported by the headset, copied into the periodic record verbatim.
type ClientCounters struct {
	PacketsLostTotal    uint64
	PacketsLostInSecond uint64
	FecFailureTotal     uint64
	FecFailureInSecond  uint64
	Fps                 float64
}

// GraphSample is one sync round's latency breakdown for the dashboard
// graphs. Values are milliseconds except the FPS gauges.
type GraphSample struct {
	TotalLatency   float64
	ReceiveLatency float64
	RenderTime     float64
	IdleTime       float64
	WaitTime       float64
	EncodeLatency  float64
	SendLatency    float64
	DecodeLatency  float64
	ClientIdleTime float64
	ClientFPS      float64
	ServerFPS      float64
}

// Reporter emits periodic human-readable statistics records through
// logrus. The full Statistics record is gated to at most one per
// interval; the GraphStatistics record goes out every sync round.
type Reporter struct {
	mu         sync.Mutex
	stats      *Statistics
	intervalUS uint64
	lastUS     uint64
}

// NewReporter creates a reporter over the given aggregator. A zero or
// negative interval falls back to DefaultReportInterval.
func NewReporter(stats *Statistics, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = DefaultReportInterval
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewReporter",
		"interval": interval.String(),
	}).Debug("Creating statistics reporter")

	return &Reporter{
		stats:      stats,
		intervalUS: uint64(interval.Microseconds()),
	}
}

// Report emits the gated Statistics record if the interval has elapsed
// since the last one, then clears the averaged latency window. It returns
// whether a record was emitted.
func (r *Reporter) Report(nowUS uint64, client ClientCounters, fecPercentage int) bool {
	r.mu.Lock()
	if nowUS-r.lastUS <= r.intervalUS {
		r.mu.Unlock()
		return false
	}
	r.lastUS = nowUS
	r.mu.Unlock()

	avg := r.stats.LatencyAverages()
	hmd, left, right := r.stats.BatteryLevels()

	logrus.WithFields(logrus.Fields{
		"id":                   "Statistics",
		"totalPackets":         r.stats.PacketsSentTotal(),
		"packetRate":           r.stats.PacketsSentPerSecond(),
		"packetsLostTotal":     client.PacketsLostTotal,
		"packetsLostPerSecond": client.PacketsLostInSecond,
		"totalSent":            r.stats.BitsSentTotal() / 8 / 1000 / 1000,
		"sentRate":             float64(r.stats.BitsSentPerSecond()) / 1e6,
		"bitrate":              r.stats.Bitrate(),
		"ping":                 avg.Ping,
		"totalLatency":         avg.Total,
		"encodeLatency":        avg.Encode,
		"sendLatency":          avg.Transport,
		"decodeLatency":        avg.Decode,
		"fecPercentage":        fecPercentage,
		"fecFailureTotal":      client.FecFailureTotal,
		"fecFailureInSecond":   client.FecFailureInSecond,
		"clientFPS":            avg.ClientFPS,
		"serverFPS":            r.stats.FPS(),
		"batteryHMD":           int(hmd * 100),
		"batteryLeft":          int(left * 100),
		"batteryRight":         int(right * 100),
	}).Info("Statistics")

	r.stats.ResetLatencyWindow()

	return true
}

// Graph emits the ungated per-round GraphStatistics record.
func (r *Reporter) Graph(nowUS uint64, g GraphSample) {
	logrus.WithFields(logrus.Fields{
		"id":             "GraphStatistics",
		"time":           nowUS / 1000,
		"totalLatency":   g.TotalLatency,
		"receiveLatency": g.ReceiveLatency,
		"renderTime":     g.RenderTime,
		"idleTime":       g.IdleTime,
		"waitTime":       g.WaitTime,
		"encodeLatency":  g.EncodeLatency,
		"sendLatency":    g.SendLatency,
		"decodeLatency":  g.DecodeLatency,
		"clientIdleTime": g.ClientIdleTime,
		"clientFPS":      g.ClientFPS,
		"serverFPS":      g.ServerFPS,
	}).Info("GraphStatistics")
}
