// Package stats aggregates connection statistics for the video stream:
// cumulative and per-second packet and bit counters, encode latency,
// the latency breakdown averaged between periodic reports, frame rates
// and device battery gauges.
//
// A single Statistics instance is shared by the frame sender and the
// time-sync handlers of one connection; all methods are safe for
// concurrent use. The Reporter turns the aggregate into structured log
// records: a wall-clock gated "Statistics" record and an ungated
// per-round "GraphStatistics" record, both emitted through logrus for
// the dashboard to consume.
package stats
