package stream

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// FrameRecord captures one sent frame for later correlation with inbound
// tracking messages.
type FrameRecord struct {
	VideoFrameIndex uint64
	SentTimeUS      uint64
	ByteSize        int
	Packets         int
}

// FrameHistory is a bounded record of recently sent frames keyed by their
// tracking frame index. The tracking-ack path consults it to measure how
// long ago the frame for an acknowledged motion sample left the host.
// Old entries fall out as new frames are recorded.
type FrameHistory struct {
	cache *lru.Cache[uint64, FrameRecord]
}

// NewFrameHistory creates a history bounded to size entries.
func NewFrameHistory(size int) (*FrameHistory, error) {
	cache, err := lru.New[uint64, FrameRecord](size)
	if err != nil {
		return nil, err
	}
	return &FrameHistory{cache: cache}, nil
}

// Record stores the send record for a tracking frame index, replacing any
// previous frame sent for the same motion sample.
func (h *FrameHistory) Record(trackingFrameIndex uint64, rec FrameRecord) {
	h.cache.Add(trackingFrameIndex, rec)
}

// Lookup returns the send record for a tracking frame index.
func (h *FrameHistory) Lookup(trackingFrameIndex uint64) (FrameRecord, bool) {
	return h.cache.Get(trackingFrameIndex)
}

// Len returns the number of retained records.
func (h *FrameHistory) Len() int {
	return h.cache.Len()
}
