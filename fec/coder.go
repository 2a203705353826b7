package fec

import (
	"fmt"
	"sync"

	"github.com/klauspost/reedsolomon"
	"github.com/sirupsen/logrus"
)

// Coder produces parity shards for video frames. It is stateless with
// respect to frame data: every call is a pure function of its inputs.
// Encoder instances and scratch buffers are cached across calls because
// frame geometry repeats from frame to frame.
//
// A Coder is safe for concurrent use.
type Coder struct {
	mu       sync.Mutex
	encoders map[[2]int]reedsolomon.Encoder

	// Scratch arena for the padded tail shard and the parity shards,
	// released back at the end of each frame's encode call.
	scratch sync.Pool
}

// NewCoder creates an erasure coder.
func NewCoder() *Coder {
	return &Coder{
		encoders: make(map[[2]int]reedsolomon.Encoder),
		scratch: sync.Pool{
			New: func() interface{} {
				b := make([]byte, 0)
				return &b
			},
		},
	}
}

// EncodeFrame splits frame into geo.DataShards blocks of geo.BlockSize
// bytes and computes geo.ParityShards parity blocks over them.
//
// The returned slice holds the data shards first, parity shards after.
// Full data shards alias the frame buffer directly; only the zero-padded
// tail shard (when the frame does not divide evenly) and the parity
// shards live in scratch memory. release must be called once the shards
// have been consumed; the shards are invalid afterwards.
func (c *Coder) EncodeFrame(frame []byte, geo Geometry) (shards [][]byte, release func(), err error) {
	if len(frame) != geo.FrameBytes {
		return nil, nil, fmt.Errorf("frame length %d does not match geometry %d",
			len(frame), geo.FrameBytes)
	}
	if geo.TotalShards > MaxTotalShards {
		return nil, nil, fmt.Errorf("%w: %d", ErrTooManyShards, geo.TotalShards)
	}

	scratchShards := geo.ParityShards
	if geo.Padded() {
		scratchShards++
	}
	arena := c.acquire(scratchShards * geo.BlockSize)
	release = func() { c.scratch.Put(arena) }

	shards = make([][]byte, geo.TotalShards)
	for i := 0; i < geo.DataShards; i++ {
		shards[i] = frame[i*geo.BlockSize : min((i+1)*geo.BlockSize, len(frame))]
	}

	next := 0
	if geo.Padded() {
		tail := (*arena)[next : next+geo.BlockSize]
		next += geo.BlockSize
		n := copy(tail, shards[geo.DataShards-1])
		clear(tail[n:]) // arena is pooled, stale bytes must not leak into parity
		shards[geo.DataShards-1] = tail
	}
	for i := 0; i < geo.ParityShards; i++ {
		shards[geo.DataShards+i] = (*arena)[next : next+geo.BlockSize]
		next += geo.BlockSize
	}

	if geo.ParityShards > 0 {
		enc, err := c.encoder(geo.DataShards, geo.ParityShards)
		if err != nil {
			release()
			return nil, nil, err
		}
		if err := enc.Encode(shards); err != nil {
			release()
			return nil, nil, fmt.Errorf("reed-solomon encode: %w", err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":      "EncodeFrame",
		"frame_bytes":   geo.FrameBytes,
		"data_shards":   geo.DataShards,
		"parity_shards": geo.ParityShards,
		"block_size":    geo.BlockSize,
		"shard_packets": geo.ShardPackets,
	}).Debug("Encoded frame shards")

	return shards, release, nil
}

// encoder returns the cached Reed-Solomon encoder for the given shard
// counts, constructing it on first use.
func (c *Coder) encoder(dataShards, parityShards int) (reedsolomon.Encoder, error) {
	key := [2]int{dataShards, parityShards}

	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.encoders[key]; ok {
		return enc, nil
	}

	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, fmt.Errorf("reed-solomon new(%d, %d): %w", dataShards, parityShards, err)
	}
	c.encoders[key] = enc

	return enc, nil
}

// acquire fetches a pooled buffer of at least size bytes.
func (c *Coder) acquire(size int) *[]byte {
	arena := c.scratch.Get().(*[]byte)
	if cap(*arena) < size {
		b := make([]byte, size)
		arena = &b
	}
	*arena = (*arena)[:cap(*arena)]
	return arena
}
