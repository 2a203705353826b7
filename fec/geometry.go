package fec

import (
	"errors"
	"fmt"

	"github.com/opd-ai/vrstream/protocol"
)

// MaxTotalShards is the Reed-Solomon shard limit over GF(2^8).
const MaxTotalShards = 255

// shardHeadroom keeps a couple of shards in reserve when deriving the
// maximum data shard count, so rounding in the parity computation can
// never push the total past MaxTotalShards.
const shardHeadroom = 2

var (
	// ErrEmptyFrame indicates a zero-length frame buffer.
	ErrEmptyFrame = errors.New("empty frame")

	// ErrTooManyShards indicates the computed geometry exceeds the coder's
	// shard limit. This is a configuration error, not a runtime condition:
	// the redundancy percentage or frame size is outside supported bounds.
	ErrTooManyShards = errors.New("too many shards")

	// ErrInvalidPercentage indicates a negative redundancy percentage.
	ErrInvalidPercentage = errors.New("invalid redundancy percentage")
)

// Geometry describes how one frame maps onto shards and packets.
type Geometry struct {
	FrameBytes   int // original unpadded frame length
	ShardPackets int // network packets per shard
	BlockSize    int // shard size in bytes, ShardPackets*MaxVideoPayloadSize
	DataShards   int
	ParityShards int
	TotalShards  int
}

// ShardPackets returns the number of network packets spanned by one shard
// for a frame of frameLen bytes at the given redundancy percentage.
//
// Normally one packet is one shard. Once a frame needs more data shards
// than the field supports, several packets are combined into a single
// shard. Raising the percentage shrinks the data shard budget and can
// therefore only grow the result, never shrink it.
func ShardPackets(frameLen, percentage int) int {
	maxDataShards := ((MaxTotalShards - shardHeadroom) * 100) / (100 + percentage)
	if maxDataShards < 1 {
		// Absurd percentages leave no data budget; Compute rejects the
		// resulting parity count against MaxTotalShards.
		maxDataShards = 1
	}
	minBlockSize := (frameLen + maxDataShards - 1) / maxDataShards
	return (minBlockSize + protocol.MaxVideoPayloadSize - 1) / protocol.MaxVideoPayloadSize
}

// ParityShards returns the parity shard count for dataShards at the given
// redundancy percentage, rounding up so any nonzero percentage yields at
// least one parity shard.
func ParityShards(dataShards, percentage int) int {
	return (dataShards*percentage + 99) / 100
}

// Compute derives the full shard/packet geometry for a frame.
//
// Returns ErrEmptyFrame for a zero-length frame, ErrInvalidPercentage for
// a negative percentage and ErrTooManyShards when the geometry would
// exceed MaxTotalShards.
func Compute(frameLen, percentage int) (Geometry, error) {
	if frameLen <= 0 {
		return Geometry{}, ErrEmptyFrame
	}
	if percentage < 0 {
		return Geometry{}, fmt.Errorf("%w: %d", ErrInvalidPercentage, percentage)
	}

	shardPackets := ShardPackets(frameLen, percentage)
	blockSize := shardPackets * protocol.MaxVideoPayloadSize
	dataShards := (frameLen + blockSize - 1) / blockSize
	parityShards := ParityShards(dataShards, percentage)
	totalShards := dataShards + parityShards

	if totalShards > MaxTotalShards {
		return Geometry{}, fmt.Errorf("%w: %d data + %d parity exceeds %d",
			ErrTooManyShards, dataShards, parityShards, MaxTotalShards)
	}

	return Geometry{
		FrameBytes:   frameLen,
		ShardPackets: shardPackets,
		BlockSize:    blockSize,
		DataShards:   dataShards,
		ParityShards: parityShards,
		TotalShards:  totalShards,
	}, nil
}

// Padded reports whether the final data shard extends past the frame and
// needs zero padding.
func (g Geometry) Padded() bool {
	return g.FrameBytes%g.BlockSize != 0
}
