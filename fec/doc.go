// Package fec implements the erasure coding layer of the video stream: it
// derives the shard and packet geometry for a frame at a given redundancy
// percentage and produces Reed-Solomon parity shards so the receiver can
// reconstruct a frame from any sufficiently large subset of its packets.
//
// The code is systematic: data shards are plain slices of the frame
// (zero-padded to a whole shard at the tail) and parity shards are
// computed from them. Any DataShards of the DataShards+ParityShards total
// recover the original frame exactly. The underlying field is GF(2^8), so
// a frame is limited to MaxTotalShards shards; frames large enough to
// exceed that at single-packet shards are handled by growing the shard to
// span several packets.
package fec
