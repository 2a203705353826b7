package fec

import (
	"bytes"
	"testing"

	"github.com/klauspost/reedsolomon"
)

// patternFrame fills a frame with a deterministic byte pattern so
// reconstruction mismatches are visible.
func patternFrame(n int) []byte {
	frame := make([]byte, n)
	for i := range frame {
		frame[i] = byte(i*7 + i>>8)
	}
	return frame
}

func TestEncodeFrameReconstructsAfterLoss(t *testing.T) {
	const frameLen = 50000
	const percentage = 20

	geo, err := Compute(frameLen, percentage)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if geo.ParityShards == 0 {
		t.Fatalf("geometry has no parity shards: %+v", geo)
	}

	frame := patternFrame(frameLen)
	coder := NewCoder()
	shards, release, err := coder.EncodeFrame(frame, geo)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	defer release()

	if len(shards) != geo.TotalShards {
		t.Fatalf("shard count = %d, want %d", len(shards), geo.TotalShards)
	}

	// Receiver's view: deep copies, then lose as many shards as there is
	// parity, spread across data and parity.
	received := make([][]byte, len(shards))
	for i, s := range shards {
		received[i] = append([]byte(nil), s...)
	}
	for i := 0; i < geo.ParityShards; i++ {
		received[i*2] = nil
	}

	dec, err := reedsolomon.New(geo.DataShards, geo.ParityShards)
	if err != nil {
		t.Fatalf("reedsolomon.New: %v", err)
	}
	if err := dec.Reconstruct(received); err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}

	var rebuilt []byte
	for i := 0; i < geo.DataShards; i++ {
		rebuilt = append(rebuilt, received[i]...)
	}
	rebuilt = rebuilt[:frameLen]
	if !bytes.Equal(rebuilt, frame) {
		t.Fatal("reconstructed frame differs from original")
	}
}

func TestEncodeFrameAliasesFullShards(t *testing.T) {
	// Frame divides evenly into shards, so no tail copy happens and every
	// data shard points into the frame buffer.
	geo, err := Compute(2800, 20)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if geo.Padded() {
		t.Fatalf("geometry unexpectedly padded: %+v", geo)
	}

	frame := patternFrame(2800)
	shards, release, err := NewCoder().EncodeFrame(frame, geo)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	defer release()

	for i := 0; i < geo.DataShards; i++ {
		if &shards[i][0] != &frame[i*geo.BlockSize] {
			t.Errorf("data shard %d does not alias the frame buffer", i)
		}
	}
}

func TestEncodeFrameZeroParity(t *testing.T) {
	geo, err := Compute(3000, 0)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if geo.ParityShards != 0 {
		t.Fatalf("ParityShards = %d, want 0", geo.ParityShards)
	}

	frame := patternFrame(3000)
	shards, release, err := NewCoder().EncodeFrame(frame, geo)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	defer release()

	if len(shards) != geo.DataShards {
		t.Fatalf("shard count = %d, want %d", len(shards), geo.DataShards)
	}
	var joined []byte
	for _, s := range shards {
		joined = append(joined, s...)
	}
	if !bytes.Equal(joined[:3000], frame) {
		t.Fatal("data shards do not cover the frame")
	}
}

func TestEncodeFrameLengthMismatch(t *testing.T) {
	geo, err := Compute(5000, 10)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if _, _, err := NewCoder().EncodeFrame(make([]byte, 4999), geo); err == nil {
		t.Fatal("expected error for frame/geometry length mismatch")
	}
}

func TestEncodeFramePoolReuse(t *testing.T) {
	// A second encode after release must not leak the first frame's bytes
	// into the padded tail. Encode all-0xFF, release, then encode a frame
	// whose tail padding must be zero, and verify against a fresh coder.
	geo, err := Compute(2801, 20)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !geo.Padded() {
		t.Fatalf("geometry should be padded: %+v", geo)
	}

	coder := NewCoder()
	dirty := bytes.Repeat([]byte{0xFF}, 2801)
	_, release, err := coder.EncodeFrame(dirty, geo)
	if err != nil {
		t.Fatalf("EncodeFrame(dirty): %v", err)
	}
	release()

	frame := patternFrame(2801)
	shards, release, err := coder.EncodeFrame(frame, geo)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	defer release()

	fresh, releaseFresh, err := NewCoder().EncodeFrame(append([]byte(nil), frame...), geo)
	if err != nil {
		t.Fatalf("EncodeFrame(fresh): %v", err)
	}
	defer releaseFresh()

	for i := range shards {
		if !bytes.Equal(shards[i], fresh[i]) {
			t.Errorf("shard %d differs between pooled and fresh coder", i)
		}
	}
}
