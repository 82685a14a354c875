// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 CV610 Systems

package air8000

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// buildRandomFrame creates a frame with random type, seq, cmd and payload
func buildRandomFrame(rng *rand.Rand) *Frame {
	data := make([]byte, rng.Intn(256))
	rng.Read(data)
	return &Frame{
		Version: ProtocolVersion,
		Type:    FrameType(rng.Intn(5)),
		Seq:     uint8(rng.Intn(256)),
		Cmd:     Command(rng.Intn(0x10000)),
		Data:    data,
	}
}

// ============================================================
// Decoder Fuzz Tests
// ============================================================

// TestFuzzDecoder_RandomBytes feeds random bytes to the decoder
// and verifies it doesn't crash or panic
func TestFuzzDecoder_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		d := NewDecoder()

		// Generate random byte sequence of random length (1-512 bytes)
		length := rng.Intn(512) + 1
		data := make([]byte, length)
		rng.Read(data)

		// Feed all bytes to decoder - should not panic
		d.Feed(data)
		for f := d.Next(); f != nil; f = d.Next() {
			// Anything that decodes from noise must still be shaped
			// like a frame.
			if len(f.Data) > 0xFFFF {
				t.Errorf("Round %d: oversized payload %d", i, len(f.Data))
			}
		}
	}
}

// TestFuzzDecoder_RandomFrames encodes random valid frames and verifies
// they decode back field-for-field
func TestFuzzDecoder_RandomFrames(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	d := NewDecoder()
	for i := 0; i < rounds; i++ {
		want := buildRandomFrame(rng)
		wire, err := Encode(want)
		if err != nil {
			t.Fatalf("Round %d: encode error: %v", i, err)
		}

		d.Feed(wire)
		got := d.Next()
		if got == nil {
			t.Fatalf("Round %d: frame did not decode", i)
		}
		if got.Type != want.Type || got.Seq != want.Seq || got.Cmd != want.Cmd {
			t.Errorf("Round %d: header mismatch: got %v want %v", i, got, want)
		}
		if !bytes.Equal(got.Data, want.Data) {
			t.Errorf("Round %d: payload mismatch", i)
		}
		if !got.CRCValid() {
			t.Errorf("Round %d: CRC invalid on clean round-trip", i)
		}
	}
}

// TestFuzzDecoder_CorruptedFrames flips one byte per frame and verifies
// the decoder survives; corruption past the header must show up as a
// CRC mismatch
func TestFuzzDecoder_CorruptedFrames(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		d := NewDecoder()

		f := buildRandomFrame(rng)
		if len(f.Data) == 0 {
			f.Data = []byte{0x00}
		}
		wire, err := Encode(f)
		if err != nil {
			t.Fatalf("Round %d: encode error: %v", i, err)
		}

		// Corrupt one byte past the header (payload or CRC trailer).
		idx := HeaderSize + rng.Intn(len(wire)-HeaderSize)
		wire[idx] ^= byte(rng.Intn(255) + 1)

		d.Feed(wire)
		got := d.Next()
		if got == nil {
			t.Errorf("Round %d: corrupted payload prevented decode", i)
			continue
		}
		if got.CRCValid() {
			t.Errorf("Round %d: corruption at %d passed CRC", i, idx)
		}
	}
}

// TestFuzzDecoder_MissingBytes drops random bytes from encoded frames
// and verifies the decoder doesn't crash
func TestFuzzDecoder_MissingBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		d := NewDecoder()

		wire, err := Encode(buildRandomFrame(rng))
		if err != nil {
			t.Fatalf("Round %d: encode error: %v", i, err)
		}

		numToRemove := rng.Intn(5) + 1
		for j := 0; j < numToRemove && len(wire) > 2; j++ {
			idx := rng.Intn(len(wire))
			wire = append(wire[:idx], wire[idx+1:]...)
		}

		// Feed truncated frame - should not panic
		d.Feed(wire)
		for f := d.Next(); f != nil; f = d.Next() {
		}
	}
}

// TestFuzzDecoder_ExtraBytes surrounds frames with random garbage and
// verifies the decoder resynchronizes onto the real frame
func TestFuzzDecoder_ExtraBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		d := NewDecoder()

		want := buildRandomFrame(rng)
		wire, err := Encode(want)
		if err != nil {
			t.Fatalf("Round %d: encode error: %v", i, err)
		}

		garbage := make([]byte, rng.Intn(32))
		rng.Read(garbage)

		d.Feed(garbage)
		d.Feed(wire)

		// The real frame must surface; leading noise may or may not
		// produce accidental frames first.
		var got *Frame
		for f := d.Next(); f != nil; f = d.Next() {
			got = f
		}
		if got == nil {
			t.Errorf("Round %d: frame lost after %d garbage bytes", i, len(garbage))
			continue
		}
		if got.Cmd != want.Cmd || !bytes.Equal(got.Data, want.Data) {
			// An accidental frame from the noise can swallow the real
			// one when the garbage happens to form a longer header.
			// That requires a valid sync pair in the noise; with 32
			// random bytes it is rare but possible, so only flag it
			// when the noise holds no sync pair.
			if !bytes.Contains(garbage, []byte{Sync1, Sync2}) {
				t.Errorf("Round %d: wrong frame decoded: got %v want %v", i, got, want)
			}
		}
	}
}

// TestFuzzDecoder_RepeatedSync tests handling of repeated sync bytes
// ahead of a valid frame
func TestFuzzDecoder_RepeatedSync(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		d := NewDecoder()

		numSyncs := rng.Intn(100) + 1
		for j := 0; j < numSyncs; j++ {
			d.Feed([]byte{Sync1})
		}

		want := NewRequest(CmdSysPing, nil)
		wire, err := Encode(want)
		if err != nil {
			t.Fatalf("Round %d: encode error: %v", i, err)
		}
		d.Feed(wire)

		got := d.Next()
		if got == nil {
			t.Errorf("Round %d: frame lost after %d repeated sync bytes", i, numSyncs)
			continue
		}
		if got.Cmd != CmdSysPing || got.Seq != want.Seq {
			t.Errorf("Round %d: got %v", i, got)
		}
	}
}

// ============================================================
// CRC Fuzz Tests
// ============================================================

// TestFuzzCRC_RandomData tests CRC calculation with random data
func TestFuzzCRC_RandomData(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		length := rng.Intn(1000) + 1
		data := make([]byte, length)
		rng.Read(data)

		crc1 := CRC16(data)
		crc2 := CRC16(data)
		if crc1 != crc2 {
			t.Errorf("Round %d: CRC not deterministic: 0x%04X != 0x%04X", i, crc1, crc2)
		}

		// Modify one byte - CRC should change
		idx := rng.Intn(len(data))
		original := data[idx]
		data[idx] ^= byte(rng.Intn(255) + 1)
		crc3 := CRC16(data)
		data[idx] = original

		if crc3 == crc1 {
			// This can happen (CRC collision) but should be rare
			t.Logf("Round %d: CRC collision detected (rare but possible)", i)
		}
	}
}

// ============================================================
// Parser Fuzz Tests
// ============================================================

// TestFuzzParsers_RandomInput feeds random payloads to every reply parser
// and verifies none of them panic
func TestFuzzParsers_RandomInput(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		data := make([]byte, rng.Intn(64))
		rng.Read(data)

		ParseVersion(data)
		ParseNetworkStatus(data)
		ParsePowerADC(data)
		ParseSensorData(data)
		ParseMotorStates(data)
		parseMotorFloat(data)
		parseMotorInfo(data)
		parseWatchdogStatus(data)
		parseFileInfo(data)
	}
}
