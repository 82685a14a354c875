// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 CV610 Systems

package air8000

import (
	"encoding/binary"
	"math"
)

// All multi-byte fields on the wire are big-endian, including the raw bits
// of IEEE-754 float32 values.

func putU16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func putU32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func putU64(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }

func getU16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func getU32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func getU64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

func putF32(b []byte, v float32) { binary.BigEndian.PutUint32(b, math.Float32bits(v)) }
func getF32(b []byte) float32    { return math.Float32frombits(binary.BigEndian.Uint32(b)) }
