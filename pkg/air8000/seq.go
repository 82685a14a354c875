// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 CV610 Systems

package air8000

import "sync/atomic"

// Sequence numbers are 8-bit and shared process-wide so that frames from
// concurrently open device handles never collide on the same link.
var seqCounter atomic.Uint32

// nextSeq returns the next sequence number, wrapping 255 -> 0.
func nextSeq() uint8 {
	return uint8(seqCounter.Add(1))
}
