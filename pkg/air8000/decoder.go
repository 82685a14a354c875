// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 CV610 Systems

package air8000

import "time"

// Decode attempts to parse one frame from the head of buf.
//
// On success it returns the frame and the number of bytes it occupied.
// ErrIncomplete means buf holds a plausible frame prefix and the caller
// should read more bytes. ErrBadHeader means buf[0] cannot start a frame;
// the caller drops exactly one byte and retries, resynchronizing on the
// next 0xAA 0x55 pair.
//
// The carried CRC is stored on the frame but a mismatch does not fail the
// decode. Deployed device firmware emits frames whose checksums the host
// has never gated on; use Frame.CRCValid to opt in.
func Decode(buf []byte) (*Frame, int, error) {
	// Sync mismatch wins over length: a short buffer of garbage should
	// shift immediately instead of waiting for bytes that never arrive.
	if len(buf) >= 1 && buf[0] != Sync1 {
		return nil, 0, ErrBadHeader
	}
	if len(buf) >= 2 && buf[1] != Sync2 {
		return nil, 0, ErrBadHeader
	}
	if len(buf) < MinFrameSize {
		return nil, 0, ErrIncomplete
	}

	dataLen := int(getU16(buf[7:9]))
	total := HeaderSize + dataLen + CRCSize
	if len(buf) < total {
		return nil, 0, ErrIncomplete
	}

	f := &Frame{
		Version:   buf[2],
		Type:      FrameType(buf[3]),
		Seq:       buf[4],
		Cmd:       Command(getU16(buf[5:7])),
		CRC:       getU16(buf[total-CRCSize : total]),
		Timestamp: time.Now(),
	}
	if dataLen > 0 {
		f.Data = append([]byte(nil), buf[HeaderSize:HeaderSize+dataLen]...)
	}

	return f, total, nil
}

// Decoder accumulates stream bytes and yields complete frames, handling
// resynchronization across torn reads.
type Decoder struct {
	buf []byte
}

// NewDecoder creates a stream decoder.
func NewDecoder() *Decoder {
	return &Decoder{buf: make([]byte, 0, 512)}
}

// Feed appends raw bytes read from the transport.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next returns the next complete frame, or nil when the buffer holds no
// complete frame yet. Garbage bytes ahead of a valid header are discarded
// one at a time.
func (d *Decoder) Next() *Frame {
	for len(d.buf) > 0 {
		f, n, err := Decode(d.buf)
		switch {
		case err == nil:
			d.buf = d.buf[n:]
			return f
		case err == ErrBadHeader:
			d.buf = d.buf[1:]
		default: // ErrIncomplete
			return nil
		}
	}
	return nil
}

// Reset discards any buffered bytes. Called after a reconnect so a torn
// frame from the previous session cannot corrupt the new stream.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// Buffered returns the number of bytes awaiting a complete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}
