// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 CV610 Systems

package air8000

import (
	"fmt"
	"time"
)

// Frame is a single protocol frame. Data is owned by the frame: the decoder
// copies it out of the read buffer and the encoder never retains it.
type Frame struct {
	Version uint8
	Type    FrameType
	Seq     uint8
	Cmd     Command
	Data    []byte

	// CRC is the checksum carried on the wire (decoded frames) or
	// computed at encode time. Decoding does not reject mismatches;
	// callers that want strict checking use CRCValid.
	CRC uint16

	Timestamp time.Time
}

// NewRequest builds a request frame with a fresh sequence number. The data
// slice is copied.
func NewRequest(cmd Command, data []byte) *Frame {
	f := &Frame{
		Version: ProtocolVersion,
		Type:    FrameRequest,
		Seq:     nextSeq(),
		Cmd:     cmd,
	}
	if len(data) > 0 {
		f.Data = append([]byte(nil), data...)
	}
	return f
}

// NewAck builds an ACK reply mirroring the seq and cmd of a received frame.
func NewAck(seq uint8, cmd Command, data []byte) *Frame {
	f := &Frame{
		Version: ProtocolVersion,
		Type:    FrameAck,
		Seq:     seq,
		Cmd:     cmd,
	}
	if len(data) > 0 {
		f.Data = append([]byte(nil), data...)
	}
	return f
}

// CRCValid reports whether the carried CRC matches the frame contents.
func (f *Frame) CRCValid() bool {
	return f.CRC == f.computeCRC()
}

// computeCRC checksums the frame as it appears on the wire: everything
// after the two sync bytes, up to and including the data.
func (f *Frame) computeCRC() uint16 {
	buf := make([]byte, HeaderSize-2+len(f.Data))
	buf[0] = f.Version
	buf[1] = byte(f.Type)
	buf[2] = f.Seq
	putU16(buf[3:5], uint16(f.Cmd))
	putU16(buf[5:7], uint16(len(f.Data)))
	copy(buf[7:], f.Data)
	return CRC16(buf)
}

// String renders a one-line summary for logs.
func (f *Frame) String() string {
	return fmt.Sprintf("%s seq=%d cmd=0x%04X len=%d", f.Type, f.Seq, uint16(f.Cmd), len(f.Data))
}
