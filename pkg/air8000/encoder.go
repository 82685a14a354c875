// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 CV610 Systems

package air8000

import "fmt"

// Encode serializes a frame to wire format:
//
//	offset 0  sync1 0xAA
//	offset 1  sync2 0x55
//	offset 2  version
//	offset 3  type
//	offset 4  seq
//	offset 5  cmd      (u16 BE)
//	offset 7  data len (u16 BE)
//	offset 9  data
//	          crc16    (u16 BE, over offsets 2..end of data)
func Encode(f *Frame) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrInvalidParam)
	}
	if len(f.Data) > 0xFFFF {
		return nil, fmt.Errorf("%w: data length %d exceeds 65535", ErrInvalidParam, len(f.Data))
	}

	total := HeaderSize + len(f.Data) + CRCSize
	buf := make([]byte, total)

	buf[0] = Sync1
	buf[1] = Sync2
	buf[2] = f.Version
	buf[3] = byte(f.Type)
	buf[4] = f.Seq
	putU16(buf[5:7], uint16(f.Cmd))
	putU16(buf[7:9], uint16(len(f.Data)))
	copy(buf[HeaderSize:], f.Data)

	crc := CRC16(buf[2 : HeaderSize+len(f.Data)])
	putU16(buf[total-CRCSize:], crc)
	f.CRC = crc

	return buf, nil
}

// EncodeTo serializes a frame into a caller-provided buffer and returns the
// number of bytes written. Fails if the buffer is too small.
func EncodeTo(f *Frame, buf []byte) (int, error) {
	wire, err := Encode(f)
	if err != nil {
		return 0, err
	}
	if len(buf) < len(wire) {
		return 0, fmt.Errorf("%w: buffer %d bytes, need %d", ErrInvalidParam, len(buf), len(wire))
	}
	return copy(buf, wire), nil
}
