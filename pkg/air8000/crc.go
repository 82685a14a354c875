// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 CV610 Systems

package air8000

// CRC16 computes the MODBUS CRC-16 checksum (init 0xFFFF, reflected
// polynomial 0xA001) used in the frame trailer.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
