// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 CV610 Systems

package air8000

import (
	"errors"
	"fmt"
)

// Sentinel errors returned across the package. Callers match them with
// errors.Is; wrapped variants carry context.
var (
	// ErrInvalidParam marks a caller mistake: nil frame, oversized data,
	// bad argument range.
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrIO covers transport read/write failures.
	ErrIO = errors.New("i/o error")

	// ErrProtocol marks a malformed or unexpected frame.
	ErrProtocol = errors.New("protocol error")

	// ErrBusy is returned when a sequence number or the single transfer
	// slot is already in use.
	ErrBusy = errors.New("busy")

	// ErrTimeout is returned when a request got no matching reply within
	// its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrShutdown is the terminal resolution for every request still
	// pending when the device handle closes.
	ErrShutdown = errors.New("shutting down")

	// ErrClosed is returned by operations on a closed device handle.
	ErrClosed = errors.New("device closed")
)

// Decoder sentinels. ErrIncomplete means the buffer holds a frame prefix
// and more bytes are needed; ErrBadHeader means the first byte cannot start
// a frame and exactly one byte must be dropped to resynchronize.
var (
	ErrIncomplete = errors.New("incomplete frame")
	ErrBadHeader  = errors.New("bad frame header")
)

// NackError is returned when the device answers a request with a NACK
// frame. Code is the device error byte, zero if the NACK carried no data.
type NackError struct {
	Cmd  Command
	Code uint8
}

func (e *NackError) Error() string {
	return fmt.Sprintf("device rejected cmd 0x%04X: %s (0x%02X)", uint16(e.Cmd), nackCodeString(e.Code), e.Code)
}

func nackCodeString(code uint8) string {
	switch code {
	case DevErrUnknownCmd:
		return "unknown command"
	case DevErrInvalidParam:
		return "invalid parameter"
	case DevErrBusy:
		return "device busy"
	case DevErrNotReady:
		return "not ready"
	case DevErrExecFailed:
		return "execution failed"
	case DevErrTimeout:
		return "device timeout"
	case DevErrCRC:
		return "crc error"
	case DevErrVersion:
		return "unsupported version"
	default:
		return "unspecified"
	}
}
