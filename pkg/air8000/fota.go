// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 CV610 Systems

package air8000

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Firmware update tuning.
const (
	fotaChunkSize  = 1024
	fotaTimeout    = 5 * time.Second
	fotaMaxRetries = 3
	fotaRetryDelay = 100 * time.Millisecond
)

// FotaStatus mirrors the device-side update state machine.
type FotaStatus uint8

// FOTA statuses
const (
	FotaIdle      FotaStatus = 0
	FotaReceiving FotaStatus = 1
	FotaVerifying FotaStatus = 2
	FotaSuccess   FotaStatus = 3
	FotaFailed    FotaStatus = 4
)

// String returns the status name.
func (s FotaStatus) String() string {
	switch s {
	case FotaIdle:
		return "IDLE"
	case FotaReceiving:
		return "RECEIVING"
	case FotaVerifying:
		return "VERIFYING"
	case FotaSuccess:
		return "SUCCESS"
	case FotaFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// FotaError is the device-reported update error code.
type FotaError uint8

// FOTA error codes
const (
	FotaErrNone         FotaError = 0
	FotaErrInitFailed   FotaError = 1
	FotaErrSeqError     FotaError = 2
	FotaErrWriteFailed  FotaError = 3
	FotaErrVerifyFailed FotaError = 4
	FotaErrTimeout      FotaError = 5
	FotaErrAborted      FotaError = 6
	FotaErrSizeMismatch FotaError = 7
)

// String returns the error mnemonic.
func (e FotaError) String() string {
	switch e {
	case FotaErrNone:
		return "NONE"
	case FotaErrInitFailed:
		return "INIT_FAILED"
	case FotaErrSeqError:
		return "SEQ_ERROR"
	case FotaErrWriteFailed:
		return "WRITE_FAILED"
	case FotaErrVerifyFailed:
		return "VERIFY_FAILED"
	case FotaErrTimeout:
		return "TIMEOUT"
	case FotaErrAborted:
		return "ABORTED"
	case FotaErrSizeMismatch:
		return "SIZE_MISMATCH"
	default:
		return "UNKNOWN"
	}
}

// FotaEvent identifies an update lifecycle notification.
type FotaEvent int

// FOTA events
const (
	FotaEventStarted FotaEvent = iota
	FotaEventDataSent
	FotaEventCompleted
	FotaEventError
	FotaEventAborted
	FotaEventStatusUpdated
)

// FotaNotice is delivered to the update handler on every event.
type FotaNotice struct {
	Event    FotaEvent
	Status   FotaStatus
	Error    FotaError
	Progress uint8
	SentSize uint64
}

// FotaHandler observes update events on the dispatcher goroutine.
type FotaHandler func(n FotaNotice)

// fotaSession is the single firmware-update slot of a Device.
type fotaSession struct {
	dev *Device

	mu       sync.Mutex
	status   FotaStatus
	lastErr  FotaError
	progress uint8
	handler  FotaHandler
	aborted  bool
}

func newFotaSession(d *Device) *fotaSession {
	return &fotaSession{dev: d, status: FotaIdle}
}

// SetFotaHandler installs the firmware update event handler.
func (d *Device) SetFotaHandler(h FotaHandler) {
	d.fota.mu.Lock()
	d.fota.handler = h
	d.fota.mu.Unlock()
}

// FotaStatus returns the current update status and device error code.
func (d *Device) FotaStatus() (FotaStatus, FotaError) {
	d.fota.mu.Lock()
	defer d.fota.mu.Unlock()
	return d.fota.status, d.fota.lastErr
}

// UpdateFirmware streams a firmware image to the device: a start command
// carrying the image size, numbered 1 KiB data chunks with up to three
// retries each, then a finish command. Blocks the caller until the device
// has everything or the update fails; verification progress arrives via
// status notifications afterwards.
func (d *Device) UpdateFirmware(path string) error {
	s := d.fota

	s.mu.Lock()
	if s.status == FotaReceiving || s.status == FotaVerifying {
		s.mu.Unlock()
		return ErrBusy
	}
	s.status = FotaReceiving
	s.lastErr = FotaErrNone
	s.progress = 0
	s.aborted = false
	s.mu.Unlock()

	err := s.run(path)
	if err != nil {
		return err
	}
	return nil
}

// AbortFirmwareUpdate stops a running update before its next chunk and
// tells the device to discard what it has.
func (d *Device) AbortFirmwareUpdate() error {
	s := d.fota

	s.mu.Lock()
	if s.status != FotaReceiving && s.status != FotaVerifying {
		s.mu.Unlock()
		return nil
	}
	s.aborted = true
	s.mu.Unlock()

	if _, err := d.request(CmdOTAAbort, nil, fotaTimeout); err != nil {
		d.log.Warn("abort notification failed", zap.Error(err))
	}

	s.update(FotaFailed, FotaErrAborted, s.currentProgress())
	s.emit(FotaNotice{Event: FotaEventAborted, Status: FotaFailed, Error: FotaErrAborted})
	return nil
}

func (s *fotaSession) run(path string) error {
	file, err := os.Open(path)
	if err != nil {
		s.fail(FotaErrInitFailed, 0)
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer file.Close()

	st, err := file.Stat()
	if err != nil {
		s.fail(FotaErrInitFailed, 0)
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	size := uint64(st.Size())
	if size == 0 {
		s.fail(FotaErrInitFailed, 0)
		return fmt.Errorf("%w: empty firmware image", ErrInvalidParam)
	}

	s.emit(FotaNotice{Event: FotaEventStarted, Status: FotaReceiving})

	sizeBuf := make([]byte, 4)
	putU32(sizeBuf, uint32(size))
	if _, err := s.dev.request(CmdOTAStart, sizeBuf, fotaTimeout); err != nil {
		s.fail(FotaErrInitFailed, 0)
		return fmt.Errorf("starting update: %w", err)
	}

	chunk := make([]byte, fotaChunkSize)
	var sent uint64
	var seq uint16

	for sent < size {
		if s.isAborted() {
			s.update(FotaFailed, FotaErrAborted, s.currentProgress())
			s.emit(FotaNotice{Event: FotaEventAborted, Status: FotaFailed, Error: FotaErrAborted})
			return fmt.Errorf("update aborted: %w", ErrShutdown)
		}

		n, err := file.Read(chunk)
		if err != nil || n == 0 {
			s.fail(FotaErrWriteFailed, s.currentProgress())
			return fmt.Errorf("%w: reading firmware: %v", ErrIO, err)
		}

		// Chunk payload: seq u16 BE, then the bytes.
		payload := make([]byte, 2+n)
		putU16(payload[0:2], seq)
		copy(payload[2:], chunk[:n])

		if err := s.sendChunk(payload); err != nil {
			s.fail(FotaErrWriteFailed, s.currentProgress())
			return fmt.Errorf("sending chunk %d: %w", seq, err)
		}

		sent += uint64(n)
		seq++

		progress := uint8(sent * 100 / size)
		if progress != s.currentProgress() {
			s.update(FotaReceiving, FotaErrNone, progress)
			s.emit(FotaNotice{Event: FotaEventStatusUpdated, Status: FotaReceiving, Progress: progress})
		}
		s.emit(FotaNotice{Event: FotaEventDataSent, Status: FotaReceiving, Progress: progress, SentSize: sent})
	}

	if _, err := s.dev.request(CmdOTAFinish, nil, fotaTimeout); err != nil {
		s.fail(FotaErrWriteFailed, 100)
		return fmt.Errorf("finishing update: %w", err)
	}

	s.update(FotaSuccess, FotaErrNone, 100)
	s.emit(FotaNotice{Event: FotaEventCompleted, Status: FotaSuccess, Progress: 100})
	return nil
}

// sendChunk transmits one data payload, retrying on failure.
func (s *fotaSession) sendChunk(payload []byte) error {
	var err error
	for attempt := 0; attempt < fotaMaxRetries; attempt++ {
		if attempt > 0 {
			s.dev.log.Warn("retrying firmware chunk",
				zap.Int("attempt", attempt+1), zap.Error(err))
			time.Sleep(fotaRetryDelay)
		}
		if _, err = s.dev.request(CmdOTAData, payload, fotaTimeout); err == nil {
			return nil
		}
	}
	return err
}

// handleStatus processes a device update-status notify: status byte, error
// byte, progress byte. A FAILED status also aborts a running upload.
func (s *fotaSession) handleStatus(f *Frame) {
	if len(f.Data) < 3 {
		return
	}
	status := FotaStatus(f.Data[0])
	devErr := FotaError(f.Data[1])
	progress := f.Data[2]

	s.dev.log.Info("fota status",
		zap.Stringer("status", status), zap.Stringer("error", devErr), zap.Uint8("progress", progress))

	s.mu.Lock()
	if s.status == FotaIdle {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.lastErr = devErr
	s.progress = progress
	if status == FotaFailed {
		s.aborted = true
	}
	s.mu.Unlock()

	s.emit(FotaNotice{Event: FotaEventStatusUpdated, Status: status, Error: devErr, Progress: progress})
	if status == FotaFailed {
		s.emit(FotaNotice{Event: FotaEventError, Status: status, Error: devErr, Progress: progress})
	}
}

func (s *fotaSession) fail(code FotaError, progress uint8) {
	s.update(FotaFailed, code, progress)
	s.emit(FotaNotice{Event: FotaEventError, Status: FotaFailed, Error: code, Progress: progress})
}

func (s *fotaSession) update(status FotaStatus, code FotaError, progress uint8) {
	s.mu.Lock()
	s.status = status
	s.lastErr = code
	s.progress = progress
	s.mu.Unlock()
}

func (s *fotaSession) currentProgress() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

func (s *fotaSession) isAborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

func (s *fotaSession) emit(n FotaNotice) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h == nil {
		return
	}
	s.dev.post(func() { h(n) })
}

func (s *fotaSession) shutdown() {
	s.mu.Lock()
	s.aborted = true
	s.status = FotaIdle
	s.mu.Unlock()
}
