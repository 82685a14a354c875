// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 CV610 Systems

package air8000

import (
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// File transfer tuning. The device UART runs at 115200, so blocks larger
// than ~1 KiB gain nothing.
const (
	defaultBlockSize  = 1024
	transferTimeout   = 5 * time.Second
	interBlockDelay   = 10 * time.Millisecond
	blockHeaderSize   = 12 // index u32 + length u32 + crc32 u32
	transferAckSize   = 5  // index u32 + success byte
	minStartFrameSize = 4 + 8 + 4 + 4
)

// TransferState tracks the single file-transfer slot of a Device.
type TransferState int

// Transfer states
const (
	TransferIdle TransferState = iota
	TransferNotified
	TransferStarted
	TransferTransmitting
	TransferCompleted
	TransferErrored
	TransferCancelled
)

// String returns the state name.
func (s TransferState) String() string {
	switch s {
	case TransferIdle:
		return "IDLE"
	case TransferNotified:
		return "NOTIFIED"
	case TransferStarted:
		return "STARTED"
	case TransferTransmitting:
		return "TRANSMITTING"
	case TransferCompleted:
		return "COMPLETED"
	case TransferErrored:
		return "ERROR"
	case TransferCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// TransferEvent identifies a transfer lifecycle notification.
type TransferEvent int

// Transfer events
const (
	TransferEventNotifyAcked TransferEvent = iota
	TransferEventStarted
	TransferEventDataSent
	TransferEventCompleted
	TransferEventError
	TransferEventCancelled
	TransferEventRequestReceived
)

// FileInfo describes the file announced in a transfer start frame.
type FileInfo struct {
	Filename  string
	FileSize  uint64
	BlockSize uint32
	CRC32     uint32
}

// TransferNotice is delivered to the transfer handler on every lifecycle
// event. Progress is 0-100 and meaningful for DataSent; Info is set for
// Started on the receive side; Filename is set for RequestReceived.
type TransferNotice struct {
	Event    TransferEvent
	Progress uint8
	Code     uint8
	Info     *FileInfo
	Filename string
}

// TransferHandler observes transfer events. It runs on the dispatcher
// goroutine.
type TransferHandler func(n TransferNotice)

// transferSession is the single transfer slot of a Device. Both directions
// share it: a second concurrent transfer fails with ErrBusy.
type transferSession struct {
	dev *Device

	mu           sync.Mutex
	state        TransferState
	handler      TransferHandler
	filename     string
	fileSize     uint64
	blockSize    uint32
	totalBlocks  uint32
	currentBlock uint32
	recvFile     *os.File
	recvPath     string
	savePath     string
	aborted      bool
}

func newTransferSession(d *Device) *transferSession {
	return &transferSession{dev: d, state: TransferIdle}
}

// SetTransferHandler installs the transfer event handler.
func (d *Device) SetTransferHandler(h TransferHandler) {
	d.transfer.mu.Lock()
	d.transfer.handler = h
	d.transfer.mu.Unlock()
}

// TransferState returns the state of the transfer slot.
func (d *Device) TransferState() TransferState {
	d.transfer.mu.Lock()
	defer d.transfer.mu.Unlock()
	return d.transfer.state
}

// NotifyFile stages file metadata ahead of SendFile, advertising intent to
// transfer. Fails with ErrBusy unless the slot is idle.
func (d *Device) NotifyFile(filename string, size uint64) error {
	t := d.transfer
	t.mu.Lock()
	if t.state != TransferIdle {
		t.mu.Unlock()
		return ErrBusy
	}
	t.filename = filename
	t.fileSize = size
	t.state = TransferNotified
	t.mu.Unlock()

	t.emit(TransferNotice{Event: TransferEventNotifyAcked})
	return nil
}

// SendFile pushes a local file to the device: a start frame with the file
// metadata, data frames with strictly increasing block indexes, then a
// completion frame. Blocks the caller for the duration; progress is
// reported through the transfer handler.
func (d *Device) SendFile(filename, path string, blockSize uint32) error {
	t := d.transfer

	t.mu.Lock()
	if t.state != TransferIdle && t.state != TransferNotified {
		t.mu.Unlock()
		return ErrBusy
	}
	t.state = TransferStarted
	t.aborted = false
	t.mu.Unlock()

	err := t.push(filename, path, blockSize)
	if err != nil {
		// A cancellation has already settled the slot and raised its event.
		if t.currentState() != TransferCancelled {
			t.setState(TransferErrored)
			t.emit(TransferNotice{Event: TransferEventError})
		}
		return err
	}
	t.setState(TransferCompleted)
	t.emit(TransferNotice{Event: TransferEventCompleted})
	return nil
}

func (t *transferSession) push(filename, path string, blockSize uint32) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer file.Close()

	st, err := file.Stat()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	fileSize := uint64(st.Size())

	if blockSize == 0 {
		blockSize = defaultBlockSize
	}
	totalBlocks := uint32((fileSize + uint64(blockSize) - 1) / uint64(blockSize))

	fileCRC, err := fileChecksum(file)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	t.mu.Lock()
	t.filename = filename
	t.fileSize = fileSize
	t.blockSize = blockSize
	t.totalBlocks = totalBlocks
	t.currentBlock = 0
	t.mu.Unlock()

	// Start frame: filename length u32, filename, file size u64, block
	// size u32, whole-file crc32 u32, all big-endian.
	start := make([]byte, 4+len(filename)+8+4+4)
	putU32(start[0:4], uint32(len(filename)))
	copy(start[4:], filename)
	off := 4 + len(filename)
	putU64(start[off:off+8], fileSize)
	putU32(start[off+8:off+12], blockSize)
	putU32(start[off+12:off+16], fileCRC)

	if _, err := t.dev.request(CmdFileStart, start, transferTimeout); err != nil {
		return err
	}

	t.setState(TransferTransmitting)
	t.emit(TransferNotice{Event: TransferEventStarted})

	block := make([]byte, blockSize)
	for index := uint32(0); index < totalBlocks; index++ {
		if t.isAborted() {
			t.setState(TransferCancelled)
			t.emit(TransferNotice{Event: TransferEventCancelled})
			return fmt.Errorf("transfer cancelled: %w", ErrShutdown)
		}

		n, err := file.ReadAt(block, int64(index)*int64(blockSize))
		if err != nil && err != io.EOF {
			return fmt.Errorf("%w: reading block %d: %v", ErrIO, index, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: empty block %d", ErrIO, index)
		}

		payload := make([]byte, blockHeaderSize+n)
		putU32(payload[0:4], index)
		putU32(payload[4:8], uint32(n))
		putU32(payload[8:12], crc32.ChecksumIEEE(block[:n]))
		copy(payload[blockHeaderSize:], block[:n])

		if _, err := t.dev.request(CmdFileData, payload, transferTimeout); err != nil {
			return fmt.Errorf("sending block %d: %w", index, err)
		}

		t.mu.Lock()
		t.currentBlock = index + 1
		t.mu.Unlock()

		progress := uint8(uint64(index+1) * 100 / uint64(totalBlocks))
		t.emit(TransferNotice{Event: TransferEventDataSent, Progress: progress})

		// UART pacing.
		time.Sleep(interBlockDelay)
	}

	_, err = t.dev.request(CmdFileComplete, []byte{1}, transferTimeout)
	return err
}

// FetchFile asks the device to push a named file, which will be saved at
// savePath. Returns once the request is acknowledged; completion arrives
// through transfer events as the device streams start and data frames.
func (d *Device) FetchFile(filename, savePath string) error {
	t := d.transfer

	t.mu.Lock()
	if t.state != TransferIdle {
		t.mu.Unlock()
		return ErrBusy
	}
	t.filename = filename
	t.savePath = savePath
	t.state = TransferNotified
	t.mu.Unlock()

	if _, err := d.request(CmdFileRequest, []byte(filename), transferTimeout); err != nil {
		t.setState(TransferIdle)
		return err
	}
	return nil
}

// CancelTransfer aborts whichever direction is active: the push loop stops
// before its next block, the device is told to stop sending, and partial
// receive files are removed. A no-op when the slot has already settled.
func (d *Device) CancelTransfer() error {
	t := d.transfer

	t.mu.Lock()
	switch t.state {
	case TransferIdle, TransferCompleted, TransferErrored, TransferCancelled:
		t.mu.Unlock()
		return nil
	}
	t.aborted = true
	t.discardRecvLocked()
	t.state = TransferCancelled
	t.mu.Unlock()

	// Best effort: the link may already be down.
	if _, err := d.request(CmdFileCancel, nil, transferTimeout); err != nil {
		d.log.Warn("cancel notification failed", zap.Error(err))
	}

	t.emit(TransferNotice{Event: TransferEventCancelled})
	return nil
}

// ============================================================
// Receive side: device-initiated frames, called from the I/O loop
// ============================================================

// handleStart processes a device-initiated transfer start. Replies are
// fire-and-forget writes; the I/O loop cannot wait on itself.
func (t *transferSession) handleStart(f *Frame) {
	info, err := parseFileInfo(f.Data)
	if err != nil {
		t.dev.log.Warn("malformed transfer start", zap.Error(err))
		t.sendAck(0, false)
		return
	}

	t.mu.Lock()
	path := t.savePath
	if path == "" {
		path = filepath.Join(os.TempDir(), filepath.Base(info.Filename))
	}
	t.discardRecvLocked()

	recvFile, err := os.Create(path)
	if err != nil {
		t.mu.Unlock()
		t.dev.log.Error("creating receive file", zap.String("path", path), zap.Error(err))
		t.sendAck(0, false)
		return
	}

	t.filename = info.Filename
	t.fileSize = info.FileSize
	t.blockSize = info.BlockSize
	t.totalBlocks = uint32((info.FileSize + uint64(info.BlockSize) - 1) / uint64(info.BlockSize))
	t.currentBlock = 0
	t.recvFile = recvFile
	t.recvPath = path
	t.state = TransferStarted

	// A zero-size file has no blocks to wait for; settle it here so the
	// data path never divides by a zero block count.
	if t.totalBlocks == 0 {
		recvFile.Close()
		t.recvFile = nil
		t.recvPath = ""
		t.savePath = ""
		t.state = TransferCompleted
		t.mu.Unlock()

		t.emit(TransferNotice{Event: TransferEventStarted, Info: info})
		t.sendAck(0, true)
		t.emit(TransferNotice{Event: TransferEventCompleted, Progress: 100})
		t.sendComplete(true)
		return
	}
	t.mu.Unlock()

	t.emit(TransferNotice{Event: TransferEventStarted, Info: info})
	t.sendAck(0, true)
}

// handleData processes one device-sent block. Blocks must arrive strictly
// in order: an out-of-order index gets a failing ack and writes nothing.
// The block CRC32 is carried but not verified, matching device firmware.
func (t *transferSession) handleData(f *Frame) {
	if len(f.Data) < blockHeaderSize {
		t.dev.log.Warn("short transfer data frame", zap.Int("len", len(f.Data)))
		return
	}
	index := getU32(f.Data[0:4])
	dataLen := getU32(f.Data[4:8])
	if int(dataLen) > len(f.Data)-blockHeaderSize {
		t.dev.log.Warn("transfer data length exceeds frame", zap.Uint32("len", dataLen))
		t.sendAck(index, false)
		return
	}
	payload := f.Data[blockHeaderSize : blockHeaderSize+dataLen]

	t.mu.Lock()
	if t.recvFile == nil {
		t.mu.Unlock()
		t.sendAck(index, false)
		return
	}
	if index != t.currentBlock {
		expected := t.currentBlock
		t.mu.Unlock()
		t.dev.log.Error("block index mismatch",
			zap.Uint32("expected", expected), zap.Uint32("got", index))
		t.sendAck(index, false)
		return
	}
	if _, err := t.recvFile.Write(payload); err != nil {
		t.mu.Unlock()
		t.dev.log.Error("writing block", zap.Uint32("index", index), zap.Error(err))
		t.sendAck(index, false)
		return
	}
	t.currentBlock++
	t.state = TransferTransmitting
	done := t.currentBlock >= t.totalBlocks
	progress := uint8(uint64(t.currentBlock) * 100 / uint64(t.totalBlocks))
	if done {
		t.recvFile.Close()
		t.recvFile = nil
		t.recvPath = ""
		t.savePath = ""
		t.state = TransferCompleted
	}
	t.mu.Unlock()

	t.emit(TransferNotice{Event: TransferEventDataSent, Progress: progress})
	t.sendAck(index, true)

	if done {
		t.emit(TransferNotice{Event: TransferEventCompleted, Progress: 100})
		t.sendComplete(true)
	}
}

// handleStatus processes a transfer status notify: status byte, error
// byte, progress byte.
func (t *transferSession) handleStatus(f *Frame) {
	if len(f.Data) < 3 {
		return
	}
	status, code, progress := f.Data[0], f.Data[1], f.Data[2]
	t.dev.log.Info("transfer status",
		zap.Uint8("status", status), zap.Uint8("error", code), zap.Uint8("progress", progress))

	// Device status codes do not line up with TransferState ordinals.
	switch status {
	case 0:
		t.setState(TransferIdle)
	case 2:
		t.setState(TransferStarted)
		t.emit(TransferNotice{Event: TransferEventStarted})
	case 3:
		t.setState(TransferTransmitting)
		t.emit(TransferNotice{Event: TransferEventDataSent, Progress: progress})
	case 4:
		t.setState(TransferCompleted)
		t.emit(TransferNotice{Event: TransferEventCompleted, Progress: progress})
	case 5:
		t.setState(TransferErrored)
		t.emit(TransferNotice{Event: TransferEventError, Code: code})
	case 6:
		t.setState(TransferCancelled)
		t.emit(TransferNotice{Event: TransferEventCancelled})
	}
}

// handleRequest processes a device-initiated file request: the device
// wants the host to push a named file. Surfaced to the handler; the
// application decides whether to call SendFile.
func (t *transferSession) handleRequest(f *Frame) {
	if len(f.Data) == 0 {
		return
	}
	t.emit(TransferNotice{Event: TransferEventRequestReceived, Filename: string(f.Data)})
}

// ============================================================
// Internals
// ============================================================

func (t *transferSession) sendAck(index uint32, success bool) {
	ack := make([]byte, transferAckSize)
	putU32(ack[0:4], index)
	if success {
		ack[4] = 1
	}
	if err := t.dev.writeFrame(NewRequest(CmdFileAck, ack)); err != nil {
		t.dev.log.Warn("sending transfer ack", zap.Error(err))
	}
}

func (t *transferSession) sendComplete(success bool) {
	data := []byte{0}
	if success {
		data[0] = 1
	}
	if err := t.dev.writeFrame(NewRequest(CmdFileComplete, data)); err != nil {
		t.dev.log.Warn("sending transfer complete", zap.Error(err))
	}
}

func (t *transferSession) setState(s TransferState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func (t *transferSession) currentState() TransferState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *transferSession) isAborted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.aborted
}

func (t *transferSession) emit(n TransferNotice) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	if h == nil {
		return
	}
	t.dev.post(func() { h(n) })
}

// discardRecvLocked closes and removes a partial receive file. Caller
// holds mu.
func (t *transferSession) discardRecvLocked() {
	if t.recvFile != nil {
		t.recvFile.Close()
		t.recvFile = nil
	}
	if t.recvPath != "" {
		os.Remove(t.recvPath)
		t.recvPath = ""
	}
}

func (t *transferSession) shutdown() {
	t.mu.Lock()
	t.aborted = true
	t.discardRecvLocked()
	t.state = TransferIdle
	t.mu.Unlock()
}

// parseFileInfo decodes a start frame payload: filename length u32,
// filename, file size u64, block size u32, whole-file crc32 u32.
func parseFileInfo(data []byte) (*FileInfo, error) {
	if len(data) < minStartFrameSize {
		return nil, fmt.Errorf("%w: start frame %d bytes", ErrProtocol, len(data))
	}
	nameLen := int(getU32(data[0:4]))
	if nameLen <= 0 || len(data) < 4+nameLen+16 {
		return nil, fmt.Errorf("%w: filename length %d", ErrProtocol, nameLen)
	}
	info := &FileInfo{Filename: string(data[4 : 4+nameLen])}
	off := 4 + nameLen
	info.FileSize = getU64(data[off : off+8])
	info.BlockSize = getU32(data[off+8 : off+12])
	info.CRC32 = getU32(data[off+12 : off+16])
	if info.BlockSize == 0 {
		return nil, fmt.Errorf("%w: zero block size", ErrProtocol)
	}
	return info, nil
}

// fileChecksum streams the whole file through CRC32 and rewinds it.
func fileChecksum(f *os.File) (uint32, error) {
	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}
