// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 CV610 Systems

package air8000

import (
	"bytes"
	"errors"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func collectTransferEvents(d *Device) <-chan TransferNotice {
	ch := make(chan TransferNotice, 64)
	d.SetTransferHandler(func(n TransferNotice) { ch <- n })
	return ch
}

func waitEvent(t *testing.T, ch <-chan TransferNotice, want TransferEvent) TransferNotice {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-ch:
			if n.Event == want {
				return n
			}
		case <-deadline:
			t.Fatalf("event %d never arrived", want)
		}
	}
}

// ============================================================
// Push (host -> device)
// ============================================================

func TestSendFile_PushSequence(t *testing.T) {
	content := []byte("ABCDEFGH")
	path := filepath.Join(t.TempDir(), "cal.bin")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	m := newMockTransport(ackResponder)
	d := openTestDevice(t, m)
	events := collectTransferEvents(d)

	if err := d.SendFile("cal.bin", path, 4); err != nil {
		t.Fatalf("SendFile error: %v", err)
	}
	if st := d.TransferState(); st != TransferCompleted {
		t.Errorf("state = %v, want COMPLETED", st)
	}

	waitEvent(t, events, TransferEventCompleted)

	sent := m.sentFrames()
	if len(sent) != 4 {
		t.Fatalf("sent %d frames, want start + 2 data + complete", len(sent))
	}

	// Start frame carries the real metadata.
	if sent[0].Cmd != CmdFileStart {
		t.Fatalf("frame 0 cmd = %v", sent[0].Cmd)
	}
	info, err := parseFileInfo(sent[0].Data)
	if err != nil {
		t.Fatalf("start frame unparseable: %v", err)
	}
	if info.Filename != "cal.bin" || info.FileSize != 8 || info.BlockSize != 4 {
		t.Errorf("start info = %+v", info)
	}
	if info.CRC32 != crc32.ChecksumIEEE(content) {
		t.Errorf("file crc32 = 0x%08X", info.CRC32)
	}

	// Data frames: strictly increasing index, per-block crc32, payload.
	for i, want := range [][]byte{content[:4], content[4:]} {
		f := sent[i+1]
		if f.Cmd != CmdFileData {
			t.Fatalf("frame %d cmd = %v", i+1, f.Cmd)
		}
		if idx := getU32(f.Data[0:4]); idx != uint32(i) {
			t.Errorf("block %d index = %d", i, idx)
		}
		if n := getU32(f.Data[4:8]); n != uint32(len(want)) {
			t.Errorf("block %d length = %d", i, n)
		}
		if c := getU32(f.Data[8:12]); c != crc32.ChecksumIEEE(want) {
			t.Errorf("block %d crc = 0x%08X", i, c)
		}
		if !bytes.Equal(f.Data[blockHeaderSize:], want) {
			t.Errorf("block %d payload = %q", i, f.Data[blockHeaderSize:])
		}
	}

	if sent[3].Cmd != CmdFileComplete || len(sent[3].Data) != 1 || sent[3].Data[0] != 1 {
		t.Errorf("complete frame = %v", sent[3])
	}
}

func TestSendFile_ProgressReaches100(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fw.bin")
	if err := os.WriteFile(path, make([]byte, 10), 0o644); err != nil {
		t.Fatal(err)
	}

	m := newMockTransport(ackResponder)
	d := openTestDevice(t, m)
	events := collectTransferEvents(d)

	if err := d.SendFile("fw.bin", path, 4); err != nil {
		t.Fatalf("SendFile error: %v", err)
	}

	var last uint8
	deadline := time.After(2 * time.Second)
	for last != 100 {
		select {
		case n := <-events:
			if n.Event == TransferEventDataSent {
				if n.Progress < last {
					t.Errorf("progress went backwards: %d after %d", n.Progress, last)
				}
				last = n.Progress
			}
		case <-deadline:
			t.Fatalf("progress stalled at %d", last)
		}
	}
}

func TestSendFile_MissingFile(t *testing.T) {
	m := newMockTransport(ackResponder)
	d := openTestDevice(t, m)

	err := d.SendFile("nope", filepath.Join(t.TempDir(), "nope"), 0)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
	if st := d.TransferState(); st != TransferErrored {
		t.Errorf("state = %v, want ERROR", st)
	}
}

// ============================================================
// Receive (device -> host)
// ============================================================

// startFrame builds a device-initiated transfer start frame.
func startFrame(name string, size uint64, blockSize uint32) *Frame {
	data := make([]byte, 4+len(name)+16)
	putU32(data[0:4], uint32(len(name)))
	copy(data[4:], name)
	off := 4 + len(name)
	putU64(data[off:off+8], size)
	putU32(data[off+8:off+12], blockSize)
	return &Frame{Version: ProtocolVersion, Type: FrameRequest, Cmd: CmdFileStart, Data: data}
}

// dataFrame builds a device-sent block frame.
func dataFrame(index uint32, payload []byte) *Frame {
	data := make([]byte, blockHeaderSize+len(payload))
	putU32(data[0:4], index)
	putU32(data[4:8], uint32(len(payload)))
	putU32(data[8:12], crc32.ChecksumIEEE(payload))
	copy(data[blockHeaderSize:], payload)
	return &Frame{Version: ProtocolVersion, Type: FrameRequest, Cmd: CmdFileData, Data: data}
}

func TestFetchFile_ReceiveWholeFile(t *testing.T) {
	savePath := filepath.Join(t.TempDir(), "log.txt")
	content := []byte("hello, air8000!!") // 16 bytes, two 8-byte blocks

	m := newMockTransport(ackResponder)
	d := openTestDevice(t, m)
	events := collectTransferEvents(d)

	if err := d.FetchFile("log.txt", savePath); err != nil {
		t.Fatalf("FetchFile error: %v", err)
	}

	m.push(startFrame("log.txt", uint64(len(content)), 8))
	waitEvent(t, events, TransferEventStarted)
	m.push(dataFrame(0, content[:8]))
	m.push(dataFrame(1, content[8:]))

	n := waitEvent(t, events, TransferEventCompleted)
	if n.Progress != 100 {
		t.Errorf("completion progress = %d", n.Progress)
	}

	got, err := os.ReadFile(savePath)
	if err != nil {
		t.Fatalf("reading received file: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("received %q, want %q", got, content)
	}
	if st := d.TransferState(); st != TransferCompleted {
		t.Errorf("state = %v", st)
	}

	// Every block must have been positively acknowledged.
	acks := 0
	for _, f := range m.sentFrames() {
		if f.Cmd == CmdFileAck {
			if len(f.Data) != transferAckSize || f.Data[4] != 1 {
				t.Errorf("failing ack: %v", f)
			}
			acks++
		}
	}
	if acks != 3 { // start ack + two block acks
		t.Errorf("got %d acks, want 3", acks)
	}
}

func TestReceive_OutOfOrderBlockRejected(t *testing.T) {
	savePath := filepath.Join(t.TempDir(), "log.txt")

	m := newMockTransport(ackResponder)
	d := openTestDevice(t, m)
	events := collectTransferEvents(d)

	if err := d.FetchFile("log.txt", savePath); err != nil {
		t.Fatalf("FetchFile error: %v", err)
	}

	m.push(startFrame("log.txt", 16, 8))
	waitEvent(t, events, TransferEventStarted)

	// Block 1 before block 0: nothing may be written.
	m.push(dataFrame(1, []byte("BADBLOCK")))

	// Wait for the failing ack to come back out.
	deadline := time.After(2 * time.Second)
	for {
		var failing *Frame
		for _, f := range m.sentFrames() {
			if f.Cmd == CmdFileAck && getU32(f.Data[0:4]) == 1 {
				failing = f
			}
		}
		if failing != nil {
			if failing.Data[4] != 0 {
				t.Fatalf("out-of-order block was acknowledged: %v", failing)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("no ack for out-of-order block")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	got, err := os.ReadFile(savePath)
	if err != nil {
		t.Fatalf("reading receive file: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("out-of-order block wrote %d bytes", len(got))
	}
}

func TestReceive_ZeroSizeFileCompletesImmediately(t *testing.T) {
	savePath := filepath.Join(t.TempDir(), "empty.bin")

	m := newMockTransport(ackResponder)
	d := openTestDevice(t, m)
	events := collectTransferEvents(d)

	if err := d.FetchFile("empty.bin", savePath); err != nil {
		t.Fatalf("FetchFile error: %v", err)
	}

	// A zero-size start has no blocks; the transfer must settle on the
	// start frame alone.
	m.push(startFrame("empty.bin", 0, 8))
	n := waitEvent(t, events, TransferEventCompleted)
	if n.Progress != 100 {
		t.Errorf("completion progress = %d", n.Progress)
	}
	if st := d.TransferState(); st != TransferCompleted {
		t.Errorf("state = %v, want COMPLETED", st)
	}

	// A stray block after completion must be refused without taking the
	// I/O loop down with it.
	m.push(dataFrame(0, nil))
	if err := d.Ping(time.Second); err != nil {
		t.Fatalf("device unresponsive after stray block: %v", err)
	}

	failing := false
	for _, f := range m.sentFrames() {
		if f.Cmd == CmdFileAck && len(f.Data) == transferAckSize && f.Data[4] == 0 {
			failing = true
		}
	}
	if !failing {
		t.Error("stray block was not refused")
	}

	got, err := os.ReadFile(savePath)
	if err != nil {
		t.Fatalf("reading received file: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("zero-size transfer wrote %d bytes", len(got))
	}
}

func TestCancelTransfer_SecondCancelIsNoOp(t *testing.T) {
	m := newMockTransport(ackResponder)
	d := openTestDevice(t, m)
	events := collectTransferEvents(d)

	if err := d.FetchFile("a", filepath.Join(t.TempDir(), "a")); err != nil {
		t.Fatalf("FetchFile error: %v", err)
	}
	if err := d.CancelTransfer(); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	waitEvent(t, events, TransferEventCancelled)

	cancels := func() int {
		count := 0
		for _, f := range m.sentFrames() {
			if f.Cmd == CmdFileCancel {
				count++
			}
		}
		return count
	}
	before := cancels()

	// The slot has settled; a second cancel must neither re-notify the
	// device nor raise another event.
	if err := d.CancelTransfer(); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if after := cancels(); after != before {
		t.Errorf("second cancel re-sent the cancel frame (%d -> %d)", before, after)
	}
	select {
	case n := <-events:
		if n.Event == TransferEventCancelled {
			t.Error("second cancel re-emitted the cancelled event")
		}
	default:
	}
}

func TestFetchFile_BusySlot(t *testing.T) {
	m := newMockTransport(ackResponder)
	d := openTestDevice(t, m)

	if err := d.FetchFile("a", filepath.Join(t.TempDir(), "a")); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if err := d.FetchFile("b", filepath.Join(t.TempDir(), "b")); !errors.Is(err, ErrBusy) {
		t.Errorf("second fetch: got %v, want ErrBusy", err)
	}
}

// ============================================================
// Start-frame parsing
// ============================================================

func TestParseFileInfo_Malformed(t *testing.T) {
	valid := startFrame("x", 8, 4).Data

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", valid[:minStartFrameSize-1]},
		{"name length overruns", func() []byte {
			d := append([]byte(nil), valid...)
			putU32(d[0:4], 1000)
			return d
		}()},
		{"zero block size", func() []byte {
			d := append([]byte(nil), valid...)
			putU32(d[len(d)-8:len(d)-4], 0)
			return d
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseFileInfo(tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}
}
