// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 CV610 Systems

package air8000

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFirmware(t *testing.T, size int) string {
	t.Helper()
	img := make([]byte, size)
	for i := range img {
		img[i] = byte(i)
	}
	path := filepath.Join(t.TempDir(), "fw.img")
	if err := os.WriteFile(path, img, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func collectFotaEvents(d *Device) <-chan FotaNotice {
	ch := make(chan FotaNotice, 64)
	d.SetFotaHandler(func(n FotaNotice) { ch <- n })
	return ch
}

// ============================================================
// Upload sequence
// ============================================================

func TestUpdateFirmware_ChunkSequence(t *testing.T) {
	const imageSize = 2*fotaChunkSize + 452
	path := writeFirmware(t, imageSize)

	m := newMockTransport(ackResponder)
	d := openTestDevice(t, m)
	events := collectFotaEvents(d)

	if err := d.UpdateFirmware(path); err != nil {
		t.Fatalf("UpdateFirmware error: %v", err)
	}

	status, devErr := d.FotaStatus()
	if status != FotaSuccess || devErr != FotaErrNone {
		t.Errorf("status = %v/%v", status, devErr)
	}

	sent := m.sentFrames()
	if len(sent) != 5 { // start + 3 chunks + finish
		t.Fatalf("sent %d frames, want 5", len(sent))
	}
	if sent[0].Cmd != CmdOTAStart || getU32(sent[0].Data) != imageSize {
		t.Errorf("start frame = %v", sent[0])
	}

	img, _ := os.ReadFile(path)
	chunkSizes := []int{fotaChunkSize, fotaChunkSize, 452}
	off := 0
	for i, want := range chunkSizes {
		f := sent[i+1]
		if f.Cmd != CmdOTAData {
			t.Fatalf("frame %d cmd = %v", i+1, f.Cmd)
		}
		if seq := getU16(f.Data[0:2]); seq != uint16(i) {
			t.Errorf("chunk %d seq = %d", i, seq)
		}
		if !bytes.Equal(f.Data[2:], img[off:off+want]) {
			t.Errorf("chunk %d payload mismatch", i)
		}
		off += want
	}
	if sent[4].Cmd != CmdOTAFinish || len(sent[4].Data) != 0 {
		t.Errorf("finish frame = %v", sent[4])
	}

	// The completion event carries progress 100.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-events:
			if n.Event == FotaEventCompleted {
				if n.Progress != 100 || n.Status != FotaSuccess {
					t.Errorf("completed notice = %+v", n)
				}
				return
			}
		case <-deadline:
			t.Fatal("completion event never arrived")
		}
	}
}

func TestUpdateFirmware_EmptyImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.img")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	m := newMockTransport(ackResponder)
	d := openTestDevice(t, m)

	err := d.UpdateFirmware(path)
	if !errors.Is(err, ErrInvalidParam) {
		t.Fatalf("expected ErrInvalidParam, got %v", err)
	}
	status, devErr := d.FotaStatus()
	if status != FotaFailed || devErr != FotaErrInitFailed {
		t.Errorf("status = %v/%v", status, devErr)
	}
}

func TestUpdateFirmware_Busy(t *testing.T) {
	m := newMockTransport(ackResponder)
	d := openTestDevice(t, m)

	d.fota.mu.Lock()
	d.fota.status = FotaReceiving
	d.fota.mu.Unlock()

	if err := d.UpdateFirmware("irrelevant"); !errors.Is(err, ErrBusy) {
		t.Errorf("got %v, want ErrBusy", err)
	}
}

// ============================================================
// Chunk retries
// ============================================================

func TestUpdateFirmware_ChunkRetried(t *testing.T) {
	path := writeFirmware(t, 100)

	// Reject the first data chunk once; the session must retry it.
	dataAttempts := 0
	m := newMockTransport(nil)
	m.respond = func(f *Frame) []*Frame {
		if f.Cmd == CmdOTAData {
			dataAttempts++
			if dataAttempts == 1 {
				return []*Frame{{
					Version: ProtocolVersion,
					Type:    FrameNack,
					Seq:     f.Seq,
					Cmd:     f.Cmd,
					Data:    []byte{DevErrBusy},
				}}
			}
		}
		return ackResponder(f)
	}
	d := openTestDevice(t, m)

	if err := d.UpdateFirmware(path); err != nil {
		t.Fatalf("UpdateFirmware error: %v", err)
	}
	if dataAttempts != 2 {
		t.Errorf("data chunk sent %d times, want 2", dataAttempts)
	}
	status, _ := d.FotaStatus()
	if status != FotaSuccess {
		t.Errorf("status = %v", status)
	}
}

// ============================================================
// Device status notifications
// ============================================================

func TestFota_FailedStatusAbortsSession(t *testing.T) {
	m := newMockTransport(ackResponder)
	d := openTestDevice(t, m)
	events := collectFotaEvents(d)

	d.fota.mu.Lock()
	d.fota.status = FotaReceiving
	d.fota.mu.Unlock()

	m.push(&Frame{
		Version: ProtocolVersion,
		Type:    FrameNotify,
		Cmd:     CmdOTAStatus,
		Data:    []byte{byte(FotaFailed), byte(FotaErrVerifyFailed), 42},
	})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-events:
			if n.Event == FotaEventError {
				if n.Status != FotaFailed || n.Error != FotaErrVerifyFailed || n.Progress != 42 {
					t.Errorf("error notice = %+v", n)
				}
				if !d.fota.isAborted() {
					t.Error("failed status did not abort the session")
				}
				return
			}
		case <-deadline:
			t.Fatal("error event never arrived")
		}
	}
}

func TestFota_StatusIgnoredWhenIdle(t *testing.T) {
	m := newMockTransport(ackResponder)
	d := openTestDevice(t, m)

	m.push(&Frame{
		Version: ProtocolVersion,
		Type:    FrameNotify,
		Cmd:     CmdOTAStatus,
		Data:    []byte{byte(FotaFailed), byte(FotaErrTimeout), 0},
	})

	time.Sleep(100 * time.Millisecond)
	status, devErr := d.FotaStatus()
	if status != FotaIdle || devErr != FotaErrNone {
		t.Errorf("idle session picked up status: %v/%v", status, devErr)
	}
}
