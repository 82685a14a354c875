// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 CV610 Systems

package air8000

import (
	"errors"
	"testing"
	"time"
)

// ============================================================
// Pending Table Tests
// ============================================================

func TestPendingTable_RegisterAndMatch(t *testing.T) {
	var table pendingTable

	req := &Frame{Type: FrameRequest, Seq: 10, Cmd: CmdSysPing}
	entry, err := table.register(req, time.Second)
	if err != nil {
		t.Fatalf("register error: %v", err)
	}
	if table.count() != 1 {
		t.Fatalf("count = %d", table.count())
	}

	resp := &Frame{Type: FrameAck, Seq: 10, Cmd: CmdSysPing}
	if !table.match(resp) {
		t.Fatal("match failed for correct seq+cmd")
	}

	select {
	case <-entry.done:
	default:
		t.Fatal("waiter not woken")
	}
	if entry.resp != resp {
		t.Error("response not delivered")
	}
	if table.count() != 0 {
		t.Errorf("entry not removed, count = %d", table.count())
	}
}

func TestPendingTable_BusyOnCollision(t *testing.T) {
	var table pendingTable

	first := &Frame{Type: FrameRequest, Seq: 5, Cmd: CmdSysPing}
	if _, err := table.register(first, time.Second); err != nil {
		t.Fatalf("register error: %v", err)
	}

	second := &Frame{Type: FrameRequest, Seq: 5, Cmd: CmdSysVersion}
	if _, err := table.register(second, time.Second); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	// The original registration must still resolve normally.
	if !table.match(&Frame{Type: FrameAck, Seq: 5, Cmd: CmdSysPing}) {
		t.Error("original entry was disturbed by the rejected registration")
	}
}

func TestPendingTable_MatchRequiresCmd(t *testing.T) {
	var table pendingTable

	req := &Frame{Type: FrameRequest, Seq: 99, Cmd: CmdMotorStop}
	table.register(req, time.Second)

	// Same seq, different cmd: a stale reply for a recycled sequence
	// number must not resolve this request.
	if table.match(&Frame{Type: FrameResponse, Seq: 99, Cmd: CmdSysPing}) {
		t.Fatal("matched a reply with the wrong cmd")
	}
	if table.count() != 1 {
		t.Error("entry removed by non-matching reply")
	}
}

func TestPendingTable_TimeoutSweep(t *testing.T) {
	var table pendingTable

	expired, _ := table.register(&Frame{Seq: 1, Cmd: CmdSysPing}, -time.Millisecond)
	alive, _ := table.register(&Frame{Seq: 2, Cmd: CmdSysPing}, time.Hour)

	table.sweepTimeouts(time.Now())

	select {
	case <-expired.done:
	default:
		t.Fatal("expired entry not resolved")
	}
	if !errors.Is(expired.err, ErrTimeout) {
		t.Errorf("expired entry err = %v", expired.err)
	}

	select {
	case <-alive.done:
		t.Fatal("unexpired entry was resolved")
	default:
	}
	if table.count() != 1 {
		t.Errorf("count = %d after sweep", table.count())
	}
}

func TestPendingTable_UnsentOrderAndMark(t *testing.T) {
	var table pendingTable

	table.register(&Frame{Seq: 3, Cmd: CmdSysPing}, time.Second)
	table.register(&Frame{Seq: 1, Cmd: CmdSysPing}, time.Second)
	table.register(&Frame{Seq: 2, Cmd: CmdSysPing}, time.Second)

	batch := table.unsent()
	if len(batch) != 3 {
		t.Fatalf("unsent returned %d entries", len(batch))
	}
	// Insertion order, not seq order.
	if batch[0].frame.Seq != 3 || batch[1].frame.Seq != 1 || batch[2].frame.Seq != 2 {
		t.Errorf("order = %d %d %d", batch[0].frame.Seq, batch[1].frame.Seq, batch[2].frame.Seq)
	}

	if len(table.unsent()) != 0 {
		t.Error("second sweep returned already-sent entries")
	}

	// A reverted mark makes the entry eligible again.
	table.unmarkSent(batch[1])
	again := table.unsent()
	if len(again) != 1 || again[0].frame.Seq != 1 {
		t.Errorf("after unmark: %d entries", len(again))
	}
}

func TestPendingTable_FailAll(t *testing.T) {
	var table pendingTable

	a, _ := table.register(&Frame{Seq: 1, Cmd: CmdSysPing}, time.Hour)
	b, _ := table.register(&Frame{Seq: 2, Cmd: CmdSysVersion}, time.Hour)

	table.failAll(ErrShutdown)

	for _, entry := range []*pendingRequest{a, b} {
		select {
		case <-entry.done:
		default:
			t.Fatal("entry not resolved by failAll")
		}
		if !errors.Is(entry.err, ErrShutdown) {
			t.Errorf("err = %v", entry.err)
		}
	}
	if table.count() != 0 {
		t.Errorf("count = %d after failAll", table.count())
	}
}

func TestPendingTable_RegisterAfterFailAll(t *testing.T) {
	var table pendingTable

	table.register(&Frame{Seq: 1, Cmd: CmdSysPing}, time.Hour)
	table.failAll(ErrShutdown)

	// A registration that races teardown must fail immediately; nothing
	// sweeps the table anymore, so such an entry would never resolve.
	if _, err := table.register(&Frame{Seq: 2, Cmd: CmdSysPing}, time.Hour); !errors.Is(err, ErrShutdown) {
		t.Fatalf("register after teardown: got %v, want ErrShutdown", err)
	}
	if table.count() != 0 {
		t.Errorf("count = %d after rejected registration", table.count())
	}
}
