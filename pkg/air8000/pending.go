// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 CV610 Systems

package air8000

import (
	"sync"
	"time"
)

// pendingRequest tracks one in-flight request from registration until it
// resolves with a response, a timeout, or shutdown. The waiter blocks on
// done; resp/err are written exactly once, before done closes, under the
// table lock.
type pendingRequest struct {
	frame    *Frame // request to transmit
	sent     bool
	deadline time.Time

	resp *Frame
	err  error
	done chan struct{}
}

// pendingTable correlates responses to requests by sequence number.
//
// Slots are a flat 256-entry array so registration and matching are O(1);
// the order slice preserves insertion order for the send and timeout
// sweeps. Every state transition that removes an entry happens atomically
// with the removal, so a request can never resolve twice.
type pendingTable struct {
	mu      sync.Mutex
	slots   [256]*pendingRequest
	order   []uint8
	shutErr error // set by failAll; the table accepts nothing afterwards
}

// register adds a request keyed by its sequence number. Returns ErrBusy if
// the slot is occupied; the existing entry is left untouched. After failAll
// has run, registration fails with the teardown error: the check is under
// the same lock, so a request can never slip into a table nobody sweeps.
func (t *pendingTable) register(f *Frame, timeout time.Duration) (*pendingRequest, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.shutErr != nil {
		return nil, t.shutErr
	}
	if t.slots[f.Seq] != nil {
		return nil, ErrBusy
	}

	req := &pendingRequest{
		frame:    f,
		deadline: time.Now().Add(timeout),
		done:     make(chan struct{}),
	}
	t.slots[f.Seq] = req
	t.order = append(t.order, f.Seq)
	return req, nil
}

// match resolves the pending request for a received reply. The entry must
// agree on both seq and cmd; a stale reply to a recycled sequence number is
// ignored. Returns true if a waiter was resolved.
func (t *pendingTable) match(f *Frame) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	req := t.slots[f.Seq]
	if req == nil || req.frame.Cmd != f.Cmd {
		return false
	}

	t.removeLocked(f.Seq)
	req.resp = f
	close(req.done)
	return true
}

// unsent returns requests not yet written to the transport, oldest first,
// marking them sent. The caller transmits outside the lock.
func (t *pendingTable) unsent() []*pendingRequest {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []*pendingRequest
	for _, seq := range t.order {
		req := t.slots[seq]
		if req != nil && !req.sent {
			req.sent = true
			out = append(out, req)
		}
	}
	return out
}

// unmarkSent reverts a send mark after a transport write failure so the
// request is retransmitted once the link comes back.
func (t *pendingTable) unmarkSent(req *pendingRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.slots[req.frame.Seq] == req {
		req.sent = false
	}
}

// sweepTimeouts fails every request whose deadline has passed. Runs on each
// loop iteration regardless of connection state: a dead link must not grant
// requests unbounded lifetimes.
func (t *pendingTable) sweepTimeouts(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := 0; i < len(t.order); {
		seq := t.order[i]
		req := t.slots[seq]
		if req != nil && now.After(req.deadline) {
			t.removeLocked(seq)
			req.err = ErrTimeout
			close(req.done)
			continue // removeLocked shifted order down
		}
		i++
	}
}

// failAll resolves every pending request with err and shuts the table so
// later registrations fail with the same error. Called once at teardown.
func (t *pendingTable) failAll(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.shutErr = err
	for _, seq := range t.order {
		if req := t.slots[seq]; req != nil {
			t.slots[seq] = nil
			req.err = err
			close(req.done)
		}
	}
	t.order = t.order[:0]
}

// removeLocked unlinks a slot from both structures. Caller holds mu.
func (t *pendingTable) removeLocked(seq uint8) {
	t.slots[seq] = nil
	for i, s := range t.order {
		if s == seq {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// count returns the number of in-flight requests.
func (t *pendingTable) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}
