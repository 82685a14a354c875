// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 CV610 Systems

package air8000

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// NotifyHandler receives unsolicited NOTIFY frames. It runs on a dedicated
// dispatcher goroutine, never on the I/O loop, so it may call back into the
// Device; it should still return promptly or notifications will be dropped.
type NotifyHandler func(f *Frame)

// Device is a handle to one Air8000 over one transport. A background I/O
// goroutine owns the transport exclusively: it redials dropped links,
// transmits registered requests, decodes inbound bytes, and resolves
// waiters. All exported methods are safe for concurrent use.
type Device struct {
	cfg    config
	log    *zap.Logger
	dialer Dialer

	pending pendingTable
	decoder *Decoder

	mu        sync.Mutex
	transport Transport
	connected bool
	closed    bool
	notify    NotifyHandler
	lastDial  time.Time

	transfer *transferSession
	fota     *fotaSession

	// events carries deferred callback invocations (notifies, transfer
	// and update events) from the I/O loop to the dispatcher goroutine.
	events chan func()

	stop         chan struct{}
	loopDone     chan struct{}
	dispatchDone chan struct{}
}

// Open dials the transport and starts the I/O loop. The initial dial must
// succeed; later disconnections are redialed automatically.
func Open(dialer Dialer, opts ...Option) (*Device, error) {
	if dialer == nil {
		return nil, fmt.Errorf("%w: nil dialer", ErrInvalidParam)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	tr, err := dialer()
	if err != nil {
		return nil, err
	}

	d := &Device{
		cfg:          cfg,
		log:          cfg.logger,
		dialer:       dialer,
		decoder:      NewDecoder(),
		transport:    tr,
		connected:    true,
		lastDial:     time.Now(),
		events:       make(chan func(), cfg.notifyBuffer),
		stop:         make(chan struct{}),
		loopDone:     make(chan struct{}),
		dispatchDone: make(chan struct{}),
	}
	d.transfer = newTransferSession(d)
	d.fota = newFotaSession(d)

	go d.ioLoop()
	go d.dispatchLoop()

	d.log.Info("device opened")
	return d, nil
}

// Close stops the I/O loop, fails every in-flight request with
// ErrShutdown, and releases the transport. Safe to call more than once.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	tr := d.transport
	d.transport = nil
	d.connected = false
	d.mu.Unlock()

	close(d.stop)
	if tr != nil {
		tr.Close()
	}
	<-d.loopDone

	d.pending.failAll(ErrShutdown)
	d.transfer.shutdown()
	d.fota.shutdown()

	close(d.events)
	<-d.dispatchDone

	d.log.Info("device closed")
	return nil
}

// Connected reports whether the transport link is currently up.
func (d *Device) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// SetNotifyHandler installs the handler for unsolicited NOTIFY frames.
// Pass nil to remove it.
func (d *Device) SetNotifyHandler(h NotifyHandler) {
	d.mu.Lock()
	d.notify = h
	d.mu.Unlock()
}

// SendAndWait registers a request, lets the I/O loop transmit it, and
// blocks until a reply with the same seq and cmd arrives or timeout
// elapses. A disconnection does not fail the request; it stays registered
// and is retransmitted after reconnect, racing its own deadline.
func (d *Device) SendAndWait(f *Frame, timeout time.Duration) (*Frame, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrInvalidParam)
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	d.mu.Unlock()

	req, err := d.pending.register(f, timeout)
	if err != nil {
		return nil, err
	}

	<-req.done
	if req.err != nil {
		return nil, req.err
	}
	return req.resp, nil
}

// request is the common path for command wrappers: send, wait, and convert
// a NACK into a NackError.
func (d *Device) request(cmd Command, data []byte, timeout time.Duration) (*Frame, error) {
	resp, err := d.SendAndWait(NewRequest(cmd, data), timeout)
	if err != nil {
		return nil, err
	}
	if resp.Type == FrameNack {
		code := uint8(0)
		if len(resp.Data) > 0 {
			code = resp.Data[0]
		}
		return nil, &NackError{Cmd: cmd, Code: code}
	}
	return resp, nil
}

// ============================================================
// I/O loop
// ============================================================

// ioLoop is the only goroutine that touches the transport after Open. Each
// iteration: reconnect if needed, flush unsent requests, read and decode,
// then sweep expired deadlines. The timeout sweep runs every pass so a dead
// link cannot stall request resolution.
func (d *Device) ioLoop() {
	defer close(d.loopDone)

	readBuf := make([]byte, 1024)

	for {
		select {
		case <-d.stop:
			return
		default:
		}

		if !d.Connected() {
			d.tryReconnect()
			if !d.Connected() {
				// Idle at the read-timeout cadence so deadline
				// sweeps keep their resolution.
				select {
				case <-d.stop:
					return
				case <-time.After(d.cfg.readTimeout):
				}
				d.pending.sweepTimeouts(time.Now())
				continue
			}
		}

		d.sendSweep()
		d.readAndDispatch(readBuf)
		d.pending.sweepTimeouts(time.Now())
	}
}

// tryReconnect redials at most once per reconnect interval.
func (d *Device) tryReconnect() {
	d.mu.Lock()
	if d.closed || time.Since(d.lastDial) < d.cfg.reconnectInterval {
		d.mu.Unlock()
		return
	}
	d.lastDial = time.Now()
	d.mu.Unlock()

	tr, err := d.dialer()
	if err != nil {
		d.log.Warn("reconnect failed", zap.Error(err))
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		tr.Close()
		return
	}
	d.transport = tr
	d.connected = true
	d.mu.Unlock()

	// A torn frame from the previous session must not leak in.
	d.decoder.Reset()
	d.log.Info("reconnected")
}

// sendSweep transmits every registered request not yet written. A write
// failure drops the link, reverts the send mark so the request goes out
// again after reconnect, and abandons the rest of the sweep.
func (d *Device) sendSweep() {
	for _, req := range d.pending.unsent() {
		if err := d.writeFrame(req.frame); err != nil {
			d.pending.unmarkSent(req)
			d.dropLink(err)
			return
		}
		d.log.Debug("sent", zap.Stringer("frame", req.frame))
	}
}

// readAndDispatch performs one bounded read and drains every complete
// frame out of the decoder.
func (d *Device) readAndDispatch(buf []byte) {
	d.mu.Lock()
	tr := d.transport
	d.mu.Unlock()
	if tr == nil {
		return
	}

	n, err := tr.Read(buf, d.cfg.readTimeout)
	if err != nil {
		d.dropLink(err)
		return
	}
	if n == 0 {
		return
	}

	d.decoder.Feed(buf[:n])
	for {
		f := d.decoder.Next()
		if f == nil {
			return
		}
		d.dispatch(f)
	}
}

// dispatch routes one decoded frame. Replies resolve pending waiters;
// notifies go to the handler queue; device-initiated requests belong to
// the transfer engine, which answers them inline on this goroutine.
func (d *Device) dispatch(f *Frame) {
	switch f.Type {
	case FrameResponse, FrameAck, FrameNack:
		if !d.pending.match(f) {
			d.log.Debug("unmatched reply", zap.Stringer("frame", f))
		}

	case FrameNotify:
		if f.Cmd == CmdFileStatus {
			d.transfer.handleStatus(f)
			return
		}
		if f.Cmd == CmdOTAStatus {
			d.fota.handleStatus(f)
			return
		}
		d.queueNotify(f)

	case FrameRequest:
		switch f.Cmd {
		case CmdFileStart:
			d.transfer.handleStart(f)
		case CmdFileData:
			d.transfer.handleData(f)
		case CmdFileRequest:
			d.transfer.handleRequest(f)
		case CmdFileError:
			d.transfer.setState(TransferErrored)
			d.transfer.emit(TransferNotice{Event: TransferEventError})
		case CmdFileCancel:
			d.transfer.setState(TransferCancelled)
			d.transfer.emit(TransferNotice{Event: TransferEventCancelled})
		default:
			d.log.Warn("unexpected device request", zap.Stringer("frame", f))
		}

	default:
		d.log.Warn("unknown frame type", zap.Uint8("type", uint8(f.Type)))
	}
}

func (d *Device) queueNotify(f *Frame) {
	d.mu.Lock()
	h := d.notify
	d.mu.Unlock()
	if h == nil {
		return
	}
	d.post(func() { h(f) })
}

// post hands a callback to the dispatcher goroutine without ever blocking
// the I/O loop.
func (d *Device) post(fn func()) {
	select {
	case d.events <- fn:
	default:
		d.log.Warn("event queue full, dropping")
	}
}

// dispatchLoop runs user callbacks off the I/O goroutine.
func (d *Device) dispatchLoop() {
	defer close(d.dispatchDone)
	for fn := range d.events {
		fn()
	}
}

// writeFrame encodes and transmits one frame on the current transport.
func (d *Device) writeFrame(f *Frame) error {
	d.mu.Lock()
	tr := d.transport
	d.mu.Unlock()
	if tr == nil {
		return fmt.Errorf("%w: not connected", ErrIO)
	}

	wire, err := Encode(f)
	if err != nil {
		return err
	}
	if _, err := tr.Write(wire); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// dropLink marks the connection down and closes the broken transport.
// Pending requests are left alone; they resolve by response after
// reconnect or by their own deadline.
func (d *Device) dropLink(err error) {
	d.mu.Lock()
	if d.closed || !d.connected {
		d.mu.Unlock()
		return
	}
	d.connected = false
	tr := d.transport
	d.transport = nil
	d.mu.Unlock()

	if tr != nil {
		tr.Close()
	}
	d.log.Warn("link down", zap.Error(err))
}
