// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 CV610 Systems

package air8000

import (
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
)

// Transport is a byte-stream link to the device. Read blocks for at most
// timeout and returns n == 0 with a nil error when nothing arrived; a
// non-nil error means the link is broken and must be re-dialed.
type Transport interface {
	Read(p []byte, timeout time.Duration) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Dialer opens a Transport. The I/O loop re-invokes it after every link
// failure, so it must be safe to call repeatedly.
type Dialer func() (Transport, error)

// serialTransport adapts a serial.Port to the Transport interface.
type serialTransport struct {
	port serial.Port
}

// SerialDialer returns a Dialer for a UART device node. 8 data bits, no
// parity, one stop bit; the Air8000 link runs at 115200.
func SerialDialer(portName string, baudRate int) Dialer {
	return func() (Transport, error) {
		mode := &serial.Mode{
			BaudRate: baudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}
		port, err := serial.Open(portName, mode)
		if err != nil {
			return nil, fmt.Errorf("opening serial port %s: %w", portName, err)
		}
		return &serialTransport{port: port}, nil
	}
}

func (s *serialTransport) Read(p []byte, timeout time.Duration) (int, error) {
	if err := s.port.SetReadTimeout(timeout); err != nil {
		return 0, err
	}
	// serial.Port returns n == 0, err == nil on timeout, which is exactly
	// the Transport contract.
	return s.port.Read(p)
}

func (s *serialTransport) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *serialTransport) Close() error {
	return s.port.Close()
}

// wsTransport adapts a WebSocket connection carrying binary messages. Used
// when the device UART is bridged over the network by a gateway.
//
// gorilla/websocket invalidates the connection after any read error,
// including a deadline expiry, so bounded reads cannot use SetReadDeadline.
// A reader goroutine pumps messages into a channel and Read selects on it
// with a timer.
type wsTransport struct {
	conn      *websocket.Conn
	messages  chan []byte
	readErr   chan error
	done      chan struct{}
	closeOnce sync.Once
	buf       []byte
	off       int
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	w := &wsTransport{
		conn:     conn,
		messages: make(chan []byte, 16),
		readErr:  make(chan error, 1),
		done:     make(chan struct{}),
	}
	go w.pump()
	return w
}

func (w *wsTransport) pump() {
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case w.readErr <- err:
			case <-w.done:
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		// The send must not outlive the transport: a reader that stopped
		// draining would otherwise pin this goroutine forever.
		if !w.deliver(data) {
			return
		}
	}
}

// deliver hands one message to Read, giving up when the transport closes.
func (w *wsTransport) deliver(data []byte) bool {
	select {
	case w.messages <- data:
		return true
	case <-w.done:
		return false
	}
}

// WebSocketDialer returns a Dialer for a ws:// or wss:// bridge endpoint.
// Credentials go in an HTTP Basic Authorization header; insecure skips TLS
// certificate verification for wss.
func WebSocketDialer(rawURL, username, password string, insecure bool) Dialer {
	return func() (Transport, error) {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
		switch u.Scheme {
		case "ws", "wss":
		default:
			return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
		}

		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		if u.Scheme == "wss" {
			dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: insecure}
		}

		headers := http.Header{}
		if username != "" && password != "" {
			credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
			headers.Set("Authorization", "Basic "+credentials)
		}

		conn, resp, err := dialer.Dial(rawURL, headers)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("websocket connect failed (HTTP %d): %w", resp.StatusCode, err)
			}
			return nil, fmt.Errorf("websocket connect failed: %w", err)
		}
		return newWSTransport(conn), nil
	}
}

func (w *wsTransport) Read(p []byte, timeout time.Duration) (int, error) {
	// Drain any remainder of the previous message first.
	if w.off < len(w.buf) {
		n := copy(p, w.buf[w.off:])
		w.off += n
		return n, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data := <-w.messages:
		w.buf = data
		w.off = copy(p, data)
		return w.off, nil
	case err := <-w.readErr:
		return 0, err
	case <-timer.C:
		return 0, nil
	}
}

func (w *wsTransport) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// shutdown releases the pump goroutine. Idempotent.
func (w *wsTransport) shutdown() {
	w.closeOnce.Do(func() { close(w.done) })
}

func (w *wsTransport) Close() error {
	w.shutdown()
	return w.conn.Close()
}
