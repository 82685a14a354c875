// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 CV610 Systems

package air8000

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Device at Open time.
type Option func(*config)

type config struct {
	logger            *zap.Logger
	reconnectInterval time.Duration
	readTimeout       time.Duration
	notifyBuffer      int
}

func defaultConfig() config {
	return config{
		logger:            zap.NewNop(),
		reconnectInterval: time.Second,
		readTimeout:       50 * time.Millisecond,
		notifyBuffer:      32,
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithReconnectInterval sets the minimum delay between reconnection
// attempts after the link drops. Default one second.
func WithReconnectInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.reconnectInterval = d
		}
	}
}

// WithReadTimeout bounds each transport read in the I/O loop. It is the
// loop's tick and therefore the resolution of request timeouts. Default
// 50ms.
func WithReadTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.readTimeout = d
		}
	}
}

// WithNotifyBuffer sets the depth of the notification queue between the
// I/O loop and the handler goroutine. Notifications are dropped, with a
// log warning, when the queue is full. Default 32.
func WithNotifyBuffer(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.notifyBuffer = n
		}
	}
}
