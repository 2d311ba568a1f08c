// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"sync/atomic"
)

// LoggingTransport implements the Transport interface by logging a line for
// every Nth message at debug level.
type LoggingTransport struct {
	every uint64
	count atomic.Uint64
}

// NewLoggingTransport logs one message in every. every below 1 logs all.
func NewLoggingTransport(every int) *LoggingTransport {
	logger.Infof("using logging transport (1 in %d messages)", max(every, 1))
	return &LoggingTransport{every: uint64(max(every, 1))}
}

// Send logs the received data. It never fails.
func (lt *LoggingTransport) Send(data any) error {
	n := lt.count.Add(1)
	if (n-1)%lt.every != 0 {
		return nil
	}
	if env, ok := data.(Envelope); ok {
		logger.Debugf("#%d %s: %s", n, env.Type, describe(env.Data))
		return nil
	}
	logger.Debugf("#%d %s", n, describe(data))
	return nil
}

func describe(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", v)
}

// Count returns the number of messages received.
func (lt *LoggingTransport) Count() uint64 { return lt.count.Load() }

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	logger.Debugf("logging transport closed after %d messages", lt.count.Load())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
