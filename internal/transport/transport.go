// SPDX-License-Identifier: MIT
// Package transport carries scene messages to clients and control messages
// back to the scene.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ambience/internal/log"

	"github.com/vmihailenco/msgpack/v5"
)

var logger = log.New("transport")

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Envelope is the outer shape of every outbound message.
type Envelope struct {
	Type string `json:"type" msgpack:"type"`
	Data any    `json:"data,omitempty" msgpack:"data,omitempty"`
}

// Encoding is a wire format.
type Encoding int

const (
	JSON    Encoding = iota // Text frames.
	Msgpack                 // Binary frames.
)

func (e Encoding) String() string {
	if e == Msgpack {
		return "msgpack"
	}
	return "json"
}

// ParseEncoding accepts "json" or "msgpack".
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return Msgpack, nil
	default:
		return JSON, fmt.Errorf("unknown encoding %q (want json or msgpack)", s)
	}
}

// Marshal encodes v in e.
func (e Encoding) Marshal(v any) ([]byte, error) {
	if e == Msgpack {
		return msgpack.Marshal(v)
	}
	return json.Marshal(v)
}

// Unmarshal decodes data in e into v.
func (e Encoding) Unmarshal(data []byte, v any) error {
	if e == Msgpack {
		return msgpack.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

// Inbound control message types.
const (
	ControlActivate     = "activate"
	ControlPointer      = "pointer"
	ControlPointerLeave = "pointer_leave"
)

// Control is an inbound message from a client.
type Control struct {
	Type   string  `json:"type" msgpack:"type"`
	Active bool    `json:"active,omitempty" msgpack:"active,omitempty"`
	X      float64 `json:"x,omitempty" msgpack:"x,omitempty"`
	Y      float64 `json:"y,omitempty" msgpack:"y,omitempty"`
}

// Controller receives the control messages of every client.
type Controller interface {
	SetActive(ctx context.Context, active bool) error
	SetPointer(x, y float64)
	ClearPointer()
}

var errUnknownControl = errors.New("unknown control message")

// Apply hands c to ctl.
func (c Control) Apply(ctx context.Context, ctl Controller) error {
	switch c.Type {
	case ControlActivate:
		return ctl.SetActive(ctx, c.Active)
	case ControlPointer:
		ctl.SetPointer(c.X, c.Y)
		return nil
	case ControlPointerLeave:
		ctl.ClearPointer()
		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownControl, c.Type)
	}
}

// Fanout sends every message to each of its transports.
type Fanout []Transport

// Send delivers data to every transport and joins their errors.
func (f Fanout) Send(data any) error {
	var errs []error
	for _, t := range f {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every transport and joins their errors.
func (f Fanout) Close() error {
	var errs []error
	for _, t := range f {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = Fanout(nil)
