// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ambience/pkg/utils"
)

// fakeController records what the hub asked of it.
type fakeController struct {
	mu      sync.Mutex
	active  []bool
	pointer [][2]float64
	leaves  int
	err     error
}

func (c *fakeController) SetActive(_ context.Context, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = append(c.active, active)
	return c.err
}

func (c *fakeController) SetPointer(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pointer = append(c.pointer, [2]float64{x, y})
}

func (c *fakeController) ClearPointer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaves++
}

func (c *fakeController) snapshot() (active []bool, pointer [][2]float64, leaves int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bool(nil), c.active...), append([][2]float64(nil), c.pointer...), c.leaves
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		in      string
		want    Encoding
		wantErr bool
	}{
		{"", JSON, false},
		{"json", JSON, false},
		{"MsgPack", Msgpack, false},
		{"xml", JSON, true},
	}
	for _, tt := range tests {
		got, err := ParseEncoding(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseEncoding(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestEncodingControl(t *testing.T) {
	for _, enc := range []Encoding{JSON, Msgpack} {
		t.Run(enc.String(), func(t *testing.T) {
			in := Control{Type: ControlPointer, X: 0.25, Y: -0.5}
			b, err := enc.Marshal(in)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var out Control
			if err := enc.Unmarshal(b, &out); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if out != in {
				t.Errorf("got %+v, want %+v", out, in)
			}
		})
	}
}

func TestControlApply(t *testing.T) {
	ctl := &fakeController{}
	ctx := context.Background()

	msgs := []Control{
		{Type: ControlActivate, Active: true},
		{Type: ControlPointer, X: 0.5, Y: 0.1},
		{Type: ControlPointerLeave},
		{Type: ControlActivate, Active: false},
	}
	for _, m := range msgs {
		if err := m.Apply(ctx, ctl); err != nil {
			t.Fatalf("Apply(%+v): %v", m, err)
		}
	}
	active, pointer, leaves := ctl.snapshot()
	if len(active) != 2 || !active[0] || active[1] {
		t.Errorf("activations = %v", active)
	}
	if len(pointer) != 1 || pointer[0] != [2]float64{0.5, 0.1} {
		t.Errorf("pointer = %v", pointer)
	}
	if leaves != 1 {
		t.Errorf("leaves = %d", leaves)
	}

	if err := (Control{Type: "dance"}).Apply(ctx, ctl); !errors.Is(err, errUnknownControl) {
		t.Errorf("unknown control error = %v", err)
	}
	ctl.err = errors.New("busy")
	if err := (Control{Type: ControlActivate, Active: true}).Apply(ctx, ctl); err == nil {
		t.Error("controller error not returned")
	}
}

func TestFanout(t *testing.T) {
	a, b := &utils.MockTransport{}, &utils.MockTransport{SendErr: errors.New("down")}
	f := Fanout{a, b}

	if err := f.Send(Envelope{Type: "frame"}); err == nil {
		t.Error("expected joined error")
	}
	if a.Count() != 1 {
		t.Errorf("healthy transport got %d messages, want 1", a.Count())
	}
	if err := f.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !a.Closed() || !b.Closed() {
		t.Error("not every transport closed")
	}
}

type stringer struct{}

func (stringer) String() string { return "summary" }

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport(3)
	for range 7 {
		if err := lt.Send(Envelope{Type: "frame", Data: stringer{}}); err != nil {
			t.Fatal(err)
		}
	}
	lt.Send(42)
	if lt.Count() != 8 {
		t.Errorf("Count = %d, want 8", lt.Count())
	}
	if describe(stringer{}) != "summary" || describe(42) != "int" {
		t.Error("describe mismatch")
	}
	if err := lt.Close(); err != nil {
		t.Error(err)
	}
}
