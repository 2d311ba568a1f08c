// SPDX-License-Identifier: MIT
package scene

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ambience/internal/clock"
	"ambience/internal/spectrum"
	"ambience/internal/visual"
)

// fakeCapture blocks Start on gate when it is set.
type fakeCapture struct {
	startErr error
	gate     chan struct{}
	entered  chan struct{}

	starts atomic.Int32
	stops  atomic.Int32
}

func (c *fakeCapture) Start(ctx context.Context) error {
	c.starts.Add(1)
	if c.entered != nil {
		c.entered <- struct{}{}
	}
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.startErr
}

func (c *fakeCapture) Stop() error {
	c.stops.Add(1)
	return nil
}

type fakePeer struct {
	openErr error
	opens   atomic.Int32
	closes  atomic.Int32
}

func (p *fakePeer) Open(context.Context) error {
	p.opens.Add(1)
	return p.openErr
}

func (p *fakePeer) Close() error {
	p.closes.Add(1)
	return nil
}

// eventLog collects events from Subscribe.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) all() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func smallConfig() Config {
	cfg := DefaultConfig(visual.Desktop, visual.Sphere)
	cfg.Particles.Count = 50
	return cfg
}

func newTestScene(t *testing.T, capture Capture, peers ...Peer) (*Scene, *spectrum.Shared, *clock.Manual) {
	t.Helper()
	shared := spectrum.NewShared()
	clk := clock.NewManual(0)
	s, err := New(smallConfig(), shared, capture, clk, peers...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, shared, clk
}

func waitState(t *testing.T, s *Scene, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want %s", s.State(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(smallConfig(), nil, nil, nil); err == nil {
		t.Error("expected error without shared state")
	}
	cfg := smallConfig()
	cfg.Particles.Count = 0
	if _, err := New(cfg, spectrum.NewShared(), nil, nil); err == nil {
		t.Error("expected error for empty particle field")
	}
	cfg = smallConfig()
	cfg.Ring.Count = 0
	if _, err := New(cfg, spectrum.NewShared(), nil, nil); err == nil {
		t.Error("expected error for empty ring")
	}
}

func TestActivateDeactivate(t *testing.T) {
	capture := &fakeCapture{}
	peer := &fakePeer{}
	s, _, _ := newTestScene(t, capture, peer)
	log := &eventLog{}
	cancel := s.Subscribe(log.add)
	defer cancel()

	if s.State() != Idle {
		t.Fatalf("initial state %s", s.State())
	}
	if err := s.SetActive(context.Background(), true); err != nil {
		t.Fatalf("SetActive(true): %v", err)
	}
	waitState(t, s, Active)

	// Repeating the current value changes nothing.
	if err := s.SetActive(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if capture.starts.Load() != 1 || peer.opens.Load() != 1 {
		t.Errorf("starts %d opens %d, want 1 each", capture.starts.Load(), peer.opens.Load())
	}

	s.SetActive(context.Background(), false)
	if s.State() != Idle {
		t.Errorf("state after deactivate = %s", s.State())
	}
	if capture.stops.Load() != 1 || peer.closes.Load() != 1 {
		t.Errorf("stops %d closes %d, want 1 each", capture.stops.Load(), peer.closes.Load())
	}
	s.SetActive(context.Background(), false)
	if capture.stops.Load() != 1 {
		t.Error("deactivating while idle stopped capture again")
	}

	var got []State
	for _, ev := range log.all() {
		got = append(got, ev.State)
	}
	want := []State{Requesting, Active, Idle}
	if len(got) != len(want) {
		t.Fatalf("events %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestActivationFailures(t *testing.T) {
	tests := []struct {
		name     string
		capture  Capture
		peer     *fakePeer
		wantMsg  string
		wantStop bool
	}{
		{"no capture", nil, &fakePeer{}, "could not access microphone", false},
		{"capture denied", &fakeCapture{startErr: errors.New("permission denied")}, &fakePeer{}, "could not access microphone: permission denied", true},
		{"peer fails", &fakeCapture{}, &fakePeer{openErr: errors.New("offline")}, "could not open voice session: offline", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestScene(t, tt.capture, tt.peer)
			log := &eventLog{}
			s.Subscribe(log.add)

			s.SetActive(context.Background(), true)
			deadline := time.Now().Add(2 * time.Second)
			for len(log.all()) < 2 {
				if time.Now().After(deadline) {
					t.Fatalf("events = %v", log.all())
				}
				time.Sleep(time.Millisecond)
			}

			last := log.all()[1]
			if last.State != Idle || last.Notice == nil {
				t.Fatalf("final event = %+v", last)
			}
			if last.Notice.Level != "error" || !strings.HasPrefix(last.Notice.Message, tt.wantMsg) {
				t.Errorf("notice = %+v, want prefix %q", last.Notice, tt.wantMsg)
			}
			if s.State() != Idle {
				t.Errorf("state = %s", s.State())
			}
			if fc, ok := tt.capture.(*fakeCapture); ok && tt.wantStop && fc.stops.Load() == 0 {
				t.Error("capture not released after failure")
			}
			if tt.peer.closes.Load() != 0 {
				t.Error("closed a peer that never opened")
			}
		})
	}
}

func TestDeactivateWhileRequesting(t *testing.T) {
	capture := &fakeCapture{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	peer := &fakePeer{}
	s, _, _ := newTestScene(t, capture, peer)

	s.SetActive(context.Background(), true)
	<-capture.entered
	if s.State() != Requesting {
		t.Fatalf("state = %s, want requesting", s.State())
	}

	s.SetActive(context.Background(), false)
	if s.State() != Idle {
		t.Fatalf("state = %s, want idle", s.State())
	}
	close(capture.gate)
	s.wg.Wait()

	if s.State() != Idle {
		t.Errorf("late grant moved state to %s", s.State())
	}
	if capture.stops.Load() < 2 {
		t.Errorf("late grant not released: %d stops", capture.stops.Load())
	}
	if peer.opens.Load() != 1 || peer.closes.Load() != 1 {
		t.Errorf("peer opens %d closes %d", peer.opens.Load(), peer.closes.Load())
	}
}

func TestRapidToggleEndsIdle(t *testing.T) {
	capture := &fakeCapture{}
	s, _, _ := newTestScene(t, capture)
	ctx := context.Background()
	for range 20 {
		s.SetActive(ctx, true)
		s.SetActive(ctx, false)
	}
	s.wg.Wait()
	if s.State() != Idle {
		t.Errorf("state = %s", s.State())
	}
}

func TestTickWhileRequestingIsIdle(t *testing.T) {
	capture := &fakeCapture{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	s, shared, clk := newTestScene(t, capture)
	w, err := shared.Claim()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Release()
	loud := make([]uint8, spectrum.DefaultBins)
	for i := range loud {
		loud[i] = 255
	}
	w.Publish(loud)

	s.SetActive(context.Background(), true)
	<-capture.entered
	clk.Advance(0.5)
	f := s.Tick()
	if f.State != Requesting {
		t.Fatalf("frame state = %s", f.State)
	}
	if f.Bands != nil {
		t.Error("bands emitted while not active")
	}
	if f.Mesh.Intensity != 0 {
		t.Errorf("mesh reacted to audio while requesting: %v", f.Mesh.Intensity)
	}
	close(capture.gate)
	waitState(t, s, Active)

	clk.Advance(1.0 / 60)
	f = s.Tick()
	if len(f.Bands) == 0 {
		t.Error("no bands while active")
	}
	if f.BufferSeq != shared.Read().Seq() {
		t.Errorf("frame buffer seq %d, shared %d", f.BufferSeq, shared.Read().Seq())
	}
}

func TestTickFrames(t *testing.T) {
	s, _, clk := newTestScene(t, nil)
	a := s.Tick()
	clk.Advance(0.25)
	b := s.Tick()

	if b.Seq != a.Seq+1 {
		t.Errorf("seq %d then %d", a.Seq, b.Seq)
	}
	if b.Time != 0.25 {
		t.Errorf("time = %v", b.Time)
	}
	if len(b.Particles.Sizes) != 50 || len(b.Particles.Positions) != 150 {
		t.Errorf("particle data %d sizes %d positions", len(b.Particles.Sizes), len(b.Particles.Positions))
	}
	if len(b.Ring) != visual.RingBars {
		t.Errorf("ring bars = %d", len(b.Ring))
	}
	if b.Line != nil {
		t.Error("line bars without a line config")
	}
	// Frames own their data.
	a.Ring[0].Height = -1
	if s.Tick().Ring[0].Height == -1 {
		t.Error("frame shares bar storage with the scene")
	}
	if !strings.HasPrefix(b.String(), "frame 2 idle") {
		t.Errorf("String() = %q", b.String())
	}
}

func TestLineBarsAndLayout(t *testing.T) {
	cfg := smallConfig()
	line := visual.DefaultBarConfig(visual.Line, visual.Mobile)
	cfg.Line = &line
	s, err := New(cfg, spectrum.NewShared(), nil, clock.NewManual(0))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	l := s.Describe()
	if len(l.LineBars) != visual.MobileLineBars || len(l.RingBars) != visual.RingBars {
		t.Errorf("layout bars: line %d ring %d", len(l.LineBars), len(l.RingBars))
	}
	if l.Particles != 50 || l.FrequencyBins != spectrum.DefaultBins || l.Tier != "desktop" {
		t.Errorf("layout = %+v", l)
	}
	if f := s.Tick(); len(f.Line) != visual.MobileLineBars {
		t.Errorf("line bars in frame = %d", len(f.Line))
	}
}

func TestPointerClamp(t *testing.T) {
	s, _, _ := newTestScene(t, nil)
	tests := []struct{ x, y, wantX, wantY float64 }{
		{0.5, -0.5, 0.5, -0.5},
		{3, -7, 1, -1},
	}
	for _, tt := range tests {
		s.SetPointer(tt.x, tt.y)
		s.mu.Lock()
		p := s.pointer
		s.mu.Unlock()
		if !p.Active || p.X != tt.wantX || p.Y != tt.wantY {
			t.Errorf("SetPointer(%v, %v) -> %+v", tt.x, tt.y, p)
		}
	}
	if clampUnit(nan()) != 0 {
		t.Error("NaN not cleared")
	}
	s.ClearPointer()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pointer.Active {
		t.Error("pointer still active")
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestCloseIdempotent(t *testing.T) {
	capture := &fakeCapture{}
	peer := &fakePeer{}
	s, _, _ := newTestScene(t, capture, peer)
	s.SetActive(context.Background(), true)
	waitState(t, s, Active)

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if peer.closes.Load() != 1 {
		t.Errorf("peer closed %d times", peer.closes.Load())
	}
	if err := s.SetActive(context.Background(), true); !errors.Is(err, ErrClosed) {
		t.Errorf("SetActive after Close = %v", err)
	}
}

func TestCloseWhileRequesting(t *testing.T) {
	capture := &fakeCapture{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	s, _, _ := newTestScene(t, capture)
	ctx, cancel := context.WithCancel(context.Background())
	s.SetActive(ctx, true)
	<-capture.entered

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	if s.State() != Idle {
		t.Errorf("state = %s", s.State())
	}
}

func TestResolveTier(t *testing.T) {
	tests := []struct {
		setting string
		width   int
		want    visual.Tier
		wantErr bool
	}{
		{"auto", 375, visual.Mobile, false},
		{"", 1440, visual.Desktop, false},
		{"AUTO", 0, visual.Desktop, false},
		{"mobile", 1440, visual.Mobile, false},
		{"desktop", 320, visual.Desktop, false},
		{"tablet", 800, visual.Desktop, true},
	}
	for _, tt := range tests {
		got, err := ResolveTier(tt.setting, tt.width)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ResolveTier(%q, %d) = %s, %v", tt.setting, tt.width, got, err)
		}
	}
}

func TestStateText(t *testing.T) {
	for st, want := range map[State]string{Idle: "idle", Requesting: "requesting", Active: "active", State(9): "unknown"} {
		b, _ := st.MarshalText()
		if string(b) != want {
			t.Errorf("%d -> %q, want %q", st, b, want)
		}
	}
}

func BenchmarkTick(b *testing.B) {
	shared := spectrum.NewShared()
	s, err := New(DefaultConfig(visual.Desktop, visual.Sphere), shared, nil, clock.NewManual(0))
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()
	for b.Loop() {
		s.Tick()
	}
}
