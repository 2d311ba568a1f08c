// SPDX-License-Identifier: MIT
/*
Package scene composes the visual components into one animated scene and
owns the activation state machine.

	Idle -> Requesting -> Active -> Idle

SetActive(true) starts capture on its own goroutine; frames keep showing
idle motion while the request is pending. A capture or peer failure puts
the scene back to Idle and raises an error Notice. Every Tick reads the
shared frequency buffer once and hands the same snapshot to every
component.
*/
package scene

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ambience/internal/analysis"
	"ambience/internal/clock"
	"ambience/internal/log"
	"ambience/internal/spectrum"
	"ambience/internal/visual"
)

var logger = log.New("scene")

// ErrClosed is returned by SetActive after Close.
var ErrClosed = errors.New("scene closed")

// State is the activation state shared by every component.
type State int32

const (
	Idle State = iota
	Requesting
	Active
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// MarshalText makes State readable on the wire.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Capture is the audio source the scene switches on and off.
// *audio.Source satisfies it.
type Capture interface {
	Start(ctx context.Context) error
	Stop() error
}

// Peer is a collaborator that opens and closes with the activation flag,
// such as a conversational voice session.
type Peer interface {
	Open(ctx context.Context) error
	Close() error
}

// Notice is a short user-facing message.
type Notice struct {
	Level   string    `json:"level" msgpack:"level"`
	Message string    `json:"message" msgpack:"message"`
	Time    time.Time `json:"time" msgpack:"time"`
}

// Event reports a state change, with a Notice when one was raised.
type Event struct {
	State  State   `json:"state" msgpack:"state"`
	Notice *Notice `json:"notice,omitempty" msgpack:"notice,omitempty"`
}

// Scene is a VisualizationScene.
type Scene struct {
	cfg     Config
	shared  *spectrum.Shared
	capture Capture
	peers   []Peer
	clock   clock.Clock
	layout  Layout

	mu        sync.Mutex
	state     State
	gen       uint64
	pointer   visual.Pointer
	peersOpen []Peer
	observers map[int]func(Event)
	nextObs   int
	closed    bool
	wg        sync.WaitGroup
	reqMu     sync.Mutex    // One activation request in flight at a time.
	releasing chan struct{} // Closed when the latest deactivation has stopped capture.

	tickMu    sync.Mutex
	particles *visual.ParticleField
	ring      *visual.BarField
	line      *visual.BarField
	mesh      *visual.MorphingMesh
	frameSeq  uint64
	closeOnce sync.Once
}

// New builds every component for cfg. capture may be nil, in which case
// activation always fails with a Notice.
func New(cfg Config, shared *spectrum.Shared, capture Capture, clk clock.Clock, peers ...Peer) (*Scene, error) {
	if shared == nil {
		return nil, errors.New("scene needs shared audio state")
	}
	if clk == nil {
		clk = clock.New()
	}

	particles, err := visual.NewParticleField(cfg.Particles)
	if err != nil {
		return nil, fmt.Errorf("particle field: %w", err)
	}
	ring, err := visual.NewBarField(cfg.Ring)
	if err != nil {
		return nil, fmt.Errorf("ring bars: %w", err)
	}
	var line *visual.BarField
	if cfg.Line != nil {
		if line, err = visual.NewBarField(*cfg.Line); err != nil {
			return nil, fmt.Errorf("line bars: %w", err)
		}
	}
	mesh := visual.NewMorphingMesh(cfg.Mesh)

	s := &Scene{
		cfg:       cfg,
		shared:    shared,
		capture:   capture,
		peers:     peers,
		clock:     clk,
		particles: particles,
		ring:      ring,
		line:      line,
		mesh:      mesh,
		observers: make(map[int]func(Event)),
	}
	s.layout = Layout{
		Tier:          cfg.Tier.String(),
		Camera:        cameraFor(cfg.Tier),
		Lights:        defaultLights(),
		Particles:     particles.Len(),
		Distribution:  cfg.Particles.Distribution.String(),
		MaxRadius:     cfg.Particles.MaxRadius,
		RingBars:      ring.Bases(),
		RingRadius:    cfg.Ring.Radius,
		MeshSize:      mesh.Config().Size,
		FrequencyBins: shared.Read().Len(),
	}
	if line != nil {
		s.layout.LineBars = line.Bases()
	}

	logger.Infof("scene ready: tier %s, %d particles (%s), %d ring bars",
		cfg.Tier, particles.Len(), cfg.Particles.Distribution, ring.Len())
	return s, nil
}

// Describe returns the static layout.
func (s *Scene) Describe() Layout { return s.layout }

// State returns the activation state.
func (s *Scene) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for every Event and returns a function that
// removes it. fn runs without scene locks held and must not block.
func (s *Scene) Subscribe(fn func(Event)) (cancel func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// setStateLocked changes state and returns the observers to notify.
func (s *Scene) setStateLocked(st State) []func(Event) {
	s.state = st
	fns := make([]func(Event), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	return fns
}

func notify(fns []func(Event), ev Event) {
	for _, fn := range fns {
		fn(ev)
	}
}

// SetActive drives the state machine. Activation returns once the request
// is in flight; deactivation stops capture before it returns. Repeating the
// current value is a no-op.
func (s *Scene) SetActive(ctx context.Context, active bool) error {
	if active {
		return s.activate(ctx)
	}
	s.deactivate()
	return nil
}

func (s *Scene) activate(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state != Idle {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	after := s.releasing
	fns := s.setStateLocked(Requesting)
	s.wg.Add(1)
	s.mu.Unlock()

	notify(fns, Event{State: Requesting})
	go s.request(ctx, gen, after)
	return nil
}

// request acquires capture and opens the peers. It never touches the
// render path. It waits for the deactivation before it to finish, and
// requests run one at a time so a superseded request can release capture
// without touching a newer session.
func (s *Scene) request(ctx context.Context, gen uint64, after <-chan struct{}) {
	defer s.wg.Done()
	if after != nil {
		<-after
	}
	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	if !s.current(gen) {
		return
	}

	var (
		notice *Notice
		opened []Peer
	)
	if s.capture == nil {
		notice = errorNotice("could not access microphone: no capture source")
	} else if err := s.capture.Start(ctx); err != nil {
		notice = errorNotice("could not access microphone: " + err.Error())
	} else {
		for _, p := range s.peers {
			if err := p.Open(ctx); err != nil {
				notice = errorNotice("could not open voice session: " + err.Error())
				break
			}
			opened = append(opened, p)
		}
	}

	s.mu.Lock()
	if s.gen != gen {
		// Deactivated or closed while requesting.
		s.mu.Unlock()
		logger.Debugf("activation %d superseded", gen)
		s.release(opened)
		return
	}
	if notice != nil {
		fns := s.setStateLocked(Idle)
		s.mu.Unlock()
		logger.Warnf("%s", notice.Message)
		s.release(opened)
		notify(fns, Event{State: Idle, Notice: notice})
		return
	}
	s.peersOpen = opened
	fns := s.setStateLocked(Active)
	s.mu.Unlock()

	logger.Infof("scene active")
	notify(fns, Event{State: Active})
}

func (s *Scene) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

func (s *Scene) deactivate() {
	s.mu.Lock()
	if s.state == Idle {
		s.mu.Unlock()
		return
	}
	s.gen++
	peers := s.peersOpen
	s.peersOpen = nil
	done := make(chan struct{})
	s.releasing = done
	fns := s.setStateLocked(Idle)
	s.mu.Unlock()

	s.release(peers)
	close(done)
	logger.Infof("scene idle")
	notify(fns, Event{State: Idle})
}

// release stops capture and closes peers. Errors are logged only.
func (s *Scene) release(peers []Peer) {
	if s.capture != nil {
		if err := s.capture.Stop(); err != nil {
			logger.Debugf("stop capture: %v", err)
		}
	}
	for _, p := range peers {
		if err := p.Close(); err != nil {
			logger.Debugf("close peer: %v", err)
		}
	}
}

func errorNotice(msg string) *Notice {
	return &Notice{Level: "error", Message: msg, Time: time.Now()}
}

// SetPointer records the pointer in normalized device coordinates,
// clamped to [-1, 1].
func (s *Scene) SetPointer(x, y float64) {
	s.mu.Lock()
	s.pointer = visual.Pointer{X: clampUnit(x), Y: clampUnit(y), Active: true}
	s.mu.Unlock()
}

// ClearPointer removes the pointer from the scene.
func (s *Scene) ClearPointer() {
	s.mu.Lock()
	s.pointer = visual.Pointer{}
	s.mu.Unlock()
}

func clampUnit(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < -1:
		return -1
	case v > 1:
		return 1
	default:
		return v
	}
}

// Tick advances every component to the clock's current time and returns
// the resulting frame. All components see the same buffer.
func (s *Scene) Tick() *Frame {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	t := s.clock.Elapsed()
	buf := s.shared.Read()

	s.mu.Lock()
	state, ptr := s.state, s.pointer
	s.mu.Unlock()
	active := state == Active

	s.particles.Update(t, buf, active, ptr)
	s.ring.Update(t, buf, active)
	if s.line != nil {
		s.line.Update(t, buf, active)
	}
	s.mesh.Update(t, buf, active)

	s.frameSeq++
	f := &Frame{
		Seq:       s.frameSeq,
		Time:      t,
		State:     state,
		BufferSeq: buf.Seq(),
		Particles: s.particles.Data(),
		Ring:      s.ring.Bars(),
		Mesh:      s.mesh.State(),
	}
	if s.line != nil {
		f.Line = s.line.Bars()
	}
	if active {
		f.Bands = analysis.BandLevels(buf, s.cfg.Bands, s.cfg.SampleRate, s.cfg.FFTSize)
	}
	return f
}

// Close stops capture, closes any open peers and waits for a pending
// activation to finish. It is idempotent and safe if capture never started.
func (s *Scene) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.gen++
		peers := s.peersOpen
		s.peersOpen = nil
		var fns []func(Event)
		if s.state != Idle {
			fns = s.setStateLocked(Idle)
		}
		s.mu.Unlock()

		s.release(peers)
		s.wg.Wait()
		notify(fns, Event{State: Idle})
		logger.Infof("scene closed")
	})
	return nil
}
