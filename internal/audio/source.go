// SPDX-License-Identifier: MIT
/*
Package audio bridges an input device to the shared frequency state.

A Source opens at most one capture session at a time. Each session owns a
backend stream, an analysis node and a poll loop that publishes byte
magnitudes into a spectrum.Shared. The backend delivers int32 blocks on its
own real-time thread; the poll loop runs on a goroutine; neither touches
the render loop.

Thread Safety:
- Start and Stop may be called from any goroutine
- The audio callback only touches pre-allocated buffers and atomics
- Stop joins the poll loop before the stream is released
*/
package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ambience/internal/analysis"
	"ambience/internal/log"
	"ambience/internal/spectrum"

	"github.com/google/uuid"
)

var logger = log.New("capture")

// State is the lifecycle of a Source's session.
type State int32

const (
	Closed State = iota
	Opening
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Opening:
		return "opening"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

// Config describes every session a Source opens.
type Config struct {
	Stream        StreamConfig
	PollInterval  time.Duration
	Analysis      analysis.Config
	GateEnabled   bool
	GateThreshold float64
	Recording     RecordingConfig
}

// Stats is a snapshot of the current session's counters.
type Stats struct {
	State     State
	SessionID uuid.UUID
	Blocks    uint64 // Blocks delivered by the backend.
	Gated     uint64 // Blocks the gate turned into silence.
	Publishes uint64 // Buffers published to the shared state.
	Recording string // File being written, if any.
}

// Source is an AudioCaptureSource: Start opens a session, Stop releases it.
type Source struct {
	backend Backend
	shared  *spectrum.Shared
	cfg     Config
	gate    *Gate

	newNode func(analysis.Config) (analysis.Node, error)
	now     func() time.Time

	mu         sync.Mutex
	state      State
	gen        uint64
	sess       *session
	opening    chan struct{} // Closed once a pending Start has unwound.
	cancelOpen context.CancelFunc
}

// NewSource returns a closed Source publishing into shared.
func NewSource(backend Backend, shared *spectrum.Shared, cfg Config) *Source {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 16 * time.Millisecond
	}
	if cfg.Stream.Channels < 1 {
		cfg.Stream.Channels = 1
	}
	return &Source{
		backend: backend,
		shared:  shared,
		cfg:     cfg,
		gate:    NewGate(cfg.GateEnabled, cfg.GateThreshold),
		newNode: func(c analysis.Config) (analysis.Node, error) {
			return analysis.NewAnalyser(c)
		},
		now: time.Now,
	}
}

// Gate exposes the noise gate so it can be tuned while capturing.
func (s *Source) Gate() *Gate { return s.gate }

// Backend returns the device backend.
func (s *Source) Backend() Backend { return s.backend }

// State returns the current lifecycle state.
func (s *Source) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns the counters of the open session, if any.
func (s *Source) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{State: s.state}
	if s.sess != nil {
		st.SessionID = s.sess.id
		st.Blocks = s.sess.blocks.Load()
		st.Gated = s.sess.gated.Load()
		st.Publishes = s.sess.publishes.Load()
		if s.sess.rec != nil {
			st.Recording = s.sess.rec.path
		}
	}
	return st
}

// Start opens the device, builds the analysis node, claims the shared
// writer and begins polling. Opening may block (a permission prompt, a slow
// device) and runs without holding the lock, so Stop can abort it; Start
// then releases what it opened and returns ErrStartAborted. The source stays
// busy until that unwinding is done. On any failure nothing stays open.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Closed {
		s.mu.Unlock()
		return ErrSessionActive
	}
	s.state = Opening
	s.gen++
	gen := s.gen
	openCtx, cancel := context.WithCancel(ctx)
	opening := make(chan struct{})
	s.opening, s.cancelOpen = opening, cancel
	s.mu.Unlock()

	sess, err := s.open(openCtx)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		s.opening, s.cancelOpen = nil, nil
		close(opening)
	}()

	if s.gen != gen {
		if sess != nil {
			sess.close()
		}
		s.state = Closed
		logger.Infof("start aborted by stop")
		return ErrStartAborted
	}
	if err == nil && ctx.Err() != nil {
		sess.close()
		err = fmt.Errorf("%w: %w", ErrStartAborted, ctx.Err())
	}
	if err != nil {
		s.state = Closed
		logger.Warnf("start failed: %v", err)
		return err
	}

	s.sess = sess
	s.state = Open
	sess.startPolling()
	logger.Infof("session %s open (%s, %d bins every %s)",
		sess.id, s.backend.Name(), sess.node.FrequencyBinCount(), s.cfg.PollInterval)
	return nil
}

// open builds a session. Each failure unwinds what was already opened.
func (s *Source) open(ctx context.Context) (*session, error) {
	sess := &session{
		id:       uuid.New(),
		channels: s.cfg.Stream.Channels,
		gate:     s.gate,
		interval: s.cfg.PollInterval,
		mono:     make([]float32, s.cfg.Stream.FramesPerBuffer),
	}

	stream, err := s.backend.Open(ctx, s.cfg.Stream, sess.process)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
	}
	sess.stream = stream

	node, err := s.newNode(s.cfg.Analysis)
	if err != nil {
		sess.close()
		return nil, fmt.Errorf("%w: %w", ErrAnalysisNode, err)
	}
	sess.node = node

	writer, err := s.shared.Claim()
	if err != nil {
		sess.close()
		return nil, fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
	}
	sess.writer = writer

	if rc := s.cfg.Recording; rc.Enabled {
		path := RecordingPath(rc.Dir, s.now(), sess.id)
		rec, err := newRecorder(path, s.cfg.Stream, rc.BitDepth)
		if err != nil {
			logger.Warnf("recording disabled for session %s: %v", sess.id, err)
		} else {
			sess.rec = rec
		}
	}

	if err := stream.Start(); err != nil {
		sess.close()
		return nil, fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
	}
	return sess, nil
}

// Stop cancels the poll loop, disconnects the node, stops the stream,
// closes any recording and resets the shared buffer to zero. It is
// idempotent and safe before Start. A Stop during Start cancels the open,
// waits for that Start to release what it opened and makes it return
// ErrStartAborted.
func (s *Source) Stop() error {
	s.mu.Lock()
	switch s.state {
	case Opening:
		s.gen++
		opening := s.opening
		s.cancelOpen()
		s.mu.Unlock()
		<-opening
		return nil
	case Open:
		sess := s.sess
		s.sess = nil
		s.gen++
		s.state = Closed
		sess.close()
		logger.Infof("session %s stopped", sess.id)
	}
	s.mu.Unlock()
	return nil
}

// Close is Stop, for use as an io.Closer.
func (s *Source) Close() error {
	return s.Stop()
}
