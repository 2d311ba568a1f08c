// SPDX-License-Identifier: MIT
package scene

import (
	"sync"
	"time"

	"ambience/internal/transport"
)

// Message types sent by the render loop and the scene's observers.
const (
	TypeLayout = "layout"
	TypeFrame  = "frame"
	TypeState  = "state"
	TypeNotice = "notice"
)

// Loop ticks a scene at a fixed rate and sends every frame to a transport.
// It runs in a separate goroutine managed by Start and Stop.
type Loop struct {
	scene    *Scene
	sink     transport.Transport
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex

	frames  uint64
	dropped uint64
}

// NewLoop returns a stopped loop at fps frames per second. fps outside
// (0, 240] falls back to 60.
func NewLoop(scene *Scene, sink transport.Transport, fps int) *Loop {
	if fps <= 0 || fps > 240 {
		logger.Warnf("invalid frame rate %d, using 60", fps)
		fps = 60
	}
	return &Loop{
		scene:    scene,
		sink:     sink,
		interval: time.Second / time.Duration(fps),
	}
}

// Interval returns the time between frames.
func (l *Loop) Interval() time.Duration { return l.interval }

// Start begins rendering. Starting a running loop is a no-op.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.ticker != nil {
		l.mu.Unlock()
		logger.Warnf("render loop already running")
		return
	}
	l.ticker = time.NewTicker(l.interval)
	l.doneChan = make(chan struct{})
	l.stopOnce = sync.Once{}
	ticker, done := l.ticker, l.doneChan
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		logger.Debugf("render loop started (%s per frame)", l.interval)
		for {
			select {
			case <-ticker.C:
				l.render()
			case <-done:
				return
			}
		}
	}()
}

func (l *Loop) render() {
	f := l.scene.Tick()
	l.frames++
	if err := l.sink.Send(transport.Envelope{Type: TypeFrame, Data: f}); err != nil {
		l.dropped++
		if l.dropped == 1 || l.dropped%600 == 0 {
			logger.Warnf("frame %d not sent (%d dropped): %v", f.Seq, l.dropped, err)
		}
	}
}

// Stop halts rendering and waits for the current frame to finish. It is
// safe to call more than once.
func (l *Loop) Stop() error {
	l.mu.Lock()
	if l.ticker == nil {
		l.mu.Unlock()
		return nil
	}
	l.stopOnce.Do(func() {
		close(l.doneChan)
		l.ticker.Stop()
		l.ticker = nil
	})
	l.mu.Unlock()

	l.wg.Wait()
	logger.Debugf("render loop stopped after %d frames", l.frames)
	return nil
}

// Close stops the loop.
func (l *Loop) Close() error { return l.Stop() }

// Forward subscribes a transport to the scene's events, sending a state
// message for every change and a notice message when one is raised.
func Forward(s *Scene, sink transport.Transport) (cancel func()) {
	return s.Subscribe(func(ev Event) {
		if err := sink.Send(transport.Envelope{Type: TypeState, Data: ev}); err != nil {
			logger.Debugf("state not sent: %v", err)
		}
		if ev.Notice != nil {
			if err := sink.Send(transport.Envelope{Type: TypeNotice, Data: ev.Notice}); err != nil {
				logger.Debugf("notice not sent: %v", err)
			}
		}
	})
}
