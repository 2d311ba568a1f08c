// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"sync"
	"time"
)

var errStreamClosed = errors.New("stream closed")

// pacedStream feeds generated blocks to a sink at the rate a device would,
// one block per FramesPerBuffer/SampleRate seconds. The file and tone
// backends share it.
type pacedStream struct {
	fill   func(block []int32) // Produces the next interleaved block.
	sink   Sink
	block  []int32
	period time.Duration

	mu       sync.Mutex
	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup
	closed   bool
}

func newPacedStream(cfg StreamConfig, sink Sink, fill func([]int32)) *pacedStream {
	period := time.Duration(float64(cfg.FramesPerBuffer) / cfg.SampleRate * float64(time.Second))
	if period <= 0 {
		period = 10 * time.Millisecond
	}
	return &pacedStream{
		fill:   fill,
		sink:   sink,
		block:  make([]int32, cfg.FramesPerBuffer*max(cfg.Channels, 1)),
		period: period,
	}
}

// Start begins delivering blocks. Starting a running stream is a no-op.
func (s *pacedStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}
	if s.ticker != nil {
		return nil
	}

	s.ticker = time.NewTicker(s.period)
	s.doneChan = make(chan struct{})
	ticker, done := s.ticker, s.doneChan

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ticker.C:
				s.fill(s.block)
				s.sink(s.block)
			case <-done:
				return
			}
		}
	}()
	return nil
}

// Stop halts delivery and waits until the sink is no longer called.
func (s *pacedStream) Stop() error {
	s.mu.Lock()
	if s.ticker == nil {
		s.mu.Unlock()
		return nil
	}
	close(s.doneChan)
	s.ticker.Stop()
	s.ticker = nil
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// Close stops the stream for good.
func (s *pacedStream) Close() error {
	err := s.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}
