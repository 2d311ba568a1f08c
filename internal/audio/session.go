// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"ambience/internal/analysis"
	"ambience/internal/spectrum"

	"github.com/google/uuid"
)

// session owns everything one capture opened: the stream, the analysis
// node, the poll loop, the shared-state writer and an optional recorder.
// close releases them once, in the order poll, node, stream, recorder,
// writer.
type session struct {
	id       uuid.UUID
	channels int
	gate     *Gate
	interval time.Duration

	stream Stream
	node   analysis.Node
	writer *spectrum.Writer
	rec    *recorder

	mono []float32

	cancel context.CancelFunc
	wg     sync.WaitGroup

	blocks    atomic.Uint64
	gated     atomic.Uint64
	publishes atomic.Uint64

	closeOnce sync.Once
}

// process is the Sink handed to the backend. It records the raw block,
// applies the gate and feeds the mono downmix to the node.
func (s *session) process(block []int32) {
	s.blocks.Add(1)
	if s.rec != nil {
		s.rec.Write(block)
	}

	frames := len(block) / s.channels
	if cap(s.mono) < frames {
		s.mono = make([]float32, frames)
	}
	mono := s.mono[:frames]

	if !s.gate.Open(block) {
		s.gated.Add(1)
		clear(mono)
	} else {
		const norm = 1.0 / float64(math.MaxInt32)
		scale := norm / float64(s.channels)
		for f := range mono {
			var sum int64
			for c := range s.channels {
				sum += int64(block[f*s.channels+c])
			}
			mono[f] = float32(float64(sum) * scale)
		}
	}
	s.node.Write(mono)
}

// startPolling launches the loop that publishes fresh bins every interval.
func (s *session) startPolling() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	bins := make([]uint8, s.node.FrequencyBinCount())
	ticker := time.NewTicker(s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n := s.node.ByteFrequencyData(bins)
				s.writer.Publish(bins[:n])
				s.publishes.Add(1)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// close is safe to call more than once and on a partially opened session.
func (s *session) close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()

		if s.node != nil {
			s.node.Disconnect()
		}
		if s.stream != nil {
			if err := s.stream.Stop(); err != nil {
				logger.Debugf("session %s: stop stream: %v", s.id, err)
			}
			if err := s.stream.Close(); err != nil {
				logger.Debugf("session %s: close stream: %v", s.id, err)
			}
		}
		if s.rec != nil {
			if err := s.rec.Close(); err != nil {
				logger.Warnf("session %s: close recording: %v", s.id, err)
			} else {
				logger.Infof("session %s: recording saved to %s", s.id, s.rec.path)
			}
		}
		if s.writer != nil {
			s.writer.Reset()
			s.writer.Release()
		}
		logger.Debugf("session %s closed after %d blocks, %d publishes", s.id, s.blocks.Load(), s.publishes.Load())
	})
}
