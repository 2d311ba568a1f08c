// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// RecordingConfig enables writing every capture session to a WAV file.
type RecordingConfig struct {
	Enabled  bool
	Dir      string
	BitDepth int // 16, 24 or 32.
}

// RecordingPath names the file for a session started at now.
func RecordingPath(dir string, now time.Time, id uuid.UUID) string {
	return filepath.Join(dir, fmt.Sprintf("session-%s-%s.wav",
		now.UTC().Format("20060102-150405"), id.String()[:8]))
}

// recorder writes the raw captured blocks of one session. Write runs on the
// audio callback; Close may run concurrently from Stop.
type recorder struct {
	path  string
	shift uint

	mu         sync.Mutex
	outputFile *os.File
	wavEncoder *wav.Encoder
	sampleBuf  *audio.IntBuffer // Reusable buffer for format conversion
	err        error
}

func newRecorder(path string, cfg StreamConfig, bitDepth int) (*recorder, error) {
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	channels := max(cfg.Channels, 1)
	return &recorder{
		path:       path,
		shift:      uint(32 - bitDepth),
		outputFile: file,
		wavEncoder: wav.NewEncoder(file, int(cfg.SampleRate), bitDepth, channels, 1),
		sampleBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  int(cfg.SampleRate),
			},
			Data:           make([]int, cfg.FramesPerBuffer*channels),
			SourceBitDepth: bitDepth,
		},
	}, nil
}

// Write appends one interleaved block. After the first error the recorder
// drops further blocks and reports that error from Close.
func (r *recorder) Write(block []int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wavEncoder == nil || r.err != nil {
		return
	}

	if cap(r.sampleBuf.Data) < len(block) {
		r.sampleBuf.Data = make([]int, len(block))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(block)]
	for i, sample := range block {
		r.sampleBuf.Data[i] = int(sample >> r.shift)
	}

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		r.err = err
		logger.Errorf("writing %s: %v", r.path, err)
	}
}

// Close finalizes the WAV header and closes the file. It is idempotent.
func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wavEncoder == nil {
		return nil
	}

	err := r.wavEncoder.Close()
	r.wavEncoder = nil
	if cerr := r.outputFile.Close(); err == nil {
		err = cerr
	}
	r.outputFile = nil
	if err == nil {
		err = r.err
	}
	return err
}
