// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"strings"
	"sync"

	"ambience/internal/log"
	"ambience/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

var logger = log.New("analysis")

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

func (w WindowFunc) String() string {
	switch w {
	case BartlettHann:
		return "BartlettHann"
	case Blackman:
		return "Blackman"
	case BlackmanNuttall:
		return "BlackmanNuttall"
	case Hann:
		return "Hann"
	case Hamming:
		return "Hamming"
	case Lanczos:
		return "Lanczos"
	case Nuttall:
		return "Nuttall"
	default:
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns Blackman and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Blackman, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window. Unknown types fall
// back to Blackman.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// The gonum window funcs scale in place, so start from ones.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		logger.Warnf("unknown window function type %d, defaulting to Blackman", windowType)
		window.Blackman(coeffs)
	}
}

// Config describes an analyser. The defaults reproduce a browser
// AnalyserNode.
type Config struct {
	FFTSize     int        // Power of two; yields FFTSize/2 bins.
	SampleRate  float64    // Used only for bin frequencies.
	Window      WindowFunc // Applied before every transform.
	Smoothing   float64    // Time constant in [0, 1].
	MinDecibels float64    // Maps to byte 0.
	MaxDecibels float64    // Maps to byte 255.
}

// DefaultConfig returns fftSize 256, Blackman, smoothing 0.8 and a
// [-100, -30] dB byte range.
func DefaultConfig(sampleRate float64) Config {
	return Config{
		FFTSize:     256,
		SampleRate:  sampleRate,
		Window:      Blackman,
		Smoothing:   0.8,
		MinDecibels: -100,
		MaxDecibels: -30,
	}
}

var (
	errFFTSize   = errors.New("fft size must be a power of 2 between 32 and 32768")
	errSmoothing = errors.New("smoothing must be within [0, 1]")
	errDecibels  = errors.New("min decibels must be below max decibels")
)

// Analyser keeps the last FFTSize mono samples and turns them into smoothed
// byte magnitudes on demand. Write and ByteFrequencyData may run on
// different goroutines.
type Analyser struct {
	cfg  Config
	fft  *fourier.FFT
	mask int

	mu        sync.Mutex
	ring      []float64
	pos       int
	windowed  []float64
	window    []float64
	coeffs    []complex128
	smoothed  []float64
	connected bool
}

var _ Node = (*Analyser)(nil)

// NewAnalyser validates cfg and pre-allocates every buffer used per call.
func NewAnalyser(cfg Config) (*Analyser, error) {
	if !bitint.IsPowerOfTwo(cfg.FFTSize) || cfg.FFTSize < 32 || cfg.FFTSize > 32768 {
		return nil, fmt.Errorf("%w, got %d", errFFTSize, cfg.FFTSize)
	}
	if cfg.Smoothing < 0 || cfg.Smoothing > 1 || math.IsNaN(cfg.Smoothing) {
		return nil, fmt.Errorf("%w, got %v", errSmoothing, cfg.Smoothing)
	}
	if !(cfg.MinDecibels < cfg.MaxDecibels) {
		return nil, fmt.Errorf("%w, got [%v, %v]", errDecibels, cfg.MinDecibels, cfg.MaxDecibels)
	}

	n := cfg.FFTSize
	win := make([]float64, n)
	applyWindow(win, cfg.Window)

	logger.Debugf("analyser size %d, window %v, smoothing %.2f", n, cfg.Window, cfg.Smoothing)

	return &Analyser{
		cfg:       cfg,
		fft:       fourier.NewFFT(n),
		mask:      bitint.Mask(n),
		ring:      make([]float64, n),
		windowed:  make([]float64, n),
		window:    win,
		coeffs:    make([]complex128, n/2+1),
		smoothed:  make([]float64, n/2),
		connected: true,
	}, nil
}

// Config returns the configuration the analyser was built with.
func (a *Analyser) Config() Config { return a.cfg }

// FrequencyBinCount returns FFTSize/2.
func (a *Analyser) FrequencyBinCount() int { return a.cfg.FFTSize / 2 }

// FrequencyForBin returns the centre frequency of bin k in Hz.
func (a *Analyser) FrequencyForBin(k int) float64 {
	if k < 0 || k >= a.FrequencyBinCount() {
		return 0
	}
	return float64(k) * a.cfg.SampleRate / float64(a.cfg.FFTSize)
}

// Write appends mono samples to the analysis window. It is a no-op once
// the analyser is disconnected.
func (a *Analyser) Write(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return
	}
	for _, s := range samples {
		a.ring[a.pos] = float64(s)
		a.pos = (a.pos + 1) & a.mask
	}
}

// ByteFrequencyData transforms the current window and writes one byte per
// bin into dst. Each call advances the smoothing by one step. It returns
// the number of bins written.
func (a *Analyser) ByteFrequencyData(dst []uint8) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.cfg.FFTSize
	for i := range n {
		a.windowed[i] = a.ring[(a.pos+i)&a.mask] * a.window[i]
	}
	a.fft.Coefficients(a.coeffs, a.windowed)

	tau := a.cfg.Smoothing
	scale := 255 / (a.cfg.MaxDecibels - a.cfg.MinDecibels)
	bins := min(len(dst), len(a.smoothed))
	for k := range a.smoothed {
		mag := cmplx.Abs(a.coeffs[k]) / float64(n)
		s := tau*a.smoothed[k] + (1-tau)*mag
		if math.IsNaN(s) || math.IsInf(s, 0) {
			s = 0
		}
		a.smoothed[k] = s
		if k < bins {
			dst[k] = toByte((20*math.Log10(s) - a.cfg.MinDecibels) * scale)
		}
	}
	return bins
}

func toByte(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

// Disconnect detaches the analyser from its input. Later writes are dropped.
func (a *Analyser) Disconnect() {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()
}

// Connected reports whether writes still reach the analysis window.
func (a *Analyser) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}
