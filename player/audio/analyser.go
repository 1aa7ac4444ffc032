package audio

import (
	"encoding/binary"
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"github.com/dgnsrekt/narrate/player"
)

// Analyser defaults, matching a fresh WebAudio AnalyserNode.
const (
	DefaultFFTSize               = 2048
	DefaultMinDecibels           = -100.0
	DefaultMaxDecibels           = -30.0
	DefaultSmoothingTimeConstant = 0.8

	minFFTSize = 32
	maxFFTSize = 32768
)

// Analyser is a frequency-analysis node. It receives the PCM that flows from
// a media source to the output and computes a smoothed spectrum on demand.
type Analyser struct {
	mu sync.Mutex

	channels    int
	fftSize     int
	minDecibels float64
	maxDecibels float64
	smoothing   float64

	// ring holds the most recent fftSize mono samples
	ring []float64
	pos  int

	// partial frame bytes carried between writes
	carry []byte

	fft      *fourier.FFT
	scratch  []float64
	coeffs   []complex128
	smoothed []float64
}

// NewAnalyser creates an analyser for interleaved 16-bit PCM with the given
// number of channels.
func NewAnalyser(channels int) *Analyser {
	if channels <= 0 {
		channels = Channels
	}
	a := &Analyser{
		channels:    channels,
		minDecibels: DefaultMinDecibels,
		maxDecibels: DefaultMaxDecibels,
		smoothing:   DefaultSmoothingTimeConstant,
	}
	a.resize(DefaultFFTSize)
	return a
}

func (a *Analyser) resize(size int) {
	a.fftSize = size
	a.ring = make([]float64, size)
	a.pos = 0
	a.fft = fourier.NewFFT(size)
	a.scratch = make([]float64, size)
	a.coeffs = make([]complex128, size/2+1)
	a.smoothed = make([]float64, size/2)
}

// SetFFTSize sets the transform window size. It resets captured samples.
func (a *Analyser) SetFFTSize(size int) error {
	if size < minFFTSize || size > maxFFTSize || size&(size-1) != 0 {
		return player.ErrInvalidFFTSize
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resize(size)
	return nil
}

// SetDecibelRange sets the levels mapped to 0 and 255 in byte data.
func (a *Analyser) SetDecibelRange(min, max float64) error {
	if min >= max {
		return player.ErrInvalidDecibels
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.minDecibels, a.maxDecibels = min, max
	return nil
}

// SetSmoothingTimeConstant sets how much of the previous spectrum is kept.
func (a *Analyser) SetSmoothingTimeConstant(tc float64) error {
	if tc < 0 || tc > 1 || math.IsNaN(tc) {
		return player.ErrInvalidSmoothing
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.smoothing = tc
	return nil
}

// FFTSize returns the transform window size.
func (a *Analyser) FFTSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fftSize
}

// FrequencyBinCount returns half the FFT size.
func (a *Analyser) FrequencyBinCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fftSize / 2
}

// DecibelRange returns the configured minimum and maximum levels.
func (a *Analyser) DecibelRange() (min, max float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.minDecibels, a.maxDecibels
}

// SmoothingTimeConstant returns the configured smoothing.
func (a *Analyser) SmoothingTimeConstant() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.smoothing
}

// Write captures interleaved signed 16-bit little-endian PCM, mixed to mono.
// It never fails so it can sit inside an io.TeeReader.
func (a *Analyser) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	frame := a.channels * BytesPerSample
	data := p
	if len(a.carry) > 0 {
		data = append(a.carry, p...)
		a.carry = nil
	}

	n := len(data) - len(data)%frame
	for off := 0; off < n; off += frame {
		var sum float64
		for c := 0; c < a.channels; c++ {
			s := int16(binary.LittleEndian.Uint16(data[off+c*BytesPerSample:]))
			sum += float64(s) / 32768
		}
		a.ring[a.pos] = sum / float64(a.channels)
		a.pos = (a.pos + 1) % a.fftSize
	}
	if n < len(data) {
		a.carry = append([]byte(nil), data[n:]...)
	}
	return len(p), nil
}

// Reset clears captured samples and smoothing history.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	clear(a.smoothed)
	a.pos = 0
	a.carry = nil
}

// analyse updates the smoothed magnitude spectrum. Callers hold a.mu.
func (a *Analyser) analyse() {
	n := a.fftSize
	for i := 0; i < n; i++ {
		a.scratch[i] = a.ring[(a.pos+i)%n]
	}
	window.Blackman(a.scratch)
	a.coeffs = a.fft.Coefficients(a.coeffs, a.scratch)

	tc := a.smoothing
	for k := range a.smoothed {
		re, im := real(a.coeffs[k]), imag(a.coeffs[k])
		mag := math.Sqrt(re*re+im*im) / float64(n)
		a.smoothed[k] = tc*a.smoothed[k] + (1-tc)*mag
	}
}

// FloatFrequencyData fills dst with the spectrum in decibels and returns the
// number of bins written.
func (a *Analyser) FloatFrequencyData(dst []float32) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.analyse()
	n := min(len(dst), len(a.smoothed))
	for k := 0; k < n; k++ {
		dst[k] = float32(toDecibels(a.smoothed[k]))
	}
	return n
}

// ByteFrequencyData fills dst with the spectrum scaled into 0..255 between
// the configured decibel range and returns the number of bins written.
func (a *Analyser) ByteFrequencyData(dst []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.analyse()
	n := min(len(dst), len(a.smoothed))
	scale := 255 / (a.maxDecibels - a.minDecibels)
	for k := 0; k < n; k++ {
		v := math.Floor(scale * (toDecibels(a.smoothed[k]) - a.minDecibels))
		switch {
		case v < 0 || math.IsNaN(v):
			dst[k] = 0
		case v > 255:
			dst[k] = 255
		default:
			dst[k] = byte(v)
		}
	}
	return n
}

func toDecibels(mag float64) float64 {
	if mag <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(mag)
}
