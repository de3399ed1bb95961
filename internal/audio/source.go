package audio

import (
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/mjolnir-labs/heisenberg-core/internal/apperr"
)

// FrameSamples is the canonical output frame length: 1280 samples (80ms)
// at 16 kHz, matching the wake-word engine's native inference window.
const FrameSamples = 1280

// OutputSampleRate is the fixed rate every Frame is delivered at,
// regardless of the negotiated hardware capture rate.
const OutputSampleRate = 16000

// queueCapacity bounds the number of pending output frames. Overflow
// drops the incoming frame (drop-newest), never the oldest, because the
// DSP work producing it is already sunk.
const queueCapacity = 100

// Denoiser removes background noise from 480-sample (10ms) chunks at
// 48 kHz. A real implementation wraps an RNN-based noise suppressor;
// nothing in the retrieved example pack binds one, so the default
// implementation here is SpectralFloorDenoiser, a stdlib stage that
// attenuates chunks whose energy sits near a tracked noise floor (see
// DESIGN.md for why no third-party suppressor is wired).
type Denoiser interface {
	Denoise(chunk []float32) []float32
}

// Frame is one canonical 16kHz mono int16 output frame.
type Frame struct {
	Samples []int16
}

// Source is the audio source (C1): it opens a capture device, runs the
// DSP pipeline described in the component design, and exposes frames
// through a bounded, single-reader queue.
type Source struct {
	capturer *Capturer
	denoiser Denoiser

	useDenoise bool

	mu      sync.Mutex
	queue   [][]int16
	closed  bool
	started atomic.Bool

	notify chan struct{}

	to16   *Resampler
	pcmBuf []int16 // carries over partial 480-sample denoise chunks
}

// NewSource creates a Source. denoiser may be nil, in which case the
// denoise stage is skipped and the pipeline runs at 16 kHz throughout.
func NewSource(denoiser Denoiser) *Source {
	return &Source{
		denoiser:   denoiser,
		useDenoise: denoiser != nil,
		notify:     make(chan struct{}, 1),
	}
}

// Start opens the capture device at the rate-selection policy's
// preferred rate (48 kHz with a 10ms chunk if denoising is available,
// otherwise 16 kHz), clears the queue, and begins producing frames.
// Idempotent.
func (s *Source) Start() error {
	if s.started.Load() {
		return nil
	}

	preferredRate := OutputSampleRate
	if s.useDenoise {
		preferredRate = 48000
	}

	capturer, err := NewCapturer(preferredRate, s.onSamples)
	if err != nil {
		return apperr.NewAudioError("open capture device", err)
	}
	if err := capturer.Start(); err != nil {
		return apperr.NewAudioError("start capture device", err)
	}

	s.mu.Lock()
	s.queue = nil
	s.closed = false
	s.mu.Unlock()

	s.capturer = capturer
	if s.useDenoise {
		s.to16 = NewResampler(48000, OutputSampleRate)
	}
	s.started.Store(true)
	return nil
}

// Stop halts production, closes the device, and drops any in-flight
// frame. Idempotent.
func (s *Source) Stop() {
	if !s.started.CompareAndSwap(true, false) {
		return
	}
	if s.capturer != nil {
		s.capturer.Close()
		s.capturer = nil
	}

	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// ReadFrame suspends until a frame is available, returning nil only
// after Stop.
func (s *Source) ReadFrame() *Frame {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			samples := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return &Frame{Samples: samples}
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return nil
		}
		<-s.notify
	}
}

// onSamples is the device callback's consumer hook (already off the
// hardware thread, per Capturer's design, which resamples to the
// requested target rate before invoking this callback): it runs the
// remaining DSP pipeline stages and enqueues the resulting 16kHz int16
// frames. Samples arrive at 48kHz when denoising is enabled, 16kHz
// otherwise.
func (s *Source) onSamples(samples []float32) {
	pcm := samples

	if s.useDenoise {
		pcm = s.denoiseChunks(pcm)
		pcm = s.to16.Resample(pcm)
	}

	int16Samples := normalizeAndConvert(pcm)
	s.pcmBuf = append(s.pcmBuf, int16Samples...)

	for len(s.pcmBuf) >= FrameSamples {
		frame := make([]int16, FrameSamples)
		copy(frame, s.pcmBuf[:FrameSamples])
		s.pcmBuf = s.pcmBuf[FrameSamples:]
		s.enqueue(frame)
	}
}

// denoiseChunkSamples is 480 samples (10ms) at 48kHz.
const denoiseChunkSamples = 480

// denoiseChunks runs the denoiser over fixed 480-sample sub-chunks,
// passing any trailing remainder through unmodified.
func (s *Source) denoiseChunks(samples []float32) []float32 {
	out := make([]float32, 0, len(samples))
	i := 0
	for ; i+denoiseChunkSamples <= len(samples); i += denoiseChunkSamples {
		out = append(out, s.denoiser.Denoise(samples[i:i+denoiseChunkSamples])...)
	}
	out = append(out, samples[i:]...)
	return out
}

// normalizeAndConvert applies RMS normalization (gain = min(0.1/rms,
// 10.0), skipped below a near-silence floor to avoid boosting hiss) and
// converts to int16.
func normalizeAndConvert(samples []float32) []int16 {
	if len(samples) == 0 {
		return nil
	}

	var sumSquares float64
	for _, v := range samples {
		sumSquares += float64(v) * float64(v)
	}
	rms := math.Sqrt(sumSquares / float64(len(samples)))

	gain := float32(1.0)
	if rms > 0.003 {
		gain = float32(0.1 / rms)
		if gain > 10.0 {
			gain = 10.0
		}
	}

	out := make([]int16, len(samples))
	for i, v := range samples {
		scaled := v * gain
		if scaled > 1.0 {
			scaled = 1.0
		} else if scaled < -1.0 {
			scaled = -1.0
		}
		out[i] = int16(scaled * 32767)
	}
	return out
}

// enqueue appends frame to the bounded output queue, dropping the
// incoming frame (not the oldest queued one) on overflow.
func (s *Source) enqueue(frame []int16) {
	s.mu.Lock()
	if len(s.queue) >= queueCapacity {
		s.mu.Unlock()
		log.Println("[audio] output queue full, dropping frame")
		return
	}
	s.queue = append(s.queue, frame)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}
