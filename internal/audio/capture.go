// Package audio provides audio capture functionality using malgo.
package audio

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// hardwarePeriodMs is the hardware callback period the rate-selection
// policy requires: a 10ms chunk whether the device opens at 48kHz (to
// match the denoiser's 480-sample chunking) or at 16kHz directly.
const hardwarePeriodMs = 10

// Ring buffer configuration constants.
const (
	// ringBufferSize is the number of sample chunks the ring buffer can
	// hold. At a 10ms hardware period this provides a little over a
	// second of buffering ahead of the consumer goroutine, enough to
	// absorb scheduling jitter without growing unbounded.
	ringBufferSize = 128

	// maxSamplesPerChunk caps samples per audio callback chunk, bounding
	// allocation in the callback path regardless of device period.
	maxSamplesPerChunk = 2048
)

// audioChunk is one chunk of audio samples held in the ring buffer.
type audioChunk struct {
	samples []float32
	len     int
}

// ringBuffer is a lock-free single-producer single-consumer ring buffer
// for audio, using atomics instead of a mutex so the hardware callback
// never blocks on the consumer.
type ringBuffer struct {
	chunks    [ringBufferSize]audioChunk
	head      atomic.Uint64
	tail      atomic.Uint64
	dropCount atomic.Uint64
}

func newRingBuffer() *ringBuffer {
	rb := &ringBuffer{}
	for i := range rb.chunks {
		rb.chunks[i].samples = make([]float32, maxSamplesPerChunk)
	}
	return rb
}

// push adds samples to the ring buffer. Returns false if full, in which
// case the chunk is dropped rather than blocking the hardware thread.
func (rb *ringBuffer) push(samples []float32) bool {
	head := rb.head.Load()
	tail := rb.tail.Load()

	if head-tail >= ringBufferSize {
		count := rb.dropCount.Add(1)
		if count%100 == 0 {
			log.Printf("[audio] capture ring buffer full, dropped %d chunks", count)
		}
		return false
	}

	slot := &rb.chunks[head%ringBufferSize]
	n := copy(slot.samples, samples)
	slot.len = n

	rb.head.Add(1)
	return true
}

// pop retrieves samples from the ring buffer, or nil if empty.
func (rb *ringBuffer) pop() []float32 {
	head := rb.head.Load()
	tail := rb.tail.Load()

	if head == tail {
		return nil
	}

	slot := &rb.chunks[tail%ringBufferSize]
	samples := slot.samples[:slot.len]

	rb.tail.Add(1)
	return samples
}

// Capturer owns a single malgo capture device and hands decoded float32
// samples to a callback off the hardware thread via a ring buffer, so a
// slow consumer never stalls the audio callback.
type Capturer struct {
	ctx              *malgo.AllocatedContext
	device           *malgo.Device
	sampleRate       uint32 // requested target rate, per the rate-selection policy
	deviceSampleRate uint32 // actual rate negotiated with the device
	onSamples        func(samples []float32)
	running          atomic.Bool
	ringBuf          *ringBuffer
	stopChan         chan struct{}
	wg               sync.WaitGroup
	resampler        *PolyphaseResampler // anti-aliasing downsampler, set only when the device rate exceeds the target
}

// NewCapturer creates a capturer targeting sampleRate. sampleRate is
// either 48000 (denoiser available) or 16000 (denoiser disabled), per
// Source's rate-selection policy; the device may still negotiate a
// different rate, in which case capture falls back to resampling.
func NewCapturer(sampleRate int, onSamples func(samples []float32)) (*Capturer, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	c := &Capturer{
		ctx:        ctx,
		sampleRate: uint32(sampleRate),
		onSamples:  onSamples,
		ringBuf:    newRingBuffer(),
		stopChan:   make(chan struct{}),
	}

	return c, nil
}

// Start begins audio capture from the default microphone. Audio is
// buffered in a ring buffer and processed by a dedicated goroutine to
// avoid blocking the audio callback.
func (c *Capturer) Start() error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = c.sampleRate
	deviceConfig.PeriodSizeInMilliseconds = hardwarePeriodMs

	// Query the actual negotiated rate before wiring the real callback;
	// the device may not honor the requested rate exactly.
	tempDevice, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{})
	if err != nil {
		return fmt.Errorf("failed to query capture device: %w", err)
	}
	c.deviceSampleRate = tempDevice.SampleRate()
	tempDevice.Uninit()

	if c.deviceSampleRate != c.sampleRate {
		if c.deviceSampleRate > c.sampleRate {
			c.resampler = NewPolyphaseResampler(int(c.deviceSampleRate), int(c.sampleRate))
			log.Printf("[audio] resampling %d Hz -> %d Hz (polyphase)", c.deviceSampleRate, c.sampleRate)
		} else {
			log.Printf("[audio] resampling %d Hz -> %d Hz (linear)", c.deviceSampleRate, c.sampleRate)
		}
	}

	// Runs on the audio thread; must be fast and non-blocking.
	onRecvFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		if !c.running.Load() {
			return
		}

		pooledSamples := bytesToFloat32(pInputSamples)
		if len(pooledSamples) > 0 {
			c.ringBuf.push(pooledSamples)
		}
		returnFloat32Buffer(pooledSamples)
	}

	callbacks := malgo.DeviceCallbacks{
		Data: onRecvFrames,
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	c.device = device
	c.running.Store(true)

	c.wg.Add(1)
	go c.processLoop()

	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	return nil
}

// processLoop drains the ring buffer and calls onSamples, on a goroutine
// separate from the audio callback.
func (c *Capturer) processLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopChan:
			return
		default:
			samples := c.ringBuf.pop()
			if samples != nil && c.onSamples != nil && c.running.Load() {
				samplesCopy := make([]float32, len(samples))
				copy(samplesCopy, samples)

				if c.resampler != nil {
					samplesCopy = c.resampler.Resample(samplesCopy)
				} else if c.deviceSampleRate != c.sampleRate {
					samplesCopy = ResampleInPlace(samplesCopy, int(c.deviceSampleRate), int(c.sampleRate))
				}

				c.onSamples(samplesCopy)
			} else {
				select {
				case <-c.stopChan:
					return
				case <-time.After(100 * time.Microsecond):
				}
			}
		}
	}
}

// Stop halts audio capture and releases the device.
func (c *Capturer) Stop() {
	c.running.Store(false)

	select {
	case <-c.stopChan:
	default:
		close(c.stopChan)
	}

	c.wg.Wait()

	if c.device != nil {
		c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
}

// Close releases all audio resources.
func (c *Capturer) Close() {
	c.Stop()
	if c.ctx != nil {
		_ = c.ctx.Uninit()
		c.ctx.Free()
		c.ctx = nil
	}
}

// float32Pool reduces allocations in the audio callback hot path.
var float32Pool = sync.Pool{
	New: func() interface{} {
		buf := make([]float32, maxSamplesPerChunk)
		return &buf
	},
}

// bytesToFloat32 converts raw bytes to float32 samples. The returned
// slice is only valid until the next call; the caller must copy it.
func bytesToFloat32(data []byte) []float32 {
	numSamples := len(data) / 4
	pBuf := float32Pool.Get().(*[]float32)

	if cap(*pBuf) < numSamples {
		*pBuf = make([]float32, numSamples)
	}
	samples := (*pBuf)[:numSamples]

	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}

// returnFloat32Buffer returns a buffer to the pool. Must be called after
// the samples from bytesToFloat32 are no longer needed.
func returnFloat32Buffer(samples []float32) {
	if samples == nil {
		return
	}
	buf := samples[:cap(samples)]
	float32Pool.Put(&buf)
}
