// Package stt implements the speech-to-text engine (C4): a buffer that
// accumulates fed audio during an utterance and, on stop, dispatches a
// transcription through the configured model on a bounded worker pool so
// the caller driving the main loop's frame reads is never blocked on
// inference.
package stt

import (
	"log"
	"strings"
	"sync"

	"github.com/mjolnir-labs/heisenberg-core/internal/event"
	"github.com/mjolnir-labs/heisenberg-core/internal/wavutil"
)

// defaultWorkers is used when New is given a non-positive worker count.
const defaultWorkers = 1

// Model is the offline transcription oracle: given 16 kHz mono float32
// samples in [-1, 1] and a language hint, it returns zero or more
// segments of recognized text. A real implementation wraps
// sherpa.OfflineRecognizer; tests supply a stub.
type Model interface {
	Transcribe(samples []float32, language string) ([]string, error)
}

// Engine buffers fed audio between start_stream/stop_stream calls and
// drives Model for the final transcription. Transcription work runs off
// the caller's goroutine on a pool bounded to workers concurrent jobs.
type Engine struct {
	mu       sync.Mutex
	model    Model
	language string
	armed    bool
	buffer   []int16

	sampleRate int
	debugDump  bool
	debugDir   string

	out chan<- event.Event

	sem chan struct{}  // bounds concurrent transcription jobs to workers
	wg  sync.WaitGroup // in-flight transcription jobs, for Wait
}

// New creates an Engine backed by a pool of workers concurrent
// transcription jobs (at least 1). If model is nil the engine is
// permanently disarmed, matching the fail-disarm policy for a
// model-init failure: StartStream becomes a no-op and StopStream logs
// and no-ops.
func New(model Model, language string, sampleRate, workers int, out chan<- event.Event) *Engine {
	if model == nil {
		log.Println("[stt] model unavailable, engine disarmed")
	}
	if workers < 1 {
		workers = defaultWorkers
	}
	return &Engine{
		model:      model,
		language:   language,
		sampleRate: sampleRate,
		out:        out,
		sem:        make(chan struct{}, workers),
	}
}

// EnableDebugDump turns on writing the raw utterance buffer to a WAV
// file in dir; the transcription job writes it before running the model.
func (e *Engine) EnableDebugDump(dir string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.debugDump = true
	e.debugDir = dir
}

// StartStream clears the buffer and arms the engine. A no-op if the
// model failed to load.
func (e *Engine) StartStream() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return
	}
	e.buffer = e.buffer[:0]
	e.armed = true
}

// FeedAudio appends raw int16 samples to the buffer. Ignored when not
// armed.
func (e *Engine) FeedAudio(frame []int16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.armed {
		return
	}
	e.buffer = append(e.buffer, frame...)
}

// StopStream disarms the engine and hands whatever was buffered to the
// worker pool for transcription, returning immediately rather than
// blocking the caller on inference. The eventual TranscriptionFinal
// event carries the joined, trimmed text. An empty buffer dispatches no
// job. Transcription errors are logged and also suppress the event,
// matching the fail-safe policy of letting the state machine's timeout
// take over instead of a handler ever seeing a transcription error
// directly.
func (e *Engine) StopStream() {
	e.mu.Lock()
	if e.model == nil {
		e.mu.Unlock()
		log.Println("[stt] stop_stream called on disarmed engine, no-op")
		return
	}
	if !e.armed {
		e.mu.Unlock()
		return
	}
	e.armed = false
	buffer := e.buffer
	e.buffer = nil
	debugDump, debugDir := e.debugDump, e.debugDir
	model, language, sampleRate := e.model, e.language, e.sampleRate
	e.mu.Unlock()

	if len(buffer) == 0 {
		return
	}

	e.wg.Add(1)
	go e.transcribe(model, language, sampleRate, debugDump, debugDir, buffer)
}

// transcribe runs one transcription job on a worker slot. It never runs
// on the goroutine that called StopStream.
func (e *Engine) transcribe(model Model, language string, sampleRate int, debugDump bool, debugDir string, buffer []int16) {
	e.sem <- struct{}{}
	defer func() { <-e.sem }()
	defer e.wg.Done()

	if debugDump {
		if err := dumpDebugWav(debugDir, sampleRate, buffer); err != nil {
			log.Printf("[stt] debug dump failed: %v", err)
		}
	}

	samples := make([]float32, len(buffer))
	for i, s := range buffer {
		samples[i] = float32(s) / 32768.0
	}

	segments, err := model.Transcribe(samples, language)
	if err != nil {
		log.Printf("[stt] transcription failed: %v", err)
		return
	}

	text := strings.TrimSpace(strings.Join(segments, " "))
	if text == "" {
		return
	}

	e.out <- event.New(event.TranscriptionFinal, event.FinalTranscript{Text: text})
}

// Wait blocks until every transcription job dispatched so far has
// completed. Used by tests needing a deterministic point to inspect the
// output channel; the main loop's shutdown does not call it.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func dumpDebugWav(dir string, sampleRate int, buffer []int16) error {
	name, err := randomDebugName("debug_stt")
	if err != nil {
		return err
	}
	return wavutil.WriteInt16Mono(dir+"/"+name, sampleRate, buffer)
}
