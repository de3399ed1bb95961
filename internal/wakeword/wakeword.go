// Package wakeword implements the wake-word engine (C3): scans audio
// frames for a configured keyword and emits a one-shot event when any
// keyword's probability crosses its threshold. The engine does not
// debounce itself — the state machine only feeds it frames while IDLE,
// which is the rate limit the component design relies on.
package wakeword

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/mjolnir-labs/heisenberg-core/internal/event"
)

// Model is the keyword-spotting oracle: given a raw int16 frame, it
// returns per-keyword probabilities. A real implementation wraps
// sherpa.KeywordSpotter; tests supply a stub.
type Model interface {
	Detect(frame []int16) map[string]float32
}

// knownModelExtensions are the on-disk model formats the loader accepts
// verbatim without a catalog lookup.
var knownModelExtensions = []string{".onnx", ".tflite"}

// pretrainedCatalog is the set of keyword names the bundled models ship
// with; ResolveModelName searches it by substring when the configured
// name isn't already a path to one of the known extensions.
var pretrainedCatalog = []string{
	"hey_jarvis", "hey_mycroft", "alexa", "hey_rhasspy", "ok_google",
}

// ResolveModelName implements the model-resolution policy from the
// component design: a name ending in a known model-file extension is
// used verbatim; otherwise the pretrained catalog is searched for a
// substring match; an unmatched name passes through unchanged so the
// loader itself reports the "file not found" style error.
func ResolveModelName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range knownModelExtensions {
		if ext == known {
			return name
		}
	}
	lower := strings.ToLower(name)
	for _, candidate := range pretrainedCatalog {
		if strings.Contains(candidate, lower) || strings.Contains(lower, candidate) {
			return candidate
		}
	}
	return name
}

// Engine runs keyword detection against fed frames and raises an event
// through out when a keyword crosses its threshold.
type Engine struct {
	mu        sync.Mutex
	model     Model
	threshold float32
	running   bool
	out       chan<- event.Event

	debug *debugDumper // optional wake-word WAV dump, nil when disabled
}

// New creates an Engine backed by model, reporting detections above
// threshold to out.
func New(model Model, threshold float32, out chan<- event.Event) *Engine {
	return &Engine{model: model, threshold: threshold, out: out}
}

// EnableDebugDump turns on the optional debug WAV dump for fed frames,
// writing a debug_wakeword_<8-hex>.wav file in dir when Stop is called. This mirrors the STT engine's
// debug dump (§6) extended to wake-word audio, a feature present in the
// original implementation but not in the distilled component design.
func (e *Engine) EnableDebugDump(dir string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.debug = newDebugDumper(dir)
}

// Start marks the engine running. Idempotent.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = true
}

// Stop marks the engine stopped and flushes any pending debug dump.
// Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	d := e.debug
	e.running = false
	e.mu.Unlock()
	if d != nil {
		d.flush()
	}
}

// Running reports whether the engine is currently armed.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// FeedAudio runs inference on frame and, if any keyword's probability
// meets or exceeds the threshold, emits a WakewordDetected event. The
// highest-scoring keyword above threshold wins when several qualify.
func (e *Engine) FeedAudio(frame []int16) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	model := e.model
	threshold := e.threshold
	if e.debug != nil {
		e.debug.write(frame)
	}
	e.mu.Unlock()

	scores := model.Detect(frame)

	var bestKeyword string
	var bestScore float32
	for kw, score := range scores {
		if score >= threshold && score > bestScore {
			bestKeyword, bestScore = kw, score
		}
	}
	if bestKeyword == "" {
		return
	}

	e.out <- event.New(event.WakewordDetected, event.WakeDetected{
		Keyword: bestKeyword,
		Score:   bestScore,
	})
}
