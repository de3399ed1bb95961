//go:build linux || darwin

package vad

import "github.com/mjolnir-labs/heisenberg-core/internal/sherpa"

// sherpaModel adapts sherpa.VoiceActivityDetector to the Model interface.
// The detector's own segments are not used: the hysteresis state machine
// in Detector owns debounce and silence-timeout, so only the IsSpeech()
// classification after AcceptWaveform is consulted, per window, and any
// segments the detector queued are popped and discarded.
type sherpaModel struct {
	vad *sherpa.VoiceActivityDetector
}

// NewSherpaModel wraps an already-constructed sherpa VAD as a Model.
func NewSherpaModel(v *sherpa.VoiceActivityDetector) Model {
	return &sherpaModel{vad: v}
}

func (m *sherpaModel) AcceptWaveform(samples []float32) bool {
	m.vad.AcceptWaveform(samples)
	speech := m.vad.IsSpeech()
	for !m.vad.IsEmpty() {
		m.vad.Pop()
	}
	return speech
}
