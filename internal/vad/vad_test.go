package vad

import "testing"

// thresholdModel reports speech when the window's mean absolute amplitude
// exceeds a fixed threshold, standing in for a trained neural VAD.
type thresholdModel struct{}

func (thresholdModel) AcceptWaveform(samples []float32) bool {
	var sum float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		sum += s
	}
	return sum/float32(len(samples)) > 0.01
}

func zeroWindow() []int16 {
	return make([]int16, windowSamples)
}

func speechWindow() []int16 {
	w := make([]int16, windowSamples)
	for i := range w {
		if i%2 == 0 {
			w[i] = 5000
		} else {
			w[i] = -5000
		}
	}
	return w
}

func TestZeroFilledStreamEndsNotSpeaking(t *testing.T) {
	d := New(thresholdModel{}, 100)
	for i := 0; i < 10; i++ {
		d.AcceptWaveform(zeroWindow())
	}
	if d.IsSpeaking() {
		t.Fatal("expected NOT-SPEAKING for a zero-filled stream")
	}
}

func TestSustainedSpeechEntersSpeakingWithinTwoWindows(t *testing.T) {
	d := New(thresholdModel{}, 100)
	d.AcceptWaveform(speechWindow())
	if d.IsSpeaking() {
		t.Fatal("expected NOT-SPEAKING after a single speech window (debounce requires 2)")
	}
	d.AcceptWaveform(speechWindow())
	if !d.IsSpeaking() {
		t.Fatal("expected SPEAKING after 2 consecutive speech windows")
	}
}

func TestSilenceAfterSpeechRequiresTimeoutToFlipBack(t *testing.T) {
	d := New(thresholdModel{}, 64) // 2 windows worth of silence required
	d.AcceptWaveform(speechWindow())
	d.AcceptWaveform(speechWindow())
	if !d.IsSpeaking() {
		t.Fatal("setup: expected SPEAKING")
	}
	d.AcceptWaveform(zeroWindow())
	if !d.IsSpeaking() {
		t.Fatal("expected still SPEAKING after only 1 silent window (32ms <= 64ms)")
	}
	d.AcceptWaveform(zeroWindow())
	if !d.IsSpeaking() {
		t.Fatal("expected still SPEAKING at exactly the threshold (64ms is not > 64ms)")
	}
	d.AcceptWaveform(zeroWindow())
	if d.IsSpeaking() {
		t.Fatal("expected NOT-SPEAKING once silence exceeds min_silence_duration_ms")
	}
}

func TestResetClearsHysteresisState(t *testing.T) {
	d := New(thresholdModel{}, 100)
	d.AcceptWaveform(speechWindow())
	d.AcceptWaveform(speechWindow())
	if !d.IsSpeaking() {
		t.Fatal("setup: expected SPEAKING")
	}
	d.Reset()
	if d.IsSpeaking() {
		t.Fatal("expected NOT-SPEAKING after reset")
	}
	d.AcceptWaveform(speechWindow())
	if d.IsSpeaking() {
		t.Fatal("expected reset to clear debounce counter, requiring 2 fresh windows")
	}
}

func TestFailOpenAlwaysReportsSpeaking(t *testing.T) {
	d := NewFailOpen()
	if !d.IsSpeaking() {
		t.Fatal("expected fail-open detector to start SPEAKING")
	}
	d.AcceptWaveform(zeroWindow())
	if !d.IsSpeaking() {
		t.Fatal("expected fail-open detector to remain SPEAKING regardless of input")
	}
}

func TestPartialWindowIsBufferedNotProcessed(t *testing.T) {
	d := New(thresholdModel{}, 100)
	half := speechWindow()[:windowSamples/2]
	d.AcceptWaveform(half)
	if d.IsSpeaking() {
		t.Fatal("expected no classification before a full window accumulates")
	}
	if len(d.pending) != windowSamples/2 || d.speechFrames != 0 {
		t.Fatalf("expected half window buffered and unprocessed, got pending=%d speechFrames=%d", len(d.pending), d.speechFrames)
	}
}
