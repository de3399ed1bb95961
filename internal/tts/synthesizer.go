// Package tts defines the text-to-speech interface. Speech synthesis
// itself is out of scope: the interface exists so the state machine's
// THINKING->SPEAKING->IDLE path and the TTS_START/TTS_COMPLETE events
// have a concrete contract to eventually drive, without committing to a
// synthesis backend here.
package tts

// Synthesizer turns text into 16-bit PCM audio samples at SampleRate.
type Synthesizer interface {
	Synthesize(text string) (samples []int16, err error)
	SampleRate() int
}
