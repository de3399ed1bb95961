//go:build linux || darwin

package stt

import "github.com/mjolnir-labs/heisenberg-core/internal/sherpa"

// sherpaModel adapts sherpa.OfflineRecognizer to the Model interface,
// matching the stream-per-call idiom used for Whisper transcription.
type sherpaModel struct {
	recognizer *sherpa.OfflineRecognizer
	sampleRate int
}

// NewSherpaModel wraps an already-constructed offline recognizer as a
// Model. The language hint passed to Transcribe is ignored here because
// the recognizer's language is fixed at construction time; callers that
// need per-utterance language switching must build a new recognizer.
func NewSherpaModel(recognizer *sherpa.OfflineRecognizer, sampleRate int) Model {
	return &sherpaModel{recognizer: recognizer, sampleRate: sampleRate}
}

func (m *sherpaModel) Transcribe(samples []float32, _ string) ([]string, error) {
	stream := sherpa.NewOfflineStream(m.recognizer)
	if stream == nil {
		return nil, errNoStream
	}
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(m.sampleRate, samples)
	m.recognizer.Decode(stream)

	result := stream.GetResult()
	if result.Text == "" {
		return nil, nil
	}
	return []string{result.Text}, nil
}
