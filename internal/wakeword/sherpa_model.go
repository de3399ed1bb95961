//go:build linux || darwin

package wakeword

import "github.com/mjolnir-labs/heisenberg-core/internal/sherpa"

// sherpaModel adapts sherpa.KeywordSpotter to the Model interface. The
// spotter is keyed by a single configured keyword name; Detect reports
// that keyword's score in a one-entry map so Engine's generic
// above-threshold scan works unchanged for single- or multi-keyword
// spotters.
type sherpaModel struct {
	spotter  *sherpa.KeywordSpotter
	stream   *sherpa.OnlineStream
	keyword  string
	sampleHz int
}

// NewSherpaModel wraps an already-constructed sherpa keyword spotter as
// a Model reporting scores under keyword.
func NewSherpaModel(spotter *sherpa.KeywordSpotter, stream *sherpa.OnlineStream, keyword string, sampleHz int) Model {
	return &sherpaModel{spotter: spotter, stream: stream, keyword: keyword, sampleHz: sampleHz}
}

func (m *sherpaModel) Detect(frame []int16) map[string]float32 {
	floats := make([]float32, len(frame))
	for i, s := range frame {
		floats[i] = float32(s) / 32768.0
	}

	sherpa.AcceptWaveform(m.stream, m.sampleHz, floats)
	var score float32
	for sherpa.IsKeywordStreamReady(m.spotter, m.stream) {
		sherpa.DecodeKeywordStream(m.spotter, m.stream)
		result := sherpa.GetKeywordResult(m.spotter, m.stream)
		if result.Keyword != "" {
			score = 1.0
			sherpa.ResetKeywordStream(m.spotter, m.stream)
		}
	}
	return map[string]float32{m.keyword: score}
}
