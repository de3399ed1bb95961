// Package audio provides audio resampling functionality.
package audio

// Resampler does linear-interpolation resampling. Source uses it for the
// 48kHz -> 16kHz step after denoising, and Capturer uses it (through
// ResampleInPlace) when the device rate is below the target rate.
// PolyphaseResampler is used only by Capturer, when the device rate is
// above the target rate.
type Resampler struct {
	fromRate   float64
	toRate     float64
	ratio      float64
	lastSample float32 // carries continuity across chunk boundaries
}

// NewResampler creates a Resampler converting from fromRate to toRate,
// both in Hz.
func NewResampler(fromRate, toRate int) *Resampler {
	return &Resampler{
		fromRate: float64(fromRate),
		toRate:   float64(toRate),
		ratio:    float64(toRate) / float64(fromRate),
	}
}

// Resample converts input to the target rate via linear interpolation.
func (r *Resampler) Resample(input []float32) []float32 {
	if r.ratio == 1.0 || len(input) == 0 {
		return input
	}

	inputLen := len(input)
	outputLen := int(float64(inputLen) * r.ratio)
	output := make([]float32, outputLen)

	for i := 0; i < outputLen; i++ {
		srcPos := float64(i) / r.ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		sample1 := r.lastSample
		if srcIdx < inputLen {
			sample1 = input[srcIdx]
		}

		sample2 := sample1
		if srcIdx+1 < inputLen {
			sample2 = input[srcIdx+1]
		} else if srcIdx < inputLen {
			sample2 = input[inputLen-1]
		}

		output[i] = sample1 + (sample2-sample1)*frac
	}

	r.lastSample = input[inputLen-1]
	return output
}

// ResampleInPlace resamples input once, without keeping a Resampler
// around for continuity. Used as Capturer's fallback when the device's
// negotiated rate needs upsampling but no PolyphaseResampler was built.
func ResampleInPlace(input []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate {
		return input
	}
	return NewResampler(fromRate, toRate).Resample(input)
}
