// Package audio provides polyphase resampling for anti-aliasing.
package audio

import "math"

// polyphaseFilterTaps is the FIR filter length: 64 taps balances
// aliasing rejection against per-chunk cost for the 48kHz -> 16kHz
// downsample the capture pipeline runs on every callback.
const polyphaseFilterTaps = 64

// PolyphaseResampler downsamples with a windowed-sinc anti-aliasing
// filter, used whenever the capture device negotiates a rate above the
// pipeline's target (typically 48kHz -> 16kHz). Upsampling is handled
// by the plain Resampler instead; a sinc filter buys nothing there.
type PolyphaseResampler struct {
	fromRate   int
	toRate     int
	ratio      float64
	filter     []float32
	history    []float32 // tail of the previous chunk, for filter continuity
	lastSample float32
}

// NewPolyphaseResampler builds a resampler from fromRate to toRate,
// designing a Hamming-windowed sinc low-pass filter cut at the output
// Nyquist frequency.
func NewPolyphaseResampler(fromRate, toRate int) *PolyphaseResampler {
	ratio := float64(toRate) / float64(fromRate)

	cutoff := 0.5
	if ratio < 1.0 {
		cutoff = ratio * 0.5
	}

	filter := make([]float32, polyphaseFilterTaps)
	for i := range filter {
		n := float64(i) - float64(polyphaseFilterTaps-1)/2.0
		if n == 0 {
			filter[i] = float32(2.0 * cutoff)
		} else {
			sinc := math.Sin(2.0*math.Pi*cutoff*n) / (math.Pi * n)
			window := 0.54 - 0.46*math.Cos(2.0*math.Pi*float64(i)/float64(polyphaseFilterTaps-1))
			filter[i] = float32(sinc * window)
		}
	}

	var sum float32
	for _, f := range filter {
		sum += f
	}
	for i := range filter {
		filter[i] /= sum
	}

	return &PolyphaseResampler{
		fromRate: fromRate,
		toRate:   toRate,
		ratio:    ratio,
		filter:   filter,
		history:  make([]float32, polyphaseFilterTaps),
	}
}

// Resample converts input to the target rate: linear interpolation when
// upsampling, filtered decimation when downsampling.
func (r *PolyphaseResampler) Resample(input []float32) []float32 {
	if r.ratio == 1.0 || len(input) == 0 {
		return input
	}
	if r.ratio > 1.0 {
		return r.upsample(input)
	}
	return r.downsample(input)
}

func (r *PolyphaseResampler) upsample(input []float32) []float32 {
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

func (r *PolyphaseResampler) downsample(input []float32) []float32 {
	inputLen := len(input)
	outputLen := int(float64(inputLen) * r.ratio)
	output := make([]float32, outputLen)

	combined := append(r.history, input...)

	for i := 0; i < outputLen; i++ {
		srcIdx := int(float64(i)/r.ratio) + len(r.history)

		var sample float32
		for j := 0; j < len(r.filter); j++ {
			idx := srcIdx - len(r.filter)/2 + j
			if idx >= 0 && idx < len(combined) {
				sample += combined[idx] * r.filter[j]
			}
		}
		output[i] = sample
	}

	if inputLen >= len(r.filter) {
		copy(r.history, input[inputLen-len(r.filter):])
	} else {
		shift := len(r.filter) - inputLen
		copy(r.history, r.history[inputLen:])
		copy(r.history[shift:], input)
	}

	return output
}
