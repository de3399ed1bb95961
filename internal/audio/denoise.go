package audio

// NoOpDenoiser passes audio through unmodified. Use it when no
// RNN-based noise suppressor is configured; the pipeline still resamples
// through 48kHz so behavior matches the denoiser-present path exactly
// except for the denoise stage itself.
type NoOpDenoiser struct{}

// Denoise returns chunk unmodified.
func (NoOpDenoiser) Denoise(chunk []float32) []float32 {
	return chunk
}

// SpectralFloorDenoiser is a minimal stationary-noise suppressor: it
// tracks a slowly-adapting per-chunk energy floor and attenuates chunks
// whose energy sits near that floor, on the assumption that sustained
// low-energy content is background noise rather than speech. This is not
// a substitute for a trained RNN suppressor — it is the fallback used
// when no such model is configured, per the Denoiser interface's
// pluggable design.
type SpectralFloorDenoiser struct {
	floor     float32
	adaptRate float32
}

// NewSpectralFloorDenoiser creates a denoiser with the given adaptation
// rate (0 < adaptRate < 1; higher adapts to the noise floor faster).
func NewSpectralFloorDenoiser(adaptRate float32) *SpectralFloorDenoiser {
	if adaptRate <= 0 || adaptRate >= 1 {
		adaptRate = 0.05
	}
	return &SpectralFloorDenoiser{adaptRate: adaptRate}
}

// Denoise attenuates chunk toward silence when its energy is close to
// the tracked noise floor, and passes it through otherwise.
func (d *SpectralFloorDenoiser) Denoise(chunk []float32) []float32 {
	var energy float32
	for _, v := range chunk {
		energy += v * v
	}
	if len(chunk) > 0 {
		energy /= float32(len(chunk))
	}

	aboveFloor := energy > d.floor*3

	d.floor += (energy - d.floor) * d.adaptRate
	if d.floor < 0 {
		d.floor = 0
	}

	if aboveFloor {
		return chunk // well above the noise floor, treat as speech
	}

	attenuation := float32(0.3)
	out := make([]float32, len(chunk))
	for i, v := range chunk {
		out[i] = v * attenuation
	}
	return out
}
