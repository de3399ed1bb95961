package audio

import "testing"

func TestNormalizeAndConvertAppliesGainAndClips(t *testing.T) {
	quiet := []float32{0.01, -0.01, 0.01, -0.01}
	out := normalizeAndConvert(quiet)
	if len(out) != len(quiet) {
		t.Fatalf("expected %d samples, got %d", len(quiet), len(out))
	}
	for _, s := range out {
		if s > 32767 || s < -32768 {
			t.Fatalf("expected clipped int16 range, got %d", s)
		}
	}
	// rms 0.01 gives gain min(0.1/0.01, 10) = 10, so 0.01 scales to ~0.1.
	if out[0] < 3200 || out[0] > 3300 {
		t.Fatalf("expected gain 10 to scale 0.01 to about 3276, got %d", out[0])
	}

	// One full-scale spike in 200 samples: rms ~0.0707, gain ~1.41, so the
	// spike is clipped to full scale.
	spike := make([]float32, 200)
	spike[0] = 1.0
	if got := normalizeAndConvert(spike)[0]; got != 32767 {
		t.Fatalf("expected spike clipped to 32767, got %d", got)
	}
}

func TestNormalizeAndConvertSkipsNearSilence(t *testing.T) {
	silence := make([]float32, 100)
	out := normalizeAndConvert(silence)
	for _, s := range out {
		if s != 0 {
			t.Fatalf("expected silence to remain silence, got %d", s)
		}
	}
}

func TestNormalizeAndConvertEmptyInput(t *testing.T) {
	if out := normalizeAndConvert(nil); out != nil {
		t.Fatalf("expected nil for empty input, got %v", out)
	}
}

type passthroughDenoiser struct{ calls int }

func (d *passthroughDenoiser) Denoise(chunk []float32) []float32 {
	d.calls++
	return chunk
}

func TestDenoiseChunksProcessesFullChunksAndPassesTrailingThrough(t *testing.T) {
	d := &passthroughDenoiser{}
	s := &Source{denoiser: d, useDenoise: true}

	// 2 full 480-sample chunks plus a 100-sample remainder.
	samples := make([]float32, denoiseChunkSamples*2+100)
	out := s.denoiseChunks(samples)

	if d.calls != 2 {
		t.Fatalf("expected denoiser invoked for each full chunk, got %d calls", d.calls)
	}
	if len(out) != len(samples) {
		t.Fatalf("expected output length to match input, got %d want %d", len(out), len(samples))
	}
}

func TestSourceQueueDropsNewestOnOverflow(t *testing.T) {
	s := NewSource(nil)
	s.started.Store(true)
	s.closed = false

	for i := 0; i < queueCapacity+10; i++ {
		f := make([]int16, FrameSamples)
		f[0] = int16(i)
		s.enqueue(f)
	}

	s.mu.Lock()
	got := len(s.queue)
	first, last := s.queue[0][0], s.queue[got-1][0]
	s.mu.Unlock()
	if got != queueCapacity {
		t.Fatalf("expected queue capped at %d, got %d", queueCapacity, got)
	}
	if first != 0 || last != queueCapacity-1 {
		t.Fatalf("expected oldest frames kept and newest dropped, got first=%d last=%d", first, last)
	}
}

func TestReadFrameReturnsNilAfterStop(t *testing.T) {
	s := NewSource(nil)
	s.started.Store(true)

	done := make(chan *Frame)
	go func() {
		done <- s.ReadFrame()
	}()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}

	if got := <-done; got != nil {
		t.Fatalf("expected nil frame after stop, got %+v", got)
	}
}

func TestSpectralFloorDenoiserPassesLoudSignalThrough(t *testing.T) {
	d := NewSpectralFloorDenoiser(0.5)
	loud := make([]float32, 480)
	for i := range loud {
		loud[i] = 0.8
	}
	out := d.Denoise(loud)
	if out[0] != loud[0] {
		t.Fatalf("expected loud signal unattenuated, got %v want %v", out[0], loud[0])
	}
}

func TestNoOpDenoiserReturnsInputUnchanged(t *testing.T) {
	var d NoOpDenoiser
	in := []float32{0.1, 0.2, 0.3}
	out := d.Denoise(in)
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("expected passthrough, got %v want %v", out, in)
		}
	}
}
