package metrics

import "testing"

func TestIncrementAccumulatesPerKey(t *testing.T) {
	r := New()
	r.Increment("wakeword.detected", nil)
	r.Increment("wakeword.detected", nil)
	r.Increment("wakeword.detected", map[string]string{"keyword": "jarvis"})

	if got, ok := r.Counter("wakeword.detected", nil); !ok || got != 2 {
		t.Fatalf("got %d,%v want 2,true", got, ok)
	}
	if got, ok := r.Counter("wakeword.detected", map[string]string{"keyword": "jarvis"}); !ok || got != 1 {
		t.Fatalf("got %d,%v want 1,true", got, ok)
	}
}

func TestCounterMissingKeyReportsFalse(t *testing.T) {
	r := New()
	if _, ok := r.Counter("nope", nil); ok {
		t.Fatal("expected missing counter to report false")
	}
}

func TestTagOrderDoesNotAffectKey(t *testing.T) {
	r := New()
	r.Increment("stt.final", map[string]string{"lang": "en", "provider": "cpu"})
	got, ok := r.Counter("stt.final", map[string]string{"provider": "cpu", "lang": "en"})
	if !ok || got != 1 {
		t.Fatalf("expected tag order to be normalized, got %d,%v", got, ok)
	}
}

func TestRecordLatencyAppendsSamples(t *testing.T) {
	r := New()
	r.RecordLatency("llm.ttft", 120.5, nil)
	r.RecordLatency("llm.ttft", 98.2, nil)

	samples := r.LatencySamples("llm.ttft", nil)
	if len(samples) != 2 || samples[0] != 120.5 || samples[1] != 98.2 {
		t.Fatalf("unexpected samples: %v", samples)
	}
}

func TestLatencySamplesReturnsCopyNotAlias(t *testing.T) {
	r := New()
	r.RecordLatency("x", 1, nil)
	samples := r.LatencySamples("x", nil)
	samples[0] = 999
	if got := r.LatencySamples("x", nil); got[0] != 1 {
		t.Fatalf("expected internal slice to be unaffected by caller mutation, got %v", got)
	}
}

func TestLastLatencyReturnsMostRecentSample(t *testing.T) {
	r := New()
	if _, ok := r.LastLatency("x", nil); ok {
		t.Fatal("expected no last latency before any samples recorded")
	}
	r.RecordLatency("x", 10, nil)
	r.RecordLatency("x", 20, nil)
	got, ok := r.LastLatency("x", nil)
	if !ok || got != 20 {
		t.Fatalf("got %v,%v want 20,true", got, ok)
	}
}
