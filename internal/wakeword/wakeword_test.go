package wakeword

import (
	"testing"

	"github.com/mjolnir-labs/heisenberg-core/internal/event"
)

type fixedScoreModel struct {
	keyword string
	score   float32
}

func (m fixedScoreModel) Detect([]int16) map[string]float32 {
	return map[string]float32{m.keyword: m.score}
}

func TestFeedAudioBelowThresholdDoesNotFire(t *testing.T) {
	out := make(chan event.Event, 1)
	e := New(fixedScoreModel{"hey_jarvis", 0.1}, 0.5, out)
	e.Start()
	e.FeedAudio(make([]int16, 2048/2))

	select {
	case ev := <-out:
		t.Fatalf("expected no event below threshold, got %+v", ev)
	default:
	}
}

func TestFeedAudioAboveThresholdFires(t *testing.T) {
	out := make(chan event.Event, 1)
	e := New(fixedScoreModel{"hey_jarvis", 0.9}, 0.5, out)
	e.Start()
	e.FeedAudio(make([]int16, 2048/2))

	select {
	case ev := <-out:
		if ev.Kind != event.WakewordDetected {
			t.Fatalf("expected WakewordDetected, got %s", ev.Kind)
		}
		wd, ok := ev.Payload.(event.WakeDetected)
		if !ok || wd.Keyword != "hey_jarvis" {
			t.Fatalf("expected payload for hey_jarvis, got %+v", ev.Payload)
		}
	default:
		t.Fatal("expected event to fire above threshold")
	}
}

func TestFeedAudioWhileStoppedIsIgnored(t *testing.T) {
	out := make(chan event.Event, 1)
	e := New(fixedScoreModel{"hey_jarvis", 0.9}, 0.5, out)
	e.FeedAudio(make([]int16, 10))

	select {
	case ev := <-out:
		t.Fatalf("expected no event while stopped, got %+v", ev)
	default:
	}
}

func TestResolveModelNameKnownExtensionPassesThrough(t *testing.T) {
	if got := ResolveModelName("/models/custom.onnx"); got != "/models/custom.onnx" {
		t.Fatalf("expected verbatim passthrough, got %s", got)
	}
}

func TestResolveModelNameCatalogSubstringMatch(t *testing.T) {
	if got := ResolveModelName("jarvis"); got != "hey_jarvis" {
		t.Fatalf("expected catalog match hey_jarvis, got %s", got)
	}
}

func TestResolveModelNameUnmatchedPassesThrough(t *testing.T) {
	if got := ResolveModelName("totally_unknown_name"); got != "totally_unknown_name" {
		t.Fatalf("expected unmatched name to pass through unchanged, got %s", got)
	}
}
