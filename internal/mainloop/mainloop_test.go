package mainloop

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mjolnir-labs/heisenberg-core/internal/audio"
	"github.com/mjolnir-labs/heisenberg-core/internal/config"
	"github.com/mjolnir-labs/heisenberg-core/internal/event"
	"github.com/mjolnir-labs/heisenberg-core/internal/fsm"
	"github.com/mjolnir-labs/heisenberg-core/internal/llm"
	"github.com/mjolnir-labs/heisenberg-core/internal/llm/prompt"
	"github.com/mjolnir-labs/heisenberg-core/internal/metrics"
	"github.com/mjolnir-labs/heisenberg-core/internal/router"
	"github.com/mjolnir-labs/heisenberg-core/internal/stt"
	"github.com/mjolnir-labs/heisenberg-core/internal/vad"
	"github.com/mjolnir-labs/heisenberg-core/internal/wakeword"
)

// fixedWakewordModel fires a single keyword whenever fed.
type fixedWakewordModel struct {
	keyword string
	score   float32
}

func (m fixedWakewordModel) Detect([]int16) map[string]float32 {
	return map[string]float32{m.keyword: m.score}
}

// silentWakewordModel never fires.
type silentWakewordModel struct{}

func (silentWakewordModel) Detect([]int16) map[string]float32 { return nil }

// amplitudeVADModel reports speech when the window is loud.
type amplitudeVADModel struct{}

func (amplitudeVADModel) AcceptWaveform(samples []float32) bool {
	var sum float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		sum += s
	}
	return sum/float32(len(samples)) > 0.01
}

func loudFrame() []int16 {
	f := make([]int16, audio.FrameSamples)
	for i := range f {
		if i%2 == 0 {
			f[i] = 5000
		} else {
			f[i] = -5000
		}
	}
	return f
}

func silentFrame() []int16 {
	return make([]int16, audio.FrameSamples)
}

type fixedSTTModel struct{ text string }

func (m fixedSTTModel) Transcribe([]float32, string) ([]string, error) {
	return []string{m.text}, nil
}

func newTestLoop(t *testing.T, wwModel wakeword.Model, llmHandler http.HandlerFunc) (*Loop, chan event.Event) {
	t.Helper()

	events := make(chan event.Event, 16)
	ww := wakeword.New(wwModel, 0.5, events)
	vd := vad.New(amplitudeVADModel{}, 0)
	st := stt.New(fixedSTTModel{text: "what time is it"}, "en", audio.OutputSampleRate, 1, events)

	srv := httptest.NewServer(llmHandler)
	t.Cleanup(srv.Close)
	client, err := llm.NewClient(llm.Config{Endpoint: srv.URL, Format: prompt.Plain, MaxTokens: 32})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	r := router.New(false)
	f := fsm.New(r, false)
	m := metrics.New()

	l := &Loop{
		Source:   audio.NewSource(nil),
		WakeWord: ww,
		VAD:      vd,
		STT:      st,
		LLM:      client,
		Events:   events,
		FSM:      f,
		Router:   r,
		Metrics:  m,
		Policies: config.Policies{
			Timeouts: config.Timeouts{
				WakewordListen: 5 * time.Second,
				LLMGeneration:  5 * time.Second,
			},
		},
	}
	l.Register()
	return l, events
}

func sseHandler(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunk, _ := json.Marshal(map[string]any{"content": content, "stop": false})
		w.Write([]byte("data: " + string(chunk) + "\n\n"))
		stopChunk, _ := json.Marshal(map[string]any{"content": "", "stop": true})
		w.Write([]byte("data: " + string(stopChunk) + "\n\n"))
	}
}

func TestRouteFrameInIdleOnlyFeedsWakeWord(t *testing.T) {
	l, events := newTestLoop(t, fixedWakewordModel{keyword: "jarvis", score: 0.9}, sseHandler("hi"))
	l.FSM.Start()
	l.WakeWord.Start()

	l.routeFrame(&audio.Frame{Samples: loudFrame()})

	select {
	case e := <-events:
		if e.Kind != event.WakewordDetected {
			t.Fatalf("expected WakewordDetected, got %s", e.Kind)
		}
	default:
		t.Fatal("expected a wakeword event to be raised")
	}
}

func TestRouteFrameInIdleIgnoresAudioWhenNoWakewordFires(t *testing.T) {
	l, events := newTestLoop(t, silentWakewordModel{}, sseHandler("hi"))
	l.FSM.Start()
	l.WakeWord.Start()

	l.routeFrame(&audio.Frame{Samples: loudFrame()})

	select {
	case e := <-events:
		t.Fatalf("expected no event, got %v", e)
	default:
	}
}

func TestWakewordHandlerTransitionsToListeningAndArmsSTT(t *testing.T) {
	l, events := newTestLoop(t, fixedWakewordModel{keyword: "jarvis", score: 0.9}, sseHandler("hi"))
	l.FSM.Start()
	l.WakeWord.Start()

	l.routeFrame(&audio.Frame{Samples: loudFrame()})
	e := <-events
	l.FSM.HandleEvent(e)

	if l.FSM.State() != fsm.Listening {
		t.Fatalf("expected LISTENING, got %s", l.FSM.State())
	}

	// STT should now be armed: feeding audio then stopping should fire a
	// TranscriptionFinal event.
	l.STT.FeedAudio(loudFrame())
	l.STT.StopStream()
	l.STT.Wait()
	select {
	case got := <-events:
		if got.Kind != event.TranscriptionFinal {
			t.Fatalf("expected TranscriptionFinal, got %s", got.Kind)
		}
	default:
		t.Fatal("expected STT to fire TranscriptionFinal after arming via the wakeword handler")
	}
}

func TestListeningStateStopsStreamOnVadSpeakingToSilentTransition(t *testing.T) {
	l, events := newTestLoop(t, fixedWakewordModel{keyword: "jarvis", score: 0.9}, sseHandler("hi"))
	l.FSM.Start()
	l.WakeWord.Start()

	// Drive WAKEWORD_DETECTED -> LISTENING, arming STT and resetting VAD.
	l.routeFrame(&audio.Frame{Samples: loudFrame()})
	l.FSM.HandleEvent(<-events)
	if l.FSM.State() != fsm.Listening {
		t.Fatalf("setup: expected LISTENING, got %s", l.FSM.State())
	}

	// Loud frame: two consecutive speech windows -> SPEAKING.
	l.routeFrame(&audio.Frame{Samples: loudFrame()})
	if !l.VAD.IsSpeaking() {
		t.Fatal("setup: expected VAD to report SPEAKING after a loud frame")
	}

	// Silent frame: flips back to NOT-SPEAKING and should trigger
	// stt.StopStream(), firing TranscriptionFinal.
	l.routeFrame(&audio.Frame{Samples: silentFrame()})
	l.STT.Wait()

	select {
	case e := <-events:
		if e.Kind != event.TranscriptionFinal {
			t.Fatalf("expected TranscriptionFinal, got %s", e.Kind)
		}
	default:
		t.Fatal("expected the speaking->silent VAD transition to stop the STT stream")
	}
}

func TestTranscriptionFinalHandlerAppendsTurnAndReturnsToIdle(t *testing.T) {
	l, events := newTestLoop(t, fixedWakewordModel{keyword: "jarvis", score: 0.9}, sseHandler("it is noon"))
	sess := l.FSM.Start()
	l.WakeWord.Start()

	// Get into LISTENING with an armed STT engine.
	l.routeFrame(&audio.Frame{Samples: loudFrame()})
	l.FSM.HandleEvent(<-events)

	l.STT.FeedAudio(loudFrame())
	l.STT.StopStream()
	l.STT.Wait()
	finalEvent := <-events

	l.FSM.HandleEvent(finalEvent)

	if l.FSM.State() != fsm.Idle {
		t.Fatalf("expected IDLE after a completed turn, got %s", l.FSM.State())
	}
	if sess.Len() != 1 {
		t.Fatalf("expected exactly one turn appended, got %d", sess.Len())
	}
	history := sess.History(0)
	if history[0].AssistantResponse != "it is noon" {
		t.Fatalf("expected assistant response %q, got %q", "it is noon", history[0].AssistantResponse)
	}
}

func TestTranscriptionFinalHandlerForcesIdleOnGenerationError(t *testing.T) {
	failingHandler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}
	l, events := newTestLoop(t, fixedWakewordModel{keyword: "jarvis", score: 0.9}, failingHandler)
	l.FSM.Start()
	l.WakeWord.Start()

	l.routeFrame(&audio.Frame{Samples: loudFrame()})
	l.FSM.HandleEvent(<-events)

	l.STT.FeedAudio(loudFrame())
	l.STT.StopStream()
	l.STT.Wait()
	l.FSM.HandleEvent(<-events)

	if l.FSM.State() != fsm.Idle {
		t.Fatalf("expected a failed generation to force IDLE, got %s", l.FSM.State())
	}
}

func TestPumpEventsStopsOnContextCancellation(t *testing.T) {
	l, _ := newTestLoop(t, silentWakewordModel{}, sseHandler("hi"))
	l.FSM.Start()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.pumpEvents(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected pumpEvents to return promptly after context cancellation")
	}
}
