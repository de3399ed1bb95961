// Package mainloop implements the main loop (C8): the turn lifecycle that
// reads frames from the audio source, fans them out to the engine that
// owns the current state, pumps engine-raised events into the state
// machine, and drives the wake-word and transcription-final handlers
// through the event router.
package mainloop

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mjolnir-labs/heisenberg-core/internal/audio"
	"github.com/mjolnir-labs/heisenberg-core/internal/config"
	"github.com/mjolnir-labs/heisenberg-core/internal/event"
	"github.com/mjolnir-labs/heisenberg-core/internal/fsm"
	"github.com/mjolnir-labs/heisenberg-core/internal/llm"
	"github.com/mjolnir-labs/heisenberg-core/internal/metrics"
	"github.com/mjolnir-labs/heisenberg-core/internal/router"
	"github.com/mjolnir-labs/heisenberg-core/internal/session"
	"github.com/mjolnir-labs/heisenberg-core/internal/stt"
	"github.com/mjolnir-labs/heisenberg-core/internal/vad"
	"github.com/mjolnir-labs/heisenberg-core/internal/wakeword"
)

// idleFramePoll is how long the frame loop sleeps after a nil frame, per
// the component design's "~10ms" yield. ReadFrame blocks until a frame
// is ready while the source runs, but returns nil at once while it is
// stopped (e.g. during generation), so the loop polls at this interval
// until capture restarts.
const idleFramePoll = 10 * time.Millisecond

// Loop wires the audio source and the C2-C5 engines into the FSM and
// event router, implementing the per-state frame fan-out and the
// wake-word / transcription-final handlers. Events is the channel every
// engine (WakeWord, STT) was constructed with as its output; Loop owns
// pumping it into the FSM.
type Loop struct {
	Source   *audio.Source
	WakeWord *wakeword.Engine
	VAD      *vad.Detector
	STT      *stt.Engine
	LLM      *llm.Client
	Events   <-chan event.Event

	FSM     *fsm.FSM
	Router  *router.Router
	Metrics *metrics.Registry

	Policies config.Policies
	Verbose  bool

	listenTimer *time.Timer
	ctx         context.Context // Run's ctx, so handlers can derive cancellable sub-contexts from it
}

// Register installs the wake-word and transcription-final handlers on
// Router. Must be called before Run.
func (l *Loop) Register() {
	l.Router.Register(event.WakewordDetected, l.handleWakewordDetected)
	l.Router.Register(event.TranscriptionFinal, l.handleTranscriptionFinal)
}

// Run starts the session, begins audio capture, and blocks reading
// frames and pumping engine events until ctx is cancelled. A stopped
// audio source does not end the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.ctx = ctx
	l.FSM.Start()
	if err := l.Source.Start(); err != nil {
		return err
	}
	l.WakeWord.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.pumpEvents(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			<-done
			l.shutdown()
			return nil
		default:
		}

		// A nil frame means the source is momentarily stopped, either
		// because of shutdown or because the transcription-final
		// handler paused capture during generation. Yield and retry;
		// only ctx cancellation ends the loop for good.
		frame := l.Source.ReadFrame()
		if frame == nil {
			select {
			case <-ctx.Done():
				<-done
				l.shutdown()
				return nil
			case <-time.After(idleFramePoll):
			}
			continue
		}
		l.routeFrame(frame)
	}
}

// shutdown fires a best-effort stop on audio, wake-word, STT, and LLM
// concurrently, per the main loop's shutdown contract. Each stop runs
// independently so a slow or hanging one doesn't delay the others.
func (l *Loop) shutdown() {
	var wg sync.WaitGroup
	fire := func(stop func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stop()
		}()
	}
	fire(l.Source.Stop)
	fire(l.WakeWord.Stop)
	fire(l.STT.StopStream)
	fire(l.LLM.Cancel)
	wg.Wait()
}

// baseContext returns Run's ctx, or context.Background() when Run has
// not been called (e.g. a handler invoked directly from a test).
func (l *Loop) baseContext() context.Context {
	if l.ctx != nil {
		return l.ctx
	}
	return context.Background()
}

// pumpEvents feeds every event an engine raises into the FSM, which
// applies the transition (if any) and dispatches through the router.
func (l *Loop) pumpEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-l.Events:
			if !ok {
				return
			}
			l.FSM.HandleEvent(e)
		}
	}
}

// routeFrame feeds frame to whichever engine owns the current state,
// per §4.8's per-state fan-out. THINKING/SPEAKING/ERROR drain and
// discard to prevent queue pressure while those states run.
func (l *Loop) routeFrame(frame *audio.Frame) {
	switch l.FSM.State() {
	case fsm.Idle:
		l.WakeWord.FeedAudio(frame.Samples)

	case fsm.Listening:
		l.STT.FeedAudio(frame.Samples)
		wasSpeaking := l.VAD.IsSpeaking()
		nowSpeaking := l.VAD.AcceptWaveform(frame.Samples)
		if wasSpeaking && !nowSpeaking {
			l.stopListenTimer()
			l.STT.StopStream()
		}

	default:
		// THINKING, SPEAKING, ERROR: drain and discard.
	}
}

// handleWakewordDetected resets transient turn state, arms STT, resets
// VAD, and starts the fail-safe listening timeout that force-stops STT
// if the VAD never triggers end-of-utterance.
func (l *Loop) handleWakewordDetected(e event.Event) error {
	if l.Verbose {
		if wd, ok := e.Payload.(event.WakeDetected); ok {
			log.Printf("[mainloop] wake word %q (score %.2f)", wd.Keyword, wd.Score)
		}
	}
	if sess := l.FSM.Session(); sess != nil {
		sess.RenewCorrelationID()
	}
	l.Metrics.Increment("wakeword.detected", nil)

	l.VAD.Reset()
	l.STT.StartStream()

	timeout := l.Policies.Timeouts.WakewordListen
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l.listenTimer = time.AfterFunc(timeout, func() {
		log.Println("[mainloop] listen timeout, VAD never signalled end of speech")
		l.STT.StopStream()
		l.FSM.HandleEvent(event.New(event.Timeout, nil))
	})
	return nil
}

// stopListenTimer cancels the fail-safe listening timer; called once the
// VAD itself detects end-of-utterance so the timer does not also fire.
func (l *Loop) stopListenTimer() {
	if l.listenTimer != nil {
		l.listenTimer.Stop()
		l.listenTimer = nil
	}
}

// handleTranscriptionFinal runs the THINKING-state turn: stops audio
// capture to avoid queue pressure during blocking inference, generates
// a completion, appends the turn to history, restarts capture, and
// returns to IDLE. Errors force a direct IDLE transition via
// ErrorOccurred.
func (l *Loop) handleTranscriptionFinal(e event.Event) error {
	ft, ok := e.Payload.(event.FinalTranscript)
	if !ok {
		return nil
	}

	l.Source.Stop()
	defer func() {
		if err := l.Source.Start(); err != nil {
			log.Printf("[mainloop] failed to restart audio capture: %v", err)
		}
	}()

	sess := l.FSM.Session()
	var history []session.Turn
	if sess != nil {
		history = sess.History(0)
	}

	timeout := l.Policies.Timeouts.LLMGeneration
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(l.baseContext(), timeout)
	defer cancel()

	firstToken := true
	response, err := l.LLM.Generate(ctx, history, ft.Text, func(tok string) {
		if firstToken {
			firstToken = false
			l.FSM.HandleEvent(event.New(event.LLMToken, event.Token{Text: tok}))
		}
	})
	l.Metrics.RecordLatency("llm.generate_ms", float64(time.Since(start).Milliseconds()), nil)

	if err != nil {
		log.Printf("[mainloop] generation failed: %v", err)
		l.FSM.HandleEvent(event.New(event.ErrorOccurred, event.Failure{Err: err}))
		return nil
	}

	if sess != nil {
		sess.AddTurn(ft.Text, response)
	}

	l.FSM.HandleEvent(event.New(event.LLMComplete, event.Complete{Response: response}))
	return nil
}
