package router

import (
	"errors"
	"testing"

	"github.com/mjolnir-labs/heisenberg-core/internal/event"
)

func TestDispatchInvokesRegisteredHandlerExactlyOnce(t *testing.T) {
	r := New(false)
	calls := 0
	var seen event.Event
	r.Register(event.SpeechStart, func(e event.Event) error {
		calls++
		seen = e
		return nil
	})

	want := event.New(event.SpeechStart, nil)
	r.Dispatch(want)

	if calls != 1 {
		t.Fatalf("expected handler invoked exactly once, got %d", calls)
	}
	if seen.Kind != event.SpeechStart {
		t.Fatalf("expected handler to receive dispatched event, got %+v", seen)
	}
}

func TestDispatchMissingHandlerDoesNotPanic(t *testing.T) {
	r := New(false)
	r.Dispatch(event.New(event.Interrupt, nil))
}

func TestDispatchSwallowsHandlerError(t *testing.T) {
	r := New(false)
	r.Register(event.ErrorOccurred, func(event.Event) error {
		return errors.New("boom")
	})
	// Must not panic or propagate.
	r.Dispatch(event.New(event.ErrorOccurred, nil))
}

func TestDispatchSwallowsHandlerPanic(t *testing.T) {
	r := New(false)
	r.Register(event.TTSStart, func(event.Event) error {
		panic("unexpected")
	})
	r.Dispatch(event.New(event.TTSStart, nil))
}

func TestRegisterReplacesPreviousHandler(t *testing.T) {
	r := New(false)
	first := 0
	second := 0
	r.Register(event.LLMComplete, func(event.Event) error {
		first++
		return nil
	})
	r.Register(event.LLMComplete, func(event.Event) error {
		second++
		return nil
	})
	r.Dispatch(event.New(event.LLMComplete, nil))
	if first != 0 || second != 1 {
		t.Fatalf("expected only the latest handler to run, got first=%d second=%d", first, second)
	}
}
