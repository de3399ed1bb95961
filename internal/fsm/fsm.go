package fsm

import (
	"fmt"
	"log"
	"sync"

	"github.com/mjolnir-labs/heisenberg-core/internal/event"
	"github.com/mjolnir-labs/heisenberg-core/internal/router"
	"github.com/mjolnir-labs/heisenberg-core/internal/session"
)

// transitions encodes the table from the component design: (from-state,
// event kind) -> to-state. ErrorOccurred is valid from any state and is
// checked separately below. TTSStart/TTSComplete model the not-yet-wired
// speech-synthesis path; kept so the state machine already knows the
// THINKING->SPEAKING->IDLE shape once TTS is implemented.
var transitions = map[State]map[event.Kind]State{
	Idle: {
		event.WakewordDetected: Listening,
	},
	Listening: {
		event.TranscriptionFinal: Thinking,
		event.Timeout:            Idle,
	},
	Thinking: {
		event.TTSStart:    Speaking,
		event.LLMComplete: Idle,
	},
	Speaking: {
		event.TTSComplete: Idle,
	},
}

// FSM holds the current conversational state and the active session. All
// transitions are expected to be driven from a single goroutine (the main
// loop); the mutex guards State() reads from elsewhere (metrics, tests).
type FSM struct {
	mu      sync.RWMutex
	state   State
	sess    *session.Session
	router  *router.Router
	verbose bool
}

// New creates an FSM dispatching through r. The FSM starts in IDLE with no
// session until Start is called.
func New(r *router.Router, verbose bool) *FSM {
	return &FSM{
		state:   Idle,
		router:  r,
		verbose: verbose,
	}
}

// Start begins a new session and forces the state to IDLE, per the
// contract that start() always resets to a clean slate.
func (f *FSM) Start() *session.Session {
	f.mu.Lock()
	f.sess = session.New()
	f.state = Idle
	f.mu.Unlock()
	return f.sess
}

// State returns the current state.
func (f *FSM) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Session returns the active session, or nil if Start has not been called.
func (f *FSM) Session() *session.Session {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.sess
}

// HandleEvent validates and applies the transition for e, then dispatches
// e through the router. A self-transition (computed new state equals old)
// is a no-op transition but the event is still dispatched. An event with
// no transition defined for the current state is dispatched without
// changing state — the router's own missing-handler path covers unhandled
// combinations without the FSM treating them as errors.
func (f *FSM) HandleEvent(e event.Event) {
	if e.Kind == event.ErrorOccurred {
		f.mu.Lock()
		from := f.state
		f.state = Idle
		f.mu.Unlock()
		if f.verbose {
			log.Printf("[fsm] %s -ERROR_OCCURRED-> ERROR -> IDLE", from)
		}
		f.router.Dispatch(e)
		return
	}

	f.mu.Lock()
	from := f.state
	to, ok := transitions[from][e.Kind]
	if ok && to != from {
		f.state = to
	}
	f.mu.Unlock()

	if ok && f.verbose {
		log.Printf("[fsm] %s -%s-> %s", from, e.Kind, to)
	}

	f.router.Dispatch(e)
}

// Validate reports whether e.Kind has a defined transition from the
// current state. Used by callers (e.g. the main loop) that want to know
// before dispatching whether an event is meaningful in the current state.
func (f *FSM) Validate(kind event.Kind) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if kind == event.ErrorOccurred {
		return nil
	}
	if _, ok := transitions[f.state][kind]; !ok {
		return fmt.Errorf("fsm: no transition for %s from %s", kind, f.state)
	}
	return nil
}
