// Package router provides the event router (C6): a mapping from event kind
// to at most one handler, dispatched with error isolation so a faulty
// handler never tears down the event loop.
package router

import (
	"log"
	"sync"

	"github.com/mjolnir-labs/heisenberg-core/internal/event"
)

// Handler processes a dispatched event. Handlers are expected to return
// promptly or spawn their own work; dispatch does not enforce a timeout.
type Handler func(event.Event) error

// Router maps event kinds to at most one handler each.
type Router struct {
	mu       sync.RWMutex
	handlers map[event.Kind]Handler
	verbose  bool
}

// New creates an empty Router.
func New(verbose bool) *Router {
	return &Router{
		handlers: make(map[event.Kind]Handler),
		verbose:  verbose,
	}
}

// Register installs h as the handler for kind, replacing any previous
// handler for that kind.
func (r *Router) Register(kind event.Kind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// Dispatch looks up the handler for e.Kind and invokes it. A handler error
// is caught and logged with the event kind, never propagated — this is the
// isolation boundary that keeps one faulty handler from killing the loop.
// A missing handler logs at debug level (here: only when verbose) and is
// not an error.
func (r *Router) Dispatch(e event.Event) {
	r.mu.RLock()
	h, ok := r.handlers[e.Kind]
	r.mu.RUnlock()

	if !ok {
		if r.verbose {
			log.Printf("[router] no handler registered for %s", e.Kind)
		}
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[router] handler for %s panicked: %v", e.Kind, rec)
		}
	}()

	if err := h(e); err != nil {
		log.Printf("[router] handler for %s returned error: %v", e.Kind, err)
	}
}
