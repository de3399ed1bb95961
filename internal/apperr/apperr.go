// Package apperr provides the shared error-kind taxonomy used across the
// voice pipeline so callers can branch on failure category with errors.Is
// instead of string matching.
package apperr

import "fmt"

// Kind discriminates the five error categories the pipeline can raise.
type Kind string

const (
	KindAudio         Kind = "audio"
	KindWakeWord      Kind = "wakeword"
	KindSTT           Kind = "stt"
	KindLLM           Kind = "llm"
	KindConfiguration Kind = "configuration"
)

// sentinel values for errors.Is comparisons against a bare kind, e.g.
// errors.Is(err, apperr.Audio).
var (
	Audio         = &Error{Kind: KindAudio}
	WakeWord      = &Error{Kind: KindWakeWord}
	STT           = &Error{Kind: KindSTT}
	LLM           = &Error{Kind: KindLLM}
	Configuration = &Error{Kind: KindConfiguration}
)

// Error wraps an underlying error with a Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error", e.Kind)
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, apperr.Audio) match any *Error of the same Kind,
// regardless of Op or the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Err != nil || t.Op != "" {
		return false
	}
	return t.Kind == e.Kind
}

func newErr(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func NewAudioError(op string, err error) error         { return newErr(KindAudio, op, err) }
func NewWakeWordError(op string, err error) error      { return newErr(KindWakeWord, op, err) }
func NewSTTError(op string, err error) error           { return newErr(KindSTT, op, err) }
func NewLLMError(op string, err error) error           { return newErr(KindLLM, op, err) }
func NewConfigurationError(op string, err error) error { return newErr(KindConfiguration, op, err) }
