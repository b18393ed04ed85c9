// Package failures classifies errors raised while driving a task so the run
// loop can decide between recovery and abort without inspecting messages.
package failures

import (
	"errors"
	"fmt"
)

// Kind is the category of a run failure.
type Kind string

const (
	KindPlanning       Kind = "PLANNING_FAILURE"
	KindExecution      Kind = "EXECUTION_FAILURE"
	KindAssertion      Kind = "ASSERTION_FAILURE"
	KindResolution     Kind = "RESOLUTION_FAILURE"
	KindOracleProtocol Kind = "ORACLE_PROTOCOL_FAILURE"
)

// Error is a classified failure. Op names the component that raised it.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a failure with a formatted message.
func New(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf reports the outermost classification in err's chain. Unclassified
// errors count as execution failures; they come from the driver or a handler.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindExecution
}

// IsAssertion reports whether err carries an assertion failure anywhere in its chain.
func IsAssertion(err error) bool {
	for err != nil {
		var fe *Error
		if !errors.As(err, &fe) {
			return false
		}
		if fe.Kind == KindAssertion {
			return true
		}
		err = fe.Err
	}
	return false
}

// Recoverable reports whether the failure analyzer may attempt a recovery.
func Recoverable(err error) bool {
	if err == nil || IsAssertion(err) {
		return false
	}
	switch KindOf(err) {
	case KindExecution, KindResolution:
		return true
	default:
		return false
	}
}
