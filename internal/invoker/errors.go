package invoker

import (
	"errors"
	"fmt"
)

// Kind classifies why an invocation did not produce a result.
type Kind string

const (
	// KindLaunch means the interpreter or script could not be started.
	KindLaunch Kind = "launch"
	// KindExit means the script exited with a non-zero status.
	KindExit Kind = "exit"
	// KindEmptyOutput means the script exited cleanly but printed nothing usable.
	KindEmptyOutput Kind = "empty_output"
	// KindValidation means the selected line carried none of the expected markers.
	KindValidation Kind = "validation"
	// KindTimeout means the script ran past the configured timeout and was killed.
	KindTimeout Kind = "timeout"
	// KindCanceled means the caller gave up before the script finished.
	KindCanceled Kind = "canceled"
)

// Error is the failure side of an invocation. Diagnostic holds the last
// output line for server-side logs; it must not be sent to clients.
type Error struct {
	Kind       Kind
	Operation  string
	ExitCode   int
	Diagnostic string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s invocation failed: %s", e.Operation, e.Kind)
	if e.Kind == KindExit {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind of err, or "" if err is not an
// invocation error.
func KindOf(err error) Kind {
	var invErr *Error
	if errors.As(err, &invErr) {
		return invErr.Kind
	}
	return ""
}
