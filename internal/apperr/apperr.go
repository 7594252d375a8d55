// Package apperr defines the typed failures surfaced by pipeline stages.
// Every error carries the source coordinates of the site that raised it and
// keeps the underlying cause attached, so callers can classify failures with
// errors.Is / KindOf without inspecting library-specific error types.
package apperr

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindDataLoad
	KindTraining
	KindModelRejected
	KindPersist
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindDataLoad:
		return "data load error"
	case KindTraining:
		return "training error"
	case KindModelRejected:
		return "model rejected"
	case KindPersist:
		return "artifact persist error"
	case KindConfig:
		return "configuration error"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is matching by kind.
var (
	ErrDataLoad      = &Error{Kind: KindDataLoad}
	ErrTraining      = &Error{Kind: KindTraining}
	ErrModelRejected = &Error{Kind: KindModelRejected}
	ErrPersist       = &Error{Kind: KindPersist}
	ErrConfig        = &Error{Kind: KindConfig}
)

// Error is a classified failure with provenance.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "load train array"
	File string // source file of the failure site
	Line int    // source line of the failure site
	Err  error  // original cause
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: error occurred in [%s] at line [%d]", e.Kind, e.File, e.Line)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Format prints the cause's stack trace with %+v.
func (e *Error) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') && e.Err != nil {
		fmt.Fprintf(s, "%s\n%+v", e.Error(), e.Err)
		return
	}
	fmt.Fprint(s, e.Error())
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op string, cause error) *Error {
	e := &Error{Kind: kind, Op: op, File: "unknown", Err: cause}
	// skip newError and the exported constructor
	if _, file, line, ok := runtime.Caller(2); ok {
		e.File = filepath.Base(file)
		e.Line = line
	}
	if cause != nil {
		e.Err = pkgerrors.WithStack(cause)
	}
	return e
}

// DataLoad reports missing or malformed serialized input.
func DataLoad(op string, cause error) *Error { return newError(KindDataLoad, op, cause) }

// Training reports a failure while building, fitting or scoring a model.
func Training(op string, cause error) *Error { return newError(KindTraining, op, cause) }

// ModelRejected reports a model that did not pass the acceptance gate.
func ModelRejected(op string, cause error) *Error { return newError(KindModelRejected, op, cause) }

// Persist reports a failure writing an artifact.
func Persist(op string, cause error) *Error { return newError(KindPersist, op, cause) }

// Config reports invalid or missing configuration.
func Config(op string, cause error) *Error { return newError(KindConfig, op, cause) }

// Newf builds a plain cause with a stack, for failure sites that have no
// underlying error to wrap.
func Newf(format string, args ...interface{}) error {
	return pkgerrors.Errorf(format, args...)
}
