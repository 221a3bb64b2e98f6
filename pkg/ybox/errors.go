// Package ybox holds the cross-cutting pieces every ybox-* binary shares:
// the error taxonomy, exit-code mapping, logging setup, and version
// stamping. It has no dependency on any other ybox/pkg package so that
// every other package can import it.
package ybox

import (
	"fmt"

	"github.com/go-errors/errors"
	"golang.org/x/xerrors"
)

// Kind identifies one member of the process's error taxonomy.
type Kind int

const (
	// KindConfig covers INI parse errors, include cycles, and interpolation failures.
	KindConfig Kind = iota
	// KindSchema covers DB open, migration failure, or version-too-new errors.
	KindSchema
	// KindEngine covers a missing engine binary or a non-zero exit from it.
	KindEngine
	// KindLockTimeout covers a blocking advisory lock that was not acquired in time.
	KindLockTimeout
	// KindPackageOp covers an install/uninstall that failed even after the one retry.
	KindPackageOp
	// KindContainerNotReady covers a status file that never reached "started".
	KindContainerNotReady
	// KindInterrupted covers a SIGINT/SIGTERM during a suspension point.
	KindInterrupted
	// KindUserAbort covers an explicit user cancellation (e.g. declining a prompt).
	KindUserAbort
	// KindUser covers plain user error: bad arguments, unknown container, etc.
	KindUser
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindSchema:
		return "SchemaError"
	case KindEngine:
		return "EngineError"
	case KindLockTimeout:
		return "LockTimeoutError"
	case KindPackageOp:
		return "PackageOpError"
	case KindContainerNotReady:
		return "ContainerNotReadyError"
	case KindInterrupted:
		return "Interrupted"
	case KindUserAbort:
		return "UserAbort"
	default:
		return "UserError"
	}
}

// ExitCode maps a Kind onto the process's fixed exit codes.
func (k Kind) ExitCode() int {
	switch k {
	case KindUser:
		return 1
	case KindEngine:
		return 2
	case KindLockTimeout:
		return 3
	case KindSchema:
		return 4
	case KindUserAbort:
		return 5
	case KindContainerNotReady, KindPackageOp, KindConfig, KindInterrupted:
		return 2
	default:
		return 1
	}
}

// TypedError carries a Kind and free-form context alongside the
// underlying error.
type TypedError struct {
	Kind    Kind
	Context string
	Err     error
	frame   xerrors.Frame
}

// NewError builds a TypedError, capturing the call site as an xerrors.Frame.
func NewError(kind Kind, context string, err error) *TypedError {
	return &TypedError{Kind: kind, Context: context, Err: err, frame: xerrors.Caller(1)}
}

func (e *TypedError) FormatError(p xerrors.Printer) error {
	if e.Context != "" {
		p.Printf("%s: %s: %v", e.Kind, e.Context, e.Err)
	} else {
		p.Printf("%s: %v", e.Kind, e.Err)
	}
	e.frame.Format(p)
	return nil
}

func (e *TypedError) Format(f fmt.State, c rune) {
	xerrors.FormatError(e, f, c)
}

func (e *TypedError) Error() string {
	return fmt.Sprint(e)
}

func (e *TypedError) Unwrap() error {
	return e.Err
}

// AsTyped extracts a *TypedError from err, if one is anywhere in its chain.
func AsTyped(err error) (*TypedError, bool) {
	var te *TypedError
	if xerrors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// ExitCodeFor maps any error onto the process's fixed exit codes,
// defaulting to 2 (I/O or engine error) for an error of unknown kind.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if te, ok := AsTyped(err); ok {
		return te.Kind.ExitCode()
	}
	return 2
}

// WrapError wraps err for the sake of showing a stack trace at the top
// level: go-errors.Wrap does not return nil for a nil input, so that
// case is special-cased here.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, 0)
}

// StackTrace renders the stack trace of an error wrapped with WrapError, or
// just its message if it was not produced that way.
func StackTrace(err error) string {
	if goErr, ok := err.(*errors.Error); ok {
		return goErr.ErrorStack()
	}
	return err.Error()
}
