package writer

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per error kind. WriteError matches them with errors.Is.
var (
	ErrEncoding      = errors.New("encoding failed")
	ErrIO            = errors.New("I/O failed")
	ErrTablePoisoned = errors.New("writer table lock poisoned")
	ErrSlotPoisoned  = errors.New("writer slot lock poisoned")
)

// Kind classifies a WriteError.
type Kind int

const (
	// KindEncoding: the encoder rejected a batch or could not be built from its schema.
	KindEncoding Kind = iota + 1
	// KindIO: directory creation, file open, write, sync or close failed.
	KindIO
	// KindTablePoisoned: the table's structural lock is unusable.
	KindTablePoisoned
	// KindSlotPoisoned: one (stream, schema) slot's lock is unusable.
	KindSlotPoisoned
)

func (k Kind) String() string {
	switch k {
	case KindEncoding:
		return "encoding"
	case KindIO:
		return "io"
	case KindTablePoisoned:
		return "table_poisoned"
	case KindSlotPoisoned:
		return "slot_poisoned"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindEncoding:
		return ErrEncoding
	case KindIO:
		return ErrIO
	case KindTablePoisoned:
		return ErrTablePoisoned
	case KindSlotPoisoned:
		return ErrSlotPoisoned
	default:
		return nil
	}
}

// WriteError provides structured error information for registry operations.
type WriteError struct {
	Op        string // Operation that failed (e.g., "append", "finalize")
	Stream    string
	SchemaKey string
	Path      string // Staged file, when known
	Kind      Kind
	Cause     error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	target := e.Stream
	if e.SchemaKey != "" {
		target = fmt.Sprintf("%s/%s", e.Stream, e.SchemaKey)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s %s (%s) [%s]: %v", e.Op, target, e.Path, e.Kind, e.Cause)
	}
	if target != "" {
		return fmt.Sprintf("%s %s [%s]: %v", e.Op, target, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *WriteError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel of this error's kind or matches its cause.
func (e *WriteError) Is(target error) bool {
	if target == nil {
		return false
	}
	if s := e.Kind.sentinel(); s != nil && s == target {
		return true
	}
	return errors.Is(e.Cause, target)
}

// ErrorBuilder provides a fluent interface for building WriteErrors.
type ErrorBuilder struct {
	err WriteError
}

// NewError creates a new error builder with the given operation.
func NewError(op string) *ErrorBuilder {
	return &ErrorBuilder{err: WriteError{Op: op}}
}

// Target sets the (stream, schema) pair.
func (b *ErrorBuilder) Target(stream, schemaKey string) *ErrorBuilder {
	b.err.Stream = stream
	b.err.SchemaKey = schemaKey
	return b
}

// Path sets the staged file path.
func (b *ErrorBuilder) Path(path string) *ErrorBuilder {
	b.err.Path = path
	return b
}

// Kind sets the error kind.
func (b *ErrorBuilder) Kind(k Kind) *ErrorBuilder {
	b.err.Kind = k
	return b
}

// Cause sets the underlying error cause.
func (b *ErrorBuilder) Cause(err error) *ErrorBuilder {
	b.err.Cause = err
	return b
}

// Build returns the constructed WriteError.
func (b *ErrorBuilder) Build() *WriteError {
	return &b.err
}

// Err returns the error as an error interface.
func (b *ErrorBuilder) Err() error {
	return &b.err
}

// KindOf returns the kind of the first WriteError in err's chain, or 0.
func KindOf(err error) Kind {
	var we *WriteError
	if errors.As(err, &we) {
		return we.Kind
	}
	return 0
}

// IsPoisoned reports whether err is a table or slot poisoning error.
func IsPoisoned(err error) bool {
	return errors.Is(err, ErrTablePoisoned) || errors.Is(err, ErrSlotPoisoned)
}
