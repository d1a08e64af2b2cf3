package errors

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseBuffer    Phase = "buffer"    // byte buffer growth
	PhaseLEB128    Phase = "leb128"    // variable-length integers
	PhasePrincipal Phase = "principal" // principal parsing
	PhaseArena     Phase = "arena"     // arena allocation
	PhaseType      Phase = "type"      // type construction
	PhaseEncode    Phase = "encode"    // values to Candid bytes
	PhaseDecode    Phase = "decode"    // Candid bytes to values
	PhaseStable    Phase = "stable"    // stable memory cursors
	PhaseShim      Phase = "shim"      // host shim operations
	PhaseConfig    Phase = "config"    // configuration loading
)

// Kind categorizes the error. Kinds are the outward result codes.
type Kind string

const (
	KindOK             Kind = ""
	KindInvalidArg     Kind = "invalid_arg"
	KindNotFound       Kind = "not_found"
	KindOutOfMemory    Kind = "out_of_memory"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindIO             Kind = "io"
	KindUnsupported    Kind = "unsupported"
	KindBufferOverflow Kind = "buffer_overflow"
)

// Sentinels for matching on kind alone with errors.Is.
var (
	ErrInvalidArg     = &Error{Kind: KindInvalidArg}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrOutOfMemory    = &Error{Kind: KindOutOfMemory}
	ErrOutOfBounds    = &Error{Kind: KindOutOfBounds}
	ErrIO             = &Error{Kind: KindIO}
	ErrUnsupported    = &Error{Kind: KindUnsupported}
	ErrBufferOverflow = &Error{Kind: KindBufferOverflow}
)

// Error is the structured error type used throughout the kit
type Error struct {
	Value     any
	Cause     error
	Phase     Phase
	Kind      Kind
	Detail    string
	Path      []string
	Offset    int64
	HasOffset bool
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.HasOffset {
		b.WriteString(" (offset ")
		b.WriteString(strconv.FormatInt(e.Offset, 10))
		b.WriteByte(')')
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a phase matches on kind only.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// KindOf returns the result code carried by err.
// Nil is KindOK; errors that carry no kind are reported as KindIO.
func KindOf(err error) Kind {
	if err == nil {
		return KindOK
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindIO
}

// OffsetOf returns the byte offset recorded on err, if any.
func OffsetOf(err error) (int64, bool) {
	var e *Error
	if stderrors.As(err, &e) && e.HasOffset {
		return e.Offset, true
	}
	return 0, false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// At records the byte offset where the failure was detected
func (b *Builder) At(offset int64) *Builder {
	b.err.Offset = offset
	b.err.HasOffset = true
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidArg creates an invalid argument error
func InvalidArg(phase Phase, detail string, args ...any) *Error {
	return New(phase, KindInvalidArg).Detail(detail, args...).Build()
}

// NotFound creates a lookup failure error
func NotFound(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%q not found", what),
		Value:  what,
	}
}

// OutOfBounds creates an addressing error for a range [offset, offset+length)
// that does not fit in size
func OutOfBounds(phase Phase, offset, length, size int64) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindOutOfBounds,
		Detail:    fmt.Sprintf("range [%d, +%d) exceeds size %d", offset, length, size),
		Offset:    offset,
		HasOffset: true,
	}
}

// OutOfMemory creates an allocation or growth failure error
func OutOfMemory(phase Phase, detail string, args ...any) *Error {
	return New(phase, KindOutOfMemory).Detail(detail, args...).Build()
}

// BufferOverflow creates a size arithmetic overflow error
func BufferOverflow(phase Phase, size, additional uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBufferOverflow,
		Detail: fmt.Sprintf("size %d + %d overflows", size, additional),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// IO wraps a host I/O failure
func IO(phase Phase, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIO,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// WithOffset returns err annotated with offset when err is an *Error
// without a recorded offset. Other errors are returned unchanged.
func WithOffset(err error, offset int64) error {
	e, ok := err.(*Error)
	if !ok || e.HasOffset {
		return err
	}
	cp := *e
	cp.Offset = offset
	cp.HasOffset = true
	return &cp
}
