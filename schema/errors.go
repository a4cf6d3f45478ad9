package schema

import (
	"fmt"
	"strings"

	"github.com/binschema/binschema/schema/docnode"
)

// ErrCode distinguishes the fixed taxonomy of compile-time failures a
// schema can produce.
type ErrCode uint16

const (
	// CodeSchemaError is a structural problem in the document tree itself
	// (wrong node kind, missing required key, unknown key).
	CodeSchemaError ErrCode = iota + 1
	// CodeUnresolvedType names a struct/enum reference with no matching
	// definition in the unit (including its includes).
	CodeUnresolvedType
	// CodeCircularType marks a struct reference cycle. The one cycle not
	// reported is a struct naming itself as an until-array's element.
	CodeCircularType
	// CodeForwardReference marks a length/gate/until expression naming a
	// field not yet defined earlier in the same struct.
	CodeForwardReference
	// CodeAssertionIncompatible marks an assertion literal whose shape
	// does not match its field's kind (e.g. an integer equals on a blob).
	CodeAssertionIncompatible
	// CodeUnsupportedExpression marks a gate/until expression outside the
	// supported grammar.
	CodeUnsupportedExpression
	// CodeEmitterError marks a failure raised by a codegen backend.
	CodeEmitterError
)

func (c ErrCode) String() string {
	switch c {
	case CodeSchemaError:
		return "SchemaError"
	case CodeUnresolvedType:
		return "UnresolvedType"
	case CodeCircularType:
		return "CircularType"
	case CodeForwardReference:
		return "ForwardReference"
	case CodeAssertionIncompatible:
		return "AssertionIncompatible"
	case CodeUnsupportedExpression:
		return "UnsupportedExpression"
	case CodeEmitterError:
		return "EmitterError"
	default:
		return "Unknown"
	}
}

// Detail is a key/value pair attached to an [Error] for diagnostic
// rendering, e.g. the offending field name or literal.
type Detail struct {
	Key   string
	Value any
}

var _ error = (*Error)(nil)

// Error is the error type produced throughout the front-end, analyzer and
// lowering. It carries a source [docnode.Span] so [diag.Render] can print
// a caret/underline block, and composes with errors.Is/errors.As via
// Unwrap the way a plain wrapped error does.
type Error struct {
	Code    ErrCode
	Message string
	Span    docnode.Span
	Details []Detail
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s: %s", e.Span, e.Code, e.Message)
	for _, d := range e.Details {
		fmt.Fprintf(&sb, " (%s=%v)", d.Key, d.Value)
	}
	if e.Wrapped != nil {
		fmt.Fprintf(&sb, ": %s", e.Wrapped)
	}
	return sb.String()
}

// Unwrap returns the wrapped error, if any.
func (e *Error) Unwrap() error { return e.Wrapped }

// Is reports whether cmp is an [Error] with the same code and message,
// so errors.Is can compare without inspecting spans.
func (e *Error) Is(cmp error) bool {
	xe, ok := cmp.(*Error)
	if !ok || xe == nil {
		return false
	}
	return e.Code == xe.Code && e.Message == xe.Message
}

// WithDetail appends a key/value detail and returns e for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	e.Details = append(e.Details, Detail{Key: key, Value: value})
	return e
}

// Errf builds an [Error] with a formatted message.
func Errf(code ErrCode, span docnode.Span, format string, args ...any) *Error {
	return &Error{Code: code, Span: span, Message: fmt.Sprintf(format, args...)}
}

// WrapErrf builds an [Error] wrapping err with a formatted message.
func WrapErrf(err error, code ErrCode, span docnode.Span, format string, args ...any) *Error {
	return &Error{Code: code, Span: span, Message: fmt.Sprintf(format, args...), Wrapped: err}
}
