package tokenizer

import (
	"errors"
	"fmt"
)

// Kind classifies construction failures.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindIO
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindIO:
		return "io"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is returned by Provider.Construct.
type Error struct {
	Kind  Kind
	Model string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("tokenizer %s: %s", e.Model, e.Kind)
	}
	return fmt.Sprintf("tokenizer %s: %s: %v", e.Model, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func errNotFound(model string, err error) error {
	return &Error{Kind: KindNotFound, Model: model, Err: err}
}

func errIO(model string, err error) error { return &Error{Kind: KindIO, Model: model, Err: err} }

func errValidation(model string, err error) error {
	return &Error{Kind: KindValidation, Model: model, Err: err}
}

// KindOf returns the Kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

// IsNotFound reports whether err indicates a missing vocabulary or encoding.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsIO reports whether err indicates a transport or filesystem failure.
func IsIO(err error) bool { return KindOf(err) == KindIO }

// IsValidation reports whether err indicates a malformed name or vocabulary.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// NewError builds an *Error; providers outside this package use it.
func NewError(kind Kind, model string, err error) error {
	return &Error{Kind: kind, Model: model, Err: err}
}
