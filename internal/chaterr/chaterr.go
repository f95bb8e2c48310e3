// Package chaterr defines the error kinds shared by the store, the
// synchronization engine and the request layer.
package chaterr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindConflict
	KindStorage
	KindDelivery
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation error"
	case KindAuthorization:
		return "authorization error"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage error"
	case KindDelivery:
		return "delivery error"
	}
	return "unknown error"
}

// Error is an operation failure tagged with a Kind.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func E(op string, kind Kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func Errorf(op string, kind Kind, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

func Validation(op, msg string) error {
	return &Error{Op: op, Kind: KindValidation, Err: errors.New(msg)}
}

func Authorization(op, msg string) error {
	return &Error{Op: op, Kind: KindAuthorization, Err: errors.New(msg)}
}

func NotFound(op, msg string) error {
	return &Error{Op: op, Kind: KindNotFound, Err: errors.New(msg)}
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return KindUnknown
		}
		if e.Kind != KindUnknown {
			return e.Kind
		}
		err = e.Err
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
