// Package jqe provides a mechanism to create or wrap errors with a Kind so
// that callers can tell configuration mistakes from storage failures and
// corrupt spill data.
package jqe

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
)

// A Kind represents a class of error.
type Kind int

const (
	Other Kind = iota
	Invalid
	IO
	Corrupt
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case Invalid:
		return "invalid operation"
	case IO:
		return "I/O error"
	case Corrupt:
		return "corrupt data"
	}
	return "unknown error kind"
}

type Error struct {
	Kind Kind
	Err  error
}

func pad(b *bytes.Buffer, s string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(s)
}

func (e *Error) Error() string {
	b := &bytes.Buffer{}
	if e.Kind != Other {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		pad(b, ": ")
		b.WriteString(e.Err.Error())
	}
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns just the Err.Error() string, if present, or the Kind
// string description.
func (e *Error) Message() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Kind != Other {
		return e.Kind.String()
	}
	return "no error"
}

// E generates an error from any mix of:
// - a Kind
// - an existing error
// - a string and optional formatting verbs, like fmt.Errorf (including support
//	for the `%w` verb).
//
// The string & format verbs must be last in the arguments, if present.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("no args to jqe.E")
	}
	e := &Error{}
	for i, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case error:
			e.Err = arg
		case string:
			e.Err = fmt.Errorf(arg, args[i+1:]...)
			return e
		default:
			_, file, line, _ := runtime.Caller(1)
			return fmt.Errorf("unknown type %T value %v in jqe.E call at %v:%v", arg, arg, file, line)
		}
	}
	return e
}

// IsKind reports whether any error in err's chain is a *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == k {
			return true
		}
		err = e.Err
	}
	return false
}

func ErrInvalid(format string, args ...interface{}) error {
	return &Error{Kind: Invalid, Err: fmt.Errorf(format, args...)}
}

func ErrIO(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: IO, Err: err}
}

func ErrCorrupt(format string, args ...interface{}) error {
	return &Error{Kind: Corrupt, Err: fmt.Errorf(format, args...)}
}
