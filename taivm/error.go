package taivm

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	ErrMalformed = ErrorKind(iota)
	ErrType
	ErrName
	ErrApplicability
	ErrArity
	ErrResource
	// raised by the program itself
	ErrUser
)

var strErrorKind = []string{
	"malformed input",
	"type error",
	"unbound variable",
	"not applicable",
	"wrong number of arguments",
	"resource exhausted",
	"error",
}

func (k ErrorKind) String() string {
	return strErrorKind[k]
}

// Error is a fatal runtime error. Programs cannot observe or recover from it.
type Error struct {
	Kind ErrorKind
	Msg  string
	PC   Addr // instruction being executed, -1 outside the dispatch loop
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.PC >= 0 {
		msg += fmt.Sprintf(" at %d", e.PC)
	}
	return msg
}

func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{
		Kind: kind,
		Msg:  fmt.Sprintf(format, args...),
		PC:   -1,
	}
}

func TypeError(want string, got Value) *Error {
	return Errorf(ErrType, "expecting %s, got %s", want, got.Kind)
}

const (
	ExitUsage    = 1
	ExitRuntime  = 2
	ExitResource = 3
)

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if !errors.As(err, &e) {
		return ExitUsage
	}
	switch e.Kind {
	case ErrMalformed:
		return ExitUsage
	case ErrResource:
		return ExitResource
	}
	return ExitRuntime
}
