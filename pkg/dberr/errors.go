// Package dberr defines the typed error domains and codes the engine's
// public operations return instead of throwing, per the C++ source's
// use of exceptions for control flow.
package dberr

import "fmt"

// Domain groups related error Codes together.
type Domain string

const (
	Core      Domain = "Core"
	POSIX     Domain = "POSIX"
	Network   Domain = "Network"
	WebSocket Domain = "WebSocket"
)

// Code is an opaque error code scoped to a Domain.
type Code int

const (
	CodeNone Code = iota
	NotOpen
	NotWriteable
	CantOpenFile
	NotADatabaseFile
	NotSequenced
	NotFound
	Conflict
	CorruptRevisionData
	CorruptIndexData
	Unimplemented
	TransactionNotClosed
	InvalidParameter
	Unexpected
)

// Network-domain codes.
const (
	DNS Code = iota + 100
	Connect
	Timeout
)

var coreNames = map[Code]string{
	NotOpen:               "NotOpen",
	NotWriteable:          "NotWriteable",
	CantOpenFile:          "CantOpenFile",
	NotADatabaseFile:      "NotADatabaseFile",
	NotSequenced:          "NotSequenced",
	NotFound:              "NotFound",
	Conflict:              "Conflict",
	CorruptRevisionData:   "CorruptRevisionData",
	CorruptIndexData:      "CorruptIndexData",
	Unimplemented:         "Unimplemented",
	TransactionNotClosed:  "TransactionNotClosed",
	InvalidParameter:      "InvalidParameter",
	Unexpected:            "Unexpected",
}

// Error is the populated error record every failing public operation
// returns: {domain, code, message}.
type Error struct {
	Domain  Domain
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	name, ok := coreNames[e.Code]
	if !ok {
		name = fmt.Sprintf("code(%d)", e.Code)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Domain, name, e.Message, e.cause)
	}
	return fmt.Sprintf("%s/%s: %s", e.Domain, name, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// New builds a Core-domain error.
func New(code Code, message string) *Error {
	return &Error{Domain: Core, Code: code, Message: message}
}

// Newf builds a Core-domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Domain: Core, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a Core-domain error that carries an underlying cause.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{Domain: Core, Code: code, Message: message, cause: cause}
}

// NewNetwork builds a Network-domain error.
func NewNetwork(code Code, message string) *Error {
	return &Error{Domain: Network, Code: code, Message: message}
}

// NewWebSocket builds a WebSocket-domain error carrying a numeric close code.
func NewWebSocket(closeCode int, message string) *Error {
	return &Error{Domain: WebSocket, Code: Code(closeCode), Message: message}
}

// Is reports whether err is a *Error with the given domain and code.
func Is(err error, domain Domain, code Code) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Domain == domain && e.Code == code
}
