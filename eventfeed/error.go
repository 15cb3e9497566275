// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eventfeed

// ErrorKind identifies a kind of error.  It has full support for errors.Is
// and errors.As, so the caller can directly check against an error kind
// when determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific Error.
const (
	// ErrRecvTimeout indicates no message arrived within the receive
	// timeout.  It is not a failure and the receive loop simply tries
	// again.
	ErrRecvTimeout = ErrorKind("ErrRecvTimeout")

	// ErrNotFound indicates a requested message is not in the buffer.
	ErrNotFound = ErrorKind("ErrNotFound")

	// ErrAlreadyRunning indicates Start was called while a subscription was
	// active.
	ErrAlreadyRunning = ErrorKind("ErrAlreadyRunning")

	// ErrNoAddress indicates Start was called without an address.
	ErrNoAddress = ErrorKind("ErrNoAddress")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies an error related to the event feed.  It has full support
// for errors.Is and errors.As, so the caller can ascertain the specific reason
// for the error by checking the underlying error.
type Error struct {
	Err         error
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// makeError creates an Error given a set of arguments.
func makeError(kind ErrorKind, desc string) Error {
	return Error{Err: kind, Description: desc}
}
