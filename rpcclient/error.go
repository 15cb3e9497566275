// Copyright (c) 2020-2021 The Decred developers
// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcclient

import (
	"encoding/json"
	"fmt"

	"github.com/decred/dcrd/dcrjson/v4"
)

// ErrorKind identifies a kind of error.  It has full support for errors.Is
// and errors.As, so the caller can directly check against an error kind
// when determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific Error.
const (
	// ErrInvalidRequest indicates a call could not be turned into a valid
	// JSON-RPC request, such as when the method name is missing.
	ErrInvalidRequest = ErrorKind("ErrInvalidRequest")

	// ErrTransport indicates the HTTP exchange with the node failed before a
	// response body could be read.
	ErrTransport = ErrorKind("ErrTransport")

	// ErrInvalidResponse indicates the node replied with something that is
	// not a well formed JSON-RPC response for the request that was sent.
	ErrInvalidResponse = ErrorKind("ErrInvalidResponse")

	// ErrUnsafeHost indicates the target URL does not resolve to a local or
	// private host and insecure targets are not allowed.
	ErrUnsafeHost = ErrorKind("ErrUnsafeHost")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies a local failure while issuing an RPC.  It has full support
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

// RPCError is an error reported by the node in the error member of a JSON-RPC
// response.  It is not a local fault: the request reached the node and was
// processed.
type RPCError struct {
	// Code is the JSON-RPC error code.  HasCode is false when the node
	// omitted the code or sent a non-integer value.
	Code    dcrjson.RPCErrorCode
	HasCode bool

	Message string

	// Data is the optional data member of the error, verbatim.
	Data json.RawMessage
}

// Error satisfies the error interface and prints human-readable errors.
func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error: %s", e.Message)
}

// rawRPCError is the wire form of the error member of a JSON-RPC response.
type rawRPCError struct {
	Code    json.RawMessage `json:"code"`
	Message *string         `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// toRPCError converts a decoded error member into an RPCError.  Missing
// messages are replaced with a generic one so the error is never blank.
func (r *rawRPCError) toRPCError() *RPCError {
	e := &RPCError{Message: "unknown rpc error"}
	if r.Message != nil {
		e.Message = *r.Message
	}
	var code int64
	if len(r.Code) > 0 && json.Unmarshal(r.Code, &code) == nil {
		e.Code = dcrjson.RPCErrorCode(code)
		e.HasCode = true
	}
	if len(r.Data) > 0 && string(r.Data) != "null" {
		e.Data = r.Data
	}
	return e
}
