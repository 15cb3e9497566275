// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcclient

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/decred/dcrd/dcrjson/v4"
)

// jsonrpcVersion is the protocol version stamped on outgoing envelopes when
// the caller did not ask for a specific one.
const jsonrpcVersion = "2.0"

// Call describes a single JSON-RPC method invocation.
type Call struct {
	// ID is the correlation id of the call.  A nil ID is replaced by the
	// 1-based position of the call within its batch (or 1 for a single call)
	// when the request is built.
	ID interface{}

	// Version is the jsonrpc member of the envelope.  It defaults to "2.0".
	Version string

	// Method is the RPC method name.  It must not be empty.
	Method string

	// Params are the positional parameters.  Each element is marshalled
	// individually, so pre-encoded json.RawMessage values pass through
	// untouched.
	Params []interface{}
}

// NewCall returns a call with an explicit id.
func NewCall(id interface{}, method string, params ...interface{}) Call {
	return Call{ID: id, Method: method, Params: params}
}

// request builds the wire envelope for the call, using fallbackID when the
// call does not carry its own id.
func (c *Call) request(fallbackID int) (*dcrjson.Request, error) {
	if c.Method == "" {
		return nil, makeError(ErrInvalidRequest, "missing RPC method")
	}

	id := c.ID
	if id == nil {
		id = fallbackID
	}
	if !dcrjson.IsValidIDType(id) {
		str := fmt.Sprintf("call %q: id of type %T is not a string or "+
			"number", c.Method, id)
		return nil, makeError(ErrInvalidRequest, str)
	}

	version := c.Version
	if version == "" {
		version = jsonrpcVersion
	}

	// Marshal parameters as "[]" instead of "null" when no parameters are
	// passed.
	params := make([]json.RawMessage, 0, len(c.Params))
	for i, param := range c.Params {
		marshalled, err := json.Marshal(param)
		if err != nil {
			str := fmt.Sprintf("call %q: unable to marshal param %d: %v",
				c.Method, i, err)
			return nil, makeError(ErrInvalidRequest, str)
		}
		params = append(params, marshalled)
	}

	return &dcrjson.Request{
		Jsonrpc: version,
		ID:      id,
		Method:  c.Method,
		Params:  params,
	}, nil
}

// idKey returns the canonical string used to correlate a request id with a
// response id.  Numbers are normalized through a float64 round trip so that
// 1 and 1.0 compare equal.
func idKey(id interface{}) (string, error) {
	switch v := id.(type) {
	case json.RawMessage:
		var decoded interface{}
		if err := json.Unmarshal(v, &decoded); err != nil {
			return "", err
		}
		id = decoded
	case nil:
		return "null", nil
	}

	var normalized interface{}
	b, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(b, &normalized); err != nil {
		return "", err
	}
	b, err = json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseRequest normalizes a JSON-RPC request supplied by an external caller.
// The body may be a single request object or an array of them.  The jsonrpc,
// id and params members are optional; missing ids are left nil so they are
// assigned 1..N when the request is sent.  The returned bool reports whether
// the body was an array.
func ParseRequest(body []byte) ([]Call, bool, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, false, makeError(ErrInvalidRequest, "empty request body")
	}

	if body[0] != '[' {
		call, err := parseCall(body)
		if err != nil {
			return nil, false, err
		}
		return []Call{call}, false, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(body, &elems); err != nil {
		str := fmt.Sprintf("malformed batch request: %v", err)
		return nil, true, makeError(ErrInvalidRequest, str)
	}
	calls := make([]Call, 0, len(elems))
	for _, elem := range elems {
		call, err := parseCall(elem)
		if err != nil {
			return nil, true, err
		}
		calls = append(calls, call)
	}
	return calls, true, nil
}

// parseCall decodes a single request object.
func parseCall(raw json.RawMessage) (Call, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Call{}, makeError(ErrInvalidRequest, "request is not a JSON object")
	}

	var call Call
	if m, ok := fields["method"]; ok {
		if err := json.Unmarshal(m, &call.Method); err != nil {
			return Call{}, makeError(ErrInvalidRequest, "method is not a string")
		}
	}
	if call.Method == "" {
		return Call{}, makeError(ErrInvalidRequest, "missing RPC method")
	}

	if v, ok := fields["jsonrpc"]; ok {
		if err := json.Unmarshal(v, &call.Version); err != nil {
			return Call{}, makeError(ErrInvalidRequest, "jsonrpc is not a string")
		}
	}

	if id, ok := fields["id"]; ok && !isJSONNull(id) {
		if err := json.Unmarshal(id, &call.ID); err != nil {
			return Call{}, makeError(ErrInvalidRequest, "malformed id")
		}
	}

	if p, ok := fields["params"]; ok && !isJSONNull(p) {
		var params []json.RawMessage
		if err := json.Unmarshal(p, &params); err != nil {
			str := fmt.Sprintf("call %q: params must be an array", call.Method)
			return Call{}, makeError(ErrInvalidRequest, str)
		}
		call.Params = make([]interface{}, 0, len(params))
		for _, param := range params {
			call.Params = append(call.Params, param)
		}
	}

	return call, nil
}

// isJSONNull returns whether raw is the JSON null literal.
func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
