// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/bitcoin-rpc-web/rpcweb/rpcclient"
)

// object is a decoded JSON object whose numbers are kept as json.Number so
// integer and floating point fields can be told apart.
type object map[string]interface{}

// invalidResponse returns an error with kind rpcclient.ErrInvalidResponse.
func invalidResponse(format string, args ...interface{}) error {
	return rpcclient.Error{
		Err:         rpcclient.ErrInvalidResponse,
		Description: fmt.Sprintf(format, args...),
	}
}

// decodeValue decodes raw keeping numbers as json.Number.
func decodeValue(raw json.RawMessage) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeObject decodes the result of method, which must be a JSON object.
func decodeObject(method string, raw json.RawMessage) (object, error) {
	v, err := decodeValue(raw)
	if err != nil {
		return nil, invalidResponse("%s result is not valid json: %v", method, err)
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, invalidResponse("%s result must be object", method)
	}
	return object(m), nil
}

// decodeArray decodes the result of method, which must be a JSON array.
func decodeArray(method string, raw json.RawMessage) ([]interface{}, error) {
	v, err := decodeValue(raw)
	if err != nil {
		return nil, invalidResponse("%s result is not valid json: %v", method, err)
	}
	a, ok := v.([]interface{})
	if !ok {
		return nil, invalidResponse("%s result must be array", method)
	}
	return a, nil
}

// decodeUint64 decodes the result of method, which must be a non-negative
// integer.
func decodeUint64(method string, raw json.RawMessage) (uint64, error) {
	v, err := decodeValue(raw)
	if err != nil {
		return 0, invalidResponse("%s result is not valid json: %v", method, err)
	}
	n, ok := asUint64(v)
	if !ok {
		return 0, invalidResponse("%s result must be u64", method)
	}
	return n, nil
}

func asUint64(v interface{}) (uint64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	u, err := strconv.ParseUint(n.String(), 10, 64)
	return u, err == nil
}

func asInt64(v interface{}) (int64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := strconv.ParseInt(n.String(), 10, 64)
	return i, err == nil
}

func asFloat64(v interface{}) (float64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	return f, err == nil
}

// str returns the string field key.
func (o object) str(key string) (string, error) {
	s, ok := o[key].(string)
	if !ok {
		return "", invalidResponse("missing string field: %s", key)
	}
	return s, nil
}

// u64 returns the non-negative integer field key.
func (o object) u64(key string) (uint64, error) {
	n, ok := asUint64(o[key])
	if !ok {
		return 0, invalidResponse("missing u64 field: %s", key)
	}
	return n, nil
}

// i64 returns the integer field key.
func (o object) i64(key string) (int64, error) {
	n, ok := asInt64(o[key])
	if !ok {
		return 0, invalidResponse("missing i64 field: %s", key)
	}
	return n, nil
}

// f64 returns the numeric field key.
func (o object) f64(key string) (float64, error) {
	n, ok := asFloat64(o[key])
	if !ok {
		return 0, invalidResponse("missing f64 field: %s", key)
	}
	return n, nil
}

// boolean returns the boolean field key.
func (o object) boolean(key string) (bool, error) {
	b, ok := o[key].(bool)
	if !ok {
		return false, invalidResponse("missing bool field: %s", key)
	}
	return b, nil
}

// The following accessors return def when the field is missing or has the
// wrong type.

func (o object) strOr(key, def string) string {
	if s, err := o.str(key); err == nil {
		return s
	}
	return def
}

func (o object) i64Or(key string, def int64) int64 {
	if n, ok := asInt64(o[key]); ok {
		return n
	}
	return def
}

func (o object) u64Or(key string, def uint64) uint64 {
	if n, ok := asUint64(o[key]); ok {
		return n
	}
	return def
}

func (o object) boolOr(key string, def bool) bool {
	if b, err := o.boolean(key); err == nil {
		return b
	}
	return def
}

// optF64 returns the numeric field key, or nil when it is missing.
func (o object) optF64(key string) *float64 {
	if f, ok := asFloat64(o[key]); ok {
		return &f
	}
	return nil
}
