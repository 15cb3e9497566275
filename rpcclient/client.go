// Copyright (c) 2014-2017 The btcsuite developers
// Copyright (c) 2015-2024 The Decred developers
// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/decred/dcrd/dcrjson/v4"
	"github.com/decred/go-socks/socks"
)

// ProxyConfig describes an optional SOCKS5 proxy used to reach the node.
type ProxyConfig struct {
	Addr string
	User string
	Pass string
}

// NewHTTPClient returns an HTTP client suitable for talking to a node.  It is
// meant to be created once per process and shared by every Client via
// Config.HTTPClient so connections are pooled across reconfigurations.
//
// A nil or empty proxy dials the node directly.
func NewHTTPClient(proxy *ProxyConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 0,
	}
	if proxy != nil && proxy.Addr != "" {
		p := &socks.Proxy{
			Addr:     proxy.Addr,
			Username: proxy.User,
			Password: proxy.Pass,
		}
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return p.Dial(network, addr)
		}
	}
	return &http.Client{Transport: transport}
}

// Config describes the connection parameters for a Client.
type Config struct {
	// URL is the base URL of the node's RPC server, for example
	// http://127.0.0.1:8332.
	URL string

	// User and Pass are the credentials sent with HTTP basic auth.
	User string
	Pass string

	// Wallet optionally scopes every request to the named wallet by
	// targeting <URL>/wallet/<Wallet>.
	Wallet string

	// HTTPClient is the shared client used to issue requests.  When nil a
	// private client without a proxy is created.
	HTTPClient *http.Client

	// Policy decides whether URL is an acceptable target.
	Policy HostPolicy
}

// Client issues JSON-RPC requests to a single node endpoint.  It holds no
// mutable state and is safe for concurrent use.
type Client struct {
	endpoint   string
	user       string
	pass       string
	httpClient *http.Client
}

// New returns a client for the provided configuration.  An error with kind
// ErrUnsafeHost is returned when the host policy rejects the URL.
func New(config *Config) (*Client, error) {
	if err := config.Policy.Check(config.URL); err != nil {
		return nil, err
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(nil)
	}
	return &Client{
		endpoint:   EndpointURL(config.URL, config.Wallet),
		user:       config.User,
		pass:       config.Pass,
		httpClient: httpClient,
	}, nil
}

// EndpointURL returns the URL requests are posted to: the base URL, or the
// wallet endpoint beneath it when a wallet name is provided.
func EndpointURL(baseURL, wallet string) string {
	if wallet == "" {
		return baseURL
	}
	return strings.TrimSuffix(baseURL, "/") + "/wallet/" + url.PathEscape(wallet)
}

// Endpoint returns the URL the client posts to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Response is the outcome of one call in a batch.
type Response struct {
	// ID is the id the call was sent with.
	ID interface{}

	// Result is the raw result member.  It is only meaningful when Err is
	// nil.
	Result json.RawMessage

	// Err is a *RPCError when the node reported a failure for the call, or
	// an Error with kind ErrInvalidResponse when the response element was
	// malformed.
	Err error
}

// MarshalJSON encodes the response as a JSON-RPC response object.
func (r Response) MarshalJSON() ([]byte, error) {
	type wireError struct {
		Code    *dcrjson.RPCErrorCode `json:"code,omitempty"`
		Message string                `json:"message"`
		Data    json.RawMessage       `json:"data,omitempty"`
	}
	type wireResponse struct {
		ID     interface{}     `json:"id"`
		Result json.RawMessage `json:"result"`
		Error  *wireError      `json:"error"`
	}

	out := wireResponse{ID: r.ID, Result: r.Result}
	if r.Err != nil {
		out.Result = nil
		out.Error = &wireError{Message: r.Err.Error()}
		if rpcErr, ok := r.Err.(*RPCError); ok {
			out.Error.Message = rpcErr.Message
			out.Error.Data = rpcErr.Data
			if rpcErr.HasCode {
				code := rpcErr.Code
				out.Error.Code = &code
			}
		}
	}
	if out.Result == nil {
		out.Result = json.RawMessage("null")
	}
	return json.Marshal(out)
}

// Call issues a single request for method with the provided positional
// params and returns the raw result.
func (c *Client) Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	call := Call{Method: method, Params: params}
	return c.send(ctx, &call)
}

// send posts a single call and unwraps its response.
func (c *Client) send(ctx context.Context, call *Call) (json.RawMessage, error) {
	req, err := call.request(1)
	if err != nil {
		return nil, err
	}

	log.Debugf("Sending %s to %s", req.Method, c.endpoint)
	raw, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	return unwrapResponse(raw)
}

// Batch issues all calls in a single round trip and returns their results in
// call order.  The first failing call, in call order, is returned as the
// error.  No request is made when calls is empty.
func (c *Client) Batch(ctx context.Context, calls []Call) ([]json.RawMessage, error) {
	responses, err := c.BatchResponses(ctx, calls)
	if err != nil {
		return nil, err
	}
	results := make([]json.RawMessage, 0, len(responses))
	for _, r := range responses {
		if r.Err != nil {
			return nil, r.Err
		}
		results = append(results, r.Result)
	}
	return results, nil
}

// BatchResponses issues all calls in a single round trip and returns one
// Response per call, in call order, correlated by id.  Errors for individual
// calls are reported in the matching Response so one failing call does not
// hide the results of the others.  The returned error is only non-nil when
// the batch as a whole could not be sent or its response was not an array of
// the expected size with the expected ids.
func (c *Client) BatchResponses(ctx context.Context, calls []Call) ([]Response, error) {
	if len(calls) == 0 {
		return []Response{}, nil
	}

	reqs := make([]*dcrjson.Request, 0, len(calls))
	index := make(map[string]int, len(calls))
	for i := range calls {
		req, err := calls[i].request(i + 1)
		if err != nil {
			return nil, err
		}
		key, err := idKey(req.ID)
		if err != nil {
			str := fmt.Sprintf("call %q: unusable id: %v", req.Method, err)
			return nil, makeError(ErrInvalidRequest, str)
		}
		if _, ok := index[key]; ok {
			str := fmt.Sprintf("duplicate id %s in batch", key)
			return nil, makeError(ErrInvalidRequest, str)
		}
		index[key] = i
		reqs = append(reqs, req)
	}

	log.Debugf("Sending batch of %d calls to %s", len(reqs), c.endpoint)
	raw, err := c.post(ctx, reqs)
	if err != nil {
		return nil, err
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, makeError(ErrInvalidResponse, "expected batch array response")
	}
	if len(elems) != len(reqs) {
		str := fmt.Sprintf("expected %d batch responses, got %d", len(reqs),
			len(elems))
		return nil, makeError(ErrInvalidResponse, str)
	}

	responses := make([]Response, len(reqs))
	seen := make([]bool, len(reqs))
	for _, elem := range elems {
		var envelope struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(elem, &envelope); err != nil {
			return nil, makeError(ErrInvalidResponse, "batch element is not an object")
		}
		if len(envelope.ID) == 0 {
			return nil, makeError(ErrInvalidResponse, "batch element has no id")
		}
		key, err := idKey(envelope.ID)
		if err != nil {
			return nil, makeError(ErrInvalidResponse, "batch element has a malformed id")
		}
		i, ok := index[key]
		if !ok || seen[i] {
			str := fmt.Sprintf("unexpected id %s in batch response", key)
			return nil, makeError(ErrInvalidResponse, str)
		}
		seen[i] = true

		result, err := unwrapResponse(elem)
		responses[i] = Response{ID: reqs[i].ID, Result: result, Err: err}
	}
	return responses, nil
}

// Passthrough sends a request supplied as raw JSON by an external caller.
// A single request object yields its unwrapped result.  An array yields a JSON
// array of response objects in request order, each carrying either a result
// or an error.
func (c *Client) Passthrough(ctx context.Context, body []byte) (json.RawMessage, error) {
	calls, isBatch, err := ParseRequest(body)
	if err != nil {
		return nil, err
	}
	if !isBatch {
		return c.send(ctx, &calls[0])
	}

	responses, err := c.BatchResponses(ctx, calls)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(responses)
	if err != nil {
		str := fmt.Sprintf("unable to encode batch responses: %v", err)
		return nil, makeError(ErrInvalidResponse, str)
	}
	return out, nil
}

// post marshals payload, posts it to the endpoint and returns the response
// body once it is known to be valid JSON.  Non-2xx statuses are not treated as
// failures on their own since nodes report RPC errors with error statuses.
func (c *Client) post(ctx context.Context, payload interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		str := fmt.Sprintf("unable to marshal request: %v", err)
		return nil, makeError(ErrInvalidRequest, str)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint, bytes.NewReader(body))
	if err != nil {
		str := fmt.Sprintf("unable to create request: %v", err)
		return nil, makeError(ErrInvalidRequest, str)
	}
	httpReq.Close = false
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.user, c.pass)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Warnf("RPC transport error: %v", err)
		return nil, makeError(ErrTransport, err.Error())
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		str := fmt.Sprintf("error reading response body: %v", err)
		return nil, makeError(ErrTransport, str)
	}
	log.Tracef("Response status %d (%d bytes)", httpResp.StatusCode,
		len(respBytes))

	if !json.Valid(respBytes) {
		str := fmt.Sprintf("invalid json response (status %d)",
			httpResp.StatusCode)
		return nil, makeError(ErrInvalidResponse, str)
	}
	return respBytes, nil
}

// unwrapResponse extracts the result member of a single JSON-RPC response
// object.  A non-null error member becomes an *RPCError and takes precedence
// over any result.
func unwrapResponse(raw json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, makeError(ErrInvalidResponse, "response is not a json object")
	}

	if errRaw, ok := fields["error"]; ok && !isJSONNull(errRaw) {
		var rawErr rawRPCError
		if err := json.Unmarshal(errRaw, &rawErr); err != nil {
			// Some servers report bare string errors.
			var message string
			if json.Unmarshal(errRaw, &message) == nil {
				rawErr = rawRPCError{Message: &message}
			}
		}
		return nil, rawErr.toRPCError()
	}

	result, ok := fields["result"]
	if !ok {
		return nil, makeError(ErrInvalidResponse, "missing result field")
	}
	return result, nil
}
