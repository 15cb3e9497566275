// Copyright (c) 2014 The btcsuite developers
// Copyright (c) 2016-2022 The Decred developers
// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package rpcclient implements an HTTP POST JSON-RPC client for Bitcoin Core
style full nodes.

The client is intentionally small.  Every request is a single HTTP POST of a
JSON-RPC 2.0 envelope (or an array of envelopes for batches) authenticated
with HTTP basic auth.  There is no websocket mode and no notification
handling; push notifications are delivered by the node's ZeroMQ interface and
are handled by the eventfeed package.

# Requests

Use Call for a single method invocation and Batch for several invocations
that should travel in one round trip.  Batch assigns ids 1..N to calls that do
not carry an explicit id and correlates every response element back to its
call by id, so servers that reorder batch responses are handled correctly.

Requests that arrive as raw JSON from an external caller can be normalized
with ParseRequest and sent with Passthrough.

# Host Safety

RPC credentials are sent in the clear over HTTP, so the client refuses to
target hosts that are not obviously local or private.  HostPolicy.Check
accepts localhost, loopback, RFC1918 private, carrier-grade NAT, IPv6
unique-local and link-local addresses (including IPv4-mapped forms) and
rejects everything else unless the policy was constructed with AllowInsecure.

# Errors

Errors fall into four distinct classes which are never confused with one
another:

  - ErrInvalidRequest: the call could not be built, for example a missing
    method name
  - ErrTransport: the HTTP exchange failed
  - ErrInvalidResponse: the node answered with something that is not a well
    formed JSON-RPC response
  - *RPCError: the node processed the request and reported an error

The first three are reported as an Error wrapping the matching ErrorKind and
may be tested with errors.Is.  Node-reported errors may be extracted with
errors.As.
*/
package rpcclient
