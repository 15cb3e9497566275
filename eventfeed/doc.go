// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package eventfeed implements a subscriber for a node's ZeroMQ notification
feed backed by a bounded, cursor-addressed buffer.

Every received notification is assigned a cursor which starts at 1 and strictly
increases for the lifetime of the Feed, across restarts of the subscription.
The buffer retains at most the configured number of messages, evicting the
oldest first.  Readers ask for everything newer than a cursor they have already
seen and may block until such a message arrives:

	res, err := feed.Poll(ctx, lastCursor, 10*time.Second)
	if res.Truncated {
		// Messages between lastCursor and the first returned one were
		// evicted before they could be read.
	}

A subscription is started with Start and torn down with Stop.  A subscription
that fails to connect, or whose socket fails while receiving, ends on its own
and is not retried.
*/
package eventfeed
