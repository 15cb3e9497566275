// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package refresh

import (
	"fmt"
	"sync"
	"time"
)

// DefaultDebounce is the minimum time between the start of two refreshes
// before a pending partial refresh is dispatched.
const DefaultDebounce = 800 * time.Millisecond

// Kind identifies the sections of a snapshot a partial refresh updates.
type Kind uint8

// These constants define the partial refresh kinds ordered by strength.  A
// stronger kind covers everything a weaker one does.
const (
	None Kind = iota
	MempoolOnly
	ChainAndMempool
)

var kindStrings = map[Kind]string{
	None:            "None",
	MempoolOnly:     "MempoolOnly",
	ChainAndMempool: "ChainAndMempool",
}

// String returns the Kind in human-readable form.
func (k Kind) String() string {
	if s, ok := kindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Kind (%d)", uint8(k))
}

// Classify returns the partial refresh a notification on topic calls for.
func Classify(topic string) Kind {
	switch topic {
	case "hashblock", "rawblock":
		return ChainAndMempool
	case "hashtx", "rawtx":
		return MempoolOnly
	}
	return None
}

// Merge combines two pending refresh kinds into the stronger of the two.
func Merge(a, b Kind) Kind {
	if a > b {
		return a
	}
	return b
}

// Request is a refresh handed out by the coordinator.  It must be passed back
// to Complete once the refresh finishes.
type Request struct {
	// Full is set for a full snapshot refresh.  Kind is None in that case.
	Full bool
	Kind Kind

	// Generation is the coordinator generation the request was issued in.
	Generation uint64
}

// String returns a short description of the request.
func (r Request) String() string {
	if r.Full {
		return fmt.Sprintf("full refresh (gen %d)", r.Generation)
	}
	return fmt.Sprintf("%v refresh (gen %d)", r.Kind, r.Generation)
}

// Config houses the parameters of a coordinator.
type Config struct {
	// Debounce is the minimum interval between refresh starts before a
	// pending partial refresh is dispatched.  Zero selects DefaultDebounce.
	Debounce time.Duration

	// Now returns the current time.  Nil selects time.Now.
	Now func() time.Time
}

// Coordinator tracks at most one in-flight refresh and coalesces notification
// driven partial refreshes into a single pending slot.
//
// It is safe for concurrent access.
type Coordinator struct {
	debounce time.Duration
	now      func() time.Time

	mtx         sync.Mutex
	pending     Kind
	inFlight    bool
	generation  uint64
	lastStarted time.Time
}

// New returns a coordinator with no pending or in-flight refresh.
func New(cfg *Config) *Coordinator {
	c := &Coordinator{debounce: DefaultDebounce, now: time.Now}
	if cfg != nil {
		if cfg.Debounce > 0 {
			c.debounce = cfg.Debounce
		}
		if cfg.Now != nil {
			c.now = cfg.Now
		}
	}
	return c
}

// Observe merges the refresh called for by a notification on topic into the
// pending slot and returns the resulting pending kind.
func (c *Coordinator) Observe(topic string) Kind {
	return c.ObserveKind(Classify(topic))
}

// ObserveKind merges kind into the pending slot and returns the resulting
// pending kind.
func (c *Coordinator) ObserveKind(kind Kind) Kind {
	c.mtx.Lock()
	c.pending = Merge(c.pending, kind)
	pending := c.pending
	c.mtx.Unlock()
	return pending
}

// ClearPending drops the pending partial refresh, if any.
func (c *Coordinator) ClearPending() {
	c.mtx.Lock()
	c.pending = None
	c.mtx.Unlock()
}

// Pending returns the kind of the pending partial refresh.
func (c *Coordinator) Pending() Kind {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.pending
}

// InFlight returns whether a refresh has been dispatched and not completed.
func (c *Coordinator) InFlight() bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.inFlight
}

// Generation returns the current generation.
func (c *Coordinator) Generation() uint64 {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.generation
}

// debouncedLocked returns whether the debounce interval has elapsed since the
// last refresh started.
//
// This function MUST be called with the mutex held.
func (c *Coordinator) debouncedLocked(now time.Time) bool {
	return c.lastStarted.IsZero() || now.Sub(c.lastStarted) >= c.debounce
}

// startLocked marks a refresh as in flight and returns its request.
//
// This function MUST be called with the mutex held.
func (c *Coordinator) startLocked(now time.Time, full bool, kind Kind) Request {
	c.inFlight = true
	c.lastStarted = now
	req := Request{Full: full, Kind: kind, Generation: c.generation}
	log.Debugf("Starting %v", req)
	return req
}

// Next dispatches the pending partial refresh.  It returns false, keeping the
// refresh pending, when nothing is pending, a refresh is in flight, or the
// debounce interval has not elapsed since the last refresh started.
func (c *Coordinator) Next() (Request, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.pending == None || c.inFlight {
		return Request{}, false
	}
	now := c.now()
	if !c.debouncedLocked(now) {
		return Request{}, false
	}
	kind := c.pending
	c.pending = None
	return c.startLocked(now, false, kind), true
}

// NextDue returns how long until a pending partial refresh may be dispatched
// by Next, ignoring any in-flight refresh.  It returns false when nothing is
// pending.
func (c *Coordinator) NextDue() (time.Duration, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.pending == None {
		return 0, false
	}
	if c.lastStarted.IsZero() {
		return 0, true
	}
	wait := c.debounce - c.now().Sub(c.lastStarted)
	if wait < 0 {
		wait = 0
	}
	return wait, true
}

// BeginFull dispatches a full refresh.  It returns false when a refresh is
// already in flight.
func (c *Coordinator) BeginFull() (Request, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.inFlight {
		return Request{}, false
	}
	return c.startLocked(c.now(), true, None), true
}

// Complete marks the refresh for req as finished and reports whether its
// result belongs to the current generation.  Results from older generations
// must be discarded.
func (c *Coordinator) Complete(req Request) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.inFlight = false
	current := req.Generation == c.generation
	if !current {
		log.Debugf("Discarding stale %v (current gen %d)", req, c.generation)
	}
	return current
}

// AdvanceGeneration starts a new generation so the results of every refresh
// dispatched so far are reported as stale.  It returns the new generation.
func (c *Coordinator) AdvanceGeneration() uint64 {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.generation++
	return c.generation
}
