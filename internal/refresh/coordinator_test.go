// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package refresh

import (
	"sync"
	"testing"
	"time"
)

// testClock is a manually advanced clock.
type testClock struct {
	mtx sync.Mutex
	t   time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Unix(1700000000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mtx.Lock()
	c.t = c.t.Add(d)
	c.mtx.Unlock()
}

// TestClassify ensures notification topics map to the expected kinds.
func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		topic string
		want  Kind
	}{
		{"hashblock", ChainAndMempool},
		{"rawblock", ChainAndMempool},
		{"hashtx", MempoolOnly},
		{"rawtx", MempoolOnly},
		{"sequence", None},
		{"", None},
		{"HASHBLOCK", None},
	}

	for _, test := range tests {
		if got := Classify(test.topic); got != test.want {
			t.Errorf("%q: got %v, want %v", test.topic, got, test.want)
		}
	}
}

// TestMerge ensures merging is commutative, idempotent, and lets the chain
// kind dominate.
func TestMerge(t *testing.T) {
	t.Parallel()

	kinds := []Kind{None, MempoolOnly, ChainAndMempool}
	for _, a := range kinds {
		if got := Merge(a, a); got != a {
			t.Errorf("Merge(%v, %v): got %v", a, a, got)
		}
		if got := Merge(a, ChainAndMempool); got != ChainAndMempool {
			t.Errorf("Merge(%v, ChainAndMempool): got %v", a, got)
		}
		if got := Merge(None, a); got != a {
			t.Errorf("Merge(None, %v): got %v", a, got)
		}
		for _, b := range kinds {
			if Merge(a, b) != Merge(b, a) {
				t.Errorf("Merge(%v, %v) is not commutative", a, b)
			}
		}
	}
	if got := Merge(MempoolOnly, MempoolOnly); got != MempoolOnly {
		t.Errorf("Merge(MempoolOnly, MempoolOnly): got %v", got)
	}
}

// TestKindStringer ensures the Kind stringer covers unknown values.
func TestKindStringer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   Kind
		want string
	}{
		{None, "None"},
		{MempoolOnly, "MempoolOnly"},
		{ChainAndMempool, "ChainAndMempool"},
		{0xff, "Unknown Kind (255)"},
	}

	for i, test := range tests {
		if got := test.in.String(); got != test.want {
			t.Errorf("#%d: got %q, want %q", i, got, test.want)
		}
	}
}

// TestDebounce ensures notifications arriving within the debounce window
// coalesce into one dispatch and a later one is dispatched after completion
// once the window has elapsed.
func TestDebounce(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	c := New(&Config{Now: clock.Now})

	if _, ok := c.Next(); ok {
		t.Fatal("dispatched with nothing pending")
	}

	c.Observe("hashtx")
	req, ok := c.Next()
	if !ok || req.Full || req.Kind != MempoolOnly {
		t.Fatalf("unexpected first dispatch: %v %v", req, ok)
	}

	// Both arrive within the window while the first is still in flight.
	clock.Advance(100 * time.Millisecond)
	c.Observe("hashtx")
	c.Observe("hashblock")
	if _, ok := c.Next(); ok {
		t.Fatal("dispatched while in flight")
	}
	if !c.Complete(req) {
		t.Fatal("current result reported as stale")
	}
	if _, ok := c.Next(); ok {
		t.Fatal("dispatched before the debounce elapsed")
	}
	if wait, ok := c.NextDue(); !ok || wait != 700*time.Millisecond {
		t.Fatalf("unexpected wait: %v %v", wait, ok)
	}

	clock.Advance(700 * time.Millisecond)
	req, ok = c.Next()
	if !ok || req.Kind != ChainAndMempool {
		t.Fatalf("unexpected second dispatch: %v %v", req, ok)
	}
	if c.Pending() != None {
		t.Fatalf("pending slot not cleared: %v", c.Pending())
	}
	if _, ok := c.Next(); ok {
		t.Fatal("dispatched twice for one pending refresh")
	}
	c.Complete(req)
	if _, ok := c.NextDue(); ok {
		t.Fatal("due reported with nothing pending")
	}
}

// TestBeginFull ensures full refreshes are refused while another refresh is
// in flight and restart the debounce window.
func TestBeginFull(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	c := New(&Config{Now: clock.Now, Debounce: time.Second})

	full, ok := c.BeginFull()
	if !ok || !full.Full || full.Kind != None {
		t.Fatalf("unexpected full dispatch: %v %v", full, ok)
	}
	if _, ok := c.BeginFull(); ok {
		t.Fatal("second full refresh dispatched while in flight")
	}
	if !c.InFlight() {
		t.Fatal("not in flight after dispatch")
	}
	c.Complete(full)

	c.Observe("rawblock")
	clock.Advance(999 * time.Millisecond)
	if _, ok := c.Next(); ok {
		t.Fatal("partial dispatched within the window of a full refresh")
	}
	clock.Advance(time.Millisecond)
	req, ok := c.Next()
	if !ok || req.Kind != ChainAndMempool {
		t.Fatalf("unexpected partial dispatch: %v %v", req, ok)
	}
	if _, ok := c.BeginFull(); ok {
		t.Fatal("full refresh dispatched while a partial is in flight")
	}
}

// TestStaleGeneration ensures results dispatched before a generation change
// are reported stale while still clearing the in-flight state.
func TestStaleGeneration(t *testing.T) {
	t.Parallel()

	c := New(&Config{Now: newTestClock().Now})
	req, ok := c.BeginFull()
	if !ok || req.Generation != 0 {
		t.Fatalf("unexpected dispatch: %v %v", req, ok)
	}
	if gen := c.AdvanceGeneration(); gen != 1 {
		t.Fatalf("unexpected generation: %d", gen)
	}
	if c.Complete(req) {
		t.Fatal("stale result reported as current")
	}
	if c.InFlight() {
		t.Fatal("stale completion left the refresh in flight")
	}

	req, ok = c.BeginFull()
	if !ok || req.Generation != 1 {
		t.Fatalf("unexpected dispatch: %v %v", req, ok)
	}
	if !c.Complete(req) {
		t.Fatal("current result reported as stale")
	}
	if c.Generation() != 1 {
		t.Fatalf("unexpected generation: %d", c.Generation())
	}
}

// TestIgnoredTopics ensures topics that call for no refresh leave nothing
// pending.
func TestIgnoredTopics(t *testing.T) {
	t.Parallel()

	c := New(nil)
	if got := c.Observe("sequence"); got != None {
		t.Fatalf("unexpected pending kind: %v", got)
	}
	if _, ok := c.Next(); ok {
		t.Fatal("dispatched for an ignored topic")
	}

	c.Observe("hashblock")
	c.ClearPending()
	if _, ok := c.Next(); ok {
		t.Fatal("dispatched after the pending refresh was cleared")
	}
}
