// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eventfeed

import (
	"testing"
)

// TestRing ensures the ring keeps cursor order across growth and wraparound.
func TestRing(t *testing.T) {
	t.Parallel()

	var r ring
	next := uint64(1)
	push := func(n int) {
		for i := 0; i < n; i++ {
			r.pushBack(Message{Cursor: next})
			next++
		}
	}

	push(40)
	r.trim(30)
	push(100)
	r.trim(70)
	push(5)

	if r.Len() != 75 {
		t.Fatalf("unexpected length %d", r.Len())
	}
	all := r.since(0)
	for i, m := range all {
		if want := uint64(71 + i); m.Cursor != want {
			t.Fatalf("message %d: got cursor %d, want %d", i, m.Cursor, want)
		}
	}

	tests := []struct {
		since   uint64
		wantLen int
	}{
		{0, 75},
		{70, 75},
		{71, 74},
		{144, 1},
		{145, 0},
		{1000, 0},
	}
	for i, test := range tests {
		if got := len(r.since(test.since)); got != test.wantLen {
			t.Errorf("#%d: since(%d) returned %d, want %d", i, test.since,
				got, test.wantLen)
		}
	}

	m, ok := r.newestFirst(func(m *Message) bool { return m.Cursor%10 == 0 })
	if !ok || m.Cursor != 140 {
		t.Fatalf("unexpected newest match %d, %v", m.Cursor, ok)
	}
}
