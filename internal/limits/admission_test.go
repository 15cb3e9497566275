// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package limits

import (
	"sync"
	"testing"
)

// TestAdmission ensures exactly max acquisitions succeed and a release frees
// a slot.
func TestAdmission(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		max  int
	}{
		{"zero", 0},
		{"one", 1},
		{"several", 5},
	}

	for _, test := range tests {
		a := NewAdmission(test.max)
		var permits []*Permit
		for i := 0; i < test.max; i++ {
			p, ok := a.TryAcquire()
			if !ok {
				t.Fatalf("%q: acquisition %d failed", test.name, i)
			}
			permits = append(permits, p)
		}
		if _, ok := a.TryAcquire(); ok {
			t.Fatalf("%q: acquisition beyond max succeeded", test.name)
		}
		if got := a.InFlight(); got != test.max {
			t.Fatalf("%q: unexpected in flight -- got %d, want %d",
				test.name, got, test.max)
		}
		if test.max == 0 {
			continue
		}

		permits[0].Release()
		p, ok := a.TryAcquire()
		if !ok {
			t.Fatalf("%q: acquisition after release failed", test.name)
		}
		p.Release()
		for _, p := range permits {
			p.Release()
		}
		if got := a.InFlight(); got != 0 {
			t.Fatalf("%q: unexpected in flight after release -- got %d",
				test.name, got)
		}
	}
}

// TestPermitReleaseOnce ensures releasing a permit repeatedly only returns
// one slot.
func TestPermitReleaseOnce(t *testing.T) {
	t.Parallel()

	a := NewAdmission(2)
	p1, _ := a.TryAcquire()
	p2, _ := a.TryAcquire()
	p1.Release()
	p1.Release()
	p1.Release()
	if got := a.InFlight(); got != 1 {
		t.Fatalf("unexpected in flight -- got %d, want 1", got)
	}
	p2.Release()

	var nilPermit *Permit
	nilPermit.Release()
}

// TestAdmissionConcurrent ensures the limit holds under contention.
func TestAdmissionConcurrent(t *testing.T) {
	t.Parallel()

	const limit = 4
	a := NewAdmission(limit)
	var wg sync.WaitGroup
	var mtx sync.Mutex
	held, peak := 0, 0
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p, ok := a.TryAcquire()
				if !ok {
					continue
				}
				mtx.Lock()
				held++
				if held > peak {
					peak = held
				}
				mtx.Unlock()

				mtx.Lock()
				held--
				mtx.Unlock()
				p.Release()
			}
		}()
	}
	wg.Wait()

	if peak > limit {
		t.Fatalf("limit exceeded -- peak %d, max %d", peak, limit)
	}
	if got := a.InFlight(); got != 0 {
		t.Fatalf("unexpected in flight -- got %d", got)
	}
}
