// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package limits

import (
	"errors"
	"sync/atomic"
)

// ErrSaturated is returned by callers of TryAcquire to report that the
// admission limit was reached.  It is a retryable condition and is distinct
// from any error reported by the node.
var ErrSaturated = errors.New("too many requests in flight")

// Admission bounds the number of concurrently admitted operations.  It never
// blocks: an acquisition either succeeds immediately or fails.
type Admission struct {
	max      int64
	inFlight atomic.Int64
}

// NewAdmission returns a limiter admitting at most limit operations at once.
// A limit of zero or less admits nothing.
func NewAdmission(limit int) *Admission {
	return &Admission{max: int64(limit)}
}

// TryAcquire attempts to admit one operation.  The returned permit must be
// released when the operation completes, typically with a deferred call so
// every exit path releases it.
func (a *Admission) TryAcquire() (*Permit, bool) {
	for {
		current := a.inFlight.Load()
		if current >= a.max {
			return nil, false
		}
		if a.inFlight.CompareAndSwap(current, current+1) {
			return &Permit{limiter: a}, true
		}
	}
}

// InFlight returns the number of currently held permits.
func (a *Admission) InFlight() int {
	return int(a.inFlight.Load())
}

// Max returns the admission limit.
func (a *Admission) Max() int {
	return int(a.max)
}

// Permit represents one admitted operation.
type Permit struct {
	limiter  *Admission
	released atomic.Bool
}

// Release returns the permit to its limiter.  Only the first call has any
// effect.  It is safe to call on a nil permit.
func (p *Permit) Release() {
	if p == nil || !p.released.CompareAndSwap(false, true) {
		return
	}
	p.limiter.inFlight.Add(-1)
}
