// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package control

import (
	"context"
	"errors"
	"time"

	"github.com/bitcoin-rpc-web/rpcweb/internal/dashboard"
	"github.com/bitcoin-rpc-web/rpcweb/internal/limits"
	"github.com/bitcoin-rpc-web/rpcweb/internal/refresh"
	"golang.org/x/sync/errgroup"
)

// feedPollWait is how long each poll for new notifications blocks.
const feedPollWait = 5 * time.Second

// Run refreshes the dashboard snapshot until ctx is done.  A full refresh is
// started immediately, on every poll interval and after every configuration
// change.  Notifications received from the feed schedule debounced partial
// refreshes.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.pumpFeed(ctx)
	})
	g.Go(func() error {
		return s.refreshLoop(ctx)
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// pumpFeed classifies every notification received by the feed and wakes the
// refresh loop when a partial refresh becomes pending.
func (s *Service) pumpFeed(ctx context.Context) error {
	cursor := s.feed.State().NextCursor - 1
	for {
		res, err := s.feed.Poll(ctx, cursor, feedPollWait)
		if err != nil {
			return err
		}
		if res.Truncated {
			log.Debugf("Missed notifications after cursor %d", cursor)
		}
		var pending refresh.Kind
		for i := range res.Messages {
			pending = s.coord.Observe(res.Messages[i].Topic)
		}
		cursor = res.Cursor
		if pending != refresh.None {
			signal(s.wake)
		}
	}
}

// refreshLoop dispatches full and partial refreshes.
func (s *Service) refreshLoop(ctx context.Context) error {
	interval := s.Config().PollInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// wantFull is set while a full refresh requested by a configuration
	// change waits for the in-flight refresh to complete.
	wantFull := !s.startFull(ctx)
	for {
		if wantFull {
			wantFull = !s.startFull(ctx)
		}
		s.startPartial(ctx)

		var timer *time.Timer
		var due <-chan time.Time
		if wait, ok := s.coord.NextDue(); ok && wait > 0 {
			timer = time.NewTimer(wait)
			due = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case <-ticker.C:
			s.startFull(ctx)

		case <-s.configChanged:
			if d := s.Config().PollInterval; d != interval {
				interval = d
				ticker.Reset(interval)
			}
			wantFull = true

		case <-s.wake:
		case <-due:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// dispatch runs req on the worker pool under an admission permit.  When the
// limiter refuses it, repend is handed back to the coordinator as a pending
// partial refresh.
func (s *Service) dispatch(ctx context.Context, req refresh.Request, repend refresh.Kind) bool {
	permit, ok := s.limiter.TryAcquire()
	if !ok {
		s.coord.Complete(req)
		s.coord.ObserveKind(repend)
		log.Debugf("Deferred %v: %v", req, limits.ErrSaturated)
		return false
	}

	err := s.pool.Execute(func(context.Context) {
		defer permit.Release()
		defer signal(s.wake)
		s.runRefresh(ctx, req)
	})
	if err != nil {
		permit.Release()
		s.coord.Complete(req)
		log.Debugf("Unable to run %v: %v", req, err)
		return false
	}
	return true
}

// startFull starts a full refresh unless a refresh is already in flight.  It
// returns whether a refresh was started.
func (s *Service) startFull(ctx context.Context) bool {
	req, ok := s.coord.BeginFull()
	if !ok {
		return false
	}
	return s.dispatch(ctx, req, refresh.None)
}

// startPartial starts the pending partial refresh when it is due.  A full
// refresh is started instead while there is no snapshot to patch.
func (s *Service) startPartial(ctx context.Context) {
	req, ok := s.coord.Next()
	if !ok {
		return
	}
	kind := req.Kind
	if !s.hasSnapshot() {
		req.Full, req.Kind = true, refresh.None
	}
	s.dispatch(ctx, req, kind)
}

func (s *Service) hasSnapshot() bool {
	s.snapMtx.Lock()
	defer s.snapMtx.Unlock()
	return s.snapshot != nil
}

// runRefresh fetches the data for req and applies it when req belongs to the
// current generation.
func (s *Service) runRefresh(ctx context.Context, req refresh.Request) {
	_, agg := s.rpc()

	if req.Full {
		snap, err := agg.FetchSnapshot(ctx)
		if !s.coord.Complete(req) {
			return
		}
		s.applySnapshot(snap, err)
		return
	}

	var update dashboard.PartialUpdate
	var err error
	switch req.Kind {
	case refresh.ChainAndMempool:
		update, err = agg.FetchChainAndMempoolUpdate(ctx)
	default:
		update, err = agg.FetchMempoolUpdate(ctx)
	}
	if !s.coord.Complete(req) {
		return
	}
	if !s.applyPartial(update, err) {
		// The snapshot went away while the partial refresh ran.
		s.startFull(ctx)
	}
}

// applySnapshot installs the result of a full refresh.  A failed refresh
// keeps the previous snapshot.
func (s *Service) applySnapshot(snap *dashboard.Snapshot, err error) {
	s.snapMtx.Lock()
	defer s.snapMtx.Unlock()

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Warnf("Dashboard refresh failed: %v", err)
		}
		s.lastErr = err
		return
	}
	s.snapshot = snap
	s.lastErr = nil
	log.Debugf("Dashboard refreshed: height %d, %d peers, %d mempool txns",
		snap.Chain.Blocks, len(snap.Peers), snap.Mempool.Transactions)
}

// applyPartial patches the current snapshot with the result of a partial
// refresh.  It returns false when there is no snapshot to patch.
func (s *Service) applyPartial(update dashboard.PartialUpdate, err error) bool {
	s.snapMtx.Lock()
	defer s.snapMtx.Unlock()

	if err != nil {
		log.Warnf("Partial dashboard refresh failed: %v", err)
		s.lastErr = err
		return true
	}
	if s.snapshot == nil {
		return false
	}
	s.snapshot.Apply(update)
	s.lastErr = nil
	return true
}
