// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package control

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/bitcoin-rpc-web/rpcweb/eventfeed"
	"github.com/bitcoin-rpc-web/rpcweb/internal/dashboard"
	"github.com/bitcoin-rpc-web/rpcweb/internal/limits"
	"github.com/bitcoin-rpc-web/rpcweb/internal/refresh"
	"github.com/bitcoin-rpc-web/rpcweb/internal/workpool"
	"github.com/bitcoin-rpc-web/rpcweb/rpcclient"
	"github.com/decred/dcrd/container/lru"
)

const (
	// DefaultWorkers is the default size of the worker pool.
	DefaultWorkers = 4

	// DefaultMaxInFlight is the default number of RPC requests admitted at
	// once.
	DefaultMaxInFlight = 16

	// decodedTxCacheSize is the number of decoded raw transactions kept.
	decodedTxCacheSize = 128
)

// ServiceConfig houses the parameters of a Service.
type ServiceConfig struct {
	// Config is the initial runtime configuration.
	Config Config

	// Policy decides which RPC hosts are acceptable.  It is fixed for the
	// lifetime of the service.
	Policy rpcclient.HostPolicy

	// HTTPClient is shared by every RPC client the service creates.  Nil
	// selects a client without a proxy.
	HTTPClient *http.Client

	// Workers is the size of the worker pool and MaxInFlight the number of
	// RPC requests admitted at once.  Zero selects the defaults.
	Workers     int
	MaxInFlight int

	// Dial connects the notification feed.  Nil selects ZMQ.
	Dial eventfeed.Dialer

	// Debounce overrides the minimum interval between refresh starts.
	Debounce time.Duration

	// Now returns the current time.  Nil selects time.Now.
	Now func() time.Time
}

// Service owns the RPC gateway, notification feed, worker pool and dashboard
// state, and exposes the operations offered to the presentation layer.
type Service struct {
	policy     rpcclient.HostPolicy
	httpClient *http.Client
	now        func() time.Time

	feed      *eventfeed.Feed
	pool      *workpool.Pool
	limiter   *limits.Admission
	coord     *refresh.Coordinator
	decodedTx *lru.Map[uint64, json.RawMessage]

	// cfgMtx protects the configuration and the objects built from it.
	cfgMtx sync.Mutex
	cfg    Config
	client *rpcclient.Client
	agg    *dashboard.Aggregator

	snapMtx  sync.Mutex
	snapshot *dashboard.Snapshot
	lastErr  error

	// configChanged and wake are signaled without blocking to wake the
	// refresh loop.
	configChanged chan struct{}
	wake          chan struct{}
}

// New returns a service for the provided configuration and starts the
// notification feed when an address is configured.  An error with kind
// rpcclient.ErrUnsafeHost is returned when the host policy rejects the
// configured URL.
func New(sc *ServiceConfig) (*Service, error) {
	cfg := sc.Config
	cfg.normalize()

	httpClient := sc.HTTPClient
	if httpClient == nil {
		httpClient = rpcclient.NewHTTPClient(nil)
	}
	now := sc.Now
	if now == nil {
		now = time.Now
	}
	workers := sc.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	maxInFlight := sc.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}

	s := &Service{
		policy:     sc.Policy,
		httpClient: httpClient,
		now:        now,
		feed: eventfeed.New(&eventfeed.Config{
			BufferLimit: cfg.BufferLimit,
			Dial:        sc.Dial,
			Now:         now,
		}),
		limiter: limits.NewAdmission(maxInFlight),
		coord: refresh.New(&refresh.Config{
			Debounce: sc.Debounce,
			Now:      now,
		}),
		decodedTx:     lru.NewMap[uint64, json.RawMessage](decodedTxCacheSize),
		configChanged: make(chan struct{}, 1),
		wake:          make(chan struct{}, 1),
	}
	if err := s.setConfig(cfg); err != nil {
		return nil, err
	}
	s.pool = workpool.New(workers)

	if cfg.ZMQAddr != "" {
		if err := s.feed.Start(cfg.ZMQAddr); err != nil {
			log.Warnf("Unable to start notification feed: %v", err)
		}
	}
	return s, nil
}

// setConfig builds the RPC client for cfg and installs both.
func (s *Service) setConfig(cfg Config) error {
	client, err := rpcclient.New(&rpcclient.Config{
		URL:        cfg.URL,
		User:       cfg.User,
		Pass:       cfg.Pass,
		Wallet:     cfg.Wallet,
		HTTPClient: s.httpClient,
		Policy:     s.policy,
	})
	if err != nil {
		return err
	}
	s.cfg = cfg
	s.client = client
	s.agg = dashboard.New(client, s.now)
	return nil
}

// signal performs a non-blocking send on c.
func signal(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}

// Config returns the current configuration.
func (s *Service) Config() Config {
	s.cfgMtx.Lock()
	defer s.cfgMtx.Unlock()
	return s.cfg
}

// rpc returns the current RPC client and aggregator.
func (s *Service) rpc() (*rpcclient.Client, *dashboard.Aggregator) {
	s.cfgMtx.Lock()
	defer s.cfgMtx.Unlock()
	return s.client, s.agg
}

// UpdateConfig applies a partial configuration update.  A URL rejected by the
// host policy is left unchanged and reported in the result while the rest of
// the update is still applied.  The buffer limit is applied to the feed, the
// feed is restarted when its address changed, and results of refreshes
// started before the update are discarded.
func (s *Service) UpdateConfig(update *ConfigUpdate) UpdateResult {
	var result UpdateResult

	s.cfgMtx.Lock()
	defer s.cfgMtx.Unlock()

	prev := s.cfg
	next := update.apply(prev)
	if update.URL != nil {
		if err := s.policy.Check(*update.URL); err != nil {
			log.Warnf("Blocked RPC URL update: %v", err)
			result.InsecureBlocked = true
			result.Reason = err.Error()
		} else {
			next.URL = *update.URL
		}
	}
	if err := s.setConfig(next); err != nil {
		// Only reachable when the previous URL is no longer accepted,
		// which the fixed policy rules out.
		log.Errorf("Unable to apply configuration: %v", err)
		result.InsecureBlocked = true
		result.Reason = err.Error()
		return result
	}

	if next.URL != prev.URL {
		s.decodedTx.Clear()
	}
	s.feed.SetBufferLimit(next.BufferLimit)
	if next.ZMQAddr != prev.ZMQAddr {
		result.FeedChanged = true
		s.feed.Stop()
		if next.ZMQAddr == "" {
			s.coord.ClearPending()
		} else if err := s.feed.Start(next.ZMQAddr); err != nil {
			log.Warnf("Unable to start notification feed: %v", err)
		}
	}
	gen := s.coord.AdvanceGeneration()
	log.Infof("Applied configuration update (generation %d, feed changed %v)",
		gen, result.FeedChanged)

	signal(s.configChanged)
	return result
}

// InsecureAllowed returns whether the host policy accepts any RPC host.
func (s *Service) InsecureAllowed() bool {
	return s.policy.AllowInsecure
}

// Features reports the capabilities of the service under the current
// configuration.
func (s *Service) Features() Features {
	cfg := s.Config()
	return Features{
		EventFeed:       cfg.ZMQAddr != "",
		WalletScoped:    cfg.Wallet != "",
		InsecureAllowed: s.InsecureAllowed(),
	}
}

// SubmitRPC admits a raw JSON-RPC request and runs it on the worker pool,
// invoking done with the outcome.  limits.ErrSaturated is returned without
// invoking done when too many requests are in flight, as is
// workpool.ErrPoolClosed once the service has shut down.
func (s *Service) SubmitRPC(ctx context.Context, body []byte, done func(json.RawMessage, error)) error {
	permit, ok := s.limiter.TryAcquire()
	if !ok {
		log.Warnf("Rejected RPC request: %d requests in flight",
			s.limiter.InFlight())
		return limits.ErrSaturated
	}

	client, _ := s.rpc()
	err := s.pool.Execute(func(context.Context) {
		defer permit.Release()
		done(client.Passthrough(ctx, body))
	})
	if err != nil {
		permit.Release()
		return err
	}
	return nil
}

// CallRPC runs a raw JSON-RPC request on the worker pool and waits for the
// outcome.
func (s *Service) CallRPC(ctx context.Context, body []byte) (json.RawMessage, error) {
	type outcome struct {
		result json.RawMessage
		err    error
	}
	c := make(chan outcome, 1)
	err := s.SubmitRPC(ctx, body, func(result json.RawMessage, err error) {
		c <- outcome{result, err}
	})
	if err != nil {
		return nil, err
	}
	select {
	case o := <-c:
		return o.result, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PollEvents returns the buffered notifications newer than since, waiting up
// to waitMs milliseconds for one to arrive.
func (s *Service) PollEvents(ctx context.Context, since uint64, waitMs int64) (*eventfeed.PollResult, error) {
	return s.feed.Poll(ctx, since, time.Duration(waitMs)*time.Millisecond)
}

// FeedState returns a point-in-time view of the notification feed.
func (s *Service) FeedState() eventfeed.State {
	return s.feed.State()
}

// FeedStats returns cumulative notification counts.
func (s *Service) FeedStats() eventfeed.Stats {
	return s.feed.Stats()
}

// DecodeRawTx decodes the buffered rawtx notification received at timestamp
// with the provided sequence number using the node's decoderawtransaction.
// Decoded transactions are cached by notification cursor.
func (s *Service) DecodeRawTx(ctx context.Context, timestamp int64, sequence uint32) (json.RawMessage, error) {
	msg, err := s.feed.FindRawTx(timestamp, sequence)
	if err != nil {
		return nil, err
	}
	if decoded, ok := s.decodedTx.Get(msg.Cursor); ok {
		return decoded, nil
	}

	client, _ := s.rpc()
	decoded, err := client.Call(ctx, "decoderawtransaction",
		hex.EncodeToString(msg.Payload()))
	if err != nil {
		return nil, err
	}
	s.decodedTx.Put(msg.Cursor, decoded)
	return decoded, nil
}

// Snapshot returns a copy of the current dashboard snapshot, or nil when none
// has been fetched, along with the error of the most recent failed refresh.
func (s *Service) Snapshot() (*dashboard.Snapshot, error) {
	s.snapMtx.Lock()
	defer s.snapMtx.Unlock()

	if s.snapshot == nil {
		return nil, s.lastErr
	}
	return s.snapshot.Copy(), s.lastErr
}

// Shutdown stops the notification feed and the worker pool.  Jobs already
// queued finish first unless ctx is done before they do, in which case
// ctx.Err() is returned.
func (s *Service) Shutdown(ctx context.Context) error {
	s.feed.Stop()
	return s.pool.Shutdown(ctx)
}
