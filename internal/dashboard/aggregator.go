// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bitcoin-rpc-web/rpcweb/rpcclient"
)

// Batcher issues a batch of RPC calls and returns their results in call
// order.  *rpcclient.Client satisfies it.
type Batcher interface {
	Batch(ctx context.Context, calls []rpcclient.Call) ([]json.RawMessage, error)
}

// snapshotMethods are the calls making up a full snapshot, in batch order.
var snapshotMethods = []string{
	"getblockchaininfo",
	"getnetworkinfo",
	"getmempoolinfo",
	"getpeerinfo",
	"uptime",
	"getnettotals",
}

// Aggregator turns node RPC responses into dashboard snapshots.
type Aggregator struct {
	rpc Batcher
	now func() time.Time
}

// New returns an aggregator issuing calls through rpc.  A nil now uses
// time.Now.
func New(rpc Batcher, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{rpc: rpc, now: now}
}

// calls returns argument-less calls for the provided methods numbered from 1
// in batch order.
func calls(methods ...string) []rpcclient.Call {
	out := make([]rpcclient.Call, 0, len(methods))
	for i, method := range methods {
		out = append(out, rpcclient.NewCall(i+1, method))
	}
	return out
}

// FetchSnapshot issues the snapshot batch and builds a snapshot from it.  The
// snapshot is only returned when every response is present and well formed.
func (a *Aggregator) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	results, err := a.rpc.Batch(ctx, calls(snapshotMethods...))
	if err != nil {
		return nil, err
	}
	snap, err := BuildSnapshot(results, a.now())
	if err != nil {
		log.Debugf("Rejected snapshot: %v", err)
		return nil, err
	}
	log.Tracef("Built snapshot at height %d with %d peers", snap.Chain.Blocks,
		len(snap.Peers))
	return snap, nil
}

// FetchMempoolUpdate fetches a mempool-only partial update.
func (a *Aggregator) FetchMempoolUpdate(ctx context.Context) (PartialUpdate, error) {
	results, err := a.rpc.Batch(ctx, calls("getmempoolinfo"))
	if err != nil {
		return PartialUpdate{}, err
	}
	if len(results) != 1 {
		return PartialUpdate{}, invalidResponse("missing mempool response")
	}
	mempool, err := parseMempool(results[0])
	if err != nil {
		return PartialUpdate{}, err
	}
	return PartialUpdate{Mempool: mempool}, nil
}

// FetchChainAndMempoolUpdate fetches a chain and mempool partial update.
func (a *Aggregator) FetchChainAndMempoolUpdate(ctx context.Context) (PartialUpdate, error) {
	results, err := a.rpc.Batch(ctx, calls("getblockchaininfo", "getmempoolinfo"))
	if err != nil {
		return PartialUpdate{}, err
	}
	if len(results) != 2 {
		return PartialUpdate{}, invalidResponse("expected 2 partial "+
			"responses, got %d", len(results))
	}
	chain, err := parseChain(results[0])
	if err != nil {
		return PartialUpdate{}, err
	}
	mempool, err := parseMempool(results[1])
	if err != nil {
		return PartialUpdate{}, err
	}
	return PartialUpdate{Chain: &chain, Mempool: mempool}, nil
}

// BuildSnapshot builds a snapshot from the results of the snapshot batch, in
// batch order.  Any missing or mistyped field fails the whole snapshot.
func BuildSnapshot(results []json.RawMessage, now time.Time) (*Snapshot, error) {
	if len(results) != len(snapshotMethods) {
		return nil, invalidResponse("expected %d dashboard responses, got %d",
			len(snapshotMethods), len(results))
	}

	chain, err := parseChain(results[0])
	if err != nil {
		return nil, err
	}
	network, err := parseNetwork(results[1])
	if err != nil {
		return nil, err
	}
	mempool, err := parseMempool(results[2])
	if err != nil {
		return nil, err
	}
	peers, err := decodeArray("getpeerinfo", results[3])
	if err != nil {
		return nil, err
	}
	uptime, err := decodeUint64("uptime", results[4])
	if err != nil {
		return nil, err
	}
	traffic, err := parseTraffic(results[5])
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Chain:       chain,
		Mempool:     mempool,
		Network:     network,
		Traffic:     traffic,
		Peers:       make([]PeerSummary, 0, len(peers)),
		PeerDetails: make(map[int64]json.RawMessage, len(peers)),
		UptimeSecs:  uptime,
		FetchedAt:   now,
	}
	for _, p := range peers {
		summary, ok := parsePeer(p)
		if !ok {
			continue
		}
		raw, err := json.Marshal(p)
		if err != nil {
			continue
		}
		snap.Peers = append(snap.Peers, summary)
		snap.PeerDetails[summary.ID] = raw
	}
	return snap, nil
}

func parseChain(raw json.RawMessage) (ChainSummary, error) {
	o, err := decodeObject("getblockchaininfo", raw)
	if err != nil {
		return ChainSummary{}, err
	}
	var c ChainSummary
	if c.Chain, err = o.str("chain"); err != nil {
		return ChainSummary{}, err
	}
	if c.Blocks, err = o.u64("blocks"); err != nil {
		return ChainSummary{}, err
	}
	if c.Headers, err = o.u64("headers"); err != nil {
		return ChainSummary{}, err
	}
	if c.VerificationProgress, err = o.f64("verificationprogress"); err != nil {
		return ChainSummary{}, err
	}
	return c, nil
}

func parseMempool(raw json.RawMessage) (MempoolSummary, error) {
	o, err := decodeObject("getmempoolinfo", raw)
	if err != nil {
		return MempoolSummary{}, err
	}
	var m MempoolSummary
	if m.Transactions, err = o.u64("size"); err != nil {
		return MempoolSummary{}, err
	}
	if m.Bytes, err = o.u64("bytes"); err != nil {
		return MempoolSummary{}, err
	}
	if m.Usage, err = o.u64("usage"); err != nil {
		return MempoolSummary{}, err
	}
	if m.MaxMempool, err = o.u64("maxmempool"); err != nil {
		return MempoolSummary{}, err
	}
	return m, nil
}

func parseNetwork(raw json.RawMessage) (NetworkSummary, error) {
	o, err := decodeObject("getnetworkinfo", raw)
	if err != nil {
		return NetworkSummary{}, err
	}
	var n NetworkSummary
	if n.Version, err = o.i64("version"); err != nil {
		return NetworkSummary{}, err
	}
	if n.Subversion, err = o.str("subversion"); err != nil {
		return NetworkSummary{}, err
	}
	if n.ProtocolVersion, err = o.i64("protocolversion"); err != nil {
		return NetworkSummary{}, err
	}
	if n.Connections, err = o.i64("connections"); err != nil {
		return NetworkSummary{}, err
	}
	return n, nil
}

func parseTraffic(raw json.RawMessage) (TrafficSummary, error) {
	o, err := decodeObject("getnettotals", raw)
	if err != nil {
		return TrafficSummary{}, err
	}
	var t TrafficSummary
	if t.TotalBytesRecv, err = o.u64("totalbytesrecv"); err != nil {
		return TrafficSummary{}, err
	}
	if t.TotalBytesSent, err = o.u64("totalbytessent"); err != nil {
		return TrafficSummary{}, err
	}
	return t, nil
}
