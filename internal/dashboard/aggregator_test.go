// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bitcoin-rpc-web/rpcweb/rpcclient"
	"github.com/davecgh/go-spew/spew"
)

// fakeBatcher answers batches with results keyed by method name.
type fakeBatcher struct {
	results map[string]string
	err     error
	methods [][]string
	ids     [][]interface{}
}

func (b *fakeBatcher) Batch(ctx context.Context, calls []rpcclient.Call) ([]json.RawMessage, error) {
	methods := make([]string, 0, len(calls))
	ids := make([]interface{}, 0, len(calls))
	for _, c := range calls {
		methods = append(methods, c.Method)
		ids = append(ids, c.ID)
	}
	b.methods = append(b.methods, methods)
	b.ids = append(b.ids, ids)
	if b.err != nil {
		return nil, b.err
	}
	out := make([]json.RawMessage, 0, len(calls))
	for _, m := range methods {
		out = append(out, json.RawMessage(b.results[m]))
	}
	return out, nil
}

// fixture returns the results of a healthy node with a single peer.
func fixture() map[string]string {
	return map[string]string{
		"getblockchaininfo": `{"chain":"regtest","blocks":101,"headers":101,` +
			`"verificationprogress":1}`,
		"getnetworkinfo": `{"version":270000,"subversion":"/Satoshi:27.0.0/",` +
			`"protocolversion":70016,"connections":8}`,
		"getmempoolinfo": `{"size":2,"bytes":450,"usage":2048,` +
			`"maxmempool":300000000}`,
		"getpeerinfo": `[{"id":7,"addr":"10.0.0.2:8333","network":"ipv4",` +
			`"inbound":false,"connection_type":"manual","pingtime":0.05,` +
			`"version":70016,"subver":"/Satoshi:27.0.0/","bytessent":500,` +
			`"bytesrecv":600,"servicesnames":["NETWORK","WITNESS"],` +
			`"conntime":1700000000,"relaytxes":false}]`,
		"uptime":       `123`,
		"getnettotals": `{"totalbytesrecv":3000,"totalbytessent":2000}`,
	}
}

// TestFetchSnapshot ensures a complete set of responses produces the
// expected snapshot.
func TestFetchSnapshot(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000100, 0)
	rpc := &fakeBatcher{results: fixture()}
	agg := New(rpc, func() time.Time { return now })
	snap, err := agg.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rpc.methods) != 1 {
		t.Fatalf("unexpected number of batches: got %d, want 1",
			len(rpc.methods))
	}
	if got := strings.Join(rpc.methods[0], ","); got !=
		strings.Join(snapshotMethods, ",") {

		t.Fatalf("unexpected batch order: %s", got)
	}
	for i, id := range rpc.ids[0] {
		if id != i+1 {
			t.Errorf("call %d: unexpected id -- got %v, want %d", i, id, i+1)
		}
	}

	if snap.Chain.Blocks != 101 {
		t.Errorf("blocks: got %d, want 101", snap.Chain.Blocks)
	}
	if snap.Network.Connections != 8 {
		t.Errorf("connections: got %d, want 8", snap.Network.Connections)
	}
	if snap.Mempool.Transactions != 2 {
		t.Errorf("mempool txns: got %d, want 2", snap.Mempool.Transactions)
	}
	if snap.Traffic.TotalBytesSent != 2000 {
		t.Errorf("bytes sent: got %d, want 2000", snap.Traffic.TotalBytesSent)
	}
	if snap.UptimeSecs != 123 {
		t.Errorf("uptime: got %d, want 123", snap.UptimeSecs)
	}
	if !snap.FetchedAt.Equal(now) {
		t.Errorf("fetched at: got %v, want %v", snap.FetchedAt, now)
	}
	if len(snap.Peers) != 1 {
		t.Fatalf("peers: got %d, want 1 -- %v", len(snap.Peers),
			spew.Sdump(snap.Peers))
	}
	peer := snap.Peers[0]
	if peer.ConnectionType != "manual" || peer.Services != "NW" ||
		peer.RelayTxes || peer.PingTime == nil || *peer.PingTime != 0.05 {

		t.Errorf("unexpected peer summary: %v", spew.Sdump(peer))
	}
	if _, ok := snap.PeerDetails[7]; !ok {
		t.Errorf("missing detail entry for peer 7")
	}
}

// TestFetchSnapshotInvalid ensures any missing or mistyped field fails the
// whole snapshot with an invalid response error naming the problem.
func TestFetchSnapshotInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		method  string
		result  string
		wantErr string
	}{{
		name:    "chain not an object",
		method:  "getblockchaininfo",
		result:  `[]`,
		wantErr: "getblockchaininfo result must be object",
	}, {
		name:    "missing blocks",
		method:  "getblockchaininfo",
		result:  `{"chain":"main","headers":1,"verificationprogress":1}`,
		wantErr: "missing u64 field: blocks",
	}, {
		name:    "negative headers",
		method:  "getblockchaininfo",
		result:  `{"chain":"main","blocks":1,"headers":-1,"verificationprogress":1}`,
		wantErr: "missing u64 field: headers",
	}, {
		name:    "chain name not a string",
		method:  "getblockchaininfo",
		result:  `{"chain":1,"blocks":1,"headers":1,"verificationprogress":1}`,
		wantErr: "missing string field: chain",
	}, {
		name:    "connections not an integer",
		method:  "getnetworkinfo",
		result:  `{"version":1,"subversion":"x","protocolversion":1,"connections":"8"}`,
		wantErr: "missing i64 field: connections",
	}, {
		name:    "mempool usage missing",
		method:  "getmempoolinfo",
		result:  `{"size":2,"bytes":450,"maxmempool":1}`,
		wantErr: "missing u64 field: usage",
	}, {
		name:    "peers not an array",
		method:  "getpeerinfo",
		result:  `{}`,
		wantErr: "getpeerinfo result must be array",
	}, {
		name:    "uptime fractional",
		method:  "uptime",
		result:  `1.5`,
		wantErr: "uptime result must be u64",
	}, {
		name:    "net totals missing sent",
		method:  "getnettotals",
		result:  `{"totalbytesrecv":1}`,
		wantErr: "missing u64 field: totalbytessent",
	}, {
		name:    "invalid json",
		method:  "getnettotals",
		result:  `{`,
		wantErr: "getnettotals result is not valid json",
	}}

	for _, test := range tests {
		results := fixture()
		results[test.method] = test.result
		agg := New(&fakeBatcher{results: results}, nil)
		snap, err := agg.FetchSnapshot(context.Background())
		if err == nil {
			t.Errorf("%q: expected error, got snapshot %v", test.name,
				spew.Sdump(snap))
			continue
		}
		if !errors.Is(err, rpcclient.ErrInvalidResponse) {
			t.Errorf("%q: unexpected error kind: %v", test.name, err)
			continue
		}
		if !strings.Contains(err.Error(), test.wantErr) {
			t.Errorf("%q: unexpected error: got %q, want %q", test.name,
				err, test.wantErr)
		}
	}
}

// TestFetchSnapshotTransportError ensures gateway errors are returned
// unchanged.
func TestFetchSnapshotTransportError(t *testing.T) {
	t.Parallel()

	wantErr := rpcclient.Error{Err: rpcclient.ErrTransport, Description: "down"}
	agg := New(&fakeBatcher{err: wantErr}, nil)
	if _, err := agg.FetchSnapshot(context.Background()); !errors.Is(err,
		rpcclient.ErrTransport) {

		t.Fatalf("unexpected error: got %v, want %v", err, wantErr)
	}
}

// TestBuildSnapshotCount ensures a result set of the wrong size is rejected.
func TestBuildSnapshotCount(t *testing.T) {
	t.Parallel()

	_, err := BuildSnapshot([]json.RawMessage{json.RawMessage(`{}`)}, time.Now())
	if !errors.Is(err, rpcclient.ErrInvalidResponse) {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestSnapshotPeerSkipping ensures peers that are not objects or lack an
// integer id are skipped while the rest of the snapshot is kept.
func TestSnapshotPeerSkipping(t *testing.T) {
	t.Parallel()

	results := fixture()
	results["getpeerinfo"] = `[1, "x", {"addr":"a"}, {"id":"3"}, {"id":2.5},` +
		` {"id":4}, {"id":5,"addr":"[::1]:8333","network":"ipv6",` +
		`"inbound":true}]`
	agg := New(&fakeBatcher{results: results}, nil)
	snap, err := agg.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []PeerSummary{{
		ID:               4,
		Addr:             "?",
		ConnectionType:   "unknown",
		RelayTxes:        true,
		AddrRelayEnabled: true,
	}, {
		ID:               5,
		Addr:             "[::1]:8333",
		Network:          "ipv6",
		Inbound:          true,
		ConnectionType:   "unknown",
		RelayTxes:        true,
		AddrRelayEnabled: true,
	}}
	if len(snap.Peers) != len(want) {
		t.Fatalf("unexpected peers: %v", spew.Sdump(snap.Peers))
	}
	for i := range want {
		got := snap.Peers[i]
		if got.ID != want[i].ID || got.Addr != want[i].Addr ||
			got.Network != want[i].Network ||
			got.Inbound != want[i].Inbound ||
			got.ConnectionType != want[i].ConnectionType ||
			got.RelayTxes != want[i].RelayTxes ||
			got.AddrRelayEnabled != want[i].AddrRelayEnabled ||
			got.PingTime != nil || got.Services != "" {

			t.Errorf("#%d: unexpected peer: got %v, want %v", i,
				spew.Sdump(got), spew.Sdump(want[i]))
		}
	}
	if len(snap.PeerDetails) != 2 {
		t.Errorf("unexpected detail entries: %d", len(snap.PeerDetails))
	}
}

// TestPartialUpdates ensures partial fetches issue the expected calls and
// patch an existing snapshot in place.
func TestPartialUpdates(t *testing.T) {
	t.Parallel()

	rpc := &fakeBatcher{results: fixture()}
	agg := New(rpc, nil)
	snap, err := agg.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rpc.results["getmempoolinfo"] = `{"size":9,"bytes":1,"usage":1,"maxmempool":1}`
	rpc.results["getblockchaininfo"] = `{"chain":"regtest","blocks":102,` +
		`"headers":102,"verificationprogress":1}`
	update, err := agg.FetchMempoolUpdate(context.Background())
	if err != nil {
		t.Fatalf("mempool update: unexpected error: %v", err)
	}
	if update.Chain != nil {
		t.Fatalf("mempool update carries chain data")
	}
	snap.Apply(update)
	if snap.Mempool.Transactions != 9 || snap.Chain.Blocks != 101 {
		t.Fatalf("unexpected snapshot after mempool update: %v",
			spew.Sdump(snap))
	}

	update, err = agg.FetchChainAndMempoolUpdate(context.Background())
	if err != nil {
		t.Fatalf("chain update: unexpected error: %v", err)
	}
	snap.Apply(update)
	if snap.Chain.Blocks != 102 {
		t.Fatalf("unexpected blocks after chain update: %d",
			snap.Chain.Blocks)
	}

	wantMethods := []string{
		strings.Join(snapshotMethods, ","),
		"getmempoolinfo",
		"getblockchaininfo,getmempoolinfo",
	}
	for i, want := range wantMethods {
		if got := strings.Join(rpc.methods[i], ","); got != want {
			t.Errorf("#%d: unexpected batch: got %s, want %s", i, got, want)
		}
	}

	// A failed partial fetch returns an error and nothing to apply.
	rpc.results["getmempoolinfo"] = `{"size":-1}`
	if _, err := agg.FetchChainAndMempoolUpdate(context.Background()); err == nil {
		t.Fatal("expected error for invalid mempool info")
	}
}

// TestSnapshotCopy ensures copies do not share mutable state.
func TestSnapshotCopy(t *testing.T) {
	t.Parallel()

	agg := New(&fakeBatcher{results: fixture()}, nil)
	snap, err := agg.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := snap.Copy()
	c.Peers[0].ServiceNames[0] = "BLOOM"
	c.Peers[0].Addr = "changed"
	c.PeerDetails[7][0] = ' '
	c.Chain.Blocks = 1

	if snap.Peers[0].ServiceNames[0] != "NETWORK" ||
		snap.Peers[0].Addr != "10.0.0.2:8333" ||
		snap.PeerDetails[7][0] != '{' || snap.Chain.Blocks != 101 {

		t.Fatalf("copy shares state with original: %v", spew.Sdump(snap))
	}
}
