// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dashboard

import (
	"encoding/json"
	"time"
)

// ChainSummary is the subset of getblockchaininfo shown on the dashboard.
type ChainSummary struct {
	Chain                string  `json:"chain"`
	Blocks               uint64  `json:"blocks"`
	Headers              uint64  `json:"headers"`
	VerificationProgress float64 `json:"verification_progress"`
}

// MempoolSummary is the subset of getmempoolinfo shown on the dashboard.
type MempoolSummary struct {
	Transactions uint64 `json:"transactions"`
	Bytes        uint64 `json:"bytes"`
	Usage        uint64 `json:"usage"`
	MaxMempool   uint64 `json:"maxmempool"`
}

// NetworkSummary is the subset of getnetworkinfo shown on the dashboard.
type NetworkSummary struct {
	Version         int64  `json:"version"`
	Subversion      string `json:"subversion"`
	ProtocolVersion int64  `json:"protocol_version"`
	Connections     int64  `json:"connections"`
}

// TrafficSummary holds the totals reported by getnettotals.
type TrafficSummary struct {
	TotalBytesRecv uint64 `json:"total_bytes_recv"`
	TotalBytesSent uint64 `json:"total_bytes_sent"`
}

// Snapshot is a complete, validated view of the node.  It is only ever built
// from a full set of responses.
type Snapshot struct {
	Chain   ChainSummary   `json:"chain"`
	Mempool MempoolSummary `json:"mempool"`
	Network NetworkSummary `json:"network"`
	Traffic TrafficSummary `json:"traffic"`
	Peers   []PeerSummary  `json:"peers"`

	// PeerDetails maps peer ids to their full getpeerinfo entry.
	PeerDetails map[int64]json.RawMessage `json:"-"`

	// UptimeSecs is the node uptime in seconds.
	UptimeSecs uint64 `json:"uptime_secs"`

	// FetchedAt is the time the snapshot was assembled.  Peer ages are
	// computed against it.
	FetchedAt time.Time `json:"fetched_at"`
}

// PartialUpdate refreshes part of an existing snapshot.  Chain is nil for a
// mempool-only update.
type PartialUpdate struct {
	Chain   *ChainSummary
	Mempool MempoolSummary
}

// Apply patches the snapshot in place with the contents of update.
func (s *Snapshot) Apply(update PartialUpdate) {
	if update.Chain != nil {
		s.Chain = *update.Chain
	}
	s.Mempool = update.Mempool
}

// Copy returns a deep copy of the snapshot.
func (s *Snapshot) Copy() *Snapshot {
	c := *s
	c.Peers = append([]PeerSummary(nil), s.Peers...)
	for i := range c.Peers {
		c.Peers[i].ServiceNames = append([]string(nil), s.Peers[i].ServiceNames...)
	}
	c.PeerDetails = make(map[int64]json.RawMessage, len(s.PeerDetails))
	for id, raw := range s.PeerDetails {
		c.PeerDetails[id] = append(json.RawMessage(nil), raw...)
	}
	return &c
}

// Peer returns the summary of the peer with the provided id.
func (s *Snapshot) Peer(id int64) (*PeerSummary, bool) {
	for i := range s.Peers {
		if s.Peers[i].ID == id {
			return &s.Peers[i], true
		}
	}
	return nil, false
}

// knownNetworks lists the networks reported in peer counts, in display order.
var knownNetworks = []string{"ipv4", "ipv6", "onion", "i2p", "cjdns"}

// NetworkCount is the number of connected peers on one network.
type NetworkCount struct {
	Network  string `json:"network"`
	Inbound  int    `json:"inbound"`
	Outbound int    `json:"outbound"`
}

// Total returns the number of peers in both directions.
func (c NetworkCount) Total() int {
	return c.Inbound + c.Outbound
}

// NetworkCounts returns inbound and outbound peer counts for every known
// network with at least one peer, followed by a "total" entry covering all
// peers.
func (s *Snapshot) NetworkCounts() []NetworkCount {
	counts := make([]NetworkCount, 0, len(knownNetworks)+1)
	total := NetworkCount{Network: "total"}
	for _, net := range knownNetworks {
		c := NetworkCount{Network: net}
		for i := range s.Peers {
			if s.Peers[i].Network != net {
				continue
			}
			if s.Peers[i].Inbound {
				c.Inbound++
			} else {
				c.Outbound++
			}
		}
		if c.Total() > 0 {
			counts = append(counts, c)
		}
	}
	for i := range s.Peers {
		if s.Peers[i].Inbound {
			total.Inbound++
		} else {
			total.Outbound++
		}
	}
	return append(counts, total)
}
