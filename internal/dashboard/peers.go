// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dashboard

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// serviceCodes maps service flag names reported in servicesnames to the
// single character used in the peer table.
var serviceCodes = map[string]byte{
	"NETWORK":         'N',
	"BLOOM":           'B',
	"WITNESS":         'W',
	"COMPACT_FILTERS": 'C',
	"NETWORK_LIMITED": 'L',
	"P2P_V2":          '2',
}

// ServiceCodes returns the single character codes for the provided service
// flag names, in order.  Unknown names are shown as '?'.
func ServiceCodes(names []string) string {
	var b strings.Builder
	b.Grow(len(names))
	for _, name := range names {
		code, ok := serviceCodes[name]
		if !ok {
			code = '?'
		}
		b.WriteByte(code)
	}
	return b.String()
}

// PeerSummary is the subset of a getpeerinfo entry shown in the peer table.
// Timestamps are Unix seconds with zero meaning never.
type PeerSummary struct {
	ID             int64    `json:"id"`
	Addr           string   `json:"addr"`
	Network        string   `json:"network"`
	Inbound        bool     `json:"inbound"`
	ConnectionType string   `json:"connection_type"`
	PingTime       *float64 `json:"ping_time"`
	MinPing        *float64 `json:"min_ping"`
	Version        int64    `json:"version"`
	Subversion     string   `json:"subver"`
	BytesSent      uint64   `json:"bytes_sent"`
	BytesRecv      uint64   `json:"bytes_recv"`

	// ServiceNames are the service flags the peer advertises and Services
	// their single character codes.
	ServiceNames []string `json:"service_names"`
	Services     string   `json:"services"`

	// BIP152HighBandwidthTo and BIP152HighBandwidthFrom report compact
	// block high-bandwidth mode in each direction.
	BIP152HighBandwidthTo   bool `json:"bip152_hb_to"`
	BIP152HighBandwidthFrom bool `json:"bip152_hb_from"`

	RelayTxes        bool  `json:"relay_txes"`
	AddrRelayEnabled bool  `json:"addr_relay_enabled"`
	AddrProcessed    int64 `json:"addr_processed"`
	AddrRateLimited  int64 `json:"addr_rate_limited"`

	ConnTime        int64 `json:"conn_time"`
	LastSend        int64 `json:"last_send"`
	LastRecv        int64 `json:"last_recv"`
	LastBlock       int64 `json:"last_block"`
	LastTransaction int64 `json:"last_transaction"`
}

// PeerAges holds the time elapsed since the peer timestamps.  Negative
// durations mean the event never happened.
type PeerAges struct {
	Conn            time.Duration
	LastSend        time.Duration
	LastRecv        time.Duration
	LastBlock       time.Duration
	LastTransaction time.Duration
}

// age returns the time elapsed between the Unix timestamp ts and now, or -1
// when ts is zero.
func age(now time.Time, ts int64) time.Duration {
	if ts == 0 {
		return -1
	}
	return now.Sub(time.Unix(ts, 0))
}

// Ages returns the peer timestamps relative to now.
func (p *PeerSummary) Ages(now time.Time) PeerAges {
	return PeerAges{
		Conn:            age(now, p.ConnTime),
		LastSend:        age(now, p.LastSend),
		LastRecv:        age(now, p.LastRecv),
		LastBlock:       age(now, p.LastBlock),
		LastTransaction: age(now, p.LastTransaction),
	}
}

// parsePeer builds a summary from a getpeerinfo entry.  It returns false for
// entries that are not objects or lack an integer id.  Every other field is
// optional.
func parsePeer(v interface{}) (PeerSummary, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return PeerSummary{}, false
	}
	o := object(m)
	id, err := o.i64("id")
	if err != nil {
		return PeerSummary{}, false
	}

	var names []string
	if list, ok := o["servicesnames"].([]interface{}); ok {
		for _, name := range list {
			if s, ok := name.(string); ok {
				names = append(names, s)
			}
		}
	}

	return PeerSummary{
		ID:                      id,
		Addr:                    o.strOr("addr", "?"),
		Network:                 o.strOr("network", ""),
		Inbound:                 o.boolOr("inbound", false),
		ConnectionType:          o.strOr("connection_type", "unknown"),
		PingTime:                o.optF64("pingtime"),
		MinPing:                 o.optF64("minping"),
		Version:                 o.i64Or("version", 0),
		Subversion:              o.strOr("subver", ""),
		BytesSent:               o.u64Or("bytessent", 0),
		BytesRecv:               o.u64Or("bytesrecv", 0),
		ServiceNames:            names,
		Services:                ServiceCodes(names),
		BIP152HighBandwidthTo:   o.boolOr("bip152_hb_to", false),
		BIP152HighBandwidthFrom: o.boolOr("bip152_hb_from", false),
		RelayTxes:               o.boolOr("relaytxes", true),
		AddrRelayEnabled:        o.boolOr("addr_relay_enabled", true),
		AddrProcessed:           o.i64Or("addr_processed", 0),
		AddrRateLimited:         o.i64Or("addr_rate_limited", 0),
		ConnTime:                o.i64Or("conntime", 0),
		LastSend:                o.i64Or("lastsend", 0),
		LastRecv:                o.i64Or("lastrecv", 0),
		LastBlock:               o.i64Or("last_block", 0),
		LastTransaction:         o.i64Or("last_transaction", 0),
	}, true
}

// priorityDetailKeys are shown first, in this order, in peer details.
var priorityDetailKeys = []string{
	"id", "addr", "subver", "network", "connection_type", "inbound",
	"version", "servicesnames", "permissions", "pingtime", "minping",
	"lastsend", "lastrecv", "bytessent", "bytesrecv", "mapped_as",
	"synced_headers", "synced_blocks", "startingheight", "timeoffset",
	"relaytxes", "presynced_headers", "addrbind", "addrlocal",
}

// DetailItem is one rendered field of a raw peer entry.
type DetailItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// PeerDetailItems renders the raw getpeerinfo entry of the peer with the
// provided id as key/value pairs.  Well known keys come first in a fixed
// order followed by the remaining keys sorted by name.
func (s *Snapshot) PeerDetailItems(id int64) []DetailItem {
	raw, ok := s.PeerDetails[id]
	if !ok {
		return nil
	}
	v, err := decodeValue(raw)
	if err != nil {
		return nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}

	items := make([]DetailItem, 0, len(m))
	seen := make(map[string]struct{}, len(priorityDetailKeys))
	for _, key := range priorityDetailKeys {
		seen[key] = struct{}{}
		if val, ok := m[key]; ok {
			items = append(items, DetailItem{key, compactValue(val)})
		}
	}
	rest := make([]string, 0, len(m))
	for key := range m {
		if _, ok := seen[key]; !ok {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		items = append(items, DetailItem{key, compactValue(m[key])})
	}
	return items
}

// compactValue renders a decoded JSON value on a single short line.
func compactValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case json.Number:
		return v.String()
	case string:
		return v
	case []interface{}:
		switch {
		case len(v) == 0:
			return "[]"
		case len(v) <= 4:
			parts := make([]string, 0, len(v))
			for _, e := range v {
				parts = append(parts, compactValue(e))
			}
			return strings.Join(parts, ", ")
		}
		return fmt.Sprintf("[%d items]", len(v))
	case map[string]interface{}:
		if len(v) == 0 {
			return "{}"
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		n := len(keys)
		if n > 3 {
			keys = keys[:3]
		}
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+":"+compactValue(v[k]))
		}
		s := strings.Join(parts, ", ")
		if n > 3 {
			s += fmt.Sprintf(" ... (%d keys)", n)
		}
		return s
	}
	return fmt.Sprint(v)
}
