// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package control

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bitcoin-rpc-web/rpcweb/eventfeed"
)

const (
	// DefaultURL is the RPC endpoint of a local mainnet node.
	DefaultURL = "http://127.0.0.1:8332"

	// DefaultPollInterval is the default interval between full snapshot
	// refreshes.
	DefaultPollInterval = 5 * time.Second

	// MinPollInterval and MaxPollInterval bound the configurable poll
	// interval.
	MinPollInterval = time.Second
	MaxPollInterval = time.Hour
)

// Config is the runtime configuration of the service.  It is replaced as a
// whole whenever it changes.
type Config struct {
	// URL is the base URL of the node RPC server.
	URL string

	// User and Pass are the RPC credentials.
	User string
	Pass string

	// Wallet optionally scopes RPC calls to the named wallet.
	Wallet string

	// ZMQAddr is the notification feed address.  Empty disables the feed.
	ZMQAddr string

	// BufferLimit is the number of notifications retained by the feed.
	BufferLimit int

	// PollInterval is the interval between full snapshot refreshes.
	PollInterval time.Duration
}

// DefaultConfig returns the configuration used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		URL:          DefaultURL,
		BufferLimit:  eventfeed.DefaultBufferLimit,
		PollInterval: DefaultPollInterval,
	}
}

// ClampPollInterval returns d limited to [MinPollInterval, MaxPollInterval].
func ClampPollInterval(d time.Duration) time.Duration {
	switch {
	case d < MinPollInterval:
		return MinPollInterval
	case d > MaxPollInterval:
		return MaxPollInterval
	}
	return d
}

// normalize clamps the limits and trims the feed address.
func (c *Config) normalize() {
	c.ZMQAddr = strings.TrimSpace(c.ZMQAddr)
	c.BufferLimit = eventfeed.ClampBufferLimit(c.BufferLimit)
	c.PollInterval = ClampPollInterval(c.PollInterval)
}

// ConfigUpdate is a partial configuration change.  Nil fields are left
// unchanged.
type ConfigUpdate struct {
	URL          *string
	User         *string
	Pass         *string
	Wallet       *string
	ZMQAddr      *string
	BufferLimit  *int
	PollInterval *time.Duration
}

// apply returns cfg with every field set in the update replaced, except the
// URL which is handled by the caller.
func (u *ConfigUpdate) apply(cfg Config) Config {
	if u.User != nil {
		cfg.User = *u.User
	}
	if u.Pass != nil {
		cfg.Pass = *u.Pass
	}
	if u.Wallet != nil {
		cfg.Wallet = *u.Wallet
	}
	if u.ZMQAddr != nil {
		cfg.ZMQAddr = *u.ZMQAddr
	}
	if u.BufferLimit != nil {
		cfg.BufferLimit = *u.BufferLimit
	}
	if u.PollInterval != nil {
		cfg.PollInterval = *u.PollInterval
	}
	cfg.normalize()
	return cfg
}

// parseCount parses a non-negative integer given either as a JSON number or
// as a string holding one.
func parseCount(raw json.RawMessage) (int, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = json.RawMessage(strings.TrimSpace(s))
	}
	n, err := strconv.ParseUint(string(raw), 10, 31)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

// ParseConfigUpdate parses a JSON object holding any of the keys url, user,
// password, wallet, zmq_address, zmq_buffer_limit and poll_interval_secs.
// The numeric fields accept numbers or numeric strings.  Fields of the wrong
// type are ignored.
func ParseConfigUpdate(body []byte) (*ConfigUpdate, error) {
	var fields map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&fields); err != nil || fields == nil {
		str := "configuration update must be a JSON object"
		if err != nil {
			str = fmt.Sprintf("%s: %v", str, err)
		}
		return nil, makeError(ErrInvalidUpdate, str)
	}

	var update ConfigUpdate
	strField := func(key string) *string {
		raw, ok := fields[key]
		if !ok || string(raw) == "null" {
			return nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			log.Debugf("Ignoring non-string config field %s", key)
			return nil
		}
		return &s
	}
	update.URL = strField("url")
	update.User = strField("user")
	update.Pass = strField("password")
	update.Wallet = strField("wallet")
	update.ZMQAddr = strField("zmq_address")

	if raw, ok := fields["zmq_buffer_limit"]; ok {
		if n, ok := parseCount(raw); ok {
			update.BufferLimit = &n
		} else {
			log.Debugf("Ignoring invalid zmq_buffer_limit %s", raw)
		}
	}
	if raw, ok := fields["poll_interval_secs"]; ok {
		if n, ok := parseCount(raw); ok {
			d := time.Duration(n) * time.Second
			update.PollInterval = &d
		} else {
			log.Debugf("Ignoring invalid poll_interval_secs %s", raw)
		}
	}
	return &update, nil
}

// UpdateResult reports the effect of a configuration update.
type UpdateResult struct {
	// FeedChanged is set when the notification feed address changed and
	// the feed was restarted.
	FeedChanged bool `json:"feed_changed"`

	// InsecureBlocked is set when the URL was rejected by the host policy.
	// The rest of the update is still applied and Reason explains the
	// rejection.
	InsecureBlocked bool   `json:"insecure_blocked"`
	Reason          string `json:"reason,omitempty"`
}

// Features reports the capabilities of the running service.
type Features struct {
	EventFeed       bool `json:"event_feed"`
	WalletScoped    bool `json:"wallet_scoped"`
	InsecureAllowed bool `json:"insecure_allowed"`
}
