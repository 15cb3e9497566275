// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"strings"
	"testing"
	"time"

	"github.com/bitcoin-rpc-web/rpcweb/internal/control"
)

// TestLoadConfig ensures command line options are parsed, clamped and
// validated.
func TestLoadConfig(t *testing.T) {
	t.Setenv(insecureRPCEnv, "")

	tests := []struct {
		name    string
		args    []string
		wantErr string
		check   func(*config) bool
	}{{
		name: "defaults",
		args: nil,
		check: func(c *config) bool {
			return c.RPCURL == control.DefaultURL &&
				c.PollInterval == control.DefaultPollInterval &&
				!c.AllowInsecureRPC && c.memLimit == 0
		},
	}, {
		name: "poll interval clamped",
		args: []string{"--pollinterval=10ms"},
		check: func(c *config) bool {
			return c.PollInterval == control.MinPollInterval
		},
	}, {
		name: "memlimit parsed",
		args: []string{"--memlimit=512MiB"},
		check: func(c *config) bool {
			return c.memLimit == 512<<20
		},
	}, {
		name:    "bad memlimit",
		args:    []string{"--memlimit=lots"},
		wantErr: "invalid memlimit",
	}, {
		name:    "proxy user without proxy",
		args:    []string{"--proxyuser=me"},
		wantErr: "proxyuser requires proxy",
	}, {
		name:    "no workers",
		args:    []string{"--workers=0"},
		wantErr: "at least 1",
	}, {
		name:    "negative status interval",
		args:    []string{"--statusinterval=-1s"},
		wantErr: "may not be negative",
	}, {
		name:    "bad debug level",
		args:    []string{"--debuglevel=loud"},
		wantErr: "is invalid",
	}, {
		name: "per subsystem level",
		args: []string{"--debuglevel=FEED=debug,RPCC=trace"},
		check: func(c *config) bool {
			return c.StatusInterval == time.Minute
		},
	}}

	for _, test := range tests {
		args := append([]string{"--nofilelogging"}, test.args...)
		cfg, _, err := loadConfig("rpcwebd", args)
		if test.wantErr != "" {
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("%q: unexpected error -- got %v, want %q",
					test.name, err, test.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error: %v", test.name, err)
			continue
		}
		if !test.check(cfg) {
			t.Errorf("%q: unexpected config %+v", test.name, cfg)
		}
	}
}

// TestInsecureEnv ensures the insecure RPC environment variable only enables
// insecure hosts when set to exactly "1".
func TestInsecureEnv(t *testing.T) {
	for _, val := range []string{"1", "true", "0"} {
		t.Setenv(insecureRPCEnv, val)
		cfg, _, err := loadConfig("rpcwebd", []string{"--nofilelogging"})
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", val, err)
		}
		if want := val == "1"; cfg.AllowInsecureRPC != want {
			t.Errorf("%q: unexpected insecure flag -- got %v, want %v", val,
				cfg.AllowInsecureRPC, want)
		}
	}
}

// TestParseAndSetDebugLevels ensures malformed debug level specifications are
// rejected.
func TestParseAndSetDebugLevels(t *testing.T) {
	tests := []struct {
		levels string
		valid  bool
	}{
		{"info", true},
		{"CTRL=debug", true},
		{"CTRL=debug,POOL=warn", true},
		{"CTRL", false},
		{"NOPE=debug", false},
		{"CTRL=loud", false},
		{"CTRL=debug,", false},
	}
	for _, test := range tests {
		err := parseAndSetDebugLevels(test.levels)
		if (err == nil) != test.valid {
			t.Errorf("%q: unexpected result -- err %v, want valid %v",
				test.levels, err, test.valid)
		}
	}
	setLogLevels(defaultLogLevel)
}
