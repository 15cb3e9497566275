// Copyright (c) 2021 The Decred developers
// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package progresslog

import (
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/decred/slog"
)

var (
	backendLog = slog.NewBackend(io.Discard)
	testLog    = backendLog.Logger("TEST")
)

// TestLogNotification ensures the logging functionality works as expected via
// a test logger.
func TestLogNotification(t *testing.T) {
	tests := []struct {
		name             string
		reset            bool
		topic            string
		size             int
		forceLog         bool
		inputLastLogTime time.Time
		wantReceived     uint64
		wantBytes        uint64
		wantByTopic      map[string]uint64
	}{{
		name:             "round 1, hashblock, last log time < 10 secs ago, not forced",
		topic:            "hashblock",
		size:             32,
		inputLastLogTime: time.Now(),
		wantReceived:     1,
		wantBytes:        32,
		wantByTopic:      map[string]uint64{"hashblock": 1},
	}, {
		name:             "round 1, hashtx, last log time < 10 secs ago, not forced",
		topic:            "hashtx",
		size:             32,
		inputLastLogTime: time.Now(),
		wantReceived:     2,
		wantBytes:        64,
		wantByTopic:      map[string]uint64{"hashblock": 1, "hashtx": 1},
	}, {
		name:             "round 1, rawtx, last log time < 10 secs ago, forced",
		topic:            "rawtx",
		size:             250,
		forceLog:         true,
		inputLastLogTime: time.Now(),
		wantByTopic:      map[string]uint64{},
	}, {
		name:             "round 2, hashtx, last log time < 10 secs ago, not forced",
		reset:            true,
		topic:            "hashtx",
		size:             32,
		inputLastLogTime: time.Now(),
		wantReceived:     1,
		wantBytes:        32,
		wantByTopic:      map[string]uint64{"hashtx": 1},
	}, {
		name:             "round 2, hashtx, last log time > 10 secs ago, not forced",
		topic:            "hashtx",
		size:             32,
		inputLastLogTime: time.Now().Add(-11 * time.Second),
		wantByTopic:      map[string]uint64{},
	}}

	progressLogger := New("Received", testLog)
	for _, test := range tests {
		if test.reset {
			progressLogger = New("Received", testLog)
		}
		progressLogger.SetLastLogTime(test.inputLastLogTime)
		progressLogger.LogNotification(test.topic, test.size, test.forceLog)
		want := &Logger{
			received:        test.wantReceived,
			receivedBytes:   test.wantBytes,
			byTopic:         test.wantByTopic,
			lastLogTime:     progressLogger.lastLogTime,
			progressAction:  progressLogger.progressAction,
			subsystemLogger: progressLogger.subsystemLogger,
		}
		if !reflect.DeepEqual(progressLogger, want) {
			t.Errorf("%s:\nwant: %s\ngot: %s\n", test.name, spew.Sdump(want),
				spew.Sdump(progressLogger))
		}
	}
}

// TestFlush ensures flushing resets accumulated totals.
func TestFlush(t *testing.T) {
	l := New("Received", testLog)
	l.Flush()
	if l.received != 0 {
		t.Fatalf("flush of empty logger changed totals: %s", spew.Sdump(l))
	}

	l.LogNotification("hashblock", 32, false)
	l.Flush()
	if l.received != 0 || l.receivedBytes != 0 || len(l.byTopic) != 0 {
		t.Fatalf("totals not reset: %s", spew.Sdump(l))
	}
}
