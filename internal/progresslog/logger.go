// Copyright (c) 2015-2021 The Decred developers
// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package progresslog

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/dustin/go-humanize"
)

// logInterval is the minimum time between unforced progress messages.
const logInterval = time.Second * 10

// pickNoun returns the singular or plural form of a noun depending on the
// provided count.
func pickNoun(n uint64, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

// Logger provides periodic logging of notifications received from a node's
// push feed.
type Logger struct {
	sync.Mutex
	subsystemLogger slog.Logger
	progressAction  string

	// lastLogTime tracks the last time a log statement was shown.
	lastLogTime time.Time

	// These fields accumulate information about notifications between log
	// statements.
	received      uint64
	receivedBytes uint64
	byTopic       map[string]uint64
}

// New returns a new notification progress logger.
func New(progressAction string, logger slog.Logger) *Logger {
	return &Logger{
		lastLogTime:     time.Now(),
		progressAction:  progressAction,
		subsystemLogger: logger,
		byTopic:         make(map[string]uint64),
	}
}

// LogNotification accumulates details for the provided notification and
// periodically (every 10 seconds) logs an information message to show progress
// to the user along with duration and totals included.
//
// The force flag may be used to force a log message to be shown regardless of
// the time the last one was shown.
//
// The progress message is templated as follows:
//
//	{progressAction} {numReceived} {notifications|notification} in the last
//	{timePeriod} ({bytes}, {topic} {count}, ...)
func (l *Logger) LogNotification(topic string, size int, forceLog bool) {
	l.Lock()
	defer l.Unlock()

	l.received++
	l.receivedBytes += uint64(size)
	l.byTopic[topic]++
	l.logLocked(time.Now(), forceLog)
}

// Flush logs any accumulated data regardless of the time the last message was
// shown.
func (l *Logger) Flush() {
	l.Lock()
	defer l.Unlock()

	if l.received == 0 {
		return
	}
	l.logLocked(time.Now(), true)
}

// logLocked shows the progress message when due and resets the totals.
//
// This function MUST be called with the logger lock held.
func (l *Logger) logLocked(now time.Time, forceLog bool) {
	duration := now.Sub(l.lastLogTime)
	if !forceLog && duration < logInterval {
		return
	}

	topics := make([]string, 0, len(l.byTopic))
	for topic := range l.byTopic {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	parts := make([]string, 0, len(topics)+1)
	parts = append(parts, humanize.Bytes(l.receivedBytes))
	for _, topic := range topics {
		parts = append(parts, fmt.Sprintf("%s %d", topic, l.byTopic[topic]))
	}

	l.subsystemLogger.Infof("%s %d %s in the last %0.2fs (%s)",
		l.progressAction, l.received,
		pickNoun(l.received, "notification", "notifications"),
		duration.Seconds(), strings.Join(parts, ", "))

	l.received = 0
	l.receivedBytes = 0
	l.byTopic = make(map[string]uint64)
	l.lastLogTime = now
}

// SetLastLogTime updates the last time data was logged to the provided time.
func (l *Logger) SetLastLogTime(time time.Time) {
	l.Lock()
	l.lastLogTime = time
	l.Unlock()
}
