// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eventfeed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bitcoin-rpc-web/rpcweb/internal/progresslog"
)

const (
	// DefaultBufferLimit is the number of messages retained when no limit is
	// configured.
	DefaultBufferLimit = 5000

	// MinBufferLimit and MaxBufferLimit bound the configurable buffer limit.
	MinBufferLimit = 50
	MaxBufferLimit = 100000

	// MaxPollWait is the longest a single Poll call may block.
	MaxPollWait = 30 * time.Second

	// defaultRecvTimeout bounds each receive so cancellation is observed
	// promptly.
	defaultRecvTimeout = 500 * time.Millisecond
)

// ClampBufferLimit returns n limited to [MinBufferLimit, MaxBufferLimit].
func ClampBufferLimit(n int) int {
	switch {
	case n < MinBufferLimit:
		return MinBufferLimit
	case n > MaxBufferLimit:
		return MaxBufferLimit
	}
	return n
}

// Config houses the parameters of a Feed.
type Config struct {
	// BufferLimit is the maximum number of retained messages.  It is
	// clamped to [MinBufferLimit, MaxBufferLimit].  Zero selects
	// DefaultBufferLimit.
	BufferLimit int

	// Dial connects to the notification source.  It defaults to DialZMQ.
	Dial Dialer

	// RecvTimeout bounds each receive.  It defaults to 500ms.
	RecvTimeout time.Duration

	// Now returns the receipt time of notifications.  It defaults to
	// time.Now.
	Now func() time.Time
}

// State is a point-in-time view of the feed.
type State struct {
	Connected   bool
	Address     string
	BufferLimit int
	NextCursor  uint64
	Buffered    int
}

// Stats reports cumulative notification counts.
type Stats struct {
	// EventsSeen is the number of notifications received since the feed
	// was created.
	EventsSeen uint64

	// ByTopic counts received notifications per topic.
	ByTopic map[string]uint64
}

// PollResult is the outcome of a Poll call.
type PollResult struct {
	Connected   bool      `json:"connected"`
	Address     string    `json:"address"`
	BufferLimit int       `json:"buffer_limit"`
	Cursor      uint64    `json:"cursor"`
	Truncated   bool      `json:"truncated"`
	Messages    []Message `json:"messages"`
}

// subscription tracks a running subscriber goroutine.
type subscription struct {
	addr   string
	cancel context.CancelFunc
	done   chan struct{}
}

// Feed subscribes to a notification source and buffers what it receives.
type Feed struct {
	dial        Dialer
	recvTimeout time.Duration
	now         func() time.Time
	progress    *progresslog.Logger

	// The following fields are protected by mtx.  changed is closed and
	// replaced after every mutation to wake waiting readers.
	mtx         sync.Mutex
	changed     chan struct{}
	connected   bool
	address     string
	limit       int
	nextCursor  uint64
	buf         ring
	topicCounts map[string]uint64

	// runMtx serializes Start and Stop.
	runMtx sync.Mutex
	sub    *subscription
}

// New returns an idle feed.  Call Start to begin receiving.
func New(cfg *Config) *Feed {
	f := &Feed{
		dial:        DialZMQ,
		recvTimeout: defaultRecvTimeout,
		now:         time.Now,
		changed:     make(chan struct{}),
		limit:       DefaultBufferLimit,
		nextCursor:  1,
		topicCounts: make(map[string]uint64),
	}
	if cfg != nil {
		if cfg.BufferLimit != 0 {
			f.limit = ClampBufferLimit(cfg.BufferLimit)
		}
		if cfg.Dial != nil {
			f.dial = cfg.Dial
		}
		if cfg.RecvTimeout > 0 {
			f.recvTimeout = cfg.RecvTimeout
		}
		if cfg.Now != nil {
			f.now = cfg.Now
		}
	}
	f.progress = progresslog.New("Received", log)
	return f
}

// broadcastLocked wakes every waiting reader.
//
// This function MUST be called with the feed mutex held.
func (f *Feed) broadcastLocked() {
	close(f.changed)
	f.changed = make(chan struct{})
}

// Start launches a subscriber for addr.  It returns once the subscriber
// goroutine is running; connection failures are logged by the goroutine,
// which then exits without retrying.
func (f *Feed) Start(addr string) error {
	if addr == "" {
		return makeError(ErrNoAddress, "no notification address configured")
	}

	f.runMtx.Lock()
	defer f.runMtx.Unlock()

	if f.sub != nil {
		select {
		case <-f.sub.done:
			// The previous subscription ended on its own.
		default:
			str := fmt.Sprintf("already subscribed to %s", f.sub.addr)
			return makeError(ErrAlreadyRunning, str)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{addr: addr, cancel: cancel, done: make(chan struct{})}
	f.sub = sub
	go f.subscriber(ctx, sub)
	return nil
}

// Stop cancels the running subscriber, if any, and waits for it to exit.
func (f *Feed) Stop() {
	f.runMtx.Lock()
	defer f.runMtx.Unlock()

	if f.sub == nil {
		return
	}
	f.sub.cancel()
	<-f.sub.done
	f.sub = nil
}

// Running returns whether a subscriber goroutine is active.
func (f *Feed) Running() bool {
	f.runMtx.Lock()
	defer f.runMtx.Unlock()

	if f.sub == nil {
		return false
	}
	select {
	case <-f.sub.done:
		return false
	default:
		return true
	}
}

// subscriber connects to the subscription address and buffers notifications
// until canceled or the connection fails.
//
// This must be run as a goroutine.
func (f *Feed) subscriber(ctx context.Context, sub *subscription) {
	defer close(sub.done)

	log.Infof("Connecting to notification feed at %s", sub.addr)
	s, err := f.dial(ctx, sub.addr, Topics)
	if err != nil {
		log.Warnf("Failed to connect to notification feed: %v", err)
		return
	}
	defer s.Close()

	f.setConnected(sub.addr)
	defer f.markDisconnected()
	defer f.progress.Flush()
	log.Infof("Subscribed to notification feed at %s", sub.addr)

	for {
		select {
		case <-ctx.Done():
			log.Debugf("Notification feed subscriber stopping")
			return
		default:
		}

		frames, err := s.Recv(f.recvTimeout)
		if errors.Is(err, ErrRecvTimeout) {
			continue
		}
		if err != nil {
			if ctx.Err() == nil {
				log.Warnf("Notification feed receive error: %v", err)
			}
			return
		}

		msg, ok := decodeNotification(frames, f.now())
		if !ok {
			log.Tracef("Discarding notification with %d frames", len(frames))
			continue
		}
		f.push(msg)
	}
}

// setConnected records a successful connection to addr.
func (f *Feed) setConnected(addr string) {
	f.mtx.Lock()
	f.connected = true
	f.address = addr
	f.broadcastLocked()
	f.mtx.Unlock()
}

// markDisconnected records that the subscriber has exited.
func (f *Feed) markDisconnected() {
	f.mtx.Lock()
	f.connected = false
	f.address = ""
	f.broadcastLocked()
	f.mtx.Unlock()
	log.Infof("Disconnected from notification feed")
}

// push assigns the next cursor to msg and buffers it, evicting the oldest
// message when the buffer is full.
func (f *Feed) push(msg Message) {
	f.mtx.Lock()
	f.buf.trim(f.limit - 1)
	msg.Cursor = f.nextCursor
	f.nextCursor++
	f.buf.pushBack(msg)
	f.topicCounts[msg.Topic]++
	f.broadcastLocked()
	f.mtx.Unlock()

	f.progress.LogNotification(msg.Topic, msg.BodySize, false)
}

// SetBufferLimit clamps n and applies it, evicting the oldest messages when
// more than the new limit are buffered.  It returns the applied limit.
func (f *Feed) SetBufferLimit(n int) int {
	n = ClampBufferLimit(n)

	f.mtx.Lock()
	f.limit = n
	f.buf.trim(n)
	f.broadcastLocked()
	f.mtx.Unlock()
	return n
}

// BufferLimit returns the current buffer limit.
func (f *Feed) BufferLimit() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.limit
}

// State returns a point-in-time view of the feed.
func (f *Feed) State() State {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return State{
		Connected:   f.connected,
		Address:     f.address,
		BufferLimit: f.limit,
		NextCursor:  f.nextCursor,
		Buffered:    f.buf.Len(),
	}
}

// Stats returns cumulative notification counts.
func (f *Feed) Stats() Stats {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	byTopic := make(map[string]uint64, len(f.topicCounts))
	for topic, n := range f.topicCounts {
		byTopic[topic] = n
	}
	return Stats{EventsSeen: f.nextCursor - 1, ByTopic: byTopic}
}

// Poll returns every buffered message with a cursor greater than since.  When
// wait is positive and no such message exists yet, it blocks until one
// arrives, wait elapses or ctx is done.  wait is capped at MaxPollWait.
//
// The result is marked truncated when messages immediately following since
// were evicted before they could be returned.
func (f *Feed) Poll(ctx context.Context, since uint64, wait time.Duration) (*PollResult, error) {
	if wait < 0 {
		wait = 0
	}
	if wait > MaxPollWait {
		wait = MaxPollWait
	}

	var expired <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		expired = timer.C
	}

	f.mtx.Lock()
	for wait > 0 && f.nextCursor-1 <= since {
		changed := f.changed
		f.mtx.Unlock()

		select {
		case <-changed:
		case <-expired:
			wait = 0
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		f.mtx.Lock()
	}
	defer f.mtx.Unlock()

	msgs := f.buf.since(since)
	if msgs == nil {
		msgs = []Message{}
	}
	return &PollResult{
		Connected:   f.connected,
		Address:     f.address,
		BufferLimit: f.limit,
		Cursor:      f.nextCursor - 1,
		Truncated:   len(msgs) > 0 && msgs[0].Cursor != since+1,
		Messages:    msgs,
	}, nil
}

// FindRawTx returns the newest buffered rawtx message received at the
// provided Unix timestamp with the provided sequence number.  An error with
// kind ErrNotFound is returned when no such message is buffered.
func (f *Feed) FindRawTx(timestamp int64, sequence uint32) (Message, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	msg, ok := f.buf.newestFirst(func(m *Message) bool {
		return m.Topic == TopicRawTx && m.Timestamp.Unix() == timestamp &&
			m.Sequence == sequence
	})
	if !ok {
		str := fmt.Sprintf("no rawtx notification with timestamp %d and "+
			"sequence %d is buffered", timestamp, sequence)
		return Message{}, makeError(ErrNotFound, str)
	}
	return msg, nil
}
