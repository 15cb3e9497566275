// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eventfeed

import (
	"context"
	"fmt"
	"time"

	"github.com/go-zeromq/zmq4"
)

// Subscriber is a connected source of multipart notifications.
type Subscriber interface {
	// Recv returns the frames of the next notification.  It returns an
	// error with kind ErrRecvTimeout when nothing arrives within timeout.
	Recv(timeout time.Duration) ([][]byte, error)

	// Close releases the subscription.
	Close() error
}

// Dialer connects a Subscriber to addr subscribed to the provided topics.
// Canceling ctx aborts a dial in progress and ends the returned subscription.
type Dialer func(ctx context.Context, addr string, topics []string) (Subscriber, error)

// recvResult is a message or error read from a socket.
type recvResult struct {
	frames [][]byte
	err    error
}

// zmqSubscriber adapts a ZeroMQ SUB socket to the Subscriber interface.
type zmqSubscriber struct {
	sock   zmq4.Socket
	cancel context.CancelFunc
	ctx    context.Context
	recvd  chan recvResult
}

// DialZMQ connects a ZeroMQ SUB socket to addr and subscribes it to topics.
// The dial is attempted once.
func DialZMQ(ctx context.Context, addr string, topics []string) (Subscriber, error) {
	ctx, cancel := context.WithCancel(ctx)
	sock := zmq4.NewSub(ctx, zmq4.WithDialerMaxRetries(0))
	if err := sock.Dial(addr); err != nil {
		cancel()
		sock.Close()
		return nil, fmt.Errorf("unable to connect to %s: %w", addr, err)
	}
	for _, topic := range topics {
		if err := sock.SetOption(zmq4.OptionSubscribe, topic); err != nil {
			cancel()
			sock.Close()
			return nil, fmt.Errorf("unable to subscribe to %q: %w", topic, err)
		}
	}

	s := &zmqSubscriber{
		sock:   sock,
		cancel: cancel,
		ctx:    ctx,
		recvd:  make(chan recvResult),
	}
	go s.readLoop()
	return s, nil
}

// readLoop forwards messages from the socket until it fails or the
// subscription is closed.
//
// This must be run as a goroutine.
func (s *zmqSubscriber) readLoop() {
	for {
		msg, err := s.sock.Recv()
		select {
		case s.recvd <- recvResult{frames: msg.Frames, err: err}:
		case <-s.ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// Recv returns the next notification or an ErrRecvTimeout error.
func (s *zmqSubscriber) Recv(timeout time.Duration) ([][]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-s.recvd:
		return r.frames, r.err
	case <-timer.C:
		return nil, makeError(ErrRecvTimeout, "receive timed out")
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

// Close cancels the subscription and closes the socket.
func (s *zmqSubscriber) Close() error {
	s.cancel()
	return s.sock.Close()
}
