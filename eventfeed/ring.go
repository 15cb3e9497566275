// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eventfeed

// ring is a growable circular queue of messages with contiguous cursors.  The
// oldest message is at head.
type ring struct {
	buf   []Message
	head  int
	count int
}

// Len returns the number of buffered messages.
func (r *ring) Len() int {
	return r.count
}

// at returns the i-th oldest message.
func (r *ring) at(i int) *Message {
	return &r.buf[(r.head+i)%len(r.buf)]
}

// grow doubles the backing storage, unrolling the queue to start at index 0.
func (r *ring) grow() {
	newCap := len(r.buf) * 2
	if newCap == 0 {
		newCap = 64
	}
	buf := make([]Message, newCap)
	for i := 0; i < r.count; i++ {
		buf[i] = *r.at(i)
	}
	r.buf = buf
	r.head = 0
}

// pushBack appends msg as the newest message.
func (r *ring) pushBack(msg Message) {
	if r.count == len(r.buf) {
		r.grow()
	}
	r.buf[(r.head+r.count)%len(r.buf)] = msg
	r.count++
}

// popFront removes the oldest message.
func (r *ring) popFront() {
	if r.count == 0 {
		return
	}
	*r.at(0) = Message{}
	r.head = (r.head + 1) % len(r.buf)
	r.count--
}

// trim evicts the oldest messages until at most limit remain.
func (r *ring) trim(limit int) {
	for r.count > limit {
		r.popFront()
	}
}

// since returns copies of all messages with a cursor greater than cursor, in
// cursor order.
func (r *ring) since(cursor uint64) []Message {
	if r.count == 0 {
		return nil
	}

	// Cursors are contiguous, so the first match can be located directly.
	start := 0
	if first := r.at(0).Cursor; cursor >= first {
		offset := cursor - first + 1
		if offset >= uint64(r.count) {
			return nil
		}
		start = int(offset)
	}
	out := make([]Message, 0, r.count-start)
	for i := start; i < r.count; i++ {
		out = append(out, *r.at(i))
	}
	return out
}

// newestFirst calls fn on each message from newest to oldest until fn returns
// true.  It returns the message fn stopped on, if any.
func (r *ring) newestFirst(fn func(*Message) bool) (Message, bool) {
	for i := r.count - 1; i >= 0; i-- {
		if m := r.at(i); fn(m) {
			return *m, true
		}
	}
	return Message{}, false
}
