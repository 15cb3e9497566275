// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eventfeed

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
)

const (
	// previewLen is the maximum number of payload bytes included in the hex
	// preview of a message.
	previewLen = 80

	// TopicRawTx is the topic of full serialized transaction notifications.
	TopicRawTx = "rawtx"
)

// Topics is the set of notification topics the feed subscribes to.
var Topics = []string{"hashblock", "hashtx", "rawblock", TopicRawTx, "sequence"}

// Message is a single decoded notification.
type Message struct {
	// Cursor is the position of the message in the feed.  It starts at 1
	// and is never reused.
	Cursor uint64

	// Topic is the notification topic, such as hashblock.
	Topic string

	// BodyHex is the hex encoding of at most the first 80 payload bytes.
	BodyHex string

	// BodySize is the full payload length in bytes.
	BodySize int

	// Sequence is the node's per-topic sequence number, or zero when the
	// notification did not carry one.
	Sequence uint32

	// Timestamp is the time the notification was received.
	Timestamp time.Time

	// EventHash is the first 32 payload bytes, present only when the payload
	// is at least that long.  Its String method yields the bytes in the
	// order the node sent them.
	EventHash *chainhash.Hash

	// payload is the full payload of rawtx notifications.
	payload []byte
}

// Payload returns a copy of the full payload for rawtx notifications and nil
// for every other topic.
func (m *Message) Payload() []byte {
	if m.payload == nil {
		return nil
	}
	return append([]byte(nil), m.payload...)
}

// messageJSON is the wire form of a Message.
type messageJSON struct {
	Cursor    uint64  `json:"cursor"`
	Topic     string  `json:"topic"`
	BodyHex   string  `json:"body_hex"`
	BodySize  int     `json:"body_size"`
	Sequence  uint32  `json:"sequence"`
	Timestamp int64   `json:"timestamp"`
	EventHash *string `json:"event_hash"`
}

// MarshalJSON encodes the message with a Unix timestamp in seconds and
// without the raw payload.
func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{
		Cursor:    m.Cursor,
		Topic:     m.Topic,
		BodyHex:   m.BodyHex,
		BodySize:  m.BodySize,
		Sequence:  m.Sequence,
		Timestamp: m.Timestamp.Unix(),
	}
	if m.EventHash != nil {
		s := m.EventHash.String()
		out.EventHash = &s
	}
	return json.Marshal(out)
}

// eventHash returns the first 32 bytes of payload as a hash whose string form
// is the hex of those bytes in their original order, or nil when the payload
// is shorter than a hash.
func eventHash(payload []byte) *chainhash.Hash {
	if len(payload) < chainhash.HashSize {
		return nil
	}
	var h chainhash.Hash
	for i := 0; i < chainhash.HashSize; i++ {
		h[i] = payload[chainhash.HashSize-1-i]
	}
	return &h
}

// decodeNotification converts a multipart notification into a message.  The
// cursor is assigned later.  It returns false when there are fewer than three
// frames.
func decodeNotification(frames [][]byte, now time.Time) (Message, bool) {
	if len(frames) < 3 {
		return Message{}, false
	}

	topic, body, seq := string(frames[0]), frames[1], frames[2]
	preview := body
	if len(preview) > previewLen {
		preview = preview[:previewLen]
	}
	msg := Message{
		Topic:     topic,
		BodyHex:   hex.EncodeToString(preview),
		BodySize:  len(body),
		Timestamp: now,
		EventHash: eventHash(body),
	}
	if len(seq) >= 4 {
		msg.Sequence = binary.LittleEndian.Uint32(seq[:4])
	}
	if topic == TopicRawTx {
		msg.payload = append([]byte(nil), body...)
	}
	return msg, true
}
