// Package transcript persists conversation transcripts: who said what, in
// order, across the lifetime of a conversation. Entries are keyed by
// nanosecond timestamp for chronological ordering and encoded with msgpack.
//
// The package includes a BadgerDB-backed implementation for production use,
// an in-memory implementation for testing, and a Recorder that captures a
// live session into a store.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a conversation has no entries.
	ErrNotFound = errors.New("transcript: not found")
)

// Speaker identifies which side of the conversation an entry belongs to.
type Speaker string

const (
	// SpeakerPlayer is the end user's side: final speech-to-text results
	// and typed messages.
	SpeakerPlayer Speaker = "player"

	// SpeakerCharacter is the character's side: completed responses,
	// including ones cut short by an interrupt.
	SpeakerCharacter Speaker = "character"
)

// Entry is one utterance in a conversation.
type Entry struct {
	ConversationID string  `msgpack:"conversation_id"`
	Speaker        Speaker `msgpack:"speaker"`
	Text           string  `msgpack:"text"`

	// MessageID is the server-side response id, character entries only.
	MessageID string `msgpack:"message_id,omitempty"`

	// Interrupted marks a character entry whose response was cut off;
	// Text holds whatever streamed in before the interrupt.
	Interrupted bool `msgpack:"interrupted,omitempty"`

	// Timestamp is unix nanoseconds. Assigned on Append when zero.
	Timestamp int64 `msgpack:"timestamp"`
}

// Store persists transcript entries grouped by conversation.
//
// Conversation IDs must not contain the ':' key separator.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append stores one entry. A zero Timestamp is assigned from the
	// store's monotonic clock so same-instant entries keep their order.
	Append(ctx context.Context, e Entry) error

	// Entries returns all entries of a conversation in chronological
	// order. Returns ErrNotFound if the conversation has no entries.
	Entries(ctx context.Context, conversationID string) ([]Entry, error)

	// Recent returns the n most recent entries of a conversation in
	// chronological order (oldest first).
	Recent(ctx context.Context, conversationID string, n int) ([]Entry, error)

	// Conversations lists all conversation IDs with at least one entry,
	// lexicographically ordered.
	Conversations(ctx context.Context) ([]string, error)

	// Clear removes all entries of a conversation. No error if the
	// conversation does not exist.
	Clear(ctx context.Context, conversationID string) error

	// Close releases any resources held by the store.
	Close() error
}

const keySep = ':'

// entryKey builds the storage key "t:<conv>:<timestamp>". Timestamps are
// zero-padded so lexicographic key order is chronological order.
func entryKey(conversationID string, ts int64) ([]byte, error) {
	if conversationID == "" {
		return nil, errors.New("transcript: conversation id is required")
	}
	if strings.IndexByte(conversationID, keySep) >= 0 {
		return nil, fmt.Errorf("transcript: conversation id %q contains separator", conversationID)
	}
	return fmt.Appendf(nil, "t:%s:%020d", conversationID, ts), nil
}

// convPrefix is the key prefix covering one conversation, separator included.
func convPrefix(conversationID string) []byte {
	return fmt.Appendf(nil, "t:%s:", conversationID)
}

// stamper hands out strictly increasing nanosecond timestamps.
type stamper struct {
	mu   sync.Mutex
	last int64
}

func (s *stamper) next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UnixNano()
	if now <= s.last {
		now = s.last + 1
	}
	s.last = now
	return now
}
