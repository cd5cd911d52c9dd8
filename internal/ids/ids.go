package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Message ids are int64 values laid out as unix-millis<<20 | sequence.
// The high bits carry creation time, so numeric order equals creation
// order and pagination cursors can compare ids directly. The sequence
// disambiguates ids minted within the same millisecond.
const seqBits = 20

// MessageID mints strictly monotonic message identifiers.
type MessageID struct {
	mu   sync.Mutex
	last int64
}

// NewMessageID constructs a message id generator.
func NewMessageID() *MessageID {
	return &MessageID{}
}

// Next returns a fresh id strictly greater than every id minted before it.
func (g *MessageID) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := time.Now().UnixMilli() << seqBits
	if id <= g.last {
		// Same millisecond, or clock went backwards: bump the sequence.
		id = g.last + 1
	}
	g.last = id
	return id
}

// Millis extracts the creation time (unix milliseconds) encoded in a message id.
func Millis(id int64) int64 {
	return id >> seqBits
}

// NewRoomID returns a ULID used as a room identifier.
func NewRoomID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
