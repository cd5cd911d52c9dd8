package core

import "time"

// Message is the domain model for a chat message, including the unread
// count derived from the room's read cursors at the time it was built.
type Message struct {
	ID       int64
	Room     string
	Sender   int64
	Content  string
	SentAt   time.Time
	Deleted  bool
	System   bool
	Unread   int
}

// ReadInterval bounds the messages a readAll call marked as read.
// Prev is nil when the member had read nothing before; viewers decrement
// unread counts for every message with id in (Prev, Last].
type ReadInterval struct {
	Prev *int64
	Last *int64
}
