package core

import "context"

// ChatService abstracts message-log business logic for the Hub.
// This interface lets the Hub process commands without depending on the
// service layer implementation.
type ChatService interface {
	// Append persists a message and returns it with its initial unread
	// count. Advances the sender's own read cursor as a side effect.
	Append(ctx context.Context, roomID string, senderID int64, content string) (*Message, error)

	// AddRead advances the member's cursor to messageID (monotonic,
	// idempotent) and returns the message's refreshed unread count.
	AddRead(ctx context.Context, roomID string, memberID, messageID int64) (int, error)

	// ReadAll catches the member up to the room's last message and
	// returns the read interval captured before advancing.
	ReadAll(ctx context.Context, roomID string, memberID int64) (*ReadInterval, error)

	// Delete tombstones a message.
	Delete(ctx context.Context, roomID string, memberID, messageID int64) error

	// ListMemberIDs returns the member ids of a room, for preview fanout.
	ListMemberIDs(ctx context.Context, roomID string) ([]int64, error)
}
