package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by store implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrNotMember is returned when a member has no membership in a room.
	ErrNotMember = errors.New("not a room member")
)

// Member represents a chat member as seen by this service.
// Identity management lives elsewhere; only id and display name are kept.
type Member struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Room represents a chat room record.
type Room struct {
	ID            string // ULID
	Name          string
	AdminID       int64
	LastMessageID *int64 // nil until the first message is appended
	CreatedAt     time.Time
}

// RoomMember represents room membership. JoinedAt bounds message visibility:
// a member never observes messages sent before they joined.
type RoomMember struct {
	RoomID   string
	MemberID int64
	JoinedAt time.Time
}

// ReadCursor points at the newest message a member has read in a room.
// LastReadID is nil for a member who has read nothing yet.
type ReadCursor struct {
	RoomID     string
	MemberID   int64
	LastReadID *int64
}

// Message is a persisted chat message. Ids are minted by the caller and
// are strictly monotonic, so id order equals creation order.
type Message struct {
	ID       int64
	RoomID   string
	SenderID int64
	Content  string
	SentAt   time.Time
	Deleted  bool
	System   bool
}

// Direction selects which side of a cursor a page query fetches.
type Direction string

const (
	DirectionBefore Direction = "before"
	DirectionAfter  Direction = "after"
)

// MemberStore handles member persistence.
type MemberStore interface {
	// CreateMember creates a member record with the given display name.
	CreateMember(ctx context.Context, name string) (*Member, error)

	// GetMember retrieves a member by id.
	GetMember(ctx context.Context, id int64) (*Member, error)

	// ListMemberRooms returns ids of every room the member belongs to.
	ListMemberRooms(ctx context.Context, memberID int64) ([]string, error)
}

// RoomStore handles room and membership persistence.
type RoomStore interface {
	// CreateRoom creates a room with the creator as admin, sole member
	// and first read-cursor holder, all in one transaction.
	CreateRoom(ctx context.Context, id, name string, adminID int64) (*Room, error)

	// GetRoom retrieves a room by id.
	GetRoom(ctx context.Context, id string) (*Room, error)

	// RenameRoom updates the room name.
	RenameRoom(ctx context.Context, id, name string) error

	// SetAdmin transfers room administration to another member.
	SetAdmin(ctx context.Context, id string, memberID int64) error

	// DeleteRoom removes the room together with its memberships,
	// cursors and messages.
	DeleteRoom(ctx context.Context, id string) error

	// AddMember inserts a membership and seeds the member's read cursor
	// at seedReadID (the room's last message at invite time, or nil).
	AddMember(ctx context.Context, roomID string, memberID int64, seedReadID *int64) error

	// RemoveMember removes a membership and its read cursor.
	RemoveMember(ctx context.Context, roomID string, memberID int64) error

	// GetMembership returns the membership record, or ErrNotMember.
	GetMembership(ctx context.Context, roomID string, memberID int64) (*RoomMember, error)

	// ListMembers lists memberships of a room in join order.
	ListMembers(ctx context.Context, roomID string) ([]*RoomMember, error)
}

// MessageStore handles the append-only message log.
type MessageStore interface {
	// AppendMessage persists msg, updates the room's last message id and
	// advances the sender's read cursor to the new id, in one transaction.
	// Returns ErrNotFound if the room no longer exists.
	AppendMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message by id.
	GetMessage(ctx context.Context, id int64) (*Message, error)

	// MarkDeleted tombstones a message: content is replaced by
	// placeholder and the deleted flag is set. Idempotent; the id,
	// position and timestamp are preserved.
	MarkDeleted(ctx context.Context, id int64, placeholder string) error

	// ListPage fetches up to limit messages relative to cursorID,
	// restricted to sent_at >= visibleFrom. Results are ascending for
	// after and descending for before; callers re-reverse before pages.
	ListPage(ctx context.Context, roomID string, visibleFrom time.Time, cursorID *int64, dir Direction, limit int) ([]*Message, error)

	// SearchMessages returns keyword matches newest-first, restricted to
	// sent_at >= visibleFrom, and to id < beforeID when given.
	SearchMessages(ctx context.Context, roomID string, visibleFrom time.Time, keyword string, limit int, beforeID *int64) ([]*Message, error)
}

// CursorStore handles read cursor persistence.
type CursorStore interface {
	// AdvanceCursor moves the cursor forward to messageID, only if the
	// current value is nil or older. Returns true when it advanced.
	// Stale or duplicate ids are a silent no-op, never an error.
	AdvanceCursor(ctx context.Context, roomID string, memberID, messageID int64) (bool, error)

	// GetCursor returns the cursor for (room, member), or ErrNotMember.
	GetCursor(ctx context.Context, roomID string, memberID int64) (*ReadCursor, error)

	// ListCursors lists all read cursors of a room.
	ListCursors(ctx context.Context, roomID string) ([]*ReadCursor, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	MemberStore
	RoomStore
	MessageStore
	CursorStore

	// Close closes the underlying database connection.
	Close() error
}
