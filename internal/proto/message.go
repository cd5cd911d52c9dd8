package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoin    = "join-room"
	InboundTypeLeave   = "leave-room"
	InboundTypeSave    = "save-message"
	InboundTypeAddRead = "add-read"
	InboundTypeDelete  = "delete-message"

	OutboundTypeMessage     = "send-message"
	OutboundTypePreview     = "send-preview"
	OutboundTypeReadUpdated = "update-read"
	OutboundTypeReadAll     = "update-read-all"
	OutboundTypeDeleted     = "update-deleted"
	OutboundTypeRoomDeleted = "room-deleted"
	OutboundTypeInvite      = "invite-notice"
	OutboundTypeLeaveNotice = "leave-notice"
	OutboundTypeError       = "error"
)

// JoinData requests to start or stop viewing a room.
type JoinData struct {
	Room string `json:"room"`
}

// SaveData is a chat message from the client.
type SaveData struct {
	Room    string `json:"room"`
	Content string `json:"content"`
}

// AddReadData marks a single message as read.
type AddReadData struct {
	Room      string `json:"room"`
	MessageID int64  `json:"message_id"`
}

// DeleteData asks to tombstone a message.
type DeleteData struct {
	Room      string `json:"room"`
	MessageID int64  `json:"message_id"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// ChatMessage is the wire form of a log entry.
type ChatMessage struct {
	ID      int64  `json:"id"`
	Room    string `json:"room"`
	Sender  int64  `json:"sender"`
	Content string `json:"content"`
	TS      int64  `json:"ts"`
	Deleted bool   `json:"deleted,omitempty"`
	System  bool   `json:"system,omitempty"`
	Unread  int    `json:"unread"`
}

// PreviewData is a personal-channel notice about activity in a room the
// recipient is not currently viewing.
type PreviewData struct {
	Room    string `json:"room"`
	Preview string `json:"preview"`
}

// ReadUpdatedData carries the refreshed unread count of one message.
type ReadUpdatedData struct {
	Room      string `json:"room"`
	MessageID int64  `json:"message_id"`
	Unread    int    `json:"unread"`
}

// ReadAllData describes the interval a member caught up over when
// entering a room.
type ReadAllData struct {
	Room       string `json:"room"`
	Member     int64  `json:"member"`
	PrevReadID *int64 `json:"prev_read_id"`
	LastReadID *int64 `json:"last_read_id"`
}

// DeletedData announces a message tombstone.
type DeletedData struct {
	Room      string `json:"room"`
	MessageID int64  `json:"message_id"`
}

// RoomDeletedData tells viewers their room is gone.
type RoomDeletedData struct {
	Room string `json:"room"`
}

// NoticeData carries membership-change system messages.
type NoticeData struct {
	Room     string        `json:"room"`
	Messages []ChatMessage `json:"messages"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
