package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventMessage delivers a full chat message to a room's viewers.
	EventMessage EventKind = iota
	// EventPreview delivers a lightweight new-message notice to a
	// member's personal channel, whatever room they are looking at.
	EventPreview
	// EventReadUpdated carries the refreshed unread count of one message.
	EventReadUpdated
	// EventReadAll announces that a member caught up on join, with the
	// interval other viewers use to decrement unread counts locally.
	EventReadAll
	// EventDeleted announces a message tombstone by id.
	EventDeleted
	// EventRoomDeleted announces that the room itself is gone.
	EventRoomDeleted
	// EventInviteNotice delivers the system messages of an invite.
	EventInviteNotice
	// EventLeaveNotice delivers the system message of a withdrawal.
	EventLeaveNotice
	// EventError notifies the requesting client about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind      EventKind
	Room      string
	Member    int64         // acting member, for EventReadAll
	Message   *Message      // for EventMessage
	Messages  []*Message    // for EventInviteNotice
	MessageID int64         // for EventReadUpdated / EventDeleted
	Unread    int           // for EventReadUpdated
	Interval  *ReadInterval // for EventReadAll
	Preview   string        // for EventPreview
	Error     *Error        // for EventError
}
