package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom subscribes the connection to a room's live view.
	CommandJoinRoom CommandKind = iota
	// CommandLeaveRoom unsubscribes the connection from its room.
	CommandLeaveRoom
	// CommandSendMessage appends a chat message and fans it out.
	CommandSendMessage
	// CommandAddRead advances the member's read cursor to a message.
	CommandAddRead
	// CommandDeleteMessage tombstones a message.
	CommandDeleteMessage
)

// Command represents an action requested by a client connection.
type Command struct {
	Kind      CommandKind
	Room      string
	Content   string
	MessageID int64
}
