package core

// Client is a connected member as seen by the core layer. A member may
// hold several clients (one per open connection); each client views at
// most one room at a time.
type Client struct {
	ID       string // connection id
	MemberID int64
	Name     string
	Commands chan *Command
	Events   chan *Event

	// room is the client's current room; owned by the hub loop.
	room string

	// done is closed when the hub unregisters the client, stopping its
	// command pump.
	done chan struct{}
}

// NewClient constructs a client with initialized channels.
func NewClient(id string, memberID int64, name string) *Client {
	return &Client{
		ID:       id,
		MemberID: memberID,
		Name:     name,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 8),
		done:     make(chan struct{}),
	}
}
