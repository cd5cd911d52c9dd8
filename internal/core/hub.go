package core

import (
	"context"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/jiye888/chat/internal/metrics"
)

// previewRunes bounds the content excerpt carried by personal-channel
// preview notices.
const previewRunes = 40

type clientCommand struct {
	client *Client
	cmd    *Command
}

// Hub owns the realtime state: the per-room fanout sets and the
// member-to-connections registry used for personal-channel notices.
// All state is mutated only by the Run loop; the registry is in-memory
// and rebuilt from scratch on process restart.
type Hub struct {
	chat ChatService
	log  *zerolog.Logger

	register   chan *Client
	unregister chan *Client
	commands   chan clientCommand
	notices    chan *Event

	rooms  map[string]*Room
	online map[int64]map[*Client]struct{}
}

// NewHub creates a new chat hub instance.
func NewHub(chat ChatService, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		chat:       chat,
		log:        logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		commands:   make(chan clientCommand, 64),
		notices:    make(chan *Event, 16),
		rooms:      make(map[string]*Room),
		online:     make(map[int64]map[*Client]struct{}),
	}
}

// RegisterClient adds a connection to the hub.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
}

// UnregisterClient removes a connection, tearing down its room state.
func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

// NotifyInvite broadcasts the system messages of a successful invite to
// the room's current viewers.
func (h *Hub) NotifyInvite(roomID string, messages []*Message) {
	h.notices <- &Event{Kind: EventInviteNotice, Room: roomID, Messages: messages}
}

// NotifyLeave broadcasts the system message of a withdrawal.
func (h *Hub) NotifyLeave(roomID string, message *Message) {
	h.notices <- &Event{Kind: EventLeaveNotice, Room: roomID, Message: message}
}

// NotifyRoomDeleted tells viewers the room is gone and clears its fanout set.
func (h *Hub) NotifyRoomDeleted(roomID string) {
	h.notices <- &Event{Kind: EventRoomDeleted, Room: roomID}
}

// Run processes registrations, client commands and external notices
// until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.addClient(ctx, c)
		case c := <-h.unregister:
			h.removeClient(c)
		case cc := <-h.commands:
			h.handleCommand(ctx, cc.client, cc.cmd)
		case ev := <-h.notices:
			h.handleNotice(ev)
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) addClient(ctx context.Context, c *Client) {
	conns, ok := h.online[c.MemberID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.online[c.MemberID] = conns
	}
	conns[c] = struct{}{}

	// Pump the client's commands into the hub loop until the client is
	// unregistered or the hub stops.
	go func() {
		for {
			select {
			case cmd, ok := <-c.Commands:
				if !ok {
					return
				}
				select {
				case h.commands <- clientCommand{client: c, cmd: cmd}:
				case <-c.done:
					return
				case <-ctx.Done():
					return
				}
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	h.log.Debug().Str("client_id", c.ID).Int64("member_id", c.MemberID).Msg("client registered")
}

func (h *Hub) removeClient(c *Client) {
	h.leaveRoom(c)

	if conns, ok := h.online[c.MemberID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.online, c.MemberID)
		}
	}

	// Stop the command pump. Closed here rather than by the transport so
	// the pump never outlives the registration it belongs to.
	select {
	case <-c.done:
	default:
		close(c.done)
	}

	h.log.Debug().Str("client_id", c.ID).Int64("member_id", c.MemberID).Msg("client unregistered")
}

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandJoinRoom:
		h.handleJoin(ctx, c, cmd.Room)
	case CommandLeaveRoom:
		h.handleLeave(c, cmd.Room)
	case CommandSendMessage:
		h.handleSend(ctx, c, cmd.Room, cmd.Content)
	case CommandAddRead:
		h.handleAddRead(ctx, c, cmd.Room, cmd.MessageID)
	case CommandDeleteMessage:
		h.handleDelete(ctx, c, cmd.Room, cmd.MessageID)
	default:
		h.sendError(c, InvalidInput("unknown command"))
	}
}

func (h *Hub) handleJoin(ctx context.Context, c *Client, roomID string) {
	// One room per connection: entering a new room implies leaving the
	// previous one first.
	if c.room != "" && c.room != roomID {
		h.leaveRoom(c)
	}

	interval, err := h.chat.ReadAll(ctx, roomID, c.MemberID)
	if err != nil {
		h.sendError(c, WrapError(err))
		return
	}

	room, ok := h.rooms[roomID]
	if !ok {
		room = NewRoom(roomID)
		h.rooms[roomID] = room
	}
	room.AddClient(c)
	c.room = roomID

	// The whole room hears about the catch-up, not just the joiner, so
	// open viewers can decrement unread counts locally.
	h.broadcast(room, &Event{
		Kind:     EventReadAll,
		Room:     roomID,
		Member:   c.MemberID,
		Interval: interval,
	})
}

func (h *Hub) handleLeave(c *Client, roomID string) {
	if c.room != roomID {
		h.sendError(c, InvalidInput("not viewing this room"))
		return
	}
	h.leaveRoom(c)
}

func (h *Hub) handleSend(ctx context.Context, c *Client, roomID, content string) {
	msg, err := h.chat.Append(ctx, roomID, c.MemberID, content)
	if err != nil {
		h.sendError(c, WrapError(err))
		return
	}

	if room, ok := h.rooms[roomID]; ok {
		h.broadcast(room, &Event{Kind: EventMessage, Room: roomID, Message: msg})
	}

	// Preview notice to every other member's personal channel, whether
	// or not they are currently viewing this room.
	memberIDs, err := h.chat.ListMemberIDs(ctx, roomID)
	if err != nil {
		h.log.Warn().Err(err).Str("room_id", roomID).Msg("list members for preview")
		return
	}
	preview := truncate(content, previewRunes)
	for _, id := range memberIDs {
		if id == c.MemberID {
			continue
		}
		for conn := range h.online[id] {
			select {
			case conn.Events <- &Event{Kind: EventPreview, Room: roomID, Preview: preview}:
				metrics.EventsBroadcast.WithLabelValues("send-preview").Inc()
			default:
			}
		}
	}
}

func (h *Hub) handleAddRead(ctx context.Context, c *Client, roomID string, messageID int64) {
	unread, err := h.chat.AddRead(ctx, roomID, c.MemberID, messageID)
	if err != nil {
		h.sendError(c, WrapError(err))
		return
	}
	if room, ok := h.rooms[roomID]; ok {
		h.broadcast(room, &Event{Kind: EventReadUpdated, Room: roomID, MessageID: messageID, Unread: unread})
	}
}

func (h *Hub) handleDelete(ctx context.Context, c *Client, roomID string, messageID int64) {
	if err := h.chat.Delete(ctx, roomID, c.MemberID, messageID); err != nil {
		h.sendError(c, WrapError(err))
		return
	}
	if room, ok := h.rooms[roomID]; ok {
		h.broadcast(room, &Event{Kind: EventDeleted, Room: roomID, MessageID: messageID})
	}
}

func (h *Hub) handleNotice(ev *Event) {
	room, ok := h.rooms[ev.Room]
	if !ok {
		return
	}
	h.broadcast(room, ev)

	if ev.Kind == EventRoomDeleted {
		for client := range room.clients {
			client.room = ""
		}
		delete(h.rooms, ev.Room)
	}
}

func (h *Hub) leaveRoom(c *Client) {
	if c.room == "" {
		return
	}
	if room, ok := h.rooms[c.room]; ok {
		room.RemoveClient(c)
		if room.Empty() {
			delete(h.rooms, c.room)
		}
	}
	c.room = ""
}

func (h *Hub) broadcast(room *Room, ev *Event) {
	room.Broadcast(ev)
	metrics.EventsBroadcast.WithLabelValues(eventLabel(ev.Kind)).Inc()
}

func (h *Hub) sendError(c *Client, err *Error) {
	select {
	case c.Events <- &Event{Kind: EventError, Error: err}:
	default:
	}
}

func eventLabel(kind EventKind) string {
	switch kind {
	case EventMessage:
		return "send-message"
	case EventReadUpdated:
		return "update-read"
	case EventReadAll:
		return "update-read-all"
	case EventDeleted:
		return "update-deleted"
	case EventRoomDeleted:
		return "room-deleted"
	case EventInviteNotice:
		return "invite-notice"
	case EventLeaveNotice:
		return "leave-notice"
	default:
		return "other"
	}
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
