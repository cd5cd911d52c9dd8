package core

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"
)

// stubChat is an in-memory ChatService good enough to drive the hub.
type stubChat struct {
	members map[string][]int64
	nextID  int64
}

func newStubChat() *stubChat {
	return &stubChat{members: make(map[string][]int64), nextID: 1000}
}

func (s *stubChat) Append(_ context.Context, roomID string, senderID int64, content string) (*Message, error) {
	if content == "" {
		return nil, InvalidInput("message content is empty")
	}
	s.nextID++
	return &Message{
		ID:      s.nextID,
		Room:    roomID,
		Sender:  senderID,
		Content: content,
		SentAt:  time.Now(),
		Unread:  1,
	}, nil
}

func (s *stubChat) AddRead(_ context.Context, roomID string, memberID, messageID int64) (int, error) {
	if _, ok := s.members[roomID]; !ok {
		return 0, NotFound("room not found")
	}
	return 0, nil
}

func (s *stubChat) ReadAll(_ context.Context, roomID string, memberID int64) (*ReadInterval, error) {
	if _, ok := s.members[roomID]; !ok {
		return nil, NotFound("room not found")
	}
	last := s.nextID
	return &ReadInterval{Last: &last}, nil
}

func (s *stubChat) Delete(_ context.Context, roomID string, memberID, messageID int64) error {
	if _, ok := s.members[roomID]; !ok {
		return NotFound("room not found")
	}
	return nil
}

func (s *stubChat) ListMemberIDs(_ context.Context, roomID string) ([]int64, error) {
	return s.members[roomID], nil
}

func runHub(t *testing.T, chat ChatService) *Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(chat, nil)
	go hub.Run(ctx)
	return hub
}

func TestHubJoinBroadcastsReadAll(t *testing.T) {
	chat := newStubChat()
	chat.members["general"] = []int64{1, 2}
	hub := runHub(t, chat)

	alice := NewClient("a", 1, "alice")
	bob := NewClient("b", 2, "bob")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "general"}
	mustEvent(t, alice.Events, EventReadAll)

	bob.Commands <- &Command{Kind: CommandJoinRoom, Room: "general"}

	// Alice, already viewing, hears that bob caught up.
	ev := mustEvent(t, alice.Events, EventReadAll)
	if ev.Member != 2 || ev.Room != "general" {
		t.Fatalf("unexpected read-all event: %+v", ev)
	}
	if ev.Interval == nil || ev.Interval.Last == nil {
		t.Fatalf("read-all event missing interval: %+v", ev)
	}
}

func TestHubSendFansOutToRoomAndPreviews(t *testing.T) {
	chat := newStubChat()
	chat.members["general"] = []int64{1, 2, 3}
	hub := runHub(t, chat)

	alice := NewClient("a", 1, "alice")
	bob := NewClient("b", 2, "bob")
	carol := NewClient("c", 3, "carol")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)
	hub.RegisterClient(carol)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "general"}
	bob.Commands <- &Command{Kind: CommandJoinRoom, Room: "general"}
	mustEvent(t, bob.Events, EventReadAll)

	// Carol stays out of the room: she is online but not viewing.
	alice.Commands <- &Command{Kind: CommandSendMessage, Room: "general", Content: "hi all"}

	msgEv := mustEvent(t, bob.Events, EventMessage)
	if msgEv.Message == nil || msgEv.Message.Content != "hi all" || msgEv.Message.Sender != 1 {
		t.Fatalf("unexpected message event: %+v", msgEv)
	}

	previewEv := mustEvent(t, carol.Events, EventPreview)
	if previewEv.Room != "general" || previewEv.Preview != "hi all" {
		t.Fatalf("unexpected preview event: %+v", previewEv)
	}
}

func TestHubPreviewSkipsSender(t *testing.T) {
	chat := newStubChat()
	chat.members["general"] = []int64{1, 2}
	hub := runHub(t, chat)

	alice := NewClient("a", 1, "alice")
	hub.RegisterClient(alice)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "general"}
	mustEvent(t, alice.Events, EventReadAll)

	alice.Commands <- &Command{Kind: CommandSendMessage, Room: "general", Content: "only me online"}
	mustEvent(t, alice.Events, EventMessage)

	// No preview should ever reach the sender's own connections.
	select {
	case ev := <-alice.Events:
		if ev.Kind == EventPreview {
			t.Fatalf("sender received own preview: %+v", ev)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubPreviewTruncatesLongContent(t *testing.T) {
	chat := newStubChat()
	chat.members["general"] = []int64{1, 2}
	hub := runHub(t, chat)

	alice := NewClient("a", 1, "alice")
	bob := NewClient("b", 2, "bob")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "general"}
	mustEvent(t, alice.Events, EventReadAll)

	long := ""
	for i := 0; i < 100; i++ {
		long += "x"
	}
	alice.Commands <- &Command{Kind: CommandSendMessage, Room: "general", Content: long}

	previewEv := mustEvent(t, bob.Events, EventPreview)
	if len([]rune(previewEv.Preview)) != previewRunes {
		t.Fatalf("preview length = %d runes, want %d", len([]rune(previewEv.Preview)), previewRunes)
	}
}

func TestHubJoinSwitchesRooms(t *testing.T) {
	chat := newStubChat()
	chat.members["one"] = []int64{1, 2}
	chat.members["two"] = []int64{1, 2}
	hub := runHub(t, chat)

	alice := NewClient("a", 1, "alice")
	bob := NewClient("b", 2, "bob")
	hub.RegisterClient(alice)
	hub.RegisterClient(bob)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "one"}
	bob.Commands <- &Command{Kind: CommandJoinRoom, Room: "one"}
	mustEvent(t, bob.Events, EventReadAll)

	// Joining another room implies leaving the first.
	bob.Commands <- &Command{Kind: CommandJoinRoom, Room: "two"}
	mustEvent(t, bob.Events, EventReadAll)

	alice.Commands <- &Command{Kind: CommandSendMessage, Room: "one", Content: "still here?"}

	// Bob is viewing room two now: full message must not arrive, only a
	// preview on his personal channel.
	deadline := time.After(300 * time.Millisecond)
	for {
		select {
		case ev := <-bob.Events:
			if ev.Kind == EventMessage {
				t.Fatalf("bob got room message after switching: %+v", ev)
			}
			if ev.Kind == EventPreview {
				return
			}
		case <-deadline:
			t.Fatal("expected preview for room one")
		}
	}
}

func TestHubLeaveWrongRoomProducesError(t *testing.T) {
	chat := newStubChat()
	chat.members["general"] = []int64{1}
	hub := runHub(t, chat)

	alice := NewClient("a", 1, "alice")
	hub.RegisterClient(alice)

	alice.Commands <- &Command{Kind: CommandLeaveRoom, Room: "ghost"}

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Kind != KindInvalidInput {
		t.Fatalf("expected invalid_input error, got %+v", ev)
	}
}

func TestHubJoinUnknownRoomProducesError(t *testing.T) {
	chat := newStubChat()
	hub := runHub(t, chat)

	alice := NewClient("a", 1, "alice")
	hub.RegisterClient(alice)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "ghost"}

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Kind != KindNotFound {
		t.Fatalf("expected not_found error, got %+v", ev)
	}
}

func TestHubUnregisterStopsCommandPump(t *testing.T) {
	chat := newStubChat()
	chat.members["general"] = []int64{1}
	hub := runHub(t, chat)

	baseline := runtime.NumGoroutine()

	const clients = 50
	all := make([]*Client, 0, clients)
	for i := 0; i < clients; i++ {
		c := NewClient(fmt.Sprintf("c%d", i), 1, "alice")
		hub.RegisterClient(c)
		all = append(all, c)
	}
	for _, c := range all {
		hub.UnregisterClient(c)
	}

	// Each registration spawns one pump goroutine; unregistering must
	// stop it even though the connection never closes its channel.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= baseline+2 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("goroutines = %d after disconnects, baseline %d", runtime.NumGoroutine(), baseline)
}

func TestHubRoomDeletedClearsViewers(t *testing.T) {
	chat := newStubChat()
	chat.members["general"] = []int64{1}
	hub := runHub(t, chat)

	alice := NewClient("a", 1, "alice")
	hub.RegisterClient(alice)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "general"}
	mustEvent(t, alice.Events, EventReadAll)

	hub.NotifyRoomDeleted("general")

	ev := mustEvent(t, alice.Events, EventRoomDeleted)
	if ev.Room != "general" {
		t.Fatalf("unexpected room-deleted event: %+v", ev)
	}

	// The viewer was detached: leaving again is now an error.
	alice.Commands <- &Command{Kind: CommandLeaveRoom, Room: "general"}
	errEv := mustEvent(t, alice.Events, EventError)
	if errEv.Error == nil || errEv.Error.Kind != KindInvalidInput {
		t.Fatalf("expected invalid_input error, got %+v", errEv)
	}
}
