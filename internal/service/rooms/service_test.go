package rooms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jiye888/chat/internal/core"
	"github.com/jiye888/chat/internal/ids"
	"github.com/jiye888/chat/internal/service/chat"
	"github.com/jiye888/chat/internal/store/sqlite"
)

type fixture struct {
	svc   *Service
	chat  *chat.Service
	store *sqlite.SQLiteStore
	alice int64
	bob   int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	alice, err := st.CreateMember(ctx, "alice")
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := st.CreateMember(ctx, "bob")
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}

	chatSvc := chat.New(st, ids.NewMessageID(), nil)
	return &fixture{
		svc:   New(st, chatSvc, nil),
		chat:  chatSvc,
		store: st,
		alice: alice.ID,
		bob:   bob.ID,
	}
}

func wantKind(t *testing.T, err error, kind core.ErrorKind) {
	t.Helper()

	var ce *core.Error
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want core.Error of kind %v", err, kind)
	}
	if ce.Kind != kind {
		t.Fatalf("error kind = %v (%s), want %v", ce.Kind, ce.Message, kind)
	}
}

func TestCreateMakesCreatorAdmin(t *testing.T) {
	f := newFixture(t)

	room, err := f.svc.Create(context.Background(), f.alice, "general")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if room.AdminID != f.alice {
		t.Fatalf("admin = %d, want %d", room.AdminID, f.alice)
	}
	if _, err := f.store.GetMembership(context.Background(), room.ID, f.alice); err != nil {
		t.Fatalf("creator not a member: %v", err)
	}
}

func TestInviteSeedsCursorAndAppendsNotices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, err := f.svc.Create(ctx, f.alice, "general")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	pre, err := f.chat.Append(ctx, room.ID, f.alice, "before bob")
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	messages, err := f.svc.Invite(ctx, room.ID, f.alice, []int64{f.bob})
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if len(messages) != 1 || !messages[0].System {
		t.Fatalf("expected one system message, got %+v", messages)
	}

	// Bob's cursor starts at the last message before the invite, so the
	// pre-invite history never counts as unread for him.
	cursor, err := f.store.GetCursor(ctx, room.ID, f.bob)
	if err != nil {
		t.Fatalf("get cursor: %v", err)
	}
	if cursor.LastReadID == nil || *cursor.LastReadID != pre.ID {
		t.Fatalf("seeded cursor = %v, want %d", cursor.LastReadID, pre.ID)
	}
}

func TestInviteOnlyExistingMembersConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, err := f.svc.Create(ctx, f.alice, "general")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Invite(ctx, room.ID, f.alice, []int64{f.bob}); err != nil {
		t.Fatalf("first invite: %v", err)
	}

	_, err = f.svc.Invite(ctx, room.ID, f.alice, []int64{f.bob})
	wantKind(t, err, core.KindConflict)
}

func TestInviteSkipsExistingMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, err := f.svc.Create(ctx, f.alice, "general")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	carol, err := f.store.CreateMember(ctx, "carol")
	if err != nil {
		t.Fatalf("create carol: %v", err)
	}

	// Alice is already in; only bob and carol are new.
	messages, err := f.svc.Invite(ctx, room.ID, f.alice, []int64{f.alice, f.bob, carol.ID})
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("system messages = %d, want 2", len(messages))
	}
}

func TestWithdrawSoleAdminBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, err := f.svc.Create(ctx, f.alice, "general")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Invite(ctx, room.ID, f.alice, []int64{f.bob}); err != nil {
		t.Fatalf("invite: %v", err)
	}

	_, err = f.svc.Withdraw(ctx, room.ID, f.alice)
	wantKind(t, err, core.KindConflict)
}

func TestWithdrawAppendsLeaveNotice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, err := f.svc.Create(ctx, f.alice, "general")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Invite(ctx, room.ID, f.alice, []int64{f.bob}); err != nil {
		t.Fatalf("invite: %v", err)
	}

	result, err := f.svc.Withdraw(ctx, room.ID, f.bob)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if result.RoomDeleted {
		t.Fatal("room deleted with a member remaining")
	}
	if result.SystemMessage == nil || !result.SystemMessage.System {
		t.Fatalf("expected leave notice, got %+v", result.SystemMessage)
	}

	if _, err := f.store.GetMembership(ctx, room.ID, f.bob); err == nil {
		t.Fatal("bob still a member after withdrawal")
	}
}

func TestWithdrawLastMemberDeletesRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, err := f.svc.Create(ctx, f.alice, "general")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := f.svc.Withdraw(ctx, room.ID, f.alice)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !result.RoomDeleted {
		t.Fatal("expected room deletion")
	}
	if _, err := f.store.GetRoom(ctx, room.ID); err == nil {
		t.Fatal("room still exists")
	}
}

func TestTransferAdminThenWithdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, err := f.svc.Create(ctx, f.alice, "general")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Invite(ctx, room.ID, f.alice, []int64{f.bob}); err != nil {
		t.Fatalf("invite: %v", err)
	}

	// Only the admin may delegate.
	err = f.svc.TransferAdmin(ctx, room.ID, f.bob, f.bob)
	wantKind(t, err, core.KindForbidden)

	if err := f.svc.TransferAdmin(ctx, room.ID, f.alice, f.bob); err != nil {
		t.Fatalf("transfer admin: %v", err)
	}

	if _, err := f.svc.Withdraw(ctx, room.ID, f.alice); err != nil {
		t.Fatalf("withdraw after transfer: %v", err)
	}
}

func TestRenameAndDeleteRequireAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room, err := f.svc.Create(ctx, f.alice, "general")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Invite(ctx, room.ID, f.alice, []int64{f.bob}); err != nil {
		t.Fatalf("invite: %v", err)
	}

	err = f.svc.Rename(ctx, room.ID, f.bob, "renamed")
	wantKind(t, err, core.KindForbidden)

	if err := f.svc.Rename(ctx, room.ID, f.alice, "renamed"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	got, err := f.store.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if got.Name != "renamed" {
		t.Fatalf("name = %q, want renamed", got.Name)
	}

	err = f.svc.Delete(ctx, room.ID, f.bob)
	wantKind(t, err, core.KindForbidden)

	if err := f.svc.Delete(ctx, room.ID, f.alice); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestListSummaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	quiet, err := f.svc.Create(ctx, f.alice, "quiet")
	if err != nil {
		t.Fatalf("create quiet: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	busy, err := f.svc.Create(ctx, f.alice, "busy")
	if err != nil {
		t.Fatalf("create busy: %v", err)
	}
	if _, err := f.svc.Invite(ctx, busy.ID, f.alice, []int64{f.bob}); err != nil {
		t.Fatalf("invite: %v", err)
	}
	msg, err := f.chat.Append(ctx, busy.ID, f.alice, "latest news")
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	summaries, err := f.svc.List(ctx, f.bob)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("bob rooms = %d, want 1", len(summaries))
	}
	if summaries[0].LastMessage != msg.Content || !summaries[0].Unread {
		t.Fatalf("bob summary wrong: %+v", summaries[0])
	}

	summaries, err = f.svc.List(ctx, f.alice)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("alice rooms = %d, want 2", len(summaries))
	}
	// Latest activity first.
	if summaries[0].ID != busy.ID || summaries[1].ID != quiet.ID {
		t.Fatalf("summary order wrong: %s then %s", summaries[0].ID, summaries[1].ID)
	}
	// Alice sent the last message herself, so nothing is unread for her.
	if summaries[0].Unread {
		t.Fatal("sender sees own message as unread")
	}
	if summaries[1].LastMessage != "" {
		t.Fatalf("quiet room preview = %q, want empty", summaries[1].LastMessage)
	}
}
