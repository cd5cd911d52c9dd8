package rooms

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/jiye888/chat/internal/core"
	"github.com/jiye888/chat/internal/ids"
	"github.com/jiye888/chat/internal/service/chat"
	"github.com/jiye888/chat/internal/store"
)

// Service provides room membership administration. Successful
// membership changes synthesize system messages into the room's log so
// the realtime layer can broadcast them.
type Service struct {
	store store.Store
	chat  *chat.Service
	log   *zerolog.Logger
}

// New creates a rooms service.
func New(st store.Store, chatSvc *chat.Service, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		store: st,
		chat:  chatSvc,
		log:   logger,
	}
}

// WithdrawResult reports what a withdrawal did to the room.
type WithdrawResult struct {
	// RoomDeleted is true when the last member left and the room was
	// destroyed.
	RoomDeleted bool
	// SystemMessage is the leave notice appended to the log, nil when
	// the room was deleted instead.
	SystemMessage *core.Message
}

// Summary is one entry of a member's room list.
type Summary struct {
	ID          string
	Name        string
	AdminID     int64
	LastMessage string
	Unread      bool
	sortKey     time.Time
}

// Create makes a new room; the creator becomes admin and the first
// read-cursor holder.
func (s *Service) Create(ctx context.Context, memberID int64, name string) (*store.Room, error) {
	if name == "" {
		return nil, core.InvalidInput("room name is required")
	}
	if _, err := s.store.GetMember(ctx, memberID); err != nil {
		return nil, err
	}

	room, err := s.store.CreateRoom(ctx, ids.NewRoomID(), name, memberID)
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	s.log.Info().Str("room_id", room.ID).Int64("admin_id", memberID).Msg("room created")
	return room, nil
}

// Invite adds members to a room. Each invitee's read cursor is seeded at
// the room's current last message, so history from before the invite
// never counts as unread for them. One system message is appended per
// new member; the messages are returned for broadcast.
func (s *Service) Invite(ctx context.Context, roomID string, inviterID int64, inviteeIDs []int64) ([]*core.Message, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetMembership(ctx, roomID, inviterID); err != nil {
		return nil, err
	}
	if len(inviteeIDs) == 0 {
		return nil, core.InvalidInput("no members to invite")
	}

	var newMembers []*store.Member
	for _, id := range inviteeIDs {
		if _, err := s.store.GetMembership(ctx, roomID, id); err == nil {
			continue // already a member
		}
		m, err := s.store.GetMember(ctx, id)
		if err != nil {
			return nil, err
		}
		newMembers = append(newMembers, m)
	}
	if len(newMembers) == 0 {
		return nil, core.Conflict("all invitees are already members")
	}

	var systemMessages []*core.Message
	for _, m := range newMembers {
		if err := s.store.AddMember(ctx, roomID, m.ID, room.LastMessageID); err != nil {
			return nil, fmt.Errorf("add member %d: %w", m.ID, err)
		}
		msg, err := s.chat.AppendSystem(ctx, roomID, fmt.Sprintf("%s joined the room.", m.Name))
		if err != nil {
			return nil, err
		}
		systemMessages = append(systemMessages, msg)
	}

	s.log.Info().Str("room_id", roomID).Int("invited", len(newMembers)).Msg("members invited")
	return systemMessages, nil
}

// Withdraw permanently removes a member from a room. The sole admin
// cannot leave while other members remain; the last member leaving
// destroys the room.
func (s *Service) Withdraw(ctx context.Context, roomID string, memberID int64) (*WithdrawResult, error) {
	member, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetMembership(ctx, roomID, memberID); err != nil {
		return nil, err
	}

	members, err := s.store.ListMembers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if memberID == room.AdminID && len(members) > 1 {
		return nil, core.Conflict("transfer admin before leaving the room")
	}

	if err := s.store.RemoveMember(ctx, roomID, memberID); err != nil {
		return nil, fmt.Errorf("remove member: %w", err)
	}

	if len(members) == 1 {
		if err := s.store.DeleteRoom(ctx, roomID); err != nil {
			return nil, fmt.Errorf("delete empty room: %w", err)
		}
		s.log.Info().Str("room_id", roomID).Msg("room deleted with last member")
		return &WithdrawResult{RoomDeleted: true}, nil
	}

	msg, err := s.chat.AppendSystem(ctx, roomID, fmt.Sprintf("%s left the room.", member.Name))
	if err != nil {
		return nil, err
	}
	return &WithdrawResult{SystemMessage: msg}, nil
}

// TransferAdmin delegates room administration to another member.
func (s *Service) TransferAdmin(ctx context.Context, roomID string, fromID, toID int64) error {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.AdminID != fromID {
		return core.Forbidden("only the admin may delegate administration")
	}
	if _, err := s.store.GetMembership(ctx, roomID, toID); err != nil {
		return err
	}
	if err := s.store.SetAdmin(ctx, roomID, toID); err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	return nil
}

// Rename changes the room name. Admin only.
func (s *Service) Rename(ctx context.Context, roomID string, memberID int64, name string) error {
	if name == "" {
		return core.InvalidInput("room name is required")
	}
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.AdminID != memberID {
		return core.Forbidden("only the admin may rename the room")
	}
	if err := s.store.RenameRoom(ctx, roomID, name); err != nil {
		return fmt.Errorf("rename room: %w", err)
	}
	return nil
}

// Delete destroys the room and all of its state. Admin only.
func (s *Service) Delete(ctx context.Context, roomID string, memberID int64) error {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.AdminID != memberID {
		return core.Forbidden("only the admin may delete the room")
	}
	if err := s.store.DeleteRoom(ctx, roomID); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	s.log.Info().Str("room_id", roomID).Int64("admin_id", memberID).Msg("room deleted")
	return nil
}

// List returns the member's rooms sorted by latest activity, each with a
// last-message preview and an unread flag. Messages from before the
// member joined never surface here.
func (s *Service) List(ctx context.Context, memberID int64) ([]*Summary, error) {
	roomIDs, err := s.store.ListMemberRooms(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("list member rooms: %w", err)
	}

	summaries := make([]*Summary, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		room, err := s.store.GetRoom(ctx, roomID)
		if err != nil {
			return nil, err
		}
		rm, err := s.store.GetMembership(ctx, roomID, memberID)
		if err != nil {
			return nil, err
		}

		summary := &Summary{
			ID:      room.ID,
			Name:    room.Name,
			AdminID: room.AdminID,
			sortKey: rm.JoinedAt,
		}

		if room.LastMessageID != nil {
			last, err := s.store.GetMessage(ctx, *room.LastMessageID)
			if err != nil {
				return nil, err
			}
			if !last.SentAt.Before(rm.JoinedAt) {
				cursor, err := s.store.GetCursor(ctx, roomID, memberID)
				if err != nil {
					return nil, err
				}
				summary.LastMessage = last.Content
				summary.Unread = cursor.LastReadID == nil || *cursor.LastReadID < last.ID
				summary.sortKey = last.SentAt
			}
		}

		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].sortKey.After(summaries[j].sortKey)
	})
	return summaries, nil
}
