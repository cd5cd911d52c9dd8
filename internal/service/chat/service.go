package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jiye888/chat/internal/core"
	"github.com/jiye888/chat/internal/ids"
	"github.com/jiye888/chat/internal/metrics"
	"github.com/jiye888/chat/internal/store"
)

// DeletedPlaceholder replaces the content of tombstoned messages.
const DeletedPlaceholder = "This message has been deleted."

// Defaults applied when a caller passes a non-positive limit.
const (
	DefaultPageLimit   = 15
	DefaultSearchLimit = 20
	maxLimit           = 100
)

// contextWindowSize is the number of messages fetched on each side of a
// search match.
const contextWindowSize = 10

// systemSenderID marks messages synthesized by the service itself.
const systemSenderID = 0

// Page is one window of a room's message log.
type Page struct {
	Messages []*core.Message
	HasMore  bool
}

// ContextWindow surrounds one search match with its timeline neighbours.
type ContextWindow struct {
	Before []*core.Message
	Center *core.Message
	After  []*core.Message
}

// SearchResult is one page of search matches with their context windows.
type SearchResult struct {
	Matches []*ContextWindow
	HasMore bool
}

// MemberInfo is a room member as shown to other members.
type MemberInfo struct {
	ID   int64
	Name string
}

// MemberList is the membership view of a room.
type MemberList struct {
	Members []MemberInfo
	AdminID int64
}

// Service implements the message log, read tracking, pagination and
// search over a store.Store.
type Service struct {
	store store.Store
	ids   *ids.MessageID
	log   *zerolog.Logger
}

// New creates a chat service.
func New(st store.Store, gen *ids.MessageID, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		store: st,
		ids:   gen,
		log:   logger,
	}
}

// membership loads the caller's membership record, distinguishing a
// missing room from a missing membership.
func (s *Service) membership(ctx context.Context, roomID string, memberID int64) (*store.RoomMember, error) {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	rm, err := s.store.GetMembership(ctx, roomID, memberID)
	if err != nil {
		return nil, err
	}
	return rm, nil
}

// countUnread derives how many members have not read the message yet:
// every cursor that is nil or strictly older than the message id.
func countUnread(messageID int64, cursors []*store.ReadCursor) int {
	unread := 0
	for _, c := range cursors {
		if c.LastReadID == nil || *c.LastReadID < messageID {
			unread++
		}
	}
	return unread
}

func toCoreMessage(msg *store.Message, unread int) *core.Message {
	return &core.Message{
		ID:      msg.ID,
		Room:    msg.RoomID,
		Sender:  msg.SenderID,
		Content: msg.Content,
		SentAt:  msg.SentAt,
		Deleted: msg.Deleted,
		System:  msg.System,
		Unread:  unread,
	}
}

// Append persists a member's message and returns it with its initial
// unread count. The sender's own cursor advances as part of the append.
func (s *Service) Append(ctx context.Context, roomID string, senderID int64, content string) (*core.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, core.InvalidInput("message content is empty")
	}
	if _, err := s.membership(ctx, roomID, senderID); err != nil {
		return nil, err
	}

	msg := &store.Message{
		ID:       s.ids.Next(),
		RoomID:   roomID,
		SenderID: senderID,
		Content:  content,
		SentAt:   time.Now().UTC(),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	metrics.MessagesAppended.WithLabelValues("member").Inc()

	cursors, err := s.store.ListCursors(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}

	return toCoreMessage(msg, countUnread(msg.ID, cursors)), nil
}

// AppendSystem persists a system message (invite and leave notices).
// System messages participate in ordering, pagination and unread
// counting like ordinary messages.
func (s *Service) AppendSystem(ctx context.Context, roomID, content string) (*core.Message, error) {
	msg := &store.Message{
		ID:       s.ids.Next(),
		RoomID:   roomID,
		SenderID: systemSenderID,
		Content:  content,
		SentAt:   time.Now().UTC(),
		System:   true,
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append system message: %w", err)
	}
	metrics.MessagesAppended.WithLabelValues("system").Inc()

	cursors, err := s.store.ListCursors(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}

	return toCoreMessage(msg, countUnread(msg.ID, cursors)), nil
}

// AddRead advances the member's read cursor to messageID and returns the
// message's refreshed unread count. Advancing with a stale or duplicate
// id is a silent no-op: cursors never regress under out-of-order delivery.
func (s *Service) AddRead(ctx context.Context, roomID string, memberID, messageID int64) (int, error) {
	if _, err := s.membership(ctx, roomID, memberID); err != nil {
		return 0, err
	}

	advanced, err := s.store.AdvanceCursor(ctx, roomID, memberID, messageID)
	if err != nil {
		return 0, fmt.Errorf("advance cursor: %w", err)
	}
	if advanced {
		metrics.ReadAdvances.Inc()
	}

	cursors, err := s.store.ListCursors(ctx, roomID)
	if err != nil {
		return 0, fmt.Errorf("list cursors: %w", err)
	}
	return countUnread(messageID, cursors), nil
}

// ReadAll catches the member up to the room's last message. The cursor
// value from before the advance is returned together with the new bound,
// so open viewers can decrement unread counts for ids in (Prev, Last]
// without re-fetching.
func (s *Service) ReadAll(ctx context.Context, roomID string, memberID int64) (*core.ReadInterval, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetMembership(ctx, roomID, memberID); err != nil {
		return nil, err
	}

	cursor, err := s.store.GetCursor(ctx, roomID, memberID)
	if err != nil {
		return nil, err
	}
	prev := cursor.LastReadID

	if room.LastMessageID != nil {
		advanced, err := s.store.AdvanceCursor(ctx, roomID, memberID, *room.LastMessageID)
		if err != nil {
			return nil, fmt.Errorf("advance cursor: %w", err)
		}
		if advanced {
			metrics.ReadAdvances.Inc()
		}
	}

	return &core.ReadInterval{Prev: prev, Last: room.LastMessageID}, nil
}

// Delete tombstones a message. Only the sender or the room admin may
// delete; the id, position and timestamp are preserved.
func (s *Service) Delete(ctx context.Context, roomID string, memberID, messageID int64) error {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if _, err := s.store.GetMembership(ctx, roomID, memberID); err != nil {
		return err
	}

	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.RoomID != roomID {
		return core.NotFound("message not in this room")
	}
	if msg.SenderID != memberID && room.AdminID != memberID {
		return core.Forbidden("only the sender or admin may delete a message")
	}

	if err := s.store.MarkDeleted(ctx, messageID, DeletedPlaceholder); err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}
	return nil
}

// ListMemberIDs returns the member ids of a room.
func (s *Service) ListMemberIDs(ctx context.Context, roomID string) ([]int64, error) {
	members, err := s.store.ListMembers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	memberIDs := make([]int64, 0, len(members))
	for _, m := range members {
		memberIDs = append(memberIDs, m.MemberID)
	}
	return memberIDs, nil
}

// GetPage fetches one window of the room's log relative to cursorID.
// Messages sent before the member joined are never included. The first
// load (no cursor, before) implicitly advances the caller's read cursor
// to the newest fetched message: entering a room means being caught up.
func (s *Service) GetPage(ctx context.Context, roomID string, memberID int64, cursorID *int64, dir store.Direction, limit int) (*Page, error) {
	if dir != store.DirectionBefore && dir != store.DirectionAfter {
		return nil, core.InvalidInput("direction must be before or after")
	}
	limit = clampLimit(limit, DefaultPageLimit)

	rm, err := s.membership(ctx, roomID, memberID)
	if err != nil {
		return nil, err
	}

	fetched, err := s.store.ListPage(ctx, roomID, rm.JoinedAt, cursorID, dir, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list page: %w", err)
	}

	hasMore := len(fetched) > limit
	if hasMore {
		fetched = fetched[:limit]
	}
	if dir == store.DirectionBefore {
		reverse(fetched)
	}

	if cursorID == nil && dir == store.DirectionBefore && len(fetched) > 0 {
		newest := fetched[len(fetched)-1].ID
		advanced, err := s.store.AdvanceCursor(ctx, roomID, memberID, newest)
		if err != nil {
			return nil, fmt.Errorf("advance cursor: %w", err)
		}
		if advanced {
			metrics.ReadAdvances.Inc()
		}
	}

	cursors, err := s.store.ListCursors(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}

	page := &Page{
		Messages: make([]*core.Message, 0, len(fetched)),
		HasMore:  hasMore,
	}
	for _, msg := range fetched {
		page.Messages = append(page.Messages, toCoreMessage(msg, countUnread(msg.ID, cursors)))
	}
	return page, nil
}

// Search finds keyword matches newest-first and assembles one context
// window per match: up to contextWindowSize messages on each side,
// contiguous with the main timeline. A failure while building any window
// aborts the whole call rather than returning a partial result.
func (s *Service) Search(ctx context.Context, roomID string, memberID int64, keyword string, limit int, afterMatchID *int64) (*SearchResult, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, core.InvalidInput("search keyword is empty")
	}
	limit = clampLimit(limit, DefaultSearchLimit)

	rm, err := s.membership(ctx, roomID, memberID)
	if err != nil {
		return nil, err
	}
	metrics.SearchQueries.Inc()

	matches, err := s.store.SearchMessages(ctx, roomID, rm.JoinedAt, keyword, limit+1, afterMatchID)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}

	hasMore := len(matches) > limit
	if hasMore {
		matches = matches[:limit]
	}

	cursors, err := s.store.ListCursors(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}

	result := &SearchResult{
		Matches: make([]*ContextWindow, 0, len(matches)),
		HasMore: hasMore,
	}
	for _, match := range matches {
		window, err := s.buildWindow(ctx, roomID, rm.JoinedAt, match, cursors)
		if err != nil {
			return nil, err
		}
		result.Matches = append(result.Matches, window)
	}
	return result, nil
}

func (s *Service) buildWindow(ctx context.Context, roomID string, visibleFrom time.Time, match *store.Message, cursors []*store.ReadCursor) (*ContextWindow, error) {
	matchID := match.ID

	before, err := s.store.ListPage(ctx, roomID, visibleFrom, &matchID, store.DirectionBefore, contextWindowSize)
	if err != nil {
		return nil, fmt.Errorf("window before %d: %w", matchID, err)
	}
	reverse(before)

	after, err := s.store.ListPage(ctx, roomID, visibleFrom, &matchID, store.DirectionAfter, contextWindowSize)
	if err != nil {
		return nil, fmt.Errorf("window after %d: %w", matchID, err)
	}

	window := &ContextWindow{
		Before: make([]*core.Message, 0, len(before)),
		Center: toCoreMessage(match, countUnread(matchID, cursors)),
		After:  make([]*core.Message, 0, len(after)),
	}
	for _, msg := range before {
		window.Before = append(window.Before, toCoreMessage(msg, countUnread(msg.ID, cursors)))
	}
	for _, msg := range after {
		window.After = append(window.After, toCoreMessage(msg, countUnread(msg.ID, cursors)))
	}
	return window, nil
}

// GetMembers lists the room's members with display names and the admin.
func (s *Service) GetMembers(ctx context.Context, roomID string, memberID int64) (*MemberList, error) {
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

	list := &MemberList{
		Members: make([]MemberInfo, 0, len(members)),
		AdminID: room.AdminID,
	}
	for _, rm := range members {
		m, err := s.store.GetMember(ctx, rm.MemberID)
		if err != nil {
			return nil, fmt.Errorf("get member %d: %w", rm.MemberID, err)
		}
		list.Members = append(list.Members, MemberInfo{ID: m.ID, Name: m.Name})
	}
	return list, nil
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func reverse(msgs []*store.Message) {
	for i := 0; i < len(msgs)/2; i++ {
		msgs[i], msgs[len(msgs)-1-i] = msgs[len(msgs)-1-i], msgs[i]
	}
}

// Ensure Service satisfies the hub's view of the chat service.
var _ core.ChatService = (*Service)(nil)
