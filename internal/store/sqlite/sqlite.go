package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jiye888/chat/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file (":memory:" for tests).
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS members (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS rooms (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		admin_id        INTEGER NOT NULL,
		last_message_id INTEGER,
		created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS room_members (
		room_id   TEXT NOT NULL,
		member_id INTEGER NOT NULL,
		joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (room_id, member_id)
	);

	CREATE TABLE IF NOT EXISTS read_cursors (
		room_id      TEXT NOT NULL,
		member_id    INTEGER NOT NULL,
		last_read_id INTEGER,
		PRIMARY KEY (room_id, member_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id        INTEGER PRIMARY KEY,
		room_id   TEXT NOT NULL,
		sender_id INTEGER NOT NULL,
		content   TEXT NOT NULL,
		sent_at   DATETIME NOT NULL,
		deleted   BOOLEAN NOT NULL DEFAULT 0,
		system    BOOLEAN NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_messages_room_id ON messages(room_id, id);
	CREATE INDEX IF NOT EXISTS idx_room_members_member ON room_members(member_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== MemberStore implementation ====

// CreateMember creates a member record with the given display name.
func (s *SQLiteStore) CreateMember(ctx context.Context, name string) (*store.Member, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO members (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetMember(ctx, id)
}

// GetMember retrieves a member by id.
func (s *SQLiteStore) GetMember(ctx context.Context, id int64) (*store.Member, error) {
	query := `SELECT id, name, created_at FROM members WHERE id = ?`

	var m store.Member
	err := s.db.QueryRowContext(ctx, query, id).Scan(&m.ID, &m.Name, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("member %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query member: %w", err)
	}

	return &m, nil
}

// ListMemberRooms returns ids of every room the member belongs to.
func (s *SQLiteStore) ListMemberRooms(ctx context.Context, memberID int64) ([]string, error) {
	query := `
		SELECT room_id FROM room_members
		WHERE member_id = ?
		ORDER BY joined_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, fmt.Errorf("query member rooms: %w", err)
	}
	defer rows.Close()

	var roomIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan room id: %w", err)
		}
		roomIDs = append(roomIDs, id)
	}

	return roomIDs, rows.Err()
}

// ==== RoomStore implementation ====

// CreateRoom creates a room with the creator as admin, sole member and
// first read-cursor holder.
func (s *SQLiteStore) CreateRoom(ctx context.Context, id, name string, adminID int64) (*store.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rooms (id, name, admin_id, last_message_id, created_at) VALUES (?, ?, ?, NULL, ?)`,
		id, name, adminID, now); err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO room_members (room_id, member_id, joined_at) VALUES (?, ?, ?)`,
		id, adminID, now); err != nil {
		return nil, fmt.Errorf("insert admin membership: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO read_cursors (room_id, member_id, last_read_id) VALUES (?, ?, NULL)`,
		id, adminID); err != nil {
		return nil, fmt.Errorf("insert admin cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetRoom(ctx, id)
}

// GetRoom retrieves a room by id.
func (s *SQLiteStore) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	query := `
		SELECT id, name, admin_id, last_message_id, created_at
		FROM rooms
		WHERE id = ?
	`
	var room store.Room
	var lastMessageID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&room.ID,
		&room.Name,
		&room.AdminID,
		&lastMessageID,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}

	if lastMessageID.Valid {
		room.LastMessageID = &lastMessageID.Int64
	}

	return &room, nil
}

// RenameRoom updates the room name.
func (s *SQLiteStore) RenameRoom(ctx context.Context, id, name string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE rooms SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("update room name: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("room %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// SetAdmin transfers room administration to another member.
func (s *SQLiteStore) SetAdmin(ctx context.Context, id string, memberID int64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE rooms SET admin_id = ? WHERE id = ?`, memberID, id)
	if err != nil {
		return fmt.Errorf("update room admin: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("room %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// DeleteRoom removes the room together with its memberships, cursors and messages.
func (s *SQLiteStore) DeleteRoom(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE room_id = ?`, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM read_cursors WHERE room_id = ?`, id); err != nil {
		return fmt.Errorf("delete cursors: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM room_members WHERE room_id = ?`, id); err != nil {
		return fmt.Errorf("delete memberships: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("room %s: %w", id, store.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// AddMember inserts a membership and seeds the member's read cursor.
func (s *SQLiteStore) AddMember(ctx context.Context, roomID string, memberID int64, seedReadID *int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO room_members (room_id, member_id, joined_at) VALUES (?, ?, ?)`,
		roomID, memberID, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}

	var seed sql.NullInt64
	if seedReadID != nil {
		seed = sql.NullInt64{Int64: *seedReadID, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO read_cursors (room_id, member_id, last_read_id) VALUES (?, ?, ?)`,
		roomID, memberID, seed); err != nil {
		return fmt.Errorf("insert cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RemoveMember removes a membership and its read cursor.
func (s *SQLiteStore) RemoveMember(ctx context.Context, roomID string, memberID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM read_cursors WHERE room_id = ? AND member_id = ?`, roomID, memberID); err != nil {
		return fmt.Errorf("delete cursor: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM room_members WHERE room_id = ? AND member_id = ?`, roomID, memberID); err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetMembership returns the membership record, or store.ErrNotMember.
func (s *SQLiteStore) GetMembership(ctx context.Context, roomID string, memberID int64) (*store.RoomMember, error) {
	query := `
		SELECT room_id, member_id, joined_at FROM room_members
		WHERE room_id = ? AND member_id = ?
	`
	var rm store.RoomMember
	err := s.db.QueryRowContext(ctx, query, roomID, memberID).Scan(&rm.RoomID, &rm.MemberID, &rm.JoinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotMember
		}
		return nil, fmt.Errorf("query membership: %w", err)
	}
	return &rm, nil
}

// ListMembers lists memberships of a room in join order.
func (s *SQLiteStore) ListMembers(ctx context.Context, roomID string) ([]*store.RoomMember, error) {
	query := `
		SELECT room_id, member_id, joined_at FROM room_members
		WHERE room_id = ?
		ORDER BY joined_at ASC, member_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []*store.RoomMember
	for rows.Next() {
		var rm store.RoomMember
		if err := rows.Scan(&rm.RoomID, &rm.MemberID, &rm.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		members = append(members, &rm)
	}

	return members, rows.Err()
}

// ==== MessageStore implementation ====

// AppendMessage persists msg, updates the room's last message id and
// advances the sender's read cursor to the new id.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE id = ?`, msg.RoomID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("room %s: %w", msg.RoomID, store.ErrNotFound)
		}
		return fmt.Errorf("query room: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, room_id, sender_id, content, sent_at, deleted, system)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.RoomID, msg.SenderID, msg.Content, msg.SentAt, msg.Deleted, msg.System); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE rooms SET last_message_id = ? WHERE id = ?`, msg.ID, msg.RoomID); err != nil {
		return fmt.Errorf("update last message: %w", err)
	}

	// Sending implies having read your own message. Conditional so a
	// concurrent newer advance is never overwritten; system senders
	// have no cursor row and are skipped naturally.
	if _, err := tx.ExecContext(ctx,
		`UPDATE read_cursors SET last_read_id = ?
		 WHERE room_id = ? AND member_id = ?
		   AND (last_read_id IS NULL OR last_read_id < ?)`,
		msg.ID, msg.RoomID, msg.SenderID, msg.ID); err != nil {
		return fmt.Errorf("advance sender cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by id.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*store.Message, error) {
	query := `
		SELECT id, room_id, sender_id, content, sent_at, deleted, system
		FROM messages
		WHERE id = ?
	`
	var msg store.Message
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Content, &msg.SentAt, &msg.Deleted, &msg.System,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	return &msg, nil
}

// MarkDeleted tombstones a message. Idempotent.
func (s *SQLiteStore) MarkDeleted(ctx context.Context, id int64, placeholder string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = ?, deleted = 1 WHERE id = ?`, placeholder, id)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("message %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// ListPage fetches up to limit messages relative to cursorID.
func (s *SQLiteStore) ListPage(ctx context.Context, roomID string, visibleFrom time.Time, cursorID *int64, dir store.Direction, limit int) ([]*store.Message, error) {
	var b strings.Builder
	b.WriteString(`
		SELECT id, room_id, sender_id, content, sent_at, deleted, system
		FROM messages
		WHERE room_id = ? AND sent_at >= ?
	`)
	args := []interface{}{roomID, visibleFrom}

	if cursorID != nil {
		if dir == store.DirectionBefore {
			b.WriteString(` AND id < ?`)
		} else {
			b.WriteString(` AND id > ?`)
		}
		args = append(args, *cursorID)
	}

	if dir == store.DirectionBefore {
		b.WriteString(` ORDER BY id DESC LIMIT ?`)
	} else {
		b.WriteString(` ORDER BY id ASC LIMIT ?`)
	}
	args = append(args, limit)

	return s.queryMessages(ctx, b.String(), args...)
}

// SearchMessages returns keyword matches newest-first.
func (s *SQLiteStore) SearchMessages(ctx context.Context, roomID string, visibleFrom time.Time, keyword string, limit int, beforeID *int64) ([]*store.Message, error) {
	var b strings.Builder
	b.WriteString(`
		SELECT id, room_id, sender_id, content, sent_at, deleted, system
		FROM messages
		WHERE room_id = ? AND sent_at >= ? AND content LIKE ? ESCAPE '\'
	`)
	args := []interface{}{roomID, visibleFrom, "%" + escapeLike(keyword) + "%"}

	if beforeID != nil {
		b.WriteString(` AND id < ?`)
		args = append(args, *beforeID)
	}

	b.WriteString(` ORDER BY id DESC LIMIT ?`)
	args = append(args, limit)

	return s.queryMessages(ctx, b.String(), args...)
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...interface{}) ([]*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Content, &msg.SentAt, &msg.Deleted, &msg.System); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// escapeLike escapes LIKE metacharacters so keywords match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ==== CursorStore implementation ====

// AdvanceCursor moves the cursor forward to messageID if it is newer.
func (s *SQLiteStore) AdvanceCursor(ctx context.Context, roomID string, memberID, messageID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE read_cursors SET last_read_id = ?
		 WHERE room_id = ? AND member_id = ?
		   AND (last_read_id IS NULL OR last_read_id < ?)`,
		messageID, roomID, memberID, messageID)
	if err != nil {
		return false, fmt.Errorf("advance cursor: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows > 0, nil
}

// GetCursor returns the cursor for (room, member).
func (s *SQLiteStore) GetCursor(ctx context.Context, roomID string, memberID int64) (*store.ReadCursor, error) {
	query := `
		SELECT room_id, member_id, last_read_id FROM read_cursors
		WHERE room_id = ? AND member_id = ?
	`
	var c store.ReadCursor
	var lastRead sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, roomID, memberID).Scan(&c.RoomID, &c.MemberID, &lastRead)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotMember
		}
		return nil, fmt.Errorf("query cursor: %w", err)
	}
	if lastRead.Valid {
		c.LastReadID = &lastRead.Int64
	}
	return &c, nil
}

// ListCursors lists all read cursors of a room.
func (s *SQLiteStore) ListCursors(ctx context.Context, roomID string) ([]*store.ReadCursor, error) {
	query := `
		SELECT room_id, member_id, last_read_id FROM read_cursors
		WHERE room_id = ?
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query cursors: %w", err)
	}
	defer rows.Close()

	var cursors []*store.ReadCursor
	for rows.Next() {
		var c store.ReadCursor
		var lastRead sql.NullInt64
		if err := rows.Scan(&c.RoomID, &c.MemberID, &lastRead); err != nil {
			return nil, fmt.Errorf("scan cursor: %w", err)
		}
		if lastRead.Valid {
			c.LastReadID = &lastRead.Int64
		}
		cursors = append(cursors, &c)
	}

	return cursors, rows.Err()
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
