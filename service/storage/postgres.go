package storage

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"facegram/module/chat/model"
	errors "facegram/tools/errs"
	"facegram/tools/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the slice of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// NewPool connects to Postgres and checks the connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.WrapMsg(err, "parse database url")
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.WrapMsg(err, "connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.WrapMsg(err, "ping postgres")
	}
	return pool, nil
}

// PgStore is the relational persistence gateway: conversations, messages
// and read markers.
type PgStore struct {
	db  DB
	ids *ids.Generator
	now func() time.Time
}

func NewPgStore(db DB, gen *ids.Generator) *PgStore {
	return &PgStore{db: db, ids: gen, now: time.Now}
}

// Migrate creates the schema if it does not exist.
func (s *PgStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return errors.WrapMsg(err, "migrate", "stmt", firstLine(stmt))
		}
	}
	return nil
}

func (s *PgStore) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func parseConversationID(id string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, errors.ErrValidationFailed.WrapMsg("malformed conversation id", "id", id)
	}
	return n, nil
}

// CreateConversation returns the conversation between a and b, creating it
// when none exists.
func (s *PgStore) CreateConversation(ctx context.Context, a, b string) (*model.Conversation, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return nil, errors.ErrValidationFailed.WrapMsg("both participants are required")
	}
	if a == b {
		return nil, errors.ErrValidationFailed.WrapMsg("cannot start a conversation with yourself", "user", a)
	}
	ua, ub := model.OrderedPair(a, b)
	now := s.stamp()

	row := s.db.QueryRow(ctx, sqlCreateConversation, s.ids.Next(), ua, ub, now)
	conv, err := scanConversation(row)
	if err != nil {
		return nil, errors.WrapMsg(err, "create conversation", "a", ua, "b", ub)
	}
	return conv, nil
}

func (s *PgStore) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	id, err := parseConversationID(conversationID)
	if err != nil {
		return nil, err
	}
	conv, err := scanConversation(s.db.QueryRow(ctx, sqlGetConversation, id))
	if isNoRows(err) {
		return nil, errors.ErrNotFound.WrapMsg("conversation not found", "id", conversationID)
	}
	if err != nil {
		return nil, errors.WrapMsg(err, "get conversation", "id", conversationID)
	}
	return conv, nil
}

// CreateMessage stores one message. The conversation row is locked while
// its max_seq is bumped, so seq is gap-free and createdAt follows seq within
// a conversation.
func (s *PgStore) CreateMessage(ctx context.Context, conversationID, senderID, content string) (_ *model.Message, err error) {
	id, err := parseConversationID(conversationID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, errors.ErrValidationFailed.WrapMsg("content is required")
	}
	if strings.TrimSpace(senderID) == "" {
		return nil, errors.ErrValidationFailed.WrapMsg("sender is required")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, errors.WrapMsg(err, "begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var (
		seq          int64
		userA, userB string
	)
	err = tx.QueryRow(ctx, sqlBumpSeq, id).Scan(&seq, &userA, &userB)
	if isNoRows(err) {
		return nil, errors.ErrNotFound.WrapMsg("conversation not found", "id", conversationID)
	}
	if err != nil {
		return nil, errors.WrapMsg(err, "allocate seq", "conversation", conversationID)
	}
	if senderID != userA && senderID != userB {
		return nil, errors.ErrValidationFailed.WrapMsg("sender is not a participant", "sender", senderID)
	}

	msg := &model.Message{
		MessageID:      s.ids.NextString(),
		ConversationID: strconv.FormatInt(id, 10),
		Seq:            seq,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      s.stamp(),
	}
	messageID, _ := strconv.ParseInt(msg.MessageID, 10, 64)
	if _, err := tx.Exec(ctx, sqlInsertMessage, messageID, id, seq, senderID, content, msg.CreatedAt); err != nil {
		return nil, errors.WrapMsg(err, "insert message", "conversation", conversationID)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, errors.WrapMsg(err, "commit message", "conversation", conversationID)
	}
	return msg, nil
}

// UpdateConversationSummary is a separate statement from CreateMessage;
// callers treat its failure as a stale summary. A summary already newer than
// at is left alone, so concurrent sends cannot pair an older text with a newer
// timestamp.
func (s *PgStore) UpdateConversationSummary(ctx context.Context, conversationID, lastMessage string, at time.Time) error {
	id, err := parseConversationID(conversationID)
	if err != nil {
		return err
	}
	var updated, found bool
	if err := s.db.QueryRow(ctx, sqlUpdateSummary, id, lastMessage, at.UTC()).Scan(&updated, &found); err != nil {
		return errors.WrapMsg(err, "update summary", "conversation", conversationID)
	}
	if !found {
		return errors.ErrNotFound.WrapMsg("conversation not found", "id", conversationID)
	}
	return nil
}

// ListMessages returns up to limit messages older than before (all when nil),
// newest first.
func (s *PgStore) ListMessages(ctx context.Context, conversationID string, before *model.Cursor, limit int) ([]*model.Message, error) {
	id, err := parseConversationID(conversationID)
	if err != nil {
		return nil, err
	}
	var (
		beforeAt  time.Time
		beforeSeq int64
	)
	if before != nil {
		beforeAt, beforeSeq = before.CreatedAt.UTC(), before.Seq
	}

	rows, err := s.db.Query(ctx, sqlListMessages, id, before == nil, beforeAt, beforeSeq, model.ClampLimit(limit))
	if err != nil {
		return nil, errors.WrapMsg(err, "list messages", "conversation", conversationID)
	}
	defer rows.Close()

	out := make([]*model.Message, 0)
	for rows.Next() {
		var (
			m                 model.Message
			messageID, convID int64
		)
		if err := rows.Scan(&messageID, &convID, &m.Seq, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, errors.WrapMsg(err, "scan message")
		}
		m.MessageID = strconv.FormatInt(messageID, 10)
		m.ConversationID = strconv.FormatInt(convID, 10)
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapMsg(err, "list messages", "conversation", conversationID)
	}
	return out, nil
}

// ListConversations aggregates userID's conversations, most recent activity
// first. A conversation is unread when the peer wrote after userID's read
// marker.
func (s *PgStore) ListConversations(ctx context.Context, userID string) ([]*model.ConversationSummary, error) {
	rows, err := s.db.Query(ctx, sqlListConversations, userID)
	if err != nil {
		return nil, errors.WrapMsg(err, "list conversations", "user", userID)
	}
	defer rows.Close()

	out := make([]*model.ConversationSummary, 0)
	for rows.Next() {
		var (
			sum model.ConversationSummary
			id  int64
		)
		if err := rows.Scan(&id, &sum.PeerID, &sum.LastMessage, &sum.LastActivityAt, &sum.Unread); err != nil {
			return nil, errors.WrapMsg(err, "scan conversation")
		}
		sum.ConversationID = strconv.FormatInt(id, 10)
		out = append(out, &sum)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapMsg(err, "list conversations", "user", userID)
	}
	return out, nil
}

// MarkRead moves userID's read marker forward to at. It never moves back.
func (s *PgStore) MarkRead(ctx context.Context, conversationID, userID string, at time.Time) error {
	id, err := parseConversationID(conversationID)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, sqlMarkRead, id, userID, at.UTC()); err != nil {
		return errors.WrapMsg(err, "mark read", "conversation", conversationID, "user", userID)
	}
	return nil
}

func scanConversation(row pgx.Row) (*model.Conversation, error) {
	var (
		c            model.Conversation
		id           int64
		userA, userB string
	)
	if err := row.Scan(&id, &userA, &userB, &c.LastMessage, &c.LastActivityAt, &c.MaxSeq, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.ConversationID = strconv.FormatInt(id, 10)
	c.Participants = []string{userA, userB}
	return &c, nil
}

func isNoRows(err error) bool { return stderrors.Is(err, pgx.ErrNoRows) }

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
