package storage

// Statements run one at a time; pgx's extended protocol rejects multiple
// commands in one Exec.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
	conversation_id  BIGINT PRIMARY KEY,
	user_a           TEXT NOT NULL,
	user_b           TEXT NOT NULL,
	last_message     TEXT NOT NULL DEFAULT '',
	last_activity_at TIMESTAMPTZ NOT NULL,
	max_seq          BIGINT NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL,
	UNIQUE (user_a, user_b),
	CHECK (user_a < user_b)
)`,
	`CREATE TABLE IF NOT EXISTS messages (
	message_id      BIGINT PRIMARY KEY,
	conversation_id BIGINT NOT NULL REFERENCES conversations (conversation_id) ON DELETE CASCADE,
	seq             BIGINT NOT NULL,
	sender_id       TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	UNIQUE (conversation_id, seq)
)`,
	`CREATE INDEX IF NOT EXISTS messages_history_idx
	ON messages (conversation_id, created_at DESC, seq DESC)`,
	`CREATE TABLE IF NOT EXISTS conversation_reads (
	conversation_id BIGINT NOT NULL REFERENCES conversations (conversation_id) ON DELETE CASCADE,
	user_id         TEXT NOT NULL,
	last_read_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (conversation_id, user_id)
)`,
	`CREATE INDEX IF NOT EXISTS conversations_user_a_idx ON conversations (user_a, last_activity_at DESC)`,
	`CREATE INDEX IF NOT EXISTS conversations_user_b_idx ON conversations (user_b, last_activity_at DESC)`,
}

const conversationColumns = `conversation_id, user_a, user_b, last_message, last_activity_at, max_seq, created_at`

// the no-op update makes RETURNING yield the existing row on conflict
const sqlCreateConversation = `
INSERT INTO conversations (conversation_id, user_a, user_b, last_activity_at, created_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (user_a, user_b) DO UPDATE SET user_a = EXCLUDED.user_a
RETURNING ` + conversationColumns

const sqlGetConversation = `SELECT ` + conversationColumns + ` FROM conversations WHERE conversation_id = $1`

const sqlBumpSeq = `
UPDATE conversations SET max_seq = max_seq + 1
WHERE conversation_id = $1
RETURNING max_seq, user_a, user_b`

const sqlInsertMessage = `
INSERT INTO messages (message_id, conversation_id, seq, sender_id, content, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

// sqlUpdateSummary never moves a summary backwards: an update older than the
// stored one matches no row. The second column tells that apart from a
// missing conversation.
const sqlUpdateSummary = `
WITH upd AS (
	UPDATE conversations SET last_message = $2, last_activity_at = $3
	WHERE conversation_id = $1 AND last_activity_at <= $3
	RETURNING conversation_id
)
SELECT EXISTS (SELECT 1 FROM upd),
       EXISTS (SELECT 1 FROM conversations WHERE conversation_id = $1)`

const sqlListMessages = `
SELECT message_id, conversation_id, seq, sender_id, content, created_at
FROM messages
WHERE conversation_id = $1 AND ($2::boolean OR (created_at, seq) < ($3::timestamptz, $4::bigint))
ORDER BY created_at DESC, seq DESC
LIMIT $5`

const sqlListConversations = `
SELECT c.conversation_id,
       CASE WHEN c.user_a = $1 THEN c.user_b ELSE c.user_a END,
       c.last_message,
       c.last_activity_at,
       EXISTS (
           SELECT 1 FROM messages m
           WHERE m.conversation_id = c.conversation_id
             AND m.sender_id <> $1
             AND m.created_at > COALESCE(r.last_read_at, '-infinity'::timestamptz)
       )
FROM conversations c
LEFT JOIN conversation_reads r ON r.conversation_id = c.conversation_id AND r.user_id = $1
WHERE c.user_a = $1 OR c.user_b = $1
ORDER BY c.last_activity_at DESC, c.conversation_id DESC`

const sqlMarkRead = `
INSERT INTO conversation_reads (conversation_id, user_id, last_read_at)
VALUES ($1, $2, $3)
ON CONFLICT (conversation_id, user_id)
DO UPDATE SET last_read_at = GREATEST(conversation_reads.last_read_at, EXCLUDED.last_read_at)`
