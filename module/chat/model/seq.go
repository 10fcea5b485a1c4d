package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// ClampLimit bounds a requested page size to [1, MaxPageSize]; zero or
// negative means the default.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}

// Cursor marks a position in a conversation's history. Pages run newest
// first; a page fetched with a cursor holds only messages strictly older
// than it, ordered by (CreatedAt, Seq).
type Cursor struct {
	CreatedAt time.Time
	Seq       int64
}

func CursorOf(m *Message) *Cursor {
	return &Cursor{CreatedAt: m.CreatedAt, Seq: m.Seq}
}

// String encodes the cursor as "<unix micros>.<seq>".
func (c *Cursor) String() string {
	return fmt.Sprintf("%d.%d", c.CreatedAt.UnixMicro(), c.Seq)
}

func ParseCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	ts, seq, ok := strings.Cut(s, ".")
	if !ok {
		return nil, fmt.Errorf("malformed cursor %q", s)
	}
	micros, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed cursor time %q: %w", s, err)
	}
	n, err := strconv.ParseInt(seq, 10, 64)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("malformed cursor seq %q", s)
	}
	return &Cursor{CreatedAt: time.UnixMicro(micros).UTC(), Seq: n}, nil
}

// MessagePage is one page of history plus the cursor for the next (older)
// page, absent when the history is exhausted.
type MessagePage struct {
	Messages   []*Message `json:"messages"`
	NextBefore string     `json:"nextBefore,omitempty"`
}
