package chat

import (
	"sync"
)

type set map[string]struct{}

// Registry owns every live connection and maps each user to at most one of
// them. The user id is cached per connection at registration so removal on
// disconnect is a map lookup, not a scan.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]Conn   // conn_id -> conn, every attached connection
	byUser map[string]Conn   // user -> conn
	users  map[string]string // conn_id -> user
	rooms  map[string]set    // conversation -> conn_ids
	joined map[string]set    // conn_id -> conversations
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]Conn),
		byUser: make(map[string]Conn),
		users:  make(map[string]string),
		rooms:  make(map[string]set),
		joined: make(map[string]set),
	}
}

// Attach tracks a freshly opened connection that has no identity yet.
func (r *Registry) Attach(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID()] = c
}

// Register associates userID with c, replacing any existing association.
// The superseded connection (if any, and if different) is returned but not
// closed.
func (r *Registry) Register(userID string, c Conn) (prev Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := c.ID()
	r.conns[id] = c

	// the same socket re-announcing under another user drops its old mapping
	if old, ok := r.users[id]; ok && old != userID {
		if cur, ok := r.byUser[old]; ok && cur.ID() == id {
			delete(r.byUser, old)
		}
	}

	if cur, ok := r.byUser[userID]; ok && cur.ID() != id {
		prev = cur
	}
	r.byUser[userID] = c
	r.users[id] = userID
	return prev
}

// Has reports whether c is still attached.
func (r *Registry) Has(c Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[c.ID()]
	return ok
}

// Lookup returns the connection currently registered for userID.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[userID]
	return c, ok
}

// Remove forgets c entirely. It returns the user c was registered under and
// whether c was still that user's current entry; a connection superseded by
// a newer registration leaves the newer entry in place.
func (r *Registry) Remove(c Conn) (userID string, current bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := c.ID()
	delete(r.conns, id)
	for conv := range r.joined[id] {
		if members := r.rooms[conv]; members != nil {
			delete(members, id)
			if len(members) == 0 {
				delete(r.rooms, conv)
			}
		}
	}
	delete(r.joined, id)

	userID, ok := r.users[id]
	if !ok {
		return "", false
	}
	delete(r.users, id)
	if cur, ok := r.byUser[userID]; ok && cur.ID() == id {
		delete(r.byUser, userID)
		return userID, true
	}
	return userID, false
}

// UserOf returns the user a connection registered as.
func (r *Registry) UserOf(c Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[c.ID()]
	return u, ok
}

// Join subscribes an attached connection to conversation-scoped notices.
func (r *Registry) Join(c Conn, conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := c.ID()
	if _, ok := r.conns[id]; !ok {
		return false
	}
	if r.rooms[conversationID] == nil {
		r.rooms[conversationID] = make(set)
	}
	r.rooms[conversationID][id] = struct{}{}
	if r.joined[id] == nil {
		r.joined[id] = make(set)
	}
	r.joined[id][conversationID] = struct{}{}
	return true
}

// Members lists the connections that joined conversationID.
func (r *Registry) Members(conversationID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[conversationID]
	if len(members) == 0 {
		return nil
	}
	out := make([]Conn, 0, len(members))
	for id := range members {
		if c, ok := r.conns[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// All returns every attached connection, identified or not.
func (r *Registry) All() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
