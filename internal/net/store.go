package net

import "github.com/l1jgo/gamefactory/internal/net/packet"

// SessionStore holds the connected sessions. Tick loop only.
type SessionStore struct {
	sessions map[uint64]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uint64]*Session)}
}

func (s *SessionStore) Add(sess *Session) {
	s.sessions[sess.ID] = sess
}

func (s *SessionStore) Remove(id uint64) {
	delete(s.sessions, id)
}

func (s *SessionStore) Get(id uint64) *Session {
	return s.sessions[id]
}

func (s *SessionStore) Len() int {
	return len(s.sessions)
}

// Raw exposes the map for loops that remove while iterating.
func (s *SessionStore) Raw() map[uint64]*Session {
	return s.sessions
}

func (s *SessionStore) ForEach(fn func(*Session)) {
	for _, sess := range s.sessions {
		fn(sess)
	}
}

// Ready calls fn for every open session that has completed HELLO.
func (s *SessionStore) Ready(fn func(*Session)) {
	for _, sess := range s.sessions {
		if !sess.IsClosed() && sess.State() == packet.StateReady {
			fn(sess)
		}
	}
}
