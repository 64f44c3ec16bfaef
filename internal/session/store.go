// Package session owns the process-wide map from session identifier to
// mailbox connection. It is the only shared mutable state in the
// server; all access goes through the mutex-guarded Store.
package session

import (
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Session associates an opaque identifier with one established mailbox
// connection. Sessions never expire on their own: they exist from a
// successful connect until an explicit logout or process shutdown.
type Session struct {
	ID        string
	CreatedAt time.Time

	// conn may be nil: the connection used to verify credentials is
	// closed right after connect, and every fetch opens a fresh one.
	// The field stays here so a future implementation can switch to
	// genuine per-session connection reuse.
	conn io.Closer
}

// Store is a concurrency-safe session registry.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	lastID   int64
	logger   *slog.Logger
}

// NewStore creates an empty Store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Create registers a new session and returns its identifier, a
// monotonically-derived token: unix milliseconds, bumped past the
// previous id so concurrent creates always get distinct, ordered
// tokens.
func (s *Store) Create(conn io.Closer) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := time.Now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id

	token := strconv.FormatInt(id, 10)
	s.sessions[token] = &Session{
		ID:        token,
		CreatedAt: time.Now(),
		conn:      conn,
	}

	s.logger.Info("session created", "session", token, "active", len(s.sessions))
	return token
}

// Exists reports whether the identifier names an active session. It is
// an existence check only and does not validate connection liveness.
func (s *Store) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

// Remove closes the session's connection, if any, and deletes the
// entry. It reports whether the session existed; removing an unknown id
// is a no-op.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	delete(s.sessions, id)

	if sess.conn != nil {
		if err := sess.conn.Close(); err != nil {
			s.logger.Warn("close session connection", "session", id, "error", err)
		}
	}

	s.logger.Info("session removed", "session", id, "active", len(s.sessions))
	return true
}

// CloseAll closes every open connection and empties the store. Invoked
// on process shutdown.
func (s *Store) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if sess.conn != nil {
			if err := sess.conn.Close(); err != nil {
				s.logger.Warn("close session connection", "session", id, "error", err)
			}
		}
		delete(s.sessions, id)
	}
}

// Len returns the number of active sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
