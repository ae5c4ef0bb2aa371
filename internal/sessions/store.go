// Package sessions owns per-sender conversation state: a keyed map of
// Sessions with FIFO-capped Turn history, persisted best-effort to a single
// JSON file. The in-memory map is authoritative for the process lifetime;
// disk failures are logged and swallowed.
package sessions

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hamedydev/digitalme/internal/providers"
)

// DefaultHistoryCap bounds each session's Turn history.
const DefaultHistoryCap = 200

// Turn is one recorded inbound/reply exchange. Immutable once appended.
type Turn struct {
	TS       time.Time `json:"ts"`
	Incoming string    `json:"incoming"`
	Reply    string    `json:"reply"`
}

// Session aggregates profile fields and Turn history for one sender.
type Session struct {
	Name        string    `json:"name"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	LastMessage string    `json:"last_message"`
	History     []Turn    `json:"history"`
}

// Store handles session lifecycle, context assembly, and persistence.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	path     string
	cap      int
}

// NewStore creates a store backed by the JSON file at path. A missing or
// corrupt file is non-fatal: the store starts empty and logs a warning.
// historyCap <= 0 falls back to DefaultHistoryCap.
func NewStore(path string, historyCap int) *Store {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	s := &Store{
		sessions: make(map[string]*Session),
		path:     path,
		cap:      historyCap,
	}
	s.load()
	return s
}

func (s *Store) load() {
	if s.path == "" {
		return
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("session store unreadable, starting empty", "path", s.path, "error", err)
		}
		return
	}
	if err := json.Unmarshal(data, &s.sessions); err != nil {
		slog.Warn("session store corrupt, starting empty", "path", s.path, "error", err)
		s.sessions = make(map[string]*Session)
	}
}

// RecordTurn creates or updates the sender's session and appends one Turn,
// evicting the oldest Turns beyond the cap. The full store is persisted
// afterwards; persistence errors never reach the caller.
func (s *Store) RecordTurn(id, name, incoming, reply string) {
	now := time.Now().UTC()

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{
			Name:      name,
			FirstSeen: now,
		}
		s.sessions[id] = sess
	}
	if name != "" {
		sess.Name = name
	}
	sess.LastSeen = now
	sess.LastMessage = incoming
	sess.History = append(sess.History, Turn{TS: now, Incoming: incoming, Reply: reply})
	if len(sess.History) > s.cap {
		sess.History = append([]Turn(nil), sess.History[len(sess.History)-s.cap:]...)
	}
	s.mu.Unlock()

	if err := s.Save(); err != nil {
		slog.Warn("session store save failed", "path", s.path, "error", err)
	}
}

// ContextWindow returns the most recent maxTurns Turns of a session expanded
// into alternating user/assistant messages in chronological order. Absent
// sessions yield an empty slice.
func (s *Store) ContextWindow(id string, maxTurns int) []providers.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok || maxTurns <= 0 {
		return nil
	}

	turns := sess.History
	if len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}

	msgs := make([]providers.Message, 0, len(turns)*2)
	for _, t := range turns {
		msgs = append(msgs, providers.Message{Role: "user", Content: t.Incoming})
		msgs = append(msgs, providers.Message{Role: "assistant", Content: t.Reply})
	}
	return msgs
}

// Get returns a copy of the session for id, if present.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	cp := *sess
	cp.History = append([]Turn(nil), sess.History...)
	return cp, true
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ExportSnapshot serializes the entire store for operator export.
func (s *Store) ExportSnapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.MarshalIndent(s.sessions, "", "  ")
}

// Save persists the whole store to disk atomically (temp file → rename).
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}

	data, err := s.ExportSnapshot()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "sessions-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	tmp.Close()

	if err := os.Rename(tmpPath, s.path); err != nil {
		return err
	}
	cleanup = false
	return nil
}
