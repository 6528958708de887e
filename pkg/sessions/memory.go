package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/skilletlabs/skillet/pkg/apperr"
)

// sessionEntry owns one session. Its mutex serializes same-id updates
// without blocking other sessions.
type sessionEntry struct {
	mu      sync.Mutex
	session *Session
}

// MemoryStore is the default in-memory Store. Sessions are lost on
// process exit, which is the documented trade-off of this backend; use
// the SQLite store when that matters.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	deleted  map[string]struct{}
	captures []Capture
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*sessionEntry),
		deleted:  make(map[string]struct{}),
	}
}

// CreateSession implements Store.
func (s *MemoryStore) CreateSession(ctx context.Context, userID string, metadata map[string]any) (*Session, error) {
	now := time.Now()
	session := &Session{
		ID:        NewID(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		Context:   make(map[string]any, len(metadata)),
		History:   []Turn{},
	}
	for k, v := range metadata {
		session.Context[k] = v
	}

	s.mu.Lock()
	s.sessions[session.ID] = &sessionEntry{session: session}
	s.mu.Unlock()

	return cloneSession(session), nil
}

// GetSession implements Store.
func (s *MemoryStore) GetSession(ctx context.Context, id string) (*Session, error) {
	entry, err := s.entry("sessions.get", id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneSession(entry.session), nil
}

// UpdateSession implements Store. Calls for the same id are serialized
// on the entry mutex so no appended turn is lost to a lost update.
func (s *MemoryStore) UpdateSession(ctx context.Context, id string, req UpdateRequest) (*Session, error) {
	entry, err := s.entry("sessions.update", id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if req.empty() {
		return cloneSession(entry.session), nil
	}

	session := entry.session
	for k, v := range req.ContextPatch {
		session.Context[k] = v
	}
	if req.AppendTurn != nil {
		turn := *req.AppendTurn
		if turn.Timestamp.IsZero() {
			turn.Timestamp = time.Now()
		}
		session.History = append(session.History, turn)
	}
	session.UpdatedAt = time.Now()
	if session.UpdatedAt.Before(session.CreatedAt) {
		session.UpdatedAt = session.CreatedAt
	}

	return cloneSession(session), nil
}

// DeleteSession implements Store.
func (s *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; ok {
		delete(s.sessions, id)
		s.deleted[id] = struct{}{}
		return nil
	}
	if _, ok := s.deleted[id]; ok {
		// Already gone; idempotent in effect.
		return nil
	}
	return apperr.NotFound("sessions.delete", id, "unknown session")
}

// Capture implements Store.
func (s *MemoryStore) Capture(ctx context.Context, data any, kind string, metadata map[string]any) (*Capture, error) {
	if kind == "" {
		return nil, apperr.Validation("sessions.capture", "", "capture kind must not be empty")
	}

	capture := Capture{
		ID:         NewID(),
		Kind:       kind,
		Data:       data,
		Metadata:   metadata,
		CapturedAt: time.Now(),
	}

	s.mu.Lock()
	s.captures = append(s.captures, capture)
	s.mu.Unlock()

	return &capture, nil
}

// ListCaptures implements Store.
func (s *MemoryStore) ListCaptures(ctx context.Context, kind string) ([]Capture, error) {
	s.mu.RLock()
	out := make([]Capture, 0, len(s.captures))
	for _, c := range s.captures {
		if kind == "" || c.Kind == kind {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()

	// Insertion order already tracks captured-at; the stable sort keeps
	// equal timestamps deterministic.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CapturedAt.Before(out[j].CapturedAt)
	})
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) entry(op, id string) (*sessionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sessions[id]
	if !ok {
		return nil, apperr.NotFound(op, id, "unknown session")
	}
	return entry, nil
}
