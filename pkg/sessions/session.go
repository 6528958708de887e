// Package sessions provides conversation session and capture storage
// with strict append-only history semantics. The default store is
// in-memory; a SQLite-backed store implements the same contract for
// deployments that must survive restarts.
package sessions

import (
	"time"

	"github.com/google/uuid"
)

// Turn is one input/output exchange in a session's history.
type Turn struct {
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a conversation session. History is append-only insertion
// order, never reordered or deduplicated. UpdatedAt >= CreatedAt always
// holds; UpdatedAt moves only on actual mutation.
type Session struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Context   map[string]any `json:"context"`
	History   []Turn         `json:"history"`
}

// Capture is an immutable, independently-addressed record. Corrections
// are new captures; no update operation exists.
type Capture struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Data       any            `json:"data"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CapturedAt time.Time      `json:"captured_at"`
}

// UpdateRequest carries the mutations for one UpdateSession call.
// ContextPatch is a shallow merge: new keys added, existing keys
// overwritten, no deep merge. AppendTurn, if set, is pushed to the end
// of history. A request with neither leaves the session untouched,
// timestamp included.
type UpdateRequest struct {
	ContextPatch map[string]any `json:"context_patch,omitempty"`
	AppendTurn   *Turn          `json:"append_turn,omitempty"`
}

func (r UpdateRequest) empty() bool {
	return len(r.ContextPatch) == 0 && r.AppendTurn == nil
}

// NewID returns a fresh opaque identifier. UUIDs guarantee deleted ids
// are never reissued.
func NewID() string {
	return uuid.NewString()
}

func cloneSession(s *Session) *Session {
	out := *s
	out.Context = make(map[string]any, len(s.Context))
	for k, v := range s.Context {
		out.Context[k] = v
	}
	out.History = make([]Turn, len(s.History))
	copy(out.History, s.History)
	return &out
}
