package session

import (
	"sync"

	"github.com/jkindrix/quotebot/internal/domain"
)

// Session is the ordered, append-only history of one conversation.
// Its methods must be called from within Store.Do.
type Session struct {
	mu      sync.Mutex
	id      string
	history []domain.Turn
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Append records a turn.
func (s *Session) Append(turn domain.Turn) {
	s.history = append(s.history, turn.Clone())
}

// Len returns the number of recorded turns.
func (s *Session) Len() int { return len(s.history) }

// History returns a copy of all turns, oldest first.
func (s *Session) History() []domain.Turn {
	out := make([]domain.Turn, len(s.history))
	for i, t := range s.history {
		out[i] = t.Clone()
	}
	return out
}

// LeadContext returns the turn recorded two steps back, which is where the
// handler preceding a lead-collection turn left its selections. The lookup
// is positional: it reports false when fewer than two turns exist.
func (s *Session) LeadContext() (domain.Turn, bool) {
	if len(s.history) < 2 {
		return domain.Turn{}, false
	}
	return s.history[len(s.history)-2].Clone(), true
}
