package mind

import "sync"

type Turn struct {
	Role    string
	Content string
}

// Session owns the in-memory turn buffer for the current conversation plus
// every session-scoped one-shot flag. Clear resets all of it atomically;
// the session is the canonical session-boundary signal. Not persisted, a
// crash loses at most one unconsolidated session.
type Session struct {
	mu             sync.Mutex
	turns          []Turn
	turnCount      int
	falseStartUsed bool
	ignoreStreak   int
	ignoreCooldown int
}

func NewSession() *Session {
	return &Session{}
}

// Append records a turn. User turns advance the session turn count.
func (s *Session) Append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Role: role, Content: content})
	if role == "user" {
		s.turnCount++
	}
}

// Turns returns the last window user+assistant pairs, oldest first.
func (s *Session) Turns(window int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := window * 2
	if len(s.turns) <= limit {
		out := make([]Turn, len(s.turns))
		copy(out, s.turns)
		return out
	}
	out := make([]Turn, limit)
	copy(out, s.turns[len(s.turns)-limit:])
	return out
}

func (s *Session) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnCount
}

func (s *Session) BotHadLastWord() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns) > 0 && s.turns[len(s.turns)-1].Role == "assistant"
}

// Clear drops the buffer and resets every session-scoped flag in one step.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.turnCount = 0
	s.falseStartUsed = false
	s.ignoreStreak = 0
	s.ignoreCooldown = 0
}

// ConsumeFalseStart returns true at most once per session.
func (s *Session) ConsumeFalseStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.falseStartUsed {
		return false
	}
	s.falseStartUsed = true
	return true
}

func (s *Session) IgnoreStreak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ignoreStreak
}

func (s *Session) IncrementIgnoreStreak() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignoreStreak++
}

// ResetIgnoreStreak breaks the silence and imposes a cooldown so she cannot
// immediately re-ignore.
func (s *Session) ResetIgnoreStreak() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignoreStreak = 0
	s.ignoreCooldown = 3
}

func (s *Session) InIgnoreCooldown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ignoreCooldown > 0
}

// TickIgnoreCooldown decrements the post-break cooldown, once per incoming
// user message.
func (s *Session) TickIgnoreCooldown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ignoreCooldown > 0 {
		s.ignoreCooldown--
	}
}
