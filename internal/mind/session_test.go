package mind

import "testing"

func TestSessionTurnsWindow(t *testing.T) {
	s := NewSession()
	s.Append("user", "one")
	s.Append("assistant", "two")
	s.Append("user", "three")
	s.Append("assistant", "four")
	s.Append("user", "five")
	s.Append("assistant", "six")

	turns := s.Turns(2)
	if len(turns) != 4 {
		t.Fatalf("got %d turns, want 4", len(turns))
	}
	if turns[0].Content != "three" || turns[3].Content != "six" {
		t.Errorf("window truncated from wrong end: %v", turns)
	}
}

func TestSessionTurnCountCountsUserTurnsOnly(t *testing.T) {
	s := NewSession()
	s.Append("user", "hi")
	s.Append("assistant", "what.")
	s.Append("user", "nothing")
	if got := s.TurnCount(); got != 2 {
		t.Errorf("TurnCount = %d, want 2", got)
	}
}

func TestSessionBotHadLastWord(t *testing.T) {
	s := NewSession()
	if s.BotHadLastWord() {
		t.Error("empty session should not report bot had last word")
	}
	s.Append("user", "hi")
	if s.BotHadLastWord() {
		t.Error("user spoke last")
	}
	s.Append("assistant", "what.")
	if !s.BotHadLastWord() {
		t.Error("assistant spoke last")
	}
}

// Clear is the canonical session boundary: every session-scoped flag resets
// with the buffer.
func TestSessionClearResetsAllFlags(t *testing.T) {
	s := NewSession()
	s.Append("user", "hi")
	s.ConsumeFalseStart()
	s.IncrementIgnoreStreak()
	s.ResetIgnoreStreak() // sets cooldown

	s.Clear()

	if s.TurnCount() != 0 || len(s.Turns(10)) != 0 {
		t.Error("buffer not cleared")
	}
	if !s.ConsumeFalseStart() {
		t.Error("false-start flag not reset by Clear")
	}
	if s.IgnoreStreak() != 0 {
		t.Error("ignore streak not reset")
	}
	if s.InIgnoreCooldown() {
		t.Error("ignore cooldown not reset")
	}
}

func TestConsumeFalseStartFiresOnce(t *testing.T) {
	s := NewSession()
	if !s.ConsumeFalseStart() {
		t.Fatal("first consume should fire")
	}
	if s.ConsumeFalseStart() {
		t.Error("second consume should not fire")
	}
}

func TestIgnoreCooldownLifecycle(t *testing.T) {
	s := NewSession()
	s.IncrementIgnoreStreak()
	s.IncrementIgnoreStreak()
	if s.IgnoreStreak() != 2 {
		t.Fatalf("streak = %d, want 2", s.IgnoreStreak())
	}

	s.ResetIgnoreStreak()
	if s.IgnoreStreak() != 0 {
		t.Error("streak survived reset")
	}
	if !s.InIgnoreCooldown() {
		t.Error("reset should start cooldown")
	}

	// Cooldown is three turns, and ticking at zero must not underflow.
	s.TickIgnoreCooldown()
	s.TickIgnoreCooldown()
	s.TickIgnoreCooldown()
	if s.InIgnoreCooldown() {
		t.Error("cooldown should have expired after 3 ticks")
	}
	s.TickIgnoreCooldown()
	if s.InIgnoreCooldown() {
		t.Error("ticking at zero should stay at zero")
	}
}
