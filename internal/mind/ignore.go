package mind

import (
	"math/rand"

	"hikari-bot/internal/config"
)

// ignoreProbability by mood, indexed by trust stage (capped at 3). Higher
// trust means she ignores less; focused at stage 3 and a weirdly good mood
// at stage 2+ never ignore.
var ignoreProbability = map[string][4]float64{
	MoodIrritable:   {0.30, 0.22, 0.15, 0.08},
	MoodTired:       {0.15, 0.12, 0.08, 0.05},
	MoodFocused:     {0.10, 0.08, 0.05, 0.00},
	MoodWeirdlyGood: {0.08, 0.05, 0.00, 0.00},
}

// ShouldIgnore decides whether she leaves this message unanswered. The
// random source is injected so tests can pin it.
func ShouldIgnore(cfg config.IgnoreSettings, mood string, stage int, session *Session, rng *rand.Rand) bool {
	if !cfg.Enabled {
		return false
	}
	if session.InIgnoreCooldown() {
		return false
	}
	if session.IgnoreStreak() >= cfg.MaxStreak {
		// Force-break: she has ignored enough in a row.
		return false
	}

	probs, ok := ignoreProbability[mood]
	if !ok {
		return false
	}
	idx := stage
	if idx > 3 {
		idx = 3
	}
	if idx < 0 {
		idx = 0
	}
	p := probs[idx]
	if p <= 0 {
		return false
	}
	return rng.Float64() < p
}
