package mind

import (
	"time"

	"hikari-bot/internal/config"
)

// TypingDelay computes how long she "types" before a reply lands. Pure
// function of reply length and mood: base plus per-character cost, capped,
// then scaled when she is irritable (snappier) or tired (slower).
func TypingDelay(reply, mood string, cfg config.ResponseDelaySettings) time.Duration {
	if !cfg.Enabled {
		return 0
	}

	total := cfg.BaseSeconds + float64(len(reply))*cfg.MsPerChar/1000.0
	if total > cfg.CapSeconds {
		total = cfg.CapSeconds
	}

	switch mood {
	case MoodIrritable:
		total *= cfg.MoodIrritableFactor
	case MoodTired:
		total *= cfg.MoodTiredFactor
	}

	return time.Duration(total * float64(time.Second))
}

// PreIndicatorPause is the beat before the typing indicator appears.
func PreIndicatorPause(cfg config.ResponseDelaySettings) time.Duration {
	if !cfg.Enabled {
		return 0
	}
	return time.Duration(cfg.PreIndicatorPause * float64(time.Second))
}
