package mind

import (
	"time"

	"hikari-bot/internal/storage"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type FactWithConfidence struct {
	Text       string
	Confidence Confidence
}

// FactConfidence maps a fact's age in days to a confidence tier: fresh
// facts are certain, month-old ones are faint impressions. Deterministic
// for a fixed now, and never improves as age grows.
func FactConfidence(recordedOn string, now time.Time) Confidence {
	if recordedOn == "" {
		// Legacy undated facts are treated as maximally old.
		return ConfidenceLow
	}
	t, err := time.Parse("2006-01-02", recordedOn)
	if err != nil {
		return ConfidenceLow
	}
	age := int(now.Sub(t).Hours() / 24)
	switch {
	case age < 7:
		return ConfidenceHigh
	case age < 30:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// FactsWithConfidence annotates every known fact with its tier at read time.
// Confidence is derived, never persisted.
func FactsWithConfidence(facts []storage.KnownFact, now time.Time) []FactWithConfidence {
	out := make([]FactWithConfidence, 0, len(facts))
	for _, f := range facts {
		out = append(out, FactWithConfidence{
			Text:       f.Text,
			Confidence: FactConfidence(f.RecordedOn, now),
		})
	}
	return out
}
