package mind

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"hikari-bot/internal/ai"
	"hikari-bot/internal/storage"
)

const consolidationSystem = `You are a memory consolidation assistant for a chatbot. Your job: analyze a conversation and extract structured information.

Output ONLY valid YAML (no markdown code fences, no extra text):

summary: |
  [2-4 sentence summary: what was discussed, emotional tone, anything notable]
new_facts:
  - [fact about the user: preference, detail, background info]
open_loops:
  - [time-sensitive item the user mentioned, e.g. "has an interview on Friday"]
emotional_notes: |
  [brief: how was the user? how was the session overall?]
session_temperature: neutral  # one of: warm / neutral / cold / hostile
warmth_delta: 0  # -1 (cold/bad session), 0 (neutral), +1 (warm/good session)
self_disclosures:
  - [something notable Hikari herself shared or revealed in this session, not facts about the user]
is_meaningful: true  # true if >3 substantive turns, false if just commands/short

If a list has no items, use an empty list: []`

const carryOverSystem = `Write exactly 1 short line describing this conversation's emotional tone from Hikari's perspective, 3rd person, past tense.
Format: '[quality]. she's [state].'
Examples:
  good session. she's slightly warmer.
  user was distant. she's more guarded.
  user opened up a bit. she noticed.
  rough session. she's more careful now.
Output ONLY the line itself. No quotes, no explanation.`

type consolidationResult struct {
	Summary            string   `yaml:"summary"`
	NewFacts           []string `yaml:"new_facts"`
	OpenLoops          []string `yaml:"open_loops"`
	EmotionalNotes     string   `yaml:"emotional_notes"`
	SessionTemperature string   `yaml:"session_temperature"`
	WarmthDelta        int      `yaml:"warmth_delta"`
	SelfDisclosures    []string `yaml:"self_disclosures"`
	IsMeaningful       bool     `yaml:"is_meaningful"`
}

// OnSessionTimeout checks whether the user has gone idle past the session
// timeout and, if this idle period has not been consolidated yet, runs
// consolidation. Returns true if consolidation ran.
func (e *Engine) OnSessionTimeout(ctx context.Context) bool {
	state := e.store.Heartbeat()
	if state.LastUserMessage.IsZero() {
		return false
	}

	timeout := time.Duration(e.settings.Session.TimeoutMinutes) * time.Minute
	if time.Now().UTC().Sub(state.LastUserMessage) < timeout {
		return false
	}

	e.mu.Lock()
	if e.consolidatedFor.Equal(state.LastUserMessage) {
		e.mu.Unlock()
		return false
	}
	e.consolidatedFor = state.LastUserMessage
	e.mu.Unlock()

	return e.Consolidate(ctx)
}

// Consolidate distills the finished session into durable memory: an episode
// record, dated facts, replaced open loops, self disclosures, trust and
// warmth updates. Returns true if it ran (session long enough, extraction
// parsed).
func (e *Engine) Consolidate(ctx context.Context) bool {
	botLast := e.session.BotHadLastWord()
	now := time.Now().UTC()
	today := now.Format("2006-01-02")

	if e.session.TurnCount() < 2 {
		// Too short to be meaningful.
		e.session.Clear()
		return false
	}

	transcript := e.transcript()

	raw, err := e.provider.Generate(ctx, []ai.Message{
		{Role: "system", Content: consolidationSystem},
		{Role: "user", Content: fmt.Sprintf("Conversation from %s:\n\n%s", today, transcript)},
	}, "memory", 0.3)
	if err != nil {
		log.Printf("[ERR] mind: consolidation call failed: %v", err)
		e.session.Clear()
		return false
	}

	var result consolidationResult
	if err := yaml.Unmarshal([]byte(ai.StripCodeFence(raw)), &result); err != nil {
		log.Printf("[ERR] mind: consolidation parse failed: %v", err)
		e.session.Clear()
		return false
	}

	result.Summary = strings.TrimSpace(result.Summary)
	result.EmotionalNotes = strings.TrimSpace(result.EmotionalNotes)
	if result.WarmthDelta > 1 {
		result.WarmthDelta = 1
	}
	if result.WarmthDelta < -1 {
		result.WarmthDelta = -1
	}
	switch result.SessionTemperature {
	case "warm", "neutral", "cold", "hostile":
	default:
		result.SessionTemperature = "neutral"
	}

	profile := e.store.Profile()

	// Carry-over note for next-session continuity. Best effort: failure
	// just omits it.
	carryOver := ""
	if result.Summary != "" && result.IsMeaningful {
		line, err := e.provider.Generate(ctx, []ai.Message{
			{Role: "system", Content: carryOverSystem},
			{Role: "user", Content: transcript},
		}, "memory", 0.4)
		if err != nil {
			log.Printf("[ERR] mind: carry-over call failed: %v", err)
		} else {
			carryOver = strings.Trim(strings.TrimSpace(line), `"'`)
		}
	}

	if result.Summary != "" {
		ep := storage.Episode{
			Date:           today,
			Summary:        result.Summary,
			NewFacts:       cleanList(result.NewFacts),
			OpenLoops:      cleanList(result.OpenLoops),
			EmotionalNotes: result.EmotionalNotes,
			TrustStage:     profile.TrustStage,
			Exchanges:      profile.MeaningfulExchanges,
			CarryOver:      carryOver,
		}
		if err := e.store.WriteEpisode(ep); err != nil {
			log.Printf("[ERR] mind: episode write failed: %v", err)
		}
	}

	for _, fact := range cleanList(result.NewFacts) {
		e.store.AddKnownFact(fact, today)
	}
	if loops := cleanList(result.OpenLoops); len(loops) > 0 {
		e.store.ReplaceOpenLoops(loops)
	}
	for _, d := range cleanList(result.SelfDisclosures) {
		e.store.AddSelfDisclosure(d, today)
	}

	if result.IsMeaningful {
		e.advanceTrust()
		e.store.AppendSessionTemperature(today, result.SessionTemperature)
		e.updateWarmthFloor(result.WarmthDelta)
	}

	e.store.RecordSessionEnded(botLast, now)
	e.session.Clear()
	log.Printf("[MIND] consolidated session for %s (meaningful=%v)", today, result.IsMeaningful)
	return true
}

// advanceTrust increments the meaningful-exchange counter and advances the
// trust stage by at most one level when the counter crosses the next
// stage's threshold.
func (e *Engine) advanceTrust() {
	speed := e.settings.Trust.ProgressionSpeed
	threshold := exchangesPerStage(speed)
	maxStage := e.settings.Trust.MaxStage

	e.store.UpdateProfile(func(p *storage.UserProfile) {
		p.MeaningfulExchanges++
		if speed == "instant" || p.TrustStage >= maxStage {
			return
		}
		stageStart := p.TrustStage * threshold
		if p.MeaningfulExchanges-stageStart >= threshold {
			p.TrustStage++
		}
	})
}

func exchangesPerStage(speed string) int {
	switch speed {
	case "slow":
		return 50
	case "fast":
		return 5
	case "instant":
		return 0
	default:
		return 20
	}
}

// updateWarmthFloor applies the session's warmth delta. A zero delta decays
// the modifier one step toward zero; the result stays within [-1, 2].
func (e *Engine) updateWarmthFloor(delta int) {
	e.store.UpdateHeartbeat(func(h *storage.HeartbeatState) {
		h.WarmthFloorModifier = NextWarmthFloor(h.WarmthFloorModifier, delta)
	})
}

// NextWarmthFloor is the pure step function behind the warmth floor.
func NextWarmthFloor(current, delta int) int {
	next := current
	if delta == 0 {
		if current > 0 {
			next = current - 1
		} else if current < 0 {
			next = current + 1
		}
	} else {
		next = current + delta
	}
	if next > 2 {
		next = 2
	}
	if next < -1 {
		next = -1
	}
	return next
}

func (e *Engine) transcript() string {
	turns := e.session.Turns(e.settings.Session.ContextWindowTurns)
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(t.Role), t.Content)
	}
	return b.String()
}

func cleanList(items []string) []string {
	var out []string
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}
