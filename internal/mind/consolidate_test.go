package mind

import (
	"context"
	"testing"
	"time"

	"hikari-bot/internal/storage"
)

const consolidationYAML = `summary: |
  talked about coffee and work. tone was easy.
new_facts:
  - likes coffee
open_loops:
  - has an interview on friday
emotional_notes: |
  user was relaxed.
session_temperature: warm
warmth_delta: 1
self_disclosures:
  - admitted she watches logs nobody asked her to
is_meaningful: true
`

func seedSession(e *Engine) {
	e.Session().Append("user", "hey, made coffee yet?")
	e.Session().Append("assistant", "obviously. black. don't start.")
	e.Session().Append("user", "got an interview friday, kind of nervous")
	e.Session().Append("assistant", "you'll manage. probably.")
}

func TestConsolidateMeaningfulSession(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		consolidationYAML,
		"good session. she's slightly warmer.",
	}}
	engine, store := testEngine(t, provider, testSettings())
	seedSession(engine)

	if !engine.Consolidate(context.Background()) {
		t.Fatal("consolidation should run on a real session")
	}
	today := time.Now().UTC().Format("2006-01-02")

	profile := store.Profile()
	if profile.MeaningfulExchanges != 1 {
		t.Errorf("MeaningfulExchanges = %d, want 1", profile.MeaningfulExchanges)
	}
	if len(profile.KnownFacts) != 1 || profile.KnownFacts[0].Text != "likes coffee" {
		t.Fatalf("KnownFacts = %+v", profile.KnownFacts)
	}
	if profile.KnownFacts[0].RecordedOn != today {
		t.Errorf("fact dated %q, want %q", profile.KnownFacts[0].RecordedOn, today)
	}
	if len(profile.OpenLoops) != 1 || profile.OpenLoops[0] != "has an interview on friday" {
		t.Errorf("OpenLoops = %v", profile.OpenLoops)
	}

	ep, ok := store.TodayEpisode(today)
	if !ok {
		t.Fatal("no episode written for today")
	}
	if ep.CarryOver != "good session. she's slightly warmer." {
		t.Errorf("CarryOver = %q", ep.CarryOver)
	}

	state := store.Heartbeat()
	if state.WarmthFloorModifier != 1 {
		t.Errorf("WarmthFloorModifier = %d, want 1", state.WarmthFloorModifier)
	}
	if !state.BotHadLastWord {
		t.Error("assistant spoke last, BotHadLastWord should be true")
	}
	if state.LastSessionEndedAt.IsZero() {
		t.Error("LastSessionEndedAt not stamped")
	}

	arc := store.MoodArc()
	if len(arc.RecentSessionTemperatures) != 1 || arc.RecentSessionTemperatures[0].Temperature != "warm" {
		t.Errorf("temperatures = %+v", arc.RecentSessionTemperatures)
	}

	disclosures := store.SelfModel().Disclosures
	if len(disclosures) != 1 {
		t.Errorf("Disclosures = %+v", disclosures)
	}

	if engine.Session().TurnCount() != 0 {
		t.Error("session not cleared after consolidation")
	}
}

func TestConsolidateTooShortSession(t *testing.T) {
	provider := &fakeProvider{responses: []string{consolidationYAML}}
	engine, store := testEngine(t, provider, testSettings())
	engine.Session().Append("user", "hi")
	engine.Session().Append("assistant", "what.")

	if engine.Consolidate(context.Background()) {
		t.Fatal("single-exchange session should not consolidate")
	}
	if provider.calls != 0 {
		t.Errorf("backend called %d times for a throwaway session", provider.calls)
	}
	if store.Profile().MeaningfulExchanges != 0 {
		t.Error("counter advanced for a throwaway session")
	}
	if !store.Heartbeat().LastSessionEndedAt.IsZero() {
		t.Error("session-end state recorded for a throwaway session")
	}
	if engine.Session().TurnCount() != 0 {
		t.Error("session buffer should still be cleared")
	}
}

func TestConsolidateUnparseableExtraction(t *testing.T) {
	provider := &fakeProvider{responses: []string{"sorry, as an AI I cannot: [do that"}}
	engine, store := testEngine(t, provider, testSettings())
	seedSession(engine)

	if engine.Consolidate(context.Background()) {
		t.Fatal("unparseable extraction should abort consolidation")
	}
	if store.Profile().MeaningfulExchanges != 0 {
		t.Error("counter advanced despite aborted consolidation")
	}
	if engine.Session().TurnCount() != 0 {
		t.Error("session buffer should be cleared even on abort")
	}
}

func TestConsolidateNotMeaningfulSkipsTrustAndWarmth(t *testing.T) {
	yaml := `summary: |
  user asked two questions and left.
new_facts: []
open_loops: []
session_temperature: neutral
warmth_delta: 0
is_meaningful: false
`
	provider := &fakeProvider{responses: []string{yaml}}
	engine, store := testEngine(t, provider, testSettings())
	seedSession(engine)

	if !engine.Consolidate(context.Background()) {
		t.Fatal("consolidation should still run")
	}
	// Only the extraction call: no carry-over for a shallow session.
	if provider.calls != 1 {
		t.Errorf("backend called %d times, want 1", provider.calls)
	}
	if store.Profile().MeaningfulExchanges != 0 {
		t.Error("shallow session should not advance the counter")
	}
	if len(store.MoodArc().RecentSessionTemperatures) != 0 {
		t.Error("shallow session should not record a temperature")
	}
}

func TestAdvanceTrustExactlyOneLevel(t *testing.T) {
	cases := []struct {
		name         string
		stage, count int
		wantStage    int
	}{
		{"crossing first threshold", 0, 19, 1},
		{"mid stage holds", 1, 38, 1},
		{"crossing second threshold", 1, 39, 2},
		{"large backlog advances one level only", 0, 100, 1},
		{"at max stage holds", 3, 200, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := &fakeProvider{responses: []string{consolidationYAML, "line."}}
			engine, store := testEngine(t, provider, testSettings())
			store.UpdateProfile(func(p *storage.UserProfile) {
				p.TrustStage = tc.stage
				p.MeaningfulExchanges = tc.count
			})
			seedSession(engine)

			if !engine.Consolidate(context.Background()) {
				t.Fatal("consolidation should run")
			}
			p := store.Profile()
			if p.MeaningfulExchanges != tc.count+1 {
				t.Errorf("MeaningfulExchanges = %d, want %d", p.MeaningfulExchanges, tc.count+1)
			}
			if p.TrustStage != tc.wantStage {
				t.Errorf("TrustStage = %d, want %d", p.TrustStage, tc.wantStage)
			}
		})
	}
}

func TestNextWarmthFloor(t *testing.T) {
	cases := []struct {
		current, delta, want int
	}{
		{0, 1, 1},
		{1, 1, 2},
		{2, 1, 2}, // clamped high
		{0, -1, -1},
		{-1, -1, -1}, // clamped low
		{2, 0, 1},    // decay toward zero
		{1, 0, 0},
		{-1, 0, 0},
		{0, 0, 0},
	}
	for _, tc := range cases {
		if got := NextWarmthFloor(tc.current, tc.delta); got != tc.want {
			t.Errorf("NextWarmthFloor(%d, %d) = %d, want %d", tc.current, tc.delta, got, tc.want)
		}
	}
}

func TestOnSessionTimeoutFiresOncePerIdlePeriod(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		consolidationYAML, "line.",
		consolidationYAML, "line.",
	}}
	settings := testSettings()
	settings.Session.TimeoutMinutes = 30
	engine, store := testEngine(t, provider, settings)
	seedSession(engine)

	// User idle well past the timeout.
	store.UpdateHeartbeat(func(s *storage.HeartbeatState) {
		s.LastUserMessage = time.Now().UTC().Add(-2 * time.Hour)
	})

	if !engine.OnSessionTimeout(context.Background()) {
		t.Fatal("first timeout check should consolidate")
	}
	if engine.OnSessionTimeout(context.Background()) {
		t.Error("same idle period should not consolidate twice")
	}

	// A new message starts a new idle period.
	store.RecordUserMessage(time.Now().UTC().Add(-time.Hour))
	seedSession(engine)
	if !engine.OnSessionTimeout(context.Background()) {
		t.Error("new idle period should consolidate again")
	}
}

func TestOnSessionTimeoutUserStillActive(t *testing.T) {
	provider := &fakeProvider{}
	engine, store := testEngine(t, provider, testSettings())
	seedSession(engine)
	store.RecordUserMessage(time.Now().UTC().Add(-5 * time.Minute))

	if engine.OnSessionTimeout(context.Background()) {
		t.Error("active session should not consolidate")
	}
}
