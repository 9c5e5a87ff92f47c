package mind

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"hikari-bot/internal/config"
	"hikari-bot/internal/storage"
)

func TestIsQuietHoursMidnightWrap(t *testing.T) {
	at := func(hour, min int) time.Time {
		return time.Date(2026, 8, 28, hour, min, 0, 0, time.UTC)
	}

	cases := []struct {
		name       string
		start, end string
		now        time.Time
		want       bool
	}{
		{"start minute is quiet", "23:00", "08:00", at(23, 0), true},
		{"middle of the night", "23:00", "08:00", at(2, 30), true},
		{"end minute is loud", "23:00", "08:00", at(8, 0), false},
		{"afternoon", "23:00", "08:00", at(14, 0), false},
		{"just before start", "23:00", "08:00", at(22, 59), false},
		{"non-wrapping window inside", "13:00", "15:00", at(14, 0), true},
		{"non-wrapping window outside", "13:00", "15:00", at(15, 0), false},
		{"degenerate window never quiet", "00:00", "00:00", at(0, 0), false},
		{"unparseable clock never quiet", "late", "08:00", at(2, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsQuietHours(tc.start, tc.end, tc.now); got != tc.want {
				t.Errorf("IsQuietHours(%q, %q, %s) = %v, want %v",
					tc.start, tc.end, tc.now.Format("15:04"), got, tc.want)
			}
		})
	}
}

func TestShouldSendHeartbeat(t *testing.T) {
	cfg := config.HeartbeatSettings{
		MinIntervalHours:        4,
		MaxIntervalHours:        8,
		QuietStart:              "23:00",
		QuietEnd:                "08:00",
		SkipIfUserActiveMinutes: 60,
	}
	now := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		state storage.HeartbeatState
		want  bool
	}{
		{"fresh state sends", storage.HeartbeatState{}, true},
		{"silenced", storage.HeartbeatState{SilenceUntil: now.Add(2 * time.Hour)}, false},
		{"expired silence sends", storage.HeartbeatState{SilenceUntil: now.Add(-time.Minute)}, true},
		{"user active recently", storage.HeartbeatState{LastUserMessage: now.Add(-30 * time.Minute)}, false},
		{"user quiet long enough", storage.HeartbeatState{LastUserMessage: now.Add(-2 * time.Hour)}, true},
		{"sent too recently", storage.HeartbeatState{LastProactiveSent: now.Add(-time.Hour)}, false},
		{"min interval passed", storage.HeartbeatState{LastProactiveSent: now.Add(-5 * time.Hour)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldSendHeartbeat(tc.state, cfg, now); got != tc.want {
				t.Errorf("ShouldSendHeartbeat = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestShouldSendHeartbeatQuietHours(t *testing.T) {
	cfg := config.HeartbeatSettings{QuietStart: "23:00", QuietEnd: "08:00"}
	night := time.Date(2026, 8, 28, 2, 0, 0, 0, time.UTC)
	if ShouldSendHeartbeat(storage.HeartbeatState{}, cfg, night) {
		t.Error("quiet hours should block the heartbeat")
	}
}

func TestParseTemplates(t *testing.T) {
	text := `# Heartbeat

Some prose that is not a template.

1. saw something that reminded me of you. anyway.
2. my succulent is still alive. thought you should know.
not a template either
10. checking if the connection still works.
`
	templates := ParseTemplates(text)
	if len(templates) != 3 {
		t.Fatalf("got %d templates, want 3", len(templates))
	}
	if templates[0].Index != 1 || templates[1].Index != 2 || templates[2].Index != 10 {
		t.Errorf("indexes = %d, %d, %d", templates[0].Index, templates[1].Index, templates[2].Index)
	}
	if templates[2].Text != "checking if the connection still works." {
		t.Errorf("text = %q", templates[2].Text)
	}
}

func TestPickExcuseAvoidsRecentlyUsed(t *testing.T) {
	templates := []ExcuseTemplate{
		{Index: 1, Text: "a"}, {Index: 2, Text: "b"}, {Index: 3, Text: "c"},
		{Index: 4, Text: "d"}, {Index: 5, Text: "e"},
	}
	rng := rand.New(rand.NewSource(7))

	// Four of five used: the remaining one is forced.
	for i := 0; i < 50; i++ {
		got, ok := PickExcuse(templates, []int{1, 2, 3, 4}, rng)
		if !ok {
			t.Fatal("pick failed with templates available")
		}
		if got.Index != 5 {
			t.Fatalf("got index %d, want 5", got.Index)
		}
	}
}

func TestPickExcuseResetsWhenAllUsed(t *testing.T) {
	templates := []ExcuseTemplate{
		{Index: 1, Text: "a"}, {Index: 2, Text: "b"}, {Index: 3, Text: "c"},
	}
	rng := rand.New(rand.NewSource(7))

	got, ok := PickExcuse(templates, []int{1, 2, 3}, rng)
	if !ok {
		t.Fatal("pick failed after full reset")
	}
	if got.Index < 1 || got.Index > 3 {
		t.Errorf("reset pick returned index %d outside the set", got.Index)
	}
}

func TestPickExcuseEmptyTemplates(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	if _, ok := PickExcuse(nil, nil, rng); ok {
		t.Error("empty template set should not pick")
	}
}

func TestShouldSendReengagementGates(t *testing.T) {
	hb := config.HeartbeatSettings{QuietStart: "23:00", QuietEnd: "08:00"}
	re := config.ReengagementSettings{MinHours: 2, MaxHours: 6}
	now := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)
	ended := now.Add(-3 * time.Hour)

	eligible := storage.HeartbeatState{
		BotHadLastWord:     true,
		LastSessionEndedAt: ended,
	}
	if !ShouldSendReengagement(eligible, 2, hb, re, now) {
		t.Fatal("baseline eligible state should send")
	}

	cases := []struct {
		name   string
		mutate func(*storage.HeartbeatState)
		stage  int
		now    time.Time
	}{
		{"user had last word", func(s *storage.HeartbeatState) { s.BotHadLastWord = false }, 2, now},
		{"stage too low", nil, 1, now},
		{"silenced", func(s *storage.HeartbeatState) { s.SilenceUntil = now.Add(time.Hour) }, 2, now},
		{"no session ended yet", func(s *storage.HeartbeatState) { s.LastSessionEndedAt = time.Time{} }, 2, now},
		{"too soon", nil, 2, ended.Add(time.Hour)},
		{"window expired", nil, 2, ended.Add(7 * time.Hour)},
		{"already nudged this gap", func(s *storage.HeartbeatState) { s.ReengagementSentAt = ended.Add(time.Minute) }, 2, now},
		{"user already came back", func(s *storage.HeartbeatState) { s.LastUserMessage = ended.Add(time.Minute) }, 2, now},
		{"quiet hours", nil, 2, time.Date(2026, 8, 28, 23, 30, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := eligible
			if tc.mutate != nil {
				tc.mutate(&state)
			}
			tcNow := tc.now
			if tc.name == "quiet hours" {
				// Keep the gap inside the window at a quiet time of day.
				state.LastSessionEndedAt = tcNow.Add(-3 * time.Hour)
			}
			if ShouldSendReengagement(state, tc.stage, hb, re, tcNow) {
				t.Error("gate should have blocked the nudge")
			}
		})
	}
}

func TestNextHeartbeatDelayWithinRange(t *testing.T) {
	cfg := config.HeartbeatSettings{MinIntervalHours: 4, MaxIntervalHours: 8}
	rng := rand.New(rand.NewSource(9))

	for i := 0; i < 1000; i++ {
		d := NextHeartbeatDelay(cfg, rng)
		if d < 4*time.Hour || d > 8*time.Hour {
			t.Fatalf("delay %v outside [4h, 8h]", d)
		}
	}
}

func TestNextHeartbeatDelayInvertedRange(t *testing.T) {
	cfg := config.HeartbeatSettings{MinIntervalHours: 5, MaxIntervalHours: 3}
	rng := rand.New(rand.NewSource(9))
	if d := NextHeartbeatDelay(cfg, rng); d != 5*time.Hour {
		t.Errorf("inverted range should pin to min, got %v", d)
	}
}

// When the re-engagement and regular heartbeat are both eligible, exactly one
// message goes out and it is the nudge.
func TestHeartbeatTickReengagementWins(t *testing.T) {
	provider := &fakeProvider{responses: []string{"you went quiet."}}
	engine, store := testEngine(t, provider, testSettings())

	now := time.Now().UTC()
	store.UpdateProfile(func(p *storage.UserProfile) { p.TrustStage = 2 })
	store.UpdateHeartbeat(func(s *storage.HeartbeatState) {
		s.BotHadLastWord = true
		s.LastSessionEndedAt = now.Add(-3 * time.Hour)
		s.LastUserMessage = now.Add(-4 * time.Hour)
	})

	var sent []string
	sentFn := func(msg string) error {
		sent = append(sent, msg)
		return nil
	}

	if !engine.OnHeartbeatTick(context.Background(), sentFn) {
		t.Fatal("tick should have sent the nudge")
	}
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if sent[0] != "you went quiet." {
		t.Errorf("sent %q", sent[0])
	}

	state := store.Heartbeat()
	if state.ReengagementSentAt.IsZero() {
		t.Error("ReengagementSentAt not stamped")
	}
	if state.ProactiveCount != 0 {
		t.Errorf("ProactiveCount = %d, regular heartbeat should not have fired", state.ProactiveCount)
	}

	// The gap has been nudged once; the next tick must not repeat it, and
	// with no templates on disk the regular path stays silent too.
	sent = nil
	if engine.OnHeartbeatTick(context.Background(), sentFn) {
		t.Error("second tick should not re-nudge the same gap")
	}
	if len(sent) != 0 {
		t.Errorf("second tick sent %d messages", len(sent))
	}
}
