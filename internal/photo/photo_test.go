package photo

import (
	"math/rand"
	"testing"

	"hikari-bot/internal/config"
)

func photoCfg() config.PhotoSettings {
	return config.PhotoSettings{
		Enabled:              true,
		MaxPerDay:            2,
		StageThreshold:       2,
		HeartbeatProbability: 1.0,
	}
}

func TestCanSend(t *testing.T) {
	cfg := photoCfg()

	cases := []struct {
		name      string
		stage     int
		mood      string
		sentToday int
		want      bool
	}{
		{"eligible", 2, "focused", 0, true},
		{"below stage threshold", 1, "focused", 0, false},
		{"irritable never sends", 2, "irritable", 0, false},
		{"daily cap reached", 2, "focused", 2, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanSend(cfg, tc.stage, tc.mood, tc.sentToday); got != tc.want {
				t.Errorf("CanSend = %v, want %v", got, tc.want)
			}
		})
	}

	cfg.Enabled = false
	if CanSend(cfg, 3, "focused", 0) {
		t.Error("disabled feature should never send")
	}
}

func TestShouldSendProactive(t *testing.T) {
	cfg := photoCfg()
	rng := rand.New(rand.NewSource(1))

	if ShouldSendProactive(cfg, 2, "focused", 0, rng) {
		t.Error("proactive photos need stage 3")
	}
	if !ShouldSendProactive(cfg, 3, "focused", 0, rng) {
		t.Error("stage 3 with probability 1.0 should send")
	}
	if ShouldSendProactive(cfg, 3, "irritable", 0, rng) {
		t.Error("irritable should never send")
	}
	if ShouldSendProactive(cfg, 3, "focused", 2, rng) {
		t.Error("daily cap should block")
	}

	cfg.HeartbeatProbability = 0
	for i := 0; i < 100; i++ {
		if ShouldSendProactive(cfg, 3, "focused", 0, rng) {
			t.Fatal("zero probability should never send")
		}
	}
}

func TestSceneAlwaysReturnsSomething(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	moods := []string{"tired", "focused", "irritable", "weirdly good", "unheard-of"}

	for _, mood := range moods {
		for stage := 0; stage <= 7; stage++ {
			if scene := Scene(mood, stage, rng); scene == "" {
				t.Errorf("empty scene for mood %q stage %d", mood, stage)
			}
		}
	}
}

func TestSceneStageCap(t *testing.T) {
	// Stages past 5 reuse the stage 5 table instead of falling back.
	rng := rand.New(rand.NewSource(3))
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[Scene("focused", 9, rng)] = true
	}
	for scene := range seen {
		if scene != sceneSuffixes["stage5_close"] && scene != sceneSuffixes["stage5_intimate"] {
			t.Errorf("stage 9 produced out-of-table scene %q", scene)
		}
	}
}
