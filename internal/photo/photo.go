// Package photo decides when Hikari sends a picture of herself and builds
// the generation prompt from her appearance sheet plus a scene keyed by
// mood and trust stage.
package photo

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"hikari-bot/internal/ai"
	"hikari-bot/internal/config"
)

const defaultAppearance = "young japanese woman, 21, dark hair, urban style, realistic, " +
	"natural lighting, authentic candid expression"

type sceneKey struct {
	mood  string
	stage int
}

var sceneMap = map[sceneKey][]string{
	{"tired", 2}:        {"late_night"},
	{"focused", 2}:      {"casual_desk"},
	{"irritable", 2}:    {"casual_desk"},
	{"weirdly good", 2}: {"casual_desk", "outdoor_brief"},

	{"tired", 3}:        {"late_night", "soft_rare"},
	{"focused", 3}:      {"casual_desk", "outdoor_brief"},
	{"irritable", 3}:    {"casual_desk"},
	{"weirdly good", 3}: {"soft_rare", "outdoor_brief", "intimate_stage3"},

	{"tired", 4}:        {"late_night", "stage4_charged"},
	{"focused", 4}:      {"casual_desk", "stage4_charged"},
	{"irritable", 4}:    {"casual_desk"},
	{"weirdly good", 4}: {"stage4_charged", "outdoor_brief"},

	{"tired", 5}:        {"stage4_charged", "stage5_close"},
	{"focused", 5}:      {"stage5_close", "stage5_intimate"},
	{"irritable", 5}:    {"stage4_charged"},
	{"weirdly good", 5}: {"stage5_intimate", "stage5_after"},
}

var sceneSuffixes = map[string]string{
	"casual_desk": "at her desk, multiple monitors behind her, earphones around neck, " +
		"side-lit, slight frown of concentration",
	"late_night": "dim room, phone camera, tired eyes, oversized hoodie, " +
		"no overhead light, slight shadows under eyes",
	"outdoor_brief": "city street, natural daylight, not looking at camera, " +
		"caught mid-thought, jacket",
	"soft_rare": "soft diffuse light, slight almost-smile, not quite looking at camera, window light",
	"intimate_stage3": "tasteful, close frame, natural light, she controls what she's showing, " +
		"ambiguous, could be getting ready or just casual",
	"stage4_charged": "dim room, late, looking at camera for once, slight flush, " +
		"not explaining herself, phone camera, natural",
	"stage5_close": "close frame, warm light, deliberate angle, she chose this, " +
		"direct eye contact, slight curve at corner of mouth",
	"stage5_intimate": "tasteful, controlled, she's aware of what she's showing, " +
		"no apology in the expression, warm skin tones, soft focus",
	"stage5_after": "quiet, slightly distant, still warm in the light, " +
		"not looking at camera, somewhere else in her head",
}

// Scene returns a scene description for the given mood and stage.
func Scene(mood string, stage int, rng *rand.Rand) string {
	capped := stage
	if capped > 5 {
		capped = 5
	}
	scenes := sceneMap[sceneKey{mood, capped}]
	if len(scenes) == 0 {
		switch {
		case stage >= 4:
			scenes = []string{"stage4_charged"}
		case stage >= 3:
			scenes = []string{"casual_desk", "outdoor_brief"}
		default:
			scenes = []string{"casual_desk"}
		}
	}
	return sceneSuffixes[scenes[rng.Intn(len(scenes))]]
}

// CanSend gates a user-requested or reactive photo.
func CanSend(cfg config.PhotoSettings, stage int, mood string, sentToday int) bool {
	if !cfg.Enabled {
		return false
	}
	if stage < cfg.StageThreshold {
		return false
	}
	if mood == "irritable" {
		return false
	}
	return sentToday < cfg.MaxPerDay
}

// ShouldSendProactive gates a photo attached to a heartbeat. Stage 3+ only,
// probability-gated, never when irritable.
func ShouldSendProactive(cfg config.PhotoSettings, stage int, mood string, sentToday int, rng *rand.Rand) bool {
	if !cfg.Enabled {
		return false
	}
	if stage < 3 {
		return false
	}
	if mood == "irritable" {
		return false
	}
	if rng.Float64() >= cfg.HeartbeatProbability {
		return false
	}
	return sentToday < cfg.MaxPerDay
}

// Generator routes between the filtered image backend and the unfiltered
// one by trust stage.
type Generator struct {
	cfg     config.PhotoSettings
	sfw     ai.ImageProvider
	nsfw    ai.ImageProvider
	charDir string
}

func NewGenerator(cfg config.PhotoSettings, sfw, nsfw ai.ImageProvider, charDir string) *Generator {
	return &Generator{cfg: cfg, sfw: sfw, nsfw: nsfw, charDir: charDir}
}

// Generate builds the prompt and asks the stage-appropriate provider for an
// image.
func (g *Generator) Generate(ctx context.Context, mood string, stage int, rng *rand.Rand) ([]byte, error) {
	prompt := fmt.Sprintf("%s, %s", g.appearanceBase(), Scene(mood, stage, rng))

	if stage >= g.cfg.NSFWStageThreshold && g.cfg.NSFWProvider == "venice" && g.nsfw != nil {
		return g.nsfw.GenerateImage(ctx, prompt)
	}
	return g.sfw.GenerateImage(ctx, prompt)
}

// appearanceBase reads the base prompt section of APPEARANCE.md.
func (g *Generator) appearanceBase() string {
	data, err := os.ReadFile(filepath.Join(g.charDir, "APPEARANCE.md"))
	if err != nil {
		return defaultAppearance
	}
	content := string(data)
	marker := "## base prompt"
	idx := strings.Index(content, marker)
	if idx < 0 {
		return defaultAppearance
	}
	rest := content[idx+len(marker):]
	if end := strings.Index(rest, "\n## "); end >= 0 {
		rest = rest[:end]
	}
	if base := strings.TrimSpace(rest); base != "" {
		return base
	}
	return defaultAppearance
}
