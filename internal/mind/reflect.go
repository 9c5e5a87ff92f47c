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

// Trust stage at which the private diary becomes worth keeping.
const reflectionVisibleStage = 2

const reflectionSystem = `You are a memory reflection assistant for an AI character named Hikari Tsukino.
She is a 21-year-old tsundere who cares deeply but hides it.
Your job: analyze recent session episodes and existing memory, then output ONLY valid YAML.

Output structure:
new_memory_facts:
  - [stable confirmed fact about the user worth adding to long-term memory]
thought: |
  [2-5 sentences in Hikari's voice — private, honest, unguarded. What she notices about
   this person, what she won't say out loud, what she's actually thinking. First person,
   lowercase, no markdown. This is her diary, not chat output.]

Rules:
- Only add facts that appeared in multiple sessions or are clearly stable.
- The thought should sound like genuine private reflection, not chat messages.
- If no new stable facts, use: new_memory_facts: []
- If not enough data for a thought, write a brief honest observation anyway.`

const preoccupationSystem = `You are writing a single line for an AI character named Hikari Tsukino.
She works in data science / AI / ML. She has an ongoing inner life independent of conversations.

Write exactly 1 sentence describing something she's been thinking about — NOT related to the user.
It should be from her professional/intellectual domain: a paper, model behavior, dataset quirk,
attention mechanism, something she read, a code problem. Unresolved. Slightly annoying to her.

Rules:
- First person, lowercase, no markdown, no quotes.
- Must feel like a real ongoing thought, not a topic summary.
- Do NOT mention the user.

Output ONLY the single sentence.`

const moodArcSystem = `You are analyzing the emotional trajectory of a relationship.
Given recent session emotional temperatures (warm/neutral/cold/hostile), determine the arc.

Output ONLY valid YAML:
arc: stable  # one of: stable / brightening / darkening / guarded
note: |
  [1 sentence explaining the arc — written from Hikari's perspective about the relationship dynamic]

Rules:
- brightening: predominantly warm sessions, or cold→warm trend
- darkening: cold/hostile sessions, or warm→cold trend
- guarded: mixed/inconsistent, or user has been distant
- stable: consistent neutral/warm, no strong trend
- The note should sound like Hikari observing the pattern, not a clinical summary.`

type reflectionResult struct {
	NewMemoryFacts []string `yaml:"new_memory_facts"`
	Thought        string   `yaml:"thought"`
}

type moodArcResult struct {
	Arc  string `yaml:"arc"`
	Note string `yaml:"note"`
}

// OnDailyReflection promotes stable facts to long-term memory, writes the
// private diary, refreshes the preoccupation and mood arc, and prunes old
// episodes. The three generative calls are independent: a failure in one
// never blocks the others, and pruning always runs once reflection starts.
func (e *Engine) OnDailyReflection(ctx context.Context) bool {
	now := time.Now().UTC()
	episodes := e.store.RecentEpisodes(e.settings.Memory.RecentEpisodes)
	if len(episodes) == 0 {
		return false
	}

	episodeText := renderEpisodes(episodes)
	profile := e.store.Profile()

	ran := e.reflectFacts(ctx, episodeText, profile.TrustStage, now)
	e.reflectPreoccupation(ctx, episodeText)
	e.reflectMoodArc(ctx)

	pruned := e.store.PruneEpisodes(e.settings.Memory.EpisodeRetentionDays, now)
	if pruned > 0 {
		log.Printf("[MIND] pruned %d old episodes", pruned)
	}
	return ran
}

func (e *Engine) reflectFacts(ctx context.Context, episodes string, stage int, now time.Time) bool {
	existing := e.store.LongTermMemory()
	if existing == "" {
		existing = "none yet"
	}

	raw, err := e.provider.Generate(ctx, []ai.Message{
		{Role: "system", Content: reflectionSystem},
		{Role: "user", Content: fmt.Sprintf(
			"Recent sessions:\n%s\n\nExisting long-term memory:\n%s\n\nCurrent trust stage: %d",
			episodes, existing, stage)},
	}, "memory", 0.5)
	if err != nil {
		log.Printf("[ERR] mind: reflection call failed: %v", err)
		return false
	}

	var result reflectionResult
	if err := yaml.Unmarshal([]byte(ai.StripCodeFence(raw)), &result); err != nil {
		log.Printf("[ERR] mind: reflection parse failed: %v", err)
		return false
	}

	for _, fact := range cleanList(result.NewMemoryFacts) {
		if err := e.store.AppendToMemory("about the user", fact); err != nil {
			log.Printf("[ERR] mind: memory append failed: %v", err)
		}
	}

	if thought := strings.TrimSpace(result.Thought); thought != "" && stage >= reflectionVisibleStage {
		if err := e.store.AppendThought(now.Format("2006-01-02"), thought); err != nil {
			log.Printf("[ERR] mind: thought append failed: %v", err)
		}
	}
	return true
}

func (e *Engine) reflectPreoccupation(ctx context.Context, episodes string) {
	excerpt := episodes
	if len(excerpt) > 500 {
		excerpt = excerpt[:500]
	}
	line, err := e.provider.Generate(ctx, []ai.Message{
		{Role: "system", Content: preoccupationSystem},
		{Role: "user", Content: "Recent context (for grounding only):\n" + excerpt},
	}, "memory", 0.8)
	if err != nil {
		log.Printf("[ERR] mind: preoccupation call failed: %v", err)
		return
	}
	line = strings.Trim(strings.TrimSpace(line), `"'`)
	if line == "" {
		return
	}
	e.store.UpdateSelfModel(func(m *storage.SelfModel) {
		m.Preoccupation = line
	})
}

func (e *Engine) reflectMoodArc(ctx context.Context) {
	arc := e.store.MoodArc()
	if len(arc.RecentSessionTemperatures) == 0 {
		return
	}

	var temps []string
	for _, t := range arc.RecentSessionTemperatures {
		temps = append(temps, fmt.Sprintf("  %s: %s", t.Date, t.Temperature))
	}

	raw, err := e.provider.Generate(ctx, []ai.Message{
		{Role: "system", Content: moodArcSystem},
		{Role: "user", Content: "Recent session temperatures:\n" + strings.Join(temps, "\n")},
	}, "memory", 0.3)
	if err != nil {
		log.Printf("[ERR] mind: mood arc call failed: %v", err)
		return
	}

	var result moodArcResult
	if err := yaml.Unmarshal([]byte(ai.StripCodeFence(raw)), &result); err != nil {
		log.Printf("[ERR] mind: mood arc parse failed: %v", err)
		return
	}

	result.Arc = strings.TrimSpace(result.Arc)
	result.Note = strings.TrimSpace(result.Note)
	switch result.Arc {
	case "stable", "brightening", "darkening", "guarded":
	default:
		return
	}
	if result.Note == "" {
		return
	}

	e.store.UpdateMoodArc(func(m *storage.MoodArc) {
		m.CurrentArc = result.Arc
		m.ArcNote = result.Note
	})
}

func renderEpisodes(eps []storage.Episode) string {
	var parts []string
	for _, ep := range eps {
		parts = append(parts, ep.Render())
	}
	return strings.Join(parts, "\n\n---\n\n")
}
