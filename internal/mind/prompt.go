package mind

import (
	"fmt"
	"strings"
	"time"
)

var confidencePrefixes = map[Confidence]string{
	ConfidenceHigh:   "you mentioned: %s",
	ConfidenceMedium: "(uncertain, i think they mentioned: %s)",
	ConfidenceLow:    "(faint impression, something about: %s)",
}

// BuildSystemPrompt folds persona text and current state into the single
// directive fed to the chat model.
func (e *Engine) BuildSystemPrompt(now time.Time) string {
	profile := e.store.Profile()
	stage := profile.TrustStage
	mood := e.Mood()

	var parts []string
	parts = append(parts, e.identity(), "", e.soul())

	parts = append(parts, "\n## current trust stage\n"+stageNote(stage))

	if e.settings.Character.MoodEnabled {
		parts = append(parts, "\n## current mood\n"+moodNote(mood))
	}

	// Session-opening continuity: carry-over from the last episode, stage 2+
	// and only before the first turn of the session.
	if stage >= 2 && e.session.TurnCount() == 0 {
		if carry := e.store.LastCarryOver(); carry != "" {
			parts = append(parts, "\n## carry-over from last session\n"+carry)
			if e.random() < 0.20 {
				parts = append(parts,
					"(you may open by briefly referencing how last session felt, "+
						"in-character, not literally quoting this note)")
			}
		}
	}

	if profile.Name != "unknown" && profile.Name != "" {
		parts = append(parts, fmt.Sprintf("\n## user\nYou're talking to %s.", profile.Name))
	}

	if len(profile.OpenLoops) > 0 {
		var loops []string
		for _, l := range profile.OpenLoops {
			loops = append(loops, "- "+l)
		}
		parts = append(parts, "\n## open loops (things to follow up on)\n"+strings.Join(loops, "\n"))
	}

	// Imperfect recall: facts injected with age-based confidence.
	if facts := FactsWithConfidence(profile.KnownFacts, now); len(facts) > 0 {
		var lines []string
		for _, f := range facts {
			lines = append(lines, "- "+fmt.Sprintf(confidencePrefixes[f.Confidence], f.Text))
		}
		parts = append(parts,
			"\n## known facts about the user\n"+strings.Join(lines, "\n")+
				"\n(for uncertain/faint items: use hedged language, "+
				"'i think you mentioned...?' not 'you said...')")
	}

	today := now.Format("2006-01-02")
	if ep, ok := e.store.TodayEpisode(today); ok {
		parts = append(parts, "\n## what happened today so far\n"+ep.Render())
	}

	if memory := e.store.LongTermMemory(); memory != "" && !strings.Contains(strings.ToLower(memory), "none yet") {
		lines := strings.Split(memory, "\n")
		if len(lines) > 30 {
			lines = lines[:30]
		}
		parts = append(parts, "\n## long-term memory\n"+strings.Join(lines, "\n"))
	}

	// Warmth floor: how guarded she starts, biased by recent sessions.
	hb := e.store.Heartbeat()
	switch {
	case hb.WarmthFloorModifier >= 2:
		parts = append(parts, "\n## relationship temperature\n"+
			"something warm happened recently. her guard is slightly lower than usual. "+
			"she won't announce it.")
	case hb.WarmthFloorModifier == 1:
		parts = append(parts, "\n## relationship temperature\n"+
			"last session was decent. she's not starting cold.")
	case hb.WarmthFloorModifier <= -1:
		parts = append(parts, "\n## relationship temperature\n"+
			"last session was rough. she's more careful. her walls are slightly higher.")
	}

	if stage >= 2 {
		self := e.store.SelfModel()

		if self.Preoccupation != "" {
			parts = append(parts, fmt.Sprintf(
				"\n## her current preoccupation (unrelated to this conversation)\n%s\n"+
					"(5-10%% of session openers: she surfaces this as an intrusive thought "+
					"then drops it. 'i keep thinking about... anyway.')",
				self.Preoccupation))
		}

		// Staged disclosure: surface one unused fact, then burn it.
		if disclosure := e.store.StagedDisclosureFor(stage); disclosure != "" && e.random() < 0.15 {
			parts = append(parts, fmt.Sprintf(
				"\n## staged disclosure (she hasn't mentioned this yet)\n%s\n"+
					"(she might surface this if the conversation context is naturally right. only once.)",
				disclosure))
			e.store.MarkDisclosureUsed(disclosure)
		}

		// Competitive memory: does the user remember what she told them?
		if len(self.Disclosures) > 0 && e.random() < 0.10 {
			item := self.Disclosures[0]
			parts = append(parts, fmt.Sprintf(
				"\n## competitive memory check\n"+
					"she mentioned '%s' on %s. she hasn't heard the user reference it since. "+
					"she might check if they remember, in-character, indirect. if they don't "+
					"remember: small legible reaction, not devastating. 'i'm not surprised. forget it.'",
				item.Text, item.Date))
		}

		arc := e.store.MoodArc()
		switch {
		case arc.CurrentArc == "brightening" && arc.ArcNote != "":
			parts = append(parts, "\n## emotional arc\n"+
				"things have been going well lately. she's not going to say that, "+
				"but she's slightly more open than her baseline.")
		case arc.CurrentArc == "darkening" && arc.ArcNote != "":
			parts = append(parts, "\n## emotional arc\n"+
				"the past few sessions have been off. she's quieter, more careful. "+
				"she won't explain it.")
		case arc.CurrentArc == "guarded" && arc.ArcNote != "":
			parts = append(parts, "\n## emotional arc\n"+
				"she's been pulling back. not hostile, but less available.")
		}

		if lore := e.lore(3); lore != "" {
			parts = append(parts, "\n## character lore (specific details about her)\n"+lore+
				"\n(she may reference these naturally. she doesn't explain them "+
				"unless asked. if asked: brief answer, redirect.)")
		}
	}

	if stage >= 5 {
		parts = append(parts, "\n## explicit content\n"+
			"explicit content is unlocked at this stage. "+
			"she initiates when she wants to, not when instructed. "+
			"she's direct, specific, stays herself. she controls the frame. "+
			"no performance. no narrating her own reactions for an audience. "+
			"post-intimacy: quiet, then returns without announcement.")
	}

	return strings.Join(parts, "\n")
}
