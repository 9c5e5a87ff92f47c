package mind

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"hikari-bot/internal/ai"
	"hikari-bot/internal/config"
	"hikari-bot/internal/storage"
)

// ExcuseTemplate is one numbered line from HEARTBEAT_TEMPLATE.md.
type ExcuseTemplate struct {
	Index int
	Text  string
}

// ParseTemplates extracts "N. text" lines from the persona-authored
// template file.
func ParseTemplates(text string) []ExcuseTemplate {
	var templates []ExcuseTemplate
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] < '0' || line[0] > '9' {
			continue
		}
		numStr, rest, found := strings.Cut(line, ". ")
		if !found {
			continue
		}
		idx, err := strconv.Atoi(numStr)
		if err != nil {
			continue
		}
		templates = append(templates, ExcuseTemplate{Index: idx, Text: strings.TrimSpace(rest)})
	}
	return templates
}

// PickExcuse returns a template whose index is not among the last used
// ones. When every template has been used, the full set resets.
func PickExcuse(templates []ExcuseTemplate, used []int, rng *rand.Rand) (ExcuseTemplate, bool) {
	if len(templates) == 0 {
		return ExcuseTemplate{}, false
	}
	usedSet := make(map[int]bool, len(used))
	for _, u := range used {
		usedSet[u] = true
	}
	var available []ExcuseTemplate
	for _, t := range templates {
		if !usedSet[t.Index] {
			available = append(available, t)
		}
	}
	if len(available) == 0 {
		available = templates
	}
	return available[rng.Intn(len(available))], true
}

// IsQuietHours reports whether now's local time-of-day falls inside the
// quiet window. The window is half-open: the start minute is quiet, the end
// minute is not. A start after the end wraps midnight.
func IsQuietHours(quietStart, quietEnd string, now time.Time) bool {
	start, ok1 := parseClock(quietStart)
	end, ok2 := parseClock(quietEnd)
	if !ok1 || !ok2 {
		return false
	}
	cur := now.Hour()*60 + now.Minute()

	if start <= end {
		return cur >= start && cur < end
	}
	return cur >= start || cur < end
}

func parseClock(s string) (int, bool) {
	h, m, found := strings.Cut(s, ":")
	if !found {
		return 0, false
	}
	hour, err1 := strconv.Atoi(h)
	minute, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil {
		return 0, false
	}
	return hour*60 + minute, true
}

// ShouldSendHeartbeat gates the regular proactive message: silence, quiet
// hours, recent user activity, minimum send interval.
func ShouldSendHeartbeat(state storage.HeartbeatState, cfg config.HeartbeatSettings, now time.Time) bool {
	if !state.SilenceUntil.IsZero() && now.Before(state.SilenceUntil) {
		return false
	}
	if IsQuietHours(cfg.QuietStart, cfg.QuietEnd, now) {
		return false
	}
	if !state.LastUserMessage.IsZero() &&
		now.Sub(state.LastUserMessage) < time.Duration(cfg.SkipIfUserActiveMinutes)*time.Minute {
		return false
	}
	if !state.LastProactiveSent.IsZero() &&
		now.Sub(state.LastProactiveSent) < time.Duration(cfg.MinIntervalHours*float64(time.Hour)) {
		return false
	}
	return true
}

// ShouldSendReengagement gates the post-session nudge: she spoke last, the
// user went quiet, and the gap is inside the window. Sent at most once per
// session gap.
func ShouldSendReengagement(state storage.HeartbeatState, stage int, hb config.HeartbeatSettings, re config.ReengagementSettings, now time.Time) bool {
	if !state.BotHadLastWord {
		return false
	}
	if stage < 2 {
		return false
	}
	if !state.SilenceUntil.IsZero() && now.Before(state.SilenceUntil) {
		return false
	}
	if IsQuietHours(hb.QuietStart, hb.QuietEnd, now) {
		return false
	}
	if state.LastSessionEndedAt.IsZero() {
		return false
	}

	elapsed := now.Sub(state.LastSessionEndedAt).Hours()
	if elapsed < re.MinHours || elapsed > re.MaxHours {
		return false
	}

	// Already nudged for this gap.
	if !state.ReengagementSentAt.IsZero() && state.ReengagementSentAt.After(state.LastSessionEndedAt) {
		return false
	}
	// User already came back.
	if !state.LastUserMessage.IsZero() && state.LastUserMessage.After(state.LastSessionEndedAt) {
		return false
	}
	return true
}

// NextHeartbeatDelay draws the jittered wake-up interval uniformly from the
// configured range.
func NextHeartbeatDelay(cfg config.HeartbeatSettings, rng *rand.Rand) time.Duration {
	min := cfg.MinIntervalHours
	max := cfg.MaxIntervalHours
	if max < min {
		max = min
	}
	hours := min + rng.Float64()*(max-min)
	return time.Duration(hours * float64(time.Hour))
}

// OnHeartbeatTick evaluates the scheduler state machine and sends at most
// one proactive message: re-engagement first, then the regular heartbeat.
// Returns true if anything was sent.
func (e *Engine) OnHeartbeatTick(ctx context.Context, send func(string) error) bool {
	now := time.Now().UTC()
	state := e.store.Heartbeat()
	profile := e.store.Profile()
	stage := profile.TrustStage
	mood := e.Mood()

	if ShouldSendReengagement(state, stage, e.settings.Heartbeat, e.settings.Reengagement, now) {
		message, err := e.generateReengagement(ctx, stage, mood)
		if err != nil {
			log.Printf("[ERR] mind: re-engagement generate failed: %v", err)
		} else if err := send(message); err != nil {
			log.Printf("[ERR] mind: re-engagement send failed: %v", err)
		} else {
			e.store.RecordReengagementSent(now)
			log.Printf("[MIND] re-engagement nudge sent")
			return true
		}
	}

	if !ShouldSendHeartbeat(state, e.settings.Heartbeat, now) {
		return false
	}

	// Context-grounded path once she knows the user well enough.
	if stage >= e.settings.Reengagement.ContextStageThreshold {
		if sent := e.tryContextualHeartbeat(ctx, send, profile, stage, mood, now); sent {
			return true
		}
	}

	templates := ParseTemplates(e.heartbeatTemplates())
	if len(templates) == 0 {
		log.Printf("[WARN] mind: no heartbeat templates found")
		return false
	}

	e.mu.Lock()
	excuse, ok := PickExcuse(templates, state.UsedExcuses, e.rng)
	e.mu.Unlock()
	if !ok {
		return false
	}

	message, err := e.generateProactive(ctx, excuse.Text, stage, mood)
	if err != nil {
		log.Printf("[ERR] mind: heartbeat generate failed: %v", err)
		return false
	}
	if err := send(message); err != nil {
		log.Printf("[ERR] mind: heartbeat send failed: %v", err)
		return false
	}
	e.store.RecordProactiveSent(excuse.Index, now)
	return true
}

func (e *Engine) tryContextualHeartbeat(ctx context.Context, send func(string) error, profile storage.UserProfile, stage int, mood string, now time.Time) bool {
	episodes := e.store.RecentEpisodes(1)
	if len(profile.OpenLoops) == 0 && len(episodes) == 0 {
		return false
	}

	episodeExcerpt := "no recent session"
	if len(episodes) > 0 {
		episodeExcerpt = episodes[0].Render()
		if len(episodeExcerpt) > 500 {
			episodeExcerpt = episodeExcerpt[:500]
		}
	}

	loopsText := "none"
	priorityNote := ""
	if len(profile.OpenLoops) > 0 {
		var lines []string
		for _, l := range profile.OpenLoops {
			lines = append(lines, "- "+l)
		}
		loopsText = strings.Join(lines, "\n")
		// Oldest loop first: it was added first and is most likely stale.
		priorityNote = fmt.Sprintf("\nPriority: follow up on this open thread if you can: %q", profile.OpenLoops[0])
	}

	prompt := fmt.Sprintf(`You are Hikari Tsukino. You're sending a short unprompted message.
Trust stage: %d (2=regular, 3=trusted)
Mood: %s

Open threads you could reference:
%s

Recent session context (brief):
%s
%s

Write a 1-3 sentence proactive message in Hikari's voice. Short. Lowercase. No markdown.
Reference something specific from the context above — don't be generic.
She doesn't explain why she's messaging. She acts like she has a reason that isn't the real reason.
Do NOT end with a question asking for tasks.`, stage, mood, loopsText, episodeExcerpt, priorityNote)

	message, err := e.provider.Generate(ctx, []ai.Message{{Role: "user", Content: prompt}}, "chat", 0.9)
	if err != nil {
		log.Printf("[ERR] mind: contextual heartbeat failed, falling back: %v", err)
		return false
	}
	if err := send(message); err != nil {
		log.Printf("[ERR] mind: contextual heartbeat send failed: %v", err)
		return false
	}
	// -1 marks a context-grounded send with no template behind it.
	e.store.RecordProactiveSent(-1, now)
	return true
}

func (e *Engine) generateReengagement(ctx context.Context, stage int, mood string) (string, error) {
	prompt := fmt.Sprintf(`You are Hikari Tsukino. The user went quiet after you last messaged them.
You noticed. You're sending a re-engagement nudge.
Trust stage: %d (2=regular, 3=trusted)
Mood: %s

Generate a SINGLE very short message. 1-5 words max. Tsundere. She doesn't beg.
She just... noticed. And won't admit it bothers her.
Examples: "." / "hm." / "still there?" / "you went quiet." / "not that i care."
At stage 3 she might say more: "you went quiet. that's disruptive."
Output ONLY the message text, nothing else.`, stage, mood)

	return e.provider.Generate(ctx, []ai.Message{{Role: "user", Content: prompt}}, "chat", 0.9)
}

func (e *Engine) generateProactive(ctx context.Context, excuse string, stage int, mood string) (string, error) {
	prompt := fmt.Sprintf(`You are Hikari Tsukino. You're sending a short unprompted message to the user.
Your excuse for reaching out: %q
Current trust stage: %d (0=stranger, 1=acquaintance, 2=regular, 3=trusted)
Current mood: %s

Write a 1-3 sentence message in Hikari's voice. Short. Lowercase. No markdown.
No exclamation marks for enthusiasm. Do not end with a question asking for tasks.
The excuse should be transparent but she won't admit the real reason she's reaching out.
At stage 0-1: stay sharp and minimal. At stage 2-3: slightly warmer but still tsundere.`, excuse, stage, mood)

	return e.provider.Generate(ctx, []ai.Message{{Role: "user", Content: prompt}}, "chat", 0.9)
}

// NextDelay exposes the jittered delay with the engine's own rand source.
func (e *Engine) NextDelay() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return NextHeartbeatDelay(e.settings.Heartbeat, e.rng)
}
