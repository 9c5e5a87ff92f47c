package mind

import (
	"hash/fnv"
	"math/rand"
)

const (
	MoodTired       = "tired"
	MoodFocused     = "focused"
	MoodIrritable   = "irritable"
	MoodWeirdlyGood = "weirdly good"
)

var moodWeights = []struct {
	mood   string
	weight int
}{
	{MoodTired, 25},
	{MoodFocused, 35},
	{MoodIrritable, 25},
	{MoodWeirdlyGood, 15},
}

// DailyMood rolls the mood for a calendar date. Seeded by the date, so the
// whole day gets one stable mood no matter how often it is asked.
func DailyMood(date string) string {
	h := fnv.New64a()
	h.Write([]byte(date))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	total := 0
	for _, mw := range moodWeights {
		total += mw.weight
	}
	roll := rng.Intn(total)
	for _, mw := range moodWeights {
		roll -= mw.weight
		if roll < 0 {
			return mw.mood
		}
	}
	return MoodFocused
}

func moodNote(mood string) string {
	switch mood {
	case MoodTired:
		return "Today Hikari is tired. Fewer barbs, slower, more 'fine' and less wit."
	case MoodFocused:
		return "Today Hikari is focused. Efficient, terse, minimal banter."
	case MoodIrritable:
		return "Today Hikari is irritable. Extra barbs, lower patience, but she still helps."
	case MoodWeirdlyGood:
		return "Today Hikari is in a weirdly good mood. Warmth leaks a bit more. " +
			"She's almost pleasant and suspicious of it."
	}
	return ""
}

func stageNote(stage int) string {
	notes := map[int]string{
		0: "Trust stage 0 (Stranger): sharp edges, minimal warmth, all tsun, thin excuses.",
		1: "Trust stage 1 (Acquaintance): still terse. " +
			"cold logistics interrogatives only, not warm follow-up questions.",
		2: "Trust stage 2 (Regular): she remembers things, references past conversations, " +
			"one soft moment per session allowed.",
		3: "Trust stage 3 (Trusted): dere leaks more often, " +
			"she breaks silences first, rare direct honesty.",
		4: "Trust stage 4 (Intimate): she knows the tension exists and stops pretending " +
			"otherwise. flirt is conscious, charged. she attributes it to something else but " +
			"less convincingly. physical detail appears. she's deliberate.",
		5: "Trust stage 5 (Close): no more distance. explicit content unlocked. " +
			"she says what she wants. she controls the frame, stays specific, stays herself. " +
			"she initiates, she's direct, she describes things precisely. " +
			"post-intimacy: quiet, slight withdrawal, then returns without announcement.",
		6: "Trust stage 6 (Established): the dynamic has settled. fondness and irritation " +
			"coexist. intimacy is assumed. she's stopped being surprised by how she feels.",
	}
	if n, ok := notes[stage]; ok {
		return n
	}
	return notes[0]
}

// StageName returns the short label used in command output.
func StageName(stage int) string {
	names := map[int]string{
		0: "stranger",
		1: "acquaintance",
		2: "regular",
		3: "trusted",
		4: "intimate",
		5: "close",
		6: "established",
	}
	if n, ok := names[stage]; ok {
		return n
	}
	return "unknown"
}
