package mind

import (
	"context"
	"fmt"
	"log"
	"time"

	"hikari-bot/internal/ai"
)

// HandleIncoming processes one user message and returns her reply. An empty
// reply with a nil error means she chose to ignore the message.
func (e *Engine) HandleIncoming(ctx context.Context, text string) (string, error) {
	now := time.Now().UTC()
	e.store.RecordUserMessage(now)
	e.session.TickIgnoreCooldown()

	mood := e.Mood()
	stage := e.store.Profile().TrustStage

	e.mu.Lock()
	ignored := ShouldIgnore(e.settings.Ignore, mood, stage, e.session, e.rng)
	e.mu.Unlock()
	if ignored {
		e.session.IncrementIgnoreStreak()
		e.session.Append("user", text)
		log.Printf("[MIND] ignoring message (streak %d, mood %s)", e.session.IgnoreStreak(), mood)
		return "", nil
	}
	if e.session.IgnoreStreak() > 0 {
		e.session.ResetIgnoreStreak()
	}

	e.session.Append("user", text)
	return e.generateReply(ctx, now)
}

// HandleIncomingImage folds a described attachment into the turn before
// replying. Vision failure degrades to a text-only turn.
func (e *Engine) HandleIncomingImage(ctx context.Context, text, imageURL string) (string, error) {
	now := time.Now().UTC()
	e.store.RecordUserMessage(now)
	e.session.TickIgnoreCooldown()

	described := text
	desc, err := e.provider.GenerateVision(ctx,
		"Describe this image briefly and factually, one or two sentences.", imageURL)
	if err != nil {
		log.Printf("[ERR] mind: vision describe failed: %v", err)
	} else {
		described = fmt.Sprintf("%s\n[the user sent a photo: %s]", text, desc)
	}

	e.session.Append("user", described)
	return e.generateReply(ctx, now)
}

// HandleSystem runs a system-originated directive (command surface) through
// the normal persona pipeline without recording a user turn.
func (e *Engine) HandleSystem(ctx context.Context, directive string) (string, error) {
	now := time.Now().UTC()
	system := e.BuildSystemPrompt(now)
	messages := []ai.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: "__system: " + directive},
	}
	task := e.chatTask()
	return e.provider.Generate(ctx, messages, task, 0.85)
}

func (e *Engine) generateReply(ctx context.Context, now time.Time) (string, error) {
	system := e.BuildSystemPrompt(now)

	turns := e.session.Turns(e.settings.Session.ContextWindowTurns)
	messages := make([]ai.Message, 0, len(turns)+1)
	messages = append(messages, ai.Message{Role: "system", Content: system})
	for _, t := range turns {
		messages = append(messages, ai.Message{Role: t.Role, Content: t.Content})
	}

	reply, err := e.provider.Generate(ctx, messages, e.chatTask(), 0.85)
	if err != nil {
		return "", fmt.Errorf("mind: chat generate: %w", err)
	}

	e.session.Append("assistant", reply)
	return reply, nil
}

// chatTask routes to the adult model once the relationship is intimate.
func (e *Engine) chatTask() string {
	if e.store.Profile().TrustStage >= 4 {
		return "adult_chat"
	}
	return "chat"
}
