package discord

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"hikari-bot/internal/mind"
	"hikari-bot/internal/storage"
)

// handleCommand dispatches "!name args" commands. Replies stay in character
// except where marked out of character.
func (b *Bot) handleCommand(m *discordgo.MessageCreate, text string) {
	name, args, _ := strings.Cut(strings.TrimPrefix(text, "!"), " ")
	args = strings.TrimSpace(args)

	switch strings.ToLower(name) {
	case "start":
		b.cmdStart(m)
	case "model":
		b.cmdModel(m, args)
	case "silence":
		b.cmdSilence(m, args)
	case "unsilence":
		b.cmdUnsilence(m)
	case "memory":
		b.cmdMemory(m)
	case "mood":
		b.cmdMood(m)
	case "forget":
		b.cmdForget(m, args)
	case "stats":
		b.cmdStats(m)
	case "stage":
		b.cmdStage(m, args)
	case "help":
		b.cmdHelp(m)
	}
}

func (b *Bot) reply(m *discordgo.MessageCreate, text string) {
	if _, err := b.session.ChannelMessageSend(m.ChannelID, text); err != nil {
		log.Printf("[ERR] discord: command reply failed: %v", err)
	}
}

// replyInCharacter runs a system directive through the persona pipeline.
// On failure she just stays quiet.
func (b *Bot) replyInCharacter(m *discordgo.MessageCreate, directive string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	reply, err := b.engine.HandleSystem(ctx, directive)
	if err != nil {
		log.Printf("[ERR] discord: in-character reply failed: %v", err)
		return
	}
	b.reply(m, reply)
}

func (b *Bot) cmdStart(m *discordgo.MessageCreate) {
	b.replyInCharacter(m,
		"user just started the bot for the first time. give a brief intro as Hikari, "+
			"annoyed but present. don't say 'I'm Hikari', she doesn't introduce herself like an AI.")
}

func (b *Bot) cmdModel(m *discordgo.MessageCreate, args string) {
	settings := b.engine.Settings()
	if args == "" {
		b.reply(m, fmt.Sprintf("current model: %s\nusage: !model <openrouter-model-id>", settings.Model("chat")))
		return
	}
	if err := settings.SetModel("chat", args); err != nil {
		log.Printf("[ERR] discord: model update failed: %v", err)
		b.reply(m, "couldn't save that. not my fault.")
		return
	}
	b.reply(m, fmt.Sprintf("fine. switched to %s. don't blame me if it's worse.", args))
}

func (b *Bot) cmdSilence(m *discordgo.MessageCreate, args string) {
	minutes := 120
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil {
			b.reply(m, "...that's not a number. !silence [minutes]")
			return
		}
		minutes = n
	}

	b.engine.Store().SetSilence(time.Now().UTC().Add(time.Duration(minutes) * time.Minute))

	hours := minutes / 60
	mins := minutes % 60
	duration := fmt.Sprintf("%dm", mins)
	if hours > 0 {
		duration = fmt.Sprintf("%dh %dm", hours, mins)
	}
	b.reply(m, fmt.Sprintf("fine. i'll be quiet for %s. not like i was going to say anything anyway.", duration))
}

func (b *Bot) cmdUnsilence(m *discordgo.MessageCreate) {
	b.engine.Store().SetSilence(time.Time{})
	b.reply(m, "...fine. silence mode off. not that you asked nicely.")
}

func (b *Bot) cmdMemory(m *discordgo.MessageCreate) {
	profile := b.engine.Store().Profile()
	if len(profile.KnownFacts) == 0 && len(profile.OpenLoops) == 0 {
		b.reply(m, "i don't know much about you yet. you haven't told me anything worth remembering.")
		return
	}

	var parts []string
	parts = append(parts,
		"summarize what you know about the user in Hikari's voice. in-character, short, dry. no markdown.")
	if len(profile.KnownFacts) > 0 {
		var facts []string
		for _, f := range profile.KnownFacts {
			facts = append(facts, f.Text)
		}
		parts = append(parts, "known facts: "+strings.Join(facts, "; "))
	}
	if len(profile.OpenLoops) > 0 {
		parts = append(parts, "things to follow up on: "+strings.Join(profile.OpenLoops, "; "))
	}
	parts = append(parts, fmt.Sprintf("trust stage: %d", profile.TrustStage))

	b.replyInCharacter(m, strings.Join(parts, "\n"))
}

func (b *Bot) cmdMood(m *discordgo.MessageCreate) {
	b.replyInCharacter(m, fmt.Sprintf(
		"user asked about your current mood. your mood today is '%s'. "+
			"describe it in-character, briefly, in Hikari's voice. stay in character.",
		b.engine.Mood()))
}

func (b *Bot) cmdForget(m *discordgo.MessageCreate, args string) {
	if args == "" {
		b.reply(m, "forget what? !forget [topic]")
		return
	}
	b.engine.Store().ForgetTopic(args)
	b.reply(m, fmt.Sprintf("fine. forgot anything about '%s'. it's gone.", args))
}

func (b *Bot) cmdStats(m *discordgo.MessageCreate) {
	store := b.engine.Store()
	settings := b.engine.Settings()
	profile := store.Profile()
	hb := store.Heartbeat()

	b.reply(m, fmt.Sprintf(
		"[stats, out of character]\n"+
			"trust stage: %d (%s)\n"+
			"meaningful sessions: %d\n"+
			"proactive messages sent: %d\n"+
			"chat model: %s\n"+
			"memory model: %s",
		profile.TrustStage, mind.StageName(profile.TrustStage),
		profile.MeaningfulExchanges,
		hb.ProactiveCount,
		settings.Model("chat"),
		settings.Model("memory")))
}

// cmdStage is the dev override: it bypasses the threshold check.
func (b *Bot) cmdStage(m *discordgo.MessageCreate, args string) {
	store := b.engine.Store()
	maxStage := b.engine.Settings().Trust.MaxStage

	if args == "" {
		b.reply(m, fmt.Sprintf("current trust stage: %d\nusage: !stage [0-%d]", store.Profile().TrustStage, maxStage))
		return
	}
	stage, err := strconv.Atoi(args)
	if err != nil || stage < 0 || stage > maxStage {
		b.reply(m, fmt.Sprintf("stage must be between 0 and %d.", maxStage))
		return
	}
	store.UpdateProfile(func(p *storage.UserProfile) {
		p.TrustStage = stage
	})
	b.reply(m, fmt.Sprintf("[dev] trust stage set to %d.", stage))
}

func (b *Bot) cmdHelp(m *discordgo.MessageCreate) {
	b.reply(m, "commands. you're welcome.\n\n"+
		"!model [id] - switch chat model\n"+
		"!silence [minutes] - i'll stop bothering you\n"+
		"!unsilence - i can talk again\n"+
		"!memory - what i know about you\n"+
		"!mood - how i'm feeling today\n"+
		"!forget [topic] - i'll pretend i never knew\n"+
		"!stats - boring numbers\n"+
		"!stage [n] - dev: set trust stage\n"+
		"!help - this")
}
