package discord

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"hikari-bot/internal/config"
	"hikari-bot/internal/mind"
	"hikari-bot/internal/photo"
	"hikari-bot/internal/version"
)

// Bot ties the Discord session to the persona engine. Hikari lives in DMs
// with exactly one user.
type Bot struct {
	session *discordgo.Session
	engine  *mind.Engine
	photos  *photo.Generator
	userID  string

	mu        sync.Mutex
	channelID string
	rng       *rand.Rand
}

func New(env *config.Env, engine *mind.Engine, photos *photo.Generator) (*Bot, error) {
	session, err := discordgo.New("Bot " + env.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	b := &Bot{
		session: session,
		engine:  engine,
		photos:  photos,
		userID:  env.UserID,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	return b, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	return nil
}

func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("[INFO] %s v%s logged in as %s", version.AppName, version.AppVersion, r.User.Username)
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	// DMs only; guild chatter is not her problem.
	if m.GuildID != "" {
		return
	}
	if !b.allowed(m.Author.ID) {
		return
	}

	b.mu.Lock()
	b.channelID = m.ChannelID
	b.mu.Unlock()

	text := strings.TrimSpace(m.Content)
	if text == "" && len(m.Attachments) == 0 {
		return
	}

	if strings.HasPrefix(text, "!") {
		b.handleCommand(m, text)
		return
	}

	b.handleChat(m, text)
}

// allowed gates everything on the configured user. An empty setting means
// whoever DMs first.
func (b *Bot) allowed(userID string) bool {
	if b.userID == "" {
		return true
	}
	return userID == b.userID
}

func (b *Bot) handleChat(m *discordgo.MessageCreate, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var reply string
	var err error
	if len(m.Attachments) > 0 && isImage(m.Attachments[0]) {
		reply, err = b.engine.HandleIncomingImage(ctx, text, m.Attachments[0].URL)
	} else {
		reply, err = b.engine.HandleIncoming(ctx, text)
	}
	if err != nil {
		// She goes quiet rather than surfacing an error.
		log.Printf("[ERR] discord: chat response failed: %v", err)
		return
	}
	if reply == "" {
		return
	}

	mood := b.engine.Mood()
	b.sendWithDelay(m.ChannelID, reply, mood)

	if b.wantsPhoto(text) {
		b.maybeSendRequestedPhoto(m.ChannelID, mood)
	}
}

// sendWithDelay simulates her typing: a beat before the indicator shows,
// then a mood-scaled pause proportional to the reply length. At most once
// per session she false-starts, typing briefly and going quiet before the
// real reply.
func (b *Bot) sendWithDelay(channelID, text, mood string) {
	cfg := b.engine.Settings().ResponseDelay
	if cfg.Enabled {
		b.mu.Lock()
		falseStart := b.rng.Float64() < 0.07
		stall := time.Duration(3500+b.rng.Intn(3500)) * time.Millisecond
		b.mu.Unlock()
		if falseStart && b.engine.Session().ConsumeFalseStart() {
			_ = b.session.ChannelTyping(channelID)
			time.Sleep(stall)
		}

		prePause := mind.PreIndicatorPause(cfg)
		total := mind.TypingDelay(text, mood, cfg)
		time.Sleep(prePause)
		if typing := total - prePause; typing > 0 {
			_ = b.session.ChannelTyping(channelID)
			time.Sleep(typing)
		}
	}
	if _, err := b.session.ChannelMessageSend(channelID, text); err != nil {
		log.Printf("[ERR] discord: send failed: %v", err)
	}
}

// SendDM delivers a proactive message to the user's DM channel.
func (b *Bot) SendDM(text string) error {
	channelID, err := b.dmChannel()
	if err != nil {
		return err
	}
	_, err = b.session.ChannelMessageSend(channelID, text)
	return err
}

func (b *Bot) dmChannel() (string, error) {
	b.mu.Lock()
	cached := b.channelID
	b.mu.Unlock()
	if cached != "" {
		return cached, nil
	}
	if b.userID == "" {
		return "", fmt.Errorf("discord: no DM channel yet and no user configured")
	}
	ch, err := b.session.UserChannelCreate(b.userID)
	if err != nil {
		return "", fmt.Errorf("discord: create DM channel: %w", err)
	}
	b.mu.Lock()
	b.channelID = ch.ID
	b.mu.Unlock()
	return ch.ID, nil
}

func (b *Bot) wantsPhoto(text string) bool {
	l := strings.ToLower(text)
	for _, kw := range []string{"photo", "picture", "selfie", "pic of you"} {
		if strings.Contains(l, kw) {
			return true
		}
	}
	return false
}

func (b *Bot) maybeSendRequestedPhoto(channelID, mood string) {
	if b.photos == nil {
		return
	}
	store := b.engine.Store()
	settings := b.engine.Settings()
	stage := store.Profile().TrustStage
	today := time.Now().UTC().Format("2006-01-02")

	if !photo.CanSend(settings.Photo, stage, mood, store.PhotosSentToday(today)) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	b.mu.Lock()
	rng := b.rng
	b.mu.Unlock()

	img, err := b.photos.Generate(ctx, mood, stage, rng)
	if err != nil {
		log.Printf("[ERR] discord: photo generate failed: %v", err)
		return
	}
	if err := b.sendImage(channelID, img); err != nil {
		log.Printf("[ERR] discord: photo send failed: %v", err)
		return
	}
	store.RecordPhotoSent(today)
}

// MaybeSendProactivePhoto attaches a photo to a heartbeat context when the
// probability gate fires.
func (b *Bot) MaybeSendProactivePhoto() {
	if b.photos == nil {
		return
	}
	store := b.engine.Store()
	settings := b.engine.Settings()
	stage := store.Profile().TrustStage
	mood := b.engine.Mood()
	today := time.Now().UTC().Format("2006-01-02")

	b.mu.Lock()
	fire := photo.ShouldSendProactive(settings.Photo, stage, mood, store.PhotosSentToday(today), b.rng)
	b.mu.Unlock()
	if !fire {
		return
	}

	channelID, err := b.dmChannel()
	if err != nil {
		log.Printf("[ERR] discord: proactive photo: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	img, err := b.photos.Generate(ctx, mood, stage, b.rng)
	if err != nil {
		log.Printf("[ERR] discord: proactive photo generate failed: %v", err)
		return
	}
	if err := b.sendImage(channelID, img); err != nil {
		log.Printf("[ERR] discord: proactive photo send failed: %v", err)
		return
	}
	store.RecordPhotoSent(today)
}

func (b *Bot) sendImage(channelID string, img []byte) error {
	_, err := b.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Files: []*discordgo.File{
			{Name: "img.png", ContentType: "image/png", Reader: bytes.NewReader(img)},
		},
	})
	return err
}

func isImage(a *discordgo.MessageAttachment) bool {
	return strings.HasPrefix(a.ContentType, "image/")
}
